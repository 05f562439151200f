package handlers

import (
	"net/http"

	"github.com/docubot/backend/services"
	"github.com/docubot/backend/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	details := services.GetErrorDetails(err)

	switch {
	case services.IsNotFoundError(err):
		if err := utils.WriteNotFound(w, err.Error()); err != nil {
			logger.Error("failed to write not found response", zap.Error(err))
		}

	case services.IsValidationError(err):
		if err := utils.WriteBadRequest(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad request response", zap.Error(err))
		}

	case services.IsRateLimitError(err):
		if err := utils.WriteTooManyRequests(w, err.Error(), details); err != nil {
			logger.Error("failed to write rate limit response", zap.Error(err))
		}

	case services.IsConfigurationError(err):
		// Missing provider credentials surface as temporary unavailability
		logger.Error("provider not configured", zap.Error(err))
		if err := utils.WriteServiceUnavailable(w, "Service temporarily unavailable"); err != nil {
			logger.Error("failed to write service unavailable response", zap.Error(err))
		}

	case services.IsExternalError(err):
		if err := utils.WriteBadGateway(w, err.Error(), details); err != nil {
			logger.Error("failed to write bad gateway response", zap.Error(err))
		}

	case services.IsInternalError(err), services.IsRetrievalError(err), services.IsStreamingError(err):
		logger.Error("internal server error", zap.Error(err))
		if err := utils.WriteInternalServerError(w, "An internal error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		if err := utils.WriteInternalServerError(w, "An unexpected error occurred"); err != nil {
			logger.Error("failed to write internal error response", zap.Error(err))
		}
	}
}

// HandleValidationError maps request validation failures to 400 responses
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	fields := utils.GetValidationFields(err)
	details := make(map[string]interface{}, len(fields))
	for field, msg := range fields {
		details[field] = msg
	}

	if writeErr := utils.WriteBadRequest(w, "Invalid request", details); writeErr != nil {
		logger.Error("failed to write validation error response", zap.Error(writeErr))
	}
}
