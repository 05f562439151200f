package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	ChatbotID string `validate:"required,uuid"`
	Message   string `validate:"required"`
	Mode      string `validate:"omitempty,oneof=stream single"`
}

func TestValidateStruct(t *testing.T) {
	t.Run("valid struct passes", func(t *testing.T) {
		err := ValidateStruct(sampleRequest{
			ChatbotID: "8f9e6a10-4f2b-4b6e-9a41-17cf9d3ce815",
			Message:   "hello there",
			Mode:      "stream",
		})
		assert.NoError(t, err)
	})

	t.Run("missing fields reported per field", func(t *testing.T) {
		err := ValidateStruct(sampleRequest{})
		require.Error(t, err)
		require.True(t, IsValidationError(err))

		fields := GetValidationFields(err)
		assert.Contains(t, fields, "ChatbotID")
		assert.Contains(t, fields, "Message")
	})

	t.Run("invalid uuid reported", func(t *testing.T) {
		err := ValidateStruct(sampleRequest{ChatbotID: "not-a-uuid", Message: "x"})
		require.True(t, IsValidationError(err))
		assert.Contains(t, GetValidationFields(err)["ChatbotID"], "UUID")
	})

	t.Run("oneof violation reported", func(t *testing.T) {
		err := ValidateStruct(sampleRequest{
			ChatbotID: "8f9e6a10-4f2b-4b6e-9a41-17cf9d3ce815",
			Message:   "x",
			Mode:      "batch",
		})
		require.True(t, IsValidationError(err))
		assert.Contains(t, GetValidationFields(err)["Mode"], "one of")
	})
}

func TestValidateUUID(t *testing.T) {
	assert.NoError(t, ValidateUUID("8f9e6a10-4f2b-4b6e-9a41-17cf9d3ce815"))
	assert.Error(t, ValidateUUID("nope"))
}
