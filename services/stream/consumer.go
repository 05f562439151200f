package stream

import (
	"bufio"
	"encoding/json"
	"io"
	"strings"

	"github.com/docubot/backend/services"
	"go.uber.org/zap"
)

// Callbacks are invoked by the consumer as protocol events arrive.
// OnDelta may return an error to abort the transport.
type Callbacks struct {
	OnReady func(threadID string)
	OnDelta func(text string) error
	OnEnd   func(threadID, text string)
}

// PlainResult is the non-streaming fallback body: the structured result
// without any event framing.
type PlainResult struct {
	ThreadID string `json:"thread_id,omitempty"`
	Response string `json:"response"`
}

// Consumer decodes the ready/delta/end/error event protocol from a response
// body. The cancellation token owns the idle timer; the consumer touches it
// on every frame and aborts through it on protocol errors.
type Consumer struct {
	logger *zap.Logger
}

// NewConsumer creates a protocol consumer
func NewConsumer(logger *zap.Logger) *Consumer {
	return &Consumer{logger: logger}
}

// Consume reads the body to completion, dispatching callbacks. The content
// type selects between event-stream decoding and the plain structured
// fallback; callback semantics are identical in both modes (OnReady, one or
// more OnDelta, OnEnd exactly once). Returns the abort reason when the token
// aborted mid-stream, or a streaming error when the upstream emitted one.
func (c *Consumer) Consume(body io.Reader, contentType string, cb Callbacks, token *CancelToken) error {
	if !strings.HasPrefix(contentType, ContentType) {
		return c.consumePlain(body, cb, token)
	}
	return c.consumeEvents(body, cb, token)
}

// consumePlain handles the non-streaming fallback: a single structured body
// delivered through the same callbacks.
func (c *Consumer) consumePlain(body io.Reader, cb Callbacks, token *CancelToken) error {
	defer token.Stop()

	var result PlainResult
	if err := json.NewDecoder(body).Decode(&result); err != nil {
		if reason := token.Err(); reason != nil {
			return reason
		}
		return services.NewDomainError(services.ErrorTypeStreaming, "failed to decode response body", err)
	}
	if cb.OnReady != nil {
		cb.OnReady(result.ThreadID)
	}
	if cb.OnDelta != nil {
		if err := cb.OnDelta(result.Response); err != nil {
			return services.NewDomainError(services.ErrorTypeStreaming, "stream aborted", err)
		}
	}
	if cb.OnEnd != nil {
		cb.OnEnd(result.ThreadID, result.Response)
	}
	return nil
}

type frame struct {
	event string
	data  string
}

// consumeEvents parses header-line framed events separated by a blank line,
// joining multiple data lines with newlines before decoding the payload.
func (c *Consumer) consumeEvents(body io.Reader, cb Callbacks, token *CancelToken) error {
	defer token.Stop()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var current frame
	var dataLines []string
	ended := false

	dispatch := func() error {
		if len(dataLines) == 0 && current.event == "" {
			return nil
		}
		current.data = strings.Join(dataLines, "\n")
		err := c.dispatchFrame(current, cb, token, &ended)
		current = frame{}
		dataLines = nil
		return err
	}

	for scanner.Scan() {
		if token.Aborted() {
			return token.Err()
		}
		line := strings.TrimRight(scanner.Text(), "\r")

		if line == "" {
			// Blank separator terminates the frame.
			token.Touch()
			if err := dispatch(); err != nil {
				return err
			}
			if ended {
				return nil
			}
			continue
		}

		switch {
		case strings.HasPrefix(line, "event:"):
			current.event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			c.logger.Debug("ignoring unknown frame line", zap.String("line", line))
		}
	}

	if reason := token.Err(); reason != nil {
		return reason
	}
	if err := scanner.Err(); err != nil {
		return services.NewDomainError(services.ErrorTypeStreaming, "stream read failed", err)
	}
	if err := dispatch(); err != nil {
		return err
	}
	if !ended {
		return services.NewDomainError(services.ErrorTypeStreaming, "stream ended without end event", nil)
	}
	return nil
}

func (c *Consumer) dispatchFrame(f frame, cb Callbacks, token *CancelToken, ended *bool) error {
	switch f.event {
	case EventReady:
		var payload ReadyPayload
		if err := json.Unmarshal([]byte(f.data), &payload); err != nil {
			return services.NewDomainError(services.ErrorTypeStreaming, "malformed ready payload", err)
		}
		if cb.OnReady != nil {
			cb.OnReady(payload.ThreadID)
		}

	case EventDelta:
		if token.Aborted() {
			// No delta callbacks after an abort.
			return token.Err()
		}
		var payload DeltaPayload
		if err := json.Unmarshal([]byte(f.data), &payload); err != nil {
			return services.NewDomainError(services.ErrorTypeStreaming, "malformed delta payload", err)
		}
		if cb.OnDelta != nil {
			if err := cb.OnDelta(payload.Text); err != nil {
				token.Abort(services.NewDomainError(services.ErrorTypeStreaming, "stream aborted", err))
				return token.Err()
			}
		}

	case EventEnd:
		var payload EndPayload
		if err := json.Unmarshal([]byte(f.data), &payload); err != nil {
			return services.NewDomainError(services.ErrorTypeStreaming, "malformed end payload", err)
		}
		*ended = true
		if cb.OnEnd != nil {
			cb.OnEnd(payload.ThreadID, payload.Text)
		}

	case EventError:
		var payload ErrorPayload
		if err := json.Unmarshal([]byte(f.data), &payload); err != nil {
			payload.Message = f.data
		}
		return services.NewDomainError(services.ErrorTypeStreaming, payload.Message, nil)

	default:
		c.logger.Debug("ignoring unknown event", zap.String("event", f.event))
	}
	return nil
}
