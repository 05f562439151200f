package stream

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/docubot/backend/services"
)

// Event names of the outward server-to-UI protocol
const (
	EventReady = "ready"
	EventDelta = "delta"
	EventEnd   = "end"
	EventError = "error"
)

// ContentType is the content type signalling an event-stream body
const ContentType = "text/event-stream"

// ReadyPayload is emitted once per request before generation begins
type ReadyPayload struct {
	ThreadID string `json:"thread_id"`
}

// DeltaPayload carries one incremental text fragment
type DeltaPayload struct {
	Text string `json:"text"`
}

// EndPayload carries the final aggregated response text
type EndPayload struct {
	ThreadID string `json:"thread_id,omitempty"`
	Text     string `json:"text"`
}

// ErrorPayload carries a human-readable failure message
type ErrorPayload struct {
	Message string `json:"message"`
}

// Writer encodes protocol events onto an HTTP response, flushing after
// each event so fragments reach the consumer as they are produced.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter prepares the response for event streaming. The response writer
// must support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, services.WrapInternal("response writer does not support streaming", nil)
	}
	w.Header().Set("Content-Type", ContentType)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	return &Writer{w: w, flusher: flusher}, nil
}

// Ready emits the ready event carrying the conversation thread identifier
func (s *Writer) Ready(threadID string) error {
	return s.writeEvent(EventReady, ReadyPayload{ThreadID: threadID})
}

// Delta emits one text fragment. Order of emission must be preserved by
// the caller.
func (s *Writer) Delta(text string) error {
	return s.writeEvent(EventDelta, DeltaPayload{Text: text})
}

// End emits the terminating event with the full aggregated text
func (s *Writer) End(threadID, text string) error {
	return s.writeEvent(EventEnd, EndPayload{ThreadID: threadID, Text: text})
}

// Error emits an error event in place of end when generation fails after
// streaming has started.
func (s *Writer) Error(message string) error {
	return s.writeEvent(EventError, ErrorPayload{Message: message})
}

func (s *Writer) writeEvent(name string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return services.WrapInternal("failed to marshal event payload", err)
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", name, data); err != nil {
		return services.NewDomainError(services.ErrorTypeStreaming, "failed to write event", err)
	}
	s.flusher.Flush()
	return nil
}
