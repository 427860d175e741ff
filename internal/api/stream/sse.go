package stream

import (
	"fmt"
	"net/http"
)

// SSEWriter writes Server-Sent Events and flushes after each one.
type SSEWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewSSEWriter creates a new SSE writer.
func NewSSEWriter(w http.ResponseWriter, flusher http.Flusher) *SSEWriter {
	return &SSEWriter{w: w, flusher: flusher}
}

// SendEvent writes "event: <type>\ndata: <data>\n\n". An empty id is omitted.
func (s *SSEWriter) SendEvent(id, event, data string) error {
	if id != "" {
		if _, err := fmt.Fprintf(s.w, "id: %s\n", id); err != nil {
			return err
		}
	}
	return s.send("event: %s\ndata: %s\n\n", event, data)
}

// SendComment writes a comment line, used as keepalive.
func (s *SSEWriter) SendComment(comment string) error {
	return s.send(": %s\n\n", comment)
}

// SendRetry sets the client reconnect delay in milliseconds.
func (s *SSEWriter) SendRetry(milliseconds int) error {
	return s.send("retry: %d\n\n", milliseconds)
}

func (s *SSEWriter) send(format string, args ...any) error {
	if _, err := fmt.Fprintf(s.w, format, args...); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
