package audit

import (
	"net/http"
	"time"

	"github.com/infinitehq/aimlgw/internal/observability"
)

// Event is a single audit record describing a server-side failure.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Route     string    `json:"route"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Query     string    `json:"query,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	RemoteIP  string    `json:"remote_ip,omitempty"`
}

// NewEvent builds an Event from the failed request.
func NewEvent(r *http.Request, route string, status int, err error) *Event {
	event := &Event{
		Timestamp: time.Now().UTC(),
		Route:     route,
		Status:    status,
	}

	if err != nil {
		event.Error = err.Error()
	}

	if r == nil {
		return event
	}

	event.Method = r.Method
	event.Path = r.URL.Path
	event.Query = r.URL.RawQuery
	event.RemoteIP = r.RemoteAddr

	ctx := r.Context()
	event.RequestID = observability.RequestIDFromContext(ctx)
	event.Subject = observability.SubjectFromContext(ctx)
	if event.RequestID == "" {
		event.RequestID = r.Header.Get("X-Request-ID")
	}

	return event
}
