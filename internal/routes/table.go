package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/forward"
)

// Spec describes one plain relay route: where it is served, where it
// forwards to, and what it carries along.
type Spec struct {
	// Name identifies the route in audit records.
	Name string

	// Method is used both for the inbound route and the upstream call.
	Method string

	// Path is the gin route path, relative to the resource group.
	Path string

	// UpstreamPath is the upstream path, relative to the base URL. Gin
	// parameter segments (":session_id") are expanded from the request.
	UpstreamPath string

	// InjectSubject forwards the verified caller subject as user_id.
	InjectSubject bool

	// Body forwards the inbound JSON body.
	Body bool

	// QueryDefaults fills in query parameters the caller omitted.
	QueryDefaults map[string]string
}

// register wires a table of Specs onto a router group.
func (h *Handlers) register(group *gin.RouterGroup, specs []Spec) {
	for _, spec := range specs {
		group.Handle(spec.Method, spec.Path, h.relay(spec))
	}
}

// relay returns the generic handler for a Spec: expand the upstream
// path, carry query and body through, forward, and reply with the
// normalized result.
func (h *Handlers) relay(spec Spec) gin.HandlerFunc {
	return func(c *gin.Context) {
		opts, err := h.requestOptions(c, spec)
		if err != nil {
			apierror.Respond(c, h.auditor, spec.Name, err)
			return
		}

		target := h.upstreamURL(expandPath(spec.UpstreamPath, c))
		result, err := h.forwarder.Forward(c.Request.Context(), spec.Method, target, opts...)
		if err != nil {
			apierror.Respond(c, h.auditor, spec.Name, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// requestOptions builds the forward options for a Spec from the inbound
// request.
func (h *Handlers) requestOptions(c *gin.Context, spec Spec) ([]forward.RequestOption, error) {
	opts := make([]forward.RequestOption, 0, 3)

	query := c.Request.URL.Query()
	for key, def := range spec.QueryDefaults {
		if query.Get(key) == "" {
			query.Set(key, def)
		}
	}
	if len(query) > 0 {
		opts = append(opts, forward.Query(query))
	}

	if spec.InjectSubject {
		opts = append(opts, forward.Subject(subjectFrom(c)))
	}

	if spec.Body {
		body, err := decodeBody(c)
		if err != nil {
			return nil, err
		}
		if body != nil {
			opts = append(opts, forward.JSONBody(body))
		}
	}

	return opts, nil
}

// decodeBody reads the inbound JSON body. A missing or empty body is
// not an error; malformed JSON is a client mistake.
func decodeBody(c *gin.Context) (interface{}, error) {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, apierror.BadRequest("failed to read request body")
	}
	if len(raw) == 0 {
		return nil, nil
	}

	var body interface{}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, apierror.NewValidationError("request body is not valid JSON")
	}
	return body, nil
}

// expandPath substitutes gin parameter segments in an upstream path
// template with their request values.
func expandPath(template string, c *gin.Context) string {
	segments := strings.Split(template, "/")
	for i, segment := range segments {
		if strings.HasPrefix(segment, ":") {
			segments[i] = url.PathEscape(c.Param(segment[1:]))
		}
	}
	return strings.Join(segments, "/")
}
