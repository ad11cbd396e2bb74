package routes

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/forward"
	"github.com/infinitehq/aimlgw/internal/observability"
	"github.com/infinitehq/aimlgw/internal/session"
)

func (h *Handlers) registerChat(group *gin.RouterGroup) {
	group.POST("/agent/:session_id", h.chat("chat.agent", session.TypeAgent, "/chat/agent/"))
	group.POST("/team/:session_id", h.chat("chat.team", session.TypeTeam, "/chat/team/"))
}

// chat returns the handler for one chat endpoint. The session's declared
// type must match the endpoint before anything is relayed upstream.
func (h *Handlers) chat(route, wantType, upstreamPrefix string) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.Param("session_id")
		ctx := c.Request.Context()

		sess, err := h.sessions.Get(ctx, sessionID)
		if err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				apierror.Respond(c, h.auditor, route, apierror.NotFound(gin.H{
					"message": "Session not found",
					"error":   "not_found",
				}))
				return
			}
			apierror.Respond(c, h.auditor, route, err)
			return
		}

		if !sess.TypeMatches(wantType) {
			apierror.Respond(c, h.auditor, route, apierror.BadRequest(gin.H{
				"message": mismatchMessage(wantType),
				"error":   "session_type_mismatch",
			}))
			return
		}

		body, err := decodeBody(c)
		if err != nil {
			apierror.Respond(c, h.auditor, route, err)
			return
		}

		query := c.Request.URL.Query()
		if query.Get("stream") == "" {
			query.Set("stream", "false")
		}
		if query.Get("use_rag") == "" {
			query.Set("use_rag", "true")
		}

		target := h.upstreamURL(upstreamPrefix + url.PathEscape(sessionID))
		opts := []forward.RequestOption{
			forward.Query(query),
			forward.Subject(subjectFrom(c)),
		}
		if body != nil {
			opts = append(opts, forward.JSONBody(body))
		}

		streaming, _ := strconv.ParseBool(query.Get("stream"))
		if streaming {
			h.relayStream(c, route, target, opts)
			return
		}

		result, err := h.forwarder.Forward(ctx, http.MethodPost, target, opts...)
		if err != nil {
			apierror.Respond(c, h.auditor, route, err)
			return
		}

		c.JSON(http.StatusOK, result)
	}
}

// relayStream opens the upstream stream and copies chunks to the caller
// as they arrive. Once the response is committed the only failure signal
// left is truncation of the byte sequence.
func (h *Handlers) relayStream(c *gin.Context, route, target string, opts []forward.RequestOption) {
	ctx := c.Request.Context()

	stream, err := h.forwarder.OpenStream(ctx, http.MethodPost, target, opts...)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}
	defer stream.Close()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	flusher, _ := c.Writer.(http.Flusher)
	buf := make([]byte, 32*1024)

	for {
		n, readErr := stream.Body.Read(buf)
		if n > 0 {
			if _, writeErr := c.Writer.Write(buf[:n]); writeErr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				h.logger.WithContext(ctx).Warn("stream truncated",
					observability.String("route", route),
					observability.Error(readErr),
				)
			}
			return
		}
	}
}

// mismatchMessage describes a session-type gating rejection.
func mismatchMessage(wantType string) string {
	if wantType == session.TypeTeam {
		return "Cannot use /team endpoint for single agent sessions"
	}
	return "Cannot use /agent endpoint for team sessions"
}
