package routes

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/forward"
)

// listDefaults are the paging defaults shared by session listings.
var listDefaults = map[string]string{
	"limit": "20", "skip": "0", "sort_by": "created_at", "sort_order": "-1",
}

// sessionSpecs is the plain relay table for the sessions resource.
var sessionSpecs = []Spec{
	{
		Name: "sessions.create", Method: http.MethodPost,
		Path: "/create", UpstreamPath: "/session/create",
		InjectSubject: true,
		QueryDefaults: map[string]string{"max_context_results": "1"},
	},
	{
		Name: "sessions.delete", Method: http.MethodDelete,
		Path: "/delete/:session_id", UpstreamPath: "/session/delete/:session_id",
		InjectSubject: true,
	},
	{
		Name: "sessions.get", Method: http.MethodGet,
		Path: "/get/:session_id", UpstreamPath: "/session/get/:session_id",
		InjectSubject: true,
	},
	{
		Name: "sessions.get_all", Method: http.MethodGet,
		Path: "/get_all/:user_id", UpstreamPath: "/session/get_all/:user_id",
		QueryDefaults: listDefaults,
	},
	{
		Name: "sessions.get_by_agent", Method: http.MethodGet,
		Path: "/get_by_agent/:agent_id", UpstreamPath: "/session/get_by_agent/:agent_id",
		InjectSubject: true,
		QueryDefaults: listDefaults,
	},
	{
		Name: "sessions.history_update", Method: http.MethodPost,
		Path: "/history/update/:session_id", UpstreamPath: "/session/history/update/:session_id",
		InjectSubject: true, Body: true,
	},
}

func (h *Handlers) registerSessions(group *gin.RouterGroup) {
	h.register(group, sessionSpecs)

	// "/history/:session_id" and "/history/recent/:session_id" cannot
	// coexist in gin's route tree, so both are served under a catch-all.
	group.GET("/history/*rest", h.sessionHistory)
}

// sessionHistory dispatches the two GET history forms.
func (h *Handlers) sessionHistory(c *gin.Context) {
	parts := strings.Split(strings.Trim(c.Param("rest"), "/"), "/")

	var name, upstream string
	switch {
	case len(parts) == 1 && parts[0] != "":
		name = "sessions.history"
		upstream = "/session/history/" + url.PathEscape(parts[0])
	case len(parts) == 2 && parts[0] == "recent" && parts[1] != "":
		name = "sessions.history_recent"
		upstream = "/session/history/recent/" + url.PathEscape(parts[1])
	default:
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"detail": "Not found"})
		return
	}

	query := c.Request.URL.Query()
	if query.Get("limit") == "" {
		query.Set("limit", "20")
	}
	if query.Get("skip") == "" {
		query.Set("skip", "0")
	}

	result, err := h.forwarder.Forward(c.Request.Context(), http.MethodGet,
		h.upstreamURL(upstream),
		forward.Query(query),
		forward.Subject(subjectFrom(c)),
	)
	if err != nil {
		apierror.Respond(c, h.auditor, name, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
