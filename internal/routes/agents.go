package routes

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/forward"
	"github.com/infinitehq/aimlgw/internal/observability"
)

// Agent categories with restricted mutation rules.
const (
	agentTypeSystem   = "system"
	agentTypeApproved = "approved"
	agentTypePrivate  = "private"
)

// agentSpecs is the plain relay table for the agents resource.
var agentSpecs = []Spec{
	{
		Name: "agents.create", Method: http.MethodPost,
		Path: "/create", UpstreamPath: "/agent/create",
		InjectSubject: true, Body: true,
	},
	{
		Name: "agents.get_public", Method: http.MethodGet,
		Path: "/get_public", UpstreamPath: "/agent/get_public",
		QueryDefaults: map[string]string{"limit": "20", "skip": "0"},
	},
	{
		Name: "agents.get_approved", Method: http.MethodGet,
		Path: "/get_approved", UpstreamPath: "/agent/get_approved",
		QueryDefaults: map[string]string{"limit": "20", "skip": "0"},
	},
	{
		Name: "agents.get_system", Method: http.MethodGet,
		Path: "/get_system", UpstreamPath: "/agent/get_system",
		QueryDefaults: map[string]string{"limit": "20", "skip": "0"},
	},
	{
		Name: "agents.get_user", Method: http.MethodGet,
		Path: "/get_user/:user_id", UpstreamPath: "/agent/get_user/:user_id",
		QueryDefaults: map[string]string{
			"limit": "20", "skip": "0", "sort_by": "created_at", "sort_order": "-1",
		},
	},
	{
		Name: "agents.get", Method: http.MethodGet,
		Path: "/get/:agent_id", UpstreamPath: "/agent/get/:agent_id",
		InjectSubject: true,
	},
	{
		Name: "agents.delete", Method: http.MethodDelete,
		Path: "/delete/:agent_id", UpstreamPath: "/agent/delete/:agent_id",
		InjectSubject: true,
	},
	{
		Name: "agents.tools", Method: http.MethodGet,
		Path: "/tools", UpstreamPath: "/agent/tools",
	},
}

func (h *Handlers) registerAgents(group *gin.RouterGroup) {
	h.register(group, agentSpecs)
	group.PUT("/update/:agent_id", h.updateAgent)
}

// updateAgent authorizes and forwards an agent mutation. System agents
// are immutable through this path, and the only category transition
// ever permitted is into "private".
func (h *Handlers) updateAgent(c *gin.Context) {
	const route = "agents.update"

	agentID := c.Param("agent_id")
	subject := subjectFrom(c)

	body, err := decodeBody(c)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	current, err := h.forwarder.Forward(c.Request.Context(), http.MethodGet,
		h.upstreamURL("/agent/get/"+agentID), forward.Subject(subject))
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	currentType := agentTypeOf(current)
	if currentType == agentTypeSystem {
		apierror.Respond(c, h.auditor, route, apierror.Forbidden(gin.H{
			"message": "System agents cannot be modified",
			"error":   "forbidden",
		}))
		return
	}

	if requested, ok := requestedAgentType(body); ok && requested != currentType {
		if allowed, reason := agentTypeChangeAllowed(requested); !allowed {
			h.logger.WithContext(c.Request.Context()).Debug("agent type change rejected",
				observability.String("agentId", agentID),
				observability.String("from", currentType),
				observability.String("to", requested),
			)
			apierror.Respond(c, h.auditor, route, apierror.Forbidden(gin.H{
				"message": reason,
				"error":   "forbidden",
			}))
			return
		}
	}

	opts := []forward.RequestOption{forward.Subject(subject)}
	if body != nil {
		opts = append(opts, forward.JSONBody(body))
	}

	result, err := h.forwarder.Forward(c.Request.Context(), http.MethodPut,
		h.upstreamURL("/agent/update/"+agentID), opts...)
	if err != nil {
		apierror.Respond(c, h.auditor, route, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// agentTypeOf extracts the normalized agent category from an upstream
// agent document, looking through a "data" envelope when present.
func agentTypeOf(doc interface{}) string {
	m, ok := doc.(map[string]interface{})
	if !ok {
		return ""
	}
	if t, ok := m["agent_type"].(string); ok {
		return normalizeType(t)
	}
	if data, ok := m["data"].(map[string]interface{}); ok {
		if t, ok := data["agent_type"].(string); ok {
			return normalizeType(t)
		}
	}
	return ""
}

// requestedAgentType extracts the category the update asks for, if any.
func requestedAgentType(body interface{}) (string, bool) {
	m, ok := body.(map[string]interface{})
	if !ok {
		return "", false
	}
	t, ok := m["agent_type"].(string)
	if !ok {
		return "", false
	}
	return normalizeType(t), true
}

// agentTypeChangeAllowed applies the fixed transition table for agent
// category changes.
func agentTypeChangeAllowed(requested string) (bool, string) {
	switch requested {
	case agentTypeSystem, agentTypeApproved:
		return false, "Changing an agent to " + requested + " is not permitted"
	case agentTypePrivate:
		return true, ""
	default:
		return false, "Agents can only be changed to private"
	}
}

func normalizeType(t string) string {
	return strings.ToLower(strings.TrimSpace(t))
}
