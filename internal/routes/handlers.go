package routes

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/infinitehq/aimlgw/internal/apierror"
	"github.com/infinitehq/aimlgw/internal/auth"
	"github.com/infinitehq/aimlgw/internal/forward"
	"github.com/infinitehq/aimlgw/internal/observability"
	"github.com/infinitehq/aimlgw/internal/session"
	"github.com/infinitehq/aimlgw/internal/storage"
)

// Config assembles the collaborators the route handlers need.
type Config struct {
	// BaseURL is the upstream service base URL.
	BaseURL string

	// Forwarder relays calls to the upstream.
	Forwarder *forward.Forwarder

	// Sessions is the session store consulted for chat gating.
	Sessions session.Store

	// Storage issues presigned URLs for file transfer.
	Storage *storage.Service

	// Auditor records server-side failures.
	Auditor apierror.Auditor

	// Logger is the observability logger.
	Logger observability.Logger

	// MaxFileSizeMB caps uploads, in megabytes.
	MaxFileSizeMB int
}

// Handlers holds the route handlers and their collaborators.
type Handlers struct {
	forwarder     *forward.Forwarder
	sessions      session.Store
	storage       *storage.Service
	auditor       apierror.Auditor
	logger        observability.Logger
	baseURL       string
	maxFileSizeMB int
}

// New creates the route handlers.
func New(cfg Config) *Handlers {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NopLogger()
	}

	forwarder := cfg.Forwarder
	if forwarder == nil {
		forwarder = forward.New(forward.WithLogger(logger))
	}

	maxSize := cfg.MaxFileSizeMB
	if maxSize <= 0 {
		maxSize = 50
	}

	return &Handlers{
		forwarder:     forwarder,
		sessions:      cfg.Sessions,
		storage:       cfg.Storage,
		auditor:       cfg.Auditor,
		logger:        logger,
		baseURL:       strings.TrimSuffix(cfg.BaseURL, "/"),
		maxFileSizeMB: maxSize,
	}
}

// Register registers all resource routes on the authenticated group.
func (h *Handlers) Register(group *gin.RouterGroup) {
	h.registerAgents(group.Group("/agents"))
	h.registerSessions(group.Group("/sessions"))
	h.registerChat(group.Group("/chat"))
	h.registerFiles(group.Group("/files"))
}

// upstreamURL joins the upstream base URL with a path.
func (h *Handlers) upstreamURL(path string) string {
	return h.baseURL + path
}

// subjectFrom returns the verified caller subject for the request.
func subjectFrom(c *gin.Context) string {
	if claims, ok := auth.ClaimsFrom(c); ok {
		return claims.Subject
	}
	return ""
}
