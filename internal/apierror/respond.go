package apierror

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Auditor persists failure records. Implementations must never let a sink
// failure reach the caller.
type Auditor interface {
	LogError(r *http.Request, route string, status int, err error)
}

// Respond classifies err, writes the JSON failure response, and audits the
// failure when classification calls for it. It is the single chokepoint for
// failed requests: route handlers must funnel every failure through it
// exactly once.
func Respond(c *gin.Context, auditor Auditor, route string, err error) {
	gwErr, shouldAudit := Classify(err)

	if shouldAudit && auditor != nil {
		auditor.LogError(c.Request, route, gwErr.Status, err)
	}

	c.AbortWithStatusJSON(gwErr.Status, gin.H{"detail": gwErr.Detail})
}
