package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/epathshala/portal-api/internal/models"
	"github.com/epathshala/portal-api/pkg/response"
)

const guardDecisionKey = "guardDecision"

// RouteResolver decides whether a session may open a page path.
type RouteResolver interface {
	Resolve(path string, claims *models.JWTClaims) models.GuardDecision
}

// Guard resolves browser page requests against the route table. Requests
// that are not allowed are redirected with a 302; allowed requests carry the
// decision for the page handler. Non-HTML requests pass through untouched.
func Guard(resolver RouteResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !isPageRequest(c.Request) {
			c.Next()
			return
		}

		decision := resolver.Resolve(c.Request.URL.Path, CurrentUser(c))
		if !decision.Allowed {
			response.Redirect(c, decision.Redirect)
			c.Abort()
			return
		}
		c.Set(guardDecisionKey, decision)
		c.Next()
	}
}

// GuardDecisionFrom returns the decision stored by Guard.
func GuardDecisionFrom(c *gin.Context) (models.GuardDecision, bool) {
	value, exists := c.Get(guardDecisionKey)
	if !exists {
		return models.GuardDecision{}, false
	}
	decision, ok := value.(models.GuardDecision)
	return decision, ok
}

func isPageRequest(r *http.Request) bool {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		return false
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}
