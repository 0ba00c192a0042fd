package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
	"github.com/noah-isme/sma-lifecycle-api/pkg/response"
)

// ContextActorKey is the gin context key storing the resolved caller.
const ContextActorKey = "currentActor"

// TenantHeader lets a client pin the tenant it expects to act in.
const TenantHeader = "X-Tenant-ID"

type actorResolver interface {
	Resolve(ctx context.Context, claims *models.JWTClaims) (*models.ActorContext, error)
	CheckTenant(actor *models.ActorContext, tenantID string) error
}

// Actor resolves the caller behind the verified claims and stores it for
// handlers. Roles are never taken from the token. A tenant named by the
// :tenantId route parameter or the X-Tenant-ID header must be the caller's.
func Actor(resolver actorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFrom(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthenticated)
			return
		}
		actor, err := resolver.Resolve(c.Request.Context(), claims)
		if err != nil {
			response.Error(c, err)
			return
		}
		if err := resolver.CheckTenant(actor, requestedTenant(c)); err != nil {
			response.Error(c, err)
			return
		}
		c.Set(ContextActorKey, actor)
		c.Set("tenant_id", actor.TenantID)
		c.Next()
	}
}

// OptionalActor resolves the caller when claims are present; failures leave
// the request anonymous.
func OptionalActor(resolver actorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims := ClaimsFrom(c); claims != nil {
			if actor, err := resolver.Resolve(c.Request.Context(), claims); err == nil {
				c.Set(ContextActorKey, actor)
				c.Set("tenant_id", actor.TenantID)
			}
		}
		c.Next()
	}
}

func requestedTenant(c *gin.Context) string {
	if tenantID := c.Param("tenantId"); tenantID != "" {
		return tenantID
	}
	return strings.TrimSpace(c.GetHeader(TenantHeader))
}

// ActorFrom returns the resolved caller, or nil for anonymous requests.
func ActorFrom(c *gin.Context) *models.ActorContext {
	value, exists := c.Get(ContextActorKey)
	if !exists {
		return nil
	}
	actor, _ := value.(*models.ActorContext)
	return actor
}
