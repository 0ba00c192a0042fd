package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-lifecycle-api/internal/models"
	appErrors "github.com/noah-isme/sma-lifecycle-api/pkg/errors"
)

type stubTokens struct{}

func (stubTokens) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthenticated, "invalid token")
	}
	return &models.JWTClaims{ActorID: "a1", TenantID: "t1"}, nil
}

type stubResolver struct {
	err error
}

func (s stubResolver) Resolve(ctx context.Context, claims *models.JWTClaims) (*models.ActorContext, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.ActorContext{ActorID: claims.ActorID, TenantID: claims.TenantID, Role: models.RoleSupervisor}, nil
}

func (s stubResolver) CheckTenant(actor *models.ActorContext, tenantID string) error {
	if tenantID != "" && tenantID != actor.TenantID {
		return appErrors.ErrTenantMismatch
	}
	return nil
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		actor := ActorFrom(c)
		if actor == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, actor.ActorID+"@"+c.GetString("tenant_id"))
	})
	r.GET("/whoami", handlers...)
	return r
}

func whoami(r *gin.Engine, authorization string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAndActor(t *testing.T) {
	r := newRouter(JWT(stubTokens{}), Actor(stubResolver{}))

	w := whoami(r, "Bearer good")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a1@t1", w.Body.String())

	for _, header := range []string{"", "Basic good", "Bearer ", "Bearer bad"} {
		w := whoami(r, header)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
		assert.Contains(t, w.Body.String(), "UNAUTHENTICATED")
	}
}

func TestActorRejectsTenantMismatch(t *testing.T) {
	r := newRouter(JWT(stubTokens{}), Actor(stubResolver{err: appErrors.ErrTenantMismatch}))

	w := whoami(r, "Bearer good")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "TENANT_MISMATCH")
}

func TestOptionalChainStaysAnonymous(t *testing.T) {
	r := newRouter(OptionalJWT(stubTokens{}), OptionalActor(stubResolver{}))

	assert.Equal(t, "anonymous", whoami(r, "").Body.String())
	assert.Equal(t, "anonymous", whoami(r, "Bearer bad").Body.String())
	assert.Equal(t, "a1@t1", whoami(r, "Bearer good").Body.String())

	failing := newRouter(OptionalJWT(stubTokens{}), OptionalActor(stubResolver{err: appErrors.ErrUnauthenticated}))
	assert.Equal(t, "anonymous", whoami(failing, "Bearer good").Body.String())
}

func TestActorRejectsForeignTenantInRequest(t *testing.T) {
	r := newRouter(JWT(stubTokens{}), Actor(stubResolver{}))
	r.GET("/tenants/:tenantId/whoami", JWT(stubTokens{}), Actor(stubResolver{}), func(c *gin.Context) {
		c.String(http.StatusOK, ActorFrom(c).ActorID)
	})

	send := func(path, tenantHeader string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer good")
		if tenantHeader != "" {
			req.Header.Set(TenantHeader, tenantHeader)
		}
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, send("/whoami", "t1").Code)
	w := send("/whoami", "t2")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "TENANT_MISMATCH")

	assert.Equal(t, http.StatusOK, send("/tenants/t1/whoami", "").Code)
	w = send("/tenants/t2/whoami", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "TENANT_MISMATCH")
}

type observation struct {
	method, path string
	status       int
}

type recordingObserver struct {
	seen []observation
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.seen = append(r.seen, observation{method: method, path: path, status: status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.GET("/records/:type/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/records/lesson-plans/123", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nowhere", nil))

	require.Len(t, observer.seen, 2)
	assert.Equal(t, observation{method: http.MethodGet, path: "/records/:type/:id", status: http.StatusNoContent}, observer.seen[0])
	assert.Equal(t, "unmatched", observer.seen[1].path)
	assert.Equal(t, http.StatusNotFound, observer.seen[1].status)
}
