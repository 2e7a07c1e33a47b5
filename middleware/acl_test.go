package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/cppla/postboard/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// withUser attaches a fixed identity the way the auth middleware does.
func withUser(user *models.User) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if user != nil {
			ctx.Set(ContextUserKey, user)
		}
		ctx.Next()
	}
}

func serve(handlers ...gin.HandlerFunc) int {
	r := gin.New()
	r.GET("/", append(handlers, func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })...)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	return rec.Code
}

func TestRequireCapability(t *testing.T) {
	user := &models.User{ID: 1, Role: models.RoleUser}
	admin := &models.User{ID: 2, Role: models.RoleAdmin}
	unknown := &models.User{ID: 3, Role: models.Role("guest")}

	assert.Equal(t, http.StatusUnauthorized, serve(withUser(nil), RequireCapability(models.CapabilityCreate)))
	assert.Equal(t, http.StatusNoContent, serve(withUser(user), RequireCapability(models.CapabilityCreate)))
	assert.Equal(t, http.StatusNoContent, serve(withUser(admin), RequireCapability(models.CapabilityDelete)))
	assert.Equal(t, http.StatusForbidden, serve(withUser(unknown), RequireCapability(models.CapabilityRead)))
}

func TestRequireAdmin(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, serve(withUser(nil), RequireAdmin()))
	assert.Equal(t, http.StatusForbidden, serve(withUser(&models.User{Role: models.RoleUser}), RequireAdmin()))
	assert.Equal(t, http.StatusNoContent, serve(withUser(&models.User{Role: models.RoleAdmin}), RequireAdmin()))
}

func TestRateLimit(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(4))
	r.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })

	codes := make([]int, 0, 4)
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, rec.Code)
	}
	// burst is half the per-minute budget
	assert.Equal(t, []int{204, 204, 429, 429}, codes)

	unlimited := gin.New()
	unlimited.Use(RateLimitMiddleware(0))
	unlimited.GET("/", func(ctx *gin.Context) { ctx.Status(http.StatusNoContent) })
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		unlimited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	}
}
