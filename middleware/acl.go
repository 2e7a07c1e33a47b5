package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/utils"
)

// RequireCapability rejects requests whose user role does not grant capability.
func RequireCapability(capability models.Capability) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "user not authenticated")
			ctx.Abort()
			return
		}
		if !user.Role.Can(capability) {
			utils.Error(ctx, http.StatusForbidden, 40303, "access denied")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}

// RequireAdmin rejects requests from non-admin users.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40106, "user not authenticated")
			ctx.Abort()
			return
		}
		if !user.Role.IsAdmin() {
			utils.Error(ctx, http.StatusForbidden, 40304, "forbidden: admins only")
			ctx.Abort()
			return
		}
		ctx.Next()
	}
}
