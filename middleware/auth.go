package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

// ContextUserKey is the key used to store the authenticated *models.User in Gin context.
const ContextUserKey = "user"

// BearerAuth ensures the request carries a valid bearer token for an existing user.
func BearerAuth(users *store.UserStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		authHeader := ctx.GetHeader("Authorization")
		if authHeader == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40101, "authorization header missing")
			ctx.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.Error(ctx, http.StatusUnauthorized, 40102, "invalid authorization header format")
			ctx.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			utils.Error(ctx, http.StatusUnauthorized, 40103, "empty bearer token")
			ctx.Abort()
			return
		}

		user, err := users.AuthenticateToken(ctx.Request.Context(), tokenString)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrUserNotFound):
			utils.Error(ctx, http.StatusUnauthorized, 40104, "user no longer exists")
			ctx.Abort()
			return
		case errors.Is(err, store.ErrInvalidToken):
			utils.Error(ctx, http.StatusUnauthorized, 40105, "invalid token")
			ctx.Abort()
			return
		default:
			utils.Sugar.Errorf("bearer auth lookup failed: %v", err)
			utils.Error(ctx, http.StatusInternalServerError, 50001, "authentication failed")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Next()
	}
}

// BasicAuth authenticates "Authorization: Basic base64(usernameOrEmail:password)".
func BasicAuth(users *store.UserStore) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		usernameOrEmail, password, ok := ctx.Request.BasicAuth()
		if !ok {
			utils.Error(ctx, http.StatusForbidden, 40301, "invalid login")
			ctx.Abort()
			return
		}

		user, err := users.AuthenticateBasic(ctx.Request.Context(), usernameOrEmail, password)
		if err != nil {
			if !errors.Is(err, store.ErrInvalidCredentials) {
				utils.Sugar.Errorf("basic auth lookup failed: %v", err)
			}
			utils.Error(ctx, http.StatusForbidden, 40302, "invalid login")
			ctx.Abort()
			return
		}

		ctx.Set(ContextUserKey, user)
		ctx.Next()
	}
}

// CurrentUser returns the user attached by BearerAuth or BasicAuth.
func CurrentUser(ctx *gin.Context) (*models.User, bool) {
	v, ok := ctx.Get(ContextUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok && user != nil
}
