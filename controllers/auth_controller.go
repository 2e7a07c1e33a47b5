package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postboard/middleware"
	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/realtime"
	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

// AuthController handles signup, signin and account endpoints.
type AuthController struct {
	users  *store.UserStore
	events realtime.Broadcaster
}

// NewAuthController creates a new AuthController instance.
func NewAuthController(users *store.UserStore, events realtime.Broadcaster) *AuthController {
	return &AuthController{users: users, events: events}
}

type userView struct {
	ID         uint        `json:"id"`
	Username   string      `json:"username"`
	Email      string      `json:"email"`
	Role       models.Role `json:"role"`
	SignedUpAt time.Time   `json:"signedUpAt"`
}

func viewOf(user *models.User) userView {
	return userView{
		ID:         user.ID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		SignedUpAt: user.CreatedAt,
	}
}

// Signup registers a new account and returns it with a bearer token.
func (a *AuthController) Signup(ctx *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		Role     string `json:"role"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	user, err := a.users.Create(ctx.Request.Context(), store.NewUser{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respondError(ctx, err, 50010, "failed to create user")
		return
	}

	token, err := a.users.IssueToken(user)
	if err != nil {
		respondError(ctx, err, 50011, "failed to issue token")
		return
	}
	utils.Respond(ctx, http.StatusCreated, gin.H{"user": viewOf(user), "token": token})
}

// Signin returns the identity verified by basic authentication together with its token.
func (a *AuthController) Signin(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusForbidden, 40302, "invalid login")
		return
	}
	token, err := a.users.IssueToken(user)
	if err != nil {
		respondError(ctx, err, 50011, "failed to issue token")
		return
	}
	utils.Success(ctx, gin.H{"user": viewOf(user), "token": token})
}

// ListUsers returns every account. Admin only.
func (a *AuthController) ListUsers(ctx *gin.Context) {
	users, err := a.users.List(ctx.Request.Context())
	if err != nil {
		respondError(ctx, err, 50012, "failed to retrieve users")
		return
	}
	list := make([]userView, 0, len(users))
	for i := range users {
		list = append(list, viewOf(&users[i]))
	}
	utils.Success(ctx, list)
}

// Secret is a plain text endpoint for checking bearer authentication.
func (a *AuthController) Secret(ctx *gin.Context) {
	ctx.String(http.StatusOK, "Welcome to the secret area")
}

// Me returns the current authenticated user's profile.
func (a *AuthController) Me(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}
	utils.Success(ctx, user)
}

// UpdateProfile applies the supplied profile fields to the current user.
func (a *AuthController) UpdateProfile(ctx *gin.Context) {
	current, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40108, "unauthorized")
		return
	}

	var req struct {
		Email          *string             `json:"email"`
		Password       *string             `json:"password"`
		Bio            *string             `json:"bio"`
		ProfilePicture *uint               `json:"profilePicture"`
		Address        *string             `json:"address"`
		Phone          *string             `json:"phone"`
		Website        *string             `json:"website"`
		Organization   *string             `json:"organization"`
		Department     *string             `json:"department"`
		SocialLinks    *models.SocialLinks `json:"socialLinks"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	user, err := a.users.UpdateProfile(ctx.Request.Context(), current.ID, store.ProfilePatch{
		Email:          req.Email,
		Password:       req.Password,
		Bio:            req.Bio,
		ProfilePicture: req.ProfilePicture,
		Address:        req.Address,
		Phone:          req.Phone,
		Website:        req.Website,
		Organization:   req.Organization,
		Department:     req.Department,
		SocialLinks:    req.SocialLinks,
	})
	if err != nil {
		respondError(ctx, err, 50031, "failed to update profile")
		return
	}

	if !samePicture(current.ProfilePicture, user.ProfilePicture) {
		// author display fields are embedded in cached post lists
		invalidatePostLists()
		a.events.Broadcast("userProfileImage", gin.H{
			"userId":         user.ID,
			"username":       user.Username,
			"profilePicture": user.ProfilePicture,
		})
	}
	utils.Success(ctx, user)
}

func samePicture(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Welcome answers the root path.
func Welcome(ctx *gin.Context) {
	ctx.String(http.StatusOK, "Welcome to the Home Page")
}

// Health answers liveness checks.
func Health(ctx *gin.Context) {
	ctx.String(http.StatusOK, "OK")
}

// NotFound answers unmatched routes.
func NotFound(ctx *gin.Context) {
	utils.Error(ctx, http.StatusNotFound, 40400, "route not found: "+strings.TrimSpace(ctx.Request.URL.Path))
}
