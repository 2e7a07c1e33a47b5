package routes

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/cppla/postboard/config"
	"github.com/cppla/postboard/controllers"
	"github.com/cppla/postboard/middleware"
	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/realtime"
	"github.com/cppla/postboard/storage"
	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

// SetupRouter wires routes, middlewares, and controllers. blobs may be nil to keep
// image payloads in the database.
func SetupRouter(cfg config.AppConfig, db *gorm.DB, hub *realtime.Hub, blobs storage.ObjectStorage) *gin.Engine {
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = cfg.UploadMaxBytes()

	// Access log goes to its own rolling file; fall back to the application logger
	gl := utils.Logger
	if cfg.GinPath != "" {
		if l, err := utils.NewRollingFileLogger(cfg.GinLogOptions()); err == nil {
			gl = l
		} else {
			utils.Sugar.Warnf("gin log unavailable, using app logger: %v", err)
		}
	}
	r.Use(ginzap.Ginzap(gl, time.RFC3339, true))
	r.Use(ginzap.CustomRecoveryWithZap(gl, true, func(ctx *gin.Context, err any) {
		utils.Logger.Error("panic recovered", zap.Any("err", err), zap.String("path", ctx.Request.URL.Path))
		utils.Error(ctx, http.StatusInternalServerError, 50000, "internal server error")
		ctx.Abort()
	}))

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 || (len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*") {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))
	r.Use(middleware.RateLimitMiddleware(cfg.RateLimitPerMinute))

	signer := utils.NewTokenSigner(cfg.JWTSecret, cfg.TokenTTL())
	users := store.NewUserStore(db, signer)
	posts := store.NewPostStore(db)
	images := store.NewImageStore(db, blobs, cfg.TranscodeOptions())

	authController := controllers.NewAuthController(users, hub)
	postController := controllers.NewPostController(posts, hub)
	imageController := controllers.NewImageController(images, hub, cfg.UploadMaxBytes())
	statsController := controllers.NewStatsController(db, posts)

	bearer := middleware.BearerAuth(users)

	r.GET("/", controllers.Welcome)
	r.GET("/health", controllers.Health)
	r.GET("/realtime", gin.WrapH(hub))

	r.POST("/signup", authController.Signup)
	r.POST("/signin", middleware.BasicAuth(users), authController.Signin)
	r.GET("/users", bearer, middleware.RequireAdmin(), authController.ListUsers)
	r.GET("/users/me", bearer, authController.Me)
	r.PATCH("/users/me", bearer, middleware.RequireCapability(models.CapabilityUpdate), authController.UpdateProfile)
	r.GET("/secret", bearer, authController.Secret)

	api := r.Group("/api/v2")

	imagesGroup := api.Group("/images")
	imagesGroup.POST("/upload", imageController.Upload)
	imagesGroup.GET("/images", imageController.List)
	imagesGroup.GET("/:id", imageController.Serve)

	api.GET("/stats", bearer, statsController.GetStats)

	postsGroup := api.Group("/posts")
	postsGroup.Use(bearer)
	postsGroup.GET("", middleware.RequireCapability(models.CapabilityRead), postController.ListPosts)
	postsGroup.GET("/user", middleware.RequireCapability(models.CapabilityRead), postController.ListMyPosts)
	postsGroup.GET("/:id", middleware.RequireCapability(models.CapabilityRead), postController.GetPost)
	postsGroup.POST("", middleware.RequireCapability(models.CapabilityCreate), postController.CreatePost)
	postsGroup.PUT("/:id", postController.UpdatePost)
	postsGroup.DELETE("/:id", postController.DeletePost)
	postsGroup.POST("/:id/react", postController.React)
	postsGroup.DELETE("/:id/react", postController.RemoveReaction)
	postsGroup.POST("/:id/pin", postController.PinPost(true))
	postsGroup.POST("/:id/unpin", postController.PinPost(false))
	postsGroup.POST("/:id/comments", postController.AddComment)
	postsGroup.PUT("/:id/comments/:commentId", postController.UpdateComment)
	postsGroup.DELETE("/:id/comments/:commentId", postController.DeleteComment)
	postsGroup.POST("/:id/comments/:commentId/pin", postController.PinComment(true))
	postsGroup.POST("/:id/comments/:commentId/unpin", postController.PinComment(false))
	postsGroup.GET("/:id/stats", middleware.RequireCapability(models.CapabilityRead), statsController.GetPostStats)

	r.NoRoute(controllers.NotFound)

	return r
}
