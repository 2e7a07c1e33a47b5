package controllers

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

// StatsController provides board statistics such as record counts and reaction breakdowns.
type StatsController struct {
	db    *gorm.DB
	posts *store.PostStore
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(db *gorm.DB, posts *store.PostStore) *StatsController {
	return &StatsController{db: db, posts: posts}
}

// GetStats returns aggregate counts.
func (s *StatsController) GetStats(ctx *gin.Context) {
	var userCount, postCount, commentCount, reactionCount, imageCount int64
	db := s.db.WithContext(ctx.Request.Context())

	if err := db.Model(&models.User{}).Count(&userCount).Error; err != nil {
		// Fallback to 0 instead of failing the whole endpoint
		userCount = 0
	}
	if err := db.Model(&models.Post{}).Count(&postCount).Error; err != nil {
		postCount = 0
	}
	if err := db.Model(&models.Comment{}).Count(&commentCount).Error; err != nil {
		commentCount = 0
	}
	if err := db.Model(&models.Reaction{}).Count(&reactionCount).Error; err != nil {
		reactionCount = 0
	}
	if err := db.Model(&models.Image{}).Count(&imageCount).Error; err != nil {
		imageCount = 0
	}

	utils.Success(ctx, gin.H{
		"userCount":     userCount,
		"postCount":     postCount,
		"commentCount":  commentCount,
		"reactionCount": reactionCount,
		"imageCount":    imageCount,
	})
}

// GetPostStats returns the comment count and reaction breakdown of a post.
func (s *StatsController) GetPostStats(ctx *gin.Context) {
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	reactions, err := s.posts.ReactionSummary(ctx.Request.Context(), postID)
	if err != nil {
		respondError(ctx, err, 50050, "failed to load post stats")
		return
	}

	var commentsCount int64
	if err := s.db.WithContext(ctx.Request.Context()).Model(&models.Comment{}).
		Where("post_id = ?", postID).Count(&commentsCount).Error; err != nil {
		commentsCount = 0
	}

	utils.Success(ctx, gin.H{
		"postId":        postID,
		"commentsCount": commentsCount,
		"reactions":     reactions,
	})
}
