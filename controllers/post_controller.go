package controllers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cppla/postboard/middleware"
	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/realtime"
	"github.com/cppla/postboard/store"
	"github.com/cppla/postboard/utils"
)

const (
	postsCachePrefix = "cache:posts:"
	// kept outside postsCachePrefix so prefix invalidation never resets it
	postsCacheGenKey = "cache:posts-gen"
	postsCacheTTL    = 5 * time.Minute
)

// postListKey scopes a list cache key to the current generation.
func postListKey(suffix string) string {
	return fmt.Sprintf("%sg%d:%s", postsCachePrefix, utils.CacheGeneration(postsCacheGenKey), suffix)
}

// invalidatePostLists retires every cached list. The generation moves first so a
// list computed before the write can only land under a key nobody reads anymore.
func invalidatePostLists() {
	utils.BumpCacheGeneration(postsCacheGenKey)
	invalidatePostLists()
}

// PostController manages posts, their comments, reactions and pins.
type PostController struct {
	posts  *store.PostStore
	events realtime.Broadcaster
}

// NewPostController creates a new PostController instance.
func NewPostController(posts *store.PostStore, events realtime.Broadcaster) *PostController {
	return &PostController{posts: posts, events: events}
}

func postRoom(postID uint) string {
	return "post:" + strconv.FormatUint(uint64(postID), 10)
}

// ListPosts returns posts filtered by userId, startDate and endDate, pinned first.
func (p *PostController) ListPosts(ctx *gin.Context) {
	var filter store.PostFilter
	if v := strings.TrimSpace(ctx.Query("userId")); v != "" {
		id, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			utils.Error(ctx, http.StatusBadRequest, 40020, "invalid userId")
			return
		}
		filter.AuthorID = uint(id)
	}
	from, err := parseDate(ctx.Query("startDate"), false)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40021, "invalid startDate")
		return
	}
	to, err := parseDate(ctx.Query("endDate"), true)
	if err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40022, "invalid endDate")
		return
	}
	filter.From, filter.To = from, to

	cacheKey := postListKey(fmt.Sprintf("list:user=%d:from=%s:to=%s", filter.AuthorID,
		strings.TrimSpace(ctx.Query("startDate")), strings.TrimSpace(ctx.Query("endDate"))))
	p.listCached(ctx, cacheKey, filter)
}

// ListMyPosts returns the current user's posts.
func (p *PostController) ListMyPosts(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	cacheKey := postListKey(fmt.Sprintf("list:user=%d:from=:to=", user.ID))
	p.listCached(ctx, cacheKey, store.PostFilter{AuthorID: user.ID})
}

func (p *PostController) listCached(ctx *gin.Context, cacheKey string, filter store.PostFilter) {
	if b, ok := utils.CacheGetBytes(cacheKey); ok {
		ctx.Data(http.StatusOK, "application/json; charset=utf-8", b)
		return
	}
	posts, err := p.posts.ListPosts(ctx.Request.Context(), filter)
	if err != nil {
		respondError(ctx, err, 50020, "internal server error")
		return
	}
	utils.CacheSetJSON(cacheKey, posts, postsCacheTTL)
	utils.Success(ctx, posts)
}

// GetPost returns a single post.
func (p *PostController) GetPost(ctx *gin.Context) {
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	post, err := p.posts.GetPost(ctx.Request.Context(), postID)
	if err != nil {
		respondError(ctx, err, 50021, "failed to load post")
		return
	}
	utils.Success(ctx, post)
}

// CreatePost stores a new post authored by the current user.
func (p *PostController) CreatePost(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Photos  []uint `json:"photos"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40023, "invalid request payload")
		return
	}

	post, err := p.posts.CreatePost(ctx.Request.Context(), user.ID, store.NewPost{
		Title:   req.Title,
		Content: req.Content,
		Photos:  req.Photos,
	})
	if err != nil {
		respondError(ctx, err, 50022, "failed to create post")
		return
	}

	invalidatePostLists()
	p.events.Broadcast("newPost", post)
	utils.Respond(ctx, http.StatusCreated, post)
}

// UpdatePost merges the supplied fields. Author or admin only.
func (p *PostController) UpdatePost(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Title   *string `json:"title"`
		Content *string `json:"content"`
		Photos  *[]uint `json:"photos"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40024, "invalid request payload")
		return
	}

	post, err := p.posts.UpdatePost(ctx.Request.Context(), postID, store.ActorOf(user), store.PostPatch{
		Title:   req.Title,
		Content: req.Content,
		Photos:  req.Photos,
	})
	if err != nil {
		respondError(ctx, err, 50023, "failed to update post")
		return
	}
	invalidatePostLists()
	utils.Success(ctx, post)
}

// DeletePost removes a post. Author or admin only.
func (p *PostController) DeletePost(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := p.posts.DeletePost(ctx.Request.Context(), postID, store.ActorOf(user)); err != nil {
		respondError(ctx, err, 50024, "failed to delete post")
		return
	}
	invalidatePostLists()
	utils.Message(ctx, "Post deleted successfully.")
}

// React sets the current user's reaction on a post, replacing a previous one.
func (p *PostController) React(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Reaction string `json:"reaction"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Reaction) == "" {
		utils.Error(ctx, http.StatusBadRequest, 40025, "reaction is required")
		return
	}
	kind, valid := models.ParseReactionType(strings.TrimSpace(req.Reaction))
	if !valid {
		utils.Error(ctx, http.StatusBadRequest, 40026, "reaction must be one of like, funny, sad, angry")
		return
	}

	post, err := p.posts.UpsertReaction(ctx.Request.Context(), postID, user.ID, kind)
	if err != nil {
		respondError(ctx, err, 50025, "failed to react to post")
		return
	}
	invalidatePostLists()
	p.events.Broadcast("reaction", gin.H{
		"postId":   post.ID,
		"userId":   user.ID,
		"username": user.Username,
		"type":     kind,
	})
	utils.Success(ctx, post)
}

// RemoveReaction clears the current user's reaction on a post.
func (p *PostController) RemoveReaction(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	if err := p.posts.RemoveReaction(ctx.Request.Context(), postID, user.ID); err != nil {
		respondError(ctx, err, 50026, "failed to remove reaction")
		return
	}
	invalidatePostLists()
	utils.Message(ctx, "Reaction removed successfully.")
}

// AddComment appends a comment by the current user and returns the post.
func (p *PostController) AddComment(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req struct {
		Comment string `json:"comment"`
		Photos  []uint `json:"photos"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40027, "invalid request payload")
		return
	}

	comment, err := p.posts.AddComment(ctx.Request.Context(), postID, user.ID, req.Comment, req.Photos)
	if err != nil {
		respondError(ctx, err, 50027, "failed to add comment")
		return
	}
	post, err := p.posts.GetPost(ctx.Request.Context(), postID)
	if err != nil {
		respondError(ctx, err, 50021, "failed to load post")
		return
	}
	invalidatePostLists()
	p.events.Broadcast("newComment", gin.H{"postId": postID, "comment": comment})
	utils.Respond(ctx, http.StatusCreated, post)
}

// UpdateComment edits a comment. Comment author or admin only.
func (p *PostController) UpdateComment(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	commentID, ok := paramID(ctx, "commentId")
	if !ok {
		return
	}
	var req struct {
		Comment *string `json:"comment"`
		Photos  *[]uint `json:"photos"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40028, "invalid request payload")
		return
	}

	comment, err := p.posts.UpdateComment(ctx.Request.Context(), postID, commentID, store.ActorOf(user), store.CommentPatch{
		Text:   req.Comment,
		Photos: req.Photos,
	})
	if err != nil {
		respondError(ctx, err, 50028, "failed to update comment")
		return
	}
	post, err := p.posts.GetPost(ctx.Request.Context(), postID)
	if err != nil {
		respondError(ctx, err, 50021, "failed to load post")
		return
	}
	invalidatePostLists()
	p.events.BroadcastTo(postRoom(postID), "commentUpdated", gin.H{"postId": postID, "comment": comment})
	utils.Success(ctx, post)
}

// DeleteComment removes a comment. Comment author or admin only.
func (p *PostController) DeleteComment(ctx *gin.Context) {
	user, ok := middleware.CurrentUser(ctx)
	if !ok {
		utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
		return
	}
	postID, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	commentID, ok := paramID(ctx, "commentId")
	if !ok {
		return
	}
	if err := p.posts.DeleteComment(ctx.Request.Context(), postID, commentID, store.ActorOf(user)); err != nil {
		respondError(ctx, err, 50029, "failed to delete comment")
		return
	}
	invalidatePostLists()
	p.events.BroadcastTo(postRoom(postID), "commentDeleted", gin.H{"postId": postID, "commentId": commentID})
	utils.Message(ctx, "Comment deleted successfully.")
}

// PinPost returns a handler pinning or unpinning a post. Admin only.
func (p *PostController) PinPost(pinned bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}
		postID, ok := paramID(ctx, "id")
		if !ok {
			return
		}
		if err := p.posts.SetPinned(ctx.Request.Context(), postID, pinned, store.ActorOf(user)); err != nil {
			respondError(ctx, err, 50030, "failed to update pin state")
			return
		}
		invalidatePostLists()
		if pinned {
			utils.Message(ctx, "Post pinned successfully.")
		} else {
			utils.Message(ctx, "Post unpinned successfully.")
		}
	}
}

// PinComment returns a handler pinning or unpinning a comment. Admin only.
func (p *PostController) PinComment(pinned bool) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		user, ok := middleware.CurrentUser(ctx)
		if !ok {
			utils.Error(ctx, http.StatusUnauthorized, 40110, "unauthorized")
			return
		}
		postID, ok := paramID(ctx, "id")
		if !ok {
			return
		}
		commentID, ok := paramID(ctx, "commentId")
		if !ok {
			return
		}
		if err := p.posts.SetCommentPinned(ctx.Request.Context(), postID, commentID, pinned, store.ActorOf(user)); err != nil {
			respondError(ctx, err, 50030, "failed to update pin state")
			return
		}
		invalidatePostLists()
		if pinned {
			utils.Message(ctx, "Comment pinned successfully.")
		} else {
			utils.Message(ctx, "Comment unpinned successfully.")
		}
	}
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. A bare date used as an upper bound
// covers the whole day.
func parseDate(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
