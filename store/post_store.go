package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/utils"
)

// PostStore owns posts together with their comments and reactions.
type PostStore struct {
	db *gorm.DB
}

// NewPostStore creates a PostStore.
func NewPostStore(db *gorm.DB) *PostStore {
	return &PostStore{db: db}
}

// Actor is the authenticated identity performing a mutation.
type Actor struct {
	ID   uint
	Role models.Role
}

// ActorOf builds the Actor for user.
func ActorOf(user *models.User) Actor {
	return Actor{ID: user.ID, Role: user.Role}
}

// owns reports whether the actor may mutate a resource owned by ownerID.
func (a Actor) owns(ownerID uint) bool {
	return a.Role.IsAdmin() || a.ID == ownerID
}

// PostFilter narrows ListPosts. Zero values do not filter.
type PostFilter struct {
	AuthorID uint
	From     *time.Time
	To       *time.Time
}

// NewPost is the input of CreatePost.
type NewPost struct {
	Title   string
	Content string
	Photos  []uint
}

// PostPatch lists the mutable post fields. Nil means unchanged.
type PostPatch struct {
	Title   *string
	Content *string
	Photos  *[]uint
}

// CommentPatch lists the mutable comment fields. Nil means unchanged.
type CommentPatch struct {
	Text   *string
	Photos *[]uint
}

func selectAuthor(tx *gorm.DB) *gorm.DB {
	return tx.Select("id", "username", "profile_picture")
}

// withAssociations resolves author identities and orders the nested sequences.
func withAssociations(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Author", selectAuthor).
		Preload("Comments", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("pinned DESC, created_at ASC, id ASC")
		}).
		Preload("Comments.User", selectAuthor).
		Preload("Reactions", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("created_at ASC, id ASC")
		}).
		Preload("Reactions.User", selectAuthor)
}

// normalize replaces nil sequences so they serialize as [] rather than null.
func normalize(post *models.Post) {
	if post.Photos == nil {
		post.Photos = datatypes.JSONSlice[uint]{}
	}
	if post.Comments == nil {
		post.Comments = []models.Comment{}
	}
	if post.Reactions == nil {
		post.Reactions = []models.Reaction{}
	}
	for i := range post.Comments {
		if post.Comments[i].Photos == nil {
			post.Comments[i].Photos = datatypes.JSONSlice[uint]{}
		}
	}
}

func photoSlice(ids []uint) datatypes.JSONSlice[uint] {
	if ids == nil {
		return datatypes.JSONSlice[uint]{}
	}
	return datatypes.JSONSlice[uint](ids)
}

// ListPosts returns posts pinned first, newest first.
func (s *PostStore) ListPosts(ctx context.Context, filter PostFilter) ([]models.Post, error) {
	query := withAssociations(s.db.WithContext(ctx))
	if filter.AuthorID != 0 {
		query = query.Where("author_id = ?", filter.AuthorID)
	}
	if filter.From != nil {
		query = query.Where("created_at >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("created_at <= ?", *filter.To)
	}

	posts := []models.Post{}
	if err := query.Order("pinned DESC, created_at DESC, id DESC").Find(&posts).Error; err != nil {
		return nil, err
	}
	for i := range posts {
		normalize(&posts[i])
	}
	return posts, nil
}

// GetPost loads one post with resolved identities.
func (s *PostStore) GetPost(ctx context.Context, id uint) (*models.Post, error) {
	var post models.Post
	if err := withAssociations(s.db.WithContext(ctx)).First(&post, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	normalize(&post)
	return &post, nil
}

// CreatePost stores a post authored by authorID.
func (s *PostStore) CreatePost(ctx context.Context, authorID uint, in NewPost) (*models.Post, error) {
	content := utils.Sanitize(in.Content)
	if content == "" {
		return nil, invalid("content", "is required")
	}
	post := models.Post{
		Title:    utils.Sanitize(in.Title),
		Content:  content,
		AuthorID: authorID,
		Photos:   photoSlice(in.Photos),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&post).Error; err != nil {
		return nil, err
	}
	return s.GetPost(ctx, post.ID)
}

// ownerOfPost returns the author of a post or ErrNotFound.
func (s *PostStore) ownerOfPost(ctx context.Context, postID uint) (uint, error) {
	var post models.Post
	err := s.db.WithContext(ctx).Select("id", "author_id").First(&post, postID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return post.AuthorID, nil
}

// UpdatePost merges patch into the post. Only the author or an admin may update.
func (s *PostStore) UpdatePost(ctx context.Context, postID uint, actor Actor, patch PostPatch) (*models.Post, error) {
	authorID, err := s.ownerOfPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	if !actor.owns(authorID) {
		return nil, ErrForbidden
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		updates["title"] = utils.Sanitize(*patch.Title)
	}
	if patch.Content != nil {
		content := utils.Sanitize(*patch.Content)
		if content == "" {
			return nil, invalid("content", "cannot be empty")
		}
		updates["content"] = content
	}
	if patch.Photos != nil {
		updates["photos"] = photoSlice(*patch.Photos)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Post{}).
			Where("id = ?", postID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.GetPost(ctx, postID)
}

// DeletePost removes the post with its comments and reactions.
func (s *PostStore) DeletePost(ctx context.Context, postID uint, actor Actor) error {
	authorID, err := s.ownerOfPost(ctx, postID)
	if err != nil {
		return err
	}
	if !actor.owns(authorID) {
		return ErrForbidden
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", postID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", postID).Delete(&models.Reaction{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Post{}, postID).Error
	})
}

// UpsertReaction sets the user's reaction on the post, replacing any previous type.
func (s *PostStore) UpsertReaction(ctx context.Context, postID, userID uint, kind models.ReactionType) (*models.Post, error) {
	if _, err := s.ownerOfPost(ctx, postID); err != nil {
		return nil, err
	}
	reaction := models.Reaction{PostID: postID, UserID: userID, Type: kind}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "post_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
	}).Omit(clause.Associations).Create(&reaction).Error
	if err != nil {
		return nil, err
	}
	return s.GetPost(ctx, postID)
}

// RemoveReaction deletes the user's reaction on the post, if any.
func (s *PostStore) RemoveReaction(ctx context.Context, postID, userID uint) error {
	if _, err := s.ownerOfPost(ctx, postID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("post_id = ? AND user_id = ?", postID, userID).
		Delete(&models.Reaction{}).Error
}

// AddComment appends a comment to the post.
func (s *PostStore) AddComment(ctx context.Context, postID, userID uint, text string, photos []uint) (*models.Comment, error) {
	text = utils.Sanitize(text)
	if text == "" {
		return nil, invalid("comment", "is required")
	}
	if _, err := s.ownerOfPost(ctx, postID); err != nil {
		return nil, err
	}
	comment := models.Comment{
		PostID: postID,
		UserID: userID,
		Text:   text,
		Photos: photoSlice(photos),
	}
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&comment).Error; err != nil {
		return nil, err
	}
	return s.getComment(ctx, postID, comment.ID)
}

func (s *PostStore) getComment(ctx context.Context, postID, commentID uint) (*models.Comment, error) {
	var comment models.Comment
	err := s.db.WithContext(ctx).
		Preload("User", selectAuthor).
		Where("id = ? AND post_id = ?", commentID, postID).
		First(&comment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if comment.Photos == nil {
		comment.Photos = datatypes.JSONSlice[uint]{}
	}
	return &comment, nil
}

// authorizeComment checks that both records exist and the actor may mutate the comment.
func (s *PostStore) authorizeComment(ctx context.Context, postID, commentID uint, actor Actor) error {
	if _, err := s.ownerOfPost(ctx, postID); err != nil {
		return err
	}
	comment, err := s.getComment(ctx, postID, commentID)
	if err != nil {
		return err
	}
	if !actor.owns(comment.UserID) {
		return ErrForbidden
	}
	return nil
}

// UpdateComment merges patch into the comment. Only its author or an admin may update.
func (s *PostStore) UpdateComment(ctx context.Context, postID, commentID uint, actor Actor, patch CommentPatch) (*models.Comment, error) {
	if err := s.authorizeComment(ctx, postID, commentID, actor); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Text != nil {
		text := utils.Sanitize(*patch.Text)
		if text == "" {
			return nil, invalid("comment", "cannot be empty")
		}
		updates["comment"] = text
	}
	if patch.Photos != nil {
		updates["photos"] = photoSlice(*patch.Photos)
	}
	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(&models.Comment{}).
			Where("id = ? AND post_id = ?", commentID, postID).
			Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return s.getComment(ctx, postID, commentID)
}

// DeleteComment removes the comment. Only its author or an admin may delete.
func (s *PostStore) DeleteComment(ctx context.Context, postID, commentID uint, actor Actor) error {
	if err := s.authorizeComment(ctx, postID, commentID, actor); err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Where("id = ? AND post_id = ?", commentID, postID).
		Delete(&models.Comment{}).Error
}

// SetPinned pins or unpins a post. Admin only.
func (s *PostStore) SetPinned(ctx context.Context, postID uint, pinned bool, actor Actor) error {
	if !actor.Role.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.ownerOfPost(ctx, postID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Post{}).
		Where("id = ?", postID).
		Update("pinned", pinned).Error
}

// SetCommentPinned pins or unpins a comment. Admin only.
func (s *PostStore) SetCommentPinned(ctx context.Context, postID, commentID uint, pinned bool, actor Actor) error {
	if !actor.Role.IsAdmin() {
		return ErrForbidden
	}
	if _, err := s.ownerOfPost(ctx, postID); err != nil {
		return err
	}
	if _, err := s.getComment(ctx, postID, commentID); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ? AND post_id = ?", commentID, postID).
		Update("pinned", pinned).Error
}

// ReactionSummary counts the reactions of a post per type.
func (s *PostStore) ReactionSummary(ctx context.Context, postID uint) (map[models.ReactionType]int64, error) {
	if _, err := s.ownerOfPost(ctx, postID); err != nil {
		return nil, err
	}
	var rows []struct {
		Type  models.ReactionType
		Total int64
	}
	if err := s.db.WithContext(ctx).Model(&models.Reaction{}).
		Select("type, COUNT(*) AS total").
		Where("post_id = ?", postID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	summary := map[models.ReactionType]int64{
		models.ReactionLike:  0,
		models.ReactionFunny: 0,
		models.ReactionSad:   0,
		models.ReactionAngry: 0,
	}
	for _, row := range rows {
		summary[row.Type] = row.Total
	}
	return summary, nil
}
