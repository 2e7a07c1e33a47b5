package store

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/cppla/postboard/models"
	"github.com/cppla/postboard/utils"
)

// UserStore persists accounts and answers the basic and bearer authentication predicates.
type UserStore struct {
	db     *gorm.DB
	tokens *utils.TokenSigner
}

// NewUserStore creates a UserStore issuing tokens with signer.
func NewUserStore(db *gorm.DB, signer *utils.TokenSigner) *UserStore {
	return &UserStore{db: db, tokens: signer}
}

// NewUser is the signup input.
type NewUser struct {
	Username string
	Email    string
	Password string
	Role     string
}

// ProfilePatch carries the optional fields of a profile update. Nil means unchanged.
type ProfilePatch struct {
	Email          *string
	Password       *string
	Bio            *string
	ProfilePicture *uint
	Address        *string
	Phone          *string
	Website        *string
	Organization   *string
	Department     *string
	SocialLinks    *models.SocialLinks
}

// Create registers a new account after hashing the password.
func (s *UserStore) Create(ctx context.Context, in NewUser) (*models.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return nil, invalid("username", "is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, invalid("email", "is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if in.Password == "" {
		return nil, invalid("password", "is required")
	}
	role, ok := models.ParseRole(in.Role)
	if !ok {
		return nil, invalid("role", "must be user or admin")
	}

	var taken int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).
		Where("username = ? OR email = ?", username, email).
		Count(&taken).Error; err != nil {
		return nil, err
	}
	if taken > 0 {
		return nil, ErrDuplicateKey
	}

	hash, err := hashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	user := models.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
	}
	if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
			return nil, ErrDuplicateKey
		}
		return nil, err
	}
	return &user, nil
}

// AuthenticateBasic looks the account up by username or email and verifies the password.
func (s *UserStore) AuthenticateBasic(ctx context.Context, usernameOrEmail, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", usernameOrEmail, usernameOrEmail).
		First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !utils.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}
	return &user, nil
}

// AuthenticateToken verifies a bearer token and resolves its subject.
func (s *UserStore) AuthenticateToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.tokens.ParseToken(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	user, err := s.FindByID(ctx, claims.UserID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrUserNotFound
	}
	return user, err
}

// IssueToken signs the {id, username, role} claims of user.
func (s *UserStore) IssueToken(user *models.User) (string, error) {
	return s.tokens.GenerateToken(user.ID, user.Username, string(user.Role))
}

// FindByID loads a single account.
func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &user, nil
}

// List returns every account ordered by signup.
func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateProfile applies patch to the account. The password is re-hashed only when supplied.
func (s *UserStore) UpdateProfile(ctx context.Context, id uint, patch ProfilePatch) (*models.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if patch.Email != nil {
		email, err := normalizeEmail(*patch.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			var taken int64
			if err := s.db.WithContext(ctx).Model(&models.User{}).
				Where("email = ? AND id <> ?", email, id).
				Count(&taken).Error; err != nil {
				return nil, err
			}
			if taken > 0 {
				return nil, ErrDuplicateKey
			}
			updates["email"] = email
		}
	}
	if patch.Password != nil {
		if *patch.Password == "" {
			return nil, invalid("password", "cannot be empty")
		}
		hash, err := hashPassword(*patch.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}
	setString := func(column string, v *string) {
		if v != nil {
			updates[column] = utils.Sanitize(*v)
		}
	}
	setString("bio", patch.Bio)
	setString("address", patch.Address)
	setString("phone", patch.Phone)
	setString("website", patch.Website)
	setString("organization", patch.Organization)
	setString("department", patch.Department)
	if patch.ProfilePicture != nil {
		updates["profile_picture"] = *patch.ProfilePicture
	}
	if patch.SocialLinks != nil {
		updates["social_twitter"] = patch.SocialLinks.Twitter
		updates["social_linkedin"] = patch.SocialLinks.Linkedin
		updates["social_facebook"] = patch.SocialLinks.Facebook
		updates["social_instagram"] = patch.SocialLinks.Instagram
	}

	if len(updates) > 0 {
		if err := s.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
				return nil, ErrDuplicateKey
			}
			return nil, err
		}
	}
	return s.FindByID(ctx, id)
}

// isUniqueViolation recognizes unique index errors from dialectors that do not translate them.
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// normalizeEmail keeps only the bare address, so "Bob <b@x.com>" is stored and
// compared as "b@x.com".
func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", invalid("email", "is not a valid address")
	}
	return addr.Address, nil
}

func hashPassword(password string) (string, error) {
	if len(password) > utils.MaxPasswordBytes {
		return "", invalid("password", "must be at most 72 bytes")
	}
	hash, err := utils.HashPassword(password)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", invalid("password", "must be at most 72 bytes")
	}
	return hash, err
}
