package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/postboard/models"
)

func TestCreateHashesPassword(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	user, err := users.Create(context.Background(), NewUser{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	assert.NotZero(t, user.ID)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "secret1", user.PasswordHash)
	assert.NotEmpty(t, user.PasswordHash)
}

func TestCreateRejectsDuplicates(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	ctx := context.Background()
	_, err := users.Create(ctx, NewUser{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = users.Create(ctx, NewUser{Username: "alice", Email: "other@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = users.Create(ctx, NewUser{Username: "alice2", Email: "a@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)
}

func TestCreateValidatesInput(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	ctx := context.Background()

	cases := map[string]NewUser{
		"username": {Email: "a@x.com", Password: "p"},
		"email":    {Username: "alice", Email: "not-an-email", Password: "p"},
		"password": {Username: "alice", Email: "a@x.com"},
		"role":     {Username: "alice", Email: "a@x.com", Password: "p", Role: "root"},
	}
	for field, in := range cases {
		_, err := users.Create(ctx, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, field)
		assert.Equal(t, field, verr.Field)
	}
}

func TestAuthenticateBasic(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	ctx := context.Background()
	alice := mustCreateUser(t, users, "alice", models.RoleUser)

	byName, err := users.AuthenticateBasic(ctx, "alice", "secret1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byName.ID)

	byEmail, err := users.AuthenticateBasic(ctx, "alice@x.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, alice.ID, byEmail.ID)

	_, err = users.AuthenticateBasic(ctx, "alice", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = users.AuthenticateBasic(ctx, "nobody", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestTokens(t *testing.T) {
	db := newTestDB(t)
	users := newTestUserStore(t, db)
	ctx := context.Background()
	alice := mustCreateUser(t, users, "alice", models.RoleUser)

	first, err := users.IssueToken(alice)
	require.NoError(t, err)
	second, err := users.IssueToken(alice)
	require.NoError(t, err)
	assert.Equal(t, first, second, "tokens without expiry depend only on their claims")

	resolved, err := users.AuthenticateToken(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, alice.ID, resolved.ID)

	_, err = users.AuthenticateToken(ctx, "garbage")
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, db.Delete(&models.User{}, alice.ID).Error)
	_, err = users.AuthenticateToken(ctx, first)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestUpdateProfileRehashesOnlyOnPasswordChange(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	ctx := context.Background()
	alice := mustCreateUser(t, users, "alice", models.RoleUser)

	bio := "hello"
	picture := uint(7)
	updated, err := users.UpdateProfile(ctx, alice.ID, ProfilePatch{
		Bio:            &bio,
		ProfilePicture: &picture,
		SocialLinks:    &models.SocialLinks{Twitter: "@alice"},
	})
	require.NoError(t, err)
	assert.Equal(t, alice.PasswordHash, updated.PasswordHash)
	assert.Equal(t, "hello", updated.Bio)
	require.NotNil(t, updated.ProfilePicture)
	assert.Equal(t, uint(7), *updated.ProfilePicture)
	assert.Equal(t, "@alice", updated.SocialLinks.Twitter)

	password := "secret2"
	updated, err = users.UpdateProfile(ctx, alice.ID, ProfilePatch{Password: &password})
	require.NoError(t, err)
	assert.NotEqual(t, alice.PasswordHash, updated.PasswordHash)

	_, err = users.AuthenticateBasic(ctx, "alice", "secret2")
	assert.NoError(t, err)
	_, err = users.AuthenticateBasic(ctx, "alice", "secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfileEmailMustStayUnique(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	ctx := context.Background()
	alice := mustCreateUser(t, users, "alice", models.RoleUser)
	mustCreateUser(t, users, "bob", models.RoleUser)

	taken := "bob@x.com"
	_, err := users.UpdateProfile(ctx, alice.ID, ProfilePatch{Email: &taken})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = users.UpdateProfile(ctx, 999, ProfilePatch{})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListUsers(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	mustCreateUser(t, users, "alice", models.RoleUser)
	mustCreateUser(t, users, "root", models.RoleAdmin)

	list, err := users.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, models.RoleAdmin, list[1].Role)
}

func TestPasswordLongerThanBcryptLimit(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	ctx := context.Background()
	long := strings.Repeat("p", 73)

	_, err := users.Create(ctx, NewUser{Username: "alice", Email: "a@x.com", Password: long})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)

	_, err = users.Create(ctx, NewUser{Username: "alice", Email: "a@x.com", Password: strings.Repeat("p", 72)})
	require.NoError(t, err)

	bob := mustCreateUser(t, users, "bob", models.RoleUser)
	_, err = users.UpdateProfile(ctx, bob.ID, ProfilePatch{Password: &long})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "password", verr.Field)
}

func TestEmailStoredAsBareAddress(t *testing.T) {
	users := newTestUserStore(t, newTestDB(t))
	ctx := context.Background()

	bob, err := users.Create(ctx, NewUser{Username: "bob", Email: "Bob <b@x.com>", Password: "secret1"})
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", bob.Email)

	_, err = users.Create(ctx, NewUser{Username: "bobby", Email: "b@x.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrDuplicateKey)

	_, err = users.AuthenticateBasic(ctx, "b@x.com", "secret1")
	require.NoError(t, err)

	renamed := "Robert <r@x.com>"
	updated, err := users.UpdateProfile(ctx, bob.ID, ProfilePatch{Email: &renamed})
	require.NoError(t, err)
	assert.Equal(t, "r@x.com", updated.Email)
}
