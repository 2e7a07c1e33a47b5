package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseRole(t *testing.T) {
	role, ok := ParseRole("")
	assert.True(t, ok)
	assert.Equal(t, RoleUser, role)

	role, ok = ParseRole("admin")
	assert.True(t, ok)
	assert.Equal(t, RoleAdmin, role)

	_, ok = ParseRole("superuser")
	assert.False(t, ok)
}

func TestCapabilities(t *testing.T) {
	all := []Capability{CapabilityRead, CapabilityCreate, CapabilityUpdate, CapabilityDelete}
	assert.ElementsMatch(t, all, RoleUser.Capabilities())
	assert.ElementsMatch(t, all, RoleAdmin.Capabilities())
	assert.Empty(t, Role("guest").Capabilities())

	assert.True(t, RoleUser.Can(CapabilityCreate))
	assert.False(t, Role("guest").Can(CapabilityRead))
	assert.True(t, RoleAdmin.IsAdmin())
	assert.False(t, RoleUser.IsAdmin())
}

func TestParseReactionType(t *testing.T) {
	for _, name := range []string{"like", "funny", "sad", "angry"} {
		kind, ok := ParseReactionType(name)
		assert.True(t, ok, name)
		assert.Equal(t, ReactionType(name), kind)
	}
	_, ok := ParseReactionType("love")
	assert.False(t, ok)
}
