package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHistory_Helpers(t *testing.T) {
	t.Parallel()

	var h History
	_, ok := h.Last()
	assert.False(t, ok)
	assert.Equal(t, -1, h.LastIndexOf(RoleModerator))

	h = append(h,
		NewUtterance(RoleModerator, "welcome"),
		NewUtterance(RoleInitiator, "so, refrigerators"),
		NewUtterance(RoleReactor, "what about them"),
		NewUtterance(RoleInitiator, "they hum"),
	)

	last, ok := h.Last()
	assert.True(t, ok)
	assert.Equal(t, RoleInitiator, last.Role)

	assert.Equal(t, 2, h.CountByRole(RoleInitiator))
	assert.Equal(t, 1, h.CountByRole(RoleReactor))
	assert.Equal(t, 0, h.LastIndexOf(RoleModerator))
	assert.Equal(t, 3, h.LastIndexOf(RoleInitiator))

	tail := h.Tail(2)
	assert.Len(t, tail, 2)
	assert.Equal(t, "what about them", tail[0].Text)
	assert.Len(t, h.Tail(10), 4)
	assert.Nil(t, h.Tail(0))
}

func TestRole_Valid(t *testing.T) {
	t.Parallel()

	for _, r := range AllRoles() {
		assert.True(t, r.Valid())
	}
	assert.False(t, Role("narrator").Valid())
	assert.Equal(t, []Role{RoleModerator, RoleInitiator, RoleReactor}, AllRoles())
}
