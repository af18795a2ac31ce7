package types

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserPublicRedactsHash(t *testing.T) {
	u := &User{
		ID:           uuid.New(),
		TenantID:     "T1",
		Email:        "ana@school.pt",
		PasswordHash: "$2a$10$secrethashvalue",
		Role:         RoleStudent,
		IsActive:     true,
		Profile:      UserProfile{FirstName: "Ana", Settings: map[string]any{"theme": "dark"}},
	}

	for _, v := range []any{u, u.Public()} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "secrethashvalue")
		assert.NotContains(t, string(raw), "password")
	}

	pub := u.Public()
	pub.Profile.Settings["theme"] = "light"
	assert.Equal(t, "dark", u.Profile.Settings["theme"])
}

func TestRole(t *testing.T) {
	assert.True(t, RoleSuperAdmin.Valid())
	assert.False(t, Role("owner").Valid())
	assert.True(t, RoleStudent.SelfAssignable())
	assert.True(t, RoleInstructor.SelfAssignable())
	assert.False(t, RoleSchoolAdmin.SelfAssignable())
	assert.False(t, RoleSuperAdmin.SelfAssignable())
}
