package authroles

import (
	"testing"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGroups = StaticRoleMapper{AdminGroup: "pds-admins", TeacherGroup: "pds-teachers", ParentGroup: "pds-parents"}

func TestStaticRoleMapper_Precedence(t *testing.T) {
	tests := []struct {
		name   string
		groups []string
		want   domainauth.Role
	}{
		{"admin wins", []string{"pds-parents", "pds-admins"}, domainauth.RoleAdmin},
		{"teacher over parent", []string{"pds-parents", "pds-teachers"}, domainauth.RoleTeacher},
		{"parent", []string{"pds-parents"}, domainauth.RoleParent},
		{"no match", []string{"other"}, domainauth.RoleGuest},
		{"no groups", nil, domainauth.RoleGuest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, testGroups.Map(domainauth.Identity{Groups: tt.groups}))
		})
	}
}

func TestStaticRoleMapper_EmptyGroupNeverMatches(t *testing.T) {
	m := StaticRoleMapper{ParentGroup: "pds-parents"}
	assert.Equal(t, domainauth.RoleGuest, m.Map(domainauth.Identity{Groups: []string{""}}))
}

func TestClaimMapper(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		claims map[string]any
		groups []string
		want   domainauth.Role
	}{
		{
			name:   "flat claim",
			expr:   "pds_role",
			claims: map[string]any{"pds_role": "Teacher"},
			want:   domainauth.RoleTeacher,
		},
		{
			name:   "nested list picks highest",
			expr:   "realm_access.roles",
			claims: map[string]any{"realm_access": map[string]any{"roles": []any{"offline", "parent", "admin"}}},
			want:   domainauth.RoleAdmin,
		},
		{
			name:   "unknown claim falls back to groups",
			expr:   "pds_role",
			claims: map[string]any{"pds_role": "janitor"},
			groups: []string{"pds-parents"},
			want:   domainauth.RoleParent,
		},
		{
			name:   "missing claim and groups",
			expr:   "pds_role",
			claims: map[string]any{},
			want:   domainauth.RoleGuest,
		},
		{
			name:   "no expression uses groups",
			claims: map[string]any{"pds_role": "admin"},
			groups: []string{"pds-teachers"},
			want:   domainauth.RoleTeacher,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewClaimMapper(ClaimMapperOptions{Expression: tt.expr, Groups: testGroups})
			require.NoError(t, err)
			got := m.Map(domainauth.Identity{Claims: tt.claims, Groups: tt.groups})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewClaimMapper_InvalidExpression(t *testing.T) {
	_, err := NewClaimMapper(ClaimMapperOptions{Expression: "roles[?"})
	require.Error(t, err)
}
