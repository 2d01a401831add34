package authroles

import (
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
)

var _ ports.RoleMapper = StaticRoleMapper{}

// StaticRoleMapper maps groups by simple string membership rules.
// Admin wins over teacher, teacher over parent.
type StaticRoleMapper struct {
	AdminGroup   string
	TeacherGroup string
	ParentGroup  string
}

func (m StaticRoleMapper) Map(id domainauth.Identity) domainauth.Role {
	return m.mapGroups(id.Groups)
}

func (m StaticRoleMapper) mapGroups(groups []string) domainauth.Role {
	rules := []struct {
		group string
		role  domainauth.Role
	}{
		{m.AdminGroup, domainauth.RoleAdmin},
		{m.TeacherGroup, domainauth.RoleTeacher},
		{m.ParentGroup, domainauth.RoleParent},
	}
	for _, rule := range rules {
		if rule.group == "" {
			continue
		}
		for _, g := range groups {
			if g == rule.group {
				return rule.role
			}
		}
	}
	return domainauth.RoleGuest
}
