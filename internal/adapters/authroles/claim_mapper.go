package authroles

import (
	"fmt"
	"log/slog"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/ports"
)

var _ ports.RoleMapper = (*ClaimMapper)(nil)

// ClaimMapper extracts the role from provider claims with a JMESPath
// expression, falling back to group membership when the expression yields no
// known role.
type ClaimMapper struct {
	expr   string
	groups StaticRoleMapper
	logger *slog.Logger
}

// ClaimMapperOptions configures a ClaimMapper.
type ClaimMapperOptions struct {
	// Expression is evaluated against the raw claims, e.g. "pds_role" or
	// "realm_access.roles". Empty disables claim extraction.
	Expression string
	Groups     StaticRoleMapper
	Logger     *slog.Logger
}

// NewClaimMapper validates the expression and builds a mapper.
func NewClaimMapper(opts ClaimMapperOptions) (*ClaimMapper, error) {
	expr := strings.TrimSpace(opts.Expression)
	if expr != "" {
		if _, err := jmespath.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid role claim expression %q: %w", expr, err)
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ClaimMapper{expr: expr, groups: opts.Groups, logger: logger}, nil
}

func (m *ClaimMapper) Map(id domainauth.Identity) domainauth.Role {
	if m.expr != "" && id.Claims != nil {
		if role, ok := m.fromClaims(id.Claims); ok {
			return role
		}
	}
	return m.groups.Map(id)
}

func (m *ClaimMapper) fromClaims(claims map[string]any) (domainauth.Role, bool) {
	res, err := jmespath.Search(m.expr, claims)
	if err != nil {
		m.logger.Warn("role claim expression failed", "expression", m.expr, "error", err)
		return "", false
	}
	switch v := res.(type) {
	case string:
		return knownRole(v)
	case []any:
		best, found := domainauth.RoleGuest, false
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				continue
			}
			if r, ok := knownRole(s); ok && (!found || rank(r) < rank(best)) {
				best, found = r, true
			}
		}
		return best, found
	default:
		return "", false
	}
}

func knownRole(raw string) (domainauth.Role, bool) {
	r := domainauth.ParseRole(strings.ToLower(strings.TrimSpace(raw)))
	return r, r.HasDashboard()
}

func rank(r domainauth.Role) int {
	switch r {
	case domainauth.RoleAdmin:
		return 0
	case domainauth.RoleTeacher:
		return 1
	case domainauth.RoleParent:
		return 2
	default:
		return 3
	}
}
