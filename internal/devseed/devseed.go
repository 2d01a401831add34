package devseed

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/pdsapp/pds/internal/data"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
)

// Profile is one development account to seed.
type Profile struct {
	UserID   string
	Email    string
	Role     domainauth.Role
	SchoolID string
	Children []domainauth.ChildRef
}

// DefaultProfiles covers every landing route: each dashboard plus both
// onboarding steps. User IDs match DEV_AUTH_USER_ID values.
func DefaultProfiles() []Profile {
	return []Profile{
		{UserID: "dev-admin", Email: "admin@pds.local", Role: domainauth.RoleAdmin},
		{UserID: "dev-teacher", Email: "teacher@pds.local", Role: domainauth.RoleTeacher, SchoolID: "school-demo"},
		{
			UserID:   "dev-parent",
			Email:    "parent@pds.local",
			Role:     domainauth.RoleParent,
			SchoolID: "school-demo",
			Children: []domainauth.ChildRef{{ID: "student-ada", Name: "Ada"}, {ID: "student-ben", Name: "Ben"}},
		},
		{UserID: "dev-parent-new", Email: "new-parent@pds.local", Role: domainauth.RoleParent},
		{UserID: "dev-parent-school", Email: "school-parent@pds.local", Role: domainauth.RoleParent, SchoolID: "school-demo"},
	}
}

// Seed upserts profiles and their linkage. It is idempotent.
func Seed(ctx context.Context, db *sql.DB, profiles []Profile, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	repo := data.NewProfileRepo(db)
	for _, p := range profiles {
		if _, err := repo.Ensure(ctx, domainauth.Profile{UserID: p.UserID, Email: p.Email, Role: p.Role}); err != nil {
			return fmt.Errorf("seed profile %s: %w", p.UserID, err)
		}
		linked, err := repo.Link(ctx, data.LinkInput{
			UserID:   p.UserID,
			Role:     p.Role,
			SchoolID: p.SchoolID,
			Children: p.Children,
		})
		if err != nil {
			return fmt.Errorf("link profile %s: %w", p.UserID, err)
		}
		logger.InfoContext(ctx, "seeded profile",
			"user_id", linked.UserID,
			"role", linked.Role,
			"children", len(linked.Children))
	}
	return nil
}
