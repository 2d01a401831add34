package data

import (
	"context"
	"database/sql"
	"testing"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	apperrors "github.com/pdsapp/pds/internal/errors"
	"github.com/pdsapp/pds/internal/ports"
	"github.com/pdsapp/pds/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linkChild(t *testing.T, db *sql.DB, userID, childID, name string, position int) {
	t.Helper()
	_, err := db.ExecContext(context.Background(),
		`INSERT INTO profile_children (profile_user_id, child_id, name, position) VALUES ($1, $2, $3, $4)`,
		userID, childID, name, position)
	require.NoError(t, err)
}

func TestProfileRepo_EnsureSeedsBareProfile(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		p, err := repo.Ensure(ctx, domainauth.Profile{UserID: "parent-1", Email: "pat@example.com", Role: domainauth.RoleParent})
		require.NoError(t, err)
		assert.Equal(t, "parent-1", p.UserID)
		assert.Equal(t, domainauth.RoleParent, p.Role)
		assert.Empty(t, p.SchoolID)
		assert.Empty(t, p.Children)

		// a second sign-in with a different IdP role keeps the assigned role
		p, err = repo.Ensure(ctx, domainauth.Profile{UserID: "parent-1", Role: domainauth.RoleTeacher})
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleParent, p.Role)
		assert.Equal(t, "pat@example.com", p.Email)
	})
}

func TestProfileRepo_EnsurePromotesGuest(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		_, err := repo.Ensure(ctx, domainauth.Profile{UserID: "u-guest"})
		require.NoError(t, err)

		p, err := repo.Ensure(ctx, domainauth.Profile{UserID: "u-guest", Role: domainauth.RoleTeacher})
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleTeacher, p.Role)
	})
}

func TestProfileRepo_GetWithSchoolAndChildren(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		_, err := repo.Ensure(ctx, domainauth.Profile{UserID: "parent-2", Role: domainauth.RoleParent})
		require.NoError(t, err)
		_, err = db.ExecContext(ctx, `UPDATE profiles SET school_id = 'school-7' WHERE user_id = 'parent-2'`)
		require.NoError(t, err)
		linkChild(t, db, "parent-2", "child-b", "Bea", 1)
		linkChild(t, db, "parent-2", "child-a", "Al", 0)

		p, err := repo.Get(ctx, "parent-2")
		require.NoError(t, err)
		assert.Equal(t, "school-7", p.SchoolID)
		assert.Equal(t, []domainauth.ChildRef{{ID: "child-a", Name: "Al"}, {ID: "child-b", Name: "Bea"}}, p.Children)
	})
}

func TestProfileRepo_GetNotFound(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)

		_, err := repo.Get(context.Background(), "nobody")
		require.Error(t, err)
		assert.ErrorIs(t, err, ports.ErrNotFound)
		assert.True(t, apperrors.IsNotFound(err))
	})
}

func TestProfileRepo_RejectsEmptyUserID(t *testing.T) {
	repo := NewProfileRepo(nil)

	_, err := repo.Get(context.Background(), " ")
	assert.True(t, apperrors.IsValidation(err))

	_, err = repo.Ensure(context.Background(), domainauth.Profile{})
	assert.True(t, apperrors.IsValidation(err))
}

func TestProfileRepo_LinkReplacesChildren(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		repo := NewProfileRepo(db)
		ctx := context.Background()

		_, err := repo.Ensure(ctx, domainauth.Profile{UserID: "parent-3", Role: domainauth.RoleParent})
		require.NoError(t, err)
		linkChild(t, db, "parent-3", "old-child", "Old", 0)

		p, err := repo.Link(ctx, LinkInput{
			UserID:   "parent-3",
			SchoolID: "school-1",
			Children: []domainauth.ChildRef{{ID: "c-2", Name: "Zed"}, {ID: "c-1", Name: "Amy"}},
		})
		require.NoError(t, err)
		assert.Equal(t, "school-1", p.SchoolID)
		assert.Equal(t, domainauth.RoleParent, p.Role)
		// insertion order wins over id order
		assert.Equal(t, []domainauth.ChildRef{{ID: "c-2", Name: "Zed"}, {ID: "c-1", Name: "Amy"}}, p.Children)
		assert.False(t, domainauth.NeedsOnboarding(&domainauth.Session{Role: p.Role, SchoolID: p.SchoolID, Children: p.Children}))

		p, err = repo.Link(ctx, LinkInput{UserID: "parent-3", Role: domainauth.RoleTeacher})
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleTeacher, p.Role)
		assert.Empty(t, p.SchoolID)
		assert.Empty(t, p.Children)
	})
}

func TestProfileRepo_LinkUnknownProfile(t *testing.T) {
	testutil.WithEphemeralDB(t, func(db *sql.DB) {
		_, err := NewProfileRepo(db).Link(context.Background(), LinkInput{UserID: "ghost", SchoolID: "s"})
		require.ErrorIs(t, err, ports.ErrNotFound)
	})
}

func TestProfileRepo_LinkValidatesInput(t *testing.T) {
	repo := NewProfileRepo(nil)

	_, err := repo.Link(context.Background(), LinkInput{})
	assert.True(t, apperrors.IsValidation(err))

	_, err = repo.Link(context.Background(), LinkInput{UserID: "u", Children: []domainauth.ChildRef{{Name: "no id"}}})
	assert.True(t, apperrors.IsValidation(err))
}
