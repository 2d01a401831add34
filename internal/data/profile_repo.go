package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/pdsapp/pds/internal/data/pgxutil"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	apperrors "github.com/pdsapp/pds/internal/errors"
	"github.com/pdsapp/pds/internal/ports"
)

var _ ports.ProfileRepository = (*ProfileRepo)(nil)

// ErrProfileNotFound is returned when no profile row exists. It matches
// ports.ErrNotFound and apperrors.IsNotFound.
var ErrProfileNotFound = apperrors.Wrap(ports.ErrNotFound, apperrors.ErrCodeNotFound, "profile not found")

// ProfileRepo reads user profiles and their linked children from Postgres.
type ProfileRepo struct {
	DB *sql.DB
}

// NewProfileRepo creates a new ProfileRepo.
func NewProfileRepo(db *sql.DB) *ProfileRepo {
	return &ProfileRepo{DB: db}
}

const (
	selectProfileSQL = `
		SELECT user_id, email, role, COALESCE(school_id, '')
		FROM profiles
		WHERE user_id = $1`

	selectChildrenSQL = `
		SELECT child_id, name
		FROM profile_children
		WHERE profile_user_id = $1
		ORDER BY position, child_id`

	// The IdP-derived role only replaces a role nobody has assigned yet.
	upsertProfileSQL = `
		INSERT INTO profiles (user_id, email, role)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE profiles.email END,
			role = CASE WHEN profiles.role = 'guest' THEN EXCLUDED.role ELSE profiles.role END,
			updated_at = now()`
)

// Get returns the profile for userID.
func (r *ProfileRepo) Get(ctx context.Context, userID string) (domainauth.Profile, error) {
	if strings.TrimSpace(userID) == "" {
		return domainauth.Profile{}, apperrors.ValidationField("user_id", "user ID is required")
	}
	var p domainauth.Profile
	err := pgxutil.InTx(ctx, r.DB, pgxutil.Snapshot, func(tx pgx.Tx) error {
		var err error
		p, err = loadProfile(ctx, tx, userID)
		return err
	})
	if err != nil {
		return domainauth.Profile{}, err
	}
	return p, nil
}

// Ensure seeds the profile on first sign-in and returns the stored row.
func (r *ProfileRepo) Ensure(ctx context.Context, in domainauth.Profile) (domainauth.Profile, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return domainauth.Profile{}, apperrors.ValidationField("user_id", "user ID is required")
	}
	role := in.Role
	if role == "" {
		role = domainauth.RoleGuest
	}

	var out domainauth.Profile
	err := pgxutil.InTx(ctx, r.DB, pgxutil.Write, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, upsertProfileSQL, in.UserID, in.Email, string(role)); err != nil {
			return apperrors.MapDBError(err)
		}
		var err error
		out, err = loadProfile(ctx, tx, in.UserID)
		return err
	})
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("ensure profile: %w", err)
	}
	return out, nil
}

// querier is satisfied by *pgx.Conn and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadProfile(ctx context.Context, q querier, userID string) (domainauth.Profile, error) {
	var (
		p    domainauth.Profile
		role string
	)
	err := q.QueryRow(ctx, selectProfileSQL, userID).Scan(&p.UserID, &p.Email, &role, &p.SchoolID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domainauth.Profile{}, fmt.Errorf("profile %s: %w", userID, ErrProfileNotFound)
		}
		return domainauth.Profile{}, fmt.Errorf("select profile: %w", apperrors.MapDBError(err))
	}
	p.Role = domainauth.ParseRole(role)

	rows, err := q.Query(ctx, selectChildrenSQL, userID)
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("select children: %w", apperrors.MapDBError(err))
	}
	children, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domainauth.ChildRef, error) {
		var c domainauth.ChildRef
		err := row.Scan(&c.ID, &c.Name)
		return c, err
	})
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("scan children: %w", err)
	}
	p.Children = children
	return p, nil
}

// LinkInput is the school linkage written by Link.
type LinkInput struct {
	UserID   string
	Role     domainauth.Role // empty keeps the stored role
	SchoolID string          // empty clears the school
	Children []domainauth.ChildRef
}

// Link replaces a profile's school and children. The serving path never
// calls it; it backs the admin CLI and development seeding.
func (r *ProfileRepo) Link(ctx context.Context, in LinkInput) (domainauth.Profile, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return domainauth.Profile{}, apperrors.ValidationField("user_id", "user ID is required")
	}
	for i, c := range in.Children {
		if strings.TrimSpace(c.ID) == "" {
			return domainauth.Profile{}, apperrors.ValidationField(fmt.Sprintf("children[%d].id", i), "child ID is required")
		}
	}

	var out domainauth.Profile
	err := pgxutil.InTx(ctx, r.DB, pgxutil.Write, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, updateLinkSQL, in.UserID, nullIfEmpty(in.SchoolID), nullIfEmpty(string(in.Role)))
		if err != nil {
			return apperrors.MapDBError(err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("profile %s: %w", in.UserID, ErrProfileNotFound)
		}
		if _, err := tx.Exec(ctx, deleteChildrenSQL, in.UserID); err != nil {
			return apperrors.MapDBError(err)
		}
		batch := &pgx.Batch{}
		for i, c := range in.Children {
			batch.Queue(insertChildSQL, in.UserID, c.ID, c.Name, i)
		}
		if batch.Len() > 0 {
			if err := tx.SendBatch(ctx, batch).Close(); err != nil {
				return apperrors.MapDBError(err)
			}
		}
		out, err = loadProfile(ctx, tx, in.UserID)
		return err
	})
	if err != nil {
		return domainauth.Profile{}, fmt.Errorf("link profile: %w", err)
	}
	return out, nil
}

const (
	updateLinkSQL = `
		UPDATE profiles
		SET school_id = $2, role = COALESCE($3, role), updated_at = now()
		WHERE user_id = $1`

	deleteChildrenSQL = `DELETE FROM profile_children WHERE profile_user_id = $1`

	insertChildSQL = `
		INSERT INTO profile_children (profile_user_id, child_id, name, position)
		VALUES ($1, $2, $3, $4)`
)

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
