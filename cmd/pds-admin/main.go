package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pdsapp/pds/config"
	"github.com/pdsapp/pds/internal/adapters/accesstoken"
	redisadapter "github.com/pdsapp/pds/internal/adapters/redis"
	"github.com/pdsapp/pds/internal/bootstrap"
	"github.com/pdsapp/pds/internal/data"
	"github.com/pdsapp/pds/internal/devseed"
	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/service"
	"github.com/redis/go-redis/v9"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
	Out    io.Writer
}

const defaultCommandTimeout = 2 * time.Minute

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(os.Stdout); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if _, err := fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(os.Stderr); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	// stdout carries command output
	logger = bootstrap.ConfigureLogger(os.Stderr, &cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{Ctx: ctx, Logger: logger, Config: cfg, Out: os.Stdout}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(ctx, "command failed", "command", cmdName, "error", runErr)
		stop()
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"migrate": {
			name:        "migrate",
			description: "Apply profile database migrations",
			run:         runMigrate,
		},
		"seed": {
			name:        "seed",
			description: "Migrate and seed development profiles (admin, teacher, parents)",
			run:         runSeed,
		},
		"link-profile": {
			name:        "link-profile",
			description: "Set a profile's role, school and linked children",
			run:         runLinkProfile,
		},
		"show-session": {
			name:        "show-session",
			description: "Print a stored session and its navigation intent",
			run:         runShowSession,
		},
		"revoke-session": {
			name:        "revoke-session",
			description: "Delete a session (or every session of --user) and broadcast the sign-out",
			run:         runRevokeSession,
		},
		"sign-token": {
			name:        "sign-token",
			description: "Mint an HS256 access token for testing the implicit flow",
			run:         runSignToken,
		},
	}
}

func printUsage(w io.Writer) error {
	if _, err := fmt.Fprint(w, "Usage: pds-admin <command> [flags]\n\nAvailable commands:\n"); err != nil {
		return err
	}
	cmds := commands()
	names := make([]string, 0, len(cmds))
	for name := range cmds {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := fmt.Fprintf(w, "  %-16s %s\n", name, cmds[name].description); err != nil {
			return err
		}
	}
	return nil
}

func withDB(cmdCtx *commandContext, fn func(ctx context.Context, db *sql.DB) error) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cmdCtx.Config.Postgres,
		Logger:   cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("db close failed", "error", closeErr)
		}
	}()
	return fn(ctx, db)
}

func withRedis(cmdCtx *commandContext, fn func(ctx context.Context, client redis.UniversalClient) error) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, defaultCommandTimeout)
	defer cancel()

	client, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cmdCtx.Config.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()
	return fn(ctx, client)
}

func runMigrate(cmdCtx *commandContext, _ []string) error {
	return withDB(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		return bootstrap.RunMigrations(ctx, db, cmdCtx.Logger)
	})
}

func runSeed(cmdCtx *commandContext, _ []string) error {
	return withDB(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		if err := bootstrap.RunMigrations(ctx, db, cmdCtx.Logger); err != nil {
			return err
		}
		return devseed.Seed(ctx, db, devseed.DefaultProfiles(), cmdCtx.Logger)
	})
}

type linkOptions struct {
	UserID   string
	Role     string
	SchoolID string
	Children []domainauth.ChildRef
}

// parseLinkFlags reads --children as "id[:name],id[:name]".
func parseLinkFlags(args []string) (linkOptions, error) {
	fs := flag.NewFlagSet("link-profile", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		opts     linkOptions
		children string
	)
	fs.StringVar(&opts.UserID, "user", "", "profile user ID (required)")
	fs.StringVar(&opts.Role, "role", "", "role: admin, teacher, parent (empty keeps the stored role)")
	fs.StringVar(&opts.SchoolID, "school", "", "school ID (empty clears it)")
	fs.StringVar(&children, "children", "", "comma-separated child IDs, each optionally id:name")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.UserID == "" {
		return opts, errors.New("--user is required")
	}
	if opts.Role != "" && !domainauth.ParseRole(opts.Role).HasDashboard() {
		return opts, fmt.Errorf("unknown role %q", opts.Role)
	}
	for _, part := range strings.Split(children, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, name, _ := strings.Cut(part, ":")
		opts.Children = append(opts.Children, domainauth.ChildRef{ID: strings.TrimSpace(id), Name: strings.TrimSpace(name)})
	}
	return opts, nil
}

func runLinkProfile(cmdCtx *commandContext, args []string) error {
	opts, err := parseLinkFlags(args)
	if err != nil {
		return err
	}
	return withDB(cmdCtx, func(ctx context.Context, db *sql.DB) error {
		p, err := data.NewProfileRepo(db).Link(ctx, data.LinkInput{
			UserID:   opts.UserID,
			Role:     domainauth.Role(opts.Role),
			SchoolID: opts.SchoolID,
			Children: opts.Children,
		})
		if err != nil {
			return err
		}
		needs := domainauth.NeedsOnboarding(&domainauth.Session{Role: p.Role, SchoolID: p.SchoolID, Children: p.Children})
		return writeJSON(cmdCtx.Out, map[string]any{"profile": p, "needs_onboarding": needs})
	})
}

func sessionArg(args []string) (string, error) {
	if len(args) != 1 || strings.TrimSpace(args[0]) == "" {
		return "", errors.New("expected exactly one session ID")
	}
	return strings.TrimSpace(args[0]), nil
}

func runShowSession(cmdCtx *commandContext, args []string) error {
	id, err := sessionArg(args)
	if err != nil {
		return err
	}
	return withRedis(cmdCtx, func(ctx context.Context, client redis.UniversalClient) error {
		store := redisadapter.NewSessionStoreWithPrefix(client, cmdCtx.Config.Redis.SessionPrefix)
		sess, err := store.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}
		intent, err := redisadapter.NewNavIntentStore(client).Get(ctx, id)
		if err != nil {
			return fmt.Errorf("get navigation intent: %w", err)
		}
		dest, destErr := domainauth.ResolveDestination(&sess, domainauth.RouteContext{})
		out := map[string]any{
			"session":          sess,
			"needs_onboarding": domainauth.NeedsOnboarding(&sess),
			"nav_intent":       intent,
			"destination":      dest,
		}
		if destErr != nil {
			out["destination_error"] = destErr.Error()
		}
		return writeJSON(cmdCtx.Out, out)
	})
}

// parseRevokeArgs accepts a session ID or --user <user ID>.
func parseRevokeArgs(args []string) (sessionID, userID string, err error) {
	fs := flag.NewFlagSet("revoke-session", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&userID, "user", "", "revoke every session held by this user")
	if err := fs.Parse(args); err != nil {
		return "", "", err
	}
	userID = strings.TrimSpace(userID)
	if userID != "" {
		if fs.NArg() > 0 {
			return "", "", errors.New("pass either a session ID or --user, not both")
		}
		return "", userID, nil
	}
	sessionID, err = sessionArg(fs.Args())
	return sessionID, "", err
}

func runRevokeSession(cmdCtx *commandContext, args []string) error {
	sessionID, userID, err := parseRevokeArgs(args)
	if err != nil {
		return err
	}
	return withRedis(cmdCtx, func(ctx context.Context, client redis.UniversalClient) error {
		store := redisadapter.NewSessionStoreWithPrefix(client, cmdCtx.Config.Redis.SessionPrefix)
		ids := []string{sessionID}
		if userID != "" {
			var listErr error
			if ids, listErr = store.SessionIDsForUser(ctx, userID); listErr != nil {
				return listErr
			}
		}

		// publishing through the tracker lets running instances drop their cached copy
		tracker := service.NewSessionTracker(service.SessionTrackerOptions{
			Store: store,
			Bus: redisadapter.NewEventBus(redisadapter.EventBusOptions{
				Client:  client,
				Channel: cmdCtx.Config.Redis.EventChannel,
				Logger:  cmdCtx.Logger,
			}),
			Logger: cmdCtx.Logger,
		})
		intents := redisadapter.NewNavIntentStore(client)
		for _, id := range ids {
			if err := tracker.SignOut(ctx, id); err != nil {
				return err
			}
			if err := intents.Clear(ctx, id); err != nil {
				return fmt.Errorf("clear navigation intent: %w", err)
			}
			cmdCtx.Logger.InfoContext(ctx, "session revoked", "session_id", id)
		}
		if _, err := fmt.Fprintf(cmdCtx.Out, "revoked %d session(s)\n", len(ids)); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	})
}

type tokenOptions struct {
	Subject string
	Email   string
	Role    string
	Groups  []string
	TTL     time.Duration
}

func parseTokenFlags(args []string) (tokenOptions, error) {
	fs := flag.NewFlagSet("sign-token", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var (
		opts   tokenOptions
		groups string
	)
	fs.StringVar(&opts.Subject, "sub", "", "user ID (required)")
	fs.StringVar(&opts.Email, "email", "", "email address")
	fs.StringVar(&opts.Role, "role", "", "value of the pds_role claim")
	fs.StringVar(&groups, "groups", "", "semicolon-separated groups")
	fs.DurationVar(&opts.TTL, "ttl", time.Hour, "token lifetime")
	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if opts.Subject == "" {
		return opts, errors.New("--sub is required")
	}
	if opts.TTL <= 0 {
		return opts, errors.New("--ttl must be positive")
	}
	for _, g := range strings.Split(groups, ";") {
		if g = strings.TrimSpace(g); g != "" {
			opts.Groups = append(opts.Groups, g)
		}
	}
	return opts, nil
}

func runSignToken(cmdCtx *commandContext, args []string) error {
	opts, err := parseTokenFlags(args)
	if err != nil {
		return err
	}
	secret := cmdCtx.Config.Auth.AccessTokenSecret
	if secret == "" {
		return errors.New("AUTH_ACCESS_TOKEN_SECRET is not set")
	}
	claims := accesstoken.Claims{Email: opts.Email, Role: opts.Role, Groups: opts.Groups}
	claims.Subject = opts.Subject
	token, err := accesstoken.Sign(secret, cmdCtx.Config.Auth.AccessTokenIssuer, opts.TTL, claims)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	_, err = fmt.Fprintln(cmdCtx.Out, token)
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
