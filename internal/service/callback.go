package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	domainauth "github.com/pdsapp/pds/internal/domain/auth"
	"github.com/pdsapp/pds/internal/observability/metrics"
	"github.com/pdsapp/pds/internal/observability/statsd"
)

// CallbackState is the lifecycle of one callback attempt.
type CallbackState string

const (
	CallbackLoading CallbackState = "loading"
	CallbackSuccess CallbackState = "success"
	CallbackError   CallbackState = "error"
)

// User-facing copy for outcomes that carry no provider text.
const (
	MsgAuthFailed   = "Authentication failed. Please try again."
	MsgNoRole       = "Your account has not been assigned a role yet."
	MsgInvalidState = "Your sign-in link is no longer valid. Please sign in again."
	MsgAuthDisabled = "Sign-in is not available right now."
	MsgSigningYouIn = "Signing you in..."
)

const defaultWaitLimit = 5 * time.Second

// CallbackParams is everything one callback request carries.
type CallbackParams struct {
	// From the callback URL.
	Code             string
	State            string
	Error            string
	ErrorDescription string
	AccessToken      string
	Step             string

	// From the login cookies.
	Signup            bool
	ExpectedState     string
	Nonce             string
	Verifier          string
	ExistingSessionID string
	ReturnTo          string
}

func (p CallbackParams) routeContext() domainauth.RouteContext {
	return domainauth.RouteContext{SignupIntent: p.Signup, Step: p.Step, ReturnTo: p.ReturnTo}
}

// attemptID names the login attempt the params belong to.
func (p CallbackParams) attemptID() string {
	if p.ExpectedState != "" {
		return p.ExpectedState
	}
	return p.State
}

// Outcome is the terminal (or loading) result of a callback attempt.
type Outcome struct {
	State         CallbackState
	Message       string
	Session       *domainauth.Session
	RedirectTo    string
	RedirectAfter time.Duration
	Err           error
}

// CallbackConfig tunes callback delays.
type CallbackConfig struct {
	ErrorRedirectDelay   time.Duration // Default 3s
	TimeoutRedirectDelay time.Duration // Default 2s
	WaitTimeout          time.Duration // Default 5s
}

// CallbackServiceOptions groups dependencies for CallbackService.
type CallbackServiceOptions struct {
	Auth      *AuthService
	Navigator *Navigator
	Metrics   statsd.Sink
	Logger    *slog.Logger
	Config    CallbackConfig
}

// CallbackService turns callback requests into outcomes.
type CallbackService struct {
	auth    *AuthService
	nav     *Navigator
	metrics statsd.Sink
	logger  *slog.Logger
	cfg     CallbackConfig
}

// NewCallbackService constructs a CallbackService.
func NewCallbackService(opts CallbackServiceOptions) *CallbackService {
	if opts.Auth == nil || opts.Navigator == nil {
		panic("service: CallbackService requires Auth and Navigator")
	}
	cfg := opts.Config
	if cfg.ErrorRedirectDelay <= 0 {
		cfg.ErrorRedirectDelay = 3 * time.Second
	}
	if cfg.TimeoutRedirectDelay <= 0 {
		cfg.TimeoutRedirectDelay = 2 * time.Second
	}
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = defaultWaitLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackService{
		auth:    opts.Auth,
		nav:     opts.Navigator,
		metrics: opts.Metrics,
		logger:  logger.With("component", "callback"),
		cfg:     cfg,
	}
}

// Attempt is one run of the callback procedure. Run executes it at most once;
// later calls return the first outcome.
type Attempt struct {
	svc    *CallbackService
	params CallbackParams

	once    sync.Once
	outcome Outcome
}

// NewAttempt prepares an attempt for params.
func (c *CallbackService) NewAttempt(params CallbackParams) *Attempt {
	return &Attempt{svc: c, params: params}
}

// Run executes the attempt on first call and returns its outcome.
func (a *Attempt) Run(ctx context.Context) Outcome {
	a.once.Do(func() {
		a.outcome = a.svc.process(ctx, a.params)
	})
	return a.outcome
}

// Handle runs a fresh attempt for params.
func (c *CallbackService) Handle(ctx context.Context, params CallbackParams) Outcome {
	return c.NewAttempt(params).Run(ctx)
}

func (c *CallbackService) process(ctx context.Context, p CallbackParams) Outcome {
	start := time.Now()

	switch {
	case p.Error != "":
		msg := p.ErrorDescription
		if msg == "" {
			msg = p.Error
		}
		c.logger.InfoContext(ctx, "identity provider returned an error", "error_code", p.Error)
		err := providerRejected(errors.New(p.Error))
		c.emit(metrics.FlowProvider, metrics.ResultError, start, err)
		return c.failure(msg, err)

	case p.Code != "":
		return c.fromCode(ctx, p, start)

	case p.AccessToken != "":
		sess, err := c.auth.CompleteWithAccessToken(ctx, p.AccessToken, p.attemptID())
		if err != nil {
			c.logger.WarnContext(ctx, "access token sign-in failed", "error", err)
			c.emit(metrics.FlowAccessToken, metrics.ResultError, start, err)
			return c.failure(ProviderMessage(err, MsgAuthFailed), err)
		}
		return c.succeed(ctx, sess, p, metrics.FlowAccessToken, start)
	}

	if sess := c.existing(ctx, p.ExistingSessionID); sess != nil {
		return c.succeed(ctx, sess, p, metrics.FlowExisting, start)
	}
	if !c.auth.Sessions().Available() {
		return c.failure(MsgAuthDisabled, ErrAuthUnavailable)
	}
	return Outcome{State: CallbackLoading, Message: MsgSigningYouIn}
}

func (c *CallbackService) fromCode(ctx context.Context, p CallbackParams, start time.Time) Outcome {
	if p.ExpectedState == "" || p.State != p.ExpectedState {
		// a reload after success has lost the state cookie but kept the session
		if sess := c.existing(ctx, p.ExistingSessionID); sess != nil {
			return c.succeed(ctx, sess, p, metrics.FlowExisting, start)
		}
		err := errors.New("oauth state mismatch")
		c.logger.WarnContext(ctx, "callback state mismatch", "has_expected", p.ExpectedState != "")
		c.emit(metrics.FlowCode, metrics.ResultError, start, err)
		return c.failure(MsgInvalidState, err)
	}

	sess, err := c.auth.CompleteLogin(ctx, CompleteLoginInput{
		Code:     p.Code,
		State:    p.State,
		Nonce:    p.Nonce,
		Verifier: p.Verifier,
	})
	if err != nil {
		// consumed code: the first run already signed this browser in
		if existing := c.existing(ctx, p.ExistingSessionID); existing != nil {
			c.logger.InfoContext(ctx, "code exchange failed, using existing session", "error", err)
			return c.succeed(ctx, existing, p, metrics.FlowExisting, start)
		}
		c.logger.WarnContext(ctx, "code exchange failed", "error", err)
		c.emit(metrics.FlowCode, metrics.ResultError, start, err)
		if errors.Is(err, ErrAuthUnavailable) {
			return c.failure(MsgAuthDisabled, err)
		}
		return c.failure(ProviderMessage(err, MsgAuthFailed), err)
	}
	return c.succeed(ctx, sess, p, metrics.FlowCode, start)
}

// Wait blocks for the sign-in of the attempt named by params, bounded by the
// wait timeout. It returns ctx.Err() when ctx ends first.
func (c *CallbackService) Wait(ctx context.Context, p CallbackParams) (Outcome, error) {
	start := time.Now()
	if sess := c.existing(ctx, p.ExistingSessionID); sess != nil {
		return c.succeed(ctx, sess, p, metrics.FlowExisting, start), nil
	}

	sess, err := c.auth.WaitForIdentity(ctx, p.attemptID(), c.cfg.WaitTimeout)
	switch {
	case err == nil:
		return c.succeed(ctx, sess, p, metrics.FlowWait, start), nil
	case errors.Is(err, ErrIdentityTimeout):
		c.emit(metrics.FlowWait, metrics.ResultTimeout, start, err)
		return c.timeout(err), nil
	case errors.Is(err, ErrAuthUnavailable):
		return c.failure(MsgAuthDisabled, err), nil
	case ctx.Err() != nil:
		return Outcome{}, ctx.Err()
	default:
		c.emit(metrics.FlowWait, metrics.ResultError, start, err)
		return c.failure(MsgAuthFailed, err), nil
	}
}

func (c *CallbackService) existing(ctx context.Context, sessionID string) *domainauth.Session {
	if sessionID == "" {
		return nil
	}
	sess, err := c.auth.GetSession(ctx, sessionID)
	if err != nil {
		return nil
	}
	return sess
}

func (c *CallbackService) succeed(ctx context.Context, sess *domainauth.Session, p CallbackParams, flow string, start time.Time) Outcome {
	dest, err := c.nav.Navigate(ctx, sess, p.routeContext())
	if err != nil {
		c.emit(flow, metrics.ResultError, start, err)
		if errors.Is(err, domainauth.ErrNoDashboard) {
			c.logger.InfoContext(ctx, "signed-in user has no role", "user_id", sess.UserID)
			out := c.failure(MsgNoRole, err)
			out.Session = sess
			return out
		}
		return c.timeout(err)
	}
	c.emit(flow, metrics.ResultSuccess, start, nil)
	return Outcome{State: CallbackSuccess, Session: sess, RedirectTo: dest}
}

func (c *CallbackService) failure(msg string, err error) Outcome {
	return Outcome{
		State:         CallbackError,
		Message:       msg,
		RedirectTo:    domainauth.LoginRoute,
		RedirectAfter: c.cfg.ErrorRedirectDelay,
		Err:           err,
	}
}

func (c *CallbackService) timeout(err error) Outcome {
	return Outcome{
		State:         CallbackError,
		Message:       MsgAuthFailed,
		RedirectTo:    domainauth.LoginRoute,
		RedirectAfter: c.cfg.TimeoutRedirectDelay,
		Err:           err,
	}
}

func (c *CallbackService) emit(flow, result string, start time.Time, err error) {
	metrics.EmitCallbackOutcome(c.metrics, metrics.CallbackMetric{
		Flow:     flow,
		Result:   result,
		Duration: time.Since(start),
		Err:      err,
	})
}
