package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/jmcleod/fitx/authclient"
	"github.com/jmcleod/fitx/identity"
	"github.com/jmcleod/fitx/tokenstore"
)

// Remote is the subset of the auth client the authority depends on.
// *authclient.Client satisfies it.
type Remote interface {
	Login(ctx context.Context, email, password string) (*authclient.Grant, error)
	Register(ctx context.Context, p identity.Profile) (*authclient.Grant, error)
	FetchCurrentIdentity(ctx context.Context, token string) (*authclient.Grant, error)
}

// Revoker is implemented by remotes that can invalidate a token
// server-side. Revocation is always best-effort.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}

var _ Remote = (*authclient.Client)(nil)
var _ Revoker = (*authclient.Client)(nil)

// Authority is the single owner of session state.
type Authority struct {
	store   tokenstore.Store
	remote  Remote
	targets Targets
	timeout time.Duration
	logger  *slog.Logger

	base context.Context
	stop context.CancelFunc
	bg   sync.WaitGroup

	mu       sync.Mutex
	status   Status
	ident    *identity.Identity
	token    string
	lastErr  string
	inflight bool
	gen      uint64
	cancelOp context.CancelFunc
	closed   bool
}

// operation is one in-flight network attempt. Its result is applied only
// if gen still matches the authority's generation.
type operation struct {
	name    string
	gen     uint64
	ctx     context.Context
	release func()
	// prev is the token stored when the attempt began; a successful
	// attempt replaces and revokes it.
	prev string
}

// New creates an authority. If store already holds a token the authority
// starts in Authenticating and waits for VerifySession; otherwise it
// starts Unauthenticated.
func New(store tokenstore.Store, remote Remote, opts ...Option) *Authority {
	a := &Authority{
		store:   store,
		remote:  remote,
		targets: DefaultTargets(),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		status:  Unauthenticated,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.base, a.stop = context.WithCancel(context.Background())
	if _, ok := store.Load(); ok {
		a.status = Authenticating
	}
	return a
}

// Targets returns the navigation targets in use.
func (a *Authority) Targets() Targets {
	return a.targets
}

// Snapshot returns a copy of the current session state.
func (a *Authority) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Login exchanges credentials for a session. On success the token is
// persisted, any previously stored token is revoked, and the outcome
// carries the role's home target. On failure the session moves to
// AuthError and the store is left untouched.
func (a *Authority) Login(ctx context.Context, email, password string) (Outcome, error) {
	op, err := a.begin(ctx, "login")
	if err != nil {
		return Outcome{Snapshot: a.Snapshot()}, err
	}
	defer op.release()

	grant, err := a.remote.Login(op.ctx, identity.NormalizeEmail(email), password)
	return a.settle(op, grant, err)
}

// Register creates an account and signs in. A grant whose role differs
// from the requested one is rejected and its token revoked.
func (a *Authority) Register(ctx context.Context, p identity.Profile) (Outcome, error) {
	op, err := a.begin(ctx, "register")
	if err != nil {
		return Outcome{Snapshot: a.Snapshot()}, err
	}
	defer op.release()

	p.Email = identity.NormalizeEmail(p.Email)
	grant, err := a.remote.Register(op.ctx, p)
	if err == nil && grant != nil && grant.Identity.Role != p.RequestedRole() {
		a.logger.Warn("registration role mismatch",
			"requested", p.RequestedRole(), "granted", grant.Identity.Role)
		a.revokeAsync(grant.Token)
		msg := MsgRoleMismatch
		if p.RequestedRole() == identity.RoleAdmin {
			msg = MsgAdminNotPermitted
		}
		grant, err = nil, &authclient.Error{Reason: authclient.ReasonUnauthorized, Message: msg}
	}
	return a.settle(op, grant, err)
}

// VerifySession validates a stored token at startup. It acts only while
// the session is Authenticating with nothing in flight; in any other state
// it returns the current snapshot unchanged. Every failure, including
// network errors, clears the stored token.
func (a *Authority) VerifySession(ctx context.Context) (Snapshot, error) {
	a.mu.Lock()
	switch {
	case a.closed:
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, ErrClosed
	case a.status != Authenticating:
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, nil
	case a.inflight:
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, ErrAlreadyInProgress
	}
	token, ok := a.store.Load()
	if !ok {
		a.setLocked("verify", Unauthenticated, nil, "", "")
		snap := a.snapshotLocked()
		a.mu.Unlock()
		return snap, nil
	}
	a.gen++
	op := a.startLocked(ctx, "verify")
	a.mu.Unlock()
	defer op.release()

	grant, err := a.remote.FetchCurrentIdentity(op.ctx, token)
	if err == nil && grant == nil {
		err = &authclient.Error{Reason: authclient.ReasonServerError, Message: "empty identity response"}
	}
	err = normalize(err)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.currentLocked(op) {
		return a.snapshotLocked(), a.staleLocked()
	}
	a.endLocked()
	if err != nil {
		a.store.Clear()
		msg := messageFor(err)
		if authclient.ReasonOf(err) == authclient.ReasonUnauthorized {
			msg = MsgSessionExpired
		}
		a.setLocked(op.name, Unauthenticated, nil, "", msg)
		a.logger.Info("stored session rejected", "reason", authclient.ReasonOf(err))
		return a.snapshotLocked(), err
	}
	if grant.Token != "" && grant.Token != token {
		token = grant.Token
		a.store.Save(token)
	}
	id := grant.Identity
	a.setLocked(op.name, Authenticated, &id, token, "")
	return a.snapshotLocked(), nil
}

// Logout ends the session unconditionally. It is idempotent, always
// succeeds locally, and discards the result of any in-flight operation.
// The server is asked to revoke the token in the background, including a
// stored token that was never verified.
func (a *Authority) Logout() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	prev := a.token
	if prev == "" {
		// Not yet verified, or a failed re-login kept the stored token.
		prev, _ = a.store.Load()
	}
	a.gen++
	if a.cancelOp != nil {
		a.cancelOp()
	}
	a.endLocked()
	a.store.Clear()
	a.setLocked("logout", Unauthenticated, nil, "", "")
	a.revokeLocked(prev)
	return a.snapshotLocked()
}

// ClearError dismisses an AuthError, returning to Unauthenticated.
func (a *Authority) ClearError() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status == AuthError {
		a.setLocked("clear_error", Unauthenticated, nil, "", "")
	}
	return a.snapshotLocked()
}

// Do runs fn with the current token. If fn reports Unauthorized the
// session is expired: the store is cleared and the snapshot becomes
// Unauthenticated with a session-expired message.
func (a *Authority) Do(ctx context.Context, fn func(ctx context.Context, token string) error) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	if a.status != Authenticated {
		a.mu.Unlock()
		return ErrNotAuthenticated
	}
	token, gen := a.token, a.gen
	a.mu.Unlock()

	err := fn(ctx, token)
	if authclient.ReasonOf(err) == authclient.ReasonUnauthorized {
		a.expire(gen)
	}
	return err
}

// Close discards any in-flight result, stops new operations and waits for
// background revocations to finish.
func (a *Authority) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.gen++
	if a.cancelOp != nil {
		a.cancelOp()
	}
	a.endLocked()
	a.mu.Unlock()

	a.stop()
	a.bg.Wait()
}

func (a *Authority) expire(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.gen != gen || a.status != Authenticated {
		return
	}
	a.gen++
	a.store.Clear()
	a.setLocked("expire", Unauthenticated, nil, "", MsgSessionExpired)
}

// begin starts a login or register attempt, clearing any previous error
// and identity.
func (a *Authority) begin(ctx context.Context, name string) (*operation, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil, ErrClosed
	}
	if a.status == Authenticating {
		a.logger.Debug("rejected concurrent attempt", "op", name)
		return nil, ErrAlreadyInProgress
	}
	prev, _ := a.store.Load()
	a.gen++
	a.setLocked(name, Authenticating, nil, "", "")
	op := a.startLocked(ctx, name)
	op.prev = prev
	return op, nil
}

func (a *Authority) startLocked(ctx context.Context, name string) *operation {
	a.inflight = true
	opCtx, cancel := context.WithTimeout(ctx, a.timeout)
	stop := context.AfterFunc(a.base, cancel)
	a.cancelOp = cancel
	return &operation{
		name: name,
		gen:  a.gen,
		ctx:  opCtx,
		release: func() {
			stop()
			cancel()
		},
	}
}

// settle applies the result of a login or register attempt.
func (a *Authority) settle(op *operation, grant *authclient.Grant, err error) (Outcome, error) {
	if err == nil && (grant == nil || grant.Token == "") {
		err = &authclient.Error{Reason: authclient.ReasonServerError, Message: "empty grant"}
	}
	err = normalize(err)

	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.currentLocked(op) {
		if err == nil {
			a.revokeLocked(grant.Token)
		}
		return Outcome{Snapshot: a.snapshotLocked()}, a.staleLocked()
	}
	a.endLocked()
	if err != nil {
		a.setLocked(op.name, AuthError, nil, "", messageFor(err))
		return Outcome{Snapshot: a.snapshotLocked()}, err
	}

	id := grant.Identity
	a.store.Save(grant.Token)
	a.setLocked(op.name, Authenticated, &id, grant.Token, "")
	if op.prev != grant.Token {
		a.revokeLocked(op.prev)
	}
	return Outcome{Snapshot: a.snapshotLocked(), Target: a.targets.Home(id.Role)}, nil
}

func (a *Authority) currentLocked(op *operation) bool {
	return !a.closed && op.gen == a.gen
}

func (a *Authority) staleLocked() error {
	if a.closed {
		return ErrClosed
	}
	return ErrSuperseded
}

func (a *Authority) endLocked() {
	a.inflight = false
	a.cancelOp = nil
}

// setLocked is the only place session fields change, so identity and token
// are always written together.
func (a *Authority) setLocked(op string, status Status, id *identity.Identity, token, lastErr string) {
	from := a.status
	a.status = status
	a.ident = id
	a.token = token
	a.lastErr = lastErr
	if from != status {
		attrs := []any{"op", op, "from", from.String(), "to", status.String()}
		if id != nil {
			attrs = append(attrs, "user_id", id.ID, "role", id.Role)
		}
		a.logger.Info("session transition", attrs...)
	}
}

func (a *Authority) snapshotLocked() Snapshot {
	s := Snapshot{
		Status:    a.status,
		Token:     a.token,
		LastError: a.lastErr,
	}
	if a.ident != nil {
		id := *a.ident
		s.Identity = &id
	}
	return s
}

// revokeAsync asks the server to invalidate token in the background.
func (a *Authority) revokeAsync(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revokeLocked(token)
}

// revokeLocked must run under mu so the WaitGroup is never grown after
// Close has started waiting on it.
func (a *Authority) revokeLocked(token string) {
	r, ok := a.remote.(Revoker)
	if !ok || token == "" || a.closed {
		return
	}
	a.bg.Add(1)
	go func() {
		defer a.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(a.base), a.timeout)
		defer cancel()
		if err := r.Revoke(ctx, token); err != nil {
			a.logger.Debug("best-effort revoke failed", "error", err)
		}
	}()
}
