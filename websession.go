// Package websession implements the client side session of the HR application: it restores
// a persisted token at startup, signs users in and out, tracks the tenant a cross-tenant
// administrator works on, and notifies subscribers about every change.
package websession

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/cccteam/ccc"
	"github.com/cccteam/logger"
	"github.com/cccteam/websession/api"
	"github.com/cccteam/websession/claims"
	"github.com/cccteam/websession/kvstore"
	"github.com/cccteam/websession/metrics"
	"github.com/cccteam/websession/roles"
	"github.com/cccteam/websession/sessioninfo"
	"github.com/go-playground/errors/v5"
	"github.com/gofrs/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultLoginMessage = "Login failed"

// ErrUnauthenticated is returned by operations that need a signed-in user.
var ErrUnauthenticated = errors.New("not authenticated")

// Reason names the cause of a session change.
type Reason string

// Reasons reported with an Event.
const (
	ReasonRestored       Reason = "restored"
	ReasonLoggedIn       Reason = "logged-in"
	ReasonLoggedOut      Reason = "logged-out"
	ReasonExpired        Reason = "expired"
	ReasonTenantChanged  Reason = "tenant-changed"
	ReasonProfileUpdated Reason = "profile-updated"
)

// Event is delivered to subscribers after every session change.
type Event struct {
	Snapshot sessioninfo.Snapshot
	Reason   Reason
}

// LoginResult is the outcome of Login. Message is set when OK is false.
type LoginResult struct {
	OK      bool
	Message string
	// Encrypted reports whether the password left the client encrypted.
	Encrypted bool
}

// Controller owns the session state. It is safe for concurrent use.
type Controller struct {
	backend         Backend
	store           kvstore.Store
	encryptor       Encryptor
	decoder         TokenDecoder
	navigator       Navigator
	metrics         *metrics.Collector
	now             func() time.Time
	timeout         time.Duration
	defaultLanguage string

	mu        sync.RWMutex
	state     sessioninfo.State
	token     string
	user      *sessioninfo.User
	tenant    sessioninfo.TenantContext
	sessionID string
	expiresAt *time.Time
	tenantSeq uint64

	subMu   sync.Mutex
	subs    map[uint64]func(Event)
	nextSub uint64

	wg sync.WaitGroup
}

// New returns a Controller in the Restoring state. Call Restore once at startup.
func New(backend Backend, store kvstore.Store, encryptor Encryptor, options ...Option) *Controller {
	c := &Controller{
		backend:         backend,
		store:           store,
		encryptor:       encryptor,
		decoder:         claims.Unverified{},
		navigator:       NavigatorFunc(func(context.Context) {}),
		now:             time.Now,
		timeout:         10 * time.Second,
		defaultLanguage: "en",
		state:           sessioninfo.Restoring,
		subs:            make(map[uint64]func(Event)),
	}
	for _, opt := range options {
		opt(c)
	}

	return c
}

// Restore rebuilds the session from the persisted token. It does not call the backend:
// a missing, malformed or expired token leaves the session unauthenticated and is removed.
func (c *Controller) Restore(ctx context.Context) sessioninfo.Snapshot {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	c.mu.Lock()
	c.state = sessioninfo.Restoring
	c.mu.Unlock()

	raw, ok, err := c.store.Get(ctx, kvstore.KeyToken)
	if err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Get()"))
	}
	if err != nil || !ok || raw == "" {
		return c.restoredAnonymous(ctx)
	}

	cl, err := c.decoder.Decode(ctx, raw)
	if err != nil {
		logger.FromCtx(ctx).Warnf("discarding unreadable session token: %v", err)
		c.forget(ctx)

		return c.restoredAnonymous(ctx)
	}
	if cl.Expired(c.now()) {
		logger.FromCtx(ctx).Infof("discarding expired session token of user %d", cl.UserID)
		c.forget(ctx)

		return c.restoredAnonymous(ctx)
	}

	user := userFromClaims(cl)
	var tenant sessioninfo.TenantContext
	if user.Role.CrossTenant() {
		tenant.SelectedTenantID = c.persistedTenant(ctx)
	} else {
		tenant = tenantFromClaims(cl)
	}

	sessionID := newSessionID(ctx)
	ctx = withSessionLogger(ctx, sessionID)
	span.SetAttributes(attribute.Int64("user.id", user.ID), attribute.String("user.role", user.Role.String()))

	c.backend.SetToken(raw)

	c.mu.Lock()
	c.state = sessioninfo.Authenticated
	c.token = raw
	c.user = user
	c.tenant = tenant
	c.sessionID = sessionID
	c.expiresAt = expiry(cl)
	c.tenantSeq++
	seq := c.tenantSeq
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	logger.FromCtx(ctx).Infof("restored session of user %d", user.ID)
	c.publish(Event{Snapshot: snapshot, Reason: ReasonRestored})

	if user.Role.CrossTenant() && tenant.SelectedTenantID != nil {
		c.resolveTenantName(ctx, seq, *tenant.SelectedTenantID)
	}

	return snapshot
}

func (c *Controller) restoredAnonymous(ctx context.Context) sessioninfo.Snapshot {
	c.backend.ClearToken()

	c.mu.Lock()
	c.resetLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	logger.FromCtx(ctx).Debug("no session to restore")
	c.publish(Event{Snapshot: snapshot, Reason: ReasonRestored})

	return snapshot
}

// persistedTenant returns the stored tenant selection. An unparsable value is removed.
func (c *Controller) persistedTenant(ctx context.Context) *int64 {
	v, ok, err := c.store.Get(ctx, kvstore.KeySelectedCompanyID)
	if err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Get()"))

		return nil
	}
	if !ok || v == "" {
		return nil
	}

	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		logger.FromCtx(ctx).Warnf("discarding invalid tenant selection %q", v)
		if err := c.store.Delete(ctx, kvstore.KeySelectedCompanyID); err != nil {
			logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Delete()"))
		}

		return nil
	}

	return &id
}

// Login signs the user in. It never returns an error: failures are reported through
// LoginResult.Message, preferring the validation messages of the backend, then its
// generic message, then a fixed default.
func (c *Controller) Login(ctx context.Context, email, password string) LoginResult {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	enc, err := c.encryptor.Encrypt(ctx, password)
	if err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "Encryptor.Encrypt()"))

		return c.loginFailed(defaultLoginMessage, false)
	}

	res, err := c.backend.Login(ctx, &api.LoginRequest{Email: email, Password: enc.Value})
	if err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		logger.FromCtx(ctx).Infof("login failed for %s: %v", email, err)

		msg := api.FieldMessages(err)
		if msg == "" {
			msg = api.Message(err)
		}
		if msg == "" {
			msg = defaultLoginMessage
		}

		return c.loginFailed(msg, enc.Encrypted)
	}

	cl, err := c.decoder.Decode(ctx, res.Token)
	if err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "TokenDecoder.Decode()"))

		return c.loginFailed(defaultLoginMessage, enc.Encrypted)
	}
	if cl.Expired(c.now()) {
		logger.FromCtx(ctx).Warnf("login for %s returned a token that expired %s ago", email, -cl.ExpiresIn(c.now()).Round(time.Second))

		return c.loginFailed(defaultLoginMessage, enc.Encrypted)
	}

	user, err := userFromLogin(res, cl)
	if err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "userFromLogin()"))

		return c.loginFailed(defaultLoginMessage, enc.Encrypted)
	}

	var tenant sessioninfo.TenantContext
	if !user.Role.CrossTenant() {
		tenant = tenantFromClaims(cl)
		if res.CompanyID != nil {
			id := *res.CompanyID
			tenant.SelectedTenantID = &id
		}
		if res.CompanyName != "" {
			tenant.TenantName = res.CompanyName
		}
	}

	sessionID := newSessionID(ctx)
	ctx = withSessionLogger(ctx, sessionID)
	span.SetAttributes(attribute.Int64("user.id", user.ID), attribute.String("user.role", user.Role.String()))

	if err := c.store.Set(ctx, kvstore.KeyToken, res.Token); err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Set()"))
	}
	if err := c.store.Delete(ctx, kvstore.KeySelectedCompanyID); err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Delete()"))
	}
	c.backend.SetToken(res.Token)

	c.mu.Lock()
	c.state = sessioninfo.Authenticated
	c.token = res.Token
	c.user = user
	c.tenant = tenant
	c.sessionID = sessionID
	c.expiresAt = expiry(cl)
	c.tenantSeq++
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if !enc.Encrypted {
		logger.FromCtx(ctx).Warnf("user %d signed in without password encryption", user.ID)
	}
	logger.FromCtx(ctx).Infof("user %d signed in as %s", user.ID, user.Role)
	c.metrics.Login(true)
	c.publish(Event{Snapshot: snapshot, Reason: ReasonLoggedIn})

	return LoginResult{OK: true, Encrypted: enc.Encrypted}
}

func (c *Controller) loginFailed(msg string, encrypted bool) LoginResult {
	c.metrics.Login(false)

	return LoginResult{Message: msg, Encrypted: encrypted}
}

// Logout ends the session and navigates to the login view. Calling it without a session
// only navigates.
func (c *Controller) Logout(ctx context.Context) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	c.end(ctx, ReasonLoggedOut)
}

// CheckExpiry ends the session when its token has expired and reports whether it did.
func (c *Controller) CheckExpiry(ctx context.Context) bool {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	c.mu.RLock()
	expired := c.state == sessioninfo.Authenticated && c.expiresAt != nil && !c.now().Before(*c.expiresAt)
	c.mu.RUnlock()

	if !expired {
		return false
	}

	logger.FromCtx(ctx).Info("session token expired")
	c.end(ctx, ReasonExpired)

	return true
}

func (c *Controller) end(ctx context.Context, reason Reason) {
	c.forget(ctx)
	c.backend.ClearToken()

	c.mu.Lock()
	wasAuthenticated := c.state == sessioninfo.Authenticated
	c.resetLocked()
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if wasAuthenticated {
		c.publish(Event{Snapshot: snapshot, Reason: reason})
	}

	c.navigator.ToLogin(ctx)
}

// forget removes the token and the tenant selection from storage.
func (c *Controller) forget(ctx context.Context) {
	for _, key := range []string{kvstore.KeyToken, kvstore.KeySelectedCompanyID} {
		if err := c.store.Delete(ctx, key); err != nil {
			logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Delete()"))
		}
	}
}

// SwitchTenant selects the tenant a cross-tenant user works on; nil clears the selection.
// The new id is applied at once and its display name is looked up in the background.
// For every other role the call is ignored.
func (c *Controller) SwitchTenant(ctx context.Context, tenantID *int64) {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	c.mu.Lock()
	if c.state != sessioninfo.Authenticated || !c.user.Role.CrossTenant() {
		role := c.roleLocked()
		c.mu.Unlock()
		logger.FromCtx(ctx).Infof("ignoring tenant switch for role %q", role)

		return
	}
	c.tenantSeq++
	seq := c.tenantSeq
	c.tenant = sessioninfo.TenantContext{}
	if tenantID != nil {
		id := *tenantID
		c.tenant.SelectedTenantID = &id
	}
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	if tenantID == nil {
		if err := c.store.Delete(ctx, kvstore.KeySelectedCompanyID); err != nil {
			logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Delete()"))
		}
	} else {
		span.SetAttributes(attribute.Int64("tenant.id", *tenantID))
		if err := c.store.Set(ctx, kvstore.KeySelectedCompanyID, strconv.FormatInt(*tenantID, 10)); err != nil {
			logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Set()"))
		}
	}

	c.publish(Event{Snapshot: snapshot, Reason: ReasonTenantChanged})

	if tenantID != nil {
		c.resolveTenantName(ctx, seq, *tenantID)
	}
}

// resolveTenantName looks up the name of tenantID in the background. The result is
// dropped when the selection changed in the meantime.
func (c *Controller) resolveTenantName(ctx context.Context, seq uint64, tenantID int64) {
	ctx = context.WithoutCancel(ctx)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		company, err := c.backend.Company(ctx, tenantID)
		if err != nil {
			logger.FromCtx(ctx).Errorf("failed to load name of tenant %d: %v", tenantID, err)

			return
		}

		c.mu.Lock()
		if seq != c.tenantSeq || c.state != sessioninfo.Authenticated {
			c.mu.Unlock()
			logger.FromCtx(ctx).Debugf("discarding name of tenant %d, selection changed", tenantID)

			return
		}
		c.tenant.TenantName = company.Name
		snapshot := c.snapshotLocked()
		c.mu.Unlock()

		c.publish(Event{Snapshot: snapshot, Reason: ReasonTenantChanged})
	}()
}

// RefreshProfile merges the full profile of the signed-in user into the session.
// Empty profile fields keep their current value; id and role never change. A token
// the backend no longer accepts ends the session as expired.
func (c *Controller) RefreshProfile(ctx context.Context) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	c.mu.RLock()
	sessionID := c.sessionID
	authenticated := c.state == sessioninfo.Authenticated
	c.mu.RUnlock()
	if !authenticated {
		return ErrUnauthenticated
	}

	profile, err := c.backend.Profile(ctx)
	if err != nil {
		if api.HasStatus(err, http.StatusUnauthorized) {
			logger.FromCtx(ctx).Infof("backend rejected the session token: %v", err)
			c.end(ctx, ReasonExpired)

			return ErrUnauthenticated
		}

		return errors.Wrap(err, "Backend.Profile()")
	}

	c.mu.Lock()
	if c.state != sessioninfo.Authenticated || c.sessionID != sessionID {
		c.mu.Unlock()

		return ErrUnauthenticated
	}
	u := *c.user
	mergeString(&u.Email, profile.Email)
	mergeString(&u.FirstName, profile.FirstName)
	mergeString(&u.LastName, profile.LastName)
	mergeString(&u.ProfilePictureURL, profile.ProfilePictureURL)
	c.user = &u
	snapshot := c.snapshotLocked()
	c.mu.Unlock()

	c.publish(Event{Snapshot: snapshot, Reason: ReasonProfileUpdated})

	return nil
}

// Language returns the stored UI language, or the default language.
func (c *Controller) Language(ctx context.Context) string {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	v, ok, err := c.store.Get(ctx, kvstore.KeyLanguage)
	if err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "kvstore.Store.Get()"))

		return c.defaultLanguage
	}
	if !ok || v == "" {
		return c.defaultLanguage
	}

	return v
}

// SetLanguage stores the UI language. An empty code restores the default.
func (c *Controller) SetLanguage(ctx context.Context, code string) error {
	ctx, span := ccc.StartTrace(ctx)
	defer span.End()

	if code == "" {
		if err := c.store.Delete(ctx, kvstore.KeyLanguage); err != nil {
			return errors.Wrap(err, "kvstore.Store.Delete()")
		}

		return nil
	}

	if err := c.store.Set(ctx, kvstore.KeyLanguage, code); err != nil {
		return errors.Wrap(err, "kvstore.Store.Set()")
	}

	return nil
}

// HasRole reports whether the signed-in user has role r.
func (c *Controller) HasRole(r roles.Role) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state == sessioninfo.Authenticated && c.user.Role == r
}

// HasAnyRole reports whether the signed-in user has one of rs.
func (c *Controller) HasAnyRole(rs ...roles.Role) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.state == sessioninfo.Authenticated && roles.Collection(rs).Contains(c.user.Role)
}

// Snapshot returns a copy of the current session.
func (c *Controller) Snapshot() sessioninfo.Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.snapshotLocked()
}

// Subscribe registers fn for every later session change. fn is called without
// internal locks held and must not block for long.
func (c *Controller) Subscribe(fn func(Event)) (unsubscribe func()) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn

	var once sync.Once

	return func() {
		once.Do(func() {
			c.subMu.Lock()
			defer c.subMu.Unlock()

			delete(c.subs, id)
		})
	}
}

// Wait blocks until background lookups have finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) publish(e Event) {
	c.subMu.Lock()
	subs := make([]func(Event), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()

	for _, fn := range subs {
		fn(e)
	}
}

func (c *Controller) resetLocked() {
	c.state = sessioninfo.Unauthenticated
	c.token = ""
	c.user = nil
	c.tenant = sessioninfo.TenantContext{}
	c.sessionID = ""
	c.expiresAt = nil
	c.tenantSeq++
}

func (c *Controller) roleLocked() roles.Role {
	if c.user == nil {
		return ""
	}

	return c.user.Role
}

func (c *Controller) snapshotLocked() sessioninfo.Snapshot {
	return sessioninfo.Snapshot{
		State:     c.state,
		Token:     c.token,
		User:      c.user,
		Tenant:    c.tenant,
		SessionID: c.sessionID,
	}.Clone()
}

func userFromClaims(cl *claims.Claims) *sessioninfo.User {
	return &sessioninfo.User{
		ID:        cl.UserID,
		Email:     cl.Email,
		FirstName: cl.FirstName,
		LastName:  cl.LastName,
		Role:      cl.Role,
	}
}

// userFromLogin prefers the profile fields of the login response and falls back to the
// token claims. The role always comes from the token; a response naming another role is rejected.
func userFromLogin(res *api.LoginResponse, cl *claims.Claims) (*sessioninfo.User, error) {
	u := userFromClaims(cl)
	if res.ID != 0 {
		u.ID = res.ID
	}
	mergeString(&u.Email, res.Email)
	mergeString(&u.FirstName, res.FirstName)
	mergeString(&u.LastName, res.LastName)
	if res.Role != "" {
		role, err := roles.Parse(res.Role)
		if err != nil {
			return nil, errors.Wrap(err, "roles.Parse()")
		}
		if role != u.Role {
			return nil, errors.Newf("login response role %s does not match token role %s", role, u.Role)
		}
	}
	if u.ID == 0 {
		return nil, errors.New("login response carries no user id")
	}

	return u, nil
}

func tenantFromClaims(cl *claims.Claims) sessioninfo.TenantContext {
	var t sessioninfo.TenantContext
	if cl.CompanyID != nil {
		id := *cl.CompanyID
		t.SelectedTenantID = &id
	}
	t.TenantName = cl.CompanyName

	return t
}

func expiry(cl *claims.Claims) *time.Time {
	if cl.ExpiresAt == nil {
		return nil
	}
	t := cl.ExpiresAt.Time

	return &t
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func newSessionID(ctx context.Context) string {
	id, err := uuid.NewV4()
	if err != nil {
		logger.FromCtx(ctx).Error(errors.Wrap(err, "uuid.NewV4()"))

		return ""
	}

	return id.String()
}

// withSessionLogger adds the session ID to the logging context.
func withSessionLogger(ctx context.Context, sessionID string) context.Context {
	l := logger.FromCtx(ctx).WithAttributes().AddAttribute("session ID", sessionID).Logger()

	return logger.NewCtx(ctx, l)
}
