// Package session tracks who is acting: the resolved identity, or an explicit
// anonymous state, plus the loading phase in between.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/AnTengye/contractdesk/model"
	"golang.org/x/sync/singleflight"
)

// State of a session
type State int

const (
	StateUninitialized State = iota
	StateLoading
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateLoading:
		return "loading"
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Loaded reports whether identity resolution has finished
func (s State) Loaded() bool {
	return s == StateAuthenticated || s == StateAnonymous
}

// Resolver looks up the identity behind a session. A nil identity with a nil
// error means nobody is signed in.
type Resolver func(ctx context.Context) (*model.Identity, error)

// Credentials presented at sign-in
type Credentials struct {
	Email    string
	Password string
}

// Grant is the result of a successful credential exchange
type Grant struct {
	Identity  *model.Identity
	Token     string
	ExpiresAt time.Time
}

// CredentialExchanger trades credentials for a grant and revokes grants
type CredentialExchanger interface {
	SignIn(ctx context.Context, creds Credentials) (*Grant, error)
	SignOut(ctx context.Context, token string) error
}

// Listener is told about every state transition.
// Listeners run synchronously and must not transition the session themselves.
type Listener func(from, to State, identity *model.Identity)

// Context is the session of one actor
type Context struct {
	exchanger CredentialExchanger

	mu        sync.RWMutex
	state     State
	identity  *model.Identity
	token     string
	listeners map[int]Listener
	nextID    int

	// serializes transitions with their notifications so listeners see them in order
	emitMu sync.Mutex
	group  singleflight.Group
}

// New returns an uninitialized session. exchanger may be nil when the
// session is only ever initialized from an existing token.
func New(exchanger CredentialExchanger) *Context {
	return &Context{
		exchanger: exchanger,
		listeners: make(map[int]Listener),
	}
}

// WithToken returns an uninitialized session that remembers token for SignOut
func WithToken(exchanger CredentialExchanger, token string) *Context {
	c := New(exchanger)
	c.token = token
	return c
}

// Initialize resolves the identity once. Concurrent callers share the same
// resolution and a session that already left Uninitialized is not resolved
// again. A resolver failure leaves the session anonymous.
func (c *Context) Initialize(ctx context.Context, resolve Resolver) error {
	_, err, _ := c.group.Do("init", func() (any, error) {
		if !c.transitionFrom(StateUninitialized, StateLoading, nil) {
			return nil, nil
		}

		identity, err := resolve(ctx)
		if err != nil {
			c.transition(StateAnonymous, nil)
			return nil, asExternal("identity", err)
		}
		if identity == nil {
			c.transition(StateAnonymous, nil)
			return nil, nil
		}
		c.transition(StateAuthenticated, cloneIdentity(identity))
		return nil, nil
	})
	return err
}

// SignIn exchanges creds and authenticates the session on success.
// Rejected credentials are reported as ErrInvalidCredentials and leave the state as it was.
func (c *Context) SignIn(ctx context.Context, creds Credentials) (*Grant, error) {
	if c.exchanger == nil {
		return nil, &model.ExternalServiceError{Service: "auth", Err: errors.New("no credential exchanger")}
	}

	grant, err := c.exchanger.SignIn(ctx, creds)
	if err != nil {
		return nil, asExternal("auth", err)
	}

	c.mu.Lock()
	c.token = grant.Token
	c.mu.Unlock()
	c.transition(StateAuthenticated, cloneIdentity(grant.Identity))
	return grant, nil
}

// SignOut revokes the session token and makes the session anonymous.
// The session is anonymous afterwards even when revocation failed.
func (c *Context) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.mu.Unlock()

	var err error
	if token != "" && c.exchanger != nil {
		if xerr := c.exchanger.SignOut(ctx, token); xerr != nil {
			err = asExternal("auth", xerr)
		}
	}
	c.transition(StateAnonymous, nil)
	return err
}

// State returns the current state
func (c *Context) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsLoading reports whether the identity is not resolved yet
func (c *Context) IsLoading() bool {
	return !c.State().Loaded()
}

// CurrentIdentity returns a copy of the signed-in identity
func (c *Context) CurrentIdentity() (*model.Identity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateAuthenticated {
		return nil, false
	}
	return cloneIdentity(c.identity), true
}

// Token returns the bearer token backing the session, if any
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Authorize checks the identity against roles
func (c *Context) Authorize(roles ...model.Role) error {
	return c.AuthorizeAction("access this resource", roles...)
}

// AuthorizeAction is Authorize with the attempted action named in the error.
// It returns ErrSessionLoading while the decision cannot be made yet.
func (c *Context) AuthorizeAction(action string, roles ...model.Role) error {
	c.mu.RLock()
	state, identity := c.state, c.identity
	c.mu.RUnlock()

	if !state.Loaded() {
		return model.ErrSessionLoading
	}
	if state == StateAuthenticated && model.HasRole(identity, roles...) {
		return nil
	}
	return &model.AuthorizationError{Action: action, Required: roles}
}

// Subscribe registers l and returns a function that removes it
func (c *Context) Subscribe(l Listener) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = l
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Context) transition(to State, identity *model.Identity) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	from := c.state
	c.state = to
	c.identity = identity
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, from, to, identity)
}

// transitionFrom moves to `to` only when the session is currently in `from`
func (c *Context) transitionFrom(from, to State, identity *model.Identity) bool {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()

	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.state = to
	c.identity = identity
	listeners := c.snapshotListeners()
	c.mu.Unlock()

	notify(listeners, from, to, identity)
	return true
}

// must be called with mu held
func (c *Context) snapshotListeners() []Listener {
	ids := make([]int, 0, len(c.listeners))
	for id := range c.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]Listener, len(ids))
	for i, id := range ids {
		out[i] = c.listeners[id]
	}
	return out
}

func notify(listeners []Listener, from, to State, identity *model.Identity) {
	for _, l := range listeners {
		l(from, to, cloneIdentity(identity))
	}
}

func asExternal(service string, err error) error {
	var x *model.ExternalServiceError
	if errors.As(err, &x) ||
		errors.Is(err, model.ErrInvalidCredentials) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &model.ExternalServiceError{Service: service, Err: err}
}

func cloneIdentity(identity *model.Identity) *model.Identity {
	if identity == nil {
		return nil
	}
	cp := *identity
	return &cp
}
