package session

import (
	"sync"

	"github.com/AnTengye/contractdesk/model"
)

// Redirector sends the actor somewhere else
type Redirector interface {
	Redirect(target string)
}

// RedirectFunc adapts a function to Redirector
type RedirectFunc func(target string)

func (f RedirectFunc) Redirect(target string) { f(target) }

// Guard protects a role-restricted page. It decides once, as soon as the
// session is loaded: an identity holding one of the roles may stay, anyone
// else is redirected to the fallback. It never decides while loading.
type Guard struct {
	redirector Redirector
	fallback   string
	roles      []model.Role

	once        sync.Once
	mu          sync.Mutex
	closed      bool
	decided     bool
	redirected  bool
	unsubscribe func()
}

// NewGuard watches s. If s is already loaded the decision is taken before NewGuard returns.
func NewGuard(s *Context, redirector Redirector, fallback string, roles ...model.Role) *Guard {
	g := &Guard{
		redirector: redirector,
		fallback:   fallback,
		roles:      roles,
	}

	g.unsubscribe = s.Subscribe(func(from, to State, identity *model.Identity) {
		if from == StateLoading && to.Loaded() {
			g.decide(to, identity)
		}
	})

	// the listener covers transitions from now on; a session that is
	// already loaded gets evaluated here
	if state := s.State(); state.Loaded() {
		identity, _ := s.CurrentIdentity()
		g.decide(state, identity)
	}
	return g
}

func (g *Guard) decide(state State, identity *model.Identity) {
	g.once.Do(func() {
		g.mu.Lock()
		if g.closed {
			g.mu.Unlock()
			return
		}
		g.decided = true
		allowed := state == StateAuthenticated && model.HasRole(identity, g.roles...)
		g.redirected = !allowed
		g.mu.Unlock()

		if !allowed {
			g.redirector.Redirect(g.fallback)
		}
	})
}

// Decided reports whether the guard has evaluated the session
func (g *Guard) Decided() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.decided
}

// Redirected reports whether the guard sent the actor away
func (g *Guard) Redirected() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.redirected
}

// Close detaches the guard from its session
func (g *Guard) Close() {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	g.unsubscribe()
}
