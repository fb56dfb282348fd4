// Package session manages the set of configured cluster contexts: lazy
// activation (identity resolution, connection, first cache population),
// the active-context cursor, and teardown.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goyalankit/click/internal/cache"
	"github.com/goyalankit/click/internal/cluster"
	"github.com/goyalankit/click/internal/config"
	"github.com/goyalankit/click/internal/identity"
	"github.com/goyalankit/click/internal/logging"
	"github.com/goyalankit/click/internal/nav"
)

// ErrUnknownContext means the named context is not in the configuration.
var ErrUnknownContext = errors.New("unknown context")

// Status tracks a context's activation state.
type Status string

const (
	StatusNotActivated Status = "not activated"
	StatusActivating   Status = "activating"
	StatusActive       Status = "active"
	StatusFailed       Status = "failed"
)

// Connector turns a context's configuration into a live connection. The
// default resolves the identity and dials; tests substitute fakes.
type Connector func(ctx context.Context, cfg config.Context) (cluster.Interface, error)

// DefaultConnector resolves credential material once and connects.
func DefaultConnector(_ context.Context, cfg config.Context) (cluster.Interface, error) {
	sources, err := cfg.CredentialSources()
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", cfg.Name, err)
	}
	policy, err := cfg.TrustPolicy()
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", cfg.Name, err)
	}
	id, err := identity.Resolve(sources, policy)
	if err != nil {
		return nil, fmt.Errorf("context %s: %w", cfg.Name, err)
	}
	return cluster.Connect(cfg.Name, cfg.Server, id)
}

// activeContext bundles one activated context's connection, cache, and
// refresh-loop lifetime.
type activeContext struct {
	conn        cluster.Interface
	cache       *cache.Cache
	cancel      context.CancelFunc
	status      Status
	err         error
	activatedAt time.Time
}

// ContextStatus is one row of the `ctx` listing.
type ContextStatus struct {
	Name    string
	Server  string
	Status  Status
	Err     error
	Current bool
}

// Session owns all contexts for one REPL run.
type Session struct {
	mu        sync.RWMutex
	configs   []config.Context
	byName    map[string]config.Context
	activated map[string]*activeContext
	active    string

	navState *nav.State
	connect  Connector
	interval time.Duration
	log      *logging.Logger
}

// Option tweaks session construction.
type Option func(*Session)

// WithConnector substitutes the activation path; used by tests.
func WithConnector(fn Connector) Option {
	return func(s *Session) { s.connect = fn }
}

// New builds a session over the loaded configuration. No context is
// activated until the first Switch.
func New(cfg *config.Config, opts ...Option) *Session {
	s := &Session{
		configs:   cfg.Contexts,
		byName:    make(map[string]config.Context, len(cfg.Contexts)),
		activated: map[string]*activeContext{},
		navState:  nav.NewState(),
		connect:   DefaultConnector,
		interval:  cfg.RefreshInterval,
		log:       logging.Get().With("component", "session"),
	}
	for _, c := range cfg.Contexts {
		s.byName[c.Name] = c
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Nav returns the navigation cursor. Owned by the foreground loop.
func (s *Session) Nav() *nav.State { return s.navState }

// Active returns the active context's connection and cache.
func (s *Session) Active() (cluster.Interface, *cache.Cache, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.activated[s.active]
	if !ok || entry.status != StatusActive {
		return nil, nil, false
	}
	return entry.conn, entry.cache, true
}

// Switch makes the named context active, lazily activating it on first
// use, and resets the navigation path to root. A previously failed
// activation is retried. Failure leaves the prior active context usable.
func (s *Session) Switch(ctx context.Context, name string) error {
	cfg, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownContext, name)
	}

	s.mu.RLock()
	entry, activated := s.activated[name]
	s.mu.RUnlock()

	if activated && entry.status == StatusActive {
		s.mu.Lock()
		s.active = name
		s.mu.Unlock()
		s.navState.Bind(name, entry.cache)
		return nil
	}

	entry, err := s.activate(ctx, cfg)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.active = name
	s.mu.Unlock()
	s.navState.Bind(name, entry.cache)
	return nil
}

// activate resolves identity, connects, and performs the first cache
// population. Identity resolution happens here, once per context — never
// per request.
func (s *Session) activate(ctx context.Context, cfg config.Context) (*activeContext, error) {
	s.mu.Lock()
	s.activated[cfg.Name] = &activeContext{status: StatusActivating}
	s.mu.Unlock()

	fail := func(err error) (*activeContext, error) {
		s.mu.Lock()
		s.activated[cfg.Name] = &activeContext{status: StatusFailed, err: err}
		s.mu.Unlock()
		s.log.Warn("context activation failed", "context", cfg.Name, "error", err)
		return nil, err
	}

	s.log.Info("activating context", "context", cfg.Name, "server", cfg.Server)
	conn, err := s.connect(ctx, cfg)
	if err != nil {
		return fail(err)
	}

	contextCache := cache.New(conn.List, s.interval)
	if _, err := contextCache.Refresh(ctx, cluster.KindNamespace, ""); err != nil {
		conn.Close()
		return fail(fmt.Errorf("initial cache population: %w", err))
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	go contextCache.Run(loopCtx)

	entry := &activeContext{
		conn:        conn,
		cache:       contextCache,
		cancel:      cancel,
		status:      StatusActive,
		activatedAt: time.Now(),
	}
	s.mu.Lock()
	s.activated[cfg.Name] = entry
	s.mu.Unlock()
	return entry, nil
}

// Contexts lists every configured context with its activation status, in
// configuration order.
func (s *Session) Contexts() []ContextStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]ContextStatus, 0, len(s.configs))
	for _, cfg := range s.configs {
		status := StatusNotActivated
		var actErr error
		if entry, ok := s.activated[cfg.Name]; ok {
			status = entry.status
			actErr = entry.err
		}
		result = append(result, ContextStatus{
			Name:    cfg.Name,
			Server:  cfg.Server,
			Status:  status,
			Err:     actErr,
			Current: cfg.Name == s.active,
		})
	}
	return result
}

// Close tears down every activated context: refresh loops stop, transports
// release.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, entry := range s.activated {
		if entry.cancel != nil {
			entry.cancel()
		}
		if entry.conn != nil {
			entry.conn.Close()
		}
		delete(s.activated, name)
	}
	s.active = ""
}
