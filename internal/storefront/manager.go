package storefront

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ikkim/storefront/internal/catalog"
	"github.com/ikkim/storefront/internal/payment"
	"github.com/ikkim/storefront/internal/search"
	"github.com/ikkim/storefront/internal/tokenstore"
	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/ikkim/storefront/pkg/logger"
	"golang.org/x/sync/singleflight"
)

var ErrEmptySessionID = errors.New("visitor session id is required")

// Options configures a Manager.
type Options struct {
	Backend       *apiclient.Client
	Store         tokenstore.Store
	Catalog       *catalog.Service
	Pusher        Pusher
	Variant       payment.Variant
	Debounce      time.Duration
	SearchTimeout time.Duration
	LoginPath     string
}

// Manager owns the live visitor sessions.
type Manager struct {
	base          *apiclient.Client
	store         tokenstore.Store
	catalog       *catalog.Service
	pusher        Pusher
	variant       payment.Variant
	debounce      time.Duration
	searchTimeout time.Duration
	loginPath     string
	log           *logger.Logger
	now           func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
	building singleflight.Group
}

func NewManager(opts Options) *Manager {
	if opts.Debounce <= 0 {
		opts.Debounce = search.DefaultQuiet
	}
	if opts.SearchTimeout <= 0 {
		opts.SearchTimeout = 10 * time.Second
	}
	if opts.LoginPath == "" {
		opts.LoginPath = "/login"
	}
	if opts.Catalog == nil {
		opts.Catalog = catalog.NewService(opts.Backend, nil, 0)
	}
	return &Manager{
		base:          opts.Backend,
		store:         opts.Store,
		catalog:       opts.Catalog,
		pusher:        opts.Pusher,
		variant:       opts.Variant,
		debounce:      opts.Debounce,
		searchTimeout: opts.SearchTimeout,
		loginPath:     opts.LoginPath,
		log:           logger.WithContext(logger.Fields{"component": "storefront"}),
		now:           time.Now,
		sessions:      make(map[string]*Session),
	}
}

// SetPusher installs the push channel. It must be called before the first Get.
func (m *Manager) SetPusher(p Pusher) {
	m.pusher = p
}

// Get returns the session for sid, building it and resolving its auth state
// on first use.
func (m *Manager) Get(ctx context.Context, sid string) (*Session, error) {
	if sid == "" {
		return nil, ErrEmptySessionID
	}

	m.mu.RLock()
	sess, ok := m.sessions[sid]
	m.mu.RUnlock()
	if ok {
		sess.touch(m.now())
		return sess, nil
	}

	v, err, _ := m.building.Do(sid, func() (interface{}, error) {
		m.mu.RLock()
		existing, ok := m.sessions[sid]
		m.mu.RUnlock()
		if ok {
			return existing, nil
		}

		sess := m.newSession(sid)
		if err := sess.Auth.Init(context.WithoutCancel(ctx)); err != nil {
			m.log.Debug("Visitor credential rejected at startup", logger.Fields{
				"session_id": shortID(sid),
				"error":      err.Error(),
			})
		}

		m.mu.Lock()
		m.sessions[sid] = sess
		m.mu.Unlock()
		return sess, nil
	})
	if err != nil {
		return nil, err
	}

	sess = v.(*Session)
	sess.touch(m.now())
	return sess, nil
}

// Lookup returns a live session without creating one.
func (m *Manager) Lookup(sid string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[sid]
	return sess, ok
}

// Len is the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops sessions not seen for idle. Persisted credentials stay, so a
// returning visitor is restored by the next Get.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)

	m.mu.Lock()
	var dropped []*Session
	for sid, sess := range m.sessions {
		if sess.LastSeen().Before(cutoff) {
			dropped = append(dropped, sess)
			delete(m.sessions, sid)
		}
	}
	m.mu.Unlock()

	for _, sess := range dropped {
		sess.Search.Stop()
	}
	if len(dropped) > 0 {
		m.log.Info("Swept idle visitor sessions", logger.Fields{
			"dropped":   len(dropped),
			"remaining": m.Len(),
		})
	}
	return len(dropped)
}

// RefreshCatalog reloads the shared product cache.
func (m *Manager) RefreshCatalog(ctx context.Context) error {
	products, err := m.catalog.RefreshProducts(ctx)
	if err != nil {
		return err
	}
	m.log.Debug("Catalog cache refreshed", logger.Fields{"products": len(products)})
	return nil
}

// Catalog is the shared anonymous catalog client.
func (m *Manager) Catalog() *catalog.Service {
	return m.catalog
}
