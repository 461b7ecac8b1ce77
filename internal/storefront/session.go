// Package storefront bundles the per-visitor state containers and keeps one
// bundle per visitor session id.
package storefront

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ikkim/storefront/internal/auth"
	"github.com/ikkim/storefront/internal/cart"
	"github.com/ikkim/storefront/internal/catalog"
	"github.com/ikkim/storefront/internal/orders"
	"github.com/ikkim/storefront/internal/payment"
	"github.com/ikkim/storefront/internal/search"
	"github.com/ikkim/storefront/internal/tokenstore"
	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/ikkim/storefront/pkg/logger"
)

// Push message kinds.
const (
	MessageCart           = "cart"
	MessageSearchResults  = "search_results"
	MessageSessionExpired = "session_expired"
)

// Pusher delivers a message to every live connection of a visitor.
type Pusher interface {
	Push(sessionID, kind string, payload interface{})
}

// SearchResults is the payload of a search_results message.
type SearchResults struct {
	Query    string            `json:"query"`
	Products []catalog.Product `json:"products"`
	Error    string            `json:"error,omitempty"`
}

// Session is the state of one visitor.
type Session struct {
	ID      string
	Creds   *tokenstore.Scoped
	API     *apiclient.Client
	Auth    *auth.Holder
	Cart    *cart.Service
	Payment *payment.Flow
	Catalog *catalog.Service
	Orders  *orders.Service
	Search  *search.Debouncer

	lastSeen atomic.Int64
}

func (s *Session) touch(now time.Time) {
	s.lastSeen.Store(now.UnixNano())
}

// LastSeen is the time of the last Manager.Get for this session.
func (s *Session) LastSeen() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

func (m *Manager) newSession(sid string) *Session {
	log := m.log.WithContext(logger.Fields{"session_id": shortID(sid)})
	creds := tokenstore.For(m.store, sid)

	var holder *auth.Holder
	api := m.base.Bind(creds, func() { holder.HandleUnauthorized() })
	holder = auth.NewHolder(api, creds, log)

	sess := &Session{
		ID:      sid,
		Creds:   creds,
		API:     api,
		Auth:    holder,
		Cart:    cart.NewService(api, holder, log),
		Payment: payment.NewFlow(api, m.variant, log),
		Catalog: m.catalog.WithBackend(api),
		Orders:  orders.NewService(api, log),
	}
	sess.Search = search.NewDebouncer(m.debounce, func(query string) {
		m.runSearch(sess, query)
	})

	holder.Subscribe(func(ctx context.Context, t auth.Transition) {
		switch t.To {
		case auth.StateAuthenticated:
			if _, err := sess.Cart.Fetch(ctx); err != nil {
				log.Warn("Cart fetch after login failed", logger.Fields{"error": err.Error()})
			}
		case auth.StateAnonymous:
			sess.Cart.Reset()
			if t.Reason == auth.ReasonUnauthorized {
				m.push(sid, MessageSessionExpired, map[string]string{"redirect": m.loginPath})
			}
		}
	})
	sess.Cart.OnChange(func(snap cart.Snapshot) {
		m.push(sid, MessageCart, snap)
	})
	return sess
}

func (m *Manager) runSearch(sess *Session, query string) {
	ctx, cancel := context.WithTimeout(context.Background(), m.searchTimeout)
	defer cancel()

	result := SearchResults{Query: query, Products: []catalog.Product{}}
	products, err := sess.Catalog.SearchProducts(ctx, query)
	if err != nil {
		result.Error = apiclient.MessageOf(err, "search failed")
	} else {
		result.Products = products
	}
	m.push(sess.ID, MessageSearchResults, result)
}

func (m *Manager) push(sid, kind string, payload interface{}) {
	if m.pusher != nil {
		m.pusher.Push(sid, kind, payload)
	}
}

func shortID(sid string) string {
	if len(sid) > 8 {
		return sid[:8]
	}
	return sid
}
