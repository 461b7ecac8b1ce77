package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/ikkim/storefront/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Backend is the subset of apiclient.Client the service calls.
type Backend interface {
	Send(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error)
}

// Session reports whether the visitor is logged in.
type Session interface {
	IsAuthenticated() bool
}

// Service owns one visitor's cart snapshot. Every backend call is tagged with
// a sequence number and a response older than the applied snapshot is dropped.
// The lock is never held across a backend call.
type Service struct {
	api     Backend
	session Session
	log     *logger.Logger

	mu        sync.Mutex
	seq       uint64
	snap      Snapshot
	observers []func(Snapshot)

	fetches singleflight.Group
}

func NewService(api Backend, session Session, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		api:     api,
		session: session,
		log:     log,
		snap:    Snapshot{Items: []LineItem{}, Total: decimal.Zero},
	}
}

// OnChange registers fn to receive every applied snapshot.
func (s *Service) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	s.observers = append(s.observers, fn)
	s.mu.Unlock()
}

// Snapshot returns a copy of the current cart.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.clone()
}

// Reset discards local state. Responses still in flight are dropped when they arrive.
func (s *Service) Reset() {
	s.apply(s.next(), nil, nil, "reset")
}

// Fetch replaces the local cart with the backend's. Concurrent calls share one request.
func (s *Service) Fetch(ctx context.Context) (Snapshot, error) {
	if !s.session.IsAuthenticated() {
		return s.Snapshot(), ErrNotAuthenticated
	}
	v, err, _ := s.fetches.Do("cart", func() (interface{}, error) {
		return s.fetch(ctx)
	})
	if err != nil {
		return s.Snapshot(), err
	}
	return v.(Snapshot), nil
}

func (s *Service) fetch(ctx context.Context) (Snapshot, error) {
	seq := s.next()

	raw, err := s.api.Send(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		if apiclient.IsNotFound(err) {
			s.apply(seq, []LineItem{}, nil, "fetch")
			return s.Snapshot(), nil
		}
		return s.Snapshot(), s.fail("fetch", err)
	}

	p, err := normalize(raw)
	if err != nil {
		s.log.Error("Failed to parse cart response", err)
		return s.Snapshot(), &OperationError{Op: "fetch", Message: "unexpected cart response", Err: err}
	}
	s.warnDropped("fetch", p)
	s.apply(seq, p.Items, p.ServerTotal, "fetch")
	return s.Snapshot(), nil
}

// Add posts a line to the backend. A duplicate key is merged by the backend.
func (s *Service) Add(ctx context.Context, in AddInput) (Snapshot, error) {
	if !s.session.IsAuthenticated() {
		return s.Snapshot(), ErrNotAuthenticated
	}
	if in.ProductID == "" || in.Quantity < 1 {
		return s.Snapshot(), fmt.Errorf("%w: product id and a quantity of at least 1 are required", ErrInvalidItem)
	}

	s.log.Info("Adding item to cart", map[string]interface{}{
		"product_id": in.ProductID,
		"variant":    in.Variant,
		"packaging":  in.Packaging,
		"quantity":   in.Quantity,
	})
	return s.mutate(ctx, "add", http.MethodPost, "/cart/add", in)
}

// UpdateQuantity applies delta to the line with key k. A result below 1
// removes the line instead.
func (s *Service) UpdateQuantity(ctx context.Context, k Key, delta int) (Snapshot, error) {
	if !s.session.IsAuthenticated() {
		return s.Snapshot(), ErrNotAuthenticated
	}

	line, ok := s.Snapshot().Find(k)
	if !ok {
		s.log.Warn("Quantity change for a line missing locally", map[string]interface{}{
			"product_id": k.ProductID,
			"variant":    k.Variant,
			"packaging":  k.Packaging,
		})
		return s.Snapshot(), ErrItemNotFound
	}

	quantity := line.Quantity + delta
	if quantity < 1 {
		return s.Remove(ctx, k)
	}

	return s.mutate(ctx, "update", http.MethodPut, "/cart/update", AddInput{
		ProductID: k.ProductID,
		Variant:   k.Variant,
		Packaging: k.Packaging,
		Quantity:  quantity,
	})
}

// Remove deletes the line with key k.
func (s *Service) Remove(ctx context.Context, k Key) (Snapshot, error) {
	if !s.session.IsAuthenticated() {
		return s.Snapshot(), ErrNotAuthenticated
	}
	return s.mutate(ctx, "remove", http.MethodDelete, "/cart/remove", k)
}

// Clear empties the cart on any successful response, whatever its body.
func (s *Service) Clear(ctx context.Context) (Snapshot, error) {
	if !s.session.IsAuthenticated() {
		return s.Snapshot(), ErrNotAuthenticated
	}

	seq := s.next()
	if _, err := s.api.Send(ctx, http.MethodDelete, "/cart/clear", nil); err != nil {
		return s.Snapshot(), s.fail("clear", err)
	}
	s.apply(seq, []LineItem{}, nil, "clear")
	return s.Snapshot(), nil
}

// mutate sends one cart mutation and reconciles its response. A response
// without items falls back to a fresh fetch that is never shared with a fetch
// started before the mutation.
func (s *Service) mutate(ctx context.Context, op, method, path string, body interface{}) (Snapshot, error) {
	seq := s.next()

	raw, err := s.api.Send(ctx, method, path, body)
	if err != nil {
		return s.Snapshot(), s.fail(op, err)
	}

	p, err := normalize(raw)
	if err != nil || !p.HasItems {
		s.log.Debug("Cart mutation returned no items; refetching", map[string]interface{}{
			"op": op,
		})
		return s.fetch(ctx)
	}
	s.warnDropped(op, p)
	s.apply(seq, p.Items, p.ServerTotal, op)
	return s.Snapshot(), nil
}

func (s *Service) fail(op string, err error) error {
	if errors.Is(err, apiclient.ErrUnauthorized) {
		s.Reset()
		return fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	s.log.Warn("Cart operation failed; keeping local state", map[string]interface{}{
		"op":     op,
		"status": apiclient.StatusOf(err),
		"error":  err.Error(),
	})
	return &OperationError{
		Op:      op,
		Message: apiclient.MessageOf(err, ""),
		Err:     err,
	}
}

func (s *Service) next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	return s.seq
}

// apply installs items as the snapshot for seq unless a newer one is applied.
func (s *Service) apply(seq uint64, items []LineItem, serverTotal *decimal.Decimal, op string) {
	s.mu.Lock()
	if seq <= s.snap.Version {
		current := s.snap.Version
		s.mu.Unlock()
		s.log.Debug("Dropping stale cart response", map[string]interface{}{
			"op":      op,
			"seq":     seq,
			"applied": current,
		})
		return
	}

	if items == nil {
		items = []LineItem{}
	}
	total := Total(items)
	s.snap = Snapshot{
		Items:       items,
		Total:       total,
		ServerTotal: serverTotal,
		Version:     seq,
	}
	snap := s.snap.clone()
	observers := append([]func(Snapshot){}, s.observers...)
	s.mu.Unlock()

	if serverTotal != nil && !serverTotal.Equal(total) {
		s.log.Warn("Backend cart total differs from line sum", map[string]interface{}{
			"op":           op,
			"total":        total.String(),
			"server_total": serverTotal.String(),
		})
	}

	for _, fn := range observers {
		fn(snap)
	}
}

func (s *Service) warnDropped(op string, p payload) {
	if p.Dropped == 0 {
		return
	}
	s.log.Warn("Dropped malformed cart lines", map[string]interface{}{
		"op":      op,
		"dropped": p.Dropped,
	})
}
