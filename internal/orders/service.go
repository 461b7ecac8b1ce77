// Package orders reads the visitor's order history and exports it.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ikkim/storefront/pkg/logger"
)

var ErrOrderNotFound = errors.New("order not found")

// Backend is the subset of apiclient.Client the service calls.
type Backend interface {
	Send(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error)
}

type Service struct {
	api Backend
	log *logger.Logger
}

func NewService(api Backend, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{api: api, log: log}
}

// MyOrders lists the authenticated visitor's orders.
func (s *Service) MyOrders(ctx context.Context) ([]Order, error) {
	raw, err := s.api.Send(ctx, http.MethodGet, "/orders/my-orders", nil)
	if err != nil {
		return nil, err
	}
	orders, err := decodeOrders(raw)
	if err != nil {
		return nil, err
	}

	for _, o := range orders {
		if !o.Status.Known() {
			s.log.Warn("Order has unknown status", map[string]interface{}{
				"order_number": o.OrderNumber,
				"status":       string(o.Status),
			})
		}
	}
	return orders, nil
}

// Find returns the order whose number or id is ref.
func (s *Service) Find(ctx context.Context, ref string) (*Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, ErrOrderNotFound
	}
	orders, err := s.MyOrders(ctx)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		if orders[i].OrderNumber == ref || string(orders[i].ID) == ref {
			return &orders[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, ref)
}

func decodeOrders(raw json.RawMessage) ([]Order, error) {
	raw = bytes.TrimSpace(raw)
	orders := []Order{}
	if len(raw) == 0 {
		return orders, nil
	}
	if raw[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode orders: %w", err)
		}
		raw = nil
		for _, k := range []string{"orders", "data"} {
			if v, ok := envelope[k]; ok && len(v) > 0 && v[0] == '[' {
				raw = v
				break
			}
		}
		if raw == nil {
			return orders, nil
		}
	}
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("failed to decode orders: %w", err)
	}
	return orders, nil
}
