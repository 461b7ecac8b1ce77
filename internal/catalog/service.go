// Package catalog reads products and content from the backend and forwards
// the public lead-capture forms.
package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/ikkim/storefront/pkg/logger"
	rediscache "github.com/ikkim/storefront/pkg/redis"
	"github.com/redis/go-redis/v9"
)

// ProductsCacheKey holds the cached product list.
const ProductsCacheKey = "catalog:products"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Backend is the subset of apiclient.Client the service calls.
type Backend interface {
	Send(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error)
}

// Service is the catalog and content client. The product list is cached in
// redis when a client is given.
type Service struct {
	api   Backend
	cache *redis.Client
	ttl   time.Duration
	log   *logger.Logger
}

func NewService(api Backend, cache *redis.Client, ttl time.Duration) *Service {
	return &Service{
		api:   api,
		cache: cache,
		ttl:   ttl,
		log:   logger.WithContext(logger.Fields{"component": "catalog"}),
	}
}

// WithBackend returns a copy of s calling api, sharing the cache.
func (s *Service) WithBackend(api Backend) *Service {
	c := *s
	c.api = api
	return &c
}

// ListProducts serves the product list from cache, falling back to the backend.
func (s *Service) ListProducts(ctx context.Context) ([]Product, error) {
	if s.cache != nil {
		var products []Product
		ok, err := rediscache.GetJSON(ctx, s.cache, ProductsCacheKey, &products)
		if err != nil {
			s.log.Warn("Product cache read failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
		if ok {
			return products, nil
		}
	}
	return s.RefreshProducts(ctx)
}

// RefreshProducts loads the product list from the backend and rewrites the cache.
func (s *Service) RefreshProducts(ctx context.Context) ([]Product, error) {
	raw, err := s.api.Send(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	products, err := decodeList[Product](raw, "products")
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := rediscache.SetJSON(ctx, s.cache, ProductsCacheKey, products, s.ttl); err != nil {
			s.log.Warn("Product cache write failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	return products, nil
}

func (s *Service) ProductBySlug(ctx context.Context, slug string) (*Product, error) {
	var p Product
	if err := s.getOne(ctx, "/products/slug/"+url.PathEscape(slug), "product", &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// SearchProducts queries the backend directly. A blank query matches nothing.
func (s *Service) SearchProducts(ctx context.Context, query string) ([]Product, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Product{}, nil
	}
	raw, err := s.api.Send(ctx, http.MethodGet, "/products/search?query="+url.QueryEscape(query), nil)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return []Product{}, nil
		}
		return nil, err
	}
	return decodeList[Product](raw, "products", "results")
}

func (s *Service) ListBlogs(ctx context.Context) ([]Blog, error) {
	raw, err := s.api.Send(ctx, http.MethodGet, "/blogs", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Blog](raw, "blogs")
}

func (s *Service) BlogBySlug(ctx context.Context, slug string) (*Blog, error) {
	var b Blog
	if err := s.getOne(ctx, "/blogs/slug/"+url.PathEscape(slug), "blog", &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *Service) ListCategories(ctx context.Context) ([]Category, error) {
	raw, err := s.api.Send(ctx, http.MethodGet, "/categories", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[Category](raw, "categories")
}

func (s *Service) ListFAQs(ctx context.Context) ([]FAQ, error) {
	raw, err := s.api.Send(ctx, http.MethodGet, "/faqs", nil)
	if err != nil {
		return nil, err
	}
	return decodeList[FAQ](raw, "faqs")
}

func (s *Service) SubmitReview(ctx context.Context, in ReviewInput) error {
	if in.ProductID == "" || in.Rating < 1 || in.Rating > 5 {
		return fmt.Errorf("%w: product id and a rating between 1 and 5 are required", ErrInvalidInput)
	}
	_, err := s.api.Send(ctx, http.MethodPost, "/reviews", in)
	return err
}

func (s *Service) SubmitContact(ctx context.Context, in ContactInput) error {
	if strings.TrimSpace(in.Email) == "" || strings.TrimSpace(in.Message) == "" {
		return fmt.Errorf("%w: email and message are required", ErrInvalidInput)
	}
	_, err := s.api.Send(ctx, http.MethodPost, "/contact", in)
	return err
}

func (s *Service) SubmitChatbotLead(ctx context.Context, in LeadInput) error {
	if strings.TrimSpace(in.Email) == "" && strings.TrimSpace(in.Phone) == "" {
		return fmt.Errorf("%w: email or phone is required", ErrInvalidInput)
	}
	_, err := s.api.Send(ctx, http.MethodPost, "/chatbot/submit", in)
	return err
}

// getOne decodes a single object found at the top level, under key or under data.
func (s *Service) getOne(ctx context.Context, path, key string, out interface{}) error {
	raw, err := s.api.Send(ctx, http.MethodGet, path, nil)
	if err != nil {
		if apiclient.IsNotFound(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return err
	}
	if raw = bytes.TrimSpace(raw); len(raw) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	for _, k := range []string{key, "data"} {
		if v, ok := envelope[k]; ok && len(v) > 0 && v[0] == '{' {
			raw = v
			break
		}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}

// decodeList accepts a bare array or an object holding it under one of keys or data.
func decodeList[T any](raw json.RawMessage, keys ...string) ([]T, error) {
	out := []T{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return out, nil
	}
	if raw[0] != '[' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("failed to decode list: %w", err)
		}
		found := false
		for _, k := range append(keys, "data", "items") {
			if v, ok := envelope[k]; ok && len(v) > 0 && v[0] == '[' {
				raw, found = v, true
				break
			}
		}
		if !found {
			if v, ok := envelope["data"]; ok && len(v) > 0 && v[0] == '{' {
				return decodeList[T](v, keys...)
			}
			return out, nil
		}
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode list: %w", err)
	}
	return out, nil
}
