package apiclient

import (
	"context"
	"net/http"
	"time"
)

// shouldRetry: transport failures always, 5xx only for idempotent methods,
// never once the caller's context is done.
func shouldRetry(ctx context.Context, method string, err *Error) bool {
	if ctx.Err() != nil {
		return false
	}
	if err.Status == 0 {
		return true
	}
	return err.Status >= 500 && isIdempotent(method)
}

func isIdempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
