package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

type fakeSession struct {
	authed atomic.Bool
}

func (f *fakeSession) IsAuthenticated() bool { return f.authed.Load() }

type fakeLine struct {
	Key
	Quantity int
}

// fakeCartBackend is an in-memory cart server that merges lines by key.
type fakeCartBackend struct {
	mu       sync.Mutex
	lines    []fakeLine
	prices   map[string]string
	calls    map[string]int
	ackOnly  bool
	statuses map[string]int
}

func newFakeCartBackend() *fakeCartBackend {
	return &fakeCartBackend{
		prices:   map[string]string{"p1": "149.50", "p2": "99"},
		calls:    map[string]int{},
		statuses: map[string]int{},
	}
}

func (f *fakeCartBackend) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[call]
}

func (f *fakeCartBackend) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeCartBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := r.Method + " " + r.URL.Path
	f.calls[call]++
	if status, ok := f.statuses[call]; ok {
		w.WriteHeader(status)
		fmt.Fprintf(w, `{"message":"forced %d"}`, status)
		return
	}

	var in struct {
		Key
		Quantity int `json:"quantity"`
	}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&in)
	}

	switch call {
	case "GET /cart":
	case "POST /cart/add":
		merged := false
		for i := range f.lines {
			if f.lines[i].Key == in.Key {
				f.lines[i].Quantity += in.Quantity
				merged = true
			}
		}
		if !merged {
			f.lines = append(f.lines, fakeLine{Key: in.Key, Quantity: in.Quantity})
		}
	case "PUT /cart/update":
		for i := range f.lines {
			if f.lines[i].Key == in.Key {
				f.lines[i].Quantity = in.Quantity
			}
		}
	case "DELETE /cart/remove":
		kept := f.lines[:0]
		for _, l := range f.lines {
			if l.Key != in.Key {
				kept = append(kept, l)
			}
		}
		f.lines = kept
	case "DELETE /cart/clear":
		f.lines = nil
		w.Write([]byte(`{"message":"Cart cleared"}`))
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if f.ackOnly && call != "GET /cart" {
		w.Write([]byte(`{"success":true}`))
		return
	}
	w.Write(f.render())
}

func (f *fakeCartBackend) render() []byte {
	type product struct {
		ID    string `json:"_id"`
		Name  string `json:"name"`
		Price string `json:"price"`
	}
	type line struct {
		Product   product `json:"product"`
		Variant   string  `json:"variant"`
		Packaging string  `json:"packaging"`
		Quantity  int     `json:"quantity"`
	}
	items := make([]line, 0, len(f.lines))
	total := decimal.Zero
	for _, l := range f.lines {
		price := decimal.RequireFromString(f.prices[l.ProductID])
		total = total.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		items = append(items, line{
			Product:   product{ID: l.ProductID, Name: "Drink " + l.ProductID, Price: f.prices[l.ProductID]},
			Variant:   l.Variant,
			Packaging: l.Packaging,
			Quantity:  l.Quantity,
		})
	}
	body, _ := json.Marshal(map[string]interface{}{
		"success": true,
		"cart": map[string]interface{}{
			"items":       items,
			"totalAmount": total.InexactFloat64(),
		},
	})
	return body
}

func setupCartTest(t *testing.T, handler http.Handler) (*Service, *fakeSession, *int32) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := apiclient.NewClient(apiclient.Config{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 0,
		RetryUnit:  time.Millisecond,
	})
	require.NoError(t, err)

	var unauthorized int32
	sess := &fakeSession{}
	sess.authed.Store(true)
	api := client.Bind(nil, func() {
		atomic.AddInt32(&unauthorized, 1)
		sess.authed.Store(false)
	})
	return NewService(api, sess, nil), sess, &unauthorized
}

var p1 = AddInput{ProductID: "p1", Variant: "60ml", Packaging: "Bottle", Quantity: 1}

func TestService_AddThenRemove(t *testing.T) {
	svc, _, _ := setupCartTest(t, newFakeCartBackend())
	ctx := context.Background()

	snap, err := svc.Add(ctx, p1)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, snap.Items[0].Quantity)
	assert.Equal(t, "Drink p1", snap.Items[0].Title)
	assert.True(t, decimal.RequireFromString("149.5").Equal(snap.Total))

	snap, err = svc.Remove(ctx, Key{ProductID: "p1", Variant: "60ml", Packaging: "Bottle"})
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
}

func TestService_AddSameKeyMergesIntoOneLine(t *testing.T) {
	svc, _, _ := setupCartTest(t, newFakeCartBackend())
	ctx := context.Background()

	_, err := svc.Add(ctx, p1)
	require.NoError(t, err)
	in := p1
	in.Quantity = 2
	snap, err := svc.Add(ctx, in)
	require.NoError(t, err)

	require.Len(t, snap.Items, 1)
	assert.Equal(t, 3, snap.Items[0].Quantity)
	assert.Equal(t, 3, snap.ItemCount())
}

func TestService_AddDifferentVariantKeepsSeparateLines(t *testing.T) {
	svc, _, _ := setupCartTest(t, newFakeCartBackend())
	ctx := context.Background()

	_, err := svc.Add(ctx, p1)
	require.NoError(t, err)
	in := p1
	in.Variant = "250ml"
	snap, err := svc.Add(ctx, in)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 2)
}

func TestService_DecrementToZeroRemovesLine(t *testing.T) {
	fb := newFakeCartBackend()
	svc, _, _ := setupCartTest(t, fb)
	ctx := context.Background()

	_, err := svc.Add(ctx, p1)
	require.NoError(t, err)

	snap, err := svc.UpdateQuantity(ctx, Key{ProductID: "p1", Variant: "60ml", Packaging: "Bottle"}, -1)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Equal(t, 1, fb.count("DELETE /cart/remove"))
	assert.Equal(t, 0, fb.count("PUT /cart/update"))
}

func TestService_UpdateQuantitySendsAbsoluteQuantity(t *testing.T) {
	fb := newFakeCartBackend()
	svc, _, _ := setupCartTest(t, fb)
	ctx := context.Background()

	in := p1
	in.Quantity = 2
	_, err := svc.Add(ctx, in)
	require.NoError(t, err)

	snap, err := svc.UpdateQuantity(ctx, in.keyOf(), 3)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 5, snap.Items[0].Quantity)
	assert.Equal(t, 1, fb.count("PUT /cart/update"))
}

func (in AddInput) keyOf() Key {
	return Key{ProductID: in.ProductID, Variant: in.Variant, Packaging: in.Packaging}
}

func TestService_UpdateQuantityUnknownLine(t *testing.T) {
	fb := newFakeCartBackend()
	svc, _, _ := setupCartTest(t, fb)

	_, err := svc.UpdateQuantity(context.Background(), Key{ProductID: "ghost"}, 1)
	assert.ErrorIs(t, err, ErrItemNotFound)
	assert.Equal(t, 0, fb.total())
}

func TestService_AnonymousMutationsNeverCallBackend(t *testing.T) {
	fb := newFakeCartBackend()
	svc, sess, _ := setupCartTest(t, fb)
	sess.authed.Store(false)
	ctx := context.Background()
	k := p1.keyOf()

	_, err := svc.Add(ctx, p1)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.UpdateQuantity(ctx, k, 1)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.Remove(ctx, k)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.Clear(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)
	_, err = svc.Fetch(ctx)
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	assert.Equal(t, 0, fb.total())
}

func TestService_TotalIsRecomputedFromLines(t *testing.T) {
	assert.True(t, Total(nil).IsZero())
	assert.True(t, Total([]LineItem{}).IsZero())

	lines := []LineItem{
		{ProductID: "a", Price: decimal.RequireFromString("10.25"), Quantity: 2},
		{ProductID: "b", Price: decimal.RequireFromString("3"), Quantity: 3},
	}
	assert.Equal(t, "29.5", Total(lines).String())

	srv := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items":[{"productId":"a","price":10.25,"quantity":2},{"productId":"b","price":"3","quantity":3}],"total":25}`))
	})
	svc, _, _ := setupCartTest(t, srv)

	snap, err := svc.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "29.5", snap.Total.String())
	require.NotNil(t, snap.ServerTotal)
	assert.Equal(t, "25", snap.ServerTotal.String())
}

func TestService_FetchNotFoundIsEmptyCart(t *testing.T) {
	fb := newFakeCartBackend()
	svc, _, _ := setupCartTest(t, fb)
	ctx := context.Background()
	_, err := svc.Add(ctx, p1)
	require.NoError(t, err)

	fb.mu.Lock()
	fb.statuses["GET /cart"] = http.StatusNotFound
	fb.mu.Unlock()

	snap, err := svc.Fetch(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
}

func TestService_FetchUnauthorizedEmptiesAndExpires(t *testing.T) {
	fb := newFakeCartBackend()
	svc, _, unauthorized := setupCartTest(t, fb)
	ctx := context.Background()
	_, err := svc.Add(ctx, p1)
	require.NoError(t, err)

	fb.mu.Lock()
	fb.statuses["GET /cart"] = http.StatusUnauthorized
	fb.mu.Unlock()

	snap, err := svc.Fetch(ctx)
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.ErrorIs(t, err, apiclient.ErrUnauthorized)
	assert.Empty(t, snap.Items)
	assert.Equal(t, int32(1), atomic.LoadInt32(unauthorized))
}

func TestService_FetchServerErrorKeepsState(t *testing.T) {
	fb := newFakeCartBackend()
	svc, _, _ := setupCartTest(t, fb)
	ctx := context.Background()
	_, err := svc.Add(ctx, p1)
	require.NoError(t, err)

	fb.mu.Lock()
	fb.statuses["GET /cart"] = http.StatusInternalServerError
	fb.mu.Unlock()

	snap, err := svc.Fetch(ctx)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "fetch", opErr.Op)
	assert.Equal(t, "forced 500", opErr.Message)
	assert.Len(t, snap.Items, 1)
}

func TestService_MutationErrorCarriesServerMessage(t *testing.T) {
	fb := newFakeCartBackend()
	fb.statuses["POST /cart/add"] = http.StatusBadRequest
	svc, _, _ := setupCartTest(t, fb)

	_, err := svc.Add(context.Background(), p1)
	var opErr *OperationError
	require.ErrorAs(t, err, &opErr)
	assert.Equal(t, "cart add failed: forced 400", err.Error())
	assert.ErrorIs(t, err, apiclient.ErrClientError)
}

func TestService_BareAcknowledgementTriggersRefetch(t *testing.T) {
	fb := newFakeCartBackend()
	fb.ackOnly = true
	svc, _, _ := setupCartTest(t, fb)

	snap, err := svc.Add(context.Background(), p1)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)
	assert.Equal(t, 1, fb.count("GET /cart"))
}

func TestService_RefetchAfterAckIgnoresEarlierFetch(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
		gets  int32
	)
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		if r.Method == http.MethodPost {
			lines = append(lines, `{"productId":"p1","variant":"60ml","packaging":"Bottle","price":1,"quantity":1}`)
			mu.Unlock()
			w.Write([]byte(`{"success":true}`))
			return
		}
		body := fmt.Sprintf(`{"items":[%s]}`, strings.Join(lines, ","))
		mu.Unlock()

		// the first read captures the cart before the add, then stalls
		if atomic.AddInt32(&gets, 1) == 1 {
			<-release
		}
		w.Write([]byte(body))
	})
	svc, _, _ := setupCartTest(t, handler)
	ctx := context.Background()

	early := make(chan error, 1)
	go func() {
		_, err := svc.Fetch(ctx)
		early <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&gets) == 1 }, time.Second, time.Millisecond)

	snap, err := svc.Add(ctx, p1)
	require.NoError(t, err)
	require.Len(t, snap.Items, 1)

	close(release)
	require.NoError(t, <-early)
	assert.Len(t, svc.Snapshot().Items, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&gets))
}

func TestService_ClearIsUnconditional(t *testing.T) {
	fb := newFakeCartBackend()
	svc, _, _ := setupCartTest(t, fb)
	ctx := context.Background()
	_, err := svc.Add(ctx, p1)
	require.NoError(t, err)

	snap, err := svc.Clear(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.True(t, snap.Total.IsZero())
	assert.Equal(t, 0, fb.count("GET /cart"))
}

func TestService_ResetNotifiesObservers(t *testing.T) {
	svc, _, _ := setupCartTest(t, newFakeCartBackend())
	var got []Snapshot
	svc.OnChange(func(s Snapshot) { got = append(got, s) })

	_, err := svc.Add(context.Background(), p1)
	require.NoError(t, err)
	svc.Reset()

	require.Len(t, got, 2)
	assert.Len(t, got[0].Items, 1)
	assert.Empty(t, got[1].Items)
	assert.Greater(t, got[1].Version, got[0].Version)
}

func TestService_StaleResponseIsDropped(t *testing.T) {
	release := make(chan struct{})
	var adds int32
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&adds, 1) == 1 {
			// first request answers last, with an outdated cart
			<-release
			w.Write([]byte(`{"items":[{"productId":"p1","price":1,"quantity":1}]}`))
			return
		}
		w.Write([]byte(`{"items":[{"productId":"p1","price":1,"quantity":2}]}`))
	})
	svc, _, _ := setupCartTest(t, handler)
	ctx := context.Background()

	slow := make(chan error, 1)
	go func() {
		_, err := svc.Add(ctx, AddInput{ProductID: "p1", Quantity: 1})
		slow <- err
	}()
	require.Eventually(t, func() bool { return atomic.LoadInt32(&adds) == 1 }, time.Second, time.Millisecond)

	snap, err := svc.Add(ctx, AddInput{ProductID: "p1", Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Items[0].Quantity)

	close(release)
	require.NoError(t, <-slow)
	assert.Equal(t, 2, svc.Snapshot().Items[0].Quantity)
}

func TestService_ConcurrentAddsConverge(t *testing.T) {
	fb := newFakeCartBackend()
	for i := 0; i < 8; i++ {
		fb.prices[fmt.Sprintf("sku-%d", i)] = "2"
	}
	svc, _, _ := setupCartTest(t, fb)
	ctx := context.Background()

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 8; i++ {
		id := fmt.Sprintf("sku-%d", i)
		g.Go(func() error {
			_, err := svc.Add(gctx, AddInput{ProductID: id, Variant: "60ml", Packaging: "Can", Quantity: 1})
			return err
		})
	}
	require.NoError(t, g.Wait())

	snap, err := svc.Fetch(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 8)
	assert.Equal(t, "16", snap.Total.String())
	assert.True(t, snap.Total.Equal(Total(snap.Items)))
}
