package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/ikkim/storefront/config"
	"github.com/ikkim/storefront/internal/app/controller"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/payment"
	"github.com/ikkim/storefront/internal/router"
	"github.com/ikkim/storefront/internal/storefront"
	"github.com/ikkim/storefront/internal/tokenstore"
	"github.com/ikkim/storefront/internal/websocket"
	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type TestServer struct {
	URL    string
	Hub    *websocket.Hub
	Client *http.Client
}

// fakeShop serves login, identity, cart and search for the token "t-1".
type fakeShop struct {
	mu    sync.Mutex
	lines []map[string]interface{}
}

func (s *fakeShop) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch r.URL.Path {
	case "/auth/login":
		w.Write([]byte(`{"token":"t-1","user":{"_id":"u1","name":"Asha","email":"asha@example.com"}}`))
		return
	case "/products/search":
		q := r.URL.Query().Get("query")
		w.Write([]byte(`{"products":[{"_id":"p1","title":"Classic","slug":"classic","price":120,"matched":"` + q + `"}]}`))
		return
	}

	if r.Header.Get("Authorization") != "Bearer t-1" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/auth/me":
		w.Write([]byte(`{"user":{"_id":"u1","name":"Asha","email":"asha@example.com"}}`))
		return
	case "/cart":
	case "/cart/add":
		var in map[string]interface{}
		_ = json.NewDecoder(r.Body).Decode(&in)
		in["price"] = 120
		s.lines = append(s.lines, in)
		// bare acknowledgement forces the gateway to refetch
		w.Write([]byte(`{"success":true}`))
		return
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}

	lines := s.lines
	if lines == nil {
		lines = []map[string]interface{}{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"cart": map[string]interface{}{"items": lines}})
}

func setupIntegrationTest(t *testing.T) *TestServer {
	gin.SetMode(gin.TestMode)

	backend := httptest.NewServer(&fakeShop{})
	t.Cleanup(backend.Close)

	api, err := apiclient.NewClient(apiclient.Config{BaseURL: backend.URL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := websocket.NewHub()
	manager := storefront.NewManager(storefront.Options{
		Backend:  api,
		Store:    tokenstore.NewMemoryStore(time.Hour),
		Pusher:   hub,
		Variant:  payment.VariantProduction,
		Debounce: 100 * time.Millisecond,
	})
	hub.OnSearch(func(sessionID, query string) {
		if sess, ok := manager.Lookup(sessionID); ok {
			sess.Search.Submit(query)
		}
	})
	go hub.Run(ctx)

	cfg := &config.Config{Server: config.ServerConfig{GinMode: gin.TestMode}}
	r := router.NewRouter(
		controller.NewAuthController(),
		controller.NewCartController(),
		controller.NewCatalogController(),
		controller.NewOrderController(),
		controller.NewPaymentController(),
		controller.NewRealtimeController(hub, nil),
		middleware.NewSessionMiddleware(manager, middleware.SessionOptions{MaxAge: time.Hour}),
		cfg,
	)

	srv := httptest.NewServer(r.Setup())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &TestServer{URL: srv.URL, Hub: hub, Client: &http.Client{Jar: jar, Timeout: 5 * time.Second}}
}

func (ts *TestServer) postJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := ts.Client.Post(ts.URL+path, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (ts *TestServer) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	u, err := url.Parse(ts.URL)
	require.NoError(t, err)
	for _, ck := range ts.Client.Jar.Cookies(u) {
		if ck.Name == "sf_session" {
			return ck
		}
	}
	t.Fatal("no session cookie issued")
	return nil
}

func (ts *TestServer) dial(t *testing.T) *gorillaws.Conn {
	t.Helper()
	header := http.Header{}
	header.Set("Cookie", ts.sessionCookie(t).String())

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := gorillaws.DefaultDialer.Dial(wsURL, header)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

type pushed struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// readUntil skips pushes until one of kind arrives.
func readUntil(t *testing.T, conn *gorillaws.Conn, kind string) json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var msg pushed
		require.NoError(t, conn.ReadJSON(&msg))
		if msg.Type == kind {
			return msg.Data
		}
	}
}

func TestIntegration_LoginCartAndLiveSearch(t *testing.T) {
	ts := setupIntegrationTest(t)

	resp := ts.postJSON(t, "/api/v1/auth/login", map[string]string{
		"email":    "asha@example.com",
		"password": "secret",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	conn := ts.dial(t)
	sid := ts.sessionCookie(t).Value

	// snapshot queued on connect
	var initial struct {
		Items []interface{} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(readUntil(t, conn, storefront.MessageCart), &initial))
	assert.Empty(t, initial.Items)

	require.Eventually(t, func() bool { return ts.Hub.IsSessionOnline(sid) }, 2*time.Second, 10*time.Millisecond)

	t.Run("cart mutation is pushed", func(t *testing.T) {
		resp := ts.postJSON(t, "/api/v1/cart/items", map[string]interface{}{
			"productId": "p1",
			"variant":   "250ml",
			"packaging": "Can",
			"quantity":  2,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var snap struct {
			Items []struct {
				ProductID string `json:"productId"`
				Quantity  int    `json:"quantity"`
			} `json:"items"`
			Total string `json:"total"`
		}
		// a snapshot from the login fetch may still be queued ahead of this one
		for len(snap.Items) == 0 {
			require.NoError(t, json.Unmarshal(readUntil(t, conn, storefront.MessageCart), &snap))
		}
		require.Len(t, snap.Items, 1)
		assert.Equal(t, "p1", snap.Items[0].ProductID)
		assert.Equal(t, 2, snap.Items[0].Quantity)
		assert.Equal(t, "240", snap.Total)
	})

	t.Run("only the last query of a burst is searched", func(t *testing.T) {
		for _, q := range []string{"c", "cl", "cla"} {
			require.NoError(t, conn.WriteJSON(map[string]string{"type": "search", "query": q}))
		}

		var results storefront.SearchResults
		require.NoError(t, json.Unmarshal(readUntil(t, conn, storefront.MessageSearchResults), &results))
		assert.Equal(t, "cla", results.Query)
		assert.Empty(t, results.Error)
		require.Len(t, results.Products, 1)
	})
}

func TestIntegration_AnonymousCartIsRejected(t *testing.T) {
	ts := setupIntegrationTest(t)

	resp := ts.postJSON(t, "/api/v1/cart/items", map[string]interface{}{
		"productId": "p1",
		"quantity":  1,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "/login", body["redirect"])
}
