package controller

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/storefront/internal/middleware"
	"github.com/ikkim/storefront/internal/payment"
	"github.com/ikkim/storefront/internal/storefront"
	"github.com/ikkim/storefront/internal/tokenstore"
	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/stretchr/testify/require"
)

type fakeLine struct {
	ProductID string `json:"productId"`
	Title     string `json:"title"`
	Price     int    `json:"price"`
	Quantity  int    `json:"quantity"`
	Variant   string `json:"variant"`
	Packaging string `json:"packaging"`
}

// shopBackend is an in-memory storefront backend accepting the token "t-1".
type shopBackend struct {
	mu         sync.Mutex
	lines      []fakeLine
	initFields map[string]string
}

func (b *shopBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	authed := r.Header.Get("Authorization") == "Bearer t-1"
	path := r.URL.Path

	switch {
	case path == "/auth/login":
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"Invalid credentials"}`))
			return
		}
		w.Write([]byte(`{"token":"t-1"}`))
		return
	case path == "/auth/register":
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"message":"ok"}`))
		return
	case path == "/products":
		w.Write([]byte(`{"products":[{"_id":"p1","title":"Classic","slug":"classic","price":120}]}`))
		return
	case path == "/products/slug/classic":
		w.Write([]byte(`{"product":{"_id":"p1","title":"Classic","slug":"classic","price":120}}`))
		return
	case strings.HasPrefix(path, "/products/slug/"):
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Product not found"}`))
		return
	case path == "/products/search":
		w.Write([]byte(`{"products":[{"_id":"p1","title":"Classic"}]}`))
		return
	}

	if !authed {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch {
	case path == "/auth/me":
		w.Write([]byte(`{"user":{"_id":"u1","name":"Asha","email":"asha@example.com"}}`))
	case path == "/auth/logout":
		w.Write([]byte(`{"success":true}`))
	case path == "/cart":
		b.writeCart(w)
	case path == "/cart/add":
		var in fakeLine
		_ = json.NewDecoder(r.Body).Decode(&in)
		merged := false
		for i := range b.lines {
			if b.lines[i].ProductID == in.ProductID && b.lines[i].Variant == in.Variant && b.lines[i].Packaging == in.Packaging {
				b.lines[i].Quantity += in.Quantity
				merged = true
			}
		}
		if !merged {
			in.Price = 120
			b.lines = append(b.lines, in)
		}
		b.writeCart(w)
	case path == "/cart/update":
		var in fakeLine
		_ = json.NewDecoder(r.Body).Decode(&in)
		for i := range b.lines {
			if b.lines[i].ProductID == in.ProductID && b.lines[i].Variant == in.Variant && b.lines[i].Packaging == in.Packaging {
				b.lines[i].Quantity = in.Quantity
			}
		}
		b.writeCart(w)
	case path == "/cart/remove":
		var in fakeLine
		_ = json.NewDecoder(r.Body).Decode(&in)
		kept := b.lines[:0]
		for _, l := range b.lines {
			if !(l.ProductID == in.ProductID && l.Variant == in.Variant && l.Packaging == in.Packaging) {
				kept = append(kept, l)
			}
		}
		b.lines = kept
		w.Write([]byte(`{"message":"Item removed"}`))
	case path == "/cart/clear":
		b.lines = nil
		w.Write([]byte(`{"success":true}`))
	case path == "/orders/my-orders":
		w.Write([]byte(`{"orders":[{"_id":"o1","orderNumber":"ORD-1","status":"Shipped","items":[{"product":{"_id":"p1","name":"Classic"},"quantity":2,"price":120}],"totalAmount":240}]}`))
	case strings.HasPrefix(path, "/payments/billdesk/initialize/"):
		if b.initFields == nil {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"message":"gateway down"}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"data": b.initFields})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *shopBackend) writeCart(w http.ResponseWriter) {
	lines := b.lines
	if lines == nil {
		lines = []fakeLine{}
	}
	json.NewEncoder(w).Encode(map[string]interface{}{"items": lines})
}

type testEnv struct {
	router  *gin.Engine
	backend *shopBackend
	store   tokenstore.Store
	cookie  *http.Cookie
}

// setupControllerTest mounts every controller behind the session middleware,
// the way the router does.
func setupControllerTest(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	backend := &shopBackend{}
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	api, err := apiclient.NewClient(apiclient.Config{BaseURL: srv.URL, Timeout: time.Second, MaxRetries: 0})
	require.NoError(t, err)

	store := tokenstore.NewMemoryStore(time.Hour)
	manager := storefront.NewManager(storefront.Options{
		Backend: api,
		Store:   store,
		Variant: payment.VariantProduction,
	})
	sessions := middleware.NewSessionMiddleware(manager, middleware.SessionOptions{CookieName: "sf_session", MaxAge: time.Hour})

	authCtrl := NewAuthController()
	cartCtrl := NewCartController()
	catalogCtrl := NewCatalogController()
	orderCtrl := NewOrderController()
	paymentCtrl := NewPaymentController()

	r := gin.New()
	r.Use(middleware.LoggingMiddleware(), sessions.Attach())
	r.GET("/checkout/pay/:orderId", middleware.RequireAuth(), paymentCtrl.Pay)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/login", authCtrl.Login)
	v1.POST("/auth/register", authCtrl.Register)
	v1.POST("/auth/logout", authCtrl.Logout)
	v1.GET("/auth/me", middleware.RequireAuth(), authCtrl.GetMe)
	v1.GET("/cart", cartCtrl.GetCart)
	v1.DELETE("/cart", cartCtrl.ClearCart)
	v1.POST("/cart/items", cartCtrl.AddToCart)
	v1.PATCH("/cart/items", cartCtrl.UpdateCartItem)
	v1.DELETE("/cart/items", cartCtrl.RemoveCartItem)
	v1.GET("/products", catalogCtrl.ListProducts)
	v1.GET("/products/:slug", catalogCtrl.GetProduct)
	v1.GET("/search", catalogCtrl.SearchProducts)
	v1.GET("/orders", middleware.RequireAuth(), orderCtrl.GetMyOrders)
	v1.GET("/orders/export", middleware.RequireAuth(), orderCtrl.ExportOrders)
	v1.GET("/orders/:orderNumber", middleware.RequireAuth(), orderCtrl.GetOrder)

	return &testEnv{router: r, backend: backend, store: store}
}

// do sends a request, carrying the visitor cookie between calls.
func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if e.cookie != nil {
		req.AddCookie(e.cookie)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name == "sf_session" {
			e.cookie = ck
		}
	}
	return w
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/v1/auth/login", LoginRequest{Email: "asha@example.com", Password: "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
