// Package auth holds the authenticated identity of one visitor session.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ikkim/storefront/pkg/apiclient"
	"github.com/ikkim/storefront/pkg/logger"
)

var (
	ErrNotAuthenticated   = errors.New("not authenticated")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMissingToken       = errors.New("login response did not contain a token")
	ErrInvalidInput       = errors.New("invalid input")
)

// State of the session holder.
type State int

const (
	StateUnknown State = iota
	StateAuthenticated
	StateAnonymous
)

func (s State) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateAnonymous:
		return "anonymous"
	default:
		return "unknown"
	}
}

// Reasons attached to transitions.
const (
	ReasonStartup        = "startup"
	ReasonLogin          = "login"
	ReasonLogout         = "logout"
	ReasonUnauthorized   = "unauthorized"
	ReasonAccountDeleted = "account_deleted"
)

// Transition describes one state change.
type Transition struct {
	From   State
	To     State
	User   *User
	Reason string
}

// Observer is notified after every state change, outside the holder lock.
type Observer func(ctx context.Context, t Transition)

// Backend is the subset of apiclient.Client the holder calls.
type Backend interface {
	Send(ctx context.Context, method, path string, payload interface{}) (json.RawMessage, error)
}

// Holder is the Unknown -> Authenticated | Anonymous state machine.
type Holder struct {
	api   Backend
	creds apiclient.Credentials
	log   *logger.Logger

	mu        sync.RWMutex
	state     State
	user      *User
	observers []Observer
}

func NewHolder(api Backend, creds apiclient.Credentials, log *logger.Logger) *Holder {
	if log == nil {
		log = logger.Get()
	}
	return &Holder{
		api:   api,
		creds: creds,
		log:   log,
		state: StateUnknown,
	}
}

// Subscribe registers an observer for state changes.
func (h *Holder) Subscribe(o Observer) {
	h.mu.Lock()
	h.observers = append(h.observers, o)
	h.mu.Unlock()
}

func (h *Holder) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state
}

// User returns a copy of the current identity, or nil.
func (h *Holder) User() *User {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.user == nil {
		return nil
	}
	u := *h.user
	return &u
}

func (h *Holder) IsAuthenticated() bool {
	return h.State() == StateAuthenticated
}

// Init resolves the startup state from the persisted credential. A failed
// identity check clears the credential; the error is returned for logging only.
func (h *Holder) Init(ctx context.Context) error {
	token, err := h.creds.Token(ctx)
	if err != nil {
		h.log.Error("Failed to read persisted credential", err)
		h.transition(ctx, StateAnonymous, nil, ReasonStartup)
		return err
	}
	if token == "" {
		h.transition(ctx, StateAnonymous, nil, ReasonStartup)
		return nil
	}

	user, err := h.fetchIdentity(ctx)
	if err != nil {
		h.log.Warn("Persisted credential failed identity check", map[string]interface{}{
			"error": err.Error(),
		})
		h.clearCredential(ctx)
		h.transition(ctx, StateAnonymous, nil, ReasonStartup)
		return err
	}

	h.transition(ctx, StateAuthenticated, user, ReasonStartup)
	return nil
}

// Login exchanges email/password for a credential. The identity comes from the
// login payload when it carries one, otherwise from the identity endpoint.
func (h *Holder) Login(ctx context.Context, email, password string) (*User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	raw, err := h.api.Send(ctx, http.MethodPost, "/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	if err != nil {
		if errors.Is(err, apiclient.ErrUnauthorized) || apiclient.StatusOf(err) == http.StatusBadRequest {
			return nil, fmt.Errorf("%w: %s", ErrInvalidCredentials, apiclient.MessageOf(err, "login rejected"))
		}
		return nil, err
	}

	token := extractToken(raw)
	if token == "" {
		return nil, ErrMissingToken
	}
	if err := h.creds.SetToken(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to persist credential: %w", err)
	}

	user := parseUser(raw)
	if user == nil {
		if user, err = h.fetchIdentity(ctx); err != nil {
			h.clearCredential(ctx)
			h.transition(ctx, StateAnonymous, nil, ReasonLogin)
			return nil, err
		}
	}

	h.log.Info("Visitor logged in", map[string]interface{}{
		"user_id": user.ID,
	})
	h.transition(ctx, StateAuthenticated, user, ReasonLogin)
	return user, nil
}

// RegisterInput is forwarded verbatim to the backend.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// Register creates an account. It does not authenticate; the caller is sent to login.
func (h *Holder) Register(ctx context.Context, in RegisterInput) error {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" || strings.TrimSpace(in.Name) == "" {
		return fmt.Errorf("%w: name, email and password are required", ErrInvalidInput)
	}
	_, err := h.api.Send(ctx, http.MethodPost, "/auth/register", in)
	return err
}

// Logout notifies the backend best-effort and always clears local state.
func (h *Holder) Logout(ctx context.Context) {
	if token, _ := h.creds.Token(ctx); token != "" {
		if _, err := h.api.Send(ctx, http.MethodPost, "/auth/logout", nil); err != nil {
			h.log.Warn("Backend logout failed; clearing local session anyway", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
	h.clearCredential(ctx)
	h.transition(ctx, StateAnonymous, nil, ReasonLogout)
}

// HandleUnauthorized is the global 401 hook installed on the API client.
// The client has already cleared the credential.
func (h *Holder) HandleUnauthorized() {
	h.transition(context.Background(), StateAnonymous, nil, ReasonUnauthorized)
}

func (h *Holder) ForgotPassword(ctx context.Context, email string) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	_, err := h.api.Send(ctx, http.MethodPost, "/auth/forgot-password", map[string]string{"email": email})
	return err
}

func (h *Holder) ResetPassword(ctx context.Context, token, password string) error {
	if token == "" || password == "" {
		return fmt.Errorf("%w: token and password are required", ErrInvalidInput)
	}
	_, err := h.api.Send(ctx, http.MethodPost, "/auth/reset-password/"+url.PathEscape(token), map[string]string{
		"password": password,
	})
	return err
}

// ProfileInput carries the editable profile fields; empty fields are omitted.
type ProfileInput struct {
	Name    string          `json:"name,omitempty"`
	Phone   string          `json:"phone,omitempty"`
	Address json.RawMessage `json:"address,omitempty"`
}

// UpdateProfile saves the profile and replaces the held identity.
func (h *Holder) UpdateProfile(ctx context.Context, in ProfileInput) (*User, error) {
	if !h.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	raw, err := h.api.Send(ctx, http.MethodPut, "/auth/update-profile", in)
	if err != nil {
		return nil, err
	}

	user := parseUser(raw)
	if user == nil {
		if user, err = h.fetchIdentity(ctx); err != nil {
			return nil, err
		}
	}

	h.mu.Lock()
	if h.state == StateAuthenticated {
		h.user = user
	}
	h.mu.Unlock()
	return h.User(), nil
}

// RequestAccountDeletion asks the backend to email a deletion confirmation link.
func (h *Holder) RequestAccountDeletion(ctx context.Context) error {
	if !h.IsAuthenticated() {
		return ErrNotAuthenticated
	}
	_, err := h.api.Send(ctx, http.MethodPost, "/auth/request-delete-account", nil)
	return err
}

// ConfirmAccountDeletion follows the emailed link and ends the session.
func (h *Holder) ConfirmAccountDeletion(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	if _, err := h.api.Send(ctx, http.MethodGet, "/auth/confirm-delete/"+url.PathEscape(token), nil); err != nil {
		return err
	}
	h.clearCredential(ctx)
	h.transition(ctx, StateAnonymous, nil, ReasonAccountDeleted)
	return nil
}

func (h *Holder) fetchIdentity(ctx context.Context) (*User, error) {
	raw, err := h.api.Send(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	user := parseUser(raw)
	if user == nil {
		return nil, errors.New("identity response did not contain a user")
	}
	return user, nil
}

func (h *Holder) clearCredential(ctx context.Context) {
	if err := h.creds.ClearToken(context.WithoutCancel(ctx)); err != nil {
		h.log.Error("Failed to clear credential", err)
	}
}

// transition applies the new state and notifies observers when it changed.
// Re-entering Authenticated with a different identity also notifies.
func (h *Holder) transition(ctx context.Context, to State, user *User, reason string) {
	h.mu.Lock()
	from := h.state
	prevUser := h.user
	h.state = to
	h.user = user
	observers := append([]Observer(nil), h.observers...)
	h.mu.Unlock()

	if from == to && (to != StateAuthenticated || sameUser(prevUser, user)) {
		return
	}

	h.log.Debug("Auth session transition", map[string]interface{}{
		"from":   from.String(),
		"to":     to.String(),
		"reason": reason,
	})

	t := Transition{From: from, To: to, User: user, Reason: reason}
	for _, o := range observers {
		o(ctx, t)
	}
}

func sameUser(a, b *User) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID && a.Email == b.Email
}
