// Package web is the HTTP surface of the auth gateway.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/audit"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/authgw"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/token"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

// UserDirectory is the slice of the user store the handlers need.
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
	FindByEmail(ctx context.Context, email string) (*users.User, error)
	Create(ctx context.Context, u *users.User) error
}

// Handlers implements the auth API routes.
type Handlers struct {
	Users  UserDirectory
	Gate   *authgw.Gate
	Issuer *token.Issuer
	Audit  audit.Publisher
	Log    *zap.Logger

	// Inval broadcasts cache evictions to peer instances. Optional.
	Inval *authgw.Invalidation
	// Google enables the OAuth login routes when configured.
	Google *GoogleOAuth
	// CookieSecure marks issued credential cookies as HTTPS-only.
	CookieSecure bool
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registration struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type sessionResponse struct {
	Token string      `json:"token"`
	User  *users.User `json:"user"`
}

func clientID(r *http.Request) string {
	return authgw.ClientID(httpView{r})
}

// httpView mirrors the gateway's request adapter for handler-side
// client id and credential derivation.
type httpView struct {
	r *http.Request
}

func (h httpView) Header(name string) string { return h.r.Header.Get(name) }

func (h httpView) Cookie(name string) (string, bool) {
	c, err := h.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (h httpView) Path() string       { return h.r.URL.Path }
func (h httpView) RemoteAddr() string { return h.r.RemoteAddr }

// Login authenticates email/password credentials and issues a token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil || creds.Email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	user, err := h.Users.FindByEmail(r.Context(), creds.Email)
	if err != nil && !errors.Is(err, users.ErrNotFound) {
		h.Log.Error("Login lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	if err != nil || !user.CheckPassword(creds.Password) {
		h.publish(audit.Event{
			Type:     audit.TypeLoginFailed,
			Email:    creds.Email,
			ClientID: clientID(r),
		})
		writeError(w, http.StatusUnauthorized, "Credenciais inválidas")
		return
	}
	h.issueSession(w, r, user, http.StatusOK)
	h.publish(audit.Event{
		Type:     audit.TypeLoginSucceeded,
		UserID:   user.ID,
		Email:    user.Email,
		ClientID: clientID(r),
	})
}

// Register creates a buyer or seller account and issues a token.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var reg registration
	if err := json.NewDecoder(r.Body).Decode(&reg); err != nil || reg.Email == "" || reg.Password == "" || reg.Name == "" {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	if reg.Role == "" {
		reg.Role = string(users.RoleBuyer)
	}
	role, err := users.ParseRole(reg.Role)
	if err != nil || role == users.RoleAdmin {
		// Admin accounts are created through the back office only.
		writeError(w, http.StatusBadRequest, "Papel inválido")
		return
	}
	if _, err := h.Users.FindByEmail(r.Context(), reg.Email); err == nil {
		writeError(w, http.StatusConflict, "E-mail já cadastrado")
		return
	} else if !errors.Is(err, users.ErrNotFound) {
		h.Log.Error("Registration lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	user := &users.User{
		ID:    uuid.NewString(),
		Email: reg.Email,
		Name:  reg.Name,
		Role:  role,
	}
	if err := user.SetPassword(reg.Password); err != nil {
		h.Log.Error("Password hash failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	if err := h.Users.Create(r.Context(), user); err != nil {
		h.Log.Error("User creation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	h.issueSession(w, r, user, http.StatusCreated)
	h.publish(audit.Event{
		Type:     audit.TypeRegistered,
		UserID:   user.ID,
		Email:    user.Email,
		ClientID: clientID(r),
	})
}

// Me echoes the authenticated identity.
func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := authgw.IdentityFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Token de autenticação necessário")
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

// Logout evicts the presented token's cached identity, on this
// instance and on peers, and clears the credential cookie.
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	identity, _ := authgw.IdentityFromContext(r.Context())
	if raw := authgw.Credential(httpView{r}); raw != "" {
		h.Gate.InvalidateToken(raw)
		if h.Inval != nil {
			if err := h.Inval.Add(r.Context(), authgw.KeyFor(raw)); err != nil {
				h.Log.Warn("Failed to broadcast invalidation", zap.Error(err))
			}
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authgw.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieSecure,
	})
	event := audit.Event{Type: audit.TypeLoggedOut, ClientID: clientID(r)}
	if identity != nil {
		event.UserID = identity.ID
	}
	h.publish(event)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Sessão encerrada"})
}

type gateStats struct {
	CacheSize        int `json:"cacheSize"`
	RateLimitEntries int `json:"rateLimitEntries"`
}

// AdminStats reports gateway cache and rate-limit occupancy.
func (h *Handlers) AdminStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, gateStats{
		CacheSize:        h.Gate.CacheSize(),
		RateLimitEntries: h.Gate.RateLimitEntries(),
	})
}

type blockRequest struct {
	ClientID string `json:"clientId"`
	Seconds  int    `json:"seconds"`
}

// AdminBlock force-rejects a client id for a duration.
func (h *Handlers) AdminBlock(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	d := time.Duration(req.Seconds) * time.Second
	if d <= 0 {
		d = time.Hour
	}
	h.Gate.BlockClient(req.ClientID, d)
	admin, _ := authgw.IdentityFromContext(r.Context())
	event := audit.Event{
		Type:     audit.TypeClientBlocked,
		ClientID: req.ClientID,
		Detail:   d.String(),
	}
	if admin != nil {
		event.UserID = admin.ID
	}
	h.publish(event)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Cliente bloqueado"})
}

// issueSession signs a credential for the user, sets the cookie
// fallback and writes the session response.
func (h *Handlers) issueSession(w http.ResponseWriter, r *http.Request, user *users.User, status int) {
	raw, err := h.Issuer.Issue(user.ID, string(user.Role))
	if err != nil {
		h.Log.Error("Token issuance failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     authgw.CookieName,
		Value:    raw,
		Path:     "/",
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
		HttpOnly: true,
		Secure:   h.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, status, sessionResponse{Token: raw, User: user})
}

func (h *Handlers) publish(event audit.Event) {
	if h.Audit == nil {
		return
	}
	if err := h.Audit.Publish(event); err != nil {
		h.Log.Warn("Failed to publish audit event", zap.Error(err))
	}
}
