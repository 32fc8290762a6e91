package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/audit"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

const oauthStateCookie = "oauth_state"

// GoogleOAuth handles social login through Google's OAuth 2.0 endpoints.
// New accounts created through this flow are buyers.
type GoogleOAuth struct {
	Config *oauth2.Config
	// UserInfoURL can be overridden in tests.
	UserInfoURL string
}

type googleUserInfo struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (g *GoogleOAuth) userInfoURL() string {
	if g.UserInfoURL != "" {
		return g.UserInfoURL
	}
	return "https://www.googleapis.com/oauth2/v3/userinfo"
}

// fetchUser exchanges the authorization code and reads the user's
// identity claims.
func (g *GoogleOAuth) fetchUser(r *http.Request, code string) (*googleUserInfo, error) {
	tok, err := g.Config.Exchange(r.Context(), code)
	if err != nil {
		return nil, fmt.Errorf("code exchange failed: %w", err)
	}
	res, err := g.Config.Client(r.Context(), tok).Get(g.userInfoURL())
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo status %d", res.StatusCode)
	}
	info := new(googleUserInfo)
	if err := json.NewDecoder(res.Body).Decode(info); err != nil {
		return nil, fmt.Errorf("failed to decode userinfo: %w", err)
	}
	if info.Email == "" {
		return nil, errors.New("userinfo without email")
	}
	return info, nil
}

// GoogleLogin redirects the browser to Google's consent page.
func (h *Handlers) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		writeError(w, http.StatusNotFound, "Login social não configurado")
		return
	}
	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   int((10 * 60)),
		HttpOnly: true,
		Secure:   h.CookieSecure,
	})
	http.Redirect(w, r, h.Google.Config.AuthCodeURL(state), http.StatusFound)
}

// GoogleCallback finishes the OAuth flow: it validates the state,
// resolves the Google identity and signs a marketplace credential,
// creating a buyer account on first login.
func (h *Handlers) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	if h.Google == nil {
		writeError(w, http.StatusNotFound, "Login social não configurado")
		return
	}
	state, ok := httpView{r}.Cookie(oauthStateCookie)
	if !ok || state != r.URL.Query().Get("state") {
		writeError(w, http.StatusBadRequest, "Estado OAuth inválido")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "Dados inválidos")
		return
	}
	info, err := h.Google.fetchUser(r, code)
	if err != nil {
		h.Log.Error("Google login failed", zap.Error(err))
		writeError(w, http.StatusUnauthorized, "Falha na autenticação com o Google")
		return
	}
	user, err := h.Users.FindByEmail(r.Context(), info.Email)
	if errors.Is(err, users.ErrNotFound) {
		user = &users.User{
			ID:    uuid.NewString(),
			Email: info.Email,
			Name:  info.Name,
			Role:  users.RoleBuyer,
		}
		// Social accounts carry an unusable password hash.
		if err := user.SetPassword(uuid.NewString()); err != nil {
			writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
			return
		}
		if err := h.Users.Create(r.Context(), user); err != nil {
			h.Log.Error("User creation failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
			return
		}
		h.publish(audit.Event{
			Type:     audit.TypeRegistered,
			UserID:   user.ID,
			Email:    user.Email,
			ClientID: clientID(r),
			Detail:   "google",
		})
	} else if err != nil {
		h.Log.Error("Google login lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Erro interno do servidor")
		return
	}
	h.issueSession(w, r, user, http.StatusOK)
	h.publish(audit.Event{
		Type:     audit.TypeLoginSucceeded,
		UserID:   user.ID,
		Email:    user.Email,
		ClientID: clientID(r),
		Detail:   "google",
	})
}
