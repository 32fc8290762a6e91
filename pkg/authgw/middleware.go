package authgw

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"
)

// httpRequest adapts *net/http.Request to the gateway Request surface.
type httpRequest struct {
	r *http.Request
}

func (h httpRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

func (h httpRequest) Cookie(name string) (string, bool) {
	c, err := h.r.Cookie(name)
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

func (h httpRequest) Path() string {
	return h.r.URL.Path
}

func (h httpRequest) RemoteAddr() string {
	return h.r.RemoteAddr
}

// Assert httpRequest implements Request.
var _ Request = httpRequest{}

// Middleware returns an HTTP middleware enforcing the given options.
// On success the resolved identity, if any, is attached to the request
// context.
func (g *Gate) Middleware(opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := g.Authenticate(r.Context(), httpRequest{r}, opts)
			if !res.OK {
				WriteFailure(w, res)
				return
			}
			if res.Identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), res.Identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// failureBody is the JSON error contract surfaced to API clients.
type failureBody struct {
	Error      string `json:"error"`
	StatusCode int    `json:"statusCode"`
	Timestamp  string `json:"timestamp"`
}

// WriteFailure writes the gateway failure response.
func WriteFailure(w http.ResponseWriter, res Result) {
	w.Header().Set("Content-Type", "application/json")
	if res.Err == ErrRateLimited && res.RetryAfter > 0 {
		secs := int(math.Ceil(res.RetryAfter.Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}
	w.WriteHeader(res.Status)
	_ = json.NewEncoder(w).Encode(failureBody{
		Error:      res.Err.Message(),
		StatusCode: res.Status,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
