// Package authgw decides whether marketplace requests may proceed.
//
// The gateway verifies bearer credentials, resolves them to marketplace
// identities, enforces per-route-class rate limits and role-based
// authorization, and caches identity lookups.
package authgw

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/token"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

// Backend fetches identities for token subjects.
type Backend interface {
	FindByID(ctx context.Context, id string) (*users.User, error)
}

// ErrorKind classifies an authentication failure.
type ErrorKind int

// Failure taxonomy.
const (
	ErrNone ErrorKind = iota
	ErrRateLimited
	ErrMissingCredential
	ErrInvalidCredential
	ErrUnknownSubject
	ErrForbidden
	ErrInternal
)

// Message returns the user-facing message for the failure.
// Internal failures never leak detail to the caller.
func (k ErrorKind) Message() string {
	switch k {
	case ErrRateLimited:
		return "Muitas requisições. Tente novamente mais tarde."
	case ErrMissingCredential:
		return "Token de autenticação necessário"
	case ErrInvalidCredential:
		return "Token inválido ou expirado"
	case ErrUnknownSubject:
		return "Usuário não encontrado"
	case ErrForbidden:
		return "Acesso negado"
	case ErrInternal:
		return "Erro interno do servidor"
	}
	return ""
}

func (k ErrorKind) String() string {
	switch k {
	case ErrNone:
		return "none"
	case ErrRateLimited:
		return "rate_limited"
	case ErrMissingCredential:
		return "missing_credential"
	case ErrInvalidCredential:
		return "invalid_credential"
	case ErrUnknownSubject:
		return "unknown_subject"
	case ErrForbidden:
		return "forbidden"
	case ErrInternal:
		return "internal"
	}
	return "unknown"
}

// Options controls a single authentication decision.
type Options struct {
	// RequiredRoles restricts access to the listed roles.
	// Empty means any authenticated identity is acceptable.
	RequiredRoles []users.Role
	// AllowAnonymous lets credential-less requests through with no identity.
	AllowAnonymous bool
	// SkipRateLimit disables the rate-limit check.
	SkipRateLimit bool
	// SkipCache bypasses the identity cache for this call.
	SkipCache bool
}

// Result is the outcome of an authentication decision.
type Result struct {
	OK         bool
	Identity   *users.User // nil on failure and on anonymous pass-through
	Err        ErrorKind
	Status     int           // 401, 403, 429 or 500 on failure
	RetryAfter time.Duration // set when Err is ErrRateLimited
}

func failure(kind ErrorKind, status int) Result {
	return Result{Err: kind, Status: status}
}

// DefaultLookupTimeout bounds the identity lookup.
const DefaultLookupTimeout = 5 * time.Second

// Gate is the authentication gateway. Construct with NewGate.
type Gate struct {
	backend Backend
	tokens  token.Verifier
	cache   *Cache
	limiter *Limiter
	log     *zap.Logger

	// Metrics is optional decision instrumentation.
	Metrics *Metrics
	// LookupTimeout bounds backend lookups. Defaults to DefaultLookupTimeout.
	LookupTimeout time.Duration
	// BypassToken skips rate limiting for requests carrying it in
	// the X-RateLimit-Bypass header. Empty disables the bypass.
	BypassToken string
	// Now returns the current time. It can be overridden in tests.
	Now func() time.Time
}

// NewGate builds a gateway around its collaborators.
func NewGate(backend Backend, tokens token.Verifier, cache *Cache, limiter *Limiter, log *zap.Logger) *Gate {
	return &Gate{
		backend:       backend,
		tokens:        tokens,
		cache:         cache,
		limiter:       limiter,
		log:           log,
		LookupTimeout: DefaultLookupTimeout,
		Now:           time.Now,
	}
}

// Authenticate decides whether a request may proceed.
// Every failure path returns a typed result; nothing panics through here.
func (g *Gate) Authenticate(ctx context.Context, req Request, opts Options) Result {
	res := g.authenticate(ctx, req, opts)
	if g.Metrics != nil {
		g.Metrics.Decisions.WithLabelValues(res.Err.String()).Inc()
	}
	return res
}

func (g *Gate) authenticate(ctx context.Context, req Request, opts Options) Result {
	now := g.Now()

	// Rate limiting.
	if !opts.SkipRateLimit && !g.bypassed(req) {
		class := ClassifyPath(req.Path())
		client := ClientID(req)
		ok, retryAfter := g.limiter.Allow(client, class, now)
		if !ok {
			if g.Metrics != nil {
				g.Metrics.RateLimited.WithLabelValues(class.String()).Inc()
			}
			g.log.Warn("Rate limit exceeded",
				zap.String("client", client),
				zap.Stringer("class", class))
			res := failure(ErrRateLimited, 429)
			res.RetryAfter = retryAfter
			return res
		}
	}

	// Credential extraction.
	raw := Credential(req)
	if raw == "" {
		if opts.AllowAnonymous {
			return Result{OK: true}
		}
		return failure(ErrMissingCredential, 401)
	}

	// Cache lookup.
	key := KeyFor(raw)
	if !opts.SkipCache {
		if identity, ok := g.cache.Get(key, now); ok {
			if g.Metrics != nil {
				g.Metrics.CacheHits.Inc()
			}
			return g.authorize(identity, opts)
		}
		if g.Metrics != nil {
			g.Metrics.CacheMisses.Inc()
		}
	}

	// Token verification.
	claims, err := g.tokens.Verify(raw)
	if err != nil {
		return failure(ErrInvalidCredential, 401)
	}

	// Identity resolution, bounded by the lookup timeout.
	lookupCtx, cancel := context.WithTimeout(ctx, g.lookupTimeout())
	defer cancel()
	identity, err := g.backend.FindByID(lookupCtx, claims.Subject)
	if errors.Is(err, users.ErrNotFound) {
		return failure(ErrUnknownSubject, 401)
	} else if err != nil {
		g.log.Error("Identity lookup failed", zap.Error(err))
		return failure(ErrInternal, 500)
	}
	if !opts.SkipCache {
		g.cache.Add(key, identity, now)
	}
	return g.authorize(identity, opts)
}

// authorize applies the role check and finishes the decision.
func (g *Gate) authorize(identity *users.User, opts Options) Result {
	if len(opts.RequiredRoles) > 0 {
		allowed := false
		for _, role := range opts.RequiredRoles {
			if identity.Role == role {
				allowed = true
				break
			}
		}
		if !allowed {
			return failure(ErrForbidden, 403)
		}
	}
	return Result{OK: true, Identity: identity}
}

func (g *Gate) bypassed(req Request) bool {
	return g.BypassToken != "" && req.Header(bypassHeader) == g.BypassToken
}

func (g *Gate) lookupTimeout() time.Duration {
	if g.LookupTimeout <= 0 {
		return DefaultLookupTimeout
	}
	return g.LookupTimeout
}

// InvalidateToken evicts a credential's cached identity.
func (g *Gate) InvalidateToken(raw string) {
	g.cache.Remove(KeyFor(raw))
}

// ClearCache evicts all cached identities.
func (g *Gate) ClearCache() {
	g.cache.Purge()
}

// CacheSize returns the number of live cache entries.
func (g *Gate) CacheSize() int {
	return g.cache.Len()
}

// BlockClient force-rejects a client id regardless of its counters.
func (g *Gate) BlockClient(client string, d time.Duration) {
	g.limiter.Block(client, d, g.Now())
}

// RateLimitEntries returns the number of tracked rate-limit windows.
func (g *Gate) RateLimitEntries() int {
	return g.limiter.Len()
}
