package authgw

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zaptest"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/token"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

// testClock is a fixed reference time shared by gate and issuer.
var testClock = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeBackend serves identities from a map and counts lookups.
type fakeBackend struct {
	users   map[string]*users.User
	lookups int
	err     error
}

func (b *fakeBackend) FindByID(_ context.Context, id string) (*users.User, error) {
	b.lookups++
	if b.err != nil {
		return nil, b.err
	}
	u, ok := b.users[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return u, nil
}

// Assert fakeBackend implements Backend.
var _ Backend = (*fakeBackend)(nil)

// fakeRequest is a bare Request for driving the gate directly.
type fakeRequest struct {
	headers map[string]string
	cookies map[string]string
	path    string
	addr    string
}

func (r *fakeRequest) Header(name string) string { return r.headers[name] }

func (r *fakeRequest) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}

func (r *fakeRequest) Path() string {
	if r.path == "" {
		return "/api/products"
	}
	return r.path
}

func (r *fakeRequest) RemoteAddr() string {
	if r.addr == "" {
		return "203.0.113.7:51000"
	}
	return r.addr
}

type gateFixture struct {
	gate    *Gate
	backend *fakeBackend
	issuer  *token.Issuer
	buyer   *users.User
	admin   *users.User
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	buyer := &users.User{ID: "u-buyer", Email: "b@example.com", Role: users.RoleBuyer, Active: true}
	admin := &users.User{ID: "u-admin", Email: "a@example.com", Role: users.RoleAdmin, Active: true}
	backend := &fakeBackend{users: map[string]*users.User{
		buyer.ID: buyer,
		admin.ID: admin,
	}}
	issuer, err := token.NewIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	issuer.Now = func() time.Time { return testClock }
	cache, err := NewCache(128, 5*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	limiter := NewLimiter(DefaultBudgets())
	t.Cleanup(limiter.Stop)
	gate := NewGate(backend, issuer, cache, limiter, zaptest.NewLogger(t))
	gate.Now = func() time.Time { return testClock }
	return &gateFixture{gate: gate, backend: backend, issuer: issuer, buyer: buyer, admin: admin}
}

func (f *gateFixture) bearer(t *testing.T, u *users.User) *fakeRequest {
	t.Helper()
	raw, err := f.issuer.Issue(u.ID, string(u.Role))
	if err != nil {
		t.Fatal(err)
	}
	return &fakeRequest{headers: map[string]string{"Authorization": "Bearer " + raw}}
}

func TestGate_MissingCredential(t *testing.T) {
	f := newGateFixture(t)
	res := f.gate.Authenticate(context.Background(), &fakeRequest{}, Options{})
	assert.False(t, res.OK)
	assert.Equal(t, 401, res.Status)
	assert.Equal(t, ErrMissingCredential, res.Err)
	assert.Nil(t, res.Identity)
}

func TestGate_AnonymousAllowed(t *testing.T) {
	f := newGateFixture(t)
	res := f.gate.Authenticate(context.Background(), &fakeRequest{}, Options{AllowAnonymous: true})
	assert.True(t, res.OK)
	assert.Nil(t, res.Identity)
	assert.Equal(t, ErrNone, res.Err)
}

func TestGate_InvalidSignature(t *testing.T) {
	f := newGateFixture(t)
	forger, _ := token.NewIssuer("wrong-secret", time.Hour)
	forger.Now = func() time.Time { return testClock }
	raw, err := forger.Issue(f.buyer.ID, "BUYER")
	assert.NoError(t, err)
	req := &fakeRequest{headers: map[string]string{"Authorization": "Bearer " + raw}}
	res := f.gate.Authenticate(context.Background(), req, Options{})
	assert.False(t, res.OK)
	assert.Equal(t, 401, res.Status)
	assert.Equal(t, ErrInvalidCredential, res.Err)
}

func TestGate_ExpiredToken(t *testing.T) {
	f := newGateFixture(t)
	past, _ := token.NewIssuer("test-secret", time.Hour)
	past.Now = func() time.Time { return testClock.Add(-2 * time.Hour) }
	raw, err := past.Issue(f.buyer.ID, "BUYER")
	assert.NoError(t, err)
	req := &fakeRequest{headers: map[string]string{"Authorization": "Bearer " + raw}}
	res := f.gate.Authenticate(context.Background(), req, Options{})
	assert.False(t, res.OK)
	assert.Equal(t, 401, res.Status)
	assert.Equal(t, ErrInvalidCredential, res.Err)
}

func TestGate_UnknownSubject(t *testing.T) {
	f := newGateFixture(t)
	raw, err := f.issuer.Issue("u-deleted", "BUYER")
	assert.NoError(t, err)
	req := &fakeRequest{headers: map[string]string{"Authorization": "Bearer " + raw}}
	res := f.gate.Authenticate(context.Background(), req, Options{})
	assert.False(t, res.OK)
	assert.Equal(t, 401, res.Status)
	assert.Equal(t, ErrUnknownSubject, res.Err)
}

func TestGate_Success(t *testing.T) {
	f := newGateFixture(t)
	res := f.gate.Authenticate(context.Background(), f.bearer(t, f.buyer), Options{})
	assert.True(t, res.OK)
	assert.Equal(t, f.buyer, res.Identity)
}

func TestGate_CookieFallback(t *testing.T) {
	f := newGateFixture(t)
	raw, err := f.issuer.Issue(f.buyer.ID, "BUYER")
	assert.NoError(t, err)
	req := &fakeRequest{cookies: map[string]string{CookieName: raw}}
	res := f.gate.Authenticate(context.Background(), req, Options{})
	assert.True(t, res.OK)
	assert.Equal(t, f.buyer, res.Identity)
}

func TestGate_CacheSuppressesLookup(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	res := f.gate.Authenticate(context.Background(), req, Options{})
	assert.True(t, res.OK)
	assert.Equal(t, 1, f.backend.lookups)
	// Second call hits the cache.
	res = f.gate.Authenticate(context.Background(), req, Options{})
	assert.True(t, res.OK)
	assert.Equal(t, f.buyer, res.Identity)
	assert.Equal(t, 1, f.backend.lookups)
	assert.Equal(t, 1, f.gate.CacheSize())
}

func TestGate_CacheEntryExpires(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	f.gate.Authenticate(context.Background(), req, Options{})
	assert.Equal(t, 1, f.backend.lookups)
	// Past the cache TTL the lookup happens again.
	f.gate.Now = func() time.Time { return testClock.Add(6 * time.Minute) }
	res := f.gate.Authenticate(context.Background(), req, Options{})
	assert.True(t, res.OK)
	assert.Equal(t, 2, f.backend.lookups)
}

func TestGate_SkipCache(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	f.gate.Authenticate(context.Background(), req, Options{SkipCache: true})
	f.gate.Authenticate(context.Background(), req, Options{SkipCache: true})
	assert.Equal(t, 2, f.backend.lookups)
	assert.Equal(t, 0, f.gate.CacheSize())
}

func TestGate_ClearCacheIdempotence(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	first := f.gate.Authenticate(context.Background(), req, Options{})
	assert.True(t, first.OK)
	assert.Equal(t, 1, f.backend.lookups)

	f.gate.ClearCache()
	assert.Equal(t, 0, f.gate.CacheSize())

	// Same result as before clearing, at the cost of exactly one
	// fresh lookup.
	second := f.gate.Authenticate(context.Background(), req, Options{})
	assert.Equal(t, first, second)
	assert.Equal(t, 2, f.backend.lookups)
}

func TestGate_RoleMismatch(t *testing.T) {
	f := newGateFixture(t)
	res := f.gate.Authenticate(context.Background(), f.bearer(t, f.buyer), Options{
		RequiredRoles: []users.Role{users.RoleAdmin},
	})
	assert.False(t, res.OK)
	assert.Equal(t, 403, res.Status)
	assert.Equal(t, ErrForbidden, res.Err)
	assert.Nil(t, res.Identity)
}

func TestGate_RoleMatch(t *testing.T) {
	f := newGateFixture(t)
	res := f.gate.Authenticate(context.Background(), f.bearer(t, f.admin), Options{
		RequiredRoles: []users.Role{users.RoleSeller, users.RoleAdmin},
	})
	assert.True(t, res.OK)
	assert.Equal(t, f.admin, res.Identity)
}

func TestGate_RoleCheckAppliesToCacheHits(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	// Warm the cache with an unrestricted call.
	assert.True(t, f.gate.Authenticate(context.Background(), req, Options{}).OK)
	// A cached identity still fails the role check.
	res := f.gate.Authenticate(context.Background(), req, Options{
		RequiredRoles: []users.Role{users.RoleAdmin},
	})
	assert.False(t, res.OK)
	assert.Equal(t, 403, res.Status)
	assert.Equal(t, 1, f.backend.lookups)
}

func TestGate_LoginWindow(t *testing.T) {
	f := newGateFixture(t)
	req := &fakeRequest{path: "/api/auth/login"}
	opts := Options{AllowAnonymous: true}
	// The login class allows 5 requests per window.
	for n := 1; n <= 5; n++ {
		res := f.gate.Authenticate(context.Background(), req, opts)
		assert.True(t, res.OK, "request %d", n)
	}
	res := f.gate.Authenticate(context.Background(), req, opts)
	assert.False(t, res.OK)
	assert.Equal(t, 429, res.Status)
	assert.Equal(t, ErrRateLimited, res.Err)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	// A fresh window allows traffic again.
	f.gate.Now = func() time.Time { return testClock.Add(16 * time.Minute) }
	res = f.gate.Authenticate(context.Background(), req, opts)
	assert.True(t, res.OK)
}

func TestGate_RateLimitPrecedesAuth(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	req.path = "/api/auth/login"
	for n := 0; n < 5; n++ {
		f.gate.Authenticate(context.Background(), req, Options{})
	}
	res := f.gate.Authenticate(context.Background(), req, Options{})
	// Over budget beats a valid credential.
	assert.Equal(t, 429, res.Status)
}

func TestGate_SkipRateLimit(t *testing.T) {
	f := newGateFixture(t)
	req := &fakeRequest{path: "/api/auth/login"}
	opts := Options{AllowAnonymous: true, SkipRateLimit: true}
	for n := 0; n < 20; n++ {
		res := f.gate.Authenticate(context.Background(), req, opts)
		assert.True(t, res.OK)
	}
}

func TestGate_BypassHeader(t *testing.T) {
	f := newGateFixture(t)
	f.gate.BypassToken = "trusted-probe"
	opts := Options{AllowAnonymous: true}
	blessed := &fakeRequest{
		path:    "/api/auth/login",
		headers: map[string]string{"X-RateLimit-Bypass": "trusted-probe"},
	}
	for n := 0; n < 20; n++ {
		assert.True(t, f.gate.Authenticate(context.Background(), blessed, opts).OK)
	}
	// A wrong bypass value is still limited.
	cursed := &fakeRequest{
		path:    "/api/auth/login",
		headers: map[string]string{"X-RateLimit-Bypass": "guess"},
	}
	var rejected bool
	for n := 0; n < 6; n++ {
		if !f.gate.Authenticate(context.Background(), cursed, opts).OK {
			rejected = true
		}
	}
	assert.True(t, rejected)
}

func TestGate_BlockClient(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	client := ClientID(req)
	assert.True(t, f.gate.Authenticate(context.Background(), req, Options{}).OK)

	f.gate.BlockClient(client, time.Hour)
	res := f.gate.Authenticate(context.Background(), req, Options{})
	assert.Equal(t, 429, res.Status)

	// The block expires on its own.
	f.gate.Now = func() time.Time { return testClock.Add(2 * time.Hour) }
	assert.True(t, f.gate.Authenticate(context.Background(), req, Options{}).OK)
}

func TestGate_BackendFailure(t *testing.T) {
	f := newGateFixture(t)
	f.backend.err = context.DeadlineExceeded
	res := f.gate.Authenticate(context.Background(), f.bearer(t, f.buyer), Options{})
	assert.False(t, res.OK)
	assert.Equal(t, 500, res.Status)
	assert.Equal(t, ErrInternal, res.Err)
	// The generic message leaks no internals.
	assert.Equal(t, "Erro interno do servidor", res.Err.Message())
}

func TestGate_InvalidateToken(t *testing.T) {
	f := newGateFixture(t)
	req := f.bearer(t, f.buyer)
	raw := Credential(req)
	f.gate.Authenticate(context.Background(), req, Options{})
	assert.Equal(t, 1, f.gate.CacheSize())
	f.gate.InvalidateToken(raw)
	assert.Equal(t, 0, f.gate.CacheSize())
	f.gate.Authenticate(context.Background(), req, Options{})
	assert.Equal(t, 2, f.backend.lookups)
}
