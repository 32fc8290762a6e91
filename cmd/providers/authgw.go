package providers

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/GouveiaZx/vendeuonline-sub004/pkg/authgw"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/token"
	"github.com/GouveiaZx/vendeuonline-sub004/pkg/users"
)

// Auth gateway config.
const (
	ConfAuthgwSecret         = "authgw.secret"
	ConfAuthgwTokenTTL       = "authgw.token_ttl"
	ConfAuthgwLookupTimeout  = "authgw.lookup_timeout"
	ConfAuthgwBypassToken    = "authgw.bypass_token"
	ConfAuthgwCacheSize      = "authgw.cache.size"
	ConfAuthgwCacheTTL       = "authgw.cache.ttl"
	ConfAuthgwCacheStreamKey = "authgw.cache.stream_key"
	ConfAuthgwCacheBacklog   = "authgw.cache.backlog"

	ConfAuthgwLoginMax       = "authgw.limits.login.max"
	ConfAuthgwLoginWindow    = "authgw.limits.login.window"
	ConfAuthgwRegisterMax    = "authgw.limits.register.max"
	ConfAuthgwRegisterWindow = "authgw.limits.register.window"
	ConfAuthgwGenericMax     = "authgw.limits.generic.max"
	ConfAuthgwGenericWindow  = "authgw.limits.generic.window"
	ConfAuthgwAdminMax       = "authgw.limits.admin.max"
	ConfAuthgwAdminWindow    = "authgw.limits.admin.window"
)

func init() {
	stock := authgw.DefaultBudgets()
	viper.SetDefault(ConfAuthgwSecret, "")
	viper.SetDefault(ConfAuthgwTokenTTL, 7*24*time.Hour)
	viper.SetDefault(ConfAuthgwLookupTimeout, authgw.DefaultLookupTimeout)
	viper.SetDefault(ConfAuthgwBypassToken, "")
	viper.SetDefault(ConfAuthgwCacheSize, 1024)
	viper.SetDefault(ConfAuthgwCacheTTL, 5*time.Minute)
	viper.SetDefault(ConfAuthgwCacheStreamKey, "token-invalidations")
	viper.SetDefault(ConfAuthgwCacheBacklog, 64)
	viper.SetDefault(ConfAuthgwLoginMax, stock[authgw.ClassLogin].Max)
	viper.SetDefault(ConfAuthgwLoginWindow, stock[authgw.ClassLogin].Window)
	viper.SetDefault(ConfAuthgwRegisterMax, stock[authgw.ClassRegister].Max)
	viper.SetDefault(ConfAuthgwRegisterWindow, stock[authgw.ClassRegister].Window)
	viper.SetDefault(ConfAuthgwGenericMax, stock[authgw.ClassGeneric].Max)
	viper.SetDefault(ConfAuthgwGenericWindow, stock[authgw.ClassGeneric].Window)
	viper.SetDefault(ConfAuthgwAdminMax, stock[authgw.ClassAdmin].Max)
	viper.SetDefault(ConfAuthgwAdminWindow, stock[authgw.ClassAdmin].Window)
}

// NewIssuer builds the credential signer from the configured secret.
// The server refuses to boot without one.
func NewIssuer(log *zap.Logger) *token.Issuer {
	issuer, err := token.NewIssuer(
		viper.GetString(ConfAuthgwSecret),
		viper.GetDuration(ConfAuthgwTokenTTL))
	if err != nil {
		log.Fatal("Invalid "+ConfAuthgwSecret, zap.Error(err))
	}
	return issuer
}

func NewUserStore(db *sqlx.DB) *users.Store {
	return &users.Store{DB: db}
}

func NewAuthCache() (*authgw.Cache, error) {
	return authgw.NewCache(
		viper.GetInt(ConfAuthgwCacheSize),
		viper.GetDuration(ConfAuthgwCacheTTL))
}

func NewLimiter(lc fx.Lifecycle) *authgw.Limiter {
	budgets := authgw.Budgets{
		authgw.ClassLogin: {
			Max:    viper.GetInt(ConfAuthgwLoginMax),
			Window: viper.GetDuration(ConfAuthgwLoginWindow),
		},
		authgw.ClassRegister: {
			Max:    viper.GetInt(ConfAuthgwRegisterMax),
			Window: viper.GetDuration(ConfAuthgwRegisterWindow),
		},
		authgw.ClassGeneric: {
			Max:    viper.GetInt(ConfAuthgwGenericMax),
			Window: viper.GetDuration(ConfAuthgwGenericWindow),
		},
		authgw.ClassAdmin: {
			Max:    viper.GetInt(ConfAuthgwAdminMax),
			Window: viper.GetDuration(ConfAuthgwAdminWindow),
		},
	}
	limiter := authgw.NewLimiter(budgets)
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			limiter.Stop()
			return nil
		},
	})
	return limiter
}

func NewGate(
	store *users.Store,
	issuer *token.Issuer,
	cache *authgw.Cache,
	limiter *authgw.Limiter,
	metrics *authgw.Metrics,
	log *zap.Logger,
) *authgw.Gate {
	gate := authgw.NewGate(store, issuer, cache, limiter, log.Named("authgw"))
	gate.Metrics = metrics
	gate.LookupTimeout = viper.GetDuration(ConfAuthgwLookupTimeout)
	gate.BypassToken = viper.GetString(ConfAuthgwBypassToken)
	return gate
}

// NewInvalidation starts the cross-instance cache invalidation
// consumer with the app lifecycle.
func NewInvalidation(
	lc fx.Lifecycle,
	shutdown fx.Shutdowner,
	cache *authgw.Cache,
	rd *redis.Client,
	log *zap.Logger,
) *authgw.Invalidation {
	invalidation := &authgw.Invalidation{
		Cache:     cache,
		Redis:     rd,
		Log:       log.Named("authgw.invalidation"),
		StreamKey: viper.GetString(ConfAuthgwCacheStreamKey),
		Backlog:   viper.GetInt64(ConfAuthgwCacheBacklog),
	}
	if invalidation.StreamKey == "" {
		log.Fatal("Missing " + ConfAuthgwCacheStreamKey)
	}
	log.Info("Starting auth cache invalidator")
	innerCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := invalidation.Run(innerCtx); err != nil {
					log.Error("Auth cache invalidation failed", zap.Error(err))
					if err := shutdown.Shutdown(); err != nil {
						log.Fatal("Shutdown failed")
					}
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			cancel()
			return nil
		},
	})
	return invalidation
}
