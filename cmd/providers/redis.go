package providers

import (
	"context"
	"crypto/tls"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Redis config keys. The invalidation stream lives on a hosted Redis,
// so password auth and TLS are part of the config surface.
const (
	ConfRedisNetwork  = "redis.network"
	ConfRedisAddr     = "redis.addr"
	ConfRedisPassword = "redis.password"
	ConfRedisDB       = "redis.db"
	ConfRedisTLS      = "redis.tls"
)

func init() {
	viper.SetDefault(ConfRedisNetwork, "tcp")
	viper.SetDefault(ConfRedisAddr, "localhost:6379")
	viper.SetDefault(ConfRedisPassword, "")
	viper.SetDefault(ConfRedisDB, 0)
	viper.SetDefault(ConfRedisTLS, false)
}

func newRedisOptions() *redis.Options {
	opts := &redis.Options{
		Network:  viper.GetString(ConfRedisNetwork),
		Addr:     viper.GetString(ConfRedisAddr),
		Password: viper.GetString(ConfRedisPassword),
		DB:       viper.GetInt(ConfRedisDB),
	}
	if viper.GetBool(ConfRedisTLS) {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return opts
}

// NewRedis connects the invalidation stream client from config.
func NewRedis(ctx context.Context, log *zap.Logger, lc fx.Lifecycle) (*redis.Client, error) {
	redisOpts := newRedisOptions()
	log.Info("Connecting to Redis",
		zap.String(ConfRedisNetwork, redisOpts.Network),
		zap.String(ConfRedisAddr, redisOpts.Addr),
		zap.Int(ConfRedisDB, redisOpts.DB),
		zap.Bool(ConfRedisTLS, redisOpts.TLSConfig != nil))
	rd := redis.NewClient(redisOpts)
	if err := rd.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			log.Info("Closing Redis client")
			err := rd.Close()
			if err != nil {
				log.Error("Failed to close Redis client", zap.Error(err))
			}
			return err
		},
	})
	return rd, nil
}
