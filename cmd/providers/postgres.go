package providers

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/spf13/viper"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Postgres config keys.
const (
	ConfPostgresDSN = "postgres.dsn"
)

func init() {
	viper.SetDefault(ConfPostgresDSN, "")
}

// NewPostgres connects an SQL client to the Postgres DSN from config.
func NewPostgres(log *zap.Logger, lc fx.Lifecycle) (*sqlx.DB, error) {
	dsn := viper.GetString(ConfPostgresDSN)
	if dsn == "" {
		log.Fatal("Empty " + ConfPostgresDSN)
	}
	log.Info("Connecting to Postgres DB")
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return db.Close()
		},
	})
	return db, nil
}
