package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	goredis "github.com/redis/go-redis/v9"

	"github.com/Nixie-Tech-LLC/medusa-player/internal/config"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/db"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/player"
	"github.com/Nixie-Tech-LLC/medusa-player/internal/provider/httpapi"
	redisclient "github.com/Nixie-Tech-LLC/medusa-player/internal/redis"
)

type providers struct {
	schedules player.ScheduleProvider
	content   player.ContentProvider
	positions player.PositionStore

	sqlDB *sqlx.DB
	rdb   *goredis.Client
}

// buildProviders picks the schedule/content source and, when Redis is
// configured, puts the content cache in front of it and enables position
// persistence. Redis being down is not fatal.
func buildProviders(ctx context.Context, cfg *config.Config) (*providers, error) {
	p := &providers{}

	var content player.ContentProvider
	switch cfg.Source {
	case config.SourcePostgres:
		conn, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db init: %w", err)
		}
		p.sqlDB = conn
		store := db.NewStore(conn)
		p.schedules, content = store, store
	default:
		client := httpapi.NewClient(cfg.ControllerURL, cfg.DisplayID, cfg.DeviceSecret, cfg.FetchTimeout)
		p.schedules, content = client, client
	}
	p.content = content

	if cfg.RedisAddress != "" {
		rdb, err := redisclient.NewClient(ctx, cfg.RedisAddress, cfg.RedisUsername, cfg.RedisPassword)
		if err != nil {
			logger.Warn().Err(err).Str("addr", cfg.RedisAddress).Msg("redis unavailable, running without cache or saved position")
		} else {
			p.rdb = rdb
			p.content = redisclient.NewContentCache(rdb, content, 0)
			p.positions = redisclient.NewPositionStore(rdb)
			logger.Info().Str("addr", cfg.RedisAddress).Msg("redis content cache enabled")
		}
	}
	return p, nil
}

func (p *providers) Close() {
	if p.rdb != nil {
		_ = p.rdb.Close()
	}
	if p.sqlDB != nil {
		_ = p.sqlDB.Close()
	}
}
