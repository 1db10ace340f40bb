package main

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/phuslu/log"

	"vigia.dev/patroltrack/internal/api"
	"vigia.dev/patroltrack/internal/config"
	"vigia.dev/patroltrack/internal/hub"
	"vigia.dev/patroltrack/internal/store/pgstore"
	"vigia.dev/patroltrack/internal/webstream"
)

func main() {
	cfg := config.Load()
	if cfg.JwtSecret == "" {
		log.Fatal().Msg("PT_JWT_SECRET must be set")
	}
	pool, err := pgxpool.Connect(context.Background(), cfg.DbUrl)
	if err != nil {
		panic(err.Error())
	}
	st := pgstore.New(pool)
	h := hub.New()

	stream := webstream.NewStreamServer(h, cfg.JwtSecret, webstream.StreamConfig{
		ListenAddr:    cfg.StreamListen,
		ProxyProtocol: cfg.ProxyProtocol,
	})
	srv := api.NewApi(st, st, h, &api.ApiConfig{
		ListenAddr:      cfg.ApiListen,
		JwtSecret:       cfg.JwtSecret,
		TokenTTL:        cfg.TokenTTL,
		StalenessWindow: cfg.StalenessWindow,
		RouteLookback:   cfg.RouteLookback,
		CorsOrigins:     cfg.CorsOrigins,
	})

	go stream.Run()
	srv.Run()
}
