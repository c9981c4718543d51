package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hearth/internal/api"
	"github.com/samcharles93/hearth/internal/session"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation REST API",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(cmd, cfg, &addr)

			log := buildLogger()
			back, err := backendFor(backendSel)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			s, err := session.New(session.Config{
				Backend:      back,
				Logger:       log,
				Context:      contextConfig(),
				SafetyMargin: int(safetyMargin),
				StopMarker:   stopMarker,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create session: %v", err), 1)
			}
			defer func() { _ = s.Close() }()

			if modelPath != "" {
				if err := s.Load(modelPath, 0); err != nil {
					return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
				}
				log.Info("model loaded", "path", modelPath)
			}

			server := api.NewServer(s, serverDefaults(cfg), log)
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)
			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

// serverDefaults lifts the config file's sampling defaults into the API
// server, so requests that omit sampling fields follow the operator's
// configuration rather than compiled-in values.
func serverDefaults(cfg Config) api.Defaults {
	d := api.Defaults{}
	if cfg.MaxNewTokens != nil {
		d.MaxNewTokens = int(*cfg.MaxNewTokens)
	}
	if cfg.Temperature != nil {
		d.Temperature = *cfg.Temperature
	}
	if cfg.TopP != nil {
		d.TopP = *cfg.TopP
	}
	return d
}
