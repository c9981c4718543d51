package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hearth/internal/session"
)

func infoCmd() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Load a model and print its session info line",
		Flags: append(commonModelFlags(), loggingFlags()...),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyModelConfig(c, LoadConfig())

			if modelPath == "" {
				return cli.Exit("error: --model is required", 1)
			}

			back, err := backendFor(backendSel)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			s, err := session.New(session.Config{
				Backend:      back,
				Logger:       buildLogger(),
				Context:      contextConfig(),
				SafetyMargin: int(safetyMargin),
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: create session: %v", err), 1)
			}
			defer func() { _ = s.Close() }()

			if err := s.Load(modelPath, 0); err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			fmt.Println(s.Info())
			return nil
		},
	}
}
