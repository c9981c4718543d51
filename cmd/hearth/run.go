package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/hearth/internal/session"
)

func runCmd() *cli.Command {
	var (
		prompt       string
		maxNewTokens int64
		temp         float64
		topP         float64
		seed         int64
	)

	return &cli.Command{
		Name:  "run",
		Usage: "Run generation against a loaded model",
		Flags: append(append(commonModelFlags(), loggingFlags()...),
			&cli.StringFlag{
				Name:        "prompt",
				Aliases:     []string{"p"},
				Usage:       "prompt text (omit for interactive mode)",
				Destination: &prompt,
			},
			&cli.Int64Flag{
				Name:        "max-new-tokens",
				Aliases:     []string{"n"},
				Usage:       "maximum number of tokens to generate",
				Value:       256,
				Destination: &maxNewTokens,
			},
			&cli.Float64Flag{
				Name:        "temp",
				Aliases:     []string{"temperature", "t"},
				Usage:       "sampling temperature (<= 0 = greedy)",
				Value:       0.8,
				Destination: &temp,
			},
			&cli.Float64Flag{
				Name:        "top-p",
				Aliases:     []string{"top_p"},
				Usage:       "nucleus sampling threshold",
				Value:       0.95,
				Destination: &topP,
			},
			&cli.Int64Flag{
				Name:        "seed",
				Usage:       "sampling RNG seed (0 = random per request)",
				Destination: &seed,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyRunConfig(c, LoadConfig(), &temp, &topP, &maxNewTokens, &seed)

			if modelPath == "" {
				return cli.Exit("error: --model is required", 1)
			}

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

			if err := loadWithProgress(s, modelPath); err != nil {
				return cli.Exit(fmt.Sprintf("error: load model: %v", err), 1)
			}
			fmt.Fprintln(os.Stderr, s.Info())

			interactive := prompt == ""
			if interactive {
				fmt.Fprintln(os.Stderr, "Interactive mode. Type /exit to quit.")
			}

			scanner := bufio.NewScanner(os.Stdin)
			for {
				text := prompt
				if interactive {
					fmt.Print("> ")
					if !scanner.Scan() {
						break
					}
					text = scanner.Text()
					if strings.TrimSpace(text) == "/exit" {
						break
					}
					if strings.TrimSpace(text) == "" {
						continue
					}
				}

				res := s.Generate(session.Request{
					Prompt:       text,
					MaxNewTokens: int(maxNewTokens),
					Temperature:  temp,
					TopP:         topP,
					Seed:         seed,
				}, func(chunk string) {
					fmt.Print(chunk)
				})

				fmt.Println()
				fmt.Fprintf(os.Stderr, "Stats: %.2f TPS (%d tokens in %s, stop: %s)\n",
					res.Stats.TPS, res.Stats.TokensGenerated, res.Stats.Duration, res.Reason)

				if !interactive {
					break
				}
			}
			return nil
		},
	}
}

// loadWithProgress shows a spinner while the model loads; model files can
// take a while to read and fingerprint on slow storage.
func loadWithProgress(s *session.Session, path string) error {
	bar := progressbar.NewOptions(-1,
		progressbar.OptionSetDescription("Loading model"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(40),
	)
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	err := s.Load(path, 0)
	close(done)
	_ = bar.Finish()
	fmt.Fprintln(os.Stderr)
	return err
}
