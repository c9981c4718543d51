package main

import "github.com/urfave/cli/v3"

var (
	modelPath      string
	backendSel     string
	contextLen     int64
	batchSize      int64
	threads        int64
	threadsBatch   int64
	cachePrecision string
	safetyMargin   int64
	stopMarker     string
	logLevel       string
	logFormat      string
	debug          bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "model",
			Aliases:     []string{"m"},
			Usage:       "path to model file",
			Destination: &modelPath,
		},
		&cli.StringFlag{
			Name:        "backend",
			Usage:       "execution backend (toy)",
			Value:       "toy",
			Destination: &backendSel,
		},
		&cli.Int64Flag{
			Name:        "context-len",
			Aliases:     []string{"ctx", "c"},
			Usage:       "context window size in tokens",
			Value:       2048,
			Destination: &contextLen,
		},
		&cli.Int64Flag{
			Name:        "batch-size",
			Aliases:     []string{"batch"},
			Usage:       "prefill batch capacity in tokens",
			Value:       512,
			Destination: &batchSize,
		},
		&cli.Int64Flag{
			Name:        "threads",
			Usage:       "decode threads (0 = auto)",
			Destination: &threads,
		},
		&cli.Int64Flag{
			Name:        "threads-batch",
			Aliases:     []string{"threads_batch"},
			Usage:       "prefill threads (0 = same as --threads)",
			Destination: &threadsBatch,
		},
		&cli.StringFlag{
			Name:        "cache-precision",
			Aliases:     []string{"cache_precision"},
			Usage:       "KV cache precision (f32, f16, q8_0)",
			Value:       "f16",
			Destination: &cachePrecision,
		},
		&cli.Int64Flag{
			Name:        "safety-margin",
			Aliases:     []string{"safety_margin"},
			Usage:       "context slots reserved before the window fills (0 = default)",
			Destination: &safetyMargin,
		},
		&cli.StringFlag{
			Name:        "stop-marker",
			Usage:       "text marker that terminates generation",
			Destination: &stopMarker,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "info",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
