package main

import "testing"

func TestContextConfigCarriesTuning(t *testing.T) {
	prev := []int64{contextLen, batchSize, threads, threadsBatch}
	prevPrec := cachePrecision
	defer func() {
		contextLen, batchSize, threads, threadsBatch = prev[0], prev[1], prev[2], prev[3]
		cachePrecision = prevPrec
	}()

	contextLen, batchSize, threads, threadsBatch = 1024, 128, 4, 8
	cachePrecision = "q8_0"

	cfg := contextConfig()
	if cfg.ContextLen != 1024 || cfg.BatchSize != 128 {
		t.Fatalf("context/batch not carried: %+v", cfg)
	}
	if cfg.Threads != 4 || cfg.ThreadsBatch != 8 {
		t.Fatalf("thread counts not carried: %+v", cfg)
	}
	if cfg.CachePrecision != "q8_0" {
		t.Fatalf("cache precision not carried: %+v", cfg)
	}
}

func TestServerDefaultsFromConfig(t *testing.T) {
	maxNew := int64(64)
	temp := 0.3
	topP := 0.8
	d := serverDefaults(Config{
		MaxNewTokens: &maxNew,
		Temperature:  &temp,
		TopP:         &topP,
	})
	if d.MaxNewTokens != 64 || d.Temperature != 0.3 || d.TopP != 0.8 {
		t.Fatalf("config defaults not carried: %+v", d)
	}

	zero := serverDefaults(Config{})
	if zero.MaxNewTokens != 0 || zero.Temperature != 0 || zero.TopP != 0 {
		t.Fatalf("expected zero defaults for empty config, got %+v", zero)
	}
}

func TestBackendFor(t *testing.T) {
	if _, err := backendFor("toy"); err != nil {
		t.Fatalf("toy backend: %v", err)
	}
	if _, err := backendFor(""); err != nil {
		t.Fatalf("default backend: %v", err)
	}
	if _, err := backendFor("cuda"); err == nil {
		t.Fatal("expected error for unsupported backend")
	}
}
