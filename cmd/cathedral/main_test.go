package main

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/cathedral/cathedral/internal/config"
)

func TestNewLoggerLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug": zerolog.DebugLevel,
		"warn":  zerolog.WarnLevel,
		"":      zerolog.InfoLevel,
		"bogus": zerolog.InfoLevel,
	}
	for in, want := range cases {
		logger := newLogger(config.Config{Env: "production", LogLevel: in})
		if got := logger.GetLevel(); got != want {
			t.Fatalf("newLogger(%q) level = %s, want %s", in, got, want)
		}
	}
}
