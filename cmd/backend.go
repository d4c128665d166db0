package cmd

import (
	"context"
	"fmt"

	"github.com/smazurov/mediagraph/internal/capability"
	"github.com/smazurov/mediagraph/internal/ffmpeg"
	"github.com/smazurov/mediagraph/internal/logging"
)

// NewQuery probes the ffmpeg binary and answers capability questions
// against the factories it can stand in for.
func NewQuery(ctx context.Context, binary string) (*capability.Query, *ffmpeg.Engine, error) {
	inv, err := ffmpeg.NewProber(binary, nil).Probe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to probe %s: %w", binary, err)
	}
	eng := ffmpeg.NewEngine(inv)
	return capability.NewQuery(eng, capability.DetectPlatform()), eng, nil
}

// initLogging sets up plain text logging for one-shot subcommands.
func initLogging(level string) {
	logging.Initialize(logging.Config{
		Level:  level,
		Format: "text",
	})
}
