package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/spf13/afero"

	"github.com/ringmaster/posse/posse"
)

var cli struct {
	Config   string `help:"Path to a posse.yaml configuration file." type:"path"`
	DryRun   bool   `help:"Preview what would be syndicated without posting."`
	MaxPosts int    `help:"Override the maximum posts syndicated in one run."`
	Verbose  bool   `short:"v" help:"Enable debug logging."`
}

func main() {
	kong.Parse(&cli,
		kong.Name("posse"),
		kong.Description("Syndicate ephemera posts to Mastodon and Bluesky."),
	)

	level := slog.LevelInfo
	if cli.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := posse.LoadConfig(cli.Config, logger)
	if err != nil {
		fmt.Fprintln(os.Stderr, "posse:", err)
		os.Exit(1)
	}
	if cli.DryRun {
		cfg.DryRun = true
	}
	if cli.MaxPosts > 0 {
		cfg.MaxPosts = cli.MaxPosts
	}

	// Run never fails the caller: a broken syndication pass must not break
	// the build that invoked it.
	posse.NewSyndicator(cfg, afero.NewOsFs(), logger).Run(context.Background())
}
