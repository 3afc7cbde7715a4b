package posse

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
)

// Syndicator drives one syndication run: scan, post to whatever platforms
// each post is still missing, and record the results back into the post's
// front matter.
type Syndicator struct {
	cfg       *Config
	fs        afero.Fs
	logger    *slog.Logger
	scanner   *Scanner
	platforms []Platform
	out       io.Writer
}

func NewSyndicator(cfg *Config, fs afero.Fs, logger *slog.Logger) *Syndicator {
	images := NewImageResolver(fs, cfg.ContentDir, cfg.PublicDir, cfg.AssetsDir, logger)

	var platforms []Platform
	if cfg.Mastodon != nil {
		platforms = append(platforms, newMastodonPlatform(*cfg.Mastodon, images, logger))
	}
	if cfg.Bluesky != nil {
		platforms = append(platforms, newBlueskyPlatform(*cfg.Bluesky, images, logger))
	}

	return &Syndicator{
		cfg:       cfg,
		fs:        fs,
		logger:    logger,
		scanner:   NewScanner(fs, cfg.ContentDir, cfg.Cutoff, logger),
		platforms: platforms,
		out:       os.Stdout,
	}
}

// Run performs one best-effort syndication pass. It never returns an error
// and never panics out: syndication is a side job that must not break the
// invoking build.
func (s *Syndicator) Run(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("syndication run failed", "panic", r)
		}
	}()

	s.logger.Info("starting syndication",
		"mastodon", s.cfg.Mastodon != nil,
		"bluesky", s.cfg.Bluesky != nil,
		"dry_run", s.cfg.DryRun,
		"max_posts", s.cfg.MaxPosts)

	if len(s.platforms) == 0 {
		s.logger.Info("no platforms configured, nothing to do")
		return
	}

	posts := s.scanner.Scan(len(s.platforms), s.cfg.MaxPosts)
	if len(posts) == 0 {
		s.logger.Info("no ephemera posts to syndicate")
		return
	}

	if s.cfg.DryRun {
		s.printDryRunPreview(posts)
		return
	}

	for i, post := range posts {
		// The delay between posts is a mandatory suspension point to stay
		// within platform rate limits.
		if i > 0 {
			select {
			case <-ctx.Done():
				s.logger.Warn("syndication cancelled", "error", ctx.Err())
				return
			case <-time.After(s.cfg.PostDelay):
			}
		}
		s.syndicatePost(ctx, post)
	}

	s.logger.Info("syndication complete")
}

// missingPlatforms returns the configured platforms that have no recorded
// syndication link on the post yet.
func (s *Syndicator) missingPlatforms(post *EphemeraPost) []Platform {
	var missing []Platform
	for _, p := range s.platforms {
		if !post.HasSyndication(p.Kind().DisplayName()) {
			missing = append(missing, p)
		}
	}
	return missing
}

func (s *Syndicator) canonicalURL(post *EphemeraPost) string {
	return s.cfg.SiteURL + "/ephemera/" + post.Slug()
}

func (s *Syndicator) syndicatePost(ctx context.Context, post *EphemeraPost) {
	needed := s.missingPlatforms(post)
	if len(needed) == 0 {
		s.logger.Debug("skipping fully syndicated post", "post", post.DisplayName())
		return
	}

	names := make([]string, len(needed))
	for i, p := range needed {
		names[i] = p.Kind().DisplayName()
	}
	s.logger.Info("syndicating", "post", post.DisplayName(), "platforms", strings.Join(names, ", "))

	canonicalURL := s.canonicalURL(post)

	// Platform calls for one post are independent and run concurrently.
	results := make(chan SyndicationResult, len(needed))
	var wg sync.WaitGroup
	for _, p := range needed {
		wg.Add(1)
		go func(p Platform) {
			defer wg.Done()
			results <- p.Post(ctx, post, canonicalURL)
		}(p)
	}
	wg.Wait()
	close(results)

	links := make([]SyndicationLink, 0, len(needed))
	for result := range results {
		if result.Success() {
			s.logger.Info("posted", "platform", result.Platform.DisplayName(), "url", result.URL)
			links = append(links, SyndicationLink{Href: result.URL, Title: result.Platform.DisplayName()})
		} else {
			s.logger.Error("platform post failed",
				"platform", result.Platform.DisplayName(), "post", post.File, "error", result.Err)
		}
	}
	if len(links) == 0 {
		return
	}

	// The post may have been edited since the scan; AppendSyndication
	// re-reads it fresh. A failed write is logged and the platforms will be
	// retried next run.
	path := filepath.Join(s.cfg.ContentDir, filepath.FromSlash(post.File))
	if err := AppendSyndication(s.fs, path, links); err != nil {
		s.logger.Error("failed to record syndication links", "post", post.File, "error", err)
		return
	}
	s.logger.Info("recorded syndication links", "post", post.File, "count", len(links))
}

// printDryRunPreview renders what a real run would do, with per-platform
// content previews, without any network calls.
func (s *Syndicator) printDryRunPreview(posts []*EphemeraPost) {
	s.logger.Info("dry run, no posts will be published", "posts", len(posts))

	table := tablewriter.NewWriter(s.out)
	table.SetHeader([]string{"Post", "Needs", "Mastodon Chars", "Bluesky Chars"})

	for _, post := range posts {
		needed := s.missingPlatforms(post)
		names := make([]string, len(needed))
		for i, p := range needed {
			names[i] = p.Kind().DisplayName()
		}

		canonicalURL := s.canonicalURL(post)
		mastodonLen := len([]rune(GeneratePostContent(post.Data, canonicalURL, post.Body, Mastodon)))
		blueskyLen := len([]rune(GeneratePostContent(post.Data, canonicalURL, post.Body, Bluesky)))

		table.Append([]string{
			post.DisplayName(),
			strings.Join(names, ", "),
			strconv.Itoa(mastodonLen),
			strconv.Itoa(blueskyLen),
		})
	}
	table.Render()
}
