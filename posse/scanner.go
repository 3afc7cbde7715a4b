package posse

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/frontmatter"
	"github.com/araddon/dateparse"
	"github.com/spf13/afero"
)

// filenameDatePattern matches the YYYY-MM-DD convention used in ephemera
// filenames. It allows skipping obviously old files without reading them.
var filenameDatePattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// Scanner walks a content tree and produces the posts that still need to be
// syndicated somewhere.
type Scanner struct {
	fs     afero.Fs
	dir    string
	cutoff time.Time
	logger *slog.Logger
}

func NewScanner(fs afero.Fs, dir string, cutoff time.Time, logger *slog.Logger) *Scanner {
	return &Scanner{fs: fs, dir: dir, cutoff: cutoff, logger: logger}
}

// Scan returns up to maxPosts eligible posts in directory order. A post is
// eligible when it is dated on or after the cutoff and has fewer syndication
// links than there are configured platforms. Individual file failures are
// logged and skipped; a failed subtree never aborts the rest of the walk.
func (s *Scanner) Scan(configuredPlatforms, maxPosts int) []*EphemeraPost {
	s.logger.Info("scanning for ephemera posts", "dir", s.dir, "cutoff", s.cutoff.Format("2006-01-02"))

	var posts []*EphemeraPost
	err := afero.Walk(s.fs, s.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			s.logger.Warn("could not scan path", "path", path, "error", err)
			return nil
		}
		if info.IsDir() || filepath.Ext(path) != ".md" {
			return nil
		}

		// Filename pre-filter: skip files with a date pattern strictly
		// before the cutoff without reading them. Files without a date
		// pattern fall through to content-based filtering.
		if m := filenameDatePattern.FindString(filepath.Base(path)); m != "" {
			if d, perr := time.ParseInLocation("2006-01-02", m, time.UTC); perr == nil && d.Before(s.cutoff) {
				return nil
			}
		}

		post, perr := s.parseFile(path)
		if perr != nil {
			s.logger.Warn("could not read post", "path", path, "error", perr)
			return nil
		}
		if s.eligible(post, configuredPlatforms) {
			posts = append(posts, post)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("scan failed", "dir", s.dir, "error", err)
	}

	if len(posts) > maxPosts {
		s.logger.Warn("limiting posts this run", "found", len(posts), "max", maxPosts)
		posts = posts[:maxPosts]
	}

	s.logger.Info("found ephemera posts to process", "count", len(posts))
	return posts
}

func (s *Scanner) parseFile(path string) (*EphemeraPost, error) {
	f, err := s.fs.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var data EphemeraData
	body, err := frontmatter.Parse(f, &data)
	if err != nil {
		return nil, fmt.Errorf("parse front matter of %s: %w", path, err)
	}

	rel, err := filepath.Rel(s.dir, path)
	if err != nil {
		rel = filepath.Base(path)
	}

	post := &EphemeraPost{
		File: filepath.ToSlash(rel),
		Data: data,
		Body: string(body),
	}
	post.Date = resolvePostDate(data.Date, filepath.Base(path))
	return post, nil
}

// resolvePostDate prefers the front-matter date, falls back to the filename
// date pattern, and finally the zero epoch so dateless posts sort before any
// cutoff.
func resolvePostDate(raw, filename string) time.Time {
	if raw != "" {
		if d, err := dateparse.ParseIn(strings.TrimSpace(raw), time.UTC); err == nil {
			return d
		}
	}
	if m := filenameDatePattern.FindString(filename); m != "" {
		if d, err := time.ParseInLocation("2006-01-02", m, time.UTC); err == nil {
			return d
		}
	}
	return time.Unix(0, 0).UTC()
}

func (s *Scanner) eligible(post *EphemeraPost, configuredPlatforms int) bool {
	if post.Date.Before(s.cutoff) {
		s.logger.Debug("skipping post before cutoff", "post", post.File, "date", post.Date.Format("2006-01-02"))
		return false
	}

	done := len(post.Data.Syndication)
	if done >= configuredPlatforms {
		s.logger.Debug("skipping fully syndicated post", "post", post.File,
			"syndicated", fmt.Sprintf("%d/%d", done, configuredPlatforms))
		return false
	}
	if done > 0 {
		s.logger.Debug("will retry partially syndicated post", "post", post.File,
			"syndicated", fmt.Sprintf("%d/%d", done, configuredPlatforms))
	}
	return true
}
