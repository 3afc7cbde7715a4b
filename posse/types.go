package posse

import (
	"path"
	"time"
)

// PlatformKind identifies one of the supported syndication targets.
type PlatformKind int

const (
	Mastodon PlatformKind = iota
	Bluesky
)

func (k PlatformKind) String() string {
	switch k {
	case Mastodon:
		return "mastodon"
	case Bluesky:
		return "bluesky"
	}
	return "unknown"
}

// DisplayName is the human-readable platform name recorded in front matter.
// These exact strings track per-platform completion in existing content, so
// they must never change.
func (k PlatformKind) DisplayName() string {
	switch k {
	case Mastodon:
		return "Mastodon"
	case Bluesky:
		return "Bluesky"
	}
	return "Unknown"
}

// maxPostLength is the character budget for generated content. Both values
// sit under the platforms' nominal caps to leave headroom for grapheme
// counting discrepancies.
func (k PlatformKind) maxPostLength() int {
	if k == Bluesky {
		return 300
	}
	return 400
}

func (k PlatformKind) safetyBuffer() int {
	if k == Bluesky {
		return 20
	}
	return 10
}

// maxImageBytes is the upload ceiling per platform. Bluesky's is kept well
// under the actual 1 MB cap to absorb encoding overhead.
func (k PlatformKind) maxImageBytes() int64 {
	if k == Bluesky {
		return 838860 // 0.8 MiB
	}
	return 8 << 20 // 8 MiB
}

// prefersSmallestImage reports whether variant selection should pick strictly
// the smallest file instead of ranking by format.
func (k PlatformKind) prefersSmallestImage() bool {
	return k == Bluesky
}

// SyndicationLink is the durable record appended to a post's front matter
// after a successful platform post.
type SyndicationLink struct {
	Href  string `yaml:"href"`
	Title string `yaml:"title"`
}

// PostImage is a post's declared image. Src is relative to the content
// directory, or absolute from the public asset root when it starts with "/".
type PostImage struct {
	Src string `yaml:"src"`
	Alt string `yaml:"alt"`
}

// EphemeraData is the front matter of a short-form post.
type EphemeraData struct {
	Title       string            `yaml:"title"`
	Date        string            `yaml:"date"`
	Syndication []SyndicationLink `yaml:"syndication"`
	Image       *PostImage        `yaml:"image"`
}

// EphemeraPost is one short-form content unit discovered by the scanner.
type EphemeraPost struct {
	// File is the path relative to the content directory, unique within the
	// tree.
	File string
	Data EphemeraData
	Body string
	// Date is resolved from front matter, the filename date pattern, or the
	// zero epoch, in that order.
	Date time.Time
}

// DisplayName returns the post title, falling back to its file path.
func (p *EphemeraPost) DisplayName() string {
	if p.Data.Title != "" {
		return p.Data.Title
	}
	return p.File
}

// HasSyndication reports whether the post already records a link for the
// given platform display name.
func (p *EphemeraPost) HasSyndication(displayName string) bool {
	for _, link := range p.Data.Syndication {
		if link.Title == displayName {
			return true
		}
	}
	return false
}

// Slug is the post's URL path segment, the file path minus its extension.
func (p *EphemeraPost) Slug() string {
	return p.File[:len(p.File)-len(path.Ext(p.File))]
}

// SyndicationResult is the outcome of one platform attempt. Adapter failures
// are carried here as data, never as errors escaping to the orchestrator.
type SyndicationResult struct {
	Platform PlatformKind
	URL      string
	Err      error
}

// Success reports whether the platform accepted the post.
func (r SyndicationResult) Success() bool {
	return r.Err == nil && r.URL != ""
}
