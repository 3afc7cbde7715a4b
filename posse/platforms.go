package posse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ringmaster/posse/posse/bluesky"
	"github.com/ringmaster/posse/posse/mastodon"
)

// Platform is one syndication target. Post never returns an error; all
// failure modes are carried in the result so the orchestrator can keep going
// with other platforms and posts.
type Platform interface {
	Kind() PlatformKind
	Post(ctx context.Context, post *EphemeraPost, canonicalURL string) SyndicationResult
}

// defaultImageAlt is used for Bluesky embeds when a post image carries no
// alt text.
const defaultImageAlt = "Image from ephemera post"

type mastodonPlatform struct {
	cfg     MastodonConfig
	baseURL string
	images  *ImageResolver
	logger  *slog.Logger
}

func newMastodonPlatform(cfg MastodonConfig, images *ImageResolver, logger *slog.Logger) *mastodonPlatform {
	return &mastodonPlatform{
		cfg:     cfg,
		baseURL: "https://" + cfg.Instance,
		images:  images,
		logger:  logger,
	}
}

func (p *mastodonPlatform) Kind() PlatformKind { return Mastodon }

func (p *mastodonPlatform) Post(ctx context.Context, post *EphemeraPost, canonicalURL string) SyndicationResult {
	if err := p.cfg.Validate(); err != nil {
		return SyndicationResult{Platform: Mastodon, Err: fmt.Errorf("invalid mastodon config: %w", err)}
	}

	client := mastodon.NewClient(p.baseURL, p.cfg.Token)

	// Diagnostic only; an unreachable probe never blocks the post.
	if err := client.CheckInstance(ctx); err != nil {
		p.logger.Warn("mastodon instance check failed", "instance", p.cfg.Instance, "error", err)
	}

	content := GeneratePostContent(post.Data, canonicalURL, post.Body, Mastodon)

	var mediaIDs []string
	if img := p.images.Resolve(post.Data.Image, Mastodon); img != nil {
		filename := "image" + extensionForMime(img.MimeType)
		id, err := client.UploadMedia(ctx, img.Data, img.MimeType, filename, post.Data.Image.Alt)
		if err != nil {
			p.logger.Warn("mastodon media upload failed, posting text only", "post", post.File, "error", err)
		} else {
			mediaIDs = append(mediaIDs, id)
		}
	}

	url, err := client.PostStatus(ctx, content, mediaIDs)
	if err != nil {
		return SyndicationResult{Platform: Mastodon, Err: err}
	}
	return SyndicationResult{Platform: Mastodon, URL: url}
}

type blueskyPlatform struct {
	cfg    BlueskyConfig
	pds    string
	images *ImageResolver
	logger *slog.Logger
}

func newBlueskyPlatform(cfg BlueskyConfig, images *ImageResolver, logger *slog.Logger) *blueskyPlatform {
	return &blueskyPlatform{cfg: cfg, images: images, logger: logger}
}

func (p *blueskyPlatform) Kind() PlatformKind { return Bluesky }

func (p *blueskyPlatform) Post(ctx context.Context, post *EphemeraPost, canonicalURL string) SyndicationResult {
	if err := p.cfg.Validate(); err != nil {
		return SyndicationResult{Platform: Bluesky, Err: fmt.Errorf("invalid bluesky config: %w", err)}
	}

	client := bluesky.NewClient(p.pds)
	if err := client.Login(ctx, p.cfg.Username, p.cfg.Password); err != nil {
		return SyndicationResult{Platform: Bluesky, Err: fmt.Errorf("bluesky auth failed: %w", err)}
	}

	content := GeneratePostContent(post.Data, canonicalURL, post.Body, Bluesky)

	var embed *bluesky.ImageEmbed
	if img := p.images.Resolve(post.Data.Image, Bluesky); img != nil {
		blob, err := client.UploadBlob(ctx, img.Data, img.MimeType)
		if err != nil {
			p.logger.Warn("bluesky blob upload failed, posting text only", "post", post.File, "error", err)
		} else {
			alt := post.Data.Image.Alt
			if alt == "" {
				alt = defaultImageAlt
			}
			embed = bluesky.NewImageEmbed(blob, alt)
		}
	}

	record := bluesky.PostRecord{
		Text:      content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
		Embed:     embed,
		Facets:    bluesky.ParseURLFacets(content),
	}

	uri, err := client.CreatePost(ctx, record)
	if err != nil {
		return SyndicationResult{Platform: Bluesky, Err: err}
	}
	return SyndicationResult{Platform: Bluesky, URL: bluesky.PostURL(p.cfg.Username, uri)}
}
