package posse

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeBytes(t *testing.T, fs afero.Fs, path string, size int) {
	t.Helper()
	if err := afero.WriteFile(fs, path, make([]byte, size), 0644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func newTestResolver(fs afero.Fs) *ImageResolver {
	return NewImageResolver(fs, "content", "public", "assets", discardLogger())
}

func TestMimeTypeFor(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"photo.jpg", "image/jpeg"},
		{"photo.JPEG", "image/jpeg"},
		{"shot.png", "image/png"},
		{"anim.gif", "image/gif"},
		{"modern.webp", "image/webp"},
		{"unknown.bmp", "image/jpeg"},
		{"noextension", "image/jpeg"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := MimeTypeFor(tt.filename); got != tt.want {
				t.Errorf("MimeTypeFor(%q) = %q, expected %q", tt.filename, got, tt.want)
			}
		})
	}
}

func TestResolvePathRoots(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBytes(t, fs, filepath.Join("public", "banner.png"), 100)
	writeBytes(t, fs, filepath.Join("content", "photo.jpg"), 100)
	r := newTestResolver(fs)

	tests := []struct {
		src  string
		want string
	}{
		{"/banner.png", filepath.Join("public", "banner.png")},
		{"./photo.jpg", filepath.Join("content", "photo.jpg")},
		{"photo.jpg", filepath.Join("content", "photo.jpg")},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			img := r.Resolve(&PostImage{Src: tt.src, Alt: "x"}, Mastodon)
			if img == nil {
				t.Fatalf("Resolve(%q) = nil", tt.src)
			}
			if img.Path != tt.want {
				t.Errorf("path = %q, expected %q", img.Path, tt.want)
			}
		})
	}
}

func TestResolveNoImage(t *testing.T) {
	r := newTestResolver(afero.NewMemMapFs())
	if got := r.Resolve(nil, Mastodon); got != nil {
		t.Errorf("Resolve(nil) = %v, expected nil", got)
	}
	if got := r.Resolve(&PostImage{}, Mastodon); got != nil {
		t.Errorf("Resolve(empty src) = %v, expected nil", got)
	}
}

func TestResolveSizeGating(t *testing.T) {
	// 900 KB: over the Bluesky ceiling, well under Mastodon's.
	fs := afero.NewMemMapFs()
	writeBytes(t, fs, filepath.Join("content", "big.jpg"), 900*1024)
	r := newTestResolver(fs)
	img := &PostImage{Src: "./big.jpg", Alt: "a large image"}

	if got := r.Resolve(img, Mastodon); got == nil {
		t.Error("900KB image should be usable for Mastodon")
	}
	if got := r.Resolve(img, Bluesky); got != nil {
		t.Errorf("900KB image should be rejected for Bluesky, got %q", got.Path)
	}
}

func TestResolvePrefersProcessedVariant(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBytes(t, fs, filepath.Join("content", "photo.jpg"), 500*1024)
	writeBytes(t, fs, filepath.Join("assets", "photo.abc123.webp"), 120*1024)
	writeBytes(t, fs, filepath.Join("assets", "photo.abc123.png"), 90*1024)
	writeBytes(t, fs, filepath.Join("assets", "other.def456.webp"), 10*1024)
	r := newTestResolver(fs)

	// Mastodon ranks by format: WebP wins even though the PNG is smaller.
	img := r.Resolve(&PostImage{Src: "./photo.jpg", Alt: "x"}, Mastodon)
	if img == nil {
		t.Fatal("expected a resolved image")
	}
	if !strings.HasSuffix(img.Path, "photo.abc123.webp") {
		t.Errorf("mastodon should pick the webp variant, got %q", img.Path)
	}
	if img.MimeType != "image/webp" {
		t.Errorf("mime = %q, expected image/webp", img.MimeType)
	}

	// Bluesky picks strictly the smallest variant.
	img = r.Resolve(&PostImage{Src: "./photo.jpg", Alt: "x"}, Bluesky)
	if img == nil {
		t.Fatal("expected a resolved image")
	}
	if !strings.HasSuffix(img.Path, "photo.abc123.png") {
		t.Errorf("bluesky should pick the smallest variant, got %q", img.Path)
	}
}

func TestResolveFallsBackToOriginal(t *testing.T) {
	// The only processed variant busts the Bluesky ceiling; the original
	// fits.
	fs := afero.NewMemMapFs()
	writeBytes(t, fs, filepath.Join("content", "photo.jpg"), 300*1024)
	writeBytes(t, fs, filepath.Join("assets", "photo.abc123.webp"), 900*1024)
	r := newTestResolver(fs)

	img := r.Resolve(&PostImage{Src: "./photo.jpg", Alt: "x"}, Bluesky)
	if img == nil {
		t.Fatal("expected fallback to the original image")
	}
	if !strings.HasSuffix(img.Path, filepath.Join("content", "photo.jpg")) {
		t.Errorf("expected the original image, got %q", img.Path)
	}
}

func TestResolveEverythingTooLarge(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeBytes(t, fs, filepath.Join("content", "huge.png"), 9<<20)
	r := newTestResolver(fs)

	if got := r.Resolve(&PostImage{Src: "./huge.png", Alt: "x"}, Mastodon); got != nil {
		t.Errorf("9MB image should be rejected everywhere, got %q", got.Path)
	}
}

func TestResolveMissingFile(t *testing.T) {
	r := newTestResolver(afero.NewMemMapFs())
	if got := r.Resolve(&PostImage{Src: "./absent.jpg", Alt: "x"}, Mastodon); got != nil {
		t.Errorf("missing image should resolve to nil, got %q", got.Path)
	}
}
