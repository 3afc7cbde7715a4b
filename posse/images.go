package posse

import (
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// ResolvedImage is an image ready for upload to a platform.
type ResolvedImage struct {
	Path     string
	Data     []byte
	MimeType string
}

// ImageResolver locates the best available image file for a post, preferring
// pre-optimized build-output variants over the original when they fit the
// platform's size ceiling.
type ImageResolver struct {
	fs         afero.Fs
	contentDir string
	publicDir  string
	assetsDir  string
	logger     *slog.Logger
}

func NewImageResolver(fs afero.Fs, contentDir, publicDir, assetsDir string, logger *slog.Logger) *ImageResolver {
	return &ImageResolver{
		fs:         fs,
		contentDir: contentDir,
		publicDir:  publicDir,
		assetsDir:  assetsDir,
		logger:     logger,
	}
}

// Resolve returns the usable image for the platform, or nil when the post
// has no image or every candidate exceeds the platform's size limit. A nil
// result means the post continues text-only.
func (r *ImageResolver) Resolve(img *PostImage, kind PlatformKind) *ResolvedImage {
	if img == nil || img.Src == "" {
		return nil
	}

	original := r.resolvePath(img.Src)
	candidates := []string{}
	if processed := r.findProcessedImage(original, kind.prefersSmallestImage()); processed != "" {
		candidates = append(candidates, processed)
	}
	candidates = append(candidates, original)

	for _, path := range candidates {
		if !r.withinLimit(path, kind) {
			continue
		}
		data, err := afero.ReadFile(r.fs, path)
		if err != nil {
			r.logger.Warn("could not read image", "path", path, "error", err)
			continue
		}
		r.logger.Debug("using image", "platform", kind.String(), "path", path, "bytes", len(data))
		return &ResolvedImage{Path: path, Data: data, MimeType: MimeTypeFor(path)}
	}

	r.logger.Warn("image too large, skipping", "platform", kind.String(), "src", img.Src)
	return nil
}

// resolvePath maps a front-matter image src to a filesystem path. Leading
// "/" is rooted at the public asset directory; anything else is relative to
// the content directory.
func (r *ImageResolver) resolvePath(src string) string {
	switch {
	case strings.HasPrefix(src, "/"):
		return filepath.Join(r.publicDir, strings.TrimPrefix(src, "/"))
	case strings.HasPrefix(src, "./"):
		return filepath.Join(r.contentDir, strings.TrimPrefix(src, "./"))
	default:
		return filepath.Join(r.contentDir, src)
	}
}

// extensionPriority ranks processed variants when not selecting purely by
// size: WebP over JPEG over PNG.
var extensionPriority = map[string]int{
	".webp": 3,
	".jpg":  2,
	".jpeg": 2,
	".png":  1,
}

// findProcessedImage looks in the build-output asset directory for optimized
// variants of the original image and returns the best one, or "" when none
// exist. The directory being absent is normal before a first build.
func (r *ImageResolver) findProcessedImage(originalPath string, preferSmallest bool) string {
	base := filepath.Base(originalPath)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	entries, err := afero.ReadDir(r.fs, r.assetsDir)
	if err != nil {
		r.logger.Debug("no processed images available", "dir", r.assetsDir, "error", err)
		return ""
	}

	bestName := ""
	bestSize := int64(0)
	bestPriority := -1
	for _, entry := range entries {
		name := entry.Name()
		ext := strings.ToLower(filepath.Ext(name))
		priority, known := extensionPriority[ext]
		if !known || !strings.HasPrefix(name, base+".") {
			continue
		}

		better := false
		if preferSmallest {
			better = bestName == "" || entry.Size() < bestSize
		} else {
			better = priority > bestPriority ||
				(priority == bestPriority && entry.Size() < bestSize)
		}
		if better {
			bestName = name
			bestSize = entry.Size()
			bestPriority = priority
		}
	}

	if bestName == "" {
		return ""
	}
	return filepath.Join(r.assetsDir, bestName)
}

func (r *ImageResolver) withinLimit(path string, kind PlatformKind) bool {
	info, err := r.fs.Stat(path)
	if err != nil {
		r.logger.Warn("could not check image size", "path", path, "error", err)
		return false
	}
	limit := kind.maxImageBytes()
	within := info.Size() <= limit
	r.logger.Debug("image size check", "path", path, "bytes", info.Size(), "limit", limit, "within", within)
	return within
}

// MimeTypeFor resolves an image MIME type purely by file extension,
// defaulting to JPEG.
func MimeTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

// extensionForMime is the inverse of MimeTypeFor, used to name multipart
// uploads.
func extensionForMime(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".jpg"
	}
}
