package posse

import (
	"strings"
	"testing"
)

func TestGeneratePostContent(t *testing.T) {
	canonicalURL := "https://example.com/post"

	tests := []struct {
		name     string
		data     EphemeraData
		body     string
		kind     PlatformKind
		contains []string
	}{
		{
			name:     "body content used when available",
			data:     EphemeraData{Title: "Test Post"},
			body:     "This is the post content with **bold** text and [link](https://a.example).",
			kind:     Mastodon,
			contains: []string{"This is the post content", "bold", canonicalURL},
		},
		{
			name:     "falls back to title when body empty",
			data:     EphemeraData{Title: "Test Post Title"},
			body:     "",
			kind:     Mastodon,
			contains: []string{"Test Post Title", canonicalURL},
		},
		{
			name:     "falls back to title when body too short",
			data:     EphemeraData{Title: "Test Post Title"},
			body:     "hi",
			kind:     Mastodon,
			contains: []string{"Test Post Title"},
		},
		{
			name:     "default content without body or title",
			data:     EphemeraData{},
			body:     "",
			kind:     Bluesky,
			contains: []string{"New ephemera post", canonicalURL},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GeneratePostContent(tt.data, canonicalURL, tt.body, tt.kind)
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("result %q should contain %q", result, want)
				}
			}
			if !strings.HasSuffix(result, "\n\n"+canonicalURL) {
				t.Errorf("result %q should end with the canonical url suffix", result)
			}
		})
	}
}

func TestGeneratePostContentBudgets(t *testing.T) {
	canonicalURL := "https://example.com/post"

	tests := []struct {
		name      string
		kind      PlatformKind
		bodyLen   int
		maxLength int
		buffer    int
	}{
		{"mastodon truncation", Mastodon, 450, 400, 10},
		{"bluesky truncation", Bluesky, 350, 300, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := strings.Repeat("A", tt.bodyLen)
			result := GeneratePostContent(EphemeraData{Title: "t"}, canonicalURL, body, tt.kind)

			limit := tt.maxLength + len(canonicalURL) + tt.buffer
			if got := len([]rune(result)); got > limit {
				t.Errorf("result length %d exceeds budget %d", got, limit)
			}
			if !strings.Contains(result, "...") {
				t.Error("truncated result should contain an ellipsis")
			}
			if !strings.Contains(result, canonicalURL) {
				t.Error("truncated result should still contain the canonical url")
			}
		})
	}
}

func TestGeneratePostContentShortBodyNotTruncated(t *testing.T) {
	result := GeneratePostContent(EphemeraData{}, "https://example.com/p", "short but long enough body", Mastodon)
	if strings.Contains(result, "...") {
		t.Errorf("short content should not be truncated: %q", result)
	}
}

func TestCleanContentForSocial(t *testing.T) {
	tests := []struct {
		name     string
		markdown string
		kind     PlatformKind
		want     string
	}{
		{
			name:     "h3 becomes bullet",
			markdown: "### Section Title",
			kind:     Mastodon,
			want:     "• Section Title",
		},
		{
			name:     "h1 and h2 keep text only",
			markdown: "# Big Title\n\n## Smaller Title",
			kind:     Mastodon,
			want:     "Big Title\n\nSmaller Title",
		},
		{
			name:     "mastodon links keep label only",
			markdown: "read [the docs](https://example.com/docs) today",
			kind:     Mastodon,
			want:     "read the docs today",
		},
		{
			name:     "bluesky links keep label and url",
			markdown: "read [the docs](https://example.com/docs) today",
			kind:     Bluesky,
			want:     "read the docs https://example.com/docs today",
		},
		{
			name:     "bold and italic unwrapped",
			markdown: "some **bold** and *italic* words",
			kind:     Mastodon,
			want:     "some bold and italic words",
		},
		{
			name:     "code block replaced",
			markdown: "before\n\n```go\nfmt.Println(\"hi\")\n```\n\nafter",
			kind:     Mastodon,
			want:     "before\n\n[code block]\n\nafter",
		},
		{
			name:     "excess blank lines collapsed",
			markdown: "first paragraph\n\n\n\n\nsecond paragraph",
			kind:     Mastodon,
			want:     "first paragraph\n\nsecond paragraph",
		},
		{
			name:     "runs of spaces collapsed",
			markdown: "too   many\tspaces",
			kind:     Mastodon,
			want:     "too many spaces",
		},
		{
			name:     "list items keep their own lines",
			markdown: "- first\n- second",
			kind:     Mastodon,
			want:     "- first\n- second",
		},
		{
			name:     "empty input",
			markdown: "",
			kind:     Mastodon,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CleanContentForSocial(tt.markdown, tt.kind)
			if got != tt.want {
				t.Errorf("CleanContentForSocial(%q) = %q, expected %q", tt.markdown, got, tt.want)
			}
		})
	}
}
