package bluesky

import (
	"net/url"
	"regexp"
	"strings"
)

// LinkFeatureType is the facet feature NSID for links.
const LinkFeatureType = "app.bsky.richtext.facet#link"

// Facet is a byte-range annotation over post text marking a rich-text
// feature.
type Facet struct {
	Index    FacetIndex     `json:"index"`
	Features []FacetFeature `json:"features"`
}

// FacetIndex addresses a span of the post text in bytes of its UTF-8
// encoding, not characters.
type FacetIndex struct {
	ByteStart int `json:"byteStart"`
	ByteEnd   int `json:"byteEnd"`
}

type FacetFeature struct {
	Type string `json:"$type"`
	URI  string `json:"uri"`
}

var urlPattern = regexp.MustCompile(`https?://\S+`)

// ParseURLFacets scans text for HTTP(S) URLs and returns link facets with
// byte offsets into the UTF-8 encoding of the text. Trailing sentence
// punctuation is not part of the link, and a trailing ")" is dropped unless
// the URL contains an opening "(". Returns nil when no valid URL is found,
// so the facets key is omitted from the marshalled record entirely.
func ParseURLFacets(text string) []Facet {
	var facets []Facet
	for _, loc := range urlPattern.FindAllStringIndex(text, -1) {
		start, end := loc[0], loc[1]
		uri := text[start:end]

		if strings.ContainsAny(uri[len(uri)-1:], ".,;!?") {
			uri = uri[:len(uri)-1]
			end--
		}
		if strings.HasSuffix(uri, ")") && !strings.Contains(uri, "(") {
			uri = uri[:len(uri)-1]
			end--
		}

		parsed, err := url.Parse(uri)
		if err != nil || parsed.Host == "" {
			continue
		}
		if start >= end {
			continue
		}

		facets = append(facets, Facet{
			Index: FacetIndex{ByteStart: start, ByteEnd: end},
			Features: []FacetFeature{{
				Type: LinkFeatureType,
				URI:  uri,
			}},
		})
	}
	return facets
}
