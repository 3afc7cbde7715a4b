package posse

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

var frontMatterDelim = []byte("---")

// splitDocument separates a markdown file into its raw YAML front matter and
// the body that follows. The raw bytes are needed (rather than a decoded
// map) because write-back must preserve key order and unrelated fields.
func splitDocument(raw []byte) (fm, body []byte, err error) {
	rest, found := bytes.CutPrefix(raw, frontMatterDelim)
	if !found {
		return nil, nil, errors.New("no front matter delimiter")
	}
	rest, found = bytes.CutPrefix(rest, []byte("\n"))
	if !found {
		return nil, nil, errors.New("malformed front matter delimiter")
	}

	end := bytes.Index(rest, append([]byte("\n"), frontMatterDelim...))
	if end < 0 {
		return nil, nil, errors.New("unterminated front matter")
	}
	fm = rest[:end+1]
	body = rest[end+1+len(frontMatterDelim):]
	body = bytes.TrimPrefix(body, []byte("\n"))
	return fm, body, nil
}

// AppendSyndication re-reads the post file fresh from disk, appends the
// given links to its syndication list, and writes the document back. The
// fresh read minimizes the window for clobbering concurrent external edits;
// the syndication list is append-only and every other field round-trips
// untouched.
func AppendSyndication(fs afero.Fs, path string, links []SyndicationLink) error {
	if len(links) == 0 {
		return nil
	}

	raw, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	fm, body, err := splitDocument(raw)
	if err != nil {
		return fmt.Errorf("split %s: %w", path, err)
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(fm, &doc); err != nil {
		return fmt.Errorf("parse front matter of %s: %w", path, err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return fmt.Errorf("front matter of %s is not a mapping", path)
	}
	mapping := doc.Content[0]

	seq := findMappingValue(mapping, "syndication")
	if seq == nil {
		seq = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		mapping.Content = append(mapping.Content, scalarNode("syndication"), seq)
	} else if seq.Kind == yaml.ScalarNode && seq.Tag == "!!null" {
		*seq = yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	}
	if seq.Kind != yaml.SequenceNode {
		return fmt.Errorf("syndication field of %s is not a list", path)
	}
	seq.Style = 0
	for _, link := range links {
		seq.Content = append(seq.Content, linkNode(link))
	}

	var out bytes.Buffer
	out.Write(frontMatterDelim)
	out.WriteByte('\n')
	enc := yaml.NewEncoder(&out)
	enc.SetIndent(2)
	if err := enc.Encode(mapping); err != nil {
		return fmt.Errorf("encode front matter of %s: %w", path, err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode front matter of %s: %w", path, err)
	}
	out.Write(frontMatterDelim)
	out.WriteByte('\n')
	out.Write(body)

	if err := afero.WriteFile(fs, path, out.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// findMappingValue returns the value node for a key in a YAML mapping, or
// nil when absent.
func findMappingValue(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func scalarNode(value string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: value}
}

func linkNode(link SyndicationLink) *yaml.Node {
	return &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
		Content: []*yaml.Node{
			scalarNode("href"), scalarNode(link.Href),
			scalarNode("title"), scalarNode(link.Title),
		},
	}
}
