package document

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// LinkKind distinguishes inline links from images.
type LinkKind string

const (
	LinkInline LinkKind = "link"
	LinkImage  LinkKind = "image"
)

// Link is a destination found in gallery markdown.
type Link struct {
	Kind        LinkKind
	Destination string
}

// ExtractLinks returns the link and image destinations of markdown in document order.
func ExtractLinks(markdown []byte) []Link {
	root := goldmark.New().Parser().Parse(text.NewReader(markdown))

	var links []Link
	_ = gmast.Walk(root, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *gmast.Image:
			links = append(links, Link{Kind: LinkImage, Destination: string(node.Destination)})
		case *gmast.Link:
			links = append(links, Link{Kind: LinkInline, Destination: string(node.Destination)})
		}
		return gmast.WalkContinue, nil
	})
	return links
}

// MissingTargets returns the relative destinations in markdown that do not
// exist on disk when resolved against baseDir. Absolute URLs and in-page
// anchors are ignored.
func MissingTargets(markdown []byte, baseDir string) []string {
	var missing []string
	for _, l := range ExtractLinks(markdown) {
		dest := l.Destination
		if dest == "" || strings.HasPrefix(dest, "#") {
			continue
		}
		if u, err := url.Parse(dest); err == nil && u.Scheme != "" {
			continue
		}
		p := filepath.FromSlash(dest)
		if !filepath.IsAbs(p) {
			p = filepath.Join(baseDir, p)
		}
		if _, err := os.Stat(p); err != nil {
			missing = append(missing, dest)
		}
	}
	return missing
}
