package document

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	gmast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"

	"git.home.luguber.info/inful/ductgallery/internal/gallery"
	"git.home.luguber.info/inful/ductgallery/internal/util/sets"
)

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// RenderHTML converts gallery markdown into a standalone HTML page. Heading
// IDs use the same slug as the markdown anchors so tag-index links resolve.
func RenderHTML(markdown []byte) ([]byte, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
	ctx := parser.NewContext(parser.WithIDs(newSlugIDs()))

	var body bytes.Buffer
	if err := md.Convert(markdown, &body, parser.WithContext(ctx)); err != nil {
		return nil, fmt.Errorf("render gallery html: %w", err)
	}
	var page bytes.Buffer
	err := pageTemplate.Execute(&page, struct {
		Title string
		Body  template.HTML
	}{Title: Title, Body: template.HTML(body.String())}) // #nosec G203 -- goldmark output of our own document
	if err != nil {
		return nil, fmt.Errorf("render gallery html: %w", err)
	}
	return page.Bytes(), nil
}

// slugIDs generates heading IDs with gallery.Slug, suffixing duplicates.
type slugIDs struct {
	used sets.Set[string]
}

func newSlugIDs() *slugIDs { return &slugIDs{used: sets.New[string]()} }

func (s *slugIDs) Generate(value []byte, _ gmast.NodeKind) []byte {
	base := gallery.Slug(string(value))
	if base == "" {
		base = "heading"
	}
	id := base
	for n := 1; s.used.Has(id); n++ {
		id = base + "-" + strconv.Itoa(n)
	}
	s.used.Add(id)
	return []byte(id)
}

func (s *slugIDs) Put(value []byte) { s.used.Add(string(value)) }

// BrokenAnchors parses an HTML page and returns every in-page "#fragment"
// link whose target id does not exist, in document order.
func BrokenAnchors(r io.Reader) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse gallery html: %w", err)
	}
	ids := map[string]bool{}
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				switch {
				case a.Key == "id":
					ids[a.Val] = true
				case a.Key == "href" && n.Data == "a" && strings.HasPrefix(a.Val, "#"):
					hrefs = append(hrefs, strings.TrimPrefix(a.Val, "#"))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	var broken []string
	for _, h := range hrefs {
		if !ids[h] {
			broken = append(broken, h)
		}
	}
	return broken, nil
}
