package document

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"git.home.luguber.info/inful/ductgallery/internal/gallery"
	"git.home.luguber.info/inful/ductgallery/internal/pipeline"
)

// Title is the top-level heading of the gallery.
const Title = "con/duct Examples Gallery"

// DefaultRegistryName is mentioned in the maintenance footer when Options.RegistryName is empty.
const DefaultRegistryName = "con-duct-gallery.yaml"

// Options controls rendering.
type Options struct {
	// OutputPath is where the document will be written. Artifact and image
	// links are made relative to its directory.
	OutputPath string
	// RegistryName is the registry file mentioned in the footer.
	RegistryName string
	// Now stamps the header; time.Now when nil.
	Now func() time.Time
}

// Document is rendered markdown together with its content fingerprint.
type Document struct {
	Markdown    string
	Fingerprint string
	Examples    int
	Tags        int
}

// Render builds the gallery for the fetched examples of a run, in order.
func Render(results []pipeline.ExampleResult, opts Options) Document {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	registryName := opts.RegistryName
	if registryName == "" {
		registryName = DefaultRegistryName
	}
	baseDir := filepath.Dir(opts.OutputPath)

	examples := make([]gallery.Example, 0, len(results))
	for _, r := range results {
		examples = append(examples, r.Example)
	}
	reg := &gallery.Registry{Examples: examples}
	tags := reg.AllTags()

	sections := []string{
		tagIndex(reg, tags),
		"## 📊 Examples\n",
	}
	for _, r := range results {
		sections = append(sections, exampleSection(r, baseDir), "---\n")
	}
	sections = append(sections, footer(registryName))
	body := strings.Join(sections, "\n")

	fp := Fingerprint(body)
	md := header(now().UTC()) + "\n" + body + "\n" + fingerprintComment(fp) + "\n"
	return Document{Markdown: md, Fingerprint: fp, Examples: len(results), Tags: len(tags)}
}

func header(ts time.Time) string {
	return fmt.Sprintf("# %s\n\n> 🤖 Automatically generated gallery of con/duct usage examples\n> Last updated: %s\n",
		Title, ts.Format("2006-01-02 15:04 UTC"))
}

func tagIndex(reg *gallery.Registry, tags []string) string {
	lines := []string{"## 📚 Browse by Tag\n"}
	for _, tag := range tags {
		var links []string
		for _, ex := range reg.FilterByTag(tag) {
			links = append(links, fmt.Sprintf("[%s](#%s)", ex.Title, ex.Slug()))
		}
		lines = append(lines, fmt.Sprintf("**%s**: %s", tag, strings.Join(links, ", ")))
	}
	lines = append(lines, "")
	return strings.Join(lines, "\n")
}

func exampleSection(r pipeline.ExampleResult, baseDir string) string {
	ex := r.Example
	lines := []string{fmt.Sprintf("### %s\n", ex.Title)}

	if len(ex.Tags) > 0 {
		badges := make([]string, len(ex.Tags))
		for i, tag := range ex.Tags {
			badges[i] = "`" + tag + "`"
		}
		lines = append(lines, "**Tags**: "+strings.Join(badges, " "))
	}
	if repo := strings.TrimSpace(ex.SourceRepo); repo != "" {
		display := strings.TrimPrefix(strings.TrimPrefix(repo, "https://"), "http://")
		lines = append(lines, fmt.Sprintf("**Repository**: [%s](%s)", strings.TrimRight(display, "/"), repo))
	}
	lines = append(lines, "")

	if ex.Description != "" {
		lines = append(lines, strings.TrimSpace(ex.Description), "")
	}

	if r.ImageExists {
		lines = append(lines, fmt.Sprintf("![Plot for %s](%s)", ex.Title, link(baseDir, r.ImagePath)))
	} else {
		lines = append(lines, "> ⚠️ **Plot not available** - Generation failed or plot file missing")
	}
	lines = append(lines, "",
		"<details>",
		"<summary>📋 Metadata</summary>",
		"",
		artifactLine("Info file", "example_output_info.json", baseDir, r.Artifacts.Info),
		artifactLine("Usage data", "example_output_usage.json", baseDir, r.Artifacts.Usage),
		artifactLine("Standard output", "stdout", baseDir, r.Artifacts.Stdout),
		artifactLine("Standard error", "stderr", baseDir, r.Artifacts.Stderr),
	)
	if len(ex.PlotOptions) > 0 {
		opts := make([]string, len(ex.PlotOptions))
		for i, o := range ex.PlotOptions {
			opts[i] = "`" + o + "`"
		}
		lines = append(lines, "- **Plot options**: "+strings.Join(opts, ", "))
	}
	lines = append(lines, "", "</details>", "")
	return strings.Join(lines, "\n")
}

func artifactLine(label, text, baseDir, path string) string {
	if path == "" {
		return fmt.Sprintf("- **%s**: not available", label)
	}
	return fmt.Sprintf("- **%s**: [%s](%s)", label, text, link(baseDir, path))
}

func footer(registryName string) string {
	return fmt.Sprintf(`## 🛠️ Maintenance

This gallery is generated by ductgallery from %[1]s.

- **Add an example**: Edit %[1]s and create a pull request
- **Update plots**: Plots regenerate automatically when logs change
- **Force update**: Run `+"`ductgallery generate --force`"+`
`, "`"+registryName+"`")
}

// link returns p relative to baseDir with forward slashes, falling back to p
// itself when no relative form exists.
func link(baseDir, p string) string {
	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return filepath.ToSlash(p)
	}
	absP, err := filepath.Abs(p)
	if err != nil {
		return filepath.ToSlash(p)
	}
	rel, err := filepath.Rel(absBase, absP)
	if err != nil {
		return filepath.ToSlash(p)
	}
	return filepath.ToSlash(rel)
}
