package gallery

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"git.home.luguber.info/inful/ductgallery/internal/util/sets"
)

const (
	// MaxTitleLength bounds example titles.
	MaxTitleLength = 100
	// ManifestSuffix is the required suffix of every manifest location.
	ManifestSuffix = ".json"
)

// ErrInvalidExample is wrapped by every validation failure of a single entry.
var ErrInvalidExample = errors.New("invalid example")

// ErrInvalidRegistry is wrapped by registry-level validation failures.
var ErrInvalidRegistry = errors.New("invalid registry")

// Example identifies one gallery entry.
type Example struct {
	Title       string   `yaml:"title" toml:"title" json:"title"`
	SourceRepo  string   `yaml:"source_repo" toml:"source_repo" json:"source_repo"`
	InfoFile    string   `yaml:"info_file" toml:"info_file" json:"info_file"`
	Tags        []string `yaml:"tags,omitempty" toml:"tags" json:"tags,omitempty"`
	PlotOptions []string `yaml:"plot_options,omitempty" toml:"plot_options" json:"plot_options,omitempty"`
	Description string   `yaml:"description,omitempty" toml:"description" json:"description,omitempty"`
}

// Slug returns the identifier used for the example's anchor, image and cache directory.
func (e Example) Slug() string { return Slug(e.Title) }

// HasTag reports whether the example carries tag.
func (e Example) HasTag(tag string) bool { return slices.Contains(e.Tags, tag) }

// Normalize trims the title and lowercases tags in place.
func (e *Example) Normalize() {
	e.Title = strings.TrimSpace(e.Title)
	e.InfoFile = strings.TrimSpace(e.InfoFile)
	for i, tag := range e.Tags {
		e.Tags[i] = strings.ToLower(strings.TrimSpace(tag))
	}
}

// Validate checks a normalized example.
func (e Example) Validate() error {
	if e.Title == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrInvalidExample)
	}
	if n := len([]rune(e.Title)); n > MaxTitleLength {
		return fmt.Errorf("%w: title %q has %d characters (max %d)", ErrInvalidExample, e.Title, n, MaxTitleLength)
	}
	if e.InfoFile == "" {
		return fmt.Errorf("%w: %q: info_file is required", ErrInvalidExample, e.Title)
	}
	if !strings.HasSuffix(e.InfoFile, ManifestSuffix) {
		return fmt.Errorf("%w: %q: info_file must end with %s", ErrInvalidExample, e.Title, ManifestSuffix)
	}
	for _, tag := range e.Tags {
		if !validTag(tag) {
			return fmt.Errorf("%w: %q: tag %q must be alphanumeric + hyphens only", ErrInvalidExample, e.Title, tag)
		}
	}
	if Slug(e.Title) == "" {
		return fmt.Errorf("%w: title %q produces an empty slug", ErrInvalidExample, e.Title)
	}
	return nil
}

func validTag(tag string) bool {
	stripped := strings.ReplaceAll(tag, "-", "")
	if stripped == "" {
		return false
	}
	for _, r := range stripped {
		if !isWordRune(r) || r == '_' {
			return false
		}
	}
	return true
}

// Registry is the ordered, validated collection of examples.
type Registry struct {
	Examples []Example `yaml:"examples" toml:"examples" json:"examples"`
}

// Validate normalizes every entry and enforces registry-wide invariants:
// at least one example and titles unique under case folding.
func (r *Registry) Validate() error {
	if len(r.Examples) == 0 {
		return fmt.Errorf("%w: at least one example required", ErrInvalidRegistry)
	}
	fold := cases.Fold()
	seen := sets.New[string]()
	slugs := make(map[string]string, len(r.Examples))
	var dupes []string
	for i := range r.Examples {
		r.Examples[i].Normalize()
		ex := r.Examples[i]
		if err := ex.Validate(); err != nil {
			return fmt.Errorf("examples[%d]: %w", i, err)
		}
		key := fold.String(ex.Title)
		if seen.Has(key) {
			dupes = append(dupes, ex.Title)
			continue
		}
		seen.Add(key)
		if other, ok := slugs[ex.Slug()]; ok {
			return fmt.Errorf("%w: titles %q and %q produce the same slug %q", ErrInvalidRegistry, other, ex.Title, ex.Slug())
		}
		slugs[ex.Slug()] = ex.Title
	}
	if len(dupes) > 0 {
		return fmt.Errorf("%w: duplicate titles found: %s", ErrInvalidRegistry, strings.Join(dupes, ", "))
	}
	return nil
}

// AllTags returns the unique tags across all examples, sorted.
func (r *Registry) AllTags() []string {
	tags := sets.New[string]()
	for _, ex := range r.Examples {
		for _, tag := range ex.Tags {
			tags.Add(tag)
		}
	}
	return sets.Sorted(tags)
}

// FilterByTag returns the examples carrying tag, in registry order.
func (r *Registry) FilterByTag(tag string) []Example {
	var out []Example
	for _, ex := range r.Examples {
		if ex.HasTag(tag) {
			out = append(out, ex)
		}
	}
	return out
}
