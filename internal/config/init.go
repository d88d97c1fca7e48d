package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/ductgallery/internal/gallery"
)

// ErrExists is returned by Init when the target exists and force is false.
var ErrExists = errors.New("configuration file already exists")

// Sample returns the registry written by Init.
func Sample() File {
	return File{
		Examples: []gallery.Example{
			{
				Title:       "con/duct Demo",
				SourceRepo:  "https://github.com/con/duct",
				InfoFile:    "https://raw.githubusercontent.com/con/duct/main/demo/example_output_info.json",
				Tags:        []string{"demo", "python"},
				PlotOptions: []string{"--min-ratio", "-1"},
				Description: "Resource usage of a short demonstration run.",
			},
			{
				Title:       "Local Example",
				InfoFile:    "examples/local/example_output_info.json",
				Tags:        []string{"local"},
				Description: "Logs committed to this repository.",
			},
		},
	}
}

// Init writes a sample registry to path, encoded for its extension.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, path)
	}

	var buf bytes.Buffer
	sample := Sample()
	switch FormatFor(path) {
	case FormatTOML:
		if err := toml.NewEncoder(&buf).Encode(sample); err != nil {
			return fmt.Errorf("encode sample registry: %w", err)
		}
	default:
		buf.WriteString("# con/duct examples gallery registry\n")
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(sample); err != nil {
			return fmt.Errorf("encode sample registry: %w", err)
		}
		if err := enc.Close(); err != nil {
			return fmt.Errorf("encode sample registry: %w", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { // #nosec G306 -- registry is meant to be committed
		return fmt.Errorf("write registry: %w", err)
	}
	return nil
}
