package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/ductgallery/internal/gallery"
)

// DefaultRegistryPath is the registry file used when none is given.
const DefaultRegistryPath = "con-duct-gallery.yaml"

var (
	// ErrRegistryNotFound indicates the registry file does not exist.
	ErrRegistryNotFound = errors.New("registry file not found")
	// ErrInvalidRegistry wraps decoding and validation failures.
	ErrInvalidRegistry = errors.New("invalid registry")
)

// File is the on-disk registry document.
type File struct {
	Settings FileSettings      `yaml:"settings,omitempty" toml:"settings"`
	Examples []gallery.Example `yaml:"examples" toml:"examples"`
}

// Format identifies the registry encoding.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// FormatFor picks the encoding from the file extension; YAML is the default.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return FormatTOML
	}
	return FormatYAML
}

// Load reads, expands and validates the registry at path.
func Load(path string) (*File, error) {
	loadEnvFiles()

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRegistryNotFound, path)
		}
		return nil, fmt.Errorf("read registry: %w", err)
	}
	return Parse(data, FormatFor(path))
}

// Parse decodes registry content in the given format and validates it.
// Unknown keys are rejected so misspelled fields do not silently vanish.
func Parse(data []byte, format Format) (*File, error) {
	expanded := os.ExpandEnv(string(data))

	var file File
	switch format {
	case FormatTOML:
		md, err := toml.Decode(expanded, &file)
		if err != nil {
			return nil, fmt.Errorf("%w: parse toml: %w", ErrInvalidRegistry, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			sort.Strings(keys)
			return nil, fmt.Errorf("%w: unknown keys: %s", ErrInvalidRegistry, strings.Join(keys, ", "))
		}
	default:
		dec := yaml.NewDecoder(bytes.NewReader([]byte(expanded)))
		dec.KnownFields(true)
		if err := dec.Decode(&file); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, fmt.Errorf("%w: empty file", ErrInvalidRegistry)
			}
			return nil, fmt.Errorf("%w: parse yaml: %w", ErrInvalidRegistry, err)
		}
	}

	reg := file.Registry()
	if err := reg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRegistry, err)
	}
	file.Examples = reg.Examples
	return &file, nil
}

// Registry returns the examples as a gallery registry.
func (f *File) Registry() *gallery.Registry {
	return &gallery.Registry{Examples: f.Examples}
}

// loadEnvFiles loads .env and .env.local from the working directory when
// present. godotenv never overrides variables that are already set.
func loadEnvFiles() {
	for _, name := range []string{".env", ".env.local"} {
		if _, err := os.Stat(name); err == nil {
			_ = godotenv.Load(name)
		}
	}
}
