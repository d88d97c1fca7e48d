package fetch

import (
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/ductgallery/internal/source"
)

// Fixed filenames inside a remote example's cache directory.
const (
	InfoFileName   = "example_output_info.json"
	UsageFileName  = "example_output_usage.json"
	StdoutFileName = "example_output_stdout"
	StderrFileName = "example_output_stderr"
)

// dataKinds are the artifacts resolved from a manifest; the manifest itself
// is always the info artifact.
var dataKinds = []source.ArtifactKind{source.KindUsage, source.KindStdout, source.KindStderr}

// ArtifactSet holds the resolved on-disk paths of one example's artifacts.
// A kind the manifest does not declare has an empty path.
type ArtifactSet struct {
	Locality source.Locality
	Info     string
	Usage    string
	Stdout   string
	Stderr   string
	// Cached is true when a remote set was reused without network access.
	Cached bool
}

// Path returns the path recorded for kind.
func (s ArtifactSet) Path(kind source.ArtifactKind) string {
	switch kind {
	case source.KindInfo:
		return s.Info
	case source.KindUsage:
		return s.Usage
	case source.KindStdout:
		return s.Stdout
	case source.KindStderr:
		return s.Stderr
	default:
		return ""
	}
}

// Available reports whether kind has a path that exists on disk.
func (s ArtifactSet) Available(kind source.ArtifactKind) bool {
	p := s.Path(kind)
	if p == "" {
		return false
	}
	_, err := os.Stat(p)
	return err == nil
}

// cacheTargets returns the fixed target paths for an example directory.
func cacheTargets(dir string) ArtifactSet {
	return ArtifactSet{
		Locality: source.Remote,
		Info:     filepath.Join(dir, InfoFileName),
		Usage:    filepath.Join(dir, UsageFileName),
		Stdout:   filepath.Join(dir, StdoutFileName),
		Stderr:   filepath.Join(dir, StderrFileName),
	}
}

// without returns a copy of s with the path for kind cleared.
func (s ArtifactSet) without(kind source.ArtifactKind) ArtifactSet {
	switch kind {
	case source.KindUsage:
		s.Usage = ""
	case source.KindStdout:
		s.Stdout = ""
	case source.KindStderr:
		s.Stderr = ""
	}
	return s
}

func (s ArtifactSet) all() []string {
	return []string{s.Info, s.Usage, s.Stdout, s.Stderr}
}
