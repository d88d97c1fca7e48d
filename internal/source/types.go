package source

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Locality reports whether an example is sourced over the network or from the local tree.
type Locality string

const (
	Remote Locality = "remote"
	Local  Locality = "local"
)

func (l Locality) String() string { return string(l) }

// ArtifactKind is the role a file plays for one example.
type ArtifactKind string

const (
	KindInfo   ArtifactKind = "info"
	KindUsage  ArtifactKind = "usage"
	KindStdout ArtifactKind = "stdout"
	KindStderr ArtifactKind = "stderr"
)

// SiblingKinds lists the keys looked up in a manifest's output_paths, in resolution order.
var SiblingKinds = []ArtifactKind{KindUsage, KindStdout, KindStderr, KindInfo}

// ErrInvalidManifest is returned when manifest content cannot be decoded.
var ErrInvalidManifest = errors.New("invalid manifest")

// Manifest is the subset of a con/duct info file the gallery relies on.
type Manifest struct {
	OutputPaths map[string]string `json:"output_paths"`
}

// ParseManifest decodes manifest JSON. A manifest without output_paths is valid
// and simply declares no siblings.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidManifest, err)
	}
	return &m, nil
}

// Declared returns the declared location for kind, if any.
func (m *Manifest) Declared(kind ArtifactKind) (string, bool) {
	if m == nil || m.OutputPaths == nil {
		return "", false
	}
	v, ok := m.OutputPaths[string(kind)]
	return v, ok
}

// Siblings maps each available artifact kind to its resolved location.
// A kind missing from the map is unavailable for the example.
type Siblings map[ArtifactKind]string
