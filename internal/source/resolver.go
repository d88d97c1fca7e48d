package source

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Resolve derives the locality of a manifest location. Locations with an
// http or https scheme are Remote; everything else is a Local path.
func Resolve(location string) Locality {
	if isNetworkLocation(location) {
		return Remote
	}
	return Local
}

func isNetworkLocation(loc string) bool {
	u, err := url.Parse(strings.TrimSpace(loc))
	if err != nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return (scheme == "http" || scheme == "https") && u.Host != ""
}

// Resolver resolves manifest and sibling locations against a repository root.
type Resolver struct {
	RepoRoot string
}

// NewResolver returns a Resolver rooted at repoRoot.
func NewResolver(repoRoot string) Resolver {
	return Resolver{RepoRoot: repoRoot}
}

// ManifestLocation returns the locality of loc and its resolved form: the URL
// unchanged for Remote, a cleaned filesystem path for Local (relative paths are
// joined to the repository root).
func (r Resolver) ManifestLocation(loc string) (Locality, string) {
	loc = strings.TrimSpace(loc)
	if Resolve(loc) == Remote {
		return Remote, loc
	}
	p := filepath.FromSlash(loc)
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.RepoRoot, p)
	}
	return Local, filepath.Clean(p)
}

// ResolveSiblings resolves every sibling declared by m relative to the already
// resolved manifest location. The result depends only on its arguments.
func ResolveSiblings(m *Manifest, manifestLocation string, locality Locality) (Siblings, error) {
	switch locality {
	case Remote:
		return resolveRemote(m, manifestLocation)
	case Local:
		return resolveLocal(m, manifestLocation), nil
	default:
		return nil, fmt.Errorf("unknown locality %q", locality)
	}
}

func resolveRemote(m *Manifest, manifestURL string) (Siblings, error) {
	u, err := url.Parse(manifestURL)
	if err != nil {
		return nil, fmt.Errorf("parse manifest url %q: %w", manifestURL, err)
	}
	base := url.URL{Scheme: u.Scheme, Host: u.Host}
	dir := u.Path[:strings.LastIndex(u.Path, "/")+1]

	out := make(Siblings)
	for _, kind := range SiblingKinds {
		declared, ok := m.Declared(kind)
		if !ok {
			continue
		}
		if isNetworkLocation(declared) {
			out[kind] = declared
			continue
		}
		name := fileName(declared)
		if name == "" {
			continue
		}
		sib := base
		sib.Path = dir + name
		out[kind] = sib.String()
	}
	return out, nil
}

func resolveLocal(m *Manifest, manifestPath string) Siblings {
	parent := filepath.Dir(manifestPath)
	out := make(Siblings)
	for _, kind := range SiblingKinds {
		declared, ok := m.Declared(kind)
		if !ok {
			continue
		}
		if filepath.IsAbs(declared) {
			out[kind] = filepath.Clean(declared)
			continue
		}
		name := fileName(declared)
		if name == "" {
			continue
		}
		out[kind] = filepath.Join(parent, name)
	}
	return out
}

// fileName returns the final segment of a declared sibling path, accepting
// both slash styles. Empty or directory-only declarations yield "".
func fileName(declared string) string {
	declared = strings.TrimSpace(strings.ReplaceAll(declared, `\`, "/"))
	if declared == "" || strings.HasSuffix(declared, "/") {
		return ""
	}
	name := path.Base(declared)
	if name == "." || name == ".." || name == "/" {
		return ""
	}
	return name
}
