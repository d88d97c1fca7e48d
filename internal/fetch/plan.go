package fetch

import (
	"os"

	"git.home.luguber.info/inful/ductgallery/internal/cache"
	"git.home.luguber.info/inful/ductgallery/internal/gallery"
	"git.home.luguber.info/inful/ductgallery/internal/source"
)

// Plan describes what Fetch would do for an example without doing it.
type Plan struct {
	Locality source.Locality
	// Download is true when a remote set would be (re)downloaded.
	Download bool
	// Reason is the cache gate's reason for remote examples; empty for local ones.
	Reason cache.Reason
	// Artifacts holds the paths Fetch would return. For a remote set that
	// still has to be downloaded the paths do not exist yet.
	Artifacts ArtifactSet
}

// Plan reports the fetch decision for ex. It never touches the network and
// never writes to disk. Local manifests are read to resolve their siblings;
// an unreadable or unresolvable one yields a plan with only the manifest
// path set.
func (f *Fetcher) Plan(ex gallery.Example, force bool) Plan {
	locality, manifestLoc := f.resolver.ManifestLocation(ex.InfoFile)
	if locality == source.Remote {
		targets := cacheTargets(f.CacheDir(ex))
		decision := f.gate.CheckSet(targets.all(), force)
		targets.Cached = !decision.Needed
		return Plan{Locality: locality, Download: decision.Needed, Reason: decision.Reason, Artifacts: targets}
	}

	set := ArtifactSet{Locality: source.Local, Info: manifestLoc}
	data, err := os.ReadFile(manifestLoc)
	if err != nil {
		return Plan{Locality: locality, Artifacts: set}
	}
	manifest, err := source.ParseManifest(data)
	if err != nil {
		return Plan{Locality: locality, Artifacts: set}
	}
	siblings, err := source.ResolveSiblings(manifest, manifestLoc, source.Local)
	if err != nil {
		return Plan{Locality: locality, Artifacts: set}
	}
	set.Usage = siblings[source.KindUsage]
	set.Stdout = siblings[source.KindStdout]
	set.Stderr = siblings[source.KindStderr]
	return Plan{Locality: locality, Artifacts: set}
}
