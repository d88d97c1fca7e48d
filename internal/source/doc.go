// Package source decides where an example's artifacts live.
//
// A manifest location is either Remote (an http or https URL) or Local (a
// path inside the repository tree). Locality is derived once per example and
// every sibling artifact named by the manifest is resolved with the same
// locality, so one example never mixes downloaded and local files.
//
// Only the final path segment of a relative sibling declaration is trusted;
// the directory always comes from the manifest's own location.
package source
