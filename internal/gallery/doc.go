// Package gallery holds the declarative model of the examples gallery: the
// Example entries read from the registry file, the Registry that groups them,
// and the Slug used for image filenames, cache directories and anchors.
package gallery
