// Package document synthesizes the gallery markdown from a run outcome.
//
// The markdown lists every fetched example grouped by tag, links its four
// artifacts and embeds its plot, falling back to a notice when the image is
// missing. A content fingerprint computed without the timestamp is embedded
// in the file so a run that changes nothing leaves the document untouched.
// The same markdown can be rendered to a standalone HTML page.
package document
