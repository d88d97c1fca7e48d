// Package cache decides whether on-disk artifacts can be reused.
//
// Fetched artifacts are cached per example as one all-or-nothing set: a single
// missing file invalidates the whole set. Derived artifacts (plots) are
// invalidated when missing, when forced, or when their input is newer by more
// than the staleness tolerance.
package cache

import (
	"os"
	"time"
)

// DefaultTolerance absorbs filesystem timestamp granularity so an input and the
// plot derived from it in the same operation do not look stale. It is a tunable
// rather than a value derived from the filesystem.
const DefaultTolerance = time.Second

// Reason records why a Decision came out the way it did. It is for logging only.
type Reason string

const (
	ReasonMissing Reason = "missing"
	ReasonForced  Reason = "forced"
	ReasonStale   Reason = "stale"
	ReasonFresh   Reason = "fresh"
)

// Decision is the outcome of a gate check.
type Decision struct {
	// Needed is true when the artifact must be fetched or regenerated.
	Needed bool
	Reason Reason
	// Path is the first missing target for ReasonMissing, otherwise empty.
	Path string
}

// Gate evaluates cache decisions. The zero value uses DefaultTolerance.
type Gate struct {
	Tolerance time.Duration
}

// NewGate returns a Gate with the given staleness tolerance; non-positive values select DefaultTolerance.
func NewGate(tolerance time.Duration) Gate {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return Gate{Tolerance: tolerance}
}

func (g Gate) tolerance() time.Duration {
	if g.Tolerance <= 0 {
		return DefaultTolerance
	}
	return g.Tolerance
}

// NeedsFetch reports whether a single fetched target must be (re)obtained.
func (g Gate) NeedsFetch(target string, force bool) bool {
	return force || !exists(target)
}

// CheckSet applies the per-example rule: the set is reused only when force is
// false and every target exists.
func (g Gate) CheckSet(targets []string, force bool) Decision {
	if force {
		return Decision{Needed: true, Reason: ReasonForced}
	}
	for _, t := range targets {
		if g.NeedsFetch(t, false) {
			return Decision{Needed: true, Reason: ReasonMissing, Path: t}
		}
	}
	return Decision{Reason: ReasonFresh}
}

// CheckDerived decides whether derived must be regenerated from input. A missing
// input never invalidates an existing derived artifact.
func (g Gate) CheckDerived(derived, input string, force bool) Decision {
	if force {
		return Decision{Needed: true, Reason: ReasonForced}
	}
	dInfo, err := os.Stat(derived)
	if err != nil {
		return Decision{Needed: true, Reason: ReasonMissing, Path: derived}
	}
	iInfo, err := os.Stat(input)
	if err != nil {
		return Decision{Reason: ReasonFresh}
	}
	if iInfo.ModTime().Sub(dInfo.ModTime()) > g.tolerance() {
		return Decision{Needed: true, Reason: ReasonStale}
	}
	return Decision{Reason: ReasonFresh}
}

// NeedsRegenerate is the boolean form of CheckDerived.
func (g Gate) NeedsRegenerate(derived, input string, force bool) bool {
	return g.CheckDerived(derived, input, force).Needed
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
