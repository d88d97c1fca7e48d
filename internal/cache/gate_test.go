package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string, mtime time.Time) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func TestCheckSet(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	targets := []string{
		filepath.Join(dir, "info.json"),
		filepath.Join(dir, "usage.json"),
		filepath.Join(dir, "stdout"),
		filepath.Join(dir, "stderr"),
	}
	g := Gate{}

	d := g.CheckSet(targets, false)
	assert.True(t, d.Needed)
	assert.Equal(t, ReasonMissing, d.Reason)
	assert.Equal(t, targets[0], d.Path)

	for _, p := range targets[:3] {
		touch(t, p, now)
	}
	d = g.CheckSet(targets, false)
	assert.True(t, d.Needed, "one missing target invalidates the whole set")
	assert.Equal(t, targets[3], d.Path)

	touch(t, targets[3], now)
	d = g.CheckSet(targets, false)
	assert.False(t, d.Needed)
	assert.Equal(t, ReasonFresh, d.Reason)

	d = g.CheckSet(targets, true)
	assert.True(t, d.Needed)
	assert.Equal(t, ReasonForced, d.Reason)
}

func TestNeedsFetch(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "usage.json")
	g := Gate{}

	assert.True(t, g.NeedsFetch(p, false))
	touch(t, p, time.Now())
	assert.False(t, g.NeedsFetch(p, false))
	assert.True(t, g.NeedsFetch(p, true))
}

func TestCheckDerived(t *testing.T) {
	base := time.Date(2025, 10, 3, 15, 30, 0, 0, time.UTC)
	g := NewGate(0)

	tests := []struct {
		name       string
		derived    *time.Time
		input      *time.Time
		force      bool
		wantNeeded bool
		wantReason Reason
	}{
		{name: "forced with fresh plot", derived: ptr(base), input: ptr(base), force: true, wantNeeded: true, wantReason: ReasonForced},
		{name: "forced with nothing on disk", force: true, wantNeeded: true, wantReason: ReasonForced},
		{name: "derived missing, input present", input: ptr(base), wantNeeded: true, wantReason: ReasonMissing},
		{name: "derived missing, input missing", wantNeeded: true, wantReason: ReasonMissing},
		{name: "input missing", derived: ptr(base), wantReason: ReasonFresh},
		{name: "same instant", derived: ptr(base), input: ptr(base), wantReason: ReasonFresh},
		{name: "input older", derived: ptr(base), input: ptr(base.Add(-time.Hour)), wantReason: ReasonFresh},
		{name: "exactly one second newer", derived: ptr(base), input: ptr(base.Add(time.Second)), wantReason: ReasonFresh},
		{name: "just over one second newer", derived: ptr(base), input: ptr(base.Add(time.Second + time.Millisecond)), wantNeeded: true, wantReason: ReasonStale},
		{name: "much newer", derived: ptr(base), input: ptr(base.Add(2 * time.Second)), wantNeeded: true, wantReason: ReasonStale},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			derived := filepath.Join(dir, "images", "demo.svg")
			input := filepath.Join(dir, "logs", "demo", "usage.json")
			if tt.derived != nil {
				touch(t, derived, *tt.derived)
			}
			if tt.input != nil {
				touch(t, input, *tt.input)
			}

			d := g.CheckDerived(derived, input, tt.force)
			assert.Equal(t, tt.wantNeeded, d.Needed)
			assert.Equal(t, tt.wantReason, d.Reason)
			assert.Equal(t, tt.wantNeeded, g.NeedsRegenerate(derived, input, tt.force))
		})
	}
}

func TestCustomTolerance(t *testing.T) {
	dir := t.TempDir()
	base := time.Now().Add(-time.Hour)
	derived := filepath.Join(dir, "plot.svg")
	input := filepath.Join(dir, "usage.json")
	touch(t, derived, base)
	touch(t, input, base.Add(3*time.Second))

	assert.True(t, NewGate(time.Second).NeedsRegenerate(derived, input, false))
	assert.False(t, NewGate(5*time.Second).NeedsRegenerate(derived, input, false))
}

func ptr(t time.Time) *time.Time { return &t }
