package source

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve(t *testing.T) {
	tests := map[string]Locality{
		"https://raw.githubusercontent.com/con/duct/abc/demo/info.json": Remote,
		"http://host:8080/info.json":                                    Remote,
		"HTTPS://host/info.json":                                        Remote,
		"demo/example_output_info.json":                                 Local,
		"/abs/path/info.json":                                           Local,
		"httpdocs/info.json":                                            Local,
		"file:///tmp/info.json":                                         Local,
	}
	for loc, want := range tests {
		assert.Equal(t, want, Resolve(loc), loc)
	}
}

func TestResolver_ManifestLocation(t *testing.T) {
	root := t.TempDir()
	r := NewResolver(root)

	loc, resolved := r.ManifestLocation("demo/logs/info.json")
	assert.Equal(t, Local, loc)
	assert.Equal(t, filepath.Join(root, "demo", "logs", "info.json"), resolved)

	abs := filepath.Join(t.TempDir(), "info.json")
	loc, resolved = r.ManifestLocation(abs)
	assert.Equal(t, Local, loc)
	assert.Equal(t, abs, resolved)

	loc, resolved = r.ManifestLocation(" https://host/path/info.json ")
	assert.Equal(t, Remote, loc)
	assert.Equal(t, "https://host/path/info.json", resolved)
}

func TestResolveSiblings_RemoteDiscardsDeclaredDirectories(t *testing.T) {
	m := &Manifest{OutputPaths: map[string]string{"usage": "sub/dir/usage_data.json"}}

	got, err := ResolveSiblings(m, "https://host/path/info.json", Remote)
	require.NoError(t, err)
	assert.Equal(t, Siblings{KindUsage: "https://host/path/usage_data.json"}, got)
}

func TestResolveSiblings_Remote(t *testing.T) {
	m := &Manifest{OutputPaths: map[string]string{
		"usage":  "demo/example_output_usage.json",
		"stdout": "../../etc/example_output_stdout",
		"stderr": "https://mirror.example.org/logs/stderr.txt",
		"info":   "demo/example_output_info.json",
	}}
	base := "https://raw.githubusercontent.com/con/duct/abc123/demo/example_output_info.json?token=x"

	got, err := ResolveSiblings(m, base, Remote)
	require.NoError(t, err)
	assert.Equal(t, Siblings{
		KindUsage:  "https://raw.githubusercontent.com/con/duct/abc123/demo/example_output_usage.json",
		KindStdout: "https://raw.githubusercontent.com/con/duct/abc123/demo/example_output_stdout",
		KindStderr: "https://mirror.example.org/logs/stderr.txt",
		KindInfo:   "https://raw.githubusercontent.com/con/duct/abc123/demo/example_output_info.json",
	}, got)
}

func TestResolveSiblings_RemoteKeepsPort(t *testing.T) {
	m := &Manifest{OutputPaths: map[string]string{"stdout": "out"}}
	got, err := ResolveSiblings(m, "http://127.0.0.1:9999/a/b/info.json", Remote)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:9999/a/b/out", got[KindStdout])
}

func TestResolveSiblings_Local(t *testing.T) {
	dir := t.TempDir()
	manifest := filepath.Join(dir, "run", "info.json")
	absStderr := filepath.Join(t.TempDir(), "captured", "stderr")
	m := &Manifest{OutputPaths: map[string]string{
		"usage":  "run/nested/usage.json",
		"stdout": "https://host/elsewhere/stdout",
		"stderr": absStderr,
	}}

	got, err := ResolveSiblings(m, manifest, Local)
	require.NoError(t, err)
	assert.Equal(t, Siblings{
		KindUsage:  filepath.Join(dir, "run", "usage.json"),
		KindStdout: filepath.Join(dir, "run", "stdout"),
		KindStderr: absStderr,
	}, got)
}

func TestResolveSiblings_MissingKindsAreOmitted(t *testing.T) {
	m := &Manifest{OutputPaths: map[string]string{"usage": "usage.json", "stderr": ""}}

	remote, err := ResolveSiblings(m, "https://host/p/info.json", Remote)
	require.NoError(t, err)
	assert.Len(t, remote, 1)
	_, hasStderr := remote[KindStderr]
	assert.False(t, hasStderr)

	local, err := ResolveSiblings(&Manifest{}, "/tmp/p/info.json", Local)
	require.NoError(t, err)
	assert.Empty(t, local)
}

func TestResolveSiblings_Deterministic(t *testing.T) {
	m := &Manifest{OutputPaths: map[string]string{"usage": "a/usage.json", "stdout": "b/stdout"}}
	first, err := ResolveSiblings(m, "https://host/x/info.json", Remote)
	require.NoError(t, err)
	second, err := ResolveSiblings(m, "https://host/x/info.json", Remote)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestResolveSiblings_UnknownLocality(t *testing.T) {
	_, err := ResolveSiblings(&Manifest{}, "x", Locality("ftp"))
	require.Error(t, err)
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{"command": "sleep 1", "output_paths": {"usage": "u.json"}}`))
	require.NoError(t, err)
	v, ok := m.Declared(KindUsage)
	assert.True(t, ok)
	assert.Equal(t, "u.json", v)
	_, ok = m.Declared(KindStderr)
	assert.False(t, ok)

	_, err = ParseManifest([]byte(`not json`))
	require.ErrorIs(t, err, ErrInvalidManifest)
}
