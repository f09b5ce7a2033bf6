package roots

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roots.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scratch: /scratch/{TOPLEVEL}/{SUBPATH}
home_alias: user
plain: /srv/data
`), 0o644))

	r := New()
	require.NoError(t, r.LoadFile(path))

	root, err := r.Lookup("scratch")
	require.NoError(t, err)
	assert.Equal(t, "/scratch/{TOPLEVEL}/{SUBPATH}", root.Template)

	raw, ok := r.Get("home_alias")
	require.True(t, ok)
	assert.True(t, raw.IsAlias())
	assert.Equal(t, User, raw.Alias)

	order := r.Order()
	assert.Equal(t, []string{"plain", "scratch", Tmp}, order[len(order)-3:])
}

func TestLoadFile_JSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roots.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
	// project roots
	"first": "/first/{PATH}",
	"second": "/second/{PATH}", /* trailing comma ok */
}`), 0o644))

	entries, err := ParseFile(path)
	require.NoError(t, err)
	assert.Equal(t, []Entry{
		{Name: "first", Value: "/first/{PATH}"},
		{Name: "second", Value: "/second/{PATH}"},
	}, entries)
}

func TestLoadFile_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ParseFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	list := filepath.Join(dir, "list.yaml")
	require.NoError(t, os.WriteFile(list, []byte("- a\n- b\n"), 0o644))
	_, err = ParseFile(list)
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("a/b: /x\n"), 0o644))
	assert.ErrorIs(t, New().LoadFile(bad), ErrInvalidRootName)

	empty := filepath.Join(dir, "empty.yaml")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	assert.NoError(t, New().LoadFile(empty))
}

func TestWatch_Reloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roots.yaml")
	require.NoError(t, os.WriteFile(path, []byte("first: /first\n"), 0o644))

	r := New()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, path, r, nil) }()

	require.Eventually(t, func() bool { return r.Has("first") }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("first: /first\nsecond: /second\n"), 0o644))
	require.Eventually(t, func() bool { return r.Has("second") }, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not stop")
	}
}
