package resource

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/locus/internal/compress"
	"github.com/hupe1980/locus/internal/lock"
	"github.com/hupe1980/locus/roots"
)

type fixture struct {
	dir string
	ns  *Namespace
	reg *roots.Registry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	dir := t.TempDir()
	reg := roots.Empty()
	require.NoError(t, reg.Append("first", dir+"/first/{TOPLEVEL}/{PKGDIR}/{SUBPATH}"))
	require.NoError(t, reg.Append("second", dir+"/second/{PATH}"))
	require.NoError(t, reg.AddAlias(roots.Default, "first"))

	base := []Option{
		WithRoots(reg),
		WithHome(filepath.Join(dir, "home")),
		WithWorkDir(filepath.Join(dir, "work")),
		WithLocker(lock.New(filepath.Join(dir, "locks"), lock.WithPollInterval(time.Millisecond))),
	}
	return &fixture{dir: dir, ns: NewNamespace("locus", append(base, opts...)...), reg: reg}
}

func (f *fixture) write(t *testing.T, rel, content string) string {
	t.Helper()
	full := filepath.Join(f.dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func TestPath_Parts(t *testing.T) {
	f := newFixture(t)
	p := f.ns.Path("share/data/file.tsv")
	assert.Equal(t, []string{"share", "data", "file.tsv"}, p.Parts())
	assert.Equal(t, "share", p.Toplevel())
	assert.Equal(t, "data/file.tsv", p.Subpath())
	assert.Equal(t, "file.tsv", p.Base())
	assert.False(t, p.Located())
	assert.Equal(t, "share/data/file.tsv/x", p.Join("x").String())
	assert.Equal(t, "./a/b", f.ns.Path("./a").Join("/b/").String())
}

func TestFind_DefaultWhenMissing(t *testing.T) {
	f := newFixture(t)
	p := f.ns.Path("share/data/file")

	found := p.Find()
	require.NotNil(t, found)
	assert.Equal(t, filepath.Join(f.dir, "first/share/locus/data/file"), found.String())
	assert.Equal(t, "first", found.Where())
	assert.Equal(t, "share/data/file", found.Original())
	assert.Equal(t, found.String(), p.Find().String(), "deterministic")
	assert.False(t, p.Exists())
}

func TestFind_PriorityOrder(t *testing.T) {
	f := newFixture(t)
	second := f.write(t, "second/share/data/file", "2")

	found := f.ns.Path("share/data/file").Find()
	assert.Equal(t, second, found.String())
	assert.Equal(t, "second", found.Where())

	first := f.write(t, "first/share/locus/data/file", "1")
	assert.Equal(t, first, f.ns.Path("share/data/file").Find().String())
}

func TestFind_CompressedAlternative(t *testing.T) {
	f := newFixture(t)
	gz := f.write(t, "second/share/file.gz", "x")

	found := f.ns.Path("share/file").Find()
	assert.Equal(t, gz, found.String())
	assert.True(t, f.ns.Path("share/file").Exists())
}

func TestFindAll(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "first/share/locus/data/file", "1")
	b := f.write(t, "second/share/data/file", "2")
	require.NoError(t, f.reg.Append("dup", f.dir+"/second/{PATH}"))

	all := f.ns.Path("share/data/file").FindAll()
	var got []string
	for _, p := range all {
		got = append(got, p.String())
	}
	if diff := cmp.Diff([]string{a, b}, got); diff != "" {
		t.Fatalf("FindAll mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "first", all[0].Where())

	viaAll, err := f.ns.Path("share/data/file").FindIn(roots.All)
	require.NoError(t, err)
	assert.Equal(t, a, viaAll.String())

	every, err := f.ns.Path("share/data/file").Resolve(roots.All)
	require.NoError(t, err)
	var everyStr []string
	for _, p := range every {
		everyStr = append(everyStr, p.String())
	}
	assert.Equal(t, got, everyStr)
	one, err := f.ns.Path("share/data/file").Resolve("second")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, b, one[0].String())

	assert.Empty(t, f.ns.Path("share/none").FindAll())
	none, err := f.ns.Path("share/none").Resolve(roots.All)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindIn(t *testing.T) {
	f := newFixture(t)
	p := f.ns.Path("share/data/file")

	in, err := p.FindIn("second")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "second/share/data/file"), in.String())

	def, err := p.FindIn(roots.Default)
	require.NoError(t, err)
	assert.Equal(t, "first", def.Where())

	dirLike, err := p.FindIn(f.dir + "/adhoc")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "adhoc/share/data/file"), dirLike.String())

	_, err = p.FindIn("nope")
	assert.ErrorIs(t, err, roots.ErrUnknownRoot)

	_, err = p.Follow("")
	assert.ErrorIs(t, err, roots.ErrInvalidRootName)

	require.NoError(t, f.reg.AddAlias("loop_a", "loop_b"))
	require.NoError(t, f.reg.AddAlias("loop_b", "loop_a"))
	_, err = p.FindIn("loop_a")
	assert.ErrorIs(t, err, roots.ErrAliasCycle)
	assert.NotNil(t, p.Find(), "cycles do not break resolution")
}

func TestFind_Located(t *testing.T) {
	f := newFixture(t)
	abs := f.write(t, "plain/file", "x")

	assert.Equal(t, abs, f.ns.Path(abs+"/../file").Find().String())

	missing := f.dir + "/plain/missing"
	assert.Equal(t, missing, f.ns.Path(missing).Find().String())

	gz := f.write(t, "plain/packed.gz", "x")
	assert.Equal(t, gz, f.ns.Path(f.dir+"/plain/packed").Find().String())

	home := f.write(t, "home/notes", "x")
	assert.Equal(t, home, f.ns.Path("~/notes").Find().String())

	work := f.write(t, "work/local.txt", "x")
	assert.Equal(t, work, f.ns.Path("./local.txt").Find().String())
	assert.Equal(t, "./nothing", f.ns.Path("./nothing").Find().String())
}

func TestFindWithExtension(t *testing.T) {
	f := newFixture(t)
	withExt := f.write(t, "second/share/table.tsv", "x")

	p := f.ns.Path("share/table")
	assert.Equal(t, withExt, p.FindWithExtension("csv", "tsv").String())
	assert.Equal(t, "share/table.tsv", p.SetExtension(".tsv").String())
	assert.Equal(t, "share/table", p.SetExtension("tsv").UnsetExtension().String())
	assert.Equal(t, "tsv", p.SetExtension("tsv").Extension())
}

func TestPath_CopyOnWriteRoots(t *testing.T) {
	f := newFixture(t)
	p := f.ns.Path("share/file")
	require.NoError(t, p.PrependRoot("mine", f.dir+"/mine/{PATH}"))

	assert.False(t, f.reg.Has("mine"), "namespace registry untouched")
	assert.Equal(t, "mine", p.Registry().Order()[0])

	mine := f.write(t, "mine/share/file", "x")
	assert.Equal(t, mine, p.Find().String())
	assert.Equal(t, mine, p.Join().Find().String(), "children share the copy")
	assert.NotEqual(t, mine, f.ns.Path("share/file").Find().String())
}

func TestFollow_LibDir(t *testing.T) {
	f := newFixture(t, WithLibDir("/opt/lib"))
	require.NoError(t, f.reg.Add("lib", "{LIBDIR}/{TOPLEVEL}/{SUBPATH}"))

	p := f.ns.Path("share/x")
	got, err := p.Follow("lib")
	require.NoError(t, err)
	assert.Equal(t, "/opt/lib/share/x", got.String())

	p.SetLibDir("/other")
	got, err = p.Follow("lib")
	require.NoError(t, err)
	assert.Equal(t, "/other/share/x", got.String())
}

func TestIdentify(t *testing.T) {
	dir := t.TempDir()
	home := filepath.Join(dir, "home")
	ns := NewNamespace("locus", WithHome(home), WithWorkDir(filepath.Join(dir, "work")))

	located := ns.Path("share/data/somedir/somepath").Find()
	assert.Equal(t, filepath.Join(home, ".locus/share/data/somedir/somepath"), located.String())
	assert.Equal(t, "share/data/somedir/somepath", ns.Identify(located.String()).String())
	assert.Equal(t, "share/data/somedir", ns.Identify(filepath.Join(home, ".locus/share/data/somedir")+"/").String())

	// Another package's directory does not identify as ours.
	other := filepath.Join(home, ".other/share/x")
	assert.Equal(t, other, ns.Identify(other).String())

	assert.Equal(t, "share/plain", ns.Identify("share/plain").String())
}

func TestIdentify_RoundTrip(t *testing.T) {
	f := newFixture(t)
	for _, logical := range []string{"share/data/file", "var/cache/item.json", "etc/conf"} {
		in, err := f.ns.Path(logical).FindIn("second")
		require.NoError(t, err)
		assert.Equal(t, logical, in.Identify().String())
	}
}

func TestGlobAll(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "first/share/locus/data/a.txt", "")
	b := f.write(t, "second/share/data/b.txt", "")
	f.write(t, "second/share/data/skip.tsv", "")
	nested := f.write(t, "second/share/data/sub/c.txt", "")

	matches, err := f.ns.Path("share/data").GlobAll("*.txt")
	require.NoError(t, err)
	var got []string
	for _, m := range matches {
		got = append(got, m.String())
	}
	assert.Equal(t, []string{a, b}, got)

	deep, err := f.ns.Path("share/data").GlobAll("**.txt")
	require.NoError(t, err)
	assert.Len(t, deep, 3)
	assert.Equal(t, nested, deep[2].String())
}

func TestGlob_ResolvedDirOnly(t *testing.T) {
	f := newFixture(t)
	a := f.write(t, "first/share/locus/data/a.txt", "")
	f.write(t, "second/share/data/b.txt", "")

	matches, err := f.ns.Path("share/data").Glob("*.txt")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, a, matches[0].String())

	none, err := f.ns.Path("share/missing").Glob("*")
	require.NoError(t, err)
	assert.Empty(t, none)
}

type namedProducer struct{ name string }

func (namedProducer) Produce(context.Context, *Path, string) (bool, error) { return false, nil }

func TestClaims_Lookup(t *testing.T) {
	c := NewClaims()
	p1 := namedProducer{"data"}
	p2 := namedProducer{"special"}
	c.Claim("share/data", p1)
	c.Claim("share/data/special", p2)

	got, ok := c.Lookup("share/data/x")
	require.True(t, ok)
	assert.Equal(t, p1, got)

	got, ok = c.Lookup("share/data/special/y")
	require.True(t, ok)
	assert.Equal(t, p2, got)

	_, ok = c.Lookup("share/database")
	assert.False(t, ok, "claims match whole segments")

	c.Unclaim("share/data")
	_, ok = c.Lookup("share/data/x")
	assert.False(t, ok)
}

func countingProducer(calls *atomic.Int32, content string, err error) Producer {
	return ProducerFunc(func(ctx context.Context, p *Path, target string) (bool, error) {
		calls.Add(1)
		if err != nil {
			return false, err
		}
		return Content([]byte(content)).Produce(ctx, p, target)
	})
}

func TestProduce_OncePerInstance(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, WithProducer(countingProducer(&calls, "made", nil)))
	p := f.ns.Path("share/made")

	ok, err := p.Produce(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = p.Produce(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int32(1), calls.Load())

	state, _ := p.State()
	assert.Equal(t, Done, state)

	_, err = p.Produce(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "force runs the producer again")
}

func TestProduce_NotFoundIsNotAnError(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, WithProducer(countingProducer(&calls, "", ErrNotFound)))
	p := f.ns.Path("share/absent")

	ok, err := p.Produce(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = p.Produce(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())

	state, stateErr := p.State()
	assert.Equal(t, Done, state)
	assert.NoError(t, stateErr)
}

func TestProduce_FailureIsCaptured(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	boom := errors.New("boom")
	var calls atomic.Int32
	f := newFixture(t, WithProducer(countingProducer(&calls, "", boom)), WithLogger(logger))
	p := f.ns.Path("share/broken")

	_, err := p.Produce(context.Background(), false)
	require.ErrorIs(t, err, boom)
	var perr *ProductionError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "share/broken", perr.Path)

	_, err2 := p.Produce(context.Background(), true)
	assert.Same(t, err, err2, "failed state wins over force")
	assert.Equal(t, int32(1), calls.Load())

	state, _ := p.State()
	assert.Equal(t, Failed, state)
	assert.Contains(t, logs.String(), "production failed")
	assert.Contains(t, logs.String(), "path=share/broken")

	// A fresh instance tries again.
	_, err = f.ns.Path("share/broken").Produce(context.Background(), false)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(2), calls.Load())
}

func TestProduce_ExistingSkipsProducer(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, WithProducer(countingProducer(&calls, "x", nil)))
	f.write(t, "second/share/there", "already")

	ok, err := f.ns.Path("share/there").Produce(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, calls.Load())
}

func TestProduce_NoProducer(t *testing.T) {
	f := newFixture(t)
	ok, err := f.ns.Path("share/nothing").Produce(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestProduce_ConcurrentInstancesProduceOnce(t *testing.T) {
	var calls atomic.Int32
	slow := ProducerFunc(func(ctx context.Context, p *Path, target string) (bool, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return Content([]byte("slow")).Produce(ctx, p, target)
	})
	f := newFixture(t, WithProducer(slow))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := f.ns.Path("share/slow").Produce(context.Background(), false)
			assert.NoError(t, err)
			assert.True(t, ok)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestProduce_SameInstanceConcurrent(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, WithProducer(countingProducer(&calls, "x", nil)))
	p := f.ns.Path("share/shared")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Produce(context.Background(), false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), calls.Load())
}

func TestProduce_ClaimWinsOverDefault(t *testing.T) {
	var fallback atomic.Int32
	f := newFixture(t, WithProducer(countingProducer(&fallback, "fallback", nil)))
	f.ns.Claim("share/claimed", Content([]byte("claimed")))

	data, err := f.ns.Path("share/claimed/file").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "claimed", string(data))
	assert.Zero(t, fallback.Load())
}

func TestProduce_LockInterrupted(t *testing.T) {
	f := newFixture(t, WithProducer(Content([]byte("x"))))
	p := f.ns.Path("share/locked")
	target := p.Find().String()

	locker := f.ns.locker.(*lock.Manager)
	held, err := locker.Acquire(context.Background(), target)
	require.NoError(t, err)
	defer held.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.Produce(ctx, false)
	require.ErrorIs(t, err, lock.ErrLockInterrupted)

	state, _ := p.State()
	assert.Equal(t, Untried, state, "interruption is retryable")
}

func TestOpen_Decompresses(t *testing.T) {
	f := newFixture(t)
	target := filepath.Join(f.dir, "second/share/packed.gz")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0o755))

	var buf bytes.Buffer
	w, err := compress.NewWriter(compress.Gzip, &buf)
	require.NoError(t, err)
	_, _ = w.Write([]byte("unpacked"))
	require.NoError(t, w.Close())
	require.NoError(t, os.WriteFile(target, buf.Bytes(), 0o644))

	data, err := f.ns.Path("share/packed").Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unpacked", string(data))
}

func TestOpen_Missing(t *testing.T) {
	f := newFixture(t)
	_, err := f.ns.Path("share/void").Open(context.Background())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProduceAndFind(t *testing.T) {
	f := newFixture(t, WithProducer(Content([]byte("x"))))
	found, err := f.ns.Path("share/pf").ProduceAndFind(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(f.dir, "first/share/locus/pf"), found.String())

	g := newFixture(t, WithProducer(ProducerFunc(func(context.Context, *Path, string) (bool, error) {
		return false, ErrNotFound
	})))
	_, err = g.ns.Path("share/none").ProduceAndFind(context.Background(), "gz")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNewer(t *testing.T) {
	f := newFixture(t)
	old := f.write(t, "old", "o")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	f.write(t, "second/share/fresh", "n")

	p := f.ns.Path("share/fresh")
	assert.True(t, p.Newer(old))
	assert.True(t, p.Newer(filepath.Join(f.dir, "missing")))
	assert.False(t, f.ns.Path("share/none").Newer(old))
}
