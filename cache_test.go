package irgen

import (
	"bytes"
	"context"
	"io"
	"os"
	"path"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/tetratelabs/irgen/internal/version"
)

func TestCompilationCache(t *testing.T) {
	ctx := context.Background()
	cache, err := NewFileCompilationCache(t.TempDir())
	require.NoError(t, err)
	config := NewCompilerConfig().WithCompilationCache(cache)

	foo := NewCompiler(config)
	g := divGraph(t, "div")
	compiled, err := foo.CompileMethod(ctx, g)
	require.NoError(t, err)
	require.Equal(t, Stats{
		MethodsCompiled: 1,
		BytesEmitted:    uint64(len(compiled.Code)),
		SlowPaths:       1,
		ParallelMoves:   foo.Stats().ParallelMoves,
		CacheMisses:     1,
	}, foo.Stats())

	// Another compiler shares the entry of the same method.
	core, logs := observer.New(zapcore.DebugLevel)
	bar := NewCompiler(config.WithLogger(zap.New(core)))
	barCompiled, err := bar.CompileMethod(ctx, divGraph(t, "div"))
	require.NoError(t, err)
	require.Equal(t, compiled, barCompiled)
	require.Equal(t, Stats{CacheHits: 1}, bar.Stats())
	require.Equal(t, 1, logs.FilterMessage("compilation cache hit").Len())

	// The cached method runs.
	ret, err := run(t, g, barCompiled, i32(12), i32(-4))
	require.NoError(t, err)
	require.Equal(t, i32(-3), ret)

	// Another method, or another configuration, misses.
	_, err = bar.CompileMethod(ctx, sumGraph(t, "div"))
	require.NoError(t, err)
	baz := NewCompiler(config.WithReadBarrier(ReadBarrierNone))
	_, err = baz.CompileMethod(ctx, divGraph(t, "div"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), bar.Stats().CacheMisses)
	require.Equal(t, uint64(1), baz.Stats().CacheMisses)

	// The logger and the parallelism do not change the code.
	qux := NewCompiler(config.WithParallelism(8).WithLogger(zap.NewNop()))
	_, err = qux.CompileMethod(ctx, divGraph(t, "div"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), qux.Stats().CacheHits)
}

func TestCompilationCache_invalidEntry(t *testing.T) {
	for _, tc := range []struct {
		name    string
		content string
	}{
		{name: "not json", content: "\x7fELF"},
		{name: "invalid stack maps", content: `{"name":"div","stack_maps":"/w=="}`},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cache, err := NewFileCompilationCache(t.TempDir())
			require.NoError(t, err)
			core, logs := observer.New(zapcore.DebugLevel)
			c := NewCompiler(NewCompilerConfig().WithCompilationCache(cache).WithLogger(zap.New(core)))

			key := c.(*compiler).cacheKey(divGraph(t, "div"))
			require.NoError(t, cache.Add(key, bytes.NewReader([]byte(tc.content))))

			m, err := c.CompileMethod(context.Background(), divGraph(t, "div"))
			require.NoError(t, err)
			require.Equal(t, Stats{
				MethodsCompiled: 1,
				BytesEmitted:    uint64(len(m.Code)),
				SlowPaths:       1,
				ParallelMoves:   c.Stats().ParallelMoves,
				CacheMisses:     1,
			}, c.Stats())
			require.Equal(t, 1, logs.FilterMessage("invalid compilation cache entry").Len())

			// The entry was replaced by the compiled method.
			content, ok, err := cache.Get(key)
			require.NoError(t, err)
			require.True(t, ok)
			defer content.Close()
			b, err := io.ReadAll(content)
			require.NoError(t, err)
			require.NotEqual(t, tc.content, string(b))

			m2, err := c.CompileMethod(context.Background(), divGraph(t, "div"))
			require.NoError(t, err)
			require.Equal(t, m, m2)
		})
	}
}

func TestNewFileCompilationCache(t *testing.T) {
	t.Run("versioned directory", func(t *testing.T) {
		dir := t.TempDir()
		_, err := newFileCompilationCache(path.Join(dir, "nested", "cache"), "v1.2.3")
		require.NoError(t, err)

		st, err := os.Stat(path.Join(dir, "nested", "cache", "irgen-v1.2.3-mips32r2"))
		require.NoError(t, err)
		require.True(t, st.IsDir())
	})
	t.Run("current version", func(t *testing.T) {
		dir := t.TempDir()
		_, err := NewFileCompilationCache(dir)
		require.NoError(t, err)
		_, err = os.Stat(path.Join(dir, "irgen-"+version.GetVersion()+"-mips32r2"))
		require.NoError(t, err)
	})
	t.Run("not a directory", func(t *testing.T) {
		file := path.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, nil, 0o600))
		_, err := NewFileCompilationCache(file)
		require.EqualError(t, err, file+" is not dir")
	})
}
