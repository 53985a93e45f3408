package irgen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/atomic"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tetratelabs/irgen/internal/backend"
	"github.com/tetratelabs/irgen/internal/backend/isa/mips32"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/regalloc"
)

// Compiler compiles methods to machine code. It is safe for concurrent use.
//
// Register allocation rewrites the graph, so a Graph is compiled at most once.
type Compiler interface {
	// CompileMethod compiles g. A *NotCompiledError is returned for methods
	// the compiler deliberately does not compile: the caller keeps
	// interpreting them.
	//
	// ctx is only checked before compilation starts.
	CompileMethod(ctx context.Context, g *Graph) (*CompiledMethod, error)

	// CompileMethods compiles graphs with up to the configured parallelism.
	// The result has one entry per graph, nil for the methods that failed,
	// and the error combines the failures in order. Use multierr.Errors to
	// split it.
	//
	// See CompilerConfig.WithParallelism
	CompileMethods(ctx context.Context, graphs []*Graph) ([]*CompiledMethod, error)

	// Stats returns the counters accumulated since NewCompiler.
	Stats() Stats
}

// Stats are the counters of a Compiler.
type Stats struct {
	MethodsCompiled    uint64
	MethodsNotCompiled uint64
	// BytesEmitted is the size of the code compiled, cache hits excluded.
	BytesEmitted  uint64
	SlowPaths     uint64
	ParallelMoves uint64
	CacheHits     uint64
	CacheMisses   uint64
}

// NewCompiler returns a Compiler with the given configuration, or the
// defaults when config is nil.
func NewCompiler(config CompilerConfig) Compiler {
	if config == nil {
		config = NewCompilerConfig()
	}
	c := config.(*compilerConfig).clone()
	ret := &compiler{config: c, logger: c.logger}
	if c.cache != nil {
		ret.fingerprint = c.fingerprint()
	}
	return ret
}

type compiler struct {
	config *compilerConfig
	logger *zap.Logger
	// fingerprint identifies the configuration in cache keys.
	fingerprint []byte

	methodsCompiled    atomic.Uint64
	methodsNotCompiled atomic.Uint64
	bytesEmitted       atomic.Uint64
	slowPaths          atomic.Uint64
	parallelMoves      atomic.Uint64
	cacheHits          atomic.Uint64
	cacheMisses        atomic.Uint64
}

// CompileMethod implements Compiler.CompileMethod
func (c *compiler) CompileMethod(ctx context.Context, g *Graph) (*CompiledMethod, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, errors.New("nil graph")
	}

	err := c.check(g)
	var key cacheKey
	if err == nil && c.config.cache != nil {
		key = c.cacheKey(g)
		if m, ok := c.getCache(key, g.Name()); ok {
			return m, nil
		}
	}

	var m *CompiledMethod
	if err == nil {
		m, err = c.compile(g)
	}
	if err != nil {
		var nc *NotCompiledError
		if errors.As(err, &nc) {
			c.methodsNotCompiled.Inc()
			c.logger.Debug("method not compiled",
				zap.String("method", nc.Method),
				zap.Stringer("reason", nc.Reason),
				zap.String("detail", nc.Detail),
			)
		}
		return nil, err
	}
	c.methodsCompiled.Inc()
	c.bytesEmitted.Add(uint64(len(m.Code)))

	if c.config.cache != nil {
		c.addCache(key, m)
	}
	return m, nil
}

// check returns a *NotCompiledError for the graphs never handed to the backend.
func (c *compiler) check(g *ir.Graph) error {
	if c.config.instructionSet != InstructionSetMIPS32R2 {
		return &NotCompiledError{
			Method: g.Name(),
			Reason: ReasonUnsupportedInstructionSet,
			Detail: fmt.Sprintf("%q", c.config.instructionSet),
		}
	}
	if err := g.Validate(); err != nil {
		return &NotCompiledError{Method: g.Name(), Reason: ReasonInvalidGraph, Detail: err.Error()}
	}
	return nil
}

func (c *compiler) compile(g *ir.Graph) (*CompiledMethod, error) {
	bctx := backend.NewCompilationContext(g.Name(), c.config.options, c.logger)
	res, err := c.generate(bctx, g)

	c.slowPaths.Add(uint64(bctx.Stats.SlowPaths))
	c.parallelMoves.Add(uint64(bctx.Stats.ParallelMoves))
	if err != nil {
		var b *backend.Bailout
		if errors.As(err, &b) {
			return nil, notCompiled(g.Name(), b)
		}
		return nil, err
	}
	return newCompiledMethod(g, res)
}

// generate runs the pipeline: locations, register allocation, then code.
func (c *compiler) generate(bctx *backend.CompilationContext, g *ir.Graph) (*backend.Result, error) {
	cg := backend.NewCodeGenerator(bctx, g, mips32.NewMachine())
	if err := cg.BuildLocations(); err != nil {
		return nil, err
	}
	if err := regalloc.Allocate(cg, regalloc.Options{}); err != nil {
		return nil, err
	}
	return cg.Compile()
}

// CompileMethods implements Compiler.CompileMethods
func (c *compiler) CompileMethods(ctx context.Context, graphs []*Graph) ([]*CompiledMethod, error) {
	ret := make([]*CompiledMethod, len(graphs))
	errs := make([]error, len(graphs))

	workers := c.config.parallelism
	if workers > len(graphs) {
		workers = len(graphs)
	}
	next := make(chan int)
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range next {
				ret[i], errs[i] = c.CompileMethod(ctx, graphs[i])
			}
		}()
	}
	for i := range graphs {
		next <- i
	}
	close(next)
	wg.Wait()

	var err error
	for i, e := range errs {
		if e == nil {
			continue
		}
		var nc *NotCompiledError
		if !errors.As(e, &nc) {
			e = fmt.Errorf("method %d: %w", i, e)
		}
		err = multierr.Append(err, e)
	}
	return ret, err
}

// Stats implements Compiler.Stats
func (c *compiler) Stats() Stats {
	return Stats{
		MethodsCompiled:    c.methodsCompiled.Load(),
		MethodsNotCompiled: c.methodsNotCompiled.Load(),
		BytesEmitted:       c.bytesEmitted.Load(),
		SlowPaths:          c.slowPaths.Load(),
		ParallelMoves:      c.parallelMoves.Load(),
		CacheHits:          c.cacheHits.Load(),
		CacheMisses:        c.cacheMisses.Load(),
	}
}
