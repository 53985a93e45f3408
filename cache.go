package irgen

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"
	"golang.org/x/crypto/blake2b"

	"github.com/tetratelabs/irgen/internal/compilationcache"
	"github.com/tetratelabs/irgen/internal/ir"
	"github.com/tetratelabs/irgen/internal/version"
)

// CompilationCache stores compiled methods across Compiler instances and
// processes. Implementations must be safe for concurrent use.
//
// See NewFileCompilationCache
type CompilationCache = compilationcache.Cache

// NewFileCompilationCache returns a CompilationCache persisting entries
// under dir, which is created if it does not exist.
//
// Entries live in a subdirectory specific to the version of irgen, so that
// upgrading never reads entries of another version.
//
// Note: The embedder must safeguard this directory from external changes.
func NewFileCompilationCache(dir string) (CompilationCache, error) {
	return newFileCompilationCache(dir, version.GetVersion())
}

func newFileCompilationCache(dir, irgenVersion string) (CompilationCache, error) {
	// Resolve a potentially relative directory into an absolute one.
	dir, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err = mkdir(dir); err != nil {
		return nil, err
	}

	// Create a version-specific directory to avoid conflicts.
	dirname := path.Join(dir, "irgen-"+irgenVersion+"-"+string(InstructionSetMIPS32R2))
	if err = mkdir(dirname); err != nil {
		return nil, err
	}
	return compilationcache.NewFileCache(dirname), nil
}

func mkdir(dirname string) error {
	if st, err := os.Stat(dirname); errors.Is(err, os.ErrNotExist) {
		// If the directory not found, create the cache dir.
		if err = os.MkdirAll(dirname, 0o700); err != nil {
			return fmt.Errorf("create directory %s: %v", dirname, err)
		}
	} else if err != nil {
		return err
	} else if !st.IsDir() {
		return fmt.Errorf("%s is not dir", dirname)
	}
	return nil
}

type cacheKey = compilationcache.Key

// fingerprint serializes what changes the generated code. The logger,
// parallelism and cache do not.
func (c *compilerConfig) fingerprint() []byte {
	b, err := json.Marshal(struct {
		InstructionSet              InstructionSet  `json:"instruction_set"`
		Mode                        CompilationMode `json:"mode"`
		ReadBarrier                 string          `json:"read_barrier"`
		ImplicitNullChecks          bool            `json:"implicit_null_checks"`
		ImplicitStackOverflowChecks bool            `json:"implicit_stack_overflow_checks"`
		MaxInstructions             int             `json:"max_instructions"`
		MaxFrameSize                int             `json:"max_frame_size"`
		DebugAssembler              bool            `json:"debug_assembler"`
	}{
		InstructionSet:              c.instructionSet,
		Mode:                        c.mode,
		ReadBarrier:                 c.options.ReadBarrier.String(),
		ImplicitNullChecks:          c.options.ImplicitNullChecks,
		ImplicitStackOverflowChecks: c.options.ImplicitStackOverflowChecks,
		MaxInstructions:             c.options.MaxInstructions,
		MaxFrameSize:                c.options.MaxFrameSize,
		DebugAssembler:              c.options.DebugAssembler,
	})
	if err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
	return b
}

// cacheKey digests the version, the configuration and the method. Graphs
// printing the same are compiled to the same code.
func (c *compiler) cacheKey(g *ir.Graph) cacheKey {
	h, _ := blake2b.New256(nil)
	h.Write([]byte(version.GetVersion()))
	h.Write([]byte{0})
	h.Write(c.fingerprint)
	var index [4]byte
	binary.LittleEndian.PutUint32(index[:], g.MethodIndex())
	h.Write(index[:])
	h.Write([]byte(g.String()))

	var key cacheKey
	h.Sum(key[:0])
	return key
}

func (c *compiler) getCache(key cacheKey, name string) (*CompiledMethod, bool) {
	content, ok, err := c.config.cache.Get(key)
	if err != nil {
		c.logger.Warn("compilation cache read failed", zap.String("method", name), zap.Error(err))
	}
	if !ok {
		c.cacheMisses.Inc()
		c.logger.Debug("compilation cache miss", zap.String("method", name))
		return nil, false
	}
	defer content.Close()

	var m CompiledMethod
	if err = json.NewDecoder(content).Decode(&m); err == nil {
		err = m.normalize()
	}
	if err != nil {
		// The entry is unusable: drop it so the method is compiled and stored again.
		c.cacheMisses.Inc()
		c.logger.Warn("invalid compilation cache entry", zap.String("method", name), zap.Error(err))
		if err = c.config.cache.Delete(key); err != nil {
			c.logger.Warn("compilation cache delete failed", zap.String("method", name), zap.Error(err))
		}
		return nil, false
	}
	c.cacheHits.Inc()
	c.logger.Debug("compilation cache hit", zap.String("method", name))
	return &m, true
}

func (c *compiler) addCache(key cacheKey, m *CompiledMethod) {
	b, err := json.Marshal(m)
	if err != nil {
		panic(fmt.Sprintf("BUG: %v", err))
	}
	if err = c.config.cache.Add(key, bytes.NewReader(b)); err != nil {
		c.logger.Warn("compilation cache write failed", zap.String("method", m.Name), zap.Error(err))
	}
}
