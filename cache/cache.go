// Package cache persists generated artifacts keyed by type signature.
//
// Artifacts are written to a temporary file and renamed into place, so
// concurrent writers never expose a partial file and readers need no locks.
// A missing or unreadable file is a miss and triggers a rebuild. Linked
// programs are kept in memory under the same key.
package cache

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wippyai/jsongen/errors"
)

// Key identifies one artifact.
type Key struct {
	Signature string // canonical type signature
	Direction string // "encode" or "decode"
	Format    string // "json"
	Variant   string // active field groups and flags
}

// Hash returns the content hash of the key as 16 hex digits.
func (k Key) Hash() string {
	d := xxhash.New()
	for _, part := range []string{k.Signature, k.Direction, k.Format, k.Variant} {
		_, _ = d.WriteString(part)
		_, _ = d.Write([]byte{0})
	}
	var sum [8]byte
	return hex.EncodeToString(d.Sum(sum[:0]))
}

// FileName returns the artifact file name, {hash}.{format}.{direction}.
func (k Key) FileName() string {
	return k.Hash() + "." + k.Format + "." + k.Direction
}

// Entry is a cached artifact.
type Entry struct {
	Key   Key
	Path  string // empty for memory-only caches
	Data  []byte
	Built bool // generated by this call rather than read back
}

// Option configures a Cache.
type Option func(*Cache)

// WithMetrics records lookups and builds on m.
func WithMetrics(m *Metrics) Option {
	return func(c *Cache) { c.metrics = m }
}

// Cache stores artifacts on disk and linked values in memory.
type Cache struct {
	metrics *Metrics
	dir     string
	blobs   sync.Map // hash -> []byte, memory-only caches
	values  sync.Map // hash -> any
}

// New creates a cache rooted at dir. An empty dir keeps artifacts in memory.
func New(dir string, opts ...Option) (*Cache, error) {
	c := &Cache{dir: dir}
	for _, opt := range opts {
		opt(c)
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Runtime(errors.PhaseCache, "create cache directory", err)
		}
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *Cache) Dir() string {
	return c.dir
}

// Path returns where the artifact for k is stored.
func (c *Cache) Path(k Key) string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, k.FileName())
}

// GetOrBuild returns the artifact for k, calling build on a miss or when force
// is set. Build errors are returned as is and nothing is stored.
func (c *Cache) GetOrBuild(k Key, force bool, build func() ([]byte, error)) (*Entry, error) {
	hash := k.Hash()
	path := c.Path(k)

	if !force {
		if data, ok := c.read(hash, path); ok {
			c.metrics.hit("disk")
			return &Entry{Key: k, Path: path, Data: data}, nil
		}
		c.metrics.miss("disk")
	}

	start := time.Now()
	data, err := build()
	if err != nil {
		c.metrics.failed("build")
		return nil, err
	}
	c.metrics.built(time.Since(start))

	if err := c.write(hash, path, data); err != nil {
		c.metrics.failed("write")
		return nil, err
	}

	Logger().Debug("artifact built",
		zap.String("signature", k.Signature),
		zap.String("direction", k.Direction),
		zap.String("path", path),
		zap.Int("size", len(data)),
		zap.Bool("forced", force))

	return &Entry{Key: k, Path: path, Data: data, Built: true}, nil
}

func (c *Cache) read(hash, path string) ([]byte, bool) {
	if path == "" {
		v, ok := c.blobs.Load(hash)
		if !ok {
			return nil, false
		}
		return v.([]byte), true
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.metrics.failed("read")
			Logger().Warn("unreadable artifact, rebuilding", zap.String("path", path), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *Cache) write(hash, path string, data []byte) error {
	if path == "" {
		c.blobs.Store(hash, data)
		return nil
	}

	tmp := filepath.Join(c.dir, ".tmp-"+uuid.NewString())
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return errors.Runtime(errors.PhaseCache, "write artifact "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Runtime(errors.PhaseCache, "publish artifact "+path, err)
	}
	return nil
}

// Memo returns the in-memory value for k, calling build once on a miss.
// Concurrent misses may build more than once; the first stored value wins.
func (c *Cache) Memo(k Key, build func() (any, error)) (any, error) {
	hash := k.Hash()
	if v, ok := c.values.Load(hash); ok {
		c.metrics.hit("memory")
		return v, nil
	}
	c.metrics.miss("memory")

	v, err := build()
	if err != nil {
		return nil, err
	}
	actual, _ := c.values.LoadOrStore(hash, v)
	return actual, nil
}

// Forget drops the in-memory value for k.
func (c *Cache) Forget(k Key) {
	hash := k.Hash()
	c.values.Delete(hash)
	c.blobs.Delete(hash)
}

// Clear drops every in-memory value and removes artifact files from the
// cache directory. Files that do not look like artifacts are left alone.
func (c *Cache) Clear() error {
	c.values.Clear()
	c.blobs.Clear()
	if c.dir == "" {
		return nil
	}

	ents, err := os.ReadDir(c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return errors.Runtime(errors.PhaseCache, "list cache directory", err)
	}
	removed := 0
	for _, e := range ents {
		if e.IsDir() || !isArtifactName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil && !os.IsNotExist(err) {
			return errors.Runtime(errors.PhaseCache, "remove artifact "+e.Name(), err)
		}
		removed++
	}
	Logger().Debug("cache cleared", zap.String("dir", c.dir), zap.Int("removed", removed))
	return nil
}

func isArtifactName(name string) bool {
	if strings.HasPrefix(name, ".tmp-") {
		return true
	}
	parts := strings.Split(name, ".")
	if len(parts) != 3 || len(parts[0]) != 16 {
		return false
	}
	_, err := hex.DecodeString(parts[0])
	return err == nil
}
