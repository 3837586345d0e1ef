// Package dcache stores analysis outcomes on disk, keyed by a digest of
// everything the analysis of a function reads.
package dcache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"fortio.org/safecast"
	"github.com/vmihailenco/msgpack/v5"

	"borrowck/internal/borrowck"
	"borrowck/internal/cfg"
	"borrowck/internal/types"
)

// Current schema version - increment when Entry or Outcome change shape.
const schemaVersion uint16 = 1

// Digest is a SHA-256 content hash.
type Digest [sha256.Size]byte

func (d Digest) String() string { return hex.EncodeToString(d[:]) }

// Cache хранит результаты анализа функций на диске.
// Thread-safe for concurrent access.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// Entry is the on-disk record.
type Entry struct {
	Schema  uint16
	Key     Digest
	Outcome borrowck.Outcome
}

// Open returns a cache rooted at dir. An empty dir selects the user cache
// directory ($XDG_CACHE_HOME/borrowck or ~/.cache/borrowck).
func Open(dir string) (*Cache, error) {
	if dir == "" {
		base := os.Getenv("XDG_CACHE_HOME")
		if base == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, err
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "borrowck")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Cache) Dir() string { return c.dir }

func (c *Cache) pathFor(key Digest) string {
	hexKey := key.String()
	// Подкаталог по первому байту ключа.
	return filepath.Join(c.dir, "outcomes", hexKey[:2], hexKey+".mp")
}

// Put serializes and writes an outcome.
func (c *Cache) Put(key Digest, out *borrowck.Outcome) (err error) {
	if c == nil || out == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}()

	entry := Entry{Schema: schemaVersion, Key: key, Outcome: *out}
	if err := msgpack.NewEncoder(f).Encode(&entry); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	return os.Rename(f.Name(), p)
}

// Get reads an outcome. A missing entry, an entry of another schema or
// one stored under a colliding name reports false without error.
func (c *Cache) Get(key Digest) (*borrowck.Outcome, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var entry Entry
	if err := msgpack.NewDecoder(f).Decode(&entry); err != nil {
		return nil, false, fmt.Errorf("dcache: %s: %w", key, err)
	}
	if entry.Schema != schemaVersion || entry.Key != key {
		return nil, false, nil
	}
	return &entry.Outcome, true, nil
}

// DropAll invalidates the cache.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// переименуем каталог, потом удалим
	old := filepath.Join(c.dir, "outcomes.old-"+time.Now().Format("20060102150405"))
	if err := os.Rename(filepath.Join(c.dir, "outcomes"), old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}

// KeyFor digests the canonical dump of f, the type table and the options.
func KeyFor(f *cfg.Func, typesIn *types.Interner, opts borrowck.Options) (Digest, error) {
	h := sha256.New()
	fmt.Fprintf(h, "schema %d\n", schemaVersion)
	fmt.Fprintf(h, "opts two_phase=%t max=%d drop_flags=%t reassign=%t mut=%t\n",
		opts.TwoPhase, opts.MaxDiagnostics, opts.DropFlags, opts.ReassignDrops, opts.Mutability)
	writeTypes(h, typesIn)
	if err := cfg.DumpFunc(h, f, typesIn, cfg.DumpOptions{Spans: true}); err != nil {
		return Digest{}, err
	}
	var d Digest
	copy(d[:], h.Sum(nil))
	return d, nil
}

// writeTypes renders every declaration that classification reads.
func writeTypes(w io.Writer, in *types.Interner) {
	for i := 1; i < in.Len(); i++ {
		id, err := safecast.Conv[types.TypeID](i)
		if err != nil {
			panic(fmt.Errorf("type id overflow: %w", err))
		}
		fmt.Fprintf(w, "type %d %s", i, in.Format(id))
		if info, ok := in.StructInfo(id); ok {
			fmt.Fprintf(w, " struct copy=%t drop=%t", info.Copy, info.Drop)
			for _, fld := range info.Fields {
				fmt.Fprintf(w, " %s:%d", fld.Name, fld.Type)
			}
		}
		if info, ok := in.EnumInfo(id); ok {
			fmt.Fprintf(w, " enum copy=%t drop=%t", info.Copy, info.Drop)
			for _, v := range info.Variants {
				fmt.Fprintf(w, " %s%v", v.Name, v.Fields)
			}
		}
		if info, ok := in.ClosureInfo(id); ok {
			fmt.Fprintf(w, " closure %v", info.Captures)
		}
		fmt.Fprintln(w)
	}
	names := in.FuncNames()
	sort.Strings(names)
	for _, name := range names {
		sig, _ := in.Func(name)
		fmt.Fprintf(w, "fn %s recv=%s params=%v result=%d from=%v\n", name, sig.Recv, sig.Params, sig.Result, sig.ResultFrom)
	}
}
