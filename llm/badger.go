package llm

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
)

// BadgerVectorCache persists embeddings in a BadgerDB directory so that
// restarts do not re-encode the corpus.
type BadgerVectorCache struct {
	db *badger.DB
}

var _ VectorCache = (*BadgerVectorCache)(nil)

// badgerLogger adapts slog to badger.Logger.
type badgerLogger struct{ logger *slog.Logger }

var _ badger.Logger = (*badgerLogger)(nil)

func (l *badgerLogger) Errorf(msg string, items ...any)   { l.logger.Error(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Warningf(msg string, items ...any) { l.logger.Warn(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Infof(msg string, items ...any)    { l.logger.Debug(fmt.Sprintf(msg, items...)) }
func (l *badgerLogger) Debugf(msg string, items ...any)   { l.logger.Debug(fmt.Sprintf(msg, items...)) }

// OpenBadgerCache opens (or creates) the cache at dir. An empty dir opens
// an in-memory database.
func OpenBadgerCache(dir string) (*BadgerVectorCache, error) {
	var opts badger.Options
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating embedding cache dir: %w", err)
		}
		opts = badger.DefaultOptions(dir)
	}
	opts.Logger = &badgerLogger{logger: slog.Default()}
	opts.Compression = options.None

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening embedding cache: %w", err)
	}
	return &BadgerVectorCache{db: db}, nil
}

// Get returns the vector stored under key.
func (c *BadgerVectorCache) Get(key string) ([]float32, bool) {
	var vec []float32
	err := c.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			vec = decodeVector(val)
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			slog.Warn("llm: embedding cache read failed", "error", err)
		}
		return nil, false
	}
	return vec, true
}

// Set stores vec under key.
func (c *BadgerVectorCache) Set(key string, vec []float32) error {
	return c.db.Update(func(tx *badger.Txn) error {
		return tx.Set([]byte(key), encodeVector(vec))
	})
}

// Close closes the database.
func (c *BadgerVectorCache) Close() error { return c.db.Close() }

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
