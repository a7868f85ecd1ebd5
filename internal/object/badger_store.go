// internal/object/badger_store.go
package object

import (
	"encoding/json"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/ZachT1711/gittry/shared/utils"
)

const (
	blobPrefix   = "blob"
	treePrefix   = "tree"
	commitPrefix = "commit"

	// Minimum blob size in bytes before compressing
	compressMinSize = 1024
)

// Value layout: one flag byte (0 = raw, 1 = zstd) followed by the payload.
const (
	flagRaw  byte = 0
	flagZstd byte = 1
)

// BadgerStore keeps blobs, trees and commits in a badger KV, addressed by
// the SHA-256 of their uncompressed content.
type BadgerStore struct {
	db     *badger.DB
	cache  *lru.Cache[string, []byte]
	enc    *zstd.Encoder
	dec    *zstd.Decoder
	logger *zap.Logger
}

// Options configures BadgerStore behavior
type Options struct {
	CacheSize int // Number of blobs to cache
}

func NewBadgerStore(db *badger.DB, opts Options, logger *zap.Logger) (*BadgerStore, error) {
	if opts.CacheSize == 0 {
		opts.CacheSize = 512
	}

	cache, err := lru.New[string, []byte](opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}

	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("creating zstd encoder: %w", err)
	}

	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &BadgerStore{
		db:     db,
		cache:  cache,
		enc:    enc,
		dec:    dec,
		logger: logger,
	}, nil
}

func makeKey(prefix, oid string) []byte {
	return []byte(fmt.Sprintf("%s:%s", prefix, oid))
}

func (s *BadgerStore) put(prefix, oid string, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := makeKey(prefix, oid)
		// Content-addressed: an existing key already holds identical bytes.
		if _, err := txn.Get(key); err == nil {
			return nil
		} else if err != badger.ErrKeyNotFound {
			return err
		}
		return txn.Set(key, value)
	})
}

func (s *BadgerStore) get(prefix, oid string) ([]byte, error) {
	var value []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(makeKey(prefix, oid))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if err == badger.ErrKeyNotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s %s: %w", prefix, oid, err)
	}
	return value, nil
}

// StoreBlob saves content and returns its hash.
func (s *BadgerStore) StoreBlob(content []byte) (string, error) {
	if content == nil {
		content = []byte{} // Convert nil to empty slice
	}

	oid := utils.HashContent(content)

	value := make([]byte, 1, len(content)+1)
	if len(content) >= compressMinSize {
		value[0] = flagZstd
		value = s.enc.EncodeAll(content, value)
	} else {
		value[0] = flagRaw
		value = append(value, content...)
	}

	if err := s.put(blobPrefix, oid, value); err != nil {
		return "", fmt.Errorf("storing blob: %w", err)
	}

	s.cache.Add(oid, content)
	return oid, nil
}

func (s *BadgerStore) GetBlob(oid string) ([]byte, error) {
	if len(oid) < 2 {
		return nil, ErrInvalidOID
	}

	if content, ok := s.cache.Get(oid); ok {
		return content, nil
	}

	value, err := s.get(blobPrefix, oid)
	if err != nil {
		return nil, err
	}
	if len(value) == 0 {
		return nil, fmt.Errorf("blob %s: empty record", oid)
	}

	content := value[1:]
	if value[0] == flagZstd {
		content, err = s.dec.DecodeAll(content, nil)
		if err != nil {
			return nil, fmt.Errorf("decompressing blob %s: %w", oid, err)
		}
	}

	s.cache.Add(oid, content)
	return content, nil
}

func (s *BadgerStore) StoreTree(t *Tree) (string, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("marshaling tree: %w", err)
	}

	oid := utils.HashContent(data)
	if err := s.put(treePrefix, oid, data); err != nil {
		return "", fmt.Errorf("storing tree: %w", err)
	}
	return oid, nil
}

func (s *BadgerStore) GetTree(oid string) (*Tree, error) {
	data, err := s.get(treePrefix, oid)
	if err != nil {
		return nil, err
	}

	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("unmarshaling tree %s: %w", oid, err)
	}
	return &t, nil
}

func (s *BadgerStore) StoreCommit(c *Commit) (string, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("marshaling commit: %w", err)
	}

	oid := utils.HashContent(data)
	if err := s.put(commitPrefix, oid, data); err != nil {
		return "", fmt.Errorf("storing commit: %w", err)
	}

	s.logger.Debug("stored commit", zap.String("oid", oid), zap.String("tree", c.Tree))
	return oid, nil
}

func (s *BadgerStore) GetCommit(oid string) (*Commit, error) {
	data, err := s.get(commitPrefix, oid)
	if err != nil {
		return nil, err
	}

	var c Commit
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshaling commit %s: %w", oid, err)
	}
	return &c, nil
}

// Exists checks whether a blob with the given id is stored.
func (s *BadgerStore) Exists(oid string) bool {
	if oid == "" {
		return false
	}

	if _, ok := s.cache.Get(oid); ok {
		return true
	}

	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(makeKey(blobPrefix, oid))
		return err
	})
	return err == nil
}

func (s *BadgerStore) Close() error {
	s.enc.Close()
	s.dec.Close()
	return s.db.Close()
}
