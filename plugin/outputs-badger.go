package plugin

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	Mt "github.com/maroda/metricgen/types"
)

// keyPrefix namespaces generator keys inside the DB
var keyPrefix = []byte("generator/")

type BadgerStore struct {
	MU sync.Mutex
	DB *badger.DB
}

func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).
		WithCompression(options.ZSTD).
		WithNumVersionsToKeep(1).
		WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		slog.Error("BadgerStore failed to open database", slog.Any("error", err))
		return nil, fmt.Errorf("database error: %w", err)
	}

	slog.Info("BadgerStore opened", slog.String("path", path))

	return &BadgerStore{DB: db}, nil
}

// Load reads every generator under the key prefix
func (bs *BadgerStore) Load() (map[string]Mt.WaveformParameters, error) {
	metrics := make(map[string]Mt.WaveformParameters)

	// db.View() callback
	// BadgerDB provides a transaction in which to get item.Value()
	err := bs.DB.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(bytes.TrimPrefix(item.KeyCopy(nil), keyPrefix))

			// item.Value() callback
			// BadgerDB passes bytes to the anon func
			err := item.Value(func(val []byte) error {
				p, err := ParamsDecode(val)
				if err != nil {
					slog.Error("BadgerStore failed to decode generator",
						slog.String("name", name),
						slog.Any("error", err))
					return fmt.Errorf("generator decode error: %w", err)
				}
				metrics[name] = *p
				return nil
			})
			if err != nil {
				return fmt.Errorf("item data error: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("BadgerStore Load successful", slog.Int("count", len(metrics)))
	return metrics, nil
}

// Save replaces the stored set within one transaction,
// generators missing from metrics are deleted.
func (bs *BadgerStore) Save(metrics map[string]Mt.WaveformParameters) error {
	bs.MU.Lock()
	defer bs.MU.Unlock()

	err := bs.DB.Update(func(txn *badger.Txn) error {
		// Collect stale keys first, the iterator must be closed before deleting
		var stale [][]byte
		opts := badger.DefaultIteratorOptions
		opts.Prefix = keyPrefix
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if _, keep := metrics[string(bytes.TrimPrefix(key, keyPrefix))]; !keep {
				stale = append(stale, key)
			}
		}
		it.Close()

		for _, k := range stale {
			if err := txn.Delete(k); err != nil {
				return fmt.Errorf("delete error: %w", err)
			}
		}

		for name, p := range metrics {
			v, err := ParamsEncode(&p)
			if err != nil {
				return err
			}
			if err := txn.Set(GeneratorKey(name), v); err != nil {
				slog.Error("BadgerStore failed to set key",
					slog.Any("error", err),
					slog.String("name", name))
				return fmt.Errorf("set error: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("BadgerStore failed to save", slog.Any("error", err))
		return err
	}
	return nil
}

// Close flushes nothing, every Save is already committed
func (bs *BadgerStore) Close() error {
	if err := bs.DB.Close(); err != nil {
		slog.Error("BadgerStore failed to close database", slog.Any("error", err))
		return fmt.Errorf("close failed: %w", err)
	}
	slog.Info("BadgerStore closed successfully")
	return nil
}

func (bs *BadgerStore) Type() string { return "BadgerDB" }

// GeneratorKey is the key prefix followed by the stored generator name
func GeneratorKey(name string) []byte {
	key := make([]byte, 0, len(keyPrefix)+len(name))
	key = append(key, keyPrefix...)
	return append(key, name...)
}

// ParamsEncode serializes the parameters for data storage
func ParamsEncode(p *Mt.WaveformParameters) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(p); err != nil {
		return nil, fmt.Errorf("encode error: %w", err)
	}
	return buf.Bytes(), nil
}

// ParamsDecode deserializes the parameters
func ParamsDecode(data []byte) (*Mt.WaveformParameters, error) {
	var p Mt.WaveformParameters
	buf := bytes.NewBuffer(data)
	dec := gob.NewDecoder(buf)
	err := dec.Decode(&p)
	return &p, err
}
