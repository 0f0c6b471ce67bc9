// Package storage keeps a snapshot of the reference data and the fitted target
// encoder in a BoltDB file. The snapshot is written offline and opened read-only
// when serving, so startup can skip parsing and fitting.
//
// Layout:
//
//	datasets/<name>        JSON datasetRecord
//	encoders/<fingerprint> JSON features.TargetEncoder
//	meta/created_at        RFC 3339 timestamp
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"carprice/internal/dataset"
	"carprice/internal/features"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"
)

const (
	datasetsBucket = "datasets" // reference tables by name
	encodersBucket = "encoders" // fitted encoders by dataset fingerprint
	metaBucket     = "meta"
)

// Dataset names used by the commands.
const (
	ReferenceDataset = "reference"
	StatsDataset     = "stats"
)

// ErrNotFound is returned when a snapshot lacks the requested entry.
var ErrNotFound = errors.New("not found in snapshot")

// Store wraps a snapshot file.
type Store struct {
	db       *bbolt.DB
	readOnly bool
}

type datasetRecord struct {
	Columns     []string   `json:"columns"`
	Rows        [][]string `json:"rows"`
	PriceColumn string     `json:"price_column"`
	PriceScale  float64    `json:"price_scale"`
	Fingerprint string     `json:"fingerprint"`
	StoredAt    time.Time  `json:"stored_at"`
}

// Info summarizes a snapshot.
type Info struct {
	CreatedAt time.Time `json:"created_at"`
	Datasets  []string  `json:"datasets"`
	Encoders  []string  `json:"encoders"`
}

// Create opens path for writing, creating the file and buckets if needed.
func Create(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range []string{datasetsBucket, encodersBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("create %s bucket: %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(metaBucket))
		if meta.Get([]byte("created_at")) == nil {
			return meta.Put([]byte("created_at"), []byte(time.Now().UTC().Format(time.RFC3339)))
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Open opens an existing snapshot read-only. Several processes may hold it open.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o400, &bbolt.Options{Timeout: 1 * time.Second, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	return &Store{db: db, readOnly: true}, nil
}

// Close releases the file. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// PutDataset stores ds under name. The cells are kept as parsed, so Dataset
// rebuilds a table with the same fingerprint.
func (s *Store) PutDataset(name string, ds *dataset.Dataset, opt dataset.Options) error {
	if s.readOnly {
		return fmt.Errorf("snapshot opened read-only")
	}

	rec := datasetRecord{
		Columns:     ds.Columns(),
		Rows:        make([][]string, ds.Len()),
		PriceColumn: ds.PriceColumn(),
		PriceScale:  opt.PriceScale,
		Fingerprint: ds.Fingerprint(),
		StoredAt:    time.Now().UTC(),
	}
	if rec.PriceScale == 0 {
		rec.PriceScale = 1
	}
	for i := range rec.Rows {
		rec.Rows[i] = ds.Row(i)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal dataset: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(datasetsBucket)).Put([]byte(name), data)
	})
	if err != nil {
		return fmt.Errorf("store dataset %s: %w", name, err)
	}

	log.Info().
		Str("name", name).
		Int("rows", ds.Len()).
		Str("fingerprint", ds.Fingerprint()).
		Msg("Dataset stored in snapshot")
	return nil
}

// Dataset rebuilds the table stored under name.
func (s *Store) Dataset(name string) (*dataset.Dataset, error) {
	var rec datasetRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(datasetsBucket))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		return json.Unmarshal(v, &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}

	opt := dataset.Options{
		NA:          []string{},
		PriceColumn: rec.PriceColumn,
		PriceScale:  rec.PriceScale,
		KeepIndex:   true,
	}
	ds, err := dataset.New(rec.Columns, rec.Rows, opt)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", name, err)
	}
	if ds.Fingerprint() != rec.Fingerprint {
		return nil, fmt.Errorf("dataset %s: fingerprint mismatch, snapshot is corrupt", name)
	}
	return ds, nil
}

// PutEncoder stores enc keyed by the fingerprint of the data it was fitted on.
func (s *Store) PutEncoder(enc *features.TargetEncoder) error {
	if s.readOnly {
		return fmt.Errorf("snapshot opened read-only")
	}
	if enc.Fingerprint == "" {
		return fmt.Errorf("encoder has no dataset fingerprint")
	}

	data, err := enc.Marshal()
	if err != nil {
		return fmt.Errorf("marshal encoder: %w", err)
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(encodersBucket)).Put([]byte(enc.Fingerprint), data)
	})
}

// Encoder returns the encoder fitted on the dataset with the given fingerprint.
func (s *Store) Encoder(fingerprint string) (*features.TargetEncoder, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(encodersBucket))
		if b == nil {
			return ErrNotFound
		}
		v := b.Get([]byte(fingerprint))
		if v == nil {
			return ErrNotFound
		}
		// v is only valid inside the transaction
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("encoder %.12s: %w", fingerprint, err)
	}
	return features.UnmarshalEncoder(data)
}

// Info lists what the snapshot holds.
func (s *Store) Info() (Info, error) {
	var info Info
	err := s.db.View(func(tx *bbolt.Tx) error {
		if meta := tx.Bucket([]byte(metaBucket)); meta != nil {
			if v := meta.Get([]byte("created_at")); v != nil {
				if t, err := time.Parse(time.RFC3339, string(v)); err == nil {
					info.CreatedAt = t
				}
			}
		}
		for bucket, dst := range map[string]*[]string{datasetsBucket: &info.Datasets, encodersBucket: &info.Encoders} {
			b := tx.Bucket([]byte(bucket))
			if b == nil {
				continue
			}
			if err := b.ForEach(func(k, _ []byte) error {
				*dst = append(*dst, string(k))
				return nil
			}); err != nil {
				return err
			}
			sort.Strings(*dst)
		}
		return nil
	})
	return info, err
}
