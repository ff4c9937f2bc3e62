// Package history keeps recent transcripts, and optionally their audio, in
// a local badger database.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// ErrNotFound is returned when an entry does not exist or has expired.
var ErrNotFound = errors.New("history: entry not found")

const (
	entryPrefix = "entry/"
	audioPrefix = "audio/"
)

// Entry is one recognized recording.
type Entry struct {
	ID         string        `json:"id"`
	Text       string        `json:"text"`
	Language   string        `json:"language,omitempty"`
	Confidence *float64      `json:"confidence,omitempty"`
	Duration   time.Duration `json:"duration"`
	Recognizer string        `json:"recognizer,omitempty"`
	CreatedAt  time.Time     `json:"createdAt"`

	// Audio metadata, set when audio was stored with the entry.
	HasAudio   bool `json:"hasAudio"`
	SampleRate int  `json:"sampleRate,omitempty"`
	NumSamples int  `json:"numSamples,omitempty"`
}

// Store is a badger-backed transcript history.
type Store struct {
	db *badger.DB
}

// Open opens or creates the history database in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a history that lives only as long as the process.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores e, assigning a new time-ordered ID and CreatedAt if unset.
// When audio is non-empty it is compressed and stored alongside. A zero ttl
// keeps the entry forever.
func (s *Store) Add(e *Entry, audio []float32, sampleRate int, ttl time.Duration) error {
	if e.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("generate id: %w", err)
		}
		e.ID = id.String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	var packed []byte
	if len(audio) > 0 {
		var err error
		packed, e.SampleRate, err = encodeAudio(audio, sampleRate)
		if err != nil {
			return fmt.Errorf("encode audio: %w", err)
		}
		e.HasAudio = true
		e.NumSamples = len(audio) * e.SampleRate / sampleRate
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.SetEntry(newEntry(entryPrefix+e.ID, data, ttl)); err != nil {
			return err
		}
		if packed != nil {
			return txn.SetEntry(newEntry(audioPrefix+e.ID, packed, ttl))
		}
		return nil
	})
}

func newEntry(key string, value []byte, ttl time.Duration) *badger.Entry {
	entry := badger.NewEntry([]byte(key), value)
	if ttl > 0 {
		entry = entry.WithTTL(ttl)
	}
	return entry
}

// Get returns the entry with id.
func (s *Store) Get(id string) (*Entry, error) {
	var e Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(entryPrefix + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return &e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts from the last key with the prefix.
		for it.Seek([]byte(entryPrefix + "\xff")); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return err
			}
			entries = append(entries, e)
			if limit > 0 && len(entries) >= limit {
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Audio returns the decoded audio stored with entry id and its sample rate.
func (s *Store) Audio(id string) ([]float32, int, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, 0, err
	}
	if !e.HasAudio {
		return nil, 0, ErrNotFound
	}

	var packed []byte
	err = s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(audioPrefix + id))
		if err != nil {
			return err
		}
		packed, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, 0, ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get audio: %w", err)
	}

	samples, err := decodeAudio(packed, e.SampleRate)
	if err != nil {
		return nil, 0, fmt.Errorf("decode audio: %w", err)
	}
	if len(samples) > e.NumSamples {
		samples = samples[:e.NumSamples]
	}
	return samples, e.SampleRate, nil
}

// Delete removes an entry and its audio.
func (s *Store) Delete(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(entryPrefix + id)); err != nil {
			return err
		}
		return txn.Delete([]byte(audioPrefix + id))
	})
}
