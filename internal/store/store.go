// Package store persists batches, sensor readings, learned models and
// decisions in an embedded bbolt database. Each batch gets its own readings
// sub-bucket keyed by insertion sequence; everything is JSON-serialized.
// Writes are transactional, so a crash mid-write cannot corrupt previously
// committed data.
package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/fermlab/fermentd/internal/batch"
	"github.com/fermlab/fermentd/internal/thermal"
)

var (
	bucketBatches   = []byte("batches")
	bucketReadings  = []byte("readings")
	bucketModels    = []byte("models")
	bucketDecisions = []byte("decisions")
)

// Store implements batch.Store backed by bbolt.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database at path.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("bbolt open: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketBatches, bucketReadings, bucketModels, bucketDecisions} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create buckets: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) SaveBatch(b batch.Batch) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).Put([]byte(b.ID), data)
	})
}

func (s *Store) ListBatches() ([]batch.Batch, error) {
	var out []batch.Batch
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketBatches).ForEach(func(_, v []byte) error {
			var b batch.Batch
			if err := json.Unmarshal(v, &b); err != nil {
				return fmt.Errorf("unmarshal batch: %w", err)
			}
			out = append(out, b)
			return nil
		})
	})
	return out, err
}

// AppendReading stores one reading under the batch's readings sub-bucket,
// keyed by a monotonically increasing sequence number so iteration order is
// insertion order.
func (s *Store) AppendReading(id string, r batch.Reading) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal reading: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		rb, err := tx.Bucket(bucketReadings).CreateBucketIfNotExists([]byte(id))
		if err != nil {
			return err
		}
		seq, err := rb.NextSequence()
		if err != nil {
			return err
		}
		return rb.Put(seqKey(seq), data)
	})
}

func (s *Store) LastReading(id string) (batch.Reading, bool, error) {
	var r batch.Reading
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(bucketReadings).Bucket([]byte(id))
		if rb == nil {
			return nil
		}
		_, v := rb.Cursor().Last()
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &r); err != nil {
			return fmt.Errorf("unmarshal reading: %w", err)
		}
		found = true
		return nil
	})
	return r, found, err
}

// History assembles the stored readings into the learner's parallel-series
// form. Times are hours since the first reading. The cooler series is only
// present when every reading reported a cooler state: a gap anywhere means
// the vessel has no cooling capability.
func (s *Store) History(id string) (thermal.History, error) {
	var readings []batch.Reading
	err := s.db.View(func(tx *bolt.Tx) error {
		rb := tx.Bucket(bucketReadings).Bucket([]byte(id))
		if rb == nil {
			return nil
		}
		return rb.ForEach(func(_, v []byte) error {
			var r batch.Reading
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("unmarshal reading: %w", err)
			}
			readings = append(readings, r)
			return nil
		})
	})
	if err != nil {
		return thermal.History{}, err
	}
	if len(readings) == 0 {
		return thermal.History{}, nil
	}

	h := thermal.History{
		Temps:   make([]float64, 0, len(readings)),
		Times:   make([]float64, 0, len(readings)),
		Heater:  make([]bool, 0, len(readings)),
		Ambient: make([]float64, 0, len(readings)),
	}
	hasCooler := true
	for _, r := range readings {
		if r.CoolerOn == nil {
			hasCooler = false
			break
		}
	}
	if hasCooler {
		h.Cooler = make([]bool, 0, len(readings))
	}
	origin := readings[0].At
	for _, r := range readings {
		h.Temps = append(h.Temps, r.Temp)
		h.Times = append(h.Times, r.At.Sub(origin).Hours())
		h.Heater = append(h.Heater, r.HeaterOn)
		h.Ambient = append(h.Ambient, r.Ambient)
		if hasCooler {
			h.Cooler = append(h.Cooler, *r.CoolerOn)
		}
	}
	return h, nil
}

func (s *Store) SaveModel(id string, m thermal.Model) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal model: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketModels).Put([]byte(id), data)
	})
}

func (s *Store) LoadModel(id string) (thermal.Model, bool, error) {
	var m thermal.Model
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketModels).Get([]byte(id))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &m); err != nil {
			return fmt.Errorf("unmarshal model: %w", err)
		}
		found = true
		return nil
	})
	return m, found, err
}

// SaveDecision keeps the latest decision per batch; the full decision stream
// already reaches subscribers via MQTT.
func (s *Store) SaveDecision(id string, a thermal.Action) error {
	data, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal decision: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketDecisions).Put([]byte(id), data)
	})
}

func (s *Store) LoadDecision(id string) (thermal.Action, bool, error) {
	var a thermal.Action
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketDecisions).Get([]byte(id))
		if v == nil {
			return nil
		}
		if err := json.Unmarshal(v, &a); err != nil {
			return fmt.Errorf("unmarshal decision: %w", err)
		}
		found = true
		return nil
	})
	return a, found, err
}

func seqKey(seq uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, seq)
	return k
}
