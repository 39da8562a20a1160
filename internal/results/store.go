// Package results provides persistent artifact storage for analysis batches.
// It uses BoltDB to keep the RunRecord sequence and the aggregate curve of
// each batch so past evaluations can be reloaded and compared without
// re-running the repetition loop.
package results

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"taxa-discrim/internal/runner"
)

const (
	recordsBucket   = "run_records"     // per-repetition rows, keyed by run index
	aggregateBucket = "aggregate_curve" // one pooled-curve entry per batch
)

// Aggregate is the persisted form of a batch's pooled evaluation.
type Aggregate struct {
	BatchID   string    `json:"batch_id"`
	AUC       float64   `json:"auc"`
	FPR       []float64 `json:"fpr"`
	TPR       []float64 `json:"tpr"`
	Successes int       `json:"successes"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists batch outcomes in a BoltDB file under dataPath.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the results database.
func New(dataPath string) (*Store, error) {
	dbPath := filepath.Join(dataPath, "discrim-results.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(recordsBucket)); err != nil {
			return fmt.Errorf("create records bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(aggregateBucket)); err != nil {
			return fmt.Errorf("create aggregate bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveOutcome stores every RunRecord of the batch plus its aggregate curve
// under the given batch id.
func (s *Store) SaveOutcome(batchID string, outcome *runner.Outcome) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		rb := tx.Bucket([]byte(recordsBucket))
		for _, rec := range outcome.Records {
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("marshal run record: %w", err)
			}
			if err := rb.Put(recordKey(batchID, rec.Run), data); err != nil {
				return err
			}
		}

		agg := Aggregate{
			BatchID:   batchID,
			AUC:       outcome.AUC,
			FPR:       outcome.FPR,
			TPR:       outcome.TPR,
			Successes: outcome.Successes,
			CreatedAt: time.Now(),
		}
		data, err := json.Marshal(agg)
		if err != nil {
			return fmt.Errorf("marshal aggregate: %w", err)
		}
		return tx.Bucket([]byte(aggregateBucket)).Put([]byte(batchID), data)
	})
}

// GetRecords returns the stored RunRecord sequence of a batch, ordered by
// run index.
func (s *Store) GetRecords(batchID string) ([]runner.RunRecord, error) {
	var records []runner.RunRecord

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(recordsBucket)).Cursor()
		prefix := []byte(batchID + "/")
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var rec runner.RunRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				continue // skip malformed records
			}
			records = append(records, rec)
		}
		return nil
	})

	return records, err
}

// GetAggregate returns the stored pooled curve of a batch.
func (s *Store) GetAggregate(batchID string) (Aggregate, error) {
	var agg Aggregate
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket([]byte(aggregateBucket)).Get([]byte(batchID))
		if data == nil {
			return fmt.Errorf("no aggregate stored for batch %s", batchID)
		}
		return json.Unmarshal(data, &agg)
	})
	return agg, err
}

// recordKey orders records within a batch by big-endian run index so cursor
// scans return them in run order.
func recordKey(batchID string, run int) []byte {
	key := make([]byte, 0, len(batchID)+9)
	key = append(key, batchID...)
	key = append(key, '/')
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], uint64(run))
	return append(key, idx[:]...)
}
