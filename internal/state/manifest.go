package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/timshannon/bolthold"
	bolt "go.etcd.io/bbolt"
)

const manifestMetadataKey = "metadata:v1"

// Manifest holds the upload records for one storage bucket.
type Manifest struct {
	db   *bolthold.Store
	name []byte
}

func (m *Manifest) get(tx *bolt.Tx) *bolt.Bucket {
	return tx.Bucket(m.name)
}

type manifestMetadata struct {
	Bucket string
	SeenAt time.Time
}

// Manifest returns the manifest for the named storage bucket, creating it if
// necessary.
func (s *Store) Manifest(bucket string) (*Manifest, error) {
	m := &Manifest{
		db:   s.db,
		name: []byte(bucket),
	}

	now := time.Now()

	if err := m.db.Bolt().Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(m.name)
		if err != nil {
			return err
		}

		return m.db.UpsertBucket(b, manifestMetadataKey, manifestMetadata{
			Bucket: bucket,
			SeenAt: now,
		})
	}); err != nil {
		return nil, fmt.Errorf("updating metadata: %w", err)
	}

	return m, nil
}

type uploadRecordKey struct {
	RecordID string
	Field    string
}

// UploadRecord describes one uploaded poster file.
type UploadRecord struct {
	PK        uploadRecordKey
	Key       string
	SourceURL string
	Size      int64

	// UpdatedAt is the source record's updated_at at upload time.
	UpdatedAt time.Time

	UploadedAt time.Time
}

// GetUpload returns the stored record for a record field. A missing entry
// yields a zero record and no error.
func (m *Manifest) GetUpload(recordID, field string) (UploadRecord, error) {
	pk := uploadRecordKey{
		RecordID: recordID,
		Field:    field,
	}

	var record UploadRecord

	if err := m.db.Bolt().View(func(tx *bolt.Tx) error {
		if err := m.db.GetFromBucket(m.get(tx), pk, &record); err != nil && !errors.Is(err, bolthold.ErrNotFound) {
			return err
		}

		return nil
	}); err != nil {
		return UploadRecord{}, err
	}

	return record, nil
}

// SetUpload stores the outcome of a successful upload.
func (m *Manifest) SetUpload(recordID, field, key, sourceURL string, size int64, updatedAt time.Time) error {
	record := UploadRecord{
		PK: uploadRecordKey{
			RecordID: recordID,
			Field:    field,
		},
		Key:        key,
		SourceURL:  sourceURL,
		Size:       size,
		UpdatedAt:  updatedAt,
		UploadedAt: time.Now(),
	}

	return m.db.Bolt().Update(func(tx *bolt.Tx) error {
		return m.db.UpsertBucket(m.get(tx), record.PK, record)
	})
}

// DeleteUpload removes the stored record for a record field, if any.
func (m *Manifest) DeleteUpload(recordID, field string) error {
	pk := uploadRecordKey{
		RecordID: recordID,
		Field:    field,
	}

	return m.db.Bolt().Update(func(tx *bolt.Tx) error {
		if err := m.db.DeleteFromBucket(m.get(tx), pk, UploadRecord{}); err != nil && !errors.Is(err, bolthold.ErrNotFound) {
			return err
		}

		return nil
	})
}
