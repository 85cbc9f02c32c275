package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestSnapshotRoundtrip(t *testing.T) {
	tmpdir := t.TempDir()

	s := newTestStore(t)

	m, err := s.Manifest("bucket")
	if err != nil {
		t.Fatalf("Manifest() failed: %v", err)
	}

	if err := m.SetUpload("abc", "po_poster_url", "abc/po_poster_url.pdf", "https://example.com/abc.pdf", 99, time.Time{}); err != nil {
		t.Fatalf("SetUpload() failed: %v", err)
	}

	r, err := s.WriteCompressed(tmpdir)
	if err != nil {
		t.Fatalf("WriteCompressed() failed: %v", err)
	}

	defer r.Close()

	restored, err := OpenCompressed(filepath.Join(tmpdir, "restored.db"), r)
	if err != nil {
		t.Fatalf("OpenCompressed() failed: %v", err)
	}

	defer restored.Close()

	rm, err := restored.Manifest("bucket")
	if err != nil {
		t.Fatalf("Manifest() failed: %v", err)
	}

	got, err := rm.GetUpload("abc", "po_poster_url")
	if err != nil {
		t.Fatalf("GetUpload() failed: %v", err)
	}

	want := UploadRecord{
		PK: uploadRecordKey{
			RecordID: "abc",
			Field:    "po_poster_url",
		},
		Key:       "abc/po_poster_url.pdf",
		SourceURL: "https://example.com/abc.pdf",
		Size:      99,
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(UploadRecord{}, "UploadedAt")); diff != "" {
		t.Errorf("Record diff (-want +got):\n%s", diff)
	}
}

func TestCreateUnlinkedTemp(t *testing.T) {
	f, err := CreateUnlinkedTemp(t.TempDir(), "unlinked*")
	if err != nil {
		t.Fatalf("CreateUnlinkedTemp() failed: %v", err)
	}

	defer f.Close()

	if _, err := f.WriteString("hello"); err != nil {
		t.Errorf("WriteString() failed: %v", err)
	}
}
