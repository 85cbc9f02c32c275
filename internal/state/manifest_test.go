package state

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() failed: %v", err)
		}
	})

	return s
}

func TestManifestRoundtrip(t *testing.T) {
	s := newTestStore(t)

	m, err := s.Manifest("extraviadosmxbucket")
	if err != nil {
		t.Fatalf("Manifest() failed: %v", err)
	}

	got, err := m.GetUpload("abc", "po_post_url")
	if err != nil {
		t.Fatalf("GetUpload() failed: %v", err)
	}

	if diff := cmp.Diff(UploadRecord{}, got); diff != "" {
		t.Errorf("Missing record diff (-want +got):\n%s", diff)
	}

	updatedAt := time.Date(2022, time.February, 1, 8, 0, 0, 0, time.UTC)

	if err := m.SetUpload("abc", "po_post_url", "abc/po_post_url.html", "https://example.com/abc", 1234, updatedAt); err != nil {
		t.Fatalf("SetUpload() failed: %v", err)
	}

	got, err = m.GetUpload("abc", "po_post_url")
	if err != nil {
		t.Fatalf("GetUpload() failed: %v", err)
	}

	want := UploadRecord{
		PK: uploadRecordKey{
			RecordID: "abc",
			Field:    "po_post_url",
		},
		Key:       "abc/po_post_url.html",
		SourceURL: "https://example.com/abc",
		Size:      1234,
		UpdatedAt: updatedAt,
	}

	if diff := cmp.Diff(want, got, cmpopts.IgnoreFields(UploadRecord{}, "UploadedAt")); diff != "" {
		t.Errorf("Record diff (-want +got):\n%s", diff)
	}

	if got.UploadedAt.IsZero() {
		t.Error("UploadedAt not set")
	}

	if err := m.DeleteUpload("abc", "po_post_url"); err != nil {
		t.Fatalf("DeleteUpload() failed: %v", err)
	}

	got, err = m.GetUpload("abc", "po_post_url")
	if err != nil {
		t.Fatalf("GetUpload() failed: %v", err)
	}

	if diff := cmp.Diff(UploadRecord{}, got); diff != "" {
		t.Errorf("Deleted record diff (-want +got):\n%s", diff)
	}
}

func TestManifestSeparateBuckets(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Manifest("first")
	if err != nil {
		t.Fatalf("Manifest() failed: %v", err)
	}

	second, err := s.Manifest("second")
	if err != nil {
		t.Fatalf("Manifest() failed: %v", err)
	}

	if err := first.SetUpload("abc", "po_poster_url", "abc/po_poster_url.png", "", 1, time.Time{}); err != nil {
		t.Fatalf("SetUpload() failed: %v", err)
	}

	got, err := second.GetUpload("abc", "po_poster_url")
	if err != nil {
		t.Fatalf("GetUpload() failed: %v", err)
	}

	if got.Key != "" {
		t.Errorf("Record leaked into second bucket: %+v", got)
	}
}
