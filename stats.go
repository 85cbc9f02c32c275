package main

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"gonum.org/v1/gonum/stat"
)

type timeRange struct {
	lower, upper time.Time
}

var _ slog.LogValuer = (*timeRange)(nil)

func (r *timeRange) update(t time.Time) {
	if t.IsZero() {
		return
	}

	if r.lower.IsZero() || t.Before(r.lower) {
		r.lower = t
	}

	if r.upper.IsZero() || t.After(r.upper) {
		r.upper = t
	}
}

func (r timeRange) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Time("lower", r.lower),
		slog.Time("upper", r.upper),
	)
}

type sizeStats int64

var _ slog.LogValuer = (*sizeStats)(nil)

func (s *sizeStats) add(bytes int64) {
	*(*int64)(s) += bytes
}

func (s sizeStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("bytes", int64(s)),
		slog.String("text", humanize.IBytes(uint64(s))),
	)
}

type backupStats struct {
	mu sync.Mutex

	recordCount     int64
	duplicateCount  int64
	recordUpdatedAt timeRange

	emptyURLCount  int64
	unchangedCount int64

	fetchCount      int64
	fetchSize       sizeStats
	fetchErrorCount int64

	compressedCount int64
	savedSize       sizeStats
	ratios          []float64

	uploadCount      int64
	uploadSize       sizeStats
	uploadErrorCount int64
}

func newBackupStats() *backupStats {
	return &backupStats{}
}

func (s *backupStats) discovered(updatedAt time.Time) {
	s.mu.Lock()
	s.recordCount++
	s.recordUpdatedAt.update(updatedAt)
	s.mu.Unlock()
}

func (s *backupStats) addDuplicate() {
	s.mu.Lock()
	s.duplicateCount++
	s.mu.Unlock()
}

func (s *backupStats) addEmptyURL() {
	s.mu.Lock()
	s.emptyURLCount++
	s.mu.Unlock()
}

func (s *backupStats) addUnchanged() {
	s.mu.Lock()
	s.unchangedCount++
	s.mu.Unlock()
}

func (s *backupStats) addFetch(bytes int64) {
	s.mu.Lock()
	s.fetchCount++
	s.fetchSize.add(bytes)
	s.mu.Unlock()
}

func (s *backupStats) addFetchError() {
	s.mu.Lock()
	s.fetchErrorCount++
	s.mu.Unlock()
}

func (s *backupStats) addCompression(originalBytes, compressedBytes int64) {
	if compressedBytes >= originalBytes {
		return
	}

	s.mu.Lock()
	s.compressedCount++
	s.savedSize.add(originalBytes - compressedBytes)
	s.ratios = append(s.ratios, float64(compressedBytes)/float64(originalBytes))
	s.mu.Unlock()
}

func (s *backupStats) addUpload(bytes int64) {
	s.mu.Lock()
	s.uploadCount++
	s.uploadSize.add(bytes)
	s.mu.Unlock()
}

func (s *backupStats) addUploadError() {
	s.mu.Lock()
	s.uploadErrorCount++
	s.mu.Unlock()
}

// failedFiles returns the number of files that ultimately were not backed up.
func (s *backupStats) failedFiles() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.fetchErrorCount + s.uploadErrorCount
}

func (s *backupStats) compressionAttrs() []any {
	attrs := []any{
		slog.Int64("count", s.compressedCount),
		slog.Any("saved", s.savedSize),
	}

	if len(s.ratios) > 0 {
		sorted := slices.Clone(s.ratios)
		slices.Sort(sorted)

		attrs = append(attrs,
			slog.Float64("ratio_mean", stat.Mean(sorted, nil)),
			slog.Float64("ratio_median", stat.Quantile(0.5, stat.Empirical, sorted, nil)),
		)
	}

	return attrs
}

func (s *backupStats) attrs() []any {
	s.mu.Lock()
	defer s.mu.Unlock()

	return []any{
		slog.Group("records",
			slog.Int64("count", s.recordCount),
			slog.Int64("duplicates", s.duplicateCount),
			slog.Any("updated_at", s.recordUpdatedAt),
		),
		slog.Group("skipped",
			slog.Int64("empty_url", s.emptyURLCount),
			slog.Int64("unchanged", s.unchangedCount),
		),
		slog.Group("fetch",
			slog.Int64("count", s.fetchCount),
			slog.Any("size", s.fetchSize),
			slog.Int64("error_count", s.fetchErrorCount),
		),
		slog.Group("compression", s.compressionAttrs()...),
		slog.Group("upload",
			slog.Int64("count", s.uploadCount),
			slog.Any("size", s.uploadSize),
			slog.Int64("error_count", s.uploadErrorCount),
		),
	}
}
