package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/extraviadosmx/poster-backup/internal/extraviados"
	"github.com/extraviadosmx/poster-backup/internal/state"
	"golang.org/x/sync/errgroup"
)

// The two backed-up fields of every record. Field names double as key
// components, so the same record always maps to the same object keys.
var recordFields = []struct {
	name string
	url  func(extraviados.Mpp) string
}{
	{"po_post_url", func(m extraviados.Mpp) string { return m.PostURL }},
	{"po_poster_url", func(m extraviados.Mpp) string { return m.PosterURL }},
}

type recordSource interface {
	PostersUpdatedBetween(ctx context.Context, from, to time.Time, out chan<- extraviados.Mpp) error
}

type fileFetcher interface {
	fetch(ctx context.Context, rawURL, basename string) (*fetchedFile, error)
}

type fileCompressor interface {
	compress(ctx context.Context, f *fetchedFile)
}

type uploader interface {
	upload(ctx context.Context, f *fetchedFile, key string) error
}

type uploadManifest interface {
	GetUpload(recordID, field string) (state.UploadRecord, error)
	SetUpload(recordID, field, key, sourceURL string, size int64, updatedAt time.Time) error
}

type backupOptions struct {
	logger      *slog.Logger
	stats       *backupStats
	source      recordSource
	fetcher     fileFetcher
	compressors fileCompressor
	bucket      uploader

	// manifest may be nil, in which case nothing is skipped or recorded.
	manifest uploadManifest

	dryRun bool
}

type backupRun struct {
	backupOptions
}

// processFile backs up a single URL of a single record. Its error return is
// reserved for failures that invalidate the whole run; everything that only
// affects this one file is logged, counted and swallowed.
func (b *backupRun) processFile(ctx context.Context, mpp extraviados.Mpp, field, rawURL string) error {
	logger := b.logger.With(
		slog.String("record", mpp.ID),
		slog.String("field", field),
	)

	if rawURL == "" {
		logger.DebugContext(ctx, "No URL, skipping")
		b.stats.addEmptyURL()
		return nil
	}

	if b.manifest != nil {
		previous, err := b.manifest.GetUpload(mpp.ID, field)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}

		if !previous.UpdatedAt.IsZero() && previous.UpdatedAt.Equal(mpp.UpdatedAt.Time) {
			logger.InfoContext(ctx, "Record unchanged since last upload, skipping",
				slog.String("key", previous.Key),
			)
			b.stats.addUnchanged()
			return nil
		}
	}

	logger.InfoContext(ctx, "Downloading",
		slog.String("url", rawURL),
	)

	f, err := b.fetcher.fetch(ctx, rawURL, mpp.ID+"."+field)
	if err != nil {
		logger.ErrorContext(ctx, "Download failed",
			slog.String("url", rawURL),
			slog.Any("error", err),
		)
		b.stats.addFetchError()
		return nil
	}

	defer os.Remove(f.path)

	b.stats.addFetch(f.size)

	originalSize := f.size

	b.compressors.compress(ctx, f)

	b.stats.addCompression(originalSize, f.size)

	key := fmt.Sprintf("%s/%s.%s", mpp.ID, field, f.ext)

	logger.InfoContext(ctx, "Uploading",
		slog.String("key", key),
		slog.Bool("dry_run", b.dryRun),
		slog.Int64("bytes", f.size),
	)

	if !b.dryRun {
		if err := b.bucket.upload(ctx, f, key); err != nil {
			if isFatalStorageError(err) {
				return fmt.Errorf("uploading %q: %w", key, err)
			}

			logger.ErrorContext(ctx, "Upload failed",
				slog.String("key", key),
				slog.Any("error", err),
			)
			b.stats.addUploadError()
			return nil
		}

		if b.manifest != nil {
			if err := b.manifest.SetUpload(mpp.ID, field, key, rawURL, f.size, mpp.UpdatedAt.Time); err != nil {
				return fmt.Errorf("manifest: %w", err)
			}
		}

		b.stats.addUpload(f.size)
	}

	return nil
}

func (b *backupRun) processRecord(ctx context.Context, mpp extraviados.Mpp) error {
	b.logger.InfoContext(ctx, "Processing record",
		slog.String("record", mpp.ID),
		slog.String("name", mpp.Name),
	)

	for _, field := range recordFields {
		if err := b.processFile(ctx, mpp, field.name, field.url(mpp)); err != nil {
			return err
		}
	}

	return nil
}

// backup retrieves all records updated in the given range and backs up their
// files one at a time. Record retrieval is paginated in the background; the
// fetch/compress/upload work itself runs strictly sequentially.
func backup(ctx context.Context, opts backupOptions, from, to time.Time) error {
	run := &backupRun{
		backupOptions: opts,
	}

	records := make(chan extraviados.Mpp, 8)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(records)

		return opts.source.PostersUpdatedBetween(ctx, from, to, records)
	})
	g.Go(func() error {
		seen := mapset.NewThreadUnsafeSet[string]()

		for mpp := range records {
			if !seen.Add(mpp.ID) {
				opts.stats.addDuplicate()
				continue
			}

			opts.stats.discovered(mpp.UpdatedAt.Time)

			if err := run.processRecord(ctx, mpp); err != nil {
				return err
			}
		}

		return nil
	})

	return g.Wait()
}
