package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/smithy-go/logging"
	"github.com/extraviadosmx/poster-backup/internal/env"
	"github.com/extraviadosmx/poster-backup/internal/extraviados"
	"github.com/extraviadosmx/poster-backup/internal/state"
)

const defaultS3Endpoint = "https://us-southeast-1.linodeobjects.com"

type program struct {
	apiEndpoint  string
	s3Endpoint   string
	manifestPath string
	dryRun       bool
	insecure     bool
}

func (p *program) registerFlags() {
	flag.StringVar(&p.apiEndpoint, "api_endpoint",
		env.GetWithFallback("POSTER_BACKUP_API_ENDPOINT", extraviados.DefaultEndpoint),
		"Extraviados MX API base URL, e.g. http://localhost:8000 for a local installation. Defaults to $POSTER_BACKUP_API_ENDPOINT.")

	flag.StringVar(&p.s3Endpoint, "s3_endpoint",
		env.GetWithFallback("POSTER_BACKUP_S3_ENDPOINT", defaultS3Endpoint),
		"Object storage endpoint used when the bucket argument is a plain name. Defaults to $POSTER_BACKUP_S3_ENDPOINT.")

	flag.StringVar(&p.manifestPath, "manifest",
		env.GetWithFallback("POSTER_BACKUP_MANIFEST", ""),
		"Path of the local upload manifest database. Files whose record is unchanged since the recorded upload are skipped. Empty disables the manifest. Defaults to $POSTER_BACKUP_MANIFEST.")

	flag.BoolVar(&p.dryRun, "dry_run",
		env.MustGetBool("POSTER_BACKUP_DRY_RUN", false),
		"Download and compress, but do not upload. Defaults to $POSTER_BACKUP_DRY_RUN.")

	flag.BoolVar(&p.insecure, "insecure",
		env.MustGetBool("POSTER_BACKUP_INSECURE", false),
		"Skip TLS certificate verification when downloading poster files. Defaults to $POSTER_BACKUP_INSECURE.")
}

func (p *program) run(ctx context.Context, r dateRange, bucketName string) error {
	creds, err := env.Require("AWS_ACCESS_KEY_ID", "AWS_SECRET_ACCESS_KEY")
	if err != nil {
		return err
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			creds["AWS_ACCESS_KEY_ID"], creds["AWS_SECRET_ACCESS_KEY"], "")),
		config.WithLogger(logging.StandardLogger{
			Logger: slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug),
		}),
		config.WithClientLogMode(
			aws.LogRequest|aws.LogResponse|aws.LogDeprecatedUsage,
		),
	)
	if err != nil {
		return err
	}

	b, err := newBucketFromName(cfg, bucketName, p.s3Endpoint)
	if err != nil {
		return err
	}

	apiClient, err := extraviados.New(extraviados.Options{
		Endpoint: p.apiEndpoint,
	})
	if err != nil {
		return err
	}

	tmpdir, err := os.MkdirTemp("", "poster-backup*")
	if err != nil {
		return err
	}

	defer os.RemoveAll(tmpdir)

	var store *state.Store
	var manifest uploadManifest

	if p.manifestPath != "" {
		store, err = openManifestStore(ctx, slog.Default(), tmpdir, p.manifestPath, b)
		if err != nil {
			return err
		}

		defer store.Close()

		m, err := store.Manifest(b.name)
		if err != nil {
			return fmt.Errorf("manifest: %w", err)
		}

		manifest = m
	}

	stats := newBackupStats()

	defer func() {
		slog.InfoContext(ctx, "Statistics", stats.attrs()...)
	}()

	slog.InfoContext(ctx, "Backing up posters",
		slog.Time("updated_after", r.from),
		slog.Time("updated_before", r.to),
		slog.String("bucket", b.name),
	)

	if err := backup(ctx, backupOptions{
		logger: slog.Default(),
		stats:  stats,
		source: apiClient,
		fetcher: newFetcher(fetcherOptions{
			tmpdir:   tmpdir,
			insecure: p.insecure,
		}),
		compressors: newCompressorRegistry(slog.Default()),
		bucket:      b,
		manifest:    manifest,
		dryRun:      p.dryRun,
	}, r.from, r.to); err != nil {
		return err
	}

	if store != nil && !p.dryRun {
		if err := uploadManifestToBucket(ctx, store, tmpdir, b, manifestSnapshotKey); err != nil {
			return fmt.Errorf("manifest snapshot: %w", err)
		}
	}

	if failed := stats.failedFiles(); failed > 0 {
		return fmt.Errorf("%d file(s) failed to back up", failed)
	}

	return nil
}

func main() {
	flag.Usage = func() {
		w := flag.CommandLine.Output()

		fmt.Fprintf(w, "Usage: %s [flags] <datefrom> <dateto> <bucket>\n", os.Args[0])
		fmt.Fprintln(w, `
Back up the po_post_url and po_poster_url files of missing person posters
whose updated_at falls between <datefrom> and <dateto> (YYYY-MM-DD) into an
S3 bucket. The bucket is given as a plain name or as an
http(s)://host[:port]/bucket URL selecting a custom endpoint. The
environment variables AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be
set.

Flags:`)
		flag.PrintDefaults()
	}

	debug := flag.Bool("debug", false, "Enable debug logging.")
	logfile := flag.String("logfile", "", "Write logs to a file instead of stderr.")

	var p program

	p.registerFlags()

	flag.Parse()

	logDest := os.Stderr

	if *logfile != "" {
		f, err := os.OpenFile(*logfile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Error: %v", err)
		}

		defer f.Close()

		logDest = f
	}

	var logLevel slog.LevelVar

	if *debug {
		logLevel.Set(slog.LevelDebug)
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(logDest, &slog.HandlerOptions{
		Level: &logLevel,
	})))

	if flag.NArg() != 3 {
		flag.Usage()
		os.Exit(2)
	}

	r, err := parseDateRange(flag.Arg(0), flag.Arg(1))
	if err != nil {
		log.Fatalf("Error: %v", err)
	}

	logBuildInfo(slog.Default())

	if err := p.run(context.Background(), r, flag.Arg(2)); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
