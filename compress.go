package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"
)

const compressTimeout = 2 * time.Minute

// A compressor writes a (hopefully) smaller version of src to dst. Whether
// the result actually replaces the original is decided by the registry.
type compressor interface {
	name() string
	contentEncoding() string
	compress(ctx context.Context, src, dst string) error
}

type commandCompressor struct {
	tool string
	args func(src, dst string) []string
}

func (c *commandCompressor) name() string { return c.tool }

func (c *commandCompressor) contentEncoding() string { return "" }

func (c *commandCompressor) compress(ctx context.Context, src, dst string) error {
	ctx, cancel := context.WithTimeout(ctx, compressTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.tool, c.args(src, dst)...)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", c.tool, err, bytes.TrimSpace(output))
	}

	return nil
}

func gsArgs(src, dst string) []string {
	return []string{
		"-sDEVICE=pdfwrite",
		"-dCompatibilityLevel=1.4",
		"-dPDFSETTINGS=/screen",
		"-dNOPAUSE",
		"-dQUIET",
		"-dBATCH",
		"-sOutputFile=" + dst,
		src,
	}
}

func pngcrushArgs(src, dst string) []string {
	return []string{"-q", src, dst}
}

// jpegoptim only works in place, so the input is copied first.
type jpegoptimCompressor struct{}

func (c *jpegoptimCompressor) name() string { return "jpegoptim" }

func (c *jpegoptimCompressor) contentEncoding() string { return "" }

func (c *jpegoptimCompressor) compress(ctx context.Context, src, dst string) error {
	if err := copyFile(src, dst); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, compressTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "jpegoptim", "-q", dst)

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("jpegoptim: %w: %s", err, bytes.TrimSpace(output))
	}

	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	_, err = io.Copy(out, in)

	return err
}

// gzipCompressor handles HTML pages. Unlike the external tools it changes the
// payload encoding, which the uploader announces via Content-Encoding.
type gzipCompressor struct{}

func (c *gzipCompressor) name() string { return "gzip" }

func (c *gzipCompressor) contentEncoding() string { return "gzip" }

func (c *gzipCompressor) compress(ctx context.Context, src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}

	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	zw, err := gzip.NewWriterLevel(out, gzip.BestCompression)
	if err != nil {
		return err
	}

	if _, err := io.Copy(zw, in); err != nil {
		return err
	}

	return zw.Close()
}

type compressorRegistry struct {
	logger      *slog.Logger
	byMediaType map[string]compressor
}

// newCompressorRegistry probes for the external compression tools once.
// Types whose tool is missing are simply not compressed; the backup works
// without any of them installed.
func newCompressorRegistry(logger *slog.Logger) *compressorRegistry {
	r := &compressorRegistry{
		logger: logger,
		byMediaType: map[string]compressor{
			"text/html": &gzipCompressor{},
		},
	}

	for mediaType, c := range map[string]compressor{
		"application/pdf": &commandCompressor{tool: "gs", args: gsArgs},
		"image/png":       &commandCompressor{tool: "pngcrush", args: pngcrushArgs},
		"image/jpeg":      &jpegoptimCompressor{},
	} {
		if _, err := exec.LookPath(c.name()); err != nil {
			logger.Warn("Compression tool unavailable, uploading uncompressed",
				slog.String("tool", c.name()),
				slog.String("media_type", mediaType),
			)
			continue
		}

		r.byMediaType[mediaType] = c
	}

	return r
}

// Some posters carry an extension and content type that do not match the
// actual image data. pngcrush and jpegoptim refuse such files with a
// recognizable message, in which case the other image compressor gets a try.
var imageFallbacks = map[string]string{
	"image/jpeg": "image/png",
	"image/png":  "image/jpeg",
}

func isWrongImageFormat(err error) bool {
	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "not a png") || strings.Contains(msg, "not a jpeg")
}

// compress shrinks f in place when a compressor for its media type produces a
// strictly smaller file. All failures keep the original file; the result is
// never larger than the input.
func (r *compressorRegistry) compress(ctx context.Context, f *fetchedFile) {
	c := r.byMediaType[f.mediaType]
	if c == nil {
		return
	}

	err := r.compressWith(ctx, c, f)
	if err == nil {
		return
	}

	if other := imageFallbacks[f.mediaType]; other != "" && isWrongImageFormat(err) {
		if fc := r.byMediaType[other]; fc != nil && r.compressWith(ctx, fc, f) == nil {
			r.logger.InfoContext(ctx, "Mislabeled image compressed as other type",
				slog.String("path", f.path),
				slog.String("media_type", other),
			)

			f.mediaType = other
			f.ext = extByMediaType[other]
			return
		}
	}

	r.logger.WarnContext(ctx, "Compression failed, keeping original",
		slog.String("path", f.path),
		slog.Any("error", err),
	)
}

// compressWith runs one compressor over f and keeps the result when strictly
// smaller. Only the tool invocation itself reports an error; everything after
// it silently keeps the original file.
func (r *compressorRegistry) compressWith(ctx context.Context, c compressor, f *fetchedFile) error {
	dst := f.path + ".compressed"

	defer os.Remove(dst)

	if err := c.compress(ctx, f.path, dst); err != nil {
		return err
	}

	fi, err := os.Stat(dst)
	if err != nil {
		r.logger.WarnContext(ctx, "Compression produced no output, keeping original",
			slog.String("path", f.path),
			slog.Any("error", err),
		)
		return nil
	}

	if fi.Size() >= f.size {
		r.logger.DebugContext(ctx, "Compressed file not smaller, keeping original",
			slog.String("path", f.path),
			slog.Int64("original_bytes", f.size),
			slog.Int64("compressed_bytes", fi.Size()),
		)
		return nil
	}

	if err := os.Rename(dst, f.path); err != nil {
		r.logger.WarnContext(ctx, "Unable to replace original",
			slog.String("path", f.path),
			slog.Any("error", err),
		)
		return nil
	}

	f.size = fi.Size()
	f.encoding = c.contentEncoding()

	return nil
}
