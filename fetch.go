package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

const fetchTimeout = 2 * time.Minute

var extByMediaType = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpeg",
	"image/png":       "png",
	"text/html":       "html",
}

var mediaTypeByExt = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"html": "text/html",
	"htm":  "text/html",
}

// fetchedFile is one downloaded poster file in the run's scratch directory.
type fetchedFile struct {
	path      string
	mediaType string
	ext       string

	// encoding is set when the payload was transformed (e.g. gzip).
	encoding string

	size int64
}

type fetcher struct {
	httpClient *http.Client
	tmpdir     string
}

type fetcherOptions struct {
	tmpdir string

	// insecure disables TLS certificate verification. Some of the state
	// prosecutor sites hosting posters have broken certificates.
	insecure bool
}

func newFetcher(opts fetcherOptions) *fetcher {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	if opts.insecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &fetcher{
		httpClient: &http.Client{
			Timeout:   fetchTimeout,
			Transport: transport,
		},
		tmpdir: opts.tmpdir,
	}
}

// inferType determines the media type from the Content-Type header, falling
// back to the URL path extension.
func inferType(contentType, rawURL string) (string, error) {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if _, ok := extByMediaType[mediaType]; ok {
			return mediaType, nil
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")

		if mediaType, ok := mediaTypeByExt[ext]; ok {
			return mediaType, nil
		}
	}

	return "", fmt.Errorf("unsupported content type %q", contentType)
}

// fetch downloads rawURL into the scratch directory. The file name is the
// given base name plus an extension inferred from the response.
func (f *fetcher) fetch(ctx context.Context, rawURL, basename string) (_ *fetchedFile, err error) {
	defer annotateError(&err, "fetching %s", rawURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("server returned status %d", resp.StatusCode)
	}

	mediaType, err := inferType(resp.Header.Get("Content-Type"), rawURL)
	if err != nil {
		return nil, err
	}

	ext := extByMediaType[mediaType]

	result := &fetchedFile{
		path:      filepath.Join(f.tmpdir, basename+"."+ext),
		mediaType: mediaType,
		ext:       ext,
	}

	file, err := os.Create(result.path)
	if err != nil {
		return nil, err
	}

	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = closeErr
		}

		if err != nil {
			os.Remove(result.path)
		}
	}()

	if result.size, err = io.Copy(file, resp.Body); err != nil {
		return nil, err
	}

	return result, nil
}
