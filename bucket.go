package main

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type bucket struct {
	client *s3.Client
	name   string
	prefix string
}

// newBucketFromName builds a bucket client from a CLI argument. The argument
// is either a plain bucket name, uploaded to via defaultEndpoint, or an
// http(s) URL selecting the endpoint, bucket and key prefix in one go.
func newBucketFromName(cfg aws.Config, input, defaultEndpoint string) (*bucket, error) {
	result := &bucket{
		name: input,
	}

	endpoint := defaultEndpoint

	var config []func(*s3.Options)

	if u, err := url.Parse(input); err == nil && u.IsAbs() {
		switch u.Scheme {
		case "http", "https":
		default:
			return nil, fmt.Errorf("%w: unrecognized scheme %q: %s", os.ErrInvalid, u.Scheme, u.Redacted())
		}

		result.name = strings.TrimLeft(u.Path, "/")

		if before, after, found := strings.Cut(result.name, "/"); found {
			result.name = before
			result.prefix = after
		}

		endpoint = (&url.URL{
			Scheme: u.Scheme,
			Host:   u.Host,
		}).String()

		config = append(config, func(opts *s3.Options) {
			opts.EndpointOptions.DisableHTTPS = u.Scheme == "http"
		})
	}

	if result.name == "" {
		return nil, fmt.Errorf("%w: missing bucket name: %s", os.ErrInvalid, input)
	}

	if endpoint != "" {
		config = append(config, func(opts *s3.Options) {
			opts.Region = "us-east-1"
			opts.BaseEndpoint = aws.String(endpoint)
		})
	}

	result.client = s3.NewFromConfig(cfg, config...)

	return result, nil
}

// upload stores the file under the given key, overwriting any existing
// object. Posters are published, hence the public-read ACL.
func (b *bucket) upload(ctx context.Context, f *fetchedFile, key string) (err error) {
	defer annotateError(&err, "key %q", key)

	file, err := os.Open(f.path)
	if err != nil {
		return err
	}

	defer file.Close()

	input := &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(b.prefix + key),
		Body:        file,
		ACL:         types.ObjectCannedACLPublicRead,
		ContentType: aws.String(f.mediaType),
	}

	if f.encoding != "" {
		input.ContentEncoding = aws.String(f.encoding)
	}

	uploader := manager.NewUploader(b.client)

	if _, err := uploader.Upload(ctx, input); err != nil {
		return err
	}

	return s3.NewObjectExistsWaiter(b.client).Wait(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(b.prefix + key),
	}, time.Minute)
}

// download retrieves the object under the given key into w.
func (b *bucket) download(ctx context.Context, w io.WriterAt, key string) (err error) {
	defer annotateError(&err, "key %q", key)

	_, err = manager.NewDownloader(b.client).Download(ctx, w, &s3.GetObjectInput{
		Bucket: aws.String(b.name),
		Key:    aws.String(b.prefix + key),
	})

	return err
}

// putObject stores raw content under the given key. Unlike poster files the
// object keeps the default private ACL.
func (b *bucket) putObject(ctx context.Context, r io.Reader, key, contentType string) (err error) {
	defer annotateError(&err, "key %q", key)

	_, err = manager.NewUploader(b.client).Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(b.name),
		Key:         aws.String(b.prefix + key),
		Body:        r,
		ContentType: aws.String(contentType),
	})

	return err
}
