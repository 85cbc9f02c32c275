package main

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/smithy-go"
)

func TestAnnotateError(t *testing.T) {
	err := errors.New("inner")

	annotateError(&err, "key %q", "abc")

	if got, want := err.Error(), `key "abc": inner`; got != want {
		t.Errorf("Error = %q, want %q", got, want)
	}

	err = nil

	annotateError(&err, "key %q", "abc")

	if err != nil {
		t.Errorf("nil error was annotated: %v", err)
	}
}

func TestIsFatalStorageError(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil"},
		{
			name: "plain",
			err:  errors.New("connection reset"),
		},
		{
			name: "transient api error",
			err:  &smithy.GenericAPIError{Code: "SlowDown"},
		},
		{
			name: "bad credentials",
			err:  &smithy.GenericAPIError{Code: "InvalidAccessKeyId"},
			want: true,
		},
		{
			name: "wrapped",
			err:  fmt.Errorf("uploading: %w", &smithy.GenericAPIError{Code: "AccessDenied"}),
			want: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := isFatalStorageError(tc.err); got != tc.want {
				t.Errorf("isFatalStorageError() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestIsObjectNotFound(t *testing.T) {
	for _, tc := range []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil"},
		{
			name: "plain",
			err:  errors.New("connection reset"),
		},
		{
			name: "access denied",
			err:  &smithy.GenericAPIError{Code: "AccessDenied"},
		},
		{
			name: "no such key",
			err:  &smithy.GenericAPIError{Code: "NoSuchKey"},
			want: true,
		},
		{
			name: "wrapped not found",
			err:  fmt.Errorf("object %q download: %w", "key", &smithy.GenericAPIError{Code: "NotFound"}),
			want: true,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			if got := isObjectNotFound(tc.err); got != tc.want {
				t.Errorf("isObjectNotFound() = %v, want %v", got, tc.want)
			}
		})
	}
}
