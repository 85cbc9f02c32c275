package main

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

func annotateError(err *error, format string, args ...any) {
	if *err != nil {
		prefix := fmt.Sprintf(format, args...)

		*err = fmt.Errorf("%s: %w", prefix, *err)
	}
}

// Storage errors that no amount of per-file retrying can fix. They abort the
// whole run instead of being recorded as soft failures.
var fatalStorageErrorCodes = map[string]bool{
	"AccessDenied":            true,
	"AccountProblem":          true,
	"AllAccessDisabled":       true,
	"CredentialsNotSupported": true,
	"ExpiredToken":            true,
	"InvalidAccessKeyId":      true,
	"InvalidBucketName":       true,
	"NoSuchBucket":            true,
	"SignatureDoesNotMatch":   true,
	"TokenRefreshRequired":    true,
}

func isFatalStorageError(err error) bool {
	var apiErr smithy.APIError

	return errors.As(err, &apiErr) && fatalStorageErrorCodes[apiErr.ErrorCode()]
}

// isObjectNotFound reports whether a storage error means the requested key
// does not exist.
func isObjectNotFound(err error) bool {
	var apiErr smithy.APIError

	if !errors.As(err, &apiErr) {
		return false
	}

	switch apiErr.ErrorCode() {
	case "NoSuchKey", "NotFound":
		return true
	}

	return false
}
