// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev

package fetch

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrPathNotFound is wrapped by PathError.
var ErrPathNotFound = errors.New("path not found")

// StatusError is a non-2xx response.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %s", e.URL, e.Status)
}

// Temporary reports whether retrying may help.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// FetchError is returned by Get once retries are exhausted or a permanent
// failure occurred.
type FetchError struct {
	URL      string
	Attempts int
	Cause    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempt(s): %v", e.URL, e.Attempts, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// PathError reports a gjson path that matched nothing.
type PathError struct {
	Path string
}

func (e *PathError) Error() string {
	return fmt.Sprintf("json path %q does not exist in response", e.Path)
}

func (e *PathError) Unwrap() error { return ErrPathNotFound }
