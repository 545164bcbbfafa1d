package zenodo

import (
	"errors"
	"fmt"
	"net/http"
)

// Exported errors
var (
	ErrNotFound         = errors.New("Not Found on Zenodo")
	ErrNotAuthorized    = errors.New("Access Denied")
	ErrNotAssociated    = errors.New("No Deposition Is Associated")
	ErrNoBucket         = errors.New("Deposition Has No Bucket Link")
	ErrNotPublishable   = errors.New("Deposition Has No Publish Link")
	ErrBadResponse      = errors.New("Malformed Response From Zenodo")
	ErrChecksumMismatch = errors.New("Checksum mismatch")
)

// A StatusError is returned when Zenodo answers with a status code the
// operation cannot interpret.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("Received status %d from Zenodo for %s %s", e.Code, e.Method, e.Path)
}

// statusErr converts an unexpected response into an error. Not-found and
// auth failures map to the exported sentinels so callers can test for
// them.
func statusErr(resp *http.Response) error {
	switch resp.StatusCode {
	case 404, 410:
		return ErrNotFound
	case 401, 403:
		return ErrNotAuthorized
	}
	e := &StatusError{Code: resp.StatusCode}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.Path = resp.Request.URL.Path
	}
	return e
}
