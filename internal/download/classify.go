package download

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	qhttp "github.com/handiism/quicksong/internal/http"
	"github.com/handiism/quicksong/internal/model"
)

// transientMarkers are matched against the text of transport errors that
// carry no usable type, such as errors surfaced through a proxy.
var transientMarkers = []string{
	"connection reset",
	"timeout",
	"remote end closed connection",
	"connection refused",
	"broken pipe",
	"eof",
	"proxyconnect",
}

// Classify maps the result of an archive request to the kind of failure
// it represents. A nil error on a regular page is KindNone.
//
// Landing on errorPagePath is fatal whatever the status. 403 and 404 are
// fatal; 400, 429 and 503 are retryable, as are timeouts, resets, refused
// connections and early EOFs. Anything else is KindFetchUnknown.
func Classify(dl *qhttp.Download, err error, errorPagePath string) model.ErrorKind {
	if dl != nil && IsErrorPage(dl.FinalURL, errorPagePath) {
		return model.KindFetchFatal
	}
	if err == nil {
		return model.KindNone
	}

	var se *qhttp.StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusForbidden, http.StatusNotFound:
			return model.KindFetchFatal
		case http.StatusBadRequest, http.StatusTooManyRequests, http.StatusServiceUnavailable:
			return model.KindFetchRetryable
		default:
			return model.KindFetchUnknown
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return model.KindFetchRetryable
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.KindFetchRetryable
	}
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return model.KindFetchRetryable
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return model.KindFetchRetryable
		}
	}
	return model.KindFetchUnknown
}

// IsErrorPage reports whether rawURL points at the service's error page.
func IsErrorPage(rawURL, errorPagePath string) bool {
	if rawURL == "" || errorPagePath == "" {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.Contains(rawURL, errorPagePath)
	}
	return strings.Contains(u.Path, errorPagePath)
}
