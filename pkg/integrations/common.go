package integrations

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"deps.dev/util/pypi"

	"github.com/matzehuels/pylock/pkg/buildinfo"
)

const (
	httpTimeout       = 30 * time.Second
	defaultAttempts   = 3
	defaultRetryDelay = time.Second
	maxBody           = 256 << 20
)

var userAgent = "pylock/" + buildinfo.Version

var (
	// ErrNotFound is returned when a project or file doesn't exist on the index.
	ErrNotFound = errors.New("resource not found")

	// ErrNetwork is returned for HTTP failures (timeouts, connection errors, 5xx responses).
	ErrNetwork = errors.New("network error")
)

// NewHTTPClient creates an HTTP client with a standard timeout for index requests.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// NormalizePkgName converts a project name to its PEP 503 canonical form:
// lowercase, with runs of "-", "_" and "." collapsed to a single "-".
func NormalizePkgName(name string) string {
	return pypi.CanonPackageName(strings.TrimSpace(name))
}

// URLEncode percent-encodes a path segment.
func URLEncode(s string) string { return url.PathEscape(s) }

// BasicAuthHeader returns headers carrying HTTP basic credentials, or nil
// when username is empty.
func BasicAuthHeader(username, password string) map[string]string {
	if username == "" {
		return nil
	}
	req, _ := http.NewRequest(http.MethodGet, "/", nil)
	req.SetBasicAuth(username, password)
	return map[string]string{"Authorization": req.Header.Get("Authorization")}
}
