package installer

import (
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	// DefaultRetries is the number of extra attempts after a temporary
	// network failure.
	DefaultRetries = 3
	// DefaultRetryInterval is the first backoff delay between attempts.
	DefaultRetryInterval = 500 * time.Millisecond
	// lockPollInterval is how often a blocked installer retries the lock.
	lockPollInterval = 200 * time.Millisecond
)

// Installer downloads and unpacks repositories.
type Installer struct {
	httpClient    *http.Client
	mirror        string
	retries       int
	retryInterval time.Duration
	logger        *slog.Logger
	verbosity     int
	progress      io.Writer
	// beforeCommit runs just before the staged bundle is renamed into place.
	beforeCommit func(stagedDir string) error
}

// Option configures an Installer.
type Option func(*Installer)

// WithHTTPClient sets a custom HTTP client (useful for testing).
func WithHTTPClient(c *http.Client) Option {
	return func(in *Installer) {
		in.httpClient = c
	}
}

// WithMirror downloads archives from mirror instead of the registry host.
// The archive file name is kept; everything before it is replaced.
func WithMirror(mirror string) Option {
	return func(in *Installer) {
		in.mirror = mirror
	}
}

// WithRetries sets how many times a temporary network failure is retried.
func WithRetries(n int) Option {
	return func(in *Installer) {
		if n >= 0 {
			in.retries = n
		}
	}
}

// WithRetryInterval sets the initial backoff delay between attempts.
func WithRetryInterval(d time.Duration) Option {
	return func(in *Installer) {
		if d > 0 {
			in.retryInterval = d
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(in *Installer) {
		if l != nil {
			in.logger = l
		}
	}
}

// WithVerbosity enables incremental progress output when v > 0. It never
// changes what gets installed.
func WithVerbosity(v int) Option {
	return func(in *Installer) {
		in.verbosity = v
	}
}

// WithProgress sets where download progress is written (default stderr).
func WithProgress(w io.Writer) Option {
	return func(in *Installer) {
		in.progress = w
	}
}

// New creates an Installer with the given options.
func New(opts ...Option) *Installer {
	in := &Installer{
		httpClient:    http.DefaultClient,
		retries:       DefaultRetries,
		retryInterval: DefaultRetryInterval,
		logger:        slog.Default(),
		progress:      os.Stderr,
	}
	for _, opt := range opts {
		opt(in)
	}
	return in
}
