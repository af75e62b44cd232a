package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/opencontainers/go-digest"

	"github.com/abinit/psrepos/internal/branding"
)

// archiveURL applies the configured mirror to a registry URL.
func (in *Installer) archiveURL(url string) string {
	if in.mirror == "" {
		return url
	}
	return strings.TrimRight(in.mirror, "/") + "/" + path.Base(url)
}

// download fetches url into destPath, retrying temporary network failures
// with exponential backoff, and returns the canonical digest of the bytes.
func (in *Installer) download(ctx context.Context, url, destPath string) (digest.Digest, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = in.retryInterval

	attempt := 0
	op := func() (digest.Digest, error) {
		attempt++
		dg, err := in.fetchOnce(ctx, url, destPath)
		if err == nil {
			return dg, nil
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) && netErr.Retryable() && ctx.Err() == nil {
			return "", err
		}
		return "", backoff.Permanent(err)
	}

	dg, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(in.retries)+1),
		backoff.WithNotify(func(err error, wait time.Duration) {
			in.logger.Warn("download failed, retrying", "url", url, "attempt", attempt, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	return dg, nil
}

// fetchOnce performs a single GET of url into destPath.
func (in *Installer) fetchOnce(ctx context.Context, url, destPath string) (digest.Digest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", &NetworkError{URL: url, Err: fmt.Errorf("creating download request: %w", err)}
	}
	req.Header.Set("User-Agent", branding.CLIName()+"-installer")

	resp, err := in.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &NetworkError{URL: url, Temporary: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		temporary := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return "", &NetworkError{URL: url, StatusCode: resp.StatusCode, Temporary: temporary}
	}

	f, err := os.Create(destPath)
	if err != nil {
		return "", fsError("creating download file", destPath, err)
	}
	defer f.Close()

	digester := digest.Canonical.Digester()
	total := resp.ContentLength
	var downloaded int64
	lastPercent := -1
	showProgress := in.verbosity > 0 && total > 0

	buf := make([]byte, 32*1024)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			if _, writeErr := f.Write(buf[:n]); writeErr != nil {
				return "", fsError("writing download", destPath, writeErr)
			}
			digester.Hash().Write(buf[:n])
			downloaded += int64(n)
			if showProgress {
				percent := int(downloaded * 100 / total)
				if percent != lastPercent {
					fmt.Fprintf(in.progress, "\rDownloading %s... %d%%", path.Base(url), percent)
					lastPercent = percent
				}
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", &NetworkError{URL: url, Temporary: true, Err: fmt.Errorf("reading download stream: %w", readErr)}
		}
	}
	if showProgress {
		fmt.Fprintln(in.progress)
	}

	if total > 0 && downloaded != total {
		return "", &NetworkError{URL: url, Temporary: true,
			Err: fmt.Errorf("short read: got %d of %d bytes", downloaded, total)}
	}
	if err := f.Close(); err != nil {
		return "", fsError("closing download", destPath, err)
	}
	return digester.Digest(), nil
}
