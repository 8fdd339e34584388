package job

import (
	"context"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/context/ctxhttp"
)

const (
	DEFAULT_PROBE_URL     = "https://www.google.com"
	DEFAULT_PROBE_TIMEOUT = 10 * time.Second
)

// Probe is a lightweight outbound connectivity check.
type Probe struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
}

// Check issues a HEAD request to the probe URL and returns the HTTP status code. An error
// is returned only if the request could not be completed.
func (p Probe) Check(ctx context.Context) (int, error) {
	url := p.URL
	if url == "" {
		url = DEFAULT_PROBE_URL
	}

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DEFAULT_PROBE_TIMEOUT
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	response, err := ctxhttp.Head(ctx, p.Client, url)
	if err != nil {
		return 0, err
	}

	defer response.Body.Close()

	io.Copy(io.Discard, response.Body)

	return response.StatusCode, nil
}
