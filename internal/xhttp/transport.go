package xhttp

import (
	"fmt"
	"net/http"

	"github.com/garrettladley/adega/internal/version"
)

type adegaTransport struct {
	base http.RoundTripper
}

var _ http.RoundTripper = (*adegaTransport)(nil)

func (t *adegaTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Set(UserAgent, version.UserAgent())
	req.Header.Set(version.Header, version.Get())
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, fmt.Errorf("failed to perform round trip: %w", err)
	}
	return resp, nil
}

// NewTransport returns an http.RoundTripper with standard adega headers.
func NewTransport() http.RoundTripper {
	return &adegaTransport{base: http.DefaultTransport}
}
