package httputil

import (
	"net/http"
	"strings"
	"time"
)

// NewClientFromConfig returns a client that authenticates every request as cfg describes.
func NewClientFromConfig(cfg HTTPClientConfig, disableKeepAlives bool) (*http.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &http.Client{Transport: newAuthTransport(cfg, newTransport(disableKeepAlives))}, nil
}

func newTransport(disableKeepAlives bool) *http.Transport {
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		DisableKeepAlives:     disableKeepAlives,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
	}
}

// authTransport sets Authorization on requests that do not carry one already.
type authTransport struct {
	cfg  HTTPClientConfig
	next http.RoundTripper
}

func newAuthTransport(cfg HTTPClientConfig, next http.RoundTripper) http.RoundTripper {
	if cfg.BasicAuth == nil && cfg.BearerToken == "" {
		return next
	}
	return &authTransport{cfg: cfg, next: next}
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Authorization") != "" {
		return t.next.RoundTrip(req)
	}
	// RoundTrippers must not modify the caller's request.
	req = req.Clone(req.Context())
	if t.cfg.BasicAuth != nil {
		req.SetBasicAuth(t.cfg.BasicAuth.Username, strings.TrimSpace(t.cfg.BasicAuth.Password))
	} else {
		req.Header.Set("Authorization", "Bearer "+t.cfg.BearerToken)
	}
	return t.next.RoundTrip(req)
}
