// Package httpfetch reads the latest hive reading from the remote document store over HTTP.
package httpfetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/go-hive/hivewatch/internal/reading"
	"github.com/go-resty/resty/v2"
)

const UserAgent = "hivewatch/0.1"

var _ reading.Fetcher = (*Fetcher)(nil)

type Fetcher struct {
	client *resty.Client
}

func New(cfg *Config) *Fetcher {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", UserAgent)
	if cfg.BearerToken != "" {
		client.SetAuthToken(cfg.BearerToken)
	}
	return &Fetcher{client: client}
}

// Latest calls GET /hives/{id}/readings/latest. A 404 means the hive has no readings yet.
func (f *Fetcher) Latest(ctx context.Context, entityID string) (*reading.Reading, error) {
	var out reading.Reading
	resp, err := f.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/hives/" + url.PathEscape(entityID) + "/readings/latest")
	if err != nil {
		return nil, fmt.Errorf("fetch latest reading for %s: %w", entityID, err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusNoContent:
		return nil, nil
	default:
		return nil, fmt.Errorf("fetch latest reading for %s: unexpected status %d", entityID, resp.StatusCode())
	}

	if out.EntityID == "" {
		out.EntityID = entityID
	}
	return &out, nil
}
