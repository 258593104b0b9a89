package benchmark

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
)

const defaultTimeout = 15 * time.Second

// response is one fetched resource.
type response struct {
	URL         string
	StatusCode  int
	ContentType string
	Body        []byte
	Duration    time.Duration
}

func (r response) ok() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// fetcher runs single GETs through a cloned colly collector so callbacks
// never leak between requests.
type fetcher struct {
	base      *colly.Collector
	userAgent string
	timeout   time.Duration
}

func newFetcher(cfg Config, transport http.RoundTripper) *fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	if cfg.MaxBodyBytes > 0 {
		c.MaxBodySize = cfg.MaxBodyBytes
	}
	if transport == nil {
		transport = newHTTPTransport()
	}
	c.WithTransport(transport)

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &fetcher{base: c, userAgent: cfg.UserAgent, timeout: timeout}
}

// fetch GETs url. Non-2xx statuses are returned as responses, not errors.
// onHTML, when set, receives the document root of HTML responses.
func (f *fetcher) fetch(ctx context.Context, url string, onHTML colly.HTMLCallback) (response, error) {
	collector := f.base.Clone()
	collector.Context = ctx
	if f.userAgent != "" {
		collector.UserAgent = f.userAgent
	}
	collector.SetRequestTimeout(f.timeout)

	var (
		result   response
		fetchErr error
	)
	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		result = response{
			URL:         r.Request.URL.String(),
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        append([]byte(nil), r.Body...),
			Duration:    time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})
	if onHTML != nil {
		collector.OnHTML("html", onHTML)
	}

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return response{}, fmt.Errorf("fetch %s canceled: %w", url, ctx.Err())
	case err := <-done:
		if err != nil {
			return response{}, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return response{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
		return result, nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
