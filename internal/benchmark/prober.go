// Package benchmark takes point-in-time AI-readiness snapshots of competitor
// domains: the homepage scored by the scoring engine plus site-level signals.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
	"github.com/JakeFAU/ai-readiness-scorer/internal/metrics"
	"github.com/JakeFAU/ai-readiness-scorer/internal/scoring"
)

// AIBots are the crawler user agents checked in robots.txt.
var AIBots = []string{"GPTBot", "ClaudeBot", "PerplexityBot", "Google-Extended", "CCBot", "anthropic-ai"}

// Config controls outbound requests.
type Config struct {
	UserAgent    string
	Timeout      time.Duration
	MaxBodyBytes int
}

// Waiter throttles requests per host.
type Waiter interface {
	Wait(ctx context.Context, key string) error
}

// Prober implements competitor.Benchmarker.
type Prober struct {
	fetch   *fetcher
	engine  *scoring.Engine
	limiter Waiter
	logger  *zap.Logger
}

// Option customizes a Prober.
type Option func(*proberOptions)

type proberOptions struct {
	transport http.RoundTripper
	engine    *scoring.Engine
	limiter   Waiter
	logger    *zap.Logger
}

// WithTransport overrides the HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(o *proberOptions) { o.transport = rt }
}

// WithEngine scores homepages with engine instead of the default catalog.
func WithEngine(engine *scoring.Engine) Option {
	return func(o *proberOptions) { o.engine = engine }
}

// WithLimiter throttles requests per host.
func WithLimiter(w Waiter) Option {
	return func(o *proberOptions) { o.limiter = w }
}

// WithLogger sets the prober logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *proberOptions) { o.logger = logger }
}

// New builds a Prober.
func New(cfg Config, opts ...Option) *Prober {
	o := proberOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.engine == nil {
		o.engine = scoring.MustEngine(nil)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	return &Prober{
		fetch:   newFetcher(cfg, o.transport),
		engine:  o.engine,
		limiter: o.limiter,
		logger:  o.logger,
	}
}

// siteSignals are the domain-level facts. Nil means the probe failed.
type siteSignals struct {
	robotsTxt  *bool
	blocked    []string
	botsKnown  bool
	llmsTxt    *bool
	sitemap    *bool
	robotsMaps []string
}

// Benchmark snapshots domain. Only a failed homepage fetch is an error;
// unreachable site files leave their scores unset.
func (p *Prober) Benchmark(ctx context.Context, domain string) (crawler.Benchmark, error) {
	base, err := baseURL(domain)
	if err != nil {
		return crawler.Benchmark{}, err
	}

	var facts crawler.PageFacts
	home, err := p.get(ctx, base.String(), func(e *colly.HTMLElement) {
		facts = extractFacts(e.DOM, e.Request.URL)
	})
	if err != nil {
		return crawler.Benchmark{}, fmt.Errorf("fetch homepage: %w", err)
	}
	if facts.URL == "" {
		facts = extractFacts(emptyDocument(), base)
	}
	facts.StatusCode = home.StatusCode
	facts.ResponseTimeMs = int(home.Duration.Milliseconds())
	facts.PageSizeBytes = len(home.Body)

	site := p.probeSite(ctx, base)
	facts.HasRobotsTxt = site.robotsTxt
	facts.HasLLMsTxt = site.llmsTxt
	facts.HasSitemap = site.sitemap
	if site.botsKnown {
		facts.AIBotsBlocked = site.blocked
		facts.AIBotsChecked = len(AIBots)
	}

	res := p.engine.Score(facts)
	b := crawler.Benchmark{
		Domain:      base.Host,
		Overall:     intPtr(res.Overall),
		Technical:   intPtr(res.Technical),
		Content:     intPtr(res.Content),
		AIReadiness: intPtr(res.AIReadiness),
		Performance: intPtr(res.Performance),
		SchemaScore: presence(len(facts.SchemaTypes) > 0),
	}
	if site.llmsTxt != nil {
		b.LLMsTxtScore = presence(*site.llmsTxt)
	}
	if site.sitemap != nil {
		b.SitemapScore = presence(*site.sitemap)
	}
	if site.botsKnown {
		allowed := len(AIBots) - len(site.blocked)
		b.BotAccessScore = intPtr(int(math.Round(100 * float64(allowed) / float64(len(AIBots)))))
	}
	p.logger.Debug("benchmark collected",
		zap.String("domain", base.Host),
		zap.Int("overall", res.Overall),
		zap.Int("status_code", home.StatusCode),
	)
	return b, nil
}

func (p *Prober) probeSite(ctx context.Context, base *url.URL) siteSignals {
	var sig siteSignals

	robots, err := p.get(ctx, base.JoinPath("robots.txt").String(), nil)
	switch {
	case err != nil:
		p.logger.Debug("robots.txt probe failed", zap.String("domain", base.Host), zap.Error(err))
	case robots.StatusCode >= 500:
		// Server errors say nothing about the file.
	default:
		sig.robotsTxt = boolPtr(robots.ok())
		data, err := robotstxt.FromStatusAndBytes(robots.StatusCode, robots.Body)
		if err == nil {
			sig.botsKnown = true
			sig.blocked = blockedBots(data)
			sig.robotsMaps = data.Sitemaps
		}
	}

	llms, err := p.get(ctx, base.JoinPath("llms.txt").String(), nil)
	if err == nil && llms.StatusCode < 500 {
		present := llms.ok() && len(strings.TrimSpace(string(llms.Body))) > 0 &&
			!strings.Contains(strings.ToLower(llms.ContentType), "html")
		sig.llmsTxt = boolPtr(present)
	}

	if len(sig.robotsMaps) > 0 {
		sig.sitemap = boolPtr(true)
	} else if sm, err := p.get(ctx, base.JoinPath("sitemap.xml").String(), nil); err == nil && sm.StatusCode < 500 {
		sig.sitemap = boolPtr(sm.ok())
	}
	return sig
}

func (p *Prober) get(ctx context.Context, target string, onHTML colly.HTMLCallback) (response, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx, target); err != nil {
			return response{}, fmt.Errorf("rate limit: %w", err)
		}
	}
	resp, err := p.fetch.fetch(ctx, target, onHTML)
	if isTimeout(err) {
		metrics.ObserveProbeTimeout()
	}
	return resp, err
}

func isTimeout(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	return errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout())
}

func blockedBots(data *robotstxt.RobotsData) []string {
	var blocked []string
	for _, bot := range AIBots {
		if !data.TestAgent("/", bot) {
			blocked = append(blocked, bot)
		}
	}
	return blocked
}

// baseURL accepts a bare domain or an absolute URL and returns its root.
func baseURL(domain string) (*url.URL, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, errors.New("domain is required")
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid domain %q", domain)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}, nil
}

func emptyDocument() *goquery.Selection {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	return doc.Find("html")
}

func presence(ok bool) *int {
	if ok {
		return intPtr(100)
	}
	return intPtr(0)
}

func intPtr(v int) *int    { return &v }
func boolPtr(v bool) *bool { return &v }
