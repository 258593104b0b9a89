package benchmark

import (
	"encoding/json"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/ai-readiness-scorer/internal/crawler"
)

// extractFacts reads on-page facts from the document root.
func extractFacts(root *goquery.Selection, page *url.URL) crawler.PageFacts {
	facts := crawler.PageFacts{
		URL:             page.String(),
		Title:           strings.TrimSpace(root.Find("title").First().Text()),
		MetaDescription: metaContent(root, "name", "description"),
		Lang:            strings.TrimSpace(root.AttrOr("lang", "")),
		OGTitle:         metaContent(root, "property", "og:title"),
		OGDescription:   metaContent(root, "property", "og:description"),
		RobotsMeta:      metaContent(root, "name", "robots"),
		Author:          metaContent(root, "name", "author"),
		PublishedAt:     metaContent(root, "property", "article:published_time"),
		HasViewport:     root.Find(`meta[name="viewport"]`).Length() > 0,
		HasLists:        root.Find("ul li, ol li").Length() > 0,
		HasTables:       root.Find("table").Length() > 0,
	}
	if href, ok := root.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		if u := resolve(page, href); u != nil {
			facts.CanonicalURL = u.String()
		}
	}

	root.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		level, _ := strconv.Atoi(strings.TrimPrefix(goquery.NodeName(s), "h"))
		facts.HeadingLevels = append(facts.HeadingLevels, level)
		text := strings.Join(strings.Fields(s.Text()), " ")
		switch level {
		case 1:
			facts.H1 = append(facts.H1, text)
		case 2:
			facts.H2 = append(facts.H2, text)
		case 3:
			facts.H3 = append(facts.H3, text)
		}
	})

	facts.SchemaTypes, facts.SchemaErrors = schemaTypes(root)
	facts.InternalLinks, facts.ExternalLinks = links(root, page)

	root.Find("img").Each(func(_ int, s *goquery.Selection) {
		facts.ImagesTotal++
		if _, ok := s.Attr("alt"); !ok {
			facts.ImagesMissing++
		}
	})

	words, chars := bodyText(root)
	facts.WordCount = words
	if html, err := goquery.OuterHtml(root); err == nil && len(html) > 0 {
		ratio := float64(chars) / float64(len(html))
		facts.TextToHTMLRatio = &ratio
	}
	return facts
}

func metaContent(root *goquery.Selection, attr, name string) string {
	var out string
	root.Find("meta").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.EqualFold(s.AttrOr(attr, ""), name) {
			out = strings.TrimSpace(s.AttrOr("content", ""))
			return false
		}
		return true
	})
	return out
}

// schemaTypes collects @type values from JSON-LD blocks, including @graph
// members. Blocks that fail to parse are counted as errors.
func schemaTypes(root *goquery.Selection) ([]string, int) {
	var (
		types []string
		bad   int
	)
	seen := map[string]bool{}
	add := func(v any) {
		switch t := v.(type) {
		case string:
			if !seen[t] {
				seen[t] = true
				types = append(types, t)
			}
		case []any:
			for _, item := range t {
				if s, ok := item.(string); ok && !seen[s] {
					seen[s] = true
					types = append(types, s)
				}
			}
		}
	}
	root.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var doc any
		if err := json.Unmarshal([]byte(s.Text()), &doc); err != nil {
			bad++
			return
		}
		var nodes []any
		switch d := doc.(type) {
		case []any:
			nodes = d
		case map[string]any:
			nodes = []any{d}
			if graph, ok := d["@graph"].([]any); ok {
				nodes = append(nodes, graph...)
			}
		}
		for _, n := range nodes {
			if m, ok := n.(map[string]any); ok {
				add(m["@type"])
			}
		}
	})
	return types, bad
}

func links(root *goquery.Selection, page *url.URL) (internal, external []string) {
	seen := map[string]bool{}
	root.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		u := resolve(page, s.AttrOr("href", ""))
		if u == nil || (u.Scheme != "http" && u.Scheme != "https") {
			return
		}
		u.Fragment = ""
		key := u.String()
		if seen[key] {
			return
		}
		seen[key] = true
		if strings.EqualFold(u.Hostname(), page.Hostname()) {
			internal = append(internal, key)
		} else {
			external = append(external, key)
		}
	})
	return internal, external
}

func resolve(base *url.URL, href string) *url.URL {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return nil
	}
	u, err := base.Parse(href)
	if err != nil {
		return nil
	}
	return u
}

// bodyText counts words and visible characters in the body.
func bodyText(root *goquery.Selection) (words, chars int) {
	body := root.Find("body").First().Clone()
	body.Find("script, style, noscript, template").Remove()
	body.AddSelection(body.Find("*")).Contents().Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "#text" {
			return
		}
		fields := strings.Fields(s.Text())
		words += len(fields)
		for _, f := range fields {
			chars += len(f)
		}
	})
	return words, chars
}
