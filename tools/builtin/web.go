package builtin

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	loggerv2 "jarvis/logger/v2"
	"jarvis/tools"
)

const maxLinksToFollow = 2

func webTools(d Deps) []tools.Definition {
	w := &web{client: d.HTTP, cfg: d.Web, logger: d.Logger}
	return []tools.Definition{
		{
			Name:        "browse_web_page",
			Description: "Fetches a web page and returns its readable text.",
			Category:    categoryWebSearch,
			Schema: tools.NewSchema(
				tools.Required("url", tools.TypeString, "The page URL. https:// is assumed when no scheme is given."),
			),
			Func: func(ctx context.Context, args tools.Args) (any, error) {
				page, err := w.browse(ctx, args.String("url"))
				if err != nil {
					return nil, err
				}
				return page.text, nil
			},
		},
		{
			Name:        "search_and_browse",
			Description: "Searches the web and returns the text of the top results.",
			Category:    categoryWebSearch,
			Schema: tools.NewSchema(
				tools.Required("query", tools.TypeString, "The search query."),
				tools.Optional("num_results", tools.TypeInteger, "How many results to browse.", 1),
				tools.Optional("follow_links", tools.TypeBoolean, "Also browse a few same-site links of each result.", false),
			),
			Func: func(ctx context.Context, args tools.Args) (any, error) {
				return w.search(ctx, args.String("query"), args.Int("num_results"), args.Bool("follow_links"))
			},
		},
	}
}

type web struct {
	client *resty.Client
	cfg    WebConfig
	logger loggerv2.Logger
}

type page struct {
	url   string
	text  string
	links []string
}

func sanitizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if u, err := url.Parse(raw); err != nil || u.Scheme == "" {
		return "https://" + raw
	}
	return raw
}

func (w *web) browse(ctx context.Context, rawURL string) (*page, error) {
	target := sanitizeURL(rawURL)
	w.logger.Info("Browsing web page", loggerv2.String("url", target))

	resp, err := w.client.R().SetContext(ctx).Get(target)
	if err != nil {
		return nil, fmt.Errorf("could not retrieve content from %s: %w", target, err)
	}
	if resp.IsError() {
		return nil, tools.Errorf("http_error", "could not retrieve content from %s: status %d", target, resp.StatusCode())
	}

	doc, err := html.Parse(bytes.NewReader(resp.Body()))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", target, err)
	}
	text := extractText(doc)
	if n := w.cfg.MaxScrapeLength; n > 0 && len(text) > n {
		w.logger.Debug("Web content truncated", loggerv2.Int("from", len(text)), loggerv2.Int("to", n))
		text = truncateUTF8(text, n) + "..."
	}
	return &page{url: target, text: text, links: internalLinks(target, doc)}, nil
}

var skippedElements = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Nav:      true,
	atom.Footer:   true,
	atom.Aside:    true,
	atom.Noscript: true,
	atom.Head:     true,
}

// extractText joins the non-empty text nodes of doc with newlines.
func extractText(doc *html.Node) string {
	var lines []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && skippedElements[n.DataAtom] {
			return
		}
		if n.Type == html.TextNode {
			if s := strings.Join(strings.Fields(n.Data), " "); s != "" {
				lines = append(lines, s)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.Join(lines, "\n")
}

var binaryLink = regexp.MustCompile(`(?i)\.(pdf|zip|jpg|jpeg|png|gif|mp4)$`)

// internalLinks returns same-host http(s) links in document order.
func internalLinks(base string, doc *html.Node) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}
	seen := map[string]bool{base: true}
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(out) >= maxLinksToFollow*2 {
			return
		}
		if n.Type == html.ElementNode && n.DataAtom == atom.A {
			for _, a := range n.Attr {
				if a.Key != "href" {
					continue
				}
				ref, err := url.Parse(a.Val)
				if err != nil {
					continue
				}
				u := baseURL.ResolveReference(ref)
				u.Fragment = ""
				full := u.String()
				if u.Host == baseURL.Host && (u.Scheme == "http" || u.Scheme == "https") &&
					!binaryLink.MatchString(u.Path) && !seen[full] {
					seen[full] = true
					out = append(out, full)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out
}

func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func utf8RuneStart(b byte) bool { return b&0xC0 != 0x80 }

type searchResponse struct {
	Items []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"items"`
}

func (w *web) search(ctx context.Context, query string, numResults int, follow bool) (string, error) {
	if w.cfg.SearchAPIKey == "" || w.cfg.SearchEngineID == "" {
		return "", tools.Errorf("not_configured", "web search is not configured: set the search API key and engine id")
	}
	if numResults <= 0 {
		numResults = 1
	}
	w.logger.Info("Performing web search", loggerv2.String("query", query))

	var result searchResponse
	resp, err := w.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"key": w.cfg.SearchAPIKey,
			"cx":  w.cfg.SearchEngineID,
			"q":   query,
		}).
		SetResult(&result).
		Get(w.cfg.SearchURL)
	if err != nil {
		return "", fmt.Errorf("could not perform web search: %w", err)
	}
	if resp.IsError() {
		return "", tools.Errorf("http_error", "could not perform web search: status %d", resp.StatusCode())
	}
	if len(result.Items) == 0 {
		return fmt.Sprintf("No search results found for '%s'.", query), nil
	}

	var sections []string
	browsed := map[string]bool{}
	taken := 0
	for _, item := range result.Items {
		if taken >= numResults {
			break
		}
		if item.Link == "" || browsed[item.Link] {
			continue
		}
		browsed[item.Link] = true
		taken++

		p, err := w.browse(ctx, item.Link)
		if err != nil {
			sections = append(sections, fmt.Sprintf("--- Failed to retrieve content from %s ---\n%v\n", item.Link, err))
			continue
		}
		sections = append(sections, fmt.Sprintf("--- Content from: %s (%s) ---\nSnippet: %s\n\n%s\n", item.Title, item.Link, item.Snippet, p.text))
		if !follow {
			continue
		}
		followed := 0
		for _, link := range p.links {
			if followed >= maxLinksToFollow {
				break
			}
			if browsed[link] {
				continue
			}
			browsed[link] = true
			followed++
			if sub, err := w.browse(ctx, link); err == nil {
				sections = append(sections, fmt.Sprintf("--- Content from Followed Link (%s) ---\n%s\n", link, sub.text))
			}
		}
	}
	if len(sections) == 0 {
		return fmt.Sprintf("No content could be retrieved for query: '%s'.", query), nil
	}
	return strings.Join(sections, "\n"), nil
}
