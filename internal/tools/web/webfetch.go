// Package web implements the webfetch tool: fetch a URL and reduce it
// to readable text or markdown.
package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"

	"github.com/waysongjiang/pyopencode/internal/tools"
)

const (
	userAgent      = "pyopencode/0.1"
	defaultTimeout = 15
	defaultMax     = 12000
	maxBodyBytes   = 5 * 1024 * 1024
)

var blankLines = regexp.MustCompile(`\n{3,}`)

// WebFetchTool fetches a URL and returns readable content.
type WebFetchTool struct {
	client *http.Client
}

// NewWebFetchTool builds the tool with a shared HTTP client. Timeouts
// are applied per request from the tool arguments.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{client: &http.Client{}}
}

func (t *WebFetchTool) Spec() tools.Spec {
	return tools.Spec{
		Name:        "webfetch",
		Description: "Fetch a URL and return its text content (HTML will be converted to plain text).",
		Parameters: tools.MustSchema(map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "The URL to fetch.",
				},
				"timeout": map[string]any{
					"type":        "integer",
					"description": "Timeout seconds (default 15).",
				},
				"max_chars": map[string]any{
					"type":        "integer",
					"description": "Max characters to return (default 12000).",
				},
				"format": map[string]any{
					"type":        "string",
					"description": "Output format for HTML pages: text (default) or markdown.",
					"enum":        []string{"text", "markdown"},
				},
				"headers": map[string]any{
					"type":                 "object",
					"description":          "Optional HTTP headers.",
					"additionalProperties": map[string]any{"type": "string"},
				},
			},
			"required": []string{"url"},
		}),
		Permission: "read",
	}
}

func (t *WebFetchTool) Execute(ctx context.Context, tctx tools.Context, args json.RawMessage) tools.Result {
	_ = tctx
	var input struct {
		URL      string            `json:"url"`
		Timeout  int               `json:"timeout"`
		MaxChars int               `json:"max_chars"`
		Format   string            `json:"format"`
		Headers  map[string]string `json:"headers"`
	}
	if err := json.Unmarshal(args, &input); err != nil {
		return tools.Errorf("Invalid arguments: %v", err)
	}
	url := strings.TrimSpace(input.URL)
	if url == "" {
		return tools.Errorf("Missing required field: url")
	}
	timeout := input.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxChars := input.MaxChars
	if maxChars <= 0 {
		maxChars = defaultMax
	}

	reqCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return tools.Errorf("webfetch failed: %v", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range input.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return tools.Errorf("webfetch failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return tools.Errorf("webfetch failed: HTTP Error %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return tools.Errorf("webfetch failed: %v", err)
	}

	text, err := decodeBody(raw)
	if err != nil {
		return tools.Errorf("webfetch failed: could not decode response body")
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.Contains(contentType, "html") || strings.Contains(strings.ToLower(text), "<html") {
		text = renderHTML(text, input.Format)
	}

	if len(text) > maxChars {
		head := text[:maxChars/2]
		tail := text[len(text)-(maxChars-maxChars/2):]
		text = head + "\n\n... (truncated) ...\n\n" + tail
	}
	return tools.Text(text)
}

// decodeBody decodes as UTF-8 when valid and falls back to Latin-1,
// which accepts any byte sequence.
func decodeBody(raw []byte) (string, error) {
	raw = bytes.TrimPrefix(raw, []byte{0xef, 0xbb, 0xbf})
	if utf8.Valid(raw) {
		return string(raw), nil
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

// renderHTML strips boilerplate and renders the page as plain text or
// markdown. Unparseable input comes back unchanged.
func renderHTML(text, format string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		return text
	}
	doc.Find("script,style,noscript").Remove()

	if strings.EqualFold(format, "markdown") {
		if out, err := htmlToMarkdown(doc); err == nil {
			return strings.TrimSpace(out)
		}
	}

	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if s := strings.TrimSpace(n.Data); s != "" {
				parts = append(parts, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range doc.Nodes {
		walk(n)
	}
	joined := strings.Join(parts, "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(joined, "\n\n"))
}

func htmlToMarkdown(doc *goquery.Document) (string, error) {
	body, err := doc.Find("body").Html()
	if err != nil || strings.TrimSpace(body) == "" {
		if err != nil {
			return "", err
		}
		return "", fmt.Errorf("empty body")
	}
	converter := md.NewConverter("", true, nil)
	return converter.ConvertString(body)
}
