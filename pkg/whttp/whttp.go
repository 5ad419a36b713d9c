package whttp

import (
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

// DefaultTimeout bounds a single request; retrying is the caller's concern.
const DefaultTimeout = 30 * time.Second

type Header struct {
	Name  string
	Value string
}

type Request struct {
	URL     string
	Method  string
	Headers []Header
}

type Response struct {
	StatusCode int
	Body       string
	HTMLTitle  string
}

// Send performs a single browser-like HTTP request. Responses are requested
// uncached so live-status polling never sees an intermediary's stale copy.
// A nil client gets a fresh one with DefaultTimeout.
func Send(wReq *Request, client *http.Client) (*Response, error) {
	method := wReq.Method
	if method == "" {
		method = "GET"
	}

	req, err := http.NewRequest(method, wReq.URL, nil)
	if err != nil {
		return nil, err
	}

	// Set common headers
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:83.0) Gecko/20100101 Firefox/83.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/json;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")

	// Set custom headers
	for _, h := range wReq.Headers {
		req.Header.Add(h.Name, h.Value)
	}

	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	wRes := &Response{
		StatusCode: resp.StatusCode,
		Body:       string(bodyBytes),
	}

	if title, ok := getHTMLTitle(wRes.Body); ok {
		title = strings.ReplaceAll(strings.ReplaceAll(title, "\n", ""), "\r", "")
		wRes.HTMLTitle = strings.ToValidUTF8(strings.TrimSpace(title), "")
	}

	return wRes, nil
}

func isTitleElement(n *html.Node) bool {
	return n.Type == html.ElementNode && n.Data == "title"
}

func traverse(n *html.Node) (string, bool) {
	if isTitleElement(n) {
		if n.FirstChild != nil {
			return n.FirstChild.Data, true
		}
		return "", true
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		result, ok := traverse(c)
		if ok {
			return result, ok
		}
	}

	return "", false
}

func getHTMLTitle(body string) (string, bool) {
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		return "", false
	}

	return traverse(doc)
}
