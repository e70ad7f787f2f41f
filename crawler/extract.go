package crawler

import (
	"bytes"
	"io"
	"net/url"

	"golang.org/x/net/html"
)

// defaultTitle is returned by ParseTitle when a document has no <title>.
const defaultTitle = "No title"

// ParseTitle returns the text content of the first <title> element, or
// defaultTitle if none is present. It is a pure function over the response
// body: malformed HTML yields whatever was parseable before the document ends.
func ParseTitle(body io.Reader) string {
	tokenizer := html.NewTokenizer(body)
	inTitle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return defaultTitle
		case html.StartTagToken:
			token := tokenizer.Token()
			if token.Data == "title" {
				inTitle = true
			}
		case html.EndTagToken:
			token := tokenizer.Token()
			if token.Data == "title" {
				return defaultTitle
			}
		case html.TextToken:
			if inTitle {
				text := string(tokenizer.Text())
				if len(bytes.TrimSpace([]byte(text))) > 0 {
					return text
				}
			}
		}
	}
}

// ParseLinks extracts every <a href> in document order, resolving each href
// against baseURL. Hrefs that fail to resolve are silently dropped; no
// deduplication or scheme filtering happens here — the admission pipeline
// (visited set, URL filter, robots) is responsible for narrowing the result.
func ParseLinks(body io.Reader, baseURL *url.URL) []string {
	tokenizer := html.NewTokenizer(body)
	var links []string

	for {
		tokenType := tokenizer.Next()
		if tokenType == html.ErrorToken {
			return links
		}
		if tokenType != html.StartTagToken && tokenType != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		if token.Data != "a" {
			continue
		}

		for _, attr := range token.Attr {
			if attr.Key != "href" {
				continue
			}
			hrefURL, err := url.Parse(attr.Val)
			if err != nil {
				continue
			}
			resolved := baseURL.ResolveReference(hrefURL)
			links = append(links, resolved.String())
		}
	}
}
