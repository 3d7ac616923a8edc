package connectors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/custodia-labs/remotesync/internal/core/ports/driven"
)

// linkRegex matches Link header entries: <url>; rel="type".
var linkRegex = regexp.MustCompile(`<([^>]+)>;\s*rel="([^"]+)"`)

// ParseNextLink extracts the "next" URL from a Link header.
// Returns empty string if no next link is found.
func ParseNextLink(linkHeader string) string {
	return ParseAllLinks(linkHeader)["next"]
}

// ParseAllLinks extracts all URLs from a Link header by relationship type.
func ParseAllLinks(linkHeader string) map[string]string {
	links := make(map[string]string)
	if linkHeader == "" {
		return links
	}

	for _, part := range strings.Split(linkHeader, ",") {
		matches := linkRegex.FindStringSubmatch(strings.TrimSpace(part))
		if len(matches) == 3 {
			// rel may hold several space-separated types.
			for _, rel := range strings.Fields(matches[2]) {
				links[rel] = matches[1]
			}
		}
	}
	return links
}

// DecodeArrayPage decodes a JSON array body whose next page is announced in
// the Link header. GitHub and GitLab paginate this way.
func DecodeArrayPage(resp *http.Response, body []byte) (driven.Page, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return driven.Page{}, fmt.Errorf("decode page: %w", err)
	}
	return driven.Page{
		Items: items,
		Next:  ParseNextLink(resp.Header.Get("Link")),
	}, nil
}
