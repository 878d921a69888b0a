// Package bandcamp extracts embed metadata from Bandcamp release pages.
package bandcamp

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

const embedPlayerBase = "https://bandcamp.com/EmbeddedPlayer"

var multiNewlineRe = regexp.MustCompile(`\n{3,}`)

// PageMeta is the bc-page-properties payload every release page carries.
type PageMeta struct {
	ItemID   int64  `json:"item_id"`
	ItemType string `json:"item_type"`
}

// IsTrack reports whether the page is a single track rather than an album.
func (m PageMeta) IsTrack() bool {
	return m.ItemType == "track" || m.ItemType == "t"
}

// ExtractPageMeta finds the bc-page-properties meta tag and decodes its
// content. Some pages carry the payload with single quotes instead of valid
// JSON; that variant is normalized before a second decode attempt.
func ExtractPageMeta(htmlText string) (PageMeta, error) {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return PageMeta{}, err
	}

	raw := ""
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "meta" {
			return true
		}
		if attr(n, "name") != "bc-page-properties" {
			return true
		}
		raw = attr(n, "content")
		return false
	})
	if raw == "" {
		return PageMeta{}, fmt.Errorf("no bc-page-properties meta found")
	}

	var meta PageMeta
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		normalized := strings.ReplaceAll(raw, "'", `"`)
		if err := json.Unmarshal([]byte(normalized), &meta); err != nil {
			return PageMeta{}, fmt.Errorf("unparseable bc-page-properties: %w", err)
		}
	}
	return meta, nil
}

// ExtractDescription collects the release description from the tralbum-about
// and tralbum-credits blocks, falling back to the page's og:description.
func ExtractDescription(htmlText string) string {
	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return ""
	}

	var parts []string
	if about := findByIDOrClass(doc, "tralbum-about"); about != nil {
		if text := blockText(about); text != "" {
			parts = append(parts, text)
		}
	}
	if credits := findByIDOrClass(doc, "tralbum-credits"); credits != nil {
		if text := blockText(credits); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) > 0 {
		return strings.Join(parts, "\n\n")
	}

	desc := ""
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "meta" {
			return true
		}
		if attr(n, "property") != "og:description" && attr(n, "name") != "description" {
			return true
		}
		desc = strings.TrimSpace(attr(n, "content"))
		return desc == ""
	})
	return desc
}

// BuildEmbedURL returns the embedded-player URL for a release, or "" when the
// item id is unknown.
func BuildEmbedURL(itemID int64, isTrack bool) string {
	if itemID == 0 {
		return ""
	}
	kind := "album"
	if isTrack {
		kind = "track"
	}
	return fmt.Sprintf("%s/%s=%d/size=large/bgcol=ffffff/linkcol=0687f5/tracklist=true/artwork=small/transparent=true/", embedPlayerBase, kind, itemID)
}

// blockText flattens an element's text line by line, trimming each line and
// collapsing runs of blank lines.
func blockText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) bool {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
			b.WriteByte('\n')
		}
		return true
	})
	lines := strings.Split(strings.ReplaceAll(b.String(), "\r\n", "\n"), "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	text := strings.Join(lines, "\n")
	text = multiNewlineRe.ReplaceAllString(text, "\n\n")
	return strings.Trim(text, "\n")
}

func findByIDOrClass(doc *html.Node, name string) *html.Node {
	var found *html.Node
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if attr(n, "id") == name || strings.Contains(attr(n, "class"), name) {
			found = n
			return false
		}
		return true
	})
	return found
}

func walk(n *html.Node, fn func(*html.Node) bool) bool {
	if !fn(n) {
		return false
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

func attr(n *html.Node, name string) string {
	for _, a := range n.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}
