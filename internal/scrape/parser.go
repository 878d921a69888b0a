// Package scrape extracts release records from Bandcamp "new release"
// notification emails.
//
// The emails carry no structured payload, so this is text archaeology over a
// known template: "<page> just released <title> by <artist>, check it out
// here" (or "just announced"), with the release title as the only italicized
// text, and a link to the album/track page.
package scrape

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/release"
)

const subjectPrefix = "new release from"

var (
	releasePhraseRe = regexp.MustCompile(`(?i)just\s+(?:released|announced)`)
	callToActionRe  = regexp.MustCompile(`(?i),\s*check it out here`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// ParseRelease turns one notification email into a release record. Returns
// ok=false for non-matching emails: a subject without the expected prefix, or
// a body without a recognizable Bandcamp release link. The release date is
// the email's received date.
func ParseRelease(htmlText, subject string, received time.Time) (release.Release, bool) {
	if subject != "" && !strings.HasPrefix(strings.ToLower(subject), subjectPrefix) {
		return release.Release{}, false
	}
	if htmlText == "" {
		return release.Release{}, false
	}

	doc, err := html.Parse(strings.NewReader(htmlText))
	if err != nil {
		return release.Release{}, false
	}

	releaseURL := findReleaseLink(doc)
	if releaseURL == "" {
		return release.Release{}, false
	}

	rel := release.Release{
		URL:     releaseURL,
		IsTrack: strings.Contains(releaseURL, "bandcamp.com/track"),
		Title:   findItalicTitle(doc),
	}
	if !received.IsZero() {
		rel.Date = core.FormatDate(received)
	}

	rel.PageName, rel.Artist = parseBodyText(collectText(doc), rel.Title)
	return rel, true
}

// findReleaseLink returns the first anchor pointing at a Bandcamp album or
// track page, with query string and fragment stripped.
func findReleaseLink(doc *html.Node) string {
	var found string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "a" {
			return true
		}
		href := attr(n, "href")
		if href == "" || !strings.Contains(href, "bandcamp.com") {
			return true
		}
		if !strings.Contains(href, "/album/") && !strings.Contains(href, "/track/") {
			return true
		}
		u, err := url.Parse(href)
		if err != nil {
			return true
		}
		u.RawQuery = ""
		u.Fragment = ""
		found = u.String()
		return false
	})
	return found
}

// findItalicTitle returns the text of the first italicized span; the release
// title is the only italicized text in the notification template.
func findItalicTitle(doc *html.Node) string {
	var title string
	walk(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.Data != "span" {
			return true
		}
		if !strings.Contains(attr(n, "style"), "font-style: italic") {
			return true
		}
		title = strings.TrimSpace(collectText(n))
		return false
	})
	return title
}

// parseBodyText recovers the page name and artist from the flattened body
// text. The leading "Greetings <user>," sentence and the trailing
// call-to-action are stripped first.
func parseBodyText(fullText, title string) (pageName, artist string) {
	fullText = strings.TrimSpace(fullText)
	if strings.HasPrefix(strings.ToLower(fullText), "greetings ") {
		if _, rest, ok := strings.Cut(fullText, ","); ok {
			fullText = strings.TrimSpace(rest)
		}
	}
	if loc := callToActionRe.FindStringIndex(fullText); loc != nil {
		fullText = strings.TrimSpace(fullText[:loc[0]])
	}

	loc := releasePhraseRe.FindStringIndex(fullText)
	if loc == nil {
		return "", ""
	}
	pageName = strings.TrimSpace(fullText[:loc[0]])
	after := strings.TrimSpace(fullText[loc[1]:])

	if title != "" {
		byRe, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(title) + `\s+by\s+(.+)$`)
		if err == nil {
			if m := byRe.FindStringSubmatch(after); m != nil {
				artist = strings.TrimSpace(m[1])
			}
		}
	}
	return pageName, artist
}

// collectText flattens all text nodes under n, space-separated.
func collectText(n *html.Node) string {
	var b strings.Builder
	walk(n, func(node *html.Node) bool {
		if node.Type == html.TextNode {
			if text := strings.TrimSpace(node.Data); text != "" {
				if b.Len() > 0 {
					b.WriteByte(' ')
				}
				b.WriteString(text)
			}
		}
		return true
	})
	return spaceRe.ReplaceAllString(b.String(), " ")
}

// walk visits nodes depth-first until fn returns false.
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
