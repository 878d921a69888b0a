// Package release defines the release record scraped from Bandcamp
// notification emails, plus the dedup utilities the cache engine relies on.
package release

// Release is one notification-derived record. URL is the unique key; it may
// be empty for malformed records. Date is the release's published date in
// YYYY-MM-DD form (derived from the email's Date header, not the query range).
// ReleaseID is filled later by the embed enrichment phase, not at scrape time.
type Release struct {
	URL       string `json:"url,omitempty"`
	Date      string `json:"date"`
	Artist    string `json:"artist,omitempty"`
	Title     string `json:"title,omitempty"`
	PageName  string `json:"page_name,omitempty"`
	IsTrack   bool   `json:"is_track"`
	ImgURL    string `json:"img_url,omitempty"`
	ReleaseID *int64 `json:"release_id,omitempty"`
}
