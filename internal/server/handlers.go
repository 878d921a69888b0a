package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/release"
)

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"title":                "bcfeed",
		"version":              core.Version,
		"embed_proxy_url":      fmt.Sprintf("%s://%s/embed-meta", scheme, r.Host),
		"has_token":            fileExists(s.files.Path(core.TokenFile)),
		"default_theme":        "light",
		"clear_status_on_load": false,
		"show_dev_settings":    false,
	})
}

// releasePayload is a Release overlaid with embed metadata from the embed
// cache for URLs the dashboard has already enriched.
type releasePayload struct {
	release.Release
	EmbedURL    string `json:"embed_url,omitempty"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleReleases(w http.ResponseWriter, r *http.Request) {
	releases := s.engine.FullReleaseCache()
	embeds := s.files.LoadEmbedCache()

	payload := make([]releasePayload, 0, len(releases))
	for _, rel := range releases {
		item := releasePayload{Release: rel}
		if meta, ok := embeds[rel.URL]; ok {
			if meta.EmbedURL != "" {
				item.EmbedURL = meta.EmbedURL
			}
			if meta.ReleaseID != nil {
				item.ReleaseID = meta.ReleaseID
			}
			if meta.IsTrack != nil {
				item.IsTrack = *meta.IsTrack
			}
			if meta.Description != "" {
				item.Description = meta.Description
			}
		}
		payload = append(payload, item)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"releases": payload})
}

func (s *Server) handleScrapeStatus(w http.ResponseWriter, r *http.Request) {
	today := core.DateOnly(s.now())
	start := today.AddDate(0, 0, -core.StatusWindowDays)
	end := today

	var err error
	if arg := r.URL.Query().Get("start"); arg != "" {
		if start, err = core.ParseDate(arg); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start/end date")
			return
		}
	}
	if arg := r.URL.Query().Get("end"); arg != "" {
		if end, err = core.ParseDate(arg); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid start/end date")
			return
		}
	}
	if start.After(end) {
		writeError(w, http.StatusBadRequest, "Invalid start/end date")
		return
	}

	status := s.engine.ScrapeStatusForRange(start, end)
	scraped := make([]string, 0, len(status))
	notScraped := make([]string, 0)
	for day, isScraped := range status {
		if isScraped {
			scraped = append(scraped, day)
		} else {
			notScraped = append(notScraped, day)
		}
	}
	sort.Strings(scraped)
	sort.Strings(notScraped)
	writeJSON(w, http.StatusOK, map[string][]string{
		"scraped":     scraped,
		"not_scraped": notScraped,
	})
}

func (s *Server) handleViewedGet(w http.ResponseWriter, r *http.Request) {
	s.handleStateGet(w, core.ViewedStateFile, "viewed")
}

func (s *Server) handleViewedPost(w http.ResponseWriter, r *http.Request) {
	s.handleStatePost(w, r, core.ViewedStateFile, "read")
}

func (s *Server) handleStarredGet(w http.ResponseWriter, r *http.Request) {
	s.handleStateGet(w, core.StarredStateFile, "starred")
}

func (s *Server) handleStarredPost(w http.ResponseWriter, r *http.Request) {
	s.handleStatePost(w, r, core.StarredStateFile, "starred")
}

func (s *Server) handleStateGet(w http.ResponseWriter, file, key string) {
	items := s.files.LoadStringSet(file)
	sorted := make([]string, 0, len(items))
	for item := range items {
		sorted = append(sorted, item)
	}
	sort.Strings(sorted)
	writeJSON(w, http.StatusOK, map[string][]string{key: sorted})
}

// handleStatePost toggles one URL's membership in a persisted URL set. The
// flag field name differs per route ("read" vs "starred").
func (s *Server) handleStatePost(w http.ResponseWriter, r *http.Request, file, flagName string) {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing url or %s flag", flagName))
		return
	}
	var url string
	var flag *bool
	if raw, ok := body["url"]; ok {
		_ = json.Unmarshal(raw, &url)
	}
	if raw, ok := body[flagName]; ok {
		_ = json.Unmarshal(raw, &flag)
	}
	if url == "" || flag == nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Missing url or %s flag", flagName))
		return
	}

	items := s.files.LoadStringSet(file)
	if *flag {
		items[url] = struct{}{}
	} else {
		delete(items, url)
	}
	if err := s.files.SaveStringSet(file, items); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (s *Server) handleResetCaches(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ClearCache   bool `json:"clear_cache"`
		ClearViewed  bool `json:"clear_viewed"`
		ClearStarred bool `json:"clear_starred"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	var targets []string
	if body.ClearCache {
		targets = append(targets,
			core.ReleaseCacheFile, core.EmptyDatesFile, core.ScrapeStatusFile, core.EmbedCacheFile)
	}
	if body.ClearViewed {
		targets = append(targets, core.ViewedStateFile)
	}
	if body.ClearStarred {
		targets = append(targets, core.StarredStateFile)
	}

	cleared, err := s.files.RemoveDocuments(targets...)
	errs := []string{}
	if err != nil {
		errs = append(errs, err.Error())
	}
	if cleared == nil {
		cleared = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":      true,
		"cleared": cleared,
		"errors":  errs,
	})
}

func (s *Server) handleClearCredentials(w http.ResponseWriter, r *http.Request) {
	logs := []string{}
	removed, err := s.files.RemoveDocuments(core.TokenFile)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": err.Error(),
			"logs":  logs,
		})
		return
	}
	if len(removed) > 0 {
		logs = append(logs, "Removed saved Gmail token.")
	}
	logs = append(logs, "Credentials cleared.")
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "logs": logs})
}
