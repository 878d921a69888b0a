package server

import (
	"fmt"
	"io"
	"net/http"

	"github.com/bcfeed/bcfeed/internal/bandcamp"
	"github.com/bcfeed/bcfeed/internal/store"
)

// handleEmbedMeta proxies a Bandcamp release page fetch on behalf of the
// dashboard (the page itself blocks cross-origin reads), extracts the embed
// player metadata and description, persists them, and returns them.
func (s *Server) handleEmbedMeta(w http.ResponseWriter, r *http.Request) {
	releaseURL := r.URL.Query().Get("url")
	if releaseURL == "" {
		writeError(w, http.StatusBadRequest, "Missing url parameter")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, releaseURL, nil)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch Bandcamp page: %v", err))
		return
	}
	req.Header.Set("User-Agent", "bcfeed/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch Bandcamp page: %v", err))
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch Bandcamp page: status %d", resp.StatusCode))
		return
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("Failed to fetch Bandcamp page: %v", err))
		return
	}

	pageHTML := string(body)
	meta, err := bandcamp.ExtractPageMeta(pageHTML)
	if err != nil {
		writeError(w, http.StatusNotFound, "Unable to find bc-page-properties meta")
		return
	}
	description := bandcamp.ExtractDescription(pageHTML)
	isTrack := meta.IsTrack()
	embedURL := bandcamp.BuildEmbedURL(meta.ItemID, isTrack)

	s.persistEmbedMeta(releaseURL, store.EmbedMeta{
		ReleaseID:   &meta.ItemID,
		IsTrack:     &isTrack,
		EmbedURL:    embedURL,
		Description: description,
	})

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"release_id":  meta.ItemID,
		"is_track":    isTrack,
		"embed_url":   embedURL,
		"description": description,
	})
}

// persistEmbedMeta merges new fields into any previously cached entry so a
// fetch that found no description does not clobber one that did.
func (s *Server) persistEmbedMeta(url string, meta store.EmbedMeta) {
	cache := s.files.LoadEmbedCache()
	existing := cache[url]
	if meta.ReleaseID != nil {
		existing.ReleaseID = meta.ReleaseID
	}
	if meta.IsTrack != nil {
		existing.IsTrack = meta.IsTrack
	}
	if meta.EmbedURL != "" {
		existing.EmbedURL = meta.EmbedURL
	}
	if meta.Description != "" {
		existing.Description = meta.Description
	}
	cache[url] = existing
	if err := s.files.SaveEmbedCache(cache); err != nil {
		s.logger.Error().Err(err).Str("url", url).Msg("failed to persist embed metadata")
	}
}
