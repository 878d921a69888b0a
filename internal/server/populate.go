package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/hlog"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/engine"
	"github.com/bcfeed/bcfeed/internal/gmail"
	"github.com/bcfeed/bcfeed/internal/scrape"
)

func sseHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// sseError replies with a single SSE error event. Populate failures that
// happen before the stream starts (bad args, missing credentials, another run
// in flight) all surface this way so the dashboard handles one shape.
func sseError(w http.ResponseWriter, r *http.Request, msg string) {
	hlog.FromRequest(r).Error().Msg(msg)
	sseHeaders(w)
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", msg)
}

// handlePopulateStream runs a populate for the requested window and streams
// its progress lines as server-sent events. Only one populate may run at a
// time across all connections.
func (s *Server) handlePopulateStream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	startArg := q.Get("start")
	if startArg == "" {
		startArg = q.Get("from")
	}
	endArg := q.Get("end")
	if endArg == "" {
		endArg = startArg
	}
	if startArg == "" {
		sseError(w, r, "Missing start/end")
		return
	}
	maxResults := core.MaxResultsHard
	if arg := q.Get("max_results"); arg != "" {
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			sseError(w, r, "Invalid max_results")
			return
		}
		maxResults = n
	}

	start, err := core.ParseDate(startArg)
	if err != nil {
		sseError(w, r, "Invalid start/end")
		return
	}
	end, err := core.ParseDate(endArg)
	if err != nil {
		sseError(w, r, "Invalid start/end")
		return
	}
	if start.After(end) {
		sseError(w, r, "Invalid start/end")
		return
	}

	fetcher := s.fetcher
	if fetcher == nil {
		client := gmail.NewClient(s.dataDir, s.verbose)
		if !client.HasCredentials() {
			sseError(w, r, "Credentials not found. Reload credentials in the settings panel.")
			return
		}
		if !client.HasToken() {
			sseError(w, r, "Gmail token missing. Reload credentials in the settings panel to re-authenticate.")
			return
		}
		fetcher = client
	}

	if !s.populateMu.TryLock() {
		sseError(w, r, "Another populate is already running")
		return
	}
	defer s.populateMu.Unlock()

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx := r.Context()
	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		send := func(msg string) {
			select {
			case lines <- msg:
			case <-ctx.Done():
			}
		}

		_, err := s.engine.PopulateReleaseCache(ctx, fetcher, scrape.ParseRelease, start, end, engine.PopulateOptions{
			MaxResults: maxResults,
			BatchSize:  core.DefaultBatchSize,
			Log:        send,
		})
		var maxErr *engine.MaxResultsExceededError
		switch {
		case err == nil:
			send("Populate completed.")
		case errors.As(err, &maxErr):
			send(fmt.Sprintf("Maximum results reached (%d/%d).", maxErr.Found, maxErr.MaxResults))
		default:
			send(fmt.Sprintf("ERROR: %v", err))
		}
	}()

	sseHeaders(w)
	flusher.Flush()
	for line := range lines {
		fmt.Fprintf(w, "data: %s\n\n", strings.ReplaceAll(line, "\n", " "))
		flusher.Flush()
	}
	fmt.Fprint(w, "event: done\ndata: complete\n\n")
	flusher.Flush()
}
