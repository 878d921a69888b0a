package cli

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcfeed/bcfeed/internal/core"
	"github.com/bcfeed/bcfeed/internal/engine"
	"github.com/bcfeed/bcfeed/internal/gmail"
	"github.com/bcfeed/bcfeed/internal/output"
	"github.com/bcfeed/bcfeed/internal/scrape"
	"github.com/bcfeed/bcfeed/internal/store"
)

func init() {
	// Add all subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(populateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(releasesCmd)
	rootCmd.AddCommand(resetCmd)

	// Serve command flags
	serveCmd.Flags().String("addr", core.DefaultAddr, "Listen address for the dashboard API")

	// Populate command flags
	populateCmd.Flags().String("start", "", "Start date (YYYY-MM-DD), required")
	populateCmd.Flags().String("end", "", "End date (YYYY-MM-DD), defaults to start")
	populateCmd.Flags().Int("max-results", core.MaxResultsHard, "Abort if a Gmail query matches more messages than this")
	populateCmd.Flags().IntP("batch", "b", core.DefaultBatchSize, "Message download batch size")
	populateCmd.Flags().Bool("cache-only", false, "Use cached data only; skip Gmail requests")
	_ = populateCmd.MarkFlagRequired("start")

	// Status command flags
	statusCmd.Flags().String("start", "", fmt.Sprintf("Start date (default: %d days ago)", core.StatusWindowDays))
	statusCmd.Flags().String("end", "", "End date (default: today)")

	// Releases command flags
	releasesCmd.Flags().Bool("json", false, "Emit indented JSON instead of a table")
	releasesCmd.Flags().Bool("compact", false, "Emit a compact JSON array")

	// Reset command flags
	resetCmd.Flags().Bool("cache", false, "Remove the release cache and scrape bookkeeping")
	resetCmd.Flags().Bool("viewed", false, "Remove the viewed-state file")
	resetCmd.Flags().Bool("starred", false, "Remove the starred-state file")
	resetCmd.Flags().Bool("token", false, "Remove the saved Gmail token")
}

var populateCmd = &cobra.Command{
	Use:   "populate",
	Short: "Scrape Gmail for Bandcamp releases in a date range",
	RunE:  handlePopulate,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which days of a range have been scraped",
	RunE:  handleStatus,
}

var releasesCmd = &cobra.Command{
	Use:   "releases",
	Short: "Print every cached release",
	RunE:  handleReleases,
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Remove cached data files",
	RunE:  handleReset,
}

func handlePopulate(cmd *cobra.Command, args []string) error {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")
	maxResults, _ := cmd.Flags().GetInt("max-results")
	batch, _ := cmd.Flags().GetInt("batch")
	cacheOnly, _ := cmd.Flags().GetBool("cache-only")

	start, err := core.ParseDate(startStr)
	if err != nil {
		return err
	}
	end := start
	if endStr != "" {
		if end, err = core.ParseDate(endStr); err != nil {
			return err
		}
	}

	dir := resolveDataDir()
	eng := engine.New(store.NewFileStore(dir))
	client := gmail.NewClient(dir, verbose)

	_, err = eng.PopulateReleaseCache(cmd.Context(), client, scrape.ParseRelease, start, end, engine.PopulateOptions{
		MaxResults: maxResults,
		BatchSize:  batch,
		CacheOnly:  cacheOnly,
		Log: func(msg string) {
			core.ProgressPrint(msg, quiet)
		},
	})
	return err
}

func handleStatus(cmd *cobra.Command, args []string) error {
	startStr, _ := cmd.Flags().GetString("start")
	endStr, _ := cmd.Flags().GetString("end")

	today := core.DateOnly(time.Now())
	start := today.AddDate(0, 0, -core.StatusWindowDays)
	end := today
	var err error
	if startStr != "" {
		if start, err = core.ParseDate(startStr); err != nil {
			return err
		}
	}
	if endStr != "" {
		if end, err = core.ParseDate(endStr); err != nil {
			return err
		}
	}
	if start.After(end) {
		return engine.ErrInvalidRange
	}

	eng := engine.New(store.NewFileStore(resolveDataDir()))
	status := eng.ScrapeStatusForRange(start, end)
	days := make([]string, 0, len(status))
	for day := range status {
		days = append(days, day)
	}
	sort.Strings(days)

	scraped := 0
	for _, day := range days {
		state := "missing"
		if status[day] {
			state = "scraped"
			scraped++
		}
		fmt.Printf("%s  %s\n", day, state)
	}
	fmt.Printf("%d of %d days scraped\n", scraped, len(days))
	return nil
}

func handleReleases(cmd *cobra.Command, args []string) error {
	asJSON, _ := cmd.Flags().GetBool("json")
	compact, _ := cmd.Flags().GetBool("compact")

	eng := engine.New(store.NewFileStore(resolveDataDir()))
	releases := eng.FullReleaseCache()

	switch {
	case compact:
		output.StreamReleases(releases)
	case asJSON:
		output.PrintJSON(releases)
	default:
		output.PrintReleaseTable(releases)
	}
	return nil
}

func handleReset(cmd *cobra.Command, args []string) error {
	clearCache, _ := cmd.Flags().GetBool("cache")
	clearViewed, _ := cmd.Flags().GetBool("viewed")
	clearStarred, _ := cmd.Flags().GetBool("starred")
	clearToken, _ := cmd.Flags().GetBool("token")

	var targets []string
	if clearCache {
		targets = append(targets,
			core.ReleaseCacheFile, core.EmptyDatesFile, core.ScrapeStatusFile, core.EmbedCacheFile)
	}
	if clearViewed {
		targets = append(targets, core.ViewedStateFile)
	}
	if clearStarred {
		targets = append(targets, core.StarredStateFile)
	}
	if clearToken {
		targets = append(targets, core.TokenFile)
	}
	if len(targets) == 0 {
		return fmt.Errorf("nothing selected; pass --cache, --viewed, --starred, or --token")
	}

	files := store.NewFileStore(resolveDataDir())
	removed, err := files.RemoveDocuments(targets...)
	for _, name := range removed {
		core.ProgressPrint(fmt.Sprintf("Removed %s", name), quiet)
	}
	if len(removed) == 0 {
		core.ProgressPrint("Nothing to remove.", quiet)
	}
	return err
}
