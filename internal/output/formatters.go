// Package output provides output formatting utilities for the bcfeed CLI.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/bcfeed/bcfeed/internal/release"
)

// StreamReleases writes releases as a compact JSON array, one element at a
// time so large caches don't need a second full copy in memory.
func StreamReleases(releases []release.Release) {
	fmt.Print("[")
	for i, rel := range releases {
		if i > 0 {
			fmt.Print(",")
		}
		data, err := json.Marshal(rel)
		if err != nil {
			continue
		}
		os.Stdout.Write(data)
	}
	fmt.Println("]")
}

// PrintReleaseTable writes an aligned date/artist/title listing.
func PrintReleaseTable(releases []release.Release) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tARTIST\tTITLE\tURL")
	for _, rel := range releases {
		artist := rel.Artist
		if artist == "" {
			artist = rel.PageName
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rel.Date, artist, rel.Title, rel.URL)
	}
	w.Flush()
}

// PrintJSON prints a single item as formatted JSON.
func PrintJSON(item interface{}) {
	data, err := json.MarshalIndent(item, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding JSON: %v\n", err)
		return
	}
	fmt.Println(string(data))
}
