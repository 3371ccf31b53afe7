// Command dumpstream prints the stored streams for one media, for debugging
// ingest and filter behavior without going through the HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"mediafusion/config"
	"mediafusion/services/store"
)

func main() {
	var (
		configPath = flag.String("config", "cache/settings.json", "path to settings.json")
		mediaID    = flag.String("media", "", "external media id (tt... or mf...)")
		season     = flag.Int("season", 0, "season filter (0 = none)")
		episode    = flag.Int("episode", 0, "episode filter")
	)
	flag.Parse()

	if *mediaID == "" {
		flag.Usage()
		os.Exit(2)
	}

	settings, err := config.NewManager(*configPath).Load()
	if err != nil {
		log.Fatalf("load settings: %v", err)
	}

	st, err := store.New(settings.Database.Path)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	media, err := st.GetMediaByExternalID(ctx, *mediaID)
	if err != nil {
		log.Fatalf("lookup %s: %v", *mediaID, err)
	}

	streams, err := st.StreamsForMedia(ctx, media.ID, *season, *episode)
	if err != nil {
		log.Fatalf("list streams: %v", err)
	}

	fmt.Printf("%s (%s, %d): %d stream(s)\n", media.Title, media.Kind, media.Year, len(streams))
	for _, s := range streams {
		seeders := "-"
		if s.Seeders != nil {
			seeders = fmt.Sprintf("%d", *s.Seeders)
		}
		fmt.Printf("%s  %-6s %10d  seeds=%-5s votes=%-4d plays=%-4d %s  %s\n",
			s.InfoHash, s.Resolution, s.SizeBytes, seeders, s.VoteScore, s.PlaybackCount, s.Source, s.Name)
		for _, f := range s.Files {
			fmt.Printf("    [%d] %-8s S%02dE%02d %10d  %s\n", f.Index, f.Kind, f.Season, f.Episode, f.SizeBytes, f.Filename)
		}
	}
}
