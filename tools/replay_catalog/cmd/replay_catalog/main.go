package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"diamondsim/engine/tools/replay_catalog"
)

func main() {
	root := flag.String("dir", "replays", "directory containing replay bundles")
	jsonFlag := flag.Bool("json", false, "emit JSON instead of human-readable output")
	flag.Parse()

	entries, err := replaycatalog.List(*root)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if *jsonFlag {
		payload, err := replaycatalog.MarshalEntries(entries)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(string(payload))
		return
	}

	for _, entry := range entries {
		h := entry.Header
		fmt.Printf("%s %s (seed %d, %d runs)\n", h.PlayID, h.Result, h.Seed, h.Runs)
		if len(h.Launch) > 0 {
			keys := make([]string, 0, len(h.Launch))
			for key := range h.Launch {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				fmt.Printf("    %s: %.1f\n", key, h.Launch[key])
			}
		}
		fmt.Printf("  bundle: %s\n", entry.BundlePath)
	}

	tally := replaycatalog.Tally(entries)
	results := make([]string, 0, len(tally))
	for result := range tally {
		results = append(results, result)
	}
	sort.Strings(results)
	for _, result := range results {
		fmt.Printf("%-28s %d\n", result, tally[result])
	}
}
