// validate parses a saved feed payload and reports what the ingestion
// pipeline would accept, useful when diagnosing dead-lettered runs:
//
//	validate -source isc -file bulletin.xml
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/couchcryptid/quake-stream/internal/domain"
	"github.com/couchcryptid/quake-stream/internal/parser"
)

func main() {
	var (
		sourceName = flag.String("source", "", "source agency (usgs, emsc, gfz, isc, ipgp, geonet)")
		file       = flag.String("file", "", "path to a saved feed payload")
		reviewed   = flag.String("reviewed-catalogs", "", "comma-separated reviewed catalog names (text feeds)")
	)
	flag.Parse()

	if *sourceName == "" || *file == "" {
		flag.Usage()
		os.Exit(2)
	}

	source := domain.Source(strings.ToLower(*sourceName))
	p, ok := parser.ForSource(source, splitList(*reviewed))
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown source: %s\n", *sourceName)
		os.Exit(2)
	}

	payload, err := os.ReadFile(*file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read payload: %v\n", err)
		os.Exit(1)
	}

	events, err := p.Parse(string(payload), time.Now().UTC())
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse failed: %v\n", err)
		os.Exit(1)
	}

	accepted, rejected := 0, 0
	for _, e := range events {
		if violations := domain.Validate(e); len(violations) > 0 {
			rejected++
			fmt.Printf("REJECT %-24s %s\n", e.EventUID, strings.Join(violations, "; "))
			continue
		}
		accepted++
		fmt.Printf("OK     %-24s %s  M%.1f %-4s (%.3f, %.3f) depth %.1f km  %s\n",
			e.EventUID, e.OriginTimeUTC.Format(time.RFC3339),
			e.MagnitudeValue, e.MagnitudeType,
			e.Latitude, e.Longitude, e.DepthKM, e.Status)
	}

	fmt.Printf("\n%d events parsed: %d accepted, %d rejected\n", len(events), accepted, rejected)
	if rejected > 0 {
		os.Exit(1)
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
