// Command genmock builds the DONKI CME fixture used by the test suites. It
// reads a saved CMEAnalysis response (or fetches one live), checks it against
// the raw schema, and optionally writes the transformed batch produced by the
// real domain package so fixtures always match pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -in saved_response.json \
//	  -out data/mock/cme_analysis_2024-03-15.json \
//	  -transformed-out data/mock/cme_records_2024-03-15.json
//
//	go run ./cmd/genmock -fetch -date 2024-03-15 -api-key "$DONKI_API_KEY" \
//	  -out data/mock/cme_analysis_2024-03-15.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/cme-data-etl/internal/adapter/donki"
	"github.com/couchcryptid/cme-data-etl/internal/domain"
)

const defaultDate = "2024-03-15"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "saved DONKI CMEAnalysis JSON response")
	fetch := flag.Bool("fetch", false, "fetch the window live from the DONKI API instead of -in")
	date := flag.String("date", defaultDate, "process date (YYYY-MM-DD)")
	apiKey := flag.String("api-key", "DEMO_KEY", "DONKI API key for -fetch")
	baseURL := flag.String("base-url", donki.DefaultBaseURL, "DONKI CMEAnalysis endpoint for -fetch")
	out := flag.String("out", "", "output path for the raw fixture")
	transformedOut := flag.String("transformed-out", "", "optional output path for the transformed records")
	flag.Parse()

	if *out == "" || (*in == "") == !*fetch {
		flag.Usage()
		return fmt.Errorf("need -out and exactly one of -in or -fetch")
	}

	processDate, err := domain.ParseProcessDate(*date)
	if err != nil {
		return err
	}

	// Fixed clock so fetched_at and run timestamps are reproducible.
	domain.SetClock(clockwork.NewFakeClockAt(processDate.Time().Add(6 * time.Hour)))
	defer domain.SetClock(nil)

	var raw []domain.RawCME
	if *fetch {
		raw, err = fetchLive(*baseURL, *apiKey, processDate)
	} else {
		raw, err = readRaw(*in)
	}
	if err != nil {
		return err
	}

	batch, err := domain.NewRawBatch(raw)
	if err != nil {
		return fmt.Errorf("fixture violates raw schema: %w", err)
	}
	log.Printf("raw: %d records in window %s..%s", len(batch), processDate.Window().Start, processDate.Window().End)

	if err := writeJSON(*out, batch); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *out)

	output, err := domain.Transform(batch, domain.DefaultRules())
	if err != nil {
		return fmt.Errorf("transform fixture: %w", err)
	}

	if *transformedOut != "" {
		if err := writeJSON(*transformedOut, output.Records); err != nil {
			return fmt.Errorf("writing transformed fixture: %w", err)
		}
		log.Printf("wrote transformed fixture: %s", *transformedOut)
	}

	printStats(output)
	return nil
}

func fetchLive(baseURL, apiKey string, date domain.ProcessDate) ([]domain.RawCME, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	client := donki.NewClient(baseURL, apiKey, 60*time.Second, logger, nil)

	res, err := client.Extract(context.Background(), date)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", res.URL, err)
	}
	return res.Records, nil
}

func readRaw(path string) ([]domain.RawCME, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var records []domain.RawCME
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return records, nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(data, '\n'), 0o600)
}

func printStats(out domain.TransformOutput) {
	fmt.Println("\n=== Fixture Statistics ===")
	fmt.Printf("Records kept: %d\n", len(out.Records))
	fmt.Printf("Dropped incomplete: %d\n", out.DroppedIncomplete)
	fmt.Printf("Dropped duplicates: %d\n", out.DroppedDuplicates)

	byType := map[string]int{}
	byCatalog := map[string]int{}
	var nullNotes, nullLinks, nullAssociated int
	var maxSpeed float64
	var fastest string
	for i := range out.Records {
		r := &out.Records[i]
		byType[r.TypeEvent]++
		if r.CatalogEvent != nil {
			byCatalog[*r.CatalogEvent]++
		}
		if r.Note == nil {
			nullNotes++
		}
		if r.Link == nil {
			nullLinks++
		}
		if r.AssociatedCMEID == nil {
			nullAssociated++
		}
		if r.Speed > maxSpeed {
			maxSpeed, fastest = r.Speed, r.DatetimeEvent
		}
	}

	printCounts("By type", byType)
	printCounts("By catalog", byCatalog)
	fmt.Printf("\nNull note: %d, null link: %d, null associatedCMEID: %d\n", nullNotes, nullLinks, nullAssociated)
	fmt.Printf("Fastest: %g km/s at %s\n", maxSpeed, fastest)

	fmt.Printf("\nAnomalies: %d\n", len(out.Anomalies))
	for _, a := range out.Anomalies {
		fmt.Printf("  %s\n", a)
	}
}

func printCounts(title string, counts map[string]int) {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Printf("\n%s:\n", title)
	for _, k := range keys {
		fmt.Printf("  %-14s %d\n", k, counts[k])
	}
}
