// Command validate performs offline integrity checks on the CME mock data:
// the raw DONKI fixture, the transform applied to it, and, when given, the
// transformed fixture written by genmock. It verifies the raw schema, the
// extraction window, batch invariants, and alignment with the warehouse
// column layout.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw-json data/mock/cme_analysis_2024-03-15.json \
//	  -transformed-json data/mock/cme_records_2024-03-15.json \
//	  -date 2024-03-15
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/cme-data-etl/internal/adapter/warehouse"
	"github.com/couchcryptid/cme-data-etl/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawJSON := flag.String("raw-json", "data/mock/cme_analysis_2024-03-15.json", "path to the raw DONKI fixture")
	transformedJSON := flag.String("transformed-json", "", "optional path to the transformed fixture")
	date := flag.String("date", "2024-03-15", "process date the fixture was captured for")
	flag.Parse()

	if *rawJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rawJSON, *transformedJSON, *date); code != 0 {
		os.Exit(code)
	}
}

func run(rawPath, transformedPath, date string) int {
	fmt.Println("=== CME Data Integrity Validation ===")
	fmt.Println()

	processDate, err := domain.ParseProcessDate(date)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	raw, err := loadJSON[domain.RawCME](rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw JSON: %v\n", err)
		return 1
	}

	output, err := domain.Transform(raw, domain.DefaultRules())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: transform raw fixture: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRawSchema(raw, processDate),
		validateTransform(raw, output),
		validateSchemaAlignment(output.Records, processDate),
	}
	if transformedPath != "" {
		stored, err := loadJSON[domain.CMERecord](transformedPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: load transformed JSON: %v\n", err)
			return 1
		}
		phases = append(phases, validateTransformedFixture(stored, output.Records))
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-46s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d raw, %d transformed (%d incomplete, %d duplicates dropped), %d anomalies\n",
		len(raw), len(output.Records), output.DroppedIncomplete, output.DroppedDuplicates, len(output.Anomalies))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Raw Schema ──
// Every record carries the required fields and falls inside the window.

func validateRawSchema(raw []domain.RawCME, date domain.ProcessDate) *phase {
	p := &phase{name: "Phase 1: Raw Schema (DONKI JSON)"}

	if _, err := domain.NewRawBatch(raw); err != nil {
		p.errorf("%v", err)
	}

	window := date.Window()
	if window.Days() != domain.LookbackDays {
		p.errorf("window %s..%s spans %d days, want %d", window.Start, window.End, window.Days(), domain.LookbackDays)
	}

	for i := range raw {
		if raw[i].Time21_5 == nil {
			continue
		}
		ts, err := time.Parse(domain.TimestampLayout, *raw[i].Time21_5)
		if err != nil {
			p.errorf("record %d: time21_5 %q: %v", i, *raw[i].Time21_5, err)
			continue
		}
		day := ts.Format(domain.DateLayout)
		if day < window.Start.String() || day > window.End.String() {
			p.errorf("record %d: %s outside window %s..%s", i, *raw[i].Time21_5, window.Start, window.End)
		}
	}
	return p
}

// ── Phase 2: Transform Invariants ──
// The transformed batch holds one record per distinct timestamp with derived
// columns that reconstruct it.

func validateTransform(raw []domain.RawCME, out domain.TransformOutput) *phase {
	p := &phase{name: "Phase 2: Transform Invariants"}

	complete := domain.DropIncomplete(raw)
	distinct := map[string]bool{}
	for i := range complete {
		distinct[*complete[i].Time21_5] = true
	}
	if len(out.Records) != len(distinct) {
		p.errorf("record count: got %d for %d distinct timestamps", len(out.Records), len(distinct))
	}

	seen := map[string]bool{}
	for i := range out.Records {
		r := &out.Records[i]
		if seen[r.DatetimeEvent] {
			p.errorf("duplicate datetime_event %s", r.DatetimeEvent)
		}
		seen[r.DatetimeEvent] = true

		rebuilt, err := domain.ReconstructTimestamp(*r)
		if err != nil {
			p.errorf("%s: %v", r.DatetimeEvent, err)
		} else if rebuilt != r.DatetimeEvent {
			p.errorf("%s: date/time reconstruct to %s", r.DatetimeEvent, rebuilt)
		}

		if r.Note != nil && utf8.RuneCountInString(*r.Note) > domain.NoteMaxLen {
			p.errorf("%s: note has %d characters, limit %d", r.DatetimeEvent, utf8.RuneCountInString(*r.Note), domain.NoteMaxLen)
		}
	}
	return p
}

// ── Phase 3: Schema Alignment ──
// Record JSON fields line up with the warehouse columns.

func validateSchemaAlignment(records []domain.CMERecord, date domain.ProcessDate) *phase {
	p := &phase{name: "Phase 3: Schema Alignment (warehouse columns)"}

	rows := domain.StampProcessDate(records, date)
	if len(rows) == 0 {
		return p
	}

	data, err := json.Marshal(rows[0])
	if err != nil {
		p.errorf("marshal row: %v", err)
		return p
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		p.errorf("unmarshal row: %v", err)
		return p
	}

	columns := warehouse.ColumnNames()
	for _, col := range columns {
		if _, ok := fields[col]; !ok {
			p.errorf("warehouse column %q has no record field", col)
		}
	}
	if len(fields) != len(columns) {
		keys := make([]string, 0, len(fields))
		for k := range fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		p.errorf("row has %d fields %v, table has %d columns", len(fields), keys, len(columns))
	}
	return p
}

// ── Phase 4: Transformed Fixture ──
// The stored transformed fixture matches a fresh transform of the raw one.

func validateTransformedFixture(stored, fresh []domain.CMERecord) *phase {
	p := &phase{name: "Phase 4: Transformed Fixture (vs fresh run)"}
	if diff := cmp.Diff(fresh, stored); diff != "" {
		p.errorf("transformed fixture is stale (-fresh +stored):\n%s", diff)
	}
	return p
}
