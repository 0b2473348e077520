package domain

import (
	"fmt"
	"time"
	"unicode/utf8"
)

const (
	// TimestampLayout is the DONKI time21_5 format, e.g. "2024-03-10T14:23Z".
	TimestampLayout = "2006-01-02T15:04Z"

	// TimeOfDayLayout is the format of the derived time_event column.
	TimeOfDayLayout = "15:04:05"

	// NoteMaxLen is the warehouse column width for note, in characters.
	NoteMaxLen = 255
)

// TimestampError reports a datetime_event that does not match TimestampLayout.
type TimestampError struct {
	Index int
	Value string
	Err   error
}

func (e *TimestampError) Error() string {
	return fmt.Sprintf("record %d: datetime_event %q does not match %s: %v", e.Index, e.Value, TimestampLayout, e.Err)
}

func (e *TimestampError) Unwrap() error { return e.Err }

// TransformOutput is the result of Transform.
type TransformOutput struct {
	Records           []CMERecord
	DroppedIncomplete int
	DroppedDuplicates int
	Anomalies         []Anomaly
}

// Transform runs the full cleaning chain over a raw batch:
// drop incomplete records, deduplicate on time21_5, project to the warehouse
// shape, derive date/time columns, truncate notes and finally run the
// plausibility rules. A malformed timestamp fails the whole batch.
func Transform(batch []RawCME, rules Rules) (TransformOutput, error) {
	complete := DropIncomplete(batch)
	unique := Deduplicate(complete)

	records, err := DeriveDateTime(Project(unique))
	if err != nil {
		return TransformOutput{}, err
	}
	records = TruncateNotes(records)

	return TransformOutput{
		Records:           records,
		DroppedIncomplete: len(batch) - len(complete),
		DroppedDuplicates: len(complete) - len(unique),
		Anomalies:         rules.Check(records),
	}, nil
}

// DropIncomplete removes records with a null in any required field.
func DropIncomplete(batch []RawCME) []RawCME {
	out := make([]RawCME, 0, len(batch))
	for _, r := range batch {
		if missingRequired(r) == "" {
			out = append(out, r)
		}
	}
	return out
}

type dedupKey struct {
	set   bool
	value string
}

// Deduplicate keeps one record per time21_5 value. Output order follows the
// first appearance of each timestamp. Among duplicates the record with the
// lexicographically smallest associatedCMEID wins; a null ID loses to any
// non-null ID, and remaining ties keep the earliest record.
func Deduplicate(batch []RawCME) []RawCME {
	out := make([]RawCME, 0, len(batch))
	seen := make(map[dedupKey]int, len(batch))

	for _, r := range batch {
		key := dedupKey{}
		if r.Time21_5 != nil {
			key = dedupKey{set: true, value: *r.Time21_5}
		}
		if i, ok := seen[key]; ok {
			if preferredDuplicate(r, out[i]) {
				out[i] = r
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, r)
	}
	return out
}

// preferredDuplicate reports whether candidate should replace current.
func preferredDuplicate(candidate, current RawCME) bool {
	switch {
	case candidate.AssociatedCMEID == nil:
		return false
	case current.AssociatedCMEID == nil:
		return true
	default:
		return *candidate.AssociatedCMEID < *current.AssociatedCMEID
	}
}

// Project renames and casts raw fields into the warehouse column layout.
// Derived date/time columns are left empty for DeriveDateTime.
func Project(batch []RawCME) []CMERecord {
	out := make([]CMERecord, 0, len(batch))
	for _, r := range batch {
		out = append(out, CMERecord{
			DatetimeEvent:   deref(r.Time21_5),
			TypeEvent:       deref(r.Type),
			CatalogEvent:    cloneString(r.Catalog),
			Note:            cloneString(r.Note),
			Link:            cloneString(r.Link),
			IsMostAccurate:  r.IsMostAccurate != nil && *r.IsMostAccurate,
			AssociatedCMEID: cloneString(r.AssociatedCMEID),
			Latitude:        derefFloat(r.Latitude),
			Longitude:       derefFloat(r.Longitude),
			HalfAngle:       derefFloat(r.HalfAngle),
			Speed:           derefFloat(r.Speed),
		})
	}
	return out
}

// DeriveDateTime splits datetime_event into date_event (YYYY-MM-DD) and
// time_event (HH:MM:SS). The first value not matching TimestampLayout fails
// the whole batch.
func DeriveDateTime(records []CMERecord) ([]CMERecord, error) {
	out := make([]CMERecord, len(records))
	for i, rec := range records {
		t, err := time.Parse(TimestampLayout, rec.DatetimeEvent)
		if err != nil {
			return nil, &TimestampError{Index: i, Value: rec.DatetimeEvent, Err: err}
		}
		rec.DateEvent = t.Format(DateLayout)
		rec.TimeEvent = t.Format(TimeOfDayLayout)
		out[i] = rec
	}
	return out, nil
}

// TruncateNotes cuts note down to its first NoteMaxLen characters.
func TruncateNotes(records []CMERecord) []CMERecord {
	out := make([]CMERecord, len(records))
	for i, rec := range records {
		if rec.Note != nil {
			rec.Note = StringPtr(truncateRunes(*rec.Note, NoteMaxLen))
		}
		out[i] = rec
	}
	return out
}

// StampProcessDate attaches the run's process date to every record.
func StampProcessDate(records []CMERecord, date ProcessDate) []WarehouseRow {
	rows := make([]WarehouseRow, len(records))
	stamp := date.String()
	for i, rec := range records {
		rows[i] = WarehouseRow{CMERecord: rec, ProcessDate: stamp}
	}
	return rows
}

// ReconstructTimestamp joins date_event and time_event back into the
// time21_5 format.
func ReconstructTimestamp(rec CMERecord) (string, error) {
	t, err := time.Parse(DateLayout+"T"+TimeOfDayLayout, rec.DateEvent+"T"+rec.TimeEvent)
	if err != nil {
		return "", fmt.Errorf("reconstruct timestamp: %w", err)
	}
	return t.Format(TimestampLayout), nil
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	count := 0
	for pos := range s {
		if count == n {
			return s[:pos]
		}
		count++
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefFloat(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	return StringPtr(*s)
}
