package domain

import "fmt"

// SchemaError reports a raw record that violates the fixed DONKI schema.
type SchemaError struct {
	Index int
	Field string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema violation: record %d: required field %q is null or missing", e.Index, e.Field)
}

// NewRawBatch checks every record against the raw schema and returns the batch
// unchanged when all required fields are present. The first violation fails the
// whole batch.
func NewRawBatch(records []RawCME) ([]RawCME, error) {
	for i := range records {
		if field := missingRequired(records[i]); field != "" {
			return nil, &SchemaError{Index: i, Field: field}
		}
	}
	if records == nil {
		return []RawCME{}, nil
	}
	return records, nil
}

// missingRequired returns the JSON name of the first required field that is
// nil, or "" when the record is complete.
func missingRequired(r RawCME) string {
	switch {
	case r.Time21_5 == nil:
		return "time21_5"
	case r.Type == nil:
		return "type"
	case r.IsMostAccurate == nil:
		return "isMostAccurate"
	case r.Latitude == nil:
		return "latitude"
	case r.Longitude == nil:
		return "longitude"
	case r.HalfAngle == nil:
		return "halfAngle"
	case r.Speed == nil:
		return "speed"
	default:
		return ""
	}
}
