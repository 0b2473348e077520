package pipeline_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
	"github.com/couchcryptid/cme-data-etl/internal/observability"
	"github.com/couchcryptid/cme-data-etl/internal/pipeline"
)

func TestCMETransformer_WithMockJSONData(t *testing.T) {
	transformer := pipeline.NewTransformer(domain.DefaultRules(), discardLogger(), observability.NewMetricsForTesting())
	batch := readFixture(t)

	res, err := transformer.Transform(context.Background(), batch)
	require.NoError(t, err)

	assert.Len(t, batch, 10)
	assert.Zero(t, res.DroppedIncomplete)
	assert.Equal(t, 1, res.DroppedDuplicates)
	require.Len(t, res.Records, 9)

	window := processDate.Window()
	seen := make(map[string]bool, len(res.Records))
	for _, rec := range res.Records {
		assert.False(t, seen[rec.DatetimeEvent], "duplicate %s", rec.DatetimeEvent)
		seen[rec.DatetimeEvent] = true

		assert.GreaterOrEqual(t, rec.DateEvent, window.Start.String())
		assert.LessOrEqual(t, rec.DateEvent, window.End.String())

		if rec.Note != nil {
			assert.LessOrEqual(t, utf8.RuneCountInString(*rec.Note), domain.NoteMaxLen)
		}

		rebuilt, err := domain.ReconstructTimestamp(rec)
		require.NoError(t, err)
		assert.Equal(t, rec.DatetimeEvent, rebuilt)
	}

	t.Run("duplicate resolved by associated CME id", func(t *testing.T) {
		rec := findRecord(t, res.Records, "2024-03-10T14:23Z")
		require.NotNil(t, rec.AssociatedCMEID)
		assert.Equal(t, "2024-03-10T12:36:00-CME-001", *rec.AssociatedCMEID)
		assert.Equal(t, 1120.0, rec.Speed)
	})

	t.Run("long note truncated", func(t *testing.T) {
		rec := findRecord(t, res.Records, "2024-03-12T19:36Z")
		require.NotNil(t, rec.Note)
		assert.Equal(t, domain.NoteMaxLen, utf8.RuneCountInString(*rec.Note))
	})

	t.Run("nullable fields stay null", func(t *testing.T) {
		rec := findRecord(t, res.Records, "2024-03-11T06:53Z")
		assert.Nil(t, rec.Note)
		assert.Nil(t, rec.Link)
		assert.Nil(t, rec.AssociatedCMEID)
	})

	t.Run("fast event flagged and kept", func(t *testing.T) {
		require.Len(t, res.Anomalies, 1)
		assert.Equal(t, domain.RuleMaxSpeed, res.Anomalies[0].Rule)
		assert.Equal(t, "2024-03-12T08:12Z", res.Anomalies[0].DatetimeEvent)
		assert.Equal(t, 2512.0, findRecord(t, res.Records, "2024-03-12T08:12Z").Speed)
	})
}

func readFixture(t *testing.T) []domain.RawCME {
	t.Helper()

	path := filepath.Join("..", "..", "data", "mock", "cme_analysis_2024-03-15.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var records []domain.RawCME
	require.NoError(t, json.Unmarshal(data, &records))

	batch, err := domain.NewRawBatch(records)
	require.NoError(t, err)
	return batch
}

func findRecord(t *testing.T, records []domain.CMERecord, ts string) domain.CMERecord {
	t.Helper()
	for _, rec := range records {
		if rec.DatetimeEvent == ts {
			return rec
		}
	}
	t.Fatalf("no record with datetime_event %s", ts)
	return domain.CMERecord{}
}
