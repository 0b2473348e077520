package domain

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testTimestamp = "2024-03-10T14:23Z"
	testLink      = "https://kauai.ccmc.gsfc.nasa.gov/DONKI/view/CMEAnalysis/29345/-1"
)

func rawCME(ts string, speed float64) RawCME {
	return RawCME{
		Time21_5:       StringPtr(ts),
		Type:           StringPtr("C"),
		Catalog:        StringPtr("M2M_CATALOG"),
		Note:           StringPtr("Measured with SWPC_CAT."),
		Link:           StringPtr(testLink),
		IsMostAccurate: BoolPtr(true),
		Latitude:       Float64Ptr(-12),
		Longitude:      Float64Ptr(34),
		HalfAngle:      Float64Ptr(41),
		Speed:          Float64Ptr(speed),
	}
}

func TestDropIncomplete(t *testing.T) {
	complete := rawCME(testTimestamp, 800)

	noType := rawCME("2024-03-11T01:00Z", 900)
	noType.Type = nil

	noSpeed := rawCME("2024-03-12T02:00Z", 900)
	noSpeed.Speed = nil

	noCatalog := rawCME("2024-03-13T03:00Z", 900)
	noCatalog.Catalog = nil
	noCatalog.Note = nil

	out := DropIncomplete([]RawCME{complete, noType, noSpeed, noCatalog})

	require.Len(t, out, 2)
	assert.Equal(t, testTimestamp, *out[0].Time21_5)
	assert.Equal(t, "2024-03-13T03:00Z", *out[1].Time21_5, "nullable fields do not cause a drop")
}

func TestDeduplicate(t *testing.T) {
	t.Run("identical timestamps different speed keep one", func(t *testing.T) {
		a := rawCME(testTimestamp, 800)
		b := rawCME(testTimestamp, 1200)

		out := Deduplicate([]RawCME{a, b})

		require.Len(t, out, 1)
		assert.Equal(t, testTimestamp, *out[0].Time21_5)
	})

	t.Run("smallest associated ID wins", func(t *testing.T) {
		a := rawCME(testTimestamp, 800)
		a.AssociatedCMEID = StringPtr("2024-03-10T12:36:00-CME-002")
		b := rawCME(testTimestamp, 1200)
		b.AssociatedCMEID = StringPtr("2024-03-10T12:36:00-CME-001")

		out := Deduplicate([]RawCME{a, b})

		require.Len(t, out, 1)
		assert.Equal(t, 1200.0, *out[0].Speed)
	})

	t.Run("non-null ID beats null ID", func(t *testing.T) {
		a := rawCME(testTimestamp, 800)
		b := rawCME(testTimestamp, 1200)
		b.AssociatedCMEID = StringPtr("2024-03-10T12:36:00-CME-001")

		out := Deduplicate([]RawCME{a, b})
		require.Len(t, out, 1)
		assert.Equal(t, 1200.0, *out[0].Speed)

		out = Deduplicate([]RawCME{b, a})
		require.Len(t, out, 1)
		assert.Equal(t, 1200.0, *out[0].Speed)
	})

	t.Run("full tie keeps the first record", func(t *testing.T) {
		a := rawCME(testTimestamp, 800)
		b := rawCME(testTimestamp, 1200)

		out := Deduplicate([]RawCME{a, b})
		require.Len(t, out, 1)
		assert.Equal(t, 800.0, *out[0].Speed)
	})

	t.Run("order of first appearance is preserved", func(t *testing.T) {
		batch := []RawCME{
			rawCME("2024-03-12T00:00Z", 600),
			rawCME("2024-03-09T00:00Z", 700),
			rawCME("2024-03-12T00:00Z", 650),
			rawCME("2024-03-10T00:00Z", 900),
		}

		out := Deduplicate(batch)

		got := make([]string, 0, len(out))
		for _, r := range out {
			got = append(got, *r.Time21_5)
		}
		want := []string{"2024-03-12T00:00Z", "2024-03-09T00:00Z", "2024-03-10T00:00Z"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("dedup order mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		assert.Empty(t, Deduplicate(nil))
	})
}

func TestProject(t *testing.T) {
	raw := rawCME(testTimestamp, 850)
	raw.AssociatedCMEID = StringPtr("2024-03-10T12:36:00-CME-001")

	got := Project([]RawCME{raw})

	want := []CMERecord{{
		DatetimeEvent:   testTimestamp,
		TypeEvent:       "C",
		CatalogEvent:    StringPtr("M2M_CATALOG"),
		Note:            StringPtr("Measured with SWPC_CAT."),
		Link:            StringPtr(testLink),
		IsMostAccurate:  true,
		AssociatedCMEID: StringPtr("2024-03-10T12:36:00-CME-001"),
		Latitude:        -12,
		Longitude:       34,
		HalfAngle:       41,
		Speed:           850,
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("projection mismatch (-want +got):\n%s", diff)
	}

	*raw.Catalog = "changed"
	assert.Equal(t, "M2M_CATALOG", *got[0].CatalogEvent, "projection must not alias the raw batch")
}

func TestProject_NullableFieldsStayNull(t *testing.T) {
	raw := rawCME(testTimestamp, 850)
	raw.Catalog = nil
	raw.Note = nil
	raw.Link = nil

	got := Project([]RawCME{raw})

	require.Len(t, got, 1)
	assert.Nil(t, got[0].CatalogEvent)
	assert.Nil(t, got[0].Note)
	assert.Nil(t, got[0].Link)
	assert.Nil(t, got[0].AssociatedCMEID)
}

func TestDeriveDateTime(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantDate string
		wantTime string
	}{
		{"afternoon", "2024-03-10T14:23Z", "2024-03-10", "14:23:00"},
		{"midnight", "2024-03-01T00:00Z", "2024-03-01", "00:00:00"},
		{"leap day", "2024-02-29T23:59Z", "2024-02-29", "23:59:00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DeriveDateTime([]CMERecord{{DatetimeEvent: tt.input}})
			require.NoError(t, err)
			require.Len(t, out, 1)
			assert.Equal(t, tt.wantDate, out[0].DateEvent)
			assert.Equal(t, tt.wantTime, out[0].TimeEvent)
		})
	}
}

func TestDeriveDateTime_RejectsOtherFormats(t *testing.T) {
	bad := []string{
		"2024-03-10T14:23:00Z",
		"2024-03-10 14:23",
		"2024-03-10",
		"",
		"2024-13-10T14:23Z",
	}

	for _, value := range bad {
		t.Run(value, func(t *testing.T) {
			records := []CMERecord{{DatetimeEvent: testTimestamp}, {DatetimeEvent: value}}
			out, err := DeriveDateTime(records)

			require.Error(t, err)
			assert.Nil(t, out)

			var tsErr *TimestampError
			require.True(t, errors.As(err, &tsErr))
			assert.Equal(t, 1, tsErr.Index)
			assert.Equal(t, value, tsErr.Value)
		})
	}
}

func TestTruncateNotes(t *testing.T) {
	long := strings.Repeat("a", 300)
	exact := strings.Repeat("b", NoteMaxLen)
	multibyte := strings.Repeat("é", 260)

	records := []CMERecord{
		{Note: StringPtr(long)},
		{Note: StringPtr(exact)},
		{Note: StringPtr("short")},
		{Note: nil},
		{Note: StringPtr(multibyte)},
	}

	out := TruncateNotes(records)

	require.Len(t, out, 5)
	assert.Equal(t, strings.Repeat("a", NoteMaxLen), *out[0].Note)
	assert.Equal(t, exact, *out[1].Note)
	assert.Equal(t, "short", *out[2].Note)
	assert.Nil(t, out[3].Note)
	assert.Equal(t, NoteMaxLen, utf8.RuneCountInString(*out[4].Note))
	assert.True(t, utf8.ValidString(*out[4].Note))

	assert.Len(t, *records[0].Note, 300, "input batch is left untouched")
}

func TestTransform(t *testing.T) {
	incomplete := rawCME("2024-03-11T05:00Z", 700)
	incomplete.Latitude = nil

	fast := rawCME("2024-03-12T08:12Z", 2500)
	fast.Note = StringPtr(strings.Repeat("x", 400))

	batch := []RawCME{
		rawCME(testTimestamp, 800),
		rawCME(testTimestamp, 900),
		incomplete,
		fast,
	}

	out, err := Transform(batch, DefaultRules())
	require.NoError(t, err)

	assert.Equal(t, 1, out.DroppedIncomplete)
	assert.Equal(t, 1, out.DroppedDuplicates)
	require.Len(t, out.Records, 2)

	seen := map[string]bool{}
	for _, rec := range out.Records {
		assert.False(t, seen[rec.DatetimeEvent], "duplicate datetime_event %s", rec.DatetimeEvent)
		seen[rec.DatetimeEvent] = true

		assert.LessOrEqual(t, utf8.RuneCountInString(*rec.Note), NoteMaxLen)

		rebuilt, err := ReconstructTimestamp(rec)
		require.NoError(t, err)
		assert.Equal(t, rec.DatetimeEvent, rebuilt)
	}

	require.Len(t, out.Anomalies, 1)
	assert.Equal(t, RuleMaxSpeed, out.Anomalies[0].Rule)
	assert.Equal(t, "2024-03-12T08:12Z", out.Anomalies[0].DatetimeEvent)
	assert.Equal(t, 2500.0, out.Records[1].Speed, "anomalous rows are kept")
}

func TestTransform_EmptyBatch(t *testing.T) {
	out, err := Transform([]RawCME{}, DefaultRules())
	require.NoError(t, err)
	assert.Empty(t, out.Records)
	assert.Empty(t, out.Anomalies)
	assert.Zero(t, out.DroppedIncomplete)
	assert.Zero(t, out.DroppedDuplicates)
}

func TestTransform_BadTimestampFailsBatch(t *testing.T) {
	batch := []RawCME{rawCME(testTimestamp, 800), rawCME("2024/03/11 10:00", 900)}

	_, err := Transform(batch, DefaultRules())

	var tsErr *TimestampError
	require.ErrorAs(t, err, &tsErr)
	assert.Equal(t, "2024/03/11 10:00", tsErr.Value)
}

func TestReconstructTimestamp_Invalid(t *testing.T) {
	_, err := ReconstructTimestamp(CMERecord{DateEvent: "2024-03-10", TimeEvent: "bad"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconstruct timestamp")
}

func TestStampProcessDate(t *testing.T) {
	records := []CMERecord{{DatetimeEvent: "a"}, {DatetimeEvent: "b"}}

	rows := StampProcessDate(records, MustProcessDate("2024-03-15"))

	require.Len(t, rows, 2)
	for i, row := range rows {
		assert.Equal(t, "2024-03-15", row.ProcessDate)
		assert.Equal(t, records[i], row.CMERecord)
	}
	assert.Empty(t, StampProcessDate(nil, MustProcessDate("2024-03-15")))
}
