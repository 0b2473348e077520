package domain

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used for process dates and API query windows.
const DateLayout = "2006-01-02"

// LookbackDays is how far before the process date the extraction window starts.
const LookbackDays = 7

// ProcessDate is the calendar day a run executes for.
type ProcessDate struct {
	t time.Time
}

// ParseProcessDate parses a YYYY-MM-DD string.
func ParseProcessDate(s string) (ProcessDate, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return ProcessDate{}, fmt.Errorf("invalid process date %q: expected YYYY-MM-DD", s)
	}
	return ProcessDate{t: t}, nil
}

// MustProcessDate is ParseProcessDate for literals in tests and tools. It panics on bad input.
func MustProcessDate(s string) ProcessDate {
	d, err := ParseProcessDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// String formats the date as YYYY-MM-DD.
func (d ProcessDate) String() string {
	return d.t.Format(DateLayout)
}

// Time returns midnight UTC of the process date.
func (d ProcessDate) Time() time.Time {
	return d.t
}

// IsZero reports whether d was never set.
func (d ProcessDate) IsZero() bool {
	return d.t.IsZero()
}

// Window is an inclusive range of calendar days.
type Window struct {
	Start ProcessDate
	End   ProcessDate
}

// Window returns the extraction window: LookbackDays before d through d, both inclusive.
func (d ProcessDate) Window() Window {
	return Window{
		Start: ProcessDate{t: d.t.AddDate(0, 0, -LookbackDays)},
		End:   d,
	}
}

// Days returns the number of days between Start and End.
func (w Window) Days() int {
	return int(w.End.t.Sub(w.Start.t).Hours() / 24)
}
