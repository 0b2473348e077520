package warehouse

import (
	"fmt"
	"strings"

	"github.com/couchcryptid/cme-data-etl/internal/domain"
)

type columnKind int

const (
	kindText columnKind = iota
	kindBool
	kindFloat
)

type column struct {
	name     string
	kind     columnKind
	size     int
	nullable bool
}

// columns is the table layout in insert order. Names match the existing
// table, camelCase included.
var columns = []column{
	{name: "datetime_event", kind: kindText, size: 32},
	{name: "type_event", kind: kindText, size: 16},
	{name: "catalog_event", kind: kindText, size: 64, nullable: true},
	{name: "note", kind: kindText, size: 1024, nullable: true},
	{name: "link", kind: kindText, size: 512, nullable: true},
	{name: "isMostAccurate", kind: kindBool},
	{name: "associatedCMEID", kind: kindText, size: 64, nullable: true},
	{name: "latitude", kind: kindFloat},
	{name: "longitude", kind: kindFloat},
	{name: "halfAngle", kind: kindFloat},
	{name: "speed", kind: kindFloat},
	{name: "date_event", kind: kindText, size: 10},
	{name: "time_event", kind: kindText, size: 8},
	{name: "process_date", kind: kindText, size: 10},
}

// ColumnNames returns the unquoted column names in insert order.
func ColumnNames() []string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.name
	}
	return names
}

// rowArgs flattens a row into bind arguments in column order.
func rowArgs(r domain.WarehouseRow) []any {
	return []any{
		r.DatetimeEvent,
		r.TypeEvent,
		nullString(r.CatalogEvent),
		nullString(r.Note),
		nullString(r.Link),
		r.IsMostAccurate,
		nullString(r.AssociatedCMEID),
		r.Latitude,
		r.Longitude,
		r.HalfAngle,
		r.Speed,
		r.DateEvent,
		r.TimeEvent,
		r.ProcessDate,
	}
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func (d Dialect) columnList() string {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = d.Quote(c.name)
	}
	return strings.Join(names, ", ")
}

func (d Dialect) columnDefs() string {
	defs := make([]string, len(columns))
	for i, c := range columns {
		typ := d.types[c.kind]
		if c.kind == kindText {
			typ = fmt.Sprintf(typ, c.size)
		}
		def := d.Quote(c.name) + " " + typ
		if !c.nullable {
			def += " NOT NULL"
		}
		defs[i] = def
	}
	return strings.Join(defs, ", ")
}
