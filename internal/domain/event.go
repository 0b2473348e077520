package domain

import "time"

// RawCME is one CME analysis entry as returned by the DONKI API.
// Pointer fields distinguish an absent or null value from a zero value.
type RawCME struct {
	Time21_5        *string  `json:"time21_5"`
	Type            *string  `json:"type"`
	Catalog         *string  `json:"catalog"`
	Note            *string  `json:"note"`
	Link            *string  `json:"link"`
	IsMostAccurate  *bool    `json:"isMostAccurate"`
	AssociatedCMEID *string  `json:"associatedCMEID"`
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	HalfAngle       *float64 `json:"halfAngle"`
	Speed           *float64 `json:"speed"`
}

// CMERecord is the warehouse-ready projection of a RawCME.
type CMERecord struct {
	DatetimeEvent   string  `json:"datetime_event"`
	TypeEvent       string  `json:"type_event"`
	CatalogEvent    *string `json:"catalog_event"`
	Note            *string `json:"note"`
	Link            *string `json:"link"`
	IsMostAccurate  bool    `json:"isMostAccurate"`
	AssociatedCMEID *string `json:"associatedCMEID"`
	Latitude        float64 `json:"latitude"`
	Longitude       float64 `json:"longitude"`
	HalfAngle       float64 `json:"halfAngle"`
	Speed           float64 `json:"speed"`
	DateEvent       string  `json:"date_event"`
	TimeEvent       string  `json:"time_event"`
}

// WarehouseRow is a CMERecord stamped with the run's process date.
type WarehouseRow struct {
	CMERecord
	ProcessDate string `json:"process_date"`
}

// RawResponse captures one API call and its unparsed body for auditing.
type RawResponse struct {
	ProcessDate string    `json:"process_date" bson:"process_date"`
	URL         string    `json:"url" bson:"url"`
	StatusCode  int       `json:"status_code" bson:"status_code"`
	Body        string    `json:"body" bson:"body"`
	FetchedAt   time.Time `json:"fetched_at" bson:"fetched_at"`
}

// NotificationStatus is the binary outcome of a run.
type NotificationStatus string

const (
	StatusSuccess NotificationStatus = "success"
	StatusError   NotificationStatus = "error"
)

// Notification is the payload handed to notification sinks at the end of a run.
type Notification struct {
	Status      NotificationStatus `json:"status"`
	ProcessDate string             `json:"process_date"`
	Stage       string             `json:"stage,omitempty"`
	Rows        int                `json:"rows"`
	Anomalies   int                `json:"anomalies"`
	Error       string             `json:"error,omitempty"`
	At          time.Time          `json:"at"`
}

// StringPtr returns a pointer to s. Handy for building optional fields.
func StringPtr(s string) *string { return &s }

// Float64Ptr returns a pointer to f.
func Float64Ptr(f float64) *float64 { return &f }

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool { return &b }
