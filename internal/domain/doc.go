// Package domain models Coronal Mass Ejection (CME) analysis records from
// NASA's Space Weather Database Of Notifications, Knowledge, Information (DONKI).
//
// # Data Source
//
// Records come from the DONKI CMEAnalysis endpoint,
// https://api.nasa.gov/DONKI/CMEAnalysis. The job queries a seven-day window
// ending on the process date and only asks for the most accurate analysis of
// each CME, restricted to fast (speed >= 500 km/s) and wide (half-angle >= 30°)
// events across all catalogs.
//
// # DONKI Data Conventions
//
// Time format:
//
//	"time21_5" is the time the CME leading edge reached 21.5 solar radii,
//	formatted "YYYY-MM-DDTHH:MMZ" (minute precision, always UTC),
//	e.g. "2024-03-10T14:23Z". Any other shape is rejected by [DeriveDateTime].
//
// Position and geometry:
//
//	latitude/longitude are Stonyhurst heliographic degrees of the CME
//	direction. halfAngle is the angular half-width in degrees; 90° and above
//	describes a full halo. speed is the plane-of-sky speed in km/s.
//
// Catalogs:
//
//	"catalog" names the analysis source, typically "M2M_CATALOG" (Moon to Mars
//	Space Weather Analysis Office) or "SWRC_CATALOG". "type" is the speed class
//	of the SWPC CME scale: S, C, O, R or ER.
//
// Nullable fields:
//
//	catalog, note, link and associatedCMEID may be null or absent. All other
//	fields are required; a record missing one fails schema construction in
//	[NewRawBatch].
//
// # Plausibility Thresholds
//
// [CheckMaxSpeed] and [CheckMaxHalfAngle] flag values that are physically
// unusual enough to deserve human review. The fastest CMEs on record travel
// roughly 3000 km/s, so the default speed ceiling of 2000 km/s flags the rare
// extreme events along with outright data errors. Outliers are reported and
// loaded unchanged.
package domain
