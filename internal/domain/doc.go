// Package domain models hourly surf forecasts for the Lanzarote spots and the
// rules that decide which spot is working at each hour.
//
// # Data Sources
//
// Forecast readings come from several independent sites, each with its own
// units and markup. Source adapters map them onto [ForecastRecord] before
// anything in this package sees them: wind speed in knots, wave height in
// metres, wave period in whole seconds and directions either as compass
// strings ("NNE", "WSW") or as degrees. Spanish compass strings use "O"
// (oeste) for west; [NormalizeCompass] rewrites it as "W".
//
// Tide data is a short list of high and low water marks scraped from a tide
// table ("pleamar" and "bajamar").
//
// # Directions
//
// Two bucketings coexist and are not interchangeable:
//
//	AngleToDirection        8 octants, ±10° around N/E/S/W, wide diagonals
//	DegreesToPredominant16  16 points, even 22.5° sectors
//
// The wind/wave relationship (Offshore, Cross-off, Onshore) is computed from
// the compass strings by [CountContraries], which counts opposing letters
// (N against S, E against W).
//
// # Energy
//
// Energy is the proxy ceil(0.5 * 9.81 * height² * period). It is a
// classification threshold, not a physical flux, and every spot threshold in
// the classifier is tuned against it.
//
// # Tides
//
// [ReconstructTideTimeline] extends the scraped marks forward in steps of
// 6h12m30s, alternating high and low. A [TideTimeline] then answers, for any
// instant, the nearest mark ("Llena" or "Vacía"), the fill percentage between
// the bracketing low (0) and high (100), and a status line such as
// "Subiendo hasta las 14:30".
//
// # Spot Classification
//
// [Classifier] holds two ordered rule lists selected by wind speed: below
// 10 knots the low-wind list, otherwise the high-wind list. The first rule
// that matches wins, so the order of each list is significant. Records that
// match nothing are labelled "No Clasificado".
//
// # Normalization
//
// [Normalizer] merges source batches (first record wins per spot and hour),
// keeps 06:00 to 19:00 local time, attaches date_name, energy, tide fields,
// predominant directions, wind status and approval, classifies, and returns a
// [ForecastTable] sorted newest first with the columns in [CanonicalColumns].
package domain
