// Package trv is a minimal client for the Trafikverket-style open transit
// API that railfeed synchronizes against.
//
// The API speaks XML queries over HTTP POST and answers with a JSON
// envelope. Each method on [Client] issues one query for one object type:
//
//   - [Client.TrainPositions]: the moving-train feed, optionally filtered
//     to entries modified since a cutoff
//   - [Client.Situations]: traffic situation deviations (feed A)
//   - [Client.TrainMessages]: reason-coded operational messages (feed B)
//   - [Client.StationNames]: location signature → display name lookup
//   - [Client.TrainAnnouncements]: departure announcements used to resolve
//     a train's origin and destination
//
// The wire types in this package mirror the upstream payloads; the data
// stores own their normalized domain types and consume this package through
// narrow fetcher interfaces.
package trv
