// Package session keeps the registry of active flights.
//
// Each flight owns its own state store, built by a StoreFactory from the
// preset it was launched with. Flight IDs are matched case-insensitively.
// An empty ID on Create generates a short random one.
//
// Flights live in memory only. CleanupExpiredFlights drops flights that have
// not been touched within a maximum age.
package session
