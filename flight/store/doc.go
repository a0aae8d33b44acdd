// Package store holds the client-side simulation state for one flight.
//
// A Store owns exactly one value of each entity (rocket state, force
// breakdown, trajectory, vector). Every write is a full replacement through
// the entity's single setter; there is no merge and no history.
//
// Request operations perform one physics round-trip and commit the reply:
//
//	RequestForce       -> SetForce
//	RequestTrajectory  -> SetTrajectory
//	RequestIntegration -> SetRocketState
//	RequestVector      -> SetVector (only when the service answered 2xx)
//
// Ordering:
//
// Two outstanding requests for the same entity commit in arrival order, so a
// slow early response can overwrite a fresher one. WithStaleResponseGuard tags
// requests with a per-entity sequence number and drops replies older than the
// last commit, returning ErrStaleResponse.
//
// Subscribers registered with Subscribe are called synchronously after each
// commit, outside the state lock, one commit at a time and in commit order.
// A listener may read the store but must not write to it.
package store
