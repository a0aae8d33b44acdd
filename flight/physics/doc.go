// Package physics defines the values exchanged with the remote physics service.
//
// The physics package holds:
//   - RocketState: instantaneous kinematic and resource attributes of the rocket
//   - ForceBreakdown: thrust, gravity and resultant force on the vertical axis
//   - Trajectory: the predicted flight path, kept as the raw JSON the service returned
//   - Vector: a 2D quantity associated with the rocket state
//
// Nothing in this package computes physics. Values received from the service are
// accepted as-is: no range checks, no unit conversion.
package physics
