package store

import (
	"context"
	"errors"

	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"go.uber.org/zap"
)

// ErrNoPhysicsClient is returned by request operations on a store built without a client
var ErrNoPhysicsClient = errors.New("store has no physics client")

// RequestForce computes the force breakdown for state and commits it
func (s *Store) RequestForce(ctx context.Context, state physics.RocketState) error {
	if s.physics == nil {
		return ErrNoPhysicsClient
	}
	seq := s.issue(EntityForce)

	force, err := s.physics.Force(ctx, state)
	if err != nil {
		return err
	}

	return s.commit(EntityForce, seq, func() { s.force = force })
}

// RequestTrajectory projects the flight path from state and commits it
func (s *Store) RequestTrajectory(ctx context.Context, state physics.RocketState) error {
	if s.physics == nil {
		return ErrNoPhysicsClient
	}
	seq := s.issue(EntityTrajectory)

	trajectory, err := s.physics.Trajectory(ctx, state)
	if err != nil {
		return err
	}

	return s.commit(EntityTrajectory, seq, func() { s.trajectory = trajectory.Clone() })
}

// RequestIntegration advances state by one step and commits the returned
// state in place of the current one.
func (s *Store) RequestIntegration(ctx context.Context, state physics.RocketState) error {
	if s.physics == nil {
		return ErrNoPhysicsClient
	}
	seq := s.issue(EntityRocketState)

	next, err := s.physics.Integrate(ctx, state)
	if err != nil {
		return err
	}

	return s.commit(EntityRocketState, seq, func() { s.rocketState = next })
}

// RequestVector resolves the vector for state and commits it. A non-2xx
// reply surfaces as *physics.HTTPError and leaves the vector unchanged.
func (s *Store) RequestVector(ctx context.Context, state physics.RocketState) error {
	if s.physics == nil {
		return ErrNoPhysicsClient
	}
	seq := s.issue(EntityVector)

	vector, err := s.physics.Vector(ctx, state)
	if err != nil {
		return err
	}

	return s.commit(EntityVector, seq, func() { s.vector = vector })
}

// issue hands out the next sequence number for entity
func (s *Store) issue(entity Entity) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[entity]++
	return s.issued[entity]
}

// commit applies write unless the guard is on and a newer request for the
// same entity already committed.
func (s *Store) commit(entity Entity, seq uint64, write func()) error {
	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	s.mu.Lock()
	if s.guard && seq < s.committed[entity] {
		last := s.committed[entity]
		s.mu.Unlock()
		s.logger.Debug("dropping stale response",
			zap.String("entity", string(entity)),
			zap.Uint64("seq", seq),
			zap.Uint64("committed", last),
		)
		return ErrStaleResponse
	}
	write()
	if seq > s.committed[entity] {
		s.committed[entity] = seq
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(entity, snap)
	return nil
}
