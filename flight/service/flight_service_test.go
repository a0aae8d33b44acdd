package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wricardo/mcp-training/rocketflight/flight/physics"
	"github.com/wricardo/mcp-training/rocketflight/flight/presets"
	"github.com/wricardo/mcp-training/rocketflight/flight/service"
	"github.com/wricardo/mcp-training/rocketflight/flight/session"
	"github.com/wricardo/mcp-training/rocketflight/flight/store"
	physicsapi "github.com/wricardo/mcp-training/rocketflight/transport/physics"
)

// fakePhysics integrates by moving the rocket up one unit and burning one
// unit of fuel. It fails integration once failAfter calls have succeeded.
type fakePhysics struct {
	mu         sync.Mutex
	calls      map[string]int
	lastState  physics.RocketState
	failAfter  int
	vectorFail bool
}

func newFakePhysics() *fakePhysics {
	return &fakePhysics{calls: make(map[string]int), failAfter: -1}
}

func (f *fakePhysics) record(name string, state physics.RocketState) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	f.lastState = state
	return f.calls[name]
}

func (f *fakePhysics) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakePhysics) Force(_ context.Context, state physics.RocketState) (physics.ForceBreakdown, error) {
	f.record("force", state)
	return physics.ForceBreakdown{ThrustY: state.Thrust, GravityY: -9.81 * state.Mass, ResultFY: state.Thrust - 9.81*state.Mass}, nil
}

func (f *fakePhysics) Trajectory(_ context.Context, state physics.RocketState) (physics.Trajectory, error) {
	f.record("trajectory", state)
	return physics.Trajectory(`[{"x":0,"y":0},{"x":0,"y":1}]`), nil
}

func (f *fakePhysics) Integrate(_ context.Context, state physics.RocketState) (physics.RocketState, error) {
	n := f.record("integrate", state)
	if f.failAfter >= 0 && n > f.failAfter {
		return physics.RocketState{}, errors.New("integrator offline")
	}
	state.Y++
	state.Fuel--
	return state, nil
}

func (f *fakePhysics) Vector(_ context.Context, state physics.RocketState) (physics.Vector, error) {
	f.record("vector", state)
	if f.vectorFail {
		return physics.Vector{}, &physicsapi.HTTPError{Path: physicsapi.PathVector, StatusCode: 500}
	}
	return physics.Vector{X: state.X, Y: state.Y}, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes map[string][]store.Change
}

func (n *recordingNotifier) Publish(flightID string, change store.Change) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.changes == nil {
		n.changes = make(map[string][]store.Change)
	}
	n.changes[flightID] = append(n.changes[flightID], change)
}

func (n *recordingNotifier) forFlight(id string) []store.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]store.Change(nil), n.changes[id]...)
}

func setupService(t *testing.T, client store.PhysicsClient, opts ...service.Option) service.FlightService {
	t.Helper()

	dir := t.TempDir()
	heavy := "name: Heavy\nrocket_state:\n  fuel: 400\n  mass: 2000\n  thrust: 450\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "heavy.yaml"), []byte(heavy), 0644))

	presetMgr, err := presets.NewManager(dir)
	require.NoError(t, err)

	flights := session.NewManager(func(p *service.Preset) *store.Store {
		return store.New(client, store.WithInitialRocketState(p.RocketState))
	})

	return service.NewFlightService(flights, presetMgr, opts...)
}

func TestFlightService_CreateFlight(t *testing.T) {
	svc := setupService(t, newFakePhysics())
	ctx := context.Background()

	t.Run("default preset", func(t *testing.T) {
		info, err := svc.CreateFlight(ctx, "")
		require.NoError(t, err)
		assert.NotEmpty(t, info.ID)
		assert.Equal(t, "default", info.PresetName)
		assert.Equal(t, physics.DefaultRocketState(), info.State.RocketState)
	})

	t.Run("named preset", func(t *testing.T) {
		info, err := svc.CreateFlight(ctx, "heavy")
		require.NoError(t, err)
		assert.Equal(t, "Heavy", info.PresetName)
		assert.Equal(t, 2000.0, info.State.RocketState.Mass)
	})

	t.Run("unknown preset lists alternatives", func(t *testing.T) {
		_, err := svc.CreateFlight(ctx, "nope")
		require.ErrorIs(t, err, service.ErrPresetNotFound)
		assert.Contains(t, err.Error(), "heavy")
	})
}

func TestFlightService_GetListDelete(t *testing.T) {
	svc := setupService(t, newFakePhysics())
	ctx := context.Background()

	a, err := svc.CreateFlight(ctx, "")
	require.NoError(t, err)
	_, err = svc.CreateFlight(ctx, "heavy")
	require.NoError(t, err)

	got, err := svc.GetFlight(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)

	list, err := svc.ListFlights(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, svc.DeleteFlight(ctx, a.ID))
	_, err = svc.GetFlight(ctx, a.ID)
	assert.ErrorIs(t, err, service.ErrFlightNotFound)
	assert.ErrorIs(t, svc.DeleteFlight(ctx, a.ID), service.ErrFlightNotFound)
}

func TestFlightService_RoundTripsUseCurrentState(t *testing.T) {
	fake := newFakePhysics()
	svc := setupService(t, fake)
	ctx := context.Background()

	info, err := svc.CreateFlight(ctx, "heavy")
	require.NoError(t, err)

	snap, err := svc.RequestForce(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 450.0, snap.Force.ThrustY)

	snap, err = svc.RequestTrajectory(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"x":0,"y":0},{"x":0,"y":1}]`, string(snap.Trajectory))

	snap, err = svc.Integrate(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, snap.RocketState.Y)
	assert.Equal(t, 399.0, snap.RocketState.Fuel)

	snap, err = svc.RequestVector(ctx, info.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, physics.Vector{X: 0, Y: 1}, snap.Vector)
}

func TestFlightService_OverrideDoesNotTouchRocketState(t *testing.T) {
	fake := newFakePhysics()
	svc := setupService(t, fake)
	ctx := context.Background()

	info, err := svc.CreateFlight(ctx, "")
	require.NoError(t, err)

	override := physics.RocketState{Y: 50, Mass: 10, Thrust: 7}
	snap, err := svc.RequestForce(ctx, info.ID, &override)
	require.NoError(t, err)

	assert.Equal(t, 7.0, snap.Force.ThrustY)
	assert.Equal(t, override, fake.lastState)
	assert.Equal(t, physics.DefaultRocketState(), snap.RocketState)
}

func TestFlightService_VectorErrorLeavesVector(t *testing.T) {
	fake := newFakePhysics()
	svc := setupService(t, fake)
	ctx := context.Background()

	info, err := svc.CreateFlight(ctx, "")
	require.NoError(t, err)

	_, err = svc.RequestVector(ctx, info.ID, &physics.RocketState{X: 3, Y: 4})
	require.NoError(t, err)

	fake.vectorFail = true
	_, err = svc.RequestVector(ctx, info.ID, &physics.RocketState{X: 9, Y: 9})

	var httpErr *physicsapi.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, 500, httpErr.StatusCode)

	state, err := svc.GetState(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, physics.Vector{X: 3, Y: 4}, state.Vector)
}

func TestFlightService_Step(t *testing.T) {
	ctx := context.Background()

	t.Run("runs sequential integrations", func(t *testing.T) {
		fake := newFakePhysics()
		svc := setupService(t, fake)
		info, err := svc.CreateFlight(ctx, "")
		require.NoError(t, err)

		result, err := svc.Step(ctx, info.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, 5, result.RequestedSteps)
		assert.Equal(t, 5, result.StepsExecuted)
		assert.Empty(t, result.StoppedReason)
		assert.Equal(t, 0.0, result.Start.Y)
		assert.Equal(t, 5.0, result.State.RocketState.Y)
		assert.Equal(t, 95.0, result.State.RocketState.Fuel)
	})

	t.Run("stops at first failure", func(t *testing.T) {
		fake := newFakePhysics()
		fake.failAfter = 3
		svc := setupService(t, fake)
		info, err := svc.CreateFlight(ctx, "")
		require.NoError(t, err)

		result, err := svc.Step(ctx, info.ID, 10)
		require.Error(t, err)
		require.NotNil(t, result)
		assert.Equal(t, 3, result.StepsExecuted)
		assert.Contains(t, result.StoppedReason, "integrator offline")
		assert.Equal(t, 3.0, result.State.RocketState.Y)
		assert.Equal(t, 4, fake.count("integrate"))
	})

	t.Run("rejects out of range counts", func(t *testing.T) {
		svc := setupService(t, newFakePhysics())
		info, err := svc.CreateFlight(ctx, "")
		require.NoError(t, err)

		for _, n := range []int{0, -1, service.MaxSteps + 1} {
			_, err := svc.Step(ctx, info.ID, n)
			assert.ErrorIs(t, err, service.ErrInvalidSteps)
		}
	})

	t.Run("unknown flight", func(t *testing.T) {
		svc := setupService(t, newFakePhysics())
		_, err := svc.Step(ctx, "missing", 1)
		assert.ErrorIs(t, err, service.ErrFlightNotFound)
	})
}

func TestFlightService_Refresh(t *testing.T) {
	ctx := context.Background()

	t.Run("fills force trajectory and vector", func(t *testing.T) {
		fake := newFakePhysics()
		svc := setupService(t, fake)
		info, err := svc.CreateFlight(ctx, "heavy")
		require.NoError(t, err)

		snap, err := svc.Refresh(ctx, info.ID)
		require.NoError(t, err)
		assert.Equal(t, 450.0, snap.Force.ThrustY)
		assert.False(t, snap.Trajectory.IsEmpty())
		assert.Equal(t, 1, fake.count("vector"))
		assert.Equal(t, 0, fake.count("integrate"))
	})

	t.Run("vector failure still commits the others", func(t *testing.T) {
		fake := newFakePhysics()
		fake.vectorFail = true
		svc := setupService(t, fake)
		info, err := svc.CreateFlight(ctx, "heavy")
		require.NoError(t, err)

		snap, err := svc.Refresh(ctx, info.ID)
		require.Error(t, err)
		require.NotNil(t, snap)
		assert.Equal(t, 450.0, snap.Force.ThrustY)
		assert.False(t, snap.Trajectory.IsEmpty())
		assert.Equal(t, physics.Vector{}, snap.Vector)
	})
}

func TestFlightService_SetRocketStateAndReset(t *testing.T) {
	svc := setupService(t, newFakePhysics())
	ctx := context.Background()

	info, err := svc.CreateFlight(ctx, "heavy")
	require.NoError(t, err)

	custom := physics.RocketState{Y: 1000, Vy: -20, Fuel: 3, Mass: 2000, Thrust: 0}
	snap, err := svc.SetRocketState(ctx, info.ID, custom)
	require.NoError(t, err)
	assert.Equal(t, custom, snap.RocketState)

	_, err = svc.Refresh(ctx, info.ID)
	require.NoError(t, err)

	snap, err = svc.Reset(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, 2000.0, snap.RocketState.Mass)
	assert.Equal(t, 400.0, snap.RocketState.Fuel)
	assert.Equal(t, physics.ForceBreakdown{}, snap.Force)
	assert.True(t, snap.Trajectory.IsEmpty())
	assert.Equal(t, physics.Vector{}, snap.Vector)
}

func TestFlightService_NoPhysicsClient(t *testing.T) {
	svc := setupService(t, nil)
	ctx := context.Background()

	info, err := svc.CreateFlight(ctx, "")
	require.NoError(t, err)

	_, err = svc.Integrate(ctx, info.ID, nil)
	assert.ErrorIs(t, err, store.ErrNoPhysicsClient)
}

func TestFlightService_Notifier(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := setupService(t, newFakePhysics(), service.WithNotifier(notifier))
	ctx := context.Background()

	info, err := svc.CreateFlight(ctx, "")
	require.NoError(t, err)

	_, err = svc.Integrate(ctx, info.ID, nil)
	require.NoError(t, err)
	_, err = svc.RequestForce(ctx, info.ID, nil)
	require.NoError(t, err)

	changes := notifier.forFlight(info.ID)
	require.Len(t, changes, 2)
	assert.Equal(t, store.EntityRocketState, changes[0].Entity)
	assert.Equal(t, 1.0, changes[0].Snapshot.RocketState.Y)
	assert.Equal(t, store.EntityForce, changes[1].Entity)

	require.NoError(t, svc.DeleteFlight(ctx, info.ID))
	assert.Len(t, notifier.forFlight(info.ID), 2)
}

func TestFlightService_RefreshPublishesInCommitOrder(t *testing.T) {
	notifier := &recordingNotifier{}
	svc := setupService(t, newFakePhysics(), service.WithNotifier(notifier))
	ctx := context.Background()

	info, err := svc.CreateFlight(ctx, "heavy")
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		_, err := svc.SetRocketState(ctx, info.ID, physics.RocketState{X: float64(i), Y: float64(i), Fuel: 1, Mass: 2000})
		require.NoError(t, err)
		_, err = svc.Refresh(ctx, info.ID)
		require.NoError(t, err)
	}

	changes := notifier.forFlight(info.ID)
	require.Len(t, changes, 40)

	snap, err := svc.GetState(ctx, info.ID)
	require.NoError(t, err)
	assert.Equal(t, *snap, changes[len(changes)-1].Snapshot)
	assert.Equal(t, physics.Vector{X: 9, Y: 9}, changes[len(changes)-1].Snapshot.Vector)
}

func TestFlightService_Presets(t *testing.T) {
	svc := setupService(t, newFakePhysics())
	ctx := context.Background()

	infos, err := svc.ListPresets(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "default", infos[0].PresetID)
	assert.Equal(t, "heavy", infos[1].PresetID)

	preset, err := svc.GetPreset(ctx, "heavy")
	require.NoError(t, err)
	assert.Equal(t, 450.0, preset.RocketState.Thrust)

	_, err = svc.GetPreset(ctx, "missing")
	assert.ErrorIs(t, err, service.ErrPresetNotFound)
}
