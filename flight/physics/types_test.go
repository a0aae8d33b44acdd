package physics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultRocketState(t *testing.T) {
	state := DefaultRocketState()

	assert.Equal(t, RocketState{Fuel: 100, Mass: 500, Thrust: 100}, state)
}

func TestRocketStateJSONKeys(t *testing.T) {
	data, err := json.Marshal(RocketState{X: 1, Vy: 2, Fuel: 3})
	require.NoError(t, err)

	assert.JSONEq(t, `{"x":1,"y":0,"vx":0,"vy":2,"ax":0,"ay":0,"fuel":3,"mass":0,"thrust":0}`, string(data))
}

func TestForceBreakdownJSONKeys(t *testing.T) {
	var force ForceBreakdown
	require.NoError(t, json.Unmarshal([]byte(`{"ThrustY":10,"GravityY":-5,"ResultFY":5}`), &force))

	assert.Equal(t, ForceBreakdown{ThrustY: 10, GravityY: -5, ResultFY: 5}, force)
}

func TestTrajectory_StoredVerbatim(t *testing.T) {
	raw := `{"x":[0,1],"y":[0,2],"extra":"kept"}`

	var traj Trajectory
	require.NoError(t, json.Unmarshal([]byte(raw), &traj))

	out, err := json.Marshal(traj)
	require.NoError(t, err)
	assert.JSONEq(t, raw, string(out))
}

func TestTrajectory_EmptyMarshalsAsList(t *testing.T) {
	var traj Trajectory

	out, err := json.Marshal(traj)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(out))
	assert.True(t, traj.IsEmpty())
}

func TestTrajectory_Points(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []Point
		wantErr bool
	}{
		{
			name: "list of states",
			raw:  `[{"x":0,"y":1,"vx":3},{"x":2,"y":4}]`,
			want: []Point{{X: 0, Y: 1}, {X: 2, Y: 4}},
		},
		{
			name: "parallel series",
			raw:  `{"x":[0,1,2],"y":[5,6,7]}`,
			want: []Point{{X: 0, Y: 5}, {X: 1, Y: 6}, {X: 2, Y: 7}},
		},
		{
			name: "empty",
			raw:  `[]`,
			want: []Point{},
		},
		{
			name:    "mismatched series",
			raw:     `{"x":[0,1],"y":[5]}`,
			wantErr: true,
		},
		{
			name:    "scalar",
			raw:     `42`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := Trajectory(tt.raw).Points()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, points)
		})
	}
}

func TestTrajectory_CloneIsIndependent(t *testing.T) {
	original := Trajectory(`[{"x":1,"y":1}]`)
	clone := original.Clone()
	clone[2] = 'X'

	assert.Equal(t, `[{"x":1,"y":1}]`, string(original))
}
