package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_StartsIdle(t *testing.T) {
	m := NewMachine(nil)
	assert.Equal(t, Idle, m.Current())
	assert.False(t, m.Busy())
}

func TestMachine_AllowedTransitions(t *testing.T) {
	tests := []struct {
		from RobotState
		to   RobotState
	}{
		{Idle, Moving},
		{Moving, Positioning},
		{Positioning, Painting},
		{Painting, Completed},
		{Completed, Idle},
		{Moving, Idle},
		{Positioning, Moving},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			m := NewMachine(nil)
			forceTo(t, m, tt.from)
			assert.True(t, m.Request(tt.to))
			assert.Equal(t, tt.to, m.Current())
		})
	}
}

func TestMachine_RejectsAllDisallowedTransitions(t *testing.T) {
	all := []RobotState{Idle, Moving, Positioning, Painting, Completed, Error}

	for _, from := range all {
		for _, to := range all {
			if from == to || allowed(from, to) {
				continue
			}
			m := NewMachine(nil)
			forceTo(t, m, from)

			assert.False(t, m.Request(to), "expected %s -> %s to be rejected", from, to)
			assert.Equal(t, from, m.Current(), "state mutated on rejected %s -> %s", from, to)
		}
	}
}

func TestMachine_SelfTransitionIsNoOpWithoutCallback(t *testing.T) {
	m := NewMachine(nil)

	fired := 0
	m.Subscribe(func(old, new RobotState) { fired++ })

	assert.True(t, m.Request(Idle))
	assert.Equal(t, 0, fired)
	assert.Equal(t, Idle, m.Current())
}

func TestMachine_ErrorOnlyClearsToIdle(t *testing.T) {
	for _, target := range []RobotState{Moving, Positioning, Painting, Completed} {
		m := NewMachine(nil)
		require.True(t, m.EmergencyStop())

		assert.False(t, m.Request(target))
		assert.False(t, m.Force(target), "force must not escape error to %s", target)
		assert.Equal(t, Error, m.Current())
	}

	m := NewMachine(nil)
	require.True(t, m.EmergencyStop())
	assert.True(t, m.ResetToIdle())
	assert.Equal(t, Idle, m.Current())
}

func TestMachine_ForceBypassesTable(t *testing.T) {
	m := NewMachine(nil)
	// Idle -> Painting is not in the table.
	require.False(t, m.Request(Painting))
	assert.True(t, m.Force(Painting))
	assert.Equal(t, Painting, m.Current())
}

func TestMachine_CallbackReceivesOldAndNew(t *testing.T) {
	m := NewMachine(nil)

	var gotOld, gotNew RobotState
	m.Subscribe(func(old, new RobotState) {
		gotOld = old
		gotNew = new
	})

	require.True(t, m.Request(Moving))
	assert.Equal(t, Idle, gotOld)
	assert.Equal(t, Moving, gotNew)
	assert.Equal(t, Idle, m.Previous())
}

func TestMachine_CallbackMayReadMachine(t *testing.T) {
	m := NewMachine(nil)

	var seen RobotState
	m.Subscribe(func(old, new RobotState) {
		// Callbacks run outside the lock, so reads must not deadlock.
		seen = m.Current()
	})

	require.True(t, m.Request(Moving))
	assert.Equal(t, Moving, seen)
}

func TestMachine_TimeInStateResetsOnTransition(t *testing.T) {
	m := NewMachine(nil)
	require.True(t, m.Request(Moving))
	assert.Less(t, m.TimeInState().Seconds(), 1.0)
}

// forceTo walks the machine into the given state for test setup.
func forceTo(t *testing.T, m *Machine, s RobotState) {
	t.Helper()
	if s == Idle {
		return
	}
	if s == Error {
		require.True(t, m.EmergencyStop())
		return
	}
	require.True(t, m.Force(s))
}
