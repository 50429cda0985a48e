package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestID_NewAndParse(t *testing.T) {
	id := NewID()
	assert.False(t, id.IsZero())

	parsed, err := ParseID(id.String())
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestID_ParseRejectsInvalid(t *testing.T) {
	_, err := ParseID("")
	assert.Error(t, err)

	_, err = ParseID("not-a-uuid")
	assert.Error(t, err)
}

func TestID_JSONRoundTrip(t *testing.T) {
	id := NewID()

	data, err := json.Marshal(id)
	require.NoError(t, err)

	var back ID
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, id, back)
}

func TestID_ZeroMarshalsAsNull(t *testing.T) {
	data, err := json.Marshal(ID(""))
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestRobotStatus_IsValid(t *testing.T) {
	for _, s := range []RobotStatus{
		StatusIdle, StatusDispatched, StatusMoving, StatusPositioning,
		StatusPainting, StatusCompleted, StatusAborted, StatusError,
	} {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, RobotStatus("sleeping").IsValid())
}

func TestRobotStatus_UnmarshalRejectsUnknown(t *testing.T) {
	var s RobotStatus
	err := json.Unmarshal([]byte(`"sleeping"`), &s)
	assert.Error(t, err)
}
