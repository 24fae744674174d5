package bridge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand_ChargeLimit(t *testing.T) {
	cmd, err := ParseCommand("charge_limit", "80")
	require.NoError(t, err)
	assert.Equal(t, SetChargeLimit{Percent: 80}, cmd)
}

func TestParseCommand_ChargeLimitLenient(t *testing.T) {
	// Float and garbage payloads parse leniently rather than erroring.
	cmd, err := ParseCommand("charge_limit", "82.5")
	require.NoError(t, err)
	assert.Equal(t, SetChargeLimit{Percent: 82}, cmd)

	cmd, err = ParseCommand("charge_limit", "not-a-number")
	require.NoError(t, err)
	assert.Equal(t, SetChargeLimit{Percent: 0}, cmd)
}

func TestParseCommand_Charging(t *testing.T) {
	cmd, err := ParseCommand("charging", "true")
	require.NoError(t, err)
	assert.Equal(t, StartCharge{}, cmd)

	cmd, err = ParseCommand("charging", "false")
	require.NoError(t, err)
	assert.Equal(t, StopCharge{}, cmd)

	_, err = ParseCommand("charging", "maybe")
	assert.Error(t, err)
}

func TestParseCommand_UnknownSetting(t *testing.T) {
	_, err := ParseCommand("sentry_mode", "true")
	assert.Error(t, err)
}

func TestCommand_Apply(t *testing.T) {
	v := newFakeVehicle()
	ctx := context.Background()

	require.NoError(t, SetChargeLimit{Percent: 90}.Apply(ctx, v))
	assert.Equal(t, 90, v.chargeLimitSet)

	require.NoError(t, StartCharge{}.Apply(ctx, v))
	assert.Equal(t, 1, v.startCalls)

	require.NoError(t, StopCharge{}.Apply(ctx, v))
	assert.Equal(t, 1, v.stopCalls)
}
