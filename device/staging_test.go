package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/procgroup/procgroup/device"
	"github.com/procgroup/procgroup/device/simdevice"
)

func TestStagingRoundTrip(t *testing.T) {
	pool := simdevice.NewPool()
	events := simdevice.Events{}
	pinned := device.HostPinnedAllocator{}

	stage, err := device.New(pool, pinned, events, nil, 0, 4)
	require.NoError(t, err)

	deviceBuf := make([]byte, 4)
	copy(deviceBuf, []byte{1, 2, 3, 4})

	require.NoError(t, stage.StageOut(deviceBuf))
	require.NoError(t, stage.BlockUntilStaged())
	assert.Equal(t, []byte{1, 2, 3, 4}, stage.HostBytes())

	copy(stage.HostBytes(), []byte{9, 9, 9, 9})
	require.NoError(t, stage.StageIn(deviceBuf, events))
	require.NoError(t, stage.FenceCaller())
	// FenceCaller only orders the caller's default stream; drain it before reading.
	require.NoError(t, pool.Default(0).Synchronize())
	assert.Equal(t, []byte{9, 9, 9, 9}, deviceBuf)

	stage.Close()
}

func TestFenceCallerBeforeStageInErrors(t *testing.T) {
	pool := simdevice.NewPool()
	events := simdevice.Events{}
	pinned := device.HostPinnedAllocator{}

	stage, err := device.New(pool, pinned, events, nil, 0, 4)
	require.NoError(t, err)
	defer stage.Close()

	err = stage.FenceCaller()
	assert.Error(t, err)
}
