package store

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdapterNamespacesKeys(t *testing.T) {
	raw := NewMemStore()
	a1 := NewAdapter(raw)
	a2 := NewAdapter(raw)

	require.NoError(t, a1.Set("k", []byte("from-a1")))
	require.NoError(t, a2.Set("k", []byte("from-a2")))

	v1, err := a1.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "from-a1", string(v1))

	v2, err := a2.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "from-a2", string(v2))
}

func TestAdapterWaitBlocksUntilSet(t *testing.T) {
	raw := NewMemStore()
	a := NewAdapter(raw)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		_ = a.Set("ready", []byte("1"))
	}()

	err := a.Wait([]string{"ready"}, 500*time.Millisecond)
	require.NoError(t, err)
	wg.Wait()
}

func TestAdapterWaitTimesOut(t *testing.T) {
	raw := NewMemStore()
	a := NewAdapter(raw)
	err := a.Wait([]string{"never-set"}, 20*time.Millisecond)
	assert.Error(t, err)
}
