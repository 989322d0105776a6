package web

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grayhound-dev/grayhound/pkg/status"
)

func TestNewBuffer(t *testing.T) {
	assert.Equal(t, DefaultBufferSize, NewBuffer(0).maxSize)
	assert.Equal(t, DefaultBufferSize, NewBuffer(-1).maxSize)
	assert.Equal(t, 100, NewBuffer(100).maxSize)
}

func TestBuffer_AddAll(t *testing.T) {
	t.Run("empty buffer", func(t *testing.T) {
		b := NewBuffer(10)
		assert.Nil(t, b.All())
		assert.Equal(t, 0, b.Count())
	})

	t.Run("keeps order", func(t *testing.T) {
		b := NewBuffer(10)
		b.Add(NewOutputEvent(status.StateScanning, "first"))
		b.Add(NewOutputEvent(status.StateScanning, "second"))

		all := b.All()
		require.Len(t, all, 2)
		assert.Equal(t, "first", all[0].Text)
		assert.Equal(t, "second", all[1].Text)
	})

	t.Run("overwrites oldest when full", func(t *testing.T) {
		b := NewBuffer(3)
		for _, txt := range []string{"a", "b", "c", "d", "e"} {
			b.Add(NewOutputEvent(status.StatePhaseA, txt))
		}

		all := b.All()
		require.Len(t, all, 3)
		assert.Equal(t, []string{"c", "d", "e"}, []string{all[0].Text, all[1].Text, all[2].Text})
		assert.Equal(t, 3, b.Count())
	})
}

func TestBuffer_ByState(t *testing.T) {
	b := NewBuffer(4)
	base := time.Now()
	add := func(state status.State, text string, offset int) {
		e := NewOutputEvent(state, text)
		e.Timestamp = base.Add(time.Duration(offset) * time.Millisecond)
		b.Add(e)
	}

	add(status.StateScanning, "s1", 1)
	add(status.StatePhaseA, "a1", 2)
	add(status.StatePhaseA, "a2", 3)
	add(status.StateScanning, "s2", 4)

	scan := b.ByState(status.StateScanning)
	require.Len(t, scan, 2)
	assert.Equal(t, "s1", scan[0].Text)
	assert.Equal(t, "s2", scan[1].Text)

	// wraps: s1 and a1 are overwritten
	add(status.StatePhaseA, "a3", 5)
	add(status.StatePhaseA, "a4", 6)

	scan = b.ByState(status.StateScanning)
	require.Len(t, scan, 1)
	assert.Equal(t, "s2", scan[0].Text)

	phaseA := b.ByState(status.StatePhaseA)
	require.Len(t, phaseA, 3)
	assert.Equal(t, []string{"a2", "a3", "a4"}, []string{phaseA[0].Text, phaseA[1].Text, phaseA[2].Text})

	assert.Nil(t, b.ByState(status.StateReporting))
}

func TestBuffer_Clear(t *testing.T) {
	b := NewBuffer(5)
	b.Add(NewOutputEvent(status.StateIdle, "x"))
	b.Clear()
	assert.Nil(t, b.All())
	assert.Nil(t, b.ByState(status.StateIdle))
	assert.Equal(t, 0, b.Count())
}

func TestBuffer_Concurrent(t *testing.T) {
	b := NewBuffer(50)
	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 100 {
				b.Add(NewOutputEvent(status.StatePhaseA, "x"))
				_ = b.All()
				_ = b.ByState(status.StatePhaseA)
			}
		})
	}
	wg.Wait()
	assert.Equal(t, 50, b.Count())
	assert.Len(t, b.ByState(status.StatePhaseA), 50)
}
