package id

import (
	"bytes"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateUnique(t *testing.T) {
	gen := NewGenerator()
	assert.NotEqual(t, gen.Generate(), gen.Generate())
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{ConnectionPrefix, WatchPrefix, TracePrefix, SpanPrefix} {
		id := gen.GenerateWithPrefix(prefix)
		parts := strings.Split(id, "_")
		require.Len(t, parts, 2, id)
		assert.Equal(t, prefix, parts[0])
		assert.Len(t, parts[1], 26)
	}
}

func TestTypedIDs(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewConnectionID().String(), "conn_"))
	assert.True(t, strings.HasPrefix(NewWatchID().String(), "watch_"))
	assert.True(t, strings.HasPrefix(string(NewTraceID()), "trace_"))
	assert.True(t, strings.HasPrefix(string(NewSpanID()), "span_"))
}

func TestTimestamp(t *testing.T) {
	before := time.Now().Add(-time.Second)
	ts, err := Timestamp(NewConnectionID().String())
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = Timestamp("conn_not-a-ulid")
	assert.Error(t, err)
}

func TestDeterministicEntropy(t *testing.T) {
	gen := NewGeneratorWithEntropy(bytes.NewReader(bytes.Repeat([]byte{7}, 64)))
	id := gen.Generate()
	assert.Equal(t, byte(7), id.Entropy()[0])
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()
	seen := sync.Map{}
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, dup := seen.LoadOrStore(gen.GenerateWithPrefix(WatchPrefix), true)
			assert.False(t, dup)
		}()
	}
	wg.Wait()
}
