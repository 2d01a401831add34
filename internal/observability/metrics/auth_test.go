package metrics

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedMetric struct {
	name  string
	kind  string
	value float64
	tags  map[string]string
}

type fakeSink struct {
	mu      sync.Mutex
	metrics []recordedMetric
}

func (s *fakeSink) Count(name string, value int64, tags map[string]string) {
	s.add(recordedMetric{name: name, kind: "count", value: float64(value), tags: tags})
}

func (s *fakeSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.add(recordedMetric{name: name, kind: "timing", value: float64(value), tags: tags})
}

func (s *fakeSink) add(m recordedMetric) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = append(s.metrics, m)
}

func TestEmitCallbackOutcome(t *testing.T) {
	sink := &fakeSink{}
	EmitCallbackOutcome(sink, CallbackMetric{
		Flow:     FlowWait,
		Result:   ResultTimeout,
		Duration: 5 * time.Second,
		Err:      context.DeadlineExceeded,
	})

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "auth.callback", sink.metrics[0].name)
	assert.Equal(t, map[string]string{"flow": "wait", "result": "timeout", "error_class": "timeout"}, sink.metrics[0].tags)
	assert.Equal(t, "auth.callback.duration", sink.metrics[1].name)
	assert.Equal(t, "timing", sink.metrics[1].kind)
}

func TestEmitCallbackOutcome_SuccessHasNoErrorClass(t *testing.T) {
	sink := &fakeSink{}
	EmitCallbackOutcome(sink, CallbackMetric{Flow: FlowCode, Result: ResultSuccess})

	require.Len(t, sink.metrics, 1)
	_, ok := sink.metrics[0].tags["error_class"]
	assert.False(t, ok)
}

func TestEmitNavIntent(t *testing.T) {
	sink := &fakeSink{}
	EmitNavIntent(sink, true)
	EmitNavIntent(sink, false)
	EmitNavIntent(nil, true)

	require.Len(t, sink.metrics, 2)
	assert.Equal(t, "won", sink.metrics[0].tags["result"])
	assert.Equal(t, "deferred", sink.metrics[1].tags["result"])
}
