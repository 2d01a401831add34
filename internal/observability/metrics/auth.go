package metrics

import (
	"time"

	obserrors "github.com/pdsapp/pds/internal/observability/errors"
	"github.com/pdsapp/pds/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultTimeout = "timeout"
)

// Flow names the sign-in entry point that produced an outcome.
const (
	FlowCode        = "code"
	FlowAccessToken = "access_token"
	FlowExisting    = "existing_session"
	FlowWait        = "wait"
	FlowProvider    = "provider_error"
)

// CallbackMetric captures one resolved callback attempt.
type CallbackMetric struct {
	Flow     string
	Result   string
	Duration time.Duration
	Err      error
}

// EmitCallbackOutcome emits standardised callback outcome metrics.
func EmitCallbackOutcome(sink statsd.Sink, in CallbackMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"flow":   in.Flow,
		"result": in.Result,
	}
	if in.Err != nil && in.Result != ResultSuccess {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.callback", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.callback.duration", in.Duration, CloneTags(tags))
	}
}

// EmitNavIntent counts navigation intent claims by whether this request won.
func EmitNavIntent(sink statsd.Sink, won bool) {
	if sink == nil {
		return
	}
	result := "won"
	if !won {
		result = "deferred"
	}
	sink.Count("auth.nav_intent", 1, map[string]string{"result": result})
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
