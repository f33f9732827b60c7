package metrics

import "time"

// Recorder receives payment lifecycle metrics. The zero-dependency
// NoopRecorder is used unless a real recorder is configured.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Counter and latency names emitted by the payment engine.
const (
	CounterVerifyOK      = "verify_ok"
	CounterVerifyReject  = "verify_reject"
	CounterVerifyError   = "verify_error"
	CounterSettleOK      = "settle_ok"
	CounterSettleFail    = "settle_fail"
	CounterSettleError   = "settle_error"
	CounterChallenge     = "challenge_issued"
	LatencyVerify        = "verify"
	LatencySettle        = "settle"
)
