package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/cstrsim/internal/dynamo"
)

// TrackingError is the integral of absolute error (IAE) of one channel
// against its target, with a unit sample time.
type TrackingError struct {
	name    string
	channel int
	target  float64
	sum     float64
}

func NewTrackingError(channel int, target float64) *TrackingError {
	label := "ca"
	if channel == dynamo.T {
		label = "t"
	}
	return &TrackingError{
		name:    fmt.Sprintf("iae_%s", label),
		channel: channel,
		target:  target,
	}
}

func (e *TrackingError) Name() string {
	return e.name
}

func (e *TrackingError) Observe(x dynamo.State, u dynamo.Control, t float64) {
	e.sum += math.Abs(x[e.channel] - e.target)
}

func (e *TrackingError) Value() float64 {
	return e.sum
}

func (e *TrackingError) Reset() {
	e.sum = 0
}

// ClosedLoop returns the standard metric set for an episode tracking ideal.
func ClosedLoop(ideal dynamo.State) []dynamo.Metric {
	return []dynamo.Metric{
		NewControlEffort(),
		NewSaturation(),
		NewTrackingError(dynamo.Ca, ideal[dynamo.Ca]),
		NewTrackingError(dynamo.T, ideal[dynamo.T]),
	}
}
