package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/mikeboe/market-research/pkg/metrics"
	"github.com/mikeboe/market-research/pkg/sources"
)

// Stage identifies where a run or unit currently is.
type Stage string

const (
	StageDiscovery   Stage = "discovery"
	StageDispatch    Stage = "dispatch"
	StageUnit        Stage = "unit"
	StageAggregation Stage = "aggregation"
	StageTerminal    Stage = "terminal"
)

// Event is published whenever a pipeline makes progress.
type Event struct {
	Pipeline string             `json:"pipeline"`
	Stage    Stage              `json:"stage"`
	Entity   string             `json:"entity,omitempty"`
	Message  string             `json:"message"`
	Err      string             `json:"error,omitempty"`
	Sources  *sources.SourceSet `json:"-"`
}

// Observer receives progress events. It is called from many goroutines.
type Observer func(Event)

// Notify calls o when it is set.
func (o Observer) Notify(e Event) {
	if o != nil {
		o(e)
	}
}

// StageError records which stage of which unit failed.
type StageError struct {
	Entity string
	Stage  Stage
	Err    error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: stage %s: %v", e.Entity, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// UnitFailure is the record kept in aggregate outputs for an omitted unit.
type UnitFailure struct {
	Entity string `json:"entity"`
	Stage  Stage  `json:"stage"`
	Error  string `json:"error"`
}

// Failure converts err into a UnitFailure for entity.
func Failure(entity string, err error) UnitFailure {
	f := UnitFailure{Entity: entity, Stage: StageUnit, Error: err.Error()}
	var se *StageError
	if errors.As(err, &se) {
		f.Stage = se.Stage
	}
	return f
}

// Time starts a stage timer; call the returned func when the stage ends.
func Time(pipeline string, stage Stage) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(pipeline, string(stage)).Observe(time.Since(start).Seconds())
	}
}
