// Package emit turns engine observations into text records and forwards
// them to a line sink.
package emit

import (
	"fmt"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
)

// Sink accepts pre-formatted lines and writes them in call order.
type Sink interface {
	WriteLine(line string) error
}

// Emitter consumes one observation per step.
type Emitter interface {
	// Header returns the comment lines written before any record.
	Header() []string
	// Observe formats the observation, if it produces a record, and
	// forwards it to the sink.
	Observe(obs network.Observation) error
	// Records returns the number of records forwarded so far.
	Records() int
}

// TimeSeriesHeader returns the comment lines naming the time-series columns.
func TimeSeriesHeader() []string {
	return []string{
		"#N_a = number of active sites at time step t",
		"#N_int = number of internally activated sites at time step t+1 (excluding external drive)",
		"# N_a\t N_int",
	}
}

// AvalancheHeader returns the comment line naming the avalanche columns.
func AvalancheHeader() []string {
	return []string{"# duration size"}
}

// FormatTimeSeries formats one time-series record in scientific notation.
func FormatTimeSeries(active, activeInt int) string {
	return fmt.Sprintf("%e %e", float64(active), float64(activeInt))
}

// FormatAvalanche formats one avalanche record as plain integers.
func FormatAvalanche(a network.Avalanche) string {
	return fmt.Sprintf("%d %d", a.Duration, a.Size)
}

// TimeSeriesEmitter writes one (num_active, num_active_int) record per step.
type TimeSeriesEmitter struct {
	sink    Sink
	records int
}

// NewTimeSeries creates a time-series emitter writing to sink.
func NewTimeSeries(sink Sink) *TimeSeriesEmitter {
	return &TimeSeriesEmitter{sink: sink}
}

// Header implements Emitter.
func (e *TimeSeriesEmitter) Header() []string { return TimeSeriesHeader() }

// Observe implements Emitter.
func (e *TimeSeriesEmitter) Observe(obs network.Observation) error {
	if err := e.sink.WriteLine(FormatTimeSeries(obs.Active, obs.ActiveInt)); err != nil {
		return fmt.Errorf("writing step %d: %w", obs.Step, err)
	}
	e.records++
	return nil
}

// Records implements Emitter.
func (e *TimeSeriesEmitter) Records() int { return e.records }

// AvalancheEmitter writes one (duration, size) record per completed
// avalanche and ignores every other step.
type AvalancheEmitter struct {
	sink    Sink
	records int
}

// NewAvalanche creates an avalanche emitter writing to sink.
func NewAvalanche(sink Sink) *AvalancheEmitter {
	return &AvalancheEmitter{sink: sink}
}

// Header implements Emitter.
func (e *AvalancheEmitter) Header() []string { return AvalancheHeader() }

// Observe implements Emitter.
func (e *AvalancheEmitter) Observe(obs network.Observation) error {
	if obs.Avalanche == nil {
		return nil
	}
	if err := e.sink.WriteLine(FormatAvalanche(*obs.Avalanche)); err != nil {
		return fmt.Errorf("writing avalanche at step %d: %w", obs.Step, err)
	}
	e.records++
	return nil
}

// Records implements Emitter.
func (e *AvalancheEmitter) Records() int { return e.records }

// WriteHeader writes the emitter's header lines to sink.
func WriteHeader(sink Sink, e Emitter) error {
	for _, line := range e.Header() {
		if err := sink.WriteLine(line); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	return nil
}
