package simulation

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/emit"
	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/output"
)

// Stream kinds recognised by Inspect.
const (
	KindTimeSeries = "time-series"
	KindAvalanches = "avalanches"
)

// histogramBins is the number of log-spaced bins of the size histogram.
const histogramBins = 16

// Moments summarises one column of a stream.
type Moments struct {
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Median float64 `json:"median"`
	Max    float64 `json:"max"`
}

// Bin is one bucket of a histogram, covering [Lower, Upper).
type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count float64 `json:"count"`
}

// Report describes a stream read back from disk.
type Report struct {
	Path    string   `json:"path"`
	Kind    string   `json:"kind"`
	Header  []string `json:"header"`
	Records int      `json:"records"`

	// Time-series streams.
	Active        *Moments `json:"active,omitempty"`
	ActiveInt     *Moments `json:"active_int,omitempty"`
	InternalRatio float64  `json:"internal_ratio,omitempty"`

	// Avalanche streams.
	Duration      *Moments `json:"duration,omitempty"`
	Size          *Moments `json:"size,omitempty"`
	SizeHistogram []Bin    `json:"size_histogram,omitempty"`
}

// Inspect reads the stream at path and computes summary statistics of its
// columns. The stream kind is taken from its header.
func Inspect(path string) (*Report, error) {
	records, header, err := output.ReadAll(path)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		Path:    path,
		Kind:    detectKind(header),
		Header:  header,
		Records: len(records),
	}
	if len(records) == 0 {
		return rep, nil
	}

	a := make([]float64, len(records))
	b := make([]float64, len(records))
	for i, r := range records {
		a[i], b[i] = r.A, r.B
	}

	switch rep.Kind {
	case KindAvalanches:
		rep.Duration = moments(a)
		rep.Size = moments(b)
		rep.SizeHistogram = logHistogram(b)
	default:
		rep.Active = moments(a)
		rep.ActiveInt = moments(b)
		// b[t+1] over a[t], restricted to steps with activity.
		var num, den float64
		for t := 0; t+1 < len(a); t++ {
			if a[t] > 0 {
				den += a[t]
				num += b[t+1]
			}
		}
		if den > 0 {
			rep.InternalRatio = num / den
		}
	}
	return rep, nil
}

func detectKind(header []string) string {
	want := emit.AvalancheHeader()[0]
	for _, h := range header {
		if strings.TrimSpace(h) == want {
			return KindAvalanches
		}
	}
	return KindTimeSeries
}

// moments sorts a copy of x; x itself is left in stream order.
func moments(x []float64) *Moments {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mean, std := stat.MeanStdDev(sorted, nil)
	if len(sorted) < 2 {
		std = 0
	}
	return &Moments{
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Max:    floats.Max(sorted),
	}
}

// logHistogram bins positive values into log-spaced buckets from 1 to just
// above the maximum.
func logHistogram(x []float64) []Bin {
	sorted := make([]float64, 0, len(x))
	for _, v := range x {
		if v >= 1 {
			sorted = append(sorted, v)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Float64s(sorted)

	dividers := floats.LogSpan(make([]float64, histogramBins+1), 1, sorted[len(sorted)-1]+1)
	counts := stat.Histogram(nil, dividers, sorted, nil)

	bins := make([]Bin, len(counts))
	for i, c := range counts {
		bins[i] = Bin{Lower: dividers[i], Upper: dividers[i+1], Count: c}
	}
	return bins
}

// String renders the report as aligned text.
func (r *Report) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n  kind:    %s\n  records: %d\n", r.Path, r.Kind, r.Records)
	line := func(name string, m *Moments) {
		if m == nil {
			return
		}
		fmt.Fprintf(&sb, "  %-10s mean=%.4g std=%.4g median=%.4g max=%.4g\n",
			name+":", m.Mean, m.StdDev, m.Median, m.Max)
	}
	line("N_a", r.Active)
	line("N_int", r.ActiveInt)
	if r.Kind == KindTimeSeries && r.Records > 1 {
		fmt.Fprintf(&sb, "  ratio:     %.6f\n", r.InternalRatio)
	}
	line("duration", r.Duration)
	line("size", r.Size)
	for _, b := range r.SizeHistogram {
		if b.Count > 0 {
			fmt.Fprintf(&sb, "    [%9.4g, %9.4g) %g\n", b.Lower, b.Upper, b.Count)
		}
	}
	return sb.String()
}
