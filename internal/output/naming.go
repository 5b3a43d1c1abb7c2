package output

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Priesemann-Group/BN-coalescence-finite-size-scaling/internal/network"
)

// NameParams are the run parameters encoded in an output file name.
type NameParams struct {
	Mode       network.Mode
	N          int
	M          float64
	H          float64
	Seed       uint64
	Steps      int
	Avalanches int
}

// FileName returns the conventional file name for a run, e.g.
//
//	BN_STS_binomial_N0010000_m9.50e-01_A1.00e+06_seed0001_avalanches.gz
//	BNcc_driven_binomial_N0010000_m9.00e-01_h1.00e-03_T1.00e+07_seed0001_time-series.gz
func FileName(p NameParams) string {
	var b strings.Builder
	switch p.Mode {
	case network.Driven:
		b.WriteString("BNcc_driven_binomial")
		fmt.Fprintf(&b, "_N%07d", p.N)
		fmt.Fprintf(&b, "_m%.2e", p.M)
		fmt.Fprintf(&b, "_h%.2e", p.H)
		fmt.Fprintf(&b, "_T%.2e", float64(p.Steps))
		fmt.Fprintf(&b, "_seed%04d", p.Seed)
		b.WriteString("_time-series.gz")
	default:
		b.WriteString("BN_STS_binomial")
		fmt.Fprintf(&b, "_N%07d", p.N)
		fmt.Fprintf(&b, "_m%.2e", p.M)
		if p.Avalanches > 0 {
			fmt.Fprintf(&b, "_A%.2e", float64(p.Avalanches))
			fmt.Fprintf(&b, "_seed%04d", p.Seed)
			b.WriteString("_avalanches.gz")
		} else {
			fmt.Fprintf(&b, "_T%.2e", float64(p.Steps))
			fmt.Fprintf(&b, "_seed%04d", p.Seed)
			b.WriteString("_time-series.gz")
		}
	}
	return b.String()
}

// Path joins dir and the conventional file name for p.
func Path(dir string, p NameParams) string {
	return filepath.Join(dir, FileName(p))
}
