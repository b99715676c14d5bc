package kernel

import (
	"fmt"

	"github.com/montanaflynn/stats"

	db "ukernel/debug"
	"ukernel/excl"
)

// Stats records the turnaround time (first dispatch to exit) of every
// task that exits.
type Stats struct {
	turnaround *excl.Cell[[]float64]
}

func newStats() *Stats {
	return &Stats{turnaround: excl.NewCell("stats", make([]float64, 0))}
}

func (st *Stats) exited(us uint64) {
	st.turnaround.With(func(ts *[]float64) { *ts = append(*ts, float64(us)/1000.0) })
}

func (st *Stats) NExited() int {
	g := st.turnaround.Access()
	defer g.Release()
	return len(*g.Get())
}

type Summary struct {
	N      int
	Mean   float64
	Median float64
	P90    float64
	Max    float64
}

func (s *Summary) String() string {
	return fmt.Sprintf("{n %d mean %.3fms median %.3fms p90 %.3fms max %.3fms}", s.N, s.Mean, s.Median, s.P90, s.Max)
}

// Summary returns turnaround statistics in milliseconds.
func (st *Stats) Summary() *Summary {
	g := st.turnaround.Access()
	data := append([]float64(nil), *g.Get()...)
	g.Release()
	s := &Summary{N: len(data)}
	if len(data) == 0 {
		return s
	}
	var err error
	if s.Mean, err = stats.Mean(data); err != nil {
		db.DPrintf(db.KERNEL, "Error calculating mean: %v", err)
	}
	if s.Median, err = stats.Percentile(data, 50); err != nil {
		db.DPrintf(db.KERNEL, "Error calculating percentile 50: %v", err)
	}
	if s.P90, err = stats.Percentile(data, 90); err != nil {
		db.DPrintf(db.KERNEL, "Error calculating percentile 90: %v", err)
	}
	if s.Max, err = stats.Max(data); err != nil {
		db.DPrintf(db.KERNEL, "Error calculating max: %v", err)
	}
	return s
}

func (st *Stats) String() string {
	return st.Summary().String()
}
