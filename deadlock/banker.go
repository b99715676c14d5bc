// Package deadlock decides whether granting a resource request could
// leave tasks unable to finish, using the Banker's safety check.
package deadlock

import (
	"fmt"
)

// Snapshot is the resource state the check runs over. Rows of
// Allocation and Need are tasks; columns are resources.
type Snapshot struct {
	Available  []int
	Allocation [][]int
	Need       [][]int
}

func (s Snapshot) String() string {
	return fmt.Sprintf("{avail %v alloc %v need %v}", s.Available, s.Allocation, s.Need)
}

// IsUnsafe reports whether some task could never finish: it repeatedly
// lets any task whose need fits in the available resources finish and
// return its allocation, until no more progress is possible. The
// snapshot is not modified.
func IsUnsafe(s Snapshot) bool {
	work := append([]int(nil), s.Available...)
	finish := make([]bool, len(s.Need))
	for progress := true; progress; {
		progress = false
		for t := range s.Need {
			if finish[t] || !fits(s.Need[t], work) {
				continue
			}
			for r := range work {
				work[r] += s.Allocation[t][r]
			}
			finish[t] = true
			progress = true
		}
	}
	for _, f := range finish {
		if !f {
			return true
		}
	}
	return false
}

func fits(need, work []int) bool {
	for r, n := range need {
		if n > work[r] {
			return false
		}
	}
	return true
}
