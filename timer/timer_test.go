package timer_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"ukernel/timer"
)

func TestMonotonic(t *testing.T) {
	c := timer.NewMonotonic()
	t0 := c.NowUs()
	time.Sleep(2 * time.Millisecond)
	t1 := c.NowUs()
	assert.True(t, t1 >= t0+2000, "%d %d", t0, t1)
}

func TestManual(t *testing.T) {
	c := timer.NewManual()
	assert.Equal(t, uint64(0), c.NowUs())
	c.Advance(2500)
	assert.Equal(t, uint64(2500), c.NowUs())
	assert.Equal(t, uint64(2), timer.NowMs(c))
}
