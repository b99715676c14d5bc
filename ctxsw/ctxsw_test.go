package ctxsw_test

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"

	"ukernel/ctxsw"
)

func TestPingPong(t *testing.T) {
	sw := ctxsw.NewSwitcher()
	trace := make([]string, 0)
	var a, b *ctxsw.Context
	a = sw.NewContext("a", func() {
		for i := 0; i < 3; i++ {
			trace = append(trace, "a")
			sw.Switch(a, b)
		}
		sw.Halt()
		runtime.Goexit()
	})
	b = sw.NewContext("b", func() {
		for {
			trace = append(trace, "b")
			sw.Switch(b, a)
		}
	})
	sw.Boot(sw.NewContext("idle", nil), a)
	assert.Equal(t, []string{"a", "b", "a", "b", "a", "b"}, trace)
	assert.True(t, sw.Halted())
}

func TestSwitchAway(t *testing.T) {
	sw := ctxsw.NewSwitcher()
	n := 0
	var b *ctxsw.Context
	a := sw.NewContext("a", func() {
		n++
		sw.SwitchAway(b)
		runtime.Goexit()
	})
	b = sw.NewContext("b", func() {
		n++
		sw.Halt()
		runtime.Goexit()
	})
	sw.Boot(sw.NewContext("idle", nil), a)
	assert.Equal(t, 2, n)
}
