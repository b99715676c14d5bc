package usr

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukernel/trap"
)

type fakeMem struct {
	strs map[uint64]string
}

func (fm *fakeMem) Load(va uint64, n int) ([]byte, error) {
	return nil, fmt.Errorf("no load")
}

func (fm *fakeMem) Store(va uint64, b []byte) error {
	return fmt.Errorf("no store")
}

func (fm *fakeMem) LoadStr(va uint64) (string, error) {
	s, ok := fm.strs[va]
	if !ok {
		return "", fmt.Errorf("fault %#x", va)
	}
	return s, nil
}

type fakeMachine struct {
	cx  *trap.Context
	mem *fakeMem
}

func newFakeMachine() *fakeMachine {
	return &fakeMachine{
		cx:  trap.NewContext(make([]byte, trap.SZ)),
		mem: &fakeMem{strs: map[uint64]string{0x10000: "prog"}},
	}
}

func (fm *fakeMachine) Context() *trap.Context { return fm.cx }
func (fm *fakeMachine) Memory() trap.Memory { return fm.mem }
func (fm *fakeMachine) Ecall() {}

func TestMainByName(t *testing.T) {
	rt := NewRuntime()
	rt.Register("prog", func(e *Env) int { return 3 })
	m := newFakeMachine()
	m.cx.SetSepc(0x10000)
	main, err := rt.main(m)
	require.Nil(t, err)
	assert.Equal(t, 3, main(nil))

	m.mem.strs[0x10000] = "other"
	_, err = rt.main(m)
	assert.NotNil(t, err)

	m.cx.SetSepc(0x20000)
	_, err = rt.main(m)
	assert.NotNil(t, err)
}

func TestContinuation(t *testing.T) {
	rt := NewRuntime()
	l1 := rt.addCont(func(e *Env) int { return 1 })
	l2 := rt.addCont(func(e *Env) int { return 2 })
	assert.NotEqual(t, l1, l2)
	assert.NotEqual(t, uint64(0), l1&CONT_BIT)

	m := newFakeMachine()
	m.cx.SetSepc(l2)
	main, err := rt.main(m)
	require.Nil(t, err)
	assert.Equal(t, 2, main(nil))

	// Continuations run once.
	_, err = rt.main(m)
	assert.NotNil(t, err)

	_, ok := rt.takeCont(l1)
	assert.True(t, ok)
}

func TestPrograms(t *testing.T) {
	rt := NewRuntime()
	rt.Register("a", func(e *Env) int { return 0 })
	rt.Register("b", func(e *Env) int { return 0 })
	assert.ElementsMatch(t, []string{"a", "b"}, rt.Programs())
}
