package apps_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ukernel/test"
)

func TestHello(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "hello"))
}

func TestForktest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "forktest"))
}

func TestExectest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "exectest"))
}

func TestSpawntest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "spawntest"))
}

func TestSbrktest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "sbrktest"))
}

func TestMmaptest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "mmaptest"))
}

func TestStridetest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "stridetest"))
}

func TestSemtest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "semtest"))
}

func TestDeadlocktest(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "deadlocktest"))
}

func TestUsertests(t *testing.T) {
	assert.Equal(t, int32(0), test.RunApp(t, "usertests"))
}
