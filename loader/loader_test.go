package loader_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ukernel/loader"
	"ukernel/mm"
	"ukernel/serr"
)

const PGSZ = 4096

func TestBuildImage(t *testing.T) {
	img, err := loader.Unmarshal(loader.BuildImage("hello", PGSZ))
	require.Nil(t, err)
	assert.Equal(t, "hello", img.Name)
	assert.Equal(t, uint64(loader.TEXT_BASE), img.Entry)
	require.Equal(t, 2, len(img.Segments))
	assert.Equal(t, []byte("hello\x00"), img.Segments[0].Data)
	assert.Equal(t, mm.PERM_U|mm.PERM_R|mm.PERM_X, img.Segments[0].Perm)
	assert.Equal(t, uint64(loader.TEXT_BASE+2*PGSZ), img.End())
}

func TestBadImage(t *testing.T) {
	_, err := loader.Unmarshal([]byte{0xff})
	assert.True(t, serr.IsErrCode(err, serr.TErrBadImage))
	_, err = loader.Unmarshal(nil)
	assert.True(t, serr.IsErrCode(err, serr.TErrBadImage))
}

func TestCachedLoader(t *testing.T) {
	ml := loader.NewMemLoader()
	ml.Add("a", loader.BuildImage("a", PGSZ))
	ml.Add("junk", []byte("junk"))
	cl := loader.NewCachedLoader(ml, 2)

	img, err := cl.LoadImage("a")
	require.Nil(t, err)
	img1, err := cl.LoadImage("a")
	require.Nil(t, err)
	assert.True(t, img == img1)
	assert.Equal(t, 1, cl.Len())

	_, err = cl.LoadImage("b")
	assert.True(t, serr.IsErrCode(err, serr.TErrNotfound))
	_, err = cl.LoadImage("junk")
	assert.NotNil(t, err)
	assert.Equal(t, 1, cl.Len())
}

func TestDirLoader(t *testing.T) {
	dir := t.TempDir()
	b := loader.BuildImage("prog", PGSZ)
	require.Nil(t, os.WriteFile(filepath.Join(dir, "prog"), b, 0644))
	dl := loader.NewDirLoader(dir)
	b1, ok := dl.Load("prog")
	assert.True(t, ok)
	assert.Equal(t, b, b1)
	_, ok = dl.Load("missing")
	assert.False(t, ok)
}
