// Package loader finds executable images by path.
package loader

import (
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/golang-lru/v2"
	"github.com/klauspost/readahead"

	db "ukernel/debug"
	"ukernel/serr"
)

type Loader interface {
	Load(path string) ([]byte, bool)
}

// MemLoader serves images from memory.
type MemLoader struct {
	sync.Mutex
	imgs map[string][]byte
}

func NewMemLoader() *MemLoader {
	return &MemLoader{imgs: make(map[string][]byte)}
}

func (ml *MemLoader) Add(path string, b []byte) {
	ml.Lock()
	defer ml.Unlock()
	ml.imgs[path] = b
}

func (ml *MemLoader) Load(path string) ([]byte, bool) {
	ml.Lock()
	defer ml.Unlock()
	b, ok := ml.imgs[path]
	return b, ok
}

// DirLoader serves images from files in a directory.
type DirLoader struct {
	dir string
}

func NewDirLoader(dir string) *DirLoader {
	return &DirLoader{dir: dir}
}

func (dl *DirLoader) Load(path string) ([]byte, bool) {
	f, err := os.Open(filepath.Join(dl.dir, filepath.Clean("/"+path)))
	if err != nil {
		db.DPrintf(db.LOADER_ERR, "Load %v err %v", path, err)
		return nil, false
	}
	defer f.Close()
	rdr, err := readahead.NewReaderSize(f, 4, 64*1024)
	if err != nil {
		db.DPrintf(db.LOADER_ERR, "readahead %v err %v", path, err)
		return nil, false
	}
	defer rdr.Close()
	b, err := io.ReadAll(rdr)
	if err != nil {
		db.DPrintf(db.LOADER_ERR, "ReadAll %v err %v", path, err)
		return nil, false
	}
	return b, true
}

// CachedLoader decodes images from a Loader and keeps the most
// recently used ones decoded.
type CachedLoader struct {
	ld Loader
	c  *lru.Cache[string, *Image]
}

func NewCachedLoader(ld Loader, sz int) *CachedLoader {
	c, err := lru.New[string, *Image](sz)
	if err != nil {
		db.DFatalf("NewCachedLoader err %v", err)
	}
	return &CachedLoader{ld: ld, c: c}
}

func (cl *CachedLoader) Load(path string) ([]byte, bool) {
	return cl.ld.Load(path)
}

// LoadImage returns the decoded image at path. Images are immutable
// once decoded, so callers share them.
func (cl *CachedLoader) LoadImage(path string) (*Image, error) {
	if img, ok := cl.c.Get(path); ok {
		db.DPrintf(db.LOADER, "LoadImage cache hit %v", path)
		return img, nil
	}
	b, ok := cl.ld.Load(path)
	if !ok {
		return nil, serr.NewErr(serr.TErrNotfound, path)
	}
	img, err := Unmarshal(b)
	if err != nil {
		return nil, err
	}
	db.DPrintf(db.LOADER, "LoadImage %v %v", path, img)
	if evict := cl.c.Add(path, img); evict {
		db.DPrintf(db.LOADER, "Eviction")
	}
	return img, nil
}

func (cl *CachedLoader) Len() int {
	return cl.c.Len()
}
