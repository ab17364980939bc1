package attachment

import (
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
)

// Preview is a local, releasable handle on a pending binary.
type Preview interface {
	Ref() string
	Size() int64
	Open() (io.ReadCloser, error)
	// Release frees the handle. Calls after the first are no-ops.
	Release()
}

type PreviewPool interface {
	Acquire(name string, r io.Reader) (Preview, error)
	// Live is the number of acquired previews not yet released.
	Live() int64
}

// TempFilePool spools each pending binary to its own file under dir.
type TempFilePool struct {
	dir  string
	live atomic.Int64
}

// NewTempFilePool uses os.TempDir() when dir is empty.
func NewTempFilePool(dir string) (*TempFilePool, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create spool dir failed: %w", err)
	}
	return &TempFilePool{dir: dir}, nil
}

func (p *TempFilePool) Acquire(name string, r io.Reader) (Preview, error) {
	f, err := os.CreateTemp(p.dir, "pending-*")
	if err != nil {
		return nil, fmt.Errorf("create spool file for %q failed: %w", name, err)
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("spool %q failed: %w", name, err)
	}

	p.live.Add(1)
	return &tempPreview{pool: p, path: f.Name(), size: n}, nil
}

func (p *TempFilePool) Live() int64 {
	return p.live.Load()
}

type tempPreview struct {
	pool *TempFilePool
	path string
	size int64
	once sync.Once
}

func (t *tempPreview) Ref() string {
	return t.path
}

func (t *tempPreview) Size() int64 {
	return t.size
}

func (t *tempPreview) Open() (io.ReadCloser, error) {
	return os.Open(t.path)
}

func (t *tempPreview) Release() {
	t.once.Do(func() {
		_ = os.Remove(t.path)
		t.pool.live.Add(-1)
	})
}
