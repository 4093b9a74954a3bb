package reader

import (
	"io"
	"os"
	"sync"
)

// Raw is the Image implementation for plain dd/raw input files. It uses
// os.File.ReadAt directly rather than a seek-then-read pair, which already
// gives the "no visible cursor mutation across concurrent callers"
// semantics the contract requires.
type Raw struct {
	f *os.File

	mu   sync.Mutex
	size int64
	have bool
}

// OpenRaw opens path as a raw image.
func OpenRaw(path string) (*Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &Raw{f: f}, nil
}

func (r *Raw) Size() (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.have {
		return r.size, nil
	}
	fi, err := r.f.Stat()
	if err != nil {
		return 0, err
	}
	r.size = fi.Size()
	r.have = true
	return r.size, nil
}

func (r *Raw) ReadAt(p []byte, off int64) (int, error) {
	n, err := r.f.ReadAt(p, off)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

func (r *Raw) Close() error {
	return r.f.Close()
}
