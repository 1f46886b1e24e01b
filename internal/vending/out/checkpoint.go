package out

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Ckpt records how many spool records were forwarded.
type Ckpt struct {
	Forwarded int
}

type Checkpoint interface {
	Load() (ckpt Ckpt, ok bool, err error)
	Save(ckpt Ckpt) error
}

type FileCheckpoint struct {
	path string
}

func NewFileCheckpoint(path string) (*FileCheckpoint, error) {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return &FileCheckpoint{path: path}, nil
}

func (c *FileCheckpoint) Load() (Ckpt, bool, error) {
	b, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Ckpt{}, false, nil
		}
		return Ckpt{}, false, err
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return Ckpt{}, false, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return Ckpt{}, false, err
	}
	return Ckpt{Forwarded: n}, true, nil
}

// Save writes through a temp file and rename so a crash never leaves a torn file.
func (c *FileCheckpoint) Save(ckpt Ckpt) error {
	tmp := c.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(strconv.Itoa(ckpt.Forwarded)+"\n"), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, c.path)
}
