package compilationcache

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
)

// NewFileCache returns a Cache storing each entry in a file of dir, created
// on the first Add.
func NewFileCache(dir string) Cache {
	return newFileCache(dir)
}

func newFileCache(dir string) *fileCache {
	return &fileCache{dirPath: dir}
}

// fileCache writes an entry to a temporary file renamed to its final name,
// so that concurrent readers never see a partial entry.
type fileCache struct {
	dirPath string
}

func (f *fileCache) path(key Key) string {
	return path.Join(f.dirPath, hex.EncodeToString(key[:]))
}

// Get implements Cache.Get.
func (f *fileCache) Get(key Key) (content io.ReadCloser, ok bool, err error) {
	content, err = os.Open(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	} else {
		return content, true, nil
	}
}

// Add implements Cache.Add.
func (f *fileCache) Add(key Key, content io.Reader) (err error) {
	if err = f.ensureDir(); err != nil {
		return
	}
	tmp, err := os.CreateTemp(f.dirPath, "tmp-*")
	if err != nil {
		return
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = io.Copy(tmp, content); err != nil {
		_ = tmp.Close()
		return
	}
	if err = tmp.Close(); err != nil {
		return
	}
	return os.Rename(tmp.Name(), f.path(key))
}

func (f *fileCache) ensureDir() error {
	st, err := os.Stat(f.dirPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		return os.MkdirAll(f.dirPath, 0o700)
	case err != nil:
		return err
	case !st.IsDir():
		return fmt.Errorf("fileCache: expected dir at %s", f.dirPath)
	}
	return nil
}

// Delete implements Cache.Delete.
func (f *fileCache) Delete(key Key) (err error) {
	err = os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	return
}
