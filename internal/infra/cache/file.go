package cache

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"github.com/pkg/errors"
)

// 1スロット = 1ファイル。書き込みは一時ファイル→renameで置き換える。
type FileCache struct {
	dir string
}

func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "cache: create dir %s", dir)
	}
	return &FileCache{dir: dir}, nil
}

// スロット名はそのままだとパスに使えないのでhexにする
func (f *FileCache) path(key string) string {
	return filepath.Join(f.dir, hex.EncodeToString([]byte(key))+".json")
}

func (f *FileCache) Load(ctx context.Context, key string) (model.Cart, error) {
	data, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, repo.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "cache: read slot")
	}
	return decode(data)
}

func (f *FileCache) Save(ctx context.Context, key string, cart model.Cart) error {
	data, err := encode(cart)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".slot-*")
	if err != nil {
		return errors.Wrap(err, "cache: create temp")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "cache: write temp")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "cache: close temp")
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "cache: rename slot")
	}
	return nil
}

func (f *FileCache) Clear(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "cache: remove slot")
	}
	return nil
}

var _ repo.CartCache = (*FileCache)(nil)
