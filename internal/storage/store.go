// Package storage publishes prepared dataset directories to an object store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"k8s.io/klog/v2"
)

// ErrBucketRequired is returned for an empty bucket name.
var ErrBucketRequired = errors.New("bucket name is required")

// ObjectStore is the subset of S3 operations publishing needs.
type ObjectStore interface {
	EnsureBucket(ctx context.Context, bucket string) error
	PutFile(ctx context.Context, bucket, key, file string) (int64, error)
	ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Published lists what PublishDir uploaded.
type Published struct {
	Keys  []string
	Bytes int64
}

// PublishDir uploads every regular file below dir to bucket under prefix,
// creating the bucket when missing. Keys use forward slashes.
// Unfinished record files (*.partial) are skipped.
func PublishDir(ctx context.Context, store ObjectStore, bucket, prefix, dir string) (*Published, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}
	if err := store.EnsureBucket(ctx, bucket); err != nil {
		return nil, fmt.Errorf("ensure bucket %s: %w", bucket, err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && !strings.HasSuffix(p, ".partial") {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)

	out := &Published{}
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		rel, err := filepath.Rel(dir, f)
		if err != nil {
			return out, err
		}
		key := path.Join(prefix, filepath.ToSlash(rel))
		n, err := store.PutFile(ctx, bucket, key, f)
		if err != nil {
			return out, fmt.Errorf("upload %s: %w", key, err)
		}
		klog.V(1).Infof("uploaded s3://%s/%s (%s)", bucket, key, humanize.Bytes(uint64(n)))
		out.Keys = append(out.Keys, key)
		out.Bytes += n
	}
	klog.Infof("published %d files (%s) to s3://%s/%s", len(out.Keys), humanize.Bytes(uint64(out.Bytes)), bucket, prefix)
	return out, nil
}

// LocalStore keeps objects as files under a root directory.
type LocalStore struct {
	root string
}

// NewLocalStore creates a store rooted at root.
func NewLocalStore(root string) *LocalStore {
	return &LocalStore{root: root}
}

func (s *LocalStore) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if bucket == "" {
		return ErrBucketRequired
	}
	return os.MkdirAll(filepath.Join(s.root, bucket), 0o755)
}

func (s *LocalStore) PutFile(ctx context.Context, bucket, key, file string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	dst := filepath.Join(s.root, bucket, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}

	src, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (s *LocalStore) ListPrefix(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	base := filepath.Join(s.root, bucket)
	var keys []string
	err := filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	sort.Strings(keys)
	return keys, err
}
