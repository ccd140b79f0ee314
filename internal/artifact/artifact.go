// Package artifact implements the artifact store contract from spec §6:
// upload(localDir, keyPrefix) -> baseUrl, where baseUrl+"/index.html" must
// be fetchable. The object-store-backed implementation is an out-of-scope
// external collaborator; this package provides the filesystem-backed
// implementation supercheck-core ships with when no external store is
// configured.
package artifact

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/supercheck/core/internal/xerrors"
)

// Store uploads a local report directory and returns a base URL under which
// its contents are served.
type Store interface {
	Upload(ctx context.Context, localDir, keyPrefix string) (baseURL string, err error)
}

// FilesystemStore copies localDir into baseDir/keyPrefix and serves it from
// baseURL — the degenerate case of an object store for single-instance
// deployments with no external bucket configured.
type FilesystemStore struct {
	baseDir string
	baseURL string
}

func NewFilesystemStore(baseDir, baseURL string) *FilesystemStore {
	return &FilesystemStore{baseDir: baseDir, baseURL: strings.TrimRight(baseURL, "/")}
}

func (s *FilesystemStore) Upload(ctx context.Context, localDir, keyPrefix string) (string, error) {
	dest := filepath.Join(s.baseDir, keyPrefix)
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return "", xerrors.Wrapf(err, "failed to create artifact destination %s", dest)
	}

	err := filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(localDir, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dest, rel)

		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
	if err != nil {
		return "", xerrors.Wrapf(err, "failed to copy artifacts from %s", localDir)
	}

	return s.baseURL + "/" + keyPrefix, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
