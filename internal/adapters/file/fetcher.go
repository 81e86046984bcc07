package file

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

// Fetcher implements ports.Fetcher over a directory of bundled markup.
// It is used as the fallback when network retrieval fails.
type Fetcher struct {
	fsys fs.FS
}

// NewFetcher serves markup from dir.
func NewFetcher(dir string) *Fetcher {
	return NewFetcherFS(os.DirFS(dir))
}

// NewFetcherFS serves markup from any fs.FS, such as an embed.FS.
func NewFetcherFS(fsys fs.FS) *Fetcher {
	return &Fetcher{fsys: fsys}
}

// Fetch reads the file named by locator. Query strings and leading slashes are ignored.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	name := locator
	if i := strings.IndexByte(name, '?'); i >= 0 {
		name = name[:i]
	}
	name = path.Clean(strings.TrimPrefix(name, "/"))
	if !fs.ValidPath(name) {
		return nil, &domain.RetrievalError{Locator: locator, Err: fs.ErrInvalid}
	}

	data, err := fs.ReadFile(f.fsys, name)
	if err != nil {
		return nil, &domain.RetrievalError{Locator: locator, Err: err}
	}
	return data, nil
}

// Post is not supported by bundled markup.
func (f *Fetcher) Post(ctx context.Context, locator string, body []byte) ([]byte, error) {
	return nil, &domain.RetrievalError{Locator: locator, Err: errors.New("bundled markup is read-only")}
}
