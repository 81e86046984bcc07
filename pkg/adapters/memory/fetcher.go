package memory

import (
	"context"
	"errors"
	"strings"

	"github.com/aretw0/arbor/pkg/domain"
)

var errNotBundled = errors.New("not bundled")

// Fetcher implements ports.Fetcher over markup bundled in memory.
// Locators are matched with any leading "/" or "./" removed.
type Fetcher struct {
	files map[string][]byte
}

// NewFetcher creates a Fetcher serving the given locator → content map.
func NewFetcher(files map[string]string) *Fetcher {
	f := &Fetcher{files: make(map[string][]byte, len(files))}
	for k, v := range files {
		f.files[clean(k)] = []byte(v)
	}
	return f
}

// Fetch returns the bundled content for locator.
func (f *Fetcher) Fetch(ctx context.Context, locator string) ([]byte, error) {
	content, ok := f.files[clean(locator)]
	if !ok {
		return nil, &domain.RetrievalError{Locator: locator, Err: errNotBundled}
	}
	return content, nil
}

// Post is not supported by bundled markup.
func (f *Fetcher) Post(ctx context.Context, locator string, body []byte) ([]byte, error) {
	return nil, &domain.RetrievalError{Locator: locator, Err: errors.New("bundled markup is read-only")}
}

func clean(locator string) string {
	return strings.TrimPrefix(strings.TrimPrefix(locator, "./"), "/")
}
