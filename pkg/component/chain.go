package component

import (
	"context"
	"errors"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// Chain tries each fetcher in order and returns the first success.
// The usual chain is network first, then bundled markup.
type Chain []ports.Fetcher

// Fetch implements ports.Fetcher.
func (c Chain) Fetch(ctx context.Context, locator string) ([]byte, error) {
	var errs []error
	for _, f := range c {
		body, err := f.Fetch(ctx, locator)
		if err == nil {
			return body, nil
		}
		errs = append(errs, err)
	}
	return nil, &domain.RetrievalError{Locator: locator, Err: errors.Join(errs...)}
}

// Post implements ports.Fetcher.
func (c Chain) Post(ctx context.Context, locator string, body []byte) ([]byte, error) {
	var errs []error
	for _, f := range c {
		out, err := f.Post(ctx, locator, body)
		if err == nil {
			return out, nil
		}
		errs = append(errs, err)
	}
	return nil, &domain.RetrievalError{Locator: locator, Err: errors.Join(errs...)}
}
