package ports

import "context"

// Fetcher retrieves raw bytes for a locator.
// Implementations return a *domain.RetrievalError on failure.
type Fetcher interface {
	// Fetch performs a GET-style retrieval of locator.
	Fetch(ctx context.Context, locator string) ([]byte, error)

	// Post sends a JSON body to locator and returns the response body.
	Post(ctx context.Context, locator string, body []byte) ([]byte, error)
}
