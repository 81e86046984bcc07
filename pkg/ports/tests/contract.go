package tests

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

// FetcherContractTest is a reusable test suite that verifies if an adapter complies with ports.Fetcher.
// setupData maps locators the adapter can serve to their expected content.
func FetcherContractTest(t *testing.T, fetcher ports.Fetcher, setupData map[string][]byte) {
	t.Helper()
	ctx := context.Background()

	// 1. Fetch (Success)
	t.Run("Fetch_Success", func(t *testing.T) {
		for locator, expectedContent := range setupData {
			content, err := fetcher.Fetch(ctx, locator)
			if err != nil {
				t.Fatalf("unexpected error fetching %s: %v", locator, err)
			}
			if string(content) != string(expectedContent) {
				t.Errorf("content mismatch for %s. got %q, want %q", locator, content, expectedContent)
			}
		}
	})

	// 2. Fetch (NotFound)
	t.Run("Fetch_NotFound", func(t *testing.T) {
		_, err := fetcher.Fetch(ctx, "non-existent-component.html")
		if err == nil {
			t.Fatal("expected error for non-existent locator, got nil")
		}
		if !errors.Is(err, domain.ErrRetrieval) {
			t.Errorf("expected a retrieval error, got %v", err)
		}
	})
}
