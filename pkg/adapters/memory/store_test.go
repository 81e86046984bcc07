package memory_test

import (
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/ports/tests"
)

func TestMemoryStore_Contract(t *testing.T) {
	store := memory.NewStore()
	ports.RunBlobStoreContract(t, store)
}

func TestMemoryFetcher_Contract(t *testing.T) {
	fetcher := memory.NewFetcher(map[string]string{
		"home.html":   "<div>home</div>",
		"/about.html": "<div>about</div>",
	})
	tests.FetcherContractTest(t, fetcher, map[string][]byte{
		"home.html":    []byte("<div>home</div>"),
		"./about.html": []byte("<div>about</div>"),
	})
}
