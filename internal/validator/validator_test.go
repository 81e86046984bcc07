package validator

import (
	"context"
	"testing"

	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/exprlang"
	"github.com/aretw0/arbor/pkg/script"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateComponents(t *testing.T) {
	ctx := context.Background()

	t.Run("valid tree", func(t *testing.T) {
		fetcher := memory.NewFetcher(map[string]string{
			"index.html": `<html><body><a href="#page=home">home</a><div id="app"></div></body></html>`,
			"home.html": `<section>
				<li :for="items" :each="x" $text="x.name"></li>
				<a href="#page=about">about</a>
				<script>root.appendChild(loadHTML('card'))</script>
			</section>`,
			"about.html": `<p :if="page == 'about'">about</p>`,
			"card.html":  `<div @click="setContext({n: 1})"></div>`,
		})

		assert.NoError(t, ValidateComponents(ctx, fetcher, script.New(), "index.html"))
	})

	t.Run("broken references and directives", func(t *testing.T) {
		fetcher := memory.NewFetcher(map[string]string{
			"index.html": `<div>
				<a href="#page=ghost">ghost</a>
				<p :each="x">orphan</p>
				<p $text="">empty</p>
				<p $text="1 +">broken</p>
				<script>if (</script>
			</div>`,
		})

		err := ValidateComponents(ctx, fetcher, script.New(), "index.html")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "found 5 errors")
		assert.Contains(t, err.Error(), "Missing component or load error: 'ghost.html'")
		assert.Contains(t, err.Error(), ":each without :for")
		assert.Contains(t, err.Error(), "$text has an empty expression")
	})

	t.Run("expression language", func(t *testing.T) {
		fetcher := memory.NewFetcher(map[string]string{
			"index.html": `<div><p $text="name + '!'"></p><p :if="a &&& b"></p></div>`,
		})

		err := ValidateComponents(ctx, fetcher, exprlang.New(), "index.html")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "found 1 errors")
		assert.Contains(t, err.Error(), ":if")
	})
}
