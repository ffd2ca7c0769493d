// internal/game/prompt_test.go
package game

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawRemovesItem(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	pool := []string{"a", "b", "c"}

	seen := map[string]bool{}
	for len(pool) > 0 {
		var item string
		item, pool = Draw(pool, r)
		assert.False(t, seen[item], "drew %q twice", item)
		seen[item] = true
	}
	assert.Len(t, seen, 3)

	item, rest := Draw(nil, r)
	assert.Empty(t, item)
	assert.Empty(t, rest)
}

func TestPromptPoolsNoRepeatUntilExhausted(t *testing.T) {
	c := &Corpus{Letters: []string{"A", "B"}, Categories: []string{"c1", "c2", "c3", "c4", "c5"}}
	r := rand.New(rand.NewSource(7))
	var pp promptPools

	l1, cats1 := pp.next(c, 2, r)
	l2, cats2 := pp.next(c, 2, r)
	assert.NotEqual(t, l1, l2)

	used := map[string]bool{}
	for _, cat := range append(cats1, cats2...) {
		assert.False(t, used[cat], "category %q repeated before exhaustion", cat)
		used[cat] = true
	}

	// one category left; a draw of two reshuffles first
	_, cats3 := pp.next(c, 2, r)
	require.Len(t, cats3, 2)
	assert.NotEqual(t, cats3[0], cats3[1])
}

func TestPromptPoolsClampToCorpus(t *testing.T) {
	c := &Corpus{Letters: []string{"A"}, Categories: []string{"c1", "c2"}}
	var pp promptPools
	letter, cats := pp.next(c, 10, rand.New(rand.NewSource(3)))
	assert.Equal(t, "A", letter)
	assert.ElementsMatch(t, []string{"c1", "c2"}, cats)
}

func TestPromptPoolsDoNotMutateCorpus(t *testing.T) {
	c := &Corpus{Letters: []string{"A", "B", "C"}, Categories: []string{"c1", "c2", "c3"}}
	var pp promptPools
	r := rand.New(rand.NewSource(11))
	for i := 0; i < 5; i++ {
		pp.next(c, 2, r)
	}
	assert.Equal(t, []string{"A", "B", "C"}, c.Letters)
	assert.Equal(t, []string{"c1", "c2", "c3"}, c.Categories)
}
