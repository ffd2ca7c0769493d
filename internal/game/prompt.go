// internal/game/prompt.go
package game

import (
	"math/rand"
)

// Draw removes one random item from pool and returns it together with the
// shrunken pool. The returned pool shares pool's backing array.
func Draw(pool []string, r *rand.Rand) (string, []string) {
	if len(pool) == 0 {
		return "", pool
	}
	i := r.Intn(len(pool))
	item := pool[i]
	last := len(pool) - 1
	pool[i] = pool[last]
	return item, pool[:last]
}

// promptPools tracks what is left of a group's letter and category pools.
// Items are not repeated until a pool is exhausted, at which point it is
// refilled from the corpus.
type promptPools struct {
	letters    []string
	categories []string
}

// next draws a letter and n categories. A pool that cannot cover the draw is
// reshuffled from the corpus first so that a round never repeats a category.
func (pp *promptPools) next(c *Corpus, n int, r *rand.Rand) (string, []string) {
	if n > len(c.Categories) {
		n = len(c.Categories)
	}
	if n < 0 {
		n = 0
	}
	if len(pp.letters) == 0 {
		pp.letters = refill(c.Letters)
	}
	if len(pp.categories) < n {
		pp.categories = refill(c.Categories)
	}

	var letter string
	letter, pp.letters = Draw(pp.letters, r)

	cats := make([]string, 0, n)
	for i := 0; i < n; i++ {
		var cat string
		cat, pp.categories = Draw(pp.categories, r)
		cats = append(cats, cat)
	}
	return letter, cats
}

func refill(src []string) []string {
	out := make([]string, len(src))
	copy(out, src)
	return out
}
