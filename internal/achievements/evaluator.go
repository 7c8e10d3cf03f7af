package achievements

import "github.com/tahcohcat/meechain/internal/models"

// IDSet is the set of achievement ids a player already holds.
type IDSet map[string]bool

// Evaluate returns every definition not in unlocked whose predicate holds for
// snap, in catalog order. It has no side effects.
func (c *Catalog) Evaluate(snap models.ProgressSnapshot, unlocked IDSet) []Definition {
	var qualified []Definition
	for _, d := range c.defs {
		if unlocked[d.ID] {
			continue
		}
		if d.Predicate(snap) {
			qualified = append(qualified, d)
		}
	}
	return qualified
}

// Evaluate runs the Default catalog.
func Evaluate(snap models.ProgressSnapshot, unlocked IDSet) []Definition {
	return Default.Evaluate(snap, unlocked)
}
