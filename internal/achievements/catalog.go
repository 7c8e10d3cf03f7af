// Package achievements holds the badge catalog and the evaluator that derives
// newly qualifying badges from a progress snapshot.
package achievements

import (
	"errors"
	"fmt"

	"github.com/schollz/closestmatch"
	"github.com/tahcohcat/meechain/internal/models"
)

// Definition is one catalog entry. Predicate must be monotonic: once it holds
// for a snapshot it holds for every snapshot with counters at least as high.
type Definition struct {
	ID          string
	Icon        string
	Name        string
	Description string
	Category    string
	Predicate   func(models.ProgressSnapshot) bool
	// Progress reports how far a snapshot is toward the predicate, for display.
	Progress func(models.ProgressSnapshot) (current, target int)
}

// Catalog is an immutable, ordered list of definitions. Declaration order is
// the tie-break when several entries unlock from the same action.
type Catalog struct {
	defs    []Definition
	index   map[string]int
	matcher *closestmatch.ClosestMatch
}

func NewCatalog(defs []Definition) (*Catalog, error) {
	if len(defs) == 0 {
		return nil, errors.New("catalog: no definitions")
	}

	c := &Catalog{
		defs:  make([]Definition, len(defs)),
		index: make(map[string]int, len(defs)),
	}
	ids := make([]string, 0, len(defs))
	for i, d := range defs {
		if d.ID == "" {
			return nil, fmt.Errorf("catalog: definition %d has no id", i)
		}
		if d.Predicate == nil {
			return nil, fmt.Errorf("catalog: %s has no predicate", d.ID)
		}
		if _, dup := c.index[d.ID]; dup {
			return nil, fmt.Errorf("catalog: duplicate id %s", d.ID)
		}
		c.defs[i] = d
		c.index[d.ID] = i
		ids = append(ids, d.ID)
	}
	c.matcher = closestmatch.New(ids, []int{2, 3})

	return c, nil
}

func MustCatalog(defs []Definition) *Catalog {
	c, err := NewCatalog(defs)
	if err != nil {
		panic(err)
	}
	return c
}

// All returns the definitions in catalog order.
func (c *Catalog) All() []Definition {
	out := make([]Definition, len(c.defs))
	copy(out, c.defs)
	return out
}

func (c *Catalog) Len() int {
	return len(c.defs)
}

func (c *Catalog) Lookup(id string) (Definition, bool) {
	i, ok := c.index[id]
	if !ok {
		return Definition{}, false
	}
	return c.defs[i], true
}

// Position is the zero-based catalog index of id, or -1.
func (c *Catalog) Position(id string) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Suggest returns the catalog id closest to a mistyped one, or "" when the
// input is empty or already valid.
func (c *Catalog) Suggest(id string) string {
	if id == "" {
		return ""
	}
	if _, ok := c.index[id]; ok {
		return ""
	}
	return c.matcher.Closest(id)
}

type counter func(models.ProgressSnapshot) int

func botsMinted(s models.ProgressSnapshot) int        { return s.BotsMinted }
func proposalsAnalyzed(s models.ProgressSnapshot) int { return s.ProposalsAnalyzed }
func personasCreated(s models.ProgressSnapshot) int   { return s.PersonasCreated }
func miningLevel(s models.ProgressSnapshot) int       { return s.MiningLevel }

func threshold(id, icon, name, description, category string, field counter, n int) Definition {
	return Definition{
		ID:          id,
		Icon:        icon,
		Name:        name,
		Description: description,
		Category:    category,
		Predicate: func(s models.ProgressSnapshot) bool {
			return field(s) >= n
		},
		Progress: func(s models.ProgressSnapshot) (int, int) {
			return min(field(s), n), n
		},
	}
}

// allOf unlocks once every counter has reached at least one.
func allOf(id, icon, name, description, category string, fields ...counter) Definition {
	done := func(s models.ProgressSnapshot) int {
		n := 0
		for _, f := range fields {
			if f(s) >= 1 {
				n++
			}
		}
		return n
	}
	return Definition{
		ID:          id,
		Icon:        icon,
		Name:        name,
		Description: description,
		Category:    category,
		Predicate: func(s models.ProgressSnapshot) bool {
			return done(s) == len(fields)
		},
		Progress: func(s models.ProgressSnapshot) (int, int) {
			return done(s), len(fields)
		},
	}
}

func defaultDefinitions() []Definition {
	return []Definition{
		threshold("genesis-creator", "🤖", "Genesis Creator", "Mint your first MeeBot", "minting", botsMinted, 1),
		threshold("bot-collector", "🧰", "Bot Collector", "Mint 5 MeeBots", "minting", botsMinted, 5),
		threshold("meebot-legion", "🏭", "MeeBot Legion", "Mint 25 MeeBots", "minting", botsMinted, 25),
		threshold("first-insight", "🔎", "First Insight", "Analyze your first governance proposal", "governance", proposalsAnalyzed, 1),
		threshold("insightful-analyst", "🧠", "Insightful Analyst", "Analyze 5 governance proposals", "governance", proposalsAnalyzed, 5),
		threshold("persona-pioneer", "🎭", "Persona Pioneer", "Create your first persona", "personas", personasCreated, 1),
		threshold("persona-architect", "🏛️", "Persona Architect", "Create 3 personas", "personas", personasCreated, 3),
		threshold("novice-miner", "⛏️", "Novice Miner", "Reach mining level 1", "mining", miningLevel, 1),
		threshold("master-miner", "💎", "Master Miner", "Reach mining level 10", "mining", miningLevel, 10),
		allOf("meechain-citizen", "🌐", "MeeChain Citizen", "Mint a bot, analyze a proposal and create a persona", "special",
			botsMinted, proposalsAnalyzed, personasCreated),
	}
}

// Default is the MeeChain badge catalog.
var Default = MustCatalog(defaultDefinitions())
