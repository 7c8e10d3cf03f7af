package achievements

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tahcohcat/meechain/internal/models"
)

func TestNewCatalogRejectsBadDefinitions(t *testing.T) {
	pred := func(models.ProgressSnapshot) bool { return true }

	tests := []struct {
		name string
		defs []Definition
	}{
		{"empty", nil},
		{"missing id", []Definition{{Predicate: pred}}},
		{"missing predicate", []Definition{{ID: "a"}}},
		{"duplicate", []Definition{{ID: "a", Predicate: pred}, {ID: "a", Predicate: pred}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.defs)
			assert.Error(t, err)
		})
	}
}

func TestDefaultCatalogLookup(t *testing.T) {
	d, ok := Default.Lookup("insightful-analyst")
	require.True(t, ok)
	assert.Equal(t, "Insightful Analyst", d.Name)
	assert.Equal(t, 4, Default.Position("insightful-analyst"))

	_, ok = Default.Lookup("nope")
	assert.False(t, ok)
	assert.Equal(t, -1, Default.Position("nope"))
}

func TestCatalogSuggest(t *testing.T) {
	assert.Equal(t, "genesis-creator", Default.Suggest("genesis-creater"))
	assert.Equal(t, "", Default.Suggest("genesis-creator"))
	assert.Equal(t, "", Default.Suggest(""))
}

func TestThresholdProgressIsCapped(t *testing.T) {
	d, ok := Default.Lookup("bot-collector")
	require.True(t, ok)

	cur, target := d.Progress(models.ProgressSnapshot{BotsMinted: 3})
	assert.Equal(t, 3, cur)
	assert.Equal(t, 5, target)

	cur, _ = d.Progress(models.ProgressSnapshot{BotsMinted: 12})
	assert.Equal(t, 5, cur)
}

func TestCitizenProgressCountsParts(t *testing.T) {
	d, ok := Default.Lookup("meechain-citizen")
	require.True(t, ok)

	cur, target := d.Progress(models.ProgressSnapshot{BotsMinted: 4, PersonasCreated: 1})
	assert.Equal(t, 2, cur)
	assert.Equal(t, 3, target)
	assert.False(t, d.Predicate(models.ProgressSnapshot{BotsMinted: 4, PersonasCreated: 1}))
}
