package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tahcohcat/meechain/internal/achievements"
)

func TestRunCatalogListsInOrder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, runCatalog(&buf, achievements.Default))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 11)
	assert.Contains(t, lines[1], "genesis-creator")
	assert.Contains(t, lines[10], "meechain-citizen")
}

func TestRunSimulateBurst(t *testing.T) {
	var buf bytes.Buffer
	err := runSimulate(context.Background(), &buf, simulateFlags{personas: 1, proposals: 1, mints: 1})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "unlocked genesis-creator, meechain-citizen (shown: genesis-creator)")
	assert.Contains(t, out, "unseen: meechain-citizen")
	assert.Contains(t, out, "achievements: 4/10")
	assert.Contains(t, out, "timeline: 7 events confirmed")
}

func TestRunSimulateRejectsNegative(t *testing.T) {
	err := runSimulate(context.Background(), &bytes.Buffer{}, simulateFlags{mints: -1})
	assert.Error(t, err)
}
