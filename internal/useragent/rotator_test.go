package useragent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextDisabledReturnsFallback(t *testing.T) {
	r := New(false, true, "TestBot/1.0")

	for i := 0; i < 10; i++ {
		assert.Equal(t, "TestBot/1.0", r.Next())
	}
}

func TestNextSelectsFromPool(t *testing.T) {
	r := New(true, false, "TestBot/1.0")

	pool := make(map[string]bool, len(defaultAgents))
	for _, agent := range defaultAgents {
		pool[agent] = true
	}

	for i := 0; i < 50; i++ {
		assert.True(t, pool[r.Next()], "agent must come from the fixed pool")
	}
}

func TestNextAppendsIdentifierWhenIdentifying(t *testing.T) {
	r := New(true, true, "TestBot/1.0")

	for i := 0; i < 20; i++ {
		agent := r.Next()
		assert.True(t, strings.HasSuffix(agent, " ("+Identifier+")"),
			"rotated agent %q must carry the identification suffix", agent)
		base := strings.TrimSuffix(agent, " ("+Identifier+")")
		assert.Contains(t, defaultAgents, base)
	}
}

func TestNextOmitsIdentifierWhenNotIdentifying(t *testing.T) {
	r := New(true, false, "TestBot/1.0")

	for i := 0; i < 20; i++ {
		assert.NotContains(t, r.Next(), Identifier)
	}
}

func TestPoolSize(t *testing.T) {
	r := New(true, true, "")

	assert.GreaterOrEqual(t, len(r.Pool()), 7)
}

func TestNextEventuallyRotates(t *testing.T) {
	r := New(true, false, "")

	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		seen[r.Next()] = true
	}
	// Statistically certain with 200 draws over 7 agents.
	assert.Greater(t, len(seen), 1, "rotation must not pin a single agent")
}
