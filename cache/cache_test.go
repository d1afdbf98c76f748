package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoop_AlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var c SummaryCache = Noop{}

	c.SetSummary(ctx, "Route A", "2025-01-01", `{"present":1,"total":2}`)
	_, ok := c.GetSummary(ctx, "Route A", "2025-01-01")
	assert.False(t, ok)

	c.BumpRoute(ctx, "Route A")
	_, ok = c.GetSummary(ctx, "Route A", "2025-01-01")
	assert.False(t, ok)
}
