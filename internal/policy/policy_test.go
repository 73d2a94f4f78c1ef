package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

func TestActionPolicy_Default(t *testing.T) {
	p := Default(50)

	tests := []struct {
		confidence int
		want       models.Action
	}{
		{confidence: 100, want: models.ActionPaywall},
		{confidence: 90, want: models.ActionPaywall},
		{confidence: 89, want: models.ActionBlock},
		{confidence: 70, want: models.ActionBlock},
		{confidence: 69, want: models.ActionLog},
		{confidence: 50, want: models.ActionLog},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, p.ActionFor(true, tt.confidence), "confidence %d", tt.confidence)
	}
}

func TestActionPolicy_NonBotAlwaysAllowed(t *testing.T) {
	p := Default(50)
	assert.Equal(t, models.ActionAllow, p.ActionFor(false, 100))
	assert.Equal(t, models.ActionAllow, p.ActionFor(false, 0))
}

func TestActionPolicy_BelowAllBands(t *testing.T) {
	p := New([]Band{{MinConfidence: 80, Action: models.ActionBlock}})
	assert.Equal(t, models.ActionAllow, p.ActionFor(true, 79))
	assert.Equal(t, models.ActionBlock, p.ActionFor(true, 80))
}

func TestActionPolicy_SortsBands(t *testing.T) {
	p := New([]Band{
		{MinConfidence: 50, Action: models.ActionLog},
		{MinConfidence: 90, Action: models.ActionPaywall},
		{MinConfidence: 70, Action: models.ActionBlock},
	})

	assert.Equal(t, models.ActionPaywall, p.ActionFor(true, 95))
	assert.Equal(t, models.ActionBlock, p.ActionFor(true, 75))
	assert.Equal(t, models.ActionLog, p.ActionFor(true, 55))
}
