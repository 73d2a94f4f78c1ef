// Package policy maps verdict confidence to the action recommended to
// the caller. The mapping is deployment policy, not engine logic, so it
// is injected rather than hardcoded in the pipeline.
package policy

import (
	"sort"

	"github.com/crawlmeter/crawlmeter/internal/models"
)

// Band maps a minimum confidence to an action.
type Band struct {
	MinConfidence int           `json:"min_confidence"`
	Action        models.Action `json:"action"`
}

// ActionPolicy resolves an action from a verdict's confidence. Bands
// are kept sorted highest threshold first.
type ActionPolicy struct {
	bands []Band
}

// New builds a policy from bands. A non-bot verdict always resolves to
// allow regardless of bands.
func New(bands []Band) ActionPolicy {
	sorted := make([]Band, len(bands))
	copy(sorted, bands)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinConfidence > sorted[j].MinConfidence
	})
	return ActionPolicy{bands: sorted}
}

// Default recommends paywalling near-certain bots, blocking strong
// detections and logging anything at or above the bot threshold.
func Default(minConfidence int) ActionPolicy {
	return New([]Band{
		{MinConfidence: 90, Action: models.ActionPaywall},
		{MinConfidence: 70, Action: models.ActionBlock},
		{MinConfidence: minConfidence, Action: models.ActionLog},
	})
}

// ActionFor resolves the action for a verdict's bot flag and confidence.
func (p ActionPolicy) ActionFor(isBot bool, confidence int) models.Action {
	if !isBot {
		return models.ActionAllow
	}
	for _, b := range p.bands {
		if confidence >= b.MinConfidence {
			return b.Action
		}
	}
	return models.ActionAllow
}
