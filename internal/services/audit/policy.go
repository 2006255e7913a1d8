package audit

import (
	"strings"

	"github.com/ternarybob/macrolens/internal/common"
	"github.com/ternarybob/macrolens/internal/models"
	"github.com/ternarybob/macrolens/internal/services/compliance"
	"github.com/ternarybob/macrolens/internal/signals"
)

// ClassifierPolicy converts the configured thresholds. Unset classes keep their defaults.
func ClassifierPolicy(cfg common.PolicyConfig) signals.Policy {
	p := signals.DefaultPolicy()
	for asset, th := range cfg.NoiseThresholds {
		if th > 0 {
			p.NoiseThresholds[models.AssetClass(strings.ToLower(strings.TrimSpace(asset)))] = th
		}
	}
	return p
}

// CompliancePolicy layers the configured section map, vocabulary and placeholder over the defaults.
func CompliancePolicy(cfg common.PolicyConfig) compliance.Policy {
	p := compliance.DefaultPolicy().WithExtraTerms(cfg.ExtraActorTerms, cfg.ExtraDirectionalTerms)
	for section, asset := range cfg.SectionAssets {
		p.SectionAssets[strings.ToUpper(strings.TrimSpace(section))] = models.AssetClass(asset)
	}
	if cfg.Placeholder != "" {
		p.Placeholder = cfg.Placeholder
	}
	return p
}
