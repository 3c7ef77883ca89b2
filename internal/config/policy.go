package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/titanx/execution-core/internal/risk"
)

// LoadRiskPolicy reads a RiskPolicy document from YAML
// (ChoSanghyuk/blackholedex and stadam23/Eve-flipper's config idiom)
// and defaults CurrentState to Normal when the document omits it. It
// does not compute or store the canonical hash; callers get that from
// Policy.Hash().
func LoadRiskPolicy(path string) (*risk.Policy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read risk policy: %w", err)
	}
	var p risk.Policy
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("config: parse risk policy: %w", err)
	}
	if p.CurrentState == "" {
		p.CurrentState = risk.StateNormal
	}
	return &p, nil
}
