package rewards

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// BonusRule is the flat award attached to one bonus line item.
type BonusRule struct {
	Name  string `yaml:"name"`
	XP    int    `yaml:"xp"`
	Coins int    `yaml:"coins"`
}

// Rules holds the tunable reward amounts. DefaultRules returns the amounts
// the product ships with; a YAML file may override individual entries.
type Rules struct {
	Perfect BonusRule `yaml:"perfect"`
	NoHints BonusRule `yaml:"no_hints"`
	Speed   BonusRule `yaml:"speed"`

	// SpeedFraction is the share of the time limit a solve must beat to
	// earn the speed bonus.
	SpeedFraction float64 `yaml:"speed_fraction"`

	// MysteryBoxEvery is the number of first completions per mystery box.
	MysteryBoxEvery int `yaml:"mystery_box_every"`
}

// Default award amounts.
const (
	PerfectBonusXP    = 50
	PerfectBonusCoins = 25
	NoHintsBonusXP    = 20
	NoHintsBonusCoins = 10
	SpeedBonusXP      = 30
	SpeedBonusCoins   = 15

	defaultSpeedFraction = 0.5
	MysteryBoxEvery      = 5
)

func DefaultRules() Rules {
	return Rules{
		Perfect:         BonusRule{Name: "Perfect Solve", XP: PerfectBonusXP, Coins: PerfectBonusCoins},
		NoHints:         BonusRule{Name: "No Hints Used", XP: NoHintsBonusXP, Coins: NoHintsBonusCoins},
		Speed:           BonusRule{Name: "Speed Demon", XP: SpeedBonusXP, Coins: SpeedBonusCoins},
		SpeedFraction:   defaultSpeedFraction,
		MysteryBoxEvery: MysteryBoxEvery,
	}
}

// LoadRules reads a YAML rules file on top of DefaultRules. Keys missing
// from the file keep their default value. An empty path returns the
// defaults unchanged.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()
	if path == "" {
		return rules, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("reading reward rules: %w", err)
	}
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parsing reward rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}

// Validate rejects rule sets that could produce negative awards.
func (r Rules) Validate() error {
	for _, b := range []struct {
		key  string
		rule BonusRule
	}{
		{"perfect", r.Perfect},
		{"no_hints", r.NoHints},
		{"speed", r.Speed},
	} {
		if b.rule.XP < 0 || b.rule.Coins < 0 {
			return fmt.Errorf("reward rule %s: xp and coins must be non-negative", b.key)
		}
		if b.rule.Name == "" {
			return fmt.Errorf("reward rule %s: name is required", b.key)
		}
	}
	if r.SpeedFraction <= 0 || r.SpeedFraction > 1 {
		return fmt.Errorf("reward rules: speed_fraction must be in (0, 1], got %v", r.SpeedFraction)
	}
	if r.MysteryBoxEvery <= 0 {
		return fmt.Errorf("reward rules: mystery_box_every must be positive, got %d", r.MysteryBoxEvery)
	}
	return nil
}
