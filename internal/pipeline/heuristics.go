package pipeline

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed heuristics.yaml
var defaultHeuristicsYAML []byte

// Heuristics holds the keyword lists driving the deterministic parts of the
// pipeline: conversation-stage detection, market-intelligence triggering, and
// floor-plan triggering. Kept in YAML so ops can tune copy and keywords
// without a rebuild.
type Heuristics struct {
	AppointmentKeywords []string `yaml:"appointment_keywords"`
	ObjectionKeywords   []string `yaml:"objection_keywords"`
	InterestKeywords    []string `yaml:"interest_keywords"`
	MarketKeywords      []string `yaml:"market_keywords"`
	FloorPlanKeywords   []string `yaml:"floor_plan_keywords"`
	DistrictNames       []string `yaml:"district_names"`

	// GenericReply is the hard-coded last-resort message used by the
	// orchestrator-level fallback.
	GenericReply string `yaml:"generic_reply"`
}

// DefaultHeuristics parses the embedded heuristics file. Panics on a broken
// embed since that is a build defect, not a runtime condition.
func DefaultHeuristics() *Heuristics {
	h, err := parseHeuristics(defaultHeuristicsYAML)
	if err != nil {
		panic(err)
	}
	return h
}

// LoadHeuristics reads a heuristics override file, falling back to embedded
// defaults for any list left empty.
func LoadHeuristics(path string) (*Heuristics, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: read heuristics %s", path)
	}
	h, err := parseHeuristics(data)
	if err != nil {
		return nil, err
	}

	defaults := DefaultHeuristics()
	if len(h.AppointmentKeywords) == 0 {
		h.AppointmentKeywords = defaults.AppointmentKeywords
	}
	if len(h.ObjectionKeywords) == 0 {
		h.ObjectionKeywords = defaults.ObjectionKeywords
	}
	if len(h.InterestKeywords) == 0 {
		h.InterestKeywords = defaults.InterestKeywords
	}
	if len(h.MarketKeywords) == 0 {
		h.MarketKeywords = defaults.MarketKeywords
	}
	if len(h.FloorPlanKeywords) == 0 {
		h.FloorPlanKeywords = defaults.FloorPlanKeywords
	}
	if len(h.DistrictNames) == 0 {
		h.DistrictNames = defaults.DistrictNames
	}
	if h.GenericReply == "" {
		h.GenericReply = defaults.GenericReply
	}
	return h, nil
}

func parseHeuristics(data []byte) (*Heuristics, error) {
	var h Heuristics
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, eris.Wrap(err, "pipeline: parse heuristics")
	}
	return &h, nil
}

// containsAny reports whether the lowercased text contains any keyword.
func containsAny(text string, keywords []string) bool {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
