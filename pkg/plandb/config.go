package plandb

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// SolverConfig is the declarative solver configuration of §6.2: an ordered
// list of flaw managers, each carrying its own default priority and rule
// set. LoadSolverConfig/LoadSolverConfigFile follow the teacher pack's
// yaml.Unmarshal-into-struct convention (pkg/config/config.go).
type SolverConfig struct {
	FlawManagers []FlawManagerConfig `yaml:"flaw_managers"`
}

// FlawManagerConfig configures one manager: its kind and default priority,
// plus the ordered rule list matched against that manager's flaws.
type FlawManagerConfig struct {
	Kind            string       `yaml:"kind"` // "unbound-variable" | "open-condition" | "threat"
	DefaultPriority int          `yaml:"default_priority"`
	Rules           []RuleConfig `yaml:"rules"`
}

// RuleConfig is one MatchingRule, declaratively: the static filters named in
// §6.2's table, plus guard/master-guard lists and a priority.
type RuleConfig struct {
	Class           string        `yaml:"class"`
	Predicate       string        `yaml:"predicate"`
	Variable        string        `yaml:"variable"`
	MasterRelation  string        `yaml:"master-relation"`
	MasterClass     string        `yaml:"master-class"`
	MasterPredicate string        `yaml:"master-predicate"`
	Guard           []GuardConfig `yaml:"guard"`
	MasterGuard     []GuardConfig `yaml:"master-guard"`
	Priority        int           `yaml:"priority"`
}

// GuardConfig is one `variable == value` runtime equality condition.
type GuardConfig struct {
	Variable string `yaml:"variable"`
	Value    int    `yaml:"value"`
}

// LoadSolverConfig parses YAML solver configuration from data.
func LoadSolverConfig(data []byte) (*SolverConfig, error) {
	var cfg SolverConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigurationError{Msg: "invalid solver configuration: " + err.Error()}
	}
	for i, fm := range cfg.FlawManagers {
		switch fm.Kind {
		case "unbound-variable", "open-condition", "threat":
		default:
			return nil, &ConfigurationError{Msg: "unknown flaw manager kind at index " + strconv.Itoa(i) + ": " + fm.Kind}
		}
	}
	return &cfg, nil
}

// LoadSolverConfigFile reads and parses a YAML solver configuration file.
func LoadSolverConfigFile(path string) (*SolverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigurationError{Msg: "reading solver configuration: " + err.Error()}
	}
	return LoadSolverConfig(data)
}

// Compile builds the live FlawManager list SelectFlaw consumes, in the
// order FlawManagers were declared.
func (cfg *SolverConfig) Compile() ([]FlawManager, error) {
	out := make([]FlawManager, 0, len(cfg.FlawManagers))
	for _, fm := range cfg.FlawManagers {
		var mgr FlawManager
		var rs *ruleSet
		switch fm.Kind {
		case "unbound-variable":
			m := NewUnboundVariableManager(fm.DefaultPriority)
			mgr, rs = m, &m.ruleSet
		case "open-condition":
			m := NewOpenConditionManager(fm.DefaultPriority)
			mgr, rs = m, &m.ruleSet
		case "threat":
			m := NewThreatManager(fm.DefaultPriority)
			mgr, rs = m, &m.ruleSet
		default:
			return nil, &ConfigurationError{Msg: "unknown flaw manager kind: " + fm.Kind}
		}
		for _, rc := range fm.Rules {
			r := &MatchingRule{
				Class:           rc.Class,
				Predicate:       rc.Predicate,
				VariableName:    rc.Variable,
				MasterRelation:  rc.MasterRelation,
				MasterClass:     rc.MasterClass,
				MasterPredicate: rc.MasterPredicate,
				Priority:        rc.Priority,
			}
			for _, g := range rc.Guard {
				r.AddGuard(g.Variable, g.Value)
			}
			for _, g := range rc.MasterGuard {
				r.AddMasterGuard(g.Variable, g.Value)
			}
			rs.AddRule(r)
		}
		out = append(out, mgr)
	}
	return out, nil
}

