package naming

import (
	"strings"
	"unicode"

	"github.com/Englacial/ismip-indexing/internal/domain"
)

// Rule is one correction for a documented naming defect. Matches guards on
// an unambiguous pattern; Rewrite is total and idempotent, so applying a
// rule twice yields the same tokens as applying it once.
type Rule struct {
	Name    string
	Matches func(t Tokens, v *domain.Vocabulary) bool
	Rewrite func(t Tokens, v *domain.Vocabulary) Tokens
}

// variableAliases repairs typo'd variable codes observed in the archive.
// The keys never appear in the variable vocabulary, so the guard cannot
// collide with a correctly named file.
var variableAliases = map[string]string{
	"litempbot": "litempbotgr",
	"lithck":    "lithk",
	"acab":      "acabf",
}

// StandardRules is the closed, ordered correction table. Later rules never
// depend on whether an earlier rule fired; each guard is unambiguous on the
// tokens it inspects, keeping the set confluent.
var StandardRules = []Rule{
	{
		// UCIJPL/ISSM prepends the experiment name to the variable in the
		// filename, e.g. exp13acabf_AIS_UCIJPL_ISSM_exp13.nc. Strip the
		// prefix when the remainder starts with a lowercase letter (a real
		// variable code), repeatedly so the rewrite is a fixed point.
		Name: "strip_experiment_prefix",
		Matches: func(t Tokens, _ *domain.Vocabulary) bool {
			return hasExperimentPrefix(t.Variable, t.Experiment)
		},
		Rewrite: func(t Tokens, _ *domain.Vocabulary) Tokens {
			for hasExperimentPrefix(t.Variable, t.Experiment) {
				t.Variable = t.Variable[len(t.Experiment):]
			}
			return t
		},
	},
	{
		// Institution and model directory levels swapped. Guard: the model
		// token is a known institution, the institution token is one of that
		// institution's models, and the pair is not valid as written.
		Name: "swap_institution_model",
		Matches: func(t Tokens, v *domain.Vocabulary) bool {
			if v.KnowsInstitution(t.Institution) {
				return false
			}
			return v.KnowsInstitution(t.Model) && modelBelongsTo(v, t.Model, t.Institution)
		},
		Rewrite: func(t Tokens, _ *domain.Vocabulary) Tokens {
			t.Institution, t.Model = t.Model, t.Institution
			return t
		},
	},
	{
		// Uppercased variable codes, e.g. LITHK for lithk. Guard: unknown as
		// written, known once lowercased.
		Name: "lowercase_variable",
		Matches: func(t Tokens, v *domain.Vocabulary) bool {
			return !v.KnowsVariable(t.Variable) && v.KnowsVariable(strings.ToLower(t.Variable))
		},
		Rewrite: func(t Tokens, _ *domain.Vocabulary) Tokens {
			t.Variable = strings.ToLower(t.Variable)
			return t
		},
	},
	{
		// Finite table of typo'd variable codes.
		Name: "variable_alias",
		Matches: func(t Tokens, _ *domain.Vocabulary) bool {
			_, ok := variableAliases[t.Variable]
			return ok
		},
		Rewrite: func(t Tokens, _ *domain.Vocabulary) Tokens {
			t.Variable = variableAliases[t.Variable]
			return t
		},
	},
}

func hasExperimentPrefix(variable, experiment string) bool {
	if experiment == "" || len(variable) <= len(experiment) {
		return false
	}
	if !strings.HasPrefix(variable, experiment) {
		return false
	}
	rest := variable[len(experiment):]
	return unicode.IsLower(rune(rest[0]))
}

func modelBelongsTo(v *domain.Vocabulary, institution, model string) bool {
	for _, m := range v.Institutions[institution] {
		if m == model {
			return true
		}
	}
	return false
}

// ApplyRules runs the correction table in its fixed order and returns the
// repaired tokens plus the names of the rules that fired.
func ApplyRules(t Tokens, v *domain.Vocabulary) (Tokens, []string) {
	var fired []string
	for _, rule := range StandardRules {
		if rule.Matches(t, v) {
			t = rule.Rewrite(t, v)
			fired = append(fired, rule.Name)
		}
	}
	return t, fired
}
