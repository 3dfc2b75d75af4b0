// Package explain routes each model's output to a registered explainer
// by name-substring match and aggregates factors by descending weight
// magnitude, de-duplicated by factor name (spec §4.F.9, supplemented
// from original_source/backend/app/ai/explainability/*.py).
package explain

import (
	"sort"
	"strings"

	"github.com/creditbridge/decision-service/models"
)

// Structured is the aggregated, de-duplicated explanation attached to
// the Ensemble's unified output.
type Structured struct {
	Factors []FactorWeight
}

// FactorWeight is one de-duplicated factor with an explainer-assigned
// weight magnitude used only for ordering.
type FactorWeight struct {
	Factor      string
	Impact      string
	Explanation string
	Weight      float64
}

// Explainer routes a named model's explanation to a weight-ordered
// factor list.
type Explainer interface {
	Matches(modelName string) bool
	Weigh(modelName string, e models.Explanation) []FactorWeight
}

// Engine is the small registry described in spec §9's supplemented
// features: each explainer claims model names by substring.
type Engine struct {
	explainers []Explainer
}

func NewEngine() *Engine {
	return &Engine{explainers: []Explainer{ruleExplainer{}, graphExplainer{}}}
}

// Explain aggregates every model's explanation into one structured,
// de-duplicated, weight-ordered result. The registered explainers have no
// error path; a model whose name no explainer claims contributes no
// factors.
func (e *Engine) Explain(perModel map[string]models.Explanation) Structured {
	seen := map[string]bool{}
	var all []FactorWeight

	names := make([]string, 0, len(perModel))
	for name := range perModel {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		exp := perModel[name]
		for _, exp2 := range e.weighFor(name, exp) {
			if seen[exp2.Factor] {
				continue
			}
			seen[exp2.Factor] = true
			all = append(all, exp2)
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		return absFloat(all[i].Weight) > absFloat(all[j].Weight)
	})

	return Structured{Factors: all}
}

func (e *Engine) weighFor(modelName string, exp models.Explanation) []FactorWeight {
	for _, ex := range e.explainers {
		if ex.Matches(modelName) {
			return ex.Weigh(modelName, exp)
		}
	}
	return nil
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

type ruleExplainer struct{}

func (ruleExplainer) Matches(name string) bool {
	return strings.Contains(strings.ToLower(name), "rulebased") || strings.Contains(strings.ToLower(name), "rule")
}

func (ruleExplainer) Weigh(name string, exp models.Explanation) []FactorWeight {
	out := make([]FactorWeight, 0, len(exp.Factors))
	for _, f := range exp.Factors {
		out = append(out, FactorWeight{
			Factor:      f.Factor,
			Impact:      f.Impact,
			Explanation: f.Explanation,
			Weight:      impactWeight(f.Impact),
		})
	}
	return out
}

type graphExplainer struct{}

func (graphExplainer) Matches(name string) bool {
	return strings.Contains(strings.ToLower(name), "trustgraph") || strings.Contains(strings.ToLower(name), "graph")
}

func (graphExplainer) Weigh(name string, exp models.Explanation) []FactorWeight {
	out := make([]FactorWeight, 0, len(exp.Factors))
	for _, f := range exp.Factors {
		out = append(out, FactorWeight{
			Factor:      f.Factor,
			Impact:      f.Impact,
			Explanation: f.Explanation,
			Weight:      impactWeight(f.Impact),
		})
	}
	return out
}

func impactWeight(impact string) float64 {
	switch strings.ToUpper(impact) {
	case "HIGH":
		return 3
	case "MEDIUM":
		return 2
	case "LOW":
		return 1
	case "NEGATIVE":
		return -2
	default:
		return 0
	}
}
