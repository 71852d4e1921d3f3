// Package policy validates checkout submissions against configurable rules
// before any gateway is called. Rules are boolean expressions over the
// submission parameters; a violated rule rejects the submission.
package policy

import (
	"fmt"

	"github.com/Knetic/govaluate"
)

// RuleConfig is one named rule. Expression must evaluate to a boolean over
// the submission parameters; false means the rule is violated.
type RuleConfig struct {
	Name       string `json:"name"`
	Expression string `json:"expression"`
}

// Enforcer evaluates a fixed rule set. Expressions are compiled once at
// construction.
type Enforcer struct {
	rules []compiledRule
}

type compiledRule struct {
	name string
	expr *govaluate.EvaluableExpression
}

// NewEnforcer compiles the rule set. A rule that does not parse is a
// configuration error and fails construction.
func NewEnforcer(configs []RuleConfig) (*Enforcer, error) {
	rules := make([]compiledRule, 0, len(configs))
	for _, rc := range configs {
		expr, err := govaluate.NewEvaluableExpression(rc.Expression)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", rc.Name, err)
		}
		rules = append(rules, compiledRule{name: rc.Name, expr: expr})
	}
	return &Enforcer{rules: rules}, nil
}

// Evaluate runs every rule against the parameters and returns the name of
// the first violated rule, or "" when all pass. A rule that errors or
// yields a non-boolean counts as violated.
func (e *Enforcer) Evaluate(params map[string]any) string {
	for _, r := range e.rules {
		result, err := r.expr.Evaluate(params)
		if err != nil {
			return r.name
		}
		ok, isBool := result.(bool)
		if !isBool || !ok {
			return r.name
		}
	}
	return ""
}

// DefaultSubmissionRules is the built-in rule set for checkout submissions.
func DefaultSubmissionRules() []RuleConfig {
	return []RuleConfig{
		{Name: "product_required", Expression: "product_id != ''"},
		{Name: "buyer_required", Expression: "buyer_id != ''"},
		{Name: "gateway_known", Expression: "gateway == 'stripe' || gateway == 'paypal'"},
		{Name: "card_token_required", Expression: "gateway != 'stripe' || payment_token != ''"},
		{Name: "amount_positive", Expression: "amount_cents > 0"},
	}
}
