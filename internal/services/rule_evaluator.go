package services

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/expr-lang/expr"

	"github.com/paulexconde/questflow/internal/models"
	"github.com/paulexconde/questflow/internal/pkg/logger"
)

// AnswerState is the live answer state, keyed by question id. Values are the
// raw text the respondent entered.
type AnswerState map[int]string

// RuleEvaluator interprets computed-field rules against live answer state.
// It runs synchronously on every state change; the no-op-if-unchanged guard
// is what keeps a rule writing into its own input space from looping.
type RuleEvaluator struct {
	log *logger.Logger
}

func NewRuleEvaluator(log *logger.Logger) *RuleEvaluator {
	return &RuleEvaluator{log: log.With("component", "rules")}
}

// Evaluate runs every rule against state and returns the target values that
// differ from what is currently stored. Unparseable or missing inputs leave
// the target untouched; no error surfaces.
func (e *RuleEvaluator) Evaluate(rules []models.RuleDTO, state AnswerState) map[int]string {
	changes := make(map[int]string)

	for _, rule := range rules {
		var (
			value string
			ok    bool
		)

		switch rule.Kind {
		case models.RuleKindBMICalc:
			value, ok = e.evaluateBMI(rule, state)
		case models.RuleKindFormula:
			value, ok = e.evaluateFormula(rule, state)
		default:
			continue
		}

		if ok && state[rule.QuestionID] != value {
			changes[rule.QuestionID] = value
		}
	}

	return changes
}

// Apply evaluates the rules and merges the resulting changes into state.
// A second call on the now-settled state returns an empty map.
func (e *RuleEvaluator) Apply(rules []models.RuleDTO, state AnswerState) map[int]string {
	changes := e.Evaluate(rules, state)
	for qid, value := range changes {
		state[qid] = value
	}
	return changes
}

// evaluateBMI computes secondary / (primary/100)^2 to two decimal places.
// Inputs are positional: index 0 is the primary (height in cm), index 1 the
// secondary (weight in kg).
func (e *RuleEvaluator) evaluateBMI(rule models.RuleDTO, state AnswerState) (string, bool) {
	if len(rule.InputQuestionIDs) < 2 {
		e.log.Warn("two-input rule missing inputs", "rule_id", rule.RuleID, "rule", rule.RuleName)
		return "", false
	}

	primary, okP := parseDecimal(state[rule.InputQuestionIDs[0]])
	secondary, okS := parseDecimal(state[rule.InputQuestionIDs[1]])
	if !okP || !okS || primary <= 0 {
		return "", false
	}

	m := primary / 100
	return strconv.FormatFloat(secondary/(m*m), 'f', 2, 64), true
}

// evaluateFormula runs the rule's expression over an environment exposing
// every answered question as q<id>, numeric when the value parses as one.
func (e *RuleEvaluator) evaluateFormula(rule models.RuleDTO, state AnswerState) (string, bool) {
	if rule.FormulaExpression == "" {
		return "", false
	}

	env := make(map[string]any, len(state))
	for qid, value := range state {
		key := fmt.Sprintf("q%d", qid)
		if n, ok := parseDecimal(value); ok {
			env[key] = n
		} else {
			env[key] = value
		}
	}

	program, err := expr.Compile(rule.FormulaExpression, expr.Env(env))
	if err != nil {
		e.log.Debug("formula compile failed", "rule_id", rule.RuleID, "error", err)
		return "", false
	}

	output, err := expr.Run(program, env)
	if err != nil {
		e.log.Debug("formula run failed", "rule_id", rule.RuleID, "error", err)
		return "", false
	}

	return formatRuleOutput(output), true
}

// parseDecimal parses a decimal number, accepting comma as the separator.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func formatRuleOutput(v any) string {
	switch out := v.(type) {
	case float64:
		return strconv.FormatFloat(out, 'f', -1, 64)
	case int:
		return strconv.Itoa(out)
	case string:
		return out
	case bool:
		return strconv.FormatBool(out)
	default:
		return fmt.Sprint(out)
	}
}
