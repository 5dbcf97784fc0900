package governance

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/synaptiq-labs/neurofabric/pkg/signal"
)

// RuleSet holds operator-defined CEL deny rules evaluated after the fixed
// filter checks. A rule that evaluates to true denies the signal. Rules are
// compiled once and cached; a rule that fails to compile is rejected at load
// time so the gate never runs with a partially valid policy.
type RuleSet struct {
	env      *cel.Env
	mu       sync.RWMutex
	programs map[string]cel.Program
	order    []string
}

// NewRuleSet creates an empty rule set with the NLP-C evaluation environment.
func NewRuleSet() (*RuleSet, error) {
	env, err := cel.NewEnv(
		cel.Variable("sender_id", cel.StringType),
		cel.Variable("receiver_id", cel.StringType),
		cel.Variable("state_delta", cel.StringType),
		cel.Variable("intent_reference", cel.StringType),
		cel.Variable("confidence", cel.DoubleType),
		cel.Variable("risk_level", cel.StringType),
		cel.Variable("reversibility", cel.StringType),
		cel.Variable("permissions", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("governance: cel environment: %w", err)
	}
	return &RuleSet{env: env, programs: make(map[string]cel.Program)}, nil
}

// Add compiles and registers a deny rule under the given id.
func (r *RuleSet) Add(ruleID, expr string) error {
	ast, issues := r.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("governance: rule %s rejected: %w", ruleID, issues.Err())
	}
	if ast.OutputType() != cel.BoolType {
		return fmt.Errorf("governance: rule %s must evaluate to bool, got %s", ruleID, ast.OutputType())
	}
	prg, err := r.env.Program(ast)
	if err != nil {
		return fmt.Errorf("governance: rule %s program: %w", ruleID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.programs[ruleID]; !exists {
		r.order = append(r.order, ruleID)
	}
	r.programs[ruleID] = prg
	return nil
}

// Len returns the number of registered rules.
func (r *RuleSet) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.programs)
}

// Evaluate runs all rules against the signal in registration order. It
// returns denied=true and the rule id on first match. Evaluation errors are
// returned to the caller, which must fail closed.
func (r *RuleSet) Evaluate(sig *signal.NeuralSignal) (denied bool, ruleID string, err error) {
	input := map[string]interface{}{
		"sender_id":        sig.Header.SenderID,
		"receiver_id":      sig.Header.ReceiverID,
		"state_delta":      sig.Payload.StateDelta,
		"intent_reference": sig.Payload.IntentReference,
		"confidence":       sig.Payload.ConfidenceEstimate,
		"risk_level":       string(sig.Tags.RiskLevel),
		"reversibility":    string(sig.Tags.Reversibility),
		"permissions":      sig.Tags.Permissions,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.order {
		out, _, evalErr := r.programs[id].Eval(input)
		if evalErr != nil {
			return false, id, fmt.Errorf("governance: rule %s evaluation: %w", id, evalErr)
		}
		match, ok := out.Value().(bool)
		if !ok {
			return false, id, fmt.Errorf("governance: rule %s produced non-bool result", id)
		}
		if match {
			return true, id, nil
		}
	}
	return false, "", nil
}
