package engine

import (
	"context"
	"fmt"
	"log"

	"github.com/open-policy-agent/opa/v1/ast"
	"github.com/open-policy-agent/opa/v1/rego"
)

const allowQuery = "data.itoi.workspace.allow"

// DefaultRegoPolicy lets read-only sessions inspect and move around their working tree but not
// change the workspace content or its remote.
const DefaultRegoPolicy = `package itoi.workspace

default allow := false

read_only_actions := {"setupCustom", "gitCheckout", "gitBranch", "gitPull"}

allow if {
	input.session.writable
}

allow if {
	read_only_actions[input.action]
}
`

// OPAEvaluator evaluates workspace action policies using OPA Rego. The policy is compiled once.
type OPAEvaluator struct {
	query rego.PreparedEvalQuery
}

// NewOPAEvaluator compiles policy, or DefaultRegoPolicy when policy is empty. The module must
// define data.itoi.workspace.allow.
func NewOPAEvaluator(ctx context.Context, policy string) (*OPAEvaluator, error) {
	if policy == "" {
		policy = DefaultRegoPolicy
	}
	compiler, err := ast.CompileModules(map[string]string{"workspace.rego": policy})
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	query, err := rego.New(
		rego.Query(allowQuery),
		rego.Compiler(compiler),
	).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("prepare policy: %w", err)
	}
	return &OPAEvaluator{query: query}, nil
}

// Allow evaluates the policy for req. Undefined results deny.
func (e *OPAEvaluator) Allow(ctx context.Context, req Request) (bool, error) {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(req)))
	if err != nil {
		log.Printf("policy: evaluation failed for %s: %v", req.Action, err)
		return false, err
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return false, nil
	}
	allowed, _ := rs[0].Expressions[0].Value.(bool)
	return allowed, nil
}

// HealthCheck verifies that the compiled policy evaluates to a decision.
func (e *OPAEvaluator) HealthCheck(ctx context.Context) error {
	rs, err := e.query.Eval(ctx, rego.EvalInput(buildInput(Request{Action: ActionGitPull, Writable: true})))
	if err != nil {
		return fmt.Errorf("eval policy: %w", err)
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return fmt.Errorf("policy query returned no result")
	}
	return nil
}

func buildInput(req Request) map[string]interface{} {
	return map[string]interface{}{
		"action": req.Action,
		"session": map[string]interface{}{
			"workspace":    req.Workspace,
			"user":         req.User,
			"organization": req.Organization,
			"writable":     req.Writable,
		},
	}
}

var _ Evaluator = (*OPAEvaluator)(nil)
