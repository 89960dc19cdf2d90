package engine

import "context"

// Actions gated by the policy. Names match the HTTP endpoints.
const (
	ActionSetupRSL            = "setupRSL"
	ActionSetupASL            = "setupASL"
	ActionSetupCustom         = "setupCustom"
	ActionSetupCustomAccepted = "setupCustomAccepted"
	ActionCloneRepo           = "cloneRepo"
	ActionGitCheckout         = "gitCheckout"
	ActionGitBranch           = "gitBranch"
	ActionGitPull             = "gitPull"
	ActionGitPush             = "gitPush"
)

// Request is the subject of one policy decision.
type Request struct {
	Action       string
	Workspace    string
	User         string
	Organization string
	Writable     bool
}

// Evaluator decides whether a session may perform a workspace action.
type Evaluator interface {
	Allow(ctx context.Context, req Request) (bool, error)
}
