// Package types defines the data model shared by the diagnostic pipeline:
// plan steps, command results, evidence, diagnosis and fix artifacts, and the
// escalation state that drives staged remediation.
package types

// IssueType is the closed-set category assigned to a problem description.
// It selects the diagnostic template and the remediation ladder.
type IssueType string

const (
	IssueSystemInfo  IssueType = "system_info"
	IssueInstallApp  IssueType = "install_app"
	IssueNetwork     IssueType = "network"
	IssueBluetooth   IssueType = "bluetooth"
	IssueDiskSpace   IssueType = "disk_space"
	IssuePerformance IssueType = "performance"
	IssueAccount     IssueType = "account"
	IssueAppError    IssueType = "app_error"
	IssueGeneral     IssueType = "general"
	IssueChitchat    IssueType = "chitchat"
)

// AllIssueTypes lists every valid category. Classification output outside this
// set collapses to IssueGeneral.
var AllIssueTypes = []IssueType{
	IssueSystemInfo, IssueInstallApp, IssueNetwork, IssueBluetooth,
	IssueDiskSpace, IssuePerformance, IssueAccount, IssueAppError,
	IssueGeneral, IssueChitchat,
}

// Valid reports whether t is a member of the closed taxonomy.
func (t IssueType) Valid() bool {
	for _, known := range AllIssueTypes {
		if t == known {
			return true
		}
	}
	return false
}

// PlanStep is one diagnostic command plus its human-readable description.
// Steps execute in slice order.
type PlanStep struct {
	Description string `json:"description"`
	Command     string `json:"command"`
}

// CommandResult records one attempted step. Allowed=false means the command
// was never handed to the executor: either the policy filter rejected it or a
// preflight check skipped it, with Error carrying the reason. ReturnCode is
// nil when the command never ran or the execution faulted before exiting.
type CommandResult struct {
	Command    string `json:"command"`
	Allowed    bool   `json:"allowed"`
	Output     string `json:"output"`
	Error      string `json:"error"`
	ReturnCode *int   `json:"return_code,omitempty"`
}

// Failed reports whether an executed command produced an error: non-empty
// error text or a non-zero exit code. Policy rejections are not runtime
// failures and return false.
func (r CommandResult) Failed() bool {
	if !r.Allowed {
		return false
	}
	if r.Error != "" {
		return true
	}
	return r.ReturnCode != nil && *r.ReturnCode != 0
}

// KnowledgeMatch is one ranked hit from the support knowledge base.
type KnowledgeMatch struct {
	Score          float64 `json:"score"`
	ConversationID string  `json:"conversation_id"`
	Issue          string  `json:"issue"`
	Response       string  `json:"response"`
	Category       string  `json:"category"`
	Status         string  `json:"status"`
	ResolutionTime string  `json:"resolution_time"`
}

// WebHit is one ranked web search result. Slice order is source ranking;
// index 0 is the best hit.
type WebHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// Evidence bundles the two retrieval channels. Both lists are ranked best
// first and read-only once returned.
type Evidence struct {
	Knowledge []KnowledgeMatch `json:"knowledge"`
	Web       []WebHit         `json:"web"`
	WebQuery  string           `json:"web_query"`
	WebError  string           `json:"web_error"`
	WebCount  int              `json:"web_count"`
}

// DiagnosticPlan is the output of the planning phase: classification,
// parameter extraction, the ordered step battery, and the evidence gathered
// while planning.
type DiagnosticPlan struct {
	IssueType  IssueType  `json:"issue_type"`
	Summary    string     `json:"summary"`
	Steps      []PlanStep `json:"steps"`
	InstallApp string     `json:"install_app"`
	Evidence   Evidence   `json:"evidence"`
	SOPUsed    string     `json:"sop_used"`
	IsChat     bool       `json:"is_chat"`
}

// DiagnosisResult is built once per diagnostic run and is immutable after
// creation. CommandResults corresponds 1:1, in order, to the plan steps the
// action runner attempted, including blocked and skipped ones.
type DiagnosisResult struct {
	IssueType       IssueType       `json:"issue_type"`
	Findings        string          `json:"findings"`
	ActionPlan      []string        `json:"action_plan"`
	CommandResults  []CommandResult `json:"command_results"`
	InstallApp      string          `json:"install_app"`
	Evidence        Evidence        `json:"evidence"`
	BlockedCommands []string        `json:"blocked_commands"`
	FixStage        int             `json:"fix_stage"`
}

// CombinedOutput joins the stdout of every executed command, used by the
// answer extractors in the summarizer.
func (d DiagnosisResult) CombinedOutput() string {
	var out string
	for _, r := range d.CommandResults {
		if r.Output == "" {
			continue
		}
		if out != "" {
			out += "\n"
		}
		out += r.Output
	}
	return out
}

// FixPlan is the proposed remediation. An empty Commands slice means no
// remediation applies and Summary stands alone as the answer.
type FixPlan struct {
	IssueType IssueType `json:"issue_type"`
	Summary   string    `json:"summary"`
	Commands  []string  `json:"commands"`
}

// ExecutionResult reports a fix application. Success requires both an
// error-free run and a passing verification probe.
type ExecutionResult struct {
	Success             bool            `json:"success"`
	CommandResults      []CommandResult `json:"command_results"`
	Verified            bool            `json:"verified"`
	VerificationMessage string          `json:"verification_message"`
}

// FailedCommands returns the commands that produced runtime errors, surfaced
// to the operator when automatic remediation gives up.
func (e ExecutionResult) FailedCommands() []string {
	var failed []string
	for _, r := range e.CommandResults {
		if r.Failed() {
			failed = append(failed, r.Command)
		}
	}
	return failed
}

// Escalation stage bounds. Stage selects progressively more invasive
// remediation; it only advances on verified failure of an auto-applied fix.
const (
	MinFixStage = 1
	MaxFixStage = 4
)

// EscalationState tracks one issue's retry lifetime. It is owned by the
// pipeline controller, mutated only between pipeline runs, and must not be
// shared across concurrently running issues.
type EscalationState struct {
	Stage           int    `json:"stage"`
	IssueText       string `json:"issue_text"`
	RetryInProgress bool   `json:"retry_in_progress"`
}

// NewEscalationState starts a fresh issue at stage 1.
func NewEscalationState(issueText string) EscalationState {
	return EscalationState{Stage: MinFixStage, IssueText: issueText}
}

// Advance moves to the next stage, clamped at MaxFixStage. It reports whether
// the stage actually advanced.
func (s *EscalationState) Advance() bool {
	if s.Stage >= MaxFixStage {
		return false
	}
	s.Stage++
	return true
}
