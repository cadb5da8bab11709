package models

import "time"

// DecisionStage identifies which pipeline stage last touched a decision
// log row before Post wrote it. Exactly one decision_log row is written
// per Brain invocation (success, refusal, or error) — Post always writes
// the one row it built up across Understanding/Decision/Guardrail/
// Execution, never one row per stage.
type DecisionStage string

const (
	StageUnderstanding DecisionStage = "understanding"
	StageDecision      DecisionStage = "decision"
	StageGuardrail     DecisionStage = "guardrail"
	StageExecution     DecisionStage = "execution"
	StageStateCancel   DecisionStage = "state_cancel"
)

// DecisionLog is the single append-only audit row for one Brain
// invocation. Fields mirror the per-invocation record in spec §3: intent,
// selected capability, confidences, guardrail outcome, policy reason,
// success/failure, timing, and confirmation bookkeeping. ScrubbedDetail
// and MessageExcerpt have already passed through the masking service
// (fail-open) before being written, so the row is safe to display in an
// audit UI without a second redaction pass. Retention: 90 days (enforced
// by pkg/cleanup).
type DecisionLog struct {
	ID        string
	TenantID  string
	RoomID    string
	UserID    string
	MessageID *string

	Stage   DecisionStage
	Outcome string
	Reason  string

	MessageExcerpt      string
	InferredIntent      string
	SelectedCapability  string
	OverallConfidence   *float64
	IntentConfidence    *float64
	ParameterConfidence *float64

	GuardrailAction string
	PolicyReason    string

	Success   bool
	ErrorCode string

	TokensIn        int
	TokensOut       int
	ModelID         string
	TimingBreakdown map[string]int64 // stage name -> milliseconds

	ConfirmationNeeded     bool
	ConfirmationQuestion   string
	ConfirmationResolution string

	Warnings []string

	ScrubbedDetail map[string]any
	CreatedAt      time.Time
}

// CreateDecisionLogRequest contains the fields needed to append the
// decision log entry for one Brain invocation. Per the duplicate-webhook
// resolution recorded in DESIGN.md, callers must NOT write a decision log
// entry for a message that was rejected purely as a duplicate delivery —
// only for messages that entered the pipeline.
type CreateDecisionLogRequest struct {
	TenantID  string
	RoomID    string
	UserID    string
	MessageID *string

	Stage   DecisionStage
	Outcome string
	Reason  string

	MessageExcerpt      string
	InferredIntent      string
	SelectedCapability  string
	OverallConfidence   *float64
	IntentConfidence    *float64
	ParameterConfidence *float64

	GuardrailAction string
	PolicyReason    string

	Success   bool
	ErrorCode string

	TokensIn        int
	TokensOut       int
	ModelID         string
	TimingBreakdown map[string]int64

	ConfirmationNeeded     bool
	ConfirmationQuestion   string
	ConfirmationResolution string

	Warnings []string

	ScrubbedDetail map[string]any
}

// DecisionLogRetention is the §3 retention window for decision_log rows.
const DecisionLogRetention = 90 * 24 * time.Hour
