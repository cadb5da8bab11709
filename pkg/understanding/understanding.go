// Package understanding implements the Understanding layer: keyword
// scoring against the capability registry merged with a single structured
// LLM inference call, pronoun/ellipsis resolution, and a confidence score
// that feeds Decision's confirmation gate. Shaped after
// pkg/agent/llm_client.go's single request/response LLM call, generalized
// from streaming analysis chunks to one JSON-mode completion since
// Understanding needs exactly one structured object back.
package understanding

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/llm"
	"github.com/codeready-toolchain/brain/pkg/memory"
)

// Scoring weights from spec §4.4.
const (
	weightPrimary  = 1.0
	weightSecond   = 0.4
	weightNegative = 0.6

	strongKeywordThreshold = 1.5
	llmAgreementMinConf    = 0.6
	disagreementPenalty    = 0.2

	confirmationConfidenceFloor = 0.7
	llmOutageConfidenceCap      = 0.6
	ambiguityMargin             = 0.1
)

// AmbiguitySource records where a resolved pronoun/ellipsis referent came
// from, per spec §4.4.
type AmbiguitySource string

const (
	SourceStateData    AmbiguitySource = "state_data"
	SourceLastTurn     AmbiguitySource = "last_turn"
	SourceRecentTask   AmbiguitySource = "recent_task"
	SourceAnnouncement AmbiguitySource = "recent_announcement"
)

// ResolvedAmbiguity is one pronoun/ellipsis resolution, recorded with its
// source so Decision and Post can explain the resolution if asked.
type ResolvedAmbiguity struct {
	Token    string
	Resolved string
	Source   AmbiguitySource
}

// Result is Understanding's output, consumed by Decision.
type Result struct {
	Intent                string
	Entities              map[string]string
	Urgency               string
	ResolvedAmbiguities    []ResolvedAmbiguity
	Confidence             float64
	IntentConfidence       float64
	Reasoning              string
	NeedsConfirmationHint  bool
	KeywordScores          map[string]float64 // capability id -> raw keyword score
	Candidates             []Candidate        // top candidates, for Decision's alternates
	UsedLLM                bool
	TokensIn, TokensOut    int
	ModelID                string
}

// Candidate is one scored capability, ranked by keyword score.
type Candidate struct {
	CapabilityID string
	Score        float64
}

// llmResponse is the JSON shape the Understanding prompt asks the LLM to
// return.
type llmResponse struct {
	Intent     string            `json:"intent"`
	Entities   map[string]string `json:"entities"`
	Confidence float64           `json:"confidence"`
	Urgency    string            `json:"urgency"`
	Reasoning  string            `json:"reasoning"`
}

// Engine infers Understanding.Result for one message.
type Engine struct {
	capabilities *config.CapabilityRegistry
	llmClient    llm.Client
	model        string
}

// New constructs an Engine. llmClient may be nil, in which case Understanding
// runs keyword-only (as if the LLM were unreachable).
func New(capabilities *config.CapabilityRegistry, llmClient llm.Client, model string) *Engine {
	return &Engine{capabilities: capabilities, llmClient: llmClient, model: model}
}

// Infer produces a Result for msgText given the request's MemoryContext
// and the active conversation state's scratch data (nil if normal).
func (e *Engine) Infer(ctx context.Context, msgText string, mc *memory.Context, stateData map[string]any) (Result, error) {
	keywordScores, candidates := e.scoreKeywords(msgText)

	res := Result{
		Entities:      map[string]string{},
		KeywordScores: keywordScores,
		Candidates:    candidates,
	}

	var keywordTop, keywordSecond Candidate
	if len(candidates) > 0 {
		keywordTop = candidates[0]
	}
	if len(candidates) > 1 {
		keywordSecond = candidates[1]
	}

	llmResult, llmErr := e.inferLLM(ctx, msgText, mc)
	if llmErr != nil || e.llmClient == nil {
		// LLM outage or no client configured: keyword-only, confidence
		// capped per spec boundary behavior.
		res.Intent = keywordTop.CapabilityID
		res.Confidence = min(normalizeKeyword(keywordTop.Score), llmOutageConfidenceCap)
		res.IntentConfidence = res.Confidence
		res.Reasoning = "keyword-only: LLM unavailable"
	} else {
		res.UsedLLM = true
		res.ModelID = e.model
		keywordNorm := normalizeKeyword(keywordTop.Score)
		strongKeyword := keywordTop.Score > strongKeywordThreshold
		agree := strongKeyword && llmResult.Intent == keywordTop.CapabilityID

		switch {
		case agree:
			res.Intent = keywordTop.CapabilityID
			res.Confidence = maxF(keywordNorm, llmResult.Confidence)
			res.Reasoning = "keyword and LLM agree"
		case llmResult.Confidence >= llmAgreementMinConf:
			res.Intent = llmResult.Intent
			res.Confidence = minF(keywordNorm, llmResult.Confidence) - disagreementPenalty
			res.Reasoning = "LLM overrides on disagreement (self-confidence above threshold)"
		default:
			res.Intent = keywordTop.CapabilityID
			res.Confidence = keywordNorm
			res.Reasoning = "keyword wins on LLM disagreement below confidence threshold"
		}
		if res.Confidence < 0 {
			res.Confidence = 0
		}
		res.IntentConfidence = res.Confidence
		res.Entities = llmResult.Entities
		res.Urgency = llmResult.Urgency
		if res.Entities == nil {
			res.Entities = map[string]string{}
		}
	}

	res.ResolvedAmbiguities = resolveAmbiguities(msgText, mc, stateData)
	for _, amb := range res.ResolvedAmbiguities {
		res.Entities[amb.Token] = amb.Resolved
	}

	res.NeedsConfirmationHint = e.needsConfirmationHint(res, keywordTop, keywordSecond)
	return res, nil
}

// needsConfirmationHint implements spec §4.4's hint rule.
func (e *Engine) needsConfirmationHint(res Result, top, second Candidate) bool {
	if res.Confidence < confirmationConfidenceFloor {
		return true
	}
	if second.CapabilityID != "" && (top.Score-second.Score) < ambiguityMargin {
		return true
	}
	for _, amb := range res.ResolvedAmbiguities {
		if amb.Resolved == "" {
			return true // required entity unresolved
		}
	}
	if containsDestructiveVerb(res.Intent) && len(res.Candidates) > 1 {
		return true
	}
	return false
}

var destructiveVerbs = map[string]bool{
	"task_delete": true, "announcement_cancel": true, "send_to_all": true,
}

func containsDestructiveVerb(intent string) bool {
	return destructiveVerbs[intent]
}

// scoreKeywords computes the keyword score for every enabled capability
// and returns candidates sorted best-first, broken by descriptor priority.
func (e *Engine) scoreKeywords(msgText string) (map[string]float64, []Candidate) {
	lower := strings.ToLower(msgText)
	scores := map[string]float64{}
	var candidates []Candidate

	for id, cap := range e.capabilities.GetAll() {
		if !cap.Enabled {
			continue
		}
		kw := cap.EffectiveIntentKeywords()
		var score float64
		for _, p := range kw.Primary {
			if containsPhrase(lower, p) {
				score += weightPrimary
			}
		}
		for _, s := range kw.Secondary {
			if containsPhrase(lower, s) {
				score += weightSecond
			}
		}
		for _, n := range kw.Negative {
			if containsPhrase(lower, n) {
				score -= weightNegative
			}
		}
		if score <= 0 {
			continue
		}
		// Weighted by capability priority (1-10), per spec §4.4.
		weighted := score * (float64(cap.Priority) / 10.0)
		if weighted <= 0 {
			weighted = score * 0.1
		}
		scores[id] = weighted
		candidates = append(candidates, Candidate{CapabilityID: id, Score: weighted})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		ci, _ := e.capabilities.Get(candidates[i].CapabilityID)
		cj, _ := e.capabilities.Get(candidates[j].CapabilityID)
		return ci != nil && cj != nil && ci.Priority > cj.Priority
	})
	return scores, candidates
}

func containsPhrase(haystack, phrase string) bool {
	return strings.Contains(haystack, strings.ToLower(phrase))
}

func normalizeKeyword(score float64) float64 {
	// Raw scores are unbounded; a score at or above the strong threshold
	// saturates to 1.0, scaling linearly below it.
	if score <= 0 {
		return 0
	}
	n := score / strongKeywordThreshold
	if n > 1 {
		n = 1
	}
	return n
}

// inferLLM issues the single structured Understanding prompt.
func (e *Engine) inferLLM(ctx context.Context, msgText string, mc *memory.Context) (*llmResponse, error) {
	if e.llmClient == nil {
		return nil, fmt.Errorf("understanding: no LLM client configured")
	}
	prompt := buildPrompt(msgText, mc, e.capabilities)
	resp, err := e.llmClient.Complete(ctx, llm.CompletionRequest{
		Model:       e.model,
		Temperature: 0.1,
		JSONMode:    true,
		MaxTokens:   512,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You classify one chat message into exactly one capability key and extract entities. Respond with a single JSON object: {\"intent\":\"...\",\"entities\":{},\"confidence\":0.0,\"urgency\":\"low|normal|high\",\"reasoning\":\"...\"}."},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("understanding LLM call: %w", err)
	}
	var parsed llmResponse
	if err := json.Unmarshal([]byte(resp.Content), &parsed); err != nil {
		return nil, fmt.Errorf("understanding LLM response: %w", err)
	}
	return &parsed, nil
}

func buildPrompt(msgText string, mc *memory.Context, capabilities *config.CapabilityRegistry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Message: %s\n", msgText)
	if mc != nil {
		fmt.Fprintf(&b, "Recent turns: %d, summary: %q\n", len(mc.RecentTurns), truncate(mc.Summary, 280))
		if mc.Sender != nil {
			fmt.Fprintf(&b, "Sender role level: %d\n", mc.Sender.RoleLevel)
		}
		fmt.Fprintf(&b, "Active tasks: %d, active goals: %d\n", len(mc.ActiveTasks), len(mc.ActiveGoals))
	}
	b.WriteString("Capabilities:\n")
	for id, cap := range capabilities.GetAll() {
		if !cap.Enabled {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", id, cap.Description)
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
func minF(a, b float64) float64 { return min(a, b) }
func maxF(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
