package config

import "sync"

// MaskingPattern is one built-in regex rule shipped with the binary.
type MaskingPattern struct {
	Pattern     string
	Replacement string
	Description string
}

// BuiltinConfig holds the built-in masking patterns, pattern groups, and
// code-based masker names available to every tenant. Populated once at
// package init.
type BuiltinConfig struct {
	MaskingPatterns map[string]MaskingPattern
	PatternGroups   map[string][]string
	CodeMaskers     []string
	Capabilities    map[string]CapabilityConfig
	LLMProviders    map[string]LLMProviderConfig
}

var (
	builtinOnce sync.Once
	builtin     *BuiltinConfig
)

// GetBuiltinConfig returns the process-wide built-in masking configuration.
func GetBuiltinConfig() *BuiltinConfig {
	builtinOnce.Do(func() {
		builtin = &BuiltinConfig{
			MaskingPatterns: map[string]MaskingPattern{
				"email": {
					Pattern:     `[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`,
					Replacement: "[REDACTED_EMAIL]",
					Description: "Email addresses",
				},
				"phone": {
					Pattern:     `\+?\d[\d\-\s()]{7,}\d`,
					Replacement: "[REDACTED_PHONE]",
					Description: "Phone numbers",
				},
				"ssn": {
					Pattern:     `\b\d{3}-\d{2}-\d{4}\b`,
					Replacement: "[REDACTED_SSN]",
					Description: "US social security numbers",
				},
				"credit_card": {
					Pattern:     `\b(?:\d[ -]*?){13,16}\b`,
					Replacement: "[REDACTED_CARD]",
					Description: "Credit card numbers",
				},
				"api_key": {
					Pattern:     `(?i)(api[_-]?key|token|secret)["']?\s*[:=]\s*["']?[A-Za-z0-9\-_]{16,}`,
					Replacement: "[REDACTED_CREDENTIAL]",
					Description: "Inline API keys, tokens, and secrets",
				},
				"ip_address": {
					Pattern:     `\b(?:\d{1,3}\.){3}\d{1,3}\b`,
					Replacement: "[REDACTED_IP]",
					Description: "IPv4 addresses",
				},
			},
			PatternGroups: map[string][]string{
				"pii":     {"email", "phone", "ssn", "credit_card"},
				"secrets": {"api_key", "credential_block"},
				"network": {"ip_address"},
				"strict":  {"email", "phone", "ssn", "credit_card", "api_key", "credential_block", "ip_address"},
			},
			CodeMaskers: []string{"credential_block"},
			Capabilities: map[string]CapabilityConfig{
				"help": {
					ID:                "help",
					DisplayName:       "Help",
					Description:       "Lists what the Brain can do in this room",
					Category:          "general",
					Enabled:           true,
					RequiredRoleLevel: 1,
					RiskLevel:         RiskLow,
					Priority:          1,
					IntentKeywords:    KeywordSet{Primary: []string{"help", "what can you do", "commands"}},
					HandlerKey:        "help",
				},
				"task_create": {
					ID:                "task_create",
					DisplayName:       "Create Task",
					Description:       "Creates a task for a named assignee, optionally with a deadline",
					Category:          "tasks",
					Enabled:           true,
					RequiredRoleLevel: 1,
					RiskLevel:         RiskLow,
					Priority:          5,
					IntentKeywords: KeywordSet{
						Primary:   []string{"create a task", "assign", "new task"},
						Secondary: []string{"task", "todo", "by friday", "deadline"},
						Negative:  []string{"my tasks", "search tasks", "list tasks"},
					},
					ParameterSchema: map[string]ParameterSpec{
						"assignee": {Type: "string", Required: true},
						"title":    {Type: "string", Required: true},
						"deadline": {Type: "date", Required: false},
						"room_id":  {Type: "string", Required: false},
					},
					HandlerKey: "task_create",
					ChainHints: []string{"set a reminder?", "want to notify the assignee?"},
				},
				"task_search": {
					ID:                "task_search",
					DisplayName:       "Search Tasks",
					Description:       "Lists the sender's open tasks across rooms",
					Category:          "tasks",
					Enabled:           true,
					RequiredRoleLevel: 1,
					RiskLevel:         RiskLow,
					Priority:          5,
					IntentKeywords: KeywordSet{
						Primary:   []string{"my tasks", "what do i have", "task list", "tell me my tasks"},
						Secondary: []string{"tasks", "todo"},
						Negative:  []string{"create a task", "new task"},
					},
					ParameterSchema: map[string]ParameterSpec{},
					HandlerKey:      "task_search",
					ChainHints:      []string{"mark one done?"},
				},
				"task_complete": {
					ID:                "task_complete",
					DisplayName:       "Complete Task",
					Description:       "Marks a task done, resolving pronouns against recent context",
					Category:          "tasks",
					Enabled:           true,
					RequiredRoleLevel: 1,
					RiskLevel:         RiskLow,
					Priority:          4,
					IntentKeywords: KeywordSet{
						Primary:   []string{"mark done", "mark that done", "finished", "completed the"},
						Secondary: []string{"done"},
					},
					ParameterSchema: map[string]ParameterSpec{
						"task_id": {Type: "string", Required: true},
					},
					HandlerKey: "task_complete",
				},
				"goal_set": {
					ID:                "goal_set",
					DisplayName:       "Set Goal",
					Description:       "Walks the user through recording a new goal",
					Category:          "goals",
					Enabled:           true,
					RequiredRoleLevel: 1,
					RiskLevel:         RiskLow,
					Priority:          4,
					IntentKeywords: KeywordSet{
						Primary: []string{"set a goal", "new goal", "i want to achieve"},
					},
					ParameterSchema: map[string]ParameterSpec{
						"title": {Type: "string", Required: true},
						"why":   {Type: "string", Required: false},
					},
					HandlerKey: "goal_set",
				},
				"knowledge_query": {
					ID:                "knowledge_query",
					DisplayName:       "Knowledge Query",
					Description:       "Answers from retrieved knowledge-base chunks",
					Category:          "knowledge",
					Enabled:           true,
					RequiredRoleLevel: 1,
					RiskLevel:         RiskLow,
					Priority:          3,
					IntentKeywords: KeywordSet{
						Primary:   []string{"what is our policy", "where can i find", "how do we"},
						Secondary: []string{"policy", "document", "procedure"},
					},
					ParameterSchema: map[string]ParameterSpec{
						"query": {Type: "string", Required: true},
					},
					HandlerKey: "knowledge_query",
				},
				"announcement_request": {
					ID:                "announcement_request",
					DisplayName:       "Announcement",
					Description:       "Captures and schedules a room announcement, optionally with tasks",
					Category:          "announcement",
					Enabled:           true,
					RequiredRoleLevel: 3,
					RiskLevel:         RiskHigh,
					Priority:          8,
					RequiresConfirmation: true,
					IntentKeywords: KeywordSet{
						Primary: []string{"announce", "announcement", "send to all", "let everyone know"},
					},
					ParameterSchema: map[string]ParameterSpec{
						"room_alias":   {Type: "string", Required: true},
						"message_body": {Type: "string", Required: true},
						"create_tasks": {Type: "bool", Required: false},
						"deadline":     {Type: "date", Required: false},
					},
					HandlerKey: "announcement_request",
				},
				"teaching_record": {
					ID:                "teaching_record",
					DisplayName:       "Record CEO Teaching",
					Description:       "Records a value statement as a CEO teaching",
					Category:          "governance",
					Enabled:           true,
					RequiredRoleLevel: 5,
					RiskLevel:         RiskMedium,
					Priority:          6,
					IntentKeywords: KeywordSet{
						Primary: []string{"remember that", "this is important", "our value is"},
					},
					ParameterSchema: map[string]ParameterSpec{
						"statement": {Type: "string", Required: true},
						"category":  {Type: "string", Required: false},
					},
					HandlerKey: "teaching_record",
				},
				"insight_list": {
					ID:                "insight_list",
					DisplayName:       "List Insights",
					Description:       "Surfaces recent high-priority insights and pattern proposals",
					Category:          "insights",
					Enabled:           true,
					RequiredRoleLevel: 2,
					RiskLevel:         RiskLow,
					Priority:          3,
					IntentKeywords: KeywordSet{
						Primary: []string{"any insights", "what's trending", "patterns"},
					},
					ParameterSchema: map[string]ParameterSpec{},
					HandlerKey:      "insight_list",
				},
			},
			LLMProviders: map[string]LLMProviderConfig{},
		}
	})
	return builtin
}
