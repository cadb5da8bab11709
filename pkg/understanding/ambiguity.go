package understanding

import (
	"strings"

	"github.com/codeready-toolchain/brain/pkg/memory"
)

// pronounTokens are the closed set of referring expressions Understanding
// tries to resolve against context, per spec §4.4.
var pronounTokens = []string{"that", "this", "the one", "it"}

// ellipsisVerbs name verbs commonly used without an explicit object
// ("mark done", "finish it") — their implicit object is the most
// recently mentioned task.
var ellipsisVerbs = []string{"mark done", "mark it done", "finish", "complete it", "close it out"}

// resolveAmbiguities finds pronoun/ellipsis tokens in msgText and resolves
// them in priority order: (a) active state scratch data, (b) the last
// conversation turn's nouns, (c) recent tasks.
func resolveAmbiguities(msgText string, mc *memory.Context, stateData map[string]any) []ResolvedAmbiguity {
	lower := strings.ToLower(msgText)
	var out []ResolvedAmbiguity

	for _, p := range pronounTokens {
		if !strings.Contains(lower, p) {
			continue
		}
		if resolved, ok := resolveFromStateData(stateData); ok {
			out = append(out, ResolvedAmbiguity{Token: p, Resolved: resolved, Source: SourceStateData})
			continue
		}
		if resolved, ok := resolveFromLastTurn(mc); ok {
			out = append(out, ResolvedAmbiguity{Token: p, Resolved: resolved, Source: SourceLastTurn})
			continue
		}
		if resolved, ok := resolveFromRecentTask(mc); ok {
			out = append(out, ResolvedAmbiguity{Token: p, Resolved: resolved, Source: SourceRecentTask})
			continue
		}
		// Unresolved: record the miss so NeedsConfirmationHint fires.
		out = append(out, ResolvedAmbiguity{Token: p, Resolved: "", Source: SourceLastTurn})
	}

	for _, v := range ellipsisVerbs {
		if !strings.Contains(lower, v) {
			continue
		}
		if resolved, ok := resolveFromRecentTask(mc); ok {
			out = append(out, ResolvedAmbiguity{Token: v, Resolved: resolved, Source: SourceRecentTask})
		} else {
			out = append(out, ResolvedAmbiguity{Token: v, Resolved: "", Source: SourceRecentTask})
		}
	}

	return out
}

func resolveFromStateData(stateData map[string]any) (string, bool) {
	if stateData == nil {
		return "", false
	}
	for _, key := range []string{"referent", "pending_task_id", "last_entity"} {
		if v, ok := stateData[key]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

func resolveFromLastTurn(mc *memory.Context) (string, bool) {
	if mc == nil || len(mc.RecentTurns) == 0 {
		return "", false
	}
	last := mc.RecentTurns[len(mc.RecentTurns)-1]
	nouns := extractCapitalizedNouns(last.Body)
	if len(nouns) == 0 {
		return "", false
	}
	return nouns[len(nouns)-1], true
}

func resolveFromRecentTask(mc *memory.Context) (string, bool) {
	if mc == nil || len(mc.ActiveTasks) == 0 {
		return "", false
	}
	return mc.ActiveTasks[0].ID, true
}

// extractCapitalizedNouns is a deliberately simple heuristic: words
// starting with an uppercase letter that aren't the first word of the
// sentence, used only as a last-resort referent guess.
func extractCapitalizedNouns(text string) []string {
	var nouns []string
	words := strings.Fields(text)
	for i, w := range words {
		w = strings.Trim(w, ".,!?;:")
		if w == "" {
			continue
		}
		if i == 0 {
			continue
		}
		if w[0] >= 'A' && w[0] <= 'Z' {
			nouns = append(nouns, w)
		}
	}
	return nouns
}
