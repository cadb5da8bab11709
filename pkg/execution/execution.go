// Package execution implements the Execution layer: a handler contract
// and registry modeled directly on pkg/mcp/executor.go's ToolExecutor.Execute
// shape (normalize -> resolve -> validate params -> invoke -> wrap result),
// generalized from "call an MCP tool" to "invoke a capability handler."
// Handlers are pure: they never touch policy, state, or chat delivery —
// those stay in Decision, State, and Post respectively.
package execution

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/codeready-toolchain/brain/pkg/brainerr"
	"github.com/codeready-toolchain/brain/pkg/config"
	"github.com/codeready-toolchain/brain/pkg/memory"
	"github.com/codeready-toolchain/brain/pkg/models"
)

// MaxChainDepth bounds how many handler-requested follow-on invocations a
// single inbound message may trigger.
const MaxChainDepth = 3

// Envelope carries the request-scoped identifiers every handler needs but
// must not derive policy or delivery decisions from.
type Envelope struct {
	TenantID  string
	RoomID    string
	UserID    string
	MessageID string
	Timezone  string
}

// NextAction is a handler's request to chain into another capability,
// e.g. task_create asking to immediately run a reminder-set capability.
// Depth is enforced by the Engine, never by the handler itself.
type NextAction struct {
	CapabilityID string
	Parameters   map[string]any
}

// Output is what a handler returns on success.
type Output struct {
	Summary    string
	Detail     map[string]any
	NextAction *NextAction
}

// HandlerFunc is the pure handler contract: (parameters, envelope, memory
// context) -> Output, or a brainerr.TaxonomyError on failure.
type HandlerFunc func(ctx context.Context, params map[string]any, env Envelope, mc *memory.Context) (Output, error)

// Registry is the handler-key -> function-table dispatch, built once at
// startup and shared across requests.
type Registry struct {
	handlers map[string]HandlerFunc
}

// NewRegistry constructs an empty Registry; call Register for each handler
// key named by the capability configs.
func NewRegistry() *Registry {
	return &Registry{handlers: map[string]HandlerFunc{}}
}

// Register binds a HandlerFunc to a handler key.
func (r *Registry) Register(key string, fn HandlerFunc) {
	r.handlers[key] = fn
}

// Has reports whether key has a registered handler.
func (r *Registry) Has(key string) bool {
	_, ok := r.handlers[key]
	return ok
}

// Keys returns every registered handler key.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.handlers))
	for k := range r.handlers {
		keys = append(keys, k)
	}
	return keys
}

// Engine drives one capability invocation end to end, including bounded
// chaining.
type Engine struct {
	registry     *Registry
	capabilities *config.CapabilityRegistry
}

// New constructs an execution Engine.
func New(registry *Registry, capabilities *config.CapabilityRegistry) *Engine {
	return &Engine{registry: registry, capabilities: capabilities}
}

// Invocation is one completed handler call plus its persisted-shape result,
// returned up the chain so Post can write every hop to the decision log.
type Invocation struct {
	CapabilityID string
	Output       Output
	Result       models.CreateHandlerResultRequest
	Err          error
}

// Run validates parameters against the capability's schema, invokes its
// handler, and wraps the outcome. On a NextAction response it recurses up
// to MaxChainDepth, stopping (not failing) once the bound is reached.
func (e *Engine) Run(ctx context.Context, executionPlanID string, cap *config.CapabilityConfig, params map[string]any, env Envelope, mc *memory.Context) []Invocation {
	return e.run(ctx, executionPlanID, cap, params, env, mc, 0)
}

func (e *Engine) run(ctx context.Context, executionPlanID string, cap *config.CapabilityConfig, params map[string]any, env Envelope, mc *memory.Context, depth int) []Invocation {
	start := time.Now()

	coerced, err := validateAndCoerce(cap.ParameterSchema, params, env.Timezone)
	if err != nil {
		return []Invocation{e.errorInvocation(executionPlanID, cap.ID, start, brainerr.New(config.ErrorKindParameterInvalid, err))}
	}

	fn, ok := e.registry.handlers[cap.HandlerKey]
	if !ok {
		return []Invocation{e.errorInvocation(executionPlanID, cap.ID, start, brainerr.New(config.ErrorKindHandlerInternal, fmt.Errorf("no handler registered for key %q", cap.HandlerKey)))}
	}

	out, err := fn(ctx, coerced, env, mc)
	if err != nil {
		return []Invocation{e.errorInvocation(executionPlanID, cap.ID, start, err)}
	}

	invocations := []Invocation{{
		CapabilityID: cap.ID,
		Output:       out,
		Result: models.CreateHandlerResultRequest{
			TenantID:        env.TenantID,
			ExecutionPlanID: executionPlanID,
			Status:          models.HandlerResultSuccess,
			Summary:         out.Summary,
			Detail:          out.Detail,
			DurationMS:      time.Since(start).Milliseconds(),
		},
	}}

	if out.NextAction != nil && depth+1 < MaxChainDepth {
		nextCap, err := e.capabilities.Get(out.NextAction.CapabilityID)
		if err == nil && nextCap.Enabled {
			invocations = append(invocations, e.run(ctx, executionPlanID, nextCap, out.NextAction.Parameters, env, mc, depth+1)...)
		}
	}

	return invocations
}

func (e *Engine) errorInvocation(executionPlanID, capabilityID string, start time.Time, err error) Invocation {
	kind := brainerr.KindOf(err)
	return Invocation{
		CapabilityID: capabilityID,
		Err:          err,
		Result: models.CreateHandlerResultRequest{
			ExecutionPlanID: executionPlanID,
			Status:          models.HandlerResultError,
			Summary:         brainerr.UserMessageFor(err),
			ErrorKind:       &kind,
			DurationMS:      time.Since(start).Milliseconds(),
		},
	}
}

// validateAndCoerce checks required parameters are present and coerces
// each value to the type the schema declares (dates against tz, numbers
// parsed locale-naively, everything else passed through as a string).
func validateAndCoerce(schema map[string]config.ParameterSpec, params map[string]any, tz string) (map[string]any, error) {
	out := make(map[string]any, len(params))
	for k, v := range params {
		out[k] = v
	}
	for name, spec := range schema {
		v, present := out[name]
		if !present || v == "" {
			if spec.Required {
				return nil, fmt.Errorf("missing required parameter %q", name)
			}
			continue
		}
		coerced, err := coerceValue(v, spec.Type, tz)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		out[name] = coerced
	}
	return out, nil
}

func coerceValue(v any, typ, tz string) (any, error) {
	s, isStr := v.(string)
	switch typ {
	case "int":
		if !isStr {
			return v, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("expected an integer, got %q", s)
		}
		return n, nil
	case "float":
		if !isStr {
			return v, nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("expected a number, got %q", s)
		}
		return f, nil
	case "bool":
		if !isStr {
			return v, nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("expected true/false, got %q", s)
		}
		return b, nil
	case "date":
		if !isStr {
			return v, nil
		}
		return parseDate(s, tz)
	default:
		return v, nil
	}
}

// parseDate resolves a small set of natural-language relative dates plus
// RFC3339/date-only formats, interpreted in the tenant's timezone.
func parseDate(s, tz string) (time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	now := time.Now().In(loc)
	lower := strings.ToLower(strings.TrimSpace(s))
	switch lower {
	case "today":
		return endOfDay(now), nil
	case "tomorrow":
		return endOfDay(now.AddDate(0, 0, 1)), nil
	}
	if wd, ok := weekdayNames[lower]; ok {
		return endOfDay(nextWeekday(now, wd)), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("could not parse date %q", s)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// nextWeekday returns the next occurrence of wd strictly after now's day —
// "by Friday" said on a Friday means next week's Friday, not today.
func nextWeekday(now time.Time, wd time.Weekday) time.Time {
	days := (int(wd) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.AddDate(0, 0, days)
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 17, 0, 0, 0, t.Location())
}
