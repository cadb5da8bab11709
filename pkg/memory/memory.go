// Package memory implements the Memory layer: a single Load
// call that fans out concurrently to every memory source, bounded by a
// per-fetch deadline and an aggregate deadline, tolerating partial
// failures. Uses the same concurrent-executor shape as pkg/agent/orchestrator/runner.go
// concurrent-executor pattern (parallel launches, per-launch timeout,
// results collected even when some fail) and generalized from "launch N
// agents" to "fetch N memory sources" using golang.org/x/sync/errgroup.
package memory

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/codeready-toolchain/brain/pkg/identity"
	"github.com/codeready-toolchain/brain/pkg/models"
	"github.com/codeready-toolchain/brain/pkg/store"
	"github.com/codeready-toolchain/brain/pkg/vectorstore"
)

// PerFetchTimeout and AggregateTimeout bound each individual memory
// sub-fetch and the overall Load call respectively.
const (
	PerFetchTimeout  = 2 * time.Second
	AggregateTimeout = 3 * time.Second
)

// Context is the request-scoped, read-only memory snapshot Understanding
// and Decision consult. Owned by the request goroutine; never persisted
// as a whole.
type Context struct {
	TenantID string
	RoomID   string
	UserID   string

	RecentTurns    []store.ConversationTurn
	Summary        string
	Preferences    map[string]any
	Sender         *identity.User
	Persons        []store.Person
	ActiveTasks    []store.Task
	ActiveGoals    []store.Goal
	Teachings      []models.CEOTeaching
	RecentInsights []store.Insight

	// Warnings records which sub-fetches timed out or errored so Post can
	// write "partial_memory" onto the decision log.
	Warnings []string

	knowledge    *vectorstore.Store
	knowledgeTTL time.Duration
}

// Loader fans out to every memory source. Constructed once at startup and
// shared across requests; holds no per-request state.
type Loader struct {
	store    *store.Store
	identity *identity.Store
	vectors  *vectorstore.Store
}

// NewLoader builds a Loader from the shared stores.
func NewLoader(st *store.Store, idStore *identity.Store, vec *vectorstore.Store) *Loader {
	return &Loader{store: st, identity: idStore, vectors: vec}
}

// Load builds a Context for (tenantID, userID, roomID) by fanning out
// concurrently to every bounded sub-fetch below. A sub-fetch that times
// out or errors is non-fatal: Load proceeds with a partial context and
// records a warning, never failing the whole request
// over one slow source.
func (l *Loader) Load(ctx context.Context, tenantID, roomID, userID, chatAccountID, messageText string) (*Context, error) {
	ctx, cancel := context.WithTimeout(ctx, AggregateTimeout)
	defer cancel()

	mc := &Context{TenantID: tenantID, RoomID: roomID, UserID: userID, knowledge: l.vectors, knowledgeTTL: PerFetchTimeout}

	type fetch struct {
		name string
		run  func(ctx context.Context) error
	}
	fetches := []fetch{
		{"recent_turns", func(ctx context.Context) error {
			turns, err := l.store.RecentTurns(ctx, tenantID, roomID, userID, 10)
			if err != nil {
				return err
			}
			mc.RecentTurns = turns
			return nil
		}},
		{"summary", func(ctx context.Context) error {
			summary, err := l.store.ConversationSummary(ctx, tenantID, roomID, userID)
			if err != nil {
				return err
			}
			mc.Summary = summary
			return nil
		}},
		{"preferences", func(ctx context.Context) error {
			prefs, err := l.store.Preferences(ctx, tenantID, userID)
			if err != nil {
				return err
			}
			mc.Preferences = prefs
			return nil
		}},
		{"sender", func(ctx context.Context) error {
			if l.identity == nil {
				return nil
			}
			user, err := l.identity.ResolveUser(ctx, tenantID, chatAccountID)
			if err != nil {
				return err
			}
			mc.Sender = user
			return nil
		}},
		{"persons", func(ctx context.Context) error {
			names := candidateNames(messageText)
			if len(names) == 0 {
				return nil
			}
			var persons []store.Person
			for _, name := range names {
				found, err := l.store.PersonsMatching(ctx, tenantID, name, 5)
				if err != nil {
					return err
				}
				persons = append(persons, found...)
			}
			mc.Persons = dedupPersons(persons)
			return nil
		}},
		{"tasks", func(ctx context.Context) error {
			tasks, err := l.store.ActiveTasksForUser(ctx, tenantID, userID, 20)
			if err != nil {
				return err
			}
			mc.ActiveTasks = tasks
			return nil
		}},
		{"goals", func(ctx context.Context) error {
			goals, err := l.store.ActiveGoalsForUser(ctx, tenantID, userID, 10)
			if err != nil {
				return err
			}
			mc.ActiveGoals = goals
			return nil
		}},
		{"teachings", func(ctx context.Context) error {
			teachings, err := l.store.TopTeachingsForPrompt(ctx, tenantID, keywordsOf(messageText), 5)
			if err != nil {
				return err
			}
			mc.Teachings = teachings
			return nil
		}},
		{"insights", func(ctx context.Context) error {
			insights, err := l.store.RecentHighPriorityInsights(ctx, tenantID, 5)
			if err != nil {
				return err
			}
			mc.RecentInsights = insights
			return nil
		}},
	}

	g, gctx := errgroup.WithContext(ctx)
	warnCh := make(chan string, len(fetches))
	for _, f := range fetches {
		f := f
		g.Go(func() error {
			fctx, fcancel := context.WithTimeout(gctx, PerFetchTimeout)
			defer fcancel()
			if err := f.run(fctx); err != nil {
				slog.Warn("memory sub-fetch failed, continuing with partial context",
					"tenant_id", tenantID, "room_id", roomID, "user_id", userID, "source", f.name, "error", err)
				warnCh <- f.name
			}
			return nil // never fail the group: partial context is acceptable
		})
	}
	_ = g.Wait()
	close(warnCh)
	for name := range warnCh {
		mc.Warnings = append(mc.Warnings, "partial_memory:"+name)
	}

	return mc, nil
}

// Knowledge performs the lazy vector-similarity sub-fetch, invoked only by
// Decision or by a handler, never by Load itself.
func (mc *Context) Knowledge(ctx context.Context, embedding []float32, topK int) ([]vectorstore.ScoredChunk, error) {
	if mc.knowledge == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, mc.knowledgeTTL)
	defer cancel()
	return mc.knowledge.Query(ctx, mc.TenantID, mc.RoomID, embedding, topK)
}

func dedupPersons(in []store.Person) []store.Person {
	seen := map[string]bool{}
	var out []store.Person
	for _, p := range in {
		if seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
		if len(out) >= 5 {
			break
		}
	}
	return out
}
