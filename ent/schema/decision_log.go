package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// DecisionLog holds the schema definition for an append-only record of a
// layer's decision (routed, confirmed, rejected, blocked, executed) with
// PII-scrubbed detail. Retained for 90 days; see pkg/cleanup.
type DecisionLog struct {
	ent.Schema
}

// Fields of the DecisionLog.
func (DecisionLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("tenant_id").Immutable(),
		field.String("room_id").Immutable(),
		field.String("user_id").Immutable(),
		field.String("message_id").
			Optional().
			Nillable().
			Comment("Absent for decisions not tied to a single inbound message"),
		field.String("stage").Immutable(),
		field.String("outcome").Immutable(),
		field.Text("reason").Optional(),
		field.JSON("scrubbed_detail", map[string]interface{}{}).Optional(),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

// Indexes of the DecisionLog.
func (DecisionLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "created_at"),
	}
}
