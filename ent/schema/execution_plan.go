package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// ExecutionPlan holds the schema definition for the Decision layer's chosen
// capability + bound parameters for one message.
type ExecutionPlan struct {
	ent.Schema
}

// Fields of the ExecutionPlan.
func (ExecutionPlan) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("tenant_id").Immutable(),
		field.String("room_id").Immutable(),
		field.String("user_id").Immutable(),
		field.String("message_id").Immutable(),
		field.String("capability_id").Immutable(),
		field.JSON("parameters", map[string]interface{}{}).Optional(),
		field.Float("confidence"),
		field.Enum("status").
			Values("pending", "confirmed", "rejected", "executed", "failed").
			Default("pending"),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

// Edges of the ExecutionPlan.
func (ExecutionPlan) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("results", HandlerResult.Type),
	}
}
