package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// HandlerResult holds the schema definition for a handler's outcome for one
// ExecutionPlan.
type HandlerResult struct {
	ent.Schema
}

// Fields of the HandlerResult.
func (HandlerResult) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("tenant_id").Immutable(),
		field.String("execution_plan_id").Immutable(),
		field.Enum("status").Values("ok", "error"),
		field.Text("summary").Optional(),
		field.JSON("detail", map[string]interface{}{}).Optional(),
		field.String("error_kind").
			Optional().
			Nillable().
			Comment("One of the error taxonomy kinds when status is error"),
		field.Int64("duration_ms").Default(0),
		field.Time("created_at").Default(time.Now).Immutable(),
	}
}

// Edges of the HandlerResult.
func (HandlerResult) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("execution_plan", ExecutionPlan.Type).
			Ref("results").
			Field("execution_plan_id").
			Unique().
			Required().
			Immutable().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}
