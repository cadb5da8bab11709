package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// ConversationState holds the schema definition for the per-(tenant, room,
// user) state machine slot (State layer). One row per triple; the stored
// StateType gates which fields of Data are meaningful.
type ConversationState struct {
	ent.Schema
}

// Fields of the ConversationState.
func (ConversationState) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").Immutable(),
		field.String("room_id").Immutable(),
		field.String("user_id").Immutable(),
		field.String("state_type").
			Comment("Closed enum: normal|goal_setting|announcement|confirmation|task_pending|multi_action"),
		field.String("step").
			Optional().
			Comment("Free-form within the active flow"),
		field.JSON("data", map[string]interface{}{}).
			Optional().
			Comment("Scratch bag, validated per state_type at read time"),
		field.String("reference_type").
			Optional().
			Comment("Links to an external flow entity, e.g. announcement"),
		field.String("reference_id").
			Optional(),
		field.Time("expires_at").
			Optional().
			Nillable().
			Comment("Hard timeout; default 30 minutes"),
		field.Time("created_at").
			Default(time.Now).
			Immutable(),
		field.Time("updated_at").
			Default(time.Now).
			UpdateDefault(time.Now),
	}
}

// Indexes of the ConversationState.
func (ConversationState) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "room_id", "user_id").Unique(),
	}
}
