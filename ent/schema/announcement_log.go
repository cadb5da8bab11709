package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// AnnouncementLog holds the schema definition for one per-room delivery
// attempt of one Announcement execution. The (announcement, execution
// number, room) triple is unique, giving idempotent redelivery.
type AnnouncementLog struct {
	ent.Schema
}

// Fields of the AnnouncementLog.
func (AnnouncementLog) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("tenant_id").Immutable(),
		field.String("announcement_id").Immutable(),
		field.Int64("execution_number").Immutable(),
		field.String("room_id").Immutable(),
		field.Time("delivered_at").Optional().Nillable(),
		field.Enum("status").Values("pending", "delivered", "skipped", "failed").Default("pending"),
		field.String("error").Optional().Nillable(),
	}
}

// Edges of the AnnouncementLog.
func (AnnouncementLog) Edges() []ent.Edge {
	return []ent.Edge{
		edge.From("announcement", Announcement.Type).
			Ref("logs").
			Field("announcement_id").
			Unique().
			Required().
			Immutable().
			Annotations(entsql.OnDelete(entsql.Cascade)),
	}
}

// Indexes of the AnnouncementLog.
func (AnnouncementLog) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "announcement_id", "execution_number", "room_id").Unique(),
	}
}
