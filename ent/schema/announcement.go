package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/edge"
	"entgo.io/ent/schema/field"
)

// Announcement holds the schema definition for a one-off or recurring
// broadcast managed by the Announcement State Machine.
type Announcement struct {
	ent.Schema
}

// Fields of the Announcement.
func (Announcement) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("tenant_id").Immutable(),
		field.String("title"),
		field.Text("body"),
		field.JSON("target_rooms", []string{}).Optional(),
		field.String("cron_expression").
			Optional().
			Nillable().
			Comment("Empty for one-off announcements"),
		field.Bool("skip_weekends").Default(false),
		field.Bool("skip_holidays").Default(false),
		field.Enum("status").
			Values("draft", "scheduled", "active", "paused", "completed", "cancelled").
			Default("draft"),
		field.String("created_by").Immutable(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Time("next_fire_at").Optional().Nillable(),
	}
}

// Edges of the Announcement.
func (Announcement) Edges() []ent.Edge {
	return []ent.Edge{
		edge.To("logs", AnnouncementLog.Type),
	}
}
