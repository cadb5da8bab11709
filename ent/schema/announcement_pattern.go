package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// AnnouncementPattern holds the schema definition for a learned room-alias
// to room-id mapping produced by fuzzy room matching, so repeated aliases
// resolve without re-scoring every time.
type AnnouncementPattern struct {
	ent.Schema
}

// Fields of the AnnouncementPattern.
func (AnnouncementPattern) Fields() []ent.Field {
	return []ent.Field{
		field.String("tenant_id").Immutable(),
		field.String("room_alias").Immutable(),
		field.String("room_id"),
		field.Float("similarity"),
	}
}
