package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// Message holds the schema definition for an inbound chat message (Ingress).
// Documents the messages table; reads and writes go through pkg/store, not
// a generated client, since schema codegen does not run in this environment.
type Message struct {
	ent.Schema
}

// Fields of the Message.
func (Message) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").
			StorageKey("id").
			Unique().
			Immutable(),
		field.String("tenant_id").
			Immutable(),
		field.String("room_id").
			Immutable(),
		field.String("user_id").
			Immutable(),
		field.String("channel").
			Immutable().
			Comment("Chat transport the message arrived over, e.g. slack"),
		field.Text("body").
			Immutable(),
		field.Time("received_at").
			Default(time.Now).
			Immutable(),
		field.String("webhook_id").
			Immutable().
			Comment("Delivery id used for duplicate-webhook detection"),
		field.JSON("metadata", map[string]interface{}{}).
			Optional(),
	}
}

// Indexes of the Message.
func (Message) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "webhook_id").Unique(),
		index.Fields("tenant_id", "room_id", "received_at"),
	}
}
