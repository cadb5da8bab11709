package schema

import (
	"time"

	"entgo.io/ent"
	"entgo.io/ent/dialect/entsql"
	"entgo.io/ent/schema/field"
	"entgo.io/ent/schema/index"
)

// CeoTeaching holds the schema definition for a standing instruction that
// biases Understanding/Decision behavior for a category of requests.
type CeoTeaching struct {
	ent.Schema
}

// Fields of the CeoTeaching.
func (CeoTeaching) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Unique().Immutable(),
		field.String("tenant_id").Immutable(),
		field.String("category"),
		field.Text("instruction"),
		field.String("created_by").Immutable(),
		field.Time("created_at").Default(time.Now).Immutable(),
		field.Bool("active").Default(true),
	}
}

// Indexes of the CeoTeaching.
func (CeoTeaching) Indexes() []ent.Index {
	return []ent.Index{
		index.Fields("tenant_id", "category").
			Annotations(entsql.IndexWhere("active")),
	}
}
