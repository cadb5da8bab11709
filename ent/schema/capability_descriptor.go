package schema

import (
	"entgo.io/ent"
	"entgo.io/ent/schema/field"
)

// CapabilityDescriptor holds the schema definition for a handler's
// advertised capability — the unit the Decision layer selects among and
// the Execution layer dispatches by id.
type CapabilityDescriptor struct {
	ent.Schema
}

// Fields of the CapabilityDescriptor.
func (CapabilityDescriptor) Fields() []ent.Field {
	return []ent.Field{
		field.String("id").Immutable(),
		field.String("tenant_id").Immutable(),
		field.String("display_name"),
		field.Text("description"),
		field.JSON("keywords", []string{}).Optional(),
		field.JSON("parameter_schema", map[string]interface{}{}).Optional(),
		field.Bool("requires_confirmation").Default(false),
		field.Bool("enabled").Default(true),
	}
}
