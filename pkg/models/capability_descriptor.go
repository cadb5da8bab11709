package models

// CapabilityDescriptor is the persisted, tenant-scoped record of a
// capability's routing metadata, kept in sync with the in-memory
// CapabilityRegistry built from brain.yaml at startup. Persisting it lets
// the admin API list and audit capability availability without holding a
// reference to the live registry.
type CapabilityDescriptor struct {
	ID                   string
	TenantID             string
	DisplayName          string
	Description          string
	Keywords             []string
	ParameterSchema      map[string]any
	RequiresConfirmation bool
	Enabled              bool
}
