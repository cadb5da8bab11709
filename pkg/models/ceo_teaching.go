package models

import "time"

// CEOTeachingCategory is the closed set of value-statement categories a
// teaching can be classified under.
type CEOTeachingCategory string

const (
	CategoryMission        CEOTeachingCategory = "mission"
	CategoryVision         CEOTeachingCategory = "vision"
	CategoryValues         CEOTeachingCategory = "values"
	CategoryChoiceTheory   CEOTeachingCategory = "choice-theory"
	CategorySDT            CEOTeachingCategory = "sdt"
	CategoryServant        CEOTeachingCategory = "servant"
	CategoryPsychSafety    CEOTeachingCategory = "psych-safety"
	CategorySales          CEOTeachingCategory = "sales"
	CategoryHR             CEOTeachingCategory = "hr"
	CategoryAccounting     CEOTeachingCategory = "accounting"
	CategoryGeneral        CEOTeachingCategory = "general"
	CategoryCulture        CEOTeachingCategory = "culture"
	CategoryCommunication  CEOTeachingCategory = "communication"
	CategoryStaffGuidance  CEOTeachingCategory = "staff-guidance"
	CategoryOther          CEOTeachingCategory = "other"
)

// TeachingValidationStatus tracks a teaching through its review lifecycle.
type TeachingValidationStatus string

const (
	TeachingPending      TeachingValidationStatus = "pending"
	TeachingVerified     TeachingValidationStatus = "verified"
	TeachingAlertPending TeachingValidationStatus = "alert_pending"
	TeachingOverridden   TeachingValidationStatus = "overridden"
)

// CEOTeaching is a canonical value statement extracted from a principal's
// prior utterances, consulted at highest precedence by Understanding and
// Decision. Category/priority/validation gate which teachings
// the guardrail evaluates against a candidate plan.
type CEOTeaching struct {
	ID               string
	TenantID         string
	CEOUserID        string
	Statement        string
	Reasoning        string
	Context          string
	Category         CEOTeachingCategory
	Priority         int // 1-10
	IsActive         bool
	UsageCount       int64
	ValidationStatus TeachingValidationStatus
	Supersedes       string // id of a prior teaching this one replaces, "" if none
	CreatedAt        time.Time

	// CreatedBy/Instruction/Active/Category(as free string) retained as
	// legacy aliases for callers still on the earlier shape.
	CreatedBy string
}

// CreateCEOTeachingRequest contains the fields needed to record a teaching.
type CreateCEOTeachingRequest struct {
	TenantID   string
	CEOUserID  string
	Statement  string
	Reasoning  string
	Context    string
	Category   CEOTeachingCategory
	Priority   int
	Supersedes string
}

// IsValid reports whether c is one of the closed set of teaching categories.
func (c CEOTeachingCategory) IsValid() bool {
	switch c {
	case CategoryMission, CategoryVision, CategoryValues, CategoryChoiceTheory, CategorySDT,
		CategoryServant, CategoryPsychSafety, CategorySales, CategoryHR, CategoryAccounting,
		CategoryGeneral, CategoryCulture, CategoryCommunication, CategoryStaffGuidance, CategoryOther:
		return true
	default:
		return false
	}
}
