package models

import (
	"time"

	"github.com/codeready-toolchain/brain/pkg/config"
)

// HandlerResultStatus is the outcome of one capability handler invocation.
type HandlerResultStatus string

const (
	HandlerResultSuccess HandlerResultStatus = "success"
	HandlerResultError   HandlerResultStatus = "error"
)

// HandlerResult is the Execution layer's record of what a capability
// handler returned, already passed through MaskHandlerResult before
// persistence so Detail never contains raw credentials or PII.
type HandlerResult struct {
	ID              string
	TenantID        string
	ExecutionPlanID string
	Status          HandlerResultStatus
	Summary         string
	Detail          map[string]any
	ErrorKind       *config.ErrorKind
	DurationMS      int64
	CreatedAt       time.Time
}

// CreateHandlerResultRequest contains the fields needed to persist a
// handler's outcome.
type CreateHandlerResultRequest struct {
	TenantID        string
	ExecutionPlanID string
	Status          HandlerResultStatus
	Summary         string
	Detail          map[string]any
	ErrorKind       *config.ErrorKind
	DurationMS      int64
}
