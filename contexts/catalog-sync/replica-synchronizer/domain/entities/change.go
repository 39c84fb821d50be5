package entities

import (
	"strings"
	"time"
)

type Operation string

const (
	OperationInsert Operation = "INSERT"
	OperationUpdate Operation = "UPDATE"
	OperationDelete Operation = "DELETE"
)

// ParseOperation accepts the wire spelling in any letter case.
func ParseOperation(raw string) (Operation, bool) {
	switch Operation(strings.ToUpper(strings.TrimSpace(raw))) {
	case OperationInsert:
		return OperationInsert, true
	case OperationUpdate:
		return OperationUpdate, true
	case OperationDelete:
		return OperationDelete, true
	default:
		return "", false
	}
}

// ChangeEvent is one committed write-side mutation.
type ChangeEvent struct {
	Table     string
	Operation Operation
	ID        string
	Data      map[string]any
	Timestamp time.Time
}

// AppliedChange is the in-process signal emitted after a change reached the
// read store. It never leaves the process with row contents attached.
type AppliedChange struct {
	Table     string
	Resource  string
	ID        string
	Operation Operation
	AppliedAt time.Time
}
