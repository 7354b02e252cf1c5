package intrinsics

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/fluence-lang/fluence/value"
)

// UUID is the "uuid" intrinsic library: New (random v4) and NewV7
// (time-ordered) identifiers, backed by google/uuid.
type UUID struct{}

func NewUUID() *UUID { return &UUID{} }

func (*UUID) Name() string { return "uuid" }

func (*UUID) Call(method string, args []value.RuntimeValue) (value.RuntimeValue, error) {
	switch method {
	case "New":
		return stringRV(uuid.New().String()), nil
	case "NewV7":
		id, err := uuid.NewV7()
		if err != nil {
			return value.RVNil, fmt.Errorf("uuid: %w", err)
		}
		return stringRV(id.String()), nil
	default:
		return value.RVNil, fmt.Errorf("uuid: unknown method %q", method)
	}
}
