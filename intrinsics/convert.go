package intrinsics

import (
	"fmt"

	"github.com/fluence-lang/fluence/value"
)

// stringRV boxes a Go string as a Fluence string RuntimeValue.
func stringRV(s string) value.RuntimeValue {
	return value.NewRVObject(&value.StringObject{S: s})
}

// stringArg extracts the Go string backing args[i], erroring if the
// argument is missing or not a string object.
func stringArg(args []value.RuntimeValue, i int) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("intrinsics: missing argument %d", i)
	}
	v := args[i]
	if v.Kind != value.RObject {
		return "", fmt.Errorf("intrinsics: argument %d is not a string", i)
	}
	s, ok := v.Obj.(*value.StringObject)
	if !ok {
		return "", fmt.Errorf("intrinsics: argument %d is not a string", i)
	}
	return s.S, nil
}

// int64Arg extracts a numeric argument as int64.
func int64Arg(args []value.RuntimeValue, i int) (int64, error) {
	if i >= len(args) {
		return 0, fmt.Errorf("intrinsics: missing argument %d", i)
	}
	v := args[i]
	if v.Kind != value.RNumber {
		return 0, fmt.Errorf("intrinsics: argument %d is not a number", i)
	}
	return v.AsInt64(), nil
}

// rvToGo converts a RuntimeValue into the nearest Go value database/sql
// can bind as a query parameter.
func rvToGo(v value.RuntimeValue) (any, error) {
	switch v.Kind {
	case value.RNil:
		return nil, nil
	case value.RBool:
		return v.Bool, nil
	case value.RNumber:
		if v.NumSub.IsFloat() {
			return v.AsFloat64(), nil
		}
		return v.AsInt64(), nil
	case value.RObject:
		if s, ok := v.Obj.(*value.StringObject); ok {
			return s.S, nil
		}
		return nil, fmt.Errorf("intrinsics: cannot convert %s to a SQL parameter", v.Obj.String())
	default:
		return nil, fmt.Errorf("intrinsics: cannot convert value to a SQL parameter")
	}
}

// goToRV converts a Go value read back from database/sql (via Scan into
// an any) into a Fluence RuntimeValue.
func goToRV(v any) value.RuntimeValue {
	switch x := v.(type) {
	case nil:
		return value.RVNil
	case bool:
		return value.Bool2RV(x)
	case int64:
		return value.NewRVInt64(x)
	case float64:
		return value.NewRVFloat64(x)
	case []byte:
		return stringRV(string(x))
	case string:
		return stringRV(x)
	default:
		return stringRV(fmt.Sprintf("%v", x))
	}
}
