package embed

import "github.com/fluence-lang/fluence/value"

// hostToRV translates a host primitive crossing into the VM through
// SetGlobal/InvokeIntrinsic into a RuntimeValue. Anything that isn't one
// of the recognized primitive shapes is wrapped in a UserWrapperObject so
// it can still round-trip back out through rvToHost unchanged.
func hostToRV(v any) value.RuntimeValue {
	switch x := v.(type) {
	case nil:
		return value.RVNil
	case bool:
		return value.Bool2RV(x)
	case int:
		return value.NewRVInt64(int64(x))
	case int32:
		return value.NewRVInt32(x)
	case int64:
		return value.NewRVInt64(x)
	case float32:
		return value.NewRVFloat32(x)
	case float64:
		return value.NewRVFloat64(x)
	case string:
		return value.NewRVObject(&value.StringObject{S: x})
	default:
		return value.NewRVObject(&value.UserWrapperObject{Host: v})
	}
}

// rvToHost translates a RuntimeValue crossing out through
// GetGlobal/InvokeIntrinsic into a host primitive. A UserWrapperObject
// unwraps back to the exact Go value it was built from; every other
// object kind surfaces as its display string, since the embedding
// contract only promises primitive round-tripping.
func rvToHost(v value.RuntimeValue) any {
	switch v.Kind {
	case value.RNil:
		return nil
	case value.RBool:
		return v.Bool
	case value.RNumber:
		if v.NumSub.IsFloat() {
			return v.AsFloat64()
		}
		return v.AsInt64()
	case value.RObject:
		switch o := v.Obj.(type) {
		case *value.StringObject:
			return o.S
		case *value.UserWrapperObject:
			return o.Host
		default:
			return o.String()
		}
	default:
		return nil
	}
}
