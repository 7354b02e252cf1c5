package vm

import (
	"fmt"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/ferrors"
	"github.com/fluence-lang/fluence/icache"
	"github.com/fluence-lang/fluence/value"
)

// step executes the instruction at m.IP and advances it, except for
// opcodes that set IP themselves (jumps, calls, returns), which signal
// that via errContinueAfterReturn or by simply leaving IP already moved.
func (m *Machine) step() error {
	line := m.Chunk.Instructions[m.IP]
	op := line.Op

	if op.IsMarker() || op == bytecode.OpNop {
		m.IP++
		return nil
	}

	switch op {
	case bytecode.OpGoto:
		target, _ := line.JumpTarget()
		m.IP = target
		return nil

	case bytecode.OpGotoIfTrue, bytecode.OpGotoIfFalse:
		cond := m.readValue(line.Lhs).Truthy()
		target, _ := line.JumpTarget()
		if cond == (op == bytecode.OpGotoIfTrue) {
			m.IP = target
		} else {
			m.IP++
		}
		return nil

	case bytecode.OpGotoIfTrueFused, bytecode.OpGotoIfFalseFused:
		cond := m.readValue(line.Lhs).Truthy()
		target, _ := line.JumpTarget()
		wantTrue := op == bytecode.OpGotoIfTrueFused
		if cond == wantTrue {
			m.IP = target
		} else {
			m.IP++
		}
		return nil

	case bytecode.OpBranchIfEqual, bytecode.OpBranchIfNotEqual,
		bytecode.OpBranchIfLessThan, bytecode.OpBranchIfGreaterThan,
		bytecode.OpBranchIfLessOrEqual, bytecode.OpBranchIfGreaterOrEqual:
		handler, err := icache.Lookup(line)
		if err != nil {
			return err
		}
		if err := handler.Exec(m); err != nil {
			if branch, ok := err.(icache.BranchTaken); ok {
				m.IP = branch.Target
				return nil
			}
			return err
		}
		m.IP++
		return nil

	case bytecode.OpReturn:
		err := m.doReturn(value.RVNil, false)
		return m.afterControlTransfer(err)

	case bytecode.OpReturnValue:
		rv := m.readValue(line.Lhs)
		err := m.doReturn(rv, true)
		return m.afterControlTransfer(err)

	case bytecode.OpHalt:
		return haltSignal{}

	case bytecode.OpAssign:
		v := m.readValue(line.Rhs)
		if err := m.writeValue(line.Lhs, v); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpAssignTwo:
		v1 := m.readValue(line.Rhs)
		if err := m.writeValue(line.Lhs, v1); err != nil {
			return err
		}
		v2 := m.readValue(line.Rhs3)
		if err := m.writeValue(line.Rhs2, v2); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpLoadConst:
		v := m.readValue(line.Rhs)
		if err := m.writeValue(line.Lhs, v); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpDeclareLocal, bytecode.OpDeclareGlobal:
		var v value.RuntimeValue
		if line.Rhs != nil {
			v = m.readValue(line.Rhs)
		} else {
			v = value.RVNil
		}
		if err := m.writeValue(line.Lhs, v); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv:
		handler, err := icache.Lookup(line)
		if err != nil {
			return err
		}
		if err := handler.Exec(m); err != nil {
			return m.afterControlTransfer(m.dispatchFault(err))
		}
		m.IP++
		return nil

	case bytecode.OpMod:
		a, b := m.readValue(line.Rhs), m.readValue(line.Rhs2)
		r, err := value.Mod(a, b)
		if err != nil {
			return m.afterControlTransfer(m.dispatchFault(err))
		}
		if err := m.writeValue(line.Lhs, r); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpPow:
		a, b := m.readValue(line.Rhs), m.readValue(line.Rhs2)
		if err := m.writeValue(line.Lhs, value.Pow(a, b)); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpNeg:
		a := m.readValue(line.Rhs)
		zero := value.NewRVInt64(0)
		if err := m.writeValue(line.Lhs, value.Sub(zero, a)); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpAddAssign, bytecode.OpSubAssign, bytecode.OpMulAssign, bytecode.OpDivAssign, bytecode.OpModAssign:
		return m.execCompoundAssign(line)

	case bytecode.OpIncrement, bytecode.OpDecrement:
		cur := m.readValue(line.Lhs)
		one := value.NewRVInt64(1)
		var result value.RuntimeValue
		if op == bytecode.OpIncrement {
			result = value.Add(cur, one)
		} else {
			result = value.Sub(cur, one)
		}
		if err := m.writeValue(line.Lhs, result); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpIncrementIntUnrestricted:
		cur := m.readValue(line.Lhs)
		result := value.Add(cur, value.NewRVInt64(1))
		m.writeUnchecked(line.Lhs, result)
		m.IP++
		return nil

	case bytecode.OpEqual, bytecode.OpNotEqual, bytecode.OpLess, bytecode.OpLessEqual, bytecode.OpGreater, bytecode.OpGreaterEqual:
		a, b := m.readValue(line.Rhs), m.readValue(line.Rhs2)
		result := compareOp(op, a, b)
		if err := m.writeValue(line.Lhs, value.Bool2RV(result)); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpLogicalAnd:
		a, b := m.readValue(line.Rhs), m.readValue(line.Rhs2)
		if err := m.writeValue(line.Lhs, value.Bool2RV(a.Truthy() && b.Truthy())); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpLogicalOr:
		a, b := m.readValue(line.Rhs), m.readValue(line.Rhs2)
		if err := m.writeValue(line.Lhs, value.Bool2RV(a.Truthy() || b.Truthy())); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpLogicalNot:
		a := m.readValue(line.Rhs)
		if err := m.writeValue(line.Lhs, value.Bool2RV(!a.Truthy())); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpBitAnd, bytecode.OpBitOr, bytecode.OpBitXor, bytecode.OpShiftLeft, bytecode.OpShiftRight:
		a, b := m.readValue(line.Rhs).AsInt64(), m.readValue(line.Rhs2).AsInt64()
		var r int64
		switch op {
		case bytecode.OpBitAnd:
			r = a & b
		case bytecode.OpBitOr:
			r = a | b
		case bytecode.OpBitXor:
			r = a ^ b
		case bytecode.OpShiftLeft:
			r = a << uint(b)
		case bytecode.OpShiftRight:
			r = a >> uint(b)
		}
		if err := m.writeValue(line.Lhs, value.NewRVInt64(r)); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpBitNot:
		a := m.readValue(line.Rhs).AsInt64()
		if err := m.writeValue(line.Lhs, value.NewRVInt64(^a)); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpNewRange:
		start := m.readValue(line.Rhs).AsInt64()
		end := m.readValue(line.Rhs2).AsInt64()
		if err := m.writeValue(line.Lhs, value.NewRVObject(&value.RangeObject{Start: start, End: end})); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpNewIterator:
		return m.execNewIterator(line)

	case bytecode.OpIterHasNext:
		iterVal := m.readValue(line.Rhs)
		done := true
		if iterVal.Kind == value.RObject {
			if it, ok := iterVal.Obj.(*value.IteratorObject); ok {
				done = it.Done
			}
		}
		if err := m.writeValue(line.Lhs, value.Bool2RV(!done)); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpIterNext:
		handler, err := icache.Lookup(line)
		if err != nil {
			return err
		}
		if err := handler.Exec(m); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpPushParam:
		m.pushParam(line.Lhs)
		m.IP++
		return nil

	case bytecode.OpPushTwoParams, bytecode.OpPushThreeParams, bytecode.OpPushFourParams:
		for _, operand := range []*value.Value{line.Lhs, line.Rhs, line.Rhs2, line.Rhs3} {
			if operand != nil {
				m.pushParam(operand)
			}
		}
		m.IP++
		return nil

	case bytecode.OpCallGlobal:
		return m.execCallGlobal(line)

	case bytecode.OpCallMethod, bytecode.OpCallLambda:
		return m.execCallValue(line)

	case bytecode.OpMakeLambda:
		return m.execMakeLambda(line)

	case bytecode.OpNewInstance:
		return m.execNewInstance(line)

	case bytecode.OpGetProperty:
		return m.execGetProperty(line)

	case bytecode.OpSetProperty:
		return m.execSetProperty(line)

	case bytecode.OpGetEnumCase:
		return m.execGetEnumCase(line)

	case bytecode.OpGetStatic:
		return m.execGetStatic(line)

	case bytecode.OpSetStatic:
		return m.execSetStatic(line)

	case bytecode.OpCallStatic:
		return m.execCallStatic(line)

	case bytecode.OpToString:
		v := m.readValue(line.Rhs)
		if err := m.writeValue(line.Lhs, value.NewRVObject(&value.StringObject{S: v.String()})); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpGetType:
		v := m.readValue(line.Rhs)
		if err := m.writeValue(line.Lhs, value.NewRVObject(&value.StringObject{S: typeName(v)})); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpNewList:
		return m.execNewList(line)

	case bytecode.OpPushElement:
		return m.execPushElement(line)

	case bytecode.OpGetElement, bytecode.OpSetElement:
		handler, err := icache.Lookup(line)
		if err != nil {
			return err
		}
		if err := handler.Exec(m); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpListLength:
		coll := m.readValue(line.Rhs)
		if coll.Kind != value.RObject {
			return ferrors.NewRuntimeError(ferrors.TypeMismatch, "LIST_LEN on non-list value", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
		}
		list, ok := coll.Obj.(*value.ListObject)
		if !ok {
			return ferrors.NewRuntimeError(ferrors.TypeMismatch, "LIST_LEN on non-list object", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
		}
		if err := m.writeValue(line.Lhs, value.NewRVInt64(int64(len(list.Elements)))); err != nil {
			return err
		}
		m.IP++
		return nil

	case bytecode.OpTryBlock:
		m.execTryBlock(line)
		m.IP++
		return nil

	case bytecode.OpCatchBlock:
		m.IP++
		return nil

	case bytecode.OpThrow:
		thrown := m.readValue(line.Lhs)
		err := m.doThrow(thrown)
		return m.afterControlTransfer(err)

	case bytecode.OpEndTry:
		if frame := m.currentFrame(); frame != nil {
			frame.PopHandler()
		}
		m.IP++
		return nil

	default:
		return fmt.Errorf("vm: unimplemented opcode %v", op)
	}
}

// afterControlTransfer adapts doReturn/doThrow's sentinel-carrying error
// return into step()'s convention: errContinueAfterReturn means "IP is
// already set, report success"; haltSignal and genuine errors pass through.
func (m *Machine) afterControlTransfer(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(errContinueAfterReturn); ok {
		return nil
	}
	return err
}

// dispatchFault turns a recoverable arithmetic fault into a Fluence-level
// throw so an enclosing try/catch can observe it, rather than letting it
// fall straight out as a fatal Machine error. Faults icache/value report
// any other way (shape mismatches, internal invariants) stay fatal.
func (m *Machine) dispatchFault(err error) error {
	if _, ok := err.(value.DivisionByZeroError); ok {
		thrown := value.NewRVObject(&value.StringObject{S: "DivisionByZeroError: division by zero"})
		return m.doThrow(thrown)
	}
	return err
}

// typeName implements GET_TYPE: the type name Fluence source code sees
// for a value, distinct from RuntimeValue.String()'s rendering of the
// value itself.
func typeName(v value.RuntimeValue) string {
	switch v.Kind {
	case value.RNil:
		return "nil"
	case value.RBool:
		return "bool"
	case value.RNumber:
		return v.NumSub.String()
	case value.RObject:
		if v.Obj == nil {
			return "nil"
		}
		switch o := v.Obj.(type) {
		case *value.InstanceObject:
			return o.TypeName
		case *value.StringObject:
			return "string"
		case *value.CharObject:
			return "char"
		case *value.ListObject:
			return "list"
		case *value.RangeObject:
			return "range"
		case *value.IteratorObject:
			return "iterator"
		case *value.ClosureObject, *value.BoundMethodObject:
			return "function"
		case *value.UserWrapperObject:
			return "host"
		default:
			return "object"
		}
	default:
		return "unknown"
	}
}

func compareOp(op bytecode.Opcode, a, b value.RuntimeValue) bool {
	switch op {
	case bytecode.OpEqual:
		return a.Equal(b)
	case bytecode.OpNotEqual:
		return !a.Equal(b)
	case bytecode.OpLess:
		return value.LessThan(a, b)
	case bytecode.OpLessEqual:
		return value.LessOrEqual(a, b)
	case bytecode.OpGreater:
		return value.GreaterThan(a, b)
	case bytecode.OpGreaterEqual:
		return value.GreaterOrEqual(a, b)
	default:
		return false
	}
}

func (m *Machine) execCompoundAssign(line *bytecode.InstructionLine) error {
	cur := m.readValue(line.Lhs)
	amount := m.readValue(line.Rhs)
	var result value.RuntimeValue
	var err error
	switch line.Op {
	case bytecode.OpAddAssign:
		result = value.Add(cur, amount)
	case bytecode.OpSubAssign:
		result = value.Sub(cur, amount)
	case bytecode.OpMulAssign:
		result = value.Mul(cur, amount)
	case bytecode.OpDivAssign:
		result, err = value.Div(cur, amount)
	case bytecode.OpModAssign:
		result, err = value.Mod(cur, amount)
	}
	if err != nil {
		return m.afterControlTransfer(m.dispatchFault(err))
	}
	if err := m.writeValue(line.Lhs, result); err != nil {
		return err
	}
	m.IP++
	return nil
}
