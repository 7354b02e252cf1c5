package icache

import (
	"fmt"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/value"
)

// buildArithmetic specializes ADD/SUB/MUL/DIV/MOD/POW: Lhs is the
// destination, Rhs and Rhs2 the two operands.
func buildArithmetic(line *bytecode.InstructionLine) (*Handler, error) {
	readLhs := reader(line.Rhs)
	readRhs := reader(line.Rhs2)
	writeDest := writer(line.Lhs)

	var compute func(a, b value.RuntimeValue) (value.RuntimeValue, error)
	switch line.Op {
	case bytecode.OpAdd:
		compute = func(a, b value.RuntimeValue) (value.RuntimeValue, error) { return value.Add(a, b), nil }
	case bytecode.OpSub:
		compute = func(a, b value.RuntimeValue) (value.RuntimeValue, error) { return value.Sub(a, b), nil }
	case bytecode.OpMul:
		compute = func(a, b value.RuntimeValue) (value.RuntimeValue, error) { return value.Mul(a, b), nil }
	case bytecode.OpDiv:
		compute = value.Div
	case bytecode.OpMod:
		compute = value.Mod
	case bytecode.OpPow:
		compute = func(a, b value.RuntimeValue) (value.RuntimeValue, error) { return value.Pow(a, b), nil }
	default:
		return nil, fmt.Errorf("icache: unsupported arithmetic opcode %v", line.Op)
	}

	exec := func(regs Registers) error {
		result, err := compute(readLhs(regs), readRhs(regs))
		if err != nil {
			return err
		}
		return writeDest(regs, result)
	}
	return &Handler{Shape: shapeOf(line.Lhs, line.Rhs, line.Rhs2), Exec: exec}, nil
}

// buildComparisonBranch specializes one of the six fused branch opcodes
// FuseGotoConditionals and FuseComparisonBranches produce: Lhs is the jump
// address, Rhs/Rhs2 the compared operands. Each opcode evaluates its own
// named ordering relation directly against the operands — never by
// negating a different comparison's result — so an unordered (NaN)
// operand makes every one of these false except BranchIfNotEqual, which
// is true, matching the non-fused EQ/NEQ/LT/LTE/GT/GTE opcodes' behavior
// exactly. Exec reports the branch
// decision via a sentinel error the VM interprets as "take the branch";
// this keeps Handler.Exec's signature uniform across every specializable
// opcode rather than adding a second return value only branches need.
type BranchTaken struct{ Target int }

func (BranchTaken) Error() string { return "icache: branch taken" }

func buildComparisonBranch(line *bytecode.InstructionLine) (*Handler, error) {
	readA := reader(line.Rhs)
	readB := reader(line.Rhs2)
	target, ok := line.JumpTarget()
	if !ok {
		return nil, fmt.Errorf("icache: comparison branch missing jump target")
	}

	var decide func(a, b value.RuntimeValue) bool
	switch line.Op {
	case bytecode.OpBranchIfEqual:
		decide = func(a, b value.RuntimeValue) bool { return a.Equal(b) }
	case bytecode.OpBranchIfNotEqual:
		decide = func(a, b value.RuntimeValue) bool { return !a.Equal(b) }
	case bytecode.OpBranchIfLessThan:
		decide = value.LessThan
	case bytecode.OpBranchIfGreaterThan:
		decide = value.GreaterThan
	case bytecode.OpBranchIfLessOrEqual:
		decide = value.LessOrEqual
	case bytecode.OpBranchIfGreaterOrEqual:
		decide = value.GreaterOrEqual
	default:
		return nil, fmt.Errorf("icache: unsupported comparison branch opcode %v", line.Op)
	}

	exec := func(regs Registers) error {
		if decide(readA(regs), readB(regs)) {
			return BranchTaken{Target: target}
		}
		return nil
	}
	return &Handler{Shape: shapeOf(nil, line.Rhs, line.Rhs2), Exec: exec}, nil
}

// buildElementAccess specializes GET_ELEMENT/SET_ELEMENT: Lhs is the
// destination (GET) or the value to store (SET), Rhs the collection, Rhs2
// the index.
func buildElementAccess(line *bytecode.InstructionLine) (*Handler, error) {
	readCollection := reader(line.Rhs)
	readIndex := reader(line.Rhs2)

	if line.Op == bytecode.OpGetElement {
		writeDest := writer(line.Lhs)
		exec := func(regs Registers) error {
			elem, err := elementAt(readCollection(regs), readIndex(regs))
			if err != nil {
				return err
			}
			return writeDest(regs, elem)
		}
		return &Handler{Shape: shapeOf(line.Lhs, line.Rhs, line.Rhs2), Exec: exec}, nil
	}

	readValue := reader(line.Lhs)
	exec := func(regs Registers) error {
		return setElementAt(readCollection(regs), readIndex(regs), readValue(regs))
	}
	return &Handler{Shape: shapeOf(line.Lhs, line.Rhs, line.Rhs2), Exec: exec}, nil
}

func elementAt(collection, index value.RuntimeValue) (value.RuntimeValue, error) {
	if collection.Kind != value.RObject {
		return value.RuntimeValue{}, fmt.Errorf("icache: element access on non-collection value")
	}
	list, ok := collection.Obj.(*value.ListObject)
	if !ok {
		return value.RuntimeValue{}, fmt.Errorf("icache: element access on non-list object")
	}
	i := int(index.AsInt64())
	if i < 0 || i >= len(list.Elements) {
		return value.RuntimeValue{}, fmt.Errorf("icache: index %d out of range (len %d)", i, len(list.Elements))
	}
	return list.Elements[i], nil
}

func setElementAt(collection, index, v value.RuntimeValue) error {
	if collection.Kind != value.RObject {
		return fmt.Errorf("icache: element access on non-collection value")
	}
	list, ok := collection.Obj.(*value.ListObject)
	if !ok {
		return fmt.Errorf("icache: element access on non-list object")
	}
	i := int(index.AsInt64())
	if i < 0 || i >= len(list.Elements) {
		return fmt.Errorf("icache: index %d out of range (len %d)", i, len(list.Elements))
	}
	list.Elements[i] = v
	return nil
}

// buildIterNext specializes ITER_NEXT: Lhs is the destination register
// the next element is written to, Rhs the iterator.
func buildIterNext(line *bytecode.InstructionLine) (*Handler, error) {
	readIter := reader(line.Rhs)
	writeDest := writer(line.Lhs)

	exec := func(regs Registers) error {
		iterVal := readIter(regs)
		if iterVal.Kind != value.RObject {
			return fmt.Errorf("icache: ITER_NEXT on non-iterator value")
		}
		it, ok := iterVal.Obj.(*value.IteratorObject)
		if !ok {
			return fmt.Errorf("icache: ITER_NEXT on non-iterator object")
		}
		elem, err := advanceIterator(it)
		if err != nil {
			return err
		}
		return writeDest(regs, elem)
	}
	return &Handler{Shape: shapeOf(line.Lhs, line.Rhs, nil), Exec: exec}, nil
}

func advanceIterator(it *value.IteratorObject) (value.RuntimeValue, error) {
	if it.Done {
		return value.RuntimeValue{}, fmt.Errorf("icache: iterator exhausted")
	}
	switch src := it.Source.(type) {
	case *value.RangeObject:
		cur := it.Cursor
		it.Cursor += it.Direction
		if (it.Direction > 0 && it.Cursor > src.End) || (it.Direction < 0 && it.Cursor < src.End) {
			it.Done = true
		}
		return value.NewRVInt64(cur), nil
	case *value.ListObject:
		cur := it.Cursor
		it.Cursor += it.Direction
		if cur < 0 || int(cur) >= len(src.Elements) {
			it.Done = true
			return value.RuntimeValue{}, fmt.Errorf("icache: list iterator out of range")
		}
		if it.Cursor < 0 || int(it.Cursor) >= len(src.Elements) {
			it.Done = true
		}
		return src.Elements[cur], nil
	default:
		return value.RuntimeValue{}, fmt.Errorf("icache: unsupported iterator source")
	}
}

// buildCallGlobal specializes a direct call to a statically known global
// function: only the destination register shape varies (Temp vs.
// Variable), so this is a thin specialization over writer selection; the
// actual call dispatch (argument binding, frame push) stays in the VM
// since it needs the call stack, which Registers intentionally doesn't
// expose.
func buildCallGlobal(line *bytecode.InstructionLine) (*Handler, error) {
	writeDest := writer(line.Lhs)
	return &Handler{Shape: shapeOf(line.Lhs, nil, nil), WriteResult: writeDest}, nil
}
