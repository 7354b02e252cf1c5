package vm

import (
	"fmt"

	"github.com/fluence-lang/fluence/bytecode"
	"github.com/fluence-lang/fluence/ferrors"
	"github.com/fluence-lang/fluence/mangler"
	"github.com/fluence-lang/fluence/symbols"
	"github.com/fluence-lang/fluence/value"
)

func (m *Machine) execNewIterator(line *bytecode.InstructionLine) error {
	sourceVal := m.readValue(line.Rhs)
	direction := int64(1)
	if line.Rhs2 != nil {
		direction = m.readValue(line.Rhs2).AsInt64()
	}
	if sourceVal.Kind != value.RObject {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "NEW_ITER on non-iterable value", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	var cursor int64
	switch src := sourceVal.Obj.(type) {
	case *value.RangeObject:
		if direction < 0 {
			cursor = src.End
		} else {
			cursor = src.Start
		}
	case *value.ListObject:
		if direction < 0 {
			cursor = int64(len(src.Elements)) - 1
		} else {
			cursor = 0
		}
	default:
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "NEW_ITER on non-iterable object", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	it := value.GetIterator(sourceVal.Obj, cursor, direction)
	if err := m.writeValue(line.Lhs, value.NewRVObject(it)); err != nil {
		return err
	}
	m.IP++
	return nil
}

func (m *Machine) execCallGlobal(line *bytecode.InstructionLine) error {
	ref, receiver, err := m.resolveCallTarget(line.Rhs)
	if err != nil {
		return err
	}
	return m.doCall(ref, receiver, line.Lhs)
}

func (m *Machine) execCallValue(line *bytecode.InstructionLine) error {
	ref, receiver, err := m.resolveCallTarget(line.Rhs)
	if err != nil {
		return err
	}
	return m.doCall(ref, receiver, line.Lhs)
}

func (m *Machine) execMakeLambda(line *bytecode.InstructionLine) error {
	if line.Rhs == nil || line.Rhs.Kind != value.KindLambda {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "MAKE_LAMBDA without a lambda literal operand", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	var captured []value.RuntimeValue
	if line.Rhs2 != nil && line.Rhs2.Kind == value.KindList {
		captured = make([]value.RuntimeValue, len(line.Rhs2.List.Elements))
		for i, elem := range line.Rhs2.List.Elements {
			captured[i] = m.readValue(elem)
		}
	}
	closure := &value.ClosureObject{
		Fn:       funcLiteralRef{lit: line.Rhs.Lambda.Function},
		Captured: captured,
	}
	if err := m.writeValue(line.Lhs, value.NewRVObject(closure)); err != nil {
		return err
	}
	m.IP++
	return nil
}

func (m *Machine) execNewInstance(line *bytecode.InstructionLine) error {
	if line.Rhs == nil || line.Rhs.Kind != value.KindString {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "NEW_INSTANCE missing type name operand", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	typeName := line.Rhs.StringLit
	structDef, ok := m.Structs[typeName]
	if !ok {
		return ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined struct %q", typeName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	fields := make(map[string]value.RuntimeValue, len(structDef.Fields))
	for _, f := range structDef.Fields {
		if f.Default != nil {
			fields[f.Name] = m.readValue(f.Default)
		} else {
			fields[f.Name] = value.RVNil
		}
	}
	if line.Rhs2 != nil && line.Rhs2.Kind == value.KindList {
		for i, elem := range line.Rhs2.List.Elements {
			if i >= len(structDef.Fields) {
				break
			}
			fields[structDef.Fields[i].Name] = m.readValue(elem)
		}
	}
	instance := &value.InstanceObject{TypeName: typeName, Fields: fields}
	if err := m.writeValue(line.Lhs, value.NewRVObject(instance)); err != nil {
		return err
	}
	m.IP++
	return nil
}

func (m *Machine) execGetProperty(line *bytecode.InstructionLine) error {
	target := m.readValue(line.Rhs)
	if line.Rhs2 == nil || line.Rhs2.Kind != value.KindString {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "GET_PROP missing field name operand", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	fieldName := line.Rhs2.StringLit
	if target.Kind != value.RObject {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "GET_PROP on non-instance value", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	instance, ok := target.Obj.(*value.InstanceObject)
	if !ok {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "GET_PROP on non-instance object", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	if fv, ok := instance.Fields[fieldName]; ok {
		if err := m.writeValue(line.Lhs, fv); err != nil {
			return err
		}
		m.IP++
		return nil
	}
	if structDef, ok := m.Structs[instance.TypeName]; ok {
		for mangled, method := range structDef.Methods {
			name, _, demangleOk := mangler.Demangle(mangled)
			if demangleOk && name == fieldName {
				bound := &value.BoundMethodObject{Receiver: target, Method: method}
				if err := m.writeValue(line.Lhs, value.NewRVObject(bound)); err != nil {
					return err
				}
				m.IP++
				return nil
			}
		}
	}
	return ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined property %q on %s", fieldName, instance.TypeName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
}

func (m *Machine) execSetProperty(line *bytecode.InstructionLine) error {
	target := m.readValue(line.Lhs)
	if line.Rhs == nil || line.Rhs.Kind != value.KindString {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "SET_PROP missing field name operand", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	fieldName := line.Rhs.StringLit
	if target.Kind != value.RObject {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "SET_PROP on non-instance value", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	instance, ok := target.Obj.(*value.InstanceObject)
	if !ok {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "SET_PROP on non-instance object", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	instance.Fields[fieldName] = m.readValue(line.Rhs2)
	m.IP++
	return nil
}

func (m *Machine) execGetEnumCase(line *bytecode.InstructionLine) error {
	if line.Rhs == nil || line.Rhs2 == nil || line.Rhs.Kind != value.KindString || line.Rhs2.Kind != value.KindString {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "GET_ENUM_CASE missing name operands", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	enumName, caseName := line.Rhs.StringLit, line.Rhs2.StringLit
	enumDef, ok := m.Enums[enumName]
	if !ok {
		return ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined enum %q", enumName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	enumCase, ok := enumDef.LookupCase(caseName)
	if !ok {
		return ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined case %q on enum %q", caseName, enumName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	var rv value.RuntimeValue
	if enumCase.Value != nil {
		rv = m.readValue(enumCase.Value)
	} else {
		rv = value.NewRVObject(&value.StringObject{S: caseName})
	}
	if err := m.writeValue(line.Lhs, rv); err != nil {
		return err
	}
	m.IP++
	return nil
}

// execGetStatic reads a struct's static field, identified by struct name
// (Rhs) and field name (Rhs2) rather than any InstanceObject — the static
// storage lives on the symbols.StructSymbol itself.
func (m *Machine) execGetStatic(line *bytecode.InstructionLine) error {
	field, err := m.resolveStaticField(line, line.Rhs, line.Rhs2)
	if err != nil {
		return err
	}
	if err := m.writeValue(line.Lhs, field.Get()); err != nil {
		return err
	}
	m.IP++
	return nil
}

// execSetStatic writes a struct's static field: Lhs the struct name,
// Rhs the field name, Rhs2 the value.
func (m *Machine) execSetStatic(line *bytecode.InstructionLine) error {
	field, err := m.resolveStaticField(line, line.Lhs, line.Rhs)
	if err != nil {
		return err
	}
	field.Set(m.readValue(line.Rhs2))
	m.IP++
	return nil
}

func (m *Machine) resolveStaticField(line *bytecode.InstructionLine, structOperand, fieldOperand *value.Value) (*symbols.StaticFieldSymbol, error) {
	if structOperand == nil || structOperand.Kind != value.KindString || fieldOperand == nil || fieldOperand.Kind != value.KindString {
		return nil, ferrors.NewRuntimeError(ferrors.TypeMismatch, "static field access missing name operands", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	typeName, fieldName := structOperand.StringLit, fieldOperand.StringLit
	structDef, ok := m.Structs[typeName]
	if !ok {
		return nil, ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined struct %q", typeName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	field, ok := structDef.StaticFields[fieldName]
	if !ok {
		return nil, ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined static field %q on %s", fieldName, typeName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	return field, nil
}

// execCallStatic dispatches CallStatic: Lhs the destination, Rhs the
// struct name, Rhs2 the method name. Unlike CallMethod, no receiver is
// bound into the callee's register 0 — a static method has none.
func (m *Machine) execCallStatic(line *bytecode.InstructionLine) error {
	if line.Rhs == nil || line.Rhs.Kind != value.KindString || line.Rhs2 == nil || line.Rhs2.Kind != value.KindString {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "CALL_STATIC missing name operands", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	typeName, methodSource := line.Rhs.StringLit, line.Rhs2.StringLit
	structDef, ok := m.Structs[typeName]
	if !ok {
		return ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined struct %q", typeName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	name, arity, ok := mangler.Demangle(methodSource)
	if !ok {
		name, arity = methodSource, -1
	}
	var method *symbols.FunctionSymbol
	if arity >= 0 {
		method, ok = structDef.LookupStaticMethod(name, arity)
	}
	if !ok {
		for _, candidate := range structDef.StaticMethods {
			if candidate.Name == name {
				method, ok = candidate, true
				break
			}
		}
	}
	if !ok {
		return ferrors.NewRuntimeError(ferrors.UndefinedName, fmt.Sprintf("undefined static method %q on %s", methodSource, typeName), m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	return m.doCall(method, value.RVNil, line.Lhs)
}

// execPushElement appends v (Rhs) onto the list already held in an
// existing register (Lhs), letting a loop build a list incrementally
// instead of requiring every element to be known upfront the way
// execNewList's literal descriptor does.
func (m *Machine) execPushElement(line *bytecode.InstructionLine) error {
	target := m.readValue(line.Lhs)
	if target.Kind != value.RObject {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "PUSH_ELEM on non-list value", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	list, ok := target.Obj.(*value.ListObject)
	if !ok {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "PUSH_ELEM on non-list object", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	list.Elements = append(list.Elements, m.readValue(line.Rhs))
	m.IP++
	return nil
}

func (m *Machine) execNewList(line *bytecode.InstructionLine) error {
	if line.Rhs == nil || line.Rhs.Kind != value.KindList {
		return ferrors.NewRuntimeError(ferrors.TypeMismatch, "NEW_LIST missing list literal operand", m.IP, m.currentFunctionName(), nil, nil, line.Op.String(), m.trace())
	}
	elements := line.Rhs.List.Elements
	list := value.GetList(len(elements))
	for _, elem := range elements {
		list.Elements = append(list.Elements, m.readValue(elem))
	}
	if err := m.writeValue(line.Lhs, value.NewRVObject(list)); err != nil {
		return err
	}
	m.IP++
	return nil
}

func (m *Machine) execTryBlock(line *bytecode.InstructionLine) {
	if line.Lhs == nil || line.Lhs.Kind != value.KindTryCatch {
		return
	}
	caughtReg := -1
	if line.Rhs != nil {
		switch line.Rhs.Kind {
		case value.KindTemp:
			caughtReg = line.Rhs.Temp.Register
		case value.KindVariable:
			caughtReg = line.Rhs.Variable.Register
		}
	}
	frame := m.currentFrame()
	if frame == nil {
		return
	}
	frame.PushHandler(TryHandler{
		CatchAddr:      line.Lhs.TryCatch.CatchAddr,
		FinallyAddr:    line.Lhs.TryCatch.FinallyAddr,
		StackDepth:     len(m.Stack),
		CaughtRegister: caughtReg,
	})
}

// doThrow searches the active call chain for a handler, innermost frame
// first: a frame that owns one catches locally; a frame with none unwinds
// entirely and the search continues in its caller. Reaching the bottom of
// the call stack with no handler found is an unhandled throw.
func (m *Machine) doThrow(thrown value.RuntimeValue) error {
	for len(m.Frames) > 0 {
		frame := m.Frames[len(m.Frames)-1]
		handler, ok := frame.PopHandler()
		if !ok {
			m.Frames = m.Frames[:len(m.Frames)-1]
			m.Pools.PutFrame(frame)
			continue
		}
		if handler.StackDepth <= len(m.Stack) {
			m.Stack = m.Stack[:handler.StackDepth]
			m.StackOperands = m.StackOperands[:handler.StackDepth]
		}
		if handler.CaughtRegister >= 0 {
			frame.SetLocalUnchecked(handler.CaughtRegister, thrown)
		}
		m.IP = handler.CatchAddr
		return errContinueAfterReturn{}
	}
	return ferrors.NewRuntimeError(ferrors.UnhandledThrow, fmt.Sprintf("unhandled throw: %s", thrown.String()), m.IP, m.currentFunctionName(), nil, nil, "THROW", m.trace())
}
