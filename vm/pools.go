package vm

import (
	"sync"

	"github.com/fluence-lang/fluence/value"
)

// Pools holds the VM's sync.Pool-backed call-frame allocator (every
// function call draws a Frame from it). The list/iterator/char pools live
// package-wide in value/pool.go, not here. NewMachine gives each Machine
// its own Pools; a Pools value is safe for concurrent use.
type Pools struct {
	frames sync.Pool
}

func NewPools() *Pools {
	return &Pools{
		frames: sync.Pool{New: func() any { return &Frame{} }},
	}
}

// GetFrame returns a Frame from the pool, reset for functionName with
// localCount registers and the given solid-register mask.
func (p *Pools) GetFrame(functionName string, localCount int, solidMask []bool) *Frame {
	f := p.frames.Get().(*Frame)
	f.Reset(functionName, localCount, solidMask)
	return f
}

// PutFrame returns f to the pool. Callers must not retain f afterward.
func (p *Pools) PutFrame(f *Frame) {
	if f == nil {
		return
	}
	p.frames.Put(f)
}

// TryReturnRegisterReferenceToPool releases the heap object backing v, if
// it is of a pooled kind (list, iterator, or boxed char), back to its
// pool. It is the mechanical release only: the Machine's register writes
// and frame teardown do not call it, so a pooled object in an overwritten
// register is left to the garbage collector, and a caller that does call
// it must first ensure nothing else still references the object.
func TryReturnRegisterReferenceToPool(v value.RuntimeValue) {
	if v.Kind != value.RObject || v.Obj == nil {
		return
	}
	switch obj := v.Obj.(type) {
	case *value.ListObject:
		value.PutList(obj)
	case *value.IteratorObject:
		value.PutIterator(obj)
	case *value.CharObject:
		value.PutChar(obj)
	}
}
