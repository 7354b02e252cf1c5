package intrinsics

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ncruces/go-strftime"

	"github.com/fluence-lang/fluence/value"
)

// Text is the "text" intrinsic library: locale-aware, human-readable
// formatting backed by go-humanize (Bytes/Since) and go-strftime
// (Strftime), for the output formatting a script's top-level code or a
// REPL session would otherwise hand-roll.
type Text struct{}

func NewText() *Text { return &Text{} }

func (*Text) Name() string { return "text" }

func (*Text) Call(method string, args []value.RuntimeValue) (value.RuntimeValue, error) {
	switch method {
	case "Bytes":
		n, err := int64Arg(args, 0)
		if err != nil {
			return value.RVNil, err
		}
		return stringRV(humanize.Bytes(uint64(n))), nil
	case "Since":
		unixSeconds, err := int64Arg(args, 0)
		if err != nil {
			return value.RVNil, err
		}
		return stringRV(humanize.Time(time.Unix(unixSeconds, 0))), nil
	case "Strftime":
		unixSeconds, err := int64Arg(args, 0)
		if err != nil {
			return value.RVNil, err
		}
		layout, err := stringArg(args, 1)
		if err != nil {
			return value.RVNil, err
		}
		return stringRV(strftime.Format(layout, time.Unix(unixSeconds, 0))), nil
	default:
		return value.RVNil, fmt.Errorf("text: unknown method %q", method)
	}
}
