package interp

import (
	"context"
	"fmt"
	"math"

	"github.com/gowasm/interp/api"
	"github.com/gowasm/interp/internal/moremath"
	"github.com/gowasm/interp/internal/numeric"
	"github.com/gowasm/interp/internal/wasmruntime"
	"github.com/gowasm/interp/internal/wazeroir"
)

func boolToI32(b bool) numeric.Value {
	if b {
		return numeric.I32(1)
	}
	return numeric.I32(0)
}

func execEqz(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	e := op.(wazeroir.Eqz)
	v := ce.popValue()
	var zero bool
	switch e.Type {
	case wazeroir.NumericTypeI32:
		zero = v.I32u() == 0
	case wazeroir.NumericTypeI64:
		zero = v.I64u() == 0
	default:
		panic(fmt.Sprintf("BUG: eqz on non-integer type %d", e.Type))
	}
	ce.pushValue(boolToI32(zero))
	return stepNext
}

// execCompare pops the right-hand operand (b) before the left-hand one
// (a): compare()'s two popExpect calls in compiler.go consume the
// operands in that order, since the second operand pushed is the first
// one popped.
func execCompare(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	c := op.(wazeroir.Compare)
	b := ce.popValue()
	a := ce.popValue()
	var result bool
	switch c.Type {
	case wazeroir.NumericTypeI32:
		result = compareI32(c.Op, a.I32(), a.I32u(), b.I32(), b.I32u())
	case wazeroir.NumericTypeI64:
		result = compareI64(c.Op, a.I64(), a.I64u(), b.I64(), b.I64u())
	case wazeroir.NumericTypeF32:
		result = compareFloat(c.Op, float64(a.F32()), float64(b.F32()))
	case wazeroir.NumericTypeF64:
		result = compareFloat(c.Op, a.F64(), b.F64())
	default:
		panic(fmt.Sprintf("BUG: compare on unknown type %d", c.Type))
	}
	ce.pushValue(boolToI32(result))
	return stepNext
}

func compareI32(op wazeroir.CompareOp, as int32, au uint32, bs int32, bu uint32) bool {
	switch op {
	case wazeroir.CompareOpEq:
		return au == bu
	case wazeroir.CompareOpNe:
		return au != bu
	case wazeroir.CompareOpLtS:
		return as < bs
	case wazeroir.CompareOpLtU:
		return au < bu
	case wazeroir.CompareOpGtS:
		return as > bs
	case wazeroir.CompareOpGtU:
		return au > bu
	case wazeroir.CompareOpLeS:
		return as <= bs
	case wazeroir.CompareOpLeU:
		return au <= bu
	case wazeroir.CompareOpGeS:
		return as >= bs
	case wazeroir.CompareOpGeU:
		return au >= bu
	default:
		panic(fmt.Sprintf("BUG: unsupported i32 compare op %d", op))
	}
}

func compareI64(op wazeroir.CompareOp, as int64, au uint64, bs int64, bu uint64) bool {
	switch op {
	case wazeroir.CompareOpEq:
		return au == bu
	case wazeroir.CompareOpNe:
		return au != bu
	case wazeroir.CompareOpLtS:
		return as < bs
	case wazeroir.CompareOpLtU:
		return au < bu
	case wazeroir.CompareOpGtS:
		return as > bs
	case wazeroir.CompareOpGtU:
		return au > bu
	case wazeroir.CompareOpLeS:
		return as <= bs
	case wazeroir.CompareOpLeU:
		return au <= bu
	case wazeroir.CompareOpGeS:
		return as >= bs
	case wazeroir.CompareOpGeU:
		return au >= bu
	default:
		panic(fmt.Sprintf("BUG: unsupported i64 compare op %d", op))
	}
}

func compareFloat(op wazeroir.CompareOp, a, b float64) bool {
	switch op {
	case wazeroir.CompareOpEq:
		return a == b
	case wazeroir.CompareOpNe:
		return a != b
	case wazeroir.CompareOpLt:
		return a < b
	case wazeroir.CompareOpGt:
		return a > b
	case wazeroir.CompareOpLe:
		return a <= b
	case wazeroir.CompareOpGe:
		return a >= b
	default:
		panic(fmt.Sprintf("BUG: unsupported float compare op %d", op))
	}
}

func execUnary(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	u := op.(wazeroir.Unary)
	v := ce.popValue()
	switch u.Type {
	case wazeroir.NumericTypeI32:
		ce.pushValue(unaryI32(u.Op, v.I32u()))
	case wazeroir.NumericTypeI64:
		ce.pushValue(unaryI64(u.Op, v.I64u()))
	case wazeroir.NumericTypeF32:
		ce.pushValue(numeric.F32(unaryFloat32(u.Op, v.F32())))
	case wazeroir.NumericTypeF64:
		ce.pushValue(numeric.F64(unaryFloat64(u.Op, v.F64())))
	default:
		panic(fmt.Sprintf("BUG: unary on unknown type %d", u.Type))
	}
	return stepNext
}

func unaryI32(op wazeroir.UnaryOp, u uint32) numeric.Value {
	switch op {
	case wazeroir.UnaryOpClz:
		return numeric.I32(int32(numeric.Clz32(u)))
	case wazeroir.UnaryOpCtz:
		return numeric.I32(int32(numeric.Ctz32(u)))
	case wazeroir.UnaryOpPopcnt:
		return numeric.I32(int32(numeric.Popcnt32(u)))
	default:
		panic(fmt.Sprintf("BUG: unsupported i32 unary op %d", op))
	}
}

func unaryI64(op wazeroir.UnaryOp, u uint64) numeric.Value {
	switch op {
	case wazeroir.UnaryOpClz:
		return numeric.I64(int64(numeric.Clz64(u)))
	case wazeroir.UnaryOpCtz:
		return numeric.I64(int64(numeric.Ctz64(u)))
	case wazeroir.UnaryOpPopcnt:
		return numeric.I64(int64(numeric.Popcnt64(u)))
	default:
		panic(fmt.Sprintf("BUG: unsupported i64 unary op %d", op))
	}
}

func unaryFloat32(op wazeroir.UnaryOp, f float32) float32 {
	switch op {
	case wazeroir.UnaryOpAbs:
		return float32(math.Abs(float64(f)))
	case wazeroir.UnaryOpNeg:
		return -f
	case wazeroir.UnaryOpCeil:
		return float32(math.Ceil(float64(f)))
	case wazeroir.UnaryOpFloor:
		return float32(math.Floor(float64(f)))
	case wazeroir.UnaryOpTrunc:
		return float32(math.Trunc(float64(f)))
	case wazeroir.UnaryOpNearest:
		return moremath.WasmCompatNearestF32(f)
	case wazeroir.UnaryOpSqrt:
		return float32(math.Sqrt(float64(f)))
	default:
		panic(fmt.Sprintf("BUG: unsupported f32 unary op %d", op))
	}
}

func unaryFloat64(op wazeroir.UnaryOp, f float64) float64 {
	switch op {
	case wazeroir.UnaryOpAbs:
		return math.Abs(f)
	case wazeroir.UnaryOpNeg:
		return -f
	case wazeroir.UnaryOpCeil:
		return math.Ceil(f)
	case wazeroir.UnaryOpFloor:
		return math.Floor(f)
	case wazeroir.UnaryOpTrunc:
		return math.Trunc(f)
	case wazeroir.UnaryOpNearest:
		return moremath.WasmCompatNearestF64(f)
	case wazeroir.UnaryOpSqrt:
		return math.Sqrt(f)
	default:
		panic(fmt.Sprintf("BUG: unsupported f64 unary op %d", op))
	}
}

// execBinary pops b (the second-pushed, right-hand operand) before a, for
// the same reason execCompare does -- binary()'s popExpect order in
// compiler.go.
func execBinary(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	b := op.(wazeroir.Binary)
	rhs := ce.popValue()
	lhs := ce.popValue()
	switch b.Type {
	case wazeroir.NumericTypeI32:
		ce.pushValue(binaryI32(b.Op, lhs.I32(), lhs.I32u(), rhs.I32(), rhs.I32u()))
	case wazeroir.NumericTypeI64:
		ce.pushValue(binaryI64(b.Op, lhs.I64(), lhs.I64u(), rhs.I64(), rhs.I64u()))
	case wazeroir.NumericTypeF32:
		ce.pushValue(numeric.F32(float32(binaryFloat(b.Op, float64(lhs.F32()), float64(rhs.F32())))))
	case wazeroir.NumericTypeF64:
		ce.pushValue(numeric.F64(binaryFloat(b.Op, lhs.F64(), rhs.F64())))
	default:
		panic(fmt.Sprintf("BUG: binary on unknown type %d", b.Type))
	}
	return stepNext
}

func binaryI32(op wazeroir.BinaryOp, as int32, au uint32, bs int32, bu uint32) numeric.Value {
	switch op {
	case wazeroir.BinaryOpAdd:
		return numeric.I32(as + bs)
	case wazeroir.BinaryOpSub:
		return numeric.I32(as - bs)
	case wazeroir.BinaryOpMul:
		return numeric.I32(as * bs)
	case wazeroir.BinaryOpDivS:
		r, divz, overflow := numeric.DivS32(as, bs)
		if divz {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		if overflow {
			panic(wasmruntime.NewTrap(wasmruntime.TrapKindInvalidConversionToInt, "integer overflow"))
		}
		return numeric.I32(r)
	case wazeroir.BinaryOpDivU:
		if bu == 0 {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		return numeric.I32(int32(au / bu))
	case wazeroir.BinaryOpRemS:
		r, divz := numeric.RemS32(as, bs)
		if divz {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		return numeric.I32(r)
	case wazeroir.BinaryOpRemU:
		if bu == 0 {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		return numeric.I32(int32(au % bu))
	case wazeroir.BinaryOpAnd:
		return numeric.I32(int32(au & bu))
	case wazeroir.BinaryOpOr:
		return numeric.I32(int32(au | bu))
	case wazeroir.BinaryOpXor:
		return numeric.I32(int32(au ^ bu))
	case wazeroir.BinaryOpShl:
		return numeric.I32(int32(numeric.Shl32(au, bu)))
	case wazeroir.BinaryOpShrS:
		return numeric.I32(numeric.ShrS32(as, bu))
	case wazeroir.BinaryOpShrU:
		return numeric.I32(int32(numeric.ShrU32(au, bu)))
	case wazeroir.BinaryOpRotl:
		return numeric.I32(int32(numeric.Rotl32(au, bu)))
	case wazeroir.BinaryOpRotr:
		return numeric.I32(int32(numeric.Rotr32(au, bu)))
	default:
		panic(fmt.Sprintf("BUG: unsupported i32 binary op %d", op))
	}
}

func binaryI64(op wazeroir.BinaryOp, as int64, au uint64, bs int64, bu uint64) numeric.Value {
	switch op {
	case wazeroir.BinaryOpAdd:
		return numeric.I64(as + bs)
	case wazeroir.BinaryOpSub:
		return numeric.I64(as - bs)
	case wazeroir.BinaryOpMul:
		return numeric.I64(as * bs)
	case wazeroir.BinaryOpDivS:
		r, divz, overflow := numeric.DivS64(as, bs)
		if divz {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		if overflow {
			panic(wasmruntime.NewTrap(wasmruntime.TrapKindInvalidConversionToInt, "integer overflow"))
		}
		return numeric.I64(r)
	case wazeroir.BinaryOpDivU:
		if bu == 0 {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		return numeric.I64(int64(au / bu))
	case wazeroir.BinaryOpRemS:
		r, divz := numeric.RemS64(as, bs)
		if divz {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		return numeric.I64(r)
	case wazeroir.BinaryOpRemU:
		if bu == 0 {
			panic(wasmruntime.ErrRuntimeDivisionByZero)
		}
		return numeric.I64(int64(au % bu))
	case wazeroir.BinaryOpAnd:
		return numeric.I64(int64(au & bu))
	case wazeroir.BinaryOpOr:
		return numeric.I64(int64(au | bu))
	case wazeroir.BinaryOpXor:
		return numeric.I64(int64(au ^ bu))
	case wazeroir.BinaryOpShl:
		return numeric.I64(int64(numeric.Shl64(au, uint32(bu))))
	case wazeroir.BinaryOpShrS:
		return numeric.I64(numeric.ShrS64(as, uint32(bu)))
	case wazeroir.BinaryOpShrU:
		return numeric.I64(int64(numeric.ShrU64(au, uint32(bu))))
	case wazeroir.BinaryOpRotl:
		return numeric.I64(int64(numeric.Rotl64(au, uint32(bu))))
	case wazeroir.BinaryOpRotr:
		return numeric.I64(int64(numeric.Rotr64(au, uint32(bu))))
	default:
		panic(fmt.Sprintf("BUG: unsupported i64 binary op %d", op))
	}
}

func binaryFloat(op wazeroir.BinaryOp, a, b float64) float64 {
	switch op {
	case wazeroir.BinaryOpAdd:
		return a + b
	case wazeroir.BinaryOpSub:
		return a - b
	case wazeroir.BinaryOpMul:
		return a * b
	case wazeroir.BinaryOpDiv:
		return a / b
	case wazeroir.BinaryOpMin:
		return moremath.WasmCompatMin(a, b)
	case wazeroir.BinaryOpMax:
		return moremath.WasmCompatMax(a, b)
	case wazeroir.BinaryOpCopysign:
		return math.Copysign(a, b)
	default:
		panic(fmt.Sprintf("BUG: unsupported float binary op %d", op))
	}
}

func execConversion(ce *callEngine, frame *callFrame, ctx context.Context, op wazeroir.Operation) stepResult {
	c := op.(wazeroir.Conversion)
	v := ce.popValue()
	switch c.Op {
	case wazeroir.ConversionOpI32WrapI64:
		ce.pushValue(numeric.I32(int32(v.I64())))
	case wazeroir.ConversionOpI32TruncF32S:
		ce.pushValue(truncToI32Value(float64(v.F32()), false))
	case wazeroir.ConversionOpI32TruncF32U:
		ce.pushValue(truncToI32Value(float64(v.F32()), true))
	case wazeroir.ConversionOpI32TruncF64S:
		ce.pushValue(truncToI32Value(v.F64(), false))
	case wazeroir.ConversionOpI32TruncF64U:
		ce.pushValue(truncToI32Value(v.F64(), true))
	case wazeroir.ConversionOpI64ExtendI32S:
		ce.pushValue(numeric.I64(int64(v.I32())))
	case wazeroir.ConversionOpI64ExtendI32U:
		ce.pushValue(numeric.I64(int64(v.I32u())))
	case wazeroir.ConversionOpI64TruncF32S:
		ce.pushValue(truncToI64Value(float64(v.F32()), false))
	case wazeroir.ConversionOpI64TruncF32U:
		ce.pushValue(truncToI64Value(float64(v.F32()), true))
	case wazeroir.ConversionOpI64TruncF64S:
		ce.pushValue(truncToI64Value(v.F64(), false))
	case wazeroir.ConversionOpI64TruncF64U:
		ce.pushValue(truncToI64Value(v.F64(), true))
	case wazeroir.ConversionOpF32ConvertI32S:
		ce.pushValue(numeric.F32(float32(v.I32())))
	case wazeroir.ConversionOpF32ConvertI32U:
		ce.pushValue(numeric.F32(float32(v.I32u())))
	case wazeroir.ConversionOpF32ConvertI64S:
		ce.pushValue(numeric.F32(float32(v.I64())))
	case wazeroir.ConversionOpF32ConvertI64U:
		ce.pushValue(numeric.F32(float32(v.I64u())))
	case wazeroir.ConversionOpF32DemoteF64:
		ce.pushValue(numeric.F32(float32(v.F64())))
	case wazeroir.ConversionOpF64ConvertI32S:
		ce.pushValue(numeric.F64(float64(v.I32())))
	case wazeroir.ConversionOpF64ConvertI32U:
		ce.pushValue(numeric.F64(float64(v.I32u())))
	case wazeroir.ConversionOpF64ConvertI64S:
		ce.pushValue(numeric.F64(float64(v.I64())))
	case wazeroir.ConversionOpF64ConvertI64U:
		ce.pushValue(numeric.F64(float64(v.I64u())))
	case wazeroir.ConversionOpF64PromoteF32:
		ce.pushValue(numeric.F64(float64(v.F32())))
	case wazeroir.ConversionOpI32ReinterpretF32:
		ce.pushValue(numeric.FromBits(api.ValueTypeI32, v.Bits()))
	case wazeroir.ConversionOpI64ReinterpretF64:
		ce.pushValue(numeric.FromBits(api.ValueTypeI64, v.Bits()))
	case wazeroir.ConversionOpF32ReinterpretI32:
		ce.pushValue(numeric.FromBits(api.ValueTypeF32, v.Bits()))
	case wazeroir.ConversionOpF64ReinterpretI64:
		ce.pushValue(numeric.FromBits(api.ValueTypeF64, v.Bits()))
	default:
		panic(fmt.Sprintf("BUG: unsupported conversion op %d", c.Op))
	}
	return stepNext
}

func truncToI32Value(f float64, unsigned bool) numeric.Value {
	r, ok := numeric.TruncF64ToI32(f, unsigned)
	if !ok {
		panic(wasmruntime.ErrRuntimeInvalidConversionToInt)
	}
	return numeric.I32(r)
}

func truncToI64Value(f float64, unsigned bool) numeric.Value {
	r, ok := numeric.TruncF64ToI64(f, unsigned)
	if !ok {
		panic(wasmruntime.ErrRuntimeInvalidConversionToInt)
	}
	return numeric.I64(r)
}
