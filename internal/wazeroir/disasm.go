package wazeroir

import (
	"fmt"
	"strings"
)

// Disassemble renders a compiled operation sequence as one line per
// instruction, PC-prefixed, for debug logging and test failure output --
// not meant to be parsed back in, just read by a human next to a program
// counter from a trap or a failing assertion.
func Disassemble(ops []Operation) string {
	var b strings.Builder
	for pc, op := range ops {
		fmt.Fprintf(&b, "%4d\t%s\n", pc, disasmOp(op))
	}
	return b.String()
}

func disasmOp(op Operation) string {
	switch o := op.(type) {
	case Unreachable:
		return "Unreachable"
	case Return:
		return fmt.Sprintf("Return\t%s", disasmDropKeep(o.DropKeep))
	case Br:
		return fmt.Sprintf("Br\t%s", disasmTarget(o.Target))
	case BrIfEqz:
		return fmt.Sprintf("BrIfEqz\t%s", disasmTarget(o.Target))
	case BrIfNez:
		return fmt.Sprintf("BrIfNez\t%s", disasmTarget(o.Target))
	case BrTable:
		targets := make([]string, len(o.Targets))
		for i, t := range o.Targets {
			targets[i] = disasmTarget(t)
		}
		return fmt.Sprintf("BrTable\t[%s]", strings.Join(targets, ", "))
	case Call:
		return fmt.Sprintf("Call\t%d", o.FuncIndex)
	case CallIndirect:
		return fmt.Sprintf("CallIndirect\ttype=%d table=%d", o.TypeIndex, o.TableIndex)
	case Drop:
		return "Drop"
	case Select:
		return "Select"
	case GetLocal:
		return fmt.Sprintf("GetLocal\t%d", o.Depth)
	case SetLocal:
		return fmt.Sprintf("SetLocal\t%d", o.Depth)
	case TeeLocal:
		return fmt.Sprintf("TeeLocal\t%d", o.Depth)
	case GetGlobal:
		return fmt.Sprintf("GetGlobal\t%d", o.Index)
	case SetGlobal:
		return fmt.Sprintf("SetGlobal\t%d", o.Index)
	case Load:
		return fmt.Sprintf("Load.%s\toffset=%d", loadTypeName(o.Type), o.Offset)
	case Store:
		return fmt.Sprintf("Store.%s\toffset=%d", storeTypeName(o.Type), o.Offset)
	case MemorySize:
		return "MemorySize"
	case MemoryGrow:
		return "MemoryGrow"
	case ConstI32:
		return fmt.Sprintf("Const.I32\t%d", o.Value)
	case ConstI64:
		return fmt.Sprintf("Const.I64\t%d", o.Value)
	case ConstF32:
		return fmt.Sprintf("Const.F32\t%v", o.Value)
	case ConstF64:
		return fmt.Sprintf("Const.F64\t%v", o.Value)
	case Eqz:
		return fmt.Sprintf("Eqz.%s", numericTypeName(o.Type))
	case Compare:
		return fmt.Sprintf("Compare.%s\t%s", numericTypeName(o.Type), compareOpName(o.Op))
	case Unary:
		return fmt.Sprintf("Unary.%s\t%s", numericTypeName(o.Type), unaryOpName(o.Op))
	case Binary:
		return fmt.Sprintf("Binary.%s\t%s", numericTypeName(o.Type), binaryOpName(o.Op))
	case Conversion:
		return fmt.Sprintf("Conversion\t%s", conversionOpName(o.Op))
	default:
		return fmt.Sprintf("<unknown %T>", o)
	}
}

func disasmTarget(t Target) string {
	return fmt.Sprintf("pc=%d %s", t.DstPC, disasmDropKeep(t.DropKeep))
}

func disasmDropKeep(dk DropKeep) string {
	keep := 0
	if dk.Keep {
		keep = 1
	}
	return fmt.Sprintf("(drop=%d,keep=%d)", dk.Drop, keep)
}

func loadTypeName(t LoadType) string {
	switch t {
	case LoadTypeI32:
		return "i32"
	case LoadTypeI64:
		return "i64"
	case LoadTypeF32:
		return "f32"
	case LoadTypeF64:
		return "f64"
	case LoadTypeI32I8S:
		return "i32_8s"
	case LoadTypeI32I8U:
		return "i32_8u"
	case LoadTypeI32I16S:
		return "i32_16s"
	case LoadTypeI32I16U:
		return "i32_16u"
	case LoadTypeI64I8S:
		return "i64_8s"
	case LoadTypeI64I8U:
		return "i64_8u"
	case LoadTypeI64I16S:
		return "i64_16s"
	case LoadTypeI64I16U:
		return "i64_16u"
	case LoadTypeI64I32S:
		return "i64_32s"
	case LoadTypeI64I32U:
		return "i64_32u"
	default:
		return "?"
	}
}

func storeTypeName(t StoreType) string {
	switch t {
	case StoreTypeI32:
		return "i32"
	case StoreTypeI64:
		return "i64"
	case StoreTypeF32:
		return "f32"
	case StoreTypeF64:
		return "f64"
	case StoreTypeI32I8:
		return "i32_8"
	case StoreTypeI32I16:
		return "i32_16"
	case StoreTypeI64I8:
		return "i64_8"
	case StoreTypeI64I16:
		return "i64_16"
	case StoreTypeI64I32:
		return "i64_32"
	default:
		return "?"
	}
}

func numericTypeName(t NumericType) string {
	switch t {
	case NumericTypeI32:
		return "i32"
	case NumericTypeI64:
		return "i64"
	case NumericTypeF32:
		return "f32"
	case NumericTypeF64:
		return "f64"
	default:
		return "?"
	}
}

func compareOpName(op CompareOp) string {
	switch op {
	case CompareOpEq:
		return "eq"
	case CompareOpNe:
		return "ne"
	case CompareOpLtS:
		return "lt_s"
	case CompareOpLtU:
		return "lt_u"
	case CompareOpGtS:
		return "gt_s"
	case CompareOpGtU:
		return "gt_u"
	case CompareOpLeS:
		return "le_s"
	case CompareOpLeU:
		return "le_u"
	case CompareOpGeS:
		return "ge_s"
	case CompareOpGeU:
		return "ge_u"
	case CompareOpLt:
		return "lt"
	case CompareOpGt:
		return "gt"
	case CompareOpLe:
		return "le"
	case CompareOpGe:
		return "ge"
	default:
		return "?"
	}
}

func unaryOpName(op UnaryOp) string {
	switch op {
	case UnaryOpClz:
		return "clz"
	case UnaryOpCtz:
		return "ctz"
	case UnaryOpPopcnt:
		return "popcnt"
	case UnaryOpAbs:
		return "abs"
	case UnaryOpNeg:
		return "neg"
	case UnaryOpCeil:
		return "ceil"
	case UnaryOpFloor:
		return "floor"
	case UnaryOpTrunc:
		return "trunc"
	case UnaryOpNearest:
		return "nearest"
	case UnaryOpSqrt:
		return "sqrt"
	default:
		return "?"
	}
}

func binaryOpName(op BinaryOp) string {
	switch op {
	case BinaryOpAdd:
		return "add"
	case BinaryOpSub:
		return "sub"
	case BinaryOpMul:
		return "mul"
	case BinaryOpDivS:
		return "div_s"
	case BinaryOpDivU:
		return "div_u"
	case BinaryOpRemS:
		return "rem_s"
	case BinaryOpRemU:
		return "rem_u"
	case BinaryOpAnd:
		return "and"
	case BinaryOpOr:
		return "or"
	case BinaryOpXor:
		return "xor"
	case BinaryOpShl:
		return "shl"
	case BinaryOpShrS:
		return "shr_s"
	case BinaryOpShrU:
		return "shr_u"
	case BinaryOpRotl:
		return "rotl"
	case BinaryOpRotr:
		return "rotr"
	case BinaryOpDiv:
		return "div"
	case BinaryOpMin:
		return "min"
	case BinaryOpMax:
		return "max"
	case BinaryOpCopysign:
		return "copysign"
	default:
		return "?"
	}
}

func conversionOpName(op ConversionOp) string {
	switch op {
	case ConversionOpI32WrapI64:
		return "i32.wrap_i64"
	case ConversionOpI32TruncF32S:
		return "i32.trunc_f32_s"
	case ConversionOpI32TruncF32U:
		return "i32.trunc_f32_u"
	case ConversionOpI32TruncF64S:
		return "i32.trunc_f64_s"
	case ConversionOpI32TruncF64U:
		return "i32.trunc_f64_u"
	case ConversionOpI64ExtendI32S:
		return "i64.extend_i32_s"
	case ConversionOpI64ExtendI32U:
		return "i64.extend_i32_u"
	case ConversionOpI64TruncF32S:
		return "i64.trunc_f32_s"
	case ConversionOpI64TruncF32U:
		return "i64.trunc_f32_u"
	case ConversionOpI64TruncF64S:
		return "i64.trunc_f64_s"
	case ConversionOpI64TruncF64U:
		return "i64.trunc_f64_u"
	case ConversionOpF32ConvertI32S:
		return "f32.convert_i32_s"
	case ConversionOpF32ConvertI32U:
		return "f32.convert_i32_u"
	case ConversionOpF32ConvertI64S:
		return "f32.convert_i64_s"
	case ConversionOpF32ConvertI64U:
		return "f32.convert_i64_u"
	case ConversionOpF32DemoteF64:
		return "f32.demote_f64"
	case ConversionOpF64ConvertI32S:
		return "f64.convert_i32_s"
	case ConversionOpF64ConvertI32U:
		return "f64.convert_i32_u"
	case ConversionOpF64ConvertI64S:
		return "f64.convert_i64_s"
	case ConversionOpF64ConvertI64U:
		return "f64.convert_i64_u"
	case ConversionOpF64PromoteF32:
		return "f64.promote_f32"
	case ConversionOpI32ReinterpretF32:
		return "i32.reinterpret_f32"
	case ConversionOpI64ReinterpretF64:
		return "i64.reinterpret_f64"
	case ConversionOpF32ReinterpretI32:
		return "f32.reinterpret_i32"
	case ConversionOpF64ReinterpretI64:
		return "f64.reinterpret_i64"
	default:
		return "?"
	}
}
