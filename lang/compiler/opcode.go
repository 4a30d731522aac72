package compiler

import "fmt"

// OpCode is a single bytecode instruction. The compiler commits to the
// 24-bit constant/name operand form exclusively (OpConstant, OpGetGlobal,
// OpSetGlobal, OpDefineGlobal all take a 3-byte little-endian index); the
// short 8-bit constant form from the source this was distilled from is
// never emitted and so is not represented here at all — see SPEC_FULL.md's
// "24-bit constant/name operands throughout" note.
type OpCode byte

//nolint:revive
const (
	OpConstant OpCode = iota // idx24: push constants[idx]

	OpNil   // push Nil
	OpTrue  // push true
	OpFalse // push false
	OpPop   // pop and discard

	OpGetLocal // slot8: push locals[slot]
	OpSetLocal // slot8: locals[slot] = peek(0)

	OpGetGlobal    // name24: push globals[name], error if undefined
	OpSetGlobal    // name24: globals[name] = peek(0), error if undefined
	OpDefineGlobal // name24: globals[name] = pop()

	OpGetUpvalue   // slot8: push *upvalues[slot]
	OpSetUpvalue   // slot8: *upvalues[slot] = peek(0)
	OpCloseUpvalue // close the topmost stack slot into its own upvalue, then pop

	OpEqual   // pop b,a; push a == b
	OpGreater // pop b,a; push a > b
	OpLess    // pop b,a; push a < b

	OpAdd // pop b,a; push a + b (numbers add, strings concatenate)
	OpSub // pop b,a; push a - b
	OpMul // pop b,a; push a * b
	OpDiv // pop b,a; push a / b

	OpNot    // pop a; push is_falsey(a)
	OpNegate // pop a; push -a

	OpPrint // pop and print a value followed by a newline

	OpJump         // off16 (big-endian): ip += off
	OpJumpIfFalse  // off16 (big-endian): if is_falsey(peek(0)) ip += off; does not pop
	OpLoop         // off16 (big-endian): ip -= off

	OpCall // argc8: call the callable at stack[-argc-1] with argc arguments

	OpClosure // fn24, then {is_local8, index8} x upvalueCount: build a closure

	OpReturn // pop the result, return it to the caller
)

var opNames = [...]string{
	OpConstant:     "OP_CONSTANT",
	OpNil:          "OP_NIL",
	OpTrue:         "OP_TRUE",
	OpFalse:        "OP_FALSE",
	OpPop:          "OP_POP",
	OpGetLocal:     "OP_GET_LOCAL",
	OpSetLocal:     "OP_SET_LOCAL",
	OpGetGlobal:    "OP_GET_GLOBAL",
	OpSetGlobal:    "OP_SET_GLOBAL",
	OpDefineGlobal: "OP_DEFINE_GLOBAL",
	OpGetUpvalue:   "OP_GET_UPVALUE",
	OpSetUpvalue:   "OP_SET_UPVALUE",
	OpCloseUpvalue: "OP_CLOSE_UPVALUE",
	OpEqual:        "OP_EQUAL",
	OpGreater:      "OP_GREATER",
	OpLess:         "OP_LESS",
	OpAdd:          "OP_ADD",
	OpSub:          "OP_SUBTRACT",
	OpMul:          "OP_MULTIPLY",
	OpDiv:          "OP_DIVIDE",
	OpNot:          "OP_NOT",
	OpNegate:       "OP_NEGATE",
	OpPrint:        "OP_PRINT",
	OpJump:         "OP_JUMP",
	OpJumpIfFalse:  "OP_JUMP_IF_FALSE",
	OpLoop:         "OP_LOOP",
	OpCall:         "OP_CALL",
	OpClosure:      "OP_CLOSURE",
	OpReturn:       "OP_RETURN",
}

func (op OpCode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("OP_UNKNOWN(%d)", byte(op))
}
