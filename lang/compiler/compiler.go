// Package compiler implements Ember's single-pass compiler: a Pratt parser
// wired directly to a bytecode emitter. There is no intermediate syntax
// tree — each parse rule emits its bytecode as it recognizes the
// expression or statement it belongs to, exactly as it is recognized.
package compiler

import (
	"strconv"
	"strings"

	"github.com/emberlang/ember/lang/chunk"
	"github.com/emberlang/ember/lang/scanner"
	"github.com/emberlang/ember/lang/token"
	"github.com/emberlang/ember/lang/value"
)

const (
	maxLocals   = 256
	maxUpvalues = 256
	maxArgs     = 255
	maxJump     = 1<<16 - 1
	maxConstant = 1<<24 - 1
)

// Precedence levels, low to high.
type Precedence int

const (
	PrecNone Precedence = iota
	PrecAssign
	PrecOr
	PrecAnd
	PrecEquality
	PrecComparison
	PrecTerm
	PrecFactor
	PrecUnary
	PrecCall
	PrecPrimary
)

// FuncType distinguishes the implicit top-level script function from a
// user-declared function, the only thing that changes how a funcState
// behaves (return is forbidden at script scope, the function has no name
// constant).
type FuncType int

const (
	TypeFunction FuncType = iota
	TypeScript
)

type parseFn func(c *Compiler, canAssign bool)

type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   Precedence
}

var rules map[token.Token]parseRule

func init() {
	rules = map[token.Token]parseRule{
		token.LPAREN:  {(*Compiler).grouping, (*Compiler).call, PrecCall},
		token.MINUS:   {(*Compiler).unary, (*Compiler).binary, PrecTerm},
		token.PLUS:    {nil, (*Compiler).binary, PrecTerm},
		token.SLASH:   {nil, (*Compiler).binary, PrecFactor},
		token.STAR:    {nil, (*Compiler).binary, PrecFactor},
		token.BANG:    {(*Compiler).unary, nil, PrecNone},
		token.BANG_EQ: {nil, (*Compiler).binary, PrecEquality},
		token.EQ_EQ:   {nil, (*Compiler).binary, PrecEquality},
		token.GT:      {nil, (*Compiler).binary, PrecComparison},
		token.GE:      {nil, (*Compiler).binary, PrecComparison},
		token.LT:      {nil, (*Compiler).binary, PrecComparison},
		token.LE:      {nil, (*Compiler).binary, PrecComparison},
		token.IDENT:   {(*Compiler).variable, nil, PrecNone},
		token.STRING:  {(*Compiler).stringLiteral, nil, PrecNone},
		token.NUMBER:  {(*Compiler).number, nil, PrecNone},
		token.AND:     {nil, (*Compiler).and_, PrecAnd},
		token.OR:      {nil, (*Compiler).or_, PrecOr},
		token.FALSE:   {(*Compiler).literal, nil, PrecNone},
		token.NIL:     {(*Compiler).literal, nil, PrecNone},
		token.TRUE:    {(*Compiler).literal, nil, PrecNone},
	}
}

func getRule(t token.Token) parseRule { return rules[t] }

type localVar struct {
	name  string
	depth int // -1 means declared but not yet initialized
}

// funcState is one level of the compile-time compiler stack: one per
// function body currently being compiled, chained through enclosing so
// that upvalue resolution and GC root-walking can climb it.
type funcState struct {
	enclosing  *funcState
	function   *chunk.Function
	funcType   FuncType
	locals     []localVar
	scopeDepth int
	upvalues   []chunk.UpvalueDesc
}

// Allocator is the VM-provided hook the compiler uses for the handful of
// things that require access to shared runtime state: interning string
// constants (so they share the VM's canonical table) and rooting values
// pushed into a chunk's constant pool against the operand stack so a
// GC triggered mid-compile cannot collect them.
type Allocator interface {
	Push(value.Value)
	Pop() value.Value
	Intern(chars string) *value.String
	// NewFunction allocates a Function through the VM's heap bookkeeping, so
	// that every compiled function becomes reachable from the same object
	// list the garbage collector sweeps, not just from the stack of
	// funcStates a GC mid-compile walks as roots.
	NewFunction() *chunk.Function
}

// Compiler holds the entire state of one compile: the scanner, the
// look-ahead pair of lexemes, error-reporting flags, and the stack of
// funcStates for the function nest currently being compiled.
type Compiler struct {
	alloc Allocator
	scan  *scanner.Scanner

	current, previous scanner.Lexeme
	hadError          bool
	panicMode         bool
	errors            []string

	fs *funcState
}

// New creates a Compiler that allocates heap objects through alloc. The
// caller (the VM) is expected to register the Compiler as its active
// compiler root (via WalkRoots) for the duration of Compile, so that a GC
// triggered while compiling sees every function still under construction.
func New(alloc Allocator) *Compiler {
	return &Compiler{alloc: alloc}
}

// CompileError aggregates every diagnostic produced by a failed compile.
type CompileError struct{ Messages []string }

func (e *CompileError) Error() string { return strings.Join(e.Messages, "\n") }

// Compile scans and compiles source as a top-level script, returning the
// resulting top-level Function or, if any lexical, syntactic or resolution
// error was encountered, a *CompileError aggregating every diagnostic
// (panic-mode suppressed so only one error per synchronization point is
// reported).
func (c *Compiler) Compile(source string) (*chunk.Function, error) {
	c.scan = scanner.New([]byte(source))
	c.initFuncState(TypeScript, "")

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn := c.endFuncState()

	if c.hadError {
		return nil, &CompileError{Messages: c.errors}
	}
	return fn, nil
}

// WalkRoots calls fn once for every Function currently under construction,
// innermost first, so the GC can mark them as roots during a mid-compile
// collection.
func (c *Compiler) WalkRoots(fn func(*chunk.Function)) {
	for fs := c.fs; fs != nil; fs = fs.enclosing {
		fn(fs.function)
	}
}

func (c *Compiler) intern(s string) *value.String { return c.alloc.Intern(s) }

// --- funcState management ---

func (c *Compiler) initFuncState(ft FuncType, name string) {
	fs := &funcState{enclosing: c.fs, funcType: ft, function: c.alloc.NewFunction()}
	// Make the new function visible to WalkRoots before interning its name,
	// which can trigger a collection.
	c.fs = fs
	if ft != TypeScript {
		fs.function.Name = c.intern(name)
	}
	// slot 0 is reserved for the callee itself (see VM call-frame invariant).
	fs.locals = append(fs.locals, localVar{name: "", depth: 0})
}

func (c *Compiler) endFuncState() *chunk.Function {
	c.emitReturn()
	fn := c.fs.function
	c.fs = c.fs.enclosing
	return fn
}

func (c *Compiler) currentChunk() *chunk.Chunk { return &c.fs.function.Chunk }

// --- token stream plumbing ---

func (c *Compiler) advance() {
	c.previous = c.current
	for {
		c.current = c.scan.Scan()
		if c.current.Kind != token.ERROR {
			break
		}
		c.errorAtCurrent(c.current.Text)
	}
}

func (c *Compiler) check(t token.Token) bool { return c.current.Kind == t }

func (c *Compiler) match(t token.Token) bool {
	if !c.check(t) {
		return false
	}
	c.advance()
	return true
}

func (c *Compiler) consume(t token.Token, msg string) {
	if c.current.Kind == t {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

func (c *Compiler) errorAtCurrent(msg string) { c.errorAt(c.current, msg) }
func (c *Compiler) error(msg string)          { c.errorAt(c.previous, msg) }

func (c *Compiler) errorAt(lx scanner.Lexeme, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true

	var sb strings.Builder
	sb.WriteString("[line ")
	sb.WriteString(strconv.Itoa(lx.Line))
	sb.WriteString("] Error")
	switch lx.Kind {
	case token.EOF:
		sb.WriteString(" at end")
	case token.ERROR:
		// the scanner's message IS the error; no location clause.
	default:
		sb.WriteString(" at '")
		sb.WriteString(lx.Text)
		sb.WriteString("'")
	}
	sb.WriteString(": ")
	sb.WriteString(msg)
	c.errors = append(c.errors, sb.String())
}

// --- bytecode emission ---

func (c *Compiler) emitByte(b byte) { c.currentChunk().Write(b, c.previous.Line) }
func (c *Compiler) emitOp(op OpCode) { c.emitByte(byte(op)) }
func (c *Compiler) emitBytes(b1, b2 byte) {
	c.emitByte(b1)
	c.emitByte(b2)
}

// emit24 emits op followed by idx encoded as 3 little-endian bytes, the
// sole constant/name-operand width the compiler ever emits.
func (c *Compiler) emit24(op OpCode, idx int) {
	c.emitByte(byte(op))
	c.emitByte(byte(idx))
	c.emitByte(byte(idx >> 8))
	c.emitByte(byte(idx >> 16))
}

func (c *Compiler) emitReturn() {
	c.emitOp(OpNil)
	c.emitOp(OpReturn)
}

func (c *Compiler) makeConstant(v value.Value) int {
	c.alloc.Push(v)
	idx := c.currentChunk().AddConstant(v)
	c.alloc.Pop()
	if idx > maxConstant {
		c.error("Too many constants in one chunk.")
		return 0
	}
	return idx
}

func (c *Compiler) emitConstant(v value.Value) {
	c.emit24(OpConstant, c.makeConstant(v))
}

// emitJump writes op followed by a two-byte placeholder and returns the
// offset of the first placeholder byte, to be passed to patchJump once the
// jump target is known.
func (c *Compiler) emitJump(op OpCode) int {
	c.emitOp(op)
	c.emitByte(0xff)
	c.emitByte(0xff)
	return len(c.currentChunk().Code) - 2
}

func (c *Compiler) patchJump(offset int) {
	code := c.currentChunk().Code
	jump := len(code) - offset - 2
	if jump > maxJump {
		c.error("Too much code to jump over.")
	}
	code[offset] = byte(jump >> 8)
	code[offset+1] = byte(jump)
}

func (c *Compiler) emitLoop(loopStart int) {
	c.emitOp(OpLoop)
	offset := len(c.currentChunk().Code) - loopStart + 2
	if offset > maxJump {
		c.error("Loop body too large.")
	}
	c.emitByte(byte(offset >> 8))
	c.emitByte(byte(offset))
}

// --- scopes, locals, upvalues ---

func (c *Compiler) beginScope() { c.fs.scopeDepth++ }

func (c *Compiler) endScope() {
	c.fs.scopeDepth--
	for len(c.fs.locals) > 0 && c.fs.locals[len(c.fs.locals)-1].depth > c.fs.scopeDepth {
		c.emitOp(OpPop)
		c.fs.locals = c.fs.locals[:len(c.fs.locals)-1]
	}
}

func (c *Compiler) addLocal(name string) {
	if len(c.fs.locals) == maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	c.fs.locals = append(c.fs.locals, localVar{name: name, depth: -1})
}

func (c *Compiler) declareVariable() {
	if c.fs.scopeDepth == 0 {
		return
	}
	name := c.previous.Text
	for i := len(c.fs.locals) - 1; i >= 0; i-- {
		local := c.fs.locals[i]
		if local.depth != -1 && local.depth < c.fs.scopeDepth {
			break
		}
		if local.name == name {
			c.error("There already exists a variable with the same name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *Compiler) parseVariable(errMsg string) int {
	c.consume(token.IDENT, errMsg)
	c.declareVariable()
	if c.fs.scopeDepth > 0 {
		return 0
	}
	return c.identifierConstant(c.previous.Text)
}

func (c *Compiler) identifierConstant(name string) int {
	return c.makeConstant(value.FromObject(c.intern(name)))
}

func (c *Compiler) markInitialized() {
	if c.fs.scopeDepth == 0 {
		return
	}
	c.fs.locals[len(c.fs.locals)-1].depth = c.fs.scopeDepth
}

func (c *Compiler) defineVariable(global int) {
	if c.fs.scopeDepth > 0 {
		c.markInitialized()
		return
	}
	c.emit24(OpDefineGlobal, global)
}

func resolveLocal(fs *funcState, name string) (int, bool) {
	for i := len(fs.locals) - 1; i >= 0; i-- {
		if fs.locals[i].name == name {
			return i, true
		}
	}
	return 0, false
}

func (c *Compiler) resolveLocal(fs *funcState, name string) (int, bool) {
	i, ok := resolveLocal(fs, name)
	if ok && fs.locals[i].depth == -1 {
		c.error("Cannot read local variable in its own initializer.")
	}
	return i, ok
}

func (c *Compiler) addUpvalue(fs *funcState, index uint8, isLocal bool) int {
	for i, uv := range fs.upvalues {
		if uv.Index == index && uv.IsLocal == isLocal {
			return i
		}
	}
	if len(fs.upvalues) == maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fs.upvalues = append(fs.upvalues, chunk.UpvalueDesc{Index: index, IsLocal: isLocal})
	fs.function.UpvalueCount++
	return len(fs.upvalues) - 1
}

func (c *Compiler) resolveUpvalue(fs *funcState, name string) (int, bool) {
	if fs.enclosing == nil {
		return 0, false
	}
	if local, ok := c.resolveLocal(fs.enclosing, name); ok {
		return c.addUpvalue(fs, uint8(local), true), true
	}
	if up, ok := c.resolveUpvalue(fs.enclosing, name); ok {
		return c.addUpvalue(fs, uint8(up), false), true
	}
	return 0, false
}

// --- declarations and statements ---

func (c *Compiler) declaration() {
	switch {
	case c.match(token.FUN):
		c.funDeclaration()
	case c.match(token.LET):
		c.letDeclaration()
	default:
		c.statement()
	}
	if c.panicMode {
		c.synchronize()
	}
}

func (c *Compiler) synchronize() {
	c.panicMode = false
	for c.current.Kind != token.EOF {
		if c.previous.Kind == token.SEMI {
			return
		}
		switch c.current.Kind {
		case token.CLASS, token.FUN, token.LET, token.FOR, token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

func (c *Compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	c.markInitialized()
	c.function(TypeFunction)
	c.defineVariable(global)
}

func (c *Compiler) function(ft FuncType) {
	name := c.previous.Text
	c.initFuncState(ft, name)
	c.beginScope()

	c.consume(token.LPAREN, "Expect '(' after function name.")
	if !c.check(token.RPAREN) {
		for {
			c.fs.function.Arity++
			if c.fs.function.Arity > maxArgs {
				c.errorAtCurrent("Cannot have more than 255 parameters.")
			}
			constant := c.parseVariable("Expect parameter name.")
			c.defineVariable(constant)
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after function parameters.")
	c.consume(token.LBRACE, "Expect '{' before function body.")
	c.block()

	upvalues := append([]chunk.UpvalueDesc(nil), c.fs.upvalues...)
	fn := c.endFuncState()

	idx := c.makeConstant(value.FromObject(fn))
	c.emit24(OpClosure, idx)
	for _, uv := range upvalues {
		if uv.IsLocal {
			c.emitByte(1)
		} else {
			c.emitByte(0)
		}
		c.emitByte(uv.Index)
	}
}

func (c *Compiler) letDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(token.EQ) {
		c.expression()
	} else {
		c.emitOp(OpNil)
	}
	c.consume(token.SEMI, "Expect ';' after value.")
	c.defineVariable(global)
}

func (c *Compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *Compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block.")
}

func (c *Compiler) printStatement() {
	c.expression()
	c.consume(token.SEMI, "Expect ';' after value.")
	c.emitOp(OpPrint)
}

func (c *Compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMI, "Expect ';' after expression.")
	c.emitOp(OpPop)
}

func (c *Compiler) returnStatement() {
	if c.fs.funcType == TypeScript {
		c.error("Cannot return from global scope.")
	}
	if c.match(token.SEMI) {
		c.emitReturn()
		return
	}
	c.expression()
	c.consume(token.SEMI, "Expect ';' after return value.")
	c.emitOp(OpReturn)
}

func (c *Compiler) ifStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()

	elseJump := c.emitJump(OpJump)
	c.patchJump(thenJump)
	c.emitOp(OpPop)

	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *Compiler) whileStatement() {
	loopStart := len(c.currentChunk().Code)
	c.consume(token.LPAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(OpPop)
}

func (c *Compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after 'for'.")

	switch {
	case c.match(token.SEMI):
		// no initializer
	case c.match(token.LET):
		c.letDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.currentChunk().Code)
	exitJump := -1
	if !c.match(token.SEMI) {
		c.expression()
		c.consume(token.SEMI, "Expect ';' after loop condition.")

		exitJump = c.emitJump(OpJumpIfFalse)
		c.emitOp(OpPop)
	}

	if !c.match(token.RPAREN) {
		bodyJump := c.emitJump(OpJump)
		incrementStart := len(c.currentChunk().Code)
		c.expression()
		c.emitOp(OpPop)
		c.consume(token.RPAREN, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrementStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)
	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(OpPop)
	}
	c.endScope()
}

// --- expressions ---

func (c *Compiler) expression() { c.parsePrecedence(PrecAssign) }

func (c *Compiler) parsePrecedence(prec Precedence) {
	c.advance()
	prefix := getRule(c.previous.Kind).prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := prec <= PrecAssign
	prefix(c, canAssign)

	for prec <= getRule(c.current.Kind).prec {
		c.advance()
		infix := getRule(c.previous.Kind).infix
		infix(c, canAssign)
	}

	if canAssign && c.match(token.EQ) {
		c.error("Invalid assignment target.")
	}
}

func (c *Compiler) grouping(_ bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func (c *Compiler) unary(_ bool) {
	op := c.previous.Kind
	c.parsePrecedence(PrecUnary)
	switch op {
	case token.MINUS:
		c.emitOp(OpNegate)
	case token.BANG:
		c.emitOp(OpNot)
	}
}

func (c *Compiler) binary(_ bool) {
	op := c.previous.Kind
	rule := getRule(op)
	c.parsePrecedence(rule.prec + 1)

	switch op {
	case token.PLUS:
		c.emitOp(OpAdd)
	case token.MINUS:
		c.emitOp(OpSub)
	case token.STAR:
		c.emitOp(OpMul)
	case token.SLASH:
		c.emitOp(OpDiv)
	case token.BANG_EQ:
		c.emitOp(OpEqual)
		c.emitOp(OpNot)
	case token.EQ_EQ:
		c.emitOp(OpEqual)
	case token.GT:
		c.emitOp(OpGreater)
	case token.GE:
		c.emitOp(OpLess)
		c.emitOp(OpNot)
	case token.LT:
		c.emitOp(OpLess)
	case token.LE:
		c.emitOp(OpGreater)
		c.emitOp(OpNot)
	}
}

func (c *Compiler) call(_ bool) {
	argc := c.argumentList()
	c.emitBytes(byte(OpCall), argc)
}

func (c *Compiler) argumentList() byte {
	var argc int
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if argc == maxArgs {
				c.error("Cannot have more than 255 arguments.")
			}
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(argc)
}

func (c *Compiler) and_(_ bool) {
	endJump := c.emitJump(OpJumpIfFalse)
	c.emitOp(OpPop)
	c.parsePrecedence(PrecAnd)
	c.patchJump(endJump)
}

func (c *Compiler) or_(_ bool) {
	elseJump := c.emitJump(OpJumpIfFalse)
	endJump := c.emitJump(OpJump)

	c.patchJump(elseJump)
	c.emitOp(OpPop)

	c.parsePrecedence(PrecOr)
	c.patchJump(endJump)
}

func (c *Compiler) number(_ bool) {
	v, _ := strconv.ParseFloat(c.previous.Text, 64)
	c.emitConstant(value.Number(v))
}

func (c *Compiler) literal(_ bool) {
	switch c.previous.Kind {
	case token.FALSE:
		c.emitOp(OpFalse)
	case token.TRUE:
		c.emitOp(OpTrue)
	case token.NIL:
		c.emitOp(OpNil)
	}
}

func (c *Compiler) stringLiteral(_ bool) {
	text := c.previous.Text
	chars := text[1 : len(text)-1] // strip surrounding quotes
	c.emitConstant(value.FromObject(c.intern(chars)))
}

func (c *Compiler) variable(canAssign bool) {
	c.namedVariable(c.previous, canAssign)
}

func (c *Compiler) namedVariable(name scanner.Lexeme, canAssign bool) {
	var getOp, setOp OpCode

	if arg, ok := c.resolveLocal(c.fs, name.Text); ok {
		getOp, setOp = OpGetLocal, OpSetLocal
		if canAssign && c.match(token.EQ) {
			c.expression()
			c.emitBytes(byte(setOp), byte(arg))
		} else {
			c.emitBytes(byte(getOp), byte(arg))
		}
		return
	}

	if arg, ok := c.resolveUpvalue(c.fs, name.Text); ok {
		getOp, setOp = OpGetUpvalue, OpSetUpvalue
		if canAssign && c.match(token.EQ) {
			c.expression()
			c.emitBytes(byte(setOp), byte(arg))
		} else {
			c.emitBytes(byte(getOp), byte(arg))
		}
		return
	}

	arg := c.identifierConstant(name.Text)
	if canAssign && c.match(token.EQ) {
		c.expression()
		c.emit24(OpSetGlobal, arg)
	} else {
		c.emit24(OpGetGlobal, arg)
	}
}
