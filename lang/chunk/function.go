package chunk

import "github.com/emberlang/ember/lang/value"

// Function is a compiled function body: its arity, how many upvalues its
// closures capture, an optional name (nil for the top-level script), and
// the Chunk of bytecode that implements it. A Chunk's lifetime is owned by
// its Function: it is freed only when the Function itself is swept by the
// GC.
type Function struct {
	value.Header
	Arity        int
	UpvalueCount int
	Name         *value.String // nil for the top-level script
	Chunk        Chunk
}

// NewFunction allocates an empty Function ready to be populated by the
// compiler as it emits bytecode into Chunk.
func NewFunction() *Function {
	return &Function{}
}

func (f *Function) String() string {
	if f.Name == nil {
		return "<script>"
	}
	return "<fn " + f.Name.Chars + ">"
}

// Kind reports this object's heap kind. Header.Kind returns whatever kind
// was set at construction, which for a zero-value Header defaults to
// ObjString (0) — so Function overrides it explicitly rather than relying
// on Header's promoted method.
func (f *Function) Kind() value.ObjKind { return value.ObjFunction }

// UpvalueDesc describes, for one upvalue slot of a Closure, whether it
// captures a local of the immediately enclosing function (IsLocal) or
// forwards one of that function's own upvalues, and the index to read it
// from.
type UpvalueDesc struct {
	Index   uint8
	IsLocal bool
}

// Closure pairs a compiled Function with the live Upvalue cells its nested
// functions (if any) captured from enclosing scopes.
type Closure struct {
	value.Header
	Function *Function
	Upvalues []*value.Upvalue
}

// NewClosure allocates a Closure over fn with upvalueCount empty upvalue
// slots, to be filled in by OP_CLOSURE as it processes each UpvalueDesc.
func NewClosure(fn *Function) *Closure {
	return &Closure{Upvalues: make([]*value.Upvalue, fn.UpvalueCount), Function: fn}
}

func (c *Closure) Kind() value.ObjKind { return value.ObjClosure }

func (c *Closure) String() string { return c.Function.String() }
