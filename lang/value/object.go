package value

// ObjKind tags the variant of a heap Object.
type ObjKind uint8

const (
	ObjString ObjKind = iota
	ObjFunction
	ObjNative
	ObjClosure
	ObjUpvalue
)

func (k ObjKind) String() string {
	switch k {
	case ObjString:
		return "string"
	case ObjFunction:
		return "function"
	case ObjNative:
		return "native"
	case ObjClosure:
		return "closure"
	case ObjUpvalue:
		return "upvalue"
	default:
		return "unknown"
	}
}

// Object is any heap-allocated value: String, Function, Native, Closure or
// Upvalue. Every object carries a kind tag, a GC mark bit, and a next link
// forming the VM's single intrusive list of all live heap objects. Kind,
// Marked, SetMarked, Next and SetNext are provided by embedding Header, so
// Function and Closure (defined in package chunk) satisfy this interface
// without needing to live in this package.
type Object interface {
	Kind() ObjKind
	Marked() bool
	SetMarked(bool)
	Next() Object
	SetNext(Object)
	// String returns the value's display representation, as printed by the
	// print statement or used in string concatenation.
	String() string
}

// Header is the common heap-object bookkeeping embedded by every concrete
// Object implementation.
type Header struct {
	kind   ObjKind
	marked bool
	next   Object
}

func (h *Header) Kind() ObjKind    { return h.kind }
func (h *Header) Marked() bool     { return h.marked }
func (h *Header) SetMarked(m bool) { h.marked = m }
func (h *Header) Next() Object     { return h.next }
func (h *Header) SetNext(o Object) { h.next = o }

// String is an immutable, interned byte sequence. Its FNV-1a hash is
// computed once at creation. Two Strings with equal bytes never coexist:
// the VM's string table canonicalizes them, so string equality reduces to
// pointer identity.
type String struct {
	Header
	Chars string
	Hash  uint32
}

// NewString allocates a new String object wrapping chars. It does not
// consult or update any intern table — callers (the VM) are responsible for
// interning via the string table so that the no-duplicates invariant holds.
func NewString(chars string) *String {
	return &String{Header: Header{kind: ObjString}, Chars: chars, Hash: HashString(chars)}
}

func (s *String) String() string { return s.Chars }

// HashString computes the 32-bit FNV-1a hash of s, the algorithm used both
// to key String objects and to probe the VM's hash tables.
func HashString(s string) uint32 {
	var hash uint32 = 2166136261
	for i := 0; i < len(s); i++ {
		hash ^= uint32(s[i])
		hash *= 16777619
	}
	return hash
}

// NativeFn is the signature of a native (built-in) callable: it receives the
// argument count and a slice of exactly that many arguments, and returns a
// result or a runtime error.
type NativeFn func(argCount int, args []Value) (Value, error)

// Native wraps a host-implemented function so it can be called like any
// other Ember function.
type Native struct {
	Header
	Name string
	Fn   NativeFn
}

// NewNative allocates a Native object.
func NewNative(name string, fn NativeFn) *Native {
	return &Native{Header: Header{kind: ObjNative}, Name: name, Fn: fn}
}

func (n *Native) String() string { return "<native fn " + n.Name + ">" }

// Upvalue is a heap-resident cell shared between a closure and the
// enclosing variable. While OPEN it aliases a live slot on the operand
// stack (identified by Slot); once CLOSED it owns its own Value storage and
// Slot is no longer meaningful. This merges the source's pointer-based
// open/closed cell into an explicit tagged variant, per the redesign notes:
// reading and writing dispatch on the Closed tag, and Close transitions a
// cell exactly once.
type Upvalue struct {
	Header
	Closed bool
	Slot   int // index into the owning VM's operand stack, while open
	value  Value
}

// NewOpenUpvalue allocates an Upvalue aliasing the given stack slot.
func NewOpenUpvalue(slot int) *Upvalue {
	return &Upvalue{Header: Header{kind: ObjUpvalue}, Slot: slot}
}

func (u *Upvalue) String() string { return "upvalue" }

// Get returns the upvalue's current value, reading through to the operand
// stack if still open.
func (u *Upvalue) Get(stack []Value) Value {
	if u.Closed {
		return u.value
	}
	return stack[u.Slot]
}

// Set writes the upvalue's current value, writing through to the operand
// stack if still open.
func (u *Upvalue) Set(stack []Value, v Value) {
	if u.Closed {
		u.value = v
		return
	}
	stack[u.Slot] = v
}

// Close copies the upvalue's current stack slot into its own storage and
// marks it CLOSED. It is a no-op if already closed.
func (u *Upvalue) Close(stack []Value) {
	if u.Closed {
		return
	}
	u.value = stack[u.Slot]
	u.Closed = true
}
