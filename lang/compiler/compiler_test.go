package compiler_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/chunk"
	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/value"
)

// fakeAlloc is a minimal compiler.Allocator for exercising the compiler in
// isolation from the VM: no GC, interning backed by a plain map.
type fakeAlloc struct {
	stack   []value.Value
	interns map[string]*value.String
}

func newFakeAlloc() *fakeAlloc {
	return &fakeAlloc{interns: map[string]*value.String{}}
}

func (a *fakeAlloc) Push(v value.Value) { a.stack = append(a.stack, v) }
func (a *fakeAlloc) Pop() value.Value {
	v := a.stack[len(a.stack)-1]
	a.stack = a.stack[:len(a.stack)-1]
	return v
}
func (a *fakeAlloc) Intern(chars string) *value.String {
	if s, ok := a.interns[chars]; ok {
		return s
	}
	s := value.NewString(chars)
	a.interns[chars] = s
	return s
}
func (a *fakeAlloc) NewFunction() *chunk.Function { return chunk.NewFunction() }

func compile(t *testing.T, src string) (*chunk.Function, error) {
	t.Helper()
	c := compiler.New(newFakeAlloc())
	return c.Compile(src)
}

func TestCompileValidPrograms(t *testing.T) {
	sources := []string{
		`print 1 + 2 * 3;`,
		`let x = 1; let y = 2; print x + y;`,
		`fun add(a, b) { return a + b; } print add(1, 2);`,
		`if (true) { print 1; } else { print 2; }`,
		`let i = 0; while (i < 3) { print i; i = i + 1; }`,
		`for (let i = 0; i < 3; i = i + 1) { print i; }`,
		`fun outer() { let x = 1; fun inner() { return x; } return inner; } print outer()();`,
		`print "a" + "b";`,
		`print 1 == 1 and 2 == 2;`,
		`print nil or false or 3;`,
	}
	for _, src := range sources {
		src := src
		t.Run(src, func(t *testing.T) {
			fn, err := compile(t, src)
			require.NoError(t, err)
			assert.NotNil(t, fn)
			assert.Nil(t, fn.Name)
		})
	}
}

func TestCompileErrorReturnAtTopLevel(t *testing.T) {
	_, err := compile(t, `return 1;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot return from global scope.")
}

func TestReturnInsideFunctionIsFine(t *testing.T) {
	_, err := compile(t, `fun f() { return 1; }`)
	require.NoError(t, err)
}

func TestCompileErrorTooManyLocals(t *testing.T) {
	var b strings.Builder
	b.WriteString("fun f() {\n")
	for i := 0; i < 257; i++ {
		b.WriteString("let v")
		b.WriteString(itoa(i))
		b.WriteString(" = 0;\n")
	}
	b.WriteString("}\n")

	_, err := compile(t, b.String())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Too many local variables in function.")
}

func TestCompileErrorInvalidAssignmentTarget(t *testing.T) {
	_, err := compile(t, `1 + 2 = 3;`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid assignment target.")
}

func TestCompileErrorMessageIncludesLineAndLexeme(t *testing.T) {
	_, err := compile(t, "let x = 1\nlet y = 2;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[line 2] Error at 'let'")
}

func TestCompileErrorUnterminatedString(t *testing.T) {
	_, err := compile(t, "print \"oops;")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unterminated string.")
}

func TestCompileSynchronizesAfterError(t *testing.T) {
	// The first statement is malformed; the second is fine. Synchronization
	// should let the compiler finish reporting only one error and still see
	// the whole program, not fail by panicking or truncating.
	_, err := compile(t, "let = ;\nprint 1;")
	require.Error(t, err)
	var compileErr *compiler.CompileError
	require.ErrorAs(t, err, &compileErr)
	assert.Len(t, compileErr.Messages, 1)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
