package vm_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/compiler"
	"github.com/emberlang/ember/lang/vm"
)

func run(t *testing.T, src string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	machine := vm.New(&out)
	err := machine.Interpret(src)
	return out.String(), err
}

func TestArithmeticPrecedence(t *testing.T) {
	out, err := run(t, `print 1 + 2 * 3;`)
	require.NoError(t, err)
	assert.Equal(t, "7\n", out)
}

func TestStringConcatenation(t *testing.T) {
	out, err := run(t, `print "foo" + "bar";`)
	require.NoError(t, err)
	assert.Equal(t, "foobar\n", out)
}

func TestGlobalsAndAssignment(t *testing.T) {
	out, err := run(t, `let x = 1; x = x + 1; print x;`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)
}

func TestClosureCounter(t *testing.T) {
	src := `
fun makeCounter() {
    let count = 0;
    fun increment() {
        count = count + 1;
        return count;
    }
    return increment;
}
let counter = makeCounter();
print counter();
print counter();
print counter();
`
	out, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n3\n", out)
}

func TestBlockScopingShadowsOuter(t *testing.T) {
	src := `
let x = "x";
{
    let x = "y";
    print x;
}
print x;
`
	out, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, "y\nx\n", out)
}

func TestIfElseAndLogicalOperators(t *testing.T) {
	out, err := run(t, `if (1 < 2 and 2 < 3) { print "yes"; } else { print "no"; }`)
	require.NoError(t, err)
	assert.Equal(t, "yes\n", out)
}

func TestWhileLoop(t *testing.T) {
	src := `
let i = 0;
while (i < 3) {
    print i;
    i = i + 1;
}
`
	out, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestForLoop(t *testing.T) {
	src := `for (let i = 0; i < 3; i = i + 1) { print i; }`
	out, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, "0\n1\n2\n", out)
}

func TestRecursiveFunction(t *testing.T) {
	src := `
fun fib(n) {
    if (n < 2) { return n; }
    return fib(n - 1) + fib(n - 2);
}
print fib(10);
`
	out, err := run(t, src)
	require.NoError(t, err)
	assert.Equal(t, "55\n", out)
}

func TestNativeClockReturnsANumber(t *testing.T) {
	out, err := run(t, `print clock() >= 0;`)
	require.NoError(t, err)
	assert.Equal(t, "true\n", out)
}

func TestReturnAtTopLevelIsCompileError(t *testing.T) {
	_, err := run(t, `return 1;`)
	require.Error(t, err)
	var compileErr *compiler.CompileError
	assert.ErrorAs(t, err, &compileErr)
}

func TestAssigningUndeclaredGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `x = 1;`)
	require.Error(t, err)
	var runtimeErr *vm.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, runtimeErr.Error(), "Undefined variable 'x'.")
}

func TestReadingUndeclaredGlobalIsRuntimeError(t *testing.T) {
	_, err := run(t, `print x;`)
	require.Error(t, err)
	var runtimeErr *vm.RuntimeError
	assert.ErrorAs(t, err, &runtimeErr)
}

func TestCallingNonFunctionIsRuntimeError(t *testing.T) {
	_, err := run(t, `let x = 1; x();`)
	require.Error(t, err)
	var runtimeErr *vm.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, runtimeErr.Error(), "Can only call functions and classes.")
}

func TestArityMismatchIsRuntimeError(t *testing.T) {
	_, err := run(t, `fun f(a, b) { return a + b; } f(1);`)
	require.Error(t, err)
	var runtimeErr *vm.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, runtimeErr.Error(), "Expected 2 arguments but got 1.")
}

func TestTypeMismatchInArithmeticIsRuntimeError(t *testing.T) {
	_, err := run(t, `print 1 + "a";`)
	require.Error(t, err)
	var runtimeErr *vm.RuntimeError
	require.ErrorAs(t, err, &runtimeErr)
	assert.Contains(t, runtimeErr.Error(), "Operands must be two numbers or two strings.")
}

func TestRuntimeErrorIncludesStackTrace(t *testing.T) {
	src := `
fun inner() { return 1 + "a"; }
fun outer() { return inner(); }
outer();
`
	_, err := run(t, src)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in inner")
	assert.Contains(t, err.Error(), "in outer")
	assert.Contains(t, err.Error(), "in script")
}

func TestStringInterningIdentity(t *testing.T) {
	machine := vm.New(&bytes.Buffer{})
	a := machine.Intern("shared")
	b := machine.Intern("shared")
	assert.Same(t, a, b)
}

func TestDeterministicOutputAcrossRuns(t *testing.T) {
	src := `
fun fib(n) {
    if (n < 2) { return n; }
    return fib(n - 1) + fib(n - 2);
}
print fib(15);
`
	out1, err1 := run(t, src)
	require.NoError(t, err1)
	out2, err2 := run(t, src)
	require.NoError(t, err2)
	assert.Equal(t, out1, out2)
}

func TestGCStressDoesNotCorruptExecution(t *testing.T) {
	var out bytes.Buffer
	machine := vm.New(&out)
	machine.SetStressGC(true)

	src := `
fun makeCounter() {
    let count = 0;
    fun increment() {
        count = count + 1;
        return count;
    }
    return increment;
}
let a = makeCounter();
let b = makeCounter();
print a();
print a();
print b();
print a();
`
	err := machine.Interpret(src)
	require.NoError(t, err)
	assert.Equal(t, "1\n2\n1\n3\n", out.String())
}
