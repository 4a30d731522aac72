package value_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberlang/ember/lang/value"
)

func TestValueConstructorsAndPredicates(t *testing.T) {
	assert.True(t, value.Nil.IsNil())
	assert.True(t, value.Bool(true).IsBool())
	assert.True(t, value.Bool(true).AsBool())
	assert.True(t, value.Number(3.5).IsNumber())
	assert.Equal(t, 3.5, value.Number(3.5).AsNumber())

	s := value.NewString("hi")
	v := value.FromObject(s)
	assert.True(t, v.IsObject())
	assert.True(t, v.IsString())
	assert.Same(t, s, v.AsString())
}

func TestIsFalsey(t *testing.T) {
	assert.True(t, value.Nil.IsFalsey())
	assert.True(t, value.Bool(false).IsFalsey())
	assert.False(t, value.Bool(true).IsFalsey())
	assert.False(t, value.Number(0).IsFalsey())
	assert.False(t, value.FromObject(value.NewString("")).IsFalsey())
}

func TestEqual(t *testing.T) {
	assert.True(t, value.Equal(value.Nil, value.Nil))
	assert.True(t, value.Equal(value.Number(1), value.Number(1)))
	assert.False(t, value.Equal(value.Number(1), value.Number(2)))
	assert.False(t, value.Equal(value.Nil, value.Bool(false)))

	a := value.FromObject(value.NewString("x"))
	b := value.FromObject(value.NewString("x"))
	assert.False(t, value.Equal(a, b), "distinct String objects are not equal even with the same bytes")

	s := value.NewString("x")
	assert.True(t, value.Equal(value.FromObject(s), value.FromObject(s)))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "nil", value.Nil.String())
	assert.Equal(t, "true", value.Bool(true).String())
	assert.Equal(t, "false", value.Bool(false).String())
	assert.Equal(t, "1.5", value.Number(1.5).String())
	assert.Equal(t, "3", value.Number(3).String())
}

func TestHashStringIsDeterministic(t *testing.T) {
	require.Equal(t, value.HashString("hello"), value.HashString("hello"))
	assert.NotEqual(t, value.HashString("hello"), value.HashString("world"))
}

func TestUpvalueOpenClose(t *testing.T) {
	stack := []value.Value{value.Number(1), value.Number(2), value.Number(3)}
	uv := value.NewOpenUpvalue(1)

	assert.Equal(t, value.Number(2), uv.Get(stack))

	uv.Set(stack, value.Number(42))
	assert.Equal(t, value.Number(42), stack[1])

	uv.Close(stack)
	stack[1] = value.Number(0) // closing must have copied the value out
	assert.Equal(t, value.Number(42), uv.Get(stack))

	uv.Set(stack, value.Number(7))
	assert.Equal(t, value.Number(0), stack[1], "a closed upvalue no longer writes through to the stack")
}
