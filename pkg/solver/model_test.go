package solver

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestModelToDict 测试模型快照转换
func TestModelToDict(t *testing.T) {
	m := &fakeModel{
		names: []string{"a", "b"},
		vals:  map[string]bool{"a": true, "b": false},
	}
	d := ModelToDict(m)
	require.Len(t, d, 2)

	av, ok := d.Bool("a")
	require.True(t, ok)
	assert.True(t, av)

	_, ok = d.Bool("missing")
	assert.False(t, ok)

	assert.Nil(t, ModelToDict(nil))
}

// TestModelDictRat 测试有理数读取与整数提升
func TestModelDictRat(t *testing.T) {
	d := ModelDict{
		"x": big.NewRat(1, 3),
		"n": big.NewInt(7),
		"b": true,
	}

	x, ok := d.Rat("x")
	require.True(t, ok)
	assert.Equal(t, "1/3", x.String())

	n, ok := d.Rat("n")
	require.True(t, ok)
	assert.Zero(t, n.Cmp(big.NewRat(7, 1)))

	_, ok = d.Rat("b")
	assert.False(t, ok)
}
