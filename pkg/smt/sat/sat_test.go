package sat

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smtproxy/pkg/smt"
)

// TestScopedSolving 测试作用域内断言的压入与弹出
func TestScopedSolving(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)
	defer in.Close()

	a, err := be.BoolVar("a")
	require.NoError(t, err)
	notA, err := be.Not(a)
	require.NoError(t, err)

	// 基础作用域: a
	require.NoError(t, in.Assert(a))
	res, err := in.Check()
	require.NoError(t, err)
	assert.Equal(t, smt.Sat, res)

	// push后加入矛盾断言: ¬a
	require.NoError(t, in.Push())
	assert.Equal(t, 1, in.NumScopes())
	require.NoError(t, in.Assert(notA))
	res, err = in.Check()
	require.NoError(t, err)
	assert.Equal(t, smt.Unsat, res)

	// pop恢复可满足
	require.NoError(t, in.Pop())
	assert.Equal(t, 0, in.NumScopes())
	res, err = in.Check()
	require.NoError(t, err)
	assert.Equal(t, smt.Sat, res)
}

// TestPopEmptyStack 测试空作用域栈上pop报错
func TestPopEmptyStack(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	err = in.Pop()
	var misuse *smt.MisuseError
	assert.ErrorAs(t, err, &misuse)
}

// TestAssertions 测试断言列表按作用域顺序返回
func TestAssertions(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	a, _ := be.BoolVar("a")
	b, _ := be.BoolVar("b")
	c, _ := be.BoolVar("c")

	require.NoError(t, in.Assert(a))
	require.NoError(t, in.Push())
	require.NoError(t, in.Assert(b))
	require.NoError(t, in.Assert(c))

	ts, err := in.Assertions()
	require.NoError(t, err)
	require.Len(t, ts, 3)
	assert.Equal(t, "a", ts[0].String())
	assert.Equal(t, "b", ts[1].String())
	assert.Equal(t, "c", ts[2].String())

	// pop后内层断言不再可见
	require.NoError(t, in.Pop())
	ts, err = in.Assertions()
	require.NoError(t, err)
	require.Len(t, ts, 1)
	assert.Equal(t, "a", ts[0].String())
}

// TestUnsatCore 测试带标签断言的unsat core归因
func TestUnsatCore(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	a, _ := be.BoolVar("a")
	b, _ := be.BoolVar("b")
	notA, _ := be.Not(a)

	require.NoError(t, in.AssertTracked(a, "t0"))
	require.NoError(t, in.AssertTracked(b, "t1"))
	require.NoError(t, in.AssertTracked(notA, "t2"))

	res, err := in.Check()
	require.NoError(t, err)
	require.Equal(t, smt.Unsat, res)

	core, err := in.UnsatCore()
	require.NoError(t, err)
	assert.NotEmpty(t, core)
	// core只含参与矛盾的标签,b与矛盾无关
	for _, tag := range core {
		assert.Contains(t, []string{"t0", "t1", "t2"}, tag)
	}
	assert.NotContains(t, core, "t1")
}

// TestModel 测试sat后的模型取值
func TestModel(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	a, _ := be.BoolVar("a")
	b, _ := be.BoolVar("b")
	notB, _ := be.Not(b)
	conj, err := be.And(a, notB)
	require.NoError(t, err)
	require.NoError(t, in.Assert(conj))

	res, err := in.Check()
	require.NoError(t, err)
	require.Equal(t, smt.Sat, res)

	m, err := in.Model()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, m.Names())

	av, ok := m.Value("a")
	require.True(t, ok)
	assert.Equal(t, true, av)
	bv, ok := m.Value("b")
	require.True(t, ok)
	assert.Equal(t, false, bv)
	assert.Contains(t, m.String(), "a = true")
}

// TestModelSkipsUnassertedVars 测试模型不包含求解器从未见过的变量
func TestModelSkipsUnassertedVars(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	a, _ := be.BoolVar("a")
	require.NoError(t, in.Assert(a))
	res, err := in.Check()
	require.NoError(t, err)
	require.Equal(t, smt.Sat, res)

	// 声明于最后一次断言之后,实例对它一无所知
	_, err = be.BoolVar("zz")
	require.NoError(t, err)

	m, err := in.Model()
	require.NoError(t, err)
	assert.NotContains(t, m.Names(), "zz")
	_, ok := m.Value("zz")
	assert.False(t, ok)

	av, ok := m.Value("a")
	require.True(t, ok)
	assert.Equal(t, true, av)
}

// TestBuilderOperations 测试命题表达式构造
func TestBuilderOperations(t *testing.T) {
	be := NewBackend()

	a, _ := be.BoolVar("a")
	b, _ := be.BoolVar("b")

	t.Run("TextForm", func(t *testing.T) {
		impl, err := be.Implies(a, b)
		require.NoError(t, err)
		assert.Equal(t, "(=> a b)", impl.String())

		iff, err := be.Iff(a, b)
		require.NoError(t, err)
		assert.Equal(t, "(= a b)", iff.String())
	})

	t.Run("ChildrenForExtraction", func(t *testing.T) {
		notA, _ := be.Not(a)
		disj, err := be.Or(notA, b)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, smt.ExtractVars(disj))
	})

	t.Run("ImpliesSemantics", func(t *testing.T) {
		in, err := be.NewInstance()
		require.NoError(t, err)
		impl, _ := be.Implies(a, b)
		notB, _ := be.Not(b)
		require.NoError(t, in.Assert(impl))
		require.NoError(t, in.Assert(a))
		require.NoError(t, in.Assert(notB))
		res, err := in.Check()
		require.NoError(t, err)
		assert.Equal(t, smt.Unsat, res)
	})

	t.Run("FalseLiteral", func(t *testing.T) {
		in, err := be.NewInstance()
		require.NoError(t, err)
		f, err := be.BoolVal(false)
		require.NoError(t, err)
		assert.True(t, f.IsValue())
		require.NoError(t, in.Assert(f))
		res, err := in.Check()
		require.NoError(t, err)
		assert.Equal(t, smt.Unsat, res)
	})
}

// TestUnsupportedTheories 测试算术理论请求被拒绝
func TestUnsupportedTheories(t *testing.T) {
	be := NewBackend()

	_, err := be.IntVar("x")
	assert.ErrorIs(t, err, smt.ErrUnsupported)
	_, err = be.RealVar("y")
	assert.ErrorIs(t, err, smt.ErrUnsupported)
	_, err = be.FuncDecl("f", []smt.Sort{smt.SortBool}, smt.SortBool)
	assert.ErrorIs(t, err, smt.ErrUnsupported)

	in, err := be.NewInstance()
	require.NoError(t, err)
	assert.ErrorIs(t, in.SetOption("timeout", 1000), smt.ErrUnsupported)
}

// TestContextIsolation 测试跨后端混用Term被拒绝
func TestContextIsolation(t *testing.T) {
	be1 := NewBackend()
	be2 := NewBackend()

	a, err := be1.BoolVar("a")
	require.NoError(t, err)

	_, err = be2.Not(a)
	var misuse *smt.MisuseError
	require.True(t, errors.As(err, &misuse))

	in, err := be2.NewInstance()
	require.NoError(t, err)
	err = in.Assert(a)
	require.True(t, errors.As(err, &misuse))
}

// TestDimacsOutput 测试DIMACS序列化
func TestDimacsOutput(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	a, _ := be.BoolVar("a")
	b, _ := be.BoolVar("b")
	disj, _ := be.Or(a, b)
	require.NoError(t, in.Assert(disj))

	var sb strings.Builder
	n, err := in.WriteTo(&sb)
	require.NoError(t, err)
	out := sb.String()
	assert.Equal(t, int64(len(out)), n)
	assert.Contains(t, out, "p cnf")
	assert.Contains(t, out, "c var")
	assert.Contains(t, out, "= a")
	// 每条子句以0结尾
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.HasPrefix(line, "c") || strings.HasPrefix(line, "p") {
			continue
		}
		assert.True(t, strings.HasSuffix(line, "0"), "clause line %q must end with 0", line)
	}
}

// TestStatistics 测试适配层统计计数
func TestStatistics(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	a, _ := be.BoolVar("a")
	require.NoError(t, in.Assert(a))
	_, err = in.Check()
	require.NoError(t, err)
	_, err = in.Check()
	require.NoError(t, err)

	stats, err := in.Statistics()
	require.NoError(t, err)
	assert.Equal(t, float64(2), stats["checks"])
	assert.Equal(t, float64(1), stats["assertions"])
	assert.Equal(t, float64(1), stats["vars"])
}

// TestSameNameSameVar 测试同名变量复用同一电路输入
func TestSameNameSameVar(t *testing.T) {
	be := NewBackend()
	in, err := be.NewInstance()
	require.NoError(t, err)

	a1, _ := be.BoolVar("a")
	a2, _ := be.BoolVar("a")
	notA2, _ := be.Not(a2)

	require.NoError(t, in.Assert(a1))
	require.NoError(t, in.Assert(notA2))
	res, err := in.Check()
	require.NoError(t, err)
	assert.Equal(t, smt.Unsat, res)
}
