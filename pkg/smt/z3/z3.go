//go:build z3
// +build z3

package z3

import (
	"errors"
	"fmt"
	"io"
	"math/big"
	"strconv"
	"strings"

	z3api "github.com/Z3Prover/z3/src/api/go"

	"smtproxy/pkg/smt"
)

// ==================== 后端 ====================

// Backend 一个Z3上下文
// 表达式构造挂在后端上,实例由同一上下文派生,因此重建实例时Term可直接重放
type Backend struct {
	cfg *Config
	ctx *z3api.Context
}

// NewBackend 创建Z3后端
func NewBackend(cfg *Config) (*Backend, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	z3cfg := z3api.NewConfig()
	z3cfg.SetParamValue("model", boolParam(cfg.Model))
	z3cfg.SetParamValue("unsat_core", boolParam(cfg.UnsatCore))
	ctx := z3api.NewContextWithConfig(z3cfg)
	if d := cfg.GetTimeoutDuration(); d > 0 {
		ctx.SetParam("timeout", strconv.FormatInt(d.Milliseconds(), 10))
	}
	return &Backend{cfg: cfg, ctx: ctx}, nil
}

func boolParam(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

// Name 实现smt.Backend
func (b *Backend) Name() string { return "z3" }

// Close 实现smt.Backend,句柄由绑定的finalizer回收
func (b *Backend) Close() error { return nil }

// NewInstance 实现smt.Backend
func (b *Backend) NewInstance() (smt.Instance, error) {
	return &Instance{be: b, s: b.ctx.NewSolver()}, nil
}

// BoolVar 实现smt.Backend
func (b *Backend) BoolVar(name string) (smt.Term, error) {
	return &term{be: b, expr: b.ctx.MkBoolConst(name)}, nil
}

// IntVar 实现smt.Backend
func (b *Backend) IntVar(name string) (smt.Term, error) {
	return &term{be: b, expr: b.ctx.MkIntConst(name)}, nil
}

// RealVar 实现smt.Backend
func (b *Backend) RealVar(name string) (smt.Term, error) {
	return &term{be: b, expr: b.ctx.MkRealConst(name)}, nil
}

// sort 转换理论类型
func (b *Backend) sort(s smt.Sort) (*z3api.Sort, error) {
	switch s {
	case smt.SortBool:
		return b.ctx.MkBoolSort(), nil
	case smt.SortInt:
		return b.ctx.MkIntSort(), nil
	case smt.SortReal:
		return b.ctx.MkRealSort(), nil
	default:
		return nil, fmt.Errorf("%w: sort %v", smt.ErrUnsupported, s)
	}
}

// FuncDecl 实现smt.Backend
func (b *Backend) FuncDecl(name string, domain []smt.Sort, rng smt.Sort) (smt.FuncDecl, error) {
	ds := make([]*z3api.Sort, 0, len(domain))
	for _, s := range domain {
		zs, err := b.sort(s)
		if err != nil {
			return nil, err
		}
		ds = append(ds, zs)
	}
	rs, err := b.sort(rng)
	if err != nil {
		return nil, err
	}
	decl := b.ctx.MkFuncDecl(b.ctx.MkStringSymbol(name), ds, rs)
	return &funcDecl{be: b, decl: decl, name: name, arity: len(domain)}, nil
}

// ==================== 表达式 ====================

// term Z3 AST句柄
// 子表达式在构造时记录,变量提取无需展开Z3内部结构
type term struct {
	be   *Backend
	expr *z3api.Expr
	kids []smt.Term
	val  bool
}

func (t *term) Backend() smt.Backend { return t.be }
func (t *term) Children() []smt.Term { return t.kids }
func (t *term) IsValue() bool        { return t.val }
func (t *term) String() string       { return t.expr.String() }

// funcDecl 未解释函数声明
type funcDecl struct {
	be    *Backend
	decl  *z3api.FuncDecl
	name  string
	arity int
}

func (f *funcDecl) Backend() smt.Backend { return f.be }
func (f *funcDecl) Name() string         { return f.name }
func (f *funcDecl) Arity() int           { return f.arity }

// Apply 实现smt.FuncDecl
func (f *funcDecl) Apply(args ...smt.Term) (smt.Term, error) {
	exprs, err := f.be.own("Apply", args...)
	if err != nil {
		return nil, err
	}
	return &term{be: f.be, expr: f.be.ctx.MkApp(f.decl, exprs...), kids: args}, nil
}

// own 校验Term属于本后端
func (b *Backend) own(op string, ts ...smt.Term) ([]*z3api.Expr, error) {
	exprs := make([]*z3api.Expr, 0, len(ts))
	for _, t := range ts {
		tt, ok := t.(*term)
		if !ok || tt.be != b {
			return nil, smt.ContextMismatch(op)
		}
		exprs = append(exprs, tt.expr)
	}
	return exprs, nil
}

// ==================== 表达式构造器 ====================

// BoolVal 实现smt.Builder
func (b *Backend) BoolVal(v bool) (smt.Term, error) {
	return &term{be: b, expr: b.ctx.MkBool(v), val: true}, nil
}

// IntVal 实现smt.Builder
func (b *Backend) IntVal(v *big.Int) (smt.Term, error) {
	return &term{be: b, expr: b.ctx.MkNumeral(v.String(), b.ctx.MkIntSort()), val: true}, nil
}

// RatVal 实现smt.Builder
func (b *Backend) RatVal(v *big.Rat) (smt.Term, error) {
	return &term{be: b, expr: b.ctx.MkNumeral(v.RatString(), b.ctx.MkRealSort()), val: true}, nil
}

func (b *Backend) nary(op string, mk func(...*z3api.Expr) *z3api.Expr, ts []smt.Term) (smt.Term, error) {
	exprs, err := b.own(op, ts...)
	if err != nil {
		return nil, err
	}
	return &term{be: b, expr: mk(exprs...), kids: ts}, nil
}

func (b *Backend) binary(op string, mk func(x, y *z3api.Expr) *z3api.Expr, x, y smt.Term) (smt.Term, error) {
	exprs, err := b.own(op, x, y)
	if err != nil {
		return nil, err
	}
	return &term{be: b, expr: mk(exprs[0], exprs[1]), kids: []smt.Term{x, y}}, nil
}

// Not 实现smt.Builder
func (b *Backend) Not(t smt.Term) (smt.Term, error) {
	exprs, err := b.own("Not", t)
	if err != nil {
		return nil, err
	}
	return &term{be: b, expr: b.ctx.MkNot(exprs[0]), kids: []smt.Term{t}}, nil
}

// And 实现smt.Builder
func (b *Backend) And(ts ...smt.Term) (smt.Term, error) {
	return b.nary("And", b.ctx.MkAnd, ts)
}

// Or 实现smt.Builder
func (b *Backend) Or(ts ...smt.Term) (smt.Term, error) {
	return b.nary("Or", b.ctx.MkOr, ts)
}

// Implies 实现smt.Builder
func (b *Backend) Implies(x, y smt.Term) (smt.Term, error) {
	return b.binary("Implies", b.ctx.MkImplies, x, y)
}

// Iff 实现smt.Builder
func (b *Backend) Iff(x, y smt.Term) (smt.Term, error) {
	return b.binary("Iff", b.ctx.MkIff, x, y)
}

// Add 实现smt.Builder
func (b *Backend) Add(ts ...smt.Term) (smt.Term, error) {
	return b.nary("Add", b.ctx.MkAdd, ts)
}

// Sub 实现smt.Builder
func (b *Backend) Sub(ts ...smt.Term) (smt.Term, error) {
	return b.nary("Sub", b.ctx.MkSub, ts)
}

// Mul 实现smt.Builder
func (b *Backend) Mul(ts ...smt.Term) (smt.Term, error) {
	return b.nary("Mul", b.ctx.MkMul, ts)
}

// Div 实现smt.Builder
func (b *Backend) Div(x, y smt.Term) (smt.Term, error) {
	return b.binary("Div", b.ctx.MkDiv, x, y)
}

// Eq 实现smt.Builder
func (b *Backend) Eq(x, y smt.Term) (smt.Term, error) {
	return b.binary("Eq", b.ctx.MkEq, x, y)
}

// Lt 实现smt.Builder
func (b *Backend) Lt(x, y smt.Term) (smt.Term, error) {
	return b.binary("Lt", b.ctx.MkLt, x, y)
}

// Le 实现smt.Builder
func (b *Backend) Le(x, y smt.Term) (smt.Term, error) {
	return b.binary("Le", b.ctx.MkLe, x, y)
}

// Gt 实现smt.Builder
func (b *Backend) Gt(x, y smt.Term) (smt.Term, error) {
	return b.binary("Gt", b.ctx.MkGt, x, y)
}

// Ge 实现smt.Builder
func (b *Backend) Ge(x, y smt.Term) (smt.Term, error) {
	return b.binary("Ge", b.ctx.MkGe, x, y)
}

// ==================== 实例 ====================

// Instance 一个Z3求解器
type Instance struct {
	be *Backend
	s  *z3api.Solver
}

// Assert 实现smt.Instance
func (in *Instance) Assert(t smt.Term) error {
	exprs, err := in.be.own("Assert", t)
	if err != nil {
		return err
	}
	in.s.Assert(exprs[0])
	return nil
}

// AssertTracked 实现smt.Instance
func (in *Instance) AssertTracked(t smt.Term, tag string) error {
	exprs, err := in.be.own("AssertTracked", t)
	if err != nil {
		return err
	}
	in.s.AssertAndTrack(exprs[0], in.be.ctx.MkBoolConst(tag))
	return nil
}

// Push 实现smt.Instance
func (in *Instance) Push() error {
	in.s.Push()
	return nil
}

// Pop 实现smt.Instance
func (in *Instance) Pop() error {
	if in.s.NumScopes() == 0 {
		return &smt.MisuseError{Op: "Pop", Reason: "scope stack is empty"}
	}
	in.s.Pop(1)
	return nil
}

// NumScopes 实现smt.Instance
func (in *Instance) NumScopes() int { return int(in.s.NumScopes()) }

// Assertions 实现smt.Instance
// 返回的Term是从Z3读回的不透明句柄,仅用于列举与重放,不携带子表达式结构
func (in *Instance) Assertions() ([]smt.Term, error) {
	exprs := in.s.Assertions()
	ts := make([]smt.Term, 0, len(exprs))
	for _, e := range exprs {
		ts = append(ts, &term{be: in.be, expr: e})
	}
	return ts, nil
}

// Check 实现smt.Instance
// unknown结果携带引擎内部错误迹象时转换为EngineFault交由代理重试
func (in *Instance) Check() (smt.Result, error) {
	switch in.s.Check() {
	case z3api.Satisfiable:
		return smt.Sat, nil
	case z3api.Unsatisfiable:
		return smt.Unsat, nil
	default:
		reason := in.s.ReasonUnknown()
		if faultReason(reason) {
			return smt.Unknown, &smt.EngineFault{Backend: "z3", Op: "Check", Err: errors.New(reason)}
		}
		return smt.Unknown, nil
	}
}

// faultReason 区分正常的unknown(超时/不完备)与引擎内部崩溃
func faultReason(reason string) bool {
	r := strings.ToLower(reason)
	return strings.Contains(r, "error") ||
		strings.Contains(r, "exception") ||
		strings.Contains(r, "tactic failed")
}

// Model 实现smt.Instance
func (in *Instance) Model() (smt.Model, error) {
	m := in.s.Model()
	if m == nil {
		return nil, &smt.MisuseError{Op: "Model", Reason: "no model available (last check was not sat)"}
	}
	return &model{m: m}, nil
}

// UnsatCore 实现smt.Instance
// Z3打印含空格的标签时会带竖线引号,去掉以还原原始标签
func (in *Instance) UnsatCore() ([]string, error) {
	core := in.s.UnsatCore()
	tags := make([]string, 0, len(core))
	for _, e := range core {
		tags = append(tags, strings.Trim(e.String(), "|"))
	}
	return tags, nil
}

// Statistics 实现smt.Instance
func (in *Instance) Statistics() (map[string]float64, error) {
	st := in.s.GetStatistics()
	out := make(map[string]float64, st.Size())
	for i := 0; i < st.Size(); i++ {
		if st.IsUint(i) {
			out[st.GetKey(i)] = float64(st.GetUintValue(i))
		} else if st.IsDouble(i) {
			out[st.GetKey(i)] = st.GetDoubleValue(i)
		}
	}
	return out, nil
}

// WriteTo 实现smt.Instance,输出SMT-LIB2文本
func (in *Instance) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, in.s.String())
	return int64(n), err
}

// SetOption 实现smt.Instance
// 实例级参数,重建后不保留(引擎不支持参数读回)
func (in *Instance) SetOption(name string, value interface{}) error {
	params := in.be.ctx.MkParams()
	switch v := value.(type) {
	case bool:
		params.SetBool(name, v)
	case int:
		params.SetUint(name, uint(v))
	case uint:
		params.SetUint(name, v)
	case float64:
		params.SetDouble(name, v)
	case string:
		params.SetSymbol(name, in.be.ctx.MkStringSymbol(v))
	default:
		return &smt.MisuseError{Op: "SetOption", Reason: fmt.Sprintf("unsupported option value type %T", value)}
	}
	in.s.SetParams(params)
	return nil
}

// AssertFile 实现smt.FileLoader,装载SMT-LIB2文件
func (in *Instance) AssertFile(path string) error {
	in.s.FromFile(path)
	return nil
}

// Close 实现smt.Instance,句柄由绑定的finalizer回收
func (in *Instance) Close() error { return nil }

// ==================== 模型 ====================

// model Z3模型包装
type model struct {
	m *z3api.Model
}

func (m *model) Names() []string {
	n := int(m.m.NumConsts())
	names := make([]string, 0, n)
	for i := 0; i < n; i++ {
		names = append(names, m.m.GetConstDecl(uint(i)).GetName().String())
	}
	return names
}

func (m *model) Value(name string) (smt.Value, bool) {
	n := int(m.m.NumConsts())
	for i := 0; i < n; i++ {
		decl := m.m.GetConstDecl(uint(i))
		if decl.GetName().String() != name {
			continue
		}
		interp := m.m.GetConstInterp(decl)
		if interp == nil {
			return nil, false
		}
		return parseValue(interp.String()), true
	}
	return nil, false
}

func (m *model) String() string { return m.m.String() }

// parseValue 把Z3数值文本转换为Go值
// 覆盖 true/false、整数、有理数"a/b"、小数、前缀负号"(- x)"与除式"(/ a b)"
func parseValue(s string) smt.Value {
	s = strings.TrimSpace(s)
	switch s {
	case "true":
		return true
	case "false":
		return false
	}
	if strings.HasPrefix(s, "(- ") && strings.HasSuffix(s, ")") {
		inner := parseValue(s[3 : len(s)-1])
		switch v := inner.(type) {
		case *big.Int:
			return v.Neg(v)
		case *big.Rat:
			return v.Neg(v)
		default:
			return s
		}
	}
	if strings.HasPrefix(s, "(/ ") && strings.HasSuffix(s, ")") {
		parts := strings.Fields(s[3 : len(s)-1])
		if len(parts) == 2 {
			num, nok := new(big.Rat).SetString(strings.TrimSuffix(parts[0], ".0"))
			den, dok := new(big.Rat).SetString(strings.TrimSuffix(parts[1], ".0"))
			if nok && dok && den.Sign() != 0 {
				return num.Quo(num, den)
			}
		}
		return s
	}
	if v, ok := new(big.Int).SetString(s, 10); ok {
		return v
	}
	if v, ok := new(big.Rat).SetString(s); ok {
		return v
	}
	return s
}
