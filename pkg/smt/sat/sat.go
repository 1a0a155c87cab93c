// Package sat 基于gini SAT求解器的命题逻辑后端
// 纯Go实现,无需cgo,作用域与unsat core通过假设文字(assumption literal)实现:
//   - 每个作用域持有一个激活文字act,作用域内断言编码为子句(¬act ∨ root)
//   - 带标签断言各持有一个跟踪文字,unsat时由Why返回的失败假设映射回标签
//
// pop只是停止假设对应作用域的激活文字,其子句从此惰性失效,这是增量SAT的
// 标准做法,求解本身完全委托给gini
package sat

import (
	"fmt"
	"io"
	"sort"
	"strings"

	gini "github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"

	"smtproxy/pkg/smt"
)

// ==================== 后端 ====================

// Backend 一个命题逻辑求解上下文
// 共享一个logic.C电路作为表达式宇宙,实例各自持有独立的gini求解器
type Backend struct {
	c     *logic.C
	vars  map[string]z.Lit // 变量名 -> 电路输入文字
	names []string         // 声明顺序
}

// NewBackend 创建命题逻辑后端
func NewBackend() *Backend {
	return &Backend{
		c:    logic.NewC(),
		vars: make(map[string]z.Lit),
	}
}

// Name 实现smt.Backend
func (b *Backend) Name() string { return "sat/gini" }

// Close 实现smt.Backend,无需释放资源
func (b *Backend) Close() error { return nil }

// BoolVar 声明布尔变量,同名变量复用同一电路输入
func (b *Backend) BoolVar(name string) (smt.Term, error) {
	lit, ok := b.vars[name]
	if !ok {
		lit = b.c.Lit()
		b.vars[name] = lit
		b.names = append(b.names, name)
	}
	return &term{be: b, lit: lit, text: name}, nil
}

// IntVar 实现smt.Backend,命题后端不支持整数理论
func (b *Backend) IntVar(name string) (smt.Term, error) {
	return nil, fmt.Errorf("%w: int variable %q on sat backend", smt.ErrUnsupported, name)
}

// RealVar 实现smt.Backend,命题后端不支持实数理论
func (b *Backend) RealVar(name string) (smt.Term, error) {
	return nil, fmt.Errorf("%w: real variable %q on sat backend", smt.ErrUnsupported, name)
}

// FuncDecl 实现smt.Backend,命题后端不支持未解释函数
func (b *Backend) FuncDecl(name string, domain []smt.Sort, rng smt.Sort) (smt.FuncDecl, error) {
	return nil, fmt.Errorf("%w: uninterpreted function %q on sat backend", smt.ErrUnsupported, name)
}

// ==================== 表达式 ====================

// term 电路文字的句柄
type term struct {
	be   *Backend
	lit  z.Lit
	text string
	kids []smt.Term
	val  bool
}

func (t *term) Backend() smt.Backend { return t.be }
func (t *term) Children() []smt.Term { return t.kids }
func (t *term) IsValue() bool        { return t.val }
func (t *term) String() string       { return t.text }

// own 校验Term属于本后端
func (b *Backend) own(op string, ts ...smt.Term) ([]z.Lit, error) {
	lits := make([]z.Lit, 0, len(ts))
	for _, t := range ts {
		tt, ok := t.(*term)
		if !ok || tt.be != b {
			return nil, smt.ContextMismatch(op)
		}
		lits = append(lits, tt.lit)
	}
	return lits, nil
}

func sexpr(op string, ts []smt.Term) string {
	parts := make([]string, 0, len(ts)+1)
	parts = append(parts, op)
	for _, t := range ts {
		parts = append(parts, t.String())
	}
	return "(" + strings.Join(parts, " ") + ")"
}

// BoolVal 实现smt.BoolBuilder
func (b *Backend) BoolVal(v bool) (smt.Term, error) {
	lit := b.c.F
	text := "false"
	if v {
		lit = b.c.T
		text = "true"
	}
	return &term{be: b, lit: lit, text: text, val: true}, nil
}

// Not 实现smt.BoolBuilder
func (b *Backend) Not(t smt.Term) (smt.Term, error) {
	lits, err := b.own("Not", t)
	if err != nil {
		return nil, err
	}
	return &term{be: b, lit: lits[0].Not(), text: sexpr("not", []smt.Term{t}), kids: []smt.Term{t}}, nil
}

// And 实现smt.BoolBuilder
func (b *Backend) And(ts ...smt.Term) (smt.Term, error) {
	lits, err := b.own("And", ts...)
	if err != nil {
		return nil, err
	}
	return &term{be: b, lit: b.c.Ands(lits...), text: sexpr("and", ts), kids: ts}, nil
}

// Or 实现smt.BoolBuilder
func (b *Backend) Or(ts ...smt.Term) (smt.Term, error) {
	lits, err := b.own("Or", ts...)
	if err != nil {
		return nil, err
	}
	return &term{be: b, lit: b.c.Ors(lits...), text: sexpr("or", ts), kids: ts}, nil
}

// Implies 实现smt.BoolBuilder
func (b *Backend) Implies(a, c smt.Term) (smt.Term, error) {
	lits, err := b.own("Implies", a, c)
	if err != nil {
		return nil, err
	}
	return &term{be: b, lit: b.c.Implies(lits[0], lits[1]), text: sexpr("=>", []smt.Term{a, c}), kids: []smt.Term{a, c}}, nil
}

// Iff 实现smt.BoolBuilder
func (b *Backend) Iff(a, c smt.Term) (smt.Term, error) {
	lits, err := b.own("Iff", a, c)
	if err != nil {
		return nil, err
	}
	return &term{be: b, lit: b.c.Xor(lits[0], lits[1]).Not(), text: sexpr("=", []smt.Term{a, c}), kids: []smt.Term{a, c}}, nil
}

// ==================== 实例 ====================

// trackedAssert 带标签断言与其跟踪文字
type trackedAssert struct {
	lit z.Lit
	tag string
}

// scope 一个断言作用域
type scope struct {
	act     z.Lit
	terms   []smt.Term
	tracked []trackedAssert
}

// Instance 一个活跃的gini求解器
type Instance struct {
	be      *Backend
	g       *gini.Gini
	scopes  []*scope
	clauses [][]z.Lit // 已压入子句的镜像,用于DIMACS序列化
	maxVar  z.Var     // 已进入求解器的最大变量,界定模型查询范围
	lastWhy []string  // 最近一次unsat的core标签
	checks  int
}

// NewInstance 实现smt.Backend
func (b *Backend) NewInstance() (smt.Instance, error) {
	in := &Instance{
		be: b,
		g:  gini.New(),
	}
	// 约束电路的真值锚点,使BoolVal(false)的断言可判为unsat
	in.addClause(b.c.T)
	in.scopes = []*scope{{act: b.c.Lit()}}
	return in, nil
}

// addClause 向gini压入一条子句并记录镜像
func (in *Instance) addClause(ms ...z.Lit) {
	for _, m := range ms {
		in.g.Add(m)
		in.sawLit(m)
	}
	in.g.Add(z.LitNull)
	in.clauses = append(in.clauses, append([]z.Lit(nil), ms...))
}

// sawLit 记录已进入求解器的变量上界
func (in *Instance) sawLit(m z.Lit) {
	if v := m.Var(); v > in.maxVar {
		in.maxVar = v
	}
}

// recordingAdder 把Tseitin子句同时写入求解器与镜像
type recordingAdder struct {
	in  *Instance
	cur []z.Lit
}

func (r *recordingAdder) Add(m z.Lit) {
	r.in.g.Add(m)
	if m == z.LitNull {
		r.in.clauses = append(r.in.clauses, append([]z.Lit(nil), r.cur...))
		r.cur = r.cur[:0]
		return
	}
	r.in.sawLit(m)
	r.cur = append(r.cur, m)
}

// top 当前作用域
func (in *Instance) top() *scope { return in.scopes[len(in.scopes)-1] }

// Assert 实现smt.Instance
func (in *Instance) Assert(t smt.Term) error {
	lits, err := in.be.own("Assert", t)
	if err != nil {
		return err
	}
	root := lits[0]
	in.be.c.ToCnfFrom(&recordingAdder{in: in}, root)
	in.addClause(in.top().act.Not(), root)
	in.top().terms = append(in.top().terms, t)
	return nil
}

// AssertTracked 实现smt.Instance
// 跟踪文字在Check时作为假设,unsat core即失败假设的标签集合
func (in *Instance) AssertTracked(t smt.Term, tag string) error {
	lits, err := in.be.own("AssertTracked", t)
	if err != nil {
		return err
	}
	root := lits[0]
	in.be.c.ToCnfFrom(&recordingAdder{in: in}, root)
	tr := in.be.c.Lit()
	in.addClause(tr.Not(), root)
	in.top().terms = append(in.top().terms, t)
	in.top().tracked = append(in.top().tracked, trackedAssert{lit: tr, tag: tag})
	return nil
}

// Push 实现smt.Instance
func (in *Instance) Push() error {
	in.scopes = append(in.scopes, &scope{act: in.be.c.Lit()})
	return nil
}

// Pop 实现smt.Instance
// 弹出的作用域激活文字从此不再被假设,其子句惰性失效
func (in *Instance) Pop() error {
	if len(in.scopes) == 1 {
		return &smt.MisuseError{Op: "Pop", Reason: "scope stack is empty"}
	}
	in.scopes = in.scopes[:len(in.scopes)-1]
	return nil
}

// NumScopes 实现smt.Instance
func (in *Instance) NumScopes() int { return len(in.scopes) - 1 }

// Assertions 实现smt.Instance
func (in *Instance) Assertions() ([]smt.Term, error) {
	var ts []smt.Term
	for _, sc := range in.scopes {
		ts = append(ts, sc.terms...)
	}
	return ts, nil
}

// Check 实现smt.Instance
// gini不会抛内部错误,因此命题后端永不产生EngineFault
func (in *Instance) Check() (smt.Result, error) {
	in.checks++
	var ms []z.Lit
	for _, sc := range in.scopes {
		ms = append(ms, sc.act)
		for _, tr := range sc.tracked {
			ms = append(ms, tr.lit)
		}
	}
	in.g.Assume(ms...)
	switch in.g.Solve() {
	case 1:
		in.lastWhy = nil
		return smt.Sat, nil
	case -1:
		why := in.g.Why(nil)
		var tags []string
		for _, m := range why {
			for _, sc := range in.scopes {
				for _, tr := range sc.tracked {
					if tr.lit == m {
						tags = append(tags, tr.tag)
					}
				}
			}
		}
		in.lastWhy = tags
		return smt.Unsat, nil
	default:
		return smt.Unknown, nil
	}
}

// UnsatCore 实现smt.Instance
func (in *Instance) UnsatCore() ([]string, error) {
	return append([]string(nil), in.lastWhy...), nil
}

// Model 实现smt.Instance
// 快照当前赋值,仅在上一次Check为sat时有意义
// 只包含已进入本实例的变量: 声明后从未被断言的变量对gini是未知的,
// 直接查询其取值会越界
func (in *Instance) Model() (smt.Model, error) {
	vals := make(map[string]bool, len(in.be.vars))
	names := make([]string, 0, len(in.be.vars))
	for name, lit := range in.be.vars {
		if lit.Var() > in.maxVar {
			continue
		}
		vals[name] = in.g.Value(lit)
		names = append(names, name)
	}
	sort.Strings(names)
	return &model{names: names, vals: vals}, nil
}

// Statistics 实现smt.Instance
// gini不暴露内部统计,返回适配层计数
func (in *Instance) Statistics() (map[string]float64, error) {
	ast, _ := in.Assertions()
	return map[string]float64{
		"vars":       float64(len(in.be.vars)),
		"clauses":    float64(len(in.clauses)),
		"scopes":     float64(in.NumScopes()),
		"assertions": float64(len(ast)),
		"checks":     float64(in.checks),
	}, nil
}

// WriteTo 实现smt.Instance,输出gini可读取的DIMACS格式
func (in *Instance) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	maxVar := 0
	for _, cl := range in.clauses {
		for _, m := range cl {
			if v := int(m.Var()); v > maxVar {
				maxVar = v
			}
		}
	}
	for _, name := range in.be.names {
		fmt.Fprintf(&sb, "c var %d = %s\n", int(in.be.vars[name].Var()), name)
	}
	fmt.Fprintf(&sb, "p cnf %d %d\n", maxVar, len(in.clauses))
	for _, cl := range in.clauses {
		for _, m := range cl {
			fmt.Fprintf(&sb, "%d ", m.Dimacs())
		}
		sb.WriteString("0\n")
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// SetOption 实现smt.Instance,gini无实例级参数
func (in *Instance) SetOption(name string, value interface{}) error {
	return fmt.Errorf("%w: option %q on sat backend", smt.ErrUnsupported, name)
}

// Close 实现smt.Instance
func (in *Instance) Close() error { return nil }

// ==================== 模型 ====================

// model 布尔赋值快照
type model struct {
	names []string
	vals  map[string]bool
}

func (m *model) Names() []string { return m.names }

func (m *model) Value(name string) (smt.Value, bool) {
	v, ok := m.vals[name]
	if !ok {
		return nil, false
	}
	return v, true
}

func (m *model) String() string {
	var sb strings.Builder
	for _, name := range m.names {
		fmt.Fprintf(&sb, "%s = %v\n", name, m.vals[name])
	}
	return sb.String()
}
