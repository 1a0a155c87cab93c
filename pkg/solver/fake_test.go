package solver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"smtproxy/pkg/smt"
)

// fakeBackend 可编程的命题后端,测试用
// 用穷举求解,通过failNext/misuseNext注入引擎崩溃与误用错误
type fakeBackend struct {
	vars   []string
	varIdx map[string]int

	failNext   int  // 接下来注入引擎崩溃的Check次数
	misuseNext bool // 下一次Check返回误用错误
	instances  int  // 已创建的实例数
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{varIdx: make(map[string]int)}
}

func (b *fakeBackend) Name() string { return "fake" }
func (b *fakeBackend) Close() error { return nil }

func (b *fakeBackend) NewInstance() (smt.Instance, error) {
	b.instances++
	return &fakeInstance{be: b, scopes: []*fakeScope{{}}}, nil
}

func (b *fakeBackend) BoolVar(name string) (smt.Term, error) {
	if _, ok := b.varIdx[name]; !ok {
		b.varIdx[name] = len(b.vars)
		b.vars = append(b.vars, name)
	}
	return &fakeTerm{be: b, text: name}, nil
}

func (b *fakeBackend) IntVar(name string) (smt.Term, error) {
	return nil, fmt.Errorf("%w: int variable on fake backend", smt.ErrUnsupported)
}

func (b *fakeBackend) RealVar(name string) (smt.Term, error) {
	return nil, fmt.Errorf("%w: real variable on fake backend", smt.ErrUnsupported)
}

func (b *fakeBackend) FuncDecl(name string, domain []smt.Sort, rng smt.Sort) (smt.FuncDecl, error) {
	return nil, fmt.Errorf("%w: uninterpreted function on fake backend", smt.ErrUnsupported)
}

// fakeTerm 表达式树节点
type fakeTerm struct {
	be   *fakeBackend
	op   string // 空为变量,"val"为字面值,其余为连接词
	text string
	kids []smt.Term
	val  bool
}

func (t *fakeTerm) Backend() smt.Backend { return t.be }
func (t *fakeTerm) Children() []smt.Term { return t.kids }
func (t *fakeTerm) IsValue() bool        { return t.op == "val" }
func (t *fakeTerm) String() string       { return t.text }

func (b *fakeBackend) mk(op string, ts ...smt.Term) (smt.Term, error) {
	for _, t := range ts {
		ft, ok := t.(*fakeTerm)
		if !ok || ft.be != b {
			return nil, smt.ContextMismatch(op)
		}
	}
	parts := make([]string, 0, len(ts)+1)
	parts = append(parts, op)
	for _, t := range ts {
		parts = append(parts, t.String())
	}
	return &fakeTerm{be: b, op: op, text: "(" + strings.Join(parts, " ") + ")", kids: ts}, nil
}

// BoolVal 实现smt.BoolBuilder
func (b *fakeBackend) BoolVal(v bool) (smt.Term, error) {
	return &fakeTerm{be: b, op: "val", text: fmt.Sprintf("%v", v), val: v}, nil
}

func (b *fakeBackend) Not(t smt.Term) (smt.Term, error) { return b.mk("not", t) }

func (b *fakeBackend) And(ts ...smt.Term) (smt.Term, error) { return b.mk("and", ts...) }

func (b *fakeBackend) Or(ts ...smt.Term) (smt.Term, error) { return b.mk("or", ts...) }

func (b *fakeBackend) Implies(a, c smt.Term) (smt.Term, error) { return b.mk("=>", a, c) }

func (b *fakeBackend) Iff(a, c smt.Term) (smt.Term, error) { return b.mk("=", a, c) }

// eval 在给定赋值下求值
func (t *fakeTerm) eval(asg map[string]bool) bool {
	switch t.op {
	case "val":
		return t.val
	case "not":
		return !t.kids[0].(*fakeTerm).eval(asg)
	case "and":
		for _, k := range t.kids {
			if !k.(*fakeTerm).eval(asg) {
				return false
			}
		}
		return true
	case "or":
		for _, k := range t.kids {
			if k.(*fakeTerm).eval(asg) {
				return true
			}
		}
		return false
	case "=>":
		return !t.kids[0].(*fakeTerm).eval(asg) || t.kids[1].(*fakeTerm).eval(asg)
	case "=":
		return t.kids[0].(*fakeTerm).eval(asg) == t.kids[1].(*fakeTerm).eval(asg)
	default:
		return asg[t.text]
	}
}

// fakeScope 一个断言作用域,tags与terms平行,空串表示未跟踪
type fakeScope struct {
	terms []smt.Term
	tags  []string
}

// fakeInstance 穷举求解的实例
type fakeInstance struct {
	be     *fakeBackend
	scopes []*fakeScope
	model  map[string]bool
	core   []string
	opts   map[string]interface{}
	checks int
	closed bool
}

func (in *fakeInstance) top() *fakeScope { return in.scopes[len(in.scopes)-1] }

func (in *fakeInstance) add(t smt.Term, tag string) error {
	ft, ok := t.(*fakeTerm)
	if !ok || ft.be != in.be {
		return smt.ContextMismatch("Assert")
	}
	in.top().terms = append(in.top().terms, t)
	in.top().tags = append(in.top().tags, tag)
	return nil
}

func (in *fakeInstance) Assert(t smt.Term) error { return in.add(t, "") }

func (in *fakeInstance) AssertTracked(t smt.Term, tag string) error { return in.add(t, tag) }

func (in *fakeInstance) Push() error {
	in.scopes = append(in.scopes, &fakeScope{})
	return nil
}

func (in *fakeInstance) Pop() error {
	if len(in.scopes) == 1 {
		return &smt.MisuseError{Op: "Pop", Reason: "scope stack is empty"}
	}
	in.scopes = in.scopes[:len(in.scopes)-1]
	return nil
}

func (in *fakeInstance) NumScopes() int { return len(in.scopes) - 1 }

func (in *fakeInstance) Assertions() ([]smt.Term, error) {
	var ts []smt.Term
	for _, sc := range in.scopes {
		ts = append(ts, sc.terms...)
	}
	return ts, nil
}

func (in *fakeInstance) Check() (smt.Result, error) {
	in.checks++
	if in.be.misuseNext {
		in.be.misuseNext = false
		return smt.Unknown, &smt.MisuseError{Op: "Check", Reason: "scripted misuse"}
	}
	if in.be.failNext > 0 {
		in.be.failNext--
		return smt.Unknown, &smt.EngineFault{Backend: "fake", Op: "Check", Err: errors.New("injected crash")}
	}

	ts, _ := in.Assertions()
	n := len(in.be.vars)
	for mask := 0; mask < 1<<n; mask++ {
		asg := make(map[string]bool, n)
		for i, name := range in.be.vars {
			asg[name] = mask&(1<<i) != 0
		}
		ok := true
		for _, t := range ts {
			if !t.(*fakeTerm).eval(asg) {
				ok = false
				break
			}
		}
		if ok {
			in.model = asg
			in.core = nil
			return smt.Sat, nil
		}
	}
	in.model = nil
	in.core = nil
	for _, sc := range in.scopes {
		for _, tag := range sc.tags {
			if tag != "" {
				in.core = append(in.core, tag)
			}
		}
	}
	return smt.Unsat, nil
}

func (in *fakeInstance) Model() (smt.Model, error) {
	if in.model == nil {
		return nil, &smt.MisuseError{Op: "Model", Reason: "no model available"}
	}
	names := make([]string, 0, len(in.model))
	for name := range in.model {
		names = append(names, name)
	}
	sort.Strings(names)
	return &fakeModel{names: names, vals: in.model}, nil
}

func (in *fakeInstance) UnsatCore() ([]string, error) {
	return append([]string(nil), in.core...), nil
}

func (in *fakeInstance) Statistics() (map[string]float64, error) {
	return map[string]float64{"checks": float64(in.checks)}, nil
}

func (in *fakeInstance) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder
	for i, sc := range in.scopes {
		if i > 0 {
			sb.WriteString("(push)\n")
		}
		for j, t := range sc.terms {
			if sc.tags[j] != "" {
				fmt.Fprintf(&sb, "(assert! %s)\n", t)
			} else {
				fmt.Fprintf(&sb, "(assert %s)\n", t)
			}
		}
	}
	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

// AssertFile 实现smt.FileLoader,每个非空行视为一个布尔变量断言
func (in *fakeInstance) AssertFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		t, err := in.be.BoolVar(line)
		if err != nil {
			return err
		}
		if err := in.Assert(t); err != nil {
			return err
		}
	}
	return nil
}

func (in *fakeInstance) SetOption(name string, value interface{}) error {
	if in.opts == nil {
		in.opts = make(map[string]interface{})
	}
	in.opts[name] = value
	return nil
}

func (in *fakeInstance) Close() error {
	in.closed = true
	return nil
}

// fakeModel 赋值快照
type fakeModel struct {
	names []string
	vals  map[string]bool
}

func (m *fakeModel) Names() []string { return m.names }

func (m *fakeModel) Value(name string) (smt.Value, bool) {
	v, ok := m.vals[name]
	if !ok {
		return nil, false
	}
	return v, true
}

func (m *fakeModel) String() string {
	var sb strings.Builder
	for _, name := range m.names {
		fmt.Fprintf(&sb, "%s = %v\n", name, m.vals[name])
	}
	return sb.String()
}
