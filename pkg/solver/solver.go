package solver

import (
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"strings"
	"time"

	"smtproxy/pkg/smt"
)

// ==================== 代理 ====================

// Proxy 求解器代理
// 持有一个委托求解器实例,所有断言同时记入本地日志
// Check遇到引擎内部错误时按日志重建实例并重试,对调用方透明
// 非并发安全,一个Proxy只应被一个goroutine使用
type Proxy struct {
	be   smt.Backend
	inst smt.Instance
	cfg  *Config
	log  *log.Logger

	// assertions 断言日志,只追加,与委托实例中的断言一一对应
	// 记录push时的下标以便重建时恢复作用域结构
	assertions []smt.Term
	declared   map[string]bool
	numTagged  int

	stats SolveStats
}

// NewProxy 创建求解器代理
// cfg为nil时使用默认配置,logger为nil时使用标准logger
func NewProxy(be smt.Backend, cfg *Config, logger *log.Logger) (*Proxy, error) {
	if be == nil {
		return nil, &smt.MisuseError{Op: "NewProxy", Reason: "backend is nil"}
	}
	if cfg == nil {
		cfg = DefaultConfig()
	} else {
		cfg.MergeWithDefaults()
	}
	if logger == nil {
		logger = log.Default()
	}

	inst, err := be.NewInstance()
	if err != nil {
		return nil, fmt.Errorf("failed to create solver instance: %w", err)
	}

	return &Proxy{
		be:       be,
		inst:     inst,
		cfg:      cfg,
		log:      logger,
		declared: make(map[string]bool),
	}, nil
}

// Backend 返回委托后端
// 调用方可断言为smt.Builder/smt.BoolBuilder构造表达式
func (p *Proxy) Backend() smt.Backend { return p.be }

// Instance 返回当前委托实例
// 重建后实例会更换,调用方不应长期持有返回值
func (p *Proxy) Instance() smt.Instance { return p.inst }

// Stats 返回求解统计快照
func (p *Proxy) Stats() SolveStats { return p.stats }

// AssertionLog 返回断言日志的副本
func (p *Proxy) AssertionLog() []smt.Term {
	out := make([]smt.Term, len(p.assertions))
	copy(out, p.assertions)
	return out
}

// Close 关闭代理与委托实例
// 后端的生命周期由调用方管理,此处不关闭
func (p *Proxy) Close() error {
	if p.inst != nil {
		err := p.inst.Close()
		p.inst = nil
		return err
	}
	return nil
}

// ==================== 变量声明 ====================

// checkContext 校验可选的上下文参数与本代理的后端一致
func (p *Proxy) checkContext(op string, ctx []smt.Backend) error {
	if len(ctx) > 0 && ctx[0] != nil && ctx[0] != p.be {
		return smt.ContextMismatch(op)
	}
	return nil
}

// Bool 声明布尔变量
// 可选参数用于显式指定后端,与代理后端不一致时报错
func (p *Proxy) Bool(name string, ctx ...smt.Backend) (smt.Term, error) {
	if err := p.checkContext("Bool", ctx); err != nil {
		return nil, err
	}
	t, err := p.be.BoolVar(name)
	if err != nil {
		return nil, err
	}
	p.declared[name] = true
	return t, nil
}

// Int 声明整数变量
func (p *Proxy) Int(name string, ctx ...smt.Backend) (smt.Term, error) {
	if err := p.checkContext("Int", ctx); err != nil {
		return nil, err
	}
	t, err := p.be.IntVar(name)
	if err != nil {
		return nil, err
	}
	p.declared[name] = true
	return t, nil
}

// Real 声明实数变量
func (p *Proxy) Real(name string, ctx ...smt.Backend) (smt.Term, error) {
	if err := p.checkContext("Real", ctx); err != nil {
		return nil, err
	}
	t, err := p.be.RealVar(name)
	if err != nil {
		return nil, err
	}
	p.declared[name] = true
	return t, nil
}

// Func 声明未解释函数
func (p *Proxy) Func(name string, domain []smt.Sort, rng smt.Sort, ctx ...smt.Backend) (smt.FuncDecl, error) {
	if err := p.checkContext("Func", ctx); err != nil {
		return nil, err
	}
	fd, err := p.be.FuncDecl(name, domain, rng)
	if err != nil {
		return nil, err
	}
	p.declared[name] = true
	return fd, nil
}

// ==================== 断言 ====================

// Add 添加断言
// RequireDeclared开启时,断言中出现未经声明的变量立即报错
// TrackUnsatCore开启时,以"<表达式>  :<序号>"为标签跟踪断言
func (p *Proxy) Add(t smt.Term) error {
	if t == nil {
		return &smt.MisuseError{Op: "Add", Reason: "nil term"}
	}
	if t.Backend() != p.be {
		return smt.ContextMismatch("Add")
	}

	if p.cfg.RequireDeclared {
		if err := p.checkDeclared(t); err != nil {
			return err
		}
	}

	if p.cfg.TrackUnsatCore {
		tag := fmt.Sprintf("%s  :%d", t.String(), p.numTagged)
		if err := p.inst.AssertTracked(t, tag); err != nil {
			return err
		}
		p.numTagged++
	} else {
		if err := p.inst.Assert(t); err != nil {
			return err
		}
	}

	p.assertions = append(p.assertions, t)
	return nil
}

// AddFile 从SMT-LIB2文件装载断言
// 文件先在一个临时实例中解析,再逐条经Add进入代理,使跟踪标签与断言
// 日志对装载的断言同样生效;后端不支持文件装载时返回ErrUnsupported
func (p *Proxy) AddFile(path string) error {
	scratch, err := p.be.NewInstance()
	if err != nil {
		return fmt.Errorf("failed to create parsing instance: %w", err)
	}
	defer scratch.Close()

	loader, ok := scratch.(smt.FileLoader)
	if !ok {
		return fmt.Errorf("%w: backend %s cannot load assertion files", smt.ErrUnsupported, p.be.Name())
	}
	if err := loader.AssertFile(path); err != nil {
		return err
	}
	ts, err := scratch.Assertions()
	if err != nil {
		return err
	}
	for _, t := range ts {
		if err := p.Add(t); err != nil {
			return err
		}
	}
	return nil
}

// checkDeclared 校验表达式中的变量都已声明
func (p *Proxy) checkDeclared(t smt.Term) error {
	var missing []string
	seen := make(map[string]bool)
	for _, v := range smt.ExtractVars(t) {
		if p.declared[v] || seen[v] {
			continue
		}
		seen[v] = true
		missing = append(missing, v)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &smt.UndeclaredVariableError{Vars: missing, Expr: t.String()}
	}
	return nil
}

// ==================== 求解 ====================

// Check 检查当前断言集的可满足性
// 引擎内部错误触发重试: 重建委托实例,重放断言日志,再次求解,
// 最多NumRetries次,重试耗尽后原样返回引擎错误
// 误用类错误不重试,直接返回
func (p *Proxy) Check() (smt.Result, error) {
	p.stats.TotalChecks++
	start := time.Now()
	// 成功与失败的返回路径都记录本次耗时
	record := func(attempt int) {
		elapsed := time.Since(start)
		p.stats.LastAttempts = attempt
		p.stats.LastCheckTime = elapsed
		p.stats.TotalCheckTime += elapsed
	}

	attempt := 0
	for {
		attempt++
		res, err := p.inst.Check()
		if err == nil {
			record(attempt)
			if attempt > 1 {
				p.log.Printf("[Proxy] solver returned %s in %.6f secs after %d attempts",
					res, p.stats.LastCheckTime.Seconds(), attempt)
			}
			return res, nil
		}

		if !smt.IsEngineFault(err) {
			// 误用或声明类错误,重试无意义
			record(attempt)
			return smt.Unknown, err
		}

		p.stats.FailedAttempts++
		p.log.Printf("[Proxy] solver threw error after %.6f secs on attempt %d: %v",
			time.Since(start).Seconds(), attempt, err)

		if attempt > p.cfg.NumRetries {
			record(attempt)
			return smt.Unknown, err
		}

		p.log.Printf("[Proxy] recreating solver and retrying")
		if rerr := p.recreate(); rerr != nil {
			record(attempt)
			return smt.Unknown, fmt.Errorf("failed to recreate solver: %w", rerr)
		}
	}
}

// recreate 重建委托实例并重放断言
// 通过逐层pop读出各作用域的断言边界,再在新实例上按相同结构重放
// 已知限制: 重放使用普通Assert,跟踪标签不保留;实例级参数无法从
// 引擎读回,新实例只带后端级配置
func (p *Proxy) recreate() error {
	all, err := p.inst.Assertions()
	if err != nil {
		return fmt.Errorf("failed to read assertions: %w", err)
	}
	numScopes := p.inst.NumScopes()

	// 从最深作用域向外pop,记录每层的断言数量
	counts := make([]int, 0, numScopes+1)
	counts = append(counts, len(all))
	for i := 0; i < numScopes; i++ {
		if err := p.inst.Pop(); err != nil {
			return fmt.Errorf("failed to pop scope during recreation: %w", err)
		}
		rest, err := p.inst.Assertions()
		if err != nil {
			return fmt.Errorf("failed to read assertions: %w", err)
		}
		counts = append(counts, len(rest))
	}
	// counts从深到浅,反转为从浅到深的作用域边界
	for i, j := 0, len(counts)-1; i < j; i, j = i+1, j-1 {
		counts[i], counts[j] = counts[j], counts[i]
	}

	fresh, err := p.be.NewInstance()
	if err != nil {
		return fmt.Errorf("failed to create fresh instance: %w", err)
	}

	replay := func(ts []smt.Term) error {
		for _, t := range ts {
			if err := fresh.Assert(t); err != nil {
				return err
			}
		}
		return nil
	}
	if err := replay(all[:counts[0]]); err != nil {
		fresh.Close()
		return fmt.Errorf("failed to replay assertions: %w", err)
	}
	for k := 1; k <= numScopes; k++ {
		if err := fresh.Push(); err != nil {
			fresh.Close()
			return fmt.Errorf("failed to push scope during replay: %w", err)
		}
		if err := replay(all[counts[k-1]:counts[k]]); err != nil {
			fresh.Close()
			return fmt.Errorf("failed to replay assertions: %w", err)
		}
	}

	p.inst.Close()
	p.inst = fresh
	p.stats.Recreations++
	return nil
}

// ==================== 作用域 ====================

// Push 压入新的断言作用域
func (p *Proxy) Push() error { return p.inst.Push() }

// Pop 弹出最近的断言作用域
func (p *Proxy) Pop() error { return p.inst.Pop() }

// NumScopes 返回当前作用域深度
func (p *Proxy) NumScopes() int { return p.inst.NumScopes() }

// ==================== 查询 ====================

// Model 返回最近一次Sat结果的模型
func (p *Proxy) Model() (smt.Model, error) { return p.inst.Model() }

// UnsatCore 返回最近一次Unsat结果的归因核标签
// 需要在构造时开启TrackUnsatCore,或在求解前SetOption("unsat_core", true)
func (p *Proxy) UnsatCore() ([]string, error) { return p.inst.UnsatCore() }

// Statistics 返回委托引擎的求解统计
func (p *Proxy) Statistics() (map[string]float64, error) { return p.inst.Statistics() }

// Assertions 返回委托实例中当前可见的断言
// 与AssertionLog不同,pop会使被弹出作用域的断言从这里消失
func (p *Proxy) Assertions() ([]smt.Term, error) { return p.inst.Assertions() }

// Format 将当前问题序列化写入w
// 输出格式由后端决定(Z3为SMT-LIB2,SAT为DIMACS)
func (p *Proxy) Format(w io.Writer) error {
	_, err := p.inst.WriteTo(w)
	return err
}

// Text 返回当前问题的序列化文本
func (p *Proxy) Text() (string, error) {
	var sb strings.Builder
	if err := p.Format(&sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// ==================== 参数 ====================

// SetOption 设置求解参数
// "unsat_core"由代理自身消费,控制断言跟踪开关;其余参数透传给
// 当前委托实例,实例重建后不保留
func (p *Proxy) SetOption(name string, value interface{}) error {
	if name == "unsat_core" {
		v, ok := value.(bool)
		if !ok {
			return &smt.MisuseError{Op: "SetOption", Reason: "unsat_core expects a bool value"}
		}
		if v && p.numTagged == 0 && len(p.assertions) > 0 {
			// 已有未跟踪的断言,此后开启跟踪只覆盖新断言
			p.log.Printf("[Proxy] unsat_core enabled after %d untracked assertions", len(p.assertions))
		}
		p.cfg.TrackUnsatCore = v
		return nil
	}
	err := p.inst.SetOption(name, value)
	if err != nil && errors.Is(err, smt.ErrUnsupported) {
		p.log.Printf("[Proxy] option %q not supported by backend %s", name, p.be.Name())
	}
	return err
}
