// Package smt 定义求解引擎的抽象边界
// 外部SMT/SAT求解器被视为黑盒,所有求解能力通过Backend/Instance接口接入
package smt

import (
	"io"
	"math/big"
)

// ==================== 求解结果 ====================

// Result 可满足性检查结果
// 取值约定与底层引擎一致: 1=sat, -1=unsat, 0=unknown
type Result int

const (
	Unsat   Result = -1
	Unknown Result = 0
	Sat     Result = 1
)

// String 返回结果的标准文本表示
func (r Result) String() string {
	switch r {
	case Sat:
		return "sat"
	case Unsat:
		return "unsat"
	default:
		return "unknown"
	}
}

// ==================== 类型与表达式 ====================

// Sort 变量类型
type Sort int

const (
	SortBool Sort = iota
	SortInt
	SortReal
)

// String 返回类型名称
func (s Sort) String() string {
	names := []string{"Bool", "Int", "Real"}
	if int(s) < len(names) {
		return names[s]
	}
	return "Unknown"
}

// Term 引擎持有的公式句柄
// Term由调用方通过后端的表达式构造器创建,代理只保存引用
// Children/IsValue 用于通用的叶子变量提取,不要求后端暴露内部AST
type Term interface {
	// Backend 返回创建该Term的后端(求解上下文)
	Backend() Backend
	// Children 返回直接子表达式,叶子返回空
	Children() []Term
	// IsValue 字面值(数值常量或true/false)返回true
	IsValue() bool
	// String 返回可读文本形式,叶子变量返回变量名
	String() string
}

// FuncDecl 未解释函数声明
type FuncDecl interface {
	Backend() Backend
	Name() string
	Arity() int
	// Apply 构造函数应用项,参数必须属于同一后端
	Apply(args ...Term) (Term, error)
}

// ==================== 引擎边界 ====================

// Backend 一个独立的求解上下文(universe)
// 两个不同的Backend值即两个互不相容的上下文,跨上下文混用Term属于调用方错误
type Backend interface {
	// Name 后端名称,用于日志与报告
	Name() string
	// NewInstance 创建一个新的委托求解器实例
	NewInstance() (Instance, error)

	// 类型化变量构造器,同名同类型变量在同一后端内指向同一Term
	BoolVar(name string) (Term, error)
	IntVar(name string) (Term, error)
	RealVar(name string) (Term, error)
	// FuncDecl 声明未解释函数
	FuncDecl(name string, domain []Sort, rng Sort) (FuncDecl, error)

	// Close 释放后端资源
	Close() error
}

// Instance 一个活跃的委托求解器
// 代理的重建协议依赖 Assertions/NumScopes/Pop 能从实例自身读回断言结构
type Instance interface {
	// Assert 压入一条断言
	Assert(t Term) error
	// AssertTracked 压入一条带标签的断言,标签用于unsat core归因
	AssertTracked(t Term, tag string) error

	// Push 开启一个新的断言作用域
	Push() error
	// Pop 弹出最近的作用域,空栈时返回错误
	Pop() error
	// NumScopes 当前作用域深度
	NumScopes() int
	// Assertions 按压入顺序返回当前可见的全部断言
	Assertions() ([]Term, error)

	// Check 执行可满足性检查
	// 引擎内部崩溃以*EngineFault返回,其余错误不可重试
	Check() (Result, error)
	// Model 返回最近一次sat结果的模型
	Model() (Model, error)
	// UnsatCore 返回最近一次unsat结果涉及的断言标签
	UnsatCore() ([]string, error)
	// Statistics 返回引擎统计指标
	Statistics() (map[string]float64, error)

	// WriteTo 以引擎的标准文本格式序列化当前问题
	WriteTo(w io.Writer) (int64, error)
	// SetOption 设置实例级参数,重建后不保留
	SetOption(name string, value interface{}) error

	// Close 释放实例资源
	Close() error
}

// ==================== 模型 ====================

// Value 模型中变量的取值
// 具体类型为 bool、*big.Int、*big.Rat 之一,无法解释的取值退化为string
type Value interface{}

// Model 一次sat检查得到的满足赋值
type Model interface {
	// Names 返回模型中所有有解释的常量名
	Names() []string
	// Value 查询某个常量的取值
	Value(name string) (Value, bool)
	// String 返回模型的文本形式
	String() string
}

// ==================== 可选能力 ====================

// FileLoader 支持从SMT-LIB2文件装载断言的实例能力
type FileLoader interface {
	AssertFile(path string) error
}

// RatValue 便捷函数,构造有理数模型值
func RatValue(num, den int64) *big.Rat { return big.NewRat(num, den) }
