package smt

import "math/big"

// BoolBuilder 命题逻辑表达式构造能力
// 仅支持布尔理论的后端(如SAT后端)实现此接口
type BoolBuilder interface {
	// BoolVal 构造布尔字面值
	BoolVal(v bool) (Term, error)
	Not(t Term) (Term, error)
	And(ts ...Term) (Term, error)
	Or(ts ...Term) (Term, error)
	Implies(a, b Term) (Term, error)
	Iff(a, b Term) (Term, error)
}

// Builder 完整算术理论的表达式构造能力
// 设计对应gosmt的ExprBuilder: 表达式构造挂在上下文上,与求解器实例分离
type Builder interface {
	BoolBuilder

	// IntVal 构造整数常量
	IntVal(v *big.Int) (Term, error)
	// RatVal 构造有理数常量
	RatVal(v *big.Rat) (Term, error)

	Add(ts ...Term) (Term, error)
	Sub(ts ...Term) (Term, error)
	Mul(ts ...Term) (Term, error)
	Div(a, b Term) (Term, error)

	Eq(a, b Term) (Term, error)
	Lt(a, b Term) (Term, error)
	Le(a, b Term) (Term, error)
	Gt(a, b Term) (Term, error)
	Ge(a, b Term) (Term, error)
}
