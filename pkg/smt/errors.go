package smt

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupported 后端不支持所请求的理论或操作
var ErrUnsupported = errors.New("operation not supported by backend")

// EngineFault 引擎内部错误
// 对应委托求解器在check过程中抛出的内部异常,属于可恢复错误:
// 代理会在重试预算内重建求解器并重放断言,预算耗尽后原样上抛
type EngineFault struct {
	Backend string // 后端名称
	Op      string // 出错的操作
	Err     error  // 引擎原始错误
}

// Error 实现error接口
func (e *EngineFault) Error() string {
	return fmt.Sprintf("engine fault in %s during %s: %v", e.Backend, e.Op, e.Err)
}

// Unwrap 返回引擎原始错误
func (e *EngineFault) Unwrap() error { return e.Err }

// IsEngineFault 判断错误链上是否存在引擎内部错误
func IsEngineFault(err error) bool {
	var f *EngineFault
	return errors.As(err, &f)
}

// MisuseError 调用方使用错误
// 例如跨上下文混用Term、空作用域栈上pop,始终致命,绝不重试
type MisuseError struct {
	Op     string
	Reason string
}

// Error 实现error接口
func (e *MisuseError) Error() string {
	return fmt.Sprintf("solver misuse in %s: %s", e.Op, e.Reason)
}

// ContextMismatch 构造跨上下文使用的MisuseError
func ContextMismatch(op string) *MisuseError {
	return &MisuseError{Op: op, Reason: "term belongs to a different solving context"}
}

// UndeclaredVariableError 表达式引用了未经声明辅助函数创建的变量
// 仅在Config.RequireDeclared开启时由Add返回
type UndeclaredVariableError struct {
	Vars []string // 未声明的变量名
	Expr string   // 表达式文本
}

// Error 实现error接口
func (e *UndeclaredVariableError) Error() string {
	return fmt.Sprintf("undeclared variables [%s] in %s", strings.Join(e.Vars, ", "), e.Expr)
}
