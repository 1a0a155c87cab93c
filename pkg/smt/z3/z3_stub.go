//go:build !z3
// +build !z3

package z3

import (
	"errors"

	"smtproxy/pkg/smt"
)

var errUnavailable = errors.New("z3 backend not available - rebuild with '-tags z3' to enable")

// Backend Z3后端(stub版本 - Z3未启用)
type Backend struct{}

// NewBackend 创建Z3后端(stub - 返回错误)
func NewBackend(cfg *Config) (*Backend, error) {
	return nil, errUnavailable
}

// Name 实现smt.Backend(stub)
func (b *Backend) Name() string { return "z3" }

// Close 实现smt.Backend(stub)
func (b *Backend) Close() error { return nil }

// NewInstance 实现smt.Backend(stub - 返回错误)
func (b *Backend) NewInstance() (smt.Instance, error) {
	return nil, errUnavailable
}

// BoolVar 实现smt.Backend(stub - 返回错误)
func (b *Backend) BoolVar(name string) (smt.Term, error) {
	return nil, errUnavailable
}

// IntVar 实现smt.Backend(stub - 返回错误)
func (b *Backend) IntVar(name string) (smt.Term, error) {
	return nil, errUnavailable
}

// RealVar 实现smt.Backend(stub - 返回错误)
func (b *Backend) RealVar(name string) (smt.Term, error) {
	return nil, errUnavailable
}

// FuncDecl 实现smt.Backend(stub - 返回错误)
func (b *Backend) FuncDecl(name string, domain []smt.Sort, rng smt.Sort) (smt.FuncDecl, error) {
	return nil, errUnavailable
}
