package solver

import (
	"math/big"

	"smtproxy/pkg/smt"
)

// ModelDict 模型快照
// 与引擎实例解绑的变量到取值的映射,实例重建或关闭后仍然可用
type ModelDict map[string]smt.Value

// ModelToDict 将引擎模型转换为快照
func ModelToDict(m smt.Model) ModelDict {
	if m == nil {
		return nil
	}
	d := make(ModelDict)
	for _, name := range m.Names() {
		if v, ok := m.Value(name); ok {
			d[name] = v
		}
	}
	return d
}

// Bool 按布尔值取出
func (d ModelDict) Bool(name string) (bool, bool) {
	v, ok := d[name].(bool)
	return v, ok
}

// Rat 按有理数取出,整数值自动提升
func (d ModelDict) Rat(name string) (*big.Rat, bool) {
	switch v := d[name].(type) {
	case *big.Rat:
		return v, true
	case *big.Int:
		return new(big.Rat).SetInt(v), true
	}
	return nil, false
}
