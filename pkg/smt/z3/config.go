// Package z3 基于Z3官方Go绑定的SMT后端
// 需要libz3,使用 -tags z3 构建启用,未启用时构造函数返回提示错误
package z3

import "time"

// Config Z3后端配置
// 上下文级参数,对该后端创建的所有实例生效,实例重建后依然保留
type Config struct {
	Timeout   string `yaml:"timeout" json:"timeout"`       // 求解超时,如"30s",空为不限
	Model     bool   `yaml:"model" json:"model"`           // 是否构造模型
	UnsatCore bool   `yaml:"unsat_core" json:"unsat_core"` // 是否启用unsat core支持
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Timeout:   "",
		Model:     true,
		UnsatCore: true,
	}
}

// GetTimeoutDuration 解析超时配置
// 为空或非法时返回0,表示不限制
func (c *Config) GetTimeoutDuration() time.Duration {
	if c.Timeout == "" {
		return 0
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0
	}
	return d
}
