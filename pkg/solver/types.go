// Package solver SMT求解器代理
// 在委托求解器之上做记账: 断言日志、unsat core标签、崩溃重试与实例重建
// 本包不含任何求解算法,可满足性判定完全由后端引擎完成
package solver

import "time"

// ==================== 配置 ====================

// Config 代理配置
// 构造时设定,首次求解前可经SetOption调整
type Config struct {
	// TrackUnsatCore 为每条断言分配递增标签,unsat时可取回归因核
	TrackUnsatCore bool `yaml:"track_unsat_core" json:"track_unsat_core"`
	// NumRetries 引擎内部错误的重试次数,0使用默认值
	NumRetries int `yaml:"num_retries" json:"num_retries"`
	// RequireDeclared 开启后,Add拒绝引用未经声明辅助函数创建的变量
	RequireDeclared bool `yaml:"require_declared" json:"require_declared"`
}

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		TrackUnsatCore:  false,
		NumRetries:      1,
		RequireDeclared: false,
	}
}

// MergeWithDefaults 合并用户配置与默认配置
// 用于处理部分配置的情况
func (c *Config) MergeWithDefaults() {
	defaults := DefaultConfig()
	if c.NumRetries == 0 {
		c.NumRetries = defaults.NumRetries
	}
}

// ==================== 统计 ====================

// SolveStats 求解统计
type SolveStats struct {
	TotalChecks    int           // Check调用次数
	FailedAttempts int           // 引擎内部错误的尝试次数
	Recreations    int           // 实例重建次数
	LastAttempts   int           // 最近一次Check的尝试次数
	LastCheckTime  time.Duration // 最近一次Check耗时
	TotalCheckTime time.Duration // Check累计耗时
}
