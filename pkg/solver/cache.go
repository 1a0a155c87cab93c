package solver

import (
	"crypto/sha256"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"smtproxy/pkg/smt"
)

// DefaultCacheSize 默认缓存容量
const DefaultCacheSize = 1000

// CachedResult 缓存条目: 求解结果与模型快照
type CachedResult struct {
	Result smt.Result
	Model  ModelDict
}

// QueryCache 查询缓存
// 以序列化后的问题文本摘要为键,命中时跳过求解直接返回历史结果
// 只缓存确定性结果,求解出错不入缓存
type QueryCache struct {
	cache *lru.Cache[string, CachedResult]
}

// NewQueryCache 创建查询缓存,size不为正时使用默认容量
func NewQueryCache(size int) (*QueryCache, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, CachedResult](size)
	if err != nil {
		return nil, err
	}
	return &QueryCache{cache: c}, nil
}

// Check 求解当前问题,优先命中缓存
// 问题无法序列化时退化为直接求解
func (qc *QueryCache) Check(p *Proxy) (smt.Result, ModelDict, error) {
	text, err := p.Text()
	if err != nil {
		return checkAndSnapshot(p)
	}
	key := fmt.Sprintf("%x", sha256.Sum256([]byte(text)))

	if hit, ok := qc.cache.Get(key); ok {
		return hit.Result, hit.Model, nil
	}

	res, m, err := checkAndSnapshot(p)
	if err != nil {
		return res, m, err
	}
	qc.cache.Add(key, CachedResult{Result: res, Model: m})
	return res, m, nil
}

// Len 返回缓存中的条目数
func (qc *QueryCache) Len() int { return qc.cache.Len() }

// Purge 清空缓存
func (qc *QueryCache) Purge() { qc.cache.Purge() }

func checkAndSnapshot(p *Proxy) (smt.Result, ModelDict, error) {
	res, err := p.Check()
	if err != nil {
		return res, nil, err
	}
	var m ModelDict
	if res == smt.Sat {
		if mdl, merr := p.Model(); merr == nil {
			m = ModelToDict(mdl)
		}
	}
	return res, m, nil
}
