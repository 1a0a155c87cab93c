package solver

import (
	"fmt"
	"math"
	"math/big"
	"sort"

	"smtproxy/pkg/smt"
)

// ==================== 小分母解搜索 ====================

// FindSmallDenomSoln 在可满足的约束系统上搜索"更多变量取小分母有理值"的解
// 引擎返回的模型常带巨大分母,难以人工检视;本搜索把每个大分母变量
// 约束到原值或其两侧分母不超过maxDenom的最近分数,再用二分搜索最大化
// 偏离原值的变量个数
// 整个过程在一个临时作用域内进行,返回前弹出并重新求解以恢复状态
func FindSmallDenomSoln(p *Proxy, maxDenom int64) (smt.Result, ModelDict, error) {
	if maxDenom < 2 {
		return smt.Unknown, nil, &smt.MisuseError{Op: "FindSmallDenomSoln", Reason: "maxDenom must be at least 2"}
	}
	if err := p.Push(); err != nil {
		return smt.Unknown, nil, err
	}
	res, m, err := findSmallDenomSoln(p, maxDenom)
	if perr := p.Pop(); perr != nil && err == nil {
		err = perr
	}
	// 弹出后重新求解,让模型与恢复后的断言集一致
	if _, cerr := p.Check(); cerr != nil && err == nil {
		err = cerr
	}
	return res, m, err
}

// exprBuilder 表达式构造的错误锁存封装
// 首个错误被记住,后续构造短路返回nil
type exprBuilder struct {
	b   smt.Builder
	err error
}

func (e *exprBuilder) do(t smt.Term, err error) smt.Term {
	if e.err == nil {
		e.err = err
	}
	if e.err != nil {
		return nil
	}
	return t
}

func findSmallDenomSoln(p *Proxy, maxDenom int64) (smt.Result, ModelDict, error) {
	builder, ok := p.Backend().(smt.Builder)
	if !ok {
		return smt.Unknown, nil, fmt.Errorf("%w: small-denominator search needs an arithmetic backend",
			smt.ErrUnsupported)
	}

	res, err := p.Check()
	if err != nil {
		return smt.Unknown, nil, err
	}
	if res != smt.Sat {
		return res, nil, nil
	}
	mdl, err := p.Model()
	if err != nil {
		return smt.Unknown, nil, err
	}
	base := ModelToDict(mdl)

	names := make([]string, 0, len(base))
	for name := range base {
		names = append(names, name)
	}
	sort.Strings(names)

	eb := &exprBuilder{b: builder}
	maxD := big.NewInt(maxDenom)
	one := big.NewInt(1)
	zeroT := eb.do(builder.IntVal(big.NewInt(0)))
	oneT := eb.do(builder.IntVal(one))

	// indicators 为每个大分母变量引入0/1指示变量: 取1当且仅当该变量偏离原值
	// 绑定不提供ite,用两分支的析取编码
	var indicators []smt.Term
	alreadySmall := 0
	for _, name := range names {
		val, ok := base[name].(*big.Rat)
		if !ok {
			continue
		}
		x, xerr := p.Real(name)
		if xerr != nil {
			return smt.Unknown, nil, xerr
		}
		valT := eb.do(builder.RatVal(val))
		eqVal := eb.do(builder.Eq(x, valT))

		if val.Denom().Cmp(maxD) <= 0 {
			alreadySmall++
			if eb.err == nil {
				if aerr := p.Add(eqVal); aerr != nil {
					return smt.Unknown, nil, aerr
				}
			}
			continue
		}

		// val两侧分母为maxDenom的最近分数
		num := ceilRat(new(big.Rat).Mul(val, new(big.Rat).SetInt(maxD)))
		hiFrac := new(big.Rat).SetFrac(num, maxD)
		loFrac := new(big.Rat).SetFrac(new(big.Int).Sub(num, one), maxD)

		choice := eb.do(builder.Or(
			eqVal,
			eb.do(builder.Eq(x, eb.do(builder.RatVal(loFrac)))),
			eb.do(builder.Eq(x, eb.do(builder.RatVal(hiFrac)))),
		))

		d, derr := p.Int(fmt.Sprintf("moved_%s", name))
		if derr != nil {
			return smt.Unknown, nil, derr
		}
		link := eb.do(builder.Or(
			eb.do(builder.And(eqVal, eb.do(builder.Eq(d, zeroT)))),
			eb.do(builder.And(eb.do(builder.Not(eqVal)), eb.do(builder.Eq(d, oneT)))),
		))
		if eb.err != nil {
			return smt.Unknown, nil, eb.err
		}
		if aerr := p.Add(choice); aerr != nil {
			return smt.Unknown, nil, aerr
		}
		if aerr := p.Add(link); aerr != nil {
			return smt.Unknown, nil, aerr
		}
		indicators = append(indicators, d)
	}
	if eb.err != nil {
		return smt.Unknown, nil, eb.err
	}
	if len(indicators) == 0 {
		p.log.Printf("[SmallDenom] all %d rational values already have denominator <= %d",
			alreadySmall, maxDenom)
		return res, base, nil
	}

	objective := eb.do(builder.Add(indicators...))
	if eb.err != nil {
		return smt.Unknown, nil, eb.err
	}

	// 二分搜索可偏离原值的变量个数,每个探测点在独立作用域内求解
	best := base
	bestMoved := 0
	search := NewBinarySearch(0, float64(len(indicators)), 1)
	for {
		pt, more := search.NextPt()
		if !more {
			break
		}
		k := int64(math.Round(pt))
		if err := p.Push(); err != nil {
			return smt.Unknown, nil, err
		}
		bound := eb.do(builder.Ge(objective, eb.do(builder.IntVal(big.NewInt(k)))))
		if eb.err == nil {
			err = p.Add(bound)
		} else {
			err = eb.err
		}
		var r smt.Result
		if err == nil {
			r, err = p.Check()
		}
		if err != nil {
			p.Pop()
			return smt.Unknown, nil, err
		}
		switch r {
		case smt.Sat:
			search.RegisterPt(pt, SearchSat)
			if int(k) > bestMoved {
				if mdl, merr := p.Model(); merr == nil {
					best = ModelToDict(mdl)
					bestMoved = int(k)
				}
			}
		case smt.Unsat:
			search.RegisterPt(pt, SearchUnsat)
		default:
			search.RegisterPt(pt, SearchUnknown)
		}
		if err := p.Pop(); err != nil {
			return smt.Unknown, nil, err
		}
	}

	p.log.Printf("[SmallDenom] rounded %d of %d large-denominator values (max denominator %d)",
		bestMoved, len(indicators), maxDenom)
	return res, best, nil
}

// ceilRat 有理数向上取整
func ceilRat(r *big.Rat) *big.Int {
	q, rem := new(big.Int).QuoRem(r.Num(), r.Denom(), new(big.Int))
	if rem.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
