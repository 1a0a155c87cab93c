package solver

import "math"

// ==================== 二分搜索 ====================

// SearchOutcome 探测点的求解结果
type SearchOutcome int

const (
	SearchSat     SearchOutcome = 1
	SearchUnknown SearchOutcome = 2
	SearchUnsat   SearchOutcome = 3
)

// BinarySearch 三值二分搜索
// 在[lo, hi]上寻找sat与unsat的边界: 约定小的目标值sat,大的unsat,
// 中间可能存在一段unknown带,搜索在带两侧分别收敛到精度eps
type BinarySearch struct {
	lo  float64 // 已确认sat的下界
	hi  float64 // 已确认unsat的上界
	eps float64

	// unknown带,hasUnknown为false时为空
	hasUnknown bool
	uLo, uHi   float64
}

// NewBinarySearch 创建搜索,初始认为lo可满足,hi不可满足
func NewBinarySearch(lo, hi, eps float64) *BinarySearch {
	if eps <= 0 {
		eps = 1
	}
	return &BinarySearch{lo: lo, hi: hi, eps: eps}
}

// NextPt 返回下一个探测点,搜索收敛时返回false
func (b *BinarySearch) NextPt() (float64, bool) {
	if !b.hasUnknown {
		if b.hi-b.lo <= b.eps {
			return 0, false
		}
		return b.lo + (b.hi-b.lo)/2, true
	}
	if b.uLo-b.lo > b.eps {
		return b.lo + (b.uLo-b.lo)/2, true
	}
	if b.hi-b.uHi > b.eps {
		return b.uHi + (b.hi-b.uHi)/2, true
	}
	return 0, false
}

// RegisterPt 登记探测点的求解结果
func (b *BinarySearch) RegisterPt(pt float64, outcome SearchOutcome) {
	switch outcome {
	case SearchSat:
		if pt > b.lo {
			b.lo = pt
		}
	case SearchUnsat:
		if pt < b.hi {
			b.hi = pt
		}
	case SearchUnknown:
		if !b.hasUnknown {
			b.hasUnknown = true
			b.uLo, b.uHi = pt, pt
			return
		}
		b.uLo = math.Min(b.uLo, pt)
		b.uHi = math.Max(b.uHi, pt)
	}
}

// Bounds 返回当前的sat下界与unsat上界
func (b *BinarySearch) Bounds() (float64, float64) {
	return b.lo, b.hi
}
