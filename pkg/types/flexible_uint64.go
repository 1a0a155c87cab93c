// Package types 配置层共享的基础类型
package types

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// FlexibleUint64 可从多种配置写法解析的uint64
// 支持的格式:
// - 数字: 100000000
// - 十六进制字符串: "0x5f5e100"
// - 十进制字符串: "100000000"
type FlexibleUint64 struct {
	value uint64
}

// NewFlexibleUint64 创建FlexibleUint64
func NewFlexibleUint64(val uint64) FlexibleUint64 {
	return FlexibleUint64{value: val}
}

// Value 返回uint64值
func (f FlexibleUint64) Value() uint64 {
	return f.value
}

// IsZero 检查值是否为0
func (f FlexibleUint64) IsZero() bool {
	return f.value == 0
}

// String 返回十进制字符串表示
func (f FlexibleUint64) String() string {
	return strconv.FormatUint(f.value, 10)
}

// parseString 解析字符串形式的值
func (f *FlexibleUint64) parseString(str string) error {
	// 空字符串视为0
	if str == "" || str == "0x" {
		f.value = 0
		return nil
	}

	if strings.HasPrefix(str, "0x") || strings.HasPrefix(str, "0X") {
		hexStr := strings.TrimPrefix(strings.ToLower(str), "0x")

		// 用big.Int解析以便检测超出范围的值
		bigInt := new(big.Int)
		if _, ok := bigInt.SetString(hexStr, 16); !ok {
			return fmt.Errorf("invalid hex string: %s", str)
		}
		if !bigInt.IsUint64() {
			return fmt.Errorf("hex value out of uint64 range: %s", str)
		}
		f.value = bigInt.Uint64()
		return nil
	}

	val, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid decimal string %q: %v", str, err)
	}
	f.value = val
	return nil
}

// UnmarshalJSON 实现json.Unmarshaler接口
func (f *FlexibleUint64) UnmarshalJSON(data []byte) error {
	// 先尝试数字
	var num json.Number
	if err := json.Unmarshal(data, &num); err == nil {
		val, err := num.Int64()
		if err != nil {
			// 可能是科学计数法或浮点数
			floatVal, ferr := num.Float64()
			if ferr != nil {
				return fmt.Errorf("cannot parse number: %v", ferr)
			}
			f.value = uint64(floatVal)
			return nil
		}
		f.value = uint64(val)
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("value is neither a number nor a string: %v", err)
	}
	return f.parseString(str)
}

// MarshalJSON 实现json.Marshaler接口,序列化为十进制数字
func (f FlexibleUint64) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(f.value, 10)), nil
}

// UnmarshalYAML 实现yaml.Unmarshaler接口
// yaml配置中允许与JSON相同的几种写法
func (f *FlexibleUint64) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var num uint64
	if err := unmarshal(&num); err == nil {
		f.value = num
		return nil
	}

	var str string
	if err := unmarshal(&str); err != nil {
		return fmt.Errorf("value is neither a number nor a string: %v", err)
	}
	return f.parseString(str)
}
