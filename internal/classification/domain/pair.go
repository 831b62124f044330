// Package domain 货币对分类领域层
// 生成摘要：
// 1) 定义顺序无关的货币对 Key
// 2) 定义直盘/非直盘（exotic）分类值对象
// 3) 实现基于版本化配置快照的纯函数分类
package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidPair 非法货币对（自身对、未知/格式错误的货币代码）
	ErrInvalidPair = errors.New("invalid currency pair")
)

// USD 所有非直盘交易的路由锚定货币
const USD = "USD"

// Classification 货币对分类
type Classification string

const (
	ClassificationDirect Classification = "Direct" // 可直接交易
	ClassificationExotic Classification = "Exotic" // 需经 USD 拆腿
)

// NormalizeCurrency 货币代码规范化：大写三位字母
func NormalizeCurrency(code string) (string, error) {
	c := strings.ToUpper(strings.TrimSpace(code))
	if len(c) != 3 {
		return "", fmt.Errorf("%w: currency code %q", ErrInvalidPair, code)
	}
	for _, r := range c {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("%w: currency code %q", ErrInvalidPair, code)
		}
	}
	return c, nil
}

// PairKey 顺序无关的货币对标识。
// 两个代码按字典序排序后以 "/" 连接，保证 PairKey(A,B) == PairKey(B,A)。
func PairKey(a, b string) (string, error) {
	ca, err := NormalizeCurrency(a)
	if err != nil {
		return "", err
	}
	cb, err := NormalizeCurrency(b)
	if err != nil {
		return "", err
	}
	if ca == cb {
		return "", fmt.Errorf("%w: self pair %s/%s", ErrInvalidPair, ca, cb)
	}
	if ca > cb {
		ca, cb = cb, ca
	}
	return ca + "/" + cb, nil
}

// SplitPair 解析 "BASE/QUOTE" 形式的货币对并规范化两侧代码
func SplitPair(pair string) (base, quote string, err error) {
	parts := strings.Split(pair, "/")
	if len(parts) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidPair, pair)
	}
	if base, err = NormalizeCurrency(parts[0]); err != nil {
		return "", "", err
	}
	if quote, err = NormalizeCurrency(parts[1]); err != nil {
		return "", "", err
	}
	if base == quote {
		return "", "", fmt.Errorf("%w: self pair %s", ErrInvalidPair, pair)
	}
	return base, quote, nil
}

// ContainsUSD 货币对是否已含 USD 一侧
func ContainsUSD(base, quote string) bool {
	return base == USD || quote == USD
}
