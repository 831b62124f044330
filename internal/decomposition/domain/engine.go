// Package domain 拆腿引擎
// 生成摘要：
// 1) 直盘对生成单腿，成交在该对自身报价上
// 2) 非直盘对生成两条 USD 锚定腿：第一腿换出的 USD 中间额链式输入第二腿
// 3) 两腿各按自身对的中间价估值，估值之和即"净 USD 敞口"残差，如实报告
package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	marketdomain "github.com/wyfcoding/fxtreasury/internal/marketdata/domain"
)

// RateSource 行情查询口，按市场惯例方向的 pair 取最新快照
type RateSource interface {
	Get(pair string) (marketdomain.Quote, bool)
}

// Engine 拆腿引擎。纯计算，不落库；全链路保留 decimal 精度，只在展示层舍入。
type Engine struct {
	rates RateSource
}

// NewEngine 创建拆腿引擎
func NewEngine(rates RateSource) *Engine {
	return &Engine{rates: rates}
}

// Decompose 按分类拆解一笔交易。
// amount 为 base 货币计的带符号原始金额；返回腿序列与净 USD 敞口。
// 含 USD 的对无论分类如何都不拆（本身就是单条 USD 腿）；自身对为非法输入。
func (e *Engine) Decompose(pair string, amount decimal.Decimal, class classdomain.Classification) ([]Leg, decimal.Decimal, error) {
	base, quote, err := classdomain.SplitPair(pair)
	if err != nil {
		return nil, decimal.Zero, err
	}
	if amount.IsZero() {
		return nil, decimal.Zero, fmt.Errorf("%w: zero amount for %s", ErrInvalidAmount, pair)
	}

	switch {
	case classdomain.ContainsUSD(base, quote):
		leg, err := e.usdLeg(base, quote, amount)
		if err != nil {
			return nil, decimal.Zero, err
		}
		return []Leg{leg}, leg.USDEquivalent, nil

	case class == classdomain.ClassificationDirect:
		leg, err := e.crossLeg(base, quote, amount)
		if err != nil {
			return nil, decimal.Zero, err
		}
		return []Leg{leg}, leg.USDEquivalent, nil

	default:
		return e.exoticLegs(base, quote, amount)
	}
}

// usdLeg 含 USD 一侧的对：单腿，本币为非 USD 一侧
func (e *Engine) usdLeg(base, quote string, amount decimal.Decimal) (Leg, error) {
	local := base
	if base == classdomain.USD {
		local = quote
	}

	q, usdBase, err := e.usdQuote(local)
	if err != nil {
		return Leg{}, err
	}

	// 本币敞口：金额已是本币时直接采用；金额为 USD 时按成交价换算反向流。
	var localExposure decimal.Decimal
	if base == local {
		localExposure = amount
	} else {
		// 客户买入 USD（amount>0）意味着本币流出
		dealt := dealtSide(q, usdBase, amount.IsNegative())
		localExposure = usdToLocal(amount, dealt, usdBase).Neg()
	}

	dealt := dealtSide(q, usdBase, localExposure.IsPositive())
	leg := newLeg(1, q.Pair, local, localExposure, dealt, roleOf(amount))
	leg.USDEquivalent = localToUSD(localExposure, q.Mid, usdBase).Neg()
	return leg, nil
}

// crossLeg 直盘非 USD 交叉对：单腿，字面对、全额、该对自身成交价
func (e *Engine) crossLeg(base, quote string, amount decimal.Decimal) (Leg, error) {
	dealt, err := e.crossRate(base, quote, amount.IsPositive())
	if err != nil {
		return Leg{}, err
	}

	leg := newLeg(1, base+"/"+quote, base, amount, dealt, roleOf(amount))

	// USD 估值经 base 货币的 USD 中间价（可得时）
	if q, usdBase, err := e.usdQuote(base); err == nil {
		leg.USDEquivalent = localToUSD(amount, q.Mid, usdBase).Neg()
	}
	return leg, nil
}

// exoticLegs 非直盘对：两条 USD 锚定腿。
// 第一腿将 base 货币在其 USD 对成交价上换成 USD；该 USD 中间额原样输入第二腿，
// 在 quote 货币的 USD 对成交价上换出 quote 金额（链式换算，非独立询价）。
// 两腿 USD 估值各取自身对的中间价，因此互为近似相反数，其和为净 USD 敞口。
func (e *Engine) exoticLegs(base, quote string, amount decimal.Decimal) ([]Leg, decimal.Decimal, error) {
	baseQuote, baseUSDBase, err := e.usdQuote(base)
	if err != nil {
		return nil, decimal.Zero, err
	}
	quoteQuote, quoteUSDBase, err := e.usdQuote(quote)
	if err != nil {
		return nil, decimal.Zero, err
	}

	// 第一腿：base 货币敞口即原始金额
	dealt1 := dealtSide(baseQuote, baseUSDBase, amount.IsPositive())
	leg1 := newLeg(1, baseQuote.Pair, base, amount, dealt1, roleOf(amount))
	leg1.USDEquivalent = localToUSD(amount, baseQuote.Mid, baseUSDBase).Neg()

	// 中间 USD 额：第一腿成交价换出的 USD，带符号与原始金额相反
	usdIntermediate := localToUSD(amount, dealt1, baseUSDBase).Neg()

	// 第二腿：中间 USD 额在 quote 货币成交价上换出本币敞口
	dealt2Probe := dealtSide(quoteQuote, quoteUSDBase, usdIntermediate.IsPositive())
	localExposure2 := usdToLocal(usdIntermediate, dealt2Probe, quoteUSDBase)
	dealt2 := dealtSide(quoteQuote, quoteUSDBase, localExposure2.IsPositive())
	leg2 := newLeg(2, quoteQuote.Pair, quote, localExposure2, dealt2, roleOf(amount.Neg()))
	leg2.USDEquivalent = localToUSD(localExposure2, quoteQuote.Mid, quoteUSDBase).Neg()

	netUSD := leg1.USDEquivalent.Add(leg2.USDEquivalent)
	return []Leg{leg1, leg2}, netUSD, nil
}

// usdQuote 查某货币的 USD 对快照，返回行情及 USD 是否为报价 base
func (e *Engine) usdQuote(ccy string) (marketdomain.Quote, bool, error) {
	if q, ok := e.rates.Get(classdomain.USD + "/" + ccy); ok {
		return q, true, nil
	}
	if q, ok := e.rates.Get(ccy + "/" + classdomain.USD); ok {
		return q, false, nil
	}
	return marketdomain.Quote{}, false, fmt.Errorf("%w: no USD pair for %s", marketdomain.ErrQuoteNotFound, ccy)
}

// crossRate 直盘交叉对的成交价（quote 每单位 base），行情簿反向存储时取倒数
func (e *Engine) crossRate(base, quote string, buyBase bool) (decimal.Decimal, error) {
	if q, ok := e.rates.Get(base + "/" + quote); ok {
		if buyBase {
			return q.Ask, nil
		}
		return q.Bid, nil
	}
	if q, ok := e.rates.Get(quote + "/" + base); ok {
		// 买入 base 即卖出行情对的 base，成交在 bid，倒数换向
		if buyBase {
			return decimal.NewFromInt(1).Div(q.Bid), nil
		}
		return decimal.NewFromInt(1).Div(q.Ask), nil
	}
	return decimal.Zero, fmt.Errorf("%w: %s/%s", marketdomain.ErrQuoteNotFound, base, quote)
}

// dealtSide 成交价取边：获取行情对 base 一侧用 ask，抛出用 bid。
// USD/XXX 对上本币增加意味着卖出 USD（bid）；XXX/USD 对上本币增加意味着买入 base（ask）。
func dealtSide(q marketdomain.Quote, usdBase, localIncreasing bool) decimal.Decimal {
	acquiringBase := (usdBase && !localIncreasing) || (!usdBase && localIncreasing)
	if acquiringBase {
		return q.Ask
	}
	return q.Bid
}

// localToUSD 本币金额换 USD：USD/XXX 报价除以汇率，XXX/USD 报价乘以汇率
func localToUSD(local, rate decimal.Decimal, usdBase bool) decimal.Decimal {
	if usdBase {
		return local.Div(rate)
	}
	return local.Mul(rate)
}

// usdToLocal 上述换算的逆向
func usdToLocal(usd, rate decimal.Decimal, usdBase bool) decimal.Decimal {
	if usdBase {
		return usd.Mul(rate)
	}
	return usd.Div(rate)
}

func roleOf(amount decimal.Decimal) LegRole {
	if amount.IsNegative() {
		return LegRoleSell
	}
	return LegRoleBuy
}

func newLeg(seq int, pair, local string, exposure, rate decimal.Decimal, role LegRole) Leg {
	leg := Leg{
		Sequence:      seq,
		Pair:          pair,
		Role:          role,
		Rate:          rate,
		LocalCurrency: local,
		LocalExposure: exposure,
		BuyAmount:     decimal.Zero,
		SellAmount:    decimal.Zero,
	}
	if exposure.IsNegative() {
		leg.SellAmount = exposure.Abs()
	} else {
		leg.BuyAmount = exposure.Abs()
	}
	return leg
}
