package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestValueUSDConventions(t *testing.T) {
	// 本币每 USD（USD/SGD 一类）：除
	v := ValueUSD(dec("2500000"), dec("1.3455"), ConventionPerUSD)
	assert.True(t, v.Equal(dec("2500000").Div(dec("1.3455"))))

	// USD 每本币（EUR/USD 一类）：乘
	v = ValueUSD(dec("1000000"), dec("1.0855"), ConventionUSDPer)
	assert.True(t, v.Equal(dec("1085500")))

	// USD 自身
	v = ValueUSD(dec("123.45"), decimal.Zero, ConventionIdentity)
	assert.True(t, v.Equal(dec("123.45")))

	// 缺失参考价不折算
	assert.True(t, ValueUSD(dec("100"), decimal.Zero, ConventionPerUSD).IsZero())
}

func TestApplyContributionAccumulatesNet(t *testing.T) {
	p := NewPosition("POS-1", "SGD", "", ConventionPerUSD)

	p.ApplyContribution("TRD-1", "USD/SGD", dec("1000000"), dec("1.3450"), ConventionPerUSD)
	p.ApplyContribution("TRD-2", "USD/SGD", dec("500000"), dec("1.3460"), ConventionPerUSD)

	assert.True(t, p.NetPosition.Equal(dec("1500000")))
	assert.Len(t, p.Trades, 2)
	assert.Equal(t, "TRD-1", p.Trades[0].TradeID)
	assert.Equal(t, "TRD-2", p.Trades[1].TradeID)
}

func TestApplyContributionWeightedAverageCost(t *testing.T) {
	p := NewPosition("POS-1", "SGD", "", ConventionPerUSD)

	p.ApplyContribution("TRD-1", "USD/SGD", dec("1000000"), dec("1.3400"), ConventionPerUSD)
	p.ApplyContribution("TRD-2", "USD/SGD", dec("1000000"), dec("1.3500"), ConventionPerUSD)

	assert.True(t, p.OpenQuantity.Equal(dec("2000000")))
	assert.True(t, p.CostRate.Equal(dec("1.3450")), "got %s", p.CostRate)

	// 反向贡献消减未平数量，成本基准不变
	p.ApplyContribution("TRD-3", "USD/SGD", dec("-500000"), dec("1.3600"), ConventionPerUSD)
	assert.True(t, p.OpenQuantity.Equal(dec("1500000")))
	assert.True(t, p.CostRate.Equal(dec("1.3450")))
	assert.True(t, p.RealizedPnL.IsZero(), "realized P&L moves only on explicit hedge match")
}

func TestApplyContributionFlipResetsCostBasis(t *testing.T) {
	p := NewPosition("POS-1", "SGD", "", ConventionPerUSD)

	p.ApplyContribution("TRD-1", "USD/SGD", dec("1000000"), dec("1.3400"), ConventionPerUSD)
	p.ApplyContribution("TRD-2", "USD/SGD", dec("-1500000"), dec("1.3500"), ConventionPerUSD)

	assert.True(t, p.NetPosition.Equal(dec("-500000")))
	assert.True(t, p.OpenQuantity.Equal(dec("500000")))
	assert.True(t, p.CostRate.Equal(dec("1.3500")))
}

func TestUpdateRateRecomputesMTMOnly(t *testing.T) {
	p := NewPosition("POS-1", "SGD", "", ConventionPerUSD)
	p.ApplyContribution("TRD-1", "USD/SGD", dec("2500000"), dec("1.3450"), ConventionPerUSD)

	p.UpdateRate(dec("1.3455"), ConventionPerUSD)

	// per-USD 惯例：mtm = net / rate
	assert.True(t, p.MTMValue.Equal(dec("2500000").Div(dec("1.3455"))), "got %s", p.MTMValue)
	assert.True(t, p.RealizedPnL.IsZero())

	// 汇率不利变动：未实现为负
	p.UpdateRate(dec("1.3600"), ConventionPerUSD)
	assert.True(t, p.UnrealizedPnL.IsNegative())
	assert.True(t, p.RealizedPnL.IsZero())
}

func TestUpdateRateUSDPerConvention(t *testing.T) {
	p := NewPosition("POS-1", "EUR", "", ConventionUSDPer)
	p.ApplyContribution("TRD-1", "EUR/USD", dec("1000000"), dec("1.0850"), ConventionUSDPer)

	p.UpdateRate(dec("1.0900"), ConventionUSDPer)

	// USD-per 惯例：mtm = net × rate
	assert.True(t, p.MTMValue.Equal(dec("1090000")))
	assert.True(t, p.UnrealizedPnL.Equal(dec("5000")), "got %s", p.UnrealizedPnL)
}

func TestApplyResetOverwritesNetPosition(t *testing.T) {
	p := NewPosition("POS-1", "SGD", "", ConventionPerUSD)
	p.ApplyContribution("TRD-1", "USD/SGD", dec("2500000"), dec("1.3450"), ConventionPerUSD)

	p.ApplyReset("RST-1", dec("2300000"), "manager.a")

	assert.True(t, p.NetPosition.Equal(dec("2300000")))
	// 贡献历史只追加，重置不删除
	assert.Len(t, p.Trades, 1)

	events := p.GetDomainEvents()
	var found bool
	for _, e := range events {
		if reset, ok := e.(*PositionResetEvent); ok {
			found = true
			assert.True(t, reset.Previous.Equal(dec("2500000")))
			assert.True(t, reset.Target.Equal(dec("2300000")))
		}
	}
	assert.True(t, found, "reset event must be emitted")
}

func TestRealizeMatchedMovesRealizedPnL(t *testing.T) {
	p := NewPosition("POS-1", "EUR", "", ConventionUSDPer)
	p.ApplyContribution("TRD-1", "EUR/USD", dec("1000000"), dec("1.0850"), ConventionUSDPer)
	p.UpdateRate(dec("1.0900"), ConventionUSDPer)

	pnl := p.RealizeMatched("HDG-1", dec("400000"), dec("1.0900"))

	// (1.0900 − 1.0850) × 400,000 = 2,000
	assert.True(t, pnl.Equal(dec("2000")), "got %s", pnl)
	assert.True(t, p.RealizedPnL.Equal(dec("2000")))
	assert.True(t, p.OpenQuantity.Equal(dec("600000")))
}

func TestRealizeMatchedCapsAtOpenQuantity(t *testing.T) {
	p := NewPosition("POS-1", "EUR", "", ConventionUSDPer)
	p.ApplyContribution("TRD-1", "EUR/USD", dec("100000"), dec("1.0850"), ConventionUSDPer)

	pnl := p.RealizeMatched("HDG-1", dec("500000"), dec("1.0900"))

	assert.True(t, pnl.Equal(dec("500")), "got %s", pnl)
	assert.True(t, p.OpenQuantity.IsZero())
	assert.True(t, p.CostRate.IsZero())
}
