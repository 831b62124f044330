// Package domain 货币头寸领域层
// 生成摘要：
// 1) 每货币一个头寸聚合根，交易列表只追加（冲正以反向交易建模，绝不删除）
// 2) 盯市与未实现盈亏按货币报价惯例折算；已实现盈亏只在显式对冲匹配时变动
// 3) 乐观锁版本号 + 仓储行锁保证单头寸串行变更
package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Status 头寸生命周期状态
type Status string

const (
	StatusOpen   Status = "Open"
	StatusClosed Status = "Closed"
)

// QuoteConvention 货币的 USD 报价惯例
type QuoteConvention string

const (
	// ConventionPerUSD 本币每 USD（USD/SGD、USD/JPY 一类）
	ConventionPerUSD QuoteConvention = "PerUSD"
	// ConventionUSDPer USD 每本币（EUR/USD、GBP/USD 一类）
	ConventionUSDPer QuoteConvention = "USDPer"
	// ConventionIdentity USD 头寸自身
	ConventionIdentity QuoteConvention = "Identity"
)

// TradeContribution 头寸的一条交易贡献，按写入顺序保存
type TradeContribution struct {
	gorm.Model
	PositionRef uint            `gorm:"column:position_ref;index;not null"`
	TradeID     string          `gorm:"column:trade_id;type:varchar(32);index;not null"`
	Pair        string          `gorm:"column:pair;type:varchar(8);not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:decimal(24,8);not null"`
	Rate        decimal.Decimal `gorm:"column:rate;type:decimal(20,8);not null"`
}

// TableName 表名
func (TradeContribution) TableName() string {
	return "position_trades"
}

// Position 单货币头寸聚合根
type Position struct {
	gorm.Model
	PositionID        string              `gorm:"column:position_id;type:varchar(32);uniqueIndex;not null"`
	Currency          string              `gorm:"column:currency;type:char(3);uniqueIndex;not null"`
	LiquidityProvider string              `gorm:"column:liquidity_provider;type:varchar(64)"`
	NetPosition       decimal.Decimal     `gorm:"column:net_position;type:decimal(24,8);not null"`
	CurrentRate       decimal.Decimal     `gorm:"column:current_rate;type:decimal(20,8);not null"`
	Convention        QuoteConvention     `gorm:"column:convention;type:varchar(10);not null"`
	MTMValue          decimal.Decimal     `gorm:"column:mtm_value;type:decimal(24,8);not null"`
	CostRate          decimal.Decimal     `gorm:"column:cost_rate;type:decimal(20,8);not null"` // 未平敞口的加权平均入场价
	OpenQuantity      decimal.Decimal     `gorm:"column:open_quantity;type:decimal(24,8);not null"`
	UnrealizedPnL     decimal.Decimal     `gorm:"column:unrealized_pnl;type:decimal(24,8);not null"`
	RealizedPnL       decimal.Decimal     `gorm:"column:realized_pnl;type:decimal(24,8);not null"`
	Status            Status              `gorm:"column:status;type:varchar(10);not null;default:'Open'"`
	LockVersion       int64               `gorm:"column:lock_version;not null;default:0"` // 乐观锁
	Trades            []TradeContribution `gorm:"foreignKey:PositionRef"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (Position) TableName() string {
	return "positions"
}

// NewPosition 创建头寸
func NewPosition(positionID, currency, liquidityProvider string, convention QuoteConvention) *Position {
	return &Position{
		PositionID:        positionID,
		Currency:          currency,
		LiquidityProvider: liquidityProvider,
		Convention:        convention,
		NetPosition:       decimal.Zero,
		CurrentRate:       decimal.Zero,
		MTMValue:          decimal.Zero,
		CostRate:          decimal.Zero,
		OpenQuantity:      decimal.Zero,
		UnrealizedPnL:     decimal.Zero,
		RealizedPnL:       decimal.Zero,
		Status:            StatusOpen,
	}
}

// ValueUSD 按报价惯例将本币金额折算为 USD
func ValueUSD(amount, rate decimal.Decimal, convention QuoteConvention) decimal.Decimal {
	switch convention {
	case ConventionIdentity:
		return amount
	case ConventionUSDPer:
		return amount.Mul(rate)
	default:
		if rate.IsZero() {
			return decimal.Zero
		}
		return amount.Div(rate)
	}
}

// ApplyContribution 累加一条腿贡献。
// 同向贡献并入加权平均成本；反向贡献消减未平数量（已实现盈亏不在此变动，
// 只由对冲匹配显式触发）；方向翻转时以本次入场价重置成本基准。
func (p *Position) ApplyContribution(tradeID, pair string, amount, rate decimal.Decimal, convention QuoteConvention) {
	prevNet := p.NetPosition
	p.NetPosition = p.NetPosition.Add(amount)
	p.LockVersion++

	p.Trades = append(p.Trades, TradeContribution{
		PositionRef: p.ID,
		TradeID:     tradeID,
		Pair:        pair,
		Amount:      amount,
		Rate:        rate,
	})

	if convention != "" && p.Convention != ConventionIdentity {
		p.Convention = convention
	}

	if !rate.IsZero() {
		abs := amount.Abs()
		extending := prevNet.IsZero() || prevNet.Sign() == amount.Sign()
		switch {
		case extending:
			total := p.OpenQuantity.Mul(p.CostRate).Add(abs.Mul(rate))
			p.OpenQuantity = p.OpenQuantity.Add(abs)
			p.CostRate = total.Div(p.OpenQuantity)
		case abs.GreaterThan(p.OpenQuantity):
			// 翻转：剩余数量以本次价格开仓
			p.OpenQuantity = abs.Sub(p.OpenQuantity)
			p.CostRate = rate
		default:
			p.OpenQuantity = p.OpenQuantity.Sub(abs)
			if p.OpenQuantity.IsZero() {
				p.CostRate = decimal.Zero
			}
		}
	}

	p.revalue()

	p.addEvent(&PositionUpdatedEvent{
		PositionID:  p.PositionID,
		Currency:    p.Currency,
		TradeID:     tradeID,
		Amount:      amount,
		NetPosition: p.NetPosition,
		Timestamp:   time.Now(),
	})
}

// UpdateRate 参考价更新，触发盯市重算。已实现盈亏绝不在此变动。
func (p *Position) UpdateRate(rate decimal.Decimal, convention QuoteConvention) {
	p.CurrentRate = rate
	if p.Convention != ConventionIdentity {
		p.Convention = convention
	}
	p.LockVersion++
	p.revalue()

	p.addEvent(&RateRefreshedEvent{
		PositionID: p.PositionID,
		Currency:   p.Currency,
		Rate:       rate,
		MTMValue:   p.MTMValue,
		Timestamp:  time.Now(),
	})
}

// ApplyReset 将审批通过的目标值写入净头寸。幂等性由重置请求侧的已应用标记保证。
func (p *Position) ApplyReset(requestID string, target decimal.Decimal, actor string) {
	previous := p.NetPosition
	p.NetPosition = target
	p.LockVersion++
	p.revalue()

	p.addEvent(&PositionResetEvent{
		PositionID: p.PositionID,
		RequestID:  requestID,
		Previous:   previous,
		Target:     target,
		Actor:      actor,
		Timestamp:  time.Now(),
	})
}

// RealizeMatched 对冲匹配显式平掉部分敞口，按匹配价与成本基准之差实现盈亏
func (p *Position) RealizeMatched(hedgeID string, quantity, rate decimal.Decimal) decimal.Decimal {
	qty := quantity.Abs()
	if qty.GreaterThan(p.OpenQuantity) {
		qty = p.OpenQuantity
	}
	if qty.IsZero() || p.CostRate.IsZero() {
		return decimal.Zero
	}

	signed := qty
	if p.NetPosition.IsNegative() {
		signed = qty.Neg()
	}
	pnl := ValueUSD(signed, rate, p.Convention).Sub(ValueUSD(signed, p.CostRate, p.Convention))
	p.RealizedPnL = p.RealizedPnL.Add(pnl)
	p.OpenQuantity = p.OpenQuantity.Sub(qty)
	if p.OpenQuantity.IsZero() {
		p.CostRate = decimal.Zero
	}
	p.LockVersion++
	p.revalue()

	p.addEvent(&ExposureMatchedEvent{
		PositionID: p.PositionID,
		HedgeID:    hedgeID,
		Quantity:   qty,
		Rate:       rate,
		Realized:   pnl,
		Timestamp:  time.Now(),
	})
	return pnl
}

// revalue 盯市：mtm = 净头寸按当前参考价折 USD；未实现 = 盯市值 − 成本基准值
func (p *Position) revalue() {
	if p.Convention == ConventionIdentity {
		p.MTMValue = p.NetPosition
		p.UnrealizedPnL = decimal.Zero
		return
	}
	if p.CurrentRate.IsZero() {
		return
	}
	p.MTMValue = ValueUSD(p.NetPosition, p.CurrentRate, p.Convention)
	if p.CostRate.IsZero() {
		p.UnrealizedPnL = decimal.Zero
		return
	}
	p.UnrealizedPnL = p.MTMValue.Sub(ValueUSD(p.NetPosition, p.CostRate, p.Convention))
}

func (p *Position) addEvent(event DomainEvent) {
	p.domainEvents = append(p.domainEvents, event)
}

func (p *Position) GetDomainEvents() []DomainEvent {
	return p.domainEvents
}

func (p *Position) ClearDomainEvents() {
	p.domainEvents = nil
}
