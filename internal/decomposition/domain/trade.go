// Package domain 交易拆腿领域层
// 生成摘要：
// 1) 定义不可变交易记录与拆腿实体
// 2) 定义腿对各货币头寸的贡献值对象（供头寸聚合折算）
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	classdomain "github.com/wyfcoding/fxtreasury/internal/classification/domain"
	"gorm.io/gorm"
)

var (
	// ErrInvalidAmount 非法金额（零值）
	ErrInvalidAmount = errors.New("invalid trade amount")
)

// LegRole 腿方向标签，由原始金额符号推导
type LegRole string

const (
	LegRoleBuy  LegRole = "buy-leg"
	LegRoleSell LegRole = "sell-leg"
)

// Leg 一次货币对转换步骤。
// BuyAmount/SellAmount 至多一个非零（腿是有方向的），金额以 LocalCurrency 计。
// Rate 为 Pair 的成交价（quote 每单位 base）；USDEquivalent 按该对中间价估值。
type Leg struct {
	gorm.Model
	TradeRef      uint            `gorm:"column:trade_ref;index;not null"`
	Sequence      int             `gorm:"column:sequence;not null"` // 腿在交易内的顺序
	Pair          string          `gorm:"column:pair;type:varchar(8);not null"`
	Role          LegRole         `gorm:"column:role;type:varchar(10);not null"`
	BuyAmount     decimal.Decimal `gorm:"column:buy_amount;type:decimal(24,8);not null"`
	SellAmount    decimal.Decimal `gorm:"column:sell_amount;type:decimal(24,8);not null"`
	Rate          decimal.Decimal `gorm:"column:rate;type:decimal(20,8);not null"`
	LocalCurrency string          `gorm:"column:local_currency;type:char(3);not null"`
	LocalExposure decimal.Decimal `gorm:"column:local_exposure;type:decimal(24,8);not null"`
	USDEquivalent decimal.Decimal `gorm:"column:usd_equivalent;type:decimal(24,8);not null"`
}

// TableName 表名
func (Leg) TableName() string {
	return "trade_legs"
}

// Contribution 腿对某一货币头寸的贡献。
// Rate 为该货币兑 USD 的入场价（未知时为零，不参与成本基准）；
// RateUSDBase 标记报价方向（true 表示 USD/XXX，本币每 USD）。
type Contribution struct {
	Currency    string
	Amount      decimal.Decimal
	Rate        decimal.Decimal
	RateUSDBase bool
}

// Contributions 该腿触及的每个货币的头寸贡献。
// 含 USD 一侧的腿贡献本币行与一条 USD 合成行；直盘交叉腿贡献 base 与 quote 两行。
func (l *Leg) Contributions() []Contribution {
	base, quote, err := classdomain.SplitPair(l.Pair)
	if err != nil {
		return nil
	}

	if classdomain.ContainsUSD(base, quote) {
		return []Contribution{
			{Currency: l.LocalCurrency, Amount: l.LocalExposure, Rate: l.Rate, RateUSDBase: base == classdomain.USD},
			{Currency: classdomain.USD, Amount: l.USDEquivalent, Rate: decimal.NewFromInt(1)},
		}
	}

	// 直盘交叉腿：quote 侧金额由成交价推导，无腿上 USD 价。
	return []Contribution{
		{Currency: base, Amount: l.LocalExposure},
		{Currency: quote, Amount: l.LocalExposure.Mul(l.Rate).Neg()},
	}
}

// Trade 客户交易的不可变记录。
// Exotic 标志在成交时刻按当时配置固定，配置变更不回溯；
// NetUSDExposure 为两腿按各自中间价估值后的 USD 残差，按规则如实报告而非强行归零。
type Trade struct {
	gorm.Model
	TradeID        string          `gorm:"column:trade_id;type:varchar(32);uniqueIndex;not null"`
	TradeDate      time.Time       `gorm:"column:trade_date;index;not null"`
	CustomerOrder  string          `gorm:"column:customer_order;type:varchar(32);index"`
	OriginalPair   string          `gorm:"column:original_pair;type:varchar(8);not null"`
	OriginalAmount decimal.Decimal `gorm:"column:original_amount;type:decimal(24,8);not null"`
	Exotic         bool            `gorm:"column:exotic;not null"`
	ConfigVersion  int64           `gorm:"column:config_version;not null"` // 成交时生效的分类配置版本
	NetUSDExposure decimal.Decimal `gorm:"column:net_usd_exposure;type:decimal(24,8);not null"`
	Legs           []Leg           `gorm:"foreignKey:TradeRef"`
}

// TableName 表名
func (Trade) TableName() string {
	return "trades"
}

// Contributions 交易全部腿的货币头寸贡献，按腿顺序展开
func (t *Trade) Contributions() []Contribution {
	var out []Contribution
	for i := range t.Legs {
		out = append(out, t.Legs[i].Contributions()...)
	}
	return out
}

// TradeRepository 交易仓储
type TradeRepository interface {
	Save(ctx context.Context, trade *Trade) error
	GetByTradeID(ctx context.Context, tradeID string) (*Trade, error)
	List(ctx context.Context, limit, offset int) ([]*Trade, int64, error)
}
