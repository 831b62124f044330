// Package domain 对冲跟踪领域层
// 生成摘要：
// 1) 对冲聚合根：已覆盖数量驱动 Pending → PartiallyMatched → FullyMatched
// 2) 匹配数量超过对冲数量直接失败，不做部分吸收
// 3) 双人授权对冲在集齐两个不同授权身份前不可匹配
package domain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	// ErrMatchOverflow 覆盖数量超过对冲剩余数量
	ErrMatchOverflow = errors.New("match quantity exceeds remaining hedge quantity")
	// ErrDuplicateApprover 同一身份重复授权
	ErrDuplicateApprover = errors.New("duplicate approver identity")
	// ErrAuthorizationPending 双人授权未集齐即尝试匹配
	ErrAuthorizationPending = errors.New("hedge awaiting dual authorization")
	// ErrInvalidHedge 对冲录入参数非法
	ErrInvalidHedge = errors.New("invalid hedge")
)

// InstrumentType 对冲工具类型
type InstrumentType string

const (
	InstrumentSpot    InstrumentType = "Spot"
	InstrumentForward InstrumentType = "Forward"
	InstrumentNDF     InstrumentType = "NDF"
)

// Valid 是否已知工具类型
func (t InstrumentType) Valid() bool {
	switch t {
	case InstrumentSpot, InstrumentForward, InstrumentNDF:
		return true
	}
	return false
}

// MatchStatus 匹配状态
type MatchStatus string

const (
	MatchStatusPending   MatchStatus = "Pending"
	MatchStatusPartially MatchStatus = "PartiallyMatched"
	MatchStatusFully     MatchStatus = "FullyMatched"
)

// requiredAuthorizers 双人授权所需的不同身份数
const requiredAuthorizers = 2

// Authorization 一次授权记录
type Authorization struct {
	gorm.Model
	HedgeRef     uint      `gorm:"column:hedge_ref;index;not null"`
	Authorizer   string    `gorm:"column:authorizer;type:varchar(128);not null"`
	AuthorizedAt time.Time `gorm:"column:authorized_at;not null"`
}

// TableName 表名
func (Authorization) TableName() string {
	return "hedge_authorizations"
}

// Match 一次匹配记录，对冲与头寸敞口的对账依据
type Match struct {
	gorm.Model
	HedgeRef  uint            `gorm:"column:hedge_ref;index;not null"`
	Quantity  decimal.Decimal `gorm:"column:quantity;type:decimal(24,8);not null"`
	Rate      decimal.Decimal `gorm:"column:rate;type:decimal(24,12);not null"`
	PnL       decimal.Decimal `gorm:"column:pnl;type:decimal(24,8);not null"`
	MatchedBy string          `gorm:"column:matched_by;type:varchar(128);not null"`
	MatchedAt time.Time       `gorm:"column:matched_at;not null"`
}

// TableName 表名
func (Match) TableName() string {
	return "hedge_matches"
}

// Hedge 对冲聚合根
type Hedge struct {
	gorm.Model
	HedgeID          string          `gorm:"column:hedge_id;type:varchar(32);uniqueIndex;not null"`
	Currency         string          `gorm:"column:currency;type:varchar(8);index;not null"`
	Quantity         decimal.Decimal `gorm:"column:quantity;type:decimal(24,8);not null"`
	Rate             decimal.Decimal `gorm:"column:rate;type:decimal(24,12);not null"`
	Instrument       InstrumentType  `gorm:"column:instrument;type:varchar(16);not null"`
	Counterparty     string          `gorm:"column:counterparty;type:varchar(128)"`
	ExternalRef      string          `gorm:"column:external_ref;type:varchar(64)"`
	ValueDate        time.Time       `gorm:"column:value_date"`
	RequiresDualAuth bool            `gorm:"column:requires_dual_auth;not null"`
	MatchedQuantity  decimal.Decimal `gorm:"column:matched_quantity;type:decimal(24,8);not null"`
	Status           MatchStatus     `gorm:"column:status;type:varchar(24);not null;default:'Pending'"`
	RecordedBy       string          `gorm:"column:recorded_by;type:varchar(128);not null"`
	Authorizations   []Authorization `gorm:"foreignKey:HedgeRef"`
	Matches          []Match         `gorm:"foreignKey:HedgeRef"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (Hedge) TableName() string {
	return "hedges"
}

// NewHedge 录入对冲
func NewHedge(hedgeID, currency string, quantity, rate decimal.Decimal, instrument InstrumentType, counterparty, externalRef string, valueDate time.Time, requiresDualAuth bool, recordedBy string) (*Hedge, error) {
	if quantity.IsZero() {
		return nil, fmt.Errorf("%w: zero quantity", ErrInvalidHedge)
	}
	if rate.Sign() <= 0 {
		return nil, fmt.Errorf("%w: rate must be positive", ErrInvalidHedge)
	}
	if !instrument.Valid() {
		return nil, fmt.Errorf("%w: unknown instrument type %q", ErrInvalidHedge, instrument)
	}

	h := &Hedge{
		HedgeID:          hedgeID,
		Currency:         currency,
		Quantity:         quantity,
		Rate:             rate,
		Instrument:       instrument,
		Counterparty:     counterparty,
		ExternalRef:      externalRef,
		ValueDate:        valueDate,
		RequiresDualAuth: requiresDualAuth,
		MatchedQuantity:  decimal.Zero,
		Status:           MatchStatusPending,
		RecordedBy:       recordedBy,
	}
	h.addEvent(&HedgeRecordedEvent{
		HedgeID:    hedgeID,
		Currency:   currency,
		Quantity:   quantity,
		Instrument: instrument,
		Timestamp:  time.Now(),
	})
	return h, nil
}

// Authorize 记录一次授权。双人授权要求两个不同身份。
func (h *Hedge) Authorize(authorizer string) error {
	for _, a := range h.Authorizations {
		if a.Authorizer == authorizer {
			return fmt.Errorf("%w: %s already authorized hedge %s", ErrDuplicateApprover, authorizer, h.HedgeID)
		}
	}

	now := time.Now()
	h.Authorizations = append(h.Authorizations, Authorization{
		HedgeRef:     h.ID,
		Authorizer:   authorizer,
		AuthorizedAt: now,
	})
	h.addEvent(&HedgeAuthorizedEvent{
		HedgeID:    h.HedgeID,
		Authorizer: authorizer,
		Count:      len(h.Authorizations),
		Complete:   h.Authorized(),
		Timestamp:  now,
	})
	return nil
}

// Authorized 匹配前置条件是否满足
func (h *Hedge) Authorized() bool {
	if !h.RequiresDualAuth {
		return true
	}
	return len(h.Authorizations) >= requiredAuthorizers
}

// Remaining 尚未覆盖的数量
func (h *Hedge) Remaining() decimal.Decimal {
	return h.Quantity.Sub(h.MatchedQuantity)
}

// ValidateMatch 匹配前置校验，不触碰状态
func (h *Hedge) ValidateMatch(quantity decimal.Decimal) error {
	if !h.Authorized() {
		return fmt.Errorf("%w: hedge %s has %d of %d authorizations",
			ErrAuthorizationPending, h.HedgeID, len(h.Authorizations), requiredAuthorizers)
	}
	if quantity.Sign() <= 0 {
		return fmt.Errorf("%w: non-positive match quantity", ErrInvalidHedge)
	}
	if quantity.GreaterThan(h.Remaining()) {
		return fmt.Errorf("%w: %s requested, %s remaining on hedge %s",
			ErrMatchOverflow, quantity, h.Remaining(), h.HedgeID)
	}
	return nil
}

// ApplyMatch 记录一次匹配。pnl 为头寸侧按覆盖数量实现的盈亏。
// 覆盖数量超过剩余数量整体失败，状态与已覆盖数量均不变。
func (h *Hedge) ApplyMatch(quantity, rate, pnl decimal.Decimal, matchedBy string) error {
	if err := h.ValidateMatch(quantity); err != nil {
		return err
	}

	now := time.Now()
	h.MatchedQuantity = h.MatchedQuantity.Add(quantity)
	h.Matches = append(h.Matches, Match{
		HedgeRef:  h.ID,
		Quantity:  quantity,
		Rate:      rate,
		PnL:       pnl,
		MatchedBy: matchedBy,
		MatchedAt: now,
	})

	if h.MatchedQuantity.Equal(h.Quantity) {
		h.Status = MatchStatusFully
	} else {
		h.Status = MatchStatusPartially
	}

	h.addEvent(&HedgeMatchedEvent{
		HedgeID:   h.HedgeID,
		Currency:  h.Currency,
		Quantity:  quantity,
		PnL:       pnl,
		Status:    h.Status,
		Timestamp: now,
	})
	return nil
}

func (h *Hedge) addEvent(event DomainEvent) {
	h.domainEvents = append(h.domainEvents, event)
}

func (h *Hedge) GetDomainEvents() []DomainEvent {
	return h.domainEvents
}

func (h *Hedge) ClearDomainEvents() {
	h.domainEvents = nil
}
