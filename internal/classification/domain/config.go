// Package domain 货币分类配置聚合
package domain

import (
	"sort"
	"time"

	"gorm.io/gorm"
)

// Config 直盘交易配置聚合根。
// 每次变更产生一个新的版本号，旧版本不可变；分类永远是当前配置快照上的纯函数，
// 已执行交易记录其成交时刻的配置版本，配置变更不回溯。
type Config struct {
	gorm.Model
	ConfigVersion    int64                     `gorm:"column:config_version;uniqueIndex;not null"`
	Currencies       []string                  `gorm:"column:currencies;type:json;serializer:json"`        // 货币全集（有序）
	DirectCurrencies []string                  `gorm:"column:direct_currencies;type:json;serializer:json"` // 直盘子集
	HiddenCurrencies []string                  `gorm:"column:hidden_currencies;type:json;serializer:json"` // 对选择隐藏的货币
	PairOverrides    map[string]Classification `gorm:"column:pair_overrides;type:json;serializer:json"`    // 以 PairKey 为键的强制分类
	UpdatedBy        string                    `gorm:"column:updated_by;type:varchar(128)"`

	domainEvents []DomainEvent `gorm:"-"`
}

// TableName 表名
func (Config) TableName() string {
	return "classification_configs"
}

// NewConfig 创建首个版本的配置
func NewConfig(currencies, direct, hidden []string, overrides map[string]Classification, actor string) (*Config, error) {
	cfg := &Config{
		ConfigVersion:    1,
		Currencies:       normalizeSet(currencies),
		DirectCurrencies: normalizeSet(direct),
		HiddenCurrencies: normalizeSet(hidden),
		PairOverrides:    map[string]Classification{},
		UpdatedBy:        actor,
	}
	for pair, cls := range overrides {
		base, quote, err := SplitPair(pair)
		if err != nil {
			return nil, err
		}
		key, _ := PairKey(base, quote)
		cfg.PairOverrides[key] = cls
	}
	return cfg, nil
}

// IsDirectCurrency 货币是否属于直盘子集（隐藏货币不可直盘）
func (c *Config) IsDirectCurrency(code string) bool {
	for _, h := range c.HiddenCurrencies {
		if h == code {
			return false
		}
	}
	for _, d := range c.DirectCurrencies {
		if d == code {
			return true
		}
	}
	return false
}

// Classify 对货币对分类。
// 两侧货币都在直盘子集内才是 Direct；未知货币一律按 Exotic 处理，绝不默认 Direct。
func (c *Config) Classify(base, quote string) (Classification, error) {
	b, err := NormalizeCurrency(base)
	if err != nil {
		return "", err
	}
	q, err := NormalizeCurrency(quote)
	if err != nil {
		return "", err
	}
	key, err := PairKey(b, q)
	if err != nil {
		return "", err
	}
	if cls, ok := c.PairOverrides[key]; ok {
		return cls, nil
	}
	if c.IsDirectCurrency(b) && c.IsDirectCurrency(q) {
		return ClassificationDirect, nil
	}
	return ClassificationExotic, nil
}

// Universe 配置已知的货币全集（含直盘与隐藏货币），有序去重
func (c *Config) Universe() []string {
	seen := map[string]bool{}
	var out []string
	add := func(codes []string) {
		for _, code := range codes {
			if !seen[code] {
				seen[code] = true
				out = append(out, code)
			}
		}
	}
	add(c.Currencies)
	add(c.DirectCurrencies)
	add(c.HiddenCurrencies)
	sort.Strings(out)
	return out
}

// PairTable 配置全集上每一个货币对的分类表，以 PairKey 为键。
// 由配置确定性推导，绝不手工维护。
func (c *Config) PairTable() map[string]Classification {
	universe := c.Universe()
	table := make(map[string]Classification, len(universe)*len(universe)/2)
	for i := 0; i < len(universe); i++ {
		for j := i + 1; j < len(universe); j++ {
			key, err := PairKey(universe[i], universe[j])
			if err != nil {
				continue
			}
			cls, err := c.Classify(universe[i], universe[j])
			if err != nil {
				continue
			}
			table[key] = cls
		}
	}
	return table
}

// PairChange 一条因配置变更而翻转的货币对分类
type PairChange struct {
	Pair string         `json:"pair"`
	From Classification `json:"from"`
	To   Classification `json:"to"`
}

// ConfigDiff 配置变更前后差异
type ConfigDiff struct {
	AddedCurrencies   []string     `json:"added_currencies"`
	RemovedCurrencies []string     `json:"removed_currencies"`
	ChangedPairs      []PairChange `json:"changed_pairs"`
}

// Next 基于当前配置产生下一个版本，并通过全量分类表对比计算差异。
// 差异作为领域事件携带，供审计记录新增/移除货币与每一个分类翻转的货币对。
func (c *Config) Next(direct, hidden []string, overrides map[string]Classification, actor string) (*Config, *ConfigDiff, error) {
	next := &Config{
		ConfigVersion:    c.ConfigVersion + 1,
		Currencies:       append([]string(nil), c.Currencies...),
		DirectCurrencies: normalizeSet(direct),
		HiddenCurrencies: normalizeSet(hidden),
		PairOverrides:    map[string]Classification{},
		UpdatedBy:        actor,
	}
	for pair, cls := range overrides {
		base, quote, err := SplitPair(pair)
		if err != nil {
			return nil, nil, err
		}
		key, _ := PairKey(base, quote)
		next.PairOverrides[key] = cls
	}

	diff := &ConfigDiff{
		AddedCurrencies:   diffSet(next.DirectCurrencies, c.DirectCurrencies),
		RemovedCurrencies: diffSet(c.DirectCurrencies, next.DirectCurrencies),
	}

	before := c.PairTable()
	after := next.PairTable()
	for key, cls := range after {
		if prev, ok := before[key]; ok && prev != cls {
			diff.ChangedPairs = append(diff.ChangedPairs, PairChange{Pair: key, From: prev, To: cls})
		}
	}
	sort.Slice(diff.ChangedPairs, func(i, j int) bool { return diff.ChangedPairs[i].Pair < diff.ChangedPairs[j].Pair })

	next.addEvent(&ConfigUpdatedEvent{
		Version:           next.ConfigVersion,
		Actor:             actor,
		AddedCurrencies:   diff.AddedCurrencies,
		RemovedCurrencies: diff.RemovedCurrencies,
		ChangedPairs:      diff.ChangedPairs,
		Timestamp:         time.Now(),
	})

	return next, diff, nil
}

func (c *Config) addEvent(event DomainEvent) {
	c.domainEvents = append(c.domainEvents, event)
}

func (c *Config) GetDomainEvents() []DomainEvent {
	return c.domainEvents
}

func (c *Config) ClearDomainEvents() {
	c.domainEvents = nil
}

// normalizeSet 规范化并排序去重，忽略非法代码
func normalizeSet(codes []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(codes))
	for _, code := range codes {
		c, err := NormalizeCurrency(code)
		if err != nil || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// diffSet 返回在 a 中而不在 b 中的元素
func diffSet(a, b []string) []string {
	inB := map[string]bool{}
	for _, x := range b {
		inB[x] = true
	}
	var out []string
	for _, x := range a {
		if !inB[x] {
			out = append(out, x)
		}
	}
	return out
}
