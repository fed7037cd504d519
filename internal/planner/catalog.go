package planner

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrUnknownCatalog = errors.New("间隔方案不存在")
	ErrInvalidCatalog = errors.New("间隔方案无效")
)

const (
	CatalogClassic  = "classic"
	CatalogExtended = "extended"
)

// Interval 复习间隔
type Interval struct {
	Key        string `json:"key"`
	OffsetDays int    `json:"offset_days"`
	Label      string `json:"label"`
}

// Catalog 有序间隔表；顺序即同日竞争时的优先级
type Catalog struct {
	ID        string
	Intervals []Interval
}

// Index 返回 key 在目录中的位置，不存在时返回 -1
func (c Catalog) Index(key string) int {
	for i, iv := range c.Intervals {
		if iv.Key == key {
			return i
		}
	}
	return -1
}

// IntervalKey J0 / J+10 形式的键
func IntervalKey(offset int) string {
	if offset == 0 {
		return "J0"
	}
	return fmt.Sprintf("J+%d", offset)
}

// ParseIntervalKey IntervalKey 的逆运算
func ParseIntervalKey(key string) (int, bool) {
	if key == "J0" {
		return 0, true
	}
	if !strings.HasPrefix(key, "J+") {
		return 0, false
	}
	n, err := strconv.Atoi(key[2:])
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// LabelFor 间隔的显示名
func LabelFor(key string) string {
	if off, ok := ParseIntervalKey(key); ok {
		if label, ok := intervalLabels[off]; ok {
			return label
		}
	}
	return key
}

var intervalLabels = map[int]string{
	0:  "J0 (Apprentissage)",
	1:  "J+1 (Révision)",
	2:  "J+2 (Consolidation)",
	3:  "J+3 (Consolidation)",
	7:  "J+7 (Ancrage)",
	10: "J+10 (Ancrage)",
	15: "J+15 (Mémorisation)",
	25: "J+25 (Mémorisation)",
	30: "J+30 (Long terme)",
	47: "J+47 (Long terme)",
	90: "J+90 (Maîtrise)",
}

// NewCatalog 由天数偏移构造目录，标签优先取内置表
func NewCatalog(id string, offsets []int) (Catalog, error) {
	if len(offsets) == 0 {
		return Catalog{}, fmt.Errorf("%w: %s 没有任何间隔", ErrInvalidCatalog, id)
	}
	seen := make(map[int]bool, len(offsets))
	intervals := make([]Interval, 0, len(offsets))
	for _, off := range offsets {
		if off < 0 {
			return Catalog{}, fmt.Errorf("%w: 偏移不能为负 (%d)", ErrInvalidCatalog, off)
		}
		if seen[off] {
			return Catalog{}, fmt.Errorf("%w: 偏移重复 (%d)", ErrInvalidCatalog, off)
		}
		seen[off] = true
		intervals = append(intervals, Interval{Key: IntervalKey(off), OffsetDays: off, Label: LabelFor(IntervalKey(off))})
	}
	return Catalog{ID: id, Intervals: intervals}, nil
}

// Extend 在 base 之后追加其中没有的偏移（升序去重），base 自身顺序不变
// 用于多方案课程混排时的统一优先级：用户方案的排列即排序依据
func Extend(id string, base Catalog, offsets ...int) Catalog {
	seen := make(map[int]bool, len(base.Intervals)+len(offsets))
	intervals := make([]Interval, 0, len(base.Intervals)+len(offsets))
	for _, iv := range base.Intervals {
		seen[iv.OffsetDays] = true
		intervals = append(intervals, iv)
	}
	extra := make([]int, 0, len(offsets))
	for _, off := range offsets {
		if !seen[off] {
			seen[off] = true
			extra = append(extra, off)
		}
	}
	sort.Ints(extra)
	for _, off := range extra {
		intervals = append(intervals, Interval{Key: IntervalKey(off), OffsetDays: off, Label: LabelFor(IntervalKey(off))})
	}
	return Catalog{ID: id, Intervals: intervals}
}

// Registry 按 ID 索引的间隔方案
type Registry map[string]Catalog

// DefaultRegistry 内置两套方案
func DefaultRegistry() Registry {
	classic, _ := NewCatalog(CatalogClassic, []int{0, 1, 2, 10, 25, 47})
	extended, _ := NewCatalog(CatalogExtended, []int{0, 1, 3, 7, 15, 30, 90})
	return Registry{
		CatalogClassic:  classic,
		CatalogExtended: extended,
	}
}

// Register 注册或覆盖一套方案
func (r Registry) Register(c Catalog) {
	r[c.ID] = c
}

// Get 返回方案副本
func (r Registry) Get(id string) (Catalog, error) {
	c, ok := r[id]
	if !ok {
		return Catalog{}, fmt.Errorf("%w: %s", ErrUnknownCatalog, id)
	}
	out := Catalog{ID: c.ID, Intervals: make([]Interval, len(c.Intervals))}
	copy(out.Intervals, c.Intervals)
	return out, nil
}

// OffsetsFor 返回方案中的有序间隔
func (r Registry) OffsetsFor(id string) ([]Interval, error) {
	c, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return c.Intervals, nil
}

// IDs 已注册方案 ID（排序）
func (r Registry) IDs() []string {
	ids := make([]string, 0, len(r))
	for id := range r {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
