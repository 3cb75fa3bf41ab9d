package plans

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	ErrPlanNotFound   = errors.New("plans: plan not found")
	ErrAmountMismatch = errors.New("plans: amount mismatch")
)

// Catalog resolves plans and prices usage against them. It is read-only after construction.
type Catalog struct {
	order []string
	byID  map[string]Plan
}

func NewCatalog(plans []Plan) *Catalog {
	c := &Catalog{byID: make(map[string]Plan, len(plans))}
	for _, p := range plans {
		if _, dup := c.byID[p.ID]; !dup {
			c.order = append(c.order, p.ID)
		}
		c.byID[p.ID] = p
	}
	return c
}

func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *Catalog) Get(id string) (Plan, error) {
	p, ok := c.byID[id]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return p, nil
}

// VerifyAmount checks a captured payment against the plan price. value is a
// decimal string as returned by payment processors ("49.00").
func (c *Catalog) VerifyAmount(planID, currency, value string) error {
	p, err := c.Get(planID)
	if err != nil {
		return err
	}
	minor, err := ParseMinor(value)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAmountMismatch, err)
	}
	if currency != p.Currency || minor != p.PriceMinor {
		return fmt.Errorf("%w: got %s %s, want %s %s", ErrAmountMismatch, value, currency, FormatMinor(p.PriceMinor), p.Currency)
	}
	return nil
}

type Usage struct {
	PlanID          string `json:"planId"`
	Currency        string `json:"currency"`
	UsedMinutes     int    `json:"usedMinutes"`
	IncludedMinutes int    `json:"includedMinutes"`
	OverageMinutes  int    `json:"overageMinutes"`
	OverageMinor    int64  `json:"overageMinor"`
}

// Usage prices talk time against the plan allowance. Each call is billed in
// started minutes.
func (c *Catalog) Usage(planID string, callSeconds []int) (Usage, error) {
	p, err := c.Get(planID)
	if err != nil {
		return Usage{}, err
	}
	used := 0
	for _, s := range callSeconds {
		used += BillableMinutes(s)
	}
	u := Usage{
		PlanID:          p.ID,
		Currency:        p.Currency,
		UsedMinutes:     used,
		IncludedMinutes: p.IncludedMinutes,
	}
	if used > p.IncludedMinutes {
		u.OverageMinutes = used - p.IncludedMinutes
		u.OverageMinor = int64(u.OverageMinutes) * p.OverageRatePerMinuteMinor
	}
	return u, nil
}

// BillableMinutes rounds seconds up to started minutes.
func BillableMinutes(sec int) int {
	if sec <= 0 {
		return 0
	}
	m := sec / 60
	if sec%60 != 0 {
		m++
	}
	return m
}

// FormatMinor renders minor units as a two-decimal string.
func FormatMinor(v int64) string {
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// ParseMinor parses "49", "49.9" or "49.00" into minor units.
func ParseMinor(s string) (int64, error) {
	whole, frac := s, ""
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			whole, frac = s[:i], s[i+1:]
			break
		}
	}
	if whole == "" || len(frac) > 2 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, fmt.Errorf("invalid amount %q", s)
	}
	var f int64
	if frac != "" {
		for len(frac) < 2 {
			frac += "0"
		}
		f, err = strconv.ParseInt(frac, 10, 64)
		if err != nil || f < 0 {
			return 0, fmt.Errorf("invalid amount %q", s)
		}
	}
	return w*100 + f, nil
}
