package economy

import "fmt"

// Currency is an amount of money in the game's base unit.
type Currency = int64

// BaseMultiplier is the initial value of every cost index multiplier.
const BaseMultiplier = 1024

// CostModel converts catalog cost factors into current prices. Each cost
// index has its own multiplier that inflation raises over time.
type CostModel struct {
	multipliers []int64
	// per-mille increase applied to each multiplier by Inflate
	rates []int64
}

func NewCostModel(multipliers, ratesPermille []int64) (*CostModel, error) {
	if len(multipliers) == 0 {
		return nil, fmt.Errorf("economy: no cost indices")
	}
	if len(ratesPermille) != 0 && len(ratesPermille) != len(multipliers) {
		return nil, fmt.Errorf("economy: %d inflation rates for %d cost indices", len(ratesPermille), len(multipliers))
	}
	m := &CostModel{
		multipliers: append([]int64(nil), multipliers...),
		rates:       make([]int64, len(multipliers)),
	}
	copy(m.rates, ratesPermille)
	return m, nil
}

// DefaultCostModel has n indices at BaseMultiplier and no inflation.
func DefaultCostModel(n int) *CostModel {
	mult := make([]int64, n)
	for i := range mult {
		mult[i] = BaseMultiplier
	}
	m, _ := NewCostModel(mult, nil)
	return m
}

// InflationAdjusted returns costFactor scaled by the multiplier of
// costIndex, shifted right by divisor bits. Unknown indices price at base.
func (m *CostModel) InflationAdjusted(costFactor int16, costIndex uint8, divisor uint8) Currency {
	mult := int64(BaseMultiplier)
	if int(costIndex) < len(m.multipliers) {
		mult = m.multipliers[costIndex]
	}
	return (int64(costFactor) * mult) >> divisor
}

// Inflate applies one period of inflation to every cost index.
func (m *CostModel) Inflate() {
	for i, r := range m.rates {
		if r == 0 {
			continue
		}
		m.multipliers[i] += m.multipliers[i] * r / 1000
	}
}

func (m *CostModel) Multiplier(costIndex uint8) int64 {
	if int(costIndex) >= len(m.multipliers) {
		return BaseMultiplier
	}
	return m.multipliers[costIndex]
}

func (m *CostModel) Indices() int { return len(m.multipliers) }
