package tariff

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/shopspring/decimal"
)

// Components maps a cost line label to a currency amount.
type Components map[string]float64

// Labels returns the labels in sorted order.
func (c Components) Labels() []string {
	labels := make([]string, 0, len(c))
	for label := range c {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// MarshalJSON writes NaN amounts as null.
func (c Components) MarshalJSON() ([]byte, error) {
	out := make(map[string]*float64, len(c))
	for label, value := range c {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			out[label] = nil
			continue
		}
		v := value
		out[label] = &v
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads null amounts back as NaN.
func (c *Components) UnmarshalJSON(data []byte) error {
	var in map[string]*float64
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	out := make(Components, len(in))
	for label, value := range in {
		if value == nil {
			out[label] = math.NaN()
			continue
		}
		out[label] = *value
	}
	*c = out
	return nil
}

// Breakdown is the itemized cost of a usage quantity.
type Breakdown struct {
	UsageKWh float64    `json:"usageKwh"`
	Variable Components `json:"variableByKwh"`
	Static   Components `json:"static"`
	// Unavailable lists the labels whose rate was missing. Any entry makes Total NaN.
	Unavailable []string `json:"unavailable,omitempty"`
}

// NewBreakdown returns an empty breakdown for usage.
func NewBreakdown(usage float64) Breakdown {
	return Breakdown{UsageKWh: usage, Variable: Components{}, Static: Components{}}
}

// Priced reports whether every rate was available.
func (b Breakdown) Priced() bool { return len(b.Unavailable) == 0 }

// Add sums two breakdowns component-wise. A NaN or missing component on one side
// counts as zero when the other side has a value; unavailable labels are kept.
func (b Breakdown) Add(o Breakdown) Breakdown {
	return Breakdown{
		UsageKWh:    b.UsageKWh + o.UsageKWh,
		Variable:    addComponents(b.Variable, o.Variable),
		Static:      addComponents(b.Static, o.Static),
		Unavailable: unionLabels(b.Unavailable, o.Unavailable),
	}
}

// Sum adds every breakdown.
func Sum(items ...Breakdown) Breakdown {
	total := NewBreakdown(0)
	for _, item := range items {
		total = total.Add(item)
	}
	return total
}

// Total sums every component rounded to two decimals. NaN means the price is undefined.
func (b Breakdown) Total() float64 {
	if !b.Priced() {
		return math.NaN()
	}
	return sumRounded(b.Variable, b.Static)
}

// VariableTotal sums the usage dependent components.
func (b Breakdown) VariableTotal() float64 { return sumRounded(b.Variable) }

// StaticTotal sums the prorated fixed components.
func (b Breakdown) StaticTotal() float64 { return sumRounded(b.Static) }

// Component returns a component from either group.
func (b Breakdown) Component(label string) (float64, bool) {
	if v, ok := b.Variable[label]; ok {
		return v, true
	}
	v, ok := b.Static[label]
	return v, ok
}

// Round2 rounds half away from zero to two decimals; NaN stays NaN.
func Round2(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return value
	}
	return decimal.NewFromFloat(value).Round(2).InexactFloat64()
}

func sumRounded(groups ...Components) float64 {
	total := decimal.Zero
	for _, group := range groups {
		for _, value := range group {
			if math.IsNaN(value) || math.IsInf(value, 0) {
				return math.NaN()
			}
			total = total.Add(decimal.NewFromFloat(value))
		}
	}
	return total.Round(2).InexactFloat64()
}

func addComponents(a, b Components) Components {
	out := make(Components, len(a)+len(b))
	for label, av := range a {
		bv, ok := b[label]
		if !ok {
			out[label] = av
			continue
		}
		out[label] = addNaNAsZero(av, bv)
	}
	for label, bv := range b {
		if _, ok := a[label]; !ok {
			out[label] = bv
		}
	}
	return out
}

func addNaNAsZero(a, b float64) float64 {
	switch {
	case math.IsNaN(a) && math.IsNaN(b):
		return math.NaN()
	case math.IsNaN(a):
		return b
	case math.IsNaN(b):
		return a
	default:
		return a + b
	}
}

func unionLabels(a, b []string) []string {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(a)+len(b))
	for _, label := range a {
		set[label] = struct{}{}
	}
	for _, label := range b {
		set[label] = struct{}{}
	}
	out := make([]string, 0, len(set))
	for label := range set {
		out = append(out, label)
	}
	sort.Strings(out)
	return out
}
