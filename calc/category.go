package calc

type PriceCategory string

const (
	VeryCheap     PriceCategory = "VERY_CHEAP"
	Cheap         PriceCategory = "CHEAP"
	Normal        PriceCategory = "NORMAL"
	Expensive     PriceCategory = "EXPENSIVE"
	VeryExpensive PriceCategory = "VERY_EXPENSIVE"
)

// Categorize maps an all-in price in cents/kWh to its category, lower bounds inclusive.
func Categorize(cents float64) PriceCategory {
	switch {
	case cents < 2.5:
		return VeryCheap
	case cents < 5.0:
		return Cheap
	case cents < 10.0:
		return Normal
	case cents < 20.0:
		return Expensive
	default:
		return VeryExpensive
	}
}
