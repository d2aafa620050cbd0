package fibonacci

import (
	"sort"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"tradescan/models"
)

// Standard Fibonacci ratios.
var retracementRatios = []struct {
	ratio float64
	label string
}{
	{0.0, "0%"},
	{0.236, "23.6%"},
	{0.382, "38.2%"},
	{0.5, "50%"},
	{0.618, "61.8%"},
	{0.786, "78.6%"},
	{1.0, "100%"},
}

var extensionRatios = []struct {
	ratio float64
	label string
}{
	{1.272, "127.2%"},
	{1.618, "161.8%"},
	{2.618, "261.8%"},
	{4.236, "423.6%"},
}

// Retracements calculates Fibonacci retracement levels from ATH down to
// ATL, ordered by ascending ratio. The first level sits at the ATH and
// the last at the ATL.
func Retracements(ath, atl float64) ([]models.FibonacciLevel, error) {
	if err := validateRange(ath, atl); err != nil {
		return nil, err
	}

	priceRange := ath - atl
	levels := make([]models.FibonacciLevel, 0, len(retracementRatios))
	for _, r := range retracementRatios {
		levels = append(levels, models.FibonacciLevel{
			Level: r.ratio,
			Price: round8(ath - priceRange*r.ratio),
			Label: r.label,
			Type:  models.LevelRetracement,
		})
	}
	return levels, nil
}

// Extensions calculates Fibonacci extension levels beyond the ATH,
// ordered by ascending ratio. Every extension price is strictly greater
// than the ATH.
func Extensions(ath, atl float64) ([]models.FibonacciLevel, error) {
	if err := validateRange(ath, atl); err != nil {
		return nil, err
	}

	priceRange := ath - atl
	levels := make([]models.FibonacciLevel, 0, len(extensionRatios))
	for _, r := range extensionRatios {
		levels = append(levels, models.FibonacciLevel{
			Level: r.ratio,
			Price: round8(ath + priceRange*(r.ratio-1)),
			Label: r.label,
			Type:  models.LevelExtension,
		})
	}
	return levels, nil
}

// NearestLevels finds the nearest support (highest-priced level strictly
// below currentPrice) and resistance (lowest-priced level strictly above
// currentPrice) among the given levels. Levels sharing the same price are
// ranked by ascending ratio, so the lowest ratio wins the tie.
func NearestLevels(currentPrice float64, levels []models.FibonacciLevel) (support, resistance *models.FibonacciLevel) {
	sorted := make([]models.FibonacciLevel, len(levels))
	copy(sorted, levels)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Price != sorted[j].Price {
			return sorted[i].Price < sorted[j].Price
		}
		return sorted[i].Level < sorted[j].Level
	})

	for i := range sorted {
		switch {
		case sorted[i].Price < currentPrice:
			if support == nil || sorted[i].Price > support.Price {
				support = &sorted[i]
			}
		case sorted[i].Price > currentPrice && resistance == nil:
			resistance = &sorted[i]
		}
	}
	return support, resistance
}

// PositionPercentage returns where currentPrice sits inside the ATL-ATH
// range, clamped to [0, 100] and rounded to two decimals. A degenerate
// range yields 0.
func PositionPercentage(currentPrice, ath, atl float64) float64 {
	if ath <= atl {
		return 0
	}
	pct := (currentPrice - atl) / (ath - atl) * 100
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return round2(pct)
}

// Analyze performs the complete Fibonacci analysis for one coin.
func Analyze(symbol string, data *models.ATHATLData) (*models.FibonacciAnalysis, error) {
	retracements, err := Retracements(data.ATH, data.ATL)
	if err != nil {
		return nil, err
	}
	extensions, err := Extensions(data.ATH, data.ATL)
	if err != nil {
		return nil, err
	}

	all := make([]models.FibonacciLevel, 0, len(retracements)+len(extensions))
	all = append(all, retracements...)
	all = append(all, extensions...)
	support, resistance := NearestLevels(data.CurrentPrice, all)

	analysis := &models.FibonacciAnalysis{
		Symbol:             symbol,
		ATH:                data.ATH,
		ATL:                data.ATL,
		CurrentPrice:       data.CurrentPrice,
		PriceRange:         data.ATH - data.ATL,
		RetracementLevels:  retracements,
		ExtensionLevels:    extensions,
		NearestSupport:     support,
		NearestResistance:  resistance,
		PositionPercentage: PositionPercentage(data.CurrentPrice, data.ATH, data.ATL),
	}

	log.Debug().
		Str("symbol", symbol).
		Float64("position", analysis.PositionPercentage).
		Msg("Fibonacci analysis completed")

	return analysis, nil
}

func validateRange(ath, atl float64) error {
	if ath <= 0 || atl <= 0 || ath <= atl {
		return models.ErrInvalidRange
	}
	return nil
}

func round8(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(8).Float64()
	return f
}

func round2(v float64) float64 {
	f, _ := decimal.NewFromFloat(v).Round(2).Float64()
	return f
}
