package pricing

import "strings"

const hoursPerMonth = 30 * 24

// unitConversion turns a retail price into a price per hour. Longer periods
// divide so 30 "1 month" is exactly 30/720.
type unitConversion struct {
	multiply float64
	divide   float64
}

var (
	perHour   = unitConversion{multiply: 1, divide: 1}
	perMonth  = unitConversion{multiply: 1, divide: hoursPerMonth}
	perDay    = unitConversion{multiply: 1, divide: 24}
	perMinute = unitConversion{multiply: 60, divide: 1}
	perSecond = unitConversion{multiply: 3600, divide: 1}
)

// unitConversions is keyed by the lower-cased unit of measure
var unitConversions = map[string]unitConversion{
	"1 hour":   perHour,
	"1/hour":   perHour,
	"hour":     perHour,
	"1 hours":  perHour,
	"1 month":  perMonth,
	"1/month":  perMonth,
	"month":    perMonth,
	"1 day":    perDay,
	"1/day":    perDay,
	"day":      perDay,
	"1 minute": perMinute,
	"1/minute": perMinute,
	"minute":   perMinute,
	"1 second": perSecond,
	"1/second": perSecond,
	"second":   perSecond,
}

// NormalizeToHourly converts a retail price to a price per hour. Units it
// does not recognise (GB/Month, 10K transactions, ...) are consumption based
// and returned unchanged.
func NormalizeToHourly(retailPrice float64, unitOfMeasure string) float64 {
	c, ok := unitConversions[strings.ToLower(strings.TrimSpace(unitOfMeasure))]
	if !ok {
		return retailPrice
	}
	if c.divide != 1 {
		return retailPrice / c.divide
	}
	return retailPrice * c.multiply
}
