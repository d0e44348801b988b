package marketdata

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/f13-cli/internal/model"
)

var (
	billion = decimal.New(1, 9)
	million = decimal.New(1, 6)
)

// FormatAUM renders a dollar amount as "$X.XXB".
func FormatAUM(dollars decimal.Decimal) string {
	return "$" + dollars.Div(billion).StringFixed(2) + "B"
}

// ParseAUM converts "$12.34B", "$500M" or a plain dollar figure to whole
// dollars. It returns nil for "unknown" and anything unparseable.
func ParseAUM(s string) *int64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, model.Unknown) {
		return nil
	}
	s = strings.ReplaceAll(strings.TrimPrefix(s, "$"), ",", "")

	scale := decimal.New(1, 0)
	switch {
	case strings.HasSuffix(s, "B"):
		scale, s = billion, strings.TrimSuffix(s, "B")
	case strings.HasSuffix(s, "M"):
		scale, s = million, strings.TrimSuffix(s, "M")
	}

	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return nil
	}
	v := d.Mul(scale).Round(0)
	if !v.IsInteger() || v.GreaterThan(decimal.New(9, 18)) {
		return nil
	}
	return model.Int64(v.IntPart())
}
