package ml

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatBRL renders a price as R$X,XXX.XX.
func FormatBRL(v float64) string {
	return "R$" + printer.Sprintf("%.2f", v)
}

// FormatCompact renders a price with a thousand-scale suffix, e.g. "R$ 45.50 mil".
func FormatCompact(v float64, prefix string) string {
	units := []string{"", "mil", "mi"}
	for _, unit := range units {
		if v < 1000 {
			return strings.TrimSpace(fmt.Sprintf("%s %.2f %s", prefix, v, unit))
		}
		v /= 1000
	}
	return strings.TrimSpace(fmt.Sprintf("%s %.2f bi", prefix, v))
}
