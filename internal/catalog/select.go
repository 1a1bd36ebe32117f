package catalog

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

var partRegex = regexp.MustCompile(`(?i)\.part(\d+)\.rar$`)

// MonthTokens maps a month number (1-12) to the lower-case spellings and
// abbreviations that identify it inside resource names and URLs.
type MonthTokens map[int][]string

// DefaultMonthTokens returns the Spanish, English and Portuguese spellings
// used by the Chilean customs catalog.
func DefaultMonthTokens() MonthTokens {
	return MonthTokens{
		1:  {"enero", "jan", "january"},
		2:  {"febrero", "feb", "february"},
		3:  {"marzo", "mar", "march"},
		4:  {"abril", "apr", "april"},
		5:  {"mayo", "may"},
		6:  {"junio", "jun", "june"},
		7:  {"julio", "jul", "july"},
		8:  {"agosto", "aug", "august", "ago"},
		9:  {"septiembre", "setiembre", "sep", "september"},
		10: {"octubre", "oct", "october"},
		11: {"noviembre", "nov", "november"},
		12: {"diciembre", "dec", "dez", "december"},
	}
}

// Matches reports whether text names the given year and month.
func (m MonthTokens) Matches(text string, year, month int) bool {
	s := strings.ToLower(text)
	if !strings.Contains(s, strconv.Itoa(year)) {
		return false
	}
	for _, tok := range m[month] {
		if strings.Contains(s, tok) {
			return true
		}
	}
	return false
}

// PartIndex extracts NN from a ".partNN.rar" suffix; 0 when absent.
func PartIndex(location string) int {
	m := partRegex.FindStringSubmatch(location)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

// SelectResources keeps the resources whose name or location names the
// period and orders them by ascending part index. Unnumbered resources keep
// index 0 and therefore come first.
func SelectResources(resources []Resource, year, month int, months MonthTokens) ([]Resource, error) {
	var hits []Resource
	for _, r := range resources {
		if months.Matches(r.Name+" "+r.Location(), year, month) {
			hits = append(hits, r)
		}
	}

	if len(hits) == 0 {
		return nil, fmt.Errorf("%w: %02d/%d", ErrNoMatchingResource, month, year)
	}

	slices.SortStableFunc(hits, func(a, b Resource) int {
		return PartIndex(a.Location()) - PartIndex(b.Location())
	})
	return hits, nil
}
