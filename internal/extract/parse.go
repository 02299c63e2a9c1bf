package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	currencyPriceRe = regexp.MustCompile(`(?:€|\$|£|EUR|USD|GBP)\s*(\d[\d.,]*)`)
	anyNumberRe     = regexp.MustCompile(`\d[\d.,]*`)

	// English and Dutch room words.
	bedroomsRe = regexp.MustCompile(`(?i)(\d+)\s*(?:slaapkamers?|kamers?|bedrooms?|rooms?|beds?)\b`)
	areaRe     = regexp.MustCompile(`(?i)(\d[\d.,]*)\s*(?:m²|m2|sqm|sq\.?\s?m\b)`)

	separators = strings.NewReplacer(".", "", ",", "")
)

// ParsePrice pulls an integer amount out of free text like "€ 1.250 per month".
//
// A number following a currency marker wins over any other number in the
// text. Both '.' and ',' are treated as thousands separators. Returns nil when
// there is nothing to parse.
func ParsePrice(text string) *int {
	var digits string
	if m := currencyPriceRe.FindStringSubmatch(text); m != nil {
		digits = m[1]
	} else {
		digits = anyNumberRe.FindString(text)
	}
	if digits == "" {
		return nil
	}

	v, err := strconv.Atoi(separators.Replace(digits))
	if err != nil {
		return nil
	}

	return &v
}

// ParseBedrooms finds the integer in front of a room token, e.g. "3 kamers".
func ParseBedrooms(text string) *int {
	return firstInt(bedroomsRe, text)
}

// ParseArea finds the integer in front of an area unit, e.g. "80 m²" or
// "1.200 m²". Separators are thousands markers, as in [ParsePrice].
func ParseArea(text string) *int {
	return firstInt(areaRe, text)
}

func firstInt(re *regexp.Regexp, text string) *int {
	m := re.FindStringSubmatch(text)
	if m == nil {
		return nil
	}

	v, err := strconv.Atoi(separators.Replace(m[1]))
	if err != nil {
		return nil
	}

	return &v
}
