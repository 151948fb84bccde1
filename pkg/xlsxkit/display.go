package xlsxkit

import (
	"math"
	"strconv"
	"strings"

	"github.com/ukaji3/xlsxkit-go/pkg/xlsxkit/formula"
	"github.com/xuri/excelize/v2"
	"github.com/xuri/nfp"
)

// Layouts used for date and time serials.
const (
	dateLayout     = "2006-01-02"
	timeLayout     = "15:04:05"
	dateTimeLayout = dateLayout + " " + timeLayout
)

// DisplayValue renders a cell the way a reader expects to see it. Serial
// numbers under a date or time format become dates, counted from 1900 or
// 1904 as the workbook declares; percentages are scaled; other numbers
// use General formatting. Formulas show their cached result.
func (wb *Workbook) DisplayValue(c Cell) string {
	v := c.Value
	if v.Kind == KindFormula {
		if v.Result == nil {
			return ""
		}
		v = *v.Result
	}
	if v.Kind != KindNumber {
		return v.String()
	}

	id := wb.styles.NumFmtOf(c.Style)
	code := wb.styles.NumberFormat(id)
	if wb.styles.IsDateFormatID(id) {
		t, err := excelize.ExcelDateToTime(v.Number, wb.date1904)
		if err != nil {
			return formula.FormatNumber(v.Number)
		}
		date, clock := dateParts(code)
		switch {
		case date && !clock:
			return t.Format(dateLayout)
		case clock && !date:
			return t.Format(timeLayout)
		}
		return t.Format(dateTimeLayout)
	}
	if decimals, ok := percentFormat(code); ok {
		return strconv.FormatFloat(v.Number*100, 'f', decimals, 64) + "%"
	}
	if decimals, ok := fixedFormat(code); ok {
		return strconv.FormatFloat(round(v.Number, decimals), 'f', decimals, 64)
	}
	return formula.FormatNumber(v.Number)
}

// dateParts reports whether a date format shows the calendar date, the
// clock time or both. An m token means minutes when the format has hours
// or seconds.
func dateParts(code string) (date, clock bool) {
	var tokens []string
	ps := nfp.NumberFormatParser()
	for _, section := range ps.Parse(code) {
		for _, token := range section.Items {
			switch token.TType {
			case nfp.TokenTypeElapsedDateTimes:
				clock = true
			case nfp.TokenTypeDateTimes:
				if token.TValue != "" {
					tokens = append(tokens, strings.ToLower(token.TValue))
				}
			}
		}
	}
	for _, t := range tokens {
		if t[0] == 'h' || t[0] == 's' {
			clock = true
		}
	}
	for _, t := range tokens {
		if t[0] == 'y' || t[0] == 'd' || (t[0] == 'm' && !clock) {
			date = true
		}
	}
	if !date && !clock {
		return true, true
	}
	return date, clock
}

// percentFormat recognizes 0% style codes and returns their decimals.
func percentFormat(code string) (int, bool) {
	num, ok := strings.CutSuffix(code, "%")
	if !ok {
		return 0, false
	}
	return fixedFormat(num)
}

// fixedFormat recognizes 0 and 0.00 style codes and returns their
// decimals.
func fixedFormat(code string) (int, bool) {
	whole, frac, _ := strings.Cut(code, ".")
	if whole != "0" || strings.Trim(frac, "0") != "" {
		return 0, false
	}
	return len(frac), true
}

func round(n float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(n*p) / p
}
