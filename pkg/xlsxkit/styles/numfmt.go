package styles

import (
	"github.com/xuri/nfp"
)

// FirstCustomNumFmtID is the first id available to custom number formats.
const FirstCustomNumFmtID = 164

// builtInNumFmt lists the locale-independent built-in number formats.
// Ids 5-8 and 23-36 are reserved for locale-specific formats.
var builtInNumFmt = map[int]string{
	0:  "General",
	1:  "0",
	2:  "0.00",
	3:  "#,##0",
	4:  "#,##0.00",
	9:  "0%",
	10: "0.00%",
	11: "0.00E+00",
	12: "# ?/?",
	13: "# ??/??",
	14: "mm-dd-yy",
	15: "d-mmm-yy",
	16: "d-mmm",
	17: "mmm-yy",
	18: "h:mm AM/PM",
	19: "h:mm:ss AM/PM",
	20: "h:mm",
	21: "h:mm:ss",
	22: "m/d/yy h:mm",
	37: "#,##0 ;(#,##0)",
	38: "#,##0 ;[Red](#,##0)",
	39: "#,##0.00;(#,##0.00)",
	40: "#,##0.00;[Red](#,##0.00)",
	41: `_(* #,##0_);_(* \(#,##0\);_(* "-"_);_(@_)`,
	42: `_("$"* #,##0_);_("$"* \(#,##0\);_("$"* "-"_);_(@_)`,
	43: `_(* #,##0.00_);_(* \(#,##0.00\);_(* "-"??_);_(@_)`,
	44: `_("$"* #,##0.00_);_("$"* \(#,##0.00\);_("$"* "-"??_);_(@_)`,
	45: "mm:ss",
	46: "[h]:mm:ss",
	47: "mmss.0",
	48: "##0.0E+0",
	49: "@",
}

var builtInNumFmtID = func() map[string]int {
	m := make(map[string]int, len(builtInNumFmt))
	for id, code := range builtInNumFmt {
		m[code] = id
	}
	return m
}()

// localeDateNumFmt marks the reserved ids whose locale-specific codes are
// dates or times.
var localeDateNumFmt = map[int]bool{
	27: true, 28: true, 29: true, 30: true, 31: true, 32: true, 33: true,
	34: true, 35: true, 36: true,
}

// BuiltInNumFmt returns the code of a built-in number format.
func BuiltInNumFmt(id int) (string, bool) {
	code, ok := builtInNumFmt[id]
	return code, ok
}

// IsDateFormat reports whether a number format code renders dates or
// times.
func IsDateFormat(code string) bool {
	if code == "" || code == "General" || code == "@" {
		return false
	}
	ps := nfp.NumberFormatParser()
	for _, section := range ps.Parse(code) {
		for _, token := range section.Items {
			if token.TType == nfp.TokenTypeDateTimes || token.TType == nfp.TokenTypeElapsedDateTimes {
				return true
			}
		}
	}
	return false
}

// IsDateFormatID classifies a number format id, consulting the registry for
// custom formats.
func (r *Registry) IsDateFormatID(id int) bool {
	if localeDateNumFmt[id] {
		return true
	}
	return IsDateFormat(r.NumberFormat(id))
}
