package models

import "fmt"

// Language selects the template used to describe a plaque location.
type Language string

const (
	LangTraditionalChinese Language = "zh-TW"
	LangEnglish            Language = "en"
)

// PrimaryLanguage and SecondaryLanguage are the languages returned with every search hit.
const (
	PrimaryLanguage   = LangTraditionalChinese
	SecondaryLanguage = LangEnglish
)

// LocationSentence renders the human-readable location of m in lang.
// Unknown languages fall back to English.
func LocationSentence(m Memorial, lang Language) string {
	switch lang {
	case LangTraditionalChinese:
		side := "左"
		if m.Side == SideRight {
			side = "右"
		}
		return fmt.Sprintf("%s側，第%d區 %d行%d列", side, m.Area, m.Row, m.Column)
	default:
		side := "Left"
		if m.Side == SideRight {
			side = "Right"
		}
		return fmt.Sprintf("%s side, area %d, row %d, column %d", side, m.Area, m.Row, m.Column)
	}
}
