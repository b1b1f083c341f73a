package feed

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// teamNames maps the provider's Korean team names to display names.
var teamNames = map[string]string{
	// World Cup / Euro Cup national sides
	"잉글랜드":  "England",
	"프랑스":   "France",
	"독일":    "Germany",
	"스페인":   "Spain",
	"이탈리아":  "Italy",
	"포르투갈":  "Portugal",
	"네덜란드":  "Netherlands",
	"벨기에":   "Belgium",
	"브라질":   "Brazil",
	"아르헨티나": "Argentina",
	"크로아티아": "Croatia",
	"덴마크":   "Denmark",
	"스위스":   "Switzerland",
	"스웨덴":   "Sweden",
	"폴란드":   "Poland",
	"우루과이":  "Uruguay",
	"멕시코":   "Mexico",
	"미국":    "USA",
	"일본":    "Japan",
	"대한민국":  "South Korea",
	"한국":    "South Korea",
	"웨일스":   "Wales",
	"스코틀랜드": "Scotland",
	"오스트리아": "Austria",
	"체코":    "Czech Republic",
	"러시아":   "Russia",
	"터키":    "Turkey",
	"우크라이나": "Ukraine",
	"콜롬비아":  "Colombia",
	"칠레":    "Chile",
	"나이지리아": "Nigeria",
	"세네갈":   "Senegal",
	"카메룬":   "Cameroon",
	"모로코":   "Morocco",
	"이집트":   "Egypt",
	"호주":    "Australia",
	"아일랜드":  "Ireland",
	"노르웨이":  "Norway",
	"세르비아":  "Serbia",
	"헝가리":   "Hungary",
	"그리스":   "Greece",
	"루마니아":  "Romania",

	// Premiership virtual clubs
	"런던":    "London",
	"맨체스터":  "Manchester",
	"리버풀":   "Liverpool",
	"버밍엄":   "Birmingham",
	"뉴캐슬":   "Newcastle",
	"리즈":    "Leeds",
	"셰필드":   "Sheffield",
	"브라이튼":  "Brighton",
	"사우샘프턴": "Southampton",
	"노팅엄":   "Nottingham",
	"레스터":   "Leicester",
	"에버턴":   "Everton",
	"첼시":    "Chelsea",
	"아스널":   "Arsenal",
	"토트넘":   "Tottenham",
	"웨스트햄":  "West Ham",
	"울버햄튼":  "Wolverhampton",
	"풀럼":    "Fulham",
	"본머스":   "Bournemouth",
	"번리":    "Burnley",
}

// Translator resolves provider team names to display names. Keys are
// compared in NFC so decomposed Hangul from the feed still matches.
type Translator struct {
	names map[string]string
}

// NewTranslator builds a translator from the static table plus extra
// entries, which win over the built-in ones.
func NewTranslator(extra map[string]string) *Translator {
	names := make(map[string]string, len(teamNames)+len(extra))
	for k, v := range teamNames {
		names[norm.NFC.String(k)] = v
	}
	for k, v := range extra {
		names[norm.NFC.String(strings.TrimSpace(k))] = v
	}
	return &Translator{names: names}
}

// Translate returns the display name, or the trimmed input if unknown.
func (t *Translator) Translate(name string) string {
	name = strings.TrimSpace(name)
	if display, ok := t.names[norm.NFC.String(name)]; ok {
		return display
	}
	return name
}
