package itembank

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/mmogame/backend/internal/models"
)

// ShortAnswer judges free text. The stored answer lists accepted
// alternatives separated by "|"; an alternative may carry partial credit as
// "text=0.5". Comparison ignores case, accents, punctuation and spacing.
type ShortAnswer struct {
	bank
}

func NewShortAnswer(store *Store) *ShortAnswer {
	return &ShortAnswer{bank{kind: models.BankShortAnswer, store: store}}
}

var folder = cases.Fold()

// Normalize reduces a response to the form used for comparison.
func Normalize(s string) string {
	s = unidecode.Unidecode(norm.NFKC.String(s))
	s = folder.String(s)

	var sb strings.Builder
	space := false
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && sb.Len() > 0 {
				sb.WriteByte(' ')
			}
			space = false
			sb.WriteRune(r)
		default:
			space = true
		}
	}
	return sb.String()
}

func (a *ShortAnswer) Check(item *models.Item, answer string) models.CheckResult {
	given := Normalize(answer)
	if given == "" {
		return models.CheckResult{}
	}

	best := 0.0
	for _, alt := range strings.Split(item.Answer, "|") {
		text, fraction := alt, 1.0
		if i := strings.LastIndex(alt, "="); i > 0 {
			if f, err := strconv.ParseFloat(strings.TrimSpace(alt[i+1:]), 64); err == nil {
				text, fraction = alt[:i], f
			}
		}
		if Normalize(text) == given && fraction > best {
			best = fraction
		}
	}
	if best <= 0 {
		return models.CheckResult{}
	}
	if best > 1 {
		best = 1
	}
	return models.CheckResult{Correct: best >= 1, Fraction: best}
}
