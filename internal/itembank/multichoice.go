package itembank

import (
	"strings"

	"github.com/mmogame/backend/internal/models"
)

// MultiChoice judges by exact match against the correct choice.
type MultiChoice struct {
	bank
}

func NewMultiChoice(store *Store) *MultiChoice {
	return &MultiChoice{bank{kind: models.BankMultiChoice, store: store}}
}

func (m *MultiChoice) Check(item *models.Item, answer string) models.CheckResult {
	if strings.TrimSpace(answer) == item.Answer {
		return models.CheckResult{Correct: true, Fraction: 1}
	}
	return models.CheckResult{}
}
