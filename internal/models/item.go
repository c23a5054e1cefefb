package models

// Item is one question in the item bank. Answer is never sent to players.
type Item struct {
	ID       int64    `json:"id"`
	BankKind BankKind `json:"bank_kind"`
	Category string   `json:"category,omitempty"`
	Prompt   string   `json:"prompt"`
	Choices  []string `json:"choices,omitempty"`
	Answer   string   `json:"-"`
}

// CheckResult is the judgement of one submitted answer.
type CheckResult struct {
	Correct  bool    `json:"correct"`
	Fraction float64 `json:"fraction"`
}
