package http

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// isoLayout matches the millisecond ISO 8601 timestamps browsers produce.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

func toFields(values map[string]*string) core.Fields {
	return core.Fields{
		Description: values["description"],
		Amount:      values["amount"],
		Date:        values["date"],
		Type:        values["type"],
		Category:    values["category"],
	}
}

type transactionResponse struct {
	ID          string      `json:"id"`
	Description string      `json:"description"`
	Amount      json.Number `json:"amount"`
	Date        string      `json:"date"`
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	UserID      string      `json:"userId"`
	CreatedAt   string      `json:"createdAt"`
	UpdatedAt   string      `json:"updatedAt"`
}

func newTransactionResponse(t core.Transaction) transactionResponse {
	return transactionResponse{
		ID:          t.ID,
		Description: t.Description,
		Amount:      json.Number(t.Amount.String()),
		Date:        formatTime(t.Date),
		Type:        string(t.Type),
		Category:    t.Category,
		UserID:      string(t.UserID),
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
	}
}

// newTransactionList never returns nil so an empty list encodes as [].
func newTransactionList(txs []core.Transaction) []transactionResponse {
	out := make([]transactionResponse, 0, len(txs))
	for _, t := range txs {
		out = append(out, newTransactionResponse(t))
	}
	return out
}

type summaryResponse struct {
	TotalIncome  json.Number `json:"totalIncome"`
	TotalExpense json.Number `json:"totalExpense"`
	Balance      json.Number `json:"balance"`
}

func newSummaryResponse(s core.Summary) summaryResponse {
	return summaryResponse{
		TotalIncome:  json.Number(s.TotalIncome.String()),
		TotalExpense: json.Number(s.TotalExpense.String()),
		Balance:      json.Number(s.Balance.String()),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(isoLayout)
}
