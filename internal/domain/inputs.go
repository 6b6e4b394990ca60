package domain

import "strings"

// ValidationErrors maps field names to human-readable problems. Command
// input is rejected with one of these before it ever reaches the ledger.
type ValidationErrors map[string]string

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	parts := make([]string, 0, len(e))
	for field, msg := range e {
		parts = append(parts, field+": "+msg)
	}
	return "invalid input: " + strings.Join(parts, "; ")
}

// AddPositionInput is the command payload for creating a position. The
// price fields are used as-is when the quote gateway lookup fails.
type AddPositionInput struct {
	Ticker       string  `json:"ticker"`
	Name         string  `json:"name"`
	Shares       float64 `json:"shares"`
	AvgPrice     float64 `json:"avgPrice"`
	CurrentPrice float64 `json:"currentPrice"`
	Sector       string  `json:"sector"`
	Currency     string  `json:"currency"`
}

// Validate checks the input and returns a per-field ValidationErrors when
// anything is off.
func (in *AddPositionInput) Validate() error {
	errs := ValidationErrors{}
	if strings.TrimSpace(in.Ticker) == "" {
		errs["ticker"] = "ticker is required"
	}
	if strings.TrimSpace(in.Name) == "" {
		errs["name"] = "name is required"
	}
	if in.Shares <= 0 {
		errs["shares"] = "shares must be positive"
	}
	if in.AvgPrice <= 0 {
		errs["avgPrice"] = "avgPrice must be positive"
	}
	if in.CurrentPrice <= 0 {
		errs["currentPrice"] = "currentPrice must be positive"
	}
	if !IsValidSector(in.Sector) {
		errs["sector"] = "unknown sector"
	}
	if !IsValidCurrency(in.Currency) {
		errs["currency"] = "unknown currency"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PositionUpdate is a structurally-validated partial update. Nil fields
// are left untouched. Share and price fields are only honored while a
// position has no transaction log; once transactions exist those values
// are derived and the update silently skips them.
type PositionUpdate struct {
	Name         *string  `json:"name,omitempty"`
	Sector       *string  `json:"sector,omitempty"`
	Currency     *string  `json:"currency,omitempty"`
	Shares       *float64 `json:"shares,omitempty"`
	AvgPrice     *float64 `json:"avgPrice,omitempty"`
	CurrentPrice *float64 `json:"currentPrice,omitempty"`
}

// Validate checks every provided field.
func (u *PositionUpdate) Validate() error {
	errs := ValidationErrors{}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		errs["name"] = "name must not be empty"
	}
	if u.Sector != nil && !IsValidSector(*u.Sector) {
		errs["sector"] = "unknown sector"
	}
	if u.Currency != nil && !IsValidCurrency(*u.Currency) {
		errs["currency"] = "unknown currency"
	}
	if u.Shares != nil && *u.Shares < 0 {
		errs["shares"] = "shares must not be negative"
	}
	if u.AvgPrice != nil && *u.AvgPrice <= 0 {
		errs["avgPrice"] = "avgPrice must be positive"
	}
	if u.CurrentPrice != nil && *u.CurrentPrice <= 0 {
		errs["currentPrice"] = "currentPrice must be positive"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// TransactionInput is the command payload for appending a transaction.
// The ledger assigns the id.
type TransactionInput struct {
	Type   string  `json:"type"`
	Date   string  `json:"date"`
	Shares float64 `json:"shares"`
	Price  float64 `json:"price"`
}

// Validate checks the input and returns a per-field ValidationErrors when
// anything is off. An empty date is allowed - the ledger defaults it to
// today.
func (in *TransactionInput) Validate() error {
	errs := ValidationErrors{}
	if in.Type != string(TransactionBuy) && in.Type != string(TransactionSell) {
		errs["type"] = "type must be buy or sell"
	}
	if in.Shares <= 0 {
		errs["shares"] = "shares must be positive"
	}
	if in.Price <= 0 {
		errs["price"] = "price must be positive"
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}
