package entity

import (
	"time"
)

// ExternalRecord is one normalized row of the authoritative spreadsheet.
// It only lives for the duration of a single reconciliation run.
type ExternalRecord struct {
	Row            int        `json:"row"`
	Key            string     `json:"key"`
	DisplayName    string     `json:"display_name"`
	ArrivalDate    *time.Time `json:"arrival_date,omitempty"`
	PeriodStart    *time.Time `json:"period_start,omitempty"`
	PeriodEnd      *time.Time `json:"period_end,omitempty"`
	Amount         float64    `json:"amount"`
	Reference      string     `json:"reference,omitempty"`
	ContractNumber string     `json:"contract_number,omitempty"`
	Room           string     `json:"room,omitempty"`
	Note           string     `json:"note,omitempty"`
}

// Attr identifies the ExternalRecord slot a spreadsheet column feeds.
type Attr string

const (
	AttrKey         Attr = "key"
	AttrName        Attr = "name"
	AttrArrivalDate Attr = "arrival_date"
	AttrPeriodStart Attr = "period_start"
	AttrPeriodEnd   Attr = "period_end"
	AttrAmount      Attr = "amount"
	AttrReference   Attr = "reference"
	AttrContract    Attr = "contract_number"
	AttrRoom        Attr = "room"
	AttrNote        Attr = "note"
)

// DateLayout is the civil-date form dates are persisted in.
const DateLayout = "2006-01-02"

// FormatDate renders a civil date, or nil when absent so the stored field is null.
func FormatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(DateLayout)
}
