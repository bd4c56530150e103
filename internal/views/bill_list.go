package views

import (
	"io"

	"billed/internal/core"
)

type modeKind int

const (
	modeNormal modeKind = iota
	modeError
	modeLoading
)

// Mode selects what the bill list shows.
type Mode struct {
	kind    modeKind
	message string
}

func Normal() Mode { return Mode{kind: modeNormal} }

// Error shows the error view with message instead of any records.
func Error(message string) Mode { return Mode{kind: modeError, message: message} }

func Loading() Mode { return Mode{kind: modeLoading} }

func (m Mode) IsNormal() bool  { return m.kind == modeNormal }
func (m Mode) IsError() bool   { return m.kind == modeError }
func (m Mode) IsLoading() bool { return m.kind == modeLoading }
func (m Mode) Message() string { return m.message }

func (m Mode) String() string {
	switch m.kind {
	case modeError:
		return "error"
	case modeLoading:
		return "loading"
	}
	return "normal"
}

// Row is the display model of one bill.
type Row struct {
	ID          string
	Type        string
	Name        string
	Date        string // ISO, order-preserving
	DisplayDate string
	Amount      string
	VAT         string
	Pct         int
	Status      core.Status
	StatusLabel string
	FileURL     string
	FileName    string
	Email       string
}

func (r Row) HasReceipt() bool { return r.FileURL != "" }

// NewRow builds the display model of b.
func NewRow(b core.Bill) Row {
	return Row{
		ID:          b.ID,
		Type:        b.Type,
		Name:        b.Name,
		Date:        b.Date.String(),
		DisplayDate: b.Date.Display(),
		Amount:      b.Amount.String(),
		VAT:         b.VAT.String(),
		Pct:         b.Pct,
		Status:      b.Status,
		StatusLabel: b.Status.Label(),
		FileURL:     b.FileURL,
		FileName:    b.FileName,
		Email:       b.Email,
	}
}

// Rows returns the display rows latest first. Bills sharing a date keep
// their input order. bills is not modified.
func Rows(bills []core.Bill) []Row {
	sorted := core.SortByDateDesc(bills)
	out := make([]Row, len(sorted))
	for i, b := range sorted {
		out[i] = NewRow(b)
	}
	return out
}

// BillList renders the bill list in one of its modes.
type BillList struct {
	templates *Templates
}

type billListData struct {
	Mode Mode
	Rows []Row
}

// Render writes the list. Error and loading modes never look at bills.
func (l *BillList) Render(w io.Writer, bills []core.Bill, mode Mode) error {
	data := billListData{Mode: mode}
	if mode.IsNormal() {
		data.Rows = Rows(bills)
	}
	return l.templates.Execute(w, "bill_list", data)
}
