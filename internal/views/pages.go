package views

import (
	"html/template"

	"billed/internal/core"
	"billed/internal/session"
)

// Page is the data every full page template receives.
type Page struct {
	Title  string
	Active string // nav entry to highlight: "bills" or "new"
	User   *session.User
	Error  string

	List template.HTML
	Form *NewBillForm
}

// FormValues echoes what the user typed so a rejected form keeps its input.
type FormValues struct {
	Type       string
	Name       string
	Date       string
	Amount     string
	VAT        string
	Pct        string
	Commentary string
}

// NewBillForm is the data of the new bill form partial.
type NewBillForm struct {
	Types      []string
	Values     FormValues
	Attachment AttachmentView
	Error      string
	Submitting bool
}

type AttachmentView struct {
	FileName string
	FileURL  string
}

// EmptyNewBillForm returns a blank form with the known expense types.
func EmptyNewBillForm() *NewBillForm {
	return &NewBillForm{Types: core.BillTypes}
}

// HTMLFragment marks already rendered template output for embedding in a
// page.
func HTMLFragment(s string) template.HTML {
	return template.HTML(s)
}
