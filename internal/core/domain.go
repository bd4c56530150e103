package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRefused  Status = "refused"
)

// ISODate is the layout used for dates on the wire and in storage.
const ISODate = "2006-01-02"

type (
	Status string

	Date struct {
		time.Time
	}

	Money struct {
		Cents int64
	}

	// Bill is a single expense report line submitted by an employee.
	Bill struct {
		ID         string
		Email      string // owner
		Type       string
		Name       string
		Date       Date
		Amount     Money
		VAT        Money
		Pct        int
		Commentary string
		FileURL    string
		FileName   string
		Status     Status
		CreatedAt  time.Time
	}

	// AttachedFile is a receipt selected in the form, before it is accepted or discarded.
	AttachedFile struct {
		Name     string
		MimeType string
		Data     []byte
	}

	// Receipt references a stored receipt file.
	Receipt struct {
		Key      string
		FileURL  string
		FileName string
	}
)

// BillTypes lists the expense categories offered by the new bill form.
var BillTypes = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}

var (
	ErrInvalidDate       = errors.New("invalid date")
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidVAT        = errors.New("invalid vat")
	ErrInvalidPct        = errors.New("invalid percentage")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrEmptyType         = errors.New("empty expense type")
	ErrEmptyName         = errors.New("empty expense name")
	ErrEmptyOwner        = errors.New("empty owner email")
	ErrNameTooLong       = errors.New("name too long (max 200 characters)")
	ErrCommentaryTooLong = errors.New("commentary too long (max 1000 characters)")
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO YYYY-MM-DD date. Impossible calendar dates
// (2023-02-30) are rejected rather than normalized.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(ISODate, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String returns the ISO representation, which sorts lexically in date order.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(ISODate)
}

var frenchMonths = [...]string{"Jan", "Fév", "Mar", "Avr", "Mai", "Jui", "Jui", "Aoû", "Sep", "Oct", "Nov", "Déc"}

// Display renders the date as "D Mon. YY" with French month abbreviations,
// e.g. 2004-04-04 -> "4 Avr. 04". It is for display only and does not sort.
func (d Date) Display() string {
	if d.IsZero() {
		return ""
	}
	return fmt.Sprintf("%d %s. %02d", d.Day(), frenchMonths[d.Month()-1], d.Year()%100)
}

func (s Status) Validate() error {
	switch s {
	case StatusPending, StatusAccepted, StatusRefused:
		return nil
	}
	return ErrInvalidStatus
}

// Label is the user-facing status text.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "En attente"
	case StatusAccepted:
		return "Accepté"
	case StatusRefused:
		return "Refusé"
	}
	return string(s)
}

func (b Bill) Validate() error {
	if err := b.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(b.Email) == "" {
		return ErrEmptyOwner
	}
	if strings.TrimSpace(b.Type) == "" {
		return ErrEmptyType
	}
	if strings.TrimSpace(b.Name) == "" {
		return ErrEmptyName
	}
	if len(b.Name) > 200 {
		return ErrNameTooLong
	}
	if len(b.Commentary) > 1000 {
		return ErrCommentaryTooLong
	}
	if b.Amount.Cents <= 0 {
		return ErrInvalidAmount
	}
	if b.VAT.Cents < 0 {
		return ErrInvalidVAT
	}
	if b.Pct < 0 || b.Pct > 100 {
		return ErrInvalidPct
	}
	return b.Status.Validate()
}
