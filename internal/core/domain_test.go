package core

import (
	"errors"
	"testing"
	"time"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in string
		ok bool
	}{
		{"2022-08-08", true},
		{" 2004-04-04 ", true},
		{"2024-02-29", true},
		{"2023-02-30", false},
		{"08/08/2022", false},
		{"4 Avr. 04", false},
		{"", false},
	}
	for _, tc := range cases {
		d, err := ParseDate(tc.in)
		if tc.ok && err != nil {
			t.Fatalf("%q expected ok, got %v", tc.in, err)
		}
		if !tc.ok && !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("%q expected ErrInvalidDate, got %v (date=%v)", tc.in, err, d)
		}
	}
}

func TestDateStringAndDisplay(t *testing.T) {
	d := NewDate(2004, 4, 4)
	if d.String() != "2004-04-04" {
		t.Fatalf("unexpected iso: %q", d.String())
	}
	if d.Display() != "4 Avr. 04" {
		t.Fatalf("unexpected display: %q", d.Display())
	}
	if got := NewDate(2021, 12, 25).Display(); got != "25 Déc. 21" {
		t.Fatalf("unexpected display: %q", got)
	}
	if (Date{}).String() != "" || (Date{}).Display() != "" {
		t.Fatalf("zero date should render empty")
	}
}

func TestStatusValidateAndLabel(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusAccepted, StatusRefused} {
		if err := s.Validate(); err != nil {
			t.Fatalf("%s expected valid, got %v", s, err)
		}
	}
	if err := Status("archived").Validate(); err == nil {
		t.Fatalf("expected error for unknown status")
	}
	if StatusPending.Label() != "En attente" {
		t.Fatalf("unexpected label %q", StatusPending.Label())
	}
}

func validBill() Bill {
	return Bill{
		ID:         "b1",
		Email:      "a@a",
		Type:       "Transports",
		Name:       "Vol de Test",
		Date:       NewDate(2022, 8, 8),
		Amount:     Money{Cents: 30000},
		VAT:        Money{Cents: 8000},
		Pct:        20,
		Commentary: "Comment",
		FileURL:    "/receipts/k",
		FileName:   "test.png",
		Status:     StatusPending,
		CreatedAt:  time.Now(),
	}
}

func TestBillValidate(t *testing.T) {
	if err := validBill().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := map[string]func(b *Bill){
		"zero date":    func(b *Bill) { b.Date = Date{} },
		"no owner":     func(b *Bill) { b.Email = " " },
		"no type":      func(b *Bill) { b.Type = "" },
		"no name":      func(b *Bill) { b.Name = "" },
		"zero amount":  func(b *Bill) { b.Amount = Money{} },
		"negative vat": func(b *Bill) { b.VAT = Money{Cents: -1} },
		"pct > 100":    func(b *Bill) { b.Pct = 101 },
		"bad status":   func(b *Bill) { b.Status = "" },
	}
	for name, mutate := range bads {
		b := validBill()
		mutate(&b)
		if err := b.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("Erreur 500")

	var sub error = &SubmissionError{Err: cause}
	if !errors.Is(sub, cause) {
		t.Fatalf("SubmissionError should unwrap to its cause")
	}

	var list error = &ListFetchError{Err: errors.New("Erreur 404")}
	if list.Error() != "Erreur 404" {
		t.Fatalf("ListFetchError should keep the message verbatim, got %q", list.Error())
	}

	v := NewValidationError("date", ErrInvalidDate)
	if !errors.Is(v, ErrInvalidDate) {
		t.Fatalf("ValidationError should unwrap")
	}
	var target *ValidationError
	if !errors.As(error(v), &target) || target.Field != "date" {
		t.Fatalf("errors.As failed: %v", target)
	}
}
