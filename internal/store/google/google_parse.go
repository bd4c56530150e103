package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"billed/internal/core"
)

// Sheet layout, one bill per row starting at row 2:
// A id | B email | C type | D name | E date | F amount | G vat | H pct |
// I commentary | J file url | K file name | L status | M created at
const (
	lastColumn = "M"
	numColumns = 13
)

func billRow(b core.Bill) []any {
	return []any{
		b.ID,
		b.Email,
		b.Type,
		b.Name,
		b.Date.String(),
		b.Amount.Decimal(),
		b.VAT.Decimal(),
		b.Pct,
		b.Commentary,
		b.FileURL,
		b.FileName,
		string(b.Status),
		b.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func parseBillRow(row []any) (core.Bill, error) {
	cols := toStrings(row)
	if len(cols) < 8 {
		return core.Bill{}, fmt.Errorf("expected at least 8 columns, got %d", len(cols))
	}
	for len(cols) < numColumns {
		cols = append(cols, "")
	}

	date, err := core.ParseDate(cols[4])
	if err != nil {
		return core.Bill{}, fmt.Errorf("date %q: %w", cols[4], err)
	}
	amount, err := core.ParseDecimalToCents(cols[5])
	if err != nil {
		return core.Bill{}, fmt.Errorf("amount %q: %w", cols[5], err)
	}
	var vat int64
	if cols[6] != "" {
		if vat, err = core.ParseNonNegativeCents(cols[6]); err != nil {
			return core.Bill{}, fmt.Errorf("vat %q: %w", cols[6], err)
		}
	}
	pct, err := strconv.Atoi(cols[7])
	if err != nil {
		return core.Bill{}, fmt.Errorf("pct %q: %w", cols[7], core.ErrInvalidPct)
	}
	status := core.Status(cols[11])
	if status == "" {
		status = core.StatusPending
	}
	created, _ := time.Parse(time.RFC3339, cols[12])

	b := core.Bill{
		ID:         cols[0],
		Email:      cols[1],
		Type:       cols[2],
		Name:       cols[3],
		Date:       date,
		Amount:     core.Money{Cents: amount},
		VAT:        core.Money{Cents: vat},
		Pct:        pct,
		Commentary: cols[8],
		FileURL:    cols[9],
		FileName:   cols[10],
		Status:     status,
		CreatedAt:  created,
	}
	if b.ID == "" {
		return core.Bill{}, fmt.Errorf("missing id")
	}
	return b, nil
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
