package core

import "slices"

// SortByDateDesc returns a copy of bills ordered latest first. Bills sharing
// a date keep their input order. The comparison is on the date value, never
// on a rendered string.
func SortByDateDesc(bills []Bill) []Bill {
	out := slices.Clone(bills)
	slices.SortStableFunc(out, func(a, b Bill) int {
		return b.Date.Compare(a.Date.Time)
	})
	return out
}
