// Package http serves the bills web UI.
//
// This file implements utilities for reading form fields and receipt
// uploads from requests.

package http

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"billed/internal/core"
	"billed/internal/newbill"
)

// receiptField is the multipart field carrying the receipt.
const receiptField = "file"

var (
	errUploadTooLarge = errors.New("receipt too large")
	errNoUpload       = errors.New("no receipt in request")
)

// ParseBillFields reads the new bill form fields. Control characters are
// stripped and surrounding spaces trimmed.
func ParseBillFields(r *http.Request) (newbill.Fields, error) {
	if err := r.ParseForm(); err != nil {
		return newbill.Fields{}, fmt.Errorf("parse form: %w", err)
	}
	return newbill.Fields{
		Type:       sanitizeInput(r.PostForm.Get("type")),
		Name:       sanitizeInput(r.PostForm.Get("name")),
		Date:       sanitizeInput(r.PostForm.Get("date")),
		Amount:     sanitizeInput(r.PostForm.Get("amount")),
		VAT:        sanitizeInput(r.PostForm.Get("vat")),
		Pct:        sanitizeInput(r.PostForm.Get("pct")),
		Commentary: sanitizeInput(r.PostForm.Get("commentary")),
	}, nil
}

// ReadReceiptUpload reads the multipart receipt file, refusing bodies over
// maxBytes with errUploadTooLarge.
func ReadReceiptUpload(w http.ResponseWriter, r *http.Request, maxBytes int64) (core.AttachedFile, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			return core.AttachedFile{}, errUploadTooLarge
		}
		return core.AttachedFile{}, fmt.Errorf("parse multipart form: %w", err)
	}

	file, header, err := r.FormFile(receiptField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return core.AttachedFile{}, errNoUpload
		}
		return core.AttachedFile{}, fmt.Errorf("read form file: %w", err)
	}
	defer file.Close()

	return readAttachedFile(file, header)
}

func readAttachedFile(file multipart.File, header *multipart.FileHeader) (core.AttachedFile, error) {
	data, err := io.ReadAll(file)
	if err != nil {
		return core.AttachedFile{}, fmt.Errorf("read receipt: %w", err)
	}
	return core.AttachedFile{
		Name:     sanitizeInput(header.Filename),
		MimeType: header.Header.Get("Content-Type"),
		Data:     data,
	}, nil
}

// sanitizeInput removes control characters except tab and newlines and
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

// isHTMX reports whether r was issued by htmx.
func isHTMX(r *http.Request) bool {
	return r.Header.Get("HX-Request") == "true"
}
