package http

import (
	"bytes"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
)

func multipartRequest(t *testing.T, target, field, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+filename+`"`)
		if contentType != "" {
			h.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(h)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		_, _ = part.Write(data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestParseBillFields(t *testing.T) {
	form := url.Values{
		"type":       {" Transports "},
		"name":       {"Vol\x00 de Test"},
		"date":       {"2022-08-08"},
		"amount":     {"348"},
		"vat":        {"70"},
		"pct":        {"20"},
		"commentary": {"ligne 1\nligne 2"},
	}
	req := httptest.NewRequest(http.MethodPost, "/bills/new", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	f, err := ParseBillFields(req)
	if err != nil {
		t.Fatalf("ParseBillFields: %v", err)
	}
	if f.Type != "Transports" || f.Name != "Vol de Test" || f.Date != "2022-08-08" ||
		f.Amount != "348" || f.VAT != "70" || f.Pct != "20" || f.Commentary != "ligne 1\nligne 2" {
		t.Errorf("unexpected fields: %+v", f)
	}
}

func TestReadReceiptUpload(t *testing.T) {
	req := multipartRequest(t, "/bills/new/file", "file", "test.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
	f, err := ReadReceiptUpload(httptest.NewRecorder(), req, 1<<20)
	if err != nil {
		t.Fatalf("ReadReceiptUpload: %v", err)
	}
	if f.Name != "test.png" || f.MimeType != "image/png" || len(f.Data) != 4 {
		t.Errorf("unexpected file: %+v", f)
	}
}

func TestReadReceiptUpload_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		req := multipartRequest(t, "/bills/new/file", "", "", "", nil)
		if _, err := ReadReceiptUpload(httptest.NewRecorder(), req, 1<<20); !errors.Is(err, errNoUpload) {
			t.Errorf("expected errNoUpload, got %v", err)
		}
	})

	t.Run("too large", func(t *testing.T) {
		req := multipartRequest(t, "/bills/new/file", "file", "big.png", "image/png", bytes.Repeat([]byte{1}, 4096))
		if _, err := ReadReceiptUpload(httptest.NewRecorder(), req, 1024); !errors.Is(err, errUploadTooLarge) {
			t.Errorf("expected errUploadTooLarge, got %v", err)
		}
	})

	t.Run("not multipart", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/bills/new/file", strings.NewReader("a=b"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if _, err := ReadReceiptUpload(httptest.NewRecorder(), req, 1024); err == nil {
			t.Error("expected an error")
		}
	})
}

func TestSanitizeInput(t *testing.T) {
	tests := map[string]string{
		"  hello  ":     "hello",
		"a\x01b\x1fc":   "abc",
		"tab\there":     "tab\there",
		"\r\nkeep\r\n ": "keep",
	}
	for in, want := range tests {
		if got := sanitizeInput(in); got != want {
			t.Errorf("sanitizeInput(%q) = %q, want %q", in, got, want)
		}
	}
}
