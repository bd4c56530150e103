package core

import (
	"path"
	"strings"
)

var (
	allowedReceiptExts  = map[string]struct{}{"png": {}, "jpg": {}, "jpeg": {}}
	allowedReceiptMimes = map[string]struct{}{"image/png": {}, "image/jpeg": {}, "image/jpg": {}}
)

// ReceiptCheck is the outcome of CheckReceipt. Callers branch on Accepted.
type ReceiptCheck struct {
	Accepted bool
	Ext      string // lower-cased, without the dot
	Reason   string // set when rejected
}

// CheckReceipt reports whether a receipt file may be attached. The extension
// must be png, jpg or jpeg (any case). A MIME type, when present, must be an
// image type matching that set.
func CheckReceipt(name, mimeType string) ReceiptCheck {
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(name)), "."))
	if _, ok := allowedReceiptExts[ext]; !ok {
		return ReceiptCheck{Ext: ext, Reason: "seuls les fichiers jpg, jpeg et png sont acceptés"}
	}
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType != "" && mimeType != "application/octet-stream" {
		if _, ok := allowedReceiptMimes[mimeType]; !ok {
			return ReceiptCheck{Ext: ext, Reason: "type de fichier non supporté: " + mimeType}
		}
	}
	return ReceiptCheck{Accepted: true, Ext: ext}
}

// Check runs CheckReceipt on the file's name and MIME type.
func (f AttachedFile) Check() ReceiptCheck {
	return CheckReceipt(f.Name, f.MimeType)
}
