// Package upload checks user-supplied files by content, not by what the client claims.
package upload

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
)

// Size limits.
const (
	MaxDocumentBytes = 10 << 20
	MaxImageBytes    = 8 << 20
	MaxFileNameLen   = 100
	// SniffLen is how many leading bytes Detect needs.
	SniffLen = 16
)

// Detected content types.
const (
	TypeJPEG = "image/jpeg"
	TypePNG  = "image/png"
	TypeWEBP = "image/webp"
	TypeHEIC = "image/heic"
	TypePDF  = "application/pdf"
)

// Purpose selects the rule set applied to an upload.
type Purpose int

const (
	// PurposeDocument accepts identity document scans and PDFs.
	PurposeDocument Purpose = iota
	// PurposeImage accepts stock car photos.
	PurposeImage
)

// Domain errors
var (
	ErrEmpty            = errors.New("file is empty")
	ErrTooLarge         = errors.New("file exceeds the size limit")
	ErrUnsupportedType  = errors.New("file type is not supported")
	ErrExtensionMissing = errors.New("file name must have an extension")
	ErrTypeMismatch     = errors.New("file content does not match its extension")
)

var extensionTypes = map[string]string{
	".jpg":  TypeJPEG,
	".jpeg": TypeJPEG,
	".png":  TypePNG,
	".webp": TypeWEBP,
	".heic": TypeHEIC,
	".heif": TypeHEIC,
	".pdf":  TypePDF,
}

var canonicalExt = map[string]string{
	TypeJPEG: ".jpg",
	TypePNG:  ".png",
	TypeWEBP: ".webp",
	TypeHEIC: ".heic",
	TypePDF:  ".pdf",
}

// Result describes an accepted file.
type Result struct {
	ContentType string
	Extension   string
	FileName    string
}

// Detect identifies the file type from its magic bytes. Returns "" when unknown.
func Detect(head []byte) string {
	switch {
	case len(head) >= 3 && head[0] == 0xFF && head[1] == 0xD8 && head[2] == 0xFF:
		return TypeJPEG
	case bytes.HasPrefix(head, []byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}):
		return TypePNG
	case len(head) >= 12 && bytes.Equal(head[0:4], []byte("RIFF")) && bytes.Equal(head[8:12], []byte("WEBP")):
		return TypeWEBP
	case bytes.HasPrefix(head, []byte("%PDF-")):
		return TypePDF
	case len(head) >= 12 && bytes.Equal(head[4:8], []byte("ftyp")):
		switch string(head[8:12]) {
		case "heic", "heix", "mif1":
			return TypeHEIC
		}
	}
	return ""
}

// Validate checks size, detected type and extension for the given purpose.
// PRE: head holds at least the first SniffLen bytes of the file (fewer if the file is shorter)
// POST: Returns the detected type and a sanitized file name, or a domain error
func Validate(purpose Purpose, fileName string, size int64, head []byte) (Result, error) {
	if size <= 0 || len(head) == 0 {
		return Result{}, ErrEmpty
	}
	limit := int64(MaxDocumentBytes)
	if purpose == PurposeImage {
		limit = MaxImageBytes
	}
	if size > limit {
		return Result{}, ErrTooLarge
	}

	detected := Detect(head)
	if detected == "" {
		return Result{}, ErrUnsupportedType
	}
	if purpose == PurposeImage && detected == TypePDF {
		return Result{}, ErrUnsupportedType
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if ext == "" {
		return Result{}, ErrExtensionMissing
	}
	declared, ok := extensionTypes[ext]
	if !ok {
		return Result{}, ErrUnsupportedType
	}
	if declared != detected {
		return Result{}, ErrTypeMismatch
	}

	return Result{
		ContentType: detected,
		Extension:   canonicalExt[detected],
		FileName:    SanitizeFileName(fileName),
	}, nil
}

// SanitizeFileName keeps the base name, replaces unsafe characters and truncates
// while preserving the extension.
func SanitizeFileName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		out = "file"
	}
	if len(out) > MaxFileNameLen {
		ext := filepath.Ext(out)
		if len(ext) > 10 {
			ext = ""
		}
		out = out[:MaxFileNameLen-len(ext)] + ext
	}
	return out
}
