package document

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Status constants for the document pipeline.
const (
	StatusUploaded   = "uploaded"
	StatusProcessing = "processing"
	StatusExtracted  = "extracted"
	StatusOCRFailed  = "ocr_failed"
	StatusApproved   = "approved"
	StatusRejected   = "rejected"
)

// Kind constants
const (
	KindPassport       = "passport"
	KindIDCard         = "id_card"
	KindDrivingLicense = "driving_license"
)

// MaxReviewNote bounds the reviewer's note.
const MaxReviewNote = 1000

var transitions = map[string][]string{
	StatusUploaded:   {StatusProcessing},
	StatusProcessing: {StatusExtracted, StatusOCRFailed},
	StatusExtracted:  {StatusApproved, StatusRejected, StatusProcessing},
	StatusOCRFailed:  {StatusProcessing, StatusRejected},
}

// Domain errors
var (
	ErrEmptyAccountID    = errors.New("account ID is required")
	ErrInvalidKind       = errors.New("kind must be one of: passport, id_card, driving_license")
	ErrEmptyBlobKey      = errors.New("blob key is required")
	ErrInvalidTransition = errors.New("document status transition not allowed")
	ErrNoteTooLong       = errors.New("review note cannot exceed 1000 characters")
	ErrRejectNeedsNote   = errors.New("a note is required when rejecting a document")
	ErrInvalidDate       = errors.New("date must be YYYY-MM-DD")
)

// Fields holds what OCR extracted, or what a reviewer corrected.
type Fields struct {
	DocumentType   string  `json:"document_type"`
	FullName       string  `json:"full_name"`
	DocumentNumber string  `json:"document_number"`
	DateOfBirth    string  `json:"date_of_birth"`
	ExpiryDate     string  `json:"expiry_date"`
	Nationality    string  `json:"nationality"`
	Address        string  `json:"address"`
	Confidence     float64 `json:"confidence"`
}

// IsEmpty reports whether no field carries a value.
func (f Fields) IsEmpty() bool {
	return f.FullName == "" && f.DocumentNumber == "" && f.DateOfBirth == "" &&
		f.ExpiryDate == "" && f.Nationality == "" && f.Address == "" && f.DocumentType == ""
}

// Merge overlays non-empty corrections onto f.
func (f Fields) Merge(c Fields) Fields {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&f.DocumentType, c.DocumentType)
	set(&f.FullName, c.FullName)
	set(&f.DocumentNumber, c.DocumentNumber)
	set(&f.DateOfBirth, c.DateOfBirth)
	set(&f.ExpiryDate, c.ExpiryDate)
	set(&f.Nationality, c.Nationality)
	set(&f.Address, c.Address)
	return f
}

// ValidateDates checks that populated date fields use YYYY-MM-DD.
func (f Fields) ValidateDates() error {
	for _, d := range []string{f.DateOfBirth, f.ExpiryDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse("2006-01-02", d); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

// Document is an uploaded identity document and its OCR outcome.
type Document struct {
	ID          string
	AccountID   string
	RequestID   string
	Kind        string
	BlobKey     string
	FileName    string
	ContentType string
	SizeBytes   int64
	SHA256      string
	Status      string
	Fields      Fields
	RawText     string
	Provider    string
	OCRError    string
	ReviewNote  string
	ReviewedBy  string
	ReviewedAt  time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BlobKeyFor builds the storage key for a document.
func BlobKeyFor(accountID, docID, ext string) string {
	return fmt.Sprintf("documents/%s/%s%s", accountID, docID, ext)
}

// IsValidKind reports whether k is a supported document kind.
func IsValidKind(k string) bool {
	return k == KindPassport || k == KindIDCard || k == KindDrivingLicense
}

// Validate checks the document record.
// PRE: Document struct is populated
// POST: Returns nil if valid, error otherwise
func (d *Document) Validate() error {
	if d.AccountID == "" {
		return ErrEmptyAccountID
	}
	if !IsValidKind(d.Kind) {
		return ErrInvalidKind
	}
	if d.BlobKey == "" {
		return ErrEmptyBlobKey
	}
	if utf8.RuneCountInString(d.ReviewNote) > MaxReviewNote {
		return ErrNoteTooLong
	}
	return nil
}

func (d *Document) transition(to string, now time.Time) error {
	for _, s := range transitions[d.Status] {
		if s == to {
			d.Status = to
			d.UpdatedAt = now
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, to)
}

// StartProcessing marks OCR as running. Allowed for new uploads and re-runs.
// POST: Status is processing, previous OCR error cleared
func (d *Document) StartProcessing(now time.Time) error {
	if err := d.transition(StatusProcessing, now); err != nil {
		return err
	}
	d.OCRError = ""
	return nil
}

// MarkExtracted stores the OCR result.
// PRE: Status is processing
// POST: Status is extracted, Fields/RawText/Provider set
func (d *Document) MarkExtracted(f Fields, rawText, provider string, now time.Time) error {
	if err := d.transition(StatusExtracted, now); err != nil {
		return err
	}
	d.Fields = f
	d.RawText = rawText
	d.Provider = provider
	return nil
}

// MarkOCRFailed records a provider failure.
// PRE: Status is processing
// POST: Status is ocr_failed, OCRError set
func (d *Document) MarkOCRFailed(cause error, provider string, now time.Time) error {
	if err := d.transition(StatusOCRFailed, now); err != nil {
		return err
	}
	d.OCRError = cause.Error()
	d.Provider = provider
	return nil
}

// Approve accepts the document, applying reviewer corrections.
// PRE: Status is extracted
// POST: Status is approved, reviewer fields set
func (d *Document) Approve(reviewerID, note string, corrections Fields, now time.Time) error {
	if utf8.RuneCountInString(note) > MaxReviewNote {
		return ErrNoteTooLong
	}
	merged := d.Fields.Merge(corrections)
	if err := merged.ValidateDates(); err != nil {
		return err
	}
	if err := d.transition(StatusApproved, now); err != nil {
		return err
	}
	d.Fields = merged
	d.markReviewed(reviewerID, note, now)
	return nil
}

// Reject refuses the document. A note telling the customer why is required.
// PRE: Status is extracted or ocr_failed
// POST: Status is rejected, reviewer fields set
func (d *Document) Reject(reviewerID, note string, now time.Time) error {
	note = strings.TrimSpace(note)
	if note == "" {
		return ErrRejectNeedsNote
	}
	if utf8.RuneCountInString(note) > MaxReviewNote {
		return ErrNoteTooLong
	}
	if err := d.transition(StatusRejected, now); err != nil {
		return err
	}
	d.markReviewed(reviewerID, note, now)
	return nil
}

func (d *Document) markReviewed(reviewerID, note string, now time.Time) {
	d.ReviewedBy = reviewerID
	d.ReviewNote = strings.TrimSpace(note)
	d.ReviewedAt = now
}

// AwaitingReview reports whether staff need to look at the document.
func (d *Document) AwaitingReview() bool {
	return d.Status == StatusExtracted || d.Status == StatusOCRFailed
}
