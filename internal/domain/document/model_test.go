package document_test

import (
	"errors"
	"testing"
	"time"

	"carimport/internal/domain/document"
)

var now = time.Date(2026, 7, 14, 15, 30, 0, 0, time.UTC)

func TestNormalizeDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1990-03-25", "1990-03-25"},
		{"25.03.1990", "1990-03-25"},
		{"25.03.1990.", "1990-03-25"},
		{"5.3.1990", "1990-03-05"},
		{"25/03/1990", "1990-03-25"},
		{"25 Mar 1990", "1990-03-25"},
		{"March 25, 1990", "1990-03-25"},
		{"1990-03-25T00:00:00Z", "1990-03-25"},
		{"19900325", "1990-03-25"},
		{"not a date", ""},
		{"", ""},
	}
	for _, tt := range tests {
		if got := document.NormalizeDate(tt.in); got != tt.want {
			t.Errorf("NormalizeDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeBirthDate(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"550101", "1955-01-01"},
		{"900325", "1990-03-25"},
		{"050615", "2005-06-15"},
		{"261231", "1926-12-31"},
		{"25.03.1990", "1990-03-25"},
		{"2030-01-01", "2030-01-01"},
		{"garbage", ""},
	}
	for _, tt := range tests {
		if got := document.NormalizeBirthDate(tt.in, now); got != tt.want {
			t.Errorf("NormalizeBirthDate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	if got := document.NormalizeDate("300101"); got != "2030-01-01" {
		t.Errorf("expiry dates stay in this century, got %q", got)
	}
}

// TestDocument_Pipeline walks upload -> OCR -> review.
func TestDocument_Pipeline(t *testing.T) {
	d := document.Document{AccountID: "a1", Kind: document.KindPassport, BlobKey: "documents/a1/d1.jpg", Status: document.StatusUploaded}
	if err := d.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	if err := d.Approve("admin", "", document.Fields{}, now); !errors.Is(err, document.ErrInvalidTransition) {
		t.Fatalf("approve before OCR = %v, want ErrInvalidTransition", err)
	}
	if err := d.StartProcessing(now); err != nil {
		t.Fatalf("StartProcessing() = %v", err)
	}
	if err := d.MarkOCRFailed(errors.New("provider timeout"), "azure", now); err != nil {
		t.Fatalf("MarkOCRFailed() = %v", err)
	}
	if !d.AwaitingReview() || d.OCRError != "provider timeout" {
		t.Errorf("after failure: awaiting=%v err=%q", d.AwaitingReview(), d.OCRError)
	}

	// re-run
	if err := d.StartProcessing(now); err != nil {
		t.Fatalf("re-run StartProcessing() = %v", err)
	}
	if d.OCRError != "" {
		t.Error("re-run should clear the OCR error")
	}
	fields := document.Fields{FullName: "ANA PETROVIC", DocumentNumber: "123456789", DateOfBirth: "1990-03-25"}
	if err := d.MarkExtracted(fields, "raw", "azure", now); err != nil {
		t.Fatalf("MarkExtracted() = %v", err)
	}

	if err := d.Approve("admin-1", "checked", document.Fields{FullName: "Ana Petrović", ExpiryDate: "31.12.2030"}, now); err != document.ErrInvalidDate {
		t.Fatalf("Approve with bad date = %v, want ErrInvalidDate", err)
	}
	if err := d.Approve("admin-1", "checked", document.Fields{FullName: "Ana Petrović", ExpiryDate: "2030-12-31"}, now); err != nil {
		t.Fatalf("Approve() = %v", err)
	}
	if d.Status != document.StatusApproved || d.Fields.FullName != "Ana Petrović" || d.Fields.DocumentNumber != "123456789" {
		t.Errorf("after approve: %+v", d)
	}
	if d.ReviewedBy != "admin-1" || !d.ReviewedAt.Equal(now) {
		t.Errorf("reviewer not recorded: %q %v", d.ReviewedBy, d.ReviewedAt)
	}
}

func TestDocument_Reject(t *testing.T) {
	d := document.Document{Status: document.StatusExtracted}
	if err := d.Reject("admin", "  ", now); err != document.ErrRejectNeedsNote {
		t.Fatalf("Reject without note = %v", err)
	}
	if err := d.Reject("admin", "Photo is blurry", now); err != nil {
		t.Fatalf("Reject() = %v", err)
	}
	if d.Status != document.StatusRejected || d.ReviewNote != "Photo is blurry" {
		t.Errorf("after reject: %+v", d)
	}
	if err := d.StartProcessing(now); !errors.Is(err, document.ErrInvalidTransition) {
		t.Errorf("re-run after reject = %v, want ErrInvalidTransition", err)
	}
}

func TestBlobKeyFor(t *testing.T) {
	if got := document.BlobKeyFor("acct", "doc", ".pdf"); got != "documents/acct/doc.pdf" {
		t.Errorf("BlobKeyFor = %q", got)
	}
}
