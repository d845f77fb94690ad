package orchestrators

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"carimport/internal/adapters/analytics"
	"carimport/internal/adapters/blob"
	emailAdapter "carimport/internal/adapters/email"
	"carimport/internal/adapters/ocr"
	"carimport/internal/adapters/storage"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/document"
	domainOutbox "carimport/internal/domain/outbox"
	"carimport/internal/domain/upload"
)

// DocumentStore defines the store interface needed by document orchestrators.
type DocumentStore interface {
	GetByID(ctx context.Context, id string) (document.Document, error)
	GetByAccountSHA(ctx context.Context, accountID, sha256 string) (document.Document, error)
	Save(ctx context.Context, d document.Document) error
}

// AccountLookup resolves an account by ID.
type AccountLookup interface {
	GetByID(ctx context.Context, id string) (account.Account, error)
}

// DocumentOCRPayload is the outbox payload of a document_ocr action.
type DocumentOCRPayload struct {
	DocumentID string `json:"document_id"`
}

// UploadDocumentInput carries an identity document upload.
type UploadDocumentInput struct {
	AccountID string
	RequestID string // optional link to one of the customer's requests
	Kind      string
	FileName  string
	Data      []byte
	IP        string
	UserAgent string
}

// UploadDocumentResult reports the stored document.
type UploadDocumentResult struct {
	Document  document.Document
	Duplicate bool // the same file was uploaded before; nothing new was stored
}

// UploadDocumentDeps holds dependencies for UploadDocument.
type UploadDocumentDeps struct {
	DocumentStore DocumentStore
	RequestStore  CarRequestStore // optional, checks RequestID ownership
	Blob          blob.Store
	Outbox        OutboxWriter
	Tracker       analytics.Tracker // optional
	GenerateID    func() string
	Now           func() time.Time
}

// ExecuteUploadDocument validates and stores an identity document and queues OCR.
// PRE: AccountID is the logged-in customer
// POST: Blob stored at documents/<account>/<id><ext>, document saved as uploaded,
// document_ocr entry queued. Re-uploading identical bytes returns the existing document.
func ExecuteUploadDocument(ctx context.Context, input UploadDocumentInput, deps UploadDocumentDeps) (UploadDocumentResult, error) {
	if input.AccountID == "" {
		return UploadDocumentResult{}, document.ErrEmptyAccountID
	}
	if !document.IsValidKind(input.Kind) {
		return UploadDocumentResult{}, document.ErrInvalidKind
	}
	head := input.Data
	if len(head) > upload.SniffLen {
		head = head[:upload.SniffLen]
	}
	checked, err := upload.Validate(upload.PurposeDocument, input.FileName, int64(len(input.Data)), head)
	if err != nil {
		return UploadDocumentResult{}, err
	}
	if input.RequestID != "" && deps.RequestStore != nil {
		req, err := deps.RequestStore.GetByID(ctx, input.RequestID)
		if err != nil {
			return UploadDocumentResult{}, fmt.Errorf("load car request: %w", err)
		}
		if !req.OwnedBy(input.AccountID) {
			return UploadDocumentResult{}, ErrForbidden
		}
	}

	sum := sha256.Sum256(input.Data)
	digest := hex.EncodeToString(sum[:])
	existing, err := deps.DocumentStore.GetByAccountSHA(ctx, input.AccountID, digest)
	if err == nil {
		slog.Info("document_upload_duplicate", "document_id", existing.ID, "account_id", input.AccountID)
		return UploadDocumentResult{Document: existing, Duplicate: true}, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return UploadDocumentResult{}, fmt.Errorf("check duplicate document: %w", err)
	}

	now := nowFrom(deps.Now)
	id := newID(deps.GenerateID)
	doc := document.Document{
		ID:          id,
		AccountID:   input.AccountID,
		RequestID:   input.RequestID,
		Kind:        input.Kind,
		BlobKey:     document.BlobKeyFor(input.AccountID, id, checked.Extension),
		FileName:    checked.FileName,
		ContentType: checked.ContentType,
		SizeBytes:   int64(len(input.Data)),
		SHA256:      digest,
		Status:      document.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := doc.Validate(); err != nil {
		return UploadDocumentResult{}, err
	}

	if err := deps.Blob.Put(ctx, doc.BlobKey, input.Data, doc.ContentType); err != nil {
		return UploadDocumentResult{}, fmt.Errorf("store document file: %w", err)
	}
	if err := deps.DocumentStore.Save(ctx, doc); err != nil {
		if delErr := deps.Blob.Delete(ctx, doc.BlobKey); delErr != nil {
			slog.Error("document_blob_cleanup_failed", "blob_key", doc.BlobKey, "error", delErr)
		}
		return UploadDocumentResult{}, fmt.Errorf("save document: %w", err)
	}

	if _, err := queueDocumentOCR(ctx, deps.Outbox, doc.ID, deps.GenerateID, now); err != nil {
		// The document is stored; staff can start OCR from the console.
		slog.Error("document_ocr_queue_failed", "document_id", doc.ID, "error", err)
	}
	slog.Info("document_uploaded", "document_id", doc.ID, "account_id", doc.AccountID, "kind", doc.Kind,
		"content_type", doc.ContentType, "size", doc.SizeBytes)
	if deps.Tracker != nil {
		deps.Tracker.Track(ctx, analytics.Event{
			Name:      analytics.EventDocumentUploaded,
			IP:        input.IP,
			UserAgent: input.UserAgent,
			Props:     map[string]string{"kind": doc.Kind},
		})
	}
	return UploadDocumentResult{Document: doc}, nil
}

func queueDocumentOCR(ctx context.Context, out OutboxWriter, documentID string, gen func() string, now time.Time) (string, error) {
	if out == nil {
		return "", errors.New("outbox not configured")
	}
	entry, err := domainOutbox.NewEntry(newID(gen), domainOutbox.ActionTypeDocumentOCR, DocumentOCRPayload{DocumentID: documentID}, now)
	if err != nil {
		return "", err
	}
	if err := out.Save(ctx, entry); err != nil {
		return "", fmt.Errorf("queue document OCR: %w", err)
	}
	return entry.ID, nil
}

// DocumentOCRExecutor runs OCR for queued document_ocr entries.
type DocumentOCRExecutor struct {
	Documents DocumentStore
	Blob      blob.Store
	Provider  ocr.Provider
	Now       func() time.Time
}

// Execute extracts the fields of the document named in the payload.
// PRE: payload is a JSON DocumentOCRPayload
// POST: document is extracted or ocr_failed. Provider errors that may pass on
// retry are returned so the outbox tries again; permanent ones are not.
// INVARIANT: outbox entry status managed by caller
func (e *DocumentOCRExecutor) Execute(ctx context.Context, entry domainOutbox.Entry) (string, error) {
	var p DocumentOCRPayload
	if err := entry.Decode(&p); err != nil {
		return "", err
	}
	doc, err := e.Documents.GetByID(ctx, p.DocumentID)
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	switch doc.Status {
	case document.StatusApproved, document.StatusRejected:
		slog.Info("document_ocr_skipped", "document_id", doc.ID, "status", doc.Status)
		return "skipped", nil
	case document.StatusProcessing:
		// A previous attempt stopped half way.
	default:
		if err := doc.StartProcessing(nowFrom(e.Now)); err != nil {
			return "", err
		}
		if err := e.Documents.Save(ctx, doc); err != nil {
			return "", fmt.Errorf("save document: %w", err)
		}
	}

	data, contentType, err := e.Blob.Get(ctx, doc.BlobKey)
	if err != nil {
		return "", fmt.Errorf("load document file: %w", err)
	}
	if doc.ContentType != "" {
		contentType = doc.ContentType
	}

	start := time.Now()
	res, ocrErr := e.Provider.Extract(ctx, ocr.Input{Data: data, ContentType: contentType, Kind: doc.Kind})
	now := nowFrom(e.Now)
	if ocrErr != nil {
		if err := doc.MarkOCRFailed(ocrErr, e.Provider.Name(), now); err != nil {
			return "", err
		}
		if err := e.Documents.Save(ctx, doc); err != nil {
			return "", fmt.Errorf("save document: %w", err)
		}
		slog.Warn("document_ocr_failed", "document_id", doc.ID, "provider", e.Provider.Name(), "error", ocrErr)
		if isPermanentOCRError(ocrErr) {
			return "ocr_failed", nil
		}
		return "", ocrErr
	}

	if err := doc.MarkExtracted(res.Fields, res.RawText, res.Provider, now); err != nil {
		return "", err
	}
	if err := e.Documents.Save(ctx, doc); err != nil {
		return "", fmt.Errorf("save document: %w", err)
	}
	slog.Info("document_ocr_extracted", "document_id", doc.ID, "provider", res.Provider,
		"empty", res.Fields.IsEmpty(), "duration_ms", time.Since(start).Milliseconds())
	return res.Provider, nil
}

func isPermanentOCRError(err error) bool {
	return errors.Is(err, ocr.ErrUnsupported) || errors.Is(err, ocr.ErrNoDocument) || errors.Is(err, ocr.ErrNotConfigured)
}

// ErrOCRNotRerunnable is returned when OCR is requested for a document in a final or busy state.
var ErrOCRNotRerunnable = errors.New("OCR can only be re-run for extracted or failed documents")

// RerunDocumentOCRInput carries input for ExecuteRerunDocumentOCR.
type RerunDocumentOCRInput struct {
	DocumentID string
	Actor      audit.Actor
}

// RerunDocumentOCRDeps holds dependencies for RerunDocumentOCR.
type RerunDocumentOCRDeps struct {
	DocumentStore DocumentStore
	Outbox        OutboxWriter
	AuditStore    AuditRecorder
	GenerateID    func() string
	Now           func() time.Time
}

// ExecuteRerunDocumentOCR queues OCR again for a document staff want re-read.
// PRE: document is extracted, ocr_failed, or still uploaded
// POST: a new document_ocr entry is queued; returns its ID
func ExecuteRerunDocumentOCR(ctx context.Context, input RerunDocumentOCRInput, deps RerunDocumentOCRDeps) (string, error) {
	doc, err := deps.DocumentStore.GetByID(ctx, input.DocumentID)
	if err != nil {
		return "", fmt.Errorf("load document: %w", err)
	}
	if !doc.AwaitingReview() && doc.Status != document.StatusUploaded {
		return "", ErrOCRNotRerunnable
	}
	entryID, err := queueDocumentOCR(ctx, deps.Outbox, doc.ID, deps.GenerateID, nowFrom(deps.Now))
	if err != nil {
		return "", err
	}
	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryDocument, audit.ActionRetry).
		WithResource("document", doc.ID).
		WithDescription("OCR re-run requested"))
	return entryID, nil
}

// ReviewDocumentInput carries a staff decision on a document.
type ReviewDocumentInput struct {
	DocumentID  string
	Approve     bool
	Note        string
	Corrections document.Fields // applied on approval
	Actor       audit.Actor
}

// ReviewDocumentDeps holds dependencies for ReviewDocument.
type ReviewDocumentDeps struct {
	DocumentStore DocumentStore
	AccountStore  AccountLookup
	AuditStore    AuditRecorder
	Notifier      *Notifier // optional
	Now           func() time.Time
}

// ExecuteReviewDocument approves or rejects a document.
// PRE: document is extracted (approve) or extracted/ocr_failed (reject)
// POST: decision saved, customer emailed, audit written
func ExecuteReviewDocument(ctx context.Context, input ReviewDocumentInput, deps ReviewDocumentDeps) (document.Document, error) {
	now := nowFrom(deps.Now)
	doc, err := deps.DocumentStore.GetByID(ctx, input.DocumentID)
	if err != nil {
		return document.Document{}, fmt.Errorf("load document: %w", err)
	}
	if input.Approve {
		err = doc.Approve(input.Actor.ID, input.Note, input.Corrections, now)
	} else {
		err = doc.Reject(input.Actor.ID, input.Note, now)
	}
	if err != nil {
		return document.Document{}, err
	}
	if err := deps.DocumentStore.Save(ctx, doc); err != nil {
		return document.Document{}, fmt.Errorf("save document: %w", err)
	}

	if deps.AccountStore != nil {
		owner, err := deps.AccountStore.GetByID(ctx, doc.AccountID)
		if err != nil {
			slog.Error("document_owner_lookup_failed", "document_id", doc.ID, "account_id", doc.AccountID, "error", err)
		} else {
			queueOrLog(ctx, deps.Notifier, owner.Email, emailAdapter.DocumentReviewed{
				Name:     owner.Name,
				Kind:     doc.Kind,
				Approved: input.Approve,
				Note:     doc.ReviewNote,
			})
		}
	}

	recordAudit(ctx, deps.AuditStore, audit.NewEvent(input.Actor, audit.CategoryDocument, audit.ActionReview).
		WithResource("document", doc.ID).
		WithDescription(fmt.Sprintf("%s %s", doc.Kind, doc.Status)))
	slog.Info("document_reviewed", "document_id", doc.ID, "status", doc.Status, "actor_id", input.Actor.ID)
	return doc, nil
}
