package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"carimport/internal/adapters/blob"
	"carimport/internal/adapters/http/middleware"
	"carimport/internal/adapters/ocr"
	"carimport/internal/adapters/storage"
	"carimport/internal/application/orchestrators"
	"carimport/internal/application/projections"
	"carimport/internal/domain/account"
	"carimport/internal/domain/audit"
	"carimport/internal/domain/blog"
	"carimport/internal/domain/calculator"
	"carimport/internal/domain/carrequest"
	"carimport/internal/domain/contract"
	"carimport/internal/domain/document"
	"carimport/internal/domain/offer"
	domainOutbox "carimport/internal/domain/outbox"
	"carimport/internal/domain/stock"
	"carimport/internal/domain/upload"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// errBadInput marks malformed request bodies and parameters.
var errBadInput = errors.New("invalid request")

// errorClass maps sentinel errors to one status code.
type errorClass struct {
	status int
	errs   []error
}

var errorClasses = []errorClass{
	{http.StatusNotFound, []error{storage.ErrNotFound, blob.ErrNotFound, stock.ErrImageNotFound}},
	{http.StatusUnauthorized, []error{orchestrators.ErrInvalidCredentials}},
	{http.StatusForbidden, []error{
		orchestrators.ErrForbidden, orchestrators.ErrAccountDisabled, orchestrators.ErrAccountLocked,
		carrequest.ErrNotOwner, projections.ErrNotVisible,
	}},
	{http.StatusRequestEntityTooLarge, []error{upload.ErrTooLarge}},
	{http.StatusBadGateway, []error{orchestrators.ErrActionFailed}},
	{http.StatusServiceUnavailable, []error{errOutboxDisabled}},
	{http.StatusConflict, []error{
		carrequest.ErrInvalidTransition, offer.ErrNotPending, offer.ErrOfferExpired,
		contract.ErrInvalidTransition, document.ErrInvalidTransition,
		blog.ErrSlugTaken, blog.ErrAlreadyPublic, blog.ErrNotPublished,
		domainOutbox.ErrAlreadyTerminal, domainOutbox.ErrNotRetryable,
		account.ErrAlreadyDisabled, account.ErrAlreadyActive,
		orchestrators.ErrEmailAlreadyExists, orchestrators.ErrContractExists,
		orchestrators.ErrRequestNotOpen, orchestrators.ErrRequestNotAccepted,
		orchestrators.ErrOCRNotRerunnable, orchestrators.ErrCannotDemoteSelf,
		orchestrators.ErrCannotDisableSelf,
	}},
	{http.StatusBadRequest, []error{
		errBadInput,
		account.ErrInvalidEmail, account.ErrEmptyEmail, account.ErrEmailTooLong, account.ErrNameTooLong,
		account.ErrInvalidPhone, account.ErrInvalidRole, account.ErrInvalidStatus, account.ErrEmptyPassword,
		account.ErrPasswordTooShort, account.ErrWrongPassword,
		carrequest.ErrNameRequired, carrequest.ErrInvalidEmail, carrequest.ErrInvalidPhone,
		carrequest.ErrMakeRequired, carrequest.ErrInvalidYears, carrequest.ErrInvalidBudget,
		carrequest.ErrInvalidFuel, carrequest.ErrInvalidGearbox, carrequest.ErrInvalidMileage,
		carrequest.ErrNotesTooLong, carrequest.ErrFieldTooLong, carrequest.ErrInvalidStatus,
		offer.ErrEmptyRequestID, offer.ErrEmptyDescription, offer.ErrDescriptionLong,
		offer.ErrInvalidPrice, offer.ErrInvalidURL, offer.ErrMessageTooLong,
		contract.ErrEmptyRequestID, contract.ErrEmptyAccountID, contract.ErrEmptyDescription,
		contract.ErrDescriptionLong, contract.ErrInvalidVIN, contract.ErrInvalidPrice,
		contract.ErrInvalidDeposit, contract.ErrInvalidStatus,
		document.ErrEmptyAccountID, document.ErrInvalidKind, document.ErrEmptyBlobKey,
		document.ErrNoteTooLong, document.ErrRejectNeedsNote, document.ErrInvalidDate,
		upload.ErrEmpty, upload.ErrUnsupportedType, upload.ErrExtensionMissing, upload.ErrTypeMismatch,
		stock.ErrMakeRequired, stock.ErrModelRequired, stock.ErrInvalidYear, stock.ErrInvalidMileage,
		stock.ErrInvalidPrice, stock.ErrInvalidFuel, stock.ErrInvalidGearbox, stock.ErrInvalidStatus,
		stock.ErrTooManyImages, stock.ErrDescriptionLong, stock.ErrFieldTooLong,
		blog.ErrEmptyTitle, blog.ErrTitleTooLong, blog.ErrSummaryTooLong, blog.ErrEmptyBody,
		blog.ErrBodyTooLong, blog.ErrInvalidSlug,
		calculator.ErrUnknownCountry, calculator.ErrInvalidPrice, calculator.ErrInvalidEngine,
		calculator.ErrInvalidFuel, calculator.ErrInvalidRegistration,
		orchestrators.ErrPasswordFieldsEmpty, orchestrators.ErrCurrentPasswordWrong,
		orchestrators.ErrNewPasswordSame, orchestrators.ErrNoCustomerAccount,
		orchestrators.ErrNotCustomerAccount, orchestrators.ErrInvalidAssignee,
		calculator.ErrInvalidCO2, blob.ErrInvalidKey, ocr.ErrUnsupported,
	}},
}

// classify returns the status for err and the message safe to show the client.
// Unknown errors are 500 with a generic message.
func classify(err error) (int, string) {
	for _, c := range errorClasses {
		for _, target := range c.errs {
			if errors.Is(err, target) {
				return c.status, target.Error()
			}
		}
	}
	return http.StatusInternalServerError, "internal server error"
}

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// fail answers err as JSON, or as the error page for browser navigation.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status == http.StatusInternalServerError {
		slog.Error("internal_error", "error", err.Error(), "method", r.Method, "path", r.URL.Path)
	}
	if isHTMLRequest(r) && r.Method == http.MethodGet {
		s.render(w, r, status, "error.html", http.StatusText(status), map[string]any{
			"Status":  status,
			"Message": msg,
		})
		return
	}
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json_encode_failed", "error", err)
	}
}

// strictDecode decodes JSON from the request body, rejecting unknown fields.
func strictDecode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadInput, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errBadInput)
	}
	return nil
}

func isHTMLRequest(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") || strings.Contains(accept, "application/xhtml+xml")
}

func isFormPost(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}

// session returns the caller's session; handlers behind RequireAuth always have one.
func session(r *http.Request) middleware.Session {
	sess, _ := middleware.GetSessionFromContext(r.Context())
	return sess
}

// actor describes the caller for audit events.
func (s *server) actor(r *http.Request) audit.Actor {
	sess := session(r)
	return audit.Actor{
		ID:    sess.AccountID,
		Email: sess.Email,
		Role:  sess.Role,
		IP:    s.ip(r),
		Agent: r.UserAgent(),
	}
}

// pageURL is the absolute URL reported to analytics for r.
func (s *server) pageURL(r *http.Request) string {
	if s.SiteURL != "" {
		return strings.TrimRight(s.SiteURL, "/") + r.URL.Path
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.Path
}

// atoi parses an optional integer form value; empty is zero.
func atoi(v string) (int, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadInput, v)
	}
	return n, nil
}

// eurosToCents parses a euro amount such as "18000" or "18000.50".
func eurosToCents(v string) (int64, error) {
	v = strings.TrimSpace(strings.ReplaceAll(v, ",", ""))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: %q is not an amount", errBadInput, v)
	}
	return int64(f*100 + 0.5), nil
}

func isStaffSession(role string) bool {
	return role == account.RoleStaff || role == account.RoleAdmin
}

// safeNext keeps post-login redirects on this site.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return ""
	}
	return next
}

// maxUploadMemory bounds the multipart parser; the rest spills to disk.
const maxUploadMemory = 4 << 20

// readUpload parses a multipart body and returns the "file" part.
// PRE: limit is the largest accepted file
// POST: On success r.MultipartForm is set and the caller removes it
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+maxUploadMemory)
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return "", nil, upload.ErrTooLarge
		}
		return "", nil, fmt.Errorf("%w: %v", errBadInput, err)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		r.MultipartForm.RemoveAll()
		return "", nil, upload.ErrEmpty
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		r.MultipartForm.RemoveAll()
		return "", nil, fmt.Errorf("%w: %v", errBadInput, err)
	}
	return header.Filename, data, nil
}
