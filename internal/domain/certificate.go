package domain

import (
	"fmt"
	"time"
)

// CertificateVersion is the card layout version sent to the print provider.
const CertificateVersion = "1"

// StatusEvent is one entry in a print request's append-only status history.
type StatusEvent struct {
	Status        Status
	EventDateTime time.Time
	Message       *string
}

// Address is a UK postal address. Street and Postcode are always present.
type Address struct {
	Street   string
	Property *string
	Locality *string
	Town     *string
	Area     *string
	Postcode string
}

// ElectoralRegistrationOffice holds the issuing ERO's contact details in one
// language.
type ElectoralRegistrationOffice struct {
	Name         string
	PhoneNumber  string
	EmailAddress string
	Website      string
	Address      Address
}

// PrintRequest is a single submission of a certificate to the print provider.
//
// RequestID is the provider-facing idempotency key. The provider refuses to
// accept the same identifier twice, so whenever a request is re-queued after
// a provider failure it is given a fresh RequestID and the old one is retired.
type PrintRequest struct {
	ID              string
	RequestID       string
	BatchID         *string
	RequestDateTime time.Time

	FirstName                   string
	MiddleNames                 *string
	Surname                     string
	CertificateLanguage         CertificateLanguage
	SupportingInformationFormat *SupportingInformationFormat
	DeliveryOption              DeliveryOption
	DeliveryName                string
	DeliveryAddress             Address
	PhotoLocation               string

	EnglishEro ElectoralRegistrationOffice
	WelshEro   *ElectoralRegistrationOffice

	// StatusHistory is append-only: entries are never mutated or reordered.
	StatusHistory []StatusEvent

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CurrentStatus returns the status of the history entry with the latest
// event time. When two entries carry the same event time the one appended
// later wins.
func (r *PrintRequest) CurrentStatus() Status {
	if len(r.StatusHistory) == 0 {
		return ""
	}

	current := r.StatusHistory[0]
	for _, event := range r.StatusHistory[1:] {
		if !event.EventDateTime.Before(current.EventDateTime) {
			current = event
		}
	}
	return current.Status
}

// AddStatusEvent appends one entry to the status history.
func (r *PrintRequest) AddStatusEvent(status Status, eventDateTime time.Time, message *string) {
	r.StatusHistory = append(r.StatusHistory, StatusEvent{
		Status:        status,
		EventDateTime: eventDateTime,
		Message:       message,
	})
}

func (r *PrintRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("%w: request id is required", ErrValidation)
	}
	if r.FirstName == "" {
		return fmt.Errorf("%w: first name is required", ErrValidation)
	}
	if r.Surname == "" {
		return fmt.Errorf("%w: surname is required", ErrValidation)
	}
	if !r.CertificateLanguage.IsValid() {
		return fmt.Errorf("%w: invalid certificate language %q", ErrValidation, r.CertificateLanguage)
	}
	if r.PhotoLocation == "" {
		return fmt.Errorf("%w: photo location is required", ErrValidation)
	}
	if len(r.StatusHistory) == 0 {
		return fmt.Errorf("%w: status history must not be empty", ErrValidation)
	}
	return nil
}

// Certificate is the aggregate root for one elector's printable document.
// It exclusively owns its print requests; deleting the certificate removes
// them.
type Certificate struct {
	ID                   string
	CertificateNumber    string
	SourceType           SourceType
	SourceReference      string
	ApplicationReference *string
	GssCode              string
	IssuingAuthorityEn   string
	IssuingAuthorityCy   *string
	IssueDate            time.Time
	SuggestedExpiryDate  time.Time

	// ApplicationReceivedDateTime orders certificates for batching, oldest
	// application first.
	ApplicationReceivedDateTime time.Time

	PrintRequests []PrintRequest

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Status is the certificate's aggregate status: the current status of the
// print request with the latest RequestDateTime. A certificate can carry
// several requests after reprints and the newest submission wins for display.
// Requests sharing a RequestDateTime are tie-broken by the larger request ID
// so the result is deterministic.
func (c *Certificate) Status() Status {
	if len(c.PrintRequests) == 0 {
		return ""
	}

	latest := &c.PrintRequests[0]
	for i := range c.PrintRequests[1:] {
		candidate := &c.PrintRequests[i+1]
		if candidate.RequestDateTime.After(latest.RequestDateTime) {
			latest = candidate
			continue
		}
		if candidate.RequestDateTime.Equal(latest.RequestDateTime) && candidate.ID > latest.ID {
			latest = candidate
		}
	}
	return latest.CurrentStatus()
}

// RequestsInBatch returns pointers to the requests assigned to the given
// batch id.
func (c *Certificate) RequestsInBatch(batchID string) []*PrintRequest {
	var matched []*PrintRequest
	for i := range c.PrintRequests {
		request := &c.PrintRequests[i]
		if request.BatchID != nil && *request.BatchID == batchID {
			matched = append(matched, request)
		}
	}
	return matched
}

// PendingRequests returns pointers to the requests currently awaiting batch
// assignment.
func (c *Certificate) PendingRequests() []*PrintRequest {
	var pending []*PrintRequest
	for i := range c.PrintRequests {
		request := &c.PrintRequests[i]
		if request.CurrentStatus() == StatusPendingAssignmentToBatch {
			pending = append(pending, request)
		}
	}
	return pending
}

// RequestByID returns the print request with the given provider-facing
// request id, or nil.
func (c *Certificate) RequestByID(requestID string) *PrintRequest {
	for i := range c.PrintRequests {
		if c.PrintRequests[i].RequestID == requestID {
			return &c.PrintRequests[i]
		}
	}
	return nil
}

func (c *Certificate) Validate() error {
	if c.CertificateNumber == "" {
		return fmt.Errorf("%w: certificate number is required", ErrValidation)
	}
	if !c.SourceType.IsValid() {
		return fmt.Errorf("%w: invalid source type %q", ErrValidation, c.SourceType)
	}
	if c.SourceReference == "" {
		return fmt.Errorf("%w: source reference is required", ErrValidation)
	}
	if c.GssCode == "" {
		return fmt.Errorf("%w: gss code is required", ErrValidation)
	}
	if len(c.PrintRequests) == 0 {
		return fmt.Errorf("%w: certificate must have at least one print request", ErrValidation)
	}
	for i := range c.PrintRequests {
		if err := c.PrintRequests[i].Validate(); err != nil {
			return err
		}
	}
	return nil
}
