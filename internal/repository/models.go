package repository

import (
	"time"

	"github.com/electoral-digital/print-engine/internal/domain"
)

// CertificateModel is the persistence model for the certificates table.
//
// Status is a cached projection of the owned requests' histories, recomputed
// by domain.Certificate.Status on every write and never hand-set; it exists
// so batching can select pending certificates with a plain indexed query.
type CertificateModel struct {
	ID                          string  `gorm:"type:uuid;primaryKey"`
	CertificateNumber           string  `gorm:"type:varchar(20);not null;uniqueIndex"`
	SourceType                  string  `gorm:"type:varchar(40);not null"`
	SourceReference             string  `gorm:"type:varchar(255);not null"`
	ApplicationReference        *string `gorm:"type:varchar(255)"`
	GssCode                     string  `gorm:"type:varchar(9);not null"`
	IssuingAuthorityEn          string  `gorm:"type:varchar(255);not null"`
	IssuingAuthorityCy          *string `gorm:"type:varchar(255)"`
	IssueDate                   time.Time
	SuggestedExpiryDate         time.Time
	ApplicationReceivedDateTime time.Time `gorm:"not null"`
	Status                      string    `gorm:"type:varchar(40);not null"`

	PrintRequests []PrintRequestModel `gorm:"foreignKey:CertificateID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (CertificateModel) TableName() string {
	return "certificates"
}

// PrintRequestModel is the persistence model for print_requests. Status is
// the same cached projection as on the certificate, at request level.
type PrintRequestModel struct {
	ID              string  `gorm:"type:uuid;primaryKey"`
	CertificateID   string  `gorm:"type:uuid;not null;index"`
	RequestID       string  `gorm:"type:varchar(32);not null;uniqueIndex"`
	BatchID         *string `gorm:"type:varchar(32);index"`
	RequestDateTime time.Time

	FirstName                   string  `gorm:"type:varchar(255);not null"`
	MiddleNames                 *string `gorm:"type:varchar(255)"`
	Surname                     string  `gorm:"type:varchar(255);not null"`
	CertificateLanguage         string  `gorm:"type:varchar(2);not null"`
	SupportingInformationFormat *string `gorm:"type:varchar(20)"`
	DeliveryOption              string  `gorm:"type:varchar(20);not null"`
	DeliveryName                string  `gorm:"type:varchar(255);not null"`
	DeliveryStreet              string  `gorm:"type:varchar(255);not null"`
	DeliveryProperty            *string `gorm:"type:varchar(255)"`
	DeliveryLocality            *string `gorm:"type:varchar(255)"`
	DeliveryTown                *string `gorm:"type:varchar(255)"`
	DeliveryArea                *string `gorm:"type:varchar(255)"`
	DeliveryPostcode            string  `gorm:"type:varchar(10);not null"`
	PhotoLocation               string  `gorm:"type:varchar(1024);not null"`

	EroNameEn         string  `gorm:"type:varchar(255);not null"`
	EroPhoneNumberEn  string  `gorm:"type:varchar(20);not null"`
	EroEmailAddressEn string  `gorm:"type:varchar(255);not null"`
	EroWebsiteEn      string  `gorm:"type:varchar(255);not null"`
	EroStreetEn       string  `gorm:"type:varchar(255);not null"`
	EroPropertyEn     *string `gorm:"type:varchar(255)"`
	EroLocalityEn     *string `gorm:"type:varchar(255)"`
	EroTownEn         *string `gorm:"type:varchar(255)"`
	EroAreaEn         *string `gorm:"type:varchar(255)"`
	EroPostcodeEn     string  `gorm:"type:varchar(10);not null"`

	EroNameCy         *string `gorm:"type:varchar(255)"`
	EroPhoneNumberCy  *string `gorm:"type:varchar(20)"`
	EroEmailAddressCy *string `gorm:"type:varchar(255)"`
	EroWebsiteCy      *string `gorm:"type:varchar(255)"`
	EroStreetCy       *string `gorm:"type:varchar(255)"`
	EroPropertyCy     *string `gorm:"type:varchar(255)"`
	EroLocalityCy     *string `gorm:"type:varchar(255)"`
	EroTownCy         *string `gorm:"type:varchar(255)"`
	EroAreaCy         *string `gorm:"type:varchar(255)"`
	EroPostcodeCy     *string `gorm:"type:varchar(10)"`

	Status string `gorm:"type:varchar(40);not null;index"`

	StatusEvents []StatusEventModel `gorm:"foreignKey:PrintRequestID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (PrintRequestModel) TableName() string {
	return "print_requests"
}

// StatusEventModel is the persistence model for the append-only status
// history. Sequence preserves insertion order within a request, which is the
// tie-break for equal event times.
type StatusEventModel struct {
	ID             string `gorm:"type:uuid;primaryKey"`
	PrintRequestID string `gorm:"type:uuid;not null;index"`
	Sequence       int    `gorm:"not null"`
	Status         string `gorm:"type:varchar(40);not null;index"`
	EventDateTime  time.Time
	Message        *string `gorm:"type:text"`
	CreatedAt      time.Time
}

func (StatusEventModel) TableName() string {
	return "print_request_status_events"
}

func certificateModelFromDomain(c *domain.Certificate) *CertificateModel {
	if c == nil {
		return nil
	}

	model := &CertificateModel{
		ID:                          c.ID,
		CertificateNumber:           c.CertificateNumber,
		SourceType:                  string(c.SourceType),
		SourceReference:             c.SourceReference,
		ApplicationReference:        c.ApplicationReference,
		GssCode:                     c.GssCode,
		IssuingAuthorityEn:          c.IssuingAuthorityEn,
		IssuingAuthorityCy:          c.IssuingAuthorityCy,
		IssueDate:                   c.IssueDate,
		SuggestedExpiryDate:         c.SuggestedExpiryDate,
		ApplicationReceivedDateTime: c.ApplicationReceivedDateTime,
		Status:                      string(c.Status()),
		CreatedAt:                   c.CreatedAt,
		UpdatedAt:                   c.UpdatedAt,
	}

	for i := range c.PrintRequests {
		model.PrintRequests = append(model.PrintRequests, *printRequestModelFromDomain(c.ID, &c.PrintRequests[i]))
	}
	return model
}

func printRequestModelFromDomain(certificateID string, r *domain.PrintRequest) *PrintRequestModel {
	model := &PrintRequestModel{
		ID:                  r.ID,
		CertificateID:       certificateID,
		RequestID:           r.RequestID,
		BatchID:             r.BatchID,
		RequestDateTime:     r.RequestDateTime,
		FirstName:           r.FirstName,
		MiddleNames:         r.MiddleNames,
		Surname:             r.Surname,
		CertificateLanguage: string(r.CertificateLanguage),
		DeliveryOption:      string(r.DeliveryOption),
		DeliveryName:        r.DeliveryName,
		DeliveryStreet:      r.DeliveryAddress.Street,
		DeliveryProperty:    r.DeliveryAddress.Property,
		DeliveryLocality:    r.DeliveryAddress.Locality,
		DeliveryTown:        r.DeliveryAddress.Town,
		DeliveryArea:        r.DeliveryAddress.Area,
		DeliveryPostcode:    r.DeliveryAddress.Postcode,
		PhotoLocation:       r.PhotoLocation,
		EroNameEn:           r.EnglishEro.Name,
		EroPhoneNumberEn:    r.EnglishEro.PhoneNumber,
		EroEmailAddressEn:   r.EnglishEro.EmailAddress,
		EroWebsiteEn:        r.EnglishEro.Website,
		EroStreetEn:         r.EnglishEro.Address.Street,
		EroPropertyEn:       r.EnglishEro.Address.Property,
		EroLocalityEn:       r.EnglishEro.Address.Locality,
		EroTownEn:           r.EnglishEro.Address.Town,
		EroAreaEn:           r.EnglishEro.Address.Area,
		EroPostcodeEn:       r.EnglishEro.Address.Postcode,
		Status:              string(r.CurrentStatus()),
		CreatedAt:           r.CreatedAt,
		UpdatedAt:           r.UpdatedAt,
	}

	if r.SupportingInformationFormat != nil {
		format := string(*r.SupportingInformationFormat)
		model.SupportingInformationFormat = &format
	}

	if welsh := r.WelshEro; welsh != nil {
		model.EroNameCy = &welsh.Name
		model.EroPhoneNumberCy = &welsh.PhoneNumber
		model.EroEmailAddressCy = &welsh.EmailAddress
		model.EroWebsiteCy = &welsh.Website
		model.EroStreetCy = &welsh.Address.Street
		model.EroPropertyCy = welsh.Address.Property
		model.EroLocalityCy = welsh.Address.Locality
		model.EroTownCy = welsh.Address.Town
		model.EroAreaCy = welsh.Address.Area
		model.EroPostcodeCy = &welsh.Address.Postcode
	}

	for i := range r.StatusHistory {
		event := r.StatusHistory[i]
		model.StatusEvents = append(model.StatusEvents, StatusEventModel{
			PrintRequestID: r.ID,
			Sequence:       i,
			Status:         string(event.Status),
			EventDateTime:  event.EventDateTime,
			Message:        event.Message,
		})
	}

	return model
}

func certificateModelToDomain(m *CertificateModel) *domain.Certificate {
	if m == nil {
		return nil
	}

	certificate := &domain.Certificate{
		ID:                          m.ID,
		CertificateNumber:           m.CertificateNumber,
		SourceType:                  domain.SourceType(m.SourceType),
		SourceReference:             m.SourceReference,
		ApplicationReference:        m.ApplicationReference,
		GssCode:                     m.GssCode,
		IssuingAuthorityEn:          m.IssuingAuthorityEn,
		IssuingAuthorityCy:          m.IssuingAuthorityCy,
		IssueDate:                   m.IssueDate,
		SuggestedExpiryDate:         m.SuggestedExpiryDate,
		ApplicationReceivedDateTime: m.ApplicationReceivedDateTime,
		CreatedAt:                   m.CreatedAt,
		UpdatedAt:                   m.UpdatedAt,
	}

	for i := range m.PrintRequests {
		certificate.PrintRequests = append(certificate.PrintRequests, *printRequestModelToDomain(&m.PrintRequests[i]))
	}
	return certificate
}

func printRequestModelToDomain(m *PrintRequestModel) *domain.PrintRequest {
	request := &domain.PrintRequest{
		ID:                  m.ID,
		RequestID:           m.RequestID,
		BatchID:             m.BatchID,
		RequestDateTime:     m.RequestDateTime,
		FirstName:           m.FirstName,
		MiddleNames:         m.MiddleNames,
		Surname:             m.Surname,
		CertificateLanguage: domain.CertificateLanguage(m.CertificateLanguage),
		DeliveryOption:      domain.DeliveryOption(m.DeliveryOption),
		DeliveryName:        m.DeliveryName,
		DeliveryAddress: domain.Address{
			Street:   m.DeliveryStreet,
			Property: m.DeliveryProperty,
			Locality: m.DeliveryLocality,
			Town:     m.DeliveryTown,
			Area:     m.DeliveryArea,
			Postcode: m.DeliveryPostcode,
		},
		PhotoLocation: m.PhotoLocation,
		EnglishEro: domain.ElectoralRegistrationOffice{
			Name:         m.EroNameEn,
			PhoneNumber:  m.EroPhoneNumberEn,
			EmailAddress: m.EroEmailAddressEn,
			Website:      m.EroWebsiteEn,
			Address: domain.Address{
				Street:   m.EroStreetEn,
				Property: m.EroPropertyEn,
				Locality: m.EroLocalityEn,
				Town:     m.EroTownEn,
				Area:     m.EroAreaEn,
				Postcode: m.EroPostcodeEn,
			},
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}

	if m.SupportingInformationFormat != nil {
		format := domain.SupportingInformationFormat(*m.SupportingInformationFormat)
		request.SupportingInformationFormat = &format
	}

	if m.EroNameCy != nil {
		request.WelshEro = &domain.ElectoralRegistrationOffice{
			Name:         *m.EroNameCy,
			PhoneNumber:  stringOrEmpty(m.EroPhoneNumberCy),
			EmailAddress: stringOrEmpty(m.EroEmailAddressCy),
			Website:      stringOrEmpty(m.EroWebsiteCy),
			Address: domain.Address{
				Street:   stringOrEmpty(m.EroStreetCy),
				Property: m.EroPropertyCy,
				Locality: m.EroLocalityCy,
				Town:     m.EroTownCy,
				Area:     m.EroAreaCy,
				Postcode: stringOrEmpty(m.EroPostcodeCy),
			},
		}
	}

	for i := range m.StatusEvents {
		event := m.StatusEvents[i]
		request.StatusHistory = append(request.StatusHistory, domain.StatusEvent{
			Status:        domain.Status(event.Status),
			EventDateTime: event.EventDateTime,
			Message:       event.Message,
		})
	}

	return request
}

func stringOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
