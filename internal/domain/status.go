package domain

import (
	"fmt"
	"strings"
)

// Status represents the lifecycle state of a print request.
type Status string

const (
	StatusPendingAssignmentToBatch Status = "PENDING_ASSIGNMENT_TO_BATCH"
	StatusAssignedToBatch          Status = "ASSIGNED_TO_BATCH"
	StatusSentToPrintProvider      Status = "SENT_TO_PRINT_PROVIDER"
	StatusReceivedByPrintProvider  Status = "RECEIVED_BY_PRINT_PROVIDER"
	StatusValidatedByPrintProvider Status = "VALIDATED_BY_PRINT_PROVIDER"
	StatusInProduction             Status = "IN_PRODUCTION"
	StatusDispatched               Status = "DISPATCHED"
	StatusValidationFailed         Status = "PRINT_PROVIDER_VALIDATION_FAILED"
	StatusProductionFailed         Status = "PRINT_PROVIDER_PRODUCTION_FAILED"
	StatusDispatchFailed           Status = "PRINT_PROVIDER_DISPATCH_FAILED"
	StatusNotDelivered             Status = "NOT_DELIVERED"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	switch s {
	case StatusPendingAssignmentToBatch, StatusAssignedToBatch,
		StatusSentToPrintProvider, StatusReceivedByPrintProvider,
		StatusValidatedByPrintProvider, StatusInProduction, StatusDispatched,
		StatusValidationFailed, StatusProductionFailed, StatusDispatchFailed,
		StatusNotDelivered:
		return true
	}
	return false
}

func ParseStatusFromString(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, s)
	}
	return st, nil
}

// CertificateLanguage is the language the certificate is printed in.
type CertificateLanguage string

const (
	LanguageEnglish CertificateLanguage = "en"
	LanguageWelsh   CertificateLanguage = "cy"
)

func (l CertificateLanguage) String() string { return string(l) }

func (l CertificateLanguage) IsValid() bool {
	switch l {
	case LanguageEnglish, LanguageWelsh:
		return true
	}
	return false
}

func ParseCertificateLanguageFromString(s string) (CertificateLanguage, error) {
	l := CertificateLanguage(strings.ToLower(strings.TrimSpace(s)))
	if !l.IsValid() {
		return "", fmt.Errorf("%w: invalid certificate language %q", ErrValidation, s)
	}
	return l, nil
}

// SupportingInformationFormat is the accessible format requested for the
// supporting information leaflet, when any.
type SupportingInformationFormat string

const (
	FormatStandard   SupportingInformationFormat = "STANDARD"
	FormatBraille    SupportingInformationFormat = "BRAILLE"
	FormatLargePrint SupportingInformationFormat = "LARGE_PRINT"
	FormatEasyRead   SupportingInformationFormat = "EASY_READ"
)

func (f SupportingInformationFormat) String() string { return string(f) }

func (f SupportingInformationFormat) IsValid() bool {
	switch f {
	case FormatStandard, FormatBraille, FormatLargePrint, FormatEasyRead:
		return true
	}
	return false
}

// DeliveryOption is how the printed certificate is dispatched to the elector.
type DeliveryOption string

const (
	DeliveryStandard DeliveryOption = "STANDARD"
)

func (d DeliveryOption) String() string { return string(d) }

// SourceType identifies the upstream system a certificate originates from.
type SourceType string

const (
	SourceVoterCard                SourceType = "VOTER_CARD"
	SourceAnonymousElectorDocument SourceType = "ANONYMOUS_ELECTOR_DOCUMENT"
)

func (t SourceType) String() string { return string(t) }

func (t SourceType) IsValid() bool {
	switch t {
	case SourceVoterCard, SourceAnonymousElectorDocument:
		return true
	}
	return false
}

func ParseSourceTypeFromString(s string) (SourceType, error) {
	t := SourceType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", fmt.Errorf("%w: invalid source type %q", ErrValidation, s)
	}
	return t, nil
}
