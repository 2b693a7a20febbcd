package print

import (
	"fmt"
	"io"
	"strings"

	"github.com/electoral-digital/print-engine/internal/domain"
)

const (
	manifestDelimiter  = "|"
	manifestLineEnding = "\r\n"

	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05.000Z"
)

// manifestColumns is the fixed header row. Row.values must stay in the same
// order.
var manifestColumns = []string{
	"requestId",
	"issuingAuthorityEn",
	"issuingAuthorityCy",
	"issueDate",
	"suggestedExpiryDate",
	"requestDateTime",
	"cardFirstname",
	"cardMiddleNames",
	"cardSurname",
	"cardVersion",
	"cardNumber",
	"certificateLanguage",
	"supportingInformationFormat",
	"deliveryOption",
	"photoPath",
	"deliveryName",
	"deliveryProperty",
	"deliveryStreet",
	"deliveryLocality",
	"deliveryTown",
	"deliveryArea",
	"deliveryPostcode",
	"eroNameEn",
	"eroPhoneNumberEn",
	"eroEmailAddressEn",
	"eroWebsiteEn",
	"eroPropertyEn",
	"eroStreetEn",
	"eroLocalityEn",
	"eroTownEn",
	"eroAreaEn",
	"eroPostcodeEn",
	"eroNameCy",
	"eroPhoneNumberCy",
	"eroEmailAddressCy",
	"eroWebsiteCy",
	"eroPropertyCy",
	"eroStreetCy",
	"eroLocalityCy",
	"eroTownCy",
	"eroAreaCy",
	"eroPostcodeCy",
}

// Row is one manifest line, every field already rendered as its wire value.
// Missing optional fields are empty strings, never the literal "null".
type Row struct {
	RequestID                   string
	IssuingAuthorityEn          string
	IssuingAuthorityCy          string
	IssueDate                   string
	SuggestedExpiryDate         string
	RequestDateTime             string
	CardFirstname               string
	CardMiddleNames             string
	CardSurname                 string
	CardVersion                 string
	CardNumber                  string
	CertificateLanguage         string
	SupportingInformationFormat string
	DeliveryOption              string
	PhotoPath                   string
	DeliveryName                string
	DeliveryProperty            string
	DeliveryStreet              string
	DeliveryLocality            string
	DeliveryTown                string
	DeliveryArea                string
	DeliveryPostcode            string
	EroNameEn                   string
	EroPhoneNumberEn            string
	EroEmailAddressEn           string
	EroWebsiteEn                string
	EroPropertyEn               string
	EroStreetEn                 string
	EroLocalityEn               string
	EroTownEn                   string
	EroAreaEn                   string
	EroPostcodeEn               string
	EroNameCy                   string
	EroPhoneNumberCy            string
	EroEmailAddressCy           string
	EroWebsiteCy                string
	EroPropertyCy               string
	EroStreetCy                 string
	EroLocalityCy               string
	EroTownCy                   string
	EroAreaCy                   string
	EroPostcodeCy               string
}

func (r Row) values() []string {
	return []string{
		r.RequestID,
		r.IssuingAuthorityEn,
		r.IssuingAuthorityCy,
		r.IssueDate,
		r.SuggestedExpiryDate,
		r.RequestDateTime,
		r.CardFirstname,
		r.CardMiddleNames,
		r.CardSurname,
		r.CardVersion,
		r.CardNumber,
		r.CertificateLanguage,
		r.SupportingInformationFormat,
		r.DeliveryOption,
		r.PhotoPath,
		r.DeliveryName,
		r.DeliveryProperty,
		r.DeliveryStreet,
		r.DeliveryLocality,
		r.DeliveryTown,
		r.DeliveryArea,
		r.DeliveryPostcode,
		r.EroNameEn,
		r.EroPhoneNumberEn,
		r.EroEmailAddressEn,
		r.EroWebsiteEn,
		r.EroPropertyEn,
		r.EroStreetEn,
		r.EroLocalityEn,
		r.EroTownEn,
		r.EroAreaEn,
		r.EroPostcodeEn,
		r.EroNameCy,
		r.EroPhoneNumberCy,
		r.EroEmailAddressCy,
		r.EroWebsiteCy,
		r.EroPropertyCy,
		r.EroStreetCy,
		r.EroLocalityCy,
		r.EroTownCy,
		r.EroAreaCy,
		r.EroPostcodeCy,
	}
}

// BatchItem pairs a certificate with one of its print requests selected for
// a batch.
type BatchItem struct {
	Certificate *domain.Certificate
	Request     *domain.PrintRequest
}

// PhotoRef maps an archive-relative photo path back to its source location
// in object storage.
type PhotoRef struct {
	Path     string
	Location string
}

// BuildManifestRow renders one batch item into its manifest row. Welsh ERO
// columns fall back to the English values only when the certificate language
// is Welsh and the ERO has no Welsh contact data; otherwise a genuinely
// absent Welsh value is emitted empty.
func BuildManifestRow(item BatchItem, photoPath string) Row {
	certificate := item.Certificate
	request := item.Request

	row := Row{
		RequestID:           request.RequestID,
		IssuingAuthorityEn:  certificate.IssuingAuthorityEn,
		IssuingAuthorityCy:  optional(certificate.IssuingAuthorityCy),
		IssueDate:           certificate.IssueDate.UTC().Format(dateLayout),
		SuggestedExpiryDate: certificate.SuggestedExpiryDate.UTC().Format(dateLayout),
		RequestDateTime:     request.RequestDateTime.UTC().Format(timestampLayout),
		CardFirstname:       request.FirstName,
		CardMiddleNames:     optional(request.MiddleNames),
		CardSurname:         request.Surname,
		CardVersion:         domain.CertificateVersion,
		CardNumber:          certificate.CertificateNumber,
		CertificateLanguage: request.CertificateLanguage.String(),
		DeliveryOption:      request.DeliveryOption.String(),
		PhotoPath:           photoPath,
		DeliveryName:        request.DeliveryName,
		DeliveryProperty:    optional(request.DeliveryAddress.Property),
		DeliveryStreet:      request.DeliveryAddress.Street,
		DeliveryLocality:    optional(request.DeliveryAddress.Locality),
		DeliveryTown:        optional(request.DeliveryAddress.Town),
		DeliveryArea:        optional(request.DeliveryAddress.Area),
		DeliveryPostcode:    request.DeliveryAddress.Postcode,
	}

	if request.SupportingInformationFormat != nil {
		row.SupportingInformationFormat = request.SupportingInformationFormat.String()
	}

	fillEro(&row, request)

	if row.IssuingAuthorityCy == "" && welshFallback(request) {
		row.IssuingAuthorityCy = row.IssuingAuthorityEn
	}

	return row
}

func fillEro(row *Row, request *domain.PrintRequest) {
	english := request.EnglishEro
	row.EroNameEn = english.Name
	row.EroPhoneNumberEn = english.PhoneNumber
	row.EroEmailAddressEn = english.EmailAddress
	row.EroWebsiteEn = english.Website
	row.EroPropertyEn = optional(english.Address.Property)
	row.EroStreetEn = english.Address.Street
	row.EroLocalityEn = optional(english.Address.Locality)
	row.EroTownEn = optional(english.Address.Town)
	row.EroAreaEn = optional(english.Address.Area)
	row.EroPostcodeEn = english.Address.Postcode

	welsh := request.WelshEro
	if welsh == nil {
		if welshFallback(request) {
			welsh = &english
		} else {
			return
		}
	}

	row.EroNameCy = welsh.Name
	row.EroPhoneNumberCy = welsh.PhoneNumber
	row.EroEmailAddressCy = welsh.EmailAddress
	row.EroWebsiteCy = welsh.Website
	row.EroPropertyCy = optional(welsh.Address.Property)
	row.EroStreetCy = welsh.Address.Street
	row.EroLocalityCy = optional(welsh.Address.Locality)
	row.EroTownCy = optional(welsh.Address.Town)
	row.EroAreaCy = optional(welsh.Address.Area)
	row.EroPostcodeCy = welsh.Address.Postcode
}

// welshFallback reports whether Welsh columns must be populated from English
// values: a Welsh-language certificate whose ERO has no Welsh contact data.
func welshFallback(request *domain.PrintRequest) bool {
	return request.CertificateLanguage == domain.LanguageWelsh && request.WelshEro == nil
}

func optional(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// WriteManifest writes the pipe-delimited manifest: one header row then one
// row per request, Windows line terminators, UTF-8. The delimiter is not
// quoted, so a value containing it is rejected rather than silently
// corrupting the column layout.
func WriteManifest(w io.Writer, rows []Row) error {
	if err := writeManifestLine(w, manifestColumns); err != nil {
		return err
	}

	for i, row := range rows {
		values := row.values()
		for col, value := range values {
			if strings.Contains(value, manifestDelimiter) {
				return fmt.Errorf("%w: manifest row %d column %q contains the delimiter",
					domain.ErrValidation, i, manifestColumns[col])
			}
		}
		if err := writeManifestLine(w, values); err != nil {
			return err
		}
	}

	return nil
}

func writeManifestLine(w io.Writer, values []string) error {
	if _, err := io.WriteString(w, strings.Join(values, manifestDelimiter)+manifestLineEnding); err != nil {
		return fmt.Errorf("failed to write manifest line: %w", err)
	}
	return nil
}
