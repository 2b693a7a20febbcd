package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/electoral-digital/print-engine/internal/domain"
)

// CertificateFinder is the read-side port the HTTP API needs.
type CertificateFinder interface {
	FindBySourceReference(ctx context.Context, sourceType domain.SourceType, sourceReference string) (*domain.Certificate, error)
	FindByBatchID(ctx context.Context, batchID string) ([]domain.Certificate, error)
}

type CertificateHandler struct {
	certificates CertificateFinder
}

func NewCertificateHandler(certificates CertificateFinder) (*CertificateHandler, error) {
	if certificates == nil {
		return nil, fmt.Errorf("certificate finder is required")
	}
	return &CertificateHandler{certificates: certificates}, nil
}

func RegisterCertificateRoutes(router fiber.Router, certificates CertificateFinder) error {
	h, err := NewCertificateHandler(certificates)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Get("/certificates/:sourceType/:sourceReference", h.GetCertificate)
	v1.Get("/batches/:batchId", h.GetBatch)

	return nil
}

type certificateResponse struct {
	ID                          string                 `json:"id"`
	CertificateNumber           string                 `json:"certificateNumber"`
	SourceType                  string                 `json:"sourceType"`
	SourceReference             string                 `json:"sourceReference"`
	ApplicationReference        *string                `json:"applicationReference,omitempty"`
	GssCode                     string                 `json:"gssCode"`
	IssuingAuthority            string                 `json:"issuingAuthority"`
	IssueDate                   string                 `json:"issueDate"`
	SuggestedExpiryDate         string                 `json:"suggestedExpiryDate"`
	ApplicationReceivedDateTime time.Time              `json:"applicationReceivedDateTime"`
	Status                      string                 `json:"status"`
	PrintRequests               []printRequestResponse `json:"printRequests"`
}

type printRequestResponse struct {
	RequestID       string                `json:"requestId"`
	BatchID         *string               `json:"batchId,omitempty"`
	RequestDateTime time.Time             `json:"requestDateTime"`
	Status          string                `json:"status"`
	StatusHistory   []statusEventResponse `json:"statusHistory"`
}

type statusEventResponse struct {
	Status        string    `json:"status"`
	EventDateTime time.Time `json:"eventDateTime"`
	Message       *string   `json:"message,omitempty"`
}

type batchResponse struct {
	BatchID      string                `json:"batchId"`
	TotalCount   int                   `json:"totalCount"`
	Certificates []certificateResponse `json:"certificates"`
}

func (h *CertificateHandler) GetCertificate(c *fiber.Ctx) error {
	sourceType, err := domain.ParseSourceTypeFromString(c.Params("sourceType"))
	if err != nil {
		return toHTTPError(err)
	}

	sourceReference := strings.TrimSpace(c.Params("sourceReference"))
	if sourceReference == "" {
		return toHTTPError(fmt.Errorf("%w: source reference is required", domain.ErrValidation))
	}

	certificate, err := h.certificates.FindBySourceReference(c.Context(), sourceType, sourceReference)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toCertificateResponse(certificate))
}

func (h *CertificateHandler) GetBatch(c *fiber.Ctx) error {
	batchID := strings.TrimSpace(c.Params("batchId"))
	if batchID == "" {
		return toHTTPError(fmt.Errorf("%w: batch id is required", domain.ErrValidation))
	}

	certificates, err := h.certificates.FindByBatchID(c.Context(), batchID)
	if err != nil {
		return toHTTPError(err)
	}
	if len(certificates) == 0 {
		return toHTTPError(fmt.Errorf("%w: no certificates in batch %q", domain.ErrNotFound, batchID))
	}

	responses := make([]certificateResponse, 0, len(certificates))
	total := 0
	for i := range certificates {
		responses = append(responses, toCertificateResponse(&certificates[i]))
		total += len(certificates[i].RequestsInBatch(batchID))
	}

	return c.Status(fiber.StatusOK).JSON(batchResponse{
		BatchID:      batchID,
		TotalCount:   total,
		Certificates: responses,
	})
}

func toCertificateResponse(certificate *domain.Certificate) certificateResponse {
	if certificate == nil {
		return certificateResponse{}
	}

	requests := make([]printRequestResponse, 0, len(certificate.PrintRequests))
	for i := range certificate.PrintRequests {
		request := &certificate.PrintRequests[i]

		history := make([]statusEventResponse, 0, len(request.StatusHistory))
		for _, event := range request.StatusHistory {
			history = append(history, statusEventResponse{
				Status:        event.Status.String(),
				EventDateTime: event.EventDateTime,
				Message:       event.Message,
			})
		}

		requests = append(requests, printRequestResponse{
			RequestID:       request.RequestID,
			BatchID:         request.BatchID,
			RequestDateTime: request.RequestDateTime,
			Status:          request.CurrentStatus().String(),
			StatusHistory:   history,
		})
	}

	return certificateResponse{
		ID:                          certificate.ID,
		CertificateNumber:           certificate.CertificateNumber,
		SourceType:                  certificate.SourceType.String(),
		SourceReference:             certificate.SourceReference,
		ApplicationReference:        certificate.ApplicationReference,
		GssCode:                     certificate.GssCode,
		IssuingAuthority:            certificate.IssuingAuthorityEn,
		IssueDate:                   certificate.IssueDate.UTC().Format("2006-01-02"),
		SuggestedExpiryDate:         certificate.SuggestedExpiryDate.UTC().Format("2006-01-02"),
		ApplicationReceivedDateTime: certificate.ApplicationReceivedDateTime,
		Status:                      certificate.Status().String(),
		PrintRequests:               requests,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
