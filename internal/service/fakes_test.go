package service

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/queue"
	"github.com/electoral-digital/print-engine/internal/repository"
)

type fakeCertificateRepo struct {
	mu sync.Mutex

	findByStatusFn          func(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error)
	countAssignedBetweenFn  func(ctx context.Context, from, to time.Time) (int64, error)
	findByBatchIDFn         func(ctx context.Context, batchID string) ([]domain.Certificate, error)
	findByRequestIDFn       func(ctx context.Context, requestID string) (*domain.Certificate, error)
	findBySourceReferenceFn func(ctx context.Context, sourceType domain.SourceType, sourceReference string) (*domain.Certificate, error)
	saveFn                  func(ctx context.Context, certificate *domain.Certificate) error
	saveAllFn               func(ctx context.Context, certificates []*domain.Certificate) error
	deleteByIDFn            func(ctx context.Context, id string) error

	saved [][]*domain.Certificate
}

var _ repository.CertificateRepository = (*fakeCertificateRepo)(nil)

func (f *fakeCertificateRepo) FindByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error) {
	if f.findByStatusFn == nil {
		return nil, nil
	}
	return f.findByStatusFn(ctx, status, limit)
}

func (f *fakeCertificateRepo) CountAssignedToBatchBetween(ctx context.Context, from, to time.Time) (int64, error) {
	if f.countAssignedBetweenFn == nil {
		return 0, nil
	}
	return f.countAssignedBetweenFn(ctx, from, to)
}

func (f *fakeCertificateRepo) FindByBatchID(ctx context.Context, batchID string) ([]domain.Certificate, error) {
	if f.findByBatchIDFn == nil {
		return nil, nil
	}
	return f.findByBatchIDFn(ctx, batchID)
}

func (f *fakeCertificateRepo) FindByRequestID(ctx context.Context, requestID string) (*domain.Certificate, error) {
	if f.findByRequestIDFn == nil {
		return nil, fmt.Errorf("%w: no certificate", domain.ErrNotFound)
	}
	return f.findByRequestIDFn(ctx, requestID)
}

func (f *fakeCertificateRepo) FindBySourceReference(ctx context.Context, sourceType domain.SourceType, sourceReference string) (*domain.Certificate, error) {
	if f.findBySourceReferenceFn == nil {
		return nil, fmt.Errorf("%w: no certificate", domain.ErrNotFound)
	}
	return f.findBySourceReferenceFn(ctx, sourceType, sourceReference)
}

func (f *fakeCertificateRepo) Save(ctx context.Context, certificate *domain.Certificate) error {
	if f.saveFn != nil {
		return f.saveFn(ctx, certificate)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, []*domain.Certificate{certificate})
	return nil
}

func (f *fakeCertificateRepo) SaveAll(ctx context.Context, certificates []*domain.Certificate) error {
	if f.saveAllFn != nil {
		return f.saveAllFn(ctx, certificates)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, certificates)
	return nil
}

func (f *fakeCertificateRepo) DeleteByID(ctx context.Context, id string) error {
	if f.deleteByIDFn == nil {
		return nil
	}
	return f.deleteByIDFn(ctx, id)
}

type publishedMessage struct {
	queue string
	msg   queue.Message
}

type fakePublisher struct {
	mu        sync.Mutex
	publishFn func(ctx context.Context, queueName string, msg queue.Message) error
	published []publishedMessage
}

var _ queue.Publisher = (*fakePublisher)(nil)

func (f *fakePublisher) Publish(ctx context.Context, queueName string, msg queue.Message) error {
	if f.publishFn != nil {
		if err := f.publishFn(ctx, queueName, msg); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedMessage{queue: queueName, msg: msg})
	return nil
}

func (f *fakePublisher) Close() error { return nil }

func (f *fakePublisher) messages() []publishedMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]publishedMessage, len(f.published))
	copy(out, f.published)
	return out
}

type fakeLocker struct {
	acquireFn func(ctx context.Context, name string) (func(context.Context) error, error)
	released  bool
}

func (f *fakeLocker) Acquire(ctx context.Context, name string) (func(context.Context) error, error) {
	if f.acquireFn != nil {
		return f.acquireFn(ctx, name)
	}
	return func(context.Context) error {
		f.released = true
		return nil
	}, nil
}

type fakeChannel struct {
	mu sync.Mutex

	sendFn   func(ctx context.Context, filename string, r io.Reader) error
	listFn   func(ctx context.Context) ([]string, error)
	claimFn  func(ctx context.Context, filename string) (string, error)
	fetchFn  func(ctx context.Context, filename string) (io.ReadCloser, error)
	removeFn func(ctx context.Context, filename string) error

	sent    []string
	removed []string
}

func (f *fakeChannel) Send(ctx context.Context, filename string, r io.Reader) error {
	if f.sendFn != nil {
		if err := f.sendFn(ctx, filename, r); err != nil {
			return err
		}
	} else if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, filename)
	return nil
}

func (f *fakeChannel) ListResponseFiles(ctx context.Context) ([]string, error) {
	if f.listFn == nil {
		return nil, nil
	}
	return f.listFn(ctx)
}

func (f *fakeChannel) Claim(ctx context.Context, filename string) (string, error) {
	if f.claimFn != nil {
		return f.claimFn(ctx, filename)
	}
	return filename + ".processing", nil
}

func (f *fakeChannel) Fetch(ctx context.Context, filename string) (io.ReadCloser, error) {
	if f.fetchFn == nil {
		return io.NopCloser(strings.NewReader("{}")), nil
	}
	return f.fetchFn(ctx, filename)
}

func (f *fakeChannel) Remove(ctx context.Context, filename string) error {
	if f.removeFn != nil {
		if err := f.removeFn(ctx, filename); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, filename)
	return nil
}

type fakePhotoStore struct {
	photoFn func(ctx context.Context, location string) (io.ReadCloser, error)
}

func (f *fakePhotoStore) Photo(ctx context.Context, location string) (io.ReadCloser, error) {
	if f.photoFn != nil {
		return f.photoFn(ctx, location)
	}
	return io.NopCloser(strings.NewReader("png-bytes")), nil
}

// pendingCertificate builds a certificate with one pending print request.
func pendingCertificate(id string, received time.Time) domain.Certificate {
	requested := received.Add(time.Minute)
	return domain.Certificate{
		ID:                          "cert-" + id,
		CertificateNumber:           "ZKG2M4N5P6Q7R8S9T0" + id,
		SourceType:                  domain.SourceVoterCard,
		SourceReference:             "VCA-" + id,
		GssCode:                     "E09000001",
		IssuingAuthorityEn:          "City of London",
		IssueDate:                   received,
		SuggestedExpiryDate:         received.AddDate(10, 0, 0),
		ApplicationReceivedDateTime: received,
		PrintRequests: []domain.PrintRequest{
			{
				ID:              "req-" + id,
				RequestID:       "request-id-" + id,
				RequestDateTime: requested,
				FirstName:       "Ada",
				Surname:         "Lovelace",

				CertificateLanguage: domain.LanguageEnglish,
				DeliveryOption:      domain.DeliveryStandard,
				DeliveryName:        "Ada Lovelace",
				DeliveryAddress: domain.Address{
					Street:   "1 High Street",
					Postcode: "EC1A 1AA",
				},
				PhotoLocation: "arn:aws:s3:::vca-photos/" + id + ".png",
				EnglishEro: domain.ElectoralRegistrationOffice{
					Name:         "City of London",
					PhoneNumber:  "020 0000 0000",
					EmailAddress: "ero@col.example",
					Website:      "https://col.example",
					Address: domain.Address{
						Street:   "Guildhall",
						Postcode: "EC2V 7HH",
					},
				},
				StatusHistory: []domain.StatusEvent{
					{Status: domain.StatusPendingAssignmentToBatch, EventDateTime: requested},
				},
			},
		},
	}
}

// assignedCertificate builds a certificate whose request sits in the given
// batch with the given current status.
func assignedCertificate(id, batchID string, status domain.Status, at time.Time) domain.Certificate {
	certificate := pendingCertificate(id, at)
	request := &certificate.PrintRequests[0]
	request.BatchID = &batchID
	request.AddStatusEvent(domain.StatusAssignedToBatch, at.Add(time.Hour), nil)
	if status != domain.StatusAssignedToBatch {
		request.AddStatusEvent(status, at.Add(2*time.Hour), nil)
	}
	return certificate
}
