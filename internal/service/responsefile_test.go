package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/electoral-digital/print-engine/internal/domain"
	"github.com/electoral-digital/print-engine/internal/queue"
)

func newResponseFileService(t *testing.T, channel *fakeChannel, publisher *fakePublisher, repo *fakeCertificateRepo) *ResponseFileService {
	t.Helper()

	reconciler := newReconciler(t, repo, publisher)
	s, err := NewResponseFileService(channel, publisher, reconciler, zap.NewNop())
	if err != nil {
		t.Fatalf("NewResponseFileService() error = %v", err)
	}
	return s
}

func TestCheckForResponseFilesClaimsAndPublishes(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{
		listFn: func(ctx context.Context) ([]string, error) {
			return []string{
				"status-20260310.json",
				"status-20260309.json.processing",
				"status-20260311.json",
			}, nil
		},
	}
	publisher := &fakePublisher{}

	s := newResponseFileService(t, channel, publisher, &fakeCertificateRepo{})
	if err := s.CheckForResponseFiles(context.Background()); err != nil {
		t.Fatalf("CheckForResponseFiles() error = %v", err)
	}

	published := publisher.messages()
	if len(published) != 2 {
		t.Fatalf("published = %d, want 2 (already-claimed file skipped)", len(published))
	}
	for _, p := range published {
		if p.queue != queue.ResponseFileQueue {
			t.Fatalf("published to %q, want %q", p.queue, queue.ResponseFileQueue)
		}
		msg := p.msg.(queue.ProcessResponseFileMessage)
		if !strings.HasSuffix(msg.Filename, ".processing") {
			t.Fatalf("published unclaimed filename %q", msg.Filename)
		}
	}
}

func TestCheckForResponseFilesContinuesPastClaimFailure(t *testing.T) {
	t.Parallel()

	claimErr := errors.New("file already renamed")
	channel := &fakeChannel{
		listFn: func(ctx context.Context) ([]string, error) {
			return []string{"a.json", "b.json"}, nil
		},
		claimFn: func(ctx context.Context, filename string) (string, error) {
			if filename == "a.json" {
				return "", claimErr
			}
			return filename + ".processing", nil
		},
	}
	publisher := &fakePublisher{}

	s := newResponseFileService(t, channel, publisher, &fakeCertificateRepo{})
	if err := s.CheckForResponseFiles(context.Background()); err != nil {
		t.Fatalf("CheckForResponseFiles() error = %v", err)
	}

	published := publisher.messages()
	if len(published) != 1 {
		t.Fatalf("published = %d, want 1", len(published))
	}
	msg := published[0].msg.(queue.ProcessResponseFileMessage)
	if msg.Filename != "b.json.processing" {
		t.Fatalf("published %q, want b.json.processing", msg.Filename)
	}
}

func TestProcessResponseFileAppliesEntriesAndRemovesFile(t *testing.T) {
	t.Parallel()

	const batchID = "aabbccddeeff00112233445566778899"
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	batchCertificates := []domain.Certificate{
		assignedCertificate("01", batchID, domain.StatusSentToPrintProvider, at),
	}
	printCertificate := assignedCertificate("02", batchID, domain.StatusValidatedByPrintProvider, at)

	repo := &fakeCertificateRepo{
		findByBatchIDFn: func(ctx context.Context, got string) ([]domain.Certificate, error) {
			return batchCertificates, nil
		},
		findByRequestIDFn: func(ctx context.Context, got string) (*domain.Certificate, error) {
			return &printCertificate, nil
		},
	}

	body := fmt.Sprintf(`{
		"batchResponses": [
			{"batchId": %q, "status": "SUCCESS", "timestamp": "2026-03-11T10:00:00Z"}
		],
		"printResponses": [
			{"requestId": %q, "statusStep": "IN_PRODUCTION", "status": "SUCCESS", "timestamp": "2026-03-12T10:00:00Z"}
		]
	}`, batchID, printCertificate.PrintRequests[0].RequestID)

	channel := &fakeChannel{
		fetchFn: func(ctx context.Context, filename string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}
	publisher := &fakePublisher{}

	s := newResponseFileService(t, channel, publisher, repo)
	if err := s.ProcessResponseFile(context.Background(), "status.json.processing"); err != nil {
		t.Fatalf("ProcessResponseFile() error = %v", err)
	}

	if len(repo.saved) != 2 {
		t.Fatalf("save calls = %d, want 2", len(repo.saved))
	}
	if got := batchCertificates[0].PrintRequests[0].CurrentStatus(); got != domain.StatusReceivedByPrintProvider {
		t.Fatalf("batch request status = %q, want RECEIVED_BY_PRINT_PROVIDER", got)
	}
	if got := printCertificate.PrintRequests[0].CurrentStatus(); got != domain.StatusInProduction {
		t.Fatalf("print request status = %q, want IN_PRODUCTION", got)
	}
	if len(channel.removed) != 1 || channel.removed[0] != "status.json.processing" {
		t.Fatalf("removed = %v, want the processed file", channel.removed)
	}
}

func TestProcessResponseFileBadJSONDeadLetters(t *testing.T) {
	t.Parallel()

	channel := &fakeChannel{
		fetchFn: func(ctx context.Context, filename string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader("this is not json")), nil
		},
	}

	s := newResponseFileService(t, channel, &fakePublisher{}, &fakeCertificateRepo{})
	err := s.ProcessResponseFile(context.Background(), "garbage.json.processing")
	if !errors.Is(err, queue.ErrBadMessage) {
		t.Fatalf("ProcessResponseFile() error = %v, want ErrBadMessage", err)
	}
	if len(channel.removed) != 0 {
		t.Fatal("an unparseable file must not be removed")
	}
}

func TestProcessResponseFileSkipsUnapplicableEntries(t *testing.T) {
	t.Parallel()

	// NOT_DELIVERED with SUCCESS has no status mapping; the entry is skipped
	// but the rest of the file still applies and the file is removed.
	const batchID = "aabbccddeeff00112233445566778899"
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	batchCertificates := []domain.Certificate{
		assignedCertificate("01", batchID, domain.StatusSentToPrintProvider, at),
	}

	repo := &fakeCertificateRepo{
		findByBatchIDFn: func(ctx context.Context, got string) ([]domain.Certificate, error) {
			return batchCertificates, nil
		},
	}

	body := fmt.Sprintf(`{
		"batchResponses": [
			{"batchId": %q, "status": "SUCCESS", "timestamp": "2026-03-11T10:00:00Z"}
		],
		"printResponses": [
			{"requestId": "some-request", "statusStep": "NOT_DELIVERED", "status": "SUCCESS", "timestamp": "2026-03-12T10:00:00Z"}
		]
	}`, batchID)

	channel := &fakeChannel{
		fetchFn: func(ctx context.Context, filename string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}

	s := newResponseFileService(t, channel, &fakePublisher{}, repo)
	if err := s.ProcessResponseFile(context.Background(), "status.json.processing"); err != nil {
		t.Fatalf("ProcessResponseFile() error = %v", err)
	}

	if len(repo.saved) != 1 {
		t.Fatalf("save calls = %d, want 1 (batch entry only)", len(repo.saved))
	}
	if len(channel.removed) != 1 {
		t.Fatal("file should be removed after applicable entries were applied")
	}
}

func TestProcessResponseFileInfrastructureErrorRequeues(t *testing.T) {
	t.Parallel()

	const batchID = "aabbccddeeff00112233445566778899"
	dbErr := errors.New("connection refused")
	repo := &fakeCertificateRepo{
		findByBatchIDFn: func(ctx context.Context, got string) ([]domain.Certificate, error) {
			return nil, dbErr
		},
	}

	body := fmt.Sprintf(`{
		"batchResponses": [
			{"batchId": %q, "status": "SUCCESS", "timestamp": "2026-03-11T10:00:00Z"}
		]
	}`, batchID)
	channel := &fakeChannel{
		fetchFn: func(ctx context.Context, filename string) (io.ReadCloser, error) {
			return io.NopCloser(strings.NewReader(body)), nil
		},
	}

	s := newResponseFileService(t, channel, &fakePublisher{}, repo)
	err := s.ProcessResponseFile(context.Background(), "status.json.processing")
	if !errors.Is(err, dbErr) {
		t.Fatalf("ProcessResponseFile() error = %v, want infrastructure error", err)
	}
	if errors.Is(err, queue.ErrBadMessage) {
		t.Fatal("infrastructure errors must requeue, not dead-letter")
	}
	if len(channel.removed) != 0 {
		t.Fatal("file must not be removed when an entry failed transiently")
	}
}
