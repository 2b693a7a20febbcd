package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/electoral-digital/print-engine/internal/domain"
)

// CertificateRepository is the data-access port the batching and
// reconciliation engines depend on: exactly the query shapes they use,
// nothing ORM-specific.
type CertificateRepository interface {
	// FindByStatus returns certificates whose aggregate status matches,
	// oldest application first, capped at limit.
	FindByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error)

	// CountAssignedToBatchBetween counts ASSIGNED_TO_BATCH status events in
	// [from, to), i.e. how much of a day's print capacity is already spoken
	// for.
	CountAssignedToBatchBetween(ctx context.Context, from, to time.Time) (int64, error)

	FindByBatchID(ctx context.Context, batchID string) ([]domain.Certificate, error)
	FindByRequestID(ctx context.Context, requestID string) (*domain.Certificate, error)
	FindBySourceReference(ctx context.Context, sourceType domain.SourceType, sourceReference string) (*domain.Certificate, error)

	Save(ctx context.Context, certificate *domain.Certificate) error
	SaveAll(ctx context.Context, certificates []*domain.Certificate) error
	DeleteByID(ctx context.Context, id string) error
}

type GormCertificateRepo struct {
	db *gorm.DB
}

var _ CertificateRepository = (*GormCertificateRepo)(nil)

func NewGormCertificateRepo(db *gorm.DB) *GormCertificateRepo {
	return &GormCertificateRepo{db: db}
}

func (r *GormCertificateRepo) FindByStatus(ctx context.Context, status domain.Status, limit int) ([]domain.Certificate, error) {
	var models []CertificateModel
	err := r.preloaded(ctx).
		Where("status = ?", string(status)).
		Order("application_received_date_time ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return certificatesToDomain(models), nil
}

func (r *GormCertificateRepo) CountAssignedToBatchBetween(ctx context.Context, from, to time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&StatusEventModel{}).
		Where("status = ? AND event_date_time >= ? AND event_date_time < ?",
			string(domain.StatusAssignedToBatch), from, to).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}

func (r *GormCertificateRepo) FindByBatchID(ctx context.Context, batchID string) ([]domain.Certificate, error) {
	requestOwners := r.db.
		Model(&PrintRequestModel{}).
		Select("certificate_id").
		Where("batch_id = ?", batchID)

	var models []CertificateModel
	err := r.preloaded(ctx).
		Where("id IN (?)", requestOwners).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return certificatesToDomain(models), nil
}

func (r *GormCertificateRepo) FindByRequestID(ctx context.Context, requestID string) (*domain.Certificate, error) {
	requestOwner := r.db.
		Model(&PrintRequestModel{}).
		Select("certificate_id").
		Where("request_id = ?", requestID)

	var model CertificateModel
	err := r.preloaded(ctx).
		Where("id IN (?)", requestOwner).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no certificate with print request %q", domain.ErrNotFound, requestID)
	}
	if err != nil {
		return nil, err
	}
	return certificateModelToDomain(&model), nil
}

func (r *GormCertificateRepo) FindBySourceReference(ctx context.Context, sourceType domain.SourceType, sourceReference string) (*domain.Certificate, error) {
	var model CertificateModel
	err := r.preloaded(ctx).
		Where("source_type = ? AND source_reference = ?", string(sourceType), sourceReference).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: no certificate for %s %q", domain.ErrNotFound, sourceType, sourceReference)
	}
	if err != nil {
		return nil, err
	}
	return certificateModelToDomain(&model), nil
}

func (r *GormCertificateRepo) Save(ctx context.Context, certificate *domain.Certificate) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return saveCertificate(tx, certificate)
	})
}

// SaveAll persists every certificate in one transaction so a crash
// mid-update cannot leave a batch half-assigned or half-reconciled.
func (r *GormCertificateRepo) SaveAll(ctx context.Context, certificates []*domain.Certificate) error {
	if len(certificates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, certificate := range certificates {
			if err := saveCertificate(tx, certificate); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GormCertificateRepo) DeleteByID(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&CertificateModel{ID: id})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: no certificate with id %q", domain.ErrNotFound, id)
	}
	return nil
}

func (r *GormCertificateRepo) preloaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("PrintRequests").
		Preload("PrintRequests.StatusEvents", func(db *gorm.DB) *gorm.DB {
			return db.Order("sequence ASC")
		})
}

func saveCertificate(tx *gorm.DB, certificate *domain.Certificate) error {
	if certificate == nil {
		return fmt.Errorf("%w: certificate is required", domain.ErrValidation)
	}

	model := certificateModelFromDomain(certificate)
	for i := range model.PrintRequests {
		request := &model.PrintRequests[i]
		for j := range request.StatusEvents {
			event := &request.StatusEvents[j]
			// Deterministic per (request, sequence): re-saving an unchanged
			// history upserts instead of duplicating the append-only log.
			event.ID = statusEventID(request.ID, event.Sequence)
		}
	}

	return tx.Session(&gorm.Session{FullSaveAssociations: true}).Save(model).Error
}

func statusEventID(printRequestID string, sequence int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(printRequestID+"/"+strconv.Itoa(sequence))).String()
}

func certificatesToDomain(models []CertificateModel) []domain.Certificate {
	certificates := make([]domain.Certificate, 0, len(models))
	for i := range models {
		certificates = append(certificates, *certificateModelToDomain(&models[i]))
	}
	return certificates
}
