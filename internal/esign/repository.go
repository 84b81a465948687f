package esign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/franciscosanchezn/signflow-api/internal/models"
)

// ErrEnvelopeNotFound is returned when no local record exists for an envelope id
var ErrEnvelopeNotFound = errors.New("esign: envelope not found")

// List page sizes
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// Repository is the local mirror of submitted envelopes
type Repository interface {
	Create(ctx context.Context, envelope *models.Envelope) error
	FindByEnvelopeID(ctx context.Context, envelopeID string) (*models.Envelope, error)
	RecordStatus(ctx context.Context, info *EnvelopeInfo, observedAt time.Time, polled bool) (*models.Envelope, error)
	List(ctx context.Context, status models.EnvelopeStatus, limit int) ([]models.Envelope, error)
}

type GormRepository struct {
	db *gorm.DB
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Create(ctx context.Context, envelope *models.Envelope) error {
	if err := r.db.WithContext(ctx).Create(envelope).Error; err != nil {
		return fmt.Errorf("store envelope %s: %w", envelope.EnvelopeID, err)
	}
	return nil
}

func (r *GormRepository) FindByEnvelopeID(ctx context.Context, envelopeID string) (*models.Envelope, error) {
	var envelope models.Envelope
	err := r.db.WithContext(ctx).Where("envelope_id = ?", envelopeID).First(&envelope).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrEnvelopeNotFound
		}
		return nil, fmt.Errorf("load envelope %s: %w", envelopeID, err)
	}
	return &envelope, nil
}

// RecordStatus copies a provider observation onto the local record.
// Out of order observations never move the status backwards, but their timestamps are kept.
// Envelopes created outside this service are not mirrored.
func (r *GormRepository) RecordStatus(ctx context.Context, info *EnvelopeInfo, observedAt time.Time, polled bool) (*models.Envelope, error) {
	envelope, err := r.FindByEnvelopeID(ctx, info.EnvelopeID)
	if err != nil {
		return nil, err
	}

	status := models.ParseEnvelopeStatus(info.Status)
	updates := map[string]any{}
	if envelope.Status.CanAdvanceTo(status) {
		updates["status"] = status
		changed := observedAt
		if info.StatusChangedAt != nil {
			changed = *info.StatusChangedAt
		}
		updates["status_changed_at"] = changed
	}
	setTime := func(column string, current *time.Time, observed *time.Time) {
		if observed != nil && (current == nil || !current.Equal(*observed)) {
			updates[column] = *observed
		}
	}
	setTime("sent_at", envelope.SentAt, info.SentAt)
	setTime("delivered_at", envelope.DeliveredAt, info.DeliveredAt)
	setTime("completed_at", envelope.CompletedAt, info.CompletedAt)
	setTime("declined_at", envelope.DeclinedAt, info.DeclinedAt)
	setTime("voided_at", envelope.VoidedAt, info.VoidedAt)
	if polled {
		updates["last_polled_at"] = observedAt
	}
	if len(updates) == 0 {
		return envelope, nil
	}

	if err := r.db.WithContext(ctx).Model(envelope).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("record envelope status %s: %w", info.EnvelopeID, err)
	}
	return r.FindByEnvelopeID(ctx, info.EnvelopeID)
}

func (r *GormRepository) List(ctx context.Context, status models.EnvelopeStatus, limit int) ([]models.Envelope, error) {
	switch {
	case limit <= 0:
		limit = DefaultListLimit
	case limit > MaxListLimit:
		limit = MaxListLimit
	}
	q := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var envelopes []models.Envelope
	if err := q.Find(&envelopes).Error; err != nil {
		return nil, fmt.Errorf("list envelopes: %w", err)
	}
	return envelopes, nil
}
