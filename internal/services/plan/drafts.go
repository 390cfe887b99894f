package plan

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

const draftKeyPrefix = "remnashop:plan-draft:"

// DefaultDraftTTL время жизни несохранённого черновика.
const DefaultDraftTTL = 24 * time.Hour

// Cache описывает методы для кеширования данных.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

// DraftStore хранит черновики тарифов в redis, по одному на администратора.
type DraftStore struct {
	cache Cache
	ttl   time.Duration
	now   func() time.Time
}

// NewDraftStore создает хранилище черновиков. ttl <= 0 заменяется на DefaultDraftTTL.
func NewDraftStore(cache Cache, ttl time.Duration) *DraftStore {
	if ttl <= 0 {
		ttl = DefaultDraftTTL
	}
	return &DraftStore{cache: cache, ttl: ttl, now: time.Now}
}

func draftKey(adminID int64) string {
	return draftKeyPrefix + strconv.FormatInt(adminID, 10)
}

// StartSession начинает новый черновик, заменяя предыдущий. planID nil для нового тарифа.
func (s *DraftStore) StartSession(ctx context.Context, adminID int64, planID *int64) (*PlanDraft, error) {
	const op = "plan.DraftStore.StartSession"

	d := &PlanDraft{
		SessionID: uuid.NewString(),
		StartedAt: s.now().UTC(),
		PlanID:    planID,
	}
	if err := s.cache.Set(ctx, draftKey(adminID), d, s.ttl); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// Draft возвращает текущий черновик администратора.
func (s *DraftStore) Draft(ctx context.Context, adminID int64) (*PlanDraft, error) {
	const op = "plan.DraftStore.Draft"

	var d PlanDraft
	found, err := s.cache.Get(ctx, draftKey(adminID), &d)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !found {
		return nil, fmt.Errorf("%s: %w", op, ErrDraftNotFound)
	}
	return &d, nil
}

// UpdateDraft применяет fn к черновику и сохраняет его, продлевая срок жизни.
func (s *DraftStore) UpdateDraft(ctx context.Context, adminID int64, fn func(d *PlanDraft) error) (*PlanDraft, error) {
	const op = "plan.DraftStore.UpdateDraft"

	d, err := s.Draft(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := fn(d); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, draftKey(adminID), d, s.ttl); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return d, nil
}

// Cancel удаляет черновик. Отсутствие черновика не считается ошибкой.
func (s *DraftStore) Cancel(ctx context.Context, adminID int64) error {
	const op = "plan.DraftStore.Cancel"

	if err := s.cache.Invalidate(ctx, draftKey(adminID)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
