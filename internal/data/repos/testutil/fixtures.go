package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/storykeep-backend/internal/domain"
)

func SeedProject(tb testing.TB, ctx context.Context, tx *gorm.DB, ownerID uuid.UUID) *types.Project {
	tb.Helper()
	now := time.Now().UTC()
	p := &types.Project{
		ID:          uuid.New(),
		OwnerUserID: ownerID,
		Name:        "family",
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := tx.WithContext(ctx).Create(p).Error; err != nil {
		tb.Fatalf("seed project: %v", err)
	}
	return p
}

func SeedMember(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID, userID uuid.UUID, role string) *types.ProjectMember {
	tb.Helper()
	m := &types.ProjectMember{
		ID:        uuid.New(),
		ProjectID: projectID,
		UserID:    userID,
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(m).Error; err != nil {
		tb.Fatalf("seed member: %v", err)
	}
	return m
}

// StoryOpt tweaks a seeded story before insert.
type StoryOpt func(*types.Story)

func WithStatus(status string) StoryOpt {
	return func(s *types.Story) { s.Status = status }
}

func WithCreatedAt(t time.Time) StoryOpt {
	return func(s *types.Story) {
		s.CreatedAt = t.UTC()
		s.UpdatedAt = t.UTC()
	}
}

func WithChapter(id uuid.UUID) StoryOpt {
	return func(s *types.Story) { s.ChapterID = &id }
}

func WithFacilitator(id uuid.UUID) StoryOpt {
	return func(s *types.Story) { s.FacilitatorID = &id }
}

// SeedStory inserts a ready story unless an option says otherwise.
func SeedStory(tb testing.TB, ctx context.Context, tx *gorm.DB, projectID uuid.UUID, title, transcript string, opts ...StoryOpt) *types.Story {
	tb.Helper()
	now := time.Now().UTC()
	s := &types.Story{
		ID:         uuid.New(),
		ProjectID:  projectID,
		Title:      title,
		Transcript: transcript,
		Status:     types.StoryStatusReady,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed story: %v", err)
	}
	return s
}

// SeedWallet inserts a wallet and matching grant rows so the ledger
// reconciles with the balances.
func SeedWallet(tb testing.TB, ctx context.Context, tx *gorm.DB, userID uuid.UUID, vouchers, facilitators, storytellers int) *types.ResourceWallet {
	tb.Helper()
	now := time.Now().UTC()
	w := &types.ResourceWallet{
		ID:               uuid.New(),
		UserID:           userID,
		ProjectVouchers:  vouchers,
		FacilitatorSeats: facilitators,
		StorytellerSeats: storytellers,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed wallet: %v", err)
	}
	for _, rt := range types.ResourceTypes {
		amt := w.Balance(rt)
		if amt == 0 {
			continue
		}
		row := &types.SeatTransaction{
			ID:              uuid.New(),
			UserID:          userID,
			TransactionType: types.TransactionGrant,
			ResourceType:    rt,
			Amount:          amt,
			Description:     "seed",
			CreatedAt:       now,
		}
		if err := tx.WithContext(ctx).Create(row).Error; err != nil {
			tb.Fatalf("seed transaction: %v", err)
		}
	}
	return w
}

func PtrUUID(v uuid.UUID) *uuid.UUID { return &v }

func PtrTime(v time.Time) *time.Time { return &v }
