package service

import (
	"context"
	"errors"
	"fmt"
	"smart-journal-go/internal/model"
	"smart-journal-go/internal/repository"
	"smart-journal-go/pkg/identity"
	"strings"
)

// ProfileStats 是个人资料页的统计信息。
type ProfileStats struct {
	FullName     string      `json:"full_name"`
	TotalEntries int64       `json:"total_entries"`
	MemberSince  *model.Date `json:"member_since"`
}

// ProfileService 定义了个人资料相关的业务操作。
type ProfileService interface {
	Stats(ctx context.Context, user *model.User) (*ProfileStats, error)
	Update(ctx context.Context, accessToken, fullName string) (*model.User, error)
}

type profileService struct {
	entryRepo repository.EntryRepository
	provider  identity.Provider
}

// NewProfileService 创建一个新的 ProfileService 实例。
func NewProfileService(entryRepo repository.EntryRepository, provider identity.Provider) ProfileService {
	return &profileService{entryRepo: entryRepo, provider: provider}
}

// Stats 返回日记总数与第一篇日记的日期（没有日记时 member_since 为 null）。
func (s *profileService) Stats(ctx context.Context, user *model.User) (*ProfileStats, error) {
	total, err := s.entryRepo.Count(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	first, err := s.entryRepo.EarliestCreatedAt(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	stats := &ProfileStats{FullName: user.FullName, TotalEntries: total}
	if first != nil {
		d := model.Date(first.UTC())
		stats.MemberSince = &d
	}
	return stats, nil
}

func (s *profileService) Update(ctx context.Context, accessToken, fullName string) (*model.User, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return nil, NewValidationError("full_name is required")
	}
	user, err := s.provider.UpdateProfile(ctx, accessToken, fullName)
	if errors.Is(err, identity.ErrInvalidToken) {
		return nil, ErrUnauthorized
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return user, nil
}
