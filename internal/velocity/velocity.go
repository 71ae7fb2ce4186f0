// Package velocity provides application submission velocity calculation.
package velocity

import (
	"context"
	"fmt"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Service counts recent application submissions per business.
type Service struct {
	repo  domain.Repository
	cache domain.Cache
}

// NewService creates a new velocity service.
func NewService(repo domain.Repository, cache domain.Cache) *Service {
	return &Service{
		repo:  repo,
		cache: cache,
	}
}

// GetSubmissionCount returns the number of applications submitted by a
// business within a time window. This matches the VelocityGetter signature
// expected by the fraud engine.
func (s *Service) GetSubmissionCount(ctx context.Context, tenantID, businessName string, windowSecs int) (int64, error) {
	if tenantID == "" || businessName == "" {
		return 0, fmt.Errorf("tenantID and businessName are required")
	}

	since := time.Now().Add(-time.Duration(windowSecs) * time.Second)

	if s.repo != nil {
		apps, err := s.repo.ListApplicationsByBusiness(ctx, tenantID, businessName, since)
		if err != nil {
			return 0, fmt.Errorf("failed to list applications: %w", err)
		}
		return int64(len(apps)), nil
	}

	return 0, fmt.Errorf("no data source available")
}

// RecordSubmission bumps the cached submission counter for a business.
// Best effort; the repository remains the source of truth.
func (s *Service) RecordSubmission(ctx context.Context, tenantID, businessName string, window time.Duration) {
	if s.cache == nil {
		return
	}
	key := "velocity:" + businessName
	_, _ = s.cache.IncrementCounter(ctx, tenantID, key, window)
}

// GetVelocityGetter returns a VelocityGetter function for the fraud engine.
func (s *Service) GetVelocityGetter() func(ctx context.Context, tenantID, businessName string, windowSecs int) (int64, error) {
	return s.GetSubmissionCount
}
