package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kendall-kelly/helphub-api/models"
	"github.com/kendall-kelly/helphub-api/repository"
)

// DefaultCandidateLimit caps candidate listings when the caller gives no limit
const DefaultCandidateLimit = 10

// MatchingEngine finds volunteers eligible for a request
type MatchingEngine struct {
	store repository.Store
}

// NewMatchingEngine creates a matching engine reading from store
func NewMatchingEngine(store repository.Store) *MatchingEngine {
	return &MatchingEngine{store: store}
}

// FindCandidates returns active, available volunteers in the exact city and
// state whose profession or skills contain category, best rated first.
// A limit of zero or less returns every match.
func (m *MatchingEngine) FindCandidates(ctx context.Context, location models.Location, category string, limit int) ([]models.VolunteerSummary, error) {
	volunteers, err := m.store.Volunteers().ListAvailableIn(ctx, location.City, location.State)
	if err != nil {
		return nil, fmt.Errorf("failed to list volunteers: %w", err)
	}

	matched := make([]models.Volunteer, 0, len(volunteers))
	for _, v := range volunteers {
		if MatchesCategory(&v, category) {
			matched = append(matched, v)
		}
	}

	sortCandidates(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	summaries := make([]models.VolunteerSummary, 0, len(matched))
	for i := range matched {
		summaries = append(summaries, matched[i].Summary())
	}
	return summaries, nil
}

// MatchesCategory reports whether category is a case-insensitive substring of
// the volunteer's profession or of one of their skills
func MatchesCategory(volunteer *models.Volunteer, category string) bool {
	needle := strings.ToLower(category)
	if strings.Contains(strings.ToLower(volunteer.Profession), needle) {
		return true
	}
	for _, skill := range volunteer.Skills {
		if strings.Contains(strings.ToLower(skill), needle) {
			return true
		}
	}
	return false
}

// MatchesRequest applies the locality and category predicate from the
// volunteer's side. Availability is not considered.
func MatchesRequest(volunteer *models.Volunteer, request *models.Request) bool {
	if volunteer.Location.City != request.Location.City || volunteer.Location.State != request.Location.State {
		return false
	}
	return MatchesCategory(volunteer, request.Service.Category)
}

func sortCandidates(volunteers []models.Volunteer) {
	sort.SliceStable(volunteers, func(i, j int) bool {
		a, b := volunteers[i], volunteers[j]
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.CompletedJobs != b.CompletedJobs {
			return a.CompletedJobs > b.CompletedJobs
		}
		return a.ID.String() < b.ID.String()
	})
}
