package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"phone-auth-service/internal/models"
	"phone-auth-service/internal/util"
)

const maxSearchLength = 100

type SearchMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int64 `json:"last_page"`
}

type SearchResult struct {
	State ResponseState
	Users []models.User
	Meta  SearchMeta
}

type UserSearchService struct {
	users     UserRepository
	index     UserIndex
	perPage   int
	minLength int
}

// Search looks for an exact username first and falls back to a prefix
// search over usernames and names.
func (s *UserSearchService) Search(ctx context.Context, query string, page int) (*SearchResult, error) {
	term := strings.TrimSpace(query)
	if utf8.RuneCountInString(term) < s.minLength {
		return nil, NewAuthError(CodeSearchTermTooShort, nil)
	}
	if utf8.RuneCountInString(term) > maxSearchLength {
		return nil, NewValidationError("q", "The q field must not be greater than 100 characters.")
	}
	if page < 1 {
		page = 1
	}

	exact, err := s.users.FindByUsernameExact(ctx, strings.ToLower(term))
	if err != nil {
		util.Error("Exact username lookup failed", zap.Error(err))
		return nil, NewAuthError(CodeSearchFailed, err)
	}
	if exact != nil {
		return &SearchResult{
			State: StateUsersFound,
			Users: []models.User{*exact},
			Meta:  SearchMeta{CurrentPage: 1, PerPage: s.perPage, Total: 1, LastPage: 1},
		}, nil
	}

	if s.index == nil {
		return s.empty(), nil
	}

	users, total, err := s.index.SearchByUsernameOrName(ctx, term, (page-1)*s.perPage, s.perPage)
	if err != nil {
		util.Error("User search failed", zap.Error(err))
		return nil, NewAuthError(CodeSearchFailed, err)
	}
	if total == 0 {
		return s.empty(), nil
	}

	lastPage := (total + int64(s.perPage) - 1) / int64(s.perPage)
	return &SearchResult{
		State: StateUsersFound,
		Users: users,
		Meta:  SearchMeta{CurrentPage: page, PerPage: s.perPage, Total: total, LastPage: lastPage},
	}, nil
}

func (s *UserSearchService) empty() *SearchResult {
	return &SearchResult{
		State: StateNoResultsFound,
		Users: []models.User{},
		Meta:  SearchMeta{CurrentPage: 1, PerPage: s.perPage, Total: 0, LastPage: 1},
	}
}
