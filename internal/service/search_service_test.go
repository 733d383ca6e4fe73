package service

import (
	"context"
	"strings"
	"testing"

	"phone-auth-service/internal/models"
)

func TestSearchTermLength(t *testing.T) {
	h := newHarness("production", nil)
	svc := h.factory.UserSearchService()

	tests := []struct {
		query string
		code  ErrorCode
	}{
		{"a", CodeSearchTermTooShort},
		{"   a  ", CodeSearchTermTooShort},
		{"", CodeSearchTermTooShort},
		{strings.Repeat("x", 101), CodeValidationError},
	}
	for _, tt := range tests {
		if _, err := svc.Search(context.Background(), tt.query, 1); CodeOf(err) != tt.code {
			t.Errorf("Search(%q) err = %v, want %s", tt.query, err, tt.code)
		}
	}
}

func TestSearchExactUsername(t *testing.T) {
	ctx := context.Background()
	h := newHarness("production", nil)
	_, err := h.factory.RegistrationService().Register(ctx, RegisterRequest{Name: "Jane", Username: "jane.doe", Phone: testPhone})
	if err != nil {
		t.Fatal(err)
	}

	res, err := h.factory.UserSearchService().Search(ctx, "  Jane.Doe ", 3)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateUsersFound || len(res.Users) != 1 || res.Users[0].Username != "jane.doe" {
		t.Fatalf("result = %+v", res)
	}
	want := SearchMeta{CurrentPage: 1, PerPage: 15, Total: 1, LastPage: 1}
	if res.Meta != want {
		t.Fatalf("meta = %+v, want %+v", res.Meta, want)
	}
	if h.index.limit != 0 {
		t.Fatal("exact match must not query the index")
	}
}

func TestSearchPrefixPaging(t *testing.T) {
	h := newHarness("production", nil)
	h.index.results = []models.User{{UserID: "u1", Username: "jan.one", Name: "Jan One"}}
	h.index.total = 20

	res, err := h.factory.UserSearchService().Search(context.Background(), "jan", 2)
	if err != nil {
		t.Fatal(err)
	}
	if h.index.offset != 15 || h.index.limit != 15 {
		t.Fatalf("offset=%d limit=%d", h.index.offset, h.index.limit)
	}
	want := SearchMeta{CurrentPage: 2, PerPage: 15, Total: 20, LastPage: 2}
	if res.State != StateUsersFound || res.Meta != want {
		t.Fatalf("result = %+v", res)
	}
}

func TestSearchNoResults(t *testing.T) {
	h := newHarness("production", nil)
	res, err := h.factory.UserSearchService().Search(context.Background(), "zz", 0)
	if err != nil {
		t.Fatal(err)
	}
	if res.State != StateNoResultsFound || len(res.Users) != 0 || res.Meta.CurrentPage != 1 {
		t.Fatalf("result = %+v", res)
	}
}

func TestSearchIndexFailure(t *testing.T) {
	h := newHarness("production", nil)
	h.index.err = errBoom
	if _, err := h.factory.UserSearchService().Search(context.Background(), "jan", 1); CodeOf(err) != CodeSearchFailed {
		t.Fatalf("err = %v", err)
	}
}

func TestSearchWithoutIndex(t *testing.T) {
	svc := &UserSearchService{users: newMemUsers(), perPage: 15, minLength: 2}
	res, err := svc.Search(context.Background(), "jan", 1)
	if err != nil || res.State != StateNoResultsFound {
		t.Fatalf("result = %+v, %v", res, err)
	}
}
