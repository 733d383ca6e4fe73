package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"phone-auth-service/internal/service"
)

type UserSearcher interface {
	Search(ctx context.Context, query string, page int) (*service.SearchResult, error)
}

type SearchHandler struct {
	searcher UserSearcher
}

func NewSearchHandler(searcher UserSearcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

func (h *SearchHandler) RegisterRoutes(router chi.Router) {
	router.Get("/search/users", h.SearchUsers)
}

// SearchUsers handles GET /search/users?q=&page=
func (h *SearchHandler) SearchUsers(w http.ResponseWriter, r *http.Request) {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		page = 1
	}

	res, err := h.searcher.Search(r.Context(), r.URL.Query().Get("q"), page)
	if err != nil {
		respondError(w, err, service.CodeSearchFailed)
		return
	}
	respondState(w, http.StatusOK, res.State, map[string]interface{}{
		"data": res.Users,
		"meta": res.Meta,
	})
}
