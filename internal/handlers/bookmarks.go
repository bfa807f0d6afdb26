package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/mini-ttc/etaboard/internal/models"
	"github.com/mini-ttc/etaboard/internal/repository"
)

// BookmarkRepository defines the interface for bookmark persistence
type BookmarkRepository interface {
	ListBookmarks(ctx context.Context) ([]models.Bookmark, error)
	SaveBookmark(ctx context.Context, b models.Bookmark) (*models.Bookmark, error)
	DeleteBookmark(ctx context.Context, id string) error
}

// BookmarkHandler handles HTTP requests for saved stop boards
type BookmarkHandler struct {
	repo     BookmarkRepository
	validate *validator.Validate
}

// NewBookmarkHandler creates a new handler with the given repository
func NewBookmarkHandler(repo BookmarkRepository) *BookmarkHandler {
	return &BookmarkHandler{repo: repo, validate: validator.New()}
}

// BookmarksResponse is the JSON response for GET /api/bookmarks
type BookmarksResponse struct {
	Bookmarks []models.Bookmark `json:"bookmarks"`
	Count     int               `json:"count"`
}

// ListBookmarks handles GET /api/bookmarks
func (h *BookmarkHandler) ListBookmarks(w http.ResponseWriter, r *http.Request) {
	bookmarks, err := h.repo.ListBookmarks(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to retrieve bookmarks", err)
		return
	}
	writeJSON(w, http.StatusOK, BookmarksResponse{Bookmarks: bookmarks, Count: len(bookmarks)})
}

// SaveBookmark handles POST /api/bookmarks
// Saving the same stop twice updates the existing bookmark
func (h *BookmarkHandler) SaveBookmark(w http.ResponseWriter, r *http.Request) {
	var b models.Bookmark
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10))
	if err := dec.Decode(&b); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	if err := h.validate.Struct(b); err != nil {
		details := map[string]interface{}{}
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				details[fe.Field()] = fe.Tag()
			}
		}
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:   "Invalid bookmark",
			Details: details,
		})
		return
	}

	saved, err := h.repo.SaveBookmark(r.Context(), b)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save bookmark", err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}

// DeleteBookmark handles DELETE /api/bookmarks/{id}
func (h *BookmarkHandler) DeleteBookmark(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "id parameter is required", nil)
		return
	}

	if err := h.repo.DeleteBookmark(r.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Bookmark not found", nil)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete bookmark", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
