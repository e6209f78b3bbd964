package http

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid"
	"github.com/yuankeMiao/Marmotshop-backend/internal/apperr"
	"github.com/yuankeMiao/Marmotshop-backend/internal/review"
	"github.com/yuankeMiao/Marmotshop-backend/internal/user"
)

type CreateReviewRequest struct {
	Rating    int       `json:"rating" validate:"required,min=1,max=5"`
	Content   *string   `json:"content,omitempty" validate:"omitempty,max=2000"`
	ProductID uuid.UUID `json:"productId" validate:"required"`
}

type UpdateReviewRequest struct {
	Rating  *int    `json:"rating,omitempty" validate:"omitempty,min=1,max=5"`
	Content *string `json:"content,omitempty" validate:"omitempty,max=2000"`
}

type ReviewHandler struct {
	service  review.Service
	auth     *Authenticator
	validate *validator.Validate
}

func NewReviewHandler(service review.Service, auth *Authenticator) *ReviewHandler {
	return &ReviewHandler{
		service:  service,
		auth:     auth,
		validate: validator.New(),
	}
}

// RegisterRoutes mounts the review API. Reads are public; writes and
// my-reviews need a caller.
func (h *ReviewHandler) RegisterRoutes(router chi.Router) {
	router.Route("/reviews", func(r chi.Router) {
		r.Get("/", h.handleListReviews)
		r.Get("/product/{productId}", h.handleListProductReviews)
		r.Get("/user/{userId}", h.handleListUserReviews)
		r.Get("/{id}", h.handleGetReviewByID)

		r.Group(func(r chi.Router) {
			r.Use(h.auth.Authenticate)
			r.Get("/my-reviews", h.handleListMyReviews)
			r.Post("/", h.handleCreateReview)
			r.Patch("/{id}", h.handleUpdateReview)
			r.Delete("/{id}", h.handleDeleteReview)
		})
	})
}

func (h *ReviewHandler) handleCreateReview(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}

	var requestPayload CreateReviewRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	created, err := h.service.SubmitReview(r.Context(), review.SubmitInput{
		UserID:    me.ID,
		ProductID: requestPayload.ProductID,
		Rating:    requestPayload.Rating,
		Content:   requestPayload.Content,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to submit review")
		return
	}

	respondWithJSON(w, http.StatusCreated, created)
}

func (h *ReviewHandler) handleGetReviewByID(w http.ResponseWriter, r *http.Request) {
	reviewID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	found, err := h.service.GetReview(r.Context(), reviewID)
	if err != nil {
		respondWithServiceError(w, err, "Failed to get review by id")
		return
	}

	respondWithJSON(w, http.StatusOK, found)
}

func (h *ReviewHandler) handleListReviews(w http.ResponseWriter, r *http.Request) {
	opts, err := reviewQueryOptions(r)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list reviews")
		return
	}

	res, err := h.service.ListReviews(r.Context(), opts)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *ReviewHandler) handleListProductReviews(w http.ResponseWriter, r *http.Request) {
	productID, ok := urlUUID(w, r, "productId")
	if !ok {
		return
	}

	opts, err := reviewQueryOptions(r)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list product reviews")
		return
	}

	res, err := h.service.ListByProduct(r.Context(), productID, opts)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list product reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *ReviewHandler) handleListUserReviews(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlUUID(w, r, "userId")
	if !ok {
		return
	}
	h.listByUser(w, r, userID)
}

func (h *ReviewHandler) handleListMyReviews(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	h.listByUser(w, r, me.ID)
}

func (h *ReviewHandler) listByUser(w http.ResponseWriter, r *http.Request, userID uuid.UUID) {
	opts, err := reviewQueryOptions(r)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list user reviews")
		return
	}

	res, err := h.service.ListByUser(r.Context(), userID, opts)
	if err != nil {
		respondWithServiceError(w, err, "Failed to list user reviews")
		return
	}

	respondWithJSON(w, http.StatusOK, res)
}

func (h *ReviewHandler) handleUpdateReview(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	reviewID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	var requestPayload UpdateReviewRequest
	if !decodeAndValidate(w, r, h.validate, &requestPayload) {
		return
	}

	updated, err := h.service.UpdateReview(r.Context(), reviewID, actorOf(me), review.UpdateInput{
		Rating:  requestPayload.Rating,
		Content: requestPayload.Content,
	})
	if err != nil {
		respondWithServiceError(w, err, "Failed to update review")
		return
	}

	respondWithJSON(w, http.StatusOK, updated)
}

func (h *ReviewHandler) handleDeleteReview(w http.ResponseWriter, r *http.Request) {
	me, ok := caller(w, r)
	if !ok {
		return
	}
	reviewID, ok := urlUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteReview(r.Context(), reviewID, actorOf(me)); err != nil {
		respondWithServiceError(w, err, "Failed to delete review")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func reviewQueryOptions(r *http.Request) (review.QueryOptions, error) {
	page, err := parsePage(r)
	if err != nil {
		return review.QueryOptions{}, err
	}

	opts := review.QueryOptions{Offset: page.Offset, Limit: page.Limit, SortDesc: page.SortDesc}
	q := r.URL.Query()
	if raw := q.Get("rating"); raw != "" {
		rating, err := strconv.Atoi(raw)
		if err != nil {
			return review.QueryOptions{}, apperr.Invalid("query", "rating", "rating must be an integer")
		}
		opts.Rating = &rating
	}
	if raw := q.Get("has_content"); raw != "" {
		hasContent, err := strconv.ParseBool(raw)
		if err != nil {
			return review.QueryOptions{}, apperr.Invalid("query", "has_content", "has_content must be true or false")
		}
		opts.HasContent = &hasContent
	}
	if raw := q.Get("sort_by"); raw != "" {
		sortBy, err := review.ParseSortField(raw)
		if err != nil {
			return review.QueryOptions{}, err
		}
		opts.SortBy = sortBy
	}
	return opts, nil
}

func actorOf(u *user.User) review.Actor {
	return review.Actor{UserID: u.ID, Admin: u.IsAdmin()}
}
