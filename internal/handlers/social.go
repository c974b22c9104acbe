package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/akozhevin/campuslink/internal/apperrors"
	"github.com/akozhevin/campuslink/internal/handlers/render"
	"github.com/akozhevin/campuslink/internal/handlers/userctx"
	"github.com/akozhevin/campuslink/internal/logger"
)

func handleLike(social socialService, l logger.Logger) http.Handler {
	return handleRelationshipAction(social.Like, "like", l)
}

func handleDislike(social socialService, l logger.Logger) http.Handler {
	return handleRelationshipAction(social.Dislike, "dislike", l)
}

func handleBlock(social socialService, l logger.Logger) http.Handler {
	return handleRelationshipAction(social.Block, "block", l)
}

// handleRelationshipAction covers the mutations that only name the other
// user: like, dislike and block.
func handleRelationshipAction(
	action func(ctx context.Context, userID uuid.UUID, otherUserID uuid.UUID) error,
	actionName string,
	l logger.Logger,
) http.Handler {
	type request struct {
		OtherUserID uuid.UUID `json:"other_user_id" validate:"required"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		if data.OtherUserID == userID {
			render.ServiceError(w, "Cannot "+actionName+" yourself", http.StatusUnprocessableEntity)
			return
		}

		err = action(r.Context(), userID, data.OtherUserID)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Relationship updated"})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusNotFound)
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to update relationship", "action", actionName, "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRate(social socialService, l logger.Logger) http.Handler {
	type request struct {
		OtherUserID uuid.UUID `json:"other_user_id" validate:"required"`
		Rating      int       `json:"rating" validate:"min=1,max=5"`
	}
	type response struct {
		Message string `json:"message"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		err = social.Rate(r.Context(), userID, data.OtherUserID, data.Rating)

		switch {
		case err == nil:
			render.JSON(w, response{Message: "Rating saved"})
		case errors.Is(err, apperrors.ErrNotFriends):
			render.ServiceError(w, "Only friends can be rated", http.StatusUnprocessableEntity)
		case errors.Is(err, apperrors.ErrConflict):
			render.ServiceError(w, "Too many concurrent requests, retry later", http.StatusConflict)
		default:
			l.Error("Failed to rate user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleGetRelationship(social socialService, l logger.Logger) http.Handler {
	type response struct {
		OtherUserID string `json:"other_user_id"`
		Status      string `json:"status"`
		Rating      *int   `json:"rating,omitempty"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		otherID, err := uuid.Parse(r.PathValue("otherUserID"))
		if err != nil {
			render.ServiceError(w, "Invalid user id", http.StatusBadRequest)
			return
		}

		rel, err := social.Get(r.Context(), userID, otherID)

		switch {
		case err == nil:
			render.JSON(w, response{
				OtherUserID: rel.OtherUserID.String(),
				Status:      rel.Status,
				Rating:      rel.Rating,
			})
		case errors.Is(err, apperrors.ErrRelationshipNotFound):
			render.ServiceError(w, "Relationship not found", http.StatusNotFound)
		default:
			l.Error("Failed to get relationship", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
