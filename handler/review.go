package handler

import (
	"net/http"

	"github.com/AnTengye/contractdesk/middleware"
	"github.com/AnTengye/contractdesk/model"
	"github.com/AnTengye/contractdesk/service"
	"github.com/gin-gonic/gin"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

// List returns reviews, filtered by ?status= when given
func (h *ReviewHandler) List(c *gin.Context) {
	var status model.ReviewStatus
	if raw := c.Query("status"); raw != "" {
		st, err := model.ParseReviewStatus(raw)
		if err != nil {
			respondError(c, err)
			return
		}
		status = st
	}

	reviews, err := h.reviews.List(c.Request.Context(), status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reviews": reviews})
}

func (h *ReviewHandler) Get(c *gin.Context) {
	review, err := h.reviews.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}

// Complete approves or rejects a pending review
func (h *ReviewHandler) Complete(c *gin.Context) {
	var d service.ReviewDecision
	if err := c.ShouldBindJSON(&d); err != nil {
		badRequest(c, "Invalid request body")
		return
	}

	review, err := h.reviews.Complete(c.Request.Context(), middleware.GetSession(c), c.Param("id"), d)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, review)
}
