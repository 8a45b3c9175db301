package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup/internal/auth"
)

// Coordinates bind through pointers: 0 is a legitimate latitude or
// longitude, a plain float64 with required would reject it.
type verifyQRBody struct {
	Token string   `json:"token" binding:"required"`
	Lat   *float64 `json:"lat" binding:"required"`
	Lng   *float64 `json:"lng" binding:"required"`
}

func (h *Handlers) verifyQR(c *gin.Context) {
	var body verifyQRBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.Pickup.VerifyToken(c.Request.Context(), body.Token, *body.Lat, *body.Lng)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type verifyStudentBody struct {
	StudentID string   `json:"student_id" binding:"required"`
	Lat       *float64 `json:"lat" binding:"required"`
	Lng       *float64 `json:"lng" binding:"required"`
}

func (h *Handlers) verifyStudent(c *gin.Context) {
	var body verifyStudentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.Pickup.VerifyStudent(c.Request.Context(), body.StudentID, *body.Lat, *body.Lng)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type completeBody struct {
	Lat            *float64   `json:"lat" binding:"required"`
	Lng            *float64   `json:"lng" binding:"required"`
	PickupPersonID string     `json:"pickup_person_id"`
	ActualPickupAt *time.Time `json:"actual_pickup_at"`
}

func (h *Handlers) complete(c *gin.Context) {
	var body completeBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	at := time.Time{}
	if body.ActualPickupAt != nil {
		at = *body.ActualPickupAt
	}
	claims := auth.FromContext(c)
	req, err := h.Pickup.Complete(c.Request.Context(), c.Param("id"), claims.Subject, at, body.PickupPersonID, *body.Lat, *body.Lng)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}
