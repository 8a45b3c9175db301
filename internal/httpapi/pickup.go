package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pickup/internal/auth"
	"pickup/internal/pickup"
	"pickup/internal/qrtoken"
)

type guestInfoRequest struct {
	Name     string `json:"name" validate:"required"`
	Phone    string `json:"phone" validate:"required,min=6"`
	IDNumber string `json:"id_number" validate:"required"`
	PhotoURL string `json:"photo_url" validate:"omitempty,url"`
}

type createRequestBody struct {
	StudentID   string            `json:"student_id" binding:"required"`
	RequestType string            `json:"request_type" binding:"required"`
	ScheduledAt time.Time         `json:"scheduled_at" binding:"required"`
	Lat         *float64          `json:"lat"`
	Lng         *float64          `json:"lng"`
	Guest       *guestInfoRequest `json:"guest"`
}

func (h *Handlers) createRequest(c *gin.Context) {
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var guest *pickup.GuestInfo
	if body.Guest != nil {
		if err := h.validate.Struct(body.Guest); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		guest = &pickup.GuestInfo{
			Name:     body.Guest.Name,
			Phone:    body.Guest.Phone,
			IDNumber: body.Guest.IDNumber,
			PhotoURL: body.Guest.PhotoURL,
		}
	}

	claims := auth.FromContext(c)
	req, err := h.Pickup.Create(c.Request.Context(), pickup.CreateInput{
		StudentID:   body.StudentID,
		RequesterID: claims.Subject,
		Type:        pickup.RequestType(body.RequestType),
		ScheduledAt: body.ScheduledAt,
		Lat:         body.Lat,
		Lng:         body.Lng,
		Guest:       guest,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, req)
}

func (h *Handlers) listRequests(c *gin.Context) {
	claims := auth.FromContext(c)
	f := pickup.Filter{
		StudentID: c.Query("student_id"),
		Status:    pickup.Status(c.Query("status")),
		Limit:     intQuery(c, "limit", 50),
		Offset:    intQuery(c, "offset", 0),
	}
	// Parents only ever see their own requests.
	if claims.Role == auth.RoleParent {
		f.RequesterID = claims.Subject
	}
	reqs, err := h.Pickup.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handlers) listPending(c *gin.Context) {
	reqs, err := h.Pickup.List(c.Request.Context(), pickup.Filter{
		Status: pickup.StatusPending,
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handlers) listHistory(c *gin.Context) {
	claims := auth.FromContext(c)
	f := pickup.Filter{
		Status: pickup.StatusCompleted,
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if claims.Role == auth.RoleParent {
		f.RequesterID = claims.Subject
	}
	reqs, err := h.Pickup.List(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": reqs})
}

func (h *Handlers) getRequest(c *gin.Context) {
	claims := auth.FromContext(c)
	isStaff := claims.IsStaff() || claims.Role == auth.RoleGuard
	req, err := h.Pickup.Get(c.Request.Context(), c.Param("id"), claims.Subject, isStaff)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handlers) qrCode(c *gin.Context) {
	claims := auth.FromContext(c)
	isStaff := claims.IsStaff() || claims.Role == auth.RoleGuard
	token, err := h.Pickup.TokenFor(c.Request.Context(), c.Param("id"), claims.Subject, isStaff)
	if err != nil {
		respondError(c, err)
		return
	}
	png, err := qrtoken.RenderPNG(token, intQuery(c, "size", 256))
	if err != nil {
		respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

func (h *Handlers) approve(c *gin.Context) {
	claims := auth.FromContext(c)
	req, err := h.Pickup.Approve(c.Request.Context(), c.Param("id"), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handlers) reject(c *gin.Context) {
	var body struct {
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := auth.FromContext(c)
	req, err := h.Pickup.Reject(c.Request.Context(), c.Param("id"), claims.Subject, body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func (h *Handlers) cancel(c *gin.Context) {
	var body struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&body)
	claims := auth.FromContext(c)
	req, err := h.Pickup.Cancel(c.Request.Context(), c.Param("id"), claims.Subject, claims.IsStaff(), body.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, req)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	if v := c.Query(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}
