package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup/internal/auth"
)

func (h *Handlers) listGuestApprovals(c *gin.Context) {
	claims := auth.FromContext(c)
	approvals, err := h.Pickup.PendingApprovalsFor(c.Request.Context(), claims.Subject)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"approvals": approvals})
}

func (h *Handlers) decideGuestApproval(c *gin.Context) {
	var body struct {
		Decision string `json:"decision" binding:"required,oneof=approved rejected"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := auth.FromContext(c)
	approval, err := h.Pickup.ApproveGuest(c.Request.Context(), c.Param("id"), claims.Subject, body.Decision == "approved")
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, approval)
}
