package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pickup/internal/auth"
	"pickup/internal/guardian"
)

func (h *Handlers) listGuardians(c *gin.Context) {
	links, err := h.Guardians.ListForStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guardians": links})
}

type addGuardianBody struct {
	GuardianID         string `json:"guardian_id" binding:"required"`
	Relationship       string `json:"relationship" binding:"required"`
	IsPrimary          bool   `json:"is_primary"`
	IsAuthorizedPickup bool   `json:"is_authorized_pickup"`
}

func (h *Handlers) addGuardian(c *gin.Context) {
	var body addGuardianBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := auth.FromContext(c)
	// Parent self-service may only link their own account; the pickup flag
	// stays an admin decision.
	if claims.Role == auth.RoleParent {
		if body.GuardianID != claims.Subject {
			c.JSON(http.StatusForbidden, gin.H{"error": "parents may only link themselves"})
			return
		}
		body.IsAuthorizedPickup = false
	}
	err := h.Guardians.Add(c.Request.Context(), claims.Subject, guardian.Link{
		StudentID:          c.Param("id"),
		GuardianID:         body.GuardianID,
		Relationship:       body.Relationship,
		IsPrimary:          body.IsPrimary,
		IsAuthorizedPickup: body.IsAuthorizedPickup,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

func (h *Handlers) revokeGuardian(c *gin.Context) {
	claims := auth.FromContext(c)
	if err := h.Guardians.Revoke(c.Request.Context(), claims.Subject, c.Param("id"), c.Param("guardianID")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) setAuthorizedPickup(c *gin.Context) {
	var body struct {
		Authorized *bool `json:"authorized" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	claims := auth.FromContext(c)
	if err := h.Guardians.SetAuthorizedPickup(c.Request.Context(), claims.Subject, c.Param("id"), c.Param("guardianID"), *body.Authorized); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
