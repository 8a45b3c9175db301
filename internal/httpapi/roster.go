package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup/internal/roster"
)

func (h *Handlers) listStudents(c *gin.Context) {
	students, err := h.Roster.ListStudents(c.Request.Context(), c.Query("class_id"), intQuery(c, "limit", 50), intQuery(c, "offset", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

type createStudentBody struct {
	Code      string     `json:"code" binding:"required"`
	Name      string     `json:"name" binding:"required"`
	BirthDate *time.Time `json:"birth_date"`
	ClassID   *string    `json:"class_id"`
}

func (h *Handlers) createStudent(c *gin.Context) {
	var body createStudentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st, err := h.Roster.CreateStudent(c.Request.Context(), roster.Student{
		Code:      body.Code,
		Name:      body.Name,
		BirthDate: body.BirthDate,
		ClassID:   body.ClassID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (h *Handlers) getStudent(c *gin.Context) {
	st, err := h.Roster.GetStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handlers) deactivateStudent(c *gin.Context) {
	if err := h.Roster.DeactivateStudent(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) listClasses(c *gin.Context) {
	classes, err := h.Roster.ListClasses(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"classes": classes})
}

type createClassBody struct {
	Name      string  `json:"name" binding:"required"`
	TeacherID *string `json:"teacher_id"`
}

func (h *Handlers) createClass(c *gin.Context) {
	var body createClassBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cl, err := h.Roster.CreateClass(c.Request.Context(), roster.Class{
		Name:      body.Name,
		TeacherID: body.TeacherID,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cl)
}
