package httpapi

import (
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"pickup/internal/auth"
	"pickup/internal/config"
	"pickup/internal/guardian"
	"pickup/internal/pickup"
	"pickup/internal/roster"
)

// Handlers exposes the REST surface over the domain services.
type Handlers struct {
	Cfg       config.App
	Pickup    *pickup.Service
	Guardians *guardian.Service
	Roster    *roster.Repository

	validate *validator.Validate
}

// New creates handlers.
func New(cfg config.App, pickupSvc *pickup.Service, guardians *guardian.Service, rosterRepo *roster.Repository) *Handlers {
	return &Handlers{
		Cfg:       cfg,
		Pickup:    pickupSvc,
		Guardians: guardians,
		Roster:    rosterRepo,
		validate:  validator.New(),
	}
}

// Register mounts all routes on the engine.
func (h *Handlers) Register(r *gin.Engine) {
	r.POST("/v1/auth/login", h.login)

	v1 := r.Group("/v1", auth.Bearer(h.Cfg.JWTSigningKey, h.Cfg.JWTIssuer))

	v1.POST("/pickup/request", auth.RequireRoles(auth.RoleParent), h.createRequest)
	v1.GET("/pickup/requests", h.listRequests)
	v1.GET("/pickup/pending", auth.RequireRoles(auth.RoleTeacher, auth.RoleAdmin), h.listPending)
	v1.GET("/pickup/history", h.listHistory)
	v1.GET("/pickup/:id", h.getRequest)
	v1.GET("/pickup/:id/qrcode", h.qrCode)
	v1.PATCH("/pickup/:id/approve", auth.RequireRoles(auth.RoleTeacher, auth.RoleAdmin), h.approve)
	v1.PATCH("/pickup/:id/reject", auth.RequireRoles(auth.RoleTeacher, auth.RoleAdmin), h.reject)
	v1.PATCH("/pickup/:id/cancel", h.cancel)
	v1.PATCH("/pickup/:id/complete", auth.RequireRoles(auth.RoleGuard, auth.RoleAdmin), h.complete)
	v1.POST("/pickup/verify-qr", auth.RequireRoles(auth.RoleGuard, auth.RoleAdmin), h.verifyQR)

	v1.POST("/guards/verify-qr", auth.RequireRoles(auth.RoleGuard, auth.RoleAdmin), h.verifyQR)
	v1.POST("/guards/verify-student", auth.RequireRoles(auth.RoleGuard, auth.RoleAdmin), h.verifyStudent)
	v1.POST("/guards/complete/:id", auth.RequireRoles(auth.RoleGuard, auth.RoleAdmin), h.complete)

	v1.GET("/guest-approvals", auth.RequireRoles(auth.RoleParent), h.listGuestApprovals)
	v1.PATCH("/guest-approvals/:id", auth.RequireRoles(auth.RoleParent), h.decideGuestApproval)

	v1.GET("/students/:id/guardians", auth.RequireRoles(auth.RoleTeacher, auth.RoleAdmin), h.listGuardians)
	v1.POST("/students/:id/guardians", auth.RequireRoles(auth.RoleParent, auth.RoleAdmin), h.addGuardian)
	v1.DELETE("/students/:id/guardians/:guardianID", auth.RequireRoles(auth.RoleAdmin), h.revokeGuardian)
	v1.PATCH("/students/:id/guardians/:guardianID/authorized-pickup", auth.RequireRoles(auth.RoleAdmin), h.setAuthorizedPickup)

	v1.GET("/students", auth.RequireRoles(auth.RoleTeacher, auth.RoleGuard, auth.RoleAdmin), h.listStudents)
	v1.POST("/students", auth.RequireRoles(auth.RoleAdmin), h.createStudent)
	v1.GET("/students/:id", h.getStudent)
	v1.DELETE("/students/:id", auth.RequireRoles(auth.RoleAdmin), h.deactivateStudent)
	v1.GET("/classes", auth.RequireRoles(auth.RoleTeacher, auth.RoleAdmin), h.listClasses)
	v1.POST("/classes", auth.RequireRoles(auth.RoleAdmin), h.createClass)
}
