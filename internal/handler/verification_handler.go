package handler

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"jikonnect/internal/domain"
	"jikonnect/internal/middleware"
	"jikonnect/internal/models"
	"jikonnect/internal/repository"
	"jikonnect/pkg/cloudinary"

	"github.com/gin-gonic/gin"
)

const maxDocumentBytes = 10 << 20

type VerificationHandler struct {
	cloud            cloudinary.Client
	verificationRepo *repository.VerificationRepository
	userRepo         *repository.UserRepository
	auditRepo        *repository.AuditLogRepository
}

func NewVerificationHandler(
	cloud cloudinary.Client,
	verificationRepo *repository.VerificationRepository,
	userRepo *repository.UserRepository,
	auditRepo *repository.AuditLogRepository,
) *VerificationHandler {
	return &VerificationHandler{
		cloud:            cloud,
		verificationRepo: verificationRepo,
		userRepo:         userRepo,
		auditRepo:        auditRepo,
	}
}

// Submit takes a multipart "document" upload from a provider and queues it
// for admin review.
func (h *VerificationHandler) Submit(c *gin.Context) {
	providerID := middleware.GetUserID(c)
	fileHeader, err := c.FormFile("document")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document file is required"})
		return
	}
	if fileHeader.Size > maxDocumentBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "document exceeds 10MB"})
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "document unreadable"})
		return
	}
	defer file.Close()

	publicID := fmt.Sprintf("provider_%d_%d", providerID, time.Now().Unix())
	url, err := h.cloud.UploadDocument(c.Request.Context(), file, "jikonnect/verifications", publicID)
	if err != nil {
		log.Printf("[Verification] upload failed provider=%d: %v", providerID, err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "document upload failed"})
		return
	}
	v := &models.Verification{
		ProviderID:  providerID,
		DocumentURL: url,
		Status:      domain.VerificationStatusPending,
	}
	if err := h.verificationRepo.Create(v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "verification create failed"})
		return
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &providerID,
		Action:     "verification_submitted",
		Resource:   "verification",
		ResourceID: strconv.FormatUint(uint64(v.ID), 10),
		IP:         c.ClientIP(),
	})
	c.JSON(http.StatusCreated, v)
}

// Mine returns the calling provider's latest submission.
func (h *VerificationHandler) Mine(c *gin.Context) {
	v, err := h.verificationRepo.LatestByProvider(middleware.GetUserID(c))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no verification submitted"})
		return
	}
	c.JSON(http.StatusOK, v)
}

// ListPending is the admin review queue, oldest first.
func (h *VerificationHandler) ListPending(c *gin.Context) {
	out, err := h.verificationRepo.ListPending()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"verifications": out})
}

type ReviewVerificationRequest struct {
	Approve bool   `json:"approve"`
	Notes   string `json:"notes" binding:"max=255"`
}

// Review approves or rejects a pending submission. Approval flips the
// provider's Verified flag, which gates booking creation against them.
func (h *VerificationHandler) Review(c *gin.Context) {
	adminID := middleware.GetUserID(c)
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid verification id"})
		return
	}
	var req ReviewVerificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	v, err := h.verificationRepo.GetByID(uint(id))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "verification not found"})
		return
	}
	if v.Status != domain.VerificationStatusPending {
		c.JSON(http.StatusConflict, gin.H{"error": "verification already reviewed"})
		return
	}
	now := time.Now()
	v.Notes = req.Notes
	v.ReviewedBy = &adminID
	v.ReviewedAt = &now
	if req.Approve {
		v.Status = domain.VerificationStatusApproved
	} else {
		v.Status = domain.VerificationStatusRejected
	}
	if err := h.verificationRepo.Update(v); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "update failed"})
		return
	}
	if req.Approve {
		provider, err := h.userRepo.GetByID(v.ProviderID)
		if err == nil {
			provider.Verified = true
			if err := h.userRepo.Update(provider); err != nil {
				log.Printf("[Verification] verified flag update failed provider=%d: %v", v.ProviderID, err)
			}
		}
	}
	_ = h.auditRepo.Create(&models.AuditLog{
		UserID:     &adminID,
		Action:     "verification_reviewed",
		Resource:   "verification",
		ResourceID: strconv.FormatUint(uint64(v.ID), 10),
		Metadata:   v.Status,
		IP:         c.ClientIP(),
	})
	c.JSON(http.StatusOK, v)
}
