package handlers

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/users"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/internal/webhook"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/logger"
	"github.com/nimbusnotes/nimbusnotes/backend/identity/pkg/metrics"
)

// WebhookHandler receives IdP lifecycle events and reconciles the user store.
// Deliveries are at-least-once and unordered; all dispatch paths are
// idempotent per external id, so the handler keeps no delivery state.
type WebhookHandler struct {
	svc *users.Service
	// sig is nil when no signing secret is configured. That disables
	// authenticity checks on deliveries and is logged at startup.
	sig *webhook.SignatureVerifier
	// timeout bounds the store work for one delivery; a stalled store turns
	// into an acknowledged error instead of holding the request open.
	timeout time.Duration
}

const defaultWebhookTimeout = 10 * time.Second

func NewWebhookHandler(svc *users.Service, sig *webhook.SignatureVerifier, timeout time.Duration) *WebhookHandler {
	if timeout <= 0 {
		timeout = defaultWebhookTimeout
	}
	return &WebhookHandler{svc: svc, sig: sig, timeout: timeout}
}

// Register routes under /webhooks
func (h *WebhookHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/webhooks/idp", h.Handle)
}

// Handle processes one delivery. Failures before dispatch (bad signature,
// unreadable payload) are client errors; failures after dispatch are logged
// and still acknowledged, so a permanently failing record cannot drive the
// provider into a retry storm.
func (h *WebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if h.sig != nil {
		err := h.sig.Verify(
			c.GetHeader(webhook.HeaderID),
			c.GetHeader(webhook.HeaderTimestamp),
			c.GetHeader(webhook.HeaderSignature),
			body,
		)
		if err != nil {
			logger.Warnf("webhook signature verification failed: %v", err)
			metrics.WebhookSignatureFailures.Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid signature"})
			return
		}
	}

	evt, err := webhook.ParseEvent(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if evt.Data.ID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing subject id"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()
	switch evt.Type {
	case webhook.EventUserCreated, webhook.EventUserUpdated:
		p := users.Profile{
			ExternalID: evt.Data.ID,
			Email:      evt.Data.PrimaryEmail(),
			Username:   evt.Data.Username,
			FirstName:  evt.Data.FirstName,
			LastName:   evt.Data.LastName,
		}
		u, created, err := h.svc.SyncProfile(ctx, p)
		switch {
		case err != nil:
			logger.Errorf("webhook %s failed for externalId=%s: %v", evt.Type, evt.Data.ID, err)
			metrics.WebhookEvents.WithLabelValues(evt.Type, "error").Inc()
		case created:
			logger.Infof("webhook created user id=%d for externalId=%s", u.ID, evt.Data.ID)
			metrics.WebhookEvents.WithLabelValues(evt.Type, "created").Inc()
			metrics.UsersProvisioned.WithLabelValues("webhook").Inc()
		default:
			logger.Infof("webhook updated user id=%d for externalId=%s", u.ID, evt.Data.ID)
			metrics.WebhookEvents.WithLabelValues(evt.Type, "updated").Inc()
		}

	case webhook.EventUserDeleted:
		deleted, err := h.svc.DeleteByExternalID(ctx, evt.Data.ID)
		switch {
		case err != nil:
			logger.Errorf("webhook %s failed for externalId=%s: %v", evt.Type, evt.Data.ID, err)
			metrics.WebhookEvents.WithLabelValues(evt.Type, "error").Inc()
		case deleted:
			logger.Infof("webhook deleted user for externalId=%s", evt.Data.ID)
			metrics.WebhookEvents.WithLabelValues(evt.Type, "deleted").Inc()
		default:
			metrics.WebhookEvents.WithLabelValues(evt.Type, "noop").Inc()
		}

	default:
		metrics.WebhookEvents.WithLabelValues(evt.Type, "ignored").Inc()
	}

	// Always acknowledge once dispatch ran, including no-ops and store
	// failures: the provider's retry policy must not outlive a logically
	// handled event.
	c.JSON(http.StatusOK, gin.H{"received": true})
}
