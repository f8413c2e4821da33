package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"ghl-extractor-backend/internal/extraction"
	"ghl-extractor-backend/internal/models"
	"ghl-extractor-backend/internal/respond"

	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// extractionTimeout bounds a background extraction started by a webhook.
const extractionTimeout = 2 * time.Minute

// Store is the persistence the webhook needs.
type Store interface {
	InsertMessage(ctx context.Context, m models.ConversationMessage) (string, bool, error)
	LocationSettings(ctx context.Context, locationID string) (ownerID string, autoExtract, found bool, err error)
	ListActiveStopTriggers(ctx context.Context, locationID string) ([]models.StopTrigger, error)
	MarkConversation(ctx context.Context, locationID, conversationID string, stopped bool) error
}

// Extractor runs an extraction for a stored conversation.
type Extractor interface {
	Extract(ctx context.Context, req extraction.Request) (*extraction.Result, error)
}

// Handler receives GHL conversation webhooks.
type Handler struct {
	store     Store
	extractor Extractor
	log       *zap.Logger
	now       func() time.Time
	wg        sync.WaitGroup
}

// NewHandler creates a webhook handler. extractor may be nil to only log messages.
func NewHandler(store Store, extractor Extractor, log *zap.Logger) *Handler {
	return &Handler{store: store, extractor: extractor, log: log, now: time.Now}
}

// Response is the acknowledgement sent back to GHL.
type Response struct {
	Success          bool   `json:"success"`
	Ignored          bool   `json:"ignored,omitempty"`
	Duplicate        bool   `json:"duplicate,omitempty"`
	ID               string `json:"id,omitempty"`
	Stopped          bool   `json:"stopped,omitempty"`
	ExtractionQueued bool   `json:"extractionQueued"`
}

// Handle processes POST /webhooks/ghl.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respond.Error(w, http.StatusBadRequest, "Failed to read body", err.Error())
		return
	}

	msg, err := Parse(raw, h.now())
	if err != nil {
		h.log.Warn("rejected webhook", zap.Error(err))
		respond.Error(w, http.StatusBadRequest, "Invalid payload", err.Error())
		return
	}
	if msg == nil {
		respond.OK(w, Response{Success: true, Ignored: true})
		return
	}

	ctx := r.Context()
	id, inserted, err := h.store.InsertMessage(ctx, msg.Row())
	if err != nil {
		h.log.Error("store webhook failed", zap.String("location_id", msg.LocationID), zap.Error(err))
		respond.Error(w, http.StatusInternalServerError, "Failed to store message", "")
		return
	}
	if !inserted {
		respond.OK(w, Response{Success: true, Duplicate: true})
		return
	}

	res := Response{Success: true, ID: id}
	log := h.log.With(
		zap.String("location_id", msg.LocationID),
		zap.String("conversation_id", msg.ConversationID),
		zap.String("message_id", msg.MessageID))

	if msg.Direction != models.DirectionInbound || msg.Body == "" {
		respond.OK(w, res)
		return
	}

	triggers, err := h.store.ListActiveStopTriggers(ctx, msg.LocationID)
	if err != nil {
		log.Error("load stop triggers failed", zap.Error(err))
	}
	if trig, ok := extraction.MatchStopTrigger(triggers, msg.Body); ok {
		if err := h.store.MarkConversation(ctx, msg.LocationID, msg.ConversationID, true); err != nil {
			log.Error("mark conversation stopped failed", zap.Error(err))
		}
		log.Info("stop trigger matched", zap.String("trigger", trig.TriggerPhrase))
		res.Stopped = true
		respond.OK(w, res)
		return
	}

	if h.extractor != nil {
		owner, auto, found, err := h.store.LocationSettings(ctx, msg.LocationID)
		switch {
		case err != nil:
			log.Error("load location settings failed", zap.Error(err))
		case found && auto:
			h.dispatch(context.WithoutCancel(ctx), extraction.Request{
				LocationID:     msg.LocationID,
				ContactID:      msg.ContactID,
				ConversationID: msg.ConversationID,
				UserID:         owner,
			}, log)
			res.ExtractionQueued = true
		}
	}

	respond.OK(w, res)
}

func (h *Handler) dispatch(ctx context.Context, req extraction.Request, log *zap.Logger) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, extractionTimeout)
		defer cancel()

		res, err := h.extractor.Extract(ctx, req)
		switch {
		case errors.Is(err, extraction.ErrNotLicensed), errors.Is(err, extraction.ErrQuotaExceeded), errors.Is(err, extraction.ErrNoFields):
			log.Info("auto extraction not run", zap.Error(err))
		case err != nil:
			log.Error("auto extraction failed", zap.Error(err))
		case res.Skipped:
			log.Info("auto extraction skipped", zap.String("reason", res.SkipReason))
		default:
			log.Info("auto extraction done", zap.Int("updated", len(res.Updated)))
		}
	}()
}

// Wait blocks until background extractions started by this handler finish.
func (h *Handler) Wait() {
	h.wg.Wait()
}
