package handlers

import (
	"context"
	"net/http"

	"github.com/wolfman30/storage-assistant/internal/records"
	"github.com/wolfman30/storage-assistant/pkg/logging"
)

// FAQCacheInvalidator drops cached FAQs so the next read hits the store.
type FAQCacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// AdminFAQHandler shows the FAQs fed to the assistant.
type AdminFAQHandler struct {
	faqs   records.FAQSource
	cache  FAQCacheInvalidator
	logger *logging.Logger
}

// NewAdminFAQHandler creates the handler; cache may be nil.
func NewAdminFAQHandler(faqs records.FAQSource, cache FAQCacheInvalidator, logger *logging.Logger) *AdminFAQHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminFAQHandler{faqs: faqs, cache: cache, logger: logger}
}

// ListFAQs returns the FAQs exactly as the assistant sees them.
func (h *AdminFAQHandler) ListFAQs(w http.ResponseWriter, r *http.Request) {
	faqs, err := h.faqs.ListFAQs(r.Context())
	if err != nil {
		h.logger.Error("admin: list faqs failed", "error", err)
		writeError(w, http.StatusBadGateway, "record store unavailable")
		return
	}
	if faqs == nil {
		faqs = []records.FAQ{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"faqs": faqs, "total": len(faqs)})
}

// InvalidateCache forces the next FAQ read to go to the record store.
func (h *AdminFAQHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("admin: faq cache invalidation failed", "error", err)
		writeError(w, http.StatusBadGateway, "cache unavailable")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
