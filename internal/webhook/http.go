// internal/webhook/http.go

package webhook

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/twilio/twilio-go/client"
	"go.uber.org/zap"

	"github.com/imadgeboyega/gratitude-backend/internal/common/utils"
)

// SignatureHeader carries the gateway's HMAC of the request
const SignatureHeader = "X-Twilio-Signature"

// HTTPOptions configures the webhook endpoint
type HTTPOptions struct {
	// AuthToken enables signature validation when non-empty
	AuthToken string
	// PublicBaseURL is the externally visible scheme://host used when signing
	PublicBaseURL string
	// Dedup is optional
	Dedup Deduper
}

// HTTPHandler exposes Handler over the gateway's form-encoded webhook
type HTTPHandler struct {
	handler   *Handler
	validator *client.RequestValidator
	baseURL   string
	dedup     Deduper
	log       *zap.Logger
}

// NewHTTPHandler creates the webhook endpoint
func NewHTTPHandler(handler *Handler, opts HTTPOptions, log *zap.Logger) *HTTPHandler {
	h := &HTTPHandler{
		handler: handler,
		baseURL: strings.TrimRight(opts.PublicBaseURL, "/"),
		dedup:   opts.Dedup,
		log:     log,
	}
	if opts.AuthToken != "" {
		v := client.NewRequestValidator(opts.AuthToken)
		h.validator = &v
	}
	return h
}

// RegisterRoutes registers the webhook route with the router
func (h *HTTPHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/sms", h.ReceiveSMS).Methods("POST")
}

// ReceiveSMS handles one inbound message. Recognized input gets 204 with an
// empty body; the gateway then sends nothing back to the user.
func (h *HTTPHandler) ReceiveSMS(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		utils.ErrorResponse(w, "Invalid form body", http.StatusBadRequest)
		return
	}

	if h.validator != nil && !h.validSignature(r) {
		h.log.Warn("rejected webhook with bad signature", zap.String("remote", r.RemoteAddr))
		utils.ErrorResponse(w, "Invalid signature", http.StatusForbidden)
		return
	}

	from := strings.TrimSpace(r.PostForm.Get("From"))
	if from == "" || !utils.IsPhone(from) {
		utils.ErrorResponse(w, "From must be a phone number", http.StatusBadRequest)
		return
	}
	body := r.PostForm.Get("Body")
	sid := r.PostForm.Get("MessageSid")
	ctx := r.Context()

	if h.dedup != nil && sid != "" {
		first, err := h.dedup.Claim(ctx, sid)
		if err != nil {
			// Redis down: process anyway
			h.log.Warn("webhook dedup unavailable", zap.Error(err))
		} else if !first {
			inboundMessagesTotal.WithLabelValues(string(OutcomeDuplicate)).Inc()
			h.log.Debug("duplicate webhook delivery", zap.String("sid", sid))
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	outcome, err := h.handler.Handle(ctx, from, body)
	if err != nil {
		if h.dedup != nil && sid != "" {
			if rerr := h.dedup.Release(ctx, sid); rerr != nil {
				h.log.Warn("failed to release webhook dedup key", zap.String("sid", sid), zap.Error(rerr))
			}
		}
		h.log.Error("inbound message failed", zap.String("phone", from), zap.Error(err))
		utils.ErrorResponse(w, "Failed to process message", http.StatusInternalServerError)
		return
	}

	inboundMessagesTotal.WithLabelValues(string(outcome)).Inc()
	w.WriteHeader(http.StatusNoContent)
}

func (h *HTTPHandler) validSignature(r *http.Request) bool {
	sig := r.Header.Get(SignatureHeader)
	if sig == "" {
		return false
	}

	params := make(map[string]string, len(r.PostForm))
	for key, values := range r.PostForm {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return h.validator.Validate(h.requestURL(r), params, sig)
}

// requestURL rebuilds the URL the gateway signed
func (h *HTTPHandler) requestURL(r *http.Request) string {
	if h.baseURL != "" {
		return h.baseURL + r.URL.RequestURI()
	}
	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
