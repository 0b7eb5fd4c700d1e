package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/garrettladley/adega/internal/bling"
	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/xhttp"
	"github.com/garrettladley/adega/internal/xslog"
)

const (
	maxWebhookBody = 1 << 20
	serviceName    = "bling-webhook"
)

type Webhook struct {
	service    webhook.Service
	configured bool
	checker    bling.TokenChecker
	now        func() time.Time
}

// NewWebhook wires the delivery endpoint. checker may be nil when no ERP
// credential is configured.
func NewWebhook(service webhook.Service, configured bool, checker bling.TokenChecker) *Webhook {
	return &Webhook{
		service:    service,
		configured: configured,
		checker:    checker,
		now:        time.Now,
	}
}

type deliveryResponse struct {
	Success        bool   `json:"success,omitempty"`
	ResourceID     string `json:"resourceId,omitempty"`
	Duplicate      bool   `json:"duplicate,omitempty"`
	Note           string `json:"note,omitempty"`
	Error          string `json:"error,omitempty"`
	ProcessingTime int64  `json:"processingTime"`
}

// HandleWebhook handles POST /webhooks/bling requests.
func (h *Webhook) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	req := webhook.Request{
		Body:         body,
		Signature:    xhttp.GetRequestHeaderSignature(r),
		SourceIP:     xhttp.GetRequestIP(r),
		RetryAttempt: xhttp.GetRequestHeaderRetryAttempt(r),
	}
	if err != nil {
		status, msg := http.StatusBadRequest, webhook.MsgUnreadable
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status, msg = http.StatusRequestEntityTooLarge, webhook.MsgTooLarge
		}
		writeDelivery(w, h.service.Reject(ctx, req, status, msg, err))
		return
	}

	writeDelivery(w, h.service.Process(ctx, req))
}

func writeDelivery(w http.ResponseWriter, res webhook.Result) {
	resp := deliveryResponse{ProcessingTime: res.ProcessingMS()}
	if res.Success {
		resp.Success = true
		resp.ResourceID = res.ResourceID
		resp.Duplicate = res.Duplicate
		resp.Note = res.Note
	} else {
		resp.Error = res.ErrorMessage
	}

	xhttp.WriteJSON(w, res.StatusCode, resp)
}

type webhookHealthResponse struct {
	Status        string    `json:"status"`
	Service       string    `json:"service"`
	Timestamp     time.Time `json:"timestamp"`
	Configured    bool      `json:"configured"`
	ERPAuthorized *bool     `json:"erpAuthorized,omitempty"`
}

// HandleHealth handles GET /webhooks/bling requests.
func (h *Webhook) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := webhookHealthResponse{
		Status:     "healthy",
		Service:    serviceName,
		Timestamp:  h.now().UTC(),
		Configured: h.configured,
	}

	if h.checker != nil {
		authorized, err := h.checker.HasToken(ctx)
		if err != nil {
			xslog.FromContext(ctx).WarnContext(ctx, "failed to check ERP token", xslog.Error(err))
		}
		resp.ERPAuthorized = &authorized
	}

	xhttp.WriteOK(w, resp)
}
