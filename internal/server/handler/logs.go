package handler

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/garrettladley/adega/internal/service/webhook"
	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/xerrors"
	"github.com/garrettladley/adega/internal/xhttp"
)

// Layouts accepted for startDate and endDate, most specific first.
var dateLayouts = []string{
	time.RFC3339Nano,
	webhook.TimestampLayout,
	time.DateOnly,
}

type Logs struct {
	service *webhook.LogService
}

func NewLogs(service *webhook.LogService) *Logs {
	return &Logs{service: service}
}

type pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

type logsResponse struct {
	Data       []storage.Attempt `json:"data"`
	Pagination pagination        `json:"pagination"`
}

// HandleList handles GET /webhooks/logs requests.
// Query params: page (default 1), pageSize (default 20, max 100), status,
// eventType, startDate, endDate.
func (h *Logs) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, fields := parseLogQuery(r.URL.Query())
	if len(fields) > 0 {
		xerrors.WriteError(ctx, w, xerrors.Validation(fields))
		return
	}

	page, err := h.service.List(ctx, q)
	if err != nil {
		xerrors.WriteError(ctx, w, err)
		return
	}

	data := page.Attempts
	if data == nil {
		data = []storage.Attempt{}
	}

	xhttp.WriteOK(w, logsResponse{
		Data: data,
		Pagination: pagination{
			Page:       page.Page,
			PageSize:   page.PageSize,
			Total:      page.Total,
			TotalPages: page.TotalPages(),
		},
	})
}

func parseLogQuery(values url.Values) (webhook.LogQuery, map[string]string) {
	fields := map[string]string{}
	q := webhook.LogQuery{
		Page:      1,
		PageSize:  webhook.DefaultPageSize,
		Status:    strings.TrimSpace(values.Get("status")),
		EventType: strings.TrimSpace(values.Get("eventType")),
	}

	if s := values.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fields["page"] = "must be an integer"
		}
		q.Page = n
	}
	if s := values.Get("pageSize"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			fields["pageSize"] = "must be an integer"
		}
		q.PageSize = n
	}

	if s := values.Get("startDate"); s != "" {
		t, _, ok := parseDate(s)
		if !ok {
			fields["startDate"] = "must be an RFC 3339 timestamp or a date"
		} else {
			q.StartDate = &t
		}
	}
	if s := values.Get("endDate"); s != "" {
		t, dateOnly, ok := parseDate(s)
		switch {
		case !ok:
			fields["endDate"] = "must be an RFC 3339 timestamp or a date"
		case dateOnly:
			// a bare date covers the whole day
			end := t.Add(24*time.Hour - time.Nanosecond)
			q.EndDate = &end
		default:
			q.EndDate = &t
		}
	}

	return q, fields
}

func parseDate(s string) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		parsed, err := time.ParseInLocation(layout, s, time.UTC)
		if err == nil {
			return parsed.UTC(), layout == time.DateOnly, true
		}
	}
	return time.Time{}, false, false
}
