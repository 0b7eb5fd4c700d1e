package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/garrettladley/adega/internal/storage"
	"github.com/garrettladley/adega/internal/validator"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// LogQuery selects a page of processing attempts.
type LogQuery struct {
	Page      int        `query:"page" validate:"gte=1"`
	PageSize  int        `query:"pageSize" validate:"gte=1,lte=100"`
	Status    string     `query:"status" validate:"omitempty,oneof=success error"`
	EventType string     `query:"eventType" validate:"omitempty,max=64"`
	StartDate *time.Time `query:"startDate"`
	EndDate   *time.Time `query:"endDate"`
}

var _ validator.Validator = LogQuery{}

func (q LogQuery) Validate() map[string]string {
	fields := validator.StructFields(q)
	if q.StartDate != nil && q.EndDate != nil && q.StartDate.After(*q.EndDate) {
		fields = validator.Merge(fields, map[string]string{"startDate": "must not be after endDate"})
	}
	return fields
}

func (q LogQuery) filter() storage.AttemptFilter {
	return storage.AttemptFilter{
		Outcome:   storage.Outcome(q.Status),
		EventType: q.EventType,
		Start:     q.StartDate,
		End:       q.EndDate,
	}
}

type LogService struct {
	attempts storage.AttemptStore
}

func NewLogService(attempts storage.AttemptStore) *LogService {
	return &LogService{attempts: attempts}
}

// List validates q and returns the matching page, newest first.
func (s *LogService) List(ctx context.Context, q LogQuery) (storage.AttemptPage, error) {
	if verr := validator.Validate(q); verr != nil {
		return storage.AttemptPage{}, verr
	}

	page, err := s.attempts.List(ctx, q.filter(), storage.Page{Page: q.Page, PageSize: q.PageSize})
	if err != nil {
		return storage.AttemptPage{}, fmt.Errorf("list attempts: %w", err)
	}
	return page, nil
}
