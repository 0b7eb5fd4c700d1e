package validator

import (
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type pageQuery struct {
	Page     int    `query:"page" validate:"gte=1"`
	PageSize int    `query:"pageSize" validate:"gte=1,lte=100"`
	Status   string `query:"status" validate:"omitempty,oneof=success error"`
}

func TestStructFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   pageQuery
		want map[string]string
	}{
		{
			name: "valid",
			in:   pageQuery{Page: 1, PageSize: 20},
			want: nil,
		},
		{
			name: "page zero",
			in:   pageQuery{Page: 0, PageSize: 20},
			want: map[string]string{"page": "must be >= 1"},
		},
		{
			name: "page size too large and bad status",
			in:   pageQuery{Page: 1, PageSize: 101, Status: "pending"},
			want: map[string]string{
				"pageSize": "must be <= 100",
				"status":   "must be one of: success, error",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := StructFields(tt.in)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("StructFields() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStructReturnsBadRequest(t *testing.T) {
	t.Parallel()

	err := Struct(pageQuery{Page: 0, PageSize: 0})
	if err == nil {
		t.Fatal("expected error")
	}
	if err.StatusCode != http.StatusBadRequest {
		t.Errorf("StatusCode = %d, want %d", err.StatusCode, http.StatusBadRequest)
	}
	if len(err.Validation.Fields) != 2 {
		t.Errorf("fields = %v, want 2 entries", err.Validation.Fields)
	}
}

func TestMerge(t *testing.T) {
	t.Parallel()

	got := Merge(nil, map[string]string{"a": "1"}, map[string]string{"a": "2", "b": "3"})
	want := map[string]string{"a": "2", "b": "3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Merge() mismatch (-want +got):\n%s", diff)
	}
	if Merge(nil, nil) != nil {
		t.Error("Merge of nil maps should be nil")
	}
}
