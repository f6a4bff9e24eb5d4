package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/twiced-technology-gmbh/opsdesk/internal/clierr"
)

func TestJSONErrorEnvelope(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantExit int
		wantTask string
	}{
		{
			name: "structured error keeps details",
			err: fmt.Errorf("approving: %w", clierr.New(clierr.PermissionDenied, "erik may not validate").
				WithDetails(map[string]any{"task": "3f2a9c"})),
			wantCode: clierr.PermissionDenied,
			wantExit: 1,
			wantTask: "3f2a9c",
		},
		{
			name:     "plain error is internal",
			err:      errors.New("disk full"),
			wantCode: clierr.InternalError,
			wantExit: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if got := JSONError(&buf, tt.err); got != tt.wantExit {
				t.Errorf("exit = %d, want %d", got, tt.wantExit)
			}
			var resp ErrorResponse
			if err := json.Unmarshal(buf.Bytes(), &resp); err != nil {
				t.Fatalf("decoding %q: %v", buf.String(), err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
			if tt.wantTask != "" && resp.Details["task"] != tt.wantTask {
				t.Errorf("details = %v", resp.Details)
			}
		})
	}
}

func TestNewBatchResult(t *testing.T) {
	if r := NewBatchResult("a1", nil); !r.OK || r.Code != "" {
		t.Fatalf("success = %+v", r)
	}
	r := NewBatchResult("b2", clierr.New(clierr.NotFound, "task b2 not found").WithDetails(map[string]any{"id": "b2"}))
	if r.OK || r.Code != clierr.NotFound || r.Details["id"] != "b2" {
		t.Fatalf("failure = %+v", r)
	}
}
