package governance

import (
	"errors"
	"testing"
	"time"
)

func TestNewContext_CopiesAttributes(t *testing.T) {
	attrs := map[string]any{"reviewers": 2}
	ec := NewContext(OpPullRequest, Scope{Organization: "acme"}, attrs, time.Now())

	attrs["reviewers"] = 0
	if v, _ := ec.Attribute("reviewers"); v != 2 {
		t.Errorf("caller mutation leaked into context: reviewers = %v", v)
	}
}

func TestNewContext_PinsZeroTimestamp(t *testing.T) {
	ec := NewContext(OpPullRequest, Scope{Organization: "acme"}, nil, time.Time{})
	if ec.Timestamp.IsZero() {
		t.Error("zero timestamp was not pinned")
	}
}

func TestContext_Validate(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		ec      *Context
		wantErr bool
	}{
		{
			name: "valid",
			ec:   NewContext(OpPipelineRun, Scope{Organization: "acme"}, nil, now),
		},
		{
			name:    "unknown kind",
			ec:      NewContext("deploy", Scope{Organization: "acme"}, nil, now),
			wantErr: true,
		},
		{
			name:    "invalid scope",
			ec:      NewContext(OpPipelineRun, Scope{}, nil, now),
			wantErr: true,
		},
		{
			name:    "nil context",
			ec:      nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.ec.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Errorf("Validate() error type = %T, want *ValidationError", err)
				}
			}
		})
	}
}
