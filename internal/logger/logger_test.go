package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env     string
		level   string
		wantErr bool
	}{
		{env: "prod"},
		{env: "local", level: "debug"},
		{env: "docker", level: "warn"},
		{env: "test"},
		{env: "staging", wantErr: true},
		{env: "prod", level: "loud", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.env+"/"+tt.level, func(t *testing.T) {
			l, err := NewLogger(tt.env, tt.level)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if l == nil {
				t.Fatal("nil logger")
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected a no-op logger for an empty context")
	}

	l := zap.NewExample().Named("req")
	if got := FromContext(ContextWithLogger(context.Background(), l)); got != l {
		t.Error("expected the stored logger")
	}
}
