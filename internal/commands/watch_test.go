package commands

import (
	"context"
	"testing"

	"todosync/internal/app"
	"todosync/internal/config"
	"todosync/internal/localstore"
	"todosync/internal/reconciler"
	"todosync/internal/testutil"
)

func TestStartPoller(t *testing.T) {
	cfg, err := config.New(t.TempDir())
	if err != nil {
		t.Fatalf("config.New: %v", err)
	}

	tests := []struct {
		name   string
		usable bool
		want   bool
	}{
		{"remote configured", true, true},
		{"local only", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &app.Session{
				Tasks: reconciler.New(localstore.NewMemory(),
					reconciler.WithRemote(testutil.NewFakeStore(), tt.usable)),
			}

			p := startPoller(context.Background(), cfg, sess)
			defer p.Stop()

			if got := p.Running(); got != tt.want {
				t.Errorf("Running() = %v, want %v", got, tt.want)
			}
		})
	}
}
