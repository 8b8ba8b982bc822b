package scheduler

import (
	"context"
	"runtime"
	"testing"

	"github.com/google/uuid"

	"github.com/tradeops/taskforge/models"
	"github.com/tradeops/taskforge/types"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	w := &fakeWorker{name: "golang"}
	reg.Register("golang", w)

	if got, ok := reg.Resolve("golang"); !ok || got != w {
		t.Error("Resolve should return the registered worker")
	}
	if _, ok := reg.Resolve("cobol"); ok {
		t.Error("Resolve should miss unknown capabilities")
	}

	replacement := &fakeWorker{name: "python"}
	reg.Replace(map[string]Worker{"python": replacement})
	if _, ok := reg.Resolve("golang"); ok {
		t.Error("Replace should drop the old table")
	}
	if got, ok := reg.Resolve("python"); !ok || got != replacement {
		t.Error("Replace should install the new table")
	}
}

func TestRegistryFromRouting(t *testing.T) {
	reg := RegistryFromRouting([]types.RoutingRule{
		{Capability: "golang", Command: []string{"worker", "--lang=go"}},
	})
	w, ok := reg.Resolve("golang")
	if !ok {
		t.Fatal("routing rule should register a worker")
	}
	if w.Name() != "golang" {
		t.Errorf("worker name = %q, want golang", w.Name())
	}
}

func TestCommandWorker_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}

	task := *models.NewTask(uuid.New().String(), "Command Worker Task")

	t.Run("success", func(t *testing.T) {
		w := NewCommandWorker("shell", []string{"sh", "-c", `cat >/dev/null && echo "built $TASKFORGE_TASK_ID"`})
		result, err := w.Execute(context.Background(), task)
		if err != nil {
			t.Fatalf("Execute failed: %v", err)
		}
		if !result.Success {
			t.Error("zero exit should be success")
		}
		if result.Message != "built "+task.ID {
			t.Errorf("message = %q", result.Message)
		}
	})

	t.Run("failure", func(t *testing.T) {
		w := NewCommandWorker("shell", []string{"sh", "-c", "echo broken >&2; exit 1"})
		result, err := w.Execute(context.Background(), task)
		if err == nil {
			t.Fatal("non-zero exit should return an error")
		}
		if result.Success {
			t.Error("non-zero exit should not be success")
		}
		if result.Message != "broken" {
			t.Errorf("message = %q, want stderr output", result.Message)
		}
	})

	t.Run("no command", func(t *testing.T) {
		w := NewCommandWorker("empty", nil)
		if _, err := w.Execute(context.Background(), task); err == nil {
			t.Fatal("empty argv should fail")
		}
	})
}
