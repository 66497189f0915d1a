package service_test

import (
	"encoding/json"
	"testing"
	"time"

	"taskr/internal/service"
)

func TestParseStatus(t *testing.T) {
	cases := map[string]service.Status{
		"pending":     service.StatusPending,
		" Completed ": service.StatusCompleted,
		"in-progress": service.StatusInProgress,
		"in_progress": service.StatusInProgress,
		"ARCHIVED":    service.StatusArchived,
	}
	for in, want := range cases {
		got, err := service.ParseStatus(in)
		if err != nil {
			t.Errorf("ParseStatus(%q): unexpected error %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseStatus(%q): expected %q, got %q", in, want, got)
		}
	}

	if _, err := service.ParseStatus("done"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestParsePriority(t *testing.T) {
	got, err := service.ParsePriority("HIGH")
	if err != nil || got != service.PriorityHigh {
		t.Errorf("expected high, got %q (%v)", got, err)
	}
	if _, err := service.ParsePriority("urgent"); err == nil {
		t.Error("expected error for unknown priority")
	}
}

func TestTaskInputValidate(t *testing.T) {
	neg := -1.0
	bad := []service.TaskInput{
		{Title: "  "},
		{Title: "ok", Priority: "urgent"},
		{Title: "ok", Status: "done"},
		{Title: "ok", EstimatedHours: &neg},
	}
	for _, in := range bad {
		if err := in.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", in)
		}
	}

	good := service.TaskInput{Title: "Write report", Priority: service.PriorityMedium, Status: service.StatusPending}
	if err := good.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestTaskUnmarshal_DateForms(t *testing.T) {
	body := `{"id":"1","title":"a","priority":"low","status":"pending",
		"dueDate":"2025-03-01","createdAt":"2025-02-01T09:30:00","updatedAt":"2025-02-02T10:00:00Z"}`

	var task service.Task
	if err := json.Unmarshal([]byte(body), &task); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.DueDate == nil || !task.DueDate.Equal(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected due date %v", task.DueDate)
	}
	if task.CreatedAt == nil || task.CreatedAt.Hour() != 9 || task.CreatedAt.Minute() != 30 {
		t.Errorf("unexpected createdAt %v", task.CreatedAt)
	}
	if task.UpdatedAt == nil || task.UpdatedAt.Day() != 2 {
		t.Errorf("unexpected updatedAt %v", task.UpdatedAt)
	}

	if err := json.Unmarshal([]byte(`{"dueDate":"next week"}`), &task); err == nil {
		t.Error("expected error for unparseable date")
	}
}
