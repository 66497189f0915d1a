package commands

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"taskr/internal/service"
	"taskr/internal/testutil"
)

func TestParseTaskRef(t *testing.T) {
	cases := []struct {
		arg  string
		want TaskRef
	}{
		{"5", TaskRef{Num: 5}},
		{" 12 ", TaskRef{Num: 12}},
		{"9999", TaskRef{Num: 9999}},
		{"12345", TaskRef{ID: "12345"}},
		{"a1b2c3", TaskRef{ID: "a1b2c3"}},
		{"665f1c2e9b1d8a0012345678", TaskRef{ID: "665f1c2e9b1d8a0012345678"}},
		{"f47ac10b-58cc-4372-a567-0e02b2c3d479", TaskRef{ID: "f47ac10b-58cc-4372-a567-0e02b2c3d479"}},
		{"task_7", TaskRef{ID: "task_7"}},
	}
	for _, tc := range cases {
		ref, err := ParseTaskRef(tc.arg)
		if err != nil {
			t.Errorf("ParseTaskRef(%q): unexpected error: %v", tc.arg, err)
			continue
		}
		if ref != tc.want {
			t.Errorf("ParseTaskRef(%q) = %+v, want %+v", tc.arg, ref, tc.want)
		}
	}
}

func TestParseTaskRef_Empty(t *testing.T) {
	for _, arg := range []string{"", "   "} {
		_, err := ParseTaskRef(arg)
		if !errors.Is(err, ErrTaskRefRequired) {
			t.Errorf("ParseTaskRef(%q): expected ErrTaskRefRequired, got %v", arg, err)
		}
	}
}

func TestParseTaskRef_Invalid(t *testing.T) {
	for _, arg := range []string{"a/b", "x y", "-1", "é1"} {
		_, err := ParseTaskRef(arg)
		if err == nil {
			t.Errorf("ParseTaskRef(%q): expected error", arg)
			continue
		}
		expected := "invalid task reference: " + arg
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	}
}

func TestParseTaskRefs(t *testing.T) {
	refs, err := ParseTaskRefs([]string{"1", "abc", "3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(refs) != 3 || refs[0].Num != 1 || refs[1].ID != "abc" || refs[2].Num != 3 {
		t.Errorf("unexpected refs: %+v", refs)
	}

	if _, err := ParseTaskRefs(nil); !errors.Is(err, ErrTaskRefRequired) {
		t.Errorf("expected ErrTaskRefRequired, got %v", err)
	}
	if _, err := ParseTaskRefs([]string{"1", "a/b"}); err == nil {
		t.Error("expected error for bad second ref")
	}
}

func TestTaskRef_String(t *testing.T) {
	if got := (TaskRef{Num: 4}).String(); got != "4" {
		t.Errorf("expected 4, got %q", got)
	}
	if got := (TaskRef{ID: "abc"}).String(); got != "abc" {
		t.Errorf("expected abc, got %q", got)
	}
}

func seedTasks(svc *testutil.FakeService, ids ...string) {
	for i, id := range ids {
		svc.AddTask(service.Task{ID: id, Title: fmt.Sprintf("task %d", i+1)})
	}
}

func TestResolver_ByNumber(t *testing.T) {
	svc := testutil.NewFakeService()
	seedTasks(svc, "aaa111", "bbb222", "ccc333", "ddd444", "eee555")
	r := newTaskResolver(svc, 2)
	ctx := context.Background()

	task, err := r.resolve(ctx, TaskRef{Num: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "ddd444" {
		t.Errorf("expected ddd444, got %s", task.ID)
	}
	if svc.LastList.Page != 2 || svc.LastList.Limit != 2 {
		t.Errorf("expected page 2 limit 2, got %+v", svc.LastList)
	}

	for _, num := range []int{0, 6, 100} {
		_, err := r.resolve(ctx, TaskRef{Num: num})
		if err == nil || err.Error() != fmt.Sprintf("task number out of range: %d", num) {
			t.Errorf("num %d: expected out of range, got %v", num, err)
		}
	}
}

func TestResolver_CachesPages(t *testing.T) {
	svc := testutil.NewFakeService()
	seedTasks(svc, "aaa111", "bbb222", "ccc333")
	r := newTaskResolver(svc, 10)
	ctx := context.Background()

	tasks, err := r.resolveAll(ctx, []TaskRef{{Num: 1}, {Num: 3}, {ID: "aaa111"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 2 || tasks[0].ID != "aaa111" || tasks[1].ID != "ccc333" {
		t.Errorf("expected aaa111 and ccc333 once each, got %+v", tasks)
	}

	// Deleting behind the resolver's back does not shift its numbering.
	if err := svc.DeleteTask(ctx, "aaa111"); err != nil {
		t.Fatal(err)
	}
	task, err := r.resolve(ctx, TaskRef{Num: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "bbb222" {
		t.Errorf("expected cached bbb222, got %s", task.ID)
	}
}

func TestResolver_ByIDPrefix(t *testing.T) {
	svc := testutil.NewFakeService()
	seedTasks(svc, "665f1c2e9b1d8a0012345678", "665f1d009b1d8a0012345678", "77aa00ff9b1d8a0012345678")
	r := newTaskResolver(svc, 10)
	ctx := context.Background()

	task, err := r.resolve(ctx, TaskRef{ID: "77aa00ff"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "77aa00ff9b1d8a0012345678" {
		t.Errorf("unexpected task %s", task.ID)
	}

	_, err = r.resolve(ctx, TaskRef{ID: "665f1"})
	if err == nil || err.Error() != "ambiguous task id: 665f1 (2 matches)" {
		t.Errorf("expected ambiguous error, got %v", err)
	}
}

func TestResolver_ExactIDBeatsPrefix(t *testing.T) {
	svc := testutil.NewFakeService()
	seedTasks(svc, "task-1", "task-10", "task-11")
	r := newTaskResolver(svc, 10)

	task, err := r.resolve(context.Background(), TaskRef{ID: "task-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.ID != "task-1" {
		t.Errorf("expected task-1, got %s", task.ID)
	}
}

func TestResolver_FullIDUsesGet(t *testing.T) {
	svc := testutil.NewFakeService()
	seedTasks(svc, "665f1c2e9b1d8a0012345678")
	r := newTaskResolver(svc, 10)

	task, err := r.resolve(context.Background(), TaskRef{ID: "665f1c2e9b1d8a0012345678"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if task.Title != "task 1" {
		t.Errorf("unexpected task %+v", task)
	}
	if len(r.pages) != 0 {
		t.Errorf("expected no listing for a full id, got %d page(s)", len(r.pages))
	}
}

func TestResolver_UnknownID(t *testing.T) {
	svc := testutil.NewFakeService()
	seedTasks(svc, "aaa111")
	r := newTaskResolver(svc, 10)

	_, err := r.resolve(context.Background(), TaskRef{ID: "zzz"})
	if err == nil || err.Error() != "Task not found" {
		t.Errorf("expected Task not found, got %v", err)
	}
}
