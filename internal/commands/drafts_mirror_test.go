package commands_test

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"testing"

	"taskr/internal/backend/googletasks"
	"taskr/internal/commands"
	"taskr/internal/envelope"
	"taskr/internal/exitcode"
	"taskr/internal/service"
	"taskr/internal/storage"
	"taskr/internal/testutil"
)

func TestDraftsCommand_Empty(t *testing.T) {
	stdout, stderr, code := runCommand(t, &commands.DraftsCmd{}, newEnv(t, nil))

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "no drafts\n" {
		t.Errorf("expected 'no drafts', got %q", stdout)
	}
}

func TestDraftsCommand_AddAndList(t *testing.T) {
	env := newEnv(t, nil)

	stdout, stderr, code := runCommand(t, &commands.DraftsCmd{}, env, "-d", "at the park", "add", "Walk", "dog")
	checkCode(t, exitcode.Success, code, stderr)
	if !strings.HasPrefix(stdout, "draft ") || !strings.HasSuffix(stdout, " saved\n") {
		t.Errorf("unexpected stdout %q", stdout)
	}

	stdout, stderr, code = runCommand(t, &commands.DraftsCmd{}, env, "list")
	checkCode(t, exitcode.Success, code, stderr)
	if !strings.Contains(stdout, "  Walk dog: at the park  (") {
		t.Errorf("unexpected listing %q", stdout)
	}
}

func TestDraftsCommand_AddInvalid(t *testing.T) {
	cases := []struct {
		args   []string
		stderr string
	}{
		{[]string{"-d", "x", "add", "ab"}, "error: title must be at least 3 characters\n"},
		{[]string{"add", "Walk dog"}, "error: description required\n"},
	}
	for _, tc := range cases {
		env := newEnv(t, nil)
		_, stderr, code := runCommand(t, &commands.DraftsCmd{}, env, tc.args...)
		checkCode(t, exitcode.UserError, code, stderr)
		if stderr != tc.stderr {
			t.Errorf("%v: expected %q, got %q", tc.args, tc.stderr, stderr)
		}
		if list, _ := env.Drafts.List(); len(list) != 0 {
			t.Errorf("%v: expected no draft saved", tc.args)
		}
	}
}

func TestDraftsCommand_Remove(t *testing.T) {
	env := newEnv(t, nil)
	d, err := env.Drafts.Add("Walk dog", "park")
	if err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runCommand(t, &commands.DraftsCmd{}, env, "rm", strconv.FormatInt(d.ID, 10))
	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}

	_, stderr, code = runCommand(t, &commands.DraftsCmd{}, env, "rm", strconv.FormatInt(d.ID, 10))
	checkCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: draft not found\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestDraftsCommand_BadArgs(t *testing.T) {
	cases := []struct {
		args   []string
		stderr string
	}{
		{[]string{"rm"}, "error: draft id required\n"},
		{[]string{"rm", "abc"}, "error: invalid draft id: abc\n"},
		{[]string{"push", "0"}, "error: invalid draft id: 0\n"},
		{[]string{"frobnicate"}, "error: unknown drafts subcommand: frobnicate\n"},
	}
	for _, tc := range cases {
		_, stderr, code := runCommand(t, &commands.DraftsCmd{}, newEnv(t, nil), tc.args...)
		checkCode(t, exitcode.UserError, code, stderr)
		if stderr != tc.stderr {
			t.Errorf("%v: expected %q, got %q", tc.args, tc.stderr, stderr)
		}
	}
}

func TestDraftsCommand_Push(t *testing.T) {
	svc := testutil.NewFakeService()
	env := newEnv(t, svc)
	d, err := env.Drafts.Add("Walk dog", "park")
	if err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runCommand(t, &commands.DraftsCmd{}, env, "push", strconv.FormatInt(d.ID, 10))

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "created task-1\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	tasks := svc.Tasks()
	if len(tasks) != 1 || tasks[0].Title != "Walk dog" || tasks[0].Description != "park" {
		t.Errorf("unexpected tasks %+v", tasks)
	}
	if list, _ := env.Drafts.List(); len(list) != 0 {
		t.Errorf("expected draft to be removed, got %+v", list)
	}
}

func TestDraftsCommand_PushKeepsDraftOnFailure(t *testing.T) {
	svc := testutil.NewFakeService()
	svc.CreateErr = &envelope.APIError{StatusCode: 500, Message: "Internal server error"}
	env := newEnv(t, svc)
	d, _ := env.Drafts.Add("Walk dog", "park")

	_, stderr, code := runCommand(t, &commands.DraftsCmd{}, env, "push", strconv.FormatInt(d.ID, 10))

	checkCode(t, exitcode.BackendError, code, stderr)
	if list, _ := env.Drafts.List(); len(list) != 1 {
		t.Error("expected draft to be kept")
	}
}

func TestDraftsCommand_PushNeedsLogin(t *testing.T) {
	store := storage.NewMemory()
	svc := testutil.NewFakeService()
	env := newEnv(t, svc)
	env.Session = testutil.NewSession(t, "http://127.0.0.1:1/api", store)

	_, stderr, code := runCommand(t, &commands.DraftsCmd{}, env, "push", "12345")

	checkCode(t, exitcode.AuthError, code, stderr)
	if stderr != "error: not logged in (run: taskr login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

// fakeMirror records pushes in memory.
type fakeMirror struct {
	mu      sync.Mutex
	lists   map[string]string
	pushed  map[string][]service.Task
	listErr error
	failAt  int
}

func newFakeMirror() *fakeMirror {
	return &fakeMirror{lists: make(map[string]string), pushed: make(map[string][]service.Task), failAt: -1}
}

func (m *fakeMirror) EnsureList(ctx context.Context, title string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return "", m.listErr
	}
	if id, ok := m.lists[title]; ok {
		return id, nil
	}
	id := fmt.Sprintf("L%d", len(m.lists)+1)
	m.lists[title] = id
	return id, nil
}

func (m *fakeMirror) Push(ctx context.Context, listID string, task service.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAt >= 0 && len(m.pushed[listID]) == m.failAt {
		return fmt.Errorf("google tasks: quota exceeded")
	}
	m.pushed[listID] = append(m.pushed[listID], task)
	return nil
}

func mirrorEnv(t *testing.T, svc *testutil.FakeService, m *fakeMirror) *commands.Env {
	env := newEnv(t, svc)
	env.OpenMirror = func(ctx context.Context) (commands.Mirror, error) { return m, nil }
	return env
}

func TestMirrorCommand(t *testing.T) {
	svc := testutil.NewFakeService()
	for i := 0; i < 150; i++ {
		svc.AddTask(service.Task{Title: fmt.Sprintf("t%d", i)})
	}
	m := newFakeMirror()

	stdout, stderr, code := runCommand(t, &commands.MirrorCmd{}, mirrorEnv(t, svc, m))

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "mirrored 150 task(s)\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if m.lists["taskr"] != "L1" {
		t.Errorf("expected the default list to be created, got %v", m.lists)
	}
	if got := len(m.pushed["L1"]); got != 150 {
		t.Errorf("expected 150 pushes, got %d", got)
	}
}

func TestMirrorCommand_ListAndStatus(t *testing.T) {
	svc := seeded()
	m := newFakeMirror()

	stdout, stderr, code := runCommand(t, &commands.MirrorCmd{}, mirrorEnv(t, svc, m), "--list", "Done", "--status", "completed")

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "mirrored 1 task(s)\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	pushed := m.pushed[m.lists["Done"]]
	if len(pushed) != 1 || pushed[0].ID != "bbb222" {
		t.Errorf("unexpected pushes %+v", pushed)
	}
}

func TestMirrorCommand_PartialFailure(t *testing.T) {
	m := newFakeMirror()
	m.failAt = 2

	stdout, stderr, code := runCommand(t, &commands.MirrorCmd{}, mirrorEnv(t, seeded(), m))

	checkCode(t, exitcode.BackendError, code, stderr)
	if stdout != "mirrored 2 of 3 task(s)\n" {
		t.Errorf("unexpected stdout %q", stdout)
	}
	if stderr != "error: backend error: google tasks: quota exceeded\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestMirrorCommand_GoogleAuth(t *testing.T) {
	m := newFakeMirror()
	m.listErr = &envelope.APIError{StatusCode: 401, Message: "google token expired or revoked (run: taskr google-login)"}

	_, stderr, code := runCommand(t, &commands.MirrorCmd{}, mirrorEnv(t, seeded(), m))

	checkCode(t, exitcode.AuthError, code, stderr)
	if !strings.Contains(stderr, "taskr google-login") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestMirrorCommand_NotConnected(t *testing.T) {
	env := newEnv(t, seeded())
	env.OpenMirror = func(ctx context.Context) (commands.Mirror, error) { return nil, googletasks.ErrNoToken }

	_, stderr, code := runCommand(t, &commands.MirrorCmd{}, env)

	checkCode(t, exitcode.AuthError, code, stderr)
	if stderr != "error: not connected to Google Tasks (run: taskr google-login)\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestMirrorCommand_BackendFirst(t *testing.T) {
	svc := seeded()
	svc.ListErr = envelopeErr(401, "Unauthorized")
	opened := false
	env := newEnv(t, svc)
	env.OpenMirror = func(ctx context.Context) (commands.Mirror, error) {
		opened = true
		return newFakeMirror(), nil
	}

	_, stderr, code := runCommand(t, &commands.MirrorCmd{}, env)

	checkCode(t, exitcode.AuthError, code, stderr)
	if opened {
		t.Error("expected Google not to be contacted when the backend fails")
	}
}

func envelopeErr(status int, msg string) error {
	return &envelope.APIError{StatusCode: status, Message: msg}
}
