package commands_test

import (
	"strings"
	"testing"

	"taskr/internal/commands"
	"taskr/internal/config"
	"taskr/internal/drafts"
	"taskr/internal/exitcode"
	"taskr/internal/storage"
	"taskr/internal/testutil"
)

// backendEnv returns a signed-out Env whose session talks to a FakeBackend
// holding one user, ada@example.com / s3cret.
func backendEnv(t *testing.T) (*commands.Env, *testutil.FakeBackend, *storage.Memory) {
	t.Helper()
	t.Setenv(config.EnvEmail, "")
	t.Setenv(config.EnvPassword, "")

	backend := testutil.NewFakeBackend(t)
	backend.AddUser("Ada", "ada@example.com", "s3cret")

	store := storage.NewMemory()
	env := &commands.Env{
		Config:  &config.Config{Dir: t.TempDir(), PageSize: 10},
		Session: testutil.NewSession(t, backend.URL(), store),
		Tasks:   testutil.NewFakeService(),
		Drafts:  drafts.New(store),
		Store:   store,
	}
	return env, backend, store
}

func TestLoginCommand(t *testing.T) {
	env, backend, store := backendEnv(t)

	stdout, stderr, code := runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}
	if !env.Session.IsAuthenticated() {
		t.Error("expected session to be established")
	}
	if u := env.Session.CurrentUser(); u == nil || u.Email != "ada@example.com" {
		t.Errorf("unexpected current user %+v", u)
	}
	for _, key := range []string{storage.KeyAuthToken, storage.KeyRefreshToken, storage.KeyUserData} {
		if _, ok, _ := store.Get(key); !ok {
			t.Errorf("expected %s to be stored", key)
		}
	}
	if n := backend.Calls("POST /api/auth/login"); n != 1 {
		t.Errorf("expected 1 login call, got %d", n)
	}
}

func TestLoginCommand_InvalidCredentials(t *testing.T) {
	env, _, store := backendEnv(t)

	stdout, stderr, code := runCommand(t, &commands.LoginCmd{}, env, "-e", "ada@example.com", "--password", "wrong")

	checkCode(t, exitcode.AuthError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if stderr != "error: auth error: Invalid credentials\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if len(store.Keys()) != 0 {
		t.Errorf("expected nothing stored, got %v", store.Keys())
	}
}

func TestLoginCommand_AlreadyLoggedIn(t *testing.T) {
	env, backend, _ := backendEnv(t)
	runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")

	stdout, _, code := runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")

	checkCode(t, exitcode.Success, code, "")
	if stdout != "already logged in\n" {
		t.Errorf("expected 'already logged in', got %q", stdout)
	}
	if n := backend.Calls("POST /api/auth/login"); n != 1 {
		t.Errorf("expected no second login call, got %d calls", n)
	}
}

func TestLoginCommand_PasswordStdin(t *testing.T) {
	env, _, _ := backendEnv(t)
	env.Stdin = strings.NewReader("s3cret\n")

	_, stderr, code := runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password-stdin")

	checkCode(t, exitcode.Success, code, stderr)
	if !env.Session.IsAuthenticated() {
		t.Error("expected session to be established")
	}
}

func TestLoginCommand_Environment(t *testing.T) {
	env, _, _ := backendEnv(t)
	t.Setenv(config.EnvEmail, "ada@example.com")
	t.Setenv(config.EnvPassword, "s3cret")

	_, stderr, code := runCommand(t, &commands.LoginCmd{}, env)

	checkCode(t, exitcode.Success, code, stderr)
}

func TestLoginCommand_MissingCredentials(t *testing.T) {
	cases := []struct {
		args   []string
		stderr string
	}{
		{nil, "error: email required\n"},
		{[]string{"--email", "ada@example.com"}, "error: password required\n"},
		{[]string{"--password", "x", "--password-stdin"}, "error: --password and --password-stdin are mutually exclusive\n"},
	}
	for _, tc := range cases {
		env, backend, _ := backendEnv(t)
		env.Stdin = strings.NewReader("")
		_, stderr, code := runCommand(t, &commands.LoginCmd{}, env, tc.args...)
		checkCode(t, exitcode.UserError, code, stderr)
		if stderr != tc.stderr {
			t.Errorf("%v: expected %q, got %q", tc.args, tc.stderr, stderr)
		}
		if backend.TotalCalls() != 0 {
			t.Errorf("%v: expected no request", tc.args)
		}
	}
}

func TestRegisterCommand(t *testing.T) {
	env, backend, _ := backendEnv(t)

	stdout, stderr, code := runCommand(t, &commands.RegisterCmd{}, env,
		"--name", "Grace", "--email", "grace@example.com", "--password", "hopper")

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}
	if u := env.Session.CurrentUser(); u == nil || u.Name != "Grace" {
		t.Errorf("unexpected current user %+v", u)
	}
	body := backend.LastBody("POST /api/auth/register")
	if !strings.Contains(body, `"name":"Grace"`) {
		t.Errorf("expected name in body, got %s", body)
	}
}

func TestRegisterCommand_EmailTaken(t *testing.T) {
	env, _, _ := backendEnv(t)

	_, stderr, code := runCommand(t, &commands.RegisterCmd{}, env,
		"--name", "Ada", "--email", "ada@example.com", "--password", "other")

	checkCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: Email already registered\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if env.Session.IsAuthenticated() {
		t.Error("expected no session")
	}
}

func TestRegisterCommand_NameRequired(t *testing.T) {
	env, backend, _ := backendEnv(t)

	_, stderr, code := runCommand(t, &commands.RegisterCmd{}, env, "--email", "x@example.com", "--password", "pw")

	checkCode(t, exitcode.UserError, code, stderr)
	if stderr != "error: name required\n" {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if backend.TotalCalls() != 0 {
		t.Error("expected no request")
	}
}

func TestLogoutCommand(t *testing.T) {
	env, backend, store := backendEnv(t)
	runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")
	if _, err := env.Drafts.Add("Walk dog", "park"); err != nil {
		t.Fatal(err)
	}

	stdout, stderr, code := runCommand(t, &commands.LogoutCmd{}, env)

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "ok\n" {
		t.Errorf("expected 'ok', got %q", stdout)
	}
	if env.Session.IsAuthenticated() || env.Session.CurrentUser() != nil {
		t.Error("expected session to be cleared")
	}
	// Drafts survive a logout.
	if keys := store.Keys(); len(keys) != 1 || keys[0] != storage.KeyDrafts {
		t.Errorf("expected only drafts to remain, got %v", keys)
	}
	if n := backend.Calls("POST /api/auth/logout"); n != 1 {
		t.Errorf("expected 1 logout call, got %d", n)
	}
}

func TestLogoutCommand_NotLoggedIn(t *testing.T) {
	env, backend, _ := backendEnv(t)

	stdout, stderr, code := runCommand(t, &commands.LogoutCmd{}, env)

	checkCode(t, exitcode.Success, code, stderr)
	if stdout != "not logged in\n" {
		t.Errorf("expected 'not logged in', got %q", stdout)
	}
	if backend.TotalCalls() != 0 {
		t.Error("expected no request")
	}
}

func TestLogoutCommand_BackendDown(t *testing.T) {
	env, backend, _ := backendEnv(t)
	runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")
	backend.Server.Close()

	_, stderr, code := runCommand(t, &commands.LogoutCmd{}, env)

	checkCode(t, exitcode.Success, code, stderr)
	if env.Session.IsAuthenticated() {
		t.Error("expected local session to be cleared")
	}
}

func TestWhoamiCommand_AfterLogin(t *testing.T) {
	env, _, _ := backendEnv(t)
	runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")

	stdout, stderr, code := runCommand(t, &commands.WhoamiCmd{}, env)

	checkCode(t, exitcode.Success, code, stderr)
	if !strings.HasPrefix(stdout, "Ada <ada@example.com>\nroles: user\nsession expires ") {
		t.Errorf("unexpected stdout %q", stdout)
	}
}

func TestRefreshCommand(t *testing.T) {
	env, backend, store := backendEnv(t)
	runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")
	before, _, _ := store.Get(storage.KeyRefreshToken)

	stdout, stderr, code := runCommand(t, &commands.RefreshCmd{}, env)

	checkCode(t, exitcode.Success, code, stderr)
	if !strings.HasPrefix(stdout, "ok, valid until ") {
		t.Errorf("unexpected stdout %q", stdout)
	}
	after, _, _ := store.Get(storage.KeyRefreshToken)
	if after == before {
		t.Error("expected the refresh token to rotate")
	}
	if n := backend.Calls("POST /api/auth/refresh-token"); n != 1 {
		t.Errorf("expected 1 refresh call, got %d", n)
	}
}

func TestRefreshCommand_Rejected(t *testing.T) {
	env, backend, _ := backendEnv(t)
	runCommand(t, &commands.LoginCmd{}, env, "--email", "ada@example.com", "--password", "s3cret")
	backend.SetFailRefresh(true)

	_, stderr, code := runCommand(t, &commands.RefreshCmd{}, env)

	checkCode(t, exitcode.AuthError, code, stderr)
	if !strings.Contains(stderr, "your session has expired") || !strings.HasSuffix(stderr, "(run: taskr login)\n") {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if env.Session.IsAuthenticated() {
		t.Error("expected the session to be logged out")
	}
}

// TestGoogleLoginCommand_NoOAuthClient verifies google-login fails without
// oauth_client.json
func TestGoogleLoginCommand_NoOAuthClient(t *testing.T) {
	env := newEnv(t, nil)

	stdout, stderr, code := runCommand(t, &commands.GoogleLoginCmd{}, env)

	checkCode(t, exitcode.AuthError, code, stderr)
	if stdout != "" {
		t.Errorf("expected no stdout, got %q", stdout)
	}
	if !strings.HasPrefix(stderr, "error: oauth_client.json not found in "+env.Config.Dir) {
		t.Errorf("unexpected stderr %q", stderr)
	}
	if !strings.Contains(stderr, "taskr google-login") {
		t.Error("expected instructions to mention google-login")
	}
}
