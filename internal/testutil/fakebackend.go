package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"taskr/internal/service"
	"taskr/internal/session"
)

type fakeUser struct {
	user session.User
	hash []byte
}

// FakeBackend is an in-process REST backend speaking the auth and task API,
// for integration tests. Routes live under /api.
type FakeBackend struct {
	Server *httptest.Server

	mu       sync.Mutex
	secret   []byte
	users    map[string]*fakeUser // by email
	refresh  map[string]string    // refresh token -> user id
	revoked  map[string]bool      // access tokens invalidated by logout
	tasks    []service.Task
	calls    map[string]int // "METHOD /path" -> count
	lastBody map[string]string

	expiresIn    int64 // access token lifetime in seconds
	failRefresh  bool
	rejectTokens bool
}

// NewFakeBackend starts a FakeBackend that is shut down when t finishes.
func NewFakeBackend(t testing.TB) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		secret:    []byte("test-secret-" + uuid.NewString()),
		users:     make(map[string]*fakeUser),
		refresh:   make(map[string]string),
		revoked:   make(map[string]bool),
		calls:     make(map[string]int),
		lastBody:  make(map[string]string),
		expiresIn: 3600,
	}

	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", f.login).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", f.register).Methods(http.MethodPost)
	api.HandleFunc("/auth/refresh-token", f.refreshToken).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", f.authed(f.logout)).Methods(http.MethodPost)

	// search must be registered before {id}
	api.HandleFunc("/tasks/search", f.authed(f.searchTasks)).Methods(http.MethodGet)
	api.HandleFunc("/tasks", f.authed(f.listTasks)).Methods(http.MethodGet)
	api.HandleFunc("/tasks", f.authed(f.createTask)).Methods(http.MethodPost)
	api.HandleFunc("/tasks/{id}", f.authed(f.getTask)).Methods(http.MethodGet)
	api.HandleFunc("/tasks/{id}", f.authed(f.updateTask)).Methods(http.MethodPut)
	api.HandleFunc("/tasks/{id}", f.authed(f.deleteTask)).Methods(http.MethodDelete)
	api.HandleFunc("/tasks/{id}/complete", f.authed(f.completeTask)).Methods(http.MethodPatch)

	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.calls[req.Method+" "+req.URL.Path]++
		f.mu.Unlock()
		r.ServeHTTP(w, req)
	}))
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the API base URL.
func (f *FakeBackend) URL() string {
	return f.Server.URL + "/api"
}

// Calls returns how many requests hit "METHOD /api/path".
func (f *FakeBackend) Calls(methodAndPath string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[methodAndPath]
}

// TotalCalls returns the number of requests received.
func (f *FakeBackend) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// LastBody returns the last JSON body posted to "METHOD /api/path".
func (f *FakeBackend) LastBody(methodAndPath string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastBody[methodAndPath]
}

// SetRejectTokens makes every bearer check fail with 401.
func (f *FakeBackend) SetRejectTokens(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rejectTokens = v
}

// SetFailRefresh makes /auth/refresh-token answer 401.
func (f *FakeBackend) SetFailRefresh(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRefresh = v
}

// SetExpiresIn sets the lifetime of access tokens issued from now on.
func (f *FakeBackend) SetExpiresIn(seconds int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.expiresIn = seconds
}

// AddUser registers an account directly.
func (f *FakeBackend) AddUser(name, email, password string, roles ...string) session.User {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	if len(roles) == 0 {
		roles = []string{"user"}
	}
	u := session.User{ID: uuid.NewString(), Email: email, Name: name, Roles: roles}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[strings.ToLower(email)] = &fakeUser{user: u, hash: hash}
	return u
}

// SeedTask stores a task owned by userID and returns it.
func (f *FakeBackend) SeedTask(userID string, in service.TaskInput) service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertLocked(userID, in)
}

// Tasks returns a snapshot of userID's tasks.
func (f *FakeBackend) Tasks(userID string) []service.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []service.Task
	for _, t := range f.tasks {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// IssueToken returns a signed access token for userID expiring at exp.
func (f *FakeBackend) IssueToken(userID string, exp time.Time) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(f.secret)
	if err != nil {
		panic(err)
	}
	return signed
}

func (f *FakeBackend) insertLocked(userID string, in service.TaskInput) service.Task {
	now := service.NewTimestamp(time.Now().UTC())
	t := service.Task{
		ID:             uuid.NewString(),
		Title:          in.Title,
		Description:    in.Description,
		DueDate:        in.DueDate,
		Priority:       in.Priority,
		Status:         in.Status,
		EstimatedHours: in.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
		UserID:         userID,
	}
	if t.Priority == "" {
		t.Priority = service.PriorityMedium
	}
	if t.Status == "" {
		t.Status = service.StatusPending
	}
	f.tasks = append(f.tasks, t)
	return t
}

// issueLocked creates a token pair for u.
func (f *FakeBackend) issueLocked(u session.User) session.AuthResponse {
	refresh := uuid.NewString()
	f.refresh[refresh] = u.ID
	return session.AuthResponse{
		Token:        f.IssueToken(u.ID, time.Now().Add(time.Duration(f.expiresIn)*time.Second)),
		RefreshToken: refresh,
		User:         u,
		ExpiresIn:    f.expiresIn,
	}
}

func (f *FakeBackend) userByIDLocked(id string) (session.User, bool) {
	for _, u := range f.users {
		if u.user.ID == id {
			return u.user, true
		}
	}
	return session.User{}, false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeFail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"success": false, "message": msg, "statusCode": status})
}

func (f *FakeBackend) decode(r *http.Request, v any) error {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		return err
	}
	f.mu.Lock()
	f.lastBody[r.Method+" "+r.URL.Path] = string(raw)
	f.mu.Unlock()
	return json.Unmarshal(raw, v)
}

func (f *FakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds session.Credentials
	if err := f.decode(r, &creds); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[strings.ToLower(creds.Email)]
	if !ok || bcrypt.CompareHashAndPassword(u.hash, []byte(creds.Password)) != nil {
		writeFail(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	writeJSON(w, http.StatusOK, f.issueLocked(u.user))
}

func (f *FakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var reg session.Registration
	if err := f.decode(r, &reg); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if reg.Email == "" || reg.Password == "" {
		writeFail(w, http.StatusBadRequest, "Email and password are required")
		return
	}

	f.mu.Lock()
	_, exists := f.users[strings.ToLower(reg.Email)]
	f.mu.Unlock()
	if exists {
		writeFail(w, http.StatusConflict, "Email already registered")
		return
	}

	u := f.AddUser(reg.Name, reg.Email, reg.Password)

	f.mu.Lock()
	defer f.mu.Unlock()
	writeJSON(w, http.StatusCreated, f.issueLocked(u))
}

func (f *FakeBackend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := f.decode(r, &body); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.refresh[body.RefreshToken]
	if f.failRefresh || !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		return
	}
	delete(f.refresh, body.RefreshToken)

	u, ok := f.userByIDLocked(userID)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid refresh token"})
		return
	}
	writeJSON(w, http.StatusOK, f.issueLocked(u))
}

func (f *FakeBackend) logout(w http.ResponseWriter, r *http.Request, userID string) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked[token] = true
	for rt, uid := range f.refresh {
		if uid == userID {
			delete(f.refresh, rt)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// authed wraps a handler with bearer-token validation.
func (f *FakeBackend) authed(next func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeFail(w, http.StatusUnauthorized, "Authentication required")
			return
		}

		f.mu.Lock()
		reject := f.rejectTokens || f.revoked[raw]
		f.mu.Unlock()
		if reject {
			writeFail(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}

		var claims jwt.RegisteredClaims
		_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
			return f.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil {
			writeFail(w, http.StatusUnauthorized, "Token is invalid or expired")
			return
		}
		next(w, r, claims.Subject)
	}
}

func (f *FakeBackend) listTasks(w http.ResponseWriter, r *http.Request, userID string) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	if page < 1 {
		page = service.DefaultPage
	}
	if limit < 1 {
		limit = service.DefaultLimit
	}

	var matched []service.Task
	for _, t := range f.Tasks(userID) {
		if s := q.Get("status"); s != "" && string(t.Status) != s {
			continue
		}
		if p := q.Get("priority"); p != "" && string(t.Priority) != p {
			continue
		}
		matched = append(matched, t)
	}
	sortTasks(matched, q.Get("sort"))

	total := len(matched)
	start := (page - 1) * limit
	end := start + limit
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data": service.TaskPage{
			Data:       append([]service.Task{}, matched[start:end]...),
			Total:      total,
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
	})
}

var priorityRank = map[service.Priority]int{
	service.PriorityLow:    0,
	service.PriorityMedium: 1,
	service.PriorityHigh:   2,
}

func sortTasks(tasks []service.Task, sortBy string) {
	if sortBy == "" {
		return
	}
	field, dir, _ := strings.Cut(sortBy, ":")
	desc := strings.EqualFold(dir, "desc")

	timeOf := func(ts *service.Timestamp) time.Time {
		if ts == nil {
			return time.Time{}
		}
		return ts.Time
	}
	less := func(a, b service.Task) bool {
		switch field {
		case "title":
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		case "dueDate":
			return timeOf(a.DueDate).Before(timeOf(b.DueDate))
		case "priority":
			return priorityRank[a.Priority] < priorityRank[b.Priority]
		case "createdAt":
			return timeOf(a.CreatedAt).Before(timeOf(b.CreatedAt))
		}
		return false
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if desc {
			return less(tasks[j], tasks[i])
		}
		return less(tasks[i], tasks[j])
	})
}

func (f *FakeBackend) searchTasks(w http.ResponseWriter, r *http.Request, userID string) {
	query := strings.ToLower(r.URL.Query().Get("q"))
	status := r.URL.Query().Get("status")

	out := []service.Task{}
	for _, t := range f.Tasks(userID) {
		if status != "" && string(t.Status) != status {
			continue
		}
		if strings.Contains(strings.ToLower(t.Title), query) || strings.Contains(strings.ToLower(t.Description), query) {
			out = append(out, t)
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": out})
}

// findLocked returns the index of the task id owned by userID, or -1.
func (f *FakeBackend) findLocked(id, userID string) int {
	for i, t := range f.tasks {
		if t.ID == id && t.UserID == userID {
			return i
		}
	}
	return -1
}

func (f *FakeBackend) getTask(w http.ResponseWriter, r *http.Request, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.findLocked(mux.Vars(r)["id"], userID)
	if i < 0 {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": f.tasks[i]})
}

func (f *FakeBackend) createTask(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.TaskInput
	if err := f.decode(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(in.Title) == "" {
		writeFail(w, http.StatusBadRequest, "Title is required")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.insertLocked(userID, in)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": t})
}

func (f *FakeBackend) updateTask(w http.ResponseWriter, r *http.Request, userID string) {
	var in service.TaskInput
	if err := f.decode(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.findLocked(mux.Vars(r)["id"], userID)
	if i < 0 {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	t := &f.tasks[i]
	t.Title = in.Title
	t.Description = in.Description
	t.DueDate = in.DueDate
	t.EstimatedHours = in.EstimatedHours
	if in.Priority != "" {
		t.Priority = in.Priority
	}
	if in.Status != "" {
		t.Status = in.Status
	}
	t.UpdatedAt = service.NewTimestamp(time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": *t})
}

func (f *FakeBackend) completeTask(w http.ResponseWriter, r *http.Request, userID string) {
	var body struct {
		Status service.Status `json:"status"`
	}
	if err := f.decode(r, &body); err != nil {
		writeFail(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.findLocked(mux.Vars(r)["id"], userID)
	if i < 0 {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	f.tasks[i].Status = service.StatusCompleted
	f.tasks[i].UpdatedAt = service.NewTimestamp(time.Now().UTC())
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": f.tasks[i]})
}

func (f *FakeBackend) deleteTask(w http.ResponseWriter, r *http.Request, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.findLocked(mux.Vars(r)["id"], userID)
	if i < 0 {
		writeFail(w, http.StatusNotFound, "Task not found")
		return
	}
	f.tasks = append(f.tasks[:i], f.tasks[i+1:]...)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Task deleted"})
}
