package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"taskline/internal/db"
	"taskline/internal/journal"
	"taskline/internal/migrate"
	"taskline/internal/session"
)

type testServer struct {
	URL    string
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

type testOptions struct {
	secret    string
	noJournal bool
}

func newTestServer(t *testing.T, opts testOptions) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		t.Fatalf("ensure workspace: %v", err)
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	var jr *journal.Journal
	sopts := session.Options{}
	if !opts.noJournal {
		j := journal.New(conn)
		jr = &j
		sopts.Recorder = j
	}
	sess := session.New(sopts)
	sess.Setup(context.Background(), filepath.Join(workspace, ".taskline", "tasks.txt"))
	if resp := sess.Greet(); resp.IsError {
		t.Fatalf("greet: %s", resp.Text)
	}
	handler, err := New(Config{Session: sess, Journal: jr, BasePath: "/v0", Auth: AuthConfig{JWTSecret: opts.secret}})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func input(t *testing.T, srv *testServer, text string) ResponseBody {
	t.Helper()
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/input", map[string]any{"text": text}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("input %q status %d: %s", text, res.StatusCode, string(data))
	}
	var out ResponseBody
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	return out
}

func TestHealth(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK || !strings.Contains(string(data), `"ok"`) {
		t.Fatalf("health: %d %s", res.StatusCode, string(data))
	}
}

func TestInputAndTasks(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()

	out := input(t, srv, "todo read book")
	if out.IsError || !out.IsActive || !strings.Contains(out.Text, "[T][ ] read book") {
		t.Fatalf("unexpected todo response %+v", out)
	}
	input(t, srv, "deadline return book /by 12/12/1212 1212")
	input(t, srv, "done 1")

	out = input(t, srv, "done 9")
	if !out.IsError || !out.IsActive {
		t.Fatalf("expected command error, got %+v", out)
	}

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("tasks: %d %s", res.StatusCode, string(data))
	}
	var list TaskListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		t.Fatalf("unmarshal tasks: %v", err)
	}
	if len(list.Items) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(list.Items))
	}
	if got := list.Items[0]; got.ID != 1 || got.Kind != "T" || !got.Done {
		t.Fatalf("unexpected first task %+v", got)
	}
	if got := list.Items[1]; got.Time != "12th of DECEMBER 1212, 12:12pm" || got.Text != "[D][ ] return book (by: 12th of DECEMBER 1212, 12:12pm)" {
		t.Fatalf("unexpected second task %+v", got)
	}
}

func TestInputAfterExitConflicts(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()

	out := input(t, srv, "bye")
	if out.IsActive || out.Text != "GoodBye! Hope to see you again!" {
		t.Fatalf("unexpected bye response %+v", out)
	}
	res, data := doJSON(t, srv.Client(), http.MethodPost, srv.URL+"/v0/input", map[string]any{"text": "list"}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected conflict, got %d %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error apiErrorBody `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "session_inactive" {
		t.Fatalf("unexpected code %q", envelope.Error.Code)
	}
}

func TestEvents(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	input(t, srv, "todo a")
	input(t, srv, "nonsense")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?limit=10", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	var events EventListResponse
	if err := json.Unmarshal(data, &events); err != nil {
		t.Fatalf("unmarshal events: %v", err)
	}
	// setup + two commands, newest first
	if len(events.Items) != 3 {
		t.Fatalf("expected 3 events, got %d", len(events.Items))
	}
	if e := events.Items[0]; e.Input != "nonsense" || !e.IsError {
		t.Fatalf("unexpected newest event %+v", e)
	}
	if e := events.Items[2]; e.Type != journal.TypeSetup || e.Payload["fatal"] != false {
		t.Fatalf("unexpected setup event %+v", e)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?errors_only=true", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("events: %d %s", res.StatusCode, string(data))
	}
	events = EventListResponse{}
	_ = json.Unmarshal(data, &events)
	// the setup event is an error too: the save file did not exist yet
	if len(events.Items) != 2 {
		t.Fatalf("expected 2 error events, got %d", len(events.Items))
	}
}

func TestEventsWithoutJournal(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{noJournal: true})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events", nil, nil)
	if res.StatusCode != http.StatusNotFound || !strings.Contains(string(data), "journal_disabled") {
		t.Fatalf("expected journal_disabled, got %d %s", res.StatusCode, string(data))
	}
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestBearerAuth(t *testing.T) {
	const secret = "s3cret"
	srv, cleanup := newTestServer(t, testOptions{secret: secret})
	defer cleanup()
	client := srv.Client()

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v0/health", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("health should stay open, got %d", res.StatusCode)
	}
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, nil)
	if res.StatusCode != http.StatusUnauthorized || !strings.Contains(string(data), "authentication required") {
		t.Fatalf("expected 401, got %d %s", res.StatusCode, string(data))
	}
	bad := signToken(t, "other", "alice")
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"Authorization": "Bearer " + bad})
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", res.StatusCode)
	}
	good := signToken(t, secret, "alice")
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v0/tasks", nil, map[string]string{"Authorization": "Bearer " + good})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d %s", res.StatusCode, string(data))
	}
}

func TestAuthenticateJWTRequiresSubject(t *testing.T) {
	token := signToken(t, "k", "")
	if _, err := authenticateJWT(token, "k"); err == nil {
		t.Fatalf("expected error for token without subject")
	}
	p, err := authenticateJWT(signToken(t, "k", "bob"), "k")
	if err != nil || p.Subject != "bob" || p.Source != "jwt" {
		t.Fatalf("unexpected principal %+v %v", p, err)
	}
}

func TestGetTask(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	input(t, srv, "event book club /at friday")

	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/1", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get task: %d %s", res.StatusCode, string(data))
	}
	var got TaskResponse
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal task: %v", err)
	}
	if got.Text != "[E][ ] book club (at: friday)" {
		t.Fatalf("unexpected task %+v", got)
	}

	res, data = doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/tasks/2", nil, nil)
	if res.StatusCode != http.StatusNotFound || !strings.Contains(string(data), `"not_found"`) {
		t.Fatalf("expected 404, got %d %s", res.StatusCode, string(data))
	}
}

func TestOpenAPIDocument(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{secret: "k"})
	defer cleanup()
	res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi: %d %s", res.StatusCode, string(data))
	}
	var doc struct {
		Paths      map[string]any `json:"paths"`
		Components struct {
			SecuritySchemes map[string]any `json:"securitySchemes"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	for _, p := range []string{"/v0/input", "/v0/tasks", "/v0/tasks/{id}", "/v0/events", "/v0/health"} {
		if _, ok := doc.Paths[p]; !ok {
			t.Fatalf("missing path %s in %v", p, doc.Paths)
		}
	}
	if _, ok := doc.Components.SecuritySchemes["bearerAuth"]; !ok {
		t.Fatalf("bearer scheme not documented")
	}
}

func TestEventsRejectsZeroLimit(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	for _, q := range []string{"limit=0", "limit=-1", "limit=501"} {
		res, data := doJSON(t, srv.Client(), http.MethodGet, srv.URL+"/v0/events?"+q, nil, nil)
		if res.StatusCode != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d %s", q, res.StatusCode, string(data))
		}
	}
}

func TestOpenAPIConcurrentFirstRequests(t *testing.T) {
	srv, cleanup := newTestServer(t, testOptions{})
	defer cleanup()
	const n = 8
	bodies := make(chan string, n)
	for i := 0; i < n; i++ {
		go func() {
			res, err := srv.Client().Get(srv.URL + "/v0/openapi.json")
			if err != nil {
				bodies <- "error: " + err.Error()
				return
			}
			defer res.Body.Close()
			data, _ := io.ReadAll(res.Body)
			bodies <- string(data)
		}()
	}
	first := <-bodies
	if !strings.Contains(first, `"/v0/input"`) {
		t.Fatalf("unexpected document %s", first)
	}
	for i := 1; i < n; i++ {
		if got := <-bodies; got != first {
			t.Fatalf("documents differ between requests")
		}
	}
}
