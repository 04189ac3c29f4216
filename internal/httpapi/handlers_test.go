package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func jsonReq(t *testing.T, h http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *strings.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = strings.NewReader(string(raw))
	} else {
		rd = strings.NewReader("")
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestLoginAndSession(t *testing.T) {
	env := newTestEnv(t)

	rec := jsonReq(t, env.handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "admin@polisdesk.test", "password": fixturePassword})
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatal("login response missing token")
	}
	user, _ := body["user"].(map[string]any)
	if user["email"] != "admin@polisdesk.test" {
		t.Fatalf("login user payload: %v", user)
	}
	if _, hasHash := user["password_hash"]; hasHash {
		t.Fatal("password hash must never be serialized")
	}

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/auth/session", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("session: expected 200, got %d", rec.Code)
	}
	session := decodeBody(t, rec)
	sessUser, _ := session["user"].(map[string]any)
	if sessUser["id"] != "admin-1" {
		t.Fatalf("session user: %v", sessUser)
	}
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	env := newTestEnv(t)

	cases := []map[string]string{
		{"email": "admin@polisdesk.test", "password": "wrong-password"},
		{"email": "ghost@polisdesk.test", "password": fixturePassword},
	}
	var bodies []string
	for _, payload := range cases {
		rec := jsonReq(t, env.handler, http.MethodPost, "/api/auth/login", "", payload)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
		body := decodeBody(t, rec)
		if body["error"] != msgInvalidCredentials {
			t.Fatalf("unexpected error message: %v", body["error"])
		}
		bodies = append(bodies, fmt.Sprint(body["error"]))
	}
	// wrong password and unknown account are indistinguishable
	if bodies[0] != bodies[1] {
		t.Fatalf("credential failures must read identically: %q vs %q", bodies[0], bodies[1])
	}
}

func TestUnauthenticatedAndGarbageTokens(t *testing.T) {
	env := newTestEnv(t)

	for _, token := range []string{"", "not-a-jwt", "eyJhbGciOiJIUzI1NiJ9.bogus.sig"} {
		rec := jsonReq(t, env.handler, http.MethodGet, "/api/users", token, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %d", token, rec.Code)
		}
	}
}

func TestForgotPasswordUniformResponse(t *testing.T) {
	env := newTestEnv(t)

	existing := jsonReq(t, env.handler, http.MethodPost, "/api/auth/forgot-password", "",
		map[string]string{"email": "client1@polisdesk.test"})
	unknown := jsonReq(t, env.handler, http.MethodPost, "/api/auth/forgot-password", "",
		map[string]string{"email": "ghost@polisdesk.test"})

	if existing.Code != http.StatusOK || unknown.Code != http.StatusOK {
		t.Fatalf("expected 200/200, got %d/%d", existing.Code, unknown.Code)
	}
	if existing.Body.String() != unknown.Body.String() {
		t.Fatalf("responses differ:\n%s\n%s", existing.Body.String(), unknown.Body.String())
	}
	if env.resetStore.tokenFor("client1@polisdesk.test") == "" {
		t.Fatal("registered email should have a pending token")
	}
	if env.resetStore.tokenFor("ghost@polisdesk.test") != "" {
		t.Fatal("unknown email must not produce a token")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)

	rec := jsonReq(t, env.handler, http.MethodPost, "/api/auth/forgot-password", "",
		map[string]string{"email": "client1@polisdesk.test"})
	if rec.Code != http.StatusOK {
		t.Fatalf("forgot: expected 200, got %d", rec.Code)
	}
	token := env.resetStore.tokenFor("client1@polisdesk.test")
	if len(token) != 64 {
		t.Fatalf("expected 64-char token, got %d chars", len(token))
	}

	rec = jsonReq(t, env.handler, http.MethodPost, "/api/auth/reset-password", "",
		map[string]string{"token": token, "password": "fresh-password-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// the old password is dead, the new one works
	rec = jsonReq(t, env.handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "client1@polisdesk.test", "password": fixturePassword})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password: expected 401, got %d", rec.Code)
	}
	rec = jsonReq(t, env.handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "client1@polisdesk.test", "password": "fresh-password-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("new password: expected 200, got %d", rec.Code)
	}

	// replaying the link fails with the used-link message
	rec = jsonReq(t, env.handler, http.MethodPost, "/api/auth/reset-password", "",
		map[string]string{"token": token, "password": "another-password-1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("replay: expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != msgLinkUsed {
		t.Fatalf("replay message: %v", body["error"])
	}
}

func TestResetPasswordValidation(t *testing.T) {
	env := newTestEnv(t)

	rec := jsonReq(t, env.handler, http.MethodPost, "/api/auth/reset-password", "",
		map[string]string{"token": "deadbeef", "password": "short-enough"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bogus token: expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != msgInvalidLink {
		t.Fatalf("bogus token message: %v", body["error"])
	}

	rec = jsonReq(t, env.handler, http.MethodPost, "/api/auth/reset-password", "",
		map[string]string{"token": "deadbeef", "password": "abc"})
	if body := decodeBody(t, rec); body["error"] != msgPasswordTooShort {
		t.Fatalf("short password message: %v", body["error"])
	}
}

func TestFolderListingScopesOwnerParam(t *testing.T) {
	env := newTestEnv(t)
	agent1 := env.tokenAs(t, "agent-1")

	// client-1 belongs to agent-1, client-3 to agent-2
	rec := jsonReq(t, env.handler, http.MethodGet, "/api/folders?userId=client-1", agent1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("own client: expected 200, got %d", rec.Code)
	}

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/folders?userId=client-3", agent1, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign client: expected 403, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != msgForbidden {
		t.Fatalf("foreign client message: %v", body["error"])
	}

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/folders?userId=ghost", agent1, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing owner: expected 404, got %d", rec.Code)
	}
}

func TestSelfDeleteRejected(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenAs(t, "admin-1")

	rec := jsonReq(t, env.handler, http.MethodDelete, "/api/users/admin-1", admin, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != msgSelfDelete {
		t.Fatalf("unexpected message: %v", body["error"])
	}
	// still present
	rec = jsonReq(t, env.handler, http.MethodGet, "/api/users/admin-1", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("admin must survive the attempt, got %d", rec.Code)
	}
}

func TestRoleScenarioEndToEnd(t *testing.T) {
	env := newTestEnv(t)
	agent1 := env.tokenAs(t, "agent-1")
	agent2 := env.tokenAs(t, "agent-2")

	// the agent names a foreign agent_id; ownership is forced to the creator
	rec := jsonReq(t, env.handler, http.MethodPost, "/api/users", agent1, map[string]string{
		"email":    "newclient@polisdesk.test",
		"password": "client-pass-1",
		"name":     "Moshe Bar",
		"role":     "CLIENT",
		"agent_id": "agent-2",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create client: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	clientID, _ := created["id"].(string)
	if created["agent_id"] != "agent-1" {
		t.Fatalf("agent_id must be forced to the creator, got %v", created["agent_id"])
	}

	// visible in the creating agent's listing
	rec = jsonReq(t, env.handler, http.MethodGet, "/api/users", agent1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list users: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), clientID) {
		t.Fatal("new client missing from the agent's user list")
	}

	// agent creates a folder and uploads a record for the client
	rec = jsonReq(t, env.handler, http.MethodPost, "/api/folders", agent1,
		map[string]string{"user_id": clientID, "name": "פוליסות 2026"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create folder: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	folderID, _ := decodeBody(t, rec)["id"].(string)

	rec = jsonReq(t, env.handler, http.MethodPost, "/api/folders/"+folderID+"/files", agent1, map[string]any{
		"name": "policy.pdf", "mime_type": "application/pdf", "size_bytes": 2048, "storage_key": "k1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("add file: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	fileID, _ := decodeBody(t, rec)["id"].(string)

	// a disallowed type is refused
	rec = jsonReq(t, env.handler, http.MethodPost, "/api/folders/"+folderID+"/files", agent1, map[string]any{
		"name": "setup.exe", "mime_type": "application/x-msdownload", "size_bytes": 10, "storage_key": "k2",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("exe upload: expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != msgUnsupportedFile {
		t.Fatalf("exe upload message: %v", body["error"])
	}

	// the client logs in, reads everything, but cannot destroy it
	rec = jsonReq(t, env.handler, http.MethodPost, "/api/auth/login", "",
		map[string]string{"email": "newclient@polisdesk.test", "password": "client-pass-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("client login: expected 200, got %d", rec.Code)
	}
	clientToken, _ := decodeBody(t, rec)["token"].(string)

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/folders/"+folderID, clientToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("client reads folder: expected 200, got %d", rec.Code)
	}
	rec = jsonReq(t, env.handler, http.MethodGet, "/api/files/"+fileID, clientToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("client reads file: expected 200, got %d", rec.Code)
	}
	rec = jsonReq(t, env.handler, http.MethodDelete, "/api/folders/"+folderID, clientToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("client delete folder: expected 403, got %d", rec.Code)
	}
	rec = jsonReq(t, env.handler, http.MethodDelete, "/api/files/"+fileID, clientToken, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("client delete file: expected 403, got %d", rec.Code)
	}

	// another agent never sees it
	rec = jsonReq(t, env.handler, http.MethodGet, "/api/folders/"+folderID, agent2, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign agent: expected 403, got %d", rec.Code)
	}
}

func TestAgentDeleteOrphansAndReassign(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenAs(t, "admin-1")

	rec := jsonReq(t, env.handler, http.MethodDelete, "/api/users/agent-1", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete agent: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/users/orphaned", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("orphaned: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Avi Levi") || !strings.Contains(body, "client-1") {
		t.Fatalf("orphan group missing expected entries: %s", body)
	}

	rec = jsonReq(t, env.handler, http.MethodPost, "/api/users/reassign", admin,
		map[string]any{"client_ids": []string{"client-1"}, "agent_id": "agent-2"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reassign: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["reassigned"]; got != float64(1) {
		t.Fatalf("reassigned count: %v", got)
	}

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/users/client-1", admin, nil)
	moved := decodeBody(t, rec)
	if moved["agent_id"] != "agent-2" {
		t.Fatalf("client not moved: %v", moved["agent_id"])
	}
	if _, still := moved["former_agent_name"]; still {
		t.Fatal("former agent name must clear on reassignment")
	}
}

func TestDuplicateEmailConflict(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenAs(t, "admin-1")

	rec := jsonReq(t, env.handler, http.MethodPost, "/api/users", admin, map[string]string{
		"email": "avi@polisdesk.test", "password": "dup-pass-1", "name": "Dup", "role": "AGENT",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != msgDuplicateEmail {
		t.Fatalf("conflict message: %v", body["error"])
	}
}

func TestNotificationLifecycle(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenAs(t, "admin-1")
	client := env.tokenAs(t, "client-1")

	rec := jsonReq(t, env.handler, http.MethodPost, "/api/notifications", admin, map[string]string{
		"user_id": "client-1", "for_role": "CLIENT", "title": "מסמך חדש", "body": "הועלה מסמך לתיקייה שלך",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	noteID, _ := decodeBody(t, rec)["id"].(string)

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/notifications", client, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), noteID) {
		t.Fatalf("client listing should include the note: %d %s", rec.Code, rec.Body.String())
	}

	rec = jsonReq(t, env.handler, http.MethodPost, "/api/notifications/"+noteID+"/read", client, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("mark read: expected 200, got %d", rec.Code)
	}

	// a different client's note is out of reach
	other := env.tokenAs(t, "client-3")
	rec = jsonReq(t, env.handler, http.MethodPost, "/api/notifications/"+noteID+"/read", other, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("foreign mark read: expected 403, got %d", rec.Code)
	}
}

func TestActivitiesVisibleToAdmin(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenAs(t, "admin-1")

	jsonReq(t, env.handler, http.MethodPost, "/api/users", admin, map[string]string{
		"email": "trail@polisdesk.test", "password": "trail-pass-1", "name": "Trail", "role": "AGENT",
	})

	rec := jsonReq(t, env.handler, http.MethodGet, "/api/activities?limit=10", admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("activities: expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "user.created") {
		t.Fatalf("expected a user.created entry: %s", rec.Body.String())
	}
}

func TestResetSystemEndpoint(t *testing.T) {
	env := newTestEnv(t)
	admin := env.tokenAs(t, "admin-1")
	agent := env.tokenAs(t, "agent-1")

	rec := jsonReq(t, env.handler, http.MethodPost, "/api/admin/reset-system", agent,
		map[string]string{"confirm": "RESET_PRODUCTION_DATA"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("non-admin: expected 403, got %d", rec.Code)
	}

	rec = jsonReq(t, env.handler, http.MethodPost, "/api/admin/reset-system", admin,
		map[string]string{"confirm": "reset_production_data"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad confirm: expected 400, got %d", rec.Code)
	}
	if body := decodeBody(t, rec); body["error"] != msgBadConfirm {
		t.Fatalf("bad confirm message: %v", body["error"])
	}

	rec = jsonReq(t, env.handler, http.MethodPost, "/api/admin/reset-system", admin,
		map[string]string{"confirm": "RESET_PRODUCTION_DATA"})
	if rec.Code != http.StatusOK {
		t.Fatalf("reset: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = jsonReq(t, env.handler, http.MethodGet, "/api/users", admin, nil)
	body := decodeBody(t, rec)
	users, _ := body["users"].([]any)
	if len(users) != 1 {
		t.Fatalf("expected only the seed admin to survive, got %d users", len(users))
	}
}

func TestUnknownRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := jsonReq(t, env.handler, http.MethodGet, "/api/unknown", env.tokenAs(t, "admin-1"), nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := jsonReq(t, env.handler, http.MethodGet, "/api/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := decodeBody(t, rec)
	if body["service"] != "polisdesk-api" || body["version"] != "test" {
		t.Fatalf("unexpected health payload: %v", body)
	}
	if _, ok := body["status"]; !ok {
		t.Fatal("health payload missing status")
	}

	req := httptest.NewRequest(http.MethodPost, "/api/health", strings.NewReader(""))
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
	if got := rec.Header().Get("Allow"); got != http.MethodGet {
		t.Fatalf("Allow header: %q", got)
	}
}
