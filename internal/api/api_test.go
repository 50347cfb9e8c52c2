package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/shibalab/souko/internal/db"
	"github.com/shibalab/souko/internal/model"
	"github.com/shibalab/souko/internal/qr"
	"github.com/shibalab/souko/internal/store"
)

const (
	testJWTSecret = "test-secret"
	testBaseURL   = "http://souko.test"
	testPassword  = "password123"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	server *httptest.Server
	db     *sql.DB
	clock  *testClock
	admin  string
}

func setupTestServer(t *testing.T) *testEnv {
	t.Helper()
	database := db.NewTestDB(t)
	clk := &testClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)}

	router := NewRouter(Options{
		DB:        database,
		JWTSecret: testJWTSecret,
		Clock:     clk,
		BaseURL:   testBaseURL,
	})
	server := httptest.NewServer(LoggingMiddleware(router))
	t.Cleanup(server.Close)

	env := &testEnv{server: server, db: database, clock: clk}
	env.createUser(t, "admin@example.com", "Admin", model.RoleAdmin)
	env.admin = env.login(t, "admin@example.com")
	return env
}

func (e *testEnv) createUser(t *testing.T, email, name, role string) *model.User {
	t.Helper()
	hash, _ := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	user, err := store.CreateUser(context.Background(), e.db, email, name, string(hash), role)
	if err != nil {
		t.Fatalf("creating user %s: %v", email, err)
	}
	return user
}

func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	var resp struct {
		Token string `json:"token"`
	}
	status := e.do(t, "POST", "/api/auth/login", "", map[string]string{"email": email, "password": testPassword}, &resp)
	if status != http.StatusOK {
		t.Fatalf("login %s failed: %d", email, status)
	}
	if resp.Token == "" {
		t.Fatal("empty token from login")
	}
	return resp.Token
}

func (e *testEnv) member(t *testing.T, email string) string {
	t.Helper()
	e.createUser(t, email, email, model.RoleMember)
	return e.login(t, email)
}

func authRequest(method, url, token string, body any) (*http.Request, error) {
	var bodyReader *bytes.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		bodyReader = bytes.NewReader(data)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, bodyReader)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends a JSON request and decodes the response into out when non-nil.
func (e *testEnv) do(t *testing.T, method, path, token string, body, out any) int {
	t.Helper()
	req, err := authRequest(method, e.server.URL+path, token, body)
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return resp.StatusCode
}

func (e *testEnv) createItem(t *testing.T, name string, itemType model.ItemType, quantity int) *model.Item {
	t.Helper()
	var item model.Item
	status := e.do(t, "POST", "/api/items", e.admin, map[string]any{
		"name":     name,
		"type":     itemType,
		"quantity": quantity,
	}, &item)
	if status != http.StatusCreated {
		t.Fatalf("creating item %s: %d", name, status)
	}
	return &item
}

func (e *testEnv) getItem(t *testing.T, id int64) *model.Item {
	t.Helper()
	var item model.Item
	if status := e.do(t, "GET", fmt.Sprintf("/api/items/%d", id), e.admin, nil, &item); status != http.StatusOK {
		t.Fatalf("getting item %d: %d", id, status)
	}
	return &item
}

func TestLoginEndpoint(t *testing.T) {
	env := setupTestServer(t)

	status := env.do(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "admin@example.com", "password": "wrong-password",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for bad password, got %d", status)
	}

	var resp struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	status = env.do(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "ADMIN@example.com", "password": testPassword,
	}, &resp)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for mixed-case email, got %d", status)
	}
	if resp.User.Role != model.RoleAdmin {
		t.Errorf("expected admin user in response, got %q", resp.User.Role)
	}
}

func TestUnauthenticatedAccess(t *testing.T) {
	env := setupTestServer(t)

	for _, path := range []string{"/api/items", "/api/dashboard", "/api/rentals/me"} {
		if status := env.do(t, "GET", path, "", nil, nil); status != http.StatusUnauthorized {
			t.Errorf("expected 401 for %s, got %d", path, status)
		}
	}
	if status := env.do(t, "GET", "/api/items", "garbage", nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", status)
	}
}

func TestRoleBasedAccess(t *testing.T) {
	env := setupTestServer(t)
	userToken := env.member(t, "user1@example.com")

	status := env.do(t, "POST", "/api/items", userToken, map[string]any{"name": "Test", "type": "COUNTABLE"}, nil)
	if status != http.StatusForbidden {
		t.Errorf("expected 403 for member creating item, got %d", status)
	}

	if status := env.do(t, "GET", "/api/users", userToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for member accessing users, got %d", status)
	}
	if status := env.do(t, "GET", "/api/rentals", userToken, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for member listing all rentals, got %d", status)
	}
	if status := env.do(t, "GET", "/api/items", userToken, nil, nil); status != http.StatusOK {
		t.Errorf("expected 200 for member listing items, got %d", status)
	}
}

func TestDemotionAppliesToExistingToken(t *testing.T) {
	env := setupTestServer(t)
	other := env.createUser(t, "second@example.com", "Second", model.RoleAdmin)
	token := env.login(t, "second@example.com")

	status := env.do(t, "PUT", fmt.Sprintf("/api/users/%d", other.ID), env.admin, map[string]string{"role": model.RoleMember}, nil)
	if status != http.StatusOK {
		t.Fatalf("demoting user: %d", status)
	}

	if status := env.do(t, "GET", "/api/users", token, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 after demotion, got %d", status)
	}
}

func TestDeletedUserTokenRejected(t *testing.T) {
	env := setupTestServer(t)
	token := env.member(t, "gone@example.com")
	user, _ := store.GetUserByEmail(context.Background(), env.db, "gone@example.com")

	if status := env.do(t, "DELETE", fmt.Sprintf("/api/users/%d", user.ID), env.admin, nil, nil); status != http.StatusOK {
		t.Fatalf("deleting user: %d", status)
	}
	if status := env.do(t, "GET", "/api/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 for deleted user's token, got %d", status)
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestServer(t)
	token := env.member(t, "bye@example.com")

	if status := env.do(t, "POST", "/api/auth/logout", token, nil, nil); status != http.StatusOK {
		t.Fatalf("logout: %d", status)
	}
	if status := env.do(t, "GET", "/api/me", token, nil, nil); status != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", status)
	}
}

func TestChangePassword(t *testing.T) {
	env := setupTestServer(t)
	token := env.member(t, "pw@example.com")

	status := env.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"current_password": testPassword, "new_password": "short",
	}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for short password, got %d", status)
	}

	status = env.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"current_password": "wrong-password", "new_password": "another-password",
	}, nil)
	if status != http.StatusUnauthorized {
		t.Errorf("expected 401 for wrong current password, got %d", status)
	}

	status = env.do(t, "PUT", "/api/auth/password", token, map[string]string{
		"current_password": testPassword, "new_password": "another-password",
	}, nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}

	status = env.do(t, "POST", "/api/auth/login", "", map[string]string{
		"email": "pw@example.com", "password": "another-password",
	}, nil)
	if status != http.StatusOK {
		t.Errorf("expected login with new password to succeed, got %d", status)
	}
}

func TestUsersAPI(t *testing.T) {
	env := setupTestServer(t)

	var created model.User
	status := env.do(t, "POST", "/api/users", env.admin, map[string]string{
		"email": "new@example.com", "name": "New", "password": testPassword,
	}, &created)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if created.Role != model.RoleMember {
		t.Errorf("expected default role member, got %q", created.Role)
	}

	status = env.do(t, "POST", "/api/users", env.admin, map[string]string{
		"email": "NEW@example.com", "name": "Dup", "password": testPassword,
	}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate email, got %d", status)
	}

	admin, _ := store.GetUserByEmail(context.Background(), env.db, "admin@example.com")
	if status := env.do(t, "DELETE", fmt.Sprintf("/api/users/%d", admin.ID), env.admin, nil, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for self-delete, got %d", status)
	}
}

func TestItemsAPIFlow(t *testing.T) {
	env := setupTestServer(t)

	var category model.Category
	if status := env.do(t, "POST", "/api/categories", env.admin, map[string]string{"name": "Tools"}, &category); status != http.StatusCreated {
		t.Fatalf("creating category: %d", status)
	}

	var item model.Item
	status := env.do(t, "POST", "/api/items", env.admin, map[string]any{
		"name":        "Drill",
		"description": "Cordless",
		"type":        "unique",
		"category_id": category.ID,
	}, &item)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if item.Quantity != 1 || item.Type != model.ItemUnique {
		t.Errorf("expected UNIQUE item with quantity 1, got %s/%d", item.Type, item.Quantity)
	}
	if item.QRCodeURL != qr.ItemURL(testBaseURL, item.ID) {
		t.Errorf("unexpected qr reference %q", item.QRCodeURL)
	}

	status = env.do(t, "POST", "/api/items", env.admin, map[string]any{"name": "Bad", "type": "UNIQUE", "quantity": 2}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for unique item with quantity 2, got %d", status)
	}
	status = env.do(t, "POST", "/api/items", env.admin, map[string]any{"name": "Bad", "type": "BULK"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown type, got %d", status)
	}

	var items []model.Item
	if status := env.do(t, "GET", "/api/items?q=tool", env.admin, nil, &items); status != http.StatusOK {
		t.Fatalf("listing items: %d", status)
	}
	if len(items) != 1 || items[0].CategoryName != "Tools" {
		t.Errorf("expected search by category name to find the drill, got %+v", items)
	}

	if status := env.do(t, "DELETE", fmt.Sprintf("/api/categories/%d", category.ID), env.admin, nil, nil); status != http.StatusConflict {
		t.Errorf("expected 409 deleting referenced category, got %d", status)
	}

	if status := env.do(t, "DELETE", fmt.Sprintf("/api/items/%d", item.ID), env.admin, nil, nil); status != http.StatusOK {
		t.Fatalf("deleting item: %d", status)
	}
	if status := env.do(t, "GET", fmt.Sprintf("/api/items/%d", item.ID), env.admin, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for deleted item, got %d", status)
	}
}

func TestUniqueRentalFlow(t *testing.T) {
	env := setupTestServer(t)
	alice := env.member(t, "alice@example.com")
	bob := env.member(t, "bob@example.com")
	item := env.createItem(t, "Camera", model.ItemUnique, 1)

	var rental model.Rental
	status := env.do(t, "POST", "/api/rentals", alice, map[string]any{"item_id": item.ID}, &rental)
	if status != http.StatusCreated {
		t.Fatalf("expected 201, got %d", status)
	}
	if rental.Quantity != 1 || rental.ReturnedAt != nil {
		t.Errorf("unexpected rental %+v", rental)
	}
	if want := env.clock.Now().Add(14 * 24 * time.Hour); !rental.DueDate.Equal(want) {
		t.Errorf("expected default due date %v, got %v", want, rental.DueDate)
	}
	if got := env.getItem(t, item.ID).Quantity; got != 0 {
		t.Errorf("expected quantity 0 while on loan, got %d", got)
	}

	var conflict errorResponse
	status = env.do(t, "POST", "/api/rentals", bob, map[string]any{"item_id": item.ID}, &conflict)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for second loan, got %d", status)
	}
	if conflict.Code != "conflict" || conflict.Available == nil || *conflict.Available != 0 {
		t.Errorf("expected conflict with available 0, got %+v", conflict)
	}

	returnPath := fmt.Sprintf("/api/rentals/%d/return", rental.ID)
	if status := env.do(t, "PUT", returnPath, bob, nil, nil); status != http.StatusForbidden {
		t.Errorf("expected 403 for returning someone else's rental, got %d", status)
	}

	var returned model.Rental
	if status := env.do(t, "PUT", returnPath, alice, nil, &returned); status != http.StatusOK {
		t.Fatalf("expected 200 on return, got %d", status)
	}
	if returned.ReturnedAt == nil {
		t.Error("expected returned_at to be set")
	}
	if got := env.getItem(t, item.ID).Quantity; got != 1 {
		t.Errorf("expected quantity 1 after return, got %d", got)
	}

	if status := env.do(t, "PUT", returnPath, alice, nil, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for double return, got %d", status)
	}
	if status := env.do(t, "PUT", "/api/rentals/9999/return", alice, nil, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for missing rental, got %d", status)
	}
}

func TestStockRentalRules(t *testing.T) {
	env := setupTestServer(t)
	token := env.member(t, "carol@example.com")
	cables := env.createItem(t, "Cable", model.ItemCountable, 3)
	tape := env.createItem(t, "Tape", model.ItemConsumable, 5)

	var conflict errorResponse
	status := env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": cables.ID, "quantity": 5}, &conflict)
	if status != http.StatusConflict {
		t.Fatalf("expected 409 for insufficient stock, got %d", status)
	}
	if conflict.Available == nil || *conflict.Available != 3 {
		t.Errorf("expected available 3, got %+v", conflict)
	}

	var cableRental, tapeRental model.Rental
	env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": cables.ID, "quantity": 2}, &cableRental)
	env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": tape.ID, "quantity": 2}, &tapeRental)
	env.do(t, "PUT", fmt.Sprintf("/api/rentals/%d/return", cableRental.ID), token, nil, nil)
	env.do(t, "PUT", fmt.Sprintf("/api/rentals/%d/return", tapeRental.ID), token, nil, nil)

	if got := env.getItem(t, cables.ID).Quantity; got != 3 {
		t.Errorf("countable stock should be restored to 3, got %d", got)
	}
	if got := env.getItem(t, tape.ID).Quantity; got != 3 {
		t.Errorf("consumable stock should stay at 3, got %d", got)
	}

	for _, qty := range []int{0, -1} {
		status := env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": cables.ID, "quantity": qty}, nil)
		if status != http.StatusBadRequest {
			t.Errorf("expected 400 for quantity %d, got %d", qty, status)
		}
	}
}

func TestRentalDueDate(t *testing.T) {
	env := setupTestServer(t)
	token := env.member(t, "dave@example.com")
	item := env.createItem(t, "Ladder", model.ItemCountable, 4)

	past := env.clock.Now().Add(-time.Hour).Format(time.RFC3339)
	status := env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": item.ID, "due_date": past}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for past due date, got %d", status)
	}

	status = env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": item.ID, "due_date": "next week"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed due date, got %d", status)
	}

	status = env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": 9999, "due_date": "junk"}, nil)
	if status != http.StatusNotFound {
		t.Errorf("expected 404 for missing item before due date check, got %d", status)
	}

	var rental model.Rental
	status = env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": item.ID, "due_date": "2026-03-10"}, &rental)
	if status != http.StatusCreated {
		t.Fatalf("expected 201 for date-only due date, got %d", status)
	}
	if rental.DueDate.Format(time.DateOnly) != "2026-03-10" {
		t.Errorf("unexpected due date %v", rental.DueDate)
	}

	if got := env.getItem(t, item.ID).Quantity; got != 3 {
		t.Errorf("failed loans must not change stock, got %d", got)
	}
}

func TestItemUpdateAndStock(t *testing.T) {
	env := setupTestServer(t)
	token := env.member(t, "erin@example.com")
	item := env.createItem(t, "Chair", model.ItemCountable, 2)
	path := fmt.Sprintf("/api/items/%d", item.ID)

	var rental model.Rental
	env.do(t, "POST", "/api/rentals", token, map[string]any{"item_id": item.ID}, &rental)

	status := env.do(t, "PUT", path, env.admin, map[string]any{"name": "Chair", "type": "CONSUMABLE"}, nil)
	if status != http.StatusConflict {
		t.Errorf("expected 409 for type change with active rental, got %d", status)
	}

	var adjusted model.Item
	status = env.do(t, "POST", path+"/stock", env.admin, map[string]int{"delta": 4}, &adjusted)
	if status != http.StatusOK || adjusted.Quantity != 5 {
		t.Errorf("expected quantity 5 after +4, got %d (%d)", adjusted.Quantity, status)
	}
	if status := env.do(t, "POST", path+"/stock", env.admin, map[string]int{"delta": -6}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 for negative stock, got %d", status)
	}

	if status := env.do(t, "DELETE", path, env.admin, nil, nil); status != http.StatusConflict {
		t.Errorf("expected 409 deleting item with active rental, got %d", status)
	}

	env.do(t, "PUT", fmt.Sprintf("/api/rentals/%d/return", rental.ID), token, nil, nil)

	var updated model.Item
	status = env.do(t, "PUT", path, env.admin, map[string]any{"name": "Stool", "type": "CONSUMABLE"}, &updated)
	if status != http.StatusOK {
		t.Fatalf("expected 200 for type change, got %d", status)
	}
	if updated.Name != "Stool" || updated.Type != model.ItemConsumable || updated.Quantity != 6 {
		t.Errorf("unexpected item after update %+v", updated)
	}

	status = env.do(t, "PUT", path, env.admin, map[string]any{"name": "Stool", "type": "UNIQUE"}, nil)
	if status != http.StatusBadRequest {
		t.Errorf("expected 400 for UNIQUE with quantity 6, got %d", status)
	}
}

func TestBoxMoveAndScan(t *testing.T) {
	env := setupTestServer(t)

	var north, south model.Warehouse
	env.do(t, "POST", "/api/warehouses", env.admin, map[string]string{"name": "North"}, &north)
	env.do(t, "POST", "/api/warehouses", env.admin, map[string]string{"name": "South"}, &south)
	if status := env.do(t, "POST", "/api/warehouses", env.admin, map[string]string{"name": "north"}, nil); status != http.StatusConflict {
		t.Errorf("expected 409 for duplicate warehouse name, got %d", status)
	}

	var box model.Box
	status := env.do(t, "POST", "/api/boxes", env.admin, map[string]any{"name": "B-1", "warehouse_id": north.ID}, &box)
	if status != http.StatusCreated {
		t.Fatalf("creating box: %d", status)
	}
	if box.QRCodeURL != qr.BoxURL(testBaseURL, box.ID) {
		t.Errorf("unexpected box qr reference %q", box.QRCodeURL)
	}

	movePath := fmt.Sprintf("/api/boxes/%d/move", box.ID)
	var movement model.Movement
	if status := env.do(t, "POST", movePath, env.admin, map[string]int64{"warehouse_id": south.ID}, &movement); status != http.StatusOK {
		t.Fatalf("moving box: %d", status)
	}
	if movement.FromWarehouseID != north.ID || movement.ToWarehouseID != south.ID {
		t.Errorf("unexpected movement %+v", movement)
	}
	if status := env.do(t, "POST", movePath, env.admin, map[string]int64{"warehouse_id": south.ID}, nil); status != http.StatusBadRequest {
		t.Errorf("expected 400 moving to the same warehouse, got %d", status)
	}
	if status := env.do(t, "POST", movePath, env.admin, map[string]int64{"warehouse_id": 999}, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for missing warehouse, got %d", status)
	}

	var movements []model.Movement
	env.do(t, "GET", "/api/movements", env.admin, nil, &movements)
	if len(movements) != 1 || movements[0].BoxName != "B-1" {
		t.Errorf("expected one movement for B-1, got %+v", movements)
	}

	if status := env.do(t, "DELETE", fmt.Sprintf("/api/warehouses/%d", north.ID), env.admin, nil, nil); status != http.StatusConflict {
		t.Errorf("expected 409 deleting warehouse in movement history, got %d", status)
	}

	var scanned scanResponse
	if status := env.do(t, "POST", "/api/scan", env.admin, map[string]string{"data": box.QRCodeURL}, &scanned); status != http.StatusOK {
		t.Fatalf("scanning box: %d", status)
	}
	if scanned.Type != qr.KindBox || scanned.Box == nil || scanned.Box.WarehouseID != south.ID {
		t.Errorf("unexpected scan result %+v", scanned)
	}

	item := env.createItem(t, "Hammer", model.ItemCountable, 1)
	scanned = scanResponse{}
	env.do(t, "POST", "/api/scan", env.admin, map[string]string{"data": item.QRCodeURL}, &scanned)
	if scanned.Type != qr.KindItem || scanned.Item == nil || scanned.Item.ID != item.ID {
		t.Errorf("unexpected scan result %+v", scanned)
	}

	if status := env.do(t, "POST", "/api/scan", env.admin, map[string]string{"data": "hello"}, nil); status != http.StatusNotFound {
		t.Errorf("expected 404 for unknown code, got %d", status)
	}
}

func TestDashboard(t *testing.T) {
	env := setupTestServer(t)
	token := env.member(t, "frank@example.com")
	soon := env.createItem(t, "Projector", model.ItemUnique, 1)
	later := env.createItem(t, "Tent", model.ItemCountable, 2)

	start := env.clock.Now()
	env.do(t, "POST", "/api/rentals", token, map[string]any{
		"item_id": soon.ID, "due_date": start.Add(24 * time.Hour).Format(time.RFC3339),
	}, nil)
	env.do(t, "POST", "/api/rentals", token, map[string]any{
		"item_id": later.ID, "due_date": start.Add(60 * 24 * time.Hour).Format(time.RFC3339),
	}, nil)

	env.clock.Advance(30 * 24 * time.Hour)
	token = env.login(t, "frank@example.com")

	var dash dashboardResponse
	if status := env.do(t, "GET", "/api/dashboard", token, nil, &dash); status != http.StatusOK {
		t.Fatalf("dashboard: %d", status)
	}
	if len(dash.ActiveRentals) != 2 {
		t.Errorf("expected 2 active rentals, got %d", len(dash.ActiveRentals))
	}
	if len(dash.OverdueRentals) != 1 || dash.OverdueRentals[0].ItemID != soon.ID {
		t.Errorf("expected the projector to be overdue, got %+v", dash.OverdueRentals)
	}
	if len(dash.Notifications) != 2 {
		t.Fatalf("expected 2 notifications, got %+v", dash.Notifications)
	}
	kinds := map[int64]string{}
	for _, n := range dash.Notifications {
		kinds[n.ItemID] = n.Type
	}
	if kinds[soon.ID] != model.NotificationOverdue || kinds[later.ID] != model.NotificationLongRental {
		t.Errorf("unexpected notification kinds %v", kinds)
	}
	if dash.Totals != nil || dash.RecentRentals != nil {
		t.Error("members should not see admin totals")
	}

	admin := env.login(t, "admin@example.com")
	dash = dashboardResponse{}
	env.do(t, "GET", "/api/dashboard", admin, nil, &dash)
	if dash.Totals == nil {
		t.Fatal("expected totals for admin")
	}
	if dash.Totals.Items != 2 || dash.Totals.ActiveRentals != 2 || dash.Totals.OverdueRentals != 1 {
		t.Errorf("unexpected totals %+v", *dash.Totals)
	}
	if len(dash.RecentRentals) != 2 {
		t.Errorf("expected 2 recent rentals, got %d", len(dash.RecentRentals))
	}
}

func TestHealthAndRequestID(t *testing.T) {
	env := setupTestServer(t)

	resp, err := http.Get(env.server.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
	if resp.Header.Get(RequestIDHeader) == "" {
		t.Error("expected a generated request ID")
	}

	req, _ := authRequest("GET", env.server.URL+"/api/health", "", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if got := resp.Header.Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("expected request ID to be echoed, got %q", got)
	}
}
