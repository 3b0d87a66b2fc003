package http

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/Armin-FalDiS/availability-bot/internal/api/http/handlers"
	"github.com/Armin-FalDiS/availability-bot/internal/auth"
	"github.com/Armin-FalDiS/availability-bot/internal/config"
	"github.com/Armin-FalDiS/availability-bot/internal/domain"
	"github.com/Armin-FalDiS/availability-bot/internal/observability"
	"github.com/Armin-FalDiS/availability-bot/internal/persistence"
	"github.com/Armin-FalDiS/availability-bot/internal/service"
)

const testSecret = "abc"

type memUserRepo struct {
	users map[int64]*domain.User
}

func (m *memUserRepo) GetOrCreate(_ context.Context, id int64, displayName string) (*domain.User, error) {
	if u, ok := m.users[id]; ok {
		u.DisplayName = displayName
		return u, nil
	}
	u := &domain.User{ID: id, DisplayName: displayName, CreatedAt: time.Now()}
	m.users[id] = u
	return u, nil
}

type memSlotRepo struct {
	users  *memUserRepo
	rows   map[string]domain.AvailabilitySlot
	nextID int64
}

func key(userID int64, date string, hour int) string {
	return fmt.Sprintf("%d|%s|%d", userID, date, hour)
}

func (m *memSlotRepo) Range(_ context.Context, startDate, endDate string) ([]domain.AvailabilityEntry, error) {
	entries := make([]domain.AvailabilityEntry, 0)
	for _, s := range m.rows {
		if s.Date < startDate || s.Date > endDate {
			continue
		}
		name := ""
		if u, ok := m.users.users[s.UserID]; ok {
			name = u.DisplayName
		}
		entries = append(entries, domain.AvailabilityEntry{AvailabilitySlot: s, DisplayName: name})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		if entries[i].Hour != entries[j].Hour {
			return entries[i].Hour < entries[j].Hour
		}
		return entries[i].DisplayName < entries[j].DisplayName
	})
	return entries, nil
}

func (m *memSlotRepo) Upsert(_ context.Context, userID int64, slot domain.SlotInput) (*domain.AvailabilitySlot, error) {
	k := key(userID, slot.Date, slot.Hour)
	if existing, ok := m.rows[k]; ok {
		existing.Status = slot.Status
		existing.UpdatedAt = time.Now()
		m.rows[k] = existing
		return &existing, nil
	}
	m.nextID++
	s := domain.AvailabilitySlot{ID: m.nextID, UserID: userID, Date: slot.Date, Hour: slot.Hour, Status: slot.Status, UpdatedAt: time.Now()}
	m.rows[k] = s
	return &s, nil
}

func (m *memSlotRepo) Delete(_ context.Context, userID int64, date string, hour int) error {
	delete(m.rows, key(userID, date, hour))
	return nil
}

func (m *memSlotRepo) BatchApply(ctx context.Context, userID int64, deletes, upserts []domain.SlotInput) ([]domain.AvailabilitySlot, error) {
	for _, slot := range deletes {
		_ = m.Delete(ctx, userID, slot.Date, slot.Hour)
	}
	saved := make([]domain.AvailabilitySlot, 0, len(upserts))
	for _, slot := range upserts {
		s, _ := m.Upsert(ctx, userID, slot)
		saved = append(saved, *s)
	}
	return saved, nil
}

func newTestApp(t *testing.T, authCfg config.AuthConfig) (*fiber.App, *memUserRepo, *memSlotRepo) {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()

	userRepo := &memUserRepo{users: make(map[int64]*domain.User)}
	slotRepo := &memSlotRepo{users: userRepo, rows: make(map[string]domain.AvailabilitySlot)}

	userSvc := service.NewUserService(userRepo)
	availSvc := service.NewAvailabilityService(userRepo, slotRepo, nil, logger)

	allow := auth.NewAllowlist(authCfg.AllowedUserIDs)
	authMW := auth.NewMiddleware(authCfg, allow, logger, metrics)

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, 0)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("availability-bot", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Users:          handlers.NewUsersHandler(userSvc),
		Availability:   handlers.NewAvailabilityHandler(availSvc),
		AuthMiddleware: authMW,
		Metrics:        metrics,
	})
	return app, userRepo, slotRepo
}

func signInitData(secret string, pairs map[string]string) string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, k+"="+pairs[k])
	}
	kd := hmac.New(sha256.New, []byte("WebAppData"))
	kd.Write([]byte(secret))
	mac := hmac.New(sha256.New, kd.Sum(nil))
	mac.Write([]byte(strings.Join(lines, "\n")))

	values := url.Values{}
	for k, v := range pairs {
		values.Set(k, v)
	}
	values.Set("hash", hex.EncodeToString(mac.Sum(nil)))
	return values.Encode()
}

func initDataFor(id int64, firstName string) string {
	return signInitData(testSecret, map[string]string{
		"auth_date": "1717171717",
		"user":      fmt.Sprintf(`{"id":%d,"first_name":%q}`, id, firstName),
	})
}

func doRequest(t *testing.T, app *fiber.App, method, target, initData string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, target, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if initData != "" {
		req.Header.Set(auth.HeaderInitData, initData)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("perform request: %v", err)
	}
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return out
}

func prodAuth() config.AuthConfig {
	return config.AuthConfig{BotToken: testSecret}
}

func TestMissingInitDataUnauthorized(t *testing.T) {
	app, _, _ := newTestApp(t, prodAuth())
	for _, route := range []struct{ method, target string }{
		{fiber.MethodGet, "/api/user"},
		{fiber.MethodGet, "/api/availability?startDate=2024-01-01&endDate=2024-01-07"},
		{fiber.MethodPost, "/api/availability"},
		{fiber.MethodPost, "/api/availability/batch"},
	} {
		resp := doRequest(t, app, route.method, route.target, "", nil)
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.target, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestForgedInitDataUnauthorized(t *testing.T) {
	app, _, _ := newTestApp(t, prodAuth())

	forged := signInitData("wrong-secret", map[string]string{
		"auth_date": "1717171717",
		"user":      `{"id":42,"first_name":"Amy"}`,
	})
	resp := doRequest(t, app, fiber.MethodGet, "/api/user", forged, nil)
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAllowlistDenialMatchesMissingRoute(t *testing.T) {
	cfg := prodAuth()
	cfg.AllowedUserIDs = []int64{7}
	app, users, _ := newTestApp(t, cfg)

	denied := doRequest(t, app, fiber.MethodGet, "/api/user", initDataFor(42, "Amy"), nil)
	defer denied.Body.Close()
	missing := doRequest(t, app, fiber.MethodGet, "/api/no-such-route", initDataFor(7, "Bea"), nil)
	defer missing.Body.Close()

	if denied.StatusCode != fiber.StatusNotFound || missing.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected both 404, got %d and %d", denied.StatusCode, missing.StatusCode)
	}
	deniedBody, _ := io.ReadAll(denied.Body)
	missingBody, _ := io.ReadAll(missing.Body)
	if len(deniedBody) != 0 || len(missingBody) != 0 {
		t.Fatalf("expected empty bodies, got %q and %q", deniedBody, missingBody)
	}
	if len(users.users) != 0 {
		t.Fatal("denied identity must not create a user record")
	}
}

func TestGetUserCreatesOnce(t *testing.T) {
	app, users, _ := newTestApp(t, prodAuth())

	resp := doRequest(t, app, fiber.MethodGet, "/api/user", initDataFor(42, "Amy"), nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	user := decodeBody[domain.User](t, resp)
	if user.ID != 42 || user.DisplayName != "Amy" {
		t.Fatalf("unexpected user: %+v", user)
	}

	resp = doRequest(t, app, fiber.MethodGet, "/api/user", initDataFor(42, "Amy"), nil)
	again := decodeBody[domain.User](t, resp)
	if again.ID != 42 || again.DisplayName != "Amy" {
		t.Fatalf("unexpected user on second call: %+v", again)
	}
	if len(users.users) != 1 {
		t.Fatalf("expected a single user row, got %d", len(users.users))
	}
}

func TestSaveRedWithoutPriorRow(t *testing.T) {
	app, _, slots := newTestApp(t, prodAuth())

	hour := 9
	resp := doRequest(t, app, fiber.MethodPost, "/api/availability", initDataFor(42, "Amy"), map[string]any{
		"date": "2024-01-01", "hour": hour, "status": "red",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	ack := decodeBody[map[string]any](t, resp)
	if ack["status"] != "red" || ack["deleted"] != true || ack["userId"] != float64(42) {
		t.Fatalf("unexpected deletion ack: %v", ack)
	}
	if len(slots.rows) != 0 {
		t.Fatalf("red save must not create a row, got %d", len(slots.rows))
	}
}

func TestSaveThenListRoundTrip(t *testing.T) {
	app, _, _ := newTestApp(t, prodAuth())

	resp := doRequest(t, app, fiber.MethodPost, "/api/availability", initDataFor(42, "Amy"), map[string]any{
		"date": "2024-01-01", "hour": 9, "status": "green",
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	saved := decodeBody[domain.AvailabilitySlot](t, resp)
	if saved.Date != "2024-01-01" || saved.Hour != 9 || saved.Status != domain.StatusGreen {
		t.Fatalf("unexpected saved slot: %+v", saved)
	}

	resp = doRequest(t, app, fiber.MethodGet, "/api/availability?startDate=2024-01-01&endDate=2024-01-01", initDataFor(42, "Amy"), nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	entries := decodeBody[[]domain.AvailabilityEntry](t, resp)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Date != saved.Date || e.Hour != saved.Hour || e.Status != saved.Status || e.DisplayName != "Amy" {
		t.Fatalf("round trip mismatch: %+v vs %+v", e, saved)
	}
}

func TestSaveRejectsMalformedInput(t *testing.T) {
	app, _, _ := newTestApp(t, prodAuth())

	bodies := []map[string]any{
		{"date": "2024-01-01", "status": "green"},             // missing hour
		{"hour": 9, "status": "green"},                        // missing date
		{"date": "2024-01-01", "hour": 9},                     // missing status
		{"date": "2024-01-01", "hour": 24, "status": "green"}, // hour out of range
		{"date": "2024-01-01", "hour": 9, "status": "purple"}, // bad status
		{"date": "not-a-date", "hour": 9, "status": "green"},  // bad date
		{"date": "2024-02-30", "hour": 9, "status": "green"},  // impossible date
	}
	for i, body := range bodies {
		resp := doRequest(t, app, fiber.MethodPost, "/api/availability", initDataFor(42, "Amy"), body)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("body %d: expected 400, got %d", i, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestListRequiresBothBounds(t *testing.T) {
	app, _, _ := newTestApp(t, prodAuth())

	for _, target := range []string{
		"/api/availability",
		"/api/availability?startDate=2024-01-01",
		"/api/availability?endDate=2024-01-07",
	} {
		resp := doRequest(t, app, fiber.MethodGet, target, initDataFor(42, "Amy"), nil)
		if resp.StatusCode != fiber.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, resp.StatusCode)
		}
		resp.Body.Close()
	}
}

func TestBatchSave(t *testing.T) {
	app, _, slots := newTestApp(t, prodAuth())

	resp := doRequest(t, app, fiber.MethodPost, "/api/availability/batch", initDataFor(42, "Amy"), map[string]any{
		"slots": []map[string]any{
			{"date": "2024-01-01", "hour": 8, "status": "green"},
			{"date": "2024-01-01", "hour": 9, "status": "red"},
			{"date": "2024-01-02", "hour": 10, "status": "yellow"},
		},
	})
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	saved := decodeBody[[]domain.AvailabilitySlot](t, resp)
	if len(saved) != 2 {
		t.Fatalf("expected 2 saved slots (red omitted), got %d", len(saved))
	}
	if saved[0].Hour != 8 || saved[1].Hour != 10 {
		t.Fatalf("unexpected order: %+v", saved)
	}
	if len(slots.rows) != 2 {
		t.Fatalf("expected 2 stored rows, got %d", len(slots.rows))
	}
}

func TestBatchSaveRejectsEmptyAndInvalid(t *testing.T) {
	app, _, slots := newTestApp(t, prodAuth())

	resp := doRequest(t, app, fiber.MethodPost, "/api/availability/batch", initDataFor(42, "Amy"), map[string]any{
		"slots": []map[string]any{},
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("empty batch: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, app, fiber.MethodPost, "/api/availability/batch", initDataFor(42, "Amy"), map[string]any{
		"slots": []map[string]any{
			{"date": "2024-01-01", "hour": 8, "status": "green"},
			{"date": "2024-01-01", "hour": 99, "status": "green"},
		},
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("invalid slot: expected 400, got %d", resp.StatusCode)
	}
	resp.Body.Close()
	if len(slots.rows) != 0 {
		t.Fatalf("invalid batch must not write, got %d rows", len(slots.rows))
	}
}

func TestDevModePlaceholderIdentity(t *testing.T) {
	app, users, _ := newTestApp(t, config.AuthConfig{BotToken: "", DevMode: true})

	resp := doRequest(t, app, fiber.MethodGet, "/api/user", "", nil)
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	user := decodeBody[domain.User](t, resp)
	if user.ID != 999999 || user.DisplayName != "Test User" {
		t.Fatalf("unexpected placeholder user: %+v", user)
	}
	if len(users.users) != 1 {
		t.Fatalf("expected one user row, got %d", len(users.users))
	}
}
