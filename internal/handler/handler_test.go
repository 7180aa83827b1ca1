package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"worksentry/internal/live"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/policy"
	"worksentry/internal/repository"
	"worksentry/internal/service"
	"worksentry/internal/storage"
	"worksentry/internal/timeline"
	"worksentry/pkg/reporter"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const testAdminKey = "secret-key"

type testServer struct {
	*httptest.Server
	services Services
	checkout *service.CheckoutService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "handler.db"), logging.Discard())
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { storage.Close(db) })

	employees, err := repository.NewGormEmployeeRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	timelineRepo, err := repository.NewGormTimelineRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	reviewRepo, err := repository.NewGormReviewRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	attendance, err := repository.NewGormAttendanceRuleRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	ruleRepo, err := repository.NewGormRuleRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	overrideRepo, err := repository.NewGormOverrideRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	settingsRepo, err := repository.NewGormSettingsRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	statRepo, err := repository.NewGormDailyStatRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	deptRepo, err := repository.NewGormDepartmentRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	formRepo, err := repository.NewGormCheckoutFormRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	auditRepo, err := repository.NewGormAuditRepository(db)
	if err != nil {
		t.Fatal(err)
	}
	if err := deptRepo.Create(context.Background(), &models.Department{Name: "Разработка"}); err != nil {
		t.Fatal(err)
	}

	overrides := service.NewOverrideService(overrideRepo)
	aggregator := timeline.NewAggregator(timelineRepo, overrides, logging.Discard())
	hub := live.NewHub(16)
	tracker := live.NewTracker(hub, 600, logging.Discard())
	rules := service.NewRuleService(ruleRepo, attendance)
	settings := service.NewSettingsService(settingsRepo, models.Settings{
		IdleThresholdSeconds:     300,
		HeartbeatIntervalSeconds: 60,
		OfflineThresholdSeconds:  600,
	}, aggregator, tracker)
	stats := service.NewDailyStatService(statRepo, employees, attendance, aggregator)
	departments := service.NewDepartmentService(deptRepo)
	forms := service.NewCheckoutFormService(formRepo, deptRepo)
	checkout := service.NewCheckoutService(aggregator, policy.NewEvaluator(attendance, logging.Discard()), forms, stats, nil)

	services := Services{
		Clients:     service.NewClientService(employees, deptRepo, "test-secret"),
		Reports:     service.NewReportService(rules, settings, aggregator, tracker, checkout),
		Reviews:     service.NewReviewService(reviewRepo),
		Rules:       rules,
		Settings:    settings,
		Overrides:   overrides,
		Stats:       stats,
		Live:        service.NewLiveService(tracker, hub, timelineRepo, employees),
		Aggregator:  aggregator,
		Departments: departments,
		Forms:       forms,
		Offline:     service.NewOfflineReportService(timelineRepo, employees, departments),
		Audit:       service.NewAuditService(auditRepo),
	}
	if err := rules.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}

	srv := httptest.NewServer(NewHandler(services, testAdminKey).Router(false))
	t.Cleanup(func() {
		hub.CloseAll()
		srv.Close()
		checkout.Wait()
	})
	return &testServer{Server: srv, services: services, checkout: checkout}
}

func (s *testServer) admin(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Admin-Key", testAdminKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) createEmployee(t *testing.T, code string, departmentID uint) {
	t.Helper()
	resp := s.admin(t, http.MethodPost, "/api/v1/admin/employees", map[string]any{
		"code":         code,
		"name":         "Сотрудник " + code,
		"departmentId": departmentID,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
}

func (s *testServer) bind(t *testing.T, code string) *reporter.Client {
	t.Helper()
	client := reporter.NewClient(s.URL, nil)
	reply, err := client.Bind(context.Background(), code, "device-"+code, "1.0.0")
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if reply.HeartbeatIntervalSeconds != 60 {
		t.Fatalf("expected policy in bind reply, got %+v", reply)
	}
	return client
}

func decode(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}

func TestClientBindAndReport(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)
	client := s.bind(t, "E001")

	reply, err := client.Report(context.Background(), reporter.Sample{
		ProcessName:   "code.exe",
		ReportType:    models.ReportWorkStart,
		ClientVersion: "1.0.0",
	})
	if err != nil {
		t.Fatalf("Report failed: %v", err)
	}
	if reply.OfflineThresholdSeconds != 600 {
		t.Errorf("expected policy in report reply, got %+v", reply)
	}

	view, ok := findView(s.services.Live.Snapshot(), "E001")
	if !ok || view.EmployeeName != "Сотрудник E001" {
		t.Errorf("expected named live view, got %+v", view)
	}

	other := reporter.NewClient(s.URL, nil)
	if _, err := other.Bind(context.Background(), "E001", "another-device", "1.0.0"); !errors.Is(err, reporter.ErrUnauthorized) {
		t.Errorf("expected device mismatch to be unauthorized, got %v", err)
	}

	forged := reporter.NewClient(s.URL, nil)
	forged.SetToken("not-a-token")
	if _, err := forged.Report(context.Background(), reporter.Sample{ReportType: models.ReportHeartbeat}); !errors.Is(err, reporter.ErrUnauthorized) {
		t.Errorf("expected ErrUnauthorized, got %v", err)
	}
}

func TestResetDeviceRevokesToken(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)
	client := s.bind(t, "E001")

	resp := s.admin(t, http.MethodPost, "/api/v1/admin/employees/E001/reset-device", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	_, err := client.Report(context.Background(), reporter.Sample{ReportType: models.ReportHeartbeat})
	if !errors.Is(err, reporter.ErrUnauthorized) {
		t.Fatalf("expected revoked token, got %v", err)
	}

	if _, err := reporter.NewClient(s.URL, nil).Bind(context.Background(), "E001", "new-device", "1.0.0"); err != nil {
		t.Fatalf("Bind after reset failed: %v", err)
	}
}

func TestWorkEndNeedsReason(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)

	resp := s.admin(t, http.MethodPut, "/api/v1/admin/department-rules", map[string]any{
		"rule": map[string]any{"departmentId": 1, "targetSeconds": 8 * 3600, "enabled": true},
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for department rule, got %d", resp.StatusCode)
	}

	client := s.bind(t, "E001")
	ctx := context.Background()
	if _, err := client.Report(ctx, reporter.Sample{ReportType: models.ReportWorkStart}); err != nil {
		t.Fatalf("work_start failed: %v", err)
	}

	_, err := client.Report(ctx, reporter.Sample{ReportType: models.ReportWorkEnd})
	var needReason *reporter.NeedReasonError
	if !errors.As(err, &needReason) {
		t.Fatalf("expected NeedReasonError, got %v", err)
	}
	if len(needReason.Violations) == 0 || needReason.Violations[0].Type != models.ViolationTarget {
		t.Fatalf("expected target violation, got %+v", needReason.Violations)
	}

	if _, err := client.Report(ctx, reporter.Sample{ReportType: models.ReportWorkEnd, Reason: "ушел к врачу"}); err != nil {
		t.Fatalf("work_end with reason failed: %v", err)
	}
	s.checkout.Wait()

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/work-session-reviews?employeeCode=E001", nil)
	var page service.ReviewPage
	decode(t, resp, &page)
	if page.Total != 1 || page.Items[0].Reason != "ушел к врачу" {
		t.Fatalf("unexpected reviews page: %+v", page)
	}

	resp = s.admin(t, http.MethodPost, "/api/v1/admin/work-session-review/reason", map[string]any{
		"id":     page.Items[0].ID,
		"reason": "другая",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("expected 409 for finalized reason, got %d", resp.StatusCode)
	}
}

func TestForcedUpdateReturnsUpgradeRequired(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)
	client := s.bind(t, "E001")

	resp := s.admin(t, http.MethodPut, "/api/v1/admin/settings", map[string]any{
		"idleThresholdSeconds":     300,
		"heartbeatIntervalSeconds": 60,
		"offlineThresholdSeconds":  600,
		"updatePolicy":             models.UpdateForced,
		"latestVersion":            "2.0.0",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for settings, got %d", resp.StatusCode)
	}

	_, err := client.Report(context.Background(), reporter.Sample{ReportType: models.ReportHeartbeat, ClientVersion: "1.4.0"})
	if !errors.Is(err, reporter.ErrUpgradeRequired) {
		t.Fatalf("expected ErrUpgradeRequired, got %v", err)
	}
}

func TestAdminKeyRequired(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/api/v1/admin/settings")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without key, got %d", resp.StatusCode)
	}

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/settings", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 with key, got %d", resp.StatusCode)
	}
	var settings models.Settings
	decode(t, resp, &settings)
	if settings.OfflineThresholdSeconds != 600 {
		t.Errorf("unexpected settings: %+v", settings)
	}
}

func TestAdminValidationErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"bad settings", http.MethodPut, "/api/v1/admin/settings", map[string]any{"idleThresholdSeconds": 0}, http.StatusBadRequest},
		{"bad rule", http.MethodPost, "/api/v1/admin/rules", map[string]any{"ruleType": "grey", "matchMode": "process", "matchValue": "x"}, http.StatusBadRequest},
		{"bad threshold", http.MethodPut, "/api/v1/admin/department-thresholds", map[string]any{"departmentId": 1, "statusCode": "sleep"}, http.StatusBadRequest},
		{"bad date", http.MethodGet, "/api/v1/admin/reports/timeline?employeeCode=E001&date=10.03.2026", nil, http.StatusBadRequest},
		{"unknown review", http.MethodGet, "/api/v1/admin/work-session-review?id=42", nil, http.StatusNotFound},
		{"unknown employee", http.MethodPost, "/api/v1/admin/employees/E404/reset-device", nil, http.StatusNotFound},
		{"missing threshold", http.MethodDelete, "/api/v1/admin/department-thresholds?departmentId=1&statusCode=fish", nil, http.StatusNotFound},
		{"employee in unknown department", http.MethodPost, "/api/v1/admin/employees", map[string]any{"code": "E002", "name": "Сотрудник", "departmentId": 9}, http.StatusBadRequest},
		{"bad rank date", http.MethodGet, "/api/v1/admin/reports/rank?date=2026/03/10", nil, http.StatusBadRequest},
		{"bad offline date", http.MethodGet, "/api/v1/admin/offline-segments?date=вчера", nil, http.StatusBadRequest},
		{"bad audit date", http.MethodGet, "/api/v1/admin/audit-logs?date=10-03-2026", nil, http.StatusBadRequest},
		{"inverted incident", http.MethodPost, "/api/v1/admin/system-incidents", map[string]any{
			"startAt": "2026-03-10T10:00:00Z",
			"endAt":   "2026-03-10T09:00:00Z",
			"reason":  "сбой",
		}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := s.admin(t, tt.method, tt.path, tt.body)
			if resp.StatusCode != tt.want {
				t.Errorf("expected %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestReviewPageSizeClamped(t *testing.T) {
	s := newTestServer(t)

	resp := s.admin(t, http.MethodGet, "/api/v1/admin/work-session-reviews?page=0&pageSize=999", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var page service.ReviewPage
	decode(t, resp, &page)
	if page.Page != 1 || page.PageSize != 200 || page.Items == nil {
		t.Errorf("unexpected page: %+v", page)
	}
}

func TestOverridesAPI(t *testing.T) {
	s := newTestServer(t)

	resp := s.admin(t, http.MethodPost, "/api/v1/admin/manual-adjustments", map[string]any{
		"employeeCode": "E001",
		"startAt":      "2026-03-10T09:00:00Z",
		"endAt":        "2026-03-10T10:00:00Z",
		"reason":       "совещание",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var adjustment models.ManualAdjustment
	decode(t, resp, &adjustment)

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/manual-adjustments?employeeCode=E001&from=2026-03-10T00:00:00Z&to=2026-03-11T00:00:00Z", nil)
	var items []models.ManualAdjustment
	decode(t, resp, &items)
	if len(items) != 1 || items[0].ID != adjustment.ID {
		t.Fatalf("expected the adjustment in list, got %+v", items)
	}

	resp = s.admin(t, http.MethodDelete, "/api/v1/admin/manual-adjustments/"+jsonNumber(adjustment.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)

	resp, err := http.Get(s.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	var body struct {
		Status string         `json:"status"`
		Ingest timeline.Stats `json:"ingest"`
	}
	decode(t, resp, &body)
	if body.Status != "ok" {
		t.Errorf("expected ok, got %q", body.Status)
	}
}

func TestLiveWebsocketStream(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)
	client := s.bind(t, "E001")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/ws/v1/live?key=" + testAdminKey
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var msg struct {
		Type string          `json:"type"`
		Item models.LiveView `json:"item"`
	}
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("failed to read snapshot: %v", err)
	}
	if msg.Type != "snapshot" {
		t.Fatalf("expected snapshot first, got %q", msg.Type)
	}

	if _, err := client.Report(ctx, reporter.Sample{ReportType: models.ReportWorkStart}); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("failed to read update: %v", err)
	}
	if msg.Type != "update" || msg.Item.EmployeeCode != "E001" || msg.Item.EmployeeName != "Сотрудник E001" {
		t.Fatalf("unexpected update: %+v", msg)
	}
}

func TestLiveWebsocketRequiresKey(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http")+"/ws/v1/live", nil)
	if err == nil {
		t.Fatal("expected dial without key to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
}

type recordingSender struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (r *recordingSender) SendText(chatID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.sent == nil {
		r.sent = make(map[int64][]string)
	}
	r.sent[chatID] = append(r.sent[chatID], text)
	return nil
}

func (r *recordingSender) last(chatID int64) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	messages := r.sent[chatID]
	if len(messages) == 0 {
		return ""
	}
	return messages[len(messages)-1]
}

func command(chatID int64, text string) *tgbotapi.Message {
	length := len(text)
	if i := strings.Index(text, " "); i >= 0 {
		length = i
	}
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
	}
}

func TestBotCommands(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)
	client := s.bind(t, "E001")
	if _, err := client.Report(context.Background(), reporter.Sample{ProcessName: "code.exe", ReportType: models.ReportWorkStart}); err != nil {
		t.Fatalf("Report failed: %v", err)
	}

	sender := &recordingSender{}
	const adminChat = 100
	bot := NewBotHandler(sender, s.services.Live, s.services.Reviews, s.services.Stats, s.services.Clients, s.services.Audit, adminChat)

	bot.handleMessage(command(7, "/live"))
	if !strings.Contains(sender.last(7), "Доступ запрещен") {
		t.Errorf("expected access denied for foreign chat, got %q", sender.last(7))
	}

	bot.handleMessage(command(adminChat, "/live"))
	if !strings.Contains(sender.last(adminChat), "Сотрудник E001 (E001)") {
		t.Errorf("expected employee in live list, got %q", sender.last(adminChat))
	}

	bot.handleMessage(command(adminChat, "/pending"))
	if !strings.Contains(sender.last(adminChat), "Нет итогов") {
		t.Errorf("expected empty pending list, got %q", sender.last(adminChat))
	}

	bot.handleMessage(command(adminChat, "/stat"))
	if !strings.Contains(sender.last(adminChat), "Укажите код") {
		t.Errorf("expected usage hint, got %q", sender.last(adminChat))
	}

	bot.handleMessage(command(adminChat, "/reset E001"))
	if !strings.Contains(sender.last(adminChat), "сброшена") {
		t.Errorf("expected reset confirmation, got %q", sender.last(adminChat))
	}
	if _, err := client.Report(context.Background(), reporter.Sample{ReportType: models.ReportHeartbeat}); !errors.Is(err, reporter.ErrUnauthorized) {
		t.Errorf("expected token revoked after /reset, got %v", err)
	}
	entries, err := s.services.Audit.List(context.Background(), models.WorkDateOf(time.Now()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 || entries[0].Action != service.AuditDeviceReset || entries[0].Operator != models.OperatorTelegram {
		t.Errorf("expected /reset in audit log, got %+v", entries)
	}

	bot.handleMessage(command(adminChat, "/unknown"))
	if !strings.Contains(sender.last(adminChat), "Неизвестная команда") {
		t.Errorf("expected unknown command reply, got %q", sender.last(adminChat))
	}
}

func findView(views []models.LiveView, code string) (models.LiveView, bool) {
	for _, view := range views {
		if view.EmployeeCode == code {
			return view, true
		}
	}
	return models.LiveView{}, false
}

func jsonNumber(id uint) string {
	payload, _ := json.Marshal(id)
	return string(payload)
}
