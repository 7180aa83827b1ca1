package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"testing"
	"time"

	"worksentry/internal/models"
	"worksentry/internal/service"
	"worksentry/pkg/reporter"
)

func TestDepartmentsAPI(t *testing.T) {
	s := newTestServer(t)

	resp := s.admin(t, http.MethodPost, "/api/v1/admin/departments", map[string]any{"name": "Поддержка", "parentId": 1})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	var support models.Department
	decode(t, resp, &support)

	resp = s.admin(t, http.MethodPut, "/api/v1/admin/departments/1", map[string]any{"name": "Разработка", "parentId": support.ID})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for department cycle, got %d", resp.StatusCode)
	}

	s.createEmployee(t, "E001", support.ID)
	resp = s.admin(t, http.MethodDelete, "/api/v1/admin/departments/"+jsonNumber(support.ID), nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for department with employees, got %d", resp.StatusCode)
	}
	var failure struct {
		Code string `json:"code"`
	}
	decode(t, resp, &failure)
	if failure.Code != "department_in_use" {
		t.Errorf("expected department_in_use, got %q", failure.Code)
	}

	resp = s.admin(t, http.MethodPut, "/api/v1/admin/employees/E001", map[string]any{"name": "Сотрудник E001", "departmentId": 1})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for employee move, got %d", resp.StatusCode)
	}
	resp = s.admin(t, http.MethodDelete, "/api/v1/admin/departments/"+jsonNumber(support.ID), nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}
	resp = s.admin(t, http.MethodDelete, "/api/v1/admin/departments/"+jsonNumber(support.ID), nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 for deleted department, got %d", resp.StatusCode)
	}

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/departments", nil)
	var departments []models.Department
	decode(t, resp, &departments)
	if len(departments) != 1 || departments[0].Name != "Разработка" {
		t.Errorf("unexpected departments: %+v", departments)
	}
}

func TestAuditLogShowsAdminChanges(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)

	resp := s.admin(t, http.MethodPost, "/api/v1/admin/departments", map[string]any{"name": "Продажи"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/audit-logs?date="+models.WorkDateOf(time.Now()), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var entries []models.AuditLog
	decode(t, resp, &entries)

	actions := map[string]string{}
	for _, entry := range entries {
		if entry.Operator != models.OperatorAdmin {
			t.Errorf("expected admin operator, got %+v", entry)
		}
		actions[entry.Action] = entry.TargetID
	}
	if actions[service.AuditEmployeeCreate] != "E001" {
		t.Errorf("expected employee creation in audit log, got %+v", entries)
	}
	if _, ok := actions[service.AuditDepartmentCreate]; !ok {
		t.Errorf("expected department creation in audit log, got %+v", entries)
	}
}

func TestRankAndOfflineReportsForEmptyDay(t *testing.T) {
	s := newTestServer(t)

	resp := s.admin(t, http.MethodGet, "/api/v1/admin/reports/rank?date=2026-03-10&departmentId=1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for rank, got %d", resp.StatusCode)
	}
	var rank service.Rank
	decode(t, resp, &rank)
	if rank.Date != "2026-03-10" || rank.Work == nil || rank.Fish == nil || len(rank.Work) != 0 {
		t.Errorf("unexpected rank: %+v", rank)
	}

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/offline-segments?date=2026-03-10", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for offline segments, got %d", resp.StatusCode)
	}
	var segments []service.OfflineSegment
	decode(t, resp, &segments)
	if segments == nil || len(segments) != 0 {
		t.Errorf("expected empty segment list, got %+v", segments)
	}
}

func TestCheckoutFormFlow(t *testing.T) {
	s := newTestServer(t)
	s.createEmployee(t, "E001", 1)
	client := s.bind(t, "E001")
	ctx := context.Background()

	template, err := client.CheckoutTemplate(ctx)
	if err != nil || template != nil {
		t.Fatalf("expected no template yet, got %+v, %v", template, err)
	}

	resp := s.admin(t, http.MethodPost, "/api/v1/admin/checkout-templates", map[string]any{"departmentId": 1, "name": "Итоги дня"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for template, got %d", resp.StatusCode)
	}
	var created models.CheckoutTemplate
	decode(t, resp, &created)

	resp = s.admin(t, http.MethodPost, "/api/v1/admin/checkout-fields", map[string]any{
		"templateId": created.ID,
		"name":       "Настроение",
		"type":       models.FieldSelect,
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for select field without options, got %d", resp.StatusCode)
	}
	resp = s.admin(t, http.MethodPost, "/api/v1/admin/checkout-fields", map[string]any{
		"templateId": created.ID,
		"name":       "Сделано",
		"type":       models.FieldText,
		"required":   true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for field, got %d", resp.StatusCode)
	}
	var field models.CheckoutField
	decode(t, resp, &field)

	template, err = client.CheckoutTemplate(ctx)
	if err != nil || template == nil || template.ID != created.ID || len(template.Fields) != 1 {
		t.Fatalf("expected enabled template, got %+v, %v", template, err)
	}

	if _, err := client.Report(ctx, reporter.Sample{ReportType: models.ReportWorkStart}); err != nil {
		t.Fatalf("work_start failed: %v", err)
	}

	_, err = client.Report(ctx, reporter.Sample{ReportType: models.ReportWorkEnd})
	var statusErr *reporter.StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing required answer, got %v", err)
	}

	_, err = client.Report(ctx, reporter.Sample{
		ReportType: models.ReportWorkEnd,
		Checkout:   &reporter.Answers{TemplateID: created.ID + 100, Data: map[string]string{}},
	})
	if !errors.Is(err, reporter.ErrTemplateChanged) {
		t.Fatalf("expected ErrTemplateChanged, got %v", err)
	}

	key := strconv.FormatUint(uint64(field.ID), 10)
	_, err = client.Report(ctx, reporter.Sample{
		ReportType: models.ReportWorkEnd,
		Checkout:   &reporter.Answers{TemplateID: created.ID, Data: map[string]string{key: "закрыл задачу"}},
	})
	if err != nil {
		t.Fatalf("work_end with answers failed: %v", err)
	}
	s.checkout.Wait()

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/checkout-records?employeeCode=E001", nil)
	var page service.RecordPage
	decode(t, resp, &page)
	if page.Total != 1 || len(page.Items[0].Answers) != 1 || page.Items[0].Answers[0].Value != "закрыл задачу" {
		t.Fatalf("unexpected records page: %+v", page)
	}

	resp = s.admin(t, http.MethodGet, "/api/v1/admin/checkout-record?id="+jsonNumber(page.Items[0].ID), nil)
	var record models.CheckoutRecord
	decode(t, resp, &record)
	if record.TemplateName != "Итоги дня" || record.WorkSessionID == 0 {
		t.Errorf("unexpected record: %+v", record)
	}
}
