package service

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"

	"github.com/sirupsen/logrus"
)

const (
	maxTextAnswer      = 1000
	maxRecordsPageSize = 100
)

// TemplateInput - анкета из запроса администратора
type TemplateInput struct {
	DepartmentID uint   `json:"departmentId"`
	Name         string `json:"name"`
	Enabled      *bool  `json:"enabled"`
}

// FieldInput - поле анкеты из запроса администратора
type FieldInput struct {
	TemplateID uint     `json:"templateId"`
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Required   bool     `json:"required"`
	SortOrder  int      `json:"sortOrder"`
	Enabled    *bool    `json:"enabled"`
	Options    []string `json:"options"`
}

func (in FieldInput) field() *models.CheckoutField {
	return &models.CheckoutField{
		TemplateID: in.TemplateID,
		Name:       in.Name,
		Type:       in.Type,
		Required:   in.Required,
		SortOrder:  in.SortOrder,
		Enabled:    in.Enabled == nil || *in.Enabled,
		Options:    in.Options,
	}
}

// ClientTemplate - анкета, которую агент показывает при завершении дня
type ClientTemplate struct {
	Exists   bool                     `json:"exists"`
	Template *models.CheckoutTemplate `json:"template,omitempty"`
}

// RecordPage - страница заполненных анкет
type RecordPage struct {
	Items    []models.CheckoutRecord `json:"items"`
	Total    int64                   `json:"total"`
	Page     int                     `json:"page"`
	PageSize int                     `json:"pageSize"`
}

// CheckoutFormService управляет анкетами завершения дня и проверяет заполненные анкеты
type CheckoutFormService struct {
	forms       repository.CheckoutFormRepository
	departments repository.DepartmentRepository
	logger      *logrus.Logger
}

func NewCheckoutFormService(forms repository.CheckoutFormRepository, departments repository.DepartmentRepository) *CheckoutFormService {
	return &CheckoutFormService{
		forms:       forms,
		departments: departments,
		logger:      logging.New(),
	}
}

func (s *CheckoutFormService) Templates(ctx context.Context, departmentID uint) ([]models.CheckoutTemplate, error) {
	templates, err := s.forms.ListTemplates(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []models.CheckoutTemplate{}
	}
	return templates, nil
}

func (s *CheckoutFormService) Template(ctx context.Context, id uint) (*models.CheckoutTemplate, error) {
	template, err := s.forms.GetTemplate(ctx, id)
	if err != nil {
		return nil, err
	}
	if template == nil {
		return nil, apperr.ErrNotFound
	}
	return template, nil
}

func (s *CheckoutFormService) checkDepartment(ctx context.Context, id uint) error {
	if id == 0 {
		return apperr.Invalid("departmentId", "не указан отдел")
	}
	department, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if department == nil {
		return apperr.Invalid("departmentId", "отдел не найден")
	}
	return nil
}

// CreateTemplate создает анкету. Включенная анкета выключает остальные анкеты отдела
func (s *CheckoutFormService) CreateTemplate(ctx context.Context, in TemplateInput) (*models.CheckoutTemplate, error) {
	if err := s.checkDepartment(ctx, in.DepartmentID); err != nil {
		return nil, err
	}
	template := &models.CheckoutTemplate{
		DepartmentID: in.DepartmentID,
		Name:         in.Name,
		Enabled:      in.Enabled == nil || *in.Enabled,
	}
	if err := s.forms.CreateTemplate(ctx, template); err != nil {
		return nil, err
	}
	return template, nil
}

func (s *CheckoutFormService) UpdateTemplate(ctx context.Context, id uint, in TemplateInput) (*models.CheckoutTemplate, error) {
	existing, err := s.Template(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.DepartmentID != 0 && in.DepartmentID != existing.DepartmentID {
		if err := s.checkDepartment(ctx, in.DepartmentID); err != nil {
			return nil, err
		}
		existing.DepartmentID = in.DepartmentID
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		existing.Name = name
	}
	if in.Enabled != nil {
		existing.Enabled = *in.Enabled
	}
	if err := s.forms.UpdateTemplate(ctx, existing); err != nil {
		return nil, err
	}
	return s.Template(ctx, id)
}

func (s *CheckoutFormService) DeleteTemplate(ctx context.Context, id uint) error {
	return s.forms.DeleteTemplate(ctx, id)
}

func (s *CheckoutFormService) Fields(ctx context.Context, templateID uint) ([]models.CheckoutField, error) {
	if _, err := s.Template(ctx, templateID); err != nil {
		return nil, err
	}
	fields, err := s.forms.ListFields(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if fields == nil {
		fields = []models.CheckoutField{}
	}
	return fields, nil
}

func (s *CheckoutFormService) CreateField(ctx context.Context, in FieldInput) (*models.CheckoutField, error) {
	field := in.field()
	if err := s.forms.CreateField(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

func (s *CheckoutFormService) UpdateField(ctx context.Context, id uint, in FieldInput) (*models.CheckoutField, error) {
	field := in.field()
	field.ID = id
	if err := s.forms.UpdateField(ctx, field); err != nil {
		return nil, err
	}
	return field, nil
}

func (s *CheckoutFormService) DeleteField(ctx context.Context, id uint) error {
	return s.forms.DeleteField(ctx, id)
}

// ClientTemplate возвращает включенную анкету отдела сотрудника
func (s *CheckoutFormService) ClientTemplate(ctx context.Context, employee *models.Employee) (ClientTemplate, error) {
	template, err := s.forms.ActiveTemplate(ctx, employee.DepartmentID)
	if err != nil {
		return ClientTemplate{}, err
	}
	if template == nil || len(template.Fields) == 0 {
		return ClientTemplate{Exists: false}, nil
	}
	return ClientTemplate{Exists: true, Template: template}, nil
}

// BuildRecord проверяет заполненную анкету и готовит запись для сохранения вместе
// с закрытием сессии. Без включенной анкеты или без ответов возвращает nil
func (s *CheckoutFormService) BuildRecord(ctx context.Context, employee *models.Employee, session *models.WorkSession, submission *models.CheckoutSubmission) (*models.CheckoutRecord, error) {
	template, err := s.forms.ActiveTemplate(ctx, employee.DepartmentID)
	if err != nil {
		return nil, err
	}
	if template == nil || len(template.Fields) == 0 {
		return nil, nil
	}
	if submission != nil && submission.TemplateID != template.ID {
		s.logger.WithFields(logrus.Fields{
			"employee_code": employee.Code,
			"submitted":     submission.TemplateID,
			"active":        template.ID,
		}).Info("Checkout form submitted for outdated template")
		return nil, apperr.ErrTemplateChanged
	}

	var data map[string]string
	if submission != nil {
		data = submission.Data
	}
	answers := make([]models.CheckoutAnswer, 0, len(template.Fields))
	filled := false
	for i := range template.Fields {
		field := &template.Fields[i]
		value := strings.TrimSpace(data[strconv.FormatUint(uint64(field.ID), 10)])
		if err := checkAnswer(field, value); err != nil {
			return nil, err
		}
		if value != "" {
			filled = true
		}
		answers = append(answers, models.CheckoutAnswer{
			FieldID: field.ID,
			Name:    field.Name,
			Type:    field.Type,
			Value:   value,
		})
	}
	if !filled {
		return nil, nil
	}

	end := session.StartAt
	if session.EndAt != nil {
		end = *session.EndAt
	}
	return &models.CheckoutRecord{
		WorkSessionID: session.ID,
		EmployeeCode:  employee.Code,
		DepartmentID:  employee.DepartmentID,
		TemplateID:    template.ID,
		TemplateName:  template.Name,
		WorkDate:      session.WorkDate,
		StartAt:       session.StartAt.UTC(),
		EndAt:         end.UTC(),
		Answers:       answers,
	}, nil
}

func checkAnswer(field *models.CheckoutField, value string) error {
	key := "data." + strconv.FormatUint(uint64(field.ID), 10)
	if value == "" {
		if field.Required {
			return apperr.Invalid(key, "заполните поле «"+field.Name+"»")
		}
		return nil
	}

	switch field.Type {
	case models.FieldText:
		if utf8.RuneCountInString(value) > maxTextAnswer {
			return apperr.Invalid(key, "поле «"+field.Name+"» длиннее 1000 символов")
		}
	case models.FieldNumber:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return apperr.Invalid(key, "в поле «"+field.Name+"» должно быть число")
		}
	case models.FieldSelect:
		if !field.HasOption(value) {
			return apperr.Invalid(key, "в поле «"+field.Name+"» выберите вариант из списка")
		}
	}
	return nil
}

func (s *CheckoutFormService) Records(ctx context.Context, filter repository.RecordFilter, page, pageSize int) (RecordPage, error) {
	page, pageSize = NormalizePage(page, pageSize)
	if pageSize > maxRecordsPageSize {
		pageSize = maxRecordsPageSize
	}
	items, total, err := s.forms.ListRecords(ctx, filter, page, pageSize)
	if err != nil {
		return RecordPage{}, err
	}
	if items == nil {
		items = []models.CheckoutRecord{}
	}
	return RecordPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

func (s *CheckoutFormService) Record(ctx context.Context, id uint) (*models.CheckoutRecord, error) {
	record, err := s.forms.GetRecord(ctx, id)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, apperr.ErrNotFound
	}
	return record, nil
}
