package repository

import (
	"context"
	"errors"
	"strings"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RecordFilter - фильтр списка заполненных анкет
type RecordFilter struct {
	From         string // дата 2006-01-02 включительно
	To           string // дата 2006-01-02 включительно
	DepartmentID uint
	TemplateID   uint
	EmployeeCode string
}

// CheckoutFormRepository хранит анкеты завершения дня, их поля и заполненные анкеты.
// Заполненные анкеты создаются вместе с закрытием сессии в TimelineRepository.Apply
type CheckoutFormRepository interface {
	CreateTemplate(ctx context.Context, template *models.CheckoutTemplate) error
	UpdateTemplate(ctx context.Context, template *models.CheckoutTemplate) error
	DeleteTemplate(ctx context.Context, id uint) error
	GetTemplate(ctx context.Context, id uint) (*models.CheckoutTemplate, error)
	ListTemplates(ctx context.Context, departmentID uint) ([]models.CheckoutTemplate, error)
	// ActiveTemplate возвращает включенную анкету отдела с включенными полями или nil
	ActiveTemplate(ctx context.Context, departmentID uint) (*models.CheckoutTemplate, error)

	CreateField(ctx context.Context, field *models.CheckoutField) error
	UpdateField(ctx context.Context, field *models.CheckoutField) error
	DeleteField(ctx context.Context, id uint) error
	ListFields(ctx context.Context, templateID uint) ([]models.CheckoutField, error)

	GetRecord(ctx context.Context, id uint) (*models.CheckoutRecord, error)
	ListRecords(ctx context.Context, filter RecordFilter, page, pageSize int) ([]models.CheckoutRecord, int64, error)
}

type GormCheckoutFormRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormCheckoutFormRepository(db *gorm.DB) (*GormCheckoutFormRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.CheckoutTemplate{}, &models.CheckoutField{}, &models.CheckoutRecord{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate checkout form tables")
		return nil, err
	}

	return &GormCheckoutFormRepository{
		db:     db,
		logger: logger,
	}, nil
}

// disableOthers выключает остальные анкеты отдела
func disableOthers(tx *gorm.DB, template *models.CheckoutTemplate) error {
	if !template.Enabled {
		return nil
	}
	return tx.Model(&models.CheckoutTemplate{}).
		Where("department_id = ? AND id <> ?", template.DepartmentID, template.ID).
		Update("enabled", false).Error
}

func validTemplate(template *models.CheckoutTemplate) error {
	template.Name = strings.TrimSpace(template.Name)
	if template.Name == "" {
		return apperr.Invalid("name", "не указано название анкеты")
	}
	if template.DepartmentID == 0 {
		return apperr.Invalid("departmentId", "не указан отдел")
	}
	return nil
}

func (r *GormCheckoutFormRepository) CreateTemplate(ctx context.Context, template *models.CheckoutTemplate) error {
	template.ID = 0
	template.Fields = nil
	if err := validTemplate(template); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(template).Error; err != nil {
			return err
		}
		return disableOthers(tx, template)
	})
	if err != nil {
		template.ID = 0
		r.logger.WithError(err).Error("Failed to create checkout template")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":            template.ID,
		"department_id": template.DepartmentID,
		"enabled":       template.Enabled,
	}).Info("Checkout template created")
	return nil
}

func (r *GormCheckoutFormRepository) UpdateTemplate(ctx context.Context, template *models.CheckoutTemplate) error {
	if err := validTemplate(template); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.CheckoutTemplate{}).
			Where("id = ?", template.ID).
			Updates(map[string]interface{}{
				"name":          template.Name,
				"department_id": template.DepartmentID,
				"enabled":       template.Enabled,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return disableOthers(tx, template)
	})
	if err != nil && !errors.Is(err, apperr.ErrNotFound) {
		r.logger.WithError(err).Error("Failed to update checkout template")
	}
	return err
}

func (r *GormCheckoutFormRepository) DeleteTemplate(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&models.CheckoutField{}).Error; err != nil {
			return err
		}
		result := tx.Delete(&models.CheckoutTemplate{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
}

func (r *GormCheckoutFormRepository) GetTemplate(ctx context.Context, id uint) (*models.CheckoutTemplate, error) {
	var template models.CheckoutTemplate
	result := r.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc, id asc") }).
		First(&template, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &template, nil
}

// ListTemplates возвращает анкеты отдела, departmentID = 0 - все анкеты
func (r *GormCheckoutFormRepository) ListTemplates(ctx context.Context, departmentID uint) ([]models.CheckoutTemplate, error) {
	query := r.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB { return db.Order("sort_order asc, id asc") })
	if departmentID != 0 {
		query = query.Where("department_id = ?", departmentID)
	}

	var templates []models.CheckoutTemplate
	if err := query.Order("department_id asc, id asc").Find(&templates).Error; err != nil {
		return nil, err
	}
	return templates, nil
}

func (r *GormCheckoutFormRepository) ActiveTemplate(ctx context.Context, departmentID uint) (*models.CheckoutTemplate, error) {
	var template models.CheckoutTemplate
	result := r.db.WithContext(ctx).
		Preload("Fields", func(db *gorm.DB) *gorm.DB {
			return db.Where("enabled = ?", true).Order("sort_order asc, id asc")
		}).
		Where("department_id = ? AND enabled = ?", departmentID, true).
		Order("id desc").
		First(&template)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &template, nil
}

func (r *GormCheckoutFormRepository) validField(ctx context.Context, field *models.CheckoutField) error {
	field.Normalize()
	if !field.IsValid() {
		if field.Type == models.FieldSelect && len(field.Options) == 0 {
			return apperr.Invalid("options", "для выбора из списка нужны варианты")
		}
		return apperr.Invalid("type", "некорректное поле анкеты")
	}
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.CheckoutTemplate{}).Where("id = ?", field.TemplateID).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return apperr.Invalid("templateId", "анкета не найдена")
	}
	return nil
}

func (r *GormCheckoutFormRepository) CreateField(ctx context.Context, field *models.CheckoutField) error {
	field.ID = 0
	if err := r.validField(ctx, field); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(field).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create checkout field")
		return err
	}
	return nil
}

func (r *GormCheckoutFormRepository) UpdateField(ctx context.Context, field *models.CheckoutField) error {
	if err := r.validField(ctx, field); err != nil {
		return err
	}
	result := r.db.WithContext(ctx).Model(&models.CheckoutField{}).
		Where("id = ?", field.ID).
		Select("template_id", "name", "type", "required", "sort_order", "enabled", "options").
		Updates(field)
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to update checkout field")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GormCheckoutFormRepository) DeleteField(ctx context.Context, id uint) error {
	result := r.db.WithContext(ctx).Delete(&models.CheckoutField{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GormCheckoutFormRepository) ListFields(ctx context.Context, templateID uint) ([]models.CheckoutField, error) {
	var fields []models.CheckoutField
	err := r.db.WithContext(ctx).
		Where("template_id = ?", templateID).
		Order("sort_order asc, id asc").
		Find(&fields).Error
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (r *GormCheckoutFormRepository) GetRecord(ctx context.Context, id uint) (*models.CheckoutRecord, error) {
	var record models.CheckoutRecord
	result := r.db.WithContext(ctx).First(&record, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}

// ListRecords возвращает страницу заполненных анкет, page начинается с 1
func (r *GormCheckoutFormRepository) ListRecords(ctx context.Context, filter RecordFilter, page, pageSize int) ([]models.CheckoutRecord, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	query := r.db.WithContext(ctx).Model(&models.CheckoutRecord{})

	if filter.From != "" {
		query = query.Where("work_date >= ?", filter.From)
	}
	if filter.To != "" {
		query = query.Where("work_date <= ?", filter.To)
	}
	if filter.DepartmentID != 0 {
		query = query.Where("department_id = ?", filter.DepartmentID)
	}
	if filter.TemplateID != 0 {
		query = query.Where("template_id = ?", filter.TemplateID)
	}
	if code := strings.TrimSpace(filter.EmployeeCode); code != "" {
		query = query.Where("employee_code = ?", code)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var records []models.CheckoutRecord
	err := query.
		Order("end_at desc, id desc").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&records).Error
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}
