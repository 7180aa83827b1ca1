package repository

import (
	"context"
	"errors"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type DepartmentRepository interface {
	Create(ctx context.Context, department *models.Department) error
	Update(ctx context.Context, department *models.Department) error
	Delete(ctx context.Context, id uint) error
	GetByID(ctx context.Context, id uint) (*models.Department, error)
	List(ctx context.Context) ([]models.Department, error)
}

type GormDepartmentRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormDepartmentRepository(db *gorm.DB) (*GormDepartmentRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.Department{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate departments table")
		return nil, err
	}

	return &GormDepartmentRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormDepartmentRepository) Create(ctx context.Context, department *models.Department) error {
	department.ID = 0
	if !department.IsValid() {
		return apperr.Invalid("name", "не указано название отдела")
	}
	if err := r.db.WithContext(ctx).Create(department).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create department")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":        department.ID,
		"name":      department.Name,
		"parent_id": department.ParentID,
	}).Info("Department created")
	return nil
}

func (r *GormDepartmentRepository) Update(ctx context.Context, department *models.Department) error {
	if !department.IsValid() {
		return apperr.Invalid("parentId", "некорректный отдел")
	}
	result := r.db.WithContext(ctx).Model(&models.Department{}).
		Where("id = ?", department.ID).
		Updates(map[string]interface{}{
			"name":      department.Name,
			"parent_id": department.ParentID,
		})
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to update department")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

// Delete удаляет отдел без сотрудников и дочерних отделов
func (r *GormDepartmentRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var employees int64
		if err := tx.Model(&models.Employee{}).Where("department_id = ?", id).Count(&employees).Error; err != nil {
			return err
		}
		if employees > 0 {
			return apperr.ErrDepartmentInUse
		}
		var children int64
		if err := tx.Model(&models.Department{}).Where("parent_id = ?", id).Count(&children).Error; err != nil {
			return err
		}
		if children > 0 {
			return apperr.Invalid("id", "у отдела есть дочерние отделы")
		}

		result := tx.Delete(&models.Department{}, id)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return apperr.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return err
	}

	r.logger.WithField("id", id).Info("Department deleted")
	return nil
}

func (r *GormDepartmentRepository) GetByID(ctx context.Context, id uint) (*models.Department, error) {
	var department models.Department
	result := r.db.WithContext(ctx).First(&department, id)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &department, nil
}

func (r *GormDepartmentRepository) List(ctx context.Context) ([]models.Department, error) {
	var departments []models.Department
	if err := r.db.WithContext(ctx).Order("id asc").Find(&departments).Error; err != nil {
		return nil, err
	}
	return departments, nil
}
