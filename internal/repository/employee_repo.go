package repository

import (
	"context"
	"errors"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type EmployeeRepository interface {
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	GetByCode(ctx context.Context, code string) (*models.Employee, error)
	List(ctx context.Context) ([]models.Employee, error)
	SetFingerprint(ctx context.Context, code, fingerprintHash string) error

	CreateToken(ctx context.Context, token *models.ClientToken) error
	GetToken(ctx context.Context, id string) (*models.ClientToken, error)
	TouchToken(ctx context.Context, id string, at time.Time) error
	RevokeTokens(ctx context.Context, employeeCode string) error
}

type GormEmployeeRepository struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewGormEmployeeRepository(db *gorm.DB) (*GormEmployeeRepository, error) {
	logger := logging.New()

	// Автомиграция
	if err := db.AutoMigrate(&models.Employee{}, &models.ClientToken{}); err != nil {
		logger.WithError(err).Error("Failed to auto-migrate employees table")
		return nil, err
	}

	logger.Debug("Employee repository initialized")

	return &GormEmployeeRepository{
		db:     db,
		logger: logger,
	}, nil
}

func (r *GormEmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	if !employee.IsValid() {
		r.logger.WithField("employee_code", employee.Code).Warn("Invalid employee data")
		return errors.New("некорректные данные сотрудника")
	}

	existing, err := r.GetByCode(ctx, employee.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		return errors.New("сотрудник с таким кодом уже существует")
	}

	if err := r.db.WithContext(ctx).Create(employee).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create employee")
		return err
	}

	r.logger.WithFields(logrus.Fields{
		"id":            employee.ID,
		"employee_code": employee.Code,
	}).Info("Employee created")
	return nil
}

func (r *GormEmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	if !employee.IsValid() {
		return errors.New("некорректные данные сотрудника")
	}

	result := r.db.WithContext(ctx).Model(&models.Employee{}).
		Where("code = ?", employee.Code).
		Updates(map[string]any{
			"name":          employee.Name,
			"department_id": employee.DepartmentID,
			"enabled":       employee.Enabled,
		})
	if result.Error != nil {
		r.logger.WithError(result.Error).Error("Failed to update employee")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GormEmployeeRepository) GetByCode(ctx context.Context, code string) (*models.Employee, error) {
	var employee models.Employee
	result := r.db.WithContext(ctx).Where("code = ?", code).First(&employee)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &employee, nil
}

func (r *GormEmployeeRepository) List(ctx context.Context) ([]models.Employee, error) {
	var employees []models.Employee
	if err := r.db.WithContext(ctx).Order("code asc").Find(&employees).Error; err != nil {
		return nil, err
	}
	return employees, nil
}

// SetFingerprint сохраняет хеш отпечатка устройства, пустой хеш сбрасывает привязку
func (r *GormEmployeeRepository) SetFingerprint(ctx context.Context, code, fingerprintHash string) error {
	result := r.db.WithContext(ctx).Model(&models.Employee{}).
		Where("code = ?", code).
		Update("fingerprint", fingerprintHash)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GormEmployeeRepository) CreateToken(ctx context.Context, token *models.ClientToken) error {
	if err := r.db.WithContext(ctx).Create(token).Error; err != nil {
		r.logger.WithError(err).Error("Failed to create client token")
		return err
	}
	return nil
}

func (r *GormEmployeeRepository) GetToken(ctx context.Context, id string) (*models.ClientToken, error) {
	var token models.ClientToken
	result := r.db.WithContext(ctx).Where("id = ?", id).First(&token)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &token, nil
}

func (r *GormEmployeeRepository) TouchToken(ctx context.Context, id string, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ClientToken{}).
		Where("id = ?", id).
		Update("last_seen_at", at.UTC()).Error
}

func (r *GormEmployeeRepository) RevokeTokens(ctx context.Context, employeeCode string) error {
	result := r.db.WithContext(ctx).Model(&models.ClientToken{}).
		Where("employee_code = ? AND revoked = ?", employeeCode, false).
		Update("revoked", true)
	if result.Error != nil {
		return result.Error
	}

	r.logger.WithFields(logrus.Fields{
		"employee_code": employeeCode,
		"revoked":       result.RowsAffected,
	}).Info("Client tokens revoked")
	return nil
}
