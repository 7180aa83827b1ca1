package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

// ClientClaims - содержимое токена агента, ID совпадает с записью client_tokens
type ClientClaims struct {
	EmployeeCode string `json:"employee_code"`
	jwt.RegisteredClaims
}

// BindInput - запрос привязки агента
type BindInput struct {
	EmployeeCode  string `json:"employeeCode"`
	Fingerprint   string `json:"fingerprint"`
	ClientVersion string `json:"clientVersion"`
}

// ClientService привязывает агентов к сотрудникам и проверяет их токены
type ClientService struct {
	employees   repository.EmployeeRepository
	departments repository.DepartmentRepository
	secret      []byte
	now         func() time.Time
	logger      *logrus.Logger
}

func NewClientService(employees repository.EmployeeRepository, departments repository.DepartmentRepository, secret string) *ClientService {
	logger := logging.New()
	if strings.TrimSpace(secret) == "" {
		// токены не переживут перезапуск
		secret = uuid.NewString()
		logger.Warn("JWT_SECRET is not set, using a random secret")
	}
	return &ClientService{
		employees:   employees,
		departments: departments,
		secret:      []byte(secret),
		now:         time.Now,
		logger:      logger,
	}
}

// Bind проверяет устройство сотрудника и выдает новый токен.
// Первая привязка сохраняет хеш отпечатка, последующие должны с ним совпадать
func (s *ClientService) Bind(ctx context.Context, in BindInput) (string, error) {
	code := strings.TrimSpace(in.EmployeeCode)
	fingerprint := strings.TrimSpace(in.Fingerprint)
	if code == "" || fingerprint == "" {
		return "", apperr.Invalid("employeeCode", "код сотрудника и отпечаток устройства обязательны")
	}

	employee, err := s.employees.GetByCode(ctx, code)
	if err != nil {
		return "", err
	}
	if employee == nil {
		return "", apperr.ErrNotFound
	}
	if !employee.Enabled {
		return "", apperr.ErrEmployeeDisabled
	}

	if employee.HasDevice() {
		if bcrypt.CompareHashAndPassword([]byte(employee.Fingerprint), []byte(fingerprint)) != nil {
			s.logger.WithField("employee_code", code).Warn("Device fingerprint mismatch")
			return "", apperr.ErrDeviceMismatch
		}
	} else {
		hash, err := bcrypt.GenerateFromPassword([]byte(fingerprint), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		if err := s.employees.SetFingerprint(ctx, code, string(hash)); err != nil {
			return "", err
		}
		employee.Fingerprint = string(hash)
		s.logger.WithField("employee_code", code).Info("Device bound")
	}

	now := s.now().UTC().Truncate(time.Second)
	claims := ClientClaims{
		EmployeeCode: code,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       uuid.NewString(),
			Subject:  code,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", err
	}

	if err := s.employees.CreateToken(ctx, &models.ClientToken{
		ID:           claims.ID,
		EmployeeCode: code,
		Fingerprint:  employee.Fingerprint,
		IssuedAt:     now,
	}); err != nil {
		return "", err
	}

	s.logger.WithFields(logrus.Fields{
		"employee_code":  code,
		"client_version": in.ClientVersion,
	}).Info("Client token issued")
	return signed, nil
}

// Authenticate проверяет подпись токена и его запись в базе
func (s *ClientService) Authenticate(ctx context.Context, raw string) (*models.Employee, error) {
	claims := &ClientClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid || claims.ID == "" {
		return nil, apperr.ErrUnauthorized
	}

	token, err := s.employees.GetToken(ctx, claims.ID)
	if err != nil {
		return nil, err
	}
	if token == nil || token.Revoked || token.EmployeeCode != claims.EmployeeCode {
		return nil, apperr.ErrUnauthorized
	}

	employee, err := s.employees.GetByCode(ctx, claims.EmployeeCode)
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, apperr.ErrUnauthorized
	}
	if !employee.Enabled {
		return nil, apperr.ErrEmployeeDisabled
	}

	if err := s.employees.TouchToken(ctx, claims.ID, s.now()); err != nil {
		s.logger.WithError(err).Warn("Failed to update token last seen")
	}
	return employee, nil
}

// ResetDevice снимает привязку устройства и отзывает выданные токены
func (s *ClientService) ResetDevice(ctx context.Context, code string) error {
	employee, err := s.employees.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return err
	}
	if employee == nil {
		return apperr.ErrNotFound
	}
	if err := s.employees.SetFingerprint(ctx, employee.Code, ""); err != nil {
		return err
	}
	if err := s.employees.RevokeTokens(ctx, employee.Code); err != nil {
		return err
	}

	s.logger.WithField("employee_code", employee.Code).Info("Device binding reset")
	return nil
}

// EmployeeInput - данные сотрудника из запроса администратора
type EmployeeInput struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	DepartmentID uint   `json:"departmentId"`
	Enabled      *bool  `json:"enabled"`
}

func (s *ClientService) CreateEmployee(ctx context.Context, in EmployeeInput) (*models.Employee, error) {
	employee := &models.Employee{
		Code:         strings.TrimSpace(in.Code),
		Name:         strings.TrimSpace(in.Name),
		DepartmentID: in.DepartmentID,
		Enabled:      in.Enabled == nil || *in.Enabled,
	}
	if !employee.IsValid() {
		return nil, apperr.Invalid("code", "код и имя сотрудника обязательны")
	}
	if err := s.checkDepartment(ctx, employee.DepartmentID); err != nil {
		return nil, err
	}

	existing, err := s.employees.GetByCode(ctx, employee.Code)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Invalid("code", fmt.Sprintf("сотрудник %s уже существует", employee.Code))
	}

	if err := s.employees.Create(ctx, employee); err != nil {
		return nil, err
	}
	return employee, nil
}

func (s *ClientService) UpdateEmployee(ctx context.Context, code string, in EmployeeInput) (*models.Employee, error) {
	employee, err := s.employees.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, apperr.ErrNotFound
	}

	if name := strings.TrimSpace(in.Name); name != "" {
		employee.Name = name
	}
	if err := s.checkDepartment(ctx, in.DepartmentID); err != nil {
		return nil, err
	}
	employee.DepartmentID = in.DepartmentID
	if in.Enabled != nil {
		employee.Enabled = *in.Enabled
	}
	if err := s.employees.Update(ctx, employee); err != nil {
		return nil, err
	}

	if !employee.Enabled {
		if err := s.employees.RevokeTokens(ctx, employee.Code); err != nil {
			return nil, err
		}
	}
	return employee, nil
}

func (s *ClientService) checkDepartment(ctx context.Context, id uint) error {
	if id == 0 || s.departments == nil {
		return nil
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

func (s *ClientService) Employee(ctx context.Context, code string) (*models.Employee, error) {
	employee, err := s.employees.GetByCode(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, err
	}
	if employee == nil {
		return nil, apperr.ErrNotFound
	}
	return employee, nil
}

func (s *ClientService) Employees(ctx context.Context) ([]models.Employee, error) {
	return s.employees.List(ctx)
}

// IsAuthError - ошибка, после которой агент должен пройти привязку заново
func IsAuthError(err error) bool {
	return errors.Is(err, apperr.ErrUnauthorized) || errors.Is(err, apperr.ErrEmployeeDisabled) || errors.Is(err, apperr.ErrDeviceMismatch)
}
