package service

import (
	"context"
	"strings"

	"worksentry/internal/apperr"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/repository"

	"github.com/sirupsen/logrus"
)

// DepartmentInput - отдел из запроса администратора
type DepartmentInput struct {
	Name     string `json:"name"`
	ParentID uint   `json:"parentId"`
}

// DepartmentService ведет дерево отделов
type DepartmentService struct {
	departments repository.DepartmentRepository
	logger      *logrus.Logger
}

func NewDepartmentService(departments repository.DepartmentRepository) *DepartmentService {
	return &DepartmentService{
		departments: departments,
		logger:      logging.New(),
	}
}

func (s *DepartmentService) List(ctx context.Context) ([]models.Department, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}
	if departments == nil {
		departments = []models.Department{}
	}
	return departments, nil
}

func (s *DepartmentService) Get(ctx context.Context, id uint) (*models.Department, error) {
	department, err := s.departments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if department == nil {
		return nil, apperr.ErrNotFound
	}
	return department, nil
}

// Names возвращает названия отделов по ID
func (s *DepartmentService) Names(ctx context.Context) (map[uint]string, error) {
	departments, err := s.departments.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[uint]string, len(departments))
	for _, d := range departments {
		names[d.ID] = d.Name
	}
	return names, nil
}

func (s *DepartmentService) Create(ctx context.Context, in DepartmentInput) (*models.Department, error) {
	department := &models.Department{Name: strings.TrimSpace(in.Name), ParentID: in.ParentID}
	if err := s.checkParent(ctx, 0, in.ParentID); err != nil {
		return nil, err
	}
	if err := s.departments.Create(ctx, department); err != nil {
		return nil, err
	}
	return department, nil
}

func (s *DepartmentService) Update(ctx context.Context, id uint, in DepartmentInput) (*models.Department, error) {
	department, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if name := strings.TrimSpace(in.Name); name != "" {
		department.Name = name
	}
	if err := s.checkParent(ctx, id, in.ParentID); err != nil {
		return nil, err
	}
	department.ParentID = in.ParentID
	if err := s.departments.Update(ctx, department); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"id":        department.ID,
		"parent_id": department.ParentID,
	}).Info("Department updated")
	return department, nil
}

// Delete удаляет отдел. Отдел с сотрудниками не удаляется
func (s *DepartmentService) Delete(ctx context.Context, id uint) error {
	return s.departments.Delete(ctx, id)
}

// checkParent проверяет, что родитель существует и не лежит внутри самого отдела
func (s *DepartmentService) checkParent(ctx context.Context, id, parentID uint) error {
	if parentID == 0 {
		return nil
	}
	if parentID == id {
		return apperr.Invalid("parentId", "отдел не может быть родителем самому себе")
	}

	departments, err := s.departments.List(ctx)
	if err != nil {
		return err
	}
	parents := make(map[uint]uint, len(departments))
	for _, d := range departments {
		parents[d.ID] = d.ParentID
	}
	if _, ok := parents[parentID]; !ok {
		return apperr.Invalid("parentId", "родительский отдел не найден")
	}
	if id == 0 {
		return nil
	}
	for current, steps := parentID, 0; current != 0 && steps <= len(parents); steps++ {
		if current == id {
			return apperr.Invalid("parentId", "отдел не может быть вложен в собственный дочерний отдел")
		}
		current = parents[current]
	}
	return nil
}
