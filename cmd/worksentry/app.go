package main

import (
	"context"
	"fmt"

	"worksentry/internal/config"
	"worksentry/internal/handler"
	"worksentry/internal/live"
	"worksentry/internal/logging"
	"worksentry/internal/models"
	"worksentry/internal/policy"
	"worksentry/internal/repository"
	"worksentry/internal/service"
	"worksentry/internal/storage"
	"worksentry/internal/timeline"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// app - собранные компоненты сервера
type app struct {
	db       *gorm.DB
	hub      *live.Hub
	checkout *service.CheckoutService
	jobs     *service.Jobs
	services handler.Services
	logger   *logrus.Logger
}

func newApp(cfg *config.Config, notifier service.Notifier) (*app, error) {
	logger := logging.New()

	db, err := storage.Open(cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	employees, err := repository.NewGormEmployeeRepository(db)
	if err != nil {
		return nil, err
	}
	timelineRepo, err := repository.NewGormTimelineRepository(db)
	if err != nil {
		return nil, err
	}
	ruleRepo, err := repository.NewGormRuleRepository(db)
	if err != nil {
		return nil, err
	}
	attendanceRepo, err := repository.NewGormAttendanceRuleRepository(db)
	if err != nil {
		return nil, err
	}
	reviewRepo, err := repository.NewGormReviewRepository(db)
	if err != nil {
		return nil, err
	}
	overrideRepo, err := repository.NewGormOverrideRepository(db)
	if err != nil {
		return nil, err
	}
	settingsRepo, err := repository.NewGormSettingsRepository(db)
	if err != nil {
		return nil, err
	}
	statRepo, err := repository.NewGormDailyStatRepository(db)
	if err != nil {
		return nil, err
	}
	departmentRepo, err := repository.NewGormDepartmentRepository(db)
	if err != nil {
		return nil, err
	}
	formRepo, err := repository.NewGormCheckoutFormRepository(db)
	if err != nil {
		return nil, err
	}
	auditRepo, err := repository.NewGormAuditRepository(db)
	if err != nil {
		return nil, err
	}

	overrideService := service.NewOverrideService(overrideRepo)
	aggregator := timeline.NewAggregator(timelineRepo, overrideService, logging.New())
	hub := live.NewHub(cfg.LiveQueueSize)
	tracker := live.NewTracker(hub, cfg.OfflineThresholdSeconds, logging.New())

	ruleService := service.NewRuleService(ruleRepo, attendanceRepo)
	settingsService := service.NewSettingsService(settingsRepo, models.Settings{
		IdleThresholdSeconds:     cfg.IdleThresholdSeconds,
		HeartbeatIntervalSeconds: cfg.HeartbeatIntervalSeconds,
		OfflineThresholdSeconds:  cfg.OfflineThresholdSeconds,
		UpdatePolicy:             models.UpdateOptional,
	}, aggregator, tracker)
	statService := service.NewDailyStatService(statRepo, employees, attendanceRepo, aggregator)
	evaluator := policy.NewEvaluator(attendanceRepo, logging.New())
	departmentService := service.NewDepartmentService(departmentRepo)
	formService := service.NewCheckoutFormService(formRepo, departmentRepo)
	checkoutService := service.NewCheckoutService(aggregator, evaluator, formService, statService, notifier)
	liveService := service.NewLiveService(tracker, hub, timelineRepo, employees)

	return &app{
		db:       db,
		hub:      hub,
		checkout: checkoutService,
		jobs:     service.NewJobs(liveService, checkoutService, timelineRepo, employees, cfg.AutoCloseAfter()),
		services: handler.Services{
			Clients:     service.NewClientService(employees, departmentRepo, cfg.JWTSecret),
			Reports:     service.NewReportService(ruleService, settingsService, aggregator, tracker, checkoutService),
			Reviews:     service.NewReviewService(reviewRepo),
			Rules:       ruleService,
			Settings:    settingsService,
			Overrides:   overrideService,
			Stats:       statService,
			Live:        liveService,
			Aggregator:  aggregator,
			Departments: departmentService,
			Forms:       formService,
			Offline:     service.NewOfflineReportService(timelineRepo, employees, departmentService),
			Audit:       service.NewAuditService(auditRepo),
		},
		logger: logger,
	}, nil
}

// warmUp загружает настройки и правила и восстанавливает live-состояние
func (a *app) warmUp(ctx context.Context) error {
	if _, err := a.services.Settings.Load(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if err := a.services.Rules.Reload(ctx); err != nil {
		return fmt.Errorf("load rules: %w", err)
	}
	restored, err := a.services.Live.Rebuild(ctx)
	if err != nil {
		return fmt.Errorf("rebuild live state: %w", err)
	}
	a.logger.WithField("employees", restored).Info("Live state restored")
	return nil
}

func (a *app) close() {
	a.hub.CloseAll()
	a.checkout.Wait()
	if err := storage.Close(a.db); err != nil {
		a.logger.WithError(err).Error("Failed to close database")
	}
}
