package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"exam-coach/internal/bot"
	"exam-coach/internal/config"
	"exam-coach/internal/logger"
	"exam-coach/internal/repository"
	"exam-coach/internal/service"
)

const jobTimeout = 25 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	loc, err := cfg.Location()
	if err != nil {
		zl.Fatal("timezone", zap.Error(err))
	}

	db, err := repository.NewDB(cfg.DatabaseURL, zl)
	if err != nil {
		zl.Fatal("db", zap.Error(err))
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	userRepo := repository.NewUserRepository(db)
	onboardingRepo := repository.NewOnboardingRepository(db)
	contentRepo := repository.NewContentRepository(db)
	reminderRepo := repository.NewReminderRepository(db)
	billingRepo := repository.NewBillingRepository(db)
	attemptRepo := repository.NewAttemptRepository(db)

	telegramBot, err := bot.New(cfg.TelegramToken, zl)
	if err != nil {
		zl.Fatal("bot", zap.Error(err))
	}

	access := service.NewAccessMeter(userRepo, billingRepo, service.AccessPolicy{
		FirstDayFree: cfg.FirstDayFreeLessons,
		DailyFree:    cfg.DailyFreeLessons,
		Location:     loc,
	}, zl)
	selector := service.NewContentSelector(contentRepo, userRepo, cfg.SeenWindow, cfg.WeakTopicBias, zl)
	quizzes := service.NewQuizBuilder(contentRepo)

	learningSvc := service.NewLearningService(
		service.NewSessionStore(), access, selector, quizzes, userRepo, attemptRepo, telegramBot,
		service.LearningOptions{RetryDelay: cfg.SendRetryDelay, UpsellURL: cfg.UpsellURL},
		zl,
	)
	onboardingSvc := service.NewOnboardingService(onboardingRepo, userRepo, contentRepo, cfg.ReminderHours, zl)
	reminderSvc := service.NewReminderService(
		userRepo, reminderRepo, attemptRepo, contentRepo, access, selector, quizzes, learningSvc, telegramBot,
		service.ReminderOptions{
			Hours:         cfg.ReminderHours,
			Location:      loc,
			Pause:         cfg.ReminderPause,
			RetryDelay:    cfg.SendRetryDelay,
			RetentionDays: cfg.ReminderRetentionDays,
			BusyWindow:    cfg.ReminderBusyWindow,
		},
		zl,
	)
	dispatcher := service.NewDispatcher(userRepo, onboardingSvc, learningSvc, reminderSvc, access, telegramBot,
		cfg.ReminderHours, cfg.SendRetryDelay, zl)

	scheduler := service.NewSchedulerService(loc, zl)
	if _, err := scheduler.ScheduleEvery(cfg.ReminderTick, func() {
		jobCtx, cancel := context.WithTimeout(ctx, jobTimeout)
		defer cancel()
		reminderSvc.Tick(jobCtx)
	}); err != nil {
		zl.Fatal("schedule reminders", zap.Error(err))
	}
	if _, err := scheduler.ScheduleDaily("03:00", func() {
		jobCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if _, err := reminderSvc.Purge(jobCtx); err != nil {
			zl.Error("purge reminders", zap.Error(err))
		}
	}); err != nil {
		zl.Fatal("schedule purge", zap.Error(err))
	}
	if cfg.SessionIdleTimeout > 0 {
		if _, err := scheduler.ScheduleInterval(time.Minute, func() {
			learningSvc.SweepIdle(cfg.SessionIdleTimeout)
		}); err != nil {
			zl.Fatal("schedule idle sweep", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scheduler.Start()
		<-gctx.Done()
		scheduler.Stop()
		return nil
	})
	g.Go(func() error {
		return telegramBot.Start(gctx, dispatcher)
	})

	zl.Info("exam coach bot started",
		zap.String("timezone", loc.String()),
		zap.Any("reminder_hours", cfg.ReminderHours),
	)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatal("bot stopped with error", zap.Error(err))
	}
	zl.Info("shutdown complete")
}
