package main

import (
	"context"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/mockdrive/go/clients/gemini_client"
	"github.com/mcdev12/mockdrive/go/clients/judge0_client"
	"github.com/mcdev12/mockdrive/go/internal/assessment/gateway"
	"github.com/mcdev12/mockdrive/go/internal/assessment/orchestrator"
	"github.com/mcdev12/mockdrive/go/internal/assessment/outbox"
	"github.com/mcdev12/mockdrive/go/internal/assessment/repository"
	"github.com/mcdev12/mockdrive/go/internal/assessment/service"
	"github.com/mcdev12/mockdrive/go/internal/assessment/submission"
	"github.com/mcdev12/mockdrive/go/internal/config"
)

type Services struct {
	Sessions    *orchestrator.Manager
	Connections *gateway.ConnectionManager
	Session     *service.Service
}

func setupServices(ctx context.Context, cfg *config.Config, dbs *Databases) *Services {
	// Database layer → Repository layer → App layer → Service layer
	clock := clockwork.NewRealClock()

	violations := repository.NewViolationLog(dbs.SQL)
	outboxApp := outbox.NewApp(outbox.NewRepository(dbs.SQL))

	judge := judge0_client.NewJudge0Client(judge0_client.Config{
		BaseURL:   cfg.Judge0.BaseURL,
		APIKey:    cfg.Judge0.APIKey,
		RateLimit: cfg.Judge0.RateLimit,
		Timeout:   cfg.Judge0.Timeout,
	})

	var (
		evaluator submission.Evaluator
		generator orchestrator.Generator
	)
	if cfg.Gemini.APIKey != "" {
		gemini, err := gemini_client.NewGeminiClient(ctx, gemini_client.Config{
			APIKey:       cfg.Gemini.APIKey,
			Model:        cfg.Gemini.Model,
			MaxQuestions: cfg.Policy.Machine.MaxInterviewQuestions,
		})
		if err != nil {
			log.Error().Err(err).Msg("failed to create gemini client, interviews use the fallback question")
		} else {
			evaluator = gemini
			generator = gemini
		}
	} else {
		log.Warn().Msg("GEMINI_API_KEY not set, interviews use the fallback question")
	}

	coordinator := submission.NewCoordinator(dbs.Postgres, judge, evaluator, violations, outboxApp, clock, submission.Config{
		JudgeParallelism: cfg.Policy.JudgeParallelism,
		LenientVerdict:   cfg.Policy.Machine.LenientVerdict,
	})

	// The connection manager is the session notifier and also routes inbound
	// frames back to the session manager, so the manager is filled in below.
	sessions := &gateway.ManagerSessions{}
	connections := gateway.NewConnectionManager(sessions, gateway.DefaultConnectionConfig())

	manager := orchestrator.NewManager(dbs.Postgres, violations, coordinator, generator, dbs.Timers, connections, clock, orchestrator.ManagerConfig{
		Machine:     cfg.Policy.Machine,
		Proctor:     cfg.Policy.Proctor,
		MaxWarnings: cfg.Policy.MaxWarnings,
	})
	sessions.Manager = manager

	return &Services{
		Sessions:    manager,
		Connections: connections,
		Session:     service.NewService(manager, dbs.Postgres, violations),
	}
}
