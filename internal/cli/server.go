package cli

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"edu-quiz-service/internal/app"
	"edu-quiz-service/internal/config"
	"edu-quiz-service/internal/domain"
	"edu-quiz-service/internal/infra/genai"
	"edu-quiz-service/internal/infra/memory"
	"edu-quiz-service/internal/infra/postgres"
	redisinfra "edu-quiz-service/internal/infra/redis"
	transport "edu-quiz-service/internal/transport/http"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

// stores are the persistence backends chosen from config.
type stores struct {
	quizzes  app.QuizStore
	loader   memory.QuizLoader
	attempts app.AttemptRepository
	profiles app.ProfileRepository
	cleanup  func()
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.Postgres.URL == "" {
		log.Printf("postgres not configured, using in-memory stores")
		quizzes := memory.NewQuizStore(sampleQuizzes()...)
		return stores{
			quizzes:  quizzes,
			loader:   quizzes,
			attempts: memory.NewAttemptStore(),
			profiles: memory.NewProfileStore(),
			cleanup:  func() {},
		}, nil
	}

	if err := runMigrationsWithConfig(ctx, cfg); err != nil {
		return stores{}, err
	}
	db := postgres.Open(cfg.Postgres.URL)
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		db.Close()
		return stores{}, err
	}
	return stores{
		quizzes:  postgres.NewQuizStore(db),
		loader:   postgres.NewQuizLoader(pool),
		attempts: postgres.NewAttemptRepository(db),
		profiles: postgres.NewProfileRepository(db),
		cleanup: func() {
			pool.Close()
			db.Close()
		},
	}, nil
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("auth.jwt_secret not configured")
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.cleanup()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, st.loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(st.loader, quizTTL)
	}

	var sessionStore app.SessionRepository
	var redisSessions *redisinfra.SessionStore
	if redisClient != nil {
		redisSessions = redisinfra.NewSessionStore(redisClient, redisTTL)
		sessionStore = redisSessions
	} else {
		sessionStore = memory.NewSessionStore()
	}

	gamification := app.NewGamificationService(st.profiles, app.GamificationConfig{
		Curve:    app.LevelCurve{Base: cfg.Gamification.LevelBase, Step: cfg.Gamification.LevelStep},
		Location: cfg.Location(),
	})
	sessionCfg := app.SessionConfig{
		DefaultQuestionTime: config.TTLDuration(cfg.Session.DefaultQuestionTime, 30*time.Second),
		ResultsDelay:        config.TTLDuration(cfg.Session.ResultsDelay, 0),
		SpeedFloorPercent:   cfg.Session.SpeedFloorPercent,
	}
	services := transport.Services{
		Quizzes:      app.NewQuizService(st.quizzes, quizRepo),
		Attempts:     app.NewAttemptService(st.attempts, quizRepo, gamification),
		Sessions:     app.NewSessionService(sessionStore, st.quizzes, quizRepo, gamification, sessionCfg),
		Gamification: gamification,
		Assist: app.NewAssistService(genai.NewClient(
			cfg.AI.Endpoint,
			cfg.AI.APIKey,
			config.TTLDuration(cfg.AI.Timeout, 60*time.Second),
		)),
	}

	sweeper := app.NewSweeper(services.Attempts, services.Sessions, app.SweeperConfig{
		AttemptGrace:  config.TTLDuration(cfg.Sweeper.AttemptGrace, 2*time.Minute),
		MaxAttemptAge: config.TTLDuration(cfg.Sweeper.MaxAttemptAge, 24*time.Hour),
		SessionIdle:   config.TTLDuration(cfg.Session.IdleTTL, redisTTL),
	})
	if redisSessions != nil {
		sweeper.AddTask(redisSessions.Refresh)
	}
	schedule := cfg.Sweeper.Schedule
	if schedule == "" {
		schedule = "@every 1m"
	}
	jobs, err := sweeper.Schedule(ctx, schedule)
	if err != nil {
		return err
	}
	jobs.Start()
	defer jobs.Stop()

	mux := http.NewServeMux()
	transport.NewAPI(services, transport.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)).Register(mux)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuizzes seeds the in-memory store so a fresh checkout has something to play.
func sampleQuizzes() []domain.Quiz {
	now := time.Now()
	return []domain.Quiz{
		{
			ID:           "quiz-1",
			Title:        "Warm-up",
			Type:         domain.QuizTypePractice,
			TeacherID:    "demo-teacher",
			IsPublished:  true,
			PassingScore: 50,
			TotalPoints:  1,
			CreatedAt:    now,
			UpdatedAt:    now,
			Questions: []domain.Question{
				{
					ID:     "q1",
					QuizID: "quiz-1",
					Type:   domain.QuestionMultipleChoice,
					Prompt: "What is 2 + 2?",
					Options: []domain.Option{
						{ID: "o1", Text: "3", Correct: false},
						{ID: "o2", Text: "4", Correct: true},
						{ID: "o3", Text: "5", Correct: false},
					},
					Points: 1,
				},
			},
		},
	}
}
