package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"quiz-server/config"
	"quiz-server/db"
	"quiz-server/exam"
	"quiz-server/handlers"
	"quiz-server/ingestion"
	"quiz-server/logger"
	"quiz-server/middleware"
	"quiz-server/models"
	"quiz-server/session"
)

const usage = `usage: quiz-server [flags] [serve|seed|create-admin]

  serve         run the HTTP server (default)
  seed          import questions from a YAML seed file (--file, --delete-all)
  create-admin  create the admin account from ADMIN.* settings when absent
`

func main() {
	fs := pflag.NewFlagSet("quiz-server", pflag.ExitOnError)
	config.Flags(fs)
	seedFile := fs.String("file", "seed.yaml", "seed file for the seed command")
	deleteAll := fs.Bool("delete-all", false, "seed: delete all existing questions first")
	fs.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.LoadConfig(fs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := fs.Arg(0)
	switch cmd {
	case "", "serve":
		err = serve(ctx, cfg, log)
	case "seed":
		err = seed(ctx, cfg, log, *seedFile, *deleteAll)
	case "create-admin":
		err = createAdmin(ctx, cfg, log)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed", "command", cmd, "error", err)
		log.Sync()
		os.Exit(1)
	}
}

func openDB(ctx context.Context, cfg *config.Config, log *logger.Logger) (*pgxpool.Pool, error) {
	pool, err := db.InitDB(ctx, cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := db.CreateSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error creating database schema: %w", err)
	}
	return pool, nil
}

func serve(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	pool, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	g, gctx := errgroup.WithContext(ctx)

	var store session.Store
	switch cfg.Session.Backend {
	case "redis":
		rs, err := session.NewRedisStore(ctx, cfg.Session.RedisURL, cfg.Session.TTL)
		if err != nil {
			return err
		}
		defer rs.Close()
		store = rs
		log.Info("session store ready", "backend", "redis")
	default:
		ms := session.NewMemoryStore(cfg.Session.TTL)
		store = ms
		g.Go(func() error {
			ticker := time.NewTicker(10 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if n := ms.Sweep(); n > 0 {
						log.Debug("expired sessions swept", "count", n)
					}
				}
			}
		})
		log.Warn("using in-memory sessions; state is lost on restart and not shared between instances")
	}

	questions := db.NewQuestionRepo(pool, log)
	answers := db.NewAnswerRepo(pool, log)
	checks := db.NewCheckRepo(pool, log)
	results := db.NewResultRepo(pool, log)
	users := db.NewUserRepo(pool, log)
	audit := db.NewLogStore(pool, log)

	if cfg.Exam.ProctorPassword == "" {
		log.Warn("EXAM.PROCTOR_PASSWORD is empty; proctored exams are disabled")
	}
	engine := exam.NewEngine(questions, answers, checks, results, exam.Config{
		ExamSize:        cfg.Exam.Size,
		ExamDuration:    cfg.Exam.Duration,
		ProctorPassword: cfg.Exam.ProctorPassword,
	}, log)

	deps := &handlers.Deps{
		Engine:       engine,
		Questions:    questions,
		Answers:      answers,
		Checks:       checks,
		Results:      results,
		Users:        users,
		Audit:        audit,
		Tokens:       middleware.NewTokenIssuer(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.TokenTTL, cfg.Auth.CookieName),
		Log:          log.With("component", "handlers"),
		RangeSize:    cfg.Quiz.RangeSize,
		ExamSize:     cfg.Exam.Size,
		ExamDuration: cfg.Exam.Duration,
		ImageDir:     filepath.Join(cfg.StaticDir, "images"),
	}

	gin.SetMode(cfg.GinMode)
	router := handlers.NewRouter(deps, handlers.SessionOptions{
		Store:      store,
		CookieName: cfg.Session.CookieName,
		MaxAge:     int(cfg.Session.TTL.Seconds()),
	})
	router.HTMLRender = handlers.LoadTemplates(cfg.TemplatesDir)
	router.Static("/static", cfg.StaticDir)

	srv := &http.Server{
		Addr:              cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("quiz server starting", "addr", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server startup error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("server exited gracefully")
	return nil
}

func seed(ctx context.Context, cfg *config.Config, log *logger.Logger, path string, deleteAll bool) error {
	pool, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	audit := db.NewLogStore(pool, log)
	report, err := ingestion.LoadSeedFile(ctx, db.NewQuestionRepo(pool, log), audit, path, deleteAll)
	if err != nil {
		return err
	}
	audit.LogAdminEvent(ctx, "system", "seed_questions", path,
		fmt.Sprintf("inserted=%d updated=%d delete_all=%t", report.Inserted, report.Updated, deleteAll))
	log.Info("seed complete", "file", path, "inserted", report.Inserted, "updated", report.Updated)
	return nil
}

func createAdmin(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	if cfg.Admin.Password == "" {
		return errors.New("ADMIN.PASSWORD must be set (e.g. QUIZ_ADMIN_PASSWORD)")
	}
	pool, err := openDB(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := db.NewUserRepo(pool, log)
	if existing, err := users.GetByUsername(ctx, cfg.Admin.Username); err == nil {
		log.Info("admin account already exists", "username", existing.Username, "is_admin", existing.IsAdmin)
		return nil
	} else if !errors.Is(err, models.ErrNotFound) {
		return err
	}

	hash, err := handlers.HashPassword(cfg.Admin.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	u := &models.User{Username: cfg.Admin.Username, Email: cfg.Admin.Email, PasswordHash: hash, IsAdmin: true}
	if err := users.Create(ctx, u); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	db.NewLogStore(pool, log).LogAdminEvent(ctx, "system", "create_admin", u.Username, "")
	log.Info("admin account created", "username", u.Username, "id", u.ID)
	return nil
}
