package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/VeriFact/VF-Backend/internal/catalog"
	"github.com/VeriFact/VF-Backend/internal/config"
	"github.com/VeriFact/VF-Backend/internal/consensus"
	"github.com/VeriFact/VF-Backend/internal/db"
	"github.com/VeriFact/VF-Backend/internal/debate"
	"github.com/VeriFact/VF-Backend/internal/engine"
	"github.com/VeriFact/VF-Backend/internal/fact"
	"github.com/VeriFact/VF-Backend/internal/logger"
	"github.com/VeriFact/VF-Backend/internal/moderation"
	"github.com/VeriFact/VF-Backend/internal/notify"
	"github.com/VeriFact/VF-Backend/internal/trust"
	"github.com/VeriFact/VF-Backend/internal/veto"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Engine is up!")
}

func main() {
	_ = godotenv.Load(".env.local")

	log, err := logger.New(os.Getenv("APP_ENV"))
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init failed:", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatal("config load failed", "err", err)
	}

	db.Connect()
	trust.Init()
	consensus.Init()
	fact.Init()
	veto.Init()
	moderation.Init()
	debate.Init()
	catalog.Init()
	notify.Init()

	dispatch := notify.NewDBDispatcher(db.DB, log, cfg.Notify)
	trustSvc := trust.NewService(db.DB, log)
	cons := consensus.NewService(db.DB, log, trustSvc)
	queue := moderation.NewQueueService(db.DB, log, trustSvc, dispatch)
	roster := moderation.NewRosterService(db.DB, log, dispatch, cfg.Moderator, engine.RealClock())
	facts := fact.NewService(db.DB, log, cons, trustSvc, queue, dispatch, cfg.Consensus.Fact)
	veto.NewService(db.DB, log, cons, trustSvc, dispatch, cfg.Consensus.Veto)
	debate.NewService(db.DB, log, cons, trustSvc, facts, dispatch, engine.RealClock())
	catalog.NewService(db.DB, log, cons, trustSvc, dispatch, cfg.Consensus.CategoryMerge)

	go runRosterJobs(log, roster)

	port := os.Getenv("PORT")
	if port == "" {
		port = "5050"
	}

	r := chi.NewRouter()
	r.Get("/", RootHandler)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		sqlDB, err := db.DB.DB()
		if err != nil || sqlDB.Ping() != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	log.Info("server listening", "port", port)
	if err := http.ListenAndServe("0.0.0.0:"+port, r); err != nil {
		log.Fatal("server stopped", "err", err)
	}
}

// runRosterJobs periodically demotes idle moderators and fills vacant
// seats. The roster service serializes runs internally.
func runRosterJobs(log *logger.Logger, roster *moderation.RosterService) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		demoted, promoted, err := roster.HandleInactiveModerators(ctx)
		cancel()
		if err != nil {
			log.Error("roster maintenance failed", "err", err)
			continue
		}
		if len(demoted) > 0 || len(promoted) > 0 {
			log.Info("roster maintenance", "demoted", len(demoted), "promoted", len(promoted))
		}
	}
}
