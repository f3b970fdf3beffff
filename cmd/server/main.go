package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/git-sakshii/RealPrep-AI-App/internal/ai"
	"github.com/git-sakshii/RealPrep-AI-App/internal/api"
	"github.com/git-sakshii/RealPrep-AI-App/internal/audio"
	"github.com/git-sakshii/RealPrep-AI-App/internal/config"
	"github.com/git-sakshii/RealPrep-AI-App/internal/db"
	"github.com/git-sakshii/RealPrep-AI-App/internal/middleware"
	"github.com/git-sakshii/RealPrep-AI-App/internal/services"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	cfg := config.Load()
	commit := os.Getenv("REALPREP_COMMIT")
	buildTime := os.Getenv("REALPREP_BUILD_TIME")

	var store api.Store
	if cfg.SQLitePath != "" {
		s, err := db.Open(cfg.SQLitePath, cfg.MigrationsDir)
		if err != nil {
			log.Error("failed to open sqlite store", "path", cfg.SQLitePath, "error", err)
			os.Exit(1)
		}
		store = s
		log.Info("using sqlite store", "path", cfg.SQLitePath)
	} else {
		store = api.NewMemoryStore()
		log.Info("using in-memory store")
	}

	chat, stt, tts, emotion, retriever := buildAdapters(cfg, log)

	gen := ai.NewGenerator(chat, log)
	authSvc := services.NewAuthService(store, middleware.SignToken)
	sessionSvc := services.NewSessionService(store, gen, stt, tts, emotion, retriever, log)

	spool := audio.NewSpool(cfg.RecordingsDir)
	router := api.NewRouter(authSvc, sessionSvc, spool, log)
	routes := router.Routes()

	routes.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":         true,
			"name":       "RealPrep API",
			"commit":     commit,
			"build_time": buildTime,
		})
	})
	routes.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"commit":     commit,
			"build_time": buildTime,
		})
	})

	// Frontend serving strategy (priority):
	// 1) Static files if REALPREP_STATIC_DIR is set (fullstack image)
	// 2) Dev proxy if REALPREP_DEV_FRONTEND_URL is set (proxy / to Vite dev)
	if cfg.StaticDir != "" {
		routes.PathPrefix("/").Handler(http.FileServer(http.Dir(cfg.StaticDir)))
	} else if cfg.DevFrontendURL != "" {
		if u, err := url.Parse(cfg.DevFrontendURL); err == nil {
			rp := httputil.NewSingleHostReverseProxy(u)
			rp.ModifyResponse = func(res *http.Response) error {
				res.Header.Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
				res.Header.Set("Pragma", "no-cache")
				res.Header.Set("Expires", "0")
				return nil
			}
			routes.PathPrefix("/").Handler(rp)
		} else {
			log.Warn("invalid dev frontend URL", "url", cfg.DevFrontendURL, "error", err)
		}
	}

	handler := middleware.CORS(middleware.SecureHeaders(middleware.NoStore(routes)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Recordings dropped into the spool dir outside the API (screen
	// recorders, external capture) are transcribed in the background and
	// attached to their session's transcript.
	watcher, err := audio.NewWatcher(cfg.RecordingsDir, stt, sessionSvc.AttachTranscript, log)
	if err != nil {
		log.Warn("recording watcher unavailable", "dir", cfg.RecordingsDir, "error", err)
	} else {
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Warn("recording watcher stopped", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server listening", "addr", cfg.Addr, "mock_ai", cfg.UseMockAI)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
}

// buildAdapters selects the cloud clients, or deterministic mocks when
// REALPREP_USE_MOCK_AI is set or the Azure credentials are missing.
func buildAdapters(cfg *config.Config, log *slog.Logger) (ai.ChatClient, ai.Transcriber, ai.Synthesizer, ai.EmotionClient, ai.QuestionRetriever) {
	if cfg.UseMockAI || cfg.AzureEndpoint == "" || cfg.AzureAPIKey == "" {
		if !cfg.UseMockAI {
			log.Warn("azure credentials missing, using mock AI adapters")
		}
		return ai.MockChat{}, ai.MockTranscriber{}, ai.NewGatedSynthesizer(ai.MockSynthesizer{}), ai.MockEmotion{}, ai.MockRetriever{}
	}

	chat := ai.NewAzureChatClient(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.ChatDeployment, cfg.APIVersion)
	stt := ai.NewWhisperClient(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.WhisperDeployment, cfg.APIVersion)
	tts := ai.NewGatedSynthesizer(ai.NewSpeechClient(cfg.AzureEndpoint, cfg.AzureAPIKey, cfg.APIVersion, cfg.TTSModel, cfg.TTSVoice))

	var emotion ai.EmotionClient = ai.MockEmotion{}
	if cfg.HumeAPIKey != "" {
		emotion = ai.NewHumeClient(cfg.HumeURL, cfg.HumeAPIKey)
	} else {
		log.Warn("hume api key missing, emotion inference mocked")
	}

	return chat, stt, tts, emotion, ai.NewRetrievalClient(cfg.RetrievalURL)
}
