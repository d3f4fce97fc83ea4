package main

import (
	"context"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"

	"polychat/internal/auth"
	"polychat/internal/billing"
	"polychat/internal/config"
	"polychat/internal/handler"
	"polychat/internal/imagejob"
	"polychat/internal/llm"
	anthropicProvider "polychat/internal/llm/providers/anthropic"
	geminiProvider "polychat/internal/llm/providers/gemini"
	openaiProvider "polychat/internal/llm/providers/openai"
	"polychat/internal/middleware"
	"polychat/internal/quota"
	"polychat/internal/repository/jobcache"
	"polychat/internal/repository/postgres"
	"polychat/internal/service"
	"polychat/internal/storage"
	"polychat/internal/tokenizer"
	"polychat/internal/usage"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logOut := io.Writer(os.Stdout)
	if cfg.LogDir != "" {
		logFile, err := config.SetupLogFile(cfg.LogDir, cfg.LogMaxFiles)
		if err != nil {
			log.Fatalf("Failed to set up log file: %v", err)
		}
		defer logFile.Close()
		logOut = io.MultiWriter(os.Stdout, logFile)
	}
	logger := slog.New(slog.NewJSONHandler(logOut, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"table_prefix", cfg.TablePrefix,
	)

	jwtVerifier, err := auth.NewJWTVerifier(cfg.JWKSURL, logger)
	if err != nil {
		log.Fatalf("Failed to create JWT verifier: %v", err)
	}
	defer jwtVerifier.Close()

	ctx := context.Background()
	pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to parse Redis URL: %v", err)
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	logger.Info("redis connected")

	// Repositories
	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: postgres.NewTableNames(cfg.TablePrefix),
		Logger: logger,
	}
	userRepo := postgres.NewUserRepository(repoConfig)
	chatRepo := postgres.NewConversationRepository(repoConfig)
	botRepo := postgres.NewBotRepository(repoConfig)

	// Quota and usage
	tierTable, err := quota.LoadTierTable(cfg.TierTablePath)
	if err != nil {
		log.Fatalf("Failed to load tier table: %v", err)
	}
	enforcer := quota.NewEnforcer(tierTable)
	accountant := usage.NewAccountant(userRepo, logger)

	// Provider registry. Adapters are built lazily on first use so a
	// missing credential only breaks requests for that provider.
	factory := llm.NewFactory(llm.Credentials{
		OpenAIAPIKey:    cfg.OpenAIAPIKey,
		AnthropicAPIKey: cfg.AnthropicAPIKey,
		GeminiAPIKey:    cfg.GeminiAPIKey,
		TogetherAPIKey:  cfg.TogetherAPIKey,
		TogetherBaseURL: cfg.TogetherBaseURL,
	})
	factory.Register(llm.ProviderOpenAI, openaiProvider.New)
	factory.Register(llm.ProviderAnthropic, anthropicProvider.New)
	factory.Register(llm.ProviderGemini, geminiProvider.New)
	factory.Register(llm.ProviderLlama, func(creds llm.Credentials) (llm.ChatProvider, error) {
		return openaiProvider.NewCompat(creds, llm.ProviderLlama)
	})
	factory.Register(llm.ProviderMixtral, func(creds llm.Credentials) (llm.ChatProvider, error) {
		return openaiProvider.NewCompat(creds, llm.ProviderMixtral)
	})
	registry := llm.NewRegistry(factory, 10, 20)

	// Image generation
	mirror, err := storage.NewFileMirror(cfg.MediaDir, "/media")
	if err != nil {
		log.Fatalf("Failed to create media mirror: %v", err)
	}
	modelsLab, err := imagejob.NewModelsLabClient(cfg.ModelsLabAPIKey, "")
	if err != nil {
		log.Fatalf("Failed to create ModelsLab client: %v", err)
	}
	jobManager := imagejob.NewManager(modelsLab, jobcache.New(rdb), mirror, logger)

	var dalle *imagejob.DalleClient
	if cfg.OpenAIAPIKey != "" {
		dalle, err = imagejob.NewDalleClient(cfg.OpenAIAPIKey)
		if err != nil {
			log.Fatalf("Failed to create DALL-E client: %v", err)
		}
	}

	// Services
	estimator := tokenizer.NewEstimator()
	chatService := service.NewChatService(registry, estimator, accountant, enforcer, chatRepo, service.ChatOptions{
		RequestTimeout:  cfg.RequestTimeout,
		PersistPartials: cfg.PersistPartials,
	}, logger)
	imageService := service.NewImageService(jobManager, dalle, mirror, accountant, enforcer, chatRepo, logger)
	botService := service.NewBotService(botRepo, chatRepo, chatService, logger)

	// Handlers
	chatHandler := handler.NewChatHandler(chatRepo, chatService, logger)
	imageHandler := handler.NewImageHandler(imageService, logger)
	modelsHandler := handler.NewModelsHandler()
	botHandler := handler.NewBotHandler(botService, logger)
	webhookHandler := billing.NewWebhookHandler(cfg.StripeWebhookSecret, userRepo, logger)

	logger.Info("services initialized")

	mux := http.NewServeMux()

	// Conversation routes
	mux.HandleFunc("POST /api/chats", chatHandler.CreateChat)
	mux.HandleFunc("GET /api/chats/{chatID}/messages", chatHandler.GetHistory)
	mux.HandleFunc("DELETE /api/chats/{chatID}", chatHandler.DeleteChat)

	// Chat exchange routes
	mux.HandleFunc("POST /api/chat", chatHandler.SendMessage)
	mux.HandleFunc("POST /api/chat/stream", chatHandler.StreamMessage)

	// Image routes
	mux.HandleFunc("POST /api/images", imageHandler.Generate)
	mux.HandleFunc("GET /api/images/{jobID}", imageHandler.Poll)

	// Catalog
	mux.HandleFunc("GET /api/models", modelsHandler.List)

	// Bot routes
	mux.HandleFunc("POST /api/bots", botHandler.Create)
	mux.HandleFunc("GET /api/bots/{botID}", botHandler.Get)
	mux.HandleFunc("PUT /api/bots/{botID}", botHandler.Update)
	mux.HandleFunc("DELETE /api/bots/{botID}", botHandler.Delete)

	// Auth-protected routes get the JWT middleware; webhook, bot invoke
	// and mirrored media authenticate differently.
	var protected http.Handler = mux
	protected = middleware.Auth(jwtVerifier, logger)(protected)

	root := http.NewServeMux()
	root.Handle("/", protected)
	root.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	root.HandleFunc("POST /api/bots/invoke", botHandler.Invoke)
	root.HandleFunc("POST /api/bots/invoke/stream", botHandler.InvokeStream)
	root.HandleFunc("POST /webhooks/stripe", webhookHandler.ServeHTTP)
	root.Handle("GET /media/", http.StripPrefix("/media/", http.FileServer(http.Dir(cfg.MediaDir))))

	var app http.Handler = root
	app = middleware.Recovery(logger)(app)

	// CORS - Must be outermost to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID", "X-Bot-Key"},
		AllowCredentials: true,
	})
	app = corsHandler.Handler(app)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      app,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
}
