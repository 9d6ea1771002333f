package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/mikeboe/market-research/pkg/archive"
	"github.com/mikeboe/market-research/pkg/chat"
	"github.com/mikeboe/market-research/pkg/config"
	"github.com/mikeboe/market-research/pkg/database"
	"github.com/mikeboe/market-research/pkg/embeddings"
	"github.com/mikeboe/market-research/pkg/research"
	"github.com/mikeboe/market-research/pkg/server"
	"github.com/mikeboe/market-research/pkg/splitter"
	"github.com/mikeboe/market-research/pkg/vectorstore"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	cfg := config.Load()
	ctx := context.Background()

	db, err := database.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	if err := db.CreateSourcesTable(ctx, cfg.CollectionName, embeddings.DefaultDimension); err != nil {
		log.Fatalf("Failed to initialize sources table: %v", err)
	}

	engine, err := research.NewEngine(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to init research engine: %v", err)
	}
	defer engine.Close()

	// Source archive
	embedder, err := embeddings.NewGoogleEmbedder(ctx, cfg.EmbeddingModel, cfg.GoogleApiKey, embeddings.DefaultDimension)
	if err != nil {
		log.Fatalf("Failed to init embedder: %v", err)
	}
	store, err := vectorstore.NewStore(db.Pool, cfg.CollectionName)
	if err != nil {
		log.Fatalf("Failed to init vector store: %v", err)
	}
	indexer := archive.NewIndexer(splitter.NewRecursiveCharacterTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap), embedder, store)
	retriever := archive.NewRetriever(embedder, store)

	chatSvc, err := chat.NewService(ctx, db, cfg, retriever)
	if err != nil {
		log.Fatalf("Failed to init chat service: %v", err)
	}

	svc := server.NewService(server.NewPostgresStore(db), server.Pipelines{
		Competitors: func(rt server.Runtime) server.CompetitorRunner {
			return engine.Competitors(rt.Logger, rt.Observer)
		},
		Reports: func(rt server.Runtime) server.ReportRunner {
			return engine.Report(rt.Logger, rt.Observer)
		},
		Landscape: func(rt server.Runtime) server.LandscapeRunner {
			return engine.Landscape(rt.Logger, rt.Observer)
		},
		Canvas: func(rt server.Runtime) server.CanvasGenerator {
			return engine.Canvas(rt.Logger)
		},
	}, indexer)

	handler := server.NewHandler(svc, chatSvc, server.NewMCPHandler(server.NewMCPServer(retriever)))
	handler.Limits = cfg.Limits

	r := gin.Default()
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Mcp-Session-Id"},
		ExposeHeaders:    []string{"Content-Length", "Mcp-Session-Id"},
		AllowCredentials: true,
	}))

	handler.RegisterRoutes(r)

	slog.Info("Server starting", "port", cfg.Port, "search_provider", cfg.SearchProvider)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
