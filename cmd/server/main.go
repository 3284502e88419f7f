package main

import (
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"

	"medbill/internal/aggregate"
	"medbill/internal/config"
	"medbill/internal/extract"
	"medbill/internal/fetch"
	"medbill/internal/handler"
	"medbill/internal/pageconv"
	"medbill/internal/port"
	"medbill/internal/repository/postgres"
	"medbill/internal/router"
	"medbill/internal/service"
	s3storage "medbill/internal/storage/s3"
	"medbill/internal/validate"
	"medbill/internal/vision/gemini"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Extraction history is optional; without a database the service
	// still answers the extraction contract.
	var db *sqlx.DB
	var repo port.ExtractionRepository
	if cfg.DB.Enabled {
		db, err = postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer db.Close()
		repo = postgres.NewExtractionRepo(db)
	}

	// Object storage is optional; without credentials only http(s)
	// sources are accepted.
	var storage port.ObjectStorage
	if cfg.S3.AccessKey != "" || cfg.S3.Endpoint != "" {
		storage, err = s3storage.NewS3Client(&cfg.S3)
		if err != nil {
			return fmt.Errorf("failed to initialize S3 client: %w", err)
		}
	}

	fetcher := fetch.NewFetcher(&cfg.Fetch, storage)

	converter := pageconv.New(pageconv.Config{
		MaxPages:         cfg.Extract.MaxPages,
		MaxDim:           cfg.Extract.MaxDim,
		MinDim:           cfg.Extract.MinDim,
		Zoom:             cfg.Extract.Zoom,
		DigitalTextChars: cfg.Extract.DigitalTextChars,
	})

	model := gemini.NewClient(&cfg.Gemini)

	validator := validate.NewValidator()
	validator.ToleranceAbs = cfg.Extract.ToleranceAbs
	validator.TolerancePct = cfg.Extract.TolerancePct

	extractor := extract.New(model, validator, aggregate.New(aggregate.DefaultConfig()), extract.Config{
		Budget:          time.Duration(cfg.Extract.BudgetSecs) * time.Second,
		SafetyMargin:    time.Duration(cfg.Extract.SafetyMarginSecs) * time.Second,
		PageTimeout:     time.Duration(cfg.Extract.PageTimeoutSecs) * time.Second,
		Workers:         cfg.Extract.Workers,
		Stagger:         time.Duration(cfg.Extract.StaggerMS) * time.Millisecond,
		SequentialBelow: cfg.Extract.SequentialBelow,
		MaxAttempts:     cfg.Extract.MaxAttempts,
		MaxOutputTokens: cfg.Gemini.MaxOutputTokens,
		EstimateInput:   cfg.Extract.EstimateInputTok,
		EstimateOutput:  cfg.Extract.EstimateOutputTok,
	})

	extractSvc := service.NewExtractionService(fetcher, converter, extractor, repo, storage, cfg.S3.ArchiveBucket)

	extractH := handler.NewExtractHandler(extractSvc)
	healthH := handler.NewHealthHandler(db, cfg.Gemini.Model, cfg.Gemini.APIKey != "")

	r := router.Setup(cfg, extractH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}
