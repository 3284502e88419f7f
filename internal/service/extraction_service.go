package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"medbill/internal/domain"
	"medbill/internal/export"
	"medbill/internal/extract"
	"medbill/internal/pageconv"
	"medbill/internal/port"
)

// ExtractionService defines the bill extraction contract.
type ExtractionService interface {
	ExtractFromURL(ctx context.Context, url string) (*domain.ExtractionRecord, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractionRecord, error)
	GetLatest(ctx context.Context) (*domain.ExtractionRecord, error)
	List(ctx context.Context, offset, limit int) ([]domain.ExtractionRecord, int, error)
	ExportXLSX(ctx context.Context, id uuid.UUID, w io.Writer) error
}

type extractionService struct {
	fetcher       port.DocumentFetcher
	converter     *pageconv.Converter
	extractor     *extract.Extractor
	repo          port.ExtractionRepository
	storage       port.ObjectStorage
	archiveBucket string
}

// NewExtractionService wires the extraction pipeline. repo may be nil, in
// which case extraction history is not persisted and history lookups
// return ErrNotFound. When storage is set and archiveBucket is non-empty,
// successful extraction results are additionally archived to object
// storage as JSON.
func NewExtractionService(fetcher port.DocumentFetcher, converter *pageconv.Converter, extractor *extract.Extractor, repo port.ExtractionRepository, storage port.ObjectStorage, archiveBucket string) ExtractionService {
	return &extractionService{
		fetcher:       fetcher,
		converter:     converter,
		extractor:     extractor,
		repo:          repo,
		storage:       storage,
		archiveBucket: archiveBucket,
	}
}

// ExtractFromURL runs the full pipeline: fetch, page conversion, model
// extraction, persistence. Pipeline failures are captured in the returned
// record rather than bubbled up; the error return is reserved for input we
// could not even begin to process.
func (s *extractionService) ExtractFromURL(ctx context.Context, url string) (*domain.ExtractionRecord, error) {
	start := time.Now()
	rec := &domain.ExtractionRecord{
		ID:        uuid.New(),
		SourceURL: url,
		CreatedAt: start.UTC(),
	}

	doc, err := s.fetcher.Fetch(ctx, url)
	if err != nil {
		return s.finish(ctx, rec, start, err)
	}

	pages, err := s.converter.Convert(ctx, doc.Data, doc.ContentType, doc.SourceName)
	if err != nil {
		return s.finish(ctx, rec, start, err)
	}
	rec.PageCount = len(pages)

	data, usage := s.extractor.Extract(ctx, pages)

	result, err := json.Marshal(data)
	if err != nil {
		return s.finish(ctx, rec, start, err)
	}

	rec.IsSuccess = true
	rec.ItemCount = data.TotalItemCount
	rec.InputTokens = usage.InputTokens
	rec.OutputTok = usage.OutputTokens
	rec.TotalTokens = usage.TotalTokens
	rec.Result = result
	s.archive(ctx, rec)
	return s.finish(ctx, rec, start, nil)
}

// archive uploads the result JSON to object storage, keyed by record ID.
// Archival is best-effort: failures are logged, never surfaced, since the
// caller already holds the extraction outcome.
func (s *extractionService) archive(ctx context.Context, rec *domain.ExtractionRecord) {
	if s.storage == nil || s.archiveBucket == "" {
		return
	}
	err := s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.archiveBucket,
		Key:         fmt.Sprintf("extractions/%s.json", rec.ID),
		Body:        bytes.NewReader(rec.Result),
		ContentType: "application/json",
	})
	if err != nil {
		log.Printf("extractionService: archiving record %s: %v", rec.ID, err)
	}
}

// finish stamps duration, records the failure cause if any, and persists
// the record. Persistence failures are logged, not returned: the caller
// already has the extraction outcome.
func (s *extractionService) finish(ctx context.Context, rec *domain.ExtractionRecord, start time.Time, cause error) (*domain.ExtractionRecord, error) {
	rec.DurationMS = time.Since(start).Milliseconds()
	if cause != nil {
		rec.IsSuccess = false
		rec.Error = cause.Error()
		log.Printf("extractionService: %s failed: %v", rec.SourceURL, cause)
	}

	if s.repo != nil {
		if err := s.repo.Create(ctx, rec); err != nil {
			log.Printf("extractionService: persisting record %s: %v", rec.ID, err)
		}
	}
	return rec, nil
}

func (s *extractionService) GetByID(ctx context.Context, id uuid.UUID) (*domain.ExtractionRecord, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *extractionService) GetLatest(ctx context.Context) (*domain.ExtractionRecord, error) {
	if s.repo == nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetLatest(ctx)
}

func (s *extractionService) List(ctx context.Context, offset, limit int) ([]domain.ExtractionRecord, int, error) {
	if s.repo == nil {
		return nil, 0, domain.ErrNotFound
	}
	return s.repo.List(ctx, offset, limit)
}

// ExportXLSX streams a stored extraction's line items as an Excel workbook.
func (s *extractionService) ExportXLSX(ctx context.Context, id uuid.UUID, w io.Writer) error {
	rec, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if len(rec.Result) == 0 {
		return domain.ErrNotFound
	}

	var data domain.ExtractionData
	if err := json.Unmarshal(rec.Result, &data); err != nil {
		return err
	}
	return export.WriteXLSX(w, &data)
}
