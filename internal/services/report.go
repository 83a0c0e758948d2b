package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/expensetracker/apiserver/internal/auth"
	"github.com/expensetracker/apiserver/internal/report"
	"github.com/expensetracker/apiserver/internal/storage"
	"github.com/google/uuid"
)

// ReportArchive persists rendered reports per user.
type ReportArchive interface {
	Save(ctx context.Context, userID int64, reportID string, pdf []byte) error
	Load(ctx context.Context, userID int64, reportID string) ([]byte, error)
}

// Report is a rendered statement. ID is empty when it was not archived.
type Report struct {
	ID  string
	PDF []byte
}

// ReportService renders PDF statements and serves archived ones.
type ReportService struct {
	expenses *ExpenseService
	archive  ReportArchive
	logger   *slog.Logger
	now      func() time.Time
}

// NewReportService builds a ReportService. A nil archive disables archiving
// and Fetch.
func NewReportService(expenses *ExpenseService, archive ReportArchive, logger *slog.Logger) *ReportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportService{
		expenses: expenses,
		archive:  archive,
		logger:   logger,
		now:      time.Now,
	}
}

// Statement renders the caller's statement and archives it when an archive
// is configured. Archive failures are logged and the PDF is still returned.
func (s *ReportService) Statement(ctx context.Context, claims auth.Claims) (Report, error) {
	expenses, err := s.expenses.List(ctx, claims.UserID)
	if err != nil {
		return Report{}, err
	}

	pdf, err := report.BuildPDF(report.Statement{
		Email:       claims.Email,
		GeneratedAt: s.now(),
		Summary:     Summarize(expenses),
		Expenses:    expenses,
	})
	if err != nil {
		return Report{}, fmt.Errorf("build statement: %w", err)
	}

	out := Report{PDF: pdf}
	if s.archive == nil {
		return out, nil
	}

	id := uuid.NewString()
	if err := s.archive.Save(ctx, claims.UserID, id, pdf); err != nil {
		s.logger.Error("failed to archive report", "user_id", claims.UserID, "report_id", id, "error", err)
		return out, nil
	}
	out.ID = id
	return out, nil
}

// Fetch loads an archived report owned by the caller.
func (s *ReportService) Fetch(ctx context.Context, callerID int64, reportID string) ([]byte, error) {
	if s.archive == nil {
		return nil, ErrReportsDisabled
	}
	if _, err := uuid.Parse(reportID); err != nil {
		return nil, ErrReportNotFound
	}

	pdf, err := s.archive.Load(ctx, callerID, reportID)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("load report: %w", err)
	}
	return pdf, nil
}
