package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/expensetracker/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

const pdfContentType = "application/pdf"

// ReportHandler serves PDF statements.
type ReportHandler struct {
	reportService *services.ReportService
	logger        *slog.Logger
}

func NewReportHandler(reportService *services.ReportService, logger *slog.Logger) *ReportHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReportHandler{reportService: reportService, logger: logger}
}

// ReportRouter registers archived report routes. The router must already
// carry RequireAuth.
func ReportRouter(r chi.Router, reportService *services.ReportService, logger *slog.Logger) {
	handler := NewReportHandler(reportService, logger)

	r.Get("/{reportID}", handler.FetchReport)
}

func (h *ReportHandler) Statement(w http.ResponseWriter, r *http.Request) {
	claims, err := ClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	report, err := h.reportService.Statement(r.Context(), claims)
	if err != nil {
		h.logger.Error("build report failed", "user_id", claims.UserID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to build report")
		return
	}

	if report.ID != "" {
		w.Header().Set("X-Report-ID", report.ID)
	}
	writePDF(w, "expense-statement.pdf", report.PDF)
}

func (h *ReportHandler) FetchReport(w http.ResponseWriter, r *http.Request) {
	claims, err := ClaimsFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid token")
		return
	}

	reportID := chi.URLParam(r, "reportID")
	pdf, err := h.reportService.Fetch(r.Context(), claims.UserID, reportID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrReportNotFound):
			writeError(w, http.StatusNotFound, "report not found")
		case errors.Is(err, services.ErrReportsDisabled):
			writeError(w, http.StatusNotFound, "reports are not archived")
		default:
			h.logger.Error("fetch report failed", "user_id", claims.UserID, "report_id", reportID, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to fetch report")
		}
		return
	}
	writePDF(w, reportID+".pdf", pdf)
}

func writePDF(w http.ResponseWriter, filename string, pdf []byte) {
	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
