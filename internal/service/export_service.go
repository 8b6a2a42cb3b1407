package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/editaliza/editaliza-api/internal/models"
	"github.com/editaliza/editaliza-api/pkg/export"
	appErrors "github.com/editaliza/editaliza-api/pkg/errors"
)

// ExportFormat enumerates supported schedule export formats.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatPDF  ExportFormat = "pdf"
	ExportFormatXLSX ExportFormat = "xlsx"
)

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

type xlsxRenderer interface {
	Render(data export.Dataset, sheet string) ([]byte, error)
}

type exportSessionLister interface {
	ListByPlan(ctx context.Context, planID string, filter models.SessionFilter) ([]models.StudySession, int, error)
}

// ExportFile is a rendered schedule ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a plan's schedule into downloadable files.
type ExportService struct {
	sessions exportSessionLister
	plans    subjectPlanReader
	csv      csvRenderer
	pdf      pdfRenderer
	xlsx     xlsxRenderer
	logger   *zap.Logger
}

// NewExportService constructs an ExportService.
func NewExportService(sessions exportSessionLister, plans subjectPlanReader, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer, xlsx xlsxRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if xlsx == nil {
		xlsx = export.NewXLSXExporter()
	}
	return &ExportService{sessions: sessions, plans: plans, csv: csv, pdf: pdf, xlsx: xlsx, logger: logger}
}

var exportHeaders = []string{"Data", "Matéria", "Tópico", "Tipo", "Status", "Duração (min)", "Questões"}

// Schedule renders the full schedule of a plan owned by the user.
func (s *ExportService) Schedule(ctx context.Context, planID, userID string, format ExportFormat) (*ExportFile, error) {
	plan, err := s.ownedPlan(ctx, planID, userID)
	if err != nil {
		return nil, err
	}

	sessions, _, err := s.sessions.ListByPlan(ctx, planID, models.SessionFilter{PageSize: 500})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list sessions")
	}

	dataset := buildScheduleDataset(sessions)
	stamp := time.Now().UTC().Format("20060102")

	var payload []byte
	var contentType, extension string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType, extension = "text/csv", "csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, plan.PlanName)
		contentType, extension = "application/pdf", "pdf"
	case ExportFormatXLSX:
		payload, err = s.xlsx.Render(dataset, "Cronograma")
		contentType, extension = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.logger.Info("schedule exported",
		zap.String("plan_id", planID),
		zap.String("format", string(format)),
		zap.Int("sessions", len(sessions)))
	return &ExportFile{
		Filename:    fmt.Sprintf("cronograma-%s-%s.%s", planID, stamp, extension),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func (s *ExportService) ownedPlan(ctx context.Context, planID, userID string) (*models.StudyPlan, error) {
	plan, err := s.plans.FindByID(ctx, planID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load plan")
	}
	if plan.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "study plan not found")
	}
	return plan, nil
}

func buildScheduleDataset(sessions []models.StudySession) export.Dataset {
	rows := make([]map[string]string, 0, len(sessions))
	for _, session := range sessions {
		questions := ""
		if session.QuestionsSolved != nil {
			questions = strconv.Itoa(*session.QuestionsSolved)
		}
		rows = append(rows, map[string]string{
			"Data":          session.SessionDate.Format("02/01/2006"),
			"Matéria":       session.SubjectName,
			"Tópico":        session.TopicDescription,
			"Tipo":          string(session.SessionType),
			"Status":        string(session.Status),
			"Duração (min)": strconv.Itoa(session.DurationMinutes),
			"Questões":      questions,
		})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
