package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/relaycrm/crm-api/internal/models"
	"github.com/relaycrm/crm-api/pkg/export"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

// Export formats supported by the list endpoints.
const (
	ExportFormatCSV = "csv"
	ExportFormatPDF = "pdf"
)

// FilteredLister yields a user's filtered, unpaginated set for one view.
type FilteredLister interface {
	Filtered(ctx context.Context, userID string) ([]models.Shareable, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportOutput is one rendered export, returned inline to the caller.
type ExportOutput struct {
	Filename    string
	ContentType string
	Payload     []byte
}

// ExportService renders a user's current filtered view into a downloadable
// file. The dataset mirrors exactly what the list shows, unpaginated: the
// same visibility, category, and query narrowing applies.
type ExportService struct {
	views   map[string]FilteredLister
	csv     csvRenderer
	pdf     pdfRenderer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewExportService constructs an ExportService over the registered views.
// metrics may be nil.
func NewExportService(views map[string]FilteredLister, csv csvRenderer, pdf pdfRenderer, metrics *MetricsService, logger *zap.Logger) *ExportService {
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{views: views, csv: csv, pdf: pdf, metrics: metrics, logger: logger}
}

// Generate renders the filtered set of (user, view) in the given format.
func (s *ExportService) Generate(ctx context.Context, userID, view, format string) (*ExportOutput, error) {
	lister, ok := s.views[view]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown view %q", view))
	}

	records, err := lister.Filtered(ctx, userID)
	if err != nil {
		return nil, err
	}
	dataset := buildDataset(view, records)

	var payload []byte
	var contentType string
	switch format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv"
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, view)
		contentType = "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported format %q", format))
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	s.metrics.RecordExport(view, format)
	s.logger.Info("export generated",
		zap.String("view", view),
		zap.String("format", format),
		zap.String("user_id", userID),
		zap.Int("rows", len(records)),
	)
	return &ExportOutput{
		Filename:    fmt.Sprintf("%s-%s.%s", view, time.Now().UTC().Format("20060102-150405"), format),
		ContentType: contentType,
		Payload:     payload,
	}, nil
}

func buildDataset(view string, records []models.Shareable) export.Dataset {
	switch view {
	case ViewOpportunities:
		return opportunityDataset(records)
	case ViewLeads:
		return leadDataset(records)
	case ViewTasks:
		return taskDataset(records)
	default:
		return genericDataset(records)
	}
}

func opportunityDataset(records []models.Shareable) export.Dataset {
	headers := []string{"Name", "Stage", "Amount", "Probability", "Closes On", "Access"}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		opp, ok := rec.(models.Opportunity)
		if !ok {
			continue
		}
		closesOn := ""
		if opp.ClosesOn != nil {
			closesOn = opp.ClosesOn.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Name":        opp.Name,
			"Stage":       opp.Stage,
			"Amount":      strconv.FormatFloat(opp.Amount, 'f', 2, 64),
			"Probability": strconv.Itoa(opp.Probability),
			"Closes On":   closesOn,
			"Access":      string(opp.Access),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func leadDataset(records []models.Shareable) export.Dataset {
	headers := []string{"Name", "Company", "Email", "Phone", "Status", "Access"}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		lead, ok := rec.(models.Lead)
		if !ok {
			continue
		}
		rows = append(rows, map[string]string{
			"Name":    lead.FullName(),
			"Company": lead.Company,
			"Email":   lead.Email,
			"Phone":   lead.Phone,
			"Status":  lead.Status,
			"Access":  string(lead.Access),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func taskDataset(records []models.Shareable) export.Dataset {
	headers := []string{"Name", "Category", "Due At", "Access"}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		task, ok := rec.(models.Task)
		if !ok {
			continue
		}
		dueAt := ""
		if task.DueAt != nil {
			dueAt = task.DueAt.Format("2006-01-02")
		}
		rows = append(rows, map[string]string{
			"Name":     task.Name,
			"Category": task.TaskCategory,
			"Due At":   dueAt,
			"Access":   string(task.Access),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

// genericDataset covers views without a dedicated layout, such as accounts
// and contacts, using the shared capability surface.
func genericDataset(records []models.Shareable) export.Dataset {
	headers := []string{"Name", "Access"}
	rows := make([]map[string]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, map[string]string{
			"Name":   rec.SearchText(),
			"Access": string(rec.RecordAccess()),
		})
	}
	return export.Dataset{Headers: headers, Rows: rows}
}
