package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaycrm/crm-api/internal/models"
	appErrors "github.com/relaycrm/crm-api/pkg/errors"
)

type staticLister struct {
	records []models.Shareable
	err     error
}

func (s staticLister) Filtered(_ context.Context, _ string) ([]models.Shareable, error) {
	return s.records, s.err
}

func TestExportGenerateCSV(t *testing.T) {
	lister := staticLister{records: []models.Shareable{
		models.Opportunity{ID: "o1", Name: "Acme renewal", Stage: "prospecting", Amount: 1200.5, Probability: 60, Access: models.AccessPrivate},
	}}
	svc := NewExportService(map[string]FilteredLister{ViewOpportunities: lister}, nil, nil, nil, nil)

	out, err := svc.Generate(context.Background(), "u1", ViewOpportunities, ExportFormatCSV)
	require.NoError(t, err)

	assert.Equal(t, "text/csv", out.ContentType)
	assert.True(t, strings.HasPrefix(out.Filename, "opportunities-"))
	assert.True(t, strings.HasSuffix(out.Filename, ".csv"))

	body := string(out.Payload)
	assert.Contains(t, body, "Name,Stage,Amount,Probability,Closes On,Access")
	assert.Contains(t, body, "Acme renewal,prospecting,1200.50,60,,Private")
}

func TestExportGeneratePDF(t *testing.T) {
	lister := staticLister{records: []models.Shareable{
		models.Task{ID: "t1", Name: "call prospect", TaskCategory: "call", Access: models.AccessPublic},
	}}
	svc := NewExportService(map[string]FilteredLister{ViewTasks: lister}, nil, nil, nil, nil)

	out, err := svc.Generate(context.Background(), "u1", ViewTasks, ExportFormatPDF)
	require.NoError(t, err)

	assert.Equal(t, "application/pdf", out.ContentType)
	assert.True(t, strings.HasSuffix(out.Filename, ".pdf"))
	assert.True(t, len(out.Payload) > 0)
	assert.Equal(t, "%PDF", string(out.Payload[:4]))
}

func TestExportGenerateUnknownView(t *testing.T) {
	svc := NewExportService(map[string]FilteredLister{}, nil, nil, nil, nil)

	_, err := svc.Generate(context.Background(), "u1", "invoices", ExportFormatCSV)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportGenerateUnknownFormat(t *testing.T) {
	svc := NewExportService(map[string]FilteredLister{ViewTasks: staticLister{}}, nil, nil, nil, nil)

	_, err := svc.Generate(context.Background(), "u1", ViewTasks, "xlsx")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestExportGenerateGenericViews(t *testing.T) {
	lister := staticLister{records: []models.Shareable{
		models.Account{ID: "a1", Name: "Globex", Access: models.AccessPublic},
	}}
	svc := NewExportService(map[string]FilteredLister{ViewAccounts: lister}, nil, nil, nil, nil)

	out, err := svc.Generate(context.Background(), "u1", ViewAccounts, ExportFormatCSV)
	require.NoError(t, err)

	body := string(out.Payload)
	assert.Contains(t, body, "Name,Access")
	assert.Contains(t, body, "Globex,Public")
}
