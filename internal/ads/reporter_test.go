package ads

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/espacoamar/amanda-backend/internal/leads"
)

type fakeCampaigns struct {
	stats []CampaignStats
}

func (f *fakeCampaigns) FetchCampaignStats(context.Context, time.Time, time.Time) ([]CampaignStats, error) {
	return f.stats, nil
}

type fakeCounts struct {
	counts map[leads.Status]int
}

func (f *fakeCounts) CountStatusBetween(context.Context, time.Time, time.Time) (map[leads.Status]int, error) {
	return f.counts, nil
}

func TestReporter_BuildReport(t *testing.T) {
	campaigns := &fakeCampaigns{stats: []CampaignStats{
		{CampaignID: "111", CampaignName: "Fono", Clicks: 80, CostMicros: 45_000_000},
		{CampaignID: "222", CampaignName: "Psico", Clicks: 20, CostMicros: 15_000_000},
	}}
	counts := &fakeCounts{counts: map[leads.Status]int{
		leads.StatusNew:        4,
		leads.StatusQualifying: 3,
		leads.StatusQualified:  2,
		leads.StatusBooked:     1,
	}}
	r := NewReporter(campaigns, counts, nil)

	from := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 7)

	report, err := r.BuildReport(context.Background(), from, to)
	require.NoError(t, err)

	// 60 BRL total spend, in cents.
	assert.Equal(t, int64(6000), report.TotalCostCents)
	assert.Equal(t, int64(100), report.TotalClicks)
	assert.Equal(t, 10, report.NewLeads)
	assert.Equal(t, 3, report.QualifiedLeads)
	assert.Equal(t, 1, report.BookedLeads)
	assert.Equal(t, int64(600), report.CostPerLeadCents)
}

func TestReporter_BuildReport_NoLeads(t *testing.T) {
	r := NewReporter(&fakeCampaigns{}, &fakeCounts{counts: map[leads.Status]int{}}, nil)

	report, err := r.BuildReport(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)
	assert.Zero(t, report.CostPerLeadCents)
	assert.Zero(t, report.NewLeads)
}

func TestHandler_Report(t *testing.T) {
	campaigns := &fakeCampaigns{stats: []CampaignStats{{CampaignID: "111", CostMicros: 10_000_000}}}
	counts := &fakeCounts{counts: map[leads.Status]int{leads.StatusNew: 2}}
	h := NewHandler(NewReporter(campaigns, counts, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/reports/ads?from=2026-08-20&to=2026-08-27", nil)
	rec := httptest.NewRecorder()
	h.Report(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalCostCents":1000`)
	assert.Contains(t, rec.Body.String(), `"newLeads":2`)
}

func TestHandler_Report_BadWindow(t *testing.T) {
	h := NewHandler(NewReporter(&fakeCampaigns{}, &fakeCounts{}, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/admin/reports/ads?from=2026-08-27&to=2026-08-20", nil)
	rec := httptest.NewRecorder()
	h.Report(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
