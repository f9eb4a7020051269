package ads

import (
	"context"
	"time"

	"github.com/espacoamar/amanda-backend/internal/leads"
	"github.com/espacoamar/amanda-backend/pkg/logging"
)

// campaignSource abstracts the Ads client so the reporter can be tested
// without the API.
type campaignSource interface {
	FetchCampaignStats(ctx context.Context, from, to time.Time) ([]CampaignStats, error)
}

// leadCounter is implemented by leads.PostgresRepository.
type leadCounter interface {
	CountStatusBetween(ctx context.Context, from, to time.Time) (map[leads.Status]int, error)
}

// Report lines campaign spend up against funnel outcomes for a window.
type Report struct {
	From             string          `json:"from"`
	To               string          `json:"to"`
	Campaigns        []CampaignStats `json:"campaigns"`
	TotalCostCents   int64           `json:"totalCostCents"`
	TotalClicks      int64           `json:"totalClicks"`
	NewLeads         int             `json:"newLeads"`
	QualifiedLeads   int             `json:"qualifiedLeads"`
	BookedLeads      int             `json:"bookedLeads"`
	CostPerLeadCents int64           `json:"costPerLeadCents"`
}

// Reporter builds the spend-vs-leads report the clinic owner reads daily.
type Reporter struct {
	campaigns campaignSource
	counts    leadCounter
	logger    *logging.Logger
}

// NewReporter wires the Ads client to the lead stats.
func NewReporter(campaigns campaignSource, counts leadCounter, logger *logging.Logger) *Reporter {
	if campaigns == nil {
		panic("ads: campaign source cannot be nil")
	}
	if counts == nil {
		panic("ads: lead counter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Reporter{campaigns: campaigns, counts: counts, logger: logger}
}

// BuildReport assembles the report for [from, to).
func (r *Reporter) BuildReport(ctx context.Context, from, to time.Time) (*Report, error) {
	campaigns, err := r.campaigns.FetchCampaignStats(ctx, from, to)
	if err != nil {
		return nil, err
	}
	statusCounts, err := r.counts.CountStatusBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}

	report := &Report{
		From:      from.Format("2006-01-02"),
		To:        to.Format("2006-01-02"),
		Campaigns: campaigns,
	}
	for _, c := range campaigns {
		report.TotalCostCents += c.CostMicros / 10_000
		report.TotalClicks += c.Clicks
	}
	for status, count := range statusCounts {
		report.NewLeads += count
		switch status {
		case leads.StatusQualified, leads.StatusBooked:
			report.QualifiedLeads += count
		}
		if status == leads.StatusBooked {
			report.BookedLeads += count
		}
	}
	if report.NewLeads > 0 {
		report.CostPerLeadCents = report.TotalCostCents / int64(report.NewLeads)
	}

	r.logger.Info("ads report built",
		"from", report.From,
		"to", report.To,
		"cost_cents", report.TotalCostCents,
		"new_leads", report.NewLeads,
	)
	return report, nil
}
