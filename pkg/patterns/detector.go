package patterns

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/jordigilh/qa-intelligence/pkg/metrics"
	"github.com/jordigilh/qa-intelligence/pkg/shared/logging"
)

const (
	timeExcessThreshold   = 0.5
	consecutiveThreshold  = 3
	recentWorkflowLimit   = 5
	keywordMinLength      = 3
	keywordTopN           = 10
)

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "was": {}, "were": {}, "been": {}, "be": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {}, "would": {},
	"could": {}, "should": {}, "and": {}, "or": {}, "but": {}, "if": {}, "then": {}, "else": {},
	"when": {}, "at": {}, "by": {}, "for": {}, "with": {}, "about": {}, "to": {}, "from": {},
	"in": {}, "on": {}, "of": {}, "it": {}, "this": {},
}

// Detector runs the three pattern families against a workflow's data.
type Detector struct {
	reader  Reader
	log     *logrus.Logger
	now     func() time.Time
	metrics *metrics.Metrics
}

// WithMetrics attaches m so every DetectedPattern is counted by type and
// severity. Returns the Detector for chaining.
func (d *Detector) WithMetrics(m *metrics.Metrics) *Detector {
	d.metrics = m
	return d
}

// NewDetector creates a Detector backed by reader for persistence lookups.
func NewDetector(reader Reader, log *logrus.Logger) *Detector {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Detector{reader: reader, log: log, now: time.Now}
}

// AnalyzeWorkflow runs the time-excess, consecutive-problem, and spike
// detectors concurrently against independent read-only snapshots. A failure
// in one family is logged and does not cancel, or get cancelled by, the
// others: each goroutine swallows its own error and contributes nothing to
// the result rather than aborting errgroup.Group's Wait().
func (d *Detector) AnalyzeWorkflow(ctx context.Context, workflowID uuid.UUID) ([]DetectedPattern, error) {
	var (
		mu      sync.Mutex
		results []DetectedPattern
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		pattern, err := d.detectTimeExcess(gctx, workflowID)
		if err != nil {
			d.log.WithFields(logging.WorkflowFields("detect_time_excess", workflowID.String()).Error(err).ToLogrus()).Warn("time excess detection failed")
			return nil
		}
		if pattern != nil {
			mu.Lock()
			results = append(results, *pattern)
			mu.Unlock()
		}
		return nil
	})

	g.Go(func() error {
		pattern, err := d.detectConsecutiveProblems(gctx)
		if err != nil {
			d.log.WithFields(logging.WorkflowFields("detect_consecutive_problems", workflowID.String()).Error(err).ToLogrus()).Warn("consecutive problem detection failed")
			return nil
		}
		if pattern != nil {
			mu.Lock()
			results = append(results, *pattern)
			mu.Unlock()
		}
		return nil
	})

	g.Go(func() error {
		pattern, err := d.detectSpike(gctx, workflowID)
		if err != nil {
			d.log.WithFields(logging.WorkflowFields("detect_spike", workflowID.String()).Error(err).ToLogrus()).Warn("spike detection failed")
			return nil
		}
		if pattern != nil {
			mu.Lock()
			results = append(results, *pattern)
			mu.Unlock()
		}
		return nil
	})

	_ = g.Wait() // the three goroutines never return a non-nil error

	for _, pattern := range results {
		d.metrics.RecordPatternDetected(string(pattern.Type), string(pattern.Severity))
	}

	d.log.WithFields(logging.WorkflowFields("analyze_workflow", workflowID.String()).Custom("patterns_detected", len(results)).ToLogrus()).Info("pattern analysis complete")

	return results, nil
}

func (d *Detector) detectTimeExcess(ctx context.Context, workflowID uuid.UUID) (*DetectedPattern, error) {
	data, err := d.reader.GetWorkflowAnalysisData(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if data == nil || data.EstimatedDurationSeconds == nil || *data.EstimatedDurationSeconds <= 0 {
		return nil, nil
	}

	estimated := float64(*data.EstimatedDurationSeconds)
	excessPercent := (float64(data.ActualDurationSeconds) - estimated) / estimated
	if excessPercent <= timeExcessThreshold {
		return nil, nil
	}

	severity := SeverityInfo
	switch {
	case excessPercent > 1.0:
		severity = SeverityCritical
	case excessPercent > 0.75:
		severity = SeverityWarning
	}

	avgExcess := excessPercent * 100
	commonFactor := data.TemplateName

	return &DetectedPattern{
		ID:       uuid.New(),
		Type:     TimeExcess,
		Severity: severity,
		Title:    fmt.Sprintf("Time excess on %s", data.TicketKey),
		Description: fmt.Sprintf(
			"Workflow took %.0f%% longer than estimated (%s actual vs %s estimated)",
			excessPercent*100, formatDuration(data.ActualDurationSeconds), formatDuration(int64(estimated)),
		),
		AffectedTickets:      []string{data.TicketKey},
		CommonFactor:         &commonFactor,
		AverageExcessPercent: &avgExcess,
		ConfidenceScore:      1.0,
		SuggestedActions: []string{
			"Review step estimates for this workflow type",
			"Check if ticket complexity was underestimated",
		},
		Metadata: map[string]interface{}{
			"actual_seconds":    data.ActualDurationSeconds,
			"estimated_seconds": int64(estimated),
			"template":          data.TemplateName,
		},
		DetectedAt: d.now(),
	}, nil
}

func (d *Detector) detectConsecutiveProblems(ctx context.Context) (*DetectedPattern, error) {
	recent, err := d.reader.GetRecentCompletedWorkflows(ctx, recentWorkflowLimit)
	if err != nil {
		return nil, err
	}
	if len(recent) < consecutiveThreshold {
		return nil, nil
	}

	keyword, count := mostCommonKeyword(recent)
	if keyword == "" || count < consecutiveThreshold {
		return nil, nil
	}

	affected := make([]string, 0, len(recent))
	for _, r := range recent {
		affected = append(affected, r.TicketKey)
	}

	severity := SeverityInfo
	switch {
	case count >= 5:
		severity = SeverityCritical
	case count >= 4:
		severity = SeverityWarning
	}

	confidence := float64(count) / float64(len(recent))
	commonFactor := keyword

	return &DetectedPattern{
		ID:              uuid.New(),
		Type:            ConsecutiveProblem,
		Severity:        severity,
		Title:           fmt.Sprintf("Recurring issue: %s", keyword),
		Description:     fmt.Sprintf("%d of the last %d tickets mention '%s'", count, len(recent), keyword),
		AffectedTickets: affected,
		CommonFactor:    &commonFactor,
		ConfidenceScore: confidence,
		SuggestedActions: []string{
			"Investigate root cause of recurring issue",
			"Consider creating a dedicated workflow for this issue type",
			"Review affected component for systemic problems",
		},
		Metadata: map[string]interface{}{
			"keyword_count":  count,
			"total_analyzed": len(recent),
		},
		DetectedAt: d.now(),
	}, nil
}

func (d *Detector) detectSpike(ctx context.Context, workflowID uuid.UUID) (*DetectedPattern, error) {
	data, err := d.reader.GetWorkflowAnalysisData(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	stats, err := d.reader.GetTicketVolumeStats(ctx)
	if err != nil {
		return nil, err
	}
	if stats == nil || stats.AvgCount <= 0 || float64(stats.TodayCount) <= stats.AvgCount*2 {
		return nil, nil
	}

	spikeRatio := float64(stats.TodayCount) / stats.AvgCount

	severity := SeverityInfo
	switch {
	case spikeRatio > 3.0:
		severity = SeverityCritical
	case spikeRatio > 2.5:
		severity = SeverityWarning
	}

	avgExcess := (spikeRatio - 1.0) * 100

	ticketKey := ""
	if data != nil {
		ticketKey = data.TicketKey
	}

	return &DetectedPattern{
		ID:       uuid.New(),
		Type:     Spike,
		Severity: severity,
		Title:    "Ticket volume spike detected",
		Description: fmt.Sprintf(
			"Today's ticket count (%d) is %.1fx the 7-day average (%.1f)",
			stats.TodayCount, spikeRatio, stats.AvgCount,
		),
		AffectedTickets:      []string{ticketKey},
		AverageExcessPercent: &avgExcess,
		ConfidenceScore:      0.9,
		SuggestedActions: []string{
			"Check for new deployments or changes",
			"Review recent tickets for common issues",
			"Consider escalating if trend continues",
		},
		Metadata: map[string]interface{}{
			"today_count": stats.TodayCount,
			"avg_count":   stats.AvgCount,
			"spike_ratio": spikeRatio,
		},
		DetectedAt: d.now(),
	}, nil
}

func mostCommonKeyword(recent []RecentWorkflow) (string, int) {
	counts := extractCommonKeywords(recent)
	if len(counts) == 0 {
		return "", 0
	}
	return counts[0].word, counts[0].count
}

type keywordCount struct {
	word  string
	count int
}

// extractCommonKeywords tokenizes aggregated step notes (lowercased,
// length > 3, stop-word filtered) and returns up to the top 10 by
// frequency, most frequent first.
func extractCommonKeywords(recent []RecentWorkflow) []keywordCount {
	counts := map[string]int{}
	for _, r := range recent {
		if r.Notes == nil {
			continue
		}
		for _, word := range strings.Fields(strings.ToLower(*r.Notes)) {
			if len(word) <= keywordMinLength {
				continue
			}
			if _, stop := stopWords[word]; stop {
				continue
			}
			counts[word]++
		}
	}

	sorted := make([]keywordCount, 0, len(counts))
	for word, count := range counts {
		sorted = append(sorted, keywordCount{word: word, count: count})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].word < sorted[j].word
	})
	if len(sorted) > keywordTopN {
		sorted = sorted[:keywordTopN]
	}
	return sorted
}

func formatDuration(seconds int64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%ds", seconds)
	case seconds < 3600:
		return fmt.Sprintf("%dm", seconds/60)
	default:
		hours := seconds / 3600
		mins := (seconds % 3600) / 60
		if mins > 0 {
			return fmt.Sprintf("%dh %dm", hours, mins)
		}
		return fmt.Sprintf("%dh", hours)
	}
}
