package businessflow

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/inboxglow/inboxglow/models"
	"github.com/inboxglow/inboxglow/repository"
	"github.com/inboxglow/inboxglow/utils"
	"github.com/xuri/excelize/v2"
)

// ReportFlow exports operator-facing warmup reports
type ReportFlow interface {
	DownloadWarmupReportCSV(ctx context.Context, senderUUID string, from, to time.Time) (string, []byte, error)
	DownloadWarmupReportExcel(ctx context.Context, senderUUID string, from, to time.Time) (string, []byte, error)
}

type ReportFlowImpl struct {
	senderRepo  repository.SenderAccountRepository
	sessionRepo repository.WarmupSessionRepository
	rampRepo    repository.RampScheduleRepository
	metricRepo  repository.WarmupMetricRepository
}

func NewReportFlow(
	senderRepo repository.SenderAccountRepository,
	sessionRepo repository.WarmupSessionRepository,
	rampRepo repository.RampScheduleRepository,
	metricRepo repository.WarmupMetricRepository,
) ReportFlow {
	return &ReportFlowImpl{
		senderRepo:  senderRepo,
		sessionRepo: sessionRepo,
		rampRepo:    rampRepo,
		metricRepo:  metricRepo,
	}
}

var metricReportHeader = []string{
	"date",
	"sent",
	"delivered",
	"bounced",
	"opened",
	"replied",
	"spam_reports",
	"spam_placements",
	"spam_rescues",
	"unsubscribes",
	"bounce_rate",
	"spam_rate",
	"engagement_rate",
}

// DownloadWarmupReportCSV renders the sender's daily metric rows as CSV
func (f *ReportFlowImpl) DownloadWarmupReportCSV(ctx context.Context, senderUUID string, from, to time.Time) (string, []byte, error) {
	sender, series, err := f.loadSeries(ctx, senderUUID, from, to)
	if err != nil {
		return "", nil, err
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(metricReportHeader); err != nil {
		return "", nil, NewBusinessError("CSV_WRITE_ERROR", "Failed to write CSV header", err)
	}
	for _, m := range series {
		if err := w.Write(metricReportRow(m)); err != nil {
			return "", nil, NewBusinessError("CSV_WRITE_ERROR", "Failed to write CSV row", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", nil, NewBusinessError("CSV_WRITE_ERROR", "Failed to flush CSV output", err)
	}

	filename := fmt.Sprintf("warmup_metrics_%s_%s_to_%s.csv",
		sender.UUID.String(), from.Format("2006-01-02"), to.Format("2006-01-02"))
	return filename, buf.Bytes(), nil
}

// DownloadWarmupReportExcel builds a workbook with a summary sheet, the
// daily metric rows, and the ramp schedule of the sender's latest session
func (f *ReportFlowImpl) DownloadWarmupReportExcel(ctx context.Context, senderUUID string, from, to time.Time) (string, []byte, error) {
	sender, series, err := f.loadSeries(ctx, senderUUID, from, to)
	if err != nil {
		return "", nil, err
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()

	summary := "Summary"
	xl.SetSheetName(xl.GetSheetName(0), summary)

	window, err := f.metricRepo.RollingWindow(ctx, sender.ID, from, to)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_METRICS_FAILED", "Failed to aggregate metrics window", err)
	}
	score := scoreFromWindow(window)

	summaryRows := [][]string{
		{"sender_email", sender.Email},
		{"esp_type", sender.ESPType.String()},
		{"domain", sender.Domain},
		{"warmup_day", strconv.Itoa(sender.WarmupDay)},
		{"current_volume", strconv.Itoa(sender.CurrentVolume)},
		{"health_score", strconv.FormatFloat(sender.HealthScore, 'f', 2, 64)},
		{"window_from", from.Format("2006-01-02")},
		{"window_to", to.Format("2006-01-02")},
		{"total_sent", strconv.Itoa(window.Sent)},
		{"total_delivered", strconv.Itoa(window.Delivered)},
		{"total_bounced", strconv.Itoa(window.Bounced)},
		{"overall_score", strconv.FormatFloat(score.Overall, 'f', 2, 64)},
		{"deliverability", strconv.FormatFloat(score.Deliverability, 'f', 2, 64)},
		{"engagement", strconv.FormatFloat(score.Engagement, 'f', 2, 64)},
		{"spam_score", strconv.FormatFloat(score.SpamScore, 'f', 2, 64)},
		{"at_risk", strconv.FormatBool(IsAtRisk(score))},
	}
	for ri, row := range summaryRows {
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+1)
		_ = xl.SetSheetRow(summary, cellRef, &row)
	}

	metricsSheet := "Daily Metrics"
	_, _ = xl.NewSheet(metricsSheet)
	_ = xl.SetSheetRow(metricsSheet, "A1", &metricReportHeader)
	for ri, m := range series {
		record := metricReportRow(m)
		cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
		_ = xl.SetSheetRow(metricsSheet, cellRef, &record)
	}

	if session, err := f.sessionRepo.CurrentBySender(ctx, sender.ID); err == nil && session != nil {
		entries, err := f.rampRepo.BySession(ctx, session.ID)
		if err == nil && len(entries) > 0 {
			scheduleSheet := "Schedule"
			_, _ = xl.NewSheet(scheduleSheet)
			header := []string{"day", "date", "target_volume", "status"}
			_ = xl.SetSheetRow(scheduleSheet, "A1", &header)
			for ri, e := range entries {
				record := []string{
					strconv.Itoa(e.Day),
					e.Date.Format("2006-01-02"),
					strconv.Itoa(e.TargetVolume),
					e.Status.String(),
				}
				cellRef, _ := excelize.CoordinatesToCellName(1, ri+2)
				_ = xl.SetSheetRow(scheduleSheet, cellRef, &record)
			}
		}
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "Failed to write Excel file", err)
	}

	filename := fmt.Sprintf("warmup_report_%s_%s_to_%s.xlsx",
		sender.UUID.String(), from.Format("2006-01-02"), to.Format("2006-01-02"))
	return filename, buf.Bytes(), nil
}

func (f *ReportFlowImpl) loadSeries(ctx context.Context, senderUUID string, from, to time.Time) (*models.SenderAccount, []*models.WarmupMetric, error) {
	if from.After(to) {
		return nil, nil, ErrStartDateAfterEndDate
	}

	sender, err := f.senderRepo.ByUUID(ctx, senderUUID)
	if err != nil {
		return nil, nil, NewBusinessError("FETCH_SENDER_FAILED", "Failed to find sender account", err)
	}
	if sender == nil {
		return nil, nil, ErrSenderNotFound
	}

	series, err := f.metricRepo.SeriesBySender(ctx, sender.ID, utils.UTCDate(from), utils.UTCDate(to))
	if err != nil {
		return nil, nil, NewBusinessError("FETCH_METRICS_FAILED", "Failed to fetch metric rows", err)
	}

	return sender, series, nil
}

func metricReportRow(m *models.WarmupMetric) []string {
	rolling := models.RollingMetrics{
		Sent:        m.Sent,
		Delivered:   m.Delivered,
		Bounced:     m.Bounced,
		Opened:      m.Opened,
		Replied:     m.Replied,
		SpamReports: m.SpamReports,
	}
	return []string{
		m.Date.Format("2006-01-02"),
		strconv.Itoa(m.Sent),
		strconv.Itoa(m.Delivered),
		strconv.Itoa(m.Bounced),
		strconv.Itoa(m.Opened),
		strconv.Itoa(m.Replied),
		strconv.Itoa(m.SpamReports),
		strconv.Itoa(m.SpamPlacements),
		strconv.Itoa(m.SpamRescues),
		strconv.Itoa(m.Unsubscribes),
		strconv.FormatFloat(rolling.BounceRate()*100, 'f', 2, 64),
		strconv.FormatFloat(rolling.SpamRate()*100, 'f', 2, 64),
		strconv.FormatFloat(rolling.EngagementRate()*100, 'f', 2, 64),
	}
}
