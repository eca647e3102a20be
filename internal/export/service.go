package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/sporelab/reportql/internal/domain"
)

// ErrJobNotFound is returned when an export job id is unknown.
var ErrJobNotFound = errors.New("export job not found")

// Service writes executed report results to downloadable CSV or XLSX files.
// Jobs run asynchronously; callers poll job status and fetch a signed
// download URL once the job completes.
type Service struct {
	registry   *registry
	exportDir  string
	jobTimeout time.Duration
	now        func() time.Time

	downloadSigner *downloadSigner

	workerCancels sync.Map // map[uuid.UUID]context.CancelFunc
}

type Option func(*Service)

func WithExportDirectory(dir string) Option {
	return func(s *Service) {
		if strings.TrimSpace(dir) != "" {
			s.exportDir = filepath.Clean(dir)
		}
	}
}

func WithJobTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.jobTimeout = timeout
		}
	}
}

// WithDownloadTokenTTL customizes the TTL for generated download links.
func WithDownloadTokenTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.downloadSigner = newDownloadSigner(s.downloadSigner.secret, ttl)
	}
}

// NewService creates an export service signing download links with secret.
func NewService(secret string, opts ...Option) *Service {
	service := &Service{
		registry:       newRegistry(),
		exportDir:      filepath.Join(os.TempDir(), "reportql-exports"),
		jobTimeout:     5 * time.Minute,
		now:            time.Now,
		downloadSigner: newDownloadSigner([]byte(secret), 5*time.Minute),
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Request describes one export: an already-executed report result plus the
// output format.
type Request struct {
	ReportID   string
	ReportName string
	Format     Format
	Data       domain.AggregatedData
}

// Queue registers an export job and starts its worker. The returned job is
// in pending status; progress is visible through GetJob.
func (s *Service) Queue(req Request) (Job, error) {
	if req.ReportID == "" {
		return Job{}, errors.New("report ID is required")
	}
	format := req.Format
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatXLSX {
		return Job{}, fmt.Errorf("unsupported export format %q", format)
	}

	job := Job{
		ID:         uuid.New(),
		ReportID:   req.ReportID,
		ReportName: req.ReportName,
		Format:     format,
		Status:     JobStatusPending,
		CreatedAt:  s.now(),
	}
	s.registry.put(job)
	s.launchWorker(job, req.Data)
	return job, nil
}

// GetJob returns the metadata for a single export job.
func (s *Service) GetJob(id uuid.UUID) (Job, error) {
	job, ok := s.registry.get(id)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns jobs newest first, optionally filtered by status.
func (s *Service) ListJobs(statuses []JobStatus, limit int) []Job {
	return s.registry.list(statuses, limit)
}

// CancelJob requests cancellation for a pending or running export job.
func (s *Service) CancelJob(id uuid.UUID) (Job, error) {
	job, ok := s.registry.get(id)
	if !ok {
		return Job{}, ErrJobNotFound
	}
	if job.Status != JobStatusPending && job.Status != JobStatusRunning {
		return job, fmt.Errorf("export job in status %s cannot be cancelled", job.Status)
	}
	if cancel, ok := s.workerCancels.LoadAndDelete(id); ok {
		if fn, okCast := cancel.(context.CancelFunc); okCast {
			fn()
		}
	}
	updated, _ := s.registry.update(id, func(j *Job) {
		j.Status = JobStatusCancelled
		j.CompletedAt = s.now()
	})
	return updated, nil
}

// BuildDownloadURL signs a short-lived download URL for completed export files.
func (s *Service) BuildDownloadURL(job Job) (string, error) {
	if job.Status != JobStatusCompleted || job.FilePath == "" {
		return "", nil
	}
	token := s.downloadSigner.Sign(job.ID, s.now())
	values := url.Values{}
	values.Set("token", token)
	return fmt.Sprintf("/exports/files/%s?%s", job.ID.String(), values.Encode()), nil
}

// ValidateDownloadToken ensures the token is valid for the given job.
func (s *Service) ValidateDownloadToken(jobID uuid.UUID, token string) error {
	return s.downloadSigner.Verify(jobID, token, s.now())
}

// OpenJobFile opens the completed export file for streaming to the client.
func (s *Service) OpenJobFile(job Job) (*os.File, error) {
	if job.Status != JobStatusCompleted {
		return nil, errors.New("export is not completed")
	}
	if job.FilePath == "" {
		return nil, errors.New("export file is unavailable")
	}
	file, err := os.Open(job.FilePath)
	if err != nil {
		return nil, fmt.Errorf("open export file: %w", err)
	}
	return file, nil
}

func (s *Service) launchWorker(job Job, data domain.AggregatedData) {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	s.workerCancels.Store(job.ID, cancel)
	go func() {
		defer func() {
			cancel()
			s.workerCancels.Delete(job.ID)
		}()
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("[export] panic while processing job %s: %v", job.ID, rec)
				s.failJob(job.ID, fmt.Errorf("panic: %v", rec))
			}
		}()
		if err := s.runExport(ctx, job, data); err != nil {
			if errors.Is(err, context.Canceled) {
				log.Printf("[export] job %s cancelled", job.ID)
				return
			}
			s.failJob(job.ID, err)
		}
	}()
}

func (s *Service) failJob(jobID uuid.UUID, err error) {
	s.registry.update(jobID, func(j *Job) {
		j.Status = JobStatusFailed
		j.Error = truncateError(err)
		j.CompletedAt = s.now()
	})
	log.Printf("[export] job %s failed: %v", jobID, err)
}

func (s *Service) runExport(ctx context.Context, job Job, data domain.AggregatedData) error {
	if _, ok := s.registry.update(job.ID, func(j *Job) { j.Status = JobStatusRunning }); !ok {
		return ErrJobNotFound
	}
	if err := os.MkdirAll(s.exportDir, 0o755); err != nil {
		return fmt.Errorf("ensure export directory: %w", err)
	}

	dims, measures := resultColumns(data.Rows)
	finalPath := filepath.Join(s.exportDir, s.finalFileName(job))

	var (
		rows int
		size int64
		err  error
	)
	switch job.Format {
	case FormatXLSX:
		rows, size, err = writeXLSX(ctx, finalPath, dims, measures, data.Rows)
	default:
		rows, size, err = writeCSV(ctx, finalPath, dims, measures, data.Rows)
	}
	if err != nil {
		return err
	}

	s.registry.update(job.ID, func(j *Job) {
		j.Status = JobStatusCompleted
		j.RowsExported = rows
		j.BytesWritten = size
		j.FilePath = finalPath
		j.CompletedAt = s.now()
	})
	log.Printf("[export] job %s completed (rows=%d path=%s)", job.ID, rows, finalPath)
	return nil
}

func (s *Service) finalFileName(job Job) string {
	base := sanitizeFileComponent(job.ReportName)
	if base == "" {
		base = "report-export"
	}
	return fmt.Sprintf("%s-%s.%s", base, job.ID.String(), job.Format)
}

// resultColumns derives a stable header order from the shaped rows:
// dimension columns sorted by name, then measure columns sorted by name.
// Metadata keys never appear in exports.
func resultColumns(rows []domain.ResultRow) (dims, measures []string) {
	dimSet := make(map[string]struct{})
	measureSet := make(map[string]struct{})
	for _, row := range rows {
		for name := range row.Dimensions {
			dimSet[name] = struct{}{}
		}
		for name := range row.Measures {
			measureSet[name] = struct{}{}
		}
	}
	for name := range dimSet {
		dims = append(dims, name)
	}
	for name := range measureSet {
		measures = append(measures, name)
	}
	sort.Strings(dims)
	sort.Strings(measures)
	return dims, measures
}

func rowValues(row domain.ResultRow, dims, measures []string) []string {
	values := make([]string, 0, len(dims)+len(measures))
	for _, name := range dims {
		values = append(values, formatValue(row.Dimensions[name]))
	}
	for _, name := range measures {
		values = append(values, formatValue(row.Measures[name]))
	}
	return values
}

func writeCSV(ctx context.Context, path string, dims, measures []string, rows []domain.ResultRow) (int, int64, error) {
	file, err := os.Create(path)
	if err != nil {
		return 0, 0, fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	buffered := bufio.NewWriterSize(file, 1<<20)
	counter := &countingWriter{writer: buffered}
	csvWriter := csv.NewWriter(counter)

	if err := csvWriter.Write(append(append([]string{}, dims...), measures...)); err != nil {
		return 0, 0, fmt.Errorf("write header: %w", err)
	}

	exported := 0
	for _, row := range rows {
		if ctx.Err() != nil {
			return exported, counter.count, ctx.Err()
		}
		if err := csvWriter.Write(rowValues(row, dims, measures)); err != nil {
			return exported, counter.count, fmt.Errorf("write row: %w", err)
		}
		exported++
	}

	csvWriter.Flush()
	if err := csvWriter.Error(); err != nil {
		return exported, counter.count, fmt.Errorf("flush rows: %w", err)
	}
	if err := buffered.Flush(); err != nil {
		return exported, counter.count, fmt.Errorf("flush buffered rows: %w", err)
	}
	if err := file.Sync(); err != nil {
		return exported, counter.count, fmt.Errorf("sync export file: %w", err)
	}
	return exported, counter.count, nil
}

func writeXLSX(ctx context.Context, path string, dims, measures []string, rows []domain.ResultRow) (int, int64, error) {
	workbook := excelize.NewFile()
	defer workbook.Close()

	const sheet = "Report"
	workbook.SetSheetName(workbook.GetSheetName(0), sheet)

	header := append(append([]string{}, dims...), measures...)
	headerCells := make([]any, len(header))
	for i, name := range header {
		headerCells[i] = name
	}
	if err := workbook.SetSheetRow(sheet, "A1", &headerCells); err != nil {
		return 0, 0, fmt.Errorf("write header row: %w", err)
	}

	exported := 0
	for i, row := range rows {
		if ctx.Err() != nil {
			return exported, 0, ctx.Err()
		}
		values := rowValues(row, dims, measures)
		cells := make([]any, len(values))
		for j, v := range values {
			cells[j] = v
		}
		anchor, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return exported, 0, fmt.Errorf("resolve cell anchor: %w", err)
		}
		if err := workbook.SetSheetRow(sheet, anchor, &cells); err != nil {
			return exported, 0, fmt.Errorf("write row %d: %w", i+1, err)
		}
		exported++
	}

	if err := workbook.SaveAs(path); err != nil {
		return exported, 0, fmt.Errorf("save workbook: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return exported, 0, fmt.Errorf("stat export file: %w", err)
	}
	return exported, info.Size(), nil
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z':
			builder.WriteRune(r)
		case r >= '0' && r <= '9':
			builder.WriteRune(r)
		case r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	result := strings.Trim(builder.String(), "-")
	if result == "" {
		return "export"
	}
	return result
}

type countingWriter struct {
	writer *bufio.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}

func formatValue(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", v), "0"), ".")
	case []byte:
		return string(v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	const maxLen = 512
	msg := err.Error()
	if len(msg) > maxLen {
		return msg[:maxLen]
	}
	return msg
}
