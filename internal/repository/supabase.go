package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"metrics-service/internal/domain"
	"metrics-service/internal/util"
)

const (
	defaultLimit = 100

	// The table-wide summary averages over at most this many rows, so on
	// larger tables the averages are approximate. total_count is still
	// exact because it comes from the store's Content-Range count.
	summarySampleLimit = 1000

	repoSummaryPageSize = 1000
)

// SupabaseStore implements domain.MetricStore against a Supabase
// PostgREST endpoint. It holds no mutable state beyond the fixed
// connection settings established at construction.
type SupabaseStore struct {
	baseURL string
	apiKey  string
	table   string
	client  *http.Client
	logger  *util.MetricsLogger
}

func NewSupabaseStore(supabaseURL, apiKey string, timeout time.Duration, logger *util.MetricsLogger) *SupabaseStore {
	return &SupabaseStore{
		baseURL: strings.TrimRight(supabaseURL, "/") + "/rest/v1",
		apiKey:  apiKey,
		table:   "metrics",
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (s *SupabaseStore) tableURL() string {
	return s.baseURL + "/" + s.table
}

func (s *SupabaseStore) setHeaders(req *http.Request) {
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=representation")
}

// queryMetrics issues one GET against the metrics table and decodes the
// row array. Non-200 answers come back as *StoreError.
func (s *SupabaseStore) queryMetrics(ctx context.Context, params url.Values) ([]domain.Metric, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tableURL(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building query request: %w", err)
	}
	req.URL.RawQuery = params.Encode()
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error querying metrics table: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading store response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &StoreError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var metrics []domain.Metric
	if err := json.Unmarshal(body, &metrics); err != nil {
		return nil, fmt.Errorf("error decoding store response: %w", err)
	}
	return metrics, nil
}

// CreateMetric inserts one metric row. RepoID and ImportID must be set;
// the required scores are integral by construction of domain.Metric, so
// callers decoding untrusted payloads must reject non-integer scores
// before building one. Issues no request when validation fails.
func (s *SupabaseStore) CreateMetric(ctx context.Context, metric domain.Metric) (*domain.Metric, error) {
	if metric.RepoID == "" {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "CreateMetric called without repoID")
		return nil, fmt.Errorf("%w: repoID", ErrMissingField)
	}
	if metric.ImportID == "" {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "CreateMetric called without importID")
		return nil, fmt.Errorf("%w: importID", ErrMissingField)
	}

	payload, err := json.Marshal(metric)
	if err != nil {
		return nil, fmt.Errorf("error encoding metric: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tableURL(), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error building insert request: %w", err)
	}
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Error creating metric. Err - ", err)
		return nil, fmt.Errorf("error inserting metric: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading store response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Failed to create metric. Status - ", resp.StatusCode, " Body - ", string(body))
		return nil, &StoreError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	created, err := decodeCreated(body)
	if err != nil {
		return nil, fmt.Errorf("error decoding created metric: %w", err)
	}

	s.logger.LogEvent(util.LOG_LEVEL_INFO, "Created metric ", metric.RepoID, "-", metric.ImportID)
	return created, nil
}

// The store echoes the affected rows either as a one-element array or as
// a bare object depending on its version.
func decodeCreated(body []byte) (*domain.Metric, error) {
	var rows []domain.Metric
	if err := json.Unmarshal(body, &rows); err == nil {
		if len(rows) == 0 {
			return nil, fmt.Errorf("store echoed no rows")
		}
		return &rows[0], nil
	}

	var row domain.Metric
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, err
	}
	return &row, nil
}

// GetMetricByKeys looks up the single row identified by the composite
// key. A miss is (nil, nil), not an error.
func (s *SupabaseStore) GetMetricByKeys(ctx context.Context, repoID, importID string) (*domain.Metric, error) {
	params := url.Values{}
	params.Set("repoID", "eq."+repoID)
	params.Set("importID", "eq."+importID)
	params.Set("select", "*")

	metrics, err := s.queryMetrics(ctx, params)
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Error retrieving metric ", repoID, "-", importID, ". Err - ", err)
		return nil, err
	}
	if len(metrics) == 0 {
		s.logger.LogEvent(util.LOG_LEVEL_INFO, "Metric ", repoID, "-", importID, " not found")
		return nil, nil
	}
	return &metrics[0], nil
}

func (s *SupabaseStore) GetMetricsByRepo(ctx context.Context, repoID string, limit, offset int) ([]domain.Metric, error) {
	params := url.Values{}
	params.Set("repoID", "eq."+repoID)
	return s.listMetrics(ctx, params, limit, offset)
}

func (s *SupabaseStore) GetMetricsByImport(ctx context.Context, importID string, limit, offset int) ([]domain.Metric, error) {
	params := url.Values{}
	params.Set("importID", "eq."+importID)
	return s.listMetrics(ctx, params, limit, offset)
}

func (s *SupabaseStore) GetAllMetrics(ctx context.Context, limit, offset int) ([]domain.Metric, error) {
	return s.listMetrics(ctx, url.Values{}, limit, offset)
}

func (s *SupabaseStore) listMetrics(ctx context.Context, params url.Values, limit, offset int) ([]domain.Metric, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if offset < 0 {
		offset = 0
	}
	params.Set("select", "*")
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	metrics, err := s.queryMetrics(ctx, params)
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Error retrieving metrics. Err - ", err)
		return nil, err
	}
	return metrics, nil
}

// GetMetricsByScoreRange returns the rows whose named score lies in the
// inclusive range [minScore, maxScore]. An unknown field name fails
// before any request is issued.
func (s *SupabaseStore) GetMetricsByScoreRange(ctx context.Context, scoreField string, minScore, maxScore int) ([]domain.Metric, error) {
	if !domain.ValidScoreField(scoreField) {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Invalid score field ", scoreField, ". Must be one of ", strings.Join(domain.ScoreFields, ", "))
		return nil, fmt.Errorf("%w: %s", ErrInvalidScoreField, scoreField)
	}

	params := url.Values{}
	params.Set("select", "*")
	params.Add(scoreField, "gte."+strconv.Itoa(minScore))
	params.Add(scoreField, "lte."+strconv.Itoa(maxScore))

	metrics, err := s.queryMetrics(ctx, params)
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_ERROR, "Error retrieving metrics by score range. Err - ", err)
		return nil, err
	}
	return metrics, nil
}

// GetMetricsSummary aggregates the whole table: an exact row count from
// the store plus client-side averages over a sample of up to
// summarySampleLimit rows. A failed count request degrades the count to
// zero rather than failing the summary.
func (s *SupabaseStore) GetMetricsSummary(ctx context.Context) (domain.MetricsSummary, error) {
	summary := domain.MetricsSummary{AverageScores: map[string]*float64{}}

	total, err := s.exactCount(ctx)
	if err != nil {
		s.logger.LogEvent(util.LOG_LEVEL_WARN, "Could not fetch exact metric count. Err - ", err)
	} else {
		summary.TotalCount = total
	}

	metrics, err := s.GetAllMetrics(ctx, summarySampleLimit, 0)
	if err != nil {
		return summary, err
	}

	summary.AverageScores = averageScores(metrics)
	return summary, nil
}

// GetRepoMetricsSummary averages over every row of one repository,
// paging through the store so the result is not capped.
func (s *SupabaseStore) GetRepoMetricsSummary(ctx context.Context, repoID string) (domain.RepoMetricsSummary, error) {
	summary := domain.RepoMetricsSummary{RepoID: repoID, AverageScores: map[string]*float64{}}

	var metrics []domain.Metric
	for offset := 0; ; offset += repoSummaryPageSize {
		page, err := s.GetMetricsByRepo(ctx, repoID, repoSummaryPageSize, offset)
		if err != nil {
			return summary, err
		}
		metrics = append(metrics, page...)
		if len(page) < repoSummaryPageSize {
			break
		}
	}

	summary.MetricCount = len(metrics)
	summary.AverageScores = averageScores(metrics)
	return summary, nil
}

// exactCount asks the store for its row count and parses it out of the
// Content-Range header, which has the form "<start>-<end>/<total>". A
// missing header counts as zero.
func (s *SupabaseStore) exactCount(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tableURL(), nil)
	if err != nil {
		return 0, fmt.Errorf("error building count request: %w", err)
	}

	params := url.Values{}
	params.Set("select", "count")
	params.Set("count", "exact")
	req.URL.RawQuery = params.Encode()
	s.setHeaders(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("error counting metrics: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return 0, &StoreError{StatusCode: resp.StatusCode}
	}

	rangeHeader := resp.Header.Get("Content-Range")
	if rangeHeader == "" {
		return 0, nil
	}

	totalPart := rangeHeader[strings.LastIndex(rangeHeader, "/")+1:]
	total, err := strconv.Atoi(totalPart)
	if err != nil {
		return 0, fmt.Errorf("error parsing Content-Range %q: %w", rangeHeader, err)
	}
	return total, nil
}

// averageScores computes the mean of each score field over the rows,
// skipping null values. A field with no non-null observations maps to
// nil; zero rows yield an empty map.
func averageScores(metrics []domain.Metric) map[string]*float64 {
	avgs := map[string]*float64{}
	if len(metrics) == 0 {
		return avgs
	}

	for _, field := range domain.ScoreFields {
		sum := 0
		count := 0
		for _, m := range metrics {
			if v, ok := m.Score(field); ok {
				sum += v
				count++
			}
		}
		if count > 0 {
			avg := float64(sum) / float64(count)
			avgs["avg_"+field] = &avg
		} else {
			avgs["avg_"+field] = nil
		}
	}
	return avgs
}
