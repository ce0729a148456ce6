package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"metrics-service/internal/domain"
	"metrics-service/internal/util"
)

func intPtr(v int) *int {
	return &v
}

// fakeSupabase emulates just enough of the PostgREST metrics table:
// eq/gte/lte filters, limit/offset, exact count via Content-Range, and
// POST echoing the inserted row as a one-element array.
type fakeSupabase struct {
	t        *testing.T
	rows     []domain.Metric
	requests int

	failStatus int
	failBody   string
}

func (f *fakeSupabase) handler(w http.ResponseWriter, r *http.Request) {
	f.requests++

	assert.Equal(f.t, "/rest/v1/metrics", r.URL.Path)
	assert.Equal(f.t, "test-key", r.Header.Get("apikey"))
	assert.Equal(f.t, "Bearer test-key", r.Header.Get("Authorization"))
	assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))
	assert.Equal(f.t, "return=representation", r.Header.Get("Prefer"))

	if f.failStatus != 0 {
		w.WriteHeader(f.failStatus)
		fmt.Fprint(w, f.failBody)
		return
	}

	switch r.Method {
	case http.MethodPost:
		var row domain.Metric
		if err := json.NewDecoder(r.Body).Decode(&row); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.rows = append(f.rows, row)
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode([]domain.Metric{row})
	case http.MethodGet:
		query := r.URL.Query()

		if query.Get("count") == "exact" {
			w.Header().Set("Content-Range", fmt.Sprintf("0-%d/%d", len(f.rows)-1, len(f.rows)))
			w.Write([]byte("[]"))
			return
		}

		filtered := f.filter(query)

		offset, _ := strconv.Atoi(query.Get("offset"))
		if offset > len(filtered) {
			offset = len(filtered)
		}
		filtered = filtered[offset:]

		limit, err := strconv.Atoi(query.Get("limit"))
		if err == nil && limit < len(filtered) {
			filtered = filtered[:limit]
		}

		if filtered == nil {
			filtered = []domain.Metric{}
		}
		json.NewEncoder(w).Encode(filtered)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeSupabase) filter(query map[string][]string) []domain.Metric {
	matched := make([]domain.Metric, 0, len(f.rows))

	for _, row := range f.rows {
		keep := true
		for key, conditions := range query {
			for _, cond := range conditions {
				switch {
				case strings.HasPrefix(cond, "eq."):
					want := strings.TrimPrefix(cond, "eq.")
					if key == "repoID" && row.RepoID != want {
						keep = false
					}
					if key == "importID" && row.ImportID != want {
						keep = false
					}
				case strings.HasPrefix(cond, "gte."):
					bound, _ := strconv.Atoi(strings.TrimPrefix(cond, "gte."))
					if v, ok := row.Score(key); !ok || v < bound {
						keep = false
					}
				case strings.HasPrefix(cond, "lte."):
					bound, _ := strconv.Atoi(strings.TrimPrefix(cond, "lte."))
					if v, ok := row.Score(key); !ok || v > bound {
						keep = false
					}
				}
			}
		}
		if keep {
			matched = append(matched, row)
		}
	}
	return matched
}

func newTestStore(t *testing.T, fake *fakeSupabase) (*SupabaseStore, *httptest.Server) {
	server := httptest.NewServer(http.HandlerFunc(fake.handler))
	store := NewSupabaseStore(server.URL, "test-key", 5*time.Second, &util.MetricsLogger{})
	return store, server
}

func TestSupabaseStore_CreateMetric(t *testing.T) {
	fake := &fakeSupabase{t: t}
	store, server := newTestStore(t, fake)
	defer server.Close()

	ctx := context.Background()

	// case 1: valid metric is echoed back and written exactly once
	metric := domain.Metric{
		RepoID:          "repo-1",
		ImportID:        "import-1",
		CommitHistScore: 8,
		ComplexityScore: 5,
		ChurnScore:      intPtr(3),
	}
	created, err := store.CreateMetric(ctx, metric)
	assert.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, metric, *created)
	assert.Equal(t, 1, fake.requests, "Expected exactly one write")
	assert.Len(t, fake.rows, 1)

	// case 2: missing repoID issues no request
	fake.requests = 0
	created, err = store.CreateMetric(ctx, domain.Metric{ImportID: "import-1", CommitHistScore: 1, ComplexityScore: 2})
	assert.Nil(t, created)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, fake.requests, "Validation failure must not hit the store")

	// case 3: missing importID issues no request
	created, err = store.CreateMetric(ctx, domain.Metric{RepoID: "repo-1", CommitHistScore: 1, ComplexityScore: 2})
	assert.Nil(t, created)
	assert.ErrorIs(t, err, ErrMissingField)
	assert.Equal(t, 0, fake.requests)

	// case 4: store rejection surfaces as StoreError with status and body
	fake.failStatus = http.StatusConflict
	fake.failBody = `{"message":"duplicate key"}`
	created, err = store.CreateMetric(ctx, metric)
	assert.Nil(t, created)
	assert.True(t, IsStoreError(err))
	var storeErr *StoreError
	assert.ErrorAs(t, err, &storeErr)
	assert.Equal(t, http.StatusConflict, storeErr.StatusCode)
	assert.Contains(t, storeErr.Body, "duplicate key")
}

func TestSupabaseStore_CreateMetric_ObjectEcho(t *testing.T) {
	// Some store versions echo a bare object instead of an array.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(domain.Metric{RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 3, ComplexityScore: 4})
	}))
	defer server.Close()

	store := NewSupabaseStore(server.URL, "test-key", 5*time.Second, &util.MetricsLogger{})

	created, err := store.CreateMetric(context.Background(), domain.Metric{
		RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 3, ComplexityScore: 4,
	})
	assert.NoError(t, err)
	assert.NotNil(t, created)
	assert.Equal(t, "repo-1", created.RepoID)
}

func TestSupabaseStore_GetMetricByKeys(t *testing.T) {
	fake := &fakeSupabase{t: t, rows: []domain.Metric{
		{RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 8, ComplexityScore: 5},
		{RepoID: "repo-1", ImportID: "import-2", CommitHistScore: 2, ComplexityScore: 9},
		{RepoID: "repo-2", ImportID: "import-1", CommitHistScore: 4, ComplexityScore: 4},
	}}
	store, server := newTestStore(t, fake)
	defer server.Close()

	ctx := context.Background()

	// case 1: exact composite-key match
	metric, err := store.GetMetricByKeys(ctx, "repo-1", "import-2")
	assert.NoError(t, err)
	assert.NotNil(t, metric)
	assert.Equal(t, "repo-1", metric.RepoID)
	assert.Equal(t, "import-2", metric.ImportID)
	assert.Equal(t, 2, metric.CommitHistScore)

	// case 2: absent key returns nil without error
	metric, err = store.GetMetricByKeys(ctx, "repo-9", "import-1")
	assert.NoError(t, err)
	assert.Nil(t, metric)

	// case 3: store failure is an error, not a silent nil
	fake.failStatus = http.StatusInternalServerError
	metric, err = store.GetMetricByKeys(ctx, "repo-1", "import-1")
	assert.Nil(t, metric)
	assert.True(t, IsStoreError(err))
}

func TestSupabaseStore_ListMetrics(t *testing.T) {
	fake := &fakeSupabase{t: t, rows: []domain.Metric{
		{RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 1, ComplexityScore: 1},
		{RepoID: "repo-1", ImportID: "import-2", CommitHistScore: 2, ComplexityScore: 2},
		{RepoID: "repo-2", ImportID: "import-1", CommitHistScore: 3, ComplexityScore: 3},
	}}
	store, server := newTestStore(t, fake)
	defer server.Close()

	ctx := context.Background()

	// case 1: all metrics, default pagination
	metrics, err := store.GetAllMetrics(ctx, 0, 0)
	assert.NoError(t, err)
	assert.Len(t, metrics, 3)

	// case 2: limit 1, offset 1 returns exactly the second row
	metrics, err = store.GetAllMetrics(ctx, 1, 1)
	assert.NoError(t, err)
	assert.Len(t, metrics, 1)
	assert.Equal(t, "import-2", metrics[0].ImportID)

	// case 3: offset beyond data returns empty
	metrics, err = store.GetAllMetrics(ctx, 10, 100)
	assert.NoError(t, err)
	assert.Len(t, metrics, 0)

	// case 4: filter by repo
	metrics, err = store.GetMetricsByRepo(ctx, "repo-1", 100, 0)
	assert.NoError(t, err)
	assert.Len(t, metrics, 2)
	for _, m := range metrics {
		assert.Equal(t, "repo-1", m.RepoID)
	}

	// case 5: filter by import
	metrics, err = store.GetMetricsByImport(ctx, "import-1", 100, 0)
	assert.NoError(t, err)
	assert.Len(t, metrics, 2)
	for _, m := range metrics {
		assert.Equal(t, "import-1", m.ImportID)
	}

	// case 6: no rows for an unknown repo
	metrics, err = store.GetMetricsByRepo(ctx, "repo-9", 100, 0)
	assert.NoError(t, err)
	assert.Len(t, metrics, 0)

	// case 7: negative offset is treated as 0
	metrics, err = store.GetAllMetrics(ctx, 2, -5)
	assert.NoError(t, err)
	assert.Len(t, metrics, 2)
	assert.Equal(t, "import-1", metrics[0].ImportID)
}

func TestSupabaseStore_GetMetricsByScoreRange(t *testing.T) {
	fake := &fakeSupabase{t: t, rows: []domain.Metric{
		{RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 1, ComplexityScore: 3},
		{RepoID: "repo-1", ImportID: "import-2", CommitHistScore: 5, ComplexityScore: 6, TotalScore: intPtr(11)},
		{RepoID: "repo-2", ImportID: "import-1", CommitHistScore: 9, ComplexityScore: 8, TotalScore: intPtr(17)},
	}}
	store, server := newTestStore(t, fake)
	defer server.Close()

	ctx := context.Background()

	// case 1: inclusive range on a required score
	metrics, err := store.GetMetricsByScoreRange(ctx, "commitHistScore", 1, 5)
	assert.NoError(t, err)
	assert.Len(t, metrics, 2)

	// case 2: bounds are inclusive on both ends
	metrics, err = store.GetMetricsByScoreRange(ctx, "commitHistScore", 5, 9)
	assert.NoError(t, err)
	assert.Len(t, metrics, 2)

	// case 3: optional score; null rows never match
	metrics, err = store.GetMetricsByScoreRange(ctx, "totalScore", 0, 100)
	assert.NoError(t, err)
	assert.Len(t, metrics, 2)

	// case 4: unknown score field fails without a network call
	fake.requests = 0
	metrics, err = store.GetMetricsByScoreRange(ctx, "bogusScore", 0, 10)
	assert.Nil(t, metrics)
	assert.ErrorIs(t, err, ErrInvalidScoreField)
	assert.True(t, IsValidationError(err))
	assert.Equal(t, 0, fake.requests, "Invalid field must not hit the store")

	// case 5: empty range result
	metrics, err = store.GetMetricsByScoreRange(ctx, "complexityScore", 50, 60)
	assert.NoError(t, err)
	assert.Len(t, metrics, 0)
}

func TestSupabaseStore_GetMetricsSummary(t *testing.T) {
	// case 1: empty table
	fake := &fakeSupabase{t: t}
	store, server := newTestStore(t, fake)

	summary, err := store.GetMetricsSummary(context.Background())
	server.Close()
	assert.NoError(t, err)
	assert.Equal(t, 0, summary.TotalCount)
	assert.Empty(t, summary.AverageScores)

	// case 2: populated table; count from Content-Range, averages skip nulls
	fake = &fakeSupabase{t: t, rows: []domain.Metric{
		{RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 2, ComplexityScore: 4, ChurnScore: intPtr(10)},
		{RepoID: "repo-1", ImportID: "import-2", CommitHistScore: 4, ComplexityScore: 6},
		{RepoID: "repo-2", ImportID: "import-1", CommitHistScore: 6, ComplexityScore: 8, ChurnScore: intPtr(20)},
	}}
	store, server = newTestStore(t, fake)
	defer server.Close()

	summary, err = store.GetMetricsSummary(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3, summary.TotalCount)

	assert.NotNil(t, summary.AverageScores["avg_commitHistScore"])
	assert.Equal(t, 4.0, *summary.AverageScores["avg_commitHistScore"])
	assert.Equal(t, 6.0, *summary.AverageScores["avg_complexityScore"])

	// churn averaged over the two non-null rows only
	assert.NotNil(t, summary.AverageScores["avg_churnScore"])
	assert.Equal(t, 15.0, *summary.AverageScores["avg_churnScore"])

	// fields with zero non-null observations are present but nil
	avg, present := summary.AverageScores["avg_totalScore"]
	assert.True(t, present)
	assert.Nil(t, avg)
}

func TestSupabaseStore_GetRepoMetricsSummary(t *testing.T) {
	fake := &fakeSupabase{t: t, rows: []domain.Metric{
		{RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 3, ComplexityScore: 4},
		{RepoID: "repo-1", ImportID: "import-2", CommitHistScore: 5, ComplexityScore: 6},
		{RepoID: "repo-2", ImportID: "import-1", CommitHistScore: 9, ComplexityScore: 9},
	}}
	store, server := newTestStore(t, fake)
	defer server.Close()

	ctx := context.Background()

	// case 1: two rows for the repo, averaged over both
	summary, err := store.GetRepoMetricsSummary(ctx, "repo-1")
	assert.NoError(t, err)
	assert.Equal(t, "repo-1", summary.RepoID)
	assert.Equal(t, 2, summary.MetricCount)
	assert.Equal(t, 5.0, *summary.AverageScores["avg_complexityScore"])
	assert.Equal(t, 4.0, *summary.AverageScores["avg_commitHistScore"])

	// case 2: repo with no rows
	summary, err = store.GetRepoMetricsSummary(ctx, "repo-9")
	assert.NoError(t, err)
	assert.Equal(t, "repo-9", summary.RepoID)
	assert.Equal(t, 0, summary.MetricCount)
	assert.Empty(t, summary.AverageScores)
}

func TestSupabaseStore_GetRepoMetricsSummary_ManyPages(t *testing.T) {
	// 2500 rows span three pages of 1000; complexityScore encodes the
	// page index so the average only comes out right when every page is
	// fetched: (0*1000 + 1*1000 + 2*500) / 2500 = 0.8.
	const rowCount = 2500

	fake := &fakeSupabase{t: t}
	for i := 0; i < rowCount; i++ {
		fake.rows = append(fake.rows, domain.Metric{
			RepoID:          "repo-big",
			ImportID:        fmt.Sprintf("import-%d", i),
			CommitHistScore: 1,
			ComplexityScore: i / 1000,
		})
	}
	store, server := newTestStore(t, fake)
	defer server.Close()

	summary, err := store.GetRepoMetricsSummary(context.Background(), "repo-big")
	assert.NoError(t, err)
	assert.Equal(t, "repo-big", summary.RepoID)
	assert.Equal(t, rowCount, summary.MetricCount)
	assert.Equal(t, 3, fake.requests, "Expected one request per page")
	assert.Equal(t, 1.0, *summary.AverageScores["avg_commitHistScore"])
	assert.Equal(t, 0.8, *summary.AverageScores["avg_complexityScore"])
}

func TestSupabaseStore_TransportError(t *testing.T) {
	fake := &fakeSupabase{t: t}
	store, server := newTestStore(t, fake)
	server.Close() // connection refused from here on

	ctx := context.Background()

	_, err := store.GetAllMetrics(ctx, 10, 0)
	assert.Error(t, err)
	assert.False(t, IsStoreError(err), "Transport failure is not a store rejection")
	assert.False(t, IsValidationError(err))

	created, err := store.CreateMetric(ctx, domain.Metric{
		RepoID: "repo-1", ImportID: "import-1", CommitHistScore: 1, ComplexityScore: 2,
	})
	assert.Nil(t, created)
	assert.Error(t, err)
	assert.False(t, IsStoreError(err))
}

func TestSupabaseStore_ContentRangeParsing(t *testing.T) {
	// Content-Range of the form "<start>-<end>/<total>" carries the count.
	rangeHeader := "0-2/3573"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("count") == "exact" && rangeHeader != "" {
			w.Header().Set("Content-Range", rangeHeader)
		}
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	store := NewSupabaseStore(server.URL, "test-key", 5*time.Second, &util.MetricsLogger{})

	summary, err := store.GetMetricsSummary(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 3573, summary.TotalCount)

	// missing header defaults the count to zero
	rangeHeader = ""
	summary, err = store.GetMetricsSummary(context.Background())
	assert.NoError(t, err)
	assert.Equal(t, 0, summary.TotalCount)
}
