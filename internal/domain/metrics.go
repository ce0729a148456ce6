package domain

import "context"

// Metric is one scored evaluation of a repository import. The pair
// (RepoID, ImportID) is the record's identity; records are created once
// and never updated or deleted by this service.
type Metric struct {
	RepoID              string `json:"repoID"`
	ImportID            string `json:"importID"`
	CommitHistScore     int    `json:"commitHistScore"`
	ComplexityScore     int    `json:"complexityScore"`
	ChurnScore          *int   `json:"churnScore,omitempty"`
	TotalScore          *int   `json:"totalScore,omitempty"`
	PackageVersionScore *int   `json:"packageVersionScore,omitempty"`
}

// ScoreFields lists the five score columns in canonical order.
var ScoreFields = []string{
	"commitHistScore",
	"complexityScore",
	"churnScore",
	"totalScore",
	"packageVersionScore",
}

func ValidScoreField(name string) bool {
	for _, f := range ScoreFields {
		if f == name {
			return true
		}
	}
	return false
}

// Score returns the value of the named score field and whether it is set.
// The two required scores are always set; optional scores report false
// when null so callers can exclude them from averages.
func (m Metric) Score(field string) (int, bool) {
	switch field {
	case "commitHistScore":
		return m.CommitHistScore, true
	case "complexityScore":
		return m.ComplexityScore, true
	case "churnScore":
		if m.ChurnScore != nil {
			return *m.ChurnScore, true
		}
	case "totalScore":
		if m.TotalScore != nil {
			return *m.TotalScore, true
		}
	case "packageVersionScore":
		if m.PackageVersionScore != nil {
			return *m.PackageVersionScore, true
		}
	}
	return 0, false
}

// MetricsSummary aggregates the whole table. TotalCount is the store's
// exact row count; AverageScores maps "avg_<field>" to the mean of all
// non-null values of that field, nil when a field had no non-null
// observations, and is empty when no records were fetched.
type MetricsSummary struct {
	TotalCount    int                 `json:"total_count"`
	AverageScores map[string]*float64 `json:"average_scores"`
}

// RepoMetricsSummary is the same aggregation scoped to one repository.
type RepoMetricsSummary struct {
	RepoID        string              `json:"repo_id"`
	MetricCount   int                 `json:"metric_count"`
	AverageScores map[string]*float64 `json:"average_scores"`
}

type MetricStore interface {
	CreateMetric(ctx context.Context, metric Metric) (*Metric, error)
	GetMetricByKeys(ctx context.Context, repoID, importID string) (*Metric, error)
	GetMetricsByRepo(ctx context.Context, repoID string, limit, offset int) ([]Metric, error)
	GetMetricsByImport(ctx context.Context, importID string, limit, offset int) ([]Metric, error)
	GetAllMetrics(ctx context.Context, limit, offset int) ([]Metric, error)
	GetMetricsByScoreRange(ctx context.Context, scoreField string, minScore, maxScore int) ([]Metric, error)
	GetMetricsSummary(ctx context.Context) (MetricsSummary, error)
	GetRepoMetricsSummary(ctx context.Context, repoID string) (RepoMetricsSummary, error)
}
