package endpoints

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"metrics-service/internal/domain"
	"metrics-service/internal/repository"
	"metrics-service/internal/util"

	"github.com/gorilla/mux"
)

// CreateMetricRequest uses pointers for the required fields so a missing
// field can be told apart from a zero value, and typed ints so a string
// or fractional score fails at decode time before any store call.
type CreateMetricRequest struct {
	RepoID              *string `json:"repoID"`
	ImportID            *string `json:"importID"`
	CommitHistScore     *int    `json:"commitHistScore"`
	ComplexityScore     *int    `json:"complexityScore"`
	ChurnScore          *int    `json:"churnScore"`
	TotalScore          *int    `json:"totalScore"`
	PackageVersionScore *int    `json:"packageVersionScore"`
}

type Metrics struct {
	Response APIResponse
	logger   *util.MetricsLogger
	store    domain.MetricStore
}

func (m *Metrics) Init(store domain.MetricStore, webSlogger *util.MetricsLogger) {
	m.store = store
	m.logger = webSlogger
}

// IndexHandler serves the unauthenticated root route.
func (m *Metrics) IndexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("Repository metrics service backed by Supabase"))
}

func (m *Metrics) CreateMetricHandler(w http.ResponseWriter, r *http.Request) {

	var reqBody CreateMetricRequest

	err := json.NewDecoder(r.Body).Decode(&reqBody)
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while unmarshalling JSON Body. Err -", err)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	if reqBody.RepoID == nil || reqBody.ImportID == nil || reqBody.CommitHistScore == nil || reqBody.ComplexityScore == nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Create metric request missing a required field")
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		return
	}

	metric := domain.Metric{
		RepoID:              *reqBody.RepoID,
		ImportID:            *reqBody.ImportID,
		CommitHistScore:     *reqBody.CommitHistScore,
		ComplexityScore:     *reqBody.ComplexityScore,
		ChurnScore:          reqBody.ChurnScore,
		TotalScore:          reqBody.TotalScore,
		PackageVersionScore: reqBody.PackageVersionScore,
	}

	created, err := m.store.CreateMetric(r.Context(), metric)
	if err != nil {
		m.writeStoreFailure(w, "CreateMetric", err)
		return
	}

	m.Response.WriteCreatedResponse(w, created)
}

func (m *Metrics) GetMetricByKeysHandler(w http.ResponseWriter, r *http.Request) {

	routeParamValue := mux.Vars(r)
	repoID := routeParamValue["repoID"]
	importID := routeParamValue["importID"]

	metric, err := m.store.GetMetricByKeys(r.Context(), repoID, importID)
	if err != nil {
		m.writeStoreFailure(w, "GetMetricByKeys", err)
		return
	}

	if metric == nil {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Metric not found. repoID - ", repoID, " importID - ", importID)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrNoMetricsAvailable, http.StatusNotFound)
		return
	}

	m.Response.WriteResultResponse(w, metric)
}

func (m *Metrics) GetAllMetricsHandler(w http.ResponseWriter, r *http.Request) {

	limit, offset, err := paginationParams(mux.Vars(r))
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting limit/offset from URL. Err - ", err)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	fetchedMetrics, err := m.store.GetAllMetrics(r.Context(), limit, offset)
	if err != nil {
		m.writeStoreFailure(w, "GetAllMetrics", err)
		return
	}

	m.writeMetricsList(w, fetchedMetrics)
}

func (m *Metrics) GetMetricsByRepoHandler(w http.ResponseWriter, r *http.Request) {

	routeParamValue := mux.Vars(r)

	limit, offset, err := paginationParams(routeParamValue)
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting limit/offset from URL. Err - ", err)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	fetchedMetrics, err := m.store.GetMetricsByRepo(r.Context(), routeParamValue["repoID"], limit, offset)
	if err != nil {
		m.writeStoreFailure(w, "GetMetricsByRepo", err)
		return
	}

	m.writeMetricsList(w, fetchedMetrics)
}

func (m *Metrics) GetMetricsByImportHandler(w http.ResponseWriter, r *http.Request) {

	routeParamValue := mux.Vars(r)

	limit, offset, err := paginationParams(routeParamValue)
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting limit/offset from URL. Err - ", err)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	fetchedMetrics, err := m.store.GetMetricsByImport(r.Context(), routeParamValue["importID"], limit, offset)
	if err != nil {
		m.writeStoreFailure(w, "GetMetricsByImport", err)
		return
	}

	m.writeMetricsList(w, fetchedMetrics)
}

func (m *Metrics) GetMetricsByScoreRangeHandler(w http.ResponseWriter, r *http.Request) {

	routeParamValue := mux.Vars(r)

	scoreField := routeParamValue["scoreField"]
	if !domain.ValidScoreField(scoreField) {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Unknown score field in URL - ", scoreField)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidScoreField, http.StatusBadRequest)
		return
	}

	minScore, err := strconv.Atoi(routeParamValue["min"])
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting min score from URL. Err - ", err)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	maxScore, err := strconv.Atoi(routeParamValue["max"])
	if err != nil {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "While getting max score from URL. Err - ", err)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidParameters, http.StatusBadRequest)
		return
	}

	if minScore > maxScore {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Given min score is greater than max score. min - ", minScore, " max - ", maxScore)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidScoreRange, http.StatusBadRequest)
		return
	}

	fetchedMetrics, err := m.store.GetMetricsByScoreRange(r.Context(), scoreField, minScore, maxScore)
	if err != nil {
		m.writeStoreFailure(w, "GetMetricsByScoreRange", err)
		return
	}

	m.writeMetricsList(w, fetchedMetrics)
}

func (m *Metrics) GetMetricsSummaryHandler(w http.ResponseWriter, r *http.Request) {

	summary, err := m.store.GetMetricsSummary(r.Context())
	if err != nil {
		m.writeStoreFailure(w, "GetMetricsSummary", err)
		return
	}

	m.Response.WriteResultResponse(w, summary)
}

func (m *Metrics) GetRepoMetricsSummaryHandler(w http.ResponseWriter, r *http.Request) {

	routeParamValue := mux.Vars(r)

	summary, err := m.store.GetRepoMetricsSummary(r.Context(), routeParamValue["repoID"])
	if err != nil {
		m.writeStoreFailure(w, "GetRepoMetricsSummary", err)
		return
	}

	m.Response.WriteResultResponse(w, summary)
}

func (m *Metrics) writeMetricsList(w http.ResponseWriter, fetchedMetrics []domain.Metric) {
	if len(fetchedMetrics) == 0 {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Insufficient Metrics Data")
		m.Response.WriteErrorResponseWithStatusCode(w, ErrNoMetricsAvailable, http.StatusNotFound)
		return
	}

	m.Response.WriteResultResponse(w, fetchedMetrics)
}

// writeStoreFailure maps the store's error kinds onto HTTP statuses:
// cancelled contexts to 408, local validation to 400, everything else
// (store rejections and transport failures) to 502.
func (m *Metrics) writeStoreFailure(w http.ResponseWriter, operation string, err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		m.logger.LogEvent(util.LOG_LEVEL_WARN, "Context cancelled during ", operation)
		m.Response.WriteErrorResponseWithStatusCode(w, ErrRequestCancelled, http.StatusRequestTimeout)
		return
	}

	if repository.IsValidationError(err) {
		m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while ", operation, "(). Err - ", err)
		if errors.Is(err, repository.ErrInvalidScoreField) {
			m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidScoreField, http.StatusBadRequest)
		} else {
			m.Response.WriteErrorResponseWithStatusCode(w, ErrInvalidRequestBody, http.StatusBadRequest)
		}
		return
	}

	m.logger.LogEvent(util.LOG_LEVEL_ERROR, "Occured while ", operation, "(). Err - ", err)
	m.Response.WriteErrorResponseWithStatusCode(w, ErrStoreUnavailable, http.StatusBadGateway)
}

func paginationParams(routeParamValue map[string]string) (int, int, error) {

	limit, err := strconv.Atoi(routeParamValue["limit"])
	if err != nil {
		return 0, 0, err
	}

	offset, err := strconv.Atoi(routeParamValue["offset"])
	if err != nil {
		return 0, 0, err
	}

	return limit, offset, nil
}
