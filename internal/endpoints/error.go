package endpoints

import (
	"errors"
)

const (
	API_SUCCESS      = iota + 303000 // 303000
	API_FAILURE                      // 303001 - Generic API failure
	API_UNAUTHORIZED                 // 303002 - Authentication/Authorization failure
)

const (
	METRICS_NOT_AVAILABLE = iota + 101 // 101 - No metrics found for the given criteria
	INVALID_REQUEST_BODY               // 102 - Error parsing request body
	INVALID_PARAMETERS                 // 103 - Invalid URL parameters (e.g., non-integer limit/offset)
	INVALID_SCORE_FIELD                // 104 - Unknown score field name
	INVALID_SCORE_RANGE                // 105 - Min score is greater than max score
	REQUEST_CANCELLED                  // 106 - Request was cancelled by client or server timeout
	STORE_UNAVAILABLE                  // 107 - Remote metrics store rejected the request or was unreachable
)

var (
	ErrNoMetricsAvailable = errors.New("no metrics available for the specified criteria")
	ErrInvalidRequestBody = errors.New("invalid request body format or missing fields")
	ErrInvalidParameters  = errors.New("invalid limit or offset parameter; must be integers")
	ErrInvalidScoreField  = errors.New("score field must be one of the known score columns")
	ErrInvalidScoreRange  = errors.New("minimum score cannot be greater than maximum score")
	ErrRequestCancelled   = errors.New("request cancelled by client or server timeout")
	ErrStoreUnavailable   = errors.New("metrics store rejected the request or was unreachable")
)

func GetErrorCode(err error) int {
	if err == nil {
		return API_SUCCESS
	}

	switch {
	case errors.Is(err, ErrNoMetricsAvailable):
		return METRICS_NOT_AVAILABLE
	case errors.Is(err, ErrInvalidRequestBody):
		return INVALID_REQUEST_BODY
	case errors.Is(err, ErrInvalidParameters):
		return INVALID_PARAMETERS
	case errors.Is(err, ErrInvalidScoreField):
		return INVALID_SCORE_FIELD
	case errors.Is(err, ErrInvalidScoreRange):
		return INVALID_SCORE_RANGE
	case errors.Is(err, ErrRequestCancelled):
		return REQUEST_CANCELLED
	case errors.Is(err, ErrStoreUnavailable):
		return STORE_UNAVAILABLE
	default:
		return API_FAILURE // Default for any unhandled error
	}
}
