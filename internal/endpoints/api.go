package endpoints

import (
	"encoding/json"
	"net/http"
)

type APIResponse struct {
	Status    bool        `json:"status"`
	Value     interface{} `json:"value,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorCode int         `json:"error_code"`
}

func (res APIResponse) WriteErrorResponse(w http.ResponseWriter, err error) {
	res.Status = false
	res.Error = err.Error()
	res.ErrorCode = GetErrorCode(err)

	errJson, _ := json.Marshal(res)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.Write(errJson)
}

func (res APIResponse) WriteErrorResponseWithStatusCode(w http.ResponseWriter, err error, StatusCode int) {
	res.Status = false
	res.Error = err.Error()
	if StatusCode == http.StatusUnauthorized {
		res.ErrorCode = API_UNAUTHORIZED
	} else {
		res.ErrorCode = GetErrorCode(err)
	}

	errJson, _ := json.Marshal(res)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(StatusCode)
	w.Write(errJson)
}

func (res APIResponse) WriteResultResponse(w http.ResponseWriter, result interface{}) {
	res.writeResult(w, result, http.StatusOK)
}

// WriteCreatedResponse is WriteResultResponse with a 201, for the row
// echoed back by a successful insert.
func (res APIResponse) WriteCreatedResponse(w http.ResponseWriter, result interface{}) {
	res.writeResult(w, result, http.StatusCreated)
}

func (res APIResponse) writeResult(w http.ResponseWriter, result interface{}, statusCode int) {
	res.Status = true
	res.Value = result
	res.ErrorCode = GetErrorCode(nil)

	resultJson, _ := json.Marshal(res)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(statusCode)
	w.Write(resultJson)
}
