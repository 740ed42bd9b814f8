package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"agentfoundry/internal/types"
)

// errorBody is the wire shape of every failure response.
type errorBody struct {
	Error types.Error `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the domain error taxonomy onto HTTP statuses. Anything
// unclassified is an internal error; its details are logged, not leaked.
func (r *Router) writeError(w http.ResponseWriter, err error) {
	var domainErr *types.Error
	if !errors.As(err, &domainErr) {
		r.log.Error("unclassified handler error", zap.Error(err))
		domainErr = &types.Error{Kind: types.KindInternal, Message: "internal error"}
	}

	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case types.KindValidation:
		status = http.StatusBadRequest
	case types.KindNotFound:
		status = http.StatusNotFound
	case types.KindPublishConflict:
		status = http.StatusConflict
	case types.KindEmptyPublish:
		status = http.StatusUnprocessableEntity
	case types.KindInternal:
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, errorBody{Error: *domainErr})
}

// decodeBody strictly decodes a JSON request body into v.
func decodeBody(req *http.Request, v any) error {
	dec := json.NewDecoder(req.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return types.ValidationError("body", "invalid request body: %v", err)
	}
	return nil
}

// emptyList substitutes an empty slice for nil so list endpoints always
// serialize as [].
func emptyList[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
