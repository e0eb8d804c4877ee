package tools

import (
	"encoding/json"
	"net/http"
)

// CallRequest is the body of POST /tools/call and the params of a stdio tools/call
type CallRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// HandleList serves GET /tools
func (r *Registry) HandleList(w http.ResponseWriter, req *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"tools": r.List()})
}

// HandleCall serves POST /tools/call. Tool failures are still 200 with an
// "Error:" result; only malformed requests get a 400.
func (r *Registry) HandleCall(w http.ResponseWriter, req *http.Request) {
	var call CallRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, req.Body, 1<<20)).Decode(&call); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body: " + err.Error()})
		return
	}
	if call.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "tool name is required"})
		return
	}

	writeJSON(w, http.StatusOK, r.Call(req.Context(), call.Name, call.Arguments))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
