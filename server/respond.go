package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"syscall"

	"github.com/golang/glog"

	e "github.com/openhouse/portalcache/errors"
)

// StandardResponse is the envelope of every API response.
type StandardResponse struct {
	Context string   `json:"context"`
	Status  int      `json:"status"`
	Data    any      `json:"data"`
	Errors  []string `json:"error"`
}

func respond(w http.ResponseWriter, r *http.Request, data any, statusCode int, errs []string) {
	obj := StandardResponse{
		Context: r.URL.Query().Get("context"),
		Status:  statusCode,
		Data:    data,
		Errors:  errs,
	}

	output, err := json.Marshal(obj)
	if err != nil {
		glog.Errorf("encoding %s response: %v", r.URL.Path, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, r, output, statusCode)
}

func writeJSON(w http.ResponseWriter, r *http.Request, output []byte, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	// Responses carry tokens in their requests, never let shared caches keep them.
	w.Header().Set("Cache-Control", "private, no-cache")
	w.Header().Set("Content-Length", strconv.Itoa(len(output)))
	w.WriteHeader(statusCode)

	if r.Method == http.MethodHead {
		return
	}

	_, err := w.Write(output)
	if err == nil {
		return
	}

	// A broken pipe is the client going away, anything else is a real error.
	var opErr *net.OpError
	if errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.EPIPE) {
		glog.Warningf("writing %s response: %v", r.URL.Path, err)
		return
	}
	glog.Errorf("writing %s response: %v", r.URL.Path, err)
}

func respondWithData(w http.ResponseWriter, r *http.Request, data any) {
	respond(w, r, data, http.StatusOK, nil)
}

func respondWithErrorMessage(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	respond(w, r, nil, statusCode, []string{message})
}

// respondWithError picks the status from err. PortalErrors carry their own
// status and detail; anything else is logged and hidden behind a 500.
func respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	var pe *e.PortalError
	if errors.As(err, &pe) {
		respond(w, r, pe, pe.Status(), []string{pe.ErrorMessage})
		return
	}

	glog.Errorf("%s %s: %v", r.Method, r.URL.Path, err)
	respondWithErrorMessage(w, r, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
