package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/veesix-networks/netbind/pkg/northbound"
)

const maxBodySize = 64 << 10

var apiPaths = []string{
	"GET /api",
	"GET /api/status",
	"GET /api/openapi.json",
	"POST /api/bind",
	"POST /api/unbind",
	"POST /api/call/{method}",
}

func (c *Component) handlePaths(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, PathsResponse{
		Paths:   apiPaths,
		Methods: northbound.Methods(),
	})
}

func (c *Component) handleStatus(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, StatusResponse{
		Binder: c.adapter.Status(),
		API:    c.GetStatus(),
	})
}

func (c *Component) handleOpenAPI(w http.ResponseWriter, r *http.Request) {
	c.writeJSON(w, http.StatusOK, buildOpenAPISpec())
}

func (c *Component) handleBind(w http.ResponseWriter, r *http.Request) {
	if !c.limiter.Allow() {
		c.writeError(w, &northbound.CallError{Code: codeRateLimited, Message: "too many bind requests"})
		return
	}

	var req BindRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		c.writeError(w, &northbound.CallError{Code: northbound.CodeInvalidParams, Message: "invalid JSON body"})
		return
	}

	ok, err := c.adapter.Bind(r.Context(), req.SSID)
	if err != nil {
		c.writeError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, ResultResponse{Success: ok})
}

func (c *Component) handleUnbind(w http.ResponseWriter, r *http.Request) {
	ok, err := c.adapter.Unbind(r.Context())
	if err != nil {
		c.writeError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, ResultResponse{Success: ok})
}

func (c *Component) handleCall(w http.ResponseWriter, r *http.Request) {
	method := r.PathValue("method")

	if method == northbound.MethodBind && !c.limiter.Allow() {
		c.writeError(w, &northbound.CallError{Code: codeRateLimited, Message: "too many bind requests"})
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		c.writeError(w, &northbound.CallError{Code: northbound.CodeInvalidParams, Message: "failed to read request body"})
		return
	}

	result, err := c.adapter.Call(r.Context(), method, body)
	if err != nil {
		c.writeError(w, err)
		return
	}

	c.writeJSON(w, http.StatusOK, CallResponse{Method: method, Result: result})
}

func httpStatus(code northbound.Code) int {
	switch code {
	case northbound.CodeNoSSID, northbound.CodeInvalidParams:
		return http.StatusBadRequest
	case northbound.CodeBindInProgress:
		return http.StatusConflict
	case northbound.CodeNotImplemented:
		return http.StatusNotImplemented
	case codeRateLimited:
		return http.StatusTooManyRequests
	case northbound.CodeBindError, northbound.CodeUnbindError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (c *Component) writeError(w http.ResponseWriter, err error) {
	var ce *northbound.CallError
	if !errors.As(err, &ce) {
		c.logger.Error("Unexpected handler error", "error", err)
		ce = &northbound.CallError{Code: northbound.CodeBindError, Message: err.Error()}
	}

	c.writeJSON(w, httpStatus(ce.Code), ErrorResponse{
		Code:    ce.Code,
		Message: ce.Message,
		Details: ce.Details,
	})
}

func (c *Component) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		c.logger.Debug("Failed to write response", "error", err)
	}
}
