package remote

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/go-chi/chi/v5"
)

// NewHandler serves oracle over the equilibrium service protocol.
func NewHandler(oracle thermo.Oracle) http.Handler {
	h := &handler{oracle: oracle}
	r := chi.NewRouter()
	r.Post("/systems", h.systems)
	r.Post("/equilibria", h.equilibria)
	return r
}

type handler struct {
	oracle thermo.Oracle
}

func (h *handler) systems(w http.ResponseWriter, r *http.Request) {
	var req systemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	sys, err := decodeSystem(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if _, err := h.oracle.Configure(r.Context(), sys); err != nil {
		writeError(w, configureStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"key": sys.Key()})
}

func (h *handler) equilibria(w http.ResponseWriter, r *http.Request) {
	var req equilibriumRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %v", err))
		return
	}
	sys, err := decodeSystem(req.systemRequest)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := h.oracle.Configure(r.Context(), sys)
	if err != nil {
		writeError(w, configureStatus(err), err.Error())
		return
	}
	for name, v := range req.Conditions {
		c, err := thermo.ParseCondition(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		session = session.With(c, v)
	}

	props := req.Properties
	if len(props) == 0 {
		props = properties(sys.Elements)
	}

	eq, err := session.Evaluate(r.Context())
	if err != nil {
		if errors.Is(err, thermo.ErrNotConverged) {
			writeJSON(w, http.StatusUnprocessableEntity, equilibriumResponse{Error: err.Error()})
			return
		}
		slog.Warn("Equilibrium evaluation failed", "system", sys.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	values := make(map[string]float64, len(props))
	for _, name := range props {
		p, err := thermo.ParseProperty(name)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		// Properties the backend cannot provide are left out.
		if v, err := eq.Value(p); err == nil {
			values[p.String()] = v
		}
	}
	writeJSON(w, http.StatusOK, equilibriumResponse{Converged: true, Values: values})
}

func configureStatus(err error) int {
	var cfgErr *thermo.ConfigurationError
	if errors.As(err, &cfgErr) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
