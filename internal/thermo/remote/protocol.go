// Package remote talks to an equilibrium service over HTTP/JSON.
//
// The service exposes two endpoints:
//
//	POST /systems      validate a system (database, elements, phases)
//	POST /equilibria   evaluate a system under a condition set
//
// Conditions and properties travel in their textual form ("T", "X(Cr)",
// "MU(Co)", "GM"). A non-converged calculation is answered with 422 and
// {"converged": false}.
package remote

import "github.com/cwbudde/gbseg/internal/thermo"

type systemRequest struct {
	Database                  string   `json:"database"`
	Elements                  []string `json:"elements"`
	Phases                    []string `json:"phases,omitempty"`
	DisableGlobalMinimization bool     `json:"disableGlobalMinimization"`
}

type equilibriumRequest struct {
	systemRequest
	Conditions map[string]float64 `json:"conditions"`
	Properties []string           `json:"properties"`
}

type equilibriumResponse struct {
	Converged bool               `json:"converged"`
	Values    map[string]float64 `json:"values,omitempty"`
	Error     string             `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func encodeSystem(sys thermo.System) systemRequest {
	return systemRequest{
		Database:                  sys.Database,
		Elements:                  sys.Elements.Strings(),
		Phases:                    sys.Phases,
		DisableGlobalMinimization: sys.DisableGlobalMinimization,
	}
}

func decodeSystem(req systemRequest) (thermo.System, error) {
	es, err := thermo.NewElementSet(req.Elements...)
	if err != nil {
		return thermo.System{}, err
	}
	return thermo.System{
		Database:                  req.Database,
		Elements:                  es,
		Phases:                    req.Phases,
		DisableGlobalMinimization: req.DisableGlobalMinimization,
	}, nil
}

// properties lists what a client asks for: MU of every element and GM.
func properties(elements thermo.ElementSet) []string {
	out := make([]string, 0, len(elements)+1)
	for _, e := range elements {
		out = append(out, thermo.MU(e).String())
	}
	return append(out, thermo.GM.String())
}
