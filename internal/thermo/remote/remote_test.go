package remote_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwbudde/gbseg/internal/thermo"
	"github.com/cwbudde/gbseg/internal/thermo/model"
	"github.com/cwbudde/gbseg/internal/thermo/remote"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newModelOracle(t *testing.T) *model.Oracle {
	t.Helper()
	db, err := model.ParseDatabase([]byte(`
name: demo
phases:
  FCC_A1:
    default: true
    endmembers:
      Ni: {a: 0, b: 0}
      Cr: {a: 7284, b: 0.163}
    interactions:
      - elements: [Ni, Cr]
        l: {a: 8030, b: -12.88}
  LIQUID:
    endmembers:
      Ni: {a: 17480, b: -10.116}
      Cr: {a: 28284, b: -9.47}
`))
	require.NoError(t, err)
	return model.New(db)
}

func newClient(t *testing.T, url string) *remote.Client {
	t.Helper()
	c, err := remote.New(remote.Options{URL: url, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func system(t *testing.T, db string, phases ...string) thermo.System {
	t.Helper()
	es, err := thermo.NewElementSet("Ni", "Cr")
	require.NoError(t, err)
	return thermo.System{Database: db, Elements: es, Phases: phases, DisableGlobalMinimization: true}
}

func TestClientMatchesLocalOracle(t *testing.T) {
	local := newModelOracle(t)
	srv := httptest.NewServer(remote.NewHandler(local))
	defer srv.Close()

	ctx := context.Background()
	sys := system(t, "demo", "LIQUID")

	remoteSession, err := newClient(t, srv.URL).Configure(ctx, sys)
	require.NoError(t, err)
	localSession, err := local.Configure(ctx, sys)
	require.NoError(t, err)

	apply := func(s thermo.Session) thermo.Session {
		return s.With(thermo.CondTemperature, 1200).
			With(thermo.CondPressure, 1e5).
			With(thermo.CondTotalMoles, 1).
			With(thermo.Fraction("Cr"), 0.3)
	}

	want, err := apply(localSession).Evaluate(ctx)
	require.NoError(t, err)
	got, err := apply(remoteSession).Evaluate(ctx)
	require.NoError(t, err)

	for _, p := range []thermo.Property{thermo.MU("Ni"), thermo.MU("Cr"), thermo.GM} {
		w, err := want.Value(p)
		require.NoError(t, err)
		g, err := got.Value(p)
		require.NoError(t, err)
		assert.Equal(t, w, g, p.String())
	}
}

func TestClientConfigurationError(t *testing.T) {
	srv := httptest.NewServer(remote.NewHandler(newModelOracle(t)))
	defer srv.Close()

	_, err := newClient(t, srv.URL).Configure(context.Background(), system(t, "missing"))
	var cfgErr *thermo.ConfigurationError
	require.True(t, errors.As(err, &cfgErr), "got %v", err)
	assert.Contains(t, err.Error(), "unknown database")
}

func TestClientUnreachableServiceIsConfigurationError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newClient(t, url).Configure(context.Background(), system(t, "demo"))
	var cfgErr *thermo.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestClientNotConverged(t *testing.T) {
	srv := httptest.NewServer(remote.NewHandler(newModelOracle(t)))
	defer srv.Close()

	session, err := newClient(t, srv.URL).Configure(context.Background(), system(t, "demo", "LIQUID"))
	require.NoError(t, err)

	_, err = session.With(thermo.CondTemperature, 1200).With(thermo.Fraction("Cr"), 1.5).Evaluate(context.Background())
	assert.ErrorIs(t, err, thermo.ErrNotConverged)
}

func TestClientServerErrorIsNotRecoverable(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/systems", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/equilibria", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "license server unavailable", http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	session, err := newClient(t, srv.URL).Configure(context.Background(), system(t, "demo"))
	require.NoError(t, err)

	_, err = session.With(thermo.CondTemperature, 1000).With(thermo.Fraction("Cr"), 0.2).Evaluate(context.Background())
	require.Error(t, err)
	assert.NotErrorIs(t, err, thermo.ErrNotConverged)
	assert.Contains(t, err.Error(), "license server unavailable")
}

func TestClientSendsToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := remote.New(remote.Options{URL: srv.URL + "/", Token: "s3cret"})
	require.NoError(t, err)
	_, err = c.Configure(context.Background(), system(t, "demo"))
	require.NoError(t, err)
	assert.Equal(t, "Bearer s3cret", auth)
}

func TestNewRequiresURL(t *testing.T) {
	_, err := remote.New(remote.Options{})
	assert.Error(t, err)
}

func TestHandlerRejectsBadRequests(t *testing.T) {
	srv := httptest.NewServer(remote.NewHandler(newModelOracle(t)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/equilibria", "application/json", http.NoBody)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
