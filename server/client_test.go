package metricgen_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	Ms "github.com/maroda/metricgen/server"
	Mt "github.com/maroda/metricgen/types"
)

func TestClient_CurrentConfig(t *testing.T) {
	ctx := context.Background()

	t.Run("Decodes the metrics envelope", func(t *testing.T) {
		server := makeMockCollaborator(t, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/config" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			w.Write([]byte(`{"metrics": {"generator_cpu": {"waveform_type": "triangle", "base_value": 5, "amplitude": 1, "period": 30, "phase_offset": 0, "update_interval": 1}}}`))
		})

		config, err := Ms.NewClient(server.URL).CurrentConfig(ctx)
		assertError(t, err, nil)
		assertFloat(t, config.Metrics["generator_cpu"].Period, 30)
	})

	t.Run("Empty config is an empty map", func(t *testing.T) {
		server := makeMockCollaborator(t, func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{}`))
		})

		config, err := Ms.NewClient(server.URL).CurrentConfig(ctx)
		assertError(t, err, nil)
		if config.Metrics == nil {
			t.Errorf("Metrics should not be nil")
		}
	})

	t.Run("Returns 500 Error", func(t *testing.T) {
		server := makeMockCollaborator(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "Internal Server Error", 500)
		})

		_, err := Ms.NewClient(server.URL).CurrentConfig(ctx)
		assertGotError(t, err)
		assertStringContains(t, err.Error(), "500")
	})

	t.Run("Returns Error after Server Close", func(t *testing.T) {
		server := makeMockCollaborator(t, func(w http.ResponseWriter, r *http.Request) {})
		url := server.URL
		server.Close()

		_, err := Ms.NewClient(url).CurrentConfig(ctx)
		assertGotError(t, err)
	})

	t.Run("Honours the context deadline", func(t *testing.T) {
		server := makeMockCollaborator(t, func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})

		short, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err := Ms.NewClient(server.URL).CurrentConfig(short)
		assertError(t, err, context.DeadlineExceeded)
	})
}

func TestClient_Mutations(t *testing.T) {
	ctx := context.Background()
	var lastPath string
	var lastForm map[string][]string

	server := makeMockCollaborator(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("bad form: %v", err)
		}
		lastPath = r.URL.Path
		lastForm = r.PostForm

		result := Mt.Result{Success: true, Message: "ok"}
		if r.PostForm.Get("metric_name") == "taken" {
			result = Mt.Result{Success: false, Message: "Metric already exists"}
		}
		json.NewEncoder(w).Encode(result)
	})
	client := Ms.NewClient(server.URL + "/")

	t.Run("Create strips the prefix and sends every field", func(t *testing.T) {
		err := client.CreateGenerator(ctx, "generator_cpu", Ms.DefaultParameters())
		assertError(t, err, nil)
		assertString(t, lastPath, "/add_metric")
		assertString(t, lastForm["metric_name"][0], "cpu")
		assertString(t, lastForm["amplitude"][0], "20")
		assertString(t, lastForm["waveform_type"][0], "sinusoidal")
	})

	t.Run("Update sends only provided fields", func(t *testing.T) {
		period := 45.0
		err := client.UpdateGenerator(ctx, "generator_cpu", Mt.ParameterUpdate{Period: &period})
		assertError(t, err, nil)
		assertString(t, lastPath, "/update_metric")
		assertString(t, lastForm["period"][0], "45")
		if _, ok := lastForm["amplitude"]; ok {
			t.Errorf("amplitude should not be sent")
		}
	})

	t.Run("Remove", func(t *testing.T) {
		err := client.RemoveGenerator(ctx, "cpu")
		assertError(t, err, nil)
		assertString(t, lastPath, "/remove_metric")
	})

	t.Run("success:false is a RejectedError", func(t *testing.T) {
		err := client.CreateGenerator(ctx, "taken", Ms.DefaultParameters())

		var rejected *Ms.RejectedError
		if !errors.As(err, &rejected) {
			t.Fatalf("got %v, want a RejectedError", err)
		}
		assertString(t, rejected.Message, "Metric already exists")
	})
}

func TestSingleFetchWithClient(t *testing.T) {
	t.Run("Returns the error of the transport", func(t *testing.T) {
		req := httptestRequest(t)
		_, _, err := Ms.SingleFetchWithClient(req, &FailingClient{})
		assertGotError(t, err)
	})
}

// Helpers //

type FailingClient struct{}

func (fc *FailingClient) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func httptestRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://localhost/config", nil)
	if err != nil {
		t.Fatalf("could not build request: %v", err)
	}
	return req
}

func makeMockCollaborator(t *testing.T, h http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)
	return server
}

func assertString(t *testing.T, got, want string) {
	t.Helper()
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
