package metricgen

import (
	"embed"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	Ms "github.com/maroda/metricgen/server"
	Mt "github.com/maroda/metricgen/types"
	"github.com/mitchellh/mapstructure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

//go:embed web
var webFiles embed.FS

var Version = "dev"

// SetupMux handles all data serving:
// - Collaborator routes used by the form and the terminal client
// - Preview rendering in JSON, PNG and SVG
// - Time window selection and live adjustments
// - Prometheus metric endpoint and websocket updates
func (v *View) SetupMux() *mux.Router {
	r := mux.NewRouter()
	r.Use(v.StatsMiddleware)

	r.HandleFunc("/config", v.ConfigHandler).Methods(http.MethodGet)
	r.HandleFunc("/add_metric", v.AddMetricHandler).Methods(http.MethodPost)
	r.HandleFunc("/update_metric", v.UpdateMetricHandler).Methods(http.MethodPost)
	r.HandleFunc("/remove_metric", v.RemoveMetricHandler).Methods(http.MethodPost)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/version", v.VersionHandler).Methods(http.MethodGet)
	api.HandleFunc("/preview/{name}", v.PreviewHandler).Methods(http.MethodGet)
	api.HandleFunc("/timewindow", v.TimeWindowHandler).Methods(http.MethodPost)
	api.HandleFunc("/adjust", v.AdjustHandler).Methods(http.MethodPost)
	api.HandleFunc("/defaults", v.DefaultsHandler).Methods(http.MethodGet)

	r.Handle("/metrics", v.Stats.Handler())
	r.HandleFunc("/ws", v.WebsocketHandler)

	static, _ := fs.Sub(webFiles, "web")
	r.PathPrefix("/").Handler(http.FileServer(http.FS(static)))

	return r
}

// Handler is the traced router
func (v *View) Handler() http.Handler {
	return otelhttp.NewHandler(v.SetupMux(), "metricgen")
}

func (v *View) VersionHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": Version})
}

func (v *View) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	config, err := v.Collab.CurrentConfig(r.Context())
	if err != nil {
		slog.Error("Could not read config", slog.Any("Error", err))
		writeResult(w, http.StatusInternalServerError, false, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, config)
}

func (v *View) DefaultsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"params":   Ms.DefaultParameters(),
		"types":    Ms.WaveformTypes(),
		"windows":  Windows,
		"default":  DefaultWindow,
		"policies": policyView(),
	})
}

// metricForm is the body of the collaborator form posts
type metricForm struct {
	MetricName         string `mapstructure:"metric_name"`
	Mt.ParameterUpdate `mapstructure:",squash"`
}

func (v *View) AddMetricHandler(w http.ResponseWriter, r *http.Request) {
	form, ok := decodeMetricForm(w, r)
	if !ok {
		return
	}

	p := Ms.ApplyUpdate(Ms.DefaultParameters(), form.ParameterUpdate)
	if err := v.Collab.CreateGenerator(r.Context(), form.MetricName, p); err != nil {
		writeResult(w, http.StatusOK, false, err.Error())
		return
	}

	v.refreshAfterChange(r)
	writeResult(w, http.StatusOK, true, "Metric created successfully")
}

func (v *View) UpdateMetricHandler(w http.ResponseWriter, r *http.Request) {
	form, ok := decodeMetricForm(w, r)
	if !ok {
		return
	}

	if err := v.Collab.UpdateGenerator(r.Context(), form.MetricName, form.ParameterUpdate); err != nil {
		writeResult(w, http.StatusOK, false, err.Error())
		return
	}

	v.refreshAfterChange(r)
	writeResult(w, http.StatusOK, true, "Metric updated successfully")
}

func (v *View) RemoveMetricHandler(w http.ResponseWriter, r *http.Request) {
	form, ok := decodeMetricForm(w, r)
	if !ok {
		return
	}

	if err := v.Collab.RemoveGenerator(r.Context(), form.MetricName); err != nil {
		writeResult(w, http.StatusOK, false, err.Error())
		return
	}

	v.refreshAfterChange(r)
	writeResult(w, http.StatusOK, true, "Metric removed successfully")
}

// PreviewHandler renders a generator with its selected window,
// ?window= overrides the selection for this render only.
func (v *View) PreviewHandler(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	p, ok := v.Controller.Snapshot(name)
	if !ok {
		writeResult(w, http.StatusNotFound, false, Ms.ErrGeneratorNotFound.Error())
		return
	}

	window := v.Controller.Selections.Window(name)
	if q := r.URL.Query().Get("window"); q != "" {
		ww, err := strconv.ParseFloat(q, 64)
		if err != nil || !ValidWindow(ww) {
			writeResult(w, http.StatusBadRequest, false, "unsupported time window: "+q)
			return
		}
		window = ww
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "json"
	}

	switch format {
	case "json":
		rec := NewRecorder(v.PreviewWidth, v.PreviewHeight)
		g := Draw(rec, p, window)
		writeJSON(w, http.StatusOK, PreviewResponse{
			Name:      Ms.StoredName(name),
			Label:     Ms.DisplayName(name),
			Key:       PreviewKey(name),
			Window:    window,
			RangeText: Ms.RangeText(p),
			Params:    p,
			Geometry:  g,
			Surface:   rec,
		})
	case FormatPNG, FormatSVG:
		cs, err := NewChartSurface(format, v.PreviewWidth, v.PreviewHeight)
		if err != nil {
			slog.Error("Could not create chart surface", slog.Any("Error", err))
			writeResult(w, http.StatusInternalServerError, false, err.Error())
			return
		}
		Draw(cs, p, window)
		w.Header().Set("Content-Type", cs.ContentType())
		if err := cs.Save(w); err != nil {
			slog.Error("Could not write preview", slog.Any("Error", err))
			return
		}
	default:
		writeResult(w, http.StatusBadRequest, false, "unknown format: "+format)
		return
	}

	v.Stats.RecRender(format)
}

// PreviewResponse is the JSON preview: parameters, layout and drawing calls
type PreviewResponse struct {
	Name      string                `json:"name"`
	Label     string                `json:"label"`
	Key       string                `json:"key"`
	Window    float64               `json:"window"`
	RangeText string                `json:"range_text"`
	Params    Mt.WaveformParameters `json:"params"`
	Geometry  Geometry              `json:"geometry"`
	Surface   *Recorder             `json:"surface"`
}

type windowForm struct {
	MetricName string  `mapstructure:"metric_name"`
	Window     float64 `mapstructure:"window"`
}

func (v *View) TimeWindowHandler(w http.ResponseWriter, r *http.Request) {
	var form windowForm
	if err := decodeForm(r, &form); err != nil || form.MetricName == "" {
		writeResult(w, http.StatusBadRequest, false, "metric_name and window are required")
		return
	}

	if err := v.Controller.SelectWindow(form.MetricName, form.Window); err != nil {
		writeResult(w, http.StatusBadRequest, false, err.Error())
		return
	}
	writeResult(w, http.StatusOK, true, "Time window set to "+WindowLabel(form.Window))
}

type adjustForm struct {
	MetricName string  `mapstructure:"metric_name"`
	Parameter  string  `mapstructure:"parameter"`
	Delta      float64 `mapstructure:"delta"`
}

func (v *View) AdjustHandler(w http.ResponseWriter, r *http.Request) {
	var form adjustForm
	if err := decodeForm(r, &form); err != nil || form.MetricName == "" || form.Parameter == "" {
		writeResult(w, http.StatusBadRequest, false, "metric_name, parameter and delta are required")
		return
	}

	p, err := v.Controller.AdjustParameter(r.Context(), form.MetricName, form.Parameter, form.Delta)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"message": err.Error(),
			"params":  p,
		})
		return
	}

	policy, _ := Ms.PolicyLookup(form.Parameter)
	value, _ := Ms.ParamValue(p, form.Parameter)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Metric updated successfully",
		"params":  p,
		"display": policy.Format(value),
	})
}

// refreshAfterChange pulls the new config into the controller
// so previews and websocket clients see the change at once.
func (v *View) refreshAfterChange(r *http.Request) {
	if err := v.Controller.Refresh(r.Context()); err != nil {
		slog.Error("Refresh after change failed", slog.Any("Error", err))
	}
}

func decodeMetricForm(w http.ResponseWriter, r *http.Request) (metricForm, bool) {
	var form metricForm
	if err := decodeForm(r, &form); err != nil {
		writeResult(w, http.StatusBadRequest, false, err.Error())
		return form, false
	}
	if form.MetricName == "" {
		writeResult(w, http.StatusBadRequest, false, "metric_name is required")
		return form, false
	}
	return form, true
}

// decodeForm reads a urlencoded or multipart body into out.
// Empty fields are treated as absent.
func decodeForm(r *http.Request, out any) error {
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		return err
	}

	raw := make(map[string]any, len(r.Form))
	for k, vals := range r.Form {
		if len(vals) > 0 && vals[0] != "" {
			raw[k] = vals[0]
		}
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return decoder.Decode(raw)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("Could not encode response", slog.Any("Error", err))
	}
}

func writeResult(w http.ResponseWriter, status int, success bool, message string) {
	writeJSON(w, status, Mt.Result{Success: success, Message: message})
}

// policyView is the adjust policy table in a JSON friendly form
func policyView() map[string]map[string]any {
	out := make(map[string]map[string]any, len(Ms.Policies))
	for name, pp := range Ms.Policies {
		entry := map[string]any{
			"step":     pp.Step,
			"decimals": pp.Decimals,
			"unit":     pp.Unit,
		}
		// JSON has no infinity, open bounds are left out
		if !math.IsInf(pp.Min, 0) {
			entry["min"] = pp.Min
		}
		if !math.IsInf(pp.Max, 0) {
			entry["max"] = pp.Max
		}
		out[name] = entry
	}
	return out
}
