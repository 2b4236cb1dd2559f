package metricgen

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	Mo "github.com/maroda/metricgen/obvy"
	Ms "github.com/maroda/metricgen/server"
)

const (
	screenGutter = 3
	labelWidth   = 18
	sparkWidth   = 40
	statusTTL    = 4 * time.Second
)

// Parameters the terminal can step, in display order
var termParams = []string{
	Ms.ParamBaseValue,
	Ms.ParamAmplitude,
	Ms.ParamPeriod,
	Ms.ParamPhaseOffset,
	Ms.ParamUpdateInterval,
}

// View is the presentation of the Controller,
// in the terminal, over HTTP, or both.
type View struct {
	MU            sync.Mutex            // State locks to read data
	Controller    *Controller           // Snapshots, selections, surfaces
	Collab        Ms.Collaborator       // Where generators are created and removed
	Screen        tcell.Screen          // the screen itself, nil without a TUI
	Stats         *Mo.StatsInternal     // Internal status for prometheus
	Supervisor    *RefreshSupervisor    // Periodic config refresh
	PreviewWidth  int                   // Preview size in pixels
	PreviewHeight int
	Selected      int                   // Index of the selected generator
	SelectedParam int                   // Index into termParams
	term          *TermSurface          // Preview region of the screen
	drawMU        sync.Mutex            // one full redraw at a time
	server        *http.Server          // Web server
	stopKeys      chan struct{}         // closed when the user quits
}

// NewView wires a Controller around the collaborator
func NewView(c Ms.Collaborator, stats *Mo.StatsInternal, width, height int) *View {
	return &View{
		Controller:    NewController(c, stats),
		Collab:        c,
		Stats:         stats,
		PreviewWidth:  width,
		PreviewHeight: height,
		stopKeys:      make(chan struct{}),
	}
}

// SelectedName is the generator under the cursor, "" when there are none
func (v *View) SelectedName() string {
	names := v.Controller.Names()
	v.MU.Lock()
	defer v.MU.Unlock()
	if len(names) == 0 {
		return ""
	}
	if v.Selected >= len(names) {
		v.Selected = len(names) - 1
	}
	return names[v.Selected]
}

// MoveSelection moves the cursor by delta generators, wrapping at both ends
func (v *View) MoveSelection(delta int) {
	n := len(v.Controller.Names())
	if n == 0 {
		return
	}
	v.MU.Lock()
	v.Selected = ((v.Selected+delta)%n + n) % n
	v.MU.Unlock()
	v.attachPreview()
}

// MoveParam moves the parameter cursor, wrapping at both ends
func (v *View) MoveParam(delta int) {
	n := len(termParams)
	v.MU.Lock()
	defer v.MU.Unlock()
	v.SelectedParam = ((v.SelectedParam+delta)%n + n) % n
}

func (v *View) selectedParam() string {
	v.MU.Lock()
	defer v.MU.Unlock()
	return termParams[v.SelectedParam]
}

// attachPreview points the terminal preview at the selected generator
func (v *View) attachPreview() {
	v.MU.Lock()
	term := v.term
	v.MU.Unlock()
	if term == nil {
		return
	}
	for _, name := range v.Controller.Names() {
		v.Controller.Targets.Detach(PreviewKey(name))
	}
	if name := v.SelectedName(); name != "" {
		v.Controller.Targets.Attach(PreviewKey(name), term)
	}
}

// layoutPreview sizes the preview region below the list and parameters
func (v *View) layoutPreview() {
	width, height := v.GetScreenSize()
	top := screenGutter + len(v.Controller.Names()) + len(termParams) + 2
	rows := height - top - 3
	if rows < 4 {
		rows = 4
	}
	term := NewTermSurface(v.Screen, 1, top, width-2, rows)
	v.MU.Lock()
	v.term = term
	v.MU.Unlock()
	v.attachPreview()
}

// SparkRune turns a fraction of the range into a bar height
func SparkRune(frac float64) rune {
	switch {
	case frac < 0.125:
		return '▁'
	case frac < 0.25:
		return '▂'
	case frac < 0.375:
		return '▃'
	case frac < 0.5:
		return '▄'
	case frac < 0.625:
		return '▅'
	case frac < 0.75:
		return '▆'
	case frac < 0.875:
		return '▇'
	default:
		return '█'
	}
}

// Sparkline samples the preview curve down to width bars
func Sparkline(g Geometry, width int) []rune {
	runes := make([]rune, width)
	if len(g.Curve) == 0 || width <= 0 {
		return runes
	}
	for i := range runes {
		idx := i * (len(g.Curve) - 1) / max(width-1, 1)
		frac := 0.5
		if g.Range != 0 {
			frac = (g.Curve[idx].Value - g.Min) / g.Range
		}
		runes[i] = SparkRune(frac)
	}
	return runes
}

// DrawSparkline colours each bar by its height
func (v *View) DrawSparkline(x, y int, runes []rune) {
	for i, r := range runes {
		var style tcell.Style
		switch r {
		case '▁':
			style = tcell.StyleDefault.Foreground(tcell.ColorSeaGreen)
		case '▂':
			style = tcell.StyleDefault.Foreground(tcell.ColorMediumSeaGreen)
		case '▃':
			style = tcell.StyleDefault.Foreground(tcell.ColorLightSeaGreen)
		case '▄':
			style = tcell.StyleDefault.Foreground(tcell.ColorDarkTurquoise)
		case '▅':
			style = tcell.StyleDefault.Foreground(tcell.ColorMediumTurquoise)
		case '▆':
			style = tcell.StyleDefault.Foreground(tcell.ColorTurquoise)
		case '▇':
			style = tcell.StyleDefault.Foreground(tcell.ColorLightGreen)
		case '█':
			style = tcell.StyleDefault.Foreground(tcell.ColorAquaMarine)
		default:
			style = tcell.StyleDefault
		}
		v.Screen.SetContent(x+i, y, r, nil, style)
	}
}

// DrawText displays the text string at the given (x1, y1) with box size (x2, y2)
func (v *View) DrawText(x1, y1, x2, y2 int, text string) {
	v.DrawTextStyle(x1, y1, x2, y2, text, tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue))
}

func (v *View) DrawTextStyle(x1, y1, x2, y2 int, text string, style tcell.Style) {
	row := y1
	col := x1
	for _, r := range text {
		v.Screen.SetContent(col, row, r, nil, style)
		col++
		if col >= x2 {
			row++
			col = x1
		}
		if row > y2 {
			break
		}
	}
}

// DrawViewBorder displays the outline of the View
func (v *View) DrawViewBorder(width, height int) {
	hvStyle := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorPink)
	v.Screen.SetContent(0, 0, tcell.RuneULCorner, nil, hvStyle)
	for i := 1; i < width; i++ {
		v.Screen.SetContent(i, 0, tcell.RuneHLine, nil, hvStyle)
		v.Screen.SetContent(i, height, tcell.RuneHLine, nil, hvStyle)
	}
	v.Screen.SetContent(width, 0, tcell.RuneURCorner, nil, hvStyle)

	for i := 1; i < height; i++ {
		v.Screen.SetContent(0, i, tcell.RuneVLine, nil, hvStyle)
		v.Screen.SetContent(width, i, tcell.RuneVLine, nil, hvStyle)
	}

	v.Screen.SetContent(0, height, tcell.RuneLLCorner, nil, hvStyle)
	v.Screen.SetContent(width, height, tcell.RuneLRCorner, nil, hvStyle)
}

// DrawGeneratorView draws the list, the parameter panel, the preview and the status line
func (v *View) DrawGeneratorView() {
	width, height := v.GetScreenSize()
	v.DrawViewBorder(width-1, height-1)

	names := v.Controller.Names()
	selected := v.SelectedName()
	param := v.selectedParam()

	v.DrawText(2, 1, width-2, 1, fmt.Sprintf("METRICGEN  %d generators", len(names)))

	// one row per generator: label, sparkline, range
	for i, name := range names {
		y := screenGutter + i
		p, _ := v.Controller.Snapshot(name)
		window := v.Controller.Selections.Window(name)

		marker := "  "
		if name == selected {
			marker = "> "
		}
		label := fmt.Sprintf("%s%-*s", marker, labelWidth, truncate(Ms.DisplayName(name), labelWidth))
		v.DrawText(1, y, width-2, y, label)

		g := ComputeGeometry(p, window, sparkWidth, 1)
		v.DrawSparkline(labelWidth+4, y, Sparkline(g, sparkWidth))
		v.DrawText(labelWidth+sparkWidth+5, y, width-2, y, fmt.Sprintf("%s  %s", WindowLabel(window), Ms.RangeText(p)))
	}

	// parameter panel of the selected generator
	panel := screenGutter + len(names) + 1
	if p, ok := v.Controller.Snapshot(selected); ok {
		v.DrawText(2, panel, width-2, panel, fmt.Sprintf("%s  [%s]", Ms.DisplayName(selected), p.WaveformType))
		for i, name := range termParams {
			value, _ := Ms.ParamValue(p, name)
			policy, _ := Ms.PolicyLookup(name)
			style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightSteelBlue)
			if name == param {
				style = style.Reverse(true)
			}
			v.DrawTextStyle(4, panel+1+i, width-2, panel+1+i, fmt.Sprintf("%-16s %s", name, policy.Format(value)), style)
		}
	}

	if selected != "" {
		v.Controller.Render(selected)
	}

	if st, ok := v.Controller.CurrentStatus(statusTTL); ok {
		style := tcell.StyleDefault.Background(tcell.ColorBlack).Foreground(tcell.ColorLightGreen)
		if st.Error {
			style = style.Foreground(tcell.ColorRed)
		}
		WriteBar(v.Screen, 1, height-3, width-1, height-2, tcell.StyleDefault.Background(tcell.ColorBlack))
		v.DrawTextStyle(2, height-3, width-2, height-3, st.Text, style)
	}

	v.DrawText(1, height-2, width-2, height-2, "↑↓ generator | ←→ parameter | +/- adjust | 1-4 window | r refresh | ESC quit")
	v.DrawText(width-12, height-1, width, height-1, "METRICGEN")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// HandleKey applies a key press, it returns false when the user quits
func (v *View) HandleKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyUp:
		v.MoveSelection(-1)
	case tcell.KeyDown:
		v.MoveSelection(1)
	case tcell.KeyLeft, tcell.KeyBacktab:
		v.MoveParam(-1)
	case tcell.KeyRight, tcell.KeyTab:
		v.MoveParam(1)
	case tcell.KeyRune:
		switch r := ev.Rune(); r {
		case '+', '=':
			v.adjust(1)
		case '-', '_':
			v.adjust(-1)
		case '1', '2', '3', '4':
			v.selectWindow(int(r - '1'))
		case 'r':
			go v.refresh()
		case 'q':
			return false
		}
	}
	v.UpdateScreen()
	return true
}

// adjust steps the selected parameter by one policy step in direction dir
func (v *View) adjust(dir float64) {
	name := v.SelectedName()
	if name == "" {
		return
	}
	param := v.selectedParam()
	policy, err := Ms.PolicyLookup(param)
	if err != nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := v.Controller.AdjustParameter(ctx, name, param, dir*policy.Step); err != nil {
			slog.Error("Adjust failed", slog.Any("Error", err))
		}
		v.UpdateScreen()
	}()
}

func (v *View) selectWindow(i int) {
	name := v.SelectedName()
	if name == "" || i < 0 || i >= len(Windows) {
		return
	}
	if err := v.Controller.SelectWindow(name, Windows[i]); err != nil {
		slog.Error("Window selection failed", slog.Any("Error", err))
	}
}

func (v *View) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := v.Controller.Refresh(ctx); err != nil {
		slog.Error("Failed to refresh", slog.Any("Error", err))
	}
	v.UpdateScreen()
}

// Running Loop to handle events
func (v *View) handleKeyBoardEvent() {
	for {
		ev := v.Screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			v.ResizeScreen()
		case *tcell.EventKey:
			if !v.HandleKey(ev) {
				close(v.stopKeys)
				return
			}
		}
	}
}

// GetScreenSize provides the terminal size for drawing
func (v *View) GetScreenSize() (int, int) {
	width, height := v.Screen.Size()
	return width, height
}

// ResizeScreen lays the preview out again after terminal changes
func (v *View) ResizeScreen() {
	v.Screen.Sync()
	v.UpdateScreen()
}

func (v *View) UpdateScreen() {
	if v.Screen == nil {
		return
	}
	v.drawMU.Lock()
	defer v.drawMU.Unlock()
	v.layoutPreview()
	v.Screen.Clear()
	v.DrawGeneratorView()
	v.Screen.Show()
}

// run redraws once a second so the status line expires
func (v *View) run() {
	// Panic recovery and logging
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic in run loop", slog.Any("panic", r))
			slog.Error("Recovered from panic", slog.String("stack", string(debug.Stack())))
		}
	}()

	slog.Info("Starting terminal view")
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			v.UpdateScreen()
		case <-v.stopKeys:
			return
		}
	}
}

// RespWriter is a wrapper with StatsMiddleware, used for Prometheus
type RespWriter struct {
	http.ResponseWriter
	Status int
}

// WriteHeader is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) WriteHeader(status int) {
	w.Status = status
	w.ResponseWriter.WriteHeader(status)
}

// Write is a helper for StatsMiddleware, used for Prometheus
func (w *RespWriter) Write(b []byte) (int, error) {
	return w.ResponseWriter.Write(b)
}

// Hijack lets the websocket upgrade pass through the middleware
func (w *RespWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *RespWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (v *View) StatsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		wrapped := &RespWriter{
			ResponseWriter: w,
			Status:         200,
		}
		next.ServeHTTP(wrapped, r)

		v.Stats.RecWWW(strconv.Itoa(wrapped.Status), r.Method)
	})
}

// StartTUI runs the terminal client against a remote metricgen
// until the user quits.
func StartTUI(s *Ms.Settings) error {
	screen, err := GetTTY()
	if err != nil {
		slog.Error("Could not start terminal", slog.Any("Error", err))
		return err
	}
	defer screen.Fini()

	stats := Mo.NewStatsInternal()
	view := NewView(Ms.NewClient(s.Collaborator), stats, s.PreviewWidth, s.PreviewHeight)
	view.Screen = screen

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := view.Controller.Refresh(ctx); err != nil {
		slog.Error("Initial refresh failed", slog.Any("Error", err))
	}
	cancel()

	view.Supervisor = view.Controller.NewRefreshSupervisor(s.Refresh)
	view.Supervisor.Start()
	defer view.Supervisor.Stop()

	view.UpdateScreen()
	go view.run()
	view.handleKeyBoardEvent()

	return nil
}

// StartWeb serves the web UI and the collaborator routes for reg on WEB_PORT,
// and the generator gauges on PROMETHEUS_PORT, until ctx is done.
func StartWeb(ctx context.Context, s *Ms.Settings, reg *Ms.Registry, stats *Mo.StatsInternal) error {
	view := NewView(reg, stats, s.PreviewWidth, s.PreviewHeight)
	if err := view.Controller.Refresh(ctx); err != nil {
		return err
	}

	view.Supervisor = view.Controller.NewRefreshSupervisor(s.Refresh)
	view.Supervisor.Start()
	defer view.Supervisor.Stop()

	view.server = &http.Server{
		Addr:              ":" + strconv.Itoa(s.WebPort),
		Handler:           view.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	promServer := &http.Server{
		Addr:              ":" + strconv.Itoa(s.PrometheusPort),
		Handler:           stats.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 2)
	for _, srv := range []*http.Server{view.server, promServer} {
		go func() {
			slog.Info("Starting metricgen server...", slog.String("Addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errs <- err
			}
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-errs:
		slog.Error("Server failed", slog.Any("Error", err))
	}

	shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{view.server, promServer} {
		if serr := srv.Shutdown(shutdown); serr != nil {
			slog.Error("Shutdown failed", slog.String("Addr", srv.Addr), slog.Any("Error", serr))
		}
	}
	return err
}
