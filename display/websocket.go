package metricgen

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	Ms "github.com/maroda/metricgen/server"
	Mt "github.com/maroda/metricgen/types"
)

const (
	writeWait  = 5 * time.Second
	pingPeriod = 30 * time.Second
)

// ConfigUpdate is pushed to websocket clients after every refresh
type ConfigUpdate struct {
	Type    string             `json:"type"` // always "config"
	Metrics []GeneratorSummary `json:"metrics"`
	Windows map[string]float64 `json:"windows"`
	Status  *Status            `json:"status,omitempty"`
	Sent    time.Time          `json:"sent"`
}

// GeneratorSummary is one card of the web page
type GeneratorSummary struct {
	Name      string                `json:"name"`
	Label     string                `json:"label"`
	Key       string                `json:"key"`
	RangeText string                `json:"range_text"`
	Params    Mt.WaveformParameters `json:"params"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebsocketHandler sends the current generators on connect
// and again after every refresh until the client goes away.
func (v *View) WebsocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	id := uuid.NewString()
	updates := v.Controller.Subscribe(id)
	defer v.Controller.Unsubscribe(id)
	slog.Info("Websocket client connected", slog.String("client", id))

	// The read side only exists to notice the client leaving
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	if err := v.pushConfig(conn, v.Controller.Names()); err != nil {
		return
	}

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case config, ok := <-updates:
			if !ok {
				return
			}
			names := make([]string, 0, len(config.Metrics))
			for name := range config.Metrics {
				names = append(names, name)
			}
			Ms.SortNames(names)
			if err := v.pushConfig(conn, names); err != nil {
				slog.Debug("Websocket write failed", slog.String("client", id), slog.Any("Error", err))
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("Websocket client disconnected", slog.String("client", id))
			return
		}
	}
}

func (v *View) pushConfig(conn *websocket.Conn, names []string) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v.BuildUpdate(names))
}

// BuildUpdate summarises the named generators from the controller snapshots
func (v *View) BuildUpdate(names []string) ConfigUpdate {
	update := ConfigUpdate{
		Type:    "config",
		Metrics: make([]GeneratorSummary, 0, len(names)),
		Windows: make(map[string]float64, len(names)),
		Sent:    time.Now(),
	}

	for _, name := range names {
		p, ok := v.Controller.Snapshot(name)
		if !ok {
			continue
		}
		update.Metrics = append(update.Metrics, GeneratorSummary{
			Name:      name,
			Label:     Ms.DisplayName(name),
			Key:       PreviewKey(name),
			RangeText: Ms.RangeText(p),
			Params:    p,
		})
		update.Windows[name] = v.Controller.Selections.Window(name)
	}

	if st, ok := v.Controller.CurrentStatus(statusTTL); ok {
		update.Status = &st
	}
	return update
}
