// Package api serves the sensor state over HTTP and streams link events
// over a websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"
	"golang.org/x/net/websocket"

	"github.com/robotalks/pupsensor/pkg/device"
	fx "github.com/robotalks/pupsensor/pkg/framework"
	"github.com/robotalks/pupsensor/pkg/link"
	"github.com/robotalks/pupsensor/pkg/msgs"
)

// Link is the part of the connection state machine exposed over HTTP.
type Link interface {
	State() link.State
	Break()
}

// subscriberQueue is the number of events buffered for each websocket client.
const subscriberQueue = 16

// Server is the HTTP API. It implements link.EventHandler to feed the
// event stream.
type Server struct {
	Addr   string
	Device *device.Device
	Link   Link

	lock sync.Mutex
	subs map[chan link.Event]struct{}
	done chan struct{}
}

// NewServer creates a Server.
func NewServer(addr string, dev *device.Device, l Link) *Server {
	return &Server{
		Addr:   addr,
		Device: dev,
		Link:   l,
		subs:   make(map[chan link.Event]struct{}),
		done:   make(chan struct{}),
	}
}

// ModeView is the JSON form of a mode.
type ModeView struct {
	Index    int       `json:"index"`
	Name     string    `json:"name"`
	Unit     string    `json:"unit,omitempty"`
	Items    int       `json:"items"`
	Type     string    `json:"type"`
	Width    int       `json:"width"`
	Decimals int       `json:"decimals"`
	Selected bool      `json:"selected"`
	Values   []float64 `json:"values"`
}

// CombiView is the JSON form of a bound combi slot.
type CombiView struct {
	Index int      `json:"index"`
	Items [][2]int `json:"items"`
}

type valueRequest struct {
	Value *float64 `json:"value"`
}

type selectRequest struct {
	Mode *int `json:"mode"`
}

// Name implements framework.Named.
func (s *Server) Name() string {
	return "http"
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	if glog.V(2) {
		r.Use(middleware.Logger)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(10 * time.Second))
		r.Get("/status", s.getStatus)
		r.Post("/break", s.postBreak)
		r.Put("/select", s.putSelect)
		r.Get("/combis", s.getCombis)
		r.Route("/modes", func(r chi.Router) {
			r.Get("/", s.getModes)
			r.Get("/{mode}", s.getMode)
			r.Put("/{mode}/data/{item}", s.putData)
		})
	})
	r.Handle("/events", websocket.Handler(s.serveEvents))
	return r
}

// Run implements Runnable.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{Addr: s.Addr, Handler: s.Router()}
	defer s.close()
	err := fx.RunWithContextCloser(ctx, srv, srv.ListenAndServe)
	if err == http.ErrServerClosed {
		err = nil
	}
	return err
}

func (s *Server) close() {
	s.lock.Lock()
	defer s.lock.Unlock()
	select {
	case <-s.done:
	default:
		close(s.done)
	}
}

// HandleEvent implements link.EventHandler.
func (s *Server) HandleEvent(ctx context.Context, evt link.Event) {
	s.lock.Lock()
	defer s.lock.Unlock()
	for ch := range s.subs {
		select {
		case ch <- evt:
		default:
			glog.V(2).Info("websocket client lagging, event dropped")
		}
	}
}

// Subscribers returns the number of connected event streams.
func (s *Server) Subscribers() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.subs)
}

func (s *Server) subscribe() chan link.Event {
	ch := make(chan link.Event, subscriberQueue)
	s.lock.Lock()
	s.subs[ch] = struct{}{}
	s.lock.Unlock()
	return ch
}

func (s *Server) unsubscribe(ch chan link.Event) {
	s.lock.Lock()
	delete(s.subs, ch)
	s.lock.Unlock()
}

func (s *Server) serveEvents(ws *websocket.Conn) {
	defer ws.Close()
	ch := s.subscribe()
	defer s.unsubscribe(ch)

	// the stream is one-way, reads only detect the client going away
	closed := make(chan struct{})
	go func() {
		var discard []byte
		for websocket.Message.Receive(ws, &discard) == nil {
		}
		close(closed)
	}()

	for {
		select {
		case evt := <-ch:
			if err := websocket.JSON.Send(ws, msgs.NewEvent(evt)); err != nil {
				glog.V(2).Infof("websocket send error: %v", err)
				return
			}
		case <-closed:
			return
		case <-s.done:
			return
		}
	}
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	var state link.State
	if s.Link != nil {
		state = s.Link.State()
	}
	jsonResponse(w, http.StatusOK, msgs.NewStatus(s.Device.Snapshot(), state))
}

func (s *Server) postBreak(w http.ResponseWriter, r *http.Request) {
	if s.Link == nil {
		errorResponse(w, http.StatusServiceUnavailable, "no link")
		return
	}
	s.Link.Break()
	jsonResponse(w, http.StatusAccepted, map[string]string{"status": "ok"})
}

func (s *Server) putSelect(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil || req.Mode == nil {
		errorResponse(w, http.StatusBadRequest, "expect {\"mode\": <number>}")
		return
	}
	if !s.Device.SelectMode(*req.Mode) {
		errorResponse(w, http.StatusNotFound, "mode out of range")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]int{"mode": *req.Mode})
}

func (s *Server) getModes(w http.ResponseWriter, r *http.Request) {
	info := s.Device.Snapshot()
	views := make([]*ModeView, len(info.Modes))
	for n, m := range info.Modes {
		views[n] = modeView(m, info.SelectedMode)
	}
	jsonResponse(w, http.StatusOK, views)
}

func (s *Server) getMode(w http.ResponseWriter, r *http.Request) {
	m, ok := s.modeParam(w, r)
	if !ok {
		return
	}
	jsonResponse(w, http.StatusOK, modeView(m, s.Device.SelectedMode()))
}

func (s *Server) putData(w http.ResponseWriter, r *http.Request) {
	m, ok := s.modeParam(w, r)
	if !ok {
		return
	}
	item, err := strconv.Atoi(chi.URLParam(r, "item"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid item number")
		return
	}
	var req valueRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1024)).Decode(&req); err != nil || req.Value == nil {
		errorResponse(w, http.StatusBadRequest, "expect {\"value\": <number>}")
		return
	}
	if !s.Device.SetModeData(m.Index, item, *req.Value) {
		errorResponse(w, http.StatusNotFound, "item out of range")
		return
	}
	jsonResponse(w, http.StatusOK, modeView(s.Device.Mode(m.Index), s.Device.SelectedMode()))
}

func (s *Server) getCombis(w http.ResponseWriter, r *http.Request) {
	info := s.Device.Snapshot()
	views := []*CombiView{}
	for _, c := range info.Combis {
		if c == nil {
			continue
		}
		view := &CombiView{Index: c.Index, Items: make([][2]int, len(c.Items))}
		for n, item := range c.Items {
			view.Items[n] = [2]int{item.Mode, item.Item}
		}
		views = append(views, view)
	}
	jsonResponse(w, http.StatusOK, views)
}

func (s *Server) modeParam(w http.ResponseWriter, r *http.Request) (*device.Mode, bool) {
	index, err := strconv.Atoi(chi.URLParam(r, "mode"))
	if err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid mode number")
		return nil, false
	}
	m := s.Device.Mode(index)
	if m == nil {
		errorResponse(w, http.StatusNotFound, "mode out of range")
		return nil, false
	}
	return m, true
}

func modeView(m *device.Mode, selected int) *ModeView {
	return &ModeView{
		Index:    m.Index,
		Name:     m.Name,
		Unit:     m.Unit,
		Items:    m.Format.Items,
		Type:     m.Format.Type.String(),
		Width:    m.Format.Width,
		Decimals: m.Format.Decimals,
		Selected: m.Index == selected,
		Values:   m.Data,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		glog.V(2).Infof("write response error: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]interface{}{
		"error": message,
		"code":  status,
	})
}
