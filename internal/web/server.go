// Package web provides the HTTP status server for the led-mixer
// daemon: an HTML status page, a JSON endpoint, and a websocket feed
// of live state updates.
package web

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/urisala1996/led-mixer/internal/status"
)

// Server serves the status page, JSON endpoint, and websocket feed.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	hub        *Hub
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker) *Server {
	s := &Server{
		tracker: tracker,
		hub:     NewHub(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/ws", s.handleWS)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// ListenAndServe starts the hub and listens. It blocks until the
// server is shut down.
func (s *Server) ListenAndServe() error {
	go s.hub.Run()
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	go s.hub.Run()
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server and disconnects websocket
// clients.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	return s.httpServer.Shutdown(ctx)
}

// Broadcast pushes the current status to all websocket clients. The
// driving loop calls this after each state change.
func (s *Server) Broadcast() {
	if s.hub.ClientCount() == 0 {
		return
	}
	s.hub.Broadcast(status.FormatJSON(s.tracker.Snapshot()))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("web: ws upgrade failed: %v", err)
		return
	}

	client := &wsClient{
		hub:        s.hub,
		conn:       conn,
		send:       make(chan []byte, wsSendBuf),
		remoteAddr: r.RemoteAddr,
	}

	// Queue the initial snapshot before the hub learns about the
	// client; only the hub closes send, and only for clients it has
	// seen. A hub that is already stopped rejects the connection.
	client.send <- status.FormatJSON(s.tracker.Snapshot())
	select {
	case s.hub.register <- client:
	case <-s.hub.done:
		conn.Close()
		return
	}

	// The pumps outlive the handler; the connection is torn down by
	// the hub or by read/write errors, not by the request context.
	go client.writePump()
	go client.readPump()
}
