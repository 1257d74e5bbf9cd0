package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/lotoqubo/internal/cache/memory"
	"github.com/alanyoungcy/lotoqubo/internal/domain"
)

func TestHubForwardsBusEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := memory.NewBus()
	hub := NewHub(bus, Config{Solvers: []string{"anneal"}}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	var status struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	if err := conn.ReadJSON(&status); err != nil {
		t.Fatalf("read status: %v", err)
	}
	if status.Type != "status" || status.Payload["mode"] != "serve" {
		t.Fatalf("status = %+v", status)
	}

	// wait until the hub knows the client before publishing
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	// the hub's bus subscription is asynchronous, so keep publishing
	payload, _ := json.Marshal(domain.RunEvent{Type: domain.EventPortfolioReady, Run: domain.PortfolioRun{ID: "r1"}})
	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = bus.Publish(ctx, domain.ChannelPortfolio, payload)
			}
		}
	}()

	var ev domain.RunEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if ev.Type != domain.EventPortfolioReady || ev.Run.ID != "r1" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestIsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"lotoqubo:*": true, "other": true}}
	if !c.isSubscribed(domain.ChannelDraws) || !c.isSubscribed("other") {
		t.Fatal("expected match")
	}
	c.apply(subscribeMsg{Action: "unsubscribe", Channels: []string{"lotoqubo:*"}})
	if c.isSubscribed(domain.ChannelDraws) {
		t.Fatal("unsubscribe ignored")
	}
}
