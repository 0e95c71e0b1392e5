package websocket

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rmhse/rmhse_backend/models"
)

func TestNotifyPayout_NotConnected(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	err := hub.NotifyPayout(primitive.NewObjectID(), models.PayoutEvent{Amount: 70})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("err = %v, want ErrNotConnected", err)
	}
}

func TestNotifyPayout_DeliversToConnectedUser(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	userID := primitive.NewObjectID()
	e := echo.New()
	e.GET("/ws", func(c echo.Context) error { return HandleWebSocket(c, hub, userID) })
	srv := httptest.NewServer(e)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello Notification
	if err := conn.ReadJSON(&hello); err != nil || hello.Type != NotificationTypeConnected {
		t.Fatalf("first message = %+v, %v", hello, err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !hub.IsConnected(userID) {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := hub.NotifyPayout(userID, models.PayoutEvent{Amount: 70, Kind: models.PayoutChain}); err != nil {
		t.Fatalf("NotifyPayout: %v", err)
	}
	var got struct {
		Type string             `json:"type"`
		Data models.PayoutEvent `json:"data"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != NotificationTypeCommissionCredited || got.Data.Amount != 70 || got.Data.Kind != models.PayoutChain {
		t.Errorf("notification = %+v", got)
	}

	conn.Close()
	deadline = time.Now().Add(2 * time.Second)
	for hub.IsConnected(userID) {
		if time.Now().After(deadline) {
			t.Fatal("client never unregistered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
