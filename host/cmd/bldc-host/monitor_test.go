package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"

	"hallbldc/host/serial"
)

func TestMonitorOverWebSocket(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteMessage(websocket.TextMessage, []byte("[BLDC] L GOING rpm=120 pwm=274\r\nspeed L=120 pwm=274 R=0 pwm=0\r\n"))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		conn.ReadMessage()
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"monitor", "--url", "ws" + strings.TrimPrefix(srv.URL, "http"), "--filter", "speed", "--no-color"})
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("monitor failed: %v", err)
	}
	if out.String() != "speed L=120 pwm=274 R=0 pwm=0\n" {
		t.Errorf("Expected the speed line only, got %q", out.String())
	}
}

func TestHighlightKeepsText(t *testing.T) {
	line := "[BLDC] R fault: motor stalled while starting"
	if got := highlight(serial.LineFault, line); !strings.Contains(got, line) {
		t.Errorf("Expected styled line to contain %q, got %q", line, got)
	}
	if got := highlight(serial.LineInfo, "speed"); got != "speed" {
		t.Errorf("Expected info lines unchanged, got %q", got)
	}
}
