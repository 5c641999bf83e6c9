package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
	"github.com/heyito/ito-sub003/internal/session"
)

const barWidth = 30

// ito-watch connects to a running agent the way a UI window does and prints
// what the window would show.
func main() {
	agentURL := os.Getenv("AGENT_WS_URL")
	if agentURL == "" {
		agentURL = "ws://127.0.0.1:7345/ws"
	}

	fmt.Printf("[WATCH] Connecting to %s\n", agentURL)
	conn, resp, err := websocket.DefaultDialer.Dial(agentURL, nil)
	if err != nil {
		if resp != nil {
			body, _ := io.ReadAll(resp.Body)
			fmt.Printf("[WATCH] Dial failed: %v, status=%d, body=%s\n", err, resp.StatusCode, string(body))
		}
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		fmt.Println("\n[WATCH] Shutting down...")
		conn.Close()
		os.Exit(0)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			fmt.Printf("\n[WATCH] Read error: %v\n", err)
			return
		}

		var ev session.Event
		if err := json.Unmarshal(data, &ev); err != nil {
			fmt.Printf("[WATCH] Unmarshal error: %v\n", err)
			continue
		}
		render(ev)
	}
}

func render(ev session.Event) {
	switch ev.Type {
	case session.EventVolume:
		n := int(ev.Level * barWidth)
		n = max(0, min(n, barWidth))
		fmt.Printf("\r[%s%s]", strings.Repeat("#", n), strings.Repeat(" ", barWidth-n))
	case session.EventRecordingStarted:
		fmt.Printf("[WATCH] Recording (%s) session=%s\n", ev.Mode, ev.SessionID)
	case session.EventRecordingStopped:
		fmt.Printf("\n[WATCH] Stopped session=%s\n", ev.SessionID)
	case session.EventTranscriptionResult:
		fmt.Printf("[WATCH] Transcript: %q\n", ev.Transcript)
	case session.EventTranscriptionError:
		fmt.Printf("[WATCH] Error (%s): %s\n", ev.Kind, ev.Error)
	default:
		fmt.Printf("[WATCH] Ignoring event type: %s\n", ev.Type)
	}
}
