// Package main runs a demo WebSocket client for plan events: it connects to the event stream,
// submits the reference problem and prints what arrives.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

const referenceProblem = `{
  "planDate": "2026-01-05",
  "deadline": 8,
  "orders": [5, 1, 1, 5, 1],
  "facilities": [
    {"id": "1", "unitsPerDay": 1, "costPerUnit": 1, "setupCost": 7, "setupDays": 3},
    {"id": "2", "unitsPerDay": 1, "costPerUnit": 4, "setupCost": 1, "setupDays": 3},
    {"id": "3", "unitsPerDay": 6, "costPerUnit": 2, "setupCost": 5, "setupDays": 1}
  ]
}`

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	tenant := os.Getenv("TENANT_ID")
	if tenant == "" {
		tenant = "t_demo"
	}
	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", tenant)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/plans/events"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), hdr)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var evt map[string]any
			if err := c.ReadJSON(&evt); err != nil {
				log.Printf("read: %v", err)
				return
			}
			b, _ := json.Marshal(evt)
			log.Printf("WS <- %s", b)
		}
	}()

	req, _ := http.NewRequest(http.MethodPost, fmt.Sprintf("http://localhost:%s/v1/optimize", port), bytes.NewReader([]byte(referenceProblem)))
	req.Header = hdr.Clone()
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatal(err)
	}
	var plan struct {
		ID        string `json:"id"`
		Status    string `json:"status"`
		TotalCost int64  `json:"totalCost"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&plan)
	_ = resp.Body.Close()
	log.Printf("optimize -> %d plan=%s status=%s cost=%d", resp.StatusCode, plan.ID, plan.Status, plan.TotalCost)

	select {
	case <-time.After(2 * time.Second):
	case <-done:
	}
}
