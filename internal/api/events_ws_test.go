package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"factoryplan/internal/model"
)

func TestPlanEventsWebSocket(t *testing.T) {
	_, h := newTestServer(t)
	srv := httptest.NewServer(h)
	defer srv.Close()

	hdr := http.Header{}
	hdr.Set("X-Tenant-Id", "t_ws")
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/plans/events"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, hdr)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer func() { _ = conn.Close() }()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("handshake status %d", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/v1/optimize", strings.NewReader(referenceBody))
	req.Header.Set("X-Tenant-Id", "t_ws")
	res, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("optimize: %v", err)
	}
	_ = res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("optimize status %d", res.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var evt model.Event
	if err := conn.ReadJSON(&evt); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if evt.Type != model.EventPlanSolved || evt.TenantID != "t_ws" || evt.Data["totalCost"] != float64(44) {
		t.Fatalf("unexpected event: %+v", evt)
	}
}
