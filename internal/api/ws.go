package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"HiTrade/internal/logger"
	"HiTrade/internal/model"
	"HiTrade/internal/scanner"
)

const wsWriteWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// wsMessage is the envelope for every frame on /ws/scan.
type wsMessage struct {
	Type     string            `json:"type"` // progress | report | error
	Progress *scanner.Progress `json:"progress,omitempty"`
	Report   *model.ScanReport `json:"report,omitempty"`
	Error    string            `json:"error,omitempty"`
	Reason   string            `json:"reason,omitempty"`
	Segment  string            `json:"segment,omitempty"`
}

// handleScanWS runs one scan per connection and streams progress, then the report.
// Closing the socket cancels the scan.
func (s *Server) handleScanWS(w http.ResponseWriter, r *http.Request) {
	params, paramErr := s.parseScanParams(r)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("ws upgrade error", zap.Error(err))
		return
	}
	defer conn.Close()

	send := func(m wsMessage) error {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(m)
	}

	if paramErr != nil {
		send(wsMessage{Type: "error", Error: paramErr.Error(), Reason: model.SkipReason(paramErr)})
		closeNormal(conn)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// The reader only watches for the peer going away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	report, err := s.scanner.Scan(ctx, params.tickers, params.req, params.rng, func(p scanner.Progress) {
		if err := send(wsMessage{Type: "progress", Progress: &p}); err != nil {
			cancel()
		}
	})
	if err != nil {
		// Only cancellation gets here; the peer is already gone.
		logger.Debug("ws scan aborted", zap.Error(err))
		return
	}
	if err := send(wsMessage{Type: "report", Report: report, Segment: params.segment}); err != nil {
		logger.Debug("ws send report", zap.Error(err))
		return
	}
	closeNormal(conn)
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
}
