// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/SamusTracker/services/tracker/middleware"
	"github.com/AleutianAI/SamusTracker/services/tracker/poller"
	"github.com/AleutianAI/SamusTracker/services/tracker/telemetry"
)

const (
	writeWait    = 5 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = pongWait * 9 / 10
	maxClientMsg = 512
)

var upgrader = websocket.Upgrader{
	// Overlays run from file:// pages and OBS browser sources.
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  1024,
	WriteBufferSize: 16 * 1024,
}

// StreamMessage is one push to a stream client.
type StreamMessage struct {
	Type   string        `json:"type"`
	Record poller.Record `json:"record"`
}

// Stream upgrades to a WebSocket and pushes the cached record.
//
// # Description
//
// The current record is sent immediately, then again every time a publish
// changes PollCount, ErrorCount or the split list. Clients never send
// anything meaningful; reads only serve to detect disconnects and pongs.
//
// # Inputs
//
//   - t: Source of records and change notifications.
//   - m: Stream client and push counters. May be nil.
//   - logger: Connection lifecycle logs.
func Stream(t Tracker, m *telemetry.FacadeMetrics, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
			return
		}
		defer ws.Close()

		ctx := c.Request.Context()
		reqID := middleware.GetRequestID(c)
		m.StreamOpened(ctx)
		defer m.StreamClosed(ctx)
		logger.Info("stream client connected", slog.String("request_id", reqID))

		gone := make(chan struct{})
		go drain(ws, gone)

		ping := time.NewTicker(pingPeriod)
		defer ping.Stop()

		var last *poller.Record
		for {
			changed := t.Changed()
			rec := t.Cached()
			if last == nil || differs(*last, rec) {
				if err := push(ws, StreamMessage{Type: "record", Record: rec}); err != nil {
					logger.Info("stream client write failed",
						slog.String("request_id", reqID),
						slog.String("error", err.Error()),
					)
					return
				}
				m.RecordPush(ctx)
				last = &rec
			}

			select {
			case <-changed:
			case <-ping.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			case <-gone:
				logger.Info("stream client disconnected", slog.String("request_id", reqID))
				return
			case <-ctx.Done():
				return
			}
		}
	}
}

// differs reports whether rec is worth pushing after last.
func differs(last, rec poller.Record) bool {
	return last.PollCount != rec.PollCount ||
		last.ErrorCount != rec.ErrorCount ||
		len(last.Splits) != len(rec.Splits)
}

func push(ws *websocket.Conn, msg StreamMessage) error {
	if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return ws.WriteJSON(msg)
}

// drain reads until the peer goes away, then closes gone.
func drain(ws *websocket.Conn, gone chan<- struct{}) {
	defer close(gone)
	ws.SetReadLimit(maxClientMsg)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
