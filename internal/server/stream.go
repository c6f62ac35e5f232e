package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/nferro/voxloom/internal/observe"
)

// endOfUtterance is the text frame a client sends to close a phrase and
// request the exchange result.
const endOfUtterance = "end"

// frame is one received websocket message, or the terminal read error.
type frame struct {
	typ  websocket.MessageType
	data []byte
	err  error
}

// handleStream serves the websocket capture endpoint.
//
// Protocol: the client sends WAV bytes as one or more binary frames and then
// a text frame "end". The server runs a voice exchange over the accumulated
// bytes and replies with the JSON-encoded result in a single text frame. The
// connection then accepts the next phrase.
//
// Two limits guard the stream: a phrase whose audio exceeds the maximum
// phrase duration is cut off and exchanged as-is, and a client silent for
// longer than the listen timeout either gets its partial phrase exchanged
// (when audio was already sent) or the connection closed (when none was).
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		observe.Logger(r.Context()).Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	s.metrics.ActiveStreams.Add(ctx, 1)
	defer s.metrics.ActiveStreams.Add(ctx, -1)

	conn.SetReadLimit(s.maxAudioBytes)

	// Reads must run in their own goroutine: cancelling a Read context
	// tears down the whole connection, which would make it impossible to
	// answer a half-finished phrase after the listen timeout.
	frames := make(chan frame)
	go func() {
		for {
			typ, data, err := conn.Read(ctx)
			select {
			case frames <- frame{typ: typ, data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	timer := time.NewTimer(s.listenTimeout)
	defer timer.Stop()

	var buf []byte
	for {
		select {
		case f := <-frames:
			if f.err != nil {
				status := websocket.CloseStatus(f.err)
				if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
					observe.Logger(ctx).Debug("stream read failed", "error", f.err)
				}
				return
			}

			switch f.typ {
			case websocket.MessageBinary:
				buf = append(buf, f.data...)
				if int64(len(buf)) >= s.maxAudioBytes {
					// Phrase cap reached: exchange immediately.
					if !s.exchangeAndReply(ctx, conn, buf[:s.maxAudioBytes]) {
						return
					}
					buf = nil
				}

			case websocket.MessageText:
				if string(f.data) != endOfUtterance {
					conn.Close(websocket.StatusUnsupportedData, "expected \"end\"")
					return
				}
				if !s.exchangeAndReply(ctx, conn, buf) {
					return
				}
				buf = nil
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(s.listenTimeout)

		case <-timer.C:
			if len(buf) == 0 {
				observe.Logger(ctx).Info("stream idle, closing")
				conn.Close(websocket.StatusNormalClosure, "listen timeout")
				return
			}
			// The client went quiet mid-phrase: exchange what we have.
			if s.exchangeAndReply(ctx, conn, buf) {
				conn.Close(websocket.StatusNormalClosure, "listen timeout")
			}
			return

		case <-ctx.Done():
			return
		}
	}
}

// exchangeAndReply runs a voice exchange over raw and writes the JSON result
// as a text frame. Returns false when the connection is no longer usable.
func (s *Server) exchangeAndReply(ctx context.Context, conn *websocket.Conn, raw []byte) bool {
	res, err := s.exchanger.Voice(ctx, raw)
	if err != nil {
		observe.Logger(ctx).Error("stream exchange failed", "error", err)
		conn.Close(websocket.StatusInternalError, "exchange failed")
		return false
	}

	payload, err := json.Marshal(res)
	if err != nil {
		conn.Close(websocket.StatusInternalError, "encode result failed")
		return false
	}
	if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
		observe.Logger(ctx).Debug("stream write failed", "error", err)
		return false
	}
	return true
}
