package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"nhooyr.io/websocket"

	"github.com/docxology/cellsql/internal/gateway"
	"github.com/docxology/cellsql/internal/httpx"
	"github.com/docxology/cellsql/internal/logging"
	"github.com/docxology/cellsql/internal/studio"
)

// Message is one relayed command. Seq is echoed back so clients can match
// replies to requests.
type Message struct {
	Seq int64 `json:"seq,omitempty"`
	studio.Command
}

// Response pairs a reply with the request's sequence number.
type Response struct {
	Seq int64 `json:"seq,omitempty"`
	gateway.Reply
}

const (
	readLimit = 1 << 20 // 1MB
	deadline  = 30 * time.Second
)

// RelayHandler accepts a websocket and runs each text message as a studio
// command through g. The ?id= query pins the connection to one cell unless
// the gateway enforces its own.
func RelayHandler(g *gateway.Gateway) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !g.Auth().Check(r) {
			httpx.Challenge(w)
			return
		}
		pinned := r.URL.Query().Get("id")
		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
		if err != nil {
			return
		}
		defer c.Close(websocket.StatusNormalClosure, "bye")
		c.SetReadLimit(readLimit)
		log := logging.WithFields(map[string]any{"cell": pinned, "remote": r.RemoteAddr})

		for {
			// The read waits for the client; only the write is bounded.
			typ, data, err := c.Read(r.Context())
			if err != nil {
				return
			}
			if typ != websocket.MessageText {
				_ = c.Close(websocket.StatusUnsupportedData, "text frames only")
				return
			}
			var resp Response
			var msg Message
			if err := json.Unmarshal(data, &msg); err != nil {
				resp.Reply = gateway.Reply{Error: "invalid studio command"}
			} else {
				resp.Seq = msg.Seq
				if pinned != "" {
					msg.ID = pinned
				}
				resp.Reply = g.Relay(r.Context(), msg.Command)
			}
			out, err := json.Marshal(resp)
			if err != nil {
				log.WithError(err).Error("encode relay response")
				return
			}
			wctx, cancel := context.WithTimeout(r.Context(), deadline)
			err = c.Write(wctx, websocket.MessageText, out)
			cancel()
			if err != nil {
				return
			}
		}
	}
}
