package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"kigaligo/internal/config"
	"kigaligo/internal/services"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamHandler pushes proximity results over a websocket. The first
// message is a full snapshot; every following one is incremental, with the
// cursor advanced to the previous result's timestamp.
//
// Go Learning Note — One Writer Per Connection:
// gorilla/websocket allows one concurrent reader and one concurrent writer.
// The handler goroutine does all the writing and a separate read loop only
// drains control frames and notices when the client goes away.
type StreamHandler struct {
	proximity *services.ProximityService
	cfg       config.StreamConfig
	log       zerolog.Logger
}

func NewStreamHandler(proximity *services.ProximityService, cfg config.StreamConfig, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{
		proximity: proximity,
		cfg:       cfg,
		log:       log,
	}
}

// Stream handles GET /api/v1/vehicles/stream. The query parameters are the
// same as for the realtime endpoint and are validated before the upgrade,
// so a bad request still gets a JSON error.
func (h *StreamHandler) Stream(c *gin.Context) {
	q, err := h.proximity.ParseQuery(rawQueryFrom(c))
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.log.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()
	go drain(conn, cancel)

	log := h.log.With().Str("client_ip", c.ClientIP()).Logger()
	log.Info().Float64("lat", q.Lat).Float64("lng", q.Lng).Msg("Vehicle stream opened")
	defer func() { log.Info().Msg("Vehicle stream closed") }()

	ticker := time.NewTicker(h.cfg.Interval)
	defer ticker.Stop()

	for {
		result, err := h.proximity.FindNearby(ctx, q)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("Stream query failed")
			h.writeError(conn, err)
			return
		}
		if err := h.write(conn, result); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Debug().Err(err).Msg("Stream write failed")
			}
			return
		}

		since := result.Timestamp
		q.Since = &since
		// Anchor rows are re-sent on every tick; seeding only makes sense
		// for the first snapshot.
		q.AutoSeed = false

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (h *StreamHandler) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}

func (h *StreamHandler) writeError(conn *websocket.Conn, err error) {
	body := ErrorResponse{Error: services.ErrorKind(err), Message: genericFailure}
	if errors.Is(err, context.DeadlineExceeded) {
		body.Message = "vehicle store timed out"
	}
	_ = h.write(conn, body)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseInternalServerErr, body.Error),
		time.Now().Add(h.cfg.WriteTimeout))
}

// drain reads until the peer closes the connection, then cancels ctx.
func drain(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
