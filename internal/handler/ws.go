package handler

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"towdispatch/internal/bus"
	"towdispatch/internal/middleware"
	"towdispatch/internal/observability"
	"towdispatch/internal/service"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin checks are handled by the token in the request,
	// same as the REST endpoints.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WSHandler upgrades dashboard and tracker clients to websocket feeds
// backed by bus subscriptions. The feeds are change notifications, not
// state transfer: a client that misses events refetches over REST.
type WSHandler struct {
	bookingService *service.BookingService
	eventBus       bus.Bus
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(bookingService *service.BookingService, eventBus bus.Bus) *WSHandler {
	return &WSHandler{bookingService: bookingService, eventBus: eventBus}
}

// DriverFeed handles GET /v1/driver/bookings/ws
//
// Streams booking inserts and updates for the authenticated driver.
func (h *WSHandler) DriverFeed(c *gin.Context) {
	driverID := middleware.DriverID(c)

	sub, err := h.eventBus.Subscribe(c.Request.Context(), bus.TopicBookingsByDriver(driverID))
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		return
	}

	serveFeed(conn, sub, "driver")
}

// TrackerFeed handles GET /v1/track/:token/ws
//
// Streams everything the tracker page renders live: booking status
// changes, new location updates, and driver position changes.
func (h *WSHandler) TrackerFeed(c *gin.Context) {
	view, err := h.bookingService.GetByTrackingToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondError(c, err)
		return
	}

	topics := []string{
		bus.TopicBookingByID(view.Booking.ID),
		bus.TopicLocationsByBooking(view.Booking.ID),
	}
	if view.Booking.DriverID != "" {
		topics = append(topics, bus.TopicDriverByID(view.Booking.DriverID))
	}

	sub, err := h.eventBus.Subscribe(c.Request.Context(), topics...)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		sub.Close()
		return
	}

	serveFeed(conn, sub, "tracker")
}

// serveFeed pumps bus events to the websocket until either side goes
// away. The reader goroutine exists only to surface client closes and
// keep pong handling alive.
func serveFeed(conn *websocket.Conn, sub *bus.Subscription, feed string) {
	observability.WebsocketClients.WithLabelValues(feed).Inc()
	defer observability.WebsocketClients.WithLabelValues(feed).Dec()
	defer sub.Close()
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(wsWriteWait))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(event); err != nil {
				log.Printf("ws %s feed: write failed: %v", feed, err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}
