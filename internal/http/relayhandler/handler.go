package relayhandler

import (
	"net/http"

	"roomrelay/internal/relay"

	"github.com/gin-gonic/gin"
)

// Source is the read side of the relay.
type Source interface {
	Rooms() []relay.RoomInfo
	Members(room string) []relay.ConnID
	RoomsOf(id relay.ConnID) ([]string, bool)
	Stats() relay.Stats
}

type Handler struct {
	src            Source
	lifecycleDrops func() int64
}

// New builds the handler. lifecycleDrops may be nil.
func New(src Source, lifecycleDrops func() int64) *Handler {
	return &Handler{src: src, lifecycleDrops: lifecycleDrops}
}

func (h *Handler) Register(r gin.IRoutes) {
	r.GET("/healthz", h.health)
	r.GET("/rooms", h.listRooms)
	r.GET("/rooms/:name", h.room)
	r.GET("/connections/:id", h.connection)
	r.GET("/stats", h.stats)
}

// @Summary		Health check
// @Tags			Ops
// @Success		200	{object}	HealthResponse
// @Router			/healthz [get]
func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// @Summary		List rooms
// @Description	Every non-empty room with its member count, sorted by name.
// @Tags			Rooms
// @Success		200	{array}	relay.RoomInfo
// @Router			/rooms [get]
func (h *Handler) listRooms(c *gin.Context) {
	c.JSON(http.StatusOK, h.src.Rooms())
}

// @Summary		Room members
// @Tags			Rooms
// @Param			name	path		string	true	"Room name"	default(lobby)
// @Success		200		{object}	RoomResponse
// @Failure		404		{object}	ErrorResponse
// @Router			/rooms/{name} [get]
func (h *Handler) room(c *gin.Context) {
	name := c.Param("name")
	members := h.src.Members(name)
	if members == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "room not found"})
		return
	}
	c.JSON(http.StatusOK, RoomResponse{Name: name, Members: members})
}

// @Summary		Connection rooms
// @Tags			Connections
// @Param			id	path		string	true	"Connection ID"
// @Success		200	{object}	ConnectionResponse
// @Failure		404	{object}	ErrorResponse
// @Router			/connections/{id} [get]
func (h *Handler) connection(c *gin.Context) {
	id := relay.ConnID(c.Param("id"))
	rooms, ok := h.src.RoomsOf(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: relay.ErrUnknownConnection.Error()})
		return
	}
	c.JSON(http.StatusOK, ConnectionResponse{ID: id, Rooms: rooms})
}

// @Summary		Relay statistics
// @Tags			Ops
// @Success		200	{object}	StatsResponse
// @Router			/stats [get]
func (h *Handler) stats(c *gin.Context) {
	resp := StatsResponse{Stats: h.src.Stats()}
	if h.lifecycleDrops != nil {
		resp.LifecycleDropped = h.lifecycleDrops()
	}
	c.JSON(http.StatusOK, resp)
}
