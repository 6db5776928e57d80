package relayhandler

import "roomrelay/internal/relay"

type RoomResponse struct {
	Name    string         `json:"name"    example:"lobby"`
	Members []relay.ConnID `json:"members" swaggertype:"array,string"`
} // @name RoomResponse

type ConnectionResponse struct {
	ID    relay.ConnID `json:"id"    swaggertype:"string" example:"0b6f3f5e-3c1e-4c55-9f5c-1f0e2f7d9a10"`
	Rooms []string     `json:"rooms"`
} // @name ConnectionResponse

type StatsResponse struct {
	relay.Stats
	LifecycleDropped int64 `json:"lifecycle_dropped"`
} // @name StatsResponse

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
} // @name HealthResponse

type ErrorResponse struct {
	Error string `json:"error"`
} // @name ErrorResponse
