package rooms

import (
	"docsync-server/session"
	"net/http"
	"sort"

	"github.com/go-chi/render"
)

// Lister provides the live document rooms.
type Lister interface {
	Rooms() []session.RoomInfo
}

// HandleListRooms lists live documents, busiest and most recently active
// first.
func HandleListRooms(registry Lister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rooms := registry.Rooms()
		if rooms == nil {
			rooms = []session.RoomInfo{}
		}

		sort.Slice(rooms, func(i, j int) bool {
			if rooms[i].Users == rooms[j].Users {
				if rooms[i].LastActive == rooms[j].LastActive {
					return rooms[i].ID < rooms[j].ID
				}
				return rooms[i].LastActive > rooms[j].LastActive
			}
			return rooms[i].Users > rooms[j].Users
		})

		render.JSON(w, r, rooms)
	}
}

// HandleHealth reports liveness along with the number of cached documents.
func HandleHealth(cache interface{ Len() int }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]any{
			"status":    "ok",
			"documents": cache.Len(),
		})
	}
}
