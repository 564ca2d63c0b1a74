package models

import "errors"

// CardDeck is the set of values a player may vote with.
var CardDeck = []string{"0", "1", "2", "3", "5", "8", "13", "21", "?", "☕"}

// DefaultAvatar is used when a player joins without picking one.
const DefaultAvatar = "Cat1.svg"

// ErrNotFound is returned when a room, task, player or vote record does not
// resolve in the remote store.
var ErrNotFound = errors.New("not found")

// ValidCard reports whether v is a playable card value.
func ValidCard(v string) bool {
	for _, c := range CardDeck {
		if c == v {
			return true
		}
	}
	return false
}
