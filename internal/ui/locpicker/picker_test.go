package locpicker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dconnect/courier/internal/model"
)

func TestSelection_Cascade(t *testing.T) {
	var s Selection

	s.Country = "US"
	s.Sync()
	s.State = "CA"
	s.Sync()
	s.City = "San Francisco"
	assert.Equal(t, model.Location{Country: "US", State: "CA", City: "San Francisco"}, s.Location())

	s.State = "NY"
	s.Sync()
	assert.Equal(t, "US", s.Country)
	assert.Equal(t, "NY", s.State)
	assert.Empty(t, s.City, "changing state clears city")

	s.City = "Buffalo"
	s.Country = "CA"
	s.Sync()
	assert.Empty(t, s.State, "changing country clears state")
	assert.Empty(t, s.City, "changing country clears city")
}

func TestSelection_SyncKeepsUnchangedParents(t *testing.T) {
	var s Selection
	s.Country = "GB"
	s.Sync()
	s.State = "ENG"
	s.Sync()
	s.City = "London"

	s.Sync()
	assert.Equal(t, "London", s.City)
}

func TestSelection_RecentShortcut(t *testing.T) {
	s := Selection{recent: map[string]model.Location{
		"r1": {Country: "NG", State: "LA", City: "Lagos"},
	}}
	s.Country = "US"
	s.Sync()

	s.Recent = "r1"
	s.Sync()
	assert.Equal(t, model.Location{Country: "NG", State: "LA", City: "Lagos"}, s.Location())

	// The shortcut does not count as a country change afterwards.
	s.Sync()
	assert.Equal(t, "Lagos", s.City)

	s.Reset()
	assert.Equal(t, model.Location{}, s.Location())
	assert.Len(t, s.recent, 1)
}
