package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPresenceColumn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		presence Presence
		want     string
	}{
		{PresenceConfirmed, "true"},
		{PresenceConfirmedAbsent, "false"},
		{PresenceUnverified, "unverified"},
		{PresenceUnresolved, "false"},
	}

	for _, tt := range tests {
		t.Run(string(tt.presence), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.presence.Column())
		})
	}
}

func TestOrderingValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "direct", string(OrderingDirect))
	assert.Equal(t, "third_party", string(OrderingThirdParty))
	assert.Equal(t, "none", string(OrderingNone))
}

func TestShopRecord_AddNote(t *testing.T) {
	t.Parallel()

	var r ShopRecord
	r.AddNote("")
	assert.Empty(t, r.Note)

	r.AddNote("first")
	r.AddNote("  ")
	r.AddNote("second")
	assert.Equal(t, "first; second", r.Note)
}

func TestShopRecord_Classified(t *testing.T) {
	t.Parallel()

	r := ShopRecord{ShopID: "x"}
	assert.False(t, r.Classified())

	r.HasWebsite = PresenceConfirmed
	assert.False(t, r.Classified())

	r.DirectOrdering = OrderingDirect
	assert.True(t, r.Classified())
}
