package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncUpdate_Less(t *testing.T) {
	a := &SyncUpdate{Timestamp: 100, Seq: 7}
	b := &SyncUpdate{Timestamp: 100, Seq: 9}
	c := &SyncUpdate{Timestamp: 99, Seq: 50}

	assert.True(t, a.Less(b), "equal timestamps fall back to seq")
	assert.False(t, b.Less(a))
	assert.True(t, c.Less(a), "timestamp wins over seq")
}

func TestDrainFilter_Matches(t *testing.T) {
	since := int64(1000)
	filter := DrainFilter{SharedEventID: "E1", Since: &since, ExcludeUserID: "U1"}

	tests := []struct {
		name   string
		update SyncUpdate
		want   bool
	}{
		{"pending partner update", SyncUpdate{SharedEventID: "E1", UserID: "U2", Timestamp: 1001}, true},
		{"already processed", SyncUpdate{SharedEventID: "E1", UserID: "U2", Timestamp: 1001, Processed: true}, false},
		{"other shared event", SyncUpdate{SharedEventID: "E2", UserID: "U2", Timestamp: 1001}, false},
		{"at since boundary", SyncUpdate{SharedEventID: "E1", UserID: "U2", Timestamp: 1000}, false},
		{"own update", SyncUpdate{SharedEventID: "E1", UserID: "U1", Timestamp: 2000}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, filter.Matches(&tt.update))
		})
	}

	assert.True(t, DrainFilter{SharedEventID: "E1"}.Matches(&SyncUpdate{SharedEventID: "E1", UserID: "U1"}))
}
