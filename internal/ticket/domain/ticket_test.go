package domain

import (
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in   string
		want Priority
		ok   bool
	}{
		{"Low", PriorityLow, true},
		{" High ", PriorityHigh, true},
		{"", "", false},
		{"  ", "", false},
		{"Urgent", "", false},
		{"high", "", false},
	}
	for _, tt := range tests {
		got, ok := ParsePriority(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want Status
		ok   bool
	}{
		{"Open", StatusOpen, true},
		{"In Progress", StatusInProgress, true},
		{"InProgress", StatusInProgress, true},
		{"Done", StatusDone, true},
		{"", "", false},
		{"Closed", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTouch_StrictlyIncreasing(t *testing.T) {
	created := Timestamp(time.Now())
	tk := Ticket{CreatedAt: created, UpdatedAt: created}

	// 同一时刻再 touch 也必须往后走
	tk.Touch(created)
	assert.True(t, tk.UpdatedAt.After(tk.CreatedAt))

	later := created.Add(time.Hour)
	tk.Touch(later)
	assert.Equal(t, later, tk.UpdatedAt)

	// 时钟回拨
	prev := tk.UpdatedAt
	tk.Touch(created)
	assert.True(t, tk.UpdatedAt.After(prev))
}

func TestUUIDv7_Unique(t *testing.T) {
	gen := UUIDv7{}
	seen := make(map[string]struct{}, 1000)
	prev := ""
	for i := 0; i < 1000; i++ {
		id, err := gen.NewID()
		require.NoError(t, err)
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
		assert.Greater(t, id, prev)
		prev = id
	}
}

func TestTicket_JSONTimesKeepMillis(t *testing.T) {
	at := time.Date(2026, 1, 2, 8, 0, 1, 0, time.UTC)
	tk := Ticket{ID: "t-1", Title: "VPN down", Requester: "Bo", Priority: PriorityHigh, Status: StatusOpen,
		CreatedAt: at, UpdatedAt: at.Add(1500 * time.Millisecond)}

	b, err := json.Marshal(tk)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"t-1","title":"VPN down","requester":"Bo","priority":"High","status":"Open",
		"createdAt":"2026-01-02T08:00:01.000Z","updatedAt":"2026-01-02T08:00:02.500Z"}`, string(b))

	// 非 UTC 的时间也统一输出成 Z
	local := Ticket{CreatedAt: at.In(time.FixedZone("CST", 8*3600)), UpdatedAt: at}
	b, err = json.Marshal([]Ticket{local})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"createdAt":"2026-01-02T08:00:01.000Z"`)

	var back Ticket
	b, err = json.Marshal(tk)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, tk, back)
}
