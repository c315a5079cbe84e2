package domain

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStroke_Normalize(t *testing.T) {
	tests := []struct {
		name       string
		in         Stroke
		wantKind   StrokeKind
		wantLength float64
		wantErr    bool
	}{
		{
			name:       "empty kind defaults to freehand and length is computed",
			in:         Stroke{Points: []Point{{0, 0}, {3, 4}, {3, 10}}},
			wantKind:   StrokeFreehand,
			wantLength: 11,
		},
		{
			name:       "client supplied length is kept",
			in:         Stroke{Kind: "line", Points: []Point{{0, 0}, {10, 10}}, Length: 42},
			wantKind:   StrokeLine,
			wantLength: 42,
		},
		{
			name:       "kind is case insensitive",
			in:         Stroke{Kind: "Rectangle", Points: []Point{{1, 1}}},
			wantKind:   StrokeRectangle,
			wantLength: 0,
		},
		{
			name:    "unknown kind",
			in:      Stroke{Kind: "triangle", Points: []Point{{0, 0}}},
			wantErr: true,
		},
		{
			name:    "no points",
			in:      Stroke{Kind: "circle"},
			wantErr: true,
		},
		{
			name:    "non finite point",
			in:      Stroke{Points: []Point{{math.NaN(), 0}}},
			wantErr: true,
		},
		{
			name:    "negative width",
			in:      Stroke{Points: []Point{{0, 0}}, Width: -1},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, got.Kind)
			assert.InDelta(t, tt.wantLength, got.Length, 1e-9)
		})
	}
}

func TestStroke_NormalizeCopiesPoints(t *testing.T) {
	pts := []Point{{0, 0}, {1, 1}}
	got, err := Stroke{Points: pts}.Normalize()
	require.NoError(t, err)

	pts[0].X = 99
	assert.Equal(t, 0.0, got.Points[0].X, "规范化后的 stroke 不应与输入共享点序列")
}

func TestStrokeRecord_Conversion(t *testing.T) {
	committed := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	s := Stroke{
		ID:         "s1",
		AuthorName: "bob",
		Kind:       StrokeLine,
		Points:     []Point{{0, 0}, {10, 10}},
		Color:      "#ff0000",
		Width:      2,
		Length:     14.1,
		Timestamp:  committed.UnixMilli(),
		Seq:        7,
	}

	rec, err := NewStrokeRecord("r1", s)
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.RoomID)
	assert.Equal(t, "s1", rec.StrokeID)
	assert.JSONEq(t, `[{"x":0,"y":0},{"x":10,"y":10}]`, rec.Points)
	assert.True(t, rec.CommittedAt.Equal(committed))
	assert.Equal(t, "line", rec.Kind)
	assert.Equal(t, uint64(7), rec.Seq)
}

func TestRoomRecord_SetActiveUsers(t *testing.T) {
	var rec RoomRecord

	require.NoError(t, rec.SetActiveUsers(nil))
	assert.Equal(t, "[]", rec.ActiveUsers, "nil 列表应存为空数组而不是 null")

	require.NoError(t, rec.SetActiveUsers([]string{"alice", "bob"}))
	assert.JSONEq(t, `["alice","bob"]`, rec.ActiveUsers)
}
