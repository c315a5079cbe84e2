package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"whiteboard-relay/internal/domain"
	"whiteboard-relay/internal/repository/mocks"
	"whiteboard-relay/internal/tasks"
)

type stubPresenceSource []domain.Presence

func (s stubPresenceSource) PresenceSnapshots() []domain.Presence { return s }

func TestPresenceSweep_RewritesEveryRoom(t *testing.T) {
	// Arrange
	source := stubPresenceSource{
		{RoomID: "r1", ActiveUsers: []string{"alice"}, MemberCount: 1, Version: 4},
		{RoomID: "r2", ActiveUsers: []string{}, MemberCount: 0, Version: 5},
	}
	rooms := new(mocks.RoomRepository)
	state := new(mocks.StateRepository)
	for _, p := range source {
		rooms.On("UpdatePresence", mock.Anything, p).Return(nil).Once()
		state.On("SetPresence", mock.Anything, p).Return(nil).Once()
	}
	h := NewPresenceSweepHandler(source, rooms, state)

	// Act
	err := h.ProcessTask(context.Background(), tasks.NewPresenceSweepTask())

	// Assert
	assert.NoError(t, err)
	rooms.AssertExpectations(t)
	state.AssertExpectations(t)
}

func TestPresenceSweep_FailuresDoNotFailTask(t *testing.T) {
	source := stubPresenceSource{{RoomID: "r1", Version: 1}, {RoomID: "r2", Version: 2}}
	rooms := new(mocks.RoomRepository)
	state := new(mocks.StateRepository)
	state.On("SetPresence", mock.Anything, mock.Anything).Return(errors.New("redis down"))
	rooms.On("UpdatePresence", mock.Anything, mock.Anything).Return(nil)
	h := NewPresenceSweepHandler(source, rooms, state)

	err := h.ProcessTask(context.Background(), tasks.NewPresenceSweepTask())

	assert.NoError(t, err)
	rooms.AssertNumberOfCalls(t, "UpdatePresence", 2)
}

func TestPresenceSweep_NoRooms(t *testing.T) {
	rooms := new(mocks.RoomRepository)
	state := new(mocks.StateRepository)
	h := NewPresenceSweepHandler(stubPresenceSource{}, rooms, state)

	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypePresenceSweep, nil))

	assert.NoError(t, err)
	rooms.AssertNotCalled(t, "UpdatePresence", mock.Anything, mock.Anything)
}
