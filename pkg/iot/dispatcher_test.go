package iot

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"liyu1981.xyz/home-state-monitor/pkg/common"
	"liyu1981.xyz/home-state-monitor/pkg/iot/mocks"
	"liyu1981.xyz/home-state-monitor/pkg/models"
)

func securityRoute(id string) Route {
	return Route{
		Channel: models.ChannelSecurity,
		Message: models.Message{Title: "t", Text: id},
		Event:   models.StateChangeEvent{DeviceID: id},
	}
}

func TestDispatcherDeliversInOrderAndDrains(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	poster := mocks.NewMockPoster(ctrl)

	gomock.InOrder(
		poster.EXPECT().Post(gomock.Any(), models.ChannelSecurity, models.Message{Title: "t", Text: "a"}).Return(nil),
		poster.EXPECT().Post(gomock.Any(), models.ChannelSecurity, models.Message{Title: "t", Text: "b"}).Return(errors.New("slack down")),
		poster.EXPECT().Post(gomock.Any(), models.ChannelSecurity, models.Message{Title: "t", Text: "c"}).Return(nil),
	)

	d := NewDispatcher(poster, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go d.Run(ctx)

	assert.True(t, d.Enqueue(securityRoute("a")))
	assert.True(t, d.Enqueue(securityRoute("b")))
	assert.True(t, d.Enqueue(securityRoute("c")))

	// cancelling the run context does not abandon queued messages
	cancel()
	require.NoError(t, d.Drain(context.Background()))

	assert.False(t, d.Enqueue(securityRoute("late")))
}

func TestDispatcherDropsWhenFull(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	poster := mocks.NewMockPoster(ctrl)
	poster.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil).Times(1)

	d := NewDispatcher(poster, 1)
	assert.True(t, d.Enqueue(securityRoute("a")))
	assert.False(t, d.Enqueue(securityRoute("b")))

	go d.Run(context.Background())
	require.NoError(t, d.Drain(context.Background()))
}

func TestDispatcherDeliveryTimeout(t *testing.T) {
	common.SetTestLoggerNop()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	poster := mocks.NewMockPoster(ctrl)

	var sawDeadline atomic.Bool
	poster.EXPECT().Post(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ models.Channel, _ models.Message) error {
			_, ok := ctx.Deadline()
			sawDeadline.Store(ok)
			<-ctx.Done()
			return ctx.Err()
		})

	d := NewDispatcher(poster, 1)
	d.Timeout = 20 * time.Millisecond
	go d.Run(context.Background())

	d.Enqueue(securityRoute("slow"))
	require.NoError(t, d.Drain(context.Background()))
	assert.True(t, sawDeadline.Load())
}

func TestDrainHonoursContext(t *testing.T) {
	common.SetTestLoggerNop()

	d := NewDispatcher(nil, 1)
	// Run never started, so done is never closed
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, d.Drain(ctx), context.DeadlineExceeded)
}

func TestNotifyWithoutRouterDoesNotPanic(t *testing.T) {
	common.SetTestLoggerNop()

	i := &IOT{}
	i.GetINotifier().Notify(context.Background(), []models.StateChangeEvent{{DeviceID: "x"}})
}
