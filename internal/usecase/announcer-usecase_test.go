package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iamvkosarev/amc-discord/config"
	"github.com/iamvkosarev/amc-discord/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAnnouncer(t *testing.T, game *fakeGame, transport *fakeTransport, cfg config.Announcer) *AnnouncerUsecase {
	t.Helper()
	announcer, err := NewAnnouncerUsecase(
		AnnouncerUsecaseDeps{Game: game, Events: transport, Clock: fixedClock(mondayAfternoon)},
		cfg, "g1", "Asia/Bangkok",
	)
	require.NoError(t, err)
	announcer.index = 0
	return announcer
}

func TestAnnouncerUsecase_Tick(t *testing.T) {
	game := &fakeGame{}
	transport := newFakeTransport()
	transport.events = []model.ScheduledEvent{
		{Name: "Past race", Start: mondayAfternoon.Add(-time.Hour)},
		{Name: "Convoy", Start: mondayAfternoon.Add(26 * time.Hour)},
	}
	announcer := newTestAnnouncer(
		t, game, transport, config.Announcer{Color: "53EAFD", Messages: []string{"Join our Discord!", "Be nice."}},
	)

	var got []string
	for range 4 {
		text, err := announcer.Tick(context.Background())
		require.NoError(t, err)
		got = append(got, text)
	}

	assert.Equal(
		t, []string{
			"Join our Discord!",
			"Be nice.",
			"The Convoy is happening on Tuesday at 15:00 GMT+07, check /events for more info!",
			"Join our Discord!",
		}, got,
	)
	require.Len(t, game.all(), 4)
	assert.Equal(t, "53EAFD", game.all()[0].Color)
}

func TestAnnouncerUsecase_NothingToAnnounce(t *testing.T) {
	game := &fakeGame{}
	announcer := newTestAnnouncer(t, game, newFakeTransport(), config.Announcer{})

	text, err := announcer.Tick(context.Background())

	require.NoError(t, err)
	assert.Empty(t, text)
	assert.Empty(t, game.all())
}

func TestAnnouncerUsecase_AnnounceFailure(t *testing.T) {
	game := &fakeGame{err: errors.New("server down")}
	announcer := newTestAnnouncer(t, game, newFakeTransport(), config.Announcer{Messages: []string{"hi"}})

	_, err := announcer.Tick(context.Background())

	assert.Error(t, err)
}

func TestAnnouncerUsecase_Start(t *testing.T) {
	announcer := newTestAnnouncer(t, &fakeGame{}, newFakeTransport(), config.Announcer{Disabled: true})
	require.NoError(t, announcer.Start(context.Background()))
	assert.Nil(t, announcer.cron)
	announcer.Stop()

	announcer = newTestAnnouncer(t, &fakeGame{}, newFakeTransport(), config.Announcer{Schedule: "every now and then"})
	assert.Error(t, announcer.Start(context.Background()))

	announcer = newTestAnnouncer(t, &fakeGame{}, newFakeTransport(), config.Announcer{Schedule: "@every 15m"})
	require.NoError(t, announcer.Start(context.Background()))
	assert.Len(t, announcer.cron.Entries(), 1)
	announcer.Stop()
}

func TestNewAnnouncerUsecase_UnknownTimezone(t *testing.T) {
	_, err := NewAnnouncerUsecase(AnnouncerUsecaseDeps{Game: &fakeGame{}}, config.Announcer{}, "", "Mars/Olympus")
	assert.Error(t, err)
}
