package gcal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"studyplanner/internal/config"
	"studyplanner/internal/types"
)

func TestSink_RequiresAuthorization(t *testing.T) {
	s := NewSink(config.Google{ClientID: "id", ClientSecret: "secret"}, zap.NewNop(), time.UTC)

	require.False(t, s.Authorized())

	_, err := s.CreateStudyEvents(context.Background(), []types.StudyTask{{TaskName: "x"}})
	require.ErrorIs(t, err, ErrNotAuthorized)

	_, err = s.FreeSlots(context.Background(), time.Now(), time.Now().Add(24*time.Hour), 30)
	require.ErrorIs(t, err, ErrNotAuthorized)

	require.ErrorIs(t, s.DeleteEvent(context.Background(), "evt"), ErrNotAuthorized)
}

func TestSink_AuthURL(t *testing.T) {
	s := NewSink(config.Google{
		ClientID:     "client-id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8000/google/auth/callback",
	}, zap.NewNop(), time.UTC)

	url := s.AuthURL("xyz")
	require.Contains(t, url, "client_id=client-id")
	require.Contains(t, url, "state=xyz")
	require.Contains(t, url, "access_type=offline")
}

func TestSink_AuthorizeToken(t *testing.T) {
	s := NewSink(config.Google{ClientID: "id", ClientSecret: "secret"}, zap.NewNop(), time.UTC)

	t.Run("missing access token", func(t *testing.T) {
		require.Error(t, s.AuthorizeToken(context.Background(), &oauth2.Token{}))
		require.Error(t, s.AuthorizeToken(context.Background(), nil))
		require.False(t, s.Authorized())
	})

	t.Run("valid token authorizes", func(t *testing.T) {
		token := &oauth2.Token{
			AccessToken:  "ya29.test",
			RefreshToken: "refresh",
			Expiry:       time.Now().Add(time.Hour),
		}
		require.NoError(t, s.AuthorizeToken(context.Background(), token))
		require.True(t, s.Authorized())
	})
}

func TestTaskStart(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	s := NewSink(config.Google{}, zap.NewNop(), loc)

	t.Run("date and time", func(t *testing.T) {
		start, err := s.taskStart(types.StudyTask{Date: "2026-09-10", StartTime: "14:30"})
		require.NoError(t, err)
		require.Equal(t, time.Date(2026, 9, 10, 14, 30, 0, 0, loc), start)
	})

	t.Run("missing time defaults to morning", func(t *testing.T) {
		start, err := s.taskStart(types.StudyTask{Date: "2026-09-10"})
		require.NoError(t, err)
		require.Equal(t, 9, start.Hour())
	})

	t.Run("missing date is an error", func(t *testing.T) {
		_, err := s.taskStart(types.StudyTask{StartTime: "10:00"})
		require.Error(t, err)
	})
}

func day(t *testing.T, hour, min int) time.Time {
	t.Helper()
	return time.Date(2026, 9, 7, hour, min, 0, 0, time.UTC)
}

func TestComputeFreeSlots(t *testing.T) {
	from := day(t, 0, 0)
	to := from.AddDate(0, 0, 1)

	t.Run("no busy intervals yields whole study day", func(t *testing.T) {
		slots := computeFreeSlots(from, to, nil, 30)
		require.Len(t, slots, 1)
		require.Equal(t, 14*60, slots[0].DurationMinutes, "08:00 through 22:00")
	})

	t.Run("busy blocks split the day", func(t *testing.T) {
		busy := []interval{
			{day(t, 10, 0), day(t, 11, 0)},
			{day(t, 15, 0), day(t, 16, 30)},
		}
		slots := computeFreeSlots(from, to, busy, 30)
		require.Len(t, slots, 3)
		require.Equal(t, 120, slots[0].DurationMinutes) // 08:00-10:00
		require.Equal(t, 240, slots[1].DurationMinutes) // 11:00-15:00
		require.Equal(t, 330, slots[2].DurationMinutes) // 16:30-22:00
	})

	t.Run("short gaps are discarded", func(t *testing.T) {
		busy := []interval{
			{day(t, 8, 0), day(t, 12, 0)},
			{day(t, 12, 30), day(t, 22, 0)},
		}
		slots := computeFreeSlots(from, to, busy, 60)
		require.Empty(t, slots, "the 30 minute gap is under the minimum")
	})

	t.Run("unsorted busy intervals are handled", func(t *testing.T) {
		busy := []interval{
			{day(t, 15, 0), day(t, 16, 0)},
			{day(t, 9, 0), day(t, 10, 0)},
		}
		slots := computeFreeSlots(from, to, busy, 30)
		require.Len(t, slots, 3)
		require.Equal(t, 60, slots[0].DurationMinutes) // 08:00-09:00
	})

	t.Run("overlapping busy intervals collapse", func(t *testing.T) {
		busy := []interval{
			{day(t, 9, 0), day(t, 12, 0)},
			{day(t, 11, 0), day(t, 13, 0)},
		}
		slots := computeFreeSlots(from, to, busy, 30)
		require.Len(t, slots, 2)
		require.Equal(t, 60, slots[0].DurationMinutes)  // 08:00-09:00
		require.Equal(t, 540, slots[1].DurationMinutes) // 13:00-22:00
	})

	t.Run("multi day window", func(t *testing.T) {
		slots := computeFreeSlots(from, from.AddDate(0, 0, 3), nil, 30)
		require.Len(t, slots, 3)
	})
}
