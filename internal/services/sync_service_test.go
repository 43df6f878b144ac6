package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/gorm"

	"github.com/contextmeet/contextmeet/internal/calendar"
	"github.com/contextmeet/contextmeet/internal/database/testutil"
	"github.com/contextmeet/contextmeet/internal/models"
	"github.com/contextmeet/contextmeet/pkg/crypto"
	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
)

const calendarEventsPayload = `{
	"items": [
		{
			"id": "evt-1",
			"summary": "Design Review",
			"description": "Review the Q3 mocks",
			"status": "confirmed",
			"start": {"dateTime": "2025-07-02T10:00:00Z"},
			"end": {"dateTime": "2025-07-02T10:45:00Z"},
			"attendees": [
				{"email": "Sam@Example.com", "displayName": "Sam Rivera"}
			],
			"conferenceData": {
				"entryPoints": [
					{"entryPointType": "video", "uri": "https://meet.google.com/abc-defg-hij"}
				]
			}
		},
		{
			"id": "evt-2",
			"summary": "Old Event",
			"status": "cancelled",
			"start": {"dateTime": "2025-07-02T12:00:00Z"},
			"end": {"dateTime": "2025-07-02T13:00:00Z"}
		}
	]
}`

func seedCalendarUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	access, err := crypto.Encrypt([]byte("google-access"), testEncryptionKey)
	require.NoError(t, err)
	refresh, err := crypto.Encrypt([]byte("google-refresh"), testEncryptionKey)
	require.NoError(t, err)

	user := &models.User{
		Email:              "alex@example.com",
		Password:           "hashed",
		Timezone:           "UTC",
		IsActive:           true,
		CalendarConnected:  true,
		GoogleAccessToken:  access,
		GoogleRefreshToken: refresh,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func newCalendarStub(t *testing.T, handler http.HandlerFunc) (*httptest.Server, *calendar.Client) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := calendar.NewClient(calendar.Config{ClientID: "id", ClientSecret: "secret"},
		calendar.WithAPIBase(server.URL),
		calendar.WithHTTPClient(server.Client()),
	)
	return server, client
}

func TestSyncServiceCreatesAndSkips(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedCalendarUser(t, db)

	_, client := newCalendarStub(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/calendars/primary/events", r.URL.Path)
		require.Equal(t, "Bearer google-access", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(calendarEventsPayload))
	})

	svc, err := NewSyncService(db, client, testEncryptionKey)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC) }

	result, err := svc.Sync(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 2, result.Fetched)
	require.Equal(t, 1, result.Created)
	require.Equal(t, 1, result.Skipped)
	require.Equal(t, 0, result.Updated)

	var meeting models.Meeting
	require.NoError(t, db.First(&meeting, "user_id = ? AND event_id = ?", user.ID, "evt-1").Error)
	require.Equal(t, "Design Review", meeting.Title)
	require.Equal(t, "google_meet", meeting.MeetingPlatform)
	require.Equal(t, []string{"sam@example.com"}, stringsFromJSON(meeting.Attendees))
	require.NotNil(t, meeting.SyncedAt)

	var info models.AttendeeInfo
	require.NoError(t, db.First(&info, "user_id = ? AND email = ?", user.ID, "sam@example.com").Error)
	require.Equal(t, "Sam Rivera", info.Name)
	require.Equal(t, 1, info.MeetingCount)
}

func TestSyncServiceUpdatesExistingMeeting(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedCalendarUser(t, db)

	existing := &models.Meeting{
		UserID:    user.ID,
		EventID:   "evt-1",
		Title:     "Stale Title",
		StartTime: time.Date(2025, 7, 2, 9, 0, 0, 0, time.UTC),
		EndTime:   time.Date(2025, 7, 2, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, db.Create(existing).Error)

	_, client := newCalendarStub(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(calendarEventsPayload))
	})

	svc, err := NewSyncService(db, client, testEncryptionKey)
	require.NoError(t, err)
	svc.now = func() time.Time { return time.Date(2025, 7, 1, 8, 0, 0, 0, time.UTC) }

	result, err := svc.Sync(context.Background(), user.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.Updated)
	require.Equal(t, 0, result.Created)

	var meeting models.Meeting
	require.NoError(t, db.First(&meeting, "id = ?", existing.ID).Error)
	require.Equal(t, "Design Review", meeting.Title)
	require.Equal(t, time.Date(2025, 7, 2, 10, 0, 0, 0, time.UTC), meeting.StartTime)

	var count int64
	require.NoError(t, db.Model(&models.Meeting{}).Where("user_id = ?", user.ID).Count(&count).Error)
	require.EqualValues(t, 1, count)
}

func TestSyncServiceStoresRefreshedToken(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedCalendarUser(t, db)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "fresh-access", "token_type": "Bearer", "expires_in": 3600}`))
		case "/calendars/primary/events":
			if r.Header.Get("Authorization") != "Bearer fresh-access" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"items": []}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	client := calendar.NewClient(calendar.Config{ClientID: "id", ClientSecret: "secret"},
		calendar.WithAPIBase(server.URL),
		calendar.WithHTTPClient(server.Client()),
		calendar.WithTokenEndpoint(oauth2.Endpoint{TokenURL: server.URL + "/token"}),
	)

	svc, err := NewSyncService(db, client, testEncryptionKey)
	require.NoError(t, err)

	_, err = svc.Sync(context.Background(), user.ID)
	require.NoError(t, err)

	var updated models.User
	require.NoError(t, db.First(&updated, "id = ?", user.ID).Error)
	access, err := crypto.Decrypt(updated.GoogleAccessToken, testEncryptionKey)
	require.NoError(t, err)
	require.Equal(t, "fresh-access", string(access))

	// The original refresh token survives when the server does not rotate it.
	refresh, err := crypto.Decrypt(updated.GoogleRefreshToken, testEncryptionKey)
	require.NoError(t, err)
	require.Equal(t, "google-refresh", string(refresh))
}

func TestSyncServiceRequiresConnectedCalendar(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	user := seedUser(t, db, "plain@example.com")

	_, client := newCalendarStub(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	svc, err := NewSyncService(db, client, testEncryptionKey)
	require.NoError(t, err)

	_, err = svc.Sync(context.Background(), user.ID)
	require.ErrorIs(t, err, apperrors.ErrCalendarNotConnected)
}
