package calendar

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	apperrors "github.com/contextmeet/contextmeet/pkg/errors"
)

const sampleEvents = `{
  "items": [
    {
      "id": "evt-1",
      "summary": "Design Review",
      "description": "Join: https://meet.google.com/abc-defg-hij",
      "location": "Room 4",
      "status": "confirmed",
      "start": {"dateTime": "2025-07-01T10:00:00Z"},
      "end": {"dateTime": "2025-07-01T11:00:00Z"},
      "attendees": [
        {"email": "sam@example.com", "displayName": "Sam", "responseStatus": "accepted"},
        {"email": "lee@example.com"}
      ],
      "organizer": {"email": "sam@example.com"}
    },
    {
      "id": "evt-2",
      "start": {"date": "2025-07-02"},
      "end": {"date": "2025-07-03"},
      "conferenceData": {
        "entryPoints": [
          {"entryPointType": "phone", "uri": "tel:+1555"},
          {"entryPointType": "video", "uri": "https://company.zoom.us/j/123456"}
        ]
      }
    }
  ]
}`

func newCalendarTestClient(events http.HandlerFunc, tokenHandler http.HandlerFunc) (*Client, *httptest.Server) {
	mux := http.NewServeMux()
	mux.HandleFunc("/calendars/primary/events", events)
	if tokenHandler != nil {
		mux.HandleFunc("/token", tokenHandler)
	}
	server := httptest.NewServer(mux)

	client := NewClient(
		Config{ClientID: "cid", ClientSecret: "secret"},
		WithAPIBase(server.URL),
		WithHTTPClient(server.Client()),
		WithTokenEndpoint(oauth2.Endpoint{TokenURL: server.URL + "/token"}),
	)
	return client, server
}

func TestListEventsParsesItems(t *testing.T) {
	client, server := newCalendarTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer access-token", r.Header.Get("Authorization"))
		require.Equal(t, "true", r.URL.Query().Get("singleEvents"))
		require.Equal(t, "startTime", r.URL.Query().Get("orderBy"))
		_, _ = w.Write([]byte(sampleEvents))
	}, nil)
	defer server.Close()

	from := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	events, token, err := client.ListEvents(context.Background(), &oauth2.Token{AccessToken: "access-token"}, from, from.Add(7*24*time.Hour))
	require.NoError(t, err)
	require.Equal(t, "access-token", token.AccessToken)
	require.Len(t, events, 2)

	first := events[0]
	require.Equal(t, "evt-1", first.EventID)
	require.Equal(t, "Design Review", first.Title)
	require.Equal(t, time.Date(2025, 7, 1, 10, 0, 0, 0, time.UTC), first.StartTime)
	require.Equal(t, "https://meet.google.com/abc-defg-hij", first.MeetingLink)
	require.Len(t, first.Attendees, 2)
	require.Equal(t, "Sam", first.Attendees[0].Name)
	require.Equal(t, "lee@example.com", first.Attendees[1].Name)
	require.Equal(t, "needsAction", first.Attendees[1].ResponseStatus)

	second := events[1]
	require.Equal(t, "Untitled Event", second.Title)
	require.Equal(t, "confirmed", second.Status)
	require.Equal(t, "https://company.zoom.us/j/123456", second.MeetingLink)
	require.Equal(t, time.Date(2025, 7, 2, 0, 0, 0, 0, time.UTC), second.StartTime)
}

func TestListEventsRefreshesOnceOn401(t *testing.T) {
	calls := 0
	client, server := newCalendarTestClient(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("Authorization") != "Bearer fresh-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"items": []}`))
	}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fresh-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	defer server.Close()

	token := &oauth2.Token{AccessToken: "stale-token", RefreshToken: "refresh-token"}
	events, updated, err := client.ListEvents(context.Background(), token, time.Now(), time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, events)
	require.Equal(t, 2, calls)
	require.Equal(t, "fresh-token", updated.AccessToken)
	require.Equal(t, "refresh-token", updated.RefreshToken)
}

func TestListEventsSecond401IsAuthError(t *testing.T) {
	client, server := newCalendarTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "still-bad",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	defer server.Close()

	token := &oauth2.Token{AccessToken: "stale", RefreshToken: "refresh"}
	_, _, err := client.ListEvents(context.Background(), token, time.Now(), time.Now().Add(time.Hour))
	require.ErrorIs(t, err, apperrors.ErrCalendarAuthExpired)
}

func TestListEventsNoRefreshTokenIsAuthError(t *testing.T) {
	client, server := newCalendarTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}, nil)
	defer server.Close()

	_, _, err := client.ListEvents(context.Background(), &oauth2.Token{AccessToken: "stale"}, time.Now(), time.Now().Add(time.Hour))
	require.ErrorIs(t, err, apperrors.ErrCalendarAuthExpired)
}

func TestExtractMeetingLink(t *testing.T) {
	cases := map[string]string{
		"Join https://us02.zoom.us/j/5551234 now":          "https://us02.zoom.us/j/5551234",
		"Link: https://meet.google.com/abc-defg-hij":       "https://meet.google.com/abc-defg-hij",
		"teams https://teams.microsoft.com/l/meetup-join/x": "https://teams.microsoft.com/l/meetup-join/x",
		"no link here": "",
	}
	for text, want := range cases {
		require.Equal(t, want, ExtractMeetingLink(text))
	}
}

func TestPlatformFromLink(t *testing.T) {
	require.Equal(t, "zoom", PlatformFromLink("https://us02.zoom.us/j/555"))
	require.Equal(t, "google_meet", PlatformFromLink("https://meet.google.com/abc"))
	require.Equal(t, "teams", PlatformFromLink("https://teams.microsoft.com/l/meetup-join/x"))
	require.Equal(t, "webex", PlatformFromLink("https://corp.webex.com/meet"))
	require.Equal(t, "other", PlatformFromLink("https://example.com/call"))
	require.Equal(t, "", PlatformFromLink(""))
}
