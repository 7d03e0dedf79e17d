package acervo

import (
	"net/http"
	"strings"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/acervo-cultural/acervo/pkg/models"
)

func (s *apiSuite) dialLive(path string) *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.server.URL, "http") + path
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	s.Equal(http.StatusSwitchingProtocols, resp.StatusCode)
	s.T().Cleanup(func() { conn.Close() })
	return conn
}

// readEvents reads JSON frames until one satisfies ok.
func (s *apiSuite) readEvents(conn *websocket.Conn, ok func([]models.Event) bool) liveFrame[models.Event] {
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	for {
		kind, payload, err := conn.ReadMessage()
		s.Require().NoError(err)
		s.Require().Equal(websocket.TextMessage, kind)

		var frame liveFrame[models.Event]
		s.Require().NoError(json.Unmarshal(payload, &frame))
		s.Equal("events", frame.Collection)
		if ok(frame.Data) {
			return frame
		}
	}
}

func (s *apiSuite) TestLiveEvents() {
	editor := s.signIn("editor", models.RoleEditor)
	s.createEvent(editor, "First", "2023-05-10T19:00:00Z")

	conn := s.dialLive("/api/live/events")
	first := s.readEvents(conn, func(events []models.Event) bool { return len(events) == 1 })
	s.Equal("First", first.Data[0].Title)
	s.Empty(first.Error)

	s.createEvent(editor, "Second", "2024-01-20T19:00:00Z")
	next := s.readEvents(conn, func(events []models.Event) bool { return len(events) == 2 })
	s.Equal("Second", next.Data[0].Title, "newest first")
}

func (s *apiSuite) TestLiveGaugeTracksConnections() {
	conn := s.dialLive("/api/live/events")
	s.readEvents(conn, func(events []models.Event) bool { return true })

	_, body := s.do(request{method: "GET", path: "/metrics"})
	s.Contains(string(body), `acervo_live_feeds_open{collection="events"} 1`)
}

func (s *apiSuite) TestLiveTimelineYearCBOR() {
	editor := s.signIn("editor", models.RoleEditor)
	for _, date := range []string{"1999-03-01", "2005-07-14", "2005-10-02"} {
		resp, body := s.do(request{
			method: "POST",
			path:   "/api/timeline",
			body:   map[string]any{"date": date, "title": "Entry " + date, "type": string(models.EventTypeDance)},
			token:  editor,
		})
		s.Require().Equal(http.StatusCreated, resp.StatusCode, string(body))
	}

	conn := s.dialLive("/api/live/timeline?year=2005&codec=cbor")
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	kind, payload, err := conn.ReadMessage()
	s.Require().NoError(err)
	s.Equal(websocket.BinaryMessage, kind)

	var frame liveFrame[models.TimelineEvent]
	s.Require().NoError(cbor.Unmarshal(payload, &frame))
	s.Equal("timeline", frame.Collection)
	s.Require().Len(frame.Data, 2)
	for _, entry := range frame.Data {
		s.Equal(2005, entry.Year)
	}
}

func (s *apiSuite) TestLiveStatistics() {
	conn := s.dialLive("/api/live/statistics")
	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, payload, err := conn.ReadMessage()
	s.Require().NoError(err)

	var frame liveFrame[models.Statistics]
	s.Require().NoError(json.Unmarshal(payload, &frame))
	s.Require().Len(frame.Data, 1)
	s.Equal(models.StatisticsID, frame.Data[0].ID)
}

func (s *apiSuite) TestLiveRejectsUnknownCollectionAndCodec() {
	resp, _ := s.do(request{method: "GET", path: "/api/live/users"})
	s.Equal(http.StatusNotFound, resp.StatusCode)

	resp, _ = s.do(request{method: "GET", path: "/api/live/events?codec=xml"})
	s.Equal(http.StatusBadRequest, resp.StatusCode)
}

func (s *apiSuite) TestLiveEndsOnShutdown() {
	conn := s.dialLive("/api/live/events")
	s.readEvents(conn, func(events []models.Event) bool { return true })

	s.app.stopLive()

	s.Require().NoError(conn.SetReadDeadline(time.Now().Add(5 * time.Second)))
	_, _, err := conn.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
