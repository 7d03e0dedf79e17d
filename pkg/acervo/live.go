package acervo

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/acervo-cultural/acervo/pkg/live"
	"github.com/acervo-cultural/acervo/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// statisticsRefresh is how often a live statistics view reloads the snapshot.
	statisticsRefresh = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// liveFrame is one message on a live connection. A frame is sent for every
// settled state of the view; loading states are skipped.
type liveFrame[T any] struct {
	Collection string `json:"collection" cbor:"collection"`
	Data       []T    `json:"data" cbor:"data"`
	Error      string `json:"error,omitempty" cbor:"error,omitempty"`
}

// view is what the live package's feeds and queries have in common.
type view[T any] interface {
	Snapshot() (live.State[T], <-chan struct{})
	Closed() bool
	Close()
}

type frameEncoder func(v any) (int, []byte, error)

func jsonFrames(v any) (int, []byte, error) {
	b, err := json.Marshal(v)
	return websocket.TextMessage, b, err
}

func cborFrames() (frameEncoder, error) {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339}.EncMode()
	if err != nil {
		return nil, err
	}
	return func(v any) (int, []byte, error) {
		b, err := em.Marshal(v)
		return websocket.BinaryMessage, b, err
	}, nil
}

// handleLive streams a collection over a websocket. Supported collections are
// events, gallery (optionally ?eventId=), timeline (optionally ?year=) and
// statistics. ?codec=cbor switches to binary CBOR frames; JSON is the default.
// ?limit= bounds the events, gallery and timeline lists.
func (a *App) handleLive(w http.ResponseWriter, r *http.Request) {
	collection := mux.Vars(r)["collection"]

	var encode frameEncoder
	switch r.URL.Query().Get("codec") {
	case "", "json":
		encode = jsonFrames
	case "cbor":
		enc, err := cborFrames()
		if err != nil {
			a.respondErr(w, r, err)
			return
		}
		encode = enc
	default:
		respondError(w, http.StatusBadRequest, "Unknown codec")
		return
	}

	limit, err := queryLimit(r, defaultListLimit)
	if err != nil {
		a.respondErr(w, r, err)
		return
	}

	var year int
	if s := r.URL.Query().Get("year"); s != "" {
		if year, err = strconv.Atoi(s); err != nil {
			respondError(w, http.StatusBadRequest, "Invalid year")
			return
		}
	}
	eventID := r.URL.Query().Get("eventId")

	switch collection {
	case models.CollectionEvents, models.CollectionGallery, models.CollectionTimeline, models.CollectionStatistics:
	default:
		respondError(w, http.StatusNotFound, "Unknown live collection")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		a.log.Debug().Err(err).Msg("Websocket upgrade failed")
		return
	}
	defer conn.Close()

	gauge := a.metrics.LiveFeeds.WithLabelValues(collection)
	gauge.Inc()
	defer gauge.Dec()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go a.readLive(conn, cancel)
	go func() {
		select {
		case <-a.liveStop:
			cancel()
		case <-ctx.Done():
		}
	}()

	l := a.log.With().Str("collection", collection).Str("remote", r.RemoteAddr).Logger()
	l.Debug().Msg("Live feed opened")

	switch collection {
	case models.CollectionEvents:
		err = stream[models.Event](ctx, conn, encode, collection, live.Events(ctx, a.events, limit))
	case models.CollectionGallery:
		if eventID != "" {
			err = stream[models.GalleryItem](ctx, conn, encode, collection, live.EventGallery(ctx, a.gallery, eventID))
		} else {
			err = stream[models.GalleryItem](ctx, conn, encode, collection, live.Gallery(ctx, a.gallery, limit))
		}
	case models.CollectionTimeline:
		if year != 0 {
			err = stream[models.TimelineEvent](ctx, conn, encode, collection, live.TimelineYear(ctx, a.timeline, year))
		} else {
			err = stream[models.TimelineEvent](ctx, conn, encode, collection, live.Timeline(ctx, a.timeline, limit))
		}
	case models.CollectionStatistics:
		stats := live.Statistics(ctx, a.stats)
		go refreshEvery(ctx, statisticsRefresh, stats.Refetch)
		err = stream[models.Statistics](ctx, conn, encode, collection, stats)
	}

	if err != nil {
		l.Debug().Err(err).Msg("Live feed ended")
		return
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeWait))
	l.Debug().Msg("Live feed closed")
}

// readLive drains client messages so control frames are processed, and cancels
// the stream when the client goes away.
func (a *App) readLive(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// stream writes a frame for each settled state of v until ctx is done or v is
// closed. It closes v.
func stream[T any](ctx context.Context, conn *websocket.Conn, encode frameEncoder, collection string, v view[T]) error {
	defer v.Close()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	for {
		st, changed := v.Snapshot()
		if v.Closed() {
			return nil
		}
		if !st.Loading {
			frame := liveFrame[T]{Collection: collection, Data: st.Data}
			if st.Err != nil {
				frame.Error = st.Err.Error()
			}
			kind, payload, err := encode(frame)
			if err != nil {
				return err
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(kind, payload); err != nil {
				return err
			}
		}

		if err := waitChange(ctx, conn, changed, ping.C); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// waitChange blocks until changed fires or ctx is done, pinging the client on
// every tick meanwhile.
func waitChange(ctx context.Context, conn *websocket.Conn, changed <-chan struct{}, tick <-chan time.Time) error {
	for {
		select {
		case <-changed:
			return nil
		case <-tick:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func refreshEvery(ctx context.Context, every time.Duration, refresh func()) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			refresh()
		case <-ctx.Done():
			return
		}
	}
}
