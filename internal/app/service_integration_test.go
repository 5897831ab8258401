package service_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/pace/internal/adapters/ws"
	service "github.com/okian/pace/internal/app"
	"github.com/okian/pace/pkg/logger"
	"github.com/okian/pace/pkg/protocol"
)

// startTestServer wires the service behind a real websocket endpoint.
func startTestServer(ctx context.Context) (*service.Service, *httptest.Server) {
	svc := service.New(service.WithWorkerCount(2), service.WithQueueSize(256))
	if err := svc.Start(ctx); err != nil {
		panic(err)
	}

	handler := ws.NewHandler(svc.Registry(), svc, []string{"*"}, 5*time.Second, 1<<20, logger.Nop())
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/{userId}", handler.HandleWS)

	return svc, httptest.NewServer(mux)
}

func dial(srv *httptest.Server, userID string) (*websocket.Conn, error) {
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	return conn, err
}

func readMessage(conn *websocket.Conn) (protocol.Message, error) {
	var msg protocol.Message
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	err := conn.ReadJSON(&msg)
	return msg, err
}

// awaitType drains frames until one of the wanted type arrives.
func awaitType(conn *websocket.Conn, want string) (protocol.Message, error) {
	for {
		msg, err := readMessage(conn)
		if err != nil {
			return protocol.Message{}, err
		}
		if msg.Type == want {
			return msg, nil
		}
	}
}

func TestServiceIntegration_SyncAndLeaderboard(t *testing.T) {
	Convey("Given a running service with a connected client", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc, srv := startTestServer(ctx)
		defer srv.Close()
		defer svc.Stop()

		conn, err := dial(srv, "alice")
		So(err, ShouldBeNil)
		defer conn.Close()

		Convey("Then the server acknowledges the connection", func() {
			msg, err := readMessage(conn)
			So(err, ShouldBeNil)
			So(msg.Type, ShouldEqual, protocol.TypeConnected)
			So(msg.UserID, ShouldEqual, "alice")
			So(svc.ActiveSessions(ctx), ShouldEqual, 1)

			Convey("When syncing full progress", func() {
				err := conn.WriteJSON(protocol.Message{
					Type:     protocol.TypeSyncFullProgress,
					Username: "Alice",
					Progress: protocol.ProgressSnapshot{
						"go-basics": {"intro.md": true, "types.md": false},
					},
				})
				So(err, ShouldBeNil)

				ack, err := awaitType(conn, protocol.TypeFullProgressSynced)
				So(err, ShouldBeNil)
				So(ack.CoursesCount, ShouldEqual, 1)
				So(svc.TrackedUsers(ctx), ShouldEqual, 1)

				Convey("And requesting the leaderboard returns the standing", func() {
					err := conn.WriteJSON(protocol.RequestLeaderboard("go-basics"))
					So(err, ShouldBeNil)

					lb, err := awaitType(conn, protocol.TypeLeaderboardUpdate)
					So(err, ShouldBeNil)
					So(lb.CourseID, ShouldEqual, "go-basics")
					So(lb.Leaderboard, ShouldHaveLength, 1)
					So(lb.Leaderboard[0].UserID, ShouldEqual, "alice")
					So(lb.Leaderboard[0].Username, ShouldEqual, "Alice")
					So(lb.Leaderboard[0].Completed, ShouldEqual, 1)
					So(lb.Leaderboard[0].Total, ShouldEqual, 2)
					So(lb.Leaderboard[0].Percentage, ShouldEqual, 50.0)

					Convey("And a progress update is acked and re-broadcast", func() {
						err := conn.WriteJSON(protocol.Message{
							Type:       protocol.TypeProgressUpdate,
							CourseID:   "go-basics",
							FileKey:    "types.md",
							IsComplete: true,
						})
						So(err, ShouldBeNil)

						ack, err := awaitType(conn, protocol.TypeProgressAck)
						So(err, ShouldBeNil)
						So(ack.FileKey, ShouldEqual, "types.md")

						lb, err := awaitType(conn, protocol.TypeLeaderboardUpdate)
						So(err, ShouldBeNil)
						So(lb.Leaderboard[0].Percentage, ShouldEqual, 100.0)
					})
				})
			})
		})
	})
}

func TestServiceIntegration_SessionReplacement(t *testing.T) {
	Convey("Given a user with a live session", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc, srv := startTestServer(ctx)
		defer srv.Close()
		defer svc.Stop()

		first, err := dial(srv, "bob")
		So(err, ShouldBeNil)
		defer first.Close()
		_, err = awaitType(first, protocol.TypeConnected)
		So(err, ShouldBeNil)

		Convey("When the same user connects again", func() {
			second, err := dial(srv, "bob")
			So(err, ShouldBeNil)
			defer second.Close()
			_, err = awaitType(second, protocol.TypeConnected)
			So(err, ShouldBeNil)

			Convey("Then the first connection is closed", func() {
				_ = first.SetReadDeadline(time.Now().Add(5 * time.Second))
				_, _, err := first.ReadMessage()
				So(err, ShouldNotBeNil)
			})

			Convey("And exactly one session remains active", func() {
				// Eviction happens on the server before the new
				// session is registered.
				So(svc.ActiveSessions(ctx), ShouldEqual, 1)

				Convey("And the survivor still works", func() {
					err := second.WriteJSON(protocol.Message{
						Type:     protocol.TypeSyncStudyItems,
						CourseID: "go-basics",
						FileKeys: []string{"intro.md", "types.md", "funcs.md"},
					})
					So(err, ShouldBeNil)

					ack, err := awaitType(second, protocol.TypeStudyItemsSynced)
					So(err, ShouldBeNil)
					So(ack.Count, ShouldEqual, 3)
				})
			})
		})
	})
}

func TestServiceIntegration_RenameBeforeFirstSync(t *testing.T) {
	Convey("Given a client that renames itself before syncing any progress", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc, srv := startTestServer(ctx)
		defer srv.Close()
		defer svc.Stop()

		conn, err := dial(srv, "dora")
		So(err, ShouldBeNil)
		defer conn.Close()
		_, err = awaitType(conn, protocol.TypeConnected)
		So(err, ShouldBeNil)

		So(conn.WriteJSON(protocol.Message{
			Type:     protocol.TypeSetUsername,
			Username: "Dora",
		}), ShouldBeNil)

		Convey("Then the rename is acknowledged", func() {
			ack, err := awaitType(conn, protocol.TypeUsernameUpdated)
			So(err, ShouldBeNil)
			So(ack.Username, ShouldEqual, "Dora")

			Convey("And a later sync without a username keeps the name", func() {
				So(conn.WriteJSON(protocol.Message{
					Type:     protocol.TypeSyncFullProgress,
					Progress: protocol.ProgressSnapshot{"go-basics": {"intro.md": true}},
				}), ShouldBeNil)
				_, err := awaitType(conn, protocol.TypeFullProgressSynced)
				So(err, ShouldBeNil)

				entries := svc.Leaderboard(ctx, "go-basics")
				So(entries, ShouldHaveLength, 1)
				So(entries[0].Username, ShouldEqual, "Dora")
			})
		})
	})
}

func TestServiceIntegration_UsernameAndMalformed(t *testing.T) {
	Convey("Given a connected client with synced progress", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		svc, srv := startTestServer(ctx)
		defer srv.Close()
		defer svc.Stop()

		conn, err := dial(srv, "carol")
		So(err, ShouldBeNil)
		defer conn.Close()
		_, err = awaitType(conn, protocol.TypeConnected)
		So(err, ShouldBeNil)

		So(conn.WriteJSON(protocol.Message{
			Type:     protocol.TypeSyncFullProgress,
			Username: "Carol",
			Progress: protocol.ProgressSnapshot{"py-101": {"a.md": true}},
		}), ShouldBeNil)
		_, err = awaitType(conn, protocol.TypeFullProgressSynced)
		So(err, ShouldBeNil)

		Convey("When a malformed frame arrives", func() {
			err := conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
			So(err, ShouldBeNil)

			Convey("Then the connection survives and keeps serving", func() {
				So(conn.WriteJSON(protocol.Message{
					Type:     protocol.TypeSetUsername,
					Username: "Caroline",
				}), ShouldBeNil)

				ack, err := awaitType(conn, protocol.TypeUsernameUpdated)
				So(err, ShouldBeNil)
				So(ack.Username, ShouldEqual, "Caroline")
			})
		})

		Convey("When clearing the user's progress", func() {
			removed := svc.ClearUser(ctx, "carol")
			So(removed, ShouldEqual, 1)

			Convey("Then the session is closed and nothing is tracked", func() {
				So(svc.TrackedUsers(ctx), ShouldEqual, 0)
				_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
				_, _, err := conn.ReadMessage()
				So(err, ShouldNotBeNil)
			})
		})
	})
}
