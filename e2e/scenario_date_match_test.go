package e2e

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"

	"sparkchat/domain"
)

type testDateMatchSuite struct {
	BaseHTTPSuite
}

func TestDateMatchSuite(t *testing.T) {
	suite.Run(t, &testDateMatchSuite{})
}

type e2eUser struct {
	username string
	token    string
	conn     *websocket.Conn
}

func (s *testDateMatchSuite) TestFullDateMatchFlow() {
	alice := &e2eUser{username: "alice-" + uuid.NewString()[:8]}
	bob := &e2eUser{username: "bob-" + uuid.NewString()[:8]}

	// --- STEP 1: TOKENS ---
	s.Run("Step 1: Obtain tokens for both users", func() {
		s.Step("Requesting tokens")
		for _, user := range []*e2eUser{alice, bob} {
			status, body := s.Get("/token?username="+user.username, "")
			s.Require().Equal(http.StatusOK, status)

			var payload struct {
				Token string `json:"token"`
			}
			s.Require().NoError(json.Unmarshal([]byte(body), &payload))
			s.Require().NotEmpty(payload.Token)
			user.token = payload.Token

			// The token must validate back to the username
			status, body = s.Get("/token/validate?token="+user.token, "")
			s.Require().Equal(http.StatusOK, status)
			s.Require().Equal(user.username, body)
		}
	})

	// --- STEP 2: SETUP ---
	s.Run("Step 2: Complete profile and mode setup", func() {
		s.Step("Posting setup info")
		status, _ := s.Post("/setup/info", alice.token, map[string]any{
			"age": 30, "gender": "female", "interests": []string{"chess"},
		})
		s.Require().Equal(http.StatusOK, status)

		status, _ = s.Post("/setup/info", bob.token, map[string]any{
			"age": 32, "gender": "male", "interests": []string{"chess"},
		})
		s.Require().Equal(http.StatusOK, status)

		for _, user := range []*e2eUser{alice, bob} {
			status, _ = s.Post("/setup/mode", user.token, map[string]any{"mode": "date"})
			s.Require().Equal(http.StatusOK, status)
		}
	})

	// --- STEP 3: CONNECT & QUEUE ---
	s.Run("Step 3: Connect websockets and join matchmaking", func() {
		s.Step("Dialing websockets")
		alice.conn = s.Dial(alice.token)
		bob.conn = s.Dial(bob.token)
		s.T().Cleanup(func() {
			alice.conn.Close()
			bob.conn.Close()
		})

		for _, user := range []*e2eUser{alice, bob} {
			status, _ := s.Post("/matchmaking/join", user.token, nil)
			s.Require().Equal(http.StatusOK, status)
		}
	})

	// --- STEP 4: MATCH ---
	var room string
	s.Run("Step 4: Both sides receive the same matched room", func() {
		s.Step("Awaiting match notifications")
		aliceMatch := s.awaitMatched(alice.conn)
		bobMatch := s.awaitMatched(bob.conn)

		s.Require().Equal(aliceMatch.Room, bobMatch.Room)
		s.Require().Equal(bob.username, aliceMatch.User.Username)
		s.Require().Equal(alice.username, bobMatch.User.Username)
		room = aliceMatch.Room
	})

	// --- STEP 5: CHAT ---
	s.Run("Step 5: Exchange a message in the room", func() {
		s.Step("Joining the room and chatting")
		for _, user := range []*e2eUser{alice, bob} {
			err := user.conn.WriteJSON(domain.ClientFrame{Action: domain.ActionJoin, Room: room})
			s.Require().NoError(err)
			ack := s.awaitAction(user.conn, domain.ActionJoin)
			s.Require().True(ack.Success)
		}

		err := alice.conn.WriteJSON(domain.ClientFrame{
			Action: domain.ActionSend, Room: room, Message: "hello from e2e",
		})
		s.Require().NoError(err)

		relayed := s.awaitAction(bob.conn, domain.ActionReceiveMessage)
		var content domain.ReceivedMessage
		s.decodeContent(relayed.Content, &content)
		s.Require().Equal("hello from e2e", content.Message)
		s.Require().Equal(alice.username, content.FromUser)
	})

	// --- STEP 6: LOGOUT ---
	s.Run("Step 6: Logout frees the username", func() {
		s.Step("Logging out")
		status, _ := s.Get("/token/logout?token="+alice.token, "")
		s.Require().Equal(http.StatusOK, status)

		status, body := s.Get("/token/username-exist?username="+alice.username, "")
		s.Require().Equal(http.StatusOK, status)
		s.Require().JSONEq(`{"exist":false}`, body)
	})
}

// awaitMatched reads frames until the matched notification arrives
func (s *testDateMatchSuite) awaitMatched(conn *websocket.Conn) domain.MatchedContent {
	frame := s.awaitAction(conn, domain.ActionMatched)
	var content domain.MatchedContent
	s.decodeContent(frame.Content, &content)
	s.Require().NotEmpty(content.Room)
	return content
}

func (s *testDateMatchSuite) awaitAction(conn *websocket.Conn, action string) domain.Frame {
	deadline := time.Now().Add(10 * time.Second)
	s.Require().NoError(conn.SetReadDeadline(deadline))
	for {
		var frame domain.Frame
		s.Require().NoError(conn.ReadJSON(&frame), "waiting for action %q", action)
		if frame.Action == action {
			return frame
		}
	}
}

func (s *testDateMatchSuite) decodeContent(content any, out any) {
	raw, err := json.Marshal(content)
	s.Require().NoError(err)
	s.Require().NoError(json.Unmarshal(raw, out))
}
