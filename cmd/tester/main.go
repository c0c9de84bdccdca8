package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/google/uuid"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"

	"sparkchat/domain"
)

type Config struct {
	ServerAddr string `env:"SERVER_ADDR,default=localhost:5001"`
	Username   string `env:"TESTER_USERNAME"`
	Age        int    `env:"TESTER_AGE,default=25"`
	Gender     string `env:"TESTER_GENDER,default=female"`
	Mode       string `env:"TESTER_MODE,default=date"`
	Interests  string `env:"TESTER_INTERESTS,default=music"`
}

// Interactive client against a running server: obtains a token,
// completes the setup, joins matchmaking, then relays stdin lines into
// the matched room.
func main() {
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("config error: %v", err)
	}
	if config.Username == "" {
		config.Username = "tester-" + uuid.NewString()[:8]
	}

	// 1. Obtain a token for the username
	token := mustGet(config, "/token?username="+url.QueryEscape(config.Username), "")
	var tokenBody struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal([]byte(token), &tokenBody); err != nil {
		log.Fatalf("unexpected token response %q: %v", token, err)
	}
	color.Green.Printf("Token issued for %s\n", config.Username)

	// 2. Declare the profile then the chat mode
	mustPost(config, "/setup/info", tokenBody.Token, map[string]any{
		"age":       config.Age,
		"gender":    config.Gender,
		"interests": strings.Split(config.Interests, ","),
	})
	mustPost(config, "/setup/mode", tokenBody.Token, map[string]any{"mode": config.Mode})
	color.Green.Printf("Setup complete (mode=%s)\n", config.Mode)

	// 3. Open the websocket before joining the queue: the matched
	// notification is only delivered to a live connection.
	wsURL := fmt.Sprintf("ws://%s/ws?token=%s", config.ServerAddr, url.QueryEscape(tokenBody.Token))
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		log.Fatalf("websocket dial failed: %v", err)
	}
	defer conn.Close()

	mustPost(config, "/matchmaking/join", tokenBody.Token, nil)
	color.Yellow.Println("Waiting for a match...")

	room := make(chan string, 1)
	go readLoop(conn, room)

	currentRoom := <-room
	color.Green.Printf("Matched! Room: %s\n", currentRoom)
	color.Gray.Println("Type messages, 'quit' to exit")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "quit" {
			_ = conn.WriteJSON(domain.ClientFrame{Action: domain.ActionLeaveRoom, Room: currentRoom})
			return
		}
		err := conn.WriteJSON(domain.ClientFrame{Action: domain.ActionSend, Room: currentRoom, Message: line})
		if err != nil {
			log.Fatalf("write failed: %v", err)
		}
	}
}

// readLoop prints every server frame, surfacing the first matched room
// on the channel.
func readLoop(conn *websocket.Conn, room chan<- string) {
	for {
		var frame domain.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			color.Red.Printf("Connection closed: %v\n", err)
			os.Exit(0)
		}

		switch frame.Action {
		case domain.ActionMatched:
			var content domain.MatchedContent
			decodeContent(frame.Content, &content)
			color.Cyan.Printf("<< matched with %s in %s\n", content.User.Username, content.Room)
			select {
			case room <- content.Room:
			default:
			}
		case domain.ActionReceiveMessage:
			var content domain.ReceivedMessage
			decodeContent(frame.Content, &content)
			color.Cyan.Printf("<< [%s] %s: %s\n", content.FromRoom, content.FromUser, content.Message)
		case domain.ActionUserLeft:
			color.Yellow.Printf("<< %v\n", frame.Content)
		case domain.ActionError:
			color.Red.Printf("<< error: %s\n", frame.Error)
		default:
			color.Gray.Printf("<< %s: %v\n", frame.Action, frame.Content)
		}
	}
}

func decodeContent(content any, out any) {
	raw, err := json.Marshal(content)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func mustGet(config Config, path, token string) string {
	req, err := http.NewRequest(http.MethodGet, "http://"+config.ServerAddr+path, nil)
	if err != nil {
		log.Fatalf("GET %s: %v", path, err)
	}
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return mustDo(req, path)
}

func mustPost(config Config, path, token string, body any) string {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("POST %s: %v", path, err)
		}
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, "http://"+config.ServerAddr+path, payload)
	if err != nil {
		log.Fatalf("POST %s: %v", path, err)
	}
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	return mustDo(req, path)
}

func mustDo(req *http.Request, path string) string {
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", req.Method, path, err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 300 {
		log.Fatalf("%s %s: %d %s", req.Method, path, resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return string(raw)
}
