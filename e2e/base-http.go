package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/suite"
)

type BaseHTTPSuite struct {
	suite.Suite
	Config Config
	client *http.Client
}

// SetupSuite loads the environment configuration before running tests
func (s *BaseHTTPSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)
	if s.Config.ServerAddr == "" {
		s.T().Skip("SERVER_ADDR not set, skipping end-to-end suite")
	}
	s.client = &http.Client{Timeout: 10 * time.Second}
}

// Step prints a colorized header for a named scenario step
func (s *BaseHTTPSuite) Step(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

// Get performs a GET against the running server with logging
func (s *BaseHTTPSuite) Get(path, token string) (int, string) {
	req, err := http.NewRequest(http.MethodGet, "http://"+s.Config.ServerAddr+path, nil)
	s.Require().NoError(err)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	return s.do(req)
}

// Post performs a JSON POST against the running server with logging
func (s *BaseHTTPSuite) Post(path, token string, body any) (int, string) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		payload = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(http.MethodPost, "http://"+s.Config.ServerAddr+path, payload)
	s.Require().NoError(err)
	req.Header.Set("Authorization", token)
	req.Header.Set("Content-Type", "application/json")
	return s.do(req)
}

func (s *BaseHTTPSuite) do(req *http.Request) (int, string) {
	start := time.Now()
	resp, err := s.client.Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	body := strings.TrimSpace(string(raw))

	logBuilder := strings.Builder{}
	fmt.Fprintf(&logBuilder, "HTTP %s %s [%d] in %v", req.Method, req.URL.Path, resp.StatusCode, time.Since(start))
	if s.Config.DebugJSON {
		fmt.Fprintln(&logBuilder, "\nRESPONSE:")
		fmt.Fprintln(&logBuilder, body)
	}
	s.T().Log(logBuilder.String())

	return resp.StatusCode, body
}

// Dial opens a websocket for the given token
func (s *BaseHTTPSuite) Dial(token string) *websocket.Conn {
	url := fmt.Sprintf("ws://%s/ws?token=%s", s.Config.ServerAddr, token)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	if resp != nil {
		resp.Body.Close()
	}
	return conn
}
