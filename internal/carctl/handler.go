// Package carctl implements a command line client for the carcontrol
// HTTP API.
package carctl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"

	"github.com/larsks/carcontrol/internal/cli"
	"github.com/larsks/carcontrol/internal/store"
)

// APIResponse is the body of an error reply.
type APIResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SwitchRequest represents a request to control a switch
type SwitchRequest struct {
	State    string `json:"state"`
	Duration *uint  `json:"duration,omitempty"`
}

type switchResponse struct {
	store.SwitchState
	Changed bool `json:"changed"`
	AutoOff int  `json:"autoOff,omitempty"`
}

type allOffResponse struct {
	Changes []store.ChangeEvent `json:"changes"`
}

type healthResponse struct {
	Status    string `json:"status"`
	Driver    string `json:"driver"`
	Switches  int    `json:"switches"`
	Observers int    `json:"observers"`
}

// HTTPClient interface for testing
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Handler implements the carctl commands
type Handler struct {
	config     *Config
	httpClient HTTPClient
	stdout     io.Writer

	duration uint
	count    int
}

// NewHandler creates a new carctl handler
func NewHandler() *Handler {
	return &Handler{
		stdout: os.Stdout,
	}
}

// AddFlags adds command-specific flags
func (h *Handler) AddFlags(fs *pflag.FlagSet) {
	fs.UintVarP(&h.duration, "duration", "d", 0, "Seconds until an 'on' switch turns off again (0 = stay on)")
	fs.IntVarP(&h.count, "count", "n", 0, "Events to print before 'watch' exits (0 = until closed)")
}

// Execute implements cli.SubCommandHandler.
func (h *Handler) Execute(cmdArgs *cli.CommandArgs) error {
	cfg, ok := cmdArgs.Config.(*Config)
	if !ok {
		return fmt.Errorf("invalid config type for carctl")
	}
	h.config = cfg
	if h.httpClient == nil {
		h.httpClient = &http.Client{Timeout: cfg.Timeout}
	}

	if cmdArgs.Command == cli.CommandHelp || len(cmdArgs.Args) == 0 {
		h.showHelp()
		return nil
	}

	command := cmdArgs.Args[0]
	args := cmdArgs.Args[1:]

	switch command {
	case "help":
		h.showHelp()
		return nil
	case "list":
		return h.cmdList(args)
	case "status":
		return h.cmdStatus(args)
	case "toggle":
		return h.cmdToggle(args)
	case "on":
		return h.cmdSet(args, "on")
	case "off":
		return h.cmdSet(args, "off")
	case "all-off":
		return h.cmdAllOff(args)
	case "health":
		return h.cmdHealth(args)
	case "watch":
		return h.cmdWatch(args)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownCommand, command)
	}
}

func (h *Handler) showHelp() {
	//nolint:errcheck
	fmt.Fprintf(h.stdout, `carctl - Command line tool for controlling carcontrol switches

Usage: carctl [flags] <command> [arguments]

Commands:
  list                 List all switches
  status <switch>      Show one switch
  toggle <switch>      Toggle a switch
  on <switch>          Turn on a switch (see --duration)
  off <switch>         Turn off a switch
  all-off              Turn off every switch
  health               Show server health
  watch                Print state changes as they happen
  help                 Show this help

Flags:
  --config string       Config file to use
  -n, --count int       Events to print before 'watch' exits (0 = until closed)
  -d, --duration uint   Seconds until an 'on' switch turns off again (0 = stay on)
  --server-url string   API server URL (default "%s")
  --timeout duration    Request timeout (default %s)
  --version             Show version and exit
`, defaultServerURL, defaultTimeout)
}

func requireArgs(command string, args []string, n int) error {
	if len(args) == n {
		return nil
	}
	if n == 0 {
		return fmt.Errorf("%w: %s takes no arguments", ErrUsage, command)
	}
	return fmt.Errorf("%w: %s requires exactly one switch argument", ErrUsage, command)
}

func (h *Handler) cmdList(args []string) error {
	if err := requireArgs("list", args, 0); err != nil {
		return err
	}

	var snap store.Snapshot
	if err := h.apiRequest("GET", "/switches", nil, &snap); err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "Switches (%d total):\n", len(snap.Order)) //nolint:errcheck
	for _, id := range snap.Order {
		sw := snap.Switches[id]
		fmt.Fprintf(h.stdout, "  %s: %s (%s)\n", id, store.StateString(sw.Level), sw.Name) //nolint:errcheck
	}
	return nil
}

func (h *Handler) cmdStatus(args []string) error {
	if err := requireArgs("status", args, 1); err != nil {
		return err
	}

	var sw store.SwitchState
	if err := h.apiRequest("GET", "/switches/"+args[0], nil, &sw); err != nil {
		return err
	}

	//nolint:errcheck
	fmt.Fprintf(h.stdout, "Switch: %s\nName: %s\nPin: %d\nStatus: %s\n",
		sw.ID, sw.Name, sw.Pin, store.StateString(sw.Level))
	if sw.Description != "" {
		fmt.Fprintf(h.stdout, "Description: %s\n", sw.Description) //nolint:errcheck
	}
	return nil
}

func (h *Handler) cmdToggle(args []string) error {
	if err := requireArgs("toggle", args, 1); err != nil {
		return err
	}

	var ev store.ChangeEvent
	if err := h.apiRequest("POST", "/switches/"+args[0]+"/toggle", nil, &ev); err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "Switch %s is now %s\n", ev.SwitchID, store.StateString(ev.Level)) //nolint:errcheck
	return nil
}

func (h *Handler) cmdSet(args []string, state string) error {
	if err := requireArgs(state, args, 1); err != nil {
		return err
	}

	req := SwitchRequest{State: state}
	if state == "on" && h.duration > 0 {
		req.Duration = &h.duration
	}

	var resp switchResponse
	if err := h.apiRequest("POST", "/switches/"+args[0], req, &resp); err != nil {
		return err
	}

	switch {
	case resp.AutoOff > 0:
		fmt.Fprintf(h.stdout, "Switch turned %s: %s (off again in %d seconds)\n", state, resp.ID, resp.AutoOff) //nolint:errcheck
	case !resp.Changed:
		fmt.Fprintf(h.stdout, "Switch already %s: %s\n", state, resp.ID) //nolint:errcheck
	default:
		fmt.Fprintf(h.stdout, "Switch turned %s: %s\n", state, resp.ID) //nolint:errcheck
	}
	return nil
}

func (h *Handler) cmdAllOff(args []string) error {
	if err := requireArgs("all-off", args, 0); err != nil {
		return err
	}

	var resp allOffResponse
	if err := h.apiRequest("POST", "/switches/all-off", nil, &resp); err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "All switches turned off (%d changed)\n", len(resp.Changes)) //nolint:errcheck
	return nil
}

func (h *Handler) cmdHealth(args []string) error {
	if err := requireArgs("health", args, 0); err != nil {
		return err
	}

	var resp healthResponse
	if err := h.apiRequest("GET", "/healthz", nil, &resp); err != nil {
		return err
	}

	fmt.Fprintf(h.stdout, "Status: %s\n", resp.Status)       //nolint:errcheck
	fmt.Fprintf(h.stdout, "Driver: %s\n", resp.Driver)       //nolint:errcheck
	fmt.Fprintf(h.stdout, "Switches: %d\n", resp.Switches)   //nolint:errcheck
	fmt.Fprintf(h.stdout, "Observers: %d\n", resp.Observers) //nolint:errcheck
	return nil
}

type watchMessage struct {
	Type     string                       `json:"type"`
	SwitchID string                       `json:"switchId"`
	State    bool                         `json:"state"`
	Changes  []store.ChangeEvent          `json:"changes"`
	Message  string                       `json:"message"`
	Order    []string                     `json:"order"`
	Switches map[string]store.SwitchState `json:"switches"`
}

// cmdWatch follows the websocket push channel and prints one line per
// message.
func (h *Handler) cmdWatch(args []string) error {
	if err := requireArgs("watch", args, 0); err != nil {
		return err
	}

	url := websocketURL(h.config.ServerURL)
	dialer := websocket.Dialer{HandshakeTimeout: h.config.Timeout}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	defer conn.Close() //nolint:errcheck

	for seen := 0; h.count == 0 || seen < h.count; seen++ {
		var msg watchMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("failed to read event: %w", err)
		}
		h.printEvent(msg)
	}
	return nil
}

func (h *Handler) printEvent(msg watchMessage) {
	ts := time.Now().Format(time.TimeOnly)
	switch msg.Type {
	case "initial-state":
		states := make([]string, 0, len(msg.Order))
		for _, id := range msg.Order {
			states = append(states, id+"="+store.StateString(msg.Switches[id].Level))
		}
		fmt.Fprintf(h.stdout, "%s %s %s\n", ts, msg.Type, strings.Join(states, " ")) //nolint:errcheck
	case "state-changed":
		fmt.Fprintf(h.stdout, "%s %s %s\n", ts, msg.SwitchID, store.StateString(msg.State)) //nolint:errcheck
	case "all-off", "all-on":
		fmt.Fprintf(h.stdout, "%s %s (%d changed)\n", ts, msg.Type, len(msg.Changes)) //nolint:errcheck
	default:
		fmt.Fprintf(h.stdout, "%s %s %s\n", ts, msg.Type, msg.Message) //nolint:errcheck
	}
}

func websocketURL(serverURL string) string {
	url := strings.TrimSuffix(serverURL, "/")
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}

// apiRequest sends body (if not nil) as JSON and decodes a successful
// reply into out.
func (h *Handler) apiRequest(method, path string, body, out any) error {
	url := strings.TrimSuffix(h.config.ServerURL, "/") + path

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiResp APIResponse
		if err := json.Unmarshal(respBody, &apiResp); err == nil && apiResp.Message != "" {
			return fmt.Errorf("%w: %s", ErrAPI, apiResp.Message)
		}
		return fmt.Errorf("%w: request failed with status %d", ErrAPI, resp.StatusCode)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("error parsing response: %w", err)
	}
	return nil
}
