package ipc

import (
	"encoding/json"

	"github.com/frameweave/agent/internal/framegen"
)

// Message type constants for the local control channel.
const (
	TypeStatusRequest = "status_request"
	TypeStatusReply   = "status_reply"
	TypeToggle        = "toggle"
	TypeToggleReply   = "toggle_reply"
	TypeSet           = "set"
	TypeAck           = "ack"
	TypePing          = "ping"
	TypePong          = "pong"
)

// MaxMessageSize bounds a single control message (1MB). Control traffic is
// tiny; anything larger is a framing bug.
const MaxMessageSize = 1 << 20

// ProtocolVersion is the current control protocol version.
const ProtocolVersion = 1

// Envelope is the wire-format wrapper for all control messages.
type Envelope struct {
	ID      string          `json:"id"`
	Seq     uint64          `json:"seq"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Toggle targets.
const (
	TargetGeneration = "generation"
	TargetOverlay    = "overlay"
)

// ToggleRequest flips a boolean aspect of the running interposer.
type ToggleRequest struct {
	Target string `json:"target"`
}

// ToggleReply reports the state after the flip.
type ToggleReply struct {
	Target  string `json:"target"`
	Enabled bool   `json:"enabled"`
}

// SetRequest updates one named setting, value in string form the way the
// CLI received it.
type SetRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// StatusReply is the full state snapshot returned to the CLI.
type StatusReply struct {
	ProtocolVersion int             `json:"protocolVersion"`
	Initialized     bool            `json:"initialized"`
	Config          framegen.Config `json:"config"`
	Stats           framegen.Stats  `json:"stats"`
	Host            HostInfo        `json:"host"`
}

// HostInfo describes the process the interposer lives in.
type HostInfo struct {
	PID           int32   `json:"pid"`
	Executable    string  `json:"executable"`
	Hostname      string  `json:"hostname"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
	RSSBytes      uint64  `json:"rssBytes"`
	CPUPercent    float64 `json:"cpuPercent"`
}
