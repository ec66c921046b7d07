package control

import (
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// Control socket operations.
const (
	OpStatus = "status"
	OpHealth = "health"
	OpStart  = "start"
	OpStop   = "stop"
	OpToggle = "toggle"
	OpExport = "export"
)

type Request struct {
	Op string `json:"op"`
	// Path overrides the export destination.
	Path string `json:"path,omitempty"`
}

type Status struct {
	Running     bool         `json:"running"`
	UptimeSec   float64      `json:"uptime_sec"`
	Recording   bool         `json:"recording"`
	Segment     int          `json:"segment"`
	Display     string       `json:"display"`
	Message     string       `json:"message,omitempty"`
	LastWAV     string       `json:"last_wav,omitempty"`
	Transcripts []Transcript `json:"transcripts"`
}

type SimpleResponse struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

type Transcript struct {
	Segment   int       `json:"segment"`
	Text      string    `json:"text"`
	Refined   bool      `json:"refined"`
	Timestamp time.Time `json:"timestamp"`
}

// Call sends req over the daemon socket and decodes the reply into resp.
func Call(socketPath string, req Request, resp any) error {
	conn, err := net.DialTimeout("unix", socketPath, 2*time.Second)
	if err != nil {
		return fmt.Errorf("cannot connect to daemon: %w", err)
	}
	defer conn.Close()
	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return err
	}
	if err := json.NewDecoder(conn).Decode(resp); err != nil {
		return fmt.Errorf("read %s reply: %w", req.Op, err)
	}
	return nil
}
