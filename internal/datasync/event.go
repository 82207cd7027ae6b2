// Package datasync defines the dataset publication events carried on Kafka.
package datasync

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	OpPut    = "put"
	OpDelete = "delete"
)

// Event replaces (put) or removes (delete) one table in the Redis table
// store. Seq orders events of the same table across every source; older ones
// are dropped. Source only names the publisher.
type Event struct {
	Version int             `json:"version"`
	Op      string          `json:"op"`
	Source  string          `json:"source"`
	Table   string          `json:"table"`
	Seq     uint64          `json:"seq"`
	TS      time.Time       `json:"ts"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// NewPut builds a put event for a FeatureCollection document.
func NewPut(source, table string, seq uint64, doc []byte, ts time.Time) Event {
	return Event{Version: 1, Op: OpPut, Source: source, Table: table, Seq: seq, TS: ts.UTC(), Data: doc}
}

func NewDelete(source, table string, seq uint64, ts time.Time) Event {
	return Event{Version: 1, Op: OpDelete, Source: source, Table: table, Seq: seq, TS: ts.UTC()}
}

// Key identifies the table stream an event belongs to. It matches the store's
// table key and is also the Kafka message key, so one table's events share a
// partition whichever source published them.
func (e Event) Key() string {
	return e.Table
}

func (e Event) Validate() error {
	if e.Version != 1 {
		return fmt.Errorf("version must be 1")
	}
	if strings.TrimSpace(e.Source) == "" {
		return fmt.Errorf("source is required")
	}
	if strings.TrimSpace(e.Table) == "" {
		return fmt.Errorf("table is required")
	}
	if e.TS.IsZero() {
		return fmt.Errorf("ts is required")
	}
	hasData := len(e.Data) > 0 && string(e.Data) != "null"
	switch e.Op {
	case OpPut:
		if !hasData {
			return fmt.Errorf("data is required for put")
		}
		var hdr struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(e.Data, &hdr); err != nil {
			return fmt.Errorf("data parse: %w", err)
		}
		if hdr.Type != "FeatureCollection" {
			return fmt.Errorf("data.type must be FeatureCollection")
		}
	case OpDelete:
		if hasData {
			return fmt.Errorf("data must be empty for delete")
		}
	default:
		return fmt.Errorf("op must be put|delete")
	}
	return nil
}

// Decode parses and validates one event.
func Decode(b []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(b, &ev); err != nil {
		return Event{}, fmt.Errorf("json decode: %w", err)
	}
	if err := ev.Validate(); err != nil {
		return ev, fmt.Errorf("invalid event: %w", err)
	}
	return ev, nil
}
