package types

import (
	"fmt"
	"time"
)

type NodeID string

// EventType is one of the closed set of object events a sink can subscribe to.
type EventType string

const (
	EventObjectAdded   EventType = "OBJECT_ADDED"
	EventObjectDeleted EventType = "OBJECT_DELETED"
)

// EventTypes returns the fixed list of supported event kinds.
func EventTypes() []EventType {
	return []EventType{EventObjectAdded, EventObjectDeleted}
}

func (e EventType) Valid() bool {
	switch e {
	case EventObjectAdded, EventObjectDeleted:
		return true
	}
	return false
}

// PartKey identifies a single part of an object on a storage node.
type PartKey struct {
	Object string
	Index  int
}

func (k PartKey) String() string {
	return fmt.Sprintf("%s#%d", k.Object, k.Index)
}

// PartRange is a half-open byte range [Start, End) of an object.
type PartRange struct {
	Index int
	Start int
	End   int
}

func (r PartRange) Len() int {
	return r.End - r.Start
}

// PartLocation names the node that currently serves a part.
type PartLocation struct {
	Index   int
	NodeID  NodeID
	Address string
}

type MemberInfo struct {
	ID           NodeID
	Address      string
	RegisteredAt time.Time
	LastProbe    time.Time
	Misses       int
}

type ObjectInfo struct {
	Name     string
	Size     int64
	Parts    int
	Replicas []int // replica count per part
	StoredAt time.Time
}

// Event is a delivered store/delete notification.
type Event struct {
	Type       EventType
	Object     string
	OccurredAt time.Time
}

type FailureReport struct {
	NodeID     NodeID
	ReportedAt time.Time
}
