// Package event carries engine notifications to presenters. Delivery is
// synchronous: the engine calls the handler inline and never drops events.
package event

import "time"

// Type identifies the kind of event.
type Type int

const (
	FileCopied Type = iota + 1
	DirCreated
	SymlinkCreated
	SpecialCreated
	Skipped
	Failed
	BackupCreated
	Renamed
	Removed
)

var typeNames = [...]string{
	FileCopied:     "FileCopied",
	DirCreated:     "DirCreated",
	SymlinkCreated: "SymlinkCreated",
	SpecialCreated: "SpecialCreated",
	Skipped:        "Skipped",
	Failed:         "Failed",
	BackupCreated:  "BackupCreated",
	Renamed:        "Renamed",
	Removed:        "Removed",
}

func (t Type) String() string {
	if int(t) > 0 && int(t) < len(typeNames) {
		return typeNames[t]
	}
	return "Unknown"
}

// Event represents a single notification from the engine.
type Event struct {
	Timestamp time.Time
	Error     error
	Src       string
	Dst       string
	Backup    string // path the previous destination was moved to
	Size      int64
	Type      Type
}

// Handler receives events.
type Handler interface {
	Handle(Event)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(Event)

// Handle calls f(e).
func (f HandlerFunc) Handle(e Event) { f(e) }

// Discard drops every event.
var Discard Handler = HandlerFunc(func(Event) {})

// Multi fans events out to several handlers in order.
func Multi(handlers ...Handler) Handler {
	return HandlerFunc(func(e Event) {
		for _, h := range handlers {
			h.Handle(e)
		}
	})
}
