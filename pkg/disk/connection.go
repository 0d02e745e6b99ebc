package disk

// Connection is the consumer contract: any object that submits
// Read/Write/Sync through a Manager implements HandleDone to receive
// completions. HandleDone is invoked from within Manager.Timeout — i.e.
// from the event-loop thread — and must not block.
type Connection interface {
	HandleDone(event *Event, err error)
}
