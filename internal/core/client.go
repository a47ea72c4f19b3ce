package core

const (
	commandBuffer = 16
	eventBuffer   = 64
)

// Client is one live connection as seen by the core layer.
// Identity and room fields are owned by the Hub and guarded by its lock.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	userID     string
	name       string
	avatar     string
	identified uint64 // order of the last identify, 0 if never
	rooms      map[string]struct{}

	done    chan struct{}
	closed  bool
	lagging bool
}

// NewClient constructs a client with initialized channels.
func NewClient(id string) *Client {
	return newClientWithBuffer(id, eventBuffer)
}

func newClientWithBuffer(id string, events int) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, commandBuffer),
		Events:   make(chan *Event, events),
		rooms:    make(map[string]struct{}),
		done:     make(chan struct{}),
	}
}

// Done is closed once the client has been unregistered from the hub.
func (c *Client) Done() <-chan struct{} {
	return c.done
}
