package core

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUnknownCommand  = errors.New("unknown command ID")
	ErrUnknownResponse = errors.New("response not registered")
	ErrNoSender        = errors.New("no response sender configured")
)

// CommandHandler handles a command. It decodes its own arguments from data.
type CommandHandler func(data *[]byte) error

// ResponseSender frames and sends one reply message
type ResponseSender func(cmdID uint16, args []byte) error

// Command is one entry of the message table. Responses (firmware to host)
// have no handler.
type Command struct {
	ID      uint16
	Name    string
	Format  string // Argument format, e.g. "pin=%c high_ticks=%u"
	Handler CommandHandler
}

// CommandRegistry maps message names to IDs in registration order. Host and
// firmware build the same table by registering the same messages in the same
// order.
type CommandRegistry struct {
	mu       sync.RWMutex
	commands []*Command
	nameToID map[string]uint16
	sender   ResponseSender
}

var globalRegistry = NewCommandRegistry()

// NewCommandRegistry creates an empty registry
func NewCommandRegistry() *CommandRegistry {
	return &CommandRegistry{
		nameToID: make(map[string]uint16),
	}
}

// GetGlobalRegistry returns the registry the firmware dispatches from
func GetGlobalRegistry() *CommandRegistry {
	return globalRegistry
}

// Register adds a command. Registering a name twice returns the first ID.
func (r *CommandRegistry) Register(name string, format string, handler CommandHandler) uint16 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.nameToID[name]; exists {
		return id
	}
	id := uint16(len(r.commands))
	r.commands = append(r.commands, &Command{
		ID:      id,
		Name:    name,
		Format:  format,
		Handler: handler,
	})
	r.nameToID[name] = id
	return id
}

// RegisterResponse adds a reply message
func (r *CommandRegistry) RegisterResponse(name string, format string) uint16 {
	return r.Register(name, format, nil)
}

// Lookup returns the message with the given ID
func (r *CommandRegistry) Lookup(id uint16) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.commands) {
		return nil, false
	}
	return r.commands[id], true
}

// ID returns the ID of a message by name
func (r *CommandRegistry) ID(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

// Count returns the number of registered messages
func (r *CommandRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.commands)
}

// Dispatch runs the handler of command cmdID. It matches
// protocol.CommandHandler so a registry can drive a transport directly.
func (r *CommandRegistry) Dispatch(cmdID uint16, data *[]byte) error {
	cmd, ok := r.Lookup(cmdID)
	if !ok || cmd.Handler == nil {
		return fmt.Errorf("%w: %d", ErrUnknownCommand, cmdID)
	}
	return cmd.Handler(data)
}

// Dictionary lists every message as "id name format", one per line
func (r *CommandRegistry) Dictionary() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dict := ""
	for _, cmd := range r.commands {
		dict += utoa(uint32(cmd.ID)) + " " + cmd.Name
		if cmd.Format != "" {
			dict += " " + cmd.Format
		}
		dict += "\n"
	}
	return dict
}

// SetSender sets where Respond sends replies
func (r *CommandRegistry) SetSender(sender ResponseSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sender = sender
}

// Respond sends the reply message name with VLQ encoded args
func (r *CommandRegistry) Respond(name string, args []byte) error {
	r.mu.RLock()
	id, ok := r.nameToID[name]
	sender := r.sender
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownResponse, name)
	}
	if sender == nil {
		return ErrNoSender
	}
	return sender(id, args)
}
