// Package cqrs implements the command side of Command Query Responsibility
// Segregation. Reads in this module are served by streams; every state
// changing request goes through a CommandBus so that shutdown can wait for
// in-flight writes.
package cqrs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCommandBusShuttingDown is returned when a command is dispatched to a bus that is shutting down.
var ErrCommandBusShuttingDown = errors.New("command bus is shutting down")

// Command represents a request that changes the state of the system.
// Commands are named with verbs in imperative form (e.g., "UpdateApp").
type Command interface {
	// CommandName returns the name of the command.
	CommandName() string
}

// CommandHandler defines the interface for handling commands.
type CommandHandler[C Command] interface {
	// Handle executes the command and returns an error if the command fails.
	Handle(ctx context.Context, cmd C) error
}

// HandlerFunc adapts a function to CommandHandler.
type HandlerFunc[C Command] func(ctx context.Context, cmd C) error

// Handle calls f(ctx, cmd).
func (f HandlerFunc[C]) Handle(ctx context.Context, cmd C) error { return f(ctx, cmd) }

type dispatchFunc func(ctx context.Context, cmd Command) error

// CommandBus dispatches commands to their registered handlers.
type CommandBus struct {
	mu             sync.RWMutex
	handlers       map[string]dispatchFunc
	isShuttingDown bool
	active         sync.WaitGroup
}

// NewCommandBus creates a new CommandBus. When ctx is cancelled the bus stops
// accepting new commands.
func NewCommandBus(ctx context.Context) *CommandBus {
	b := &CommandBus{
		handlers: make(map[string]dispatchFunc),
	}

	if ctx != nil {
		go func() {
			<-ctx.Done()
			b.Shutdown()
		}()
	}

	return b
}

// Register registers the handler for commands of type C.
func Register[C Command](b *CommandBus, handler CommandHandler[C]) error {
	var zero C
	name := zero.CommandName()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.handlers[name]; exists {
		return fmt.Errorf("handler for command %s already registered", name)
	}
	b.handlers[name] = func(ctx context.Context, cmd Command) error {
		c, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("command %s has unexpected type %T", name, cmd)
		}
		return handler.Handle(ctx, c)
	}
	return nil
}

// Dispatch runs the handler registered for cmd and returns its error.
func (b *CommandBus) Dispatch(ctx context.Context, cmd Command) error {
	b.mu.RLock()
	if b.isShuttingDown {
		b.mu.RUnlock()
		return ErrCommandBusShuttingDown
	}
	handler, exists := b.handlers[cmd.CommandName()]
	if !exists {
		b.mu.RUnlock()
		return fmt.Errorf("no handler registered for command %s", cmd.CommandName())
	}
	// Added under the read lock so WaitForCompletion after Shutdown cannot miss it.
	b.active.Add(1)
	b.mu.RUnlock()
	defer b.active.Done()

	return handler(ctx, cmd)
}

// Shutdown initiates a graceful shutdown of the bus.
// New commands will be rejected, but existing commands will be allowed to complete.
func (b *CommandBus) Shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.isShuttingDown = true
}

// IsShuttingDown returns true if the bus is shutting down.
func (b *CommandBus) IsShuttingDown() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.isShuttingDown
}

// WaitForCompletion waits for all active commands to complete.
// This should be called after Shutdown to ensure all commands have finished processing.
func (b *CommandBus) WaitForCompletion() {
	b.active.Wait()
}
