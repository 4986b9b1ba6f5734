// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package link owns the byte link to the flight controller radio.
package link

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	serial "github.com/jacobsa/go-serial/serial"

	"github.com/relabs-tech/flight_companion/internal/log"
)

var ErrNoDevice = errors.New("link: no device given")

const (
	readBufferSize = 256
	writeQueueSize = 32
)

// Handler receives link events. LinkData may reuse p after returning.
type Handler interface {
	LinkConnected()
	LinkDisconnected()
	LinkData(p []byte)
}

// Opener opens the device named by the operator.
type Opener func(device string) (io.ReadWriteCloser, error)

// SerialOpener opens a serial port at baud, 8N1.
func SerialOpener(baud int) Opener {
	return func(device string) (io.ReadWriteCloser, error) {
		return serial.Open(serial.OpenOptions{
			PortName:              device,
			BaudRate:              uint(baud),
			DataBits:              8,
			StopBits:              1,
			MinimumReadSize:       1,
			ParityMode:            serial.PARITY_NONE,
			InterCharacterTimeout: 0,
		})
	}
}

// Serial is a reconnectable link. One reader and one writer goroutine run
// per open port; Write never blocks the caller.
//
// Handler calls are serialized by evMu. Write reads the current port
// without taking it, so a handler may block until its consumer has called
// Write.
type Serial struct {
	open Opener

	evMu    sync.Mutex
	handler Handler

	cur atomic.Pointer[conn]
}

type conn struct {
	device string
	port   io.ReadWriteCloser
	writes chan []byte
	done   chan struct{}
	once   sync.Once
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		if err := c.port.Close(); err != nil {
			log.Debugf("link: close %s: %v", c.device, err)
		}
	})
}

func NewSerial(open Opener, h Handler) *Serial {
	return &Serial{open: open, handler: h}
}

// SetHandler replaces the event handler. Call it before Connect.
func (s *Serial) SetHandler(h Handler) {
	s.evMu.Lock()
	defer s.evMu.Unlock()
	s.handler = h
}

// Connect opens device. An open port is closed first, which the handler
// sees as a disconnect followed by a connect.
func (s *Serial) Connect(device string) error {
	if device == "" {
		return ErrNoDevice
	}

	s.evMu.Lock()
	defer s.evMu.Unlock()

	if c := s.cur.Load(); c != nil {
		s.drop(c)
	}

	port, err := s.open(device)
	if err != nil {
		return fmt.Errorf("link: open %s: %w", device, err)
	}

	c := &conn{
		device: device,
		port:   port,
		writes: make(chan []byte, writeQueueSize),
		done:   make(chan struct{}),
	}
	s.cur.Store(c)
	log.Printf("link: connected to %s", device)
	s.handler.LinkConnected()

	go s.read(c)
	go s.write(c)
	return nil
}

// Disconnect closes the port. Calling it with nothing open does nothing.
func (s *Serial) Disconnect() error {
	s.evMu.Lock()
	defer s.evMu.Unlock()

	if c := s.cur.Load(); c != nil {
		s.drop(c)
	}
	return nil
}

// Write queues p for the port. It is dropped when nothing is connected
// or the queue is full.
func (s *Serial) Write(p []byte) {
	c := s.cur.Load()
	if c == nil {
		return
	}
	select {
	case c.writes <- append([]byte(nil), p...):
	case <-c.done:
	default:
		log.Debugf("link: write queue full on %s, dropping %d bytes", c.device, len(p))
	}
}

func (s *Serial) Connected() bool {
	return s.cur.Load() != nil
}

func (s *Serial) Device() string {
	c := s.cur.Load()
	if c == nil {
		return ""
	}
	return c.device
}

// drop runs with evMu held.
func (s *Serial) drop(c *conn) {
	s.cur.Store(nil)
	c.close()
	log.Printf("link: disconnected from %s", c.device)
	s.handler.LinkDisconnected()
}

// lost handles a failing port. It is a no-op when c was already replaced
// or closed by Disconnect.
func (s *Serial) lost(c *conn, err error) {
	s.evMu.Lock()
	defer s.evMu.Unlock()

	if s.cur.Load() != c {
		return
	}
	if !errors.Is(err, io.EOF) {
		log.Errorf("link: %s: %v", c.device, err)
	}
	s.drop(c)
}

// deliver hands a chunk read from c to the handler unless c has been
// replaced or closed in the meantime.
func (s *Serial) deliver(c *conn, p []byte) {
	s.evMu.Lock()
	defer s.evMu.Unlock()

	if s.cur.Load() != c {
		return
	}
	s.handler.LinkData(p)
}

func (s *Serial) read(c *conn) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			s.deliver(c, buf[:n])
		}
		if err != nil {
			s.lost(c, err)
			return
		}
	}
}

func (s *Serial) write(c *conn) {
	for {
		select {
		case <-c.done:
			return
		case p := <-c.writes:
			if _, err := c.port.Write(p); err != nil {
				s.lost(c, err)
				return
			}
		}
	}
}
