package ipc

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/1broseidon/projectmapper/internal/coordinator"
	"github.com/1broseidon/projectmapper/internal/display"
	"github.com/1broseidon/projectmapper/internal/runtimepath"
)

// Runtime is the running mapper as seen by the control socket.
type Runtime interface {
	Status() coordinator.Status
	Inventory() *display.Inventory
	Stop(origin string) bool
}

// Server handles IPC requests from clients
type Server struct {
	socketPath   string
	listener     net.Listener
	runtime      Runtime
	uriProtocols []string
	shuttingDown bool
	shutdownMu   sync.Mutex
	wg           sync.WaitGroup
}

// NewServer creates a new IPC server. uriProtocols are reported by
// GET_OPTIONS as the schemes a URI source may use.
func NewServer(rt Runtime, uriProtocols []string) (*Server, error) {
	socketPath, err := runtimepath.SocketPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve IPC socket path: %w", err)
	}

	if runtimepath.InUse(socketPath) {
		return nil, fmt.Errorf("another mapper is already listening on %s", socketPath)
	}
	// A stale socket from a crashed run blocks Listen.
	os.Remove(socketPath)

	return &Server{
		socketPath:   socketPath,
		runtime:      rt,
		uriProtocols: uriProtocols,
	}, nil
}

// SocketPath returns where the server listens.
func (s *Server) SocketPath() string {
	return s.socketPath
}

// Start begins listening for IPC connections
func (s *Server) Start() error {
	listener, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("failed to create IPC socket: %w", err)
	}
	s.listener = listener

	// Set socket permissions
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("failed to set socket permissions: %w", err)
	}

	log.Printf("IPC server listening on %s", s.socketPath)

	s.wg.Add(1)
	go s.acceptLoop()

	return nil
}

// acceptLoop accepts incoming connections
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			s.shutdownMu.Lock()
			if s.shuttingDown {
				s.shutdownMu.Unlock()
				return
			}
			s.shutdownMu.Unlock()
			log.Printf("IPC accept error: %v", err)
			continue
		}

		go s.handleConnection(conn)
	}
}

// handleConnection handles a single IPC connection
func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)

	// One JSON request per line.
	data, err := reader.ReadBytes('\n')
	if err != nil && err != io.EOF {
		log.Printf("IPC read error: %v", err)
		return
	}

	req, err := ParseRequest(data)
	if err != nil {
		s.sendError(conn, fmt.Sprintf("Invalid request: %v", err))
		return
	}

	resp := s.handleCommand(req)

	respData, err := resp.Marshal()
	if err != nil {
		log.Printf("Failed to marshal response: %v", err)
		return
	}

	respData = append(respData, '\n')
	if _, err := conn.Write(respData); err != nil {
		log.Printf("Failed to send response: %v", err)
	}
}

// handleCommand processes an IPC command and returns a response
func (s *Server) handleCommand(req *Request) *Response {
	switch req.Command {
	case CommandGetStatus:
		return s.handleGetStatus()
	case CommandGetMonitors:
		return s.handleGetMonitors()
	case CommandGetOptions:
		return s.handleGetOptions()
	case CommandStop:
		return s.handleStop(req.Payload)
	default:
		return NewErrorResponse(fmt.Sprintf("Unknown command: %s", req.Command))
	}
}

func (s *Server) handleGetStatus() *Response {
	resp, err := NewOKResponse(s.runtime.Status())
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleGetMonitors() *Response {
	inv := s.runtime.Inventory()
	if inv == nil {
		return NewErrorResponse("monitors have not been enumerated yet")
	}
	resp, err := NewOKResponse(MonitorsFromInventory(inv))
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleGetOptions() *Response {
	inv := s.runtime.Inventory()
	if inv == nil {
		return NewErrorResponse("monitors have not been enumerated yet")
	}
	resp, err := NewOKResponse(display.AvailableOptions(inv, s.uriProtocols))
	if err != nil {
		return NewErrorResponse(err.Error())
	}
	return resp
}

func (s *Server) handleStop(payload json.RawMessage) *Response {
	var req StopPayload
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &req); err != nil {
			return NewErrorResponse(fmt.Sprintf("Invalid stop payload: %v", err))
		}
	}
	origin := "ipc"
	if req.Origin != "" {
		origin = "ipc (" + req.Origin + ")"
	}

	log.Printf("IPC: Received STOP command from %s", origin)
	accepted := s.runtime.Stop(origin)

	resp, _ := NewOKResponse(StopData{Accepted: accepted})
	return resp
}

// sendError sends an error response
func (s *Server) sendError(conn net.Conn, errMsg string) {
	resp := NewErrorResponse(errMsg)
	data, _ := resp.Marshal()
	data = append(data, '\n')
	conn.Write(data)
}

// Stop gracefully shuts down the IPC server
func (s *Server) Stop() {
	s.shutdownMu.Lock()
	if s.shuttingDown {
		s.shutdownMu.Unlock()
		return
	}
	s.shuttingDown = true
	s.shutdownMu.Unlock()

	if s.listener != nil {
		s.listener.Close()
		s.wg.Wait()
	}
	os.Remove(s.socketPath)
}
