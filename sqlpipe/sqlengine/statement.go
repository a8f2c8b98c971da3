package sqlengine

import (
	"sync"

	"github.com/AntonStoeckl/sqlpipe-go/sqlpipe"
)

// statement holds the command bound via Sql until the next Map consumes it.
// Parameters added before any command is bound are kept pending and attached on SetCommand.
type statement struct {
	mu      sync.Mutex
	command *sqlpipe.Command
	pending sqlpipe.Parameters
}

func (s *statement) setCommand(cmd *sqlpipe.Command) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.command = cmd
	if cmd == nil {
		return
	}

	for _, parameter := range s.pending {
		cmd.AddParameter(parameter)
	}
	s.pending = nil
}

func (s *statement) addParameter(parameter sqlpipe.Parameter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.command == nil {
		s.pending = append(s.pending, parameter)
		return
	}

	s.command.AddParameter(parameter)
}

// take hands out the bound command and resets the statement, pending parameters included.
func (s *statement) take() *sqlpipe.Command {
	s.mu.Lock()
	defer s.mu.Unlock()

	cmd := s.command
	s.command = nil
	s.pending = nil

	return cmd
}
