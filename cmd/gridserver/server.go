package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/relaygrid/gridcalc"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// snapshotMessage is pushed to every subscriber after a successful
// mutation: the full printable text and value grids.
type snapshotMessage struct {
	Rows   int        `json:"rows"`
	Cols   int        `json:"cols"`
	Texts  [][]string `json:"texts"`
	Values [][]string `json:"values"`
}

// server owns the single authoritative Sheet and the set of read-only
// websocket subscribers, grounded in broyeztony-karl's spreadsheet.Server
// (clients map guarded by a mutex, broadcast-on-change). gridcalc.Sheet
// itself assumes a single writer; sheetMu is what actually provides that
// here, since the stdin loop and every HTTP command handler run on their
// own goroutine and all reach the same Sheet.
type server struct {
	sheet   *gridcalc.Sheet
	logger  zerolog.Logger
	cfg     Config
	sheetMu sync.Mutex
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func newServer(logger zerolog.Logger, cfg Config) *server {
	sheet := gridcalc.NewSheet()
	sheet.Logger = logger
	return &server{
		sheet:   sheet,
		logger:  logger,
		cfg:     cfg,
		clients: make(map[*websocket.Conn]bool),
	}
}

// withinBounds rejects addresses outside the server's configured printable
// bounds, keeping the broadcast snapshot's size predictable regardless of
// what a misbehaving client sends.
func (s *server) withinBounds(pos gridcalc.Position) error {
	if pos.Row >= s.cfg.MaxRows || pos.Col >= s.cfg.MaxCols {
		return fmt.Errorf("gridserver: %v exceeds configured bounds (%d rows x %d cols)", pos, s.cfg.MaxRows, s.cfg.MaxCols)
	}
	return nil
}

// setCell serializes a SetCell call against every other sheet access.
func (s *server) setCell(pos gridcalc.Position, text string) error {
	s.sheetMu.Lock()
	defer s.sheetMu.Unlock()
	return s.sheet.SetCell(pos, text)
}

// clearCell serializes a ClearCell call against every other sheet access.
func (s *server) clearCell(pos gridcalc.Position) error {
	s.sheetMu.Lock()
	defer s.sheetMu.Unlock()
	return s.sheet.ClearCell(pos)
}

func (s *server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	connID := uuid.NewString()
	s.logger.Info().Str("conn", connID).Msg("subscriber connected")
	if s.cfg.IdleTimeout > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
	}

	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		_ = conn.Close()
		s.logger.Info().Str("conn", connID).Msg("subscriber disconnected")
	}()

	s.sendSnapshot(conn)

	// Subscribers are read-only: any inbound frame is drained and ignored,
	// which also lets us detect disconnects via the read error.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if s.cfg.IdleTimeout > 0 {
			_ = conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		}
	}
}

func (s *server) sendSnapshot(conn *websocket.Conn) {
	msg := s.buildSnapshot()
	if err := conn.WriteJSON(msg); err != nil {
		s.logger.Warn().Err(err).Msg("snapshot write failed")
	}
}

func (s *server) broadcastSnapshot() {
	msg := s.buildSnapshot()

	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(msg); err != nil {
			s.logger.Warn().Err(err).Msg("broadcast write failed")
			_ = conn.Close()
			delete(s.clients, conn)
		}
	}
}

// classifyOpError maps the spreadsheet's structural errors onto an OpError
// the host can turn into a transport status code, keeping transport
// concerns out of the domain type.
func classifyOpError(err error) *gridcalc.OpError {
	var invalidPos *gridcalc.InvalidPositionError
	var syntaxErr *gridcalc.FormulaSyntaxError
	var cycleErr *gridcalc.CircularDependencyError

	switch {
	case errors.As(err, &invalidPos):
		return gridcalc.NewOpError(gridcalc.OpInvalidArgument, "cell address out of bounds", err)
	case errors.As(err, &syntaxErr):
		return gridcalc.NewOpError(gridcalc.OpInvalidArgument, "malformed formula", err)
	case errors.As(err, &cycleErr):
		return gridcalc.NewOpError(gridcalc.OpFailedPrecondition, "formula would create a cycle", err)
	default:
		return gridcalc.NewOpError(gridcalc.OpInternal, "cell operation failed", err)
	}
}

// httpStatus maps an OpErrorCode onto the HTTP status the command route
// replies with.
func httpStatus(code gridcalc.OpErrorCode) int {
	switch code {
	case gridcalc.OpInvalidArgument:
		return http.StatusBadRequest
	case gridcalc.OpFailedPrecondition:
		return http.StatusConflict
	case gridcalc.OpNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// buildSnapshot walks the sheet under sheetMu: GetValue memoizes formula
// results onto the cell as it goes, which is itself a write, so this needs
// the same exclusion as SetCell/ClearCell, not just a read lock.
func (s *server) buildSnapshot() snapshotMessage {
	s.sheetMu.Lock()
	defer s.sheetMu.Unlock()

	rows, cols := s.sheet.GetPrintableSize()
	texts := make([][]string, rows)
	values := make([][]string, rows)
	for r := 0; r < rows; r++ {
		texts[r] = make([]string, cols)
		values[r] = make([]string, cols)
		for c := 0; c < cols; c++ {
			cell, _ := s.sheet.GetCell(gridcalc.Position{Row: r, Col: c})
			if cell == nil {
				continue
			}
			texts[r][c] = cell.GetText()
			values[r][c] = cell.GetValue().String()
		}
	}
	return snapshotMessage{Rows: rows, Cols: cols, Texts: texts, Values: values}
}

// handleCommand serves POST /cell with a JSON body {"cell":"A1","text":"=B1+1"}
// or {"cell":"A1","clear":true}, broadcasting a fresh snapshot on success.
func (s *server) handleCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Cell  string `json:"cell"`
		Text  string `json:"text"`
		Clear bool   `json:"clear"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	pos, err := gridcalc.ParsePosition(req.Cell)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.withinBounds(pos); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Clear {
		err = s.clearCell(pos)
	} else {
		err = s.setCell(pos, req.Text)
	}
	if err != nil {
		opErr := classifyOpError(err)
		http.Error(w, opErr.Error(), httpStatus(opErr.Code))
		return
	}

	s.broadcastSnapshot()
	w.WriteHeader(http.StatusNoContent)
}

// runStdinCommands reads "A1=text" lines from stdin until EOF, applying
// each as a SetCell and broadcasting on success. It is a convenience
// channel for local/manual driving of the sheet alongside the HTTP
// command route.
func (s *server) runStdinCommands() {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		addr, text, ok := strings.Cut(line, "=")
		if !ok {
			s.logger.Warn().Str("line", line).Msg("expected ADDR=text")
			continue
		}
		pos, err := gridcalc.ParsePosition(strings.TrimSpace(addr))
		if err != nil {
			s.logger.Warn().Err(err).Str("line", line).Msg("bad cell address")
			continue
		}
		if err := s.withinBounds(pos); err != nil {
			s.logger.Warn().Err(err).Str("line", line).Msg("cell out of configured bounds")
			continue
		}
		if err := s.setCell(pos, text); err != nil {
			s.logger.Warn().Err(err).Str("line", line).Msg("set cell failed")
			continue
		}
		s.broadcastSnapshot()
	}
}
