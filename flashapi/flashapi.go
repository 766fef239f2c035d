// Package flashapi exposes the flash programmer over a small JSON HTTP
// API, so frontends can drive detection, reads, writes and erases without
// linking the hardware stack.
package flashapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"sync"

	"ch341compat/flash"
)

// Progress is the state reported by /api/progress while an operation runs.
type Progress struct {
	Operation string  `json:"operation"`
	Current   int     `json:"current"`
	Total     int     `json:"total"`
	Percent   float64 `json:"percent"`
}

// API serves the flasher endpoints. One flash operation runs at a time;
// concurrent requests for a second operation are rejected with 409.
type API struct {
	mux  *http.ServeMux
	prog *flash.Programmer

	opMu sync.Mutex

	mu       sync.Mutex
	progress Progress
}

// New creates the API around an already connected programmer.
func New(prog *flash.Programmer) *API {
	a := &API{
		mux:  http.NewServeMux(),
		prog: prog,
	}

	a.mux.HandleFunc("/api/status", a.handleStatus)
	a.mux.HandleFunc("/api/chips", a.handleChips)
	a.mux.HandleFunc("/api/detect", a.handleDetect)
	a.mux.HandleFunc("/api/read", a.handleRead)
	a.mux.HandleFunc("/api/write", a.handleWrite)
	a.mux.HandleFunc("/api/verify", a.handleVerify)
	a.mux.HandleFunc("/api/erase", a.handleErase)
	a.mux.HandleFunc("/api/progress", a.handleProgress)

	return a
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func sendJSON(w http.ResponseWriter, value interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(value)
}

func sendError(w http.ResponseWriter, code int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

// tryBegin claims the single operation slot and resets the progress
// record. Returns false when another operation is running.
func (a *API) tryBegin(operation string, total int) bool {
	if !a.opMu.TryLock() {
		return false
	}
	a.setProgress(operation, 0, total)
	return true
}

func (a *API) end() {
	a.setProgress("", 0, 0)
	a.opMu.Unlock()
}

func (a *API) setProgress(operation string, current, total int) {
	a.mu.Lock()
	a.progress = Progress{Operation: operation, Current: current, Total: total}
	if total > 0 {
		a.progress.Percent = float64(current) / float64(total) * 100
	}
	a.mu.Unlock()
}

func (a *API) progressFunc(operation string) flash.ProgressFunc {
	return func(done, total int) {
		a.setProgress(operation, done, total)
	}
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	chip, ok := a.prog.Chip()
	resp := map[string]interface{}{"connected": ok}
	if ok {
		resp["chip"] = chip
	}
	sendJSON(w, resp)
}

func (a *API) handleChips(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	sendJSON(w, flash.KnownChips())
}

func (a *API) handleDetect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.tryBegin("detect", 0) {
		sendError(w, http.StatusConflict, errors.New("another operation is running"))
		return
	}
	defer a.end()

	chip, err := a.prog.Detect()
	if err != nil {
		sendError(w, http.StatusBadGateway, err)
		return
	}
	sendJSON(w, chip)
}

// queryRange parses the optional offset/size parameters, defaulting to the
// whole chip.
func (a *API) queryRange(r *http.Request) (uint32, int, error) {
	chip, ok := a.prog.Chip()
	if !ok {
		return 0, 0, errors.New("no chip detected, run detect first")
	}

	var offset uint64
	var err error
	if v := r.URL.Query().Get("offset"); v != "" {
		if offset, err = strconv.ParseUint(v, 0, 32); err != nil {
			return 0, 0, errors.New("bad offset")
		}
	}

	size := chip.Size - int(offset)
	if v := r.URL.Query().Get("size"); v != "" {
		s, err := strconv.ParseUint(v, 0, 31)
		if err != nil {
			return 0, 0, errors.New("bad size")
		}
		size = int(s)
	}
	if size < 0 || int(offset)+size > chip.Size {
		return 0, 0, errors.New("range exceeds chip size")
	}
	return uint32(offset), size, nil
}

func (a *API) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	offset, size, err := a.queryRange(r)
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	if !a.tryBegin("read", size) {
		sendError(w, http.StatusConflict, errors.New("another operation is running"))
		return
	}
	defer a.end()

	buf := make([]byte, size)
	if err := a.prog.Read(offset, buf, a.progressFunc("read")); err != nil {
		sendError(w, http.StatusBadGateway, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.Itoa(len(buf)))
	w.Write(buf)
}

func (a *API) handleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	chip, ok := a.prog.Chip()
	if !ok {
		sendError(w, http.StatusBadRequest, errors.New("no chip detected, run detect first"))
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, int64(chip.Size)+1))
	if err != nil {
		sendError(w, http.StatusBadRequest, err)
		return
	}
	if len(data) == 0 || len(data) > chip.Size {
		sendError(w, http.StatusBadRequest, errors.New("image empty or larger than chip"))
		return
	}

	var offset uint32
	if v := r.URL.Query().Get("offset"); v != "" {
		o, err := strconv.ParseUint(v, 0, 32)
		if err != nil {
			sendError(w, http.StatusBadRequest, errors.New("bad offset"))
			return
		}
		offset = uint32(o)
	}
	verify := r.URL.Query().Get("verify") != "0"

	if !a.tryBegin("erase", len(data)) {
		sendError(w, http.StatusConflict, errors.New("another operation is running"))
		return
	}
	defer a.end()

	if err := a.prog.EraseRange(offset, len(data), a.progressFunc("erase")); err != nil {
		sendError(w, http.StatusBadGateway, err)
		return
	}
	if err := a.prog.Write(offset, data, a.progressFunc("write")); err != nil {
		sendError(w, http.StatusBadGateway, err)
		return
	}
	if verify {
		if err := a.prog.Verify(offset, data, a.progressFunc("verify")); err != nil {
			sendError(w, http.StatusBadGateway, err)
			return
		}
	}
	sendJSON(w, map[string]interface{}{"written": len(data), "verified": verify})
}

func (a *API) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	chip, ok := a.prog.Chip()
	if !ok {
		sendError(w, http.StatusBadRequest, errors.New("no chip detected, run detect first"))
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, int64(chip.Size)+1))
	if err != nil || len(data) == 0 || len(data) > chip.Size {
		sendError(w, http.StatusBadRequest, errors.New("image empty or larger than chip"))
		return
	}

	if !a.tryBegin("verify", len(data)) {
		sendError(w, http.StatusConflict, errors.New("another operation is running"))
		return
	}
	defer a.end()

	err = a.prog.Verify(0, data, a.progressFunc("verify"))
	switch {
	case err == nil:
		sendJSON(w, map[string]bool{"match": true})
	case errors.Is(err, flash.ErrMismatch):
		sendJSON(w, map[string]interface{}{"match": false, "detail": err.Error()})
	default:
		sendError(w, http.StatusBadGateway, err)
	}
}

func (a *API) handleErase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !a.tryBegin("erase", 0) {
		sendError(w, http.StatusConflict, errors.New("another operation is running"))
		return
	}
	defer a.end()

	if err := a.prog.EraseChip(); err != nil {
		sendError(w, http.StatusBadGateway, err)
		return
	}
	sendJSON(w, map[string]bool{"erased": true})
}

func (a *API) handleProgress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	a.mu.Lock()
	p := a.progress
	a.mu.Unlock()
	sendJSON(w, p)
}
