package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tablekit/tablekit/internal/dberr"
	"github.com/tablekit/tablekit/internal/dbmanager"
	"github.com/tablekit/tablekit/internal/dialect"
)

type columnOptionsPayload struct {
	PrimaryKey    bool  `json:"primary_key"`
	AutoIncrement bool  `json:"autoincrement"`
	Nullable      *bool `json:"nullable,omitempty"`
	Unique        bool  `json:"unique"`
	Index         bool  `json:"index"`
	Default       any   `json:"default,omitempty"`
}

type columnPayload struct {
	Name    string                `json:"name"`
	Type    string                `json:"type"`
	Options *columnOptionsPayload `json:"options,omitempty"`
}

type createTablePayload struct {
	Name    string          `json:"name"`
	Columns []columnPayload `json:"columns"`
}

func (s *Server) handleCreateTable(w http.ResponseWriter, r *http.Request) {
	var payload createTablePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	cols := make([]dbmanager.Column, 0, len(payload.Columns))
	for _, c := range payload.Columns {
		col, err := c.toColumn()
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		cols = append(cols, col)
	}

	if err := s.mgr.CreateTable(r.Context(), payload.Name, cols); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"status": "created", "table": payload.Name})
}

func (c columnPayload) toColumn() (dbmanager.Column, error) {
	if c.Name == "" {
		return dbmanager.Column{}, fmt.Errorf("column descriptor is missing a name")
	}
	t, err := dialect.ParseColumnType(c.Type)
	if err != nil {
		return dbmanager.Column{}, fmt.Errorf("column %q: %w", c.Name, err)
	}
	col := dbmanager.Column{Name: c.Name, Type: t}
	if c.Options != nil {
		col.Options = dbmanager.ColumnOptions{
			PrimaryKey:    c.Options.PrimaryKey,
			AutoIncrement: c.Options.AutoIncrement,
			Unique:        c.Options.Unique,
			Index:         c.Options.Index,
			Default:       c.Options.Default,
		}
		// Columns are nullable unless the descriptor says otherwise.
		if c.Options.Nullable != nil && !*c.Options.Nullable {
			col.Options.NotNull = true
		}
	}
	return col, nil
}

func (s *Server) handleTableSchema(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	cols, err := s.mgr.Table(r.Context(), table)
	if err != nil {
		writeError(w, err)
		return
	}

	out := make([]columnPayload, 0, len(cols))
	for _, col := range cols {
		nullable := !col.Options.NotNull
		out = append(out, columnPayload{
			Name: col.Name,
			Type: col.Type.String(),
			Options: &columnOptionsPayload{
				PrimaryKey:    col.Options.PrimaryKey,
				AutoIncrement: col.Options.AutoIncrement,
				Nullable:      &nullable,
				Unique:        col.Options.Unique,
				Index:         col.Options.Index,
				Default:       col.Options.Default,
			},
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"table": table, "columns": out})
}

func (s *Server) handleUpsertRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	conflictColumn := r.URL.Query().Get("conflict_column")
	if conflictColumn == "" {
		writeBadRequest(w, "conflict_column query parameter is required")
		return
	}
	policy := dbmanager.ConflictUpdate
	switch r.URL.Query().Get("on_conflict") {
	case "", "update":
	case "ignore":
		policy = dbmanager.ConflictIgnore
	default:
		writeBadRequest(w, "on_conflict must be \"update\" or \"ignore\"")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read body")
		return
	}
	records, err := parseRecords(body)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.mgr.Upsert(r.Context(), table, conflictColumn, policy, records...); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "records": len(records)})
}

func (s *Server) handleSelectRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	q := dbmanager.Query{}
	if raw := r.URL.Query().Get("where"); raw != "" {
		filter, err := parseFilter([]byte(raw))
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		q.Where = filter
	}
	if cols := r.URL.Query().Get("columns"); cols != "" {
		q.Columns = strings.Split(cols, ",")
	}

	if r.URL.Query().Get("one") == "true" {
		rec, err := s.mgr.SelectOne(r.Context(), table, q)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"row": rec})
		return
	}

	rows, err := s.mgr.Select(r.Context(), table, q)
	if err != nil {
		writeError(w, err)
		return
	}
	if rows == nil {
		rows = []dbmanager.Record{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows, "count": len(rows)})
}

type updateRowsPayload struct {
	Set   dbmanager.Record `json:"set"`
	Where json.RawMessage  `json:"where"`
}

func (s *Server) handleUpdateRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var payload updateRowsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}
	var filter dbmanager.Filter
	if len(payload.Where) > 0 {
		f, err := parseFilter(payload.Where)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		filter = f
	}

	if err := s.mgr.Update(r.Context(), table, payload.Set, filter); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

type deleteRowsPayload struct {
	Where json.RawMessage `json:"where"`
}

func (s *Server) handleDeleteRows(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	var filter dbmanager.Filter
	var payload deleteRowsPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err == nil && len(payload.Where) > 0 {
		f, err := parseFilter(payload.Where)
		if err != nil {
			writeBadRequest(w, err.Error())
			return
		}
		filter = f
	}

	if err := s.mgr.Delete(r.Context(), table, filter); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleDropTable(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")
	password := r.Header.Get("X-Deletion-Password")

	if err := s.mgr.DropTable(r.Context(), table, password); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "dropped", "table": table})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "dialect": s.mgr.Dialect()})
}

// parseRecords accepts a single JSON object or an array of objects.
func parseRecords(body []byte) ([]dbmanager.Record, error) {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil, errors.New("request body is required")
	}
	if strings.HasPrefix(trimmed, "[") {
		var records []dbmanager.Record
		if err := json.Unmarshal(body, &records); err != nil {
			return nil, fmt.Errorf("invalid record array: %w", err)
		}
		return records, nil
	}
	var record dbmanager.Record
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("invalid record: %w", err)
	}
	return []dbmanager.Record{record}, nil
}

// parseFilter accepts a single JSON object (AND of equalities) or an
// array of objects (OR of AND groups).
func parseFilter(raw []byte) (dbmanager.Filter, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var conds []dbmanager.Cond
		if err := json.Unmarshal(raw, &conds); err != nil {
			return nil, fmt.Errorf("invalid filter array: %w", err)
		}
		return dbmanager.Filter(conds), nil
	}
	var cond dbmanager.Cond
	if err := json.Unmarshal(raw, &cond); err != nil {
		return nil, fmt.Errorf("invalid filter: %w", err)
	}
	return dbmanager.Where(cond), nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeBadRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

// writeError maps manager error kinds onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch dberr.KindOf(err) {
	case dberr.Connection:
		status = http.StatusBadGateway
	case dberr.Schema, dberr.Data:
		status = http.StatusBadRequest
	case dberr.Authorization:
		status = http.StatusForbidden
	case dberr.Usage:
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  dberr.KindOf(err).String(),
	})
}
