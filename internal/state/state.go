package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sokinpui/hebillas/internal/fs"
)

const (
	stateDirName  = ".hebillas"
	stateFileName = "state.hebillas"
	TrashDir      = "trash"
)

const (
	ActionCreate = "create"
	ActionModify = "modify"
	ActionDelete = "delete"
)

// Operation represents a single file operation of a run.
type Operation struct {
	Path        string
	Action      string
	ContentHash string // SHA256 of the file content after the run, empty for deletes
	Backup      string // Copy of the original content, empty for creates
}

// HistoryEntry represents one complete run of a recipe.
type HistoryEntry struct {
	ID         string
	Timestamp  int64
	Operations []Operation
}

// State represents the entire state file.
type State struct {
	History      []HistoryEntry
	CurrentIndex int
}

// Manager handles the lifecycle of the state file.
type Manager struct {
	statePath string
	state     *State
	StateDir  string
}

// New creates and loads a state manager for the project at root.
func New(root string) (*Manager, error) {
	stateDir := filepath.Join(root, stateDirName)
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("could not create state directory: %w", err)
	}
	m := &Manager{
		statePath: filepath.Join(stateDir, stateFileName),
		StateDir:  stateDir,
	}
	if err := m.load(); err != nil {
		return nil, err
	}
	return m, nil
}

// Entries returns the recorded history up to and including the current entry.
func (m *Manager) Entries() []HistoryEntry {
	return m.state.History[:m.state.CurrentIndex+1]
}

func (m *Manager) load() error {
	m.state = &State{CurrentIndex: -1}

	data, err := os.ReadFile(m.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	blocks := strings.Split(content, "\n\n")
	if len(blocks) == 0 || strings.TrimSpace(blocks[0]) == "" {
		return nil
	}

	index, err := strconv.Atoi(strings.TrimSpace(blocks[0]))
	if err != nil {
		return fmt.Errorf("invalid state file: could not parse current index: %w", err)
	}
	m.state.CurrentIndex = index

	for _, block := range blocks[1:] {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := strings.Split(block, "\n")

		header := strings.Fields(lines[0])
		if len(header) != 2 {
			return fmt.Errorf("invalid state file: bad entry header '%s'", lines[0])
		}
		ts, err := strconv.ParseInt(header[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid state file: could not parse timestamp from '%s': %w", header[1], err)
		}

		entry := HistoryEntry{ID: header[0], Timestamp: ts}
		opLines := lines[1:]
		if len(opLines)%4 != 0 {
			return fmt.Errorf("invalid state file: incomplete operation record in entry %s", entry.ID)
		}
		for i := 0; i < len(opLines); i += 4 {
			entry.Operations = append(entry.Operations, Operation{
				Action:      opLines[i],
				Path:        opLines[i+1],
				ContentHash: fromDash(opLines[i+2]),
				Backup:      fromDash(opLines[i+3]),
			})
		}
		m.state.History = append(m.state.History, entry)
	}

	if m.state.CurrentIndex >= len(m.state.History) {
		m.state.CurrentIndex = len(m.state.History) - 1
	}
	return nil
}

func (m *Manager) save() error {
	blocks := []string{strconv.Itoa(m.state.CurrentIndex)}

	for _, entry := range m.state.History {
		var b strings.Builder
		fmt.Fprintf(&b, "%s %d", entry.ID, entry.Timestamp)
		for _, op := range entry.Operations {
			// Empty fields are kept as "-" so every record stays four lines.
			fmt.Fprintf(&b, "\n%s\n%s\n%s\n%s", op.Action, op.Path, orDash(op.ContentHash), orDash(op.Backup))
		}
		blocks = append(blocks, b.String())
	}

	content := strings.Join(blocks, "\n\n") + "\n"
	if err := fs.WriteFileAtomic(m.statePath, []byte(content)); err != nil {
		return fmt.Errorf("could not save state: %w", err)
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func fromDash(s string) string {
	if s == "-" {
		return ""
	}
	return s
}

// write adds a new entry to the history, dropping anything that was undone.
func (m *Manager) write(entry HistoryEntry) error {
	if m.state.CurrentIndex < len(m.state.History)-1 {
		m.state.History = m.state.History[:m.state.CurrentIndex+1]
	}
	m.state.History = append(m.state.History, entry)
	m.state.CurrentIndex++
	return m.save()
}

// Run collects the files touched by one recipe run.
type Run struct {
	ID        string
	manager   *Manager
	trashDir  string
	ops       map[string]*Operation
	order     []string
	createdAt time.Time
}

// Begin starts recording a new run.
func (m *Manager) Begin() *Run {
	id := uuid.NewString()
	return &Run{
		ID:        id,
		manager:   m,
		trashDir:  filepath.Join(m.StateDir, TrashDir, id),
		ops:       make(map[string]*Operation),
		createdAt: time.Now().UTC(),
	}
}

// BeforeWrite backs up absPath the first time the run touches it.
// It has the signature expected by the patch engine hook.
func (r *Run) BeforeWrite(absPath string, existed bool) error {
	if _, ok := r.ops[absPath]; ok {
		return nil
	}

	op := &Operation{Path: absPath, Action: ActionCreate}
	if existed {
		backup := filepath.Join(r.trashDir, strconv.Itoa(len(r.order)), filepath.Base(absPath))
		if err := fs.CopyTree(absPath, backup); err != nil {
			return fmt.Errorf("could not back up '%s': %w", absPath, err)
		}
		op.Action = ActionModify
		op.Backup = backup
	}
	r.ops[absPath] = op
	r.order = append(r.order, absPath)
	return nil
}

// Paths returns the touched paths in the order they were first written.
func (r *Run) Paths() []string {
	return append([]string(nil), r.order...)
}

// Commit records the final state of every touched file as a history entry.
// A run that touched nothing is not recorded.
func (r *Run) Commit() error {
	if len(r.order) == 0 {
		return nil
	}

	entry := HistoryEntry{ID: r.ID, Timestamp: r.createdAt.Unix()}
	for _, path := range r.order {
		op := *r.ops[path]
		exists, err := fs.Exists(path)
		if err != nil {
			return err
		}
		switch {
		case !exists && op.Action == ActionCreate:
			// Created and removed again within the run.
			continue
		case !exists:
			op.Action = ActionDelete
		default:
			if hash, err := fs.GetFileSHA256(path); err == nil {
				op.ContentHash = hash
			}
		}
		entry.Operations = append(entry.Operations, op)
	}
	return r.manager.write(entry)
}

// Undo reverts the current history entry. Files changed since the run are
// left alone and reported as failed.
func (m *Manager) Undo() (undone, failed []string, err error) {
	if m.state.CurrentIndex < 0 {
		return nil, nil, nil
	}
	entry := m.state.History[m.state.CurrentIndex]

	for i := len(entry.Operations) - 1; i >= 0; i-- {
		op := entry.Operations[i]
		if undoOperation(op) {
			undone = append(undone, op.Path)
		} else {
			failed = append(failed, op.Path)
		}
	}

	m.state.CurrentIndex--
	if err := m.save(); err != nil {
		return undone, failed, err
	}
	return undone, failed, nil
}

func undoOperation(op Operation) bool {
	switch op.Action {
	case ActionDelete:
		if exists, _ := fs.Exists(op.Path); exists {
			// Don't overwrite something that took its place.
			return false
		}
		return fs.CopyTree(op.Backup, op.Path) == nil

	case ActionCreate:
		currentHash, err := fs.GetFileSHA256(op.Path)
		if err != nil {
			return os.IsNotExist(err)
		}
		if currentHash != op.ContentHash {
			return false
		}
		if err := os.Remove(op.Path); err != nil {
			return false
		}
		parentDir := filepath.Dir(op.Path)
		if isEmpty, _ := fs.IsEmpty(parentDir); isEmpty {
			os.Remove(parentDir)
		}
		return true

	case ActionModify:
		currentHash, err := fs.GetFileSHA256(op.Path)
		if err != nil || currentHash != op.ContentHash {
			return false
		}
		data, err := os.ReadFile(op.Backup)
		if err != nil {
			return false
		}
		return fs.WriteFileAtomic(op.Path, data) == nil
	}
	return false
}
