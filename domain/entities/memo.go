package entities

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrMemoNotFound = errors.New("memo not found")

// Memo is a note on the memo board
type Memo struct {
	ID          uuid.UUID  `json:"id"`
	Text        string     `json:"text"`
	Done        bool       `json:"done"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// MemoList holds the memos of the active session in insertion order
type MemoList struct {
	mu    sync.Mutex
	memos []Memo
}

// NewMemoList creates an empty memo list
func NewMemoList() *MemoList {
	return &MemoList{memos: make([]Memo, 0)}
}

// Add appends a new open memo
func (l *MemoList) Add(text string) (Memo, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Memo{}, errors.New("memo text cannot be empty")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	memo := Memo{
		ID:        uuid.New(),
		Text:      text,
		CreatedAt: time.Now(),
	}
	l.memos = append(l.memos, memo)
	return memo, nil
}

// Complete marks a memo done. changed is false when it was already done.
func (l *MemoList) Complete(id uuid.UUID) (memo Memo, changed bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return Memo{}, false, ErrMemoNotFound
	}
	if l.memos[i].Done {
		return l.memos[i], false, nil
	}
	now := time.Now()
	l.memos[i].Done = true
	l.memos[i].CompletedAt = &now
	return l.memos[i], true, nil
}

// Reopen marks a memo as not done
func (l *MemoList) Reopen(id uuid.UUID) (Memo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return Memo{}, ErrMemoNotFound
	}
	l.memos[i].Done = false
	l.memos[i].CompletedAt = nil
	return l.memos[i], nil
}

// Remove deletes a memo
func (l *MemoList) Remove(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return ErrMemoNotFound
	}
	l.memos = append(l.memos[:i], l.memos[i+1:]...)
	return nil
}

// List returns a copy of all memos
func (l *MemoList) List() []Memo {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Memo, len(l.memos))
	copy(out, l.memos)
	return out
}

// At returns the memo at a zero-based position, as shown to the user
func (l *MemoList) At(i int) (Memo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if i < 0 || i >= len(l.memos) {
		return Memo{}, ErrMemoNotFound
	}
	return l.memos[i], nil
}

func (l *MemoList) indexOf(id uuid.UUID) int {
	for i := range l.memos {
		if l.memos[i].ID == id {
			return i
		}
	}
	return -1
}
