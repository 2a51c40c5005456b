package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"gorm.io/gorm"
)

type captureWriter struct {
	lines []string
}

func (w *captureWriter) Printf(format string, args ...interface{}) {
	w.lines = append(w.lines, fmt.Sprintf(format, args...))
}

func TestQueryLoggerSkipsNotFound(t *testing.T) {
	w := &captureWriter{}
	l := newQueryLogger(w)
	sql := func() (string, int64) { return "SELECT * FROM users", 0 }

	l.Trace(context.Background(), time.Now(), sql, gorm.ErrRecordNotFound)
	if len(w.lines) != 0 {
		t.Fatalf("record not found was logged: %v", w.lines)
	}

	l.Trace(context.Background(), time.Now(), sql, errors.New("syntax error"))
	if len(w.lines) != 1 {
		t.Fatalf("query error not logged, got %d lines", len(w.lines))
	}
}

func TestFindUserMissIsSilent(t *testing.T) {
	w := &captureWriter{}
	s := setupTestStore(t)
	s.db = s.db.Session(&gorm.Session{Logger: newQueryLogger(w)})

	if _, err := s.FindUser(context.Background(), 424242); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("FindUser() err = %v", err)
	}
	if len(w.lines) != 0 {
		t.Errorf("miss was logged: %v", w.lines)
	}
}
