package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

type bufWriter struct {
	strings.Builder
}

func (w *bufWriter) Printf(format string, args ...interface{}) {
	fmt.Fprintf(&w.Builder, format, args...)
}

func TestGormLoggerSkipsRecordNotFound(t *testing.T) {
	w := &bufWriter{}
	l := newGormLogger(w, false)
	query := func() (string, int64) { return "SELECT * FROM devices WHERE mac = 'x'", 0 }

	l.Trace(context.Background(), time.Now(), query, gorm.ErrRecordNotFound)
	assert.Empty(t, w.String())

	l.Trace(context.Background(), time.Now(), query, errors.New("disk I/O error"))
	assert.Contains(t, w.String(), "disk I/O error")
}
