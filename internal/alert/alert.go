package alert

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Alert es una alerta visible hasta ExpiresAt.
type Alert struct {
	ID        string
	Title     string
	Message   string
	ShownAt   time.Time
	ExpiresAt time.Time
}

// Board mantiene las alertas visibles; cada una se cierra sola al vencer su duracion.
type Board struct {
	maxDuration time.Duration

	mu     sync.Mutex
	active []Alert
	timers map[string]*time.Timer
}

func NewBoard(maxDuration time.Duration) *Board {
	if maxDuration <= 0 {
		maxDuration = 30 * time.Second
	}
	return &Board{
		maxDuration: maxDuration,
		timers:      make(map[string]*time.Timer),
	}
}

func (b *Board) Show(title, message string, duration time.Duration) {
	if duration <= 0 || duration > b.maxDuration {
		duration = b.maxDuration
	}
	now := time.Now()
	a := Alert{
		ID:        uuid.NewString(),
		Title:     title,
		Message:   message,
		ShownAt:   now,
		ExpiresAt: now.Add(duration),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.active = append(b.active, a)
	b.timers[a.ID] = time.AfterFunc(duration, func() { b.Dismiss(a.ID) })
}

// Dismiss cierra una alerta antes de tiempo; ids desconocidos se ignoran.
func (b *Board) Dismiss(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.timers[id]; ok {
		t.Stop()
		delete(b.timers, id)
	}
	for i, a := range b.active {
		if a.ID == id {
			b.active = append(b.active[:i], b.active[i+1:]...)
			return
		}
	}
}

// Active devuelve las alertas visibles, la mas vieja primero.
func (b *Board) Active() []Alert {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Alert, len(b.active))
	copy(out, b.active)
	return out
}

// Close detiene los timers pendientes y vacia el tablero.
func (b *Board) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, t := range b.timers {
		t.Stop()
		delete(b.timers, id)
	}
	b.active = nil
}

// Logger escribe cada alerta en el log.
type Logger struct {
	logger *zap.Logger
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger}
}

func (l *Logger) Show(title, message string, duration time.Duration) {
	l.logger.Info("alert",
		zap.String("title", title),
		zap.String("message", message),
		zap.Duration("duration", duration),
	)
}

// Surface es cualquier destino de alertas.
type Surface interface {
	Show(title, message string, duration time.Duration)
}

// Multi reenvia cada alerta a todas las superficies.
type Multi []Surface

func (m Multi) Show(title, message string, duration time.Duration) {
	for _, s := range m {
		if s != nil {
			s.Show(title, message, duration)
		}
	}
}
