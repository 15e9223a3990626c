package notification

import (
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-memdb"
	"go.uber.org/zap"

	"fleetpark/internal/domain"
)

const (
	table = "notifications"

	// DefaultAlertDuration es el tiempo de auto-cierre de las alertas de alta prioridad.
	DefaultAlertDuration = 5 * time.Second
	// MaxAlertDuration acota cualquier duracion configurada.
	MaxAlertDuration = 30 * time.Second
)

var highPriority = map[domain.NotificationType]bool{
	domain.NotifReservationCreated:   true,
	domain.NotifPaymentReceived:      true,
	domain.NotifSystemAlert:          true,
	domain.NotifReservationCancelled: true,
}

// IsHighPriority indica si el tipo dispara ademas una alerta inmediata.
func IsHighPriority(t domain.NotificationType) bool {
	return highPriority[t]
}

// Alerter recibe las notificaciones de alta prioridad.
type Alerter interface {
	Show(title, message string, duration time.Duration)
}

// record es la fila almacenada; Seq fija el orden de insercion.
type record struct {
	ID   string
	Type string
	Read bool
	Seq  uint64

	Notification domain.Notification
}

var schema = &memdb.DBSchema{
	Tables: map[string]*memdb.TableSchema{
		table: {
			Name: table,
			Indexes: map[string]*memdb.IndexSchema{
				"id": {
					Name:    "id",
					Unique:  true,
					Indexer: &memdb.StringFieldIndex{Field: "ID"},
				},
				"type": {
					Name:         "type",
					AllowMissing: true,
					Indexer:      &memdb.StringFieldIndex{Field: "Type"},
				},
				"read": {
					Name:    "read",
					Indexer: &memdb.BoolFieldIndex{Field: "Read"},
				},
			},
		},
	},
}

// Center mantiene la coleccion de notificaciones en memoria, de la mas nueva a la mas vieja.
// Nada se persiste: la coleccion arranca vacia en cada proceso.
type Center struct {
	logger        *zap.Logger
	alerter       Alerter
	alertDuration time.Duration
	now           func() time.Time

	mu  sync.Mutex // serializa escrituras y la asignacion de Seq
	db  *memdb.MemDB
	seq uint64
}

func NewCenter(logger *zap.Logger, alerter Alerter, alertDuration time.Duration) (*Center, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if alertDuration <= 0 {
		alertDuration = DefaultAlertDuration
	}
	if alertDuration > MaxAlertDuration {
		alertDuration = MaxAlertDuration
	}
	db, err := memdb.NewMemDB(schema)
	if err != nil {
		return nil, fmt.Errorf("notification schema: %w", err)
	}
	return &Center{
		logger:        logger,
		alerter:       alerter,
		alertDuration: alertDuration,
		now:           time.Now,
		db:            db,
	}, nil
}

// Add crea la notificacion, la coloca primera y, si es de alta prioridad, la muestra como alerta.
func (c *Center) Add(t domain.NotificationType, title, message, userID string, userRole domain.Role, metadata map[string]any) domain.Notification {
	n := domain.Notification{
		ID:        uuid.NewString(),
		Type:      t,
		Title:     title,
		Message:   message,
		Timestamp: c.now().UTC(),
		UserID:    userID,
		UserRole:  userRole,
		Metadata:  maps.Clone(metadata),
	}

	c.mu.Lock()
	c.seq++
	rec := &record{ID: n.ID, Type: string(n.Type), Seq: c.seq, Notification: n}
	txn := c.db.Txn(true)
	if err := txn.Insert(table, rec); err != nil {
		txn.Abort()
		c.mu.Unlock()
		// Solo falla si el schema no corresponde con record.
		c.logger.Error("insert notification failed", zap.Error(err))
		return clone(n)
	}
	txn.Commit()
	c.mu.Unlock()

	if IsHighPriority(t) && c.alerter != nil {
		c.alerter.Show(title, message, c.alertDuration)
	}
	return clone(n)
}

// MarkAsRead marca una notificacion como leida; ids inexistentes se ignoran.
func (c *Center) MarkAsRead(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txn := c.db.Txn(true)
	defer txn.Abort()
	obj, err := txn.First(table, "id", id)
	if err != nil || obj == nil {
		return
	}
	if c.markRead(txn, obj.(*record)) {
		txn.Commit()
	}
}

func (c *Center) MarkAllAsRead() {
	c.mu.Lock()
	defer c.mu.Unlock()
	txn := c.db.Txn(true)
	defer txn.Abort()
	it, err := txn.Get(table, "read", false)
	if err != nil {
		c.logger.Error("list unread notifications failed", zap.Error(err))
		return
	}
	var unread []*record
	for obj := it.Next(); obj != nil; obj = it.Next() {
		unread = append(unread, obj.(*record))
	}
	changed := false
	for _, rec := range unread {
		if c.markRead(txn, rec) {
			changed = true
		}
	}
	if changed {
		txn.Commit()
	}
}

// markRead reemplaza la fila por una copia leida; memdb no admite mutar objetos ya insertados.
func (c *Center) markRead(txn *memdb.Txn, rec *record) bool {
	if rec.Read {
		return false
	}
	updated := *rec
	updated.Read = true
	updated.Notification.Read = true
	if err := txn.Insert(table, &updated); err != nil {
		c.logger.Error("mark notification read failed", zap.String("id", rec.ID), zap.Error(err))
		return false
	}
	return true
}

// Remove elimina una notificacion; ids inexistentes se ignoran.
func (c *Center) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	txn := c.db.Txn(true)
	defer txn.Abort()
	n, err := txn.DeleteAll(table, "id", id)
	if err != nil || n == 0 {
		return
	}
	txn.Commit()
}

func (c *Center) ClearAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	txn := c.db.Txn(true)
	defer txn.Abort()
	if _, err := txn.DeleteAll(table, "id"); err != nil {
		c.logger.Error("clear notifications failed", zap.Error(err))
		return
	}
	txn.Commit()
}

// List devuelve todas las notificaciones, la mas nueva primero.
func (c *Center) List() []domain.Notification {
	return c.collect("id")
}

// ListByType devuelve las notificaciones del tipo dado respetando el orden de la coleccion.
func (c *Center) ListByType(t domain.NotificationType) []domain.Notification {
	return c.collect("type", string(t))
}

func (c *Center) Get(id string) (domain.Notification, bool) {
	txn := c.db.Txn(false)
	obj, err := txn.First(table, "id", id)
	if err != nil || obj == nil {
		return domain.Notification{}, false
	}
	return clone(obj.(*record).Notification), true
}

// UnreadCount se recalcula siempre desde la coleccion.
func (c *Center) UnreadCount() int {
	txn := c.db.Txn(false)
	it, err := txn.Get(table, "read", false)
	if err != nil {
		c.logger.Error("count unread notifications failed", zap.Error(err))
		return 0
	}
	count := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		count++
	}
	return count
}

func (c *Center) Len() int {
	txn := c.db.Txn(false)
	it, err := txn.Get(table, "id")
	if err != nil {
		return 0
	}
	count := 0
	for obj := it.Next(); obj != nil; obj = it.Next() {
		count++
	}
	return count
}

func (c *Center) collect(index string, args ...any) []domain.Notification {
	txn := c.db.Txn(false)
	it, err := txn.Get(table, index, args...)
	if err != nil {
		c.logger.Error("list notifications failed", zap.String("index", index), zap.Error(err))
		return []domain.Notification{}
	}
	var recs []*record
	for obj := it.Next(); obj != nil; obj = it.Next() {
		recs = append(recs, obj.(*record))
	}
	slices.SortFunc(recs, func(a, b *record) int {
		switch {
		case a.Seq > b.Seq:
			return -1
		case a.Seq < b.Seq:
			return 1
		default:
			return 0
		}
	})
	out := make([]domain.Notification, 0, len(recs))
	for _, rec := range recs {
		out = append(out, clone(rec.Notification))
	}
	return out
}

func clone(n domain.Notification) domain.Notification {
	n.Metadata = maps.Clone(n.Metadata)
	return n
}
