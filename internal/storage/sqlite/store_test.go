package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"tasklist/internal/auth"
	"tasklist/internal/models"
)

func TestMain(m *testing.M) {
	auth.Cost = bcrypt.MinCost
	os.Exit(m.Run())
}

// testClock is a settable clock shared by a store under test.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// newTestHandle opens a store in a temp dir and acquires one handle on it.
func newTestHandle(t *testing.T) (*Handle, *Store, *testClock) {
	t.Helper()

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	store, err := Open(Options{
		Path:       filepath.Join(t.TempDir(), "test.db"),
		SessionTTL: time.Hour,
		Now:        clock.Now,
	}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	h, err := store.Acquire(context.Background())
	if err != nil {
		store.Close()
		t.Fatalf("Acquire: %v", err)
	}
	t.Cleanup(func() {
		h.Release()
		store.Close()
	})
	return h, store, clock
}

func mustRegister(t *testing.T, h *Handle, username string) models.Account {
	t.Helper()
	acc, err := h.Register(context.Background(), username, "secret")
	if err != nil {
		t.Fatalf("Register(%q): %v", username, err)
	}
	return acc
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	if _, err := Open(Options{}, nil); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestOpenCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "tasks.db")
	store, err := Open(Options{Path: path}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("parent dir not created: %v", err)
	}
}

func TestOpenInMemory(t *testing.T) {
	store, err := Open(Options{Path: ":memory:"}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	h, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()

	if _, err := h.Register(context.Background(), "mem", "pw"); err != nil {
		t.Fatalf("Register: %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks.db")
	ctx := context.Background()

	store, err := Open(Options{Path: path}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	h, err := store.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	acc, err := h.Register(ctx, "ana", "secret")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	h.Release()
	store.Close()

	store, err = Open(Options{Path: path}, nil)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer store.Close()
	h, err = store.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer h.Release()

	got, ok, err := h.Verify(ctx, "ana", "secret")
	if err != nil || !ok {
		t.Fatalf("Verify after reopen: ok=%v err=%v", ok, err)
	}
	if got.ID != acc.ID {
		t.Errorf("ID = %d, want %d", got.ID, acc.ID)
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	_, store, _ := newTestHandle(t)

	h, err := store.Acquire(context.Background())
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("first Release: %v", err)
	}
	if err := h.Release(); err != nil {
		t.Fatalf("second Release: %v", err)
	}
	if err := h.Ping(context.Background()); err == nil {
		t.Error("expected error using a released handle")
	}
}

func TestReleaseReturnsConnectionToPool(t *testing.T) {
	store, err := Open(Options{Path: filepath.Join(t.TempDir(), "pool.db"), MaxOpenConns: 1}, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	for i := 0; i < 3; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		h, err := store.Acquire(ctx)
		if err != nil {
			cancel()
			t.Fatalf("Acquire %d: %v", i, err)
		}
		if err := h.Ping(ctx); err != nil {
			t.Errorf("Ping %d: %v", i, err)
		}
		h.Release()
		cancel()
	}
}

func TestWithTxRollsBackPartialWrite(t *testing.T) {
	h, _, clock := newTestHandle(t)
	ctx := context.Background()
	acc := mustRegister(t, h, "ana")

	var insertedID int64
	errAbort := errors.New("abort after insert")
	err := h.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO tasks(owner_id, title, description, completed, created_at) VALUES(?, ?, '', 0, ?)`,
			acc.ID, "half written", formatTime(clock.Now()))
		if err != nil {
			return err
		}
		if insertedID, err = res.LastInsertId(); err != nil {
			return err
		}
		if _, ok, err := getOwned(ctx, tx, acc.ID, insertedID); err != nil || !ok {
			return fmt.Errorf("row not visible inside tx: ok=%v err=%v", ok, err)
		}
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("withTx err = %v, want %v", err, errAbort)
	}

	if _, ok, err := h.GetOwnedTask(ctx, acc.ID, insertedID); ok || err != nil {
		t.Errorf("GetOwnedTask after rollback: ok=%v err=%v", ok, err)
	}
	tasks, err := h.ListTasks(ctx, acc.ID)
	if err != nil {
		t.Fatalf("ListTasks: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("rolled back insert left %d tasks", len(tasks))
	}

	// the connection is usable again once the failed tx is gone
	if _, err := h.CreateTask(ctx, acc.ID, "after rollback", ""); err != nil {
		t.Errorf("CreateTask after rollback: %v", err)
	}
}

func TestTimeRoundTripKeepsOrder(t *testing.T) {
	early := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(500 * time.Millisecond)

	a, b := formatTime(early), formatTime(late)
	if !(a < b) {
		t.Errorf("lexical order broken: %q !< %q", a, b)
	}
	parsed, err := parseTime(b)
	if err != nil {
		t.Fatalf("parseTime: %v", err)
	}
	if !parsed.Equal(late) {
		t.Errorf("round trip = %v, want %v", parsed, late)
	}
}
