package disk

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kfscore/pkg/buffer"
)

type fakeConn struct {
	mu   sync.Mutex
	done []*Event
	errs []error
}

func (f *fakeConn) HandleDone(e *Event, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done = append(f.done, e)
	f.errs = append(f.errs, err)
}

func (f *fakeConn) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.done)
}

func waitFor(t *testing.T, cond func() bool) {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for condition")
}

func tempFile(t *testing.T, contents string) *os.File {
	f, err := os.CreateTemp(t.TempDir(), "disktest")
	require.NoError(t, err)
	if contents != "" {
		_, err = f.WriteString(contents)
		require.NoError(t, err)
	}
	return f
}

func TestManagerWriteThenRead(t *testing.T) {
	f := tempFile(t, "")
	defer f.Close()

	mgr := NewManager(2, 0)
	defer mgr.Close()
	conn := &fakeConn{}

	wb := buffer.New(16)
	wb.CopyIn([]byte("hello, disk!"), 12)

	_, err := mgr.Write(conn, int(f.Fd()), wb, 0, 12)
	require.NoError(t, err)

	waitFor(t, func() bool {
		mgr.Timeout()
		return conn.count() == 1
	})
	require.NoError(t, conn.errs[0])
	assert.Equal(t, 12, conn.done[0].Retval())
	assert.Equal(t, StatusDone, conn.done[0].Status())

	conn2 := &fakeConn{}
	rb := buffer.New(16)
	_, err = mgr.Read(conn2, int(f.Fd()), rb, 0, 12)
	require.NoError(t, err)

	waitFor(t, func() bool {
		mgr.Timeout()
		return conn2.count() == 1
	})
	require.NoError(t, conn2.errs[0])
	assert.Equal(t, 12, rb.BytesConsumable())

	got := make([]byte, 12)
	rb.CopyOut(got, 12)
	assert.Equal(t, "hello, disk!", string(got))
}

func TestManagerReadPreconditionViolation(t *testing.T) {
	mgr := NewManager(1, 0)
	defer mgr.Close()
	conn := &fakeConn{}

	b := buffer.New(4)
	_, err := mgr.Read(conn, 0, b, 0, 8)
	assert.Error(t, err)
}

func TestManagerCancelSuppressesCallback(t *testing.T) {
	f := tempFile(t, "xyz")
	defer f.Close()

	mgr := NewManager(1, 0)
	defer mgr.Close()
	conn := &fakeConn{}

	b := buffer.New(4)
	event, err := mgr.Read(conn, int(f.Fd()), b, 0, 3)
	require.NoError(t, err)
	event.Cancel()

	// Give the worker time to actually finish the syscall, then drain.
	time.Sleep(20 * time.Millisecond)
	mgr.Timeout()
	mgr.Timeout()

	assert.Equal(t, 0, conn.count())
	assert.Equal(t, 0, mgr.Outstanding())
}

func TestManagerSyncCollapsesConcurrentCallers(t *testing.T) {
	f := tempFile(t, "abc")
	defer f.Close()

	mgr := NewManager(2, 0)
	defer mgr.Close()
	conn := &fakeConn{}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Sync(conn, int(f.Fd()))
			assert.NoError(t, err)
		}()
	}

	waitFor(t, func() bool {
		mgr.Timeout()
		return conn.count() >= 1
	})
	wg.Wait()
}

func TestManagerDispatchesCompletionsInSubmissionOrder(t *testing.T) {
	mgr := NewManager(1, 10)
	defer mgr.Close()
	conn := &fakeConn{}

	eventA := &Event{ID: uuid.New(), Op: OpSync, Fd: 1, Conn: conn}
	eventB := &Event{ID: uuid.New(), Op: OpSync, Fd: 2, Conn: conn}

	mgr.mu.Lock()
	mgr.elemOf[eventA] = mgr.inFlight.PushBack(eventA)
	mgr.elemOf[eventB] = mgr.inFlight.PushBack(eventB)
	mgr.mu.Unlock()

	// B's worker finishes first, so its completion lands on the channel
	// ahead of A's even though A was submitted first.
	mgr.completed <- completion{event: eventB}
	mgr.completed <- completion{event: eventA}

	mgr.Timeout()

	require.Equal(t, 2, conn.count())
	assert.Same(t, eventA, conn.done[0])
	assert.Same(t, eventB, conn.done[1])
}

func TestManagerSubmissionRefusedWhenFull(t *testing.T) {
	mgr := NewManager(1, 1)
	defer mgr.Close()
	conn := &fakeConn{}

	f := tempFile(t, "z")
	defer f.Close()

	b := buffer.New(4)
	_, err := mgr.Write(conn, int(f.Fd()), b, 0, 0)
	require.NoError(t, err)

	_, err = mgr.Write(conn, int(f.Fd()), b, 0, 0)
	assert.Error(t, err)
}
