package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mudq/internal/notify"
	"mudq/internal/queue"
	"mudq/internal/world"
	logx "mudq/pkg/logx"
)

type fixture struct {
	srv    *Server
	router http.Handler
	sched  *queue.Scheduler
	store  *world.MemStore
	wizard world.Ref
	alice  world.Ref
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := world.NewMemStore(100)
	notes := notify.New(notify.Config{}, logx.Nop())
	sched := queue.New(queue.Config{}, store,
		world.EvaluatorFunc(func(_, _ world.Ref, _ string, _ []string, _ *world.Registers) error { return nil }),
		notes, logx.Nop())
	f := &fixture{
		store:  store,
		sched:  sched,
		wizard: store.Add(world.Object{Name: "Wiz", Kind: world.KindPlayer, Wizard: true}),
		alice:  store.AddPlayer("Alice", 100),
	}
	f.srv = New(Config{}, sched, store, notes, nil, logx.Nop())
	f.router = f.srv.Router()
	return f
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestListQueues(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.sched.EnqueueNow(f.alice, f.alice, "look", nil, nil)
	require.NoError(t, err)

	rec := f.do(t, http.MethodGet, "/queues?verbosity=summary")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Listing queue.Listing `json:"listing"`
		Totals  string        `json:"totals"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Listing.Player.Matched)
	assert.True(t, strings.HasPrefix(body.Totals, "Totals:"), body.Totals)

	rec = f.do(t, http.MethodGet, "/queues?verbosity=everything")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/queues?owner=1&actor=1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHaltPID(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	pid, err := f.sched.EnqueueAfter(f.alice, f.alice, 60, "later", nil, nil)
	require.NoError(t, err)

	base := "/pids/" + strconv.Itoa(pid) + "/halt"

	rec := f.do(t, http.MethodPost, base)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "missing as")

	bob := f.store.AddPlayer("Bob", 0)
	rec = f.do(t, http.MethodPost, base+"?as="+strconv.Itoa(int(bob)))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(t, http.MethodPost, base+"?as="+strconv.Itoa(int(f.wizard)))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, base+"?as="+strconv.Itoa(int(f.wizard)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestKickAndDequeue(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	_, err := f.sched.EnqueueNow(f.alice, f.alice, "look", nil, nil)
	require.NoError(t, err)

	rec := f.do(t, http.MethodPost, "/dequeue?enabled=false")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.sched.DequeueEnabled())

	rec = f.do(t, http.MethodPost, "/kick?n=5")
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 1, body["ran"])

	rec = f.do(t, http.MethodPost, "/kick?n=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
