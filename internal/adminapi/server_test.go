package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mossraft/raftcore/internal/node"
	"github.com/mossraft/raftcore/internal/statemachine"
	"github.com/mossraft/raftcore/raft"
)

type fakeHandler struct {
	status  node.Status
	sm      *statemachine.KV
	err     error
	result  *raft.EntryResult
	lastReq raft.Entry
}

func (f *fakeHandler) Status() node.Status                    { return f.status }
func (f *fakeHandler) StateMachine() *statemachine.KV          { return f.sm }
func (f *fakeHandler) Submit(e raft.Entry) (*raft.EntryResult, error) {
	f.lastReq = e
	return f.result, f.err
}

func TestStatusEndpoint(t *testing.T) {
	leader := raft.NodeID(1)
	h := &fakeHandler{status: node.Status{SelfID: 1, Role: raft.Leader, Term: 4, Leader: &leader}, sm: statemachine.New()}
	srv := httptest.NewServer(New(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Term != 4 || body.Role != "leader" || body.Leader == nil || *body.Leader != 1 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestSubmitNotLeaderReturnsConflict(t *testing.T) {
	h := &fakeHandler{sm: statemachine.New(), err: raft.ErrNotLeader}
	srv := httptest.NewServer(New(h))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/entries", "application/json", strings.NewReader(`{"op":"set","key":"a","value":"b"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
}

func TestGetMissingKeyReturnsNotFound(t *testing.T) {
	h := &fakeHandler{sm: statemachine.New()}
	srv := httptest.NewServer(New(h))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/entries/missing")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}
