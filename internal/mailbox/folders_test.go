package mailbox

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/emersion/go-imap/v2"
)

// fakeSession is an in-memory IMAPSession that records the commands
// issued to it, in order.
type fakeSession struct {
	folders  []string
	messages map[imap.UID][]byte

	selectErr error
	searchErr error
	fetchErr  map[imap.UID]error
	copyErr   error
	storeErr  error

	calls  []string
	closed bool
}

func (f *fakeSession) Select(folder string) error {
	f.calls = append(f.calls, "select "+folder)
	return f.selectErr
}

func (f *fakeSession) SearchUIDs(criteria *imap.SearchCriteria) ([]imap.UID, error) {
	f.calls = append(f.calls, "search")
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	uids := make([]imap.UID, 0, len(f.messages))
	for uid := range f.messages {
		uids = append(uids, uid)
	}
	return uids, nil
}

func (f *fakeSession) FetchRaw(uid imap.UID) ([]byte, error) {
	f.calls = append(f.calls, fmt.Sprintf("fetch %d", uid))
	if err := f.fetchErr[uid]; err != nil {
		return nil, err
	}
	raw, ok := f.messages[uid]
	if !ok {
		return nil, fmt.Errorf("message uid %d not found", uid)
	}
	return raw, nil
}

func (f *fakeSession) ListFolders() ([]string, error) {
	f.calls = append(f.calls, "list")
	return f.folders, nil
}

func (f *fakeSession) CopyTo(uid imap.UID, folder string) error {
	f.calls = append(f.calls, fmt.Sprintf("copy %d %s", uid, folder))
	return f.copyErr
}

func (f *fakeSession) MarkDeleted(uid imap.UID) error {
	f.calls = append(f.calls, fmt.Sprintf("store %d", uid))
	return f.storeErr
}

func (f *fakeSession) Expunge() error {
	f.calls = append(f.calls, "expunge")
	return nil
}

func (f *fakeSession) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSession) issued(prefix string) bool {
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			return true
		}
	}
	return false
}

func TestFolders_List(t *testing.T) {
	s := &fakeSession{folders: []string{"INBOX", "Sent", "Archive"}}

	got, err := NewFolders(testLogger()).List(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 3 || got[0] != "INBOX" || got[2] != "Archive" {
		t.Errorf("expected server folder order preserved, got %v", got)
	}
}

func TestFolders_Move(t *testing.T) {
	s := &fakeSession{folders: []string{"INBOX", "Archive"}}

	err := NewFolders(testLogger()).Move(s, "INBOX", 42, "Archive")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []string{"list", "select INBOX", "copy 42 Archive", "store 42", "expunge"}
	if len(s.calls) != len(want) {
		t.Fatalf("expected calls %v, got %v", want, s.calls)
	}
	for i, c := range want {
		if s.calls[i] != c {
			t.Errorf("call %d: expected %q, got %q", i, c, s.calls[i])
		}
	}
}

func TestFolders_MoveUnknownTarget(t *testing.T) {
	s := &fakeSession{folders: []string{"INBOX", "Archive"}}

	err := NewFolders(testLogger()).Move(s, "INBOX", 42, "Nonexistent")
	if !IsMoveError(err) {
		t.Fatalf("expected MoveError, got %T: %v", err, err)
	}
	if s.issued("copy") {
		t.Error("no copy may be issued for an unknown target folder")
	}
	if s.issued("store") || s.issued("expunge") {
		t.Error("no mutation may be issued for an unknown target folder")
	}
}

func TestFolders_MoveCopyFailureKeepsSource(t *testing.T) {
	s := &fakeSession{
		folders: []string{"INBOX", "Archive"},
		copyErr: errors.New("quota exceeded"),
	}

	err := NewFolders(testLogger()).Move(s, "INBOX", 7, "Archive")
	if !IsMoveError(err) {
		t.Fatalf("expected MoveError, got %T: %v", err, err)
	}

	var me *MoveError
	errors.As(err, &me)
	if me.Copied {
		t.Error("MoveError.Copied must be false when the copy itself failed")
	}
	if s.issued("store") || s.issued("expunge") {
		t.Error("source must not be deleted after a failed copy")
	}
}

func TestFolders_MoveStoreFailureReportsCopied(t *testing.T) {
	s := &fakeSession{
		folders:  []string{"INBOX", "Archive"},
		storeErr: errors.New("connection reset"),
	}

	err := NewFolders(testLogger()).Move(s, "INBOX", 7, "Archive")
	if !IsMoveError(err) {
		t.Fatalf("expected MoveError, got %T: %v", err, err)
	}

	var me *MoveError
	errors.As(err, &me)
	if !me.Copied {
		t.Error("MoveError.Copied must be true once the copy succeeded")
	}
	if s.issued("expunge") {
		t.Error("expunge must not run when flagging failed")
	}
}
