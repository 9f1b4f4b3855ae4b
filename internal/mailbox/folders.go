package mailbox

import (
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"
)

// Folders lists mailbox folders and relocates messages between them.
// The server's own folder namespace is authoritative; folder names are
// never invented, only validated against what the server reports.
type Folders struct {
	log *slog.Logger
}

// NewFolders creates the folder operations component.
func NewFolders(logger *slog.Logger) *Folders {
	return &Folders{log: logger}
}

// List returns the folder names the server reports, in server order.
func (f *Folders) List(s IMAPSession) ([]string, error) {
	return s.ListFolders()
}

// Move relocates one message from source to target using the IMAP
// copy, delete-flag, expunge idiom. The target must already exist on
// the server; nothing is issued otherwise. The source copy is never
// deleted until the server confirms the copy, so a failed copy cannot
// lose the message.
//
// Semantics are at-least-once: a crash after the copy succeeds but
// before the expunge completes can leave the message in both folders.
func (f *Folders) Move(s IMAPSession, source string, uid imap.UID, target string) error {
	folders, err := s.ListFolders()
	if err != nil {
		return &MoveError{UID: uint32(uid), Target: target, Err: err}
	}

	known := false
	for _, name := range folders {
		if name == target {
			known = true
			break
		}
	}
	if !known {
		f.log.Error("move target folder does not exist",
			"target", target, "uid", uint32(uid))
		return &MoveError{
			UID:    uint32(uid),
			Target: target,
			Err:    fmt.Errorf("folder %q not found on server", target),
		}
	}

	if err := s.Select(source); err != nil {
		return &MoveError{UID: uint32(uid), Target: target, Err: err}
	}

	if err := s.CopyTo(uid, target); err != nil {
		f.log.Error("copy failed, source message left intact",
			"target", target, "uid", uint32(uid), "error", err)
		return &MoveError{UID: uint32(uid), Target: target, Err: err}
	}

	if err := s.MarkDeleted(uid); err != nil {
		return &MoveError{UID: uint32(uid), Target: target, Copied: true, Err: err}
	}
	if err := s.Expunge(); err != nil {
		return &MoveError{UID: uint32(uid), Target: target, Copied: true, Err: err}
	}

	f.log.Info("moved message",
		"source", source, "target", target, "uid", uint32(uid))
	return nil
}
