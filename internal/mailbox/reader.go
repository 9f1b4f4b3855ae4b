package mailbox

import (
	"fmt"
	"log/slog"

	"github.com/emersion/go-imap/v2"
)

// Reader retrieves and decodes messages from a selected folder.
//
// Identifier discipline: the reader searches and fetches by UID only.
// Sequence numbers are not stable across operations that mutate the
// mailbox (an expunge between search and fetch invalidates them), so
// they are never used.
type Reader struct {
	dec *Decoder
	log *slog.Logger
}

// NewReader creates a Reader decoding messages with dec.
func NewReader(dec *Decoder, logger *slog.Logger) *Reader {
	return &Reader{dec: dec, log: logger}
}

// ConversationCriteria builds the search criteria for all messages
// exchanged with one contact: OR (FROM contact) (TO contact).
func ConversationCriteria(contact string) *imap.SearchCriteria {
	criteria := &imap.SearchCriteria{}
	criteria.Or = append(criteria.Or, [2]imap.SearchCriteria{
		{Header: []imap.SearchCriteriaHeaderField{{Key: "From", Value: contact}}},
		{Header: []imap.SearchCriteriaHeaderField{{Key: "To", Value: contact}}},
	})
	return criteria
}

// Fetch selects folder, searches with criteria (nil means all
// messages), and fetches and decodes every match. A message whose
// fetch or decode fails is logged and skipped; partial success is the
// expected mode on flaky connections. Only folder selection and the
// search itself are fatal to the call.
func (r *Reader) Fetch(
	s IMAPSession,
	folder string,
	criteria *imap.SearchCriteria,
) ([]MessageRecord, error) {
	if err := s.Select(folder); err != nil {
		return nil, fmt.Errorf("fetching from %q: %w", folder, err)
	}

	uids, err := s.SearchUIDs(criteria)
	if err != nil {
		return nil, fmt.Errorf("fetching from %q: %w", folder, err)
	}

	records := make([]MessageRecord, 0, len(uids))
	for _, uid := range uids {
		raw, err := s.FetchRaw(uid)
		if err != nil {
			r.log.Warn("skipping message",
				"folder", folder,
				"error", &FetchError{UID: uint32(uid), Err: err})
			continue
		}

		rec, err := r.dec.Decode(raw)
		if err != nil {
			r.log.Warn("skipping undecodable message",
				"folder", folder,
				"error", &FetchError{UID: uint32(uid), Err: err})
			continue
		}
		rec.UID = uint32(uid)
		records = append(records, *rec)
	}

	r.log.Info("fetched messages",
		"folder", folder,
		"matched", len(uids),
		"decoded", len(records),
	)
	return records, nil
}

// FetchConversation fetches the message history exchanged with one
// contact address in the given folder.
func (r *Reader) FetchConversation(
	s IMAPSession,
	folder, contact string,
) ([]MessageRecord, error) {
	return r.Fetch(s, folder, ConversationCriteria(contact))
}
