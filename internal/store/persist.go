package store

import (
	"context"
	"encoding/json"

	"github.com/spf13/cast"
	"gitlab.com/dirk.krummacker/keepintouch/internal/model"
	"go.uber.org/zap"
)

// Keys of the records the store keeps besides one record per contact id.
const (
	KeyContactIDs   = "professionalContactIDs"
	KeyRecents      = "cache.recents"
	KeyContactSoons = "cache.contactSoons"
)

// step is one write against the backend.
type step func(ctx context.Context) error

// persist runs the steps in order and stops at the first failure. Earlier steps are not undone.
func (s *Store) persist(ctx context.Context, steps ...step) error {
	for _, st := range steps {
		if st == nil {
			continue
		}
		if err := st(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) saveContact(c model.Contact) step {
	return func(ctx context.Context) error {
		return s.setJSON(ctx, c.ID, s.records.ToRecord(c))
	}
}

func (s *Store) saveIDs(ctx context.Context) error {
	ids := make([]string, 0, len(s.contacts))
	for _, c := range s.contacts {
		ids = append(ids, c.ID)
	}
	return s.setJSON(ctx, KeyContactIDs, ids)
}

func (s *Store) saveRecents(ctx context.Context) error {
	return s.setJSON(ctx, KeyRecents, s.recents.IDs())
}

func (s *Store) saveContactSoons(ctx context.Context) error {
	return s.setJSON(ctx, KeyContactSoons, s.contactSoons)
}

func (s *Store) deleteKey(key string) step {
	return func(ctx context.Context) error {
		if err := s.backend.Delete(ctx, key); err != nil {
			return &PersistenceError{Op: "delete", Key: key, Err: err}
		}
		return nil
	}
}

func (s *Store) setJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return &PersistenceError{Op: "set", Key: key, Err: err}
	}
	if err := s.backend.Set(ctx, key, string(data)); err != nil {
		return &PersistenceError{Op: "set", Key: key, Err: err}
	}
	return nil
}

// readIDs reads a JSON list of ids. A missing key yields an empty list; a malformed value is
// logged and treated as missing.
func (s *Store) readIDs(ctx context.Context, key string) ([]string, error) {
	raw, ok, err := s.backend.Get(ctx, key)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Key: key, Err: err}
	}
	if !ok || raw == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		s.logger.Warn("Ignoring malformed id list", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	return ids, nil
}

// readRecord reads the field dictionary of one contact. Values that are not strings in the
// stored JSON, such as legacy booleans, are converted to their string form; values that cannot
// be converted are dropped so that the field falls back to its default.
func (s *Store) readRecord(ctx context.Context, id string) (map[string]string, error) {
	raw, ok, err := s.backend.Get(ctx, id)
	if err != nil {
		return nil, &PersistenceError{Op: "get", Key: id, Err: err}
	}
	record := map[string]string{}
	if !ok || raw == "" {
		s.logger.Warn("Contact record missing, using defaults", zap.String("id", id))
		return record, nil
	}
	var loose map[string]any
	if err := json.Unmarshal([]byte(raw), &loose); err != nil {
		s.logger.Warn("Ignoring malformed contact record", zap.String("id", id), zap.Error(err))
		return record, nil
	}
	for key, value := range loose {
		if value == nil {
			continue
		}
		if str, err := cast.ToStringE(value); err == nil {
			record[key] = str
		}
	}
	return record, nil
}
