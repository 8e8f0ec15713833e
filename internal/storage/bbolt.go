package storage

import (
	"fmt"
	"time"

	"walkie/internal/models"

	"go.etcd.io/bbolt"
)

var (
	bucketUsers     = []byte("users")
	bucketMessages  = []byte("messages")
	bucketMsgIndex  = []byte("message_index")
	bucketPushSubs  = []byte("push_subscriptions")
	indexKeySepByte = byte(0)
)

// ErrDuplicateID is returned by AppendMessage when a message with the same
// messageId is already stored. The log is append-only and ids are unique.
var ErrDuplicateID = fmt.Errorf("duplicate messageId")

type BboltStorage struct {
	db *bbolt.DB
}

func NewBboltStorage(path string) (*BboltStorage, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bbolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketUsers); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMessages); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMsgIndex); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketPushSubs); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create buckets: %w", err)
	}

	return &BboltStorage{db: db}, nil
}

func (s *BboltStorage) Close() error {
	return s.db.Close()
}

// AppendMessage adds the message to the end of its room's log. The bbolt
// update transaction makes the append atomic: readers never observe a
// partial write, and the index stays in step with the log.
func (s *BboltStorage) AppendMessage(message models.Message) error {
	if message.Room == "" || message.MessageID == "" {
		return fmt.Errorf("message missing room or messageId")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketMsgIndex)
		if idx.Get([]byte(message.MessageID)) != nil {
			return fmt.Errorf("%w: %s", ErrDuplicateID, message.MessageID)
		}

		roomBucket, err := tx.Bucket(bucketMessages).CreateBucketIfNotExists([]byte(message.Room))
		if err != nil {
			return fmt.Errorf("failed to create room bucket: %w", err)
		}

		seq, err := roomBucket.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		dbMessage := toDBMessage(message, seq)
		data, err := dbMessage.MarshalBinary()
		if err != nil {
			return fmt.Errorf("failed to marshal message: %w", err)
		}

		if err := roomBucket.Put(dbMessage.Key(), data); err != nil {
			return fmt.Errorf("failed to put message: %w", err)
		}

		// Index messageId -> room + separator + seq key so deletion is a
		// point lookup instead of a full scan.
		ref := make([]byte, 0, len(message.Room)+9)
		ref = append(ref, message.Room...)
		ref = append(ref, indexKeySepByte)
		ref = append(ref, dbMessage.Key()...)
		return idx.Put([]byte(message.MessageID), ref)
	})
}

// ListMessages returns all messages of the room in stored (insertion)
// order. Returns an empty slice for unknown rooms.
func (s *BboltStorage) ListMessages(room string) ([]models.Message, error) {
	var messages []models.Message
	err := s.db.View(func(tx *bbolt.Tx) error {
		roomBucket := tx.Bucket(bucketMessages).Bucket([]byte(room))
		if roomBucket == nil {
			return nil
		}
		return roomBucket.ForEach(func(k, v []byte) error {
			var dbMsg DBMessage
			if err := dbMsg.UnmarshalBinary(v); err != nil {
				return err
			}
			messages = append(messages, fromDBMessage(dbMsg))
			return nil
		})
	})
	return messages, err
}

// DeleteMessage removes the message with the given id. Deleting an unknown
// id is a no-op, not an error: deletion is idempotent.
func (s *BboltStorage) DeleteMessage(messageID string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		idx := tx.Bucket(bucketMsgIndex)
		ref := idx.Get([]byte(messageID))
		if ref == nil {
			return nil
		}

		// The seq key is always exactly 8 bytes and may itself contain
		// zero bytes, so the ref is split positionally, not by searching
		// for the separator.
		if len(ref) < 9 || ref[len(ref)-9] != indexKeySepByte {
			return fmt.Errorf("corrupt index entry for messageId %s", messageID)
		}
		room, seqKey := ref[:len(ref)-9], ref[len(ref)-8:]

		if roomBucket := tx.Bucket(bucketMessages).Bucket(room); roomBucket != nil {
			if err := roomBucket.Delete(seqKey); err != nil {
				return err
			}
		}
		return idx.Delete([]byte(messageID))
	})
}

// ClearMessages empties the entire message log across all rooms.
func (s *BboltStorage) ClearMessages() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		msgBucket := tx.Bucket(bucketMessages)

		var rooms [][]byte
		err := msgBucket.ForEachBucket(func(name []byte) error {
			rooms = append(rooms, append([]byte(nil), name...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, room := range rooms {
			if err := msgBucket.DeleteBucket(room); err != nil {
				return err
			}
		}

		if err := tx.DeleteBucket(bucketMsgIndex); err != nil {
			return err
		}
		_, err = tx.CreateBucket(bucketMsgIndex)
		return err
	})
}

func toDBMessage(m models.Message, seq uint64) DBMessage {
	dbMsg := DBMessage{
		Seq:       seq,
		MessageID: m.MessageID,
		Username:  m.Username,
		Room:      m.Room,
		Time:      m.Time,
		Color:     m.Color,
		Text:      m.Text,
	}
	if m.File != nil {
		dbMsg.File = &DBFileInfo{
			Name:     m.File.Name,
			Path:     m.File.Path,
			Size:     m.File.Size,
			Mimetype: m.File.Mimetype,
		}
	}
	return dbMsg
}

func fromDBMessage(dbMsg DBMessage) models.Message {
	msg := models.Message{
		MessageID: dbMsg.MessageID,
		Username:  dbMsg.Username,
		Room:      dbMsg.Room,
		Time:      dbMsg.Time,
		Color:     dbMsg.Color,
		Text:      dbMsg.Text,
	}
	if dbMsg.File != nil {
		msg.File = &models.FileInfo{
			Name:     dbMsg.File.Name,
			Path:     dbMsg.File.Path,
			Size:     dbMsg.File.Size,
			Mimetype: dbMsg.File.Mimetype,
		}
	}
	return msg
}
