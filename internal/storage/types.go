package storage

import (
	"encoding"
	"encoding/binary"

	"github.com/vmihailenco/msgpack/v5"
)

type Storeable interface {
	Key() []byte
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

type DBMessage struct {
	Seq       uint64      `msgpack:"seq"`
	MessageID string      `msgpack:"messageId"`
	Username  string      `msgpack:"username"`
	Room      string      `msgpack:"room"`
	Time      string      `msgpack:"time"`
	Color     string      `msgpack:"color"`
	Text      string      `msgpack:"text"`
	File      *DBFileInfo `msgpack:"file"`
}

type DBFileInfo struct {
	Name     string `msgpack:"name"`
	Path     string `msgpack:"path"`
	Size     int64  `msgpack:"size"`
	Mimetype string `msgpack:"mimetype"`
}

// Key is the message's position in its room bucket: the big-endian append
// sequence, so cursor order is insertion order.
func (m *DBMessage) Key() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, m.Seq)
	return key
}

func (m *DBMessage) MarshalBinary() (data []byte, err error) {
	type alias DBMessage
	return msgpack.Marshal((*alias)(m))
}

func (m *DBMessage) UnmarshalBinary(data []byte) error {
	type alias DBMessage
	return msgpack.Unmarshal(data, (*alias)(m))
}

type DBUser struct {
	Username     string `msgpack:"username"`
	PasswordHash string `msgpack:"passwordHash"`
	RegisteredAt string `msgpack:"registeredAt"`
}

func (u *DBUser) Key() []byte {
	return []byte(u.Username)
}

func (u *DBUser) MarshalBinary() (data []byte, err error) {
	type alias DBUser
	return msgpack.Marshal((*alias)(u))
}

func (u *DBUser) UnmarshalBinary(data []byte) error {
	type alias DBUser
	return msgpack.Unmarshal(data, (*alias)(u))
}

// DBPushSubscription stores one Web Push subscription. Subscription holds
// the browser-provided subscription JSON verbatim.
type DBPushSubscription struct {
	Username     string `msgpack:"username"`
	Endpoint     string `msgpack:"endpoint"`
	Subscription []byte `msgpack:"subscription"`
	CreatedAt    int64  `msgpack:"createdAt"`
}

func (p *DBPushSubscription) Key() []byte {
	return []byte(p.Endpoint)
}

func (p *DBPushSubscription) MarshalBinary() (data []byte, err error) {
	type alias DBPushSubscription
	return msgpack.Marshal((*alias)(p))
}

func (p *DBPushSubscription) UnmarshalBinary(data []byte) error {
	type alias DBPushSubscription
	return msgpack.Unmarshal(data, (*alias)(p))
}
