package protocol

import (
	"encoding/json"

	"github.com/dkeye/Lounge/internal/domain"
)

// Constructors for patches, used by the fake server in tests and by the
// snapshot replay path.

func mustRaw(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

func Field(name string, v any) FieldPatch {
	return FieldPatch{Field: name, Value: mustRaw(v)}
}

func AddPlayer(p domain.Player) Patch {
	return Patch{Collection: Players, Op: OpAdd, Key: string(p.SessionID), Value: mustRaw(p)}
}

func RemovePlayer(sid domain.SessionID) Patch {
	return Patch{Collection: Players, Op: OpRemove, Key: string(sid)}
}

func ChangePlayer(sid domain.SessionID, fields ...FieldPatch) Patch {
	return Patch{Collection: Players, Op: OpChange, Key: string(sid), Fields: fields}
}

func AddTable(t domain.Table) Patch {
	return Patch{Collection: Tables, Op: OpAdd, Key: string(t.ID), Value: mustRaw(t)}
}

func RemoveTable(id domain.TableID) Patch {
	return Patch{Collection: Tables, Op: OpRemove, Key: string(id)}
}

func Seat(table domain.TableID, sid domain.SessionID) Patch {
	return Patch{Collection: Tables, Op: OpAdd, Key: string(table), Path: PathConnectedUsers, Value: mustRaw(sid)}
}

func Unseat(table domain.TableID, sid domain.SessionID) Patch {
	return Patch{Collection: Tables, Op: OpRemove, Key: string(table), Path: PathConnectedUsers, Value: mustRaw(sid)}
}

func AddChair(c domain.Chair) Patch {
	return Patch{Collection: Chairs, Op: OpAdd, Key: string(c.ID), Value: mustRaw(c)}
}

func AddChat(m domain.ChatMessage) Patch {
	return Patch{Collection: ChatMessages, Op: OpAdd, Value: mustRaw(m)}
}
