package daemon

import (
	"fmt"
	"net"

	"vellum/internal/entry"
	"vellum/internal/protocol"
)

// dispatch handles every request kind except KindRebuild (which streams
// progress over the connection and is handled directly by handleConn).
// The bool return reports whether the connection should close after the
// response is sent.
func (d *Daemon) dispatch(msg protocol.Message) (protocol.Message, bool) {
	switch msg.Kind {
	case protocol.KindPing:
		return protocol.Pong(), false

	case protocol.KindStore:
		d.history.Add(msg.Cmd, msg.Path, msg.Session)
		return protocol.Ack(), false

	case protocol.KindUpdate:
		id, err := entry.ParseID(msg.ID)
		if err != nil {
			return protocol.Err(err.Error()), false
		}
		if err := d.history.Update(id, msg.Cmd, msg.Session); err != nil {
			return protocol.Err(err.Error()), false
		}
		return protocol.Ack(), false

	case protocol.KindHistoryRequest:
		return protocol.History(d.history.Entries()), false

	case protocol.KindSync:
		if err := d.Sync(msg.Force); err != nil {
			return protocol.Err(err.Error()), false
		}
		return protocol.Ack(), false

	case protocol.KindExit:
		if msg.NoSync {
			d.requestShutdownNoSync()
		} else {
			if err := d.history.Save(); err != nil {
				d.logger.Error("final save on exit request failed", "error", err)
			}
			d.requestShutdown()
		}
		return protocol.Ack(), true

	case protocol.KindVersionRequest:
		return protocol.Version(Version), false

	default:
		return protocol.Err(fmt.Sprintf("unexpected request kind %q", msg.Kind)), false
	}
}

// handleRebuild streams RebuildStatus progress over conn while
// regenerating the on-disk history under the cross-host lock, then sends
// a single RebuildComplete.
func (d *Daemon) handleRebuild(conn net.Conn) {
	send := func(m protocol.Message) bool {
		if err := protocol.WriteMessage(conn, m); err != nil {
			d.logger.Warn("write message", "error", err)
			return false
		}
		return true
	}

	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	if !send(protocol.RebuildStatus("acquiring sync lock")) {
		return
	}
	locked, err := d.syncer.Lock()
	if err != nil {
		send(protocol.RebuildComplete(err.Error()))
		return
	}
	defer func() {
		if err := locked.Unlock(); err != nil {
			d.logger.Error("rebuild: unlock failed", "error", err)
		}
	}()

	if !send(protocol.RebuildStatus("refreshing from remote")) {
		return
	}
	if _, err := locked.Refresh(); err != nil {
		send(protocol.RebuildComplete(err.Error()))
		return
	}

	if !send(protocol.RebuildStatus("rebuilding local history")) {
		return
	}
	if err := d.history.Rebuild(); err != nil {
		send(protocol.RebuildComplete(err.Error()))
		return
	}

	if !send(protocol.RebuildStatus("pushing rebuilt history")) {
		return
	}
	if err := locked.PushChanges(d.host); err != nil {
		send(protocol.RebuildComplete(err.Error()))
		return
	}

	send(protocol.RebuildComplete(""))
}
