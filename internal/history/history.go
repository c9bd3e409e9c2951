// Package history implements vellum's in-memory history aggregate (spec
// §4.C): the single in-process authority over one host's command history,
// backed by internal/store's on-disk chunk layout and internal/crypto's
// chunk codec.
package history

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"vellum/internal/crypto"
	"vellum/internal/entry"
	"vellum/internal/logging"
	"vellum/internal/store"
	"vellum/internal/verr"
)

// History is the in-memory authority for one host's command history. All
// exported methods are safe for concurrent use; callers must still respect
// the daemon's documented lock order (sync before history) when holding
// other locks alongside this one.
type History struct {
	mu sync.Mutex

	host      string
	key       []byte
	stateDir  string
	syncRoot  string
	history   map[string][]*crypto.Chunk
	merged    []entry.Entry
	lastWrite time.Time
	now       func() time.Time
	logger    *slog.Logger

	lastSnapshotErr error
}

func statePath(stateDir string) string {
	return stateDir + "/history.chunk"
}

// Load constructs a fresh History for host and populates it from
// syncRoot's on-disk layout and stateDir's active-chunk snapshot. A nil
// logger discards log output.
func Load(host, stateDir, syncRoot string, key []byte, logger *slog.Logger) (*History, error) {
	h := &History{
		host:     host,
		key:      key,
		stateDir: stateDir,
		syncRoot: syncRoot,
		history:  make(map[string][]*crypto.Chunk),
		now:      time.Now,
		logger:   logging.Default(logger).With("component", "history"),
	}
	h.lastWrite = h.now()

	// history is empty on a fresh Load, so per spec this reads every host's
	// chunks including our own.
	if err := h.refreshFromDisk(true); err != nil {
		return nil, err
	}

	if err := h.loadActiveSnapshot(); err != nil {
		return nil, err
	}

	h.rebuildMerged()
	return h, nil
}

// refreshFromDisk re-reads every host directory under syncRoot, appending
// any chunks newer than our current per-host watermark. includeOwn decides
// whether the caller's own host is re-read from disk (true on the initial
// Load, and from Sync only while no host's chunks are held in memory;
// otherwise in-memory state is trusted for our own host).
func (h *History) refreshFromDisk(includeOwn bool) error {
	hosts, err := store.ListHosts(h.syncRoot)
	if err != nil {
		return fmt.Errorf("list hosts: %w", err)
	}

	for _, hostName := range hosts {
		if hostName == h.host && !includeOwn {
			continue
		}
		watermark := h.watermark(hostName)
		chunks, err := store.ReadChunks(store.HostDir(h.syncRoot, hostName), watermark, h.key, h.logger)
		if err != nil {
			return fmt.Errorf("read chunks for host %s: %w", hostName, err)
		}
		for i := range chunks {
			h.history[hostName] = append(h.history[hostName], &chunks[i])
		}
	}
	return nil
}

// watermark returns the start of the last chunk we already hold for host,
// or the epoch if we hold none.
func (h *History) watermark(host string) time.Time {
	chunks := h.history[host]
	if len(chunks) == 0 {
		return time.Time{}
	}
	return chunks[len(chunks)-1].Start
}

// loadActiveSnapshot loads the active-chunk snapshot (entries not yet
// rolled into a day-file) into this host's in-memory chunks. If the
// snapshot is non-empty, lastWrite is pulled back to just before its
// first chunk's Start so getActiveChunk treats it as still-open and Save
// doesn't re-append it as if it were a brand new chunk.
func (h *History) loadActiveSnapshot() error {
	chunks, err := store.ReadState(statePath(h.stateDir), h.key, h.logger)
	if err != nil {
		return fmt.Errorf("load active-chunk snapshot: %w", err)
	}
	if len(chunks) > 0 {
		h.lastWrite = chunks[0].Start.Add(-time.Second)
	}
	for i := range chunks {
		h.history[h.host] = append(h.history[h.host], &chunks[i])
	}
	return nil
}

// Entries returns a clone of the merged view, in the total order.
func (h *History) Entries() []entry.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]entry.Entry, len(h.merged))
	copy(out, h.merged)
	return out
}

// getActiveChunk returns the currently-open chunk for this host, creating
// one if none exists or the last one has already been saved.
func (h *History) getActiveChunk() *crypto.Chunk {
	chunks := h.history[h.host]
	if len(chunks) == 0 || !chunks[len(chunks)-1].Start.After(h.lastWrite) {
		chunks = append(chunks, &crypto.Chunk{Start: h.now()})
		h.history[h.host] = chunks
	}
	return chunks[len(chunks)-1]
}

// Add creates a new Entry with a fresh id and appends it to the active
// chunk and the merged view, then persists the active-chunk snapshot.
func (h *History) Add(cmd, path, session string) entry.Entry {
	h.mu.Lock()
	defer h.mu.Unlock()

	e := entry.Entry{
		ID:      entry.NewID(),
		TS:      h.now(),
		Host:    h.host,
		Cmd:     cmd,
		Path:    path,
		Session: session,
	}
	active := h.getActiveChunk()
	active.Entries = append(active.Entries, e)
	h.merged = append(h.merged, e)

	h.persistActiveSnapshot()
	return e
}

// Update appends an Entry bearing id's identity, the current timestamp,
// and a possibly-empty cmd (empty denotes a tombstone), then rebuilds the
// merged view. Returns verr.ErrUnknownID if id is not present in the
// merged view.
func (h *History) Update(id entry.ID, cmd, session string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.hasID(id) {
		return fmt.Errorf("update entry %s: %w", id, verr.ErrUnknownID)
	}

	e := entry.Entry{ID: id, TS: h.now(), Host: h.host, Cmd: cmd, Session: session}
	active := h.getActiveChunk()
	active.Entries = append(active.Entries, e)

	h.rebuildMerged()
	h.persistActiveSnapshot()
	return nil
}

func (h *History) hasID(id entry.ID) bool {
	for _, e := range h.merged {
		if e.ID == id {
			return true
		}
	}
	return false
}

// LoadEntries bulk-imports entries belonging to this host. Entries for any
// other host are dropped; entries that exactly duplicate an id+cmd pair
// already known are dropped. allHosts is not yet supported and always
// fails with verr.ErrUnimplemented.
func (h *History) LoadEntries(entries []entry.Entry, allHosts bool) (int, error) {
	if allHosts {
		return 0, fmt.Errorf("load entries for all hosts: %w", verr.ErrUnimplemented)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	known := make(map[string]struct{}, len(h.merged))
	for _, e := range h.merged {
		known[e.ID.String()+"\x00"+e.Cmd] = struct{}{}
	}

	active := h.getActiveChunk()
	added := 0
	for _, e := range entries {
		if e.Host != h.host {
			continue
		}
		key := e.ID.String() + "\x00" + e.Cmd
		if _, dup := known[key]; dup {
			continue
		}
		known[key] = struct{}{}
		active.Entries = append(active.Entries, e)
		added++
	}

	h.rebuildMerged()
	h.persistActiveSnapshot()
	return added, nil
}

// chunksOf returns the in-memory chunks for host, dereferenced.
func (h *History) chunksOf(host string) []crypto.Chunk {
	ptrs := h.history[host]
	out := make([]crypto.Chunk, len(ptrs))
	for i, p := range ptrs {
		out[i] = *p
	}
	return out
}

// Save writes this host's chunks to the sync working tree, advances the
// write watermark, and rewrites the (now possibly empty) active-chunk
// snapshot.
func (h *History) Save() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.saveLocked()
}

func (h *History) saveLocked() error {
	chunks := h.chunksOf(h.host)
	if err := store.WriteChunks(h.syncRoot, h.host, chunks, h.lastWrite, h.key); err != nil {
		return fmt.Errorf("write chunks for host %s: %w", h.host, err)
	}
	h.lastWrite = h.now()
	h.persistActiveSnapshot()
	return nil
}

// Sync saves this host's pending chunks, then reads every other host's
// chunks (or every host's, if we currently hold none at all).
func (h *History) Sync() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.saveLocked(); err != nil {
		return err
	}

	includeOwn := len(h.history) == 0
	if err := h.refreshFromDisk(includeOwn); err != nil {
		return err
	}
	h.rebuildMerged()
	return nil
}

// Rebuild regenerates every chunk for every host from the merged view
// (grouping entries by the hour-truncation of their timestamp), replaces
// the on-disk layout with the result, and rewrites the active-chunk
// snapshot.
func (h *History) Rebuild() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	byHost := make(map[string][]entry.Entry)
	for _, e := range h.merged {
		byHost[e.Host] = append(byHost[e.Host], e)
	}

	rebuilt := make(map[string][]crypto.Chunk)
	for hostName, entries := range byHost {
		rebuilt[hostName] = chunksByHour(entries)
	}

	if err := store.RewriteAll(h.syncRoot, rebuilt, h.key); err != nil {
		return fmt.Errorf("rewrite all chunks: %w", err)
	}

	h.history = make(map[string][]*crypto.Chunk)
	for hostName, chunks := range rebuilt {
		ptrs := make([]*crypto.Chunk, len(chunks))
		for i := range chunks {
			ptrs[i] = &chunks[i]
		}
		h.history[hostName] = ptrs
	}
	h.lastWrite = h.now()

	h.rebuildMerged()
	h.persistActiveSnapshot()
	return nil
}

func chunksByHour(entries []entry.Entry) []crypto.Chunk {
	byHour := make(map[time.Time][]entry.Entry)
	for _, e := range entries {
		hour := e.TS.Truncate(time.Hour)
		byHour[hour] = append(byHour[hour], e)
	}

	hours := make([]time.Time, 0, len(byHour))
	for hour := range byHour {
		hours = append(hours, hour)
	}
	sort.Slice(hours, func(i, j int) bool { return hours[i].Before(hours[j]) })

	chunks := make([]crypto.Chunk, 0, len(hours))
	for _, hour := range hours {
		group := byHour[hour]
		entry.SortEntries(group)
		chunks = append(chunks, crypto.Chunk{Start: hour, Entries: group})
	}
	return chunks
}

// persistActiveSnapshot writes the active-chunk snapshot best-effort: a
// failure does not abort the calling operation and is only recorded for
// LastSnapshotErr.
func (h *History) persistActiveSnapshot() {
	chunks := h.history[h.host]
	var active *crypto.Chunk
	if n := len(chunks); n > 0 && chunks[n-1].Start.After(h.lastWrite) {
		active = chunks[n-1]
	}
	h.lastSnapshotErr = store.WriteState(statePath(h.stateDir), active, h.key)
}

// LastSnapshotErr returns the error (if any) from the most recent
// best-effort active-chunk snapshot write, for callers that want to log it.
func (h *History) LastSnapshotErr() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSnapshotErr
}

// rebuildMerged regenerates merged from every chunk held across every
// host, applying the group-by-id / last-write-wins / drop-tombstones
// algorithm, then sorting by the total order.
func (h *History) rebuildMerged() {
	groups := make(map[entry.ID][]entry.Entry)
	for _, chunks := range h.history {
		for _, c := range chunks {
			for _, e := range c.Entries {
				groups[e.ID] = append(groups[e.ID], e)
			}
		}
	}

	merged := make([]entry.Entry, 0, len(groups))
	for _, group := range groups {
		entry.SortEntries(group)
		result := group[0]
		result.Cmd = group[len(group)-1].Cmd
		if result.IsTombstone() {
			continue
		}
		merged = append(merged, result)
	}
	entry.SortEntries(merged)
	h.merged = merged
}
