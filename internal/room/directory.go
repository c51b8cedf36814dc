package room

import (
	"fmt"
	"sync"
	"time"

	"liveclass/internal/gateway"
	"liveclass/pkg/logger"
	"liveclass/pkg/types"
)

// DirectoryOptions configures the process-wide room registry.
type DirectoryOptions struct {
	Room          Options
	IdleTimeout   time.Duration
	SweepInterval time.Duration
}

// Directory is the process-wide registry of active rooms. Rooms are created
// lazily on first join and reclaimed by a periodic sweep once they are empty
// and idle (or closed). The directory map is the only cross-room shared
// structure.
type Directory struct {
	opts    DirectoryOptions
	gw      *gateway.Gateway
	archive Archiver
	log     *logger.Logger

	mu    sync.Mutex
	rooms map[string]*Room

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewDirectory(opts DirectoryOptions, gw *gateway.Gateway, archive Archiver, log *logger.Logger) *Directory {
	if archive == nil {
		archive = NopArchiver{}
	}
	if log == nil {
		log = logger.Default
	}
	return &Directory{
		opts:    opts,
		gw:      gw,
		archive: archive,
		log:     log,
		rooms:   make(map[string]*Room),
		stop:    make(chan struct{}),
	}
}

// Start launches the background sweep.
func (d *Directory) Start() {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.opts.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				d.sweep()
			case <-d.stop:
				return
			}
		}
	}()
}

// GetOrCreate returns the room for roomID, creating it if needed. Exactly
// one Room instance ever exists per id even when two first joins race. The
// returned release func must be called once the join attempt has finished
// (admitted or failed); until then the sweep will not destroy the room.
func (d *Directory) GetOrCreate(roomID string) (*Room, func(), error) {
	if !types.IsValidRoomID(roomID) {
		return nil, nil, fmt.Errorf("%w: bad room id", types.ErrValidation)
	}

	d.mu.Lock()
	r, ok := d.rooms[roomID]
	if !ok {
		r = newRoom(roomID, d.opts.Room, d.gw, d.archive, d.log)
		d.rooms[roomID] = r
		d.log.Info("room %s created", roomID)
	}
	// Taken under the directory lock so a concurrent sweep observes the
	// in-flight join before the room could be considered for destruction.
	r.beginJoin()
	d.mu.Unlock()

	return r, r.endJoin, nil
}

// Get returns an existing room without creating one.
func (d *Directory) Get(roomID string) (*Room, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	r, ok := d.rooms[roomID]
	return r, ok
}

// Stats summarizes every active room for the ops API.
func (d *Directory) Stats() []types.RoomStats {
	d.mu.Lock()
	rooms := make([]*Room, 0, len(d.rooms))
	for _, r := range d.rooms {
		rooms = append(rooms, r)
	}
	d.mu.Unlock()

	out := make([]types.RoomStats, 0, len(rooms))
	for _, r := range rooms {
		out = append(out, r.Stats())
	}
	return out
}

// sweep reclaims rooms that are closed, or empty of live and grace-window
// participants past the idle timeout. A room with a join in flight is never
// destroyed.
func (d *Directory) sweep() {
	d.mu.Lock()
	var doomed []*Room
	for id, r := range d.rooms {
		if r.destroyable(d.opts.IdleTimeout) {
			delete(d.rooms, id)
			doomed = append(doomed, r)
		}
	}
	d.mu.Unlock()

	for _, r := range doomed {
		r.destroy()
		d.log.Info("room %s destroyed by sweep", r.ID())
	}
}

// Close stops the sweep and ends every remaining room. Live connections
// receive session-ended before the process exits.
func (d *Directory) Close() {
	d.stopOnce.Do(func() { close(d.stop) })
	d.wg.Wait()

	d.mu.Lock()
	rooms := d.rooms
	d.rooms = make(map[string]*Room)
	d.mu.Unlock()

	for _, r := range rooms {
		r.forceClose()
		r.destroy()
	}
}
