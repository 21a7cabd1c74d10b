package game

import "context"

// roomActor serializes every mutation of one room. Jobs run one at a time on
// the actor goroutine and may touch the room freely; nothing else may.
type roomActor struct {
	room    *Room
	inbox   chan func()
	done    chan struct{}
	stopped bool // only read and written by the actor goroutine
}

func newRoomActor(room *Room) *roomActor {
	return &roomActor{
		room:  room,
		inbox: make(chan func(), 64),
		done:  make(chan struct{}),
	}
}

func (a *roomActor) run() {
	defer close(a.done)
	for job := range a.inbox {
		job()
		if a.stopped {
			return
		}
	}
}

// stop ends the run loop after the current job. Jobs still queued are
// dropped and their callers see ErrRoomNotFound.
func (a *roomActor) stop() { a.stopped = true }

// post enqueues a job without waiting for it. It reports false when the actor
// is already gone.
func (a *roomActor) post(job func()) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.inbox <- job:
		return true
	case <-a.done:
		return false
	}
}

// call runs fn on the actor and waits for its result. ctx only bounds the
// wait for a slot in the inbox: a queued job always runs, and its result is
// what the caller gets back.
func (a *roomActor) call(ctx context.Context, fn func(r *Room) error) error {
	resp := make(chan error, 1)
	job := func() { resp <- fn(a.room) }
	select {
	case <-a.done:
		return ErrRoomNotFound
	default:
	}
	select {
	case a.inbox <- job:
	case <-a.done:
		return ErrRoomNotFound
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-a.done:
		// the job may have been the one that closed the room
		select {
		case err := <-resp:
			return err
		default:
			return ErrRoomNotFound
		}
	}
}
