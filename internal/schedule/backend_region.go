package schedule

import (
	"time"

	"regionsched/internal/host"
	"regionsched/internal/world"
)

// RegionBackend forwards each submission to the partition-aware scheduler
// for its affinity. Entity liveness is left to the entity scheduler, which
// checks it on the owning region before each firing and runs retired in
// place of the work.
type RegionBackend struct {
	srv host.RegionizedServer
}

func NewRegionBackend(srv host.RegionizedServer) *RegionBackend {
	return &RegionBackend{srv: srv}
}

func (b *RegionBackend) Mode() Mode { return RegionParallel }

func plain(work func()) func(host.ScheduledTask) {
	return func(host.ScheduledTask) { work() }
}

func withHandle(work func(Task)) func(host.ScheduledTask) {
	return func(st host.ScheduledTask) { work(fromRegion(st)) }
}

func (b *RegionBackend) Run(work func()) {
	b.srv.GlobalRegionScheduler().Run(plain(work))
}

func (b *RegionBackend) RunLater(work func(), delay int64) Task {
	return fromRegion(b.srv.GlobalRegionScheduler().RunDelayed(plain(work), delay))
}

func (b *RegionBackend) RunTimer(work func(Task), delay, period int64) Task {
	return fromRegion(b.srv.GlobalRegionScheduler().RunAtFixedRate(withHandle(work), delay, period))
}

func (b *RegionBackend) RunAsync(work func()) {
	b.srv.AsyncScheduler().RunNow(plain(work))
}

func (b *RegionBackend) RunAsyncTimer(work func(Task), delay, period time.Duration) (Task, error) {
	return fromRegion(b.srv.AsyncScheduler().RunAtFixedRate(withHandle(work), delay, period)), nil
}

// A nil native handle means the entity was already retired: the retired
// callback runs here, synchronously, and the caller gets the no-op Task.
func (b *RegionBackend) rejected(st host.ScheduledTask, retired func()) Task {
	if st == nil {
		if retired != nil {
			retired()
		}
		return Task{}
	}
	return fromRegion(st)
}

func (b *RegionBackend) RunEntity(e world.Entity, work, retired func()) {
	st := b.srv.EntityScheduler(e).Run(plain(work), retired)
	b.rejected(st, retired)
}

func (b *RegionBackend) RunEntityLater(e world.Entity, work, retired func(), delay int64) Task {
	st := b.srv.EntityScheduler(e).RunDelayed(plain(work), retired, delay)
	return b.rejected(st, retired)
}

func (b *RegionBackend) RunEntityTimer(e world.Entity, work func(Task), retired func(), delay, period int64) Task {
	st := b.srv.EntityScheduler(e).RunAtFixedRate(withHandle(work), retired, delay, period)
	return b.rejected(st, retired)
}

func (b *RegionBackend) RunEntityAsync(_ world.Entity, work func()) {
	b.srv.AsyncScheduler().RunNow(plain(work))
}

func (b *RegionBackend) RunAt(loc world.Location, work func()) {
	b.srv.RegionScheduler().Run(loc, plain(work))
}

func (b *RegionBackend) RunAtLater(loc world.Location, work func(), delay int64) Task {
	return fromRegion(b.srv.RegionScheduler().RunDelayed(loc, plain(work), delay))
}

func (b *RegionBackend) RunAtTimer(loc world.Location, work func(Task), delay, period int64) Task {
	return fromRegion(b.srv.RegionScheduler().RunAtFixedRate(loc, withHandle(work), delay, period))
}
