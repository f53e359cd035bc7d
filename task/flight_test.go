package task

import (
	"math"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rtflight/command"
	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/hooking"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/timeline"
)

var _ = Describe("FlightTask", func() {
	var (
		mockCtrl *gomock.Controller
		probe    *MockProbe
		clock    *fakeClock
		state    *flight.State
		store    *metrics.Store
		desc     sched.TaskDescriptor
		task     *FlightTask
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		probe = NewMockProbe(mockCtrl)
		probe.EXPECT().Preemptions().Return(int64(0)).AnyTimes()
		clock = newFakeClock()
		state = flight.NewState()
		store = metrics.NewStore()
		desc = sched.TaskDescriptor{
			Name:   "Flight",
			Class:  sched.Periodic,
			Period: 10 * time.Millisecond,
			CPU:    -1,
		}
		task = NewFlightTask(desc, state, flight.DefaultRigidBody(),
			store.Register(desc), probe, clock)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	misses := func() int64 {
		e, ok := store.Lookup("Flight")
		Expect(ok).To(BeTrue())
		return e.DeadlineMisses
	}

	It("should not count an on-time iteration as a miss", func() {
		release := clock.Now()
		clock.Advance(2 * time.Millisecond)

		Expect(task.Iterate(release)).To(BeFalse())
		Expect(misses()).To(Equal(int64(0)))
	})

	It("should count exactly one miss for a late iteration", func() {
		release := clock.Now()
		clock.Advance(15 * time.Millisecond)

		Expect(task.Iterate(release)).To(BeTrue())
		Expect(misses()).To(Equal(int64(1)))

		clock.Set(release.Add(10 * time.Millisecond))
		Expect(task.Iterate(release.Add(10 * time.Millisecond))).To(BeFalse())
		Expect(misses()).To(Equal(int64(1)))
	})

	It("should use the relative deadline when it is shorter than the period", func() {
		desc.Name = "Tight"
		desc.RelativeDeadline = 3 * time.Millisecond
		tight := NewFlightTask(desc, state, flight.DefaultRigidBody(),
			store.Register(desc), probe, clock)

		release := clock.Now()
		clock.Advance(4 * time.Millisecond)

		Expect(tight.Iterate(release)).To(BeTrue())
	})

	It("should emit timeline events outside the state lock", func() {
		var kinds []timeline.Kind
		task.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			// Reading the state here would deadlock if the lock were held.
			_ = state.Snapshot()
			kinds = append(kinds, ctx.Item.(timeline.Event).Kind)
		}))

		release := clock.Now()
		clock.Advance(11 * time.Millisecond)
		task.Iterate(release)

		Expect(kinds).To(Equal([]timeline.Kind{
			timeline.DeadlineMiss, timeline.Start, timeline.End,
		}))
	})

	It("should record the iteration in the metrics", func() {
		task.Iterate(clock.Now())
		task.Iterate(clock.Now())

		e, _ := store.Lookup("Flight")
		Expect(e.Iterations).To(Equal(int64(2)))
	})

	It("should integrate constant thrust in closed form", func() {
		state.Mutate(func(s *flight.Snapshot) { s.Throttle = 100 })

		for i := 0; i < 200; i++ {
			task.Iterate(clock.Now())
		}

		a := 100*0.25 - 9.81
		dt := 0.01
		n := 200.0
		expected := a * dt * dt * n * (n + 1) / 2

		Expect(math.Abs(state.Snapshot().Altitude - expected)).To(BeNumerically("<", 1e-9))
	})

	It("should apply the emergency override in the iteration that sees it", func() {
		state.Mutate(func(s *flight.Snapshot) {
			s.Throttle = 100
			s.Pitch = 15
			s.Roll = -15
		})
		state.LatchEmergency()

		task.Iterate(clock.Now())

		snap := state.Snapshot()
		Expect(snap.Throttle).To(BeZero())
		Expect(snap.Pitch).To(BeZero())
		Expect(snap.Roll).To(BeZero())
		Expect(snap.Velocity).To(BeZero())
	})

	It("should keep throttle at zero after PANIC whatever commands follow", func() {
		cmdDesc := sched.TaskDescriptor{Name: "Network", Class: sched.Aperiodic, CPU: -1}
		cmds := NewCommandTask(cmdDesc, state, nil, store.Register(cmdDesc), probe, clock)

		cmds.Handle(command.Command{Verb: command.VerbPanic})

		for i := 0; i < 5; i++ {
			cmds.Handle(command.Command{Verb: command.VerbUp})
			task.Iterate(clock.Now())

			snap := state.Snapshot()
			Expect(snap.Throttle).To(BeZero())
			Expect(snap.Altitude).To(BeZero())
		}
	})

	It("should release jobs at accumulated periods despite jitter", func() {
		stop := NewSignal()
		clock.onSleep = func(n int) {
			// Every wakeup is late by 3ms.
			clock.Advance(3 * time.Millisecond)
			if n == 5 {
				stop.Raise()
			}
		}
		phase := clock.Now()

		Expect(task.Run(stop)).To(Succeed())

		sleeps := clock.Sleeps()
		Expect(sleeps).To(HaveLen(5))
		for i, s := range sleeps {
			Expect(s).To(Equal(phase.Add(time.Duration(i+1) * 10 * time.Millisecond)))
		}
		Expect(misses()).To(Equal(int64(0)))
	})

	It("should stop the run when an iteration panics", func() {
		faulty := NewFlightTask(
			sched.TaskDescriptor{Name: "Faulty", Class: sched.Periodic, Period: time.Millisecond},
			state,
			flight.ModelFunc(func(flight.Snapshot) flight.Snapshot { panic("diverged") }),
			store.Register(sched.TaskDescriptor{Name: "Faulty"}),
			probe, clock)
		stop := NewSignal()

		err := faulty.Run(stop)

		Expect(err).To(MatchError(ErrTaskFault))
		Expect(stop.Raised()).To(BeTrue())
	})
})
