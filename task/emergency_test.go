package task

import (
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/hooking"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
	"github.com/sarchlab/rtflight/timeline"
)

var _ = Describe("EmergencyTask", func() {
	var (
		mockCtrl *gomock.Controller
		probe    *MockProbe
		resource *MockResource
		state    *flight.State
		store    *metrics.Store
		stop     *Signal
		shutdown *Shutdown
		task     *EmergencyTask
		done     chan error
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		probe = NewMockProbe(mockCtrl)
		probe.EXPECT().Preemptions().Return(int64(2)).AnyTimes()
		resource = NewMockResource(mockCtrl)
		state = flight.NewState()
		store = metrics.NewStore()
		stop = NewSignal()
		shutdown = NewShutdown(stop, nil)
		shutdown.Register("camera", resource)

		desc := sched.TaskDescriptor{Name: "Emergency", Class: sched.Sporadic, CPU: -1}
		task = NewEmergencyTask(desc, state, shutdown, store.Register(desc), probe, RealClock{})
		done = make(chan error, 1)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	// start returns once the task is parked on the latch.
	start := func() {
		announced := make(chan struct{})
		task.AcceptHook(hooking.HookFunc(func(ctx hooking.HookCtx) {
			if e, ok := ctx.Item.(timeline.Event); ok && e.Kind == timeline.Waiting {
				close(announced)
			}
		}))

		Expect(task.State()).To(Equal(Idle))
		go func() { done <- task.Run(stop) }()

		Eventually(announced).Should(BeClosed())
		Eventually(state.Waiters).Should(Equal(1))
		Expect(task.State()).To(Equal(Waiting))
	}

	It("should wake on the latch and shut down", func() {
		resource.EXPECT().Close().Return(nil)
		state.Mutate(func(s *flight.Snapshot) { s.Throttle = 80; s.Yaw = 30 })
		start()

		Expect(state.LatchEmergency()).To(BeTrue())

		Eventually(done, time.Second).Should(Receive(BeNil()))
		Expect(state.Waiters()).To(BeZero())
		Expect(task.State()).To(Equal(Terminated))
		Expect(task.WokeAt()).To(BeTemporally(">=", state.LatchedAt()))
		Expect(stop.Raised()).To(BeTrue())
		Expect(state.Status()).To(Equal(flight.StatusActive))
		Expect(shutdown.Reason()).To(Equal(ReasonEmergency))

		snap := state.Snapshot()
		Expect(snap.Throttle).To(BeZero())
		Expect(snap.Yaw).To(BeZero())

		e, _ := store.Lookup("Emergency")
		Expect(e.Preemptions).To(Equal(int64(2)))
	})

	It("should not miss a latch set before it started waiting", func() {
		resource.EXPECT().Close().Return(nil)
		state.LatchEmergency()

		go func() { done <- task.Run(stop) }()

		Eventually(done, time.Second).Should(Receive(BeNil()))
		Expect(shutdown.Reason()).To(Equal(ReasonEmergency))
	})

	It("should shut down on an external stop without activating the failsafe", func() {
		resource.EXPECT().Close().Return(nil)
		start()

		stop.Raise()

		Eventually(done, time.Second).Should(Receive(BeNil()))
		Expect(task.WokeAt().IsZero()).To(BeTrue())
		Expect(state.Status()).To(Equal(flight.StatusStandby))
		Expect(shutdown.Reason()).To(Equal(ReasonStop))
	})

	It("should release resources once when PANIC races an interrupt", func() {
		resource.EXPECT().Close().Return(nil).Times(1)
		start()

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			state.LatchEmergency()
		}()
		go func() {
			defer wg.Done()
			shutdown.Run("interrupt")
		}()
		wg.Wait()

		Eventually(done, time.Second).Should(Receive(BeNil()))
		Expect(shutdown.Run("again")).To(BeFalse())
	})

	It("should still run the shutdown protocol when it faults", func() {
		resource.EXPECT().Close().Return(nil)
		desc := sched.TaskDescriptor{Name: "Failsafe", Class: sched.Sporadic, CPU: -1}
		faulty := NewEmergencyTask(desc, state, shutdown, store.Register(desc),
			sched.ProbeFunc(func() int64 { panic("probe broken") }), RealClock{})

		go func() { done <- faulty.Run(stop) }()

		var err error
		Eventually(done, time.Second).Should(Receive(&err))
		Expect(err).To(MatchError(ErrTaskFault))
		Expect(err.Error()).To(ContainSubstring("probe broken"))
		Expect(stop.Raised()).To(BeTrue())
		Expect(shutdown.Terminated()).To(BeClosed())
		Expect(shutdown.Reason()).To(Equal(ReasonFault))
		Expect(faulty.State()).To(Equal(Terminated))
	})
})

var _ = Describe("Shutdown", func() {
	var (
		mockCtrl *gomock.Controller
		stop     *Signal
		shutdown *Shutdown
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		stop = NewSignal()
		shutdown = NewShutdown(stop, nil)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should release resources in reverse order and emit finals last", func() {
		first := NewMockResource(mockCtrl)
		second := NewMockResource(mockCtrl)
		var order []string

		shutdown.Register("first", first)
		shutdown.Register("second", second)
		shutdown.OnFinal(func(string) { order = append(order, "final") })

		gomock.InOrder(
			second.EXPECT().Close().DoAndReturn(func() error {
				order = append(order, "second")
				return nil
			}),
			first.EXPECT().Close().DoAndReturn(func() error {
				order = append(order, "first")
				return nil
			}),
		)

		Expect(shutdown.Run("test")).To(BeTrue())
		Expect(order).To(Equal([]string{"second", "first", "final"}))
		Expect(stop.Raised()).To(BeTrue())
		Expect(shutdown.Terminated()).To(BeClosed())
	})

	It("should have exactly one effect when run twice", func() {
		r := NewMockResource(mockCtrl)
		r.EXPECT().Close().Return(nil).Times(1)
		finals := 0
		shutdown.Register("helper", r)
		shutdown.OnFinal(func(reason string) {
			Expect(reason).To(Equal("panic"))
			finals++
		})

		Expect(shutdown.Run("panic")).To(BeTrue())
		Expect(shutdown.Run("interrupt")).To(BeFalse())
		Expect(finals).To(Equal(1))
		Expect(shutdown.Reason()).To(Equal("panic"))
	})

	It("should keep releasing after a failure", func() {
		failing := NewMockResource(mockCtrl)
		ok := NewMockResource(mockCtrl)
		shutdown.Register("ok", ok)
		shutdown.Register("failing", failing)

		failing.EXPECT().Close().Return(errors.New("busy"))
		ok.EXPECT().Close().Return(nil)

		shutdown.Run("test")

		Expect(shutdown.Err()).To(MatchError(ContainSubstring("releasing failing: busy")))
	})

	It("should terminate even when a resource panics", func() {
		panicking := NewMockResource(mockCtrl)
		ok := NewMockResource(mockCtrl)
		shutdown.Register("ok", ok)
		shutdown.Register("panicking", panicking)

		panicking.EXPECT().Close().DoAndReturn(func() error { panic("stuck") })
		ok.EXPECT().Close().Return(nil)

		Expect(shutdown.Run("test")).To(BeTrue())
		Expect(shutdown.Terminated()).To(BeClosed())
		Expect(shutdown.Err()).To(MatchError(ContainSubstring("releasing panicking: panic: stuck")))
	})
})
