package task

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rtflight/command"
	"github.com/sarchlab/rtflight/flight"
	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
)

var _ = Describe("CommandTask", func() {
	var (
		mockCtrl *gomock.Controller
		probe    *MockProbe
		state    *flight.State
		store    *metrics.Store
		queue    chan command.Command
		task     *CommandTask
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		probe = NewMockProbe(mockCtrl)
		probe.EXPECT().Preemptions().Return(int64(4)).AnyTimes()
		state = flight.NewState()
		store = metrics.NewStore()
		queue = make(chan command.Command, 16)

		desc := sched.TaskDescriptor{Name: "Network", Class: sched.Aperiodic, Priority: 30, CPU: -1}
		task = NewCommandTask(desc, state, queue, store.Register(desc), probe, newFakeClock())
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should raise throttle to 60 after six UPs", func() {
		for i := 0; i < 6; i++ {
			task.Handle(command.Command{Verb: command.VerbUp})
		}

		Expect(state.Snapshot().Throttle).To(Equal(60.0))

		e, _ := store.Lookup("Network")
		Expect(e.Throughput).To(Equal(int64(6)))
		Expect(e.Preemptions).To(Equal(int64(4)))
	})

	It("should count and drop unknown verbs", func() {
		task.Handle(command.Command{Verb: "HOVER"})
		task.Handle(command.Command{Verb: "up"})

		Expect(state.Snapshot()).To(Equal(flight.Snapshot{}))

		e, _ := store.Lookup("Network")
		Expect(e.Rejected).To(Equal(int64(2)))
		Expect(e.Throughput).To(Equal(int64(2)))
	})

	It("should latch the emergency once on repeated PANIC", func() {
		task.Handle(command.Command{Verb: command.VerbPanic})
		at := state.LatchedAt()
		task.Handle(command.Command{Verb: command.VerbPanic})

		Expect(state.Latched()).To(BeTrue())
		Expect(state.LatchedAt()).To(Equal(at))
		Expect(state.Status()).To(Equal(flight.StatusTriggered))
	})

	It("should drain the queue until stopped", func() {
		stop := NewSignal()
		done := make(chan error)
		go func() { done <- task.Run(stop) }()

		queue <- command.Command{Verb: command.VerbFront}
		Eventually(func() float64 { return state.Snapshot().Pitch }).Should(Equal(15.0))

		stop.Raise()
		Eventually(done).Should(Receive(BeNil()))
	})

	It("should return when the queue is closed", func() {
		close(queue)

		Expect(task.Run(NewSignal())).To(Succeed())
	})

	It("should stop the run instead of crashing when handling faults", func() {
		calls := 0
		desc := sched.TaskDescriptor{Name: "Uplink", Class: sched.Aperiodic, CPU: -1}
		faulty := NewCommandTask(desc, state, queue, store.Register(desc),
			sched.ProbeFunc(func() int64 {
				calls++
				if calls > 1 {
					panic("socket counter gone")
				}
				return 0
			}), newFakeClock())
		stop := NewSignal()
		queue <- command.Command{Verb: command.VerbUp}

		err := faulty.Run(stop)

		Expect(err).To(MatchError(ErrTaskFault))
		Expect(err.Error()).To(ContainSubstring("Uplink"))
		Expect(stop.Raised()).To(BeTrue())
	})
})
