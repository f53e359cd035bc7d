package task

import (
	"bytes"
	"fmt"
	"log"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/rtflight/metrics"
	"github.com/sarchlab/rtflight/sched"
)

type stubTask struct {
	Base
	run func(stop *Signal) error
}

func (t *stubTask) Run(stop *Signal) error {
	return t.run(stop)
}

var _ = Describe("Runner", func() {
	var (
		mockCtrl *gomock.Controller
		applier  *MockApplier
		store    *metrics.Store
		desc     sched.TaskDescriptor
		logBuf   *bytes.Buffer
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		applier = NewMockApplier(mockCtrl)
		store = metrics.NewStore()
		desc = sched.TaskDescriptor{
			Name:   "Flight",
			Class:  sched.Periodic,
			Period: 10 * time.Millisecond,
			CPU:    -1,
		}
		logBuf = new(bytes.Buffer)
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	newStub := func(run func(stop *Signal) error) *stubTask {
		return &stubTask{
			Base: newBase(desc, store.Register(desc), sched.ProbeFunc(func() int64 { return 0 }), nil),
			run:  run,
		}
	}

	newRunner := func() *Runner {
		c := sched.NewConfigurator(applier, sched.FixedPriority,
			[]sched.TaskDescriptor{desc}, sched.DefaultBand())
		return NewRunner(c, log.New(logBuf, "", 0))
	}

	It("should apply the scheduling before running the task", func() {
		applier.EXPECT().SetFixedPriority(gomock.Any(), gomock.Any()).Return(nil)
		stop := NewSignal()
		r := newRunner()

		r.Go(newStub(func(*Signal) error { return nil }), stop)

		Expect(r.Wait()).To(Succeed())
		e, _ := store.Lookup("Flight")
		Expect(e.Policy).To(Equal(sched.PolicyFIFO))
		Expect(e.Unenforced).To(BeFalse())
		Expect(e.Note).To(BeEmpty())
	})

	It("should flag the task as unenforced when privilege is missing", func() {
		applier.EXPECT().SetFixedPriority(gomock.Any(), gomock.Any()).
			Return(sched.ErrInsufficientPrivilege)
		r := newRunner()

		r.Go(newStub(func(*Signal) error { return nil }), NewSignal())

		Expect(r.Wait()).To(Succeed())
		e, _ := store.Lookup("Flight")
		Expect(e.Unenforced).To(BeTrue())
		Expect(e.Note).To(Equal(NotePriorityUnenforced))
		Expect(logBuf.String()).To(ContainSubstring("warning"))
	})

	It("should raise stop and report a failing task", func() {
		applier.EXPECT().SetFixedPriority(gomock.Any(), gomock.Any()).Return(nil)
		stop := NewSignal()
		r := newRunner()

		r.Go(newStub(func(*Signal) error {
			return fmt.Errorf("%w: boom", ErrTaskFault)
		}), stop)

		Expect(r.Wait()).To(MatchError(ErrTaskFault))
		Expect(stop.Raised()).To(BeTrue())
	})

	It("should recover a panicking task and raise stop", func() {
		applier.EXPECT().SetFixedPriority(gomock.Any(), gomock.Any()).Return(nil)
		stop := NewSignal()
		r := newRunner()

		r.Go(newStub(func(*Signal) error { panic("lost thread") }), stop)

		err := r.Wait()
		Expect(err).To(MatchError(ErrTaskFault))
		Expect(err.Error()).To(ContainSubstring("lost thread"))
		Expect(stop.Raised()).To(BeTrue())
	})

	It("should run without a configurator", func() {
		r := NewRunner(nil, nil)

		r.Go(newStub(func(*Signal) error { return nil }), NewSignal())

		Expect(r.Wait()).To(Succeed())
	})
})

var _ = Describe("Note", func() {
	It("should describe a deadline-mode fallback", func() {
		applied := sched.Applied{Policy: sched.PolicyFIFO, DeadlineModeUnavailable: true}

		Expect(Note(applied, nil)).To(Equal(NoteDeadlineUnavailable))
	})

	It("should describe an affinity failure", func() {
		applied := sched.Applied{Policy: sched.PolicyFIFO}
		err := &sched.SetupError{Kind: sched.AffinityFailed, Err: fmt.Errorf("EINVAL")}

		Expect(Note(applied, err)).To(Equal(NoteAffinityFailed))
	})
})
