package tracing

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sarchlab/ftlsim/sim"
)

var _ = Describe("Api", func() {
	var (
		mockCtrl *gomock.Controller
		domain   *MockNamedHookable
	)

	BeforeEach(func() {
		mockCtrl = gomock.NewController(GinkgoT())
		domain = NewMockNamedHookable(mockCtrl)
		domain.EXPECT().NumHooks().Return(1).AnyTimes()
	})

	AfterEach(func() {
		mockCtrl.Finish()
	})

	It("should panic if ID is not given", func() {
		Expect(func() {
			StartTask("", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if domain is nil.", func() {
		Expect(func() {
			StartTask("id", "123", nil, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if domain's name is empty.", func() {
		domain.EXPECT().Name().Return("").AnyTimes()
		Expect(func() {
			StartTask("id", "123", domain, "kind", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if kind is empty.", func() {
		Expect(func() {
			StartTask("id", "123", domain, "", "what", nil)
		}).Should(Panic())
	})

	It("should be panic if what is empty.", func() {
		Expect(func() {
			StartTask("id", "123", domain, "kind", "", nil)
		}).Should(Panic())
	})

	It("should locate the task at the domain", func() {
		domain.EXPECT().Name().Return("FTL").AnyTimes()
		domain.EXPECT().
			InvokeHook(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(Equal(HookPosTaskStart))
				task := ctx.Item.(Task)
				Expect(task.ID).To(Equal("id"))
				Expect(task.ParentID).To(Equal("parent"))
				Expect(task.Location).To(Equal("FTL"))
			})

		StartTask("id", "parent", domain, "kind", "what", nil)
	})

	It("should carry a single step", func() {
		domain.EXPECT().
			InvokeHook(gomock.Any()).
			Do(func(ctx sim.HookCtx) {
				Expect(ctx.Pos).To(Equal(HookPosTaskStep))
				Expect(ctx.Item.(Task).Steps).To(Equal([]TaskStep{{What: "gc"}}))
			})

		AddTaskStep("id", domain, "gc")
	})
})

var _ = Describe("Api without hooks", func() {
	It("should not invoke anything", func() {
		mockCtrl := gomock.NewController(GinkgoT())
		domain := NewMockNamedHookable(mockCtrl)
		domain.EXPECT().NumHooks().Return(0).AnyTimes()

		StartTask("id", "", domain, "kind", "what", nil)
		AddTaskStep("id", domain, "step")
		EndTask("id", domain)

		mockCtrl.Finish()
	})
})
