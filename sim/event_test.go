package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Event time", func() {
	It("should convert microseconds", func() {
		Expect(Micro(900)).To(BeNumerically("~", 9e-4, 1e-12))
		Expect(Micro(82).InMicro()).To(BeNumerically("~", 82, 1e-9))
	})

	It("should mark secondary events", func() {
		primary := NewEventBase(1, nil)
		secondary := NewSecondaryEventBase(1, nil)

		Expect(primary.IsSecondary()).To(BeFalse())
		Expect(secondary.IsSecondary()).To(BeTrue())
		Expect(primary.ID).NotTo(Equal(secondary.ID))
	})
})

var _ = Describe("HookableBase", func() {
	It("should invoke hooks in registration order", func() {
		var order []string
		h := NewHookableBase()
		h.AcceptHook(HookFunc(func(ctx HookCtx) { order = append(order, "a") }))
		h.AcceptHook(HookFunc(func(ctx HookCtx) { order = append(order, "b") }))

		h.InvokeHook(HookCtx{Pos: HookPosBeforeEvent})

		Expect(order).To(Equal([]string{"a", "b"}))
		Expect(h.NumHooks()).To(Equal(2))
	})
})
