package filter

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("EventFilter", func() {
	allOpcodes := []uint8{0, 1, 2, 10, 255}

	Context("EventIDs", func() {
		f := EventIDs(1, 2, 3)

		It("should pass listed ids for every opcode", func() {
			for _, op := range allOpcodes {
				Expect(f.Matches(2, op)).To(BeTrue())
				Expect(f.Matches(4, op)).To(BeFalse())
			}
		})

		It("should ignore the process axis", func() {
			Expect(f.MatchesProcess(1234, "")).To(BeTrue())
		})
	})

	Context("ExcludeEventIDs", func() {
		f := ExcludeEventIDs(100)

		It("should reject only the excluded id", func() {
			Expect(f.Matches(100, 0)).To(BeFalse())
			for _, id := range []uint16{0, 1, 99, 101, 65535} {
				Expect(f.Matches(id, 0)).To(BeTrue())
			}
		})
	})

	Context("Opcodes", func() {
		It("should test opcode membership", func() {
			f := Opcodes(1, 2)
			Expect(f.Matches(77, 1)).To(BeTrue())
			Expect(f.Matches(77, 3)).To(BeFalse())
		})
	})

	Context("process filters", func() {
		It("should always pass the identity axis", func() {
			Expect(ProcessID(5).Matches(9, 9)).To(BeTrue())
			Expect(ProcessName("x").Matches(9, 9)).To(BeTrue())
		})

		It("should compare process ids", func() {
			Expect(ProcessID(1000).MatchesProcess(1000, "")).To(BeTrue())
			Expect(ProcessID(1000).MatchesProcess(2000, "")).To(BeFalse())
		})

		It("should match names case-insensitively by substring", func() {
			f := ProcessName("Chrome")
			Expect(f.MatchesProcess(1, "chrome.exe")).To(BeTrue())
			Expect(f.MatchesProcess(1, "GOOGLECHROME.EXE")).To(BeTrue())
			Expect(f.MatchesProcess(1, "firefox.exe")).To(BeFalse())
		})

		It("should fail when the name is unknown", func() {
			Expect(ProcessName("svc").MatchesProcess(1, "")).To(BeFalse())
		})
	})

	Context("Custom", func() {
		It("should call the predicate", func() {
			f := Custom(PredicateFunc(func(id uint16, op uint8) bool {
				return id%2 == 0 && op == 1
			}))
			Expect(f.Matches(4, 1)).To(BeTrue())
			Expect(f.Matches(3, 1)).To(BeFalse())
			Expect(f.Matches(4, 0)).To(BeFalse())
		})

		It("should refuse to serialize", func() {
			_, err := Custom(nil).MarshalText()
			Expect(err).To(MatchError(ErrNotSerializable))
		})
	})

	Context("text form", func() {
		It("should round-trip serializable variants", func() {
			for _, f := range []EventFilter{
				EventIDs(3, 1, 2),
				ExcludeEventIDs(100),
				Opcodes(10, 11),
				ProcessID(4242),
				ProcessName("svchost"),
			} {
				text, err := f.MarshalText()
				Expect(err).NotTo(HaveOccurred())

				var back EventFilter
				Expect(back.UnmarshalText(text)).To(Succeed())
				Expect(back.String()).To(Equal(f.String()))
				Expect(back.Kind()).To(Equal(f.Kind()))
			}
		})

		It("should sort ids", func() {
			Expect(EventIDs(3, 1, 2).String()).To(Equal("event_ids:1,2,3"))
		})

		It("should reject malformed input", func() {
			var f EventFilter
			Expect(f.UnmarshalText([]byte("event_ids"))).NotTo(Succeed())
			Expect(f.UnmarshalText([]byte("event_ids:70000"))).NotTo(Succeed())
			Expect(f.UnmarshalText([]byte("process_id:1,2"))).NotTo(Succeed())
			Expect(f.UnmarshalText([]byte("bogus:1"))).NotTo(Succeed())
			Expect(f.UnmarshalText([]byte("custom:"))).To(MatchError(ErrNotSerializable))
		})
	})
})

var _ = Describe("Builder", func() {
	It("should AND identity and process filters", func() {
		b := NewBuilder().EventIDs(1, 2, 3).ProcessID(1000)

		Expect(b.MatchesAll(1, 0, 1000, "")).To(BeTrue())
		Expect(b.MatchesAll(1, 0, 2000, "")).To(BeFalse())
		Expect(b.MatchesAll(4, 0, 1000, "")).To(BeFalse())
	})

	It("should pass everything when empty", func() {
		Expect(NewBuilder().MatchesAll(9, 9, 9, "")).To(BeTrue())
	})

	It("should keep insertion order", func() {
		b := NewBuilder().ProcessName("a").Opcodes(1).ExcludeEventIDs(7)
		kinds := []Kind{}
		for _, f := range b.Filters() {
			kinds = append(kinds, f.Kind())
		}
		Expect(kinds).To(Equal([]Kind{KindProcessName, KindOpcodes, KindExcludeEventIDs}))
		Expect(b.Len()).To(Equal(3))
	})
})
