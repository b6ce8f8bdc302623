package dotdir

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Manager", func() {
	var (
		wd   string
		home string
		mgr  *Manager
	)

	BeforeEach(func() {
		wd = GinkgoT().TempDir()
		home = GinkgoT().TempDir()
		mgr = &Manager{
			getwd:   func() (string, error) { return wd, nil },
			homeDir: func() (string, error) { return home, nil },
		}
	})

	It("returns and creates the override directory", func() {
		override := filepath.Join(GinkgoT().TempDir(), "custom")

		target, err := mgr.Target(override)
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(override))
		Expect(override).To(BeADirectory())
	})

	It("prefers the working directory over home", func() {
		Expect(os.Mkdir(filepath.Join(wd, ".folio"), 0o755)).To(Succeed())
		Expect(os.Mkdir(filepath.Join(home, ".folio"), 0o755)).To(Succeed())

		target, err := mgr.Target("")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(filepath.Join(wd, ".folio")))
	})

	It("falls back to home", func() {
		Expect(os.Mkdir(filepath.Join(home, ".folio"), 0o755)).To(Succeed())

		target, err := mgr.Target("")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(filepath.Join(home, ".folio")))
	})

	It("returns empty when nothing exists", func() {
		target, err := mgr.Target("")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(BeEmpty())
	})

	It("creates the home directory from EnsureTarget", func() {
		target, err := mgr.EnsureTarget("")
		Expect(err).NotTo(HaveOccurred())
		Expect(target).To(Equal(filepath.Join(home, ".folio")))
		Expect(target).To(BeADirectory())
	})
})
