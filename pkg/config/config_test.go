package config

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
)

var _ = Describe("Load", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		for _, key := range []string{EnvBaseURL, EnvTimeout, EnvEnvironment, EnvCredentialsBackend} {
			GinkgoT().Setenv(key, "")
		}
	})

	write := func(body string) {
		gomega.Expect(os.WriteFile(filepath.Join(dir, FileName), []byte(body), 0o644)).To(gomega.Succeed())
	}

	It("returns defaults when the file is missing", func() {
		cfg, err := Load(dir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.API.BaseURL).To(gomega.Equal(defaultBaseURL))
		gomega.Expect(cfg.API.Timeout).To(gomega.Equal(30 * time.Second))
		gomega.Expect(cfg.API.MaxRetries).To(gomega.Equal(3))
		gomega.Expect(cfg.Credentials.Backend).To(gomega.Equal(BackendFile))
		gomega.Expect(cfg.Credentials.SQLitePath).To(gomega.Equal(filepath.Join(dir, "credentials.db")))
	})

	It("returns defaults with no directory", func() {
		cfg, err := Load("")
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.Environment).To(gomega.Equal("development"))
		gomega.Expect(cfg.Credentials.SQLitePath).To(gomega.Equal("credentials.db"))
	})

	It("reads every section", func() {
		write(`
environment = "production"

[api]
base_url = "https://blog.example.com/api"
timeout = "10s"
max_retries = 1
backoff_base = "250ms"

[credentials]
backend = "sqlite"
sqlite_path = "/var/lib/folio/creds.db"

[events]
kafka_brokers = ["kafka-1:9092", "kafka-2:9092"]
kafka_topic = "sessions"
client_id = "folio-cli"
`)

		cfg, err := Load(dir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.Environment).To(gomega.Equal("production"))
		gomega.Expect(cfg.API.BaseURL).To(gomega.Equal("https://blog.example.com/api"))
		gomega.Expect(cfg.API.Timeout).To(gomega.Equal(10 * time.Second))
		gomega.Expect(cfg.API.MaxRetries).To(gomega.Equal(1))
		gomega.Expect(cfg.API.BackoffBase).To(gomega.Equal(250 * time.Millisecond))
		gomega.Expect(cfg.Credentials.Backend).To(gomega.Equal(BackendSQLite))
		gomega.Expect(cfg.Credentials.SQLitePath).To(gomega.Equal("/var/lib/folio/creds.db"))
		gomega.Expect(cfg.Events.KafkaBrokers).To(gomega.Equal([]string{"kafka-1:9092", "kafka-2:9092"}))
		gomega.Expect(cfg.Events.KafkaTopic).To(gomega.Equal("sessions"))
		gomega.Expect(cfg.Events.ClientID).To(gomega.Equal("folio-cli"))
	})

	It("lets the environment override the file", func() {
		write(`
[api]
base_url = "https://file.example.com"
`)
		GinkgoT().Setenv(EnvBaseURL, "https://env.example.com")
		GinkgoT().Setenv(EnvTimeout, "5s")
		GinkgoT().Setenv(EnvEnvironment, "test")
		GinkgoT().Setenv(EnvCredentialsBackend, "memory")

		cfg, err := Load(dir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(cfg.API.BaseURL).To(gomega.Equal("https://env.example.com"))
		gomega.Expect(cfg.API.Timeout).To(gomega.Equal(5 * time.Second))
		gomega.Expect(cfg.Environment).To(gomega.Equal("test"))
		gomega.Expect(cfg.Credentials.Backend).To(gomega.Equal(BackendMemory))
	})

	It("rejects a malformed timeout override", func() {
		GinkgoT().Setenv(EnvTimeout, "soon")
		_, err := Load(dir)
		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring(EnvTimeout)))
	})

	It("rejects an unknown credentials backend", func() {
		write(`
[credentials]
backend = "keychain"
`)
		_, err := Load(dir)
		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("invalid config")))
	})

	It("rejects a base url that is not http", func() {
		write(`
[api]
base_url = "not a url"
`)
		_, err := Load(dir)
		gomega.Expect(err).To(gomega.HaveOccurred())
	})

	It("rejects malformed toml", func() {
		write(`[api`)
		_, err := Load(dir)
		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("parse")))
	})

	It("round-trips through Save", func() {
		cfg := Default()
		cfg.API.BaseURL = "https://saved.example.com/api"
		cfg.Credentials.Backend = BackendMemory
		gomega.Expect(cfg.Save(dir)).To(gomega.Succeed())

		loaded, err := Load(dir)
		gomega.Expect(err).NotTo(gomega.HaveOccurred())
		gomega.Expect(loaded.API.BaseURL).To(gomega.Equal("https://saved.example.com/api"))
		gomega.Expect(loaded.API.Timeout).To(gomega.Equal(cfg.API.Timeout))
		gomega.Expect(loaded.Credentials.Backend).To(gomega.Equal(BackendMemory))
	})

	It("reports a config file that cannot be written", func() {
		gomega.Expect(os.Mkdir(filepath.Join(dir, FileName), 0o755)).To(gomega.Succeed())

		err := Default().Save(dir)
		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring(FileName)))
	})
})
