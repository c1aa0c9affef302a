//go:build integration

package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/integrity_mon/internal/domain"
	"github.com/eliteGoblin/focusd/integrity_mon/internal/infra"
	"github.com/eliteGoblin/focusd/integrity_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/integrity_mon/test/fixtures"
)

var _ = Describe("Integrity monitor", func() {
	var (
		tmpDir    string
		tree      *fixtures.FakeEtcTree
		paths     domain.Paths
		stdout    *bytes.Buffer
		stderr    *bytes.Buffer
		baselines *infra.FileBaselineStore
		events    *infra.FileEventLog
		walker    *infra.TreeWalker
		logger    *zap.Logger
	)

	capture := func() *domain.CaptureResult {
		result, err := usecase.NewCapturer(paths, walker, baselines, events, logger).Capture(context.Background())
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	check := func() *domain.CheckResult {
		result, err := usecase.NewChecker(paths, walker, baselines, events, stdout, logger).Check(context.Background())
		Expect(err).NotTo(HaveOccurred())
		return result
	}

	BeforeEach(func() {
		var err error
		tmpDir, err = os.MkdirTemp("", "integmon-integration-*")
		Expect(err).NotTo(HaveOccurred())

		tree = fixtures.NewFakeEtcTree(filepath.Join(tmpDir, "etc"))
		Expect(tree.Create()).To(Succeed())

		dataDir := filepath.Join(tmpDir, "data")
		paths = domain.Paths{
			MonitoredRoot: tree.Root,
			BaselinePath:  filepath.Join(dataDir, infra.DefaultBaselineFileName),
			ReportPath:    filepath.Join(dataDir, infra.DefaultReportFileName),
		}

		stdout, stderr = &bytes.Buffer{}, &bytes.Buffer{}
		logger = zap.NewNop()
		baselines = infra.NewFileBaselineStore(paths.BaselinePath, logger)
		events = infra.NewFileEventLog(paths.ReportPath, infra.NewFileSystemManager(), stdout, stderr)
		walker = infra.NewTreeWalker(infra.NewSHA256Hasher(logger), logger)
	})

	AfterEach(func() {
		os.RemoveAll(tmpDir)
	})

	Describe("Capture", func() {
		Context("on a fresh tree", func() {
			It("should record every regular file and nothing else", func() {
				result := capture()
				Expect(result.Records).To(Equal(tree.RegularFileCount()))

				baseline, err := baselines.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(baseline).To(HaveLen(tree.RegularFileCount()))
				Expect(baseline).To(HaveKey(tree.Path("cron.d/backup job")))
				Expect(baseline).NotTo(HaveKey(tree.Path("hosts.link")))
				Expect(baseline).NotTo(HaveKey(tree.Path("initctl")))
				Expect(baseline).NotTo(HaveKey(tree.Path("ssh.link/sshd_config")))
			})

			It("should write a sha256sum-compatible file", func() {
				capture()

				data, err := os.ReadFile(paths.BaselinePath)
				Expect(err).NotTo(HaveOccurred())
				for _, line := range strings.Split(strings.TrimSuffix(string(data), "\n"), "\n") {
					Expect(line).To(MatchRegexp(`^[0-9a-f]{64}  /.+$`))
				}
			})
		})

		Context("when a baseline already exists", func() {
			It("should replace it rather than merge", func() {
				capture()
				Expect(tree.Delete("passwd")).To(Succeed())

				capture()

				baseline, err := baselines.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(baseline).NotTo(HaveKey(tree.Path("passwd")))
			})
		})
	})

	Describe("Check", func() {
		BeforeEach(func() {
			capture()
			stdout.Reset()
			stderr.Reset()
		})

		Context("when nothing changed", func() {
			It("should report no changes and stay silent on stderr", func() {
				result := check()

				Expect(result.Diff.HasChanges()).To(BeFalse())
				Expect(result.Diff.Unchanged).To(Equal(tree.RegularFileCount()))
				Expect(stdout.String()).To(ContainSubstring("No unauthorized changes detected."))
				Expect(stderr.String()).To(BeEmpty())
			})

			It("should give the same answer every time", func() {
				first := check()
				second := check()
				Expect(second.Diff).To(Equal(first.Diff))
			})
		})

		Context("when files are modified, added and deleted", func() {
			BeforeEach(func() {
				Expect(tree.Write("hosts", "10.0.0.66 localhost\n")).To(Succeed())
				Expect(tree.Write("sudoers.d/backdoor", "ALL ALL=(ALL) NOPASSWD: ALL\n")).To(Succeed())
				Expect(tree.Delete("ssh/sshd_config")).To(Succeed())
			})

			It("should classify each change", func() {
				result := check()

				Expect(result.Diff.Modified).To(Equal([]string{tree.Path("hosts")}))
				Expect(result.Diff.Added).To(Equal([]string{tree.Path("sudoers.d/backdoor")}))
				Expect(result.Diff.Deleted).To(Equal([]string{tree.Path("ssh/sshd_config")}))
			})

			It("should alert in red on stderr and in the report", func() {
				check()

				Expect(stderr.String()).To(ContainSubstring("\033[91m🚨 ALERT: Unauthorized changes detected!\033[0m"))

				report, err := events.Read()
				Expect(err).NotTo(HaveOccurred())
				Expect(string(report)).To(ContainSubstring("[ALERT] Modified Files: " + tree.Path("hosts")))
				Expect(string(report)).To(ContainSubstring("[ALERT] New Files: " + tree.Path("sudoers.d/backdoor")))
				Expect(string(report)).To(ContainSubstring("[ALERT] Deleted Files: " + tree.Path("ssh/sshd_config")))
			})

			It("should leave the baseline untouched", func() {
				before, err := os.ReadFile(paths.BaselinePath)
				Expect(err).NotTo(HaveOccurred())

				check()

				after, err := os.ReadFile(paths.BaselinePath)
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(Equal(before))
			})
		})

		Context("when the baseline is corrupt", func() {
			It("should fail with a malformed baseline error", func() {
				Expect(os.WriteFile(paths.BaselinePath, []byte("not a baseline\n"), 0600)).To(Succeed())

				_, err := usecase.NewChecker(paths, walker, baselines, events, stdout, logger).Check(context.Background())
				Expect(err).To(MatchError(domain.ErrMalformedBaseline))
			})
		})
	})

	Describe("Report", func() {
		It("should accumulate entries across runs and clear on request", func() {
			capture()
			check()

			out := &bytes.Buffer{}
			reporter := usecase.NewReporter(events, out)
			Expect(reporter.View()).To(Succeed())
			Expect(out.String()).To(ContainSubstring("Generating baseline hashes for"))
			Expect(out.String()).To(ContainSubstring("Checking file integrity."))

			Expect(reporter.Clear()).To(Succeed())
			Expect(events.Exists()).To(BeFalse())
			Expect(reporter.View()).To(MatchError(domain.ErrReportNotFound))
		})
	})

	Describe("History", func() {
		It("should record each check in the encrypted store", func() {
			dataDir := filepath.Dir(paths.BaselinePath)
			history, err := infra.OpenHistoryStore(filepath.Join(dataDir, "history.db"), infra.NewHistoryKeyFile(dataDir))
			Expect(err).NotTo(HaveOccurred())
			defer history.Close()

			capture()
			checker := usecase.NewChecker(paths, walker, baselines, events, stdout, logger).WithHistory(history, "ci")
			_, err = checker.Check(context.Background())
			Expect(err).NotTo(HaveOccurred())

			runs, err := history.Recent(10)
			Expect(err).NotTo(HaveOccurred())
			Expect(runs).To(HaveLen(1))
			Expect(runs[0].Host).To(Equal("ci"))
			Expect(runs[0].Scanned).To(Equal(tree.RegularFileCount()))
		})
	})
})
