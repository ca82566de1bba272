// Package run writes the per-invocation output directory: run
// metadata, the full request/response log, and the pass/fail verdict
// a caller (CLI exit code, CI wrapper) consults, per the supplemented
// CLI surface.
package run

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

// ClientVersion, TestDefinitionsVersion and SchemaVersion are the
// compiled-in version strings stamped into every run's .versions
// file. They are build-time constants rather than derived from module
// metadata because, unlike the source this was adapted from, Go has
// no runtime package-version introspection equivalent to worry about.
const (
	ClientVersion          = "0.1.0"
	TestDefinitionsVersion = "0.1.0"
	SchemaVersion          = "2030.5"
)

const runIDFileName = ".runid"

// OutputFile names the fixed metadata and result files written into
// every run's output directory.
type OutputFile string

const (
	FileVersionsMetadata OutputFile = ".versions"
	FileTestProcedureID  OutputFile = ".testprocedureid"
	FileCSIPAusVersion   OutputFile = ".csipaustarget"
	FileClientIDs        OutputFile = ".clientids"
	FileConsoleLog       OutputFile = "cactus.log"
	FileReport           OutputFile = "report.html"
	FileResult           OutputFile = ".result"
)

// requestsDirName is the subdirectory every request/response and
// notification is logged under.
const requestsDirName = "requests"

// Manager owns one run's output directory: an incrementing run id
// directory under baseOutputDir, pre-populated with the fixed
// metadata files.
type Manager struct {
	baseOutputDir string
	RunID         int
	RunDir        string
}

// New allocates the next run id (via the flock-guarded .runid
// counter) and creates "run <id> - <testProcedureID>" under
// baseOutputDir, writing the fixed metadata files.
func New(baseOutputDir, testProcedureID, csipAusVersion string, clientIDs []string) (*Manager, error) {
	if err := os.MkdirAll(baseOutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("run: creating output directory: %w", err)
	}

	runID, err := incrementRunIDCounter(filepath.Join(baseOutputDir, runIDFileName))
	if err != nil {
		return nil, fmt.Errorf("run: allocating run id: %w", err)
	}

	runDir := filepath.Join(baseOutputDir, fmt.Sprintf("run %03d - %s", runID, testProcedureID))
	if _, err := os.Stat(runDir); err == nil {
		return nil, fmt.Errorf("run: %s already exists, check %s", runDir, runIDFileName)
	}
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return nil, fmt.Errorf("run: creating %s: %w", runDir, err)
	}

	m := &Manager{baseOutputDir: baseOutputDir, RunID: runID, RunDir: runDir}

	if err := m.writeFile(FileTestProcedureID, testProcedureID); err != nil {
		return nil, err
	}
	if err := m.writeFile(FileCSIPAusVersion, csipAusVersion); err != nil {
		return nil, err
	}
	versions := fmt.Sprintf("CACTUS_TEST_DEFINITIONS_VERSION=%s\nCACTUS_CLIENT_VERSION=%s\nENVOY_SCHEMA_VERSION=%s\n",
		TestDefinitionsVersion, ClientVersion, SchemaVersion)
	if err := m.writeFile(FileVersionsMetadata, versions); err != nil {
		return nil, err
	}
	if err := m.writeFile(FileClientIDs, strings.Join(clientIDs, "\n")); err != nil {
		return nil, err
	}

	if err := os.Mkdir(filepath.Join(runDir, requestsDirName), 0o755); err != nil {
		return nil, fmt.Errorf("run: creating requests directory: %w", err)
	}

	return m, nil
}

// FilePath returns the absolute path of a fixed output file within
// this run's directory.
func (m *Manager) FilePath(file OutputFile) string {
	return filepath.Join(m.RunDir, string(file))
}

// RequestsDir returns this run's request/response log directory.
func (m *Manager) RequestsDir() string {
	return filepath.Join(m.RunDir, requestsDirName)
}

func (m *Manager) writeFile(file OutputFile, content string) error {
	if err := os.WriteFile(m.FilePath(file), []byte(content), 0o644); err != nil {
		return fmt.Errorf("run: writing %s: %w", file, err)
	}
	return nil
}

// WriteResult stamps the final PASS/FAIL verdict.
func (m *Manager) WriteResult(passed bool) error {
	verdict := "FAIL"
	if passed {
		verdict = "PASS"
	}
	return m.writeFile(FileResult, verdict)
}

// incrementRunIDCounter reads, locks, increments and rewrites the
// .runid counter file, defaulting to 1 if it does not yet exist.
// gofrs/flock picks the OS-appropriate lock primitive (flock(2) on
// POSIX, LockFileEx on Windows) so this needs no platform split of its
// own.
func incrementRunIDCounter(path string) (int, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := os.WriteFile(path, []byte("1"), 0o644); err != nil {
			return 0, err
		}
		return 1, nil
	}

	fileLock := flock.New(path)
	if err := fileLock.Lock(); err != nil {
		return 0, fmt.Errorf("locking %s: %w", path, err)
	}
	defer fileLock.Unlock()

	fh := fileLock.Fh()
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	data, err := io.ReadAll(fh)
	if err != nil {
		return 0, err
	}
	current, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		current = 0
	}
	next := current + 1

	if err := fh.Truncate(0); err != nil {
		return 0, err
	}
	if _, err := fh.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	if _, err := fh.WriteString(strconv.Itoa(next)); err != nil {
		return 0, err
	}
	return next, nil
}
