package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/rostersync/internal/services"
	"github.com/desertthunder/rostersync/internal/shared"
	tu "github.com/desertthunder/rostersync/internal/testing"
)

type mockMailer struct {
	sent []services.EmailMessage
	err  error
}

func (m *mockMailer) SendEmail(ctx context.Context, msg services.EmailMessage) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testConfig() *shared.Config {
	config := shared.DefaultConfig()
	config.Source.Email = "admin@club.fr"
	config.Source.Password = "secret"
	config.Source.CustomID = "club-1"
	config.Destination.APIKey = "brevo-key"
	config.Notify.AdminEmail = "admin@club.fr"
	config.Notify.SenderEmail = "sync@club.fr"
	config.Log.Level = "error"
	return config
}

type fixture struct {
	runner *Runner
	output *bytes.Buffer
	source *tu.MockSource
	dest   *tu.MockDestination
	mailer *mockMailer
	db     *sql.DB
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	source := tu.NewMockSource()
	source.AddList("l1", "Seniors", `{"email":"a@x.com","firstName":"Ann"}`, `{"email":"b@x.com"}`)
	source.AddList("l2", "Juniors", `{"email":"j@x.com"}`)

	dest := tu.NewMockDestination()
	dest.AddFolder("MonClub")
	dest.AddList("MonClub Seniors", "b@x.com", "old@x.com")

	f := &fixture{
		output: &bytes.Buffer{},
		source: source,
		dest:   dest,
		mailer: &mockMailer{},
		db:     setupTestDB(t),
	}
	f.runner = NewRunner(RunnerOpts{
		Config:      testConfig(),
		Source:      source,
		Destination: dest,
		Mailer:      f.mailer,
		DB:          f.db,
		Logger:      shared.NewLogger(&bytes.Buffer{}),
		Output:      f.output,
	})
	return f
}

func (f *fixture) run(args ...string) error {
	return newApp(f.runner).Run(context.Background(), append([]string{"rostersync"}, args...))
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}
			httpClient := &http.Client{}
			source := tu.NewMockSource()
			dest := tu.NewMockDestination()
			mailer := &mockMailer{}

			runner := NewRunner(RunnerOpts{
				Config:      config,
				Logger:      logger,
				Output:      output,
				HTTPClient:  httpClient,
				Source:      source,
				Destination: dest,
				Mailer:      mailer,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.loadConfig {
				t.Error("expected a provided config not to be reloaded")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
			if runner.httpClient != httpClient {
				t.Error("expected httpClient to be set")
			}
			if runner.sourceRegistry() != source {
				t.Error("expected source to be set")
			}
			if runner.destinationService() != dest {
				t.Error("expected destination to be set")
			}
			if runner.mailerService() != mailer {
				t.Error("expected mailer to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Config: nil,
			})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if !runner.loadConfig {
				t.Error("expected config to be loaded when a command runs")
			}
		})

		t.Run("with nil logger uses default", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Logger: nil,
			})

			if runner.logger == nil {
				t.Error("expected default logger to be set")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				Output: nil,
			})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})

		t.Run("with nil services builds Brevo and MonClub clients", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.source != nil || runner.destination != nil {
				t.Fatal("expected services to be created lazily")
			}
			if name := runner.sourceRegistry().Name(); name != "MonClub" {
				t.Errorf("expected MonClub source, got %s", name)
			}
			if name := runner.destinationService().Name(); name != "Brevo" {
				t.Errorf("expected Brevo destination, got %s", name)
			}
			if runner.mailerService() != services.Mailer(runner.brevo) {
				t.Error("expected mailer to share the Brevo client")
			}
		})

		t.Run("with configPath sets field", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{
				ConfigPath: "/test/path/config.toml",
			})

			if runner.configPath != "/test/path/config.toml" {
				t.Errorf("expected configPath to be set, got %s", runner.configPath)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes formatted JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, true)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("writes compact JSON successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			expected := `{"key":"value"}` + "\n"
			if result != expected {
				t.Errorf("expected %q, got %q", expected, result)
			}
		})

		t.Run("handles marshal error with non-serializable data", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			// channels cannot be marshaled to JSON
			data := make(chan int)
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error for non-serializable data")
			}
			if !strings.Contains(err.Error(), "failed to marshal JSON") {
				t.Errorf("expected marshal error, got %v", err)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			data := map[string]string{"key": "value"}
			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("handles newline write failure", func(t *testing.T) {
			data := map[string]string{"key": "value"}
			limitedWriter := tu.NewLimitedWriter(1, 0, &bytes.Buffer{})
			runner := NewRunner(RunnerOpts{Output: &limitedWriter})

			err := runner.writeJSON(data, false)

			if err == nil {
				t.Fatal("expected error writing newline")
			}
			if !strings.Contains(err.Error(), "failed to write newline") {
				t.Errorf("expected newline write error, got %v", err)
			}
		})
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes plain text successfully", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			err := runner.writePlain("hello %s", "world")

			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}

			result := output.String()
			if result != "hello world" {
				t.Errorf("expected 'hello world', got %q", result)
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			failing := &tu.FWriter{}
			runner := NewRunner(RunnerOpts{Output: failing})

			err := runner.writePlain("test")

			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})

		t.Run("writePlainln surrounds text with newlines", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlainln("Next steps:"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "\nNext steps:\n" {
				t.Errorf("unexpected output %q", output.String())
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		if len(commands) == 0 {
			t.Error("expected at least one command to be registered")
		}

		names := map[string]bool{}
		for i, cmd := range commands {
			if cmd == nil {
				t.Errorf("command at index %d is nil", i)
				continue
			}
			names[cmd.Name] = true
		}
		for _, want := range []string{"sync", "lists", "history", "setup", "api", "tui"} {
			if !names[want] {
				t.Errorf("expected %s command to be registered", want)
			}
		}
	})
}

func TestBefore(t *testing.T) {
	t.Run("loads config file and environment", func(t *testing.T) {
		dir := t.TempDir()
		configPath := filepath.Join(dir, "club.toml")
		data := "[sync]\nfolder_name = \"Adherents\"\n\n[log]\nlevel = \"warn\"\n"
		if err := os.WriteFile(configPath, []byte(data), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
		t.Setenv("BREVO_API_KEY", "env-key")

		runner := NewRunner(RunnerOpts{
			DB:     setupTestDB(t),
			Logger: shared.NewLogger(&bytes.Buffer{}),
			Output: &bytes.Buffer{},
		})

		if err := newApp(runner).Run(context.Background(), []string{"rostersync", "--config", configPath, "history", "list"}); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if runner.config.Sync.FolderName != "Adherents" {
			t.Errorf("expected folder from file, got %q", runner.config.Sync.FolderName)
		}
		if runner.config.Sync.BatchSize != 150 {
			t.Errorf("expected defaults to be kept, got batch size %d", runner.config.Sync.BatchSize)
		}
		if runner.config.Destination.APIKey != "env-key" {
			t.Errorf("expected API key from environment, got %q", runner.config.Destination.APIKey)
		}
		if runner.configPath != configPath {
			t.Errorf("expected configPath %s, got %s", configPath, runner.configPath)
		}
	})

	t.Run("missing explicit config fails", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{
			DB:     setupTestDB(t),
			Logger: shared.NewLogger(&bytes.Buffer{}),
			Output: &bytes.Buffer{},
		})

		missing := filepath.Join(t.TempDir(), "missing.toml")
		err := newApp(runner).Run(context.Background(), []string{"rostersync", "--config", missing, "history", "list"})
		if !errors.Is(err, shared.ErrMissingConfig) {
			t.Errorf("expected ErrMissingConfig, got %v", err)
		}
	})

	t.Run("debug flag overrides configured level", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("--debug", "history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if got := f.runner.logger.GetLevel().String(); got != "debug" {
			t.Errorf("expected debug level, got %s", got)
		}
	})
}

func TestSyncCommands(t *testing.T) {
	t.Run("sync run reconciles, records and notifies", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("sync", "run", "--format", "text"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		output := f.output.String()
		for _, want := range []string{"Lists: 2 total, 2 synced, 0 failed", "Seniors: +1 -1 =1, 2 after", "Juniors: +1 -0 =0, 1 after"} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output:\n%s", want, output)
			}
		}

		seniors, _, _ := f.dest.FindList(context.Background(), "MonClub Seniors")
		if got := f.dest.Members(seniors); len(got) != 2 || strings.Contains(strings.Join(got, ","), "old@x.com") {
			t.Errorf("expected Seniors to hold a and b, got %v", got)
		}

		if len(f.mailer.sent) != 1 {
			t.Fatalf("expected one notification, got %d", len(f.mailer.sent))
		}
		if subject := f.mailer.sent[0].Subject; subject != "[MonClub-Brevo Sync] Sync Completed Successfully" {
			t.Errorf("unexpected subject %q", subject)
		}

		var count int
		if err := f.db.QueryRow("SELECT COUNT(*) FROM sync_runs").Scan(&count); err != nil {
			t.Fatalf("failed to count runs: %v", err)
		}
		if count != 1 {
			t.Errorf("expected one recorded run, got %d", count)
		}
	})

	t.Run("sync run with list filter", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("sync", "run", "--list", "Juniors", "--format", "json", "--no-notify"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var export struct {
			Status  string `json:"status"`
			Reports []struct {
				ListName string `json:"listName"`
			} `json:"reports"`
		}
		if err := json.Unmarshal(f.output.Bytes(), &export); err != nil {
			t.Fatalf("expected JSON output, got %v:\n%s", err, f.output.String())
		}
		if export.Status != "completed" || len(export.Reports) != 1 {
			t.Fatalf("unexpected export %+v", export)
		}
		if len(f.mailer.sent) != 0 {
			t.Error("expected --no-notify to skip the email")
		}
		if _, found, _ := f.dest.FindList(context.Background(), "MonClub Juniors"); !found {
			t.Error("expected Juniors list to be created")
		}
	})

	t.Run("sync run writes report file", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(t.TempDir(), "report.md")

		if err := f.run("sync", "run", "--format", "markdown", "--output", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, path)
		if content := tu.MustReadFile(t, path); !strings.Contains(content, "# Sync Run #1") {
			t.Errorf("unexpected report file:\n%s", content)
		}
	})

	t.Run("sync run failure still reports and notifies", func(t *testing.T) {
		f := newFixture(t)
		f.source.AuthErr = errors.New("invalid credentials")

		err := f.run("sync", "run", "--format", "text")
		if !errors.Is(err, shared.ErrSourceAuth) {
			t.Fatalf("expected ErrSourceAuth, got %v", err)
		}
		if !strings.Contains(err.Error(), "MonClub API Error") {
			t.Errorf("expected error type in message, got %v", err)
		}
		if !strings.Contains(f.output.String(), "invalid credentials") {
			t.Errorf("expected error in report, got:\n%s", f.output.String())
		}
		if len(f.mailer.sent) != 1 || !strings.Contains(f.mailer.sent[0].Subject, "Sync Failed: MonClub API Error") {
			t.Errorf("expected failure notification, got %+v", f.mailer.sent)
		}
	})

	t.Run("notification failure does not fail the run", func(t *testing.T) {
		f := newFixture(t)
		f.mailer.err = errors.New("smtp down")

		if err := f.run("sync", "run"); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})

	t.Run("sync run rejects unknown format", func(t *testing.T) {
		f := newFixture(t)

		err := f.run("sync", "run", "--format", "yaml")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
		if f.source.Authenticated {
			t.Error("expected no sync with an invalid format")
		}
	})

	t.Run("sync run requires credentials", func(t *testing.T) {
		f := newFixture(t)
		f.runner.config.Source.Password = ""
		f.runner.config.Destination.APIKey = ""

		err := f.run("sync", "run")
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Fatalf("expected ErrMissingCredentials, got %v", err)
		}
		for _, want := range []string{"source.password", "destination.api_key"} {
			if !strings.Contains(err.Error(), want) {
				t.Errorf("expected %s in error, got %v", want, err)
			}
		}
	})

	t.Run("sync diff previews without mutating", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("sync", "diff", "--format", "text"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		output := f.output.String()
		for _, want := range []string{
			"Seniors -> MonClub Seniors",
			"1 to add, 1 to remove, 1 unchanged, 2 after",
			"  + a@x.com",
			"  - old@x.com",
			"Juniors -> MonClub Juniors",
			"list will be created",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("expected %q in output:\n%s", want, output)
			}
		}

		if len(f.dest.CreatedLists) != 0 || len(f.dest.AddCalls) != 0 || len(f.dest.RemoveCalls) != 0 {
			t.Error("expected diff not to mutate the destination")
		}
		if len(f.mailer.sent) != 0 {
			t.Error("expected diff not to notify")
		}
	})

	t.Run("sync diff fatal error", func(t *testing.T) {
		f := newFixture(t)
		f.source.ListsErr = errors.New("boom")

		err := f.run("sync", "diff")
		if !errors.Is(err, shared.ErrSourceLists) {
			t.Errorf("expected ErrSourceLists, got %v", err)
		}
	})
}

func TestListsCommands(t *testing.T) {
	t.Run("source lists as JSON", func(t *testing.T) {
		f := newFixture(t)
		f.source.Lists = append(f.source.Lists, f.source.Lists[0])
		f.source.Lists[2].ID, f.source.Lists[2].ParentID = "l1a", "l1"

		if err := f.run("lists", "source", "--top-level", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		var lists []map[string]any
		if err := json.Unmarshal(f.output.Bytes(), &lists); err != nil {
			t.Fatalf("expected JSON output, got %v", err)
		}
		if len(lists) != 2 {
			t.Errorf("expected nested list to be filtered out, got %d lists", len(lists))
		}
		if !f.source.Authenticated {
			t.Error("expected source to be authenticated")
		}
	})

	t.Run("source lists table", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("lists", "source"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), "Seniors") || !strings.Contains(f.output.String(), "Juniors") {
			t.Errorf("unexpected output:\n%s", f.output.String())
		}
	})

	t.Run("source authentication failure", func(t *testing.T) {
		f := newFixture(t)
		f.source.AuthErr = errors.New("bad password")

		if err := f.run("lists", "source"); err == nil || !strings.Contains(err.Error(), "bad password") {
			t.Errorf("expected authentication error, got %v", err)
		}
	})

	t.Run("destination lists with folder names", func(t *testing.T) {
		f := newFixture(t)
		folder, _, _ := f.dest.FindFolder(context.Background(), "MonClub")
		if _, err := f.dest.CreateList(context.Background(), "MonClub Juniors", folder); err != nil {
			t.Fatalf("failed to create list: %v", err)
		}

		if err := f.run("lists", "destination"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		output := f.output.String()
		if !strings.Contains(output, "MonClub Seniors") || !strings.Contains(output, "MonClub Juniors") {
			t.Errorf("expected both lists in output:\n%s", output)
		}
		if strings.Count(output, "MonClub") != 3 {
			t.Errorf("expected the folder name next to Juniors, got:\n%s", output)
		}
	})

	t.Run("destination failure", func(t *testing.T) {
		f := newFixture(t)
		f.dest.FindListErr = errors.New("brevo down")

		if err := f.run("lists", "destination"); err == nil || !strings.Contains(err.Error(), "brevo down") {
			t.Errorf("expected destination error, got %v", err)
		}
	})
}

func TestHistoryCommands(t *testing.T) {
	t.Run("empty history", func(t *testing.T) {
		f := newFixture(t)

		if err := f.run("history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.output.String() != "No runs recorded yet.\n" {
			t.Errorf("unexpected output %q", f.output.String())
		}
	})

	t.Run("lists and shows recorded runs", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("sync", "run", "--no-notify"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if err := f.run("sync", "diff"); err != nil {
			t.Fatalf("diff failed: %v", err)
		}
		f.output.Reset()

		if err := f.run("history", "list", "--json"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		var runs []struct {
			Sequence int  `json:"sequence"`
			DryRun   bool `json:"dryRun"`
		}
		if err := json.Unmarshal(f.output.Bytes(), &runs); err != nil {
			t.Fatalf("expected JSON output, got %v:\n%s", err, f.output.String())
		}
		if len(runs) != 2 || runs[0].Sequence != 2 || !runs[0].DryRun {
			t.Fatalf("expected diff run first, got %+v", runs)
		}

		f.output.Reset()
		if err := f.run("history", "list", "--dry-run=false"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if strings.Count(f.output.String(), "completed") != 1 {
			t.Errorf("expected only the real run, got:\n%s", f.output.String())
		}

		f.output.Reset()
		if err := f.run("history", "show", "--format", "text", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), "Seniors: +1 -1 =1, 2 after") {
			t.Errorf("expected reports of run 1, got:\n%s", f.output.String())
		}

		f.output.Reset()
		if err := f.run("history", "show", "--format", "markdown"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), "# Sync Diff") {
			t.Errorf("expected latest run to be the diff, got:\n%s", f.output.String())
		}
	})

	t.Run("unknown run", func(t *testing.T) {
		f := newFixture(t)

		err := f.run("history", "show", "42")
		if !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("deletes runs", func(t *testing.T) {
		f := newFixture(t)
		if err := f.run("sync", "run", "--no-notify"); err != nil {
			t.Fatalf("sync failed: %v", err)
		}
		if err := f.run("sync", "diff"); err != nil {
			t.Fatalf("diff failed: %v", err)
		}
		f.output.Reset()

		if err := f.run("history", "delete", "1"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), "Deleted run #1") {
			t.Errorf("unexpected output %q", f.output.String())
		}

		if err := f.run("history", "delete"); err != nil {
			t.Fatalf("expected latest run to be deleted, got %v", err)
		}

		f.output.Reset()
		if err := f.run("history", "list"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.output.String() != "No runs recorded yet.\n" {
			t.Errorf("expected deleted runs to be hidden, got:\n%s", f.output.String())
		}

		err := f.run("history", "delete", "1")
		if !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound for a deleted run, got %v", err)
		}
	})

	t.Run("invalid status filter", func(t *testing.T) {
		f := newFixture(t)

		err := f.run("history", "list", "--status", "exploded")
		if !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestSetupCommands(t *testing.T) {
	t.Run("setup config writes example", func(t *testing.T) {
		f := newFixture(t)
		path := filepath.Join(t.TempDir(), "config.toml")

		if err := f.run("setup", "config", path); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		tu.AssertFileExists(t, path)
		config, err := shared.LoadConfig(path)
		if err != nil {
			t.Fatalf("expected written config to load, got %v", err)
		}
		if config.Sync.FolderName != "MonClub" {
			t.Errorf("unexpected folder %q", config.Sync.FolderName)
		}

		if err := f.run("setup", "config", path); err == nil {
			t.Error("expected error when config already exists")
		}
	})

	t.Run("setup database migrates and reports status", func(t *testing.T) {
		f := newFixture(t)
		f.runner.config.Database.Path = filepath.Join(t.TempDir(), "history.db")

		if err := f.run("setup", "database"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		tu.AssertFileExists(t, f.runner.config.Database.Path)
		if !strings.Contains(f.output.String(), "applied") || strings.Contains(f.output.String(), "pending") {
			t.Errorf("expected every migration to be applied, got:\n%s", f.output.String())
		}

		f.output.Reset()
		if err := f.run("setup", "database", "--rollback"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), "pending") {
			t.Errorf("expected a pending migration after rollback, got:\n%s", f.output.String())
		}
	})
}

func TestAPICommands(t *testing.T) {
	newAPIFixture := func(t *testing.T, handler http.HandlerFunc) *fixture {
		t.Helper()
		server := httptest.NewServer(handler)
		t.Cleanup(server.Close)

		f := newFixture(t)
		f.runner.brevo = services.NewBrevoService(shared.DestinationConfig{BaseURL: server.URL, APIKey: "brevo-key"}, server.Client(), nil)
		return f
	}

	t.Run("get prints JSON", func(t *testing.T) {
		f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/account" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("api-key") != "brevo-key" {
				t.Error("expected api-key header")
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"email":"club@x.com"}`))
		})

		if err := f.run("api", "get", "--pretty=false", "/account"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if f.output.String() != `{"email":"club@x.com"}`+"\n" {
			t.Errorf("unexpected output %q", f.output.String())
		}
	})

	t.Run("post sends body", func(t *testing.T) {
		f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
			var body map[string]any
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body["name"] != "Test" {
				t.Errorf("unexpected body %v (%v)", body, err)
			}
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id":7}`))
		})

		if err := f.run("api", "post", "--data", `{"name":"Test"}`, "/contacts/lists"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(f.output.String(), `"id": 7`) {
			t.Errorf("unexpected output %q", f.output.String())
		}
	})

	t.Run("post rejects invalid JSON", func(t *testing.T) {
		f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
			t.Error("no request expected")
		})

		err := f.run("api", "post", "--data", "{nope", "/contacts")
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("error status", func(t *testing.T) {
		f := newAPIFixture(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"unauthorized"}`))
		})

		err := f.run("api", "get", "/account")
		if !errors.Is(err, shared.ErrAPIRequest) {
			t.Errorf("expected ErrAPIRequest, got %v", err)
		}
		if !strings.Contains(err.Error(), "status 401") {
			t.Errorf("expected status in error, got %v", err)
		}
	})
}
