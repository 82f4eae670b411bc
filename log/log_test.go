package log_test

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/vocdoni/starkvote/log"
)

func restoreLevel(c *qt.C) {
	prev := log.Level()
	c.Cleanup(func() {
		c.Assert(log.Init(prev, "stderr", nil), qt.IsNil)
	})
}

func TestInit(t *testing.T) {
	c := qt.New(t)
	restoreLevel(c)

	c.Assert(log.Init("verbose", "stderr", nil), qt.ErrorMatches, `invalid log level "verbose"`)
	c.Assert(log.Init(log.LogLevelWarn, "stderr", nil), qt.IsNil)
	c.Assert(log.Level(), qt.Equals, log.LogLevelWarn)
	c.Assert(log.Init("DEBUG", "stderr", nil), qt.IsNil)
	c.Assert(log.Level(), qt.Equals, log.LogLevelDebug)

	c.Assert(log.Init(log.LogLevelInfo, filepath.Join(c.TempDir(), "missing", "node.log"), nil), qt.IsNotNil)
}

func TestFileOutput(t *testing.T) {
	c := qt.New(t)
	restoreLevel(c)

	file := filepath.Join(c.TempDir(), "node.json")
	c.Assert(log.Init(log.LogLevelInfo, file, nil), qt.IsNil)
	log.Infow("vote committed", "candidate", 1, "digest", "0xabcd")
	log.Debugw("hidden")

	data, err := os.ReadFile(file)
	c.Assert(err, qt.IsNil)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	c.Assert(lines, qt.HasLen, 1)
	var entry map[string]any
	c.Assert(json.Unmarshal([]byte(lines[0]), &entry), qt.IsNil)
	c.Assert(entry["message"], qt.Equals, "vote committed")
	c.Assert(entry["level"], qt.Equals, "info")
	c.Assert(entry["candidate"], qt.Equals, float64(1))
	c.Assert(entry["digest"], qt.Equals, "0xabcd")
	c.Assert(entry["caller"], qt.Matches, `log/log_test\.go:\d+`)
}

func TestErrorOutput(t *testing.T) {
	c := qt.New(t)
	restoreLevel(c)

	var errOut bytes.Buffer
	c.Assert(log.Init(log.LogLevelDebug, "stderr", &errOut), qt.IsNil)
	log.Infow("only on the main output")
	log.Warnw("ledger slow", "ms", 1200)

	c.Assert(errOut.String(), qt.Not(qt.Contains), "only on the main output")
	c.Assert(errOut.String(), qt.Contains, "ledger slow")
}

func TestPanicOnError(t *testing.T) {
	c := qt.New(t)

	c.Run("fires on error", func(c *qt.C) {
		ch := make(chan string, 1)
		prev := log.EnablePanicOnErrorWithHandler(c.Name(), 50*time.Millisecond, func(msg string) {
			ch <- msg
		})
		defer log.RestoreLogger(prev)

		log.Errorw(nil, "proof generation failed")
		select {
		case got := <-ch:
			c.Assert(got, qt.Matches, `ERROR found in logs during test TestPanicOnError/fires_on_error: proof generation failed`)
		case <-time.After(time.Second):
			c.Fatalf("handler did not fire")
		}
	})

	c.Run("ignores warnings", func(c *qt.C) {
		ch := make(chan string, 1)
		prev := log.EnablePanicOnErrorWithHandler(c.Name(), 50*time.Millisecond, func(msg string) {
			ch <- msg
		})
		defer log.RestoreLogger(prev)

		log.Warnw("retrying")
		log.Infow("ok")
		select {
		case got := <-ch:
			c.Fatalf("unexpected handler call: %s", got)
		case <-time.After(150 * time.Millisecond):
		}
	})

	c.Run("restored", func(c *qt.C) {
		ch := make(chan string, 1)
		prev := log.EnablePanicOnErrorWithHandler(c.Name(), 50*time.Millisecond, func(msg string) {
			ch <- msg
		})
		log.RestoreLogger(prev)

		log.Errorw(nil, "after restore")
		select {
		case got := <-ch:
			c.Fatalf("unexpected handler call: %s", got)
		case <-time.After(150 * time.Millisecond):
		}
	})
}
