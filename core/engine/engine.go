// Package engine manages sessions with a long-running external
// analysis process, exemplified by a malt-style dependency parser.
//
// A session wraps one engine process. Small batches are exchanged in
// chat mode over the process's pipes, which avoids respawning the JVM
// for every document. Large batches switch to block mode: the payload
// is written while the full response is drained concurrently, because
// writing a large request into a pipe whose output end is also filling
// deadlocks both sides. A session that served a block-mode call must
// not be reused; the caller replaces it on the next acquire.
package engine

import (
	"io"
	"strconv"

	"github.com/google/uuid"

	"github.com/corpusworks/annot/core/errors"
	"github.com/corpusworks/annot/internal/logging"
)

// RestartThreshold is the request payload size (in bytes) at which a
// batch stops chatting with the running process and is exchanged in
// block mode instead. Writing more than this into the process's stdin
// while its stdout fills risks a pipe deadlock. The value is
// conservative and could probably be larger.
const RestartThreshold = 64000

// State is the lifecycle state of a session.
type State int

const (
	// NotStarted means no process has been spawned yet.
	NotStarted State = iota
	// Persistent means the process is running and its protocol state
	// is clean, so chat mode is safe.
	Persistent
	// Dead means the process exited or the pipes were closed.
	Dead
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case NotStarted:
		return "not-started"
	case Persistent:
		return "persistent"
	case Dead:
		return "dead"
	}
	return "unknown"
}

// Config describes how to start the engine process.
type Config struct {
	// JavaBin is the JVM binary. Defaults to "java".
	JavaBin string

	// JarPath is the engine jar. Required.
	JarPath string

	// Model is the parsing model: a local model file or an http URL.
	// Required.
	Model string

	// JavaOpts are extra JVM options. Defaults to a 1 GiB heap.
	JavaOpts []string

	// Spawn overrides process creation. Tests inject a fake transport
	// here; when nil, a real child process is spawned.
	Spawn func(Config) (Transport, error)
}

// validate checks the configuration before any I/O begins.
func (c Config) validate() error {
	if c.JarPath == "" {
		return errors.NewConfig("jar", "engine jar path is required")
	}
	if c.Model == "" {
		return errors.NewConfig("model", "parsing model is required")
	}
	return nil
}

// Session wraps one external engine process. A session is owned by a
// single worker and never shared.
type Session struct {
	// ID correlates log entries for this session.
	ID string

	cfg   Config
	state State
	tr    Transport
}

// warmupUnit is a minimal one-token sentence sent through the protocol
// after a fresh spawn. Its reply is discarded; pushing one unit through
// the engine warms its internal caches and measurably cuts first-call
// latency.
var warmupUnit = Unit{"1\t.\t_\tMAD\tMAD\tMAD"}

// start spawns the engine process through the configured or the real
// transport.
func start(cfg Config) (Transport, error) {
	if cfg.Spawn != nil {
		return cfg.Spawn(cfg)
	}
	return newProcTransport(cfg)
}

// State returns the session's lifecycle state.
func (s *Session) State() State {
	if s == nil {
		return NotStarted
	}
	return s.state
}

// Acquire returns a usable session. A healthy prior session is reused
// as-is; otherwise a fresh process is spawned and warmed up. The prior
// session, if unusable, is terminated.
func Acquire(cfg Config, prior *Session) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if prior != nil {
		if prior.state == Persistent && prior.tr.Healthy() {
			logging.EngineEvent(prior.ID, "reuse")
			return prior, nil
		}
		prior.Close()
	}

	tr, err := start(cfg)
	if err != nil {
		return nil, err
	}
	sess := &Session{
		ID:    uuid.NewString(),
		cfg:   cfg,
		state: Persistent,
		tr:    tr,
	}
	logging.EngineEvent(sess.ID, "spawn", "jar", cfg.JarPath, "model", cfg.Model)

	if err := sess.warmup(); err != nil {
		logging.EngineError(sess.ID, "warmup", err)
		sess.Close()
		return nil, err
	}
	return sess, nil
}

// warmup pushes the warm-up sentence through the protocol and discards
// the reply.
func (s *Session) warmup() error {
	_, err := s.chat([]Unit{warmupUnit})
	return err
}

// SubmitBatch exchanges one batch of units with the engine and returns
// one result row per input token, in original order.
//
// shouldReplace reports whether the caller must acquire a fresh session
// before the next batch: block-mode traffic may leave the protocol
// state desynchronized, and any chat-mode error kills the session.
func (s *Session) SubmitBatch(units []Unit) (results [][]Row, shouldReplace bool, err error) {
	if s.state != Persistent {
		return nil, true, errors.NewProcess(s.cfg.JarPath, "", io.ErrClosedPipe)
	}

	payload := serialize(units)
	chatty := len(payload) < RestartThreshold
	logging.EngineEvent(s.ID, "submit",
		"units", len(units), "payload_bytes", len(payload), "chat", chatty)

	if chatty {
		results, err = s.chat(units)
		if err != nil {
			// A partial chat exchange leaves unread output in the
			// pipes. The session cannot be trusted again.
			s.Close()
			return nil, true, err
		}
		return results, false, nil
	}

	results, err = s.block(units, payload)
	return results, true, err
}

// chat exchanges units over the running process's pipes: the payload
// plus an empty-sentence terminator goes in, then exactly the right
// number of response lines per unit comes out.
func (s *Session) chat(units []Unit) ([][]Row, error) {
	payload := serialize(units)
	if err := s.tr.WriteString(payload + SentSep); err != nil {
		return nil, err
	}
	if err := s.tr.Flush(); err != nil {
		return nil, err
	}

	results := make([][]Row, len(units))
	for ui, unit := range units {
		rows := make([]Row, len(unit))
		for ti := range unit {
			line, err := s.tr.ReadLine()
			if err != nil {
				return nil, &errors.ProtocolError{Unit: ui, Message: "engine stopped responding", Err: err}
			}
			if line == "" {
				return nil, errors.NewProtocol(ui,
					"unexpected sentence terminator after "+strconv.Itoa(ti)+" of "+strconv.Itoa(len(unit))+" lines")
			}
			row, err := parseRow(ui, line)
			if err != nil {
				return nil, err
			}
			rows[ti] = row
		}
		line, err := s.tr.ReadLine()
		if err != nil {
			return nil, &errors.ProtocolError{Unit: ui, Message: "engine stopped responding", Err: err}
		}
		if line != "" {
			return nil, errors.NewProtocol(ui, "expected sentence terminator, got more lines")
		}
		results[ui] = rows
	}
	return results, nil
}

// block exchanges the payload in one buffered request/response: the
// process's stdin is closed after the write and both streams are
// drained without interleaving. The process is gone afterwards.
func (s *Session) block(units []Unit, payload string) ([][]Row, error) {
	s.state = Dead
	out, err := s.tr.Exchange(payload)
	if err != nil {
		return nil, err
	}
	return parseBlock(units, out)
}

// parseBlock splits a full block-mode response back into per-unit rows.
func parseBlock(units []Unit, out string) ([][]Row, error) {
	for len(out) > 0 && out[len(out)-1] == '\n' {
		out = out[:len(out)-1]
	}
	var sents []string
	if out != "" {
		sents = splitSentences(out)
	}
	if len(sents) != len(units) {
		return nil, errors.NewProtocol(-1,
			"expected "+strconv.Itoa(len(units))+" response units, got "+strconv.Itoa(len(sents)))
	}

	results := make([][]Row, len(units))
	for ui, sent := range sents {
		lines := splitLines(sent)
		if len(lines) != len(units[ui]) {
			return nil, errors.NewProtocol(ui,
				"expected "+strconv.Itoa(len(units[ui]))+" response lines, got "+strconv.Itoa(len(lines)))
		}
		rows := make([]Row, len(lines))
		for ti, line := range lines {
			row, err := parseRow(ui, line)
			if err != nil {
				return nil, err
			}
			rows[ti] = row
		}
		results[ui] = rows
	}
	return results, nil
}

// Close terminates the session's process. Safe on nil and on already
// closed sessions.
func (s *Session) Close() error {
	if s == nil || s.tr == nil || s.state == Dead {
		if s != nil {
			s.state = Dead
		}
		return nil
	}
	s.state = Dead
	logging.EngineEvent(s.ID, "close")
	return s.tr.Close()
}
