package session

import (
	"encoding/json"
	"fmt"

	"github.com/mfelix/quibble/internal/store"
)

// Round artifacts are write-once. writeOnce refuses to overwrite an
// existing artifact so a resumed session can never clobber history.
func writeOnce(s store.Store, path string, v any) error {
	ok, err := s.Exists(path)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("artifact %s already exists", path)
	}
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return s.Write(path, content)
}

func readJSON(s store.Store, path string, v any) (bool, error) {
	content, ok, err := s.Read(path)
	if err != nil || !ok {
		return ok, err
	}
	if err := json.Unmarshal(content, v); err != nil {
		return true, fmt.Errorf("decode %s: %w", path, err)
	}
	return true, nil
}

func WriteReview(s store.Store, round int, p *ReviewPayload) error {
	return writeOnce(s, ReviewPath(round), p)
}

func ReadReview(s store.Store, round int) (*ReviewPayload, bool, error) {
	var p ReviewPayload
	ok, err := readJSON(s, ReviewPath(round), &p)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &p, true, nil
}

func WriteResponse(s store.Store, round int, p *ResponsePayload) error {
	return writeOnce(s, ResponsePath(round), p)
}

func ReadResponse(s store.Store, round int) (*ResponsePayload, bool, error) {
	var p ResponsePayload
	ok, err := readJSON(s, ResponsePath(round), &p)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &p, true, nil
}

func WriteConsensus(s store.Store, round int, p *ConsensusPayload) error {
	return writeOnce(s, ConsensusPath(round), p)
}

func ReadConsensus(s store.Store, round int) (*ConsensusPayload, bool, error) {
	var p ConsensusPayload
	ok, err := readJSON(s, ConsensusPath(round), &p)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &p, true, nil
}

// WriteDocument persists the round's document snapshot. This is the last
// artifact of a round; its existence implies the review and response
// payloads are already durable.
func WriteDocument(s store.Store, round int, doc string) error {
	ok, err := s.Exists(DocumentPath(round))
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("artifact %s already exists", DocumentPath(round))
	}
	return s.Write(DocumentPath(round), []byte(doc))
}

func ReadDocument(s store.Store, round int) (string, bool, error) {
	content, ok, err := s.Read(DocumentPath(round))
	if err != nil || !ok {
		return "", ok, err
	}
	return string(content), true, nil
}

func WriteTiming(s store.Store, round int, t *RoundTiming) error {
	// Timing is informational; overwrite is allowed on resume.
	content, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode timing: %w", err)
	}
	return s.Write(TimingPath(round), content)
}

func ReadTiming(s store.Store, round int) (*RoundTiming, bool, error) {
	var t RoundTiming
	ok, err := readJSON(s, TimingPath(round), &t)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &t, true, nil
}

// WriteFinal persists the end-of-session artifacts.
func WriteFinal(s store.Store, doc string, sum *Summary) error {
	if err := s.Write(FinalDocPath, []byte(doc)); err != nil {
		return err
	}
	content, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return s.Write(FinalSummaryPath, content)
}

func ReadSummary(s store.Store) (*Summary, bool, error) {
	var sum Summary
	ok, err := readJSON(s, FinalSummaryPath, &sum)
	if !ok || err != nil {
		return nil, ok, err
	}
	return &sum, true, nil
}
