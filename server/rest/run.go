//
// Tencent is pleased to support the open source community by making trpc-workflow-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-workflow-go is licensed under the Apache License Version 2.0.
//
//

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/mux"

	"trpc.group/trpc-go/trpc-workflow-go/event"
	"trpc.group/trpc-go/trpc-workflow-go/graph"
	"trpc.group/trpc-go/trpc-workflow-go/log"
)

// Run states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

var errRunNotFound = errors.New("run not found")

// Run is the status of a run.
type Run struct {
	RunID  string       `json:"runId"`
	State  string       `json:"state"`
	Order  []string     `json:"order,omitempty"`
	Error  *event.Error `json:"error,omitempty"`
	Events int          `json:"events"`
}

// runRecord buffers the events of one run so late subscribers can replay
// them. changed is closed and replaced on every append.
type runRecord struct {
	id     string
	cancel context.CancelFunc

	mu      sync.Mutex
	events  []*event.Event
	changed chan struct{}
	done    bool
}

func newRunRecord(id string, cancel context.CancelFunc) *runRecord {
	return &runRecord{id: id, cancel: cancel, changed: make(chan struct{})}
}

func (r *runRecord) append(e *event.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	if e.Type.Terminal() {
		r.done = true
	}
	close(r.changed)
	r.changed = make(chan struct{})
}

// since returns the events from index i on, a channel closed on the next
// append, and whether the run is over.
func (r *runRecord) since(i int) ([]*event.Event, <-chan struct{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.events[i:], r.changed, r.done
}

func (r *runRecord) view() Run {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := Run{RunID: r.id, State: RunRunning, Events: len(r.events)}
	for _, e := range r.events {
		switch e.Type {
		case event.TypeRunStart:
			v.Order = e.Order
		case event.TypeRunComplete:
			v.State = RunCompleted
		case event.TypeRunError:
			v.State = RunFailed
			if e.Error != nil && e.Error.Type == graph.ErrorTypeCanceled {
				v.State = RunCanceled
			}
			v.Error = e.Error
		}
	}
	return v
}

func (s *Server) handleStartRun(w http.ResponseWriter, _ *http.Request) {
	ctx, cancel := context.WithCancel(s.ctx)
	events, err := s.executor.Execute(ctx)
	if err != nil {
		cancel()
		s.writeError(w, err)
		return
	}
	// The first event is run.start, or run.error for a graph that cannot
	// be scheduled; both carry the run id.
	first, ok := <-events
	if !ok {
		cancel()
		s.writeError(w, errors.New("run ended without events"))
		return
	}
	rec := newRunRecord(first.RunID, cancel)
	rec.append(first)
	s.addRun(rec)

	pump := func() {
		defer cancel()
		for e := range events {
			rec.append(e)
		}
	}
	if err := s.pool.Submit(pump); err != nil {
		log.Warnf("run %s: worker pool unavailable, draining inline: %v", rec.id, err)
		go pump()
	}
	s.writeJSON(w, http.StatusAccepted, rec.view())
}

func (s *Server) addRun(rec *runRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[rec.id] = rec
	s.runOrder = append(s.runOrder, rec.id)
	for len(s.runOrder) > maxRuns {
		oldest := s.runs[s.runOrder[0]]
		if _, _, done := oldest.since(0); !done {
			break
		}
		delete(s.runs, oldest.id)
		s.runOrder = s.runOrder[1:]
	}
}

func (s *Server) run(r *http.Request) (*runRecord, error) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errRunNotFound, id)
	}
	return rec, nil
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.run(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec.view())
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	rec, err := s.run(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	rec.cancel()
	log.Infof("run %s: cancel requested", rec.id)
	s.writeJSON(w, http.StatusAccepted, rec.view())
}

// handleRunEvents streams the run's events as server-sent events, replaying
// those already emitted, until the terminal event.
func (s *Server) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	rec, err := s.run(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported!", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	next := 0
	for {
		batch, changed, done := rec.since(next)
		for _, e := range batch {
			data, err := json.Marshal(e)
			if err != nil {
				log.Errorf("Error marshalling SSE event: %v", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Type, data)
		}
		next += len(batch)
		flusher.Flush()
		if done {
			return
		}
		select {
		case <-changed:
		case <-r.Context().Done():
			return
		}
	}
}
