// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch turns submitted input into backend requests and
// transcript messages.
//
// A Dispatcher owns the Session (pending attachments and the input mode),
// talks to the backend through the Backend interface and draws through the
// Surface interface. Only one request is in flight at a time; overlapping
// submits are rejected with ErrBusy.
package dispatch

import (
	"context"
	"errors"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/jeranaias/chatterm/internal/attach"
	"github.com/jeranaias/chatterm/internal/backend"
	"github.com/jeranaias/chatterm/internal/mode"
	"github.com/jeranaias/chatterm/internal/render"
)

// Fixed bot replies for failure cases.
const (
	MsgSomethingWrong = "Sorry, something went wrong."
	MsgConnectionLost = "Connection lost. Please try again."
	MsgNoResults      = "No results found for your search."
	MsgSearchError    = "Error performing search. Please try again."
)

// ErrBusy is returned when a submit arrives while a request is pending.
var ErrBusy = errors.New("a request is already in progress")

// Backend is the subset of the backend client the dispatcher needs.
type Backend interface {
	Chat(ctx context.Context, prompt string, files []attach.Attachment) (*backend.ChatResponse, error)
	Search(ctx context.Context, query string) (*backend.SearchResponse, error)
}

// Surface displays transcript messages.
type Surface interface {
	// Render appends m to the transcript and returns once it is fully shown,
	// including any typewriter animation, or when ctx is done.
	Render(ctx context.Context, m render.Message)
	// SetTyping shows or hides the typing indicator.
	SetTyping(on bool)
	// ClearInput empties the input field.
	ClearInput()
}

// Session is the per-conversation client state.
type Session struct {
	Attachments *attach.Store
	Mode        *mode.Controller
}

// NewSession returns an empty session in chat mode.
func NewSession() *Session {
	return &Session{
		Attachments: attach.NewStore(),
		Mode:        mode.NewController(),
	}
}

// Dispatcher runs chat and search requests against a backend.
type Dispatcher struct {
	backend Backend
	surface Surface
	session *Session
	busy    atomic.Bool
}

// New creates a dispatcher. A nil session starts a fresh one.
func New(b Backend, s Surface, session *Session) *Dispatcher {
	if session == nil {
		session = NewSession()
	}
	return &Dispatcher{backend: b, surface: s, session: session}
}

// Session returns the dispatcher's session state.
func (d *Dispatcher) Session() *Session {
	return d.session
}

// Submit routes text to PerformSearch in search mode and SendChat otherwise.
func (d *Dispatcher) Submit(ctx context.Context, text string) error {
	if d.session.Mode.Current() == mode.Search {
		return d.PerformSearch(ctx, text)
	}
	return d.SendChat(ctx, text)
}

// SendChat sends text plus the pending attachments to the chat endpoint.
// Empty text with no attachments does nothing. The sent attachments leave
// the store whether or not the request succeeds; files attached while the
// request is in flight stay pending for the next message.
func (d *Dispatcher) SendChat(ctx context.Context, text string) error {
	text = strings.TrimSpace(text)
	if text == "" && d.session.Attachments.Len() == 0 {
		return nil
	}
	if !d.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer d.busy.Store(false)

	files := d.session.Attachments.Take()

	imageFirst := len(files) > 0 && files[0].IsImage()
	if imageFirst {
		d.surface.Render(ctx, render.User("Analyzing image: "+files[0].Name, render.Options{
			IsFile: true,
			Image:  files[0].DataURL(),
		}))
	}
	if text != "" {
		d.surface.Render(ctx, render.User(text, render.Options{}))
	}

	d.surface.ClearInput()
	d.surface.SetTyping(true)

	resp, err := d.backend.Chat(ctx, text, files)
	d.surface.SetTyping(false)

	switch {
	case err != nil:
		log.Printf("CHAT_FAILED | files=%d | err=%v", len(files), err)
		d.surface.Render(ctx, render.Bot(MsgConnectionLost, render.Options{}))
	case resp.Response == "":
		log.Printf("CHAT_EMPTY_REPLY | files=%d", len(files))
		d.surface.Render(ctx, render.Bot(MsgSomethingWrong, render.Options{}))
	default:
		d.surface.Render(ctx, render.Bot(resp.Response, render.Options{IsImageAnalysis: imageFirst}))
	}
	return nil
}

// PerformSearch sends query to the search endpoint and renders each result
// as its own bot message, in order.
func (d *Dispatcher) PerformSearch(ctx context.Context, query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if !d.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer d.busy.Store(false)
	defer d.surface.ClearInput()

	d.surface.Render(ctx, render.User(query, render.Options{IsSearch: true}))
	d.surface.SetTyping(true)

	resp, err := d.backend.Search(ctx, query)
	d.surface.SetTyping(false)

	tag := render.Options{IsSearch: true}
	switch {
	case err != nil:
		log.Printf("SEARCH_FAILED | err=%v", err)
		d.surface.Render(ctx, render.Bot(MsgSearchError, tag))
	case len(resp.Results) == 0:
		d.surface.Render(ctx, render.Bot(MsgNoResults, tag))
	default:
		for _, r := range resp.Results {
			d.surface.Render(ctx, render.Bot(r, tag))
		}
	}
	return nil
}

// Attach adds the file at path to the pending attachments and confirms it
// in the transcript. A failed read is reported in the transcript too.
func (d *Dispatcher) Attach(ctx context.Context, path string) (attach.Attachment, error) {
	a, err := d.session.Attachments.Add(path)
	if err != nil {
		log.Printf("ATTACH_FAILED | path=%s | err=%v", path, err)
		d.surface.Render(ctx, render.Bot("Couldn't attach "+filepath.Base(path)+". Please try again.", render.Options{}))
		return attach.Attachment{}, err
	}
	d.surface.Render(ctx, render.User("Attached: "+a.Name, render.Options{IsFile: true}))
	return a, nil
}

// ClearAttachments drops every pending attachment.
func (d *Dispatcher) ClearAttachments() {
	d.session.Attachments.Clear()
}

// ToggleMode flips between chat and search.
func (d *Dispatcher) ToggleMode() mode.Mode {
	return d.session.Mode.Toggle()
}
