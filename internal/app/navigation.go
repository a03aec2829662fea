// Package app holds the pieces shared by the field app page models: a page
// contract and a navigation stack.
package app

import (
	"context"
	"errors"
	"sync"
)

// ErrEmptyStack is returned when popping a navigator with no pages.
var ErrEmptyStack = errors.New("navigation stack is empty")

// Page is anything a Navigator can show.
type Page interface {
	Title() string
}

// Navigator pushes and pops pages. Page models call it only after their
// persistence call has returned.
type Navigator interface {
	Push(ctx context.Context, page Page) error
	Pop(ctx context.Context) error
}

// Stack is an in-process Navigator.
type Stack struct {
	mu    sync.Mutex
	pages []Page
}

var _ Navigator = (*Stack)(nil)

// NewStack returns a stack showing root, if given.
func NewStack(root Page) *Stack {
	s := &Stack{}
	if root != nil {
		s.pages = append(s.pages, root)
	}
	return s
}

// Push shows page on top of the stack.
func (s *Stack) Push(_ context.Context, page Page) error {
	if page == nil {
		return errors.New("page cannot be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages = append(s.pages, page)
	return nil
}

// Pop removes the top page.
func (s *Stack) Pop(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) == 0 {
		return ErrEmptyStack
	}
	s.pages[len(s.pages)-1] = nil
	s.pages = s.pages[:len(s.pages)-1]
	return nil
}

// Current returns the top page, or nil when empty.
func (s *Stack) Current() Page {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pages) == 0 {
		return nil
	}
	return s.pages[len(s.pages)-1]
}

// Depth returns the number of pages on the stack.
func (s *Stack) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pages)
}
