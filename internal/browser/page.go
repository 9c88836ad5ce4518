package browser

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned when a selector matches nothing within the implicit wait.
var ErrElementNotFound = errors.New("element not found")

// Page is a single browser tab bound to one login session.
//
// Every method addressing an element by css selector waits up to the implicit wait for
// it to appear before failing with ErrElementNotFound, except Has which answers
// immediately.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	Has(ctx context.Context, selector string) (bool, error)
	// Input replaces the value of a text field.
	Input(ctx context.Context, selector, text string) error
	// Select picks the option with the given value attribute in a <select>.
	Select(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	// PDF renders the current document.
	PDF(ctx context.Context) ([]byte, error)
	Close() error
}
