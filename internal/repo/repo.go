// Package repo holds what the storage backends share: the duplicate-key
// signal that the HTTP edge translates to 409, and the metrics hook.
package repo

import "errors"

var ErrDuplicateKey = errors.New("duplicate key")

// Observer times a logical store operation. observability.Prom satisfies it.
type Observer interface {
	ObserveDB(op string, fn func() error) error
}

// Observe runs fn through obs when one is configured.
func Observe(obs Observer, op string, fn func() error) error {
	if obs == nil {
		return fn()
	}
	return obs.ObserveDB(op, fn)
}
