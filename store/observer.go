package store

import "time"

// Observer is notified after every collection operation
type Observer interface {
	ObserveOp(collection, op string, err error, took time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveOp(string, string, error, time.Duration) {}
